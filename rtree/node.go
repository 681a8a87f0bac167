package rtree

import "github.com/tormol/rtree/geo"

// Entry is one (rectangle, id) pair held by a Node. In an internal node id
// is the nodeId of a child; in a leaf node id is the payload id the index
// façade assigned.
type Entry struct {
	Rect geo.Rectangle
	ID   int
}

// Node is a fixed-capacity container of entries plus their cached MBR.
// Nodes are addressed by the stable integer nodeId the owning Tree hands
// out; there are no parent pointers (see Tree's parents/parentsEntry
// scratch stacks for descent bookkeeping).
type Node struct {
	id         int
	level      int // 1 for leaves, increasing toward the root
	entries    []Entry
	entryCount int
	mbr        geo.Rectangle
}

// isLeaf reports whether n is a leaf node.
func (n *Node) isLeaf() bool { return n.level == 1 }

// addEntry installs (r, id) as a new entry, growing the node's cached MBR
// and reusing the underlying slice's spare capacity where possible.
func (n *Node) addEntry(r geo.Rectangle, id int) {
	if n.entryCount == 0 {
		n.mbr = r
	} else {
		n.mbr.Add(r)
	}
	if n.entryCount < len(n.entries) {
		n.entries[n.entryCount] = Entry{Rect: r, ID: id}
	} else {
		n.entries = append(n.entries, Entry{Rect: r, ID: id})
	}
	n.entryCount++
}

// findEntry returns the index of the entry matching both rectangle and id,
// or -1 if there is none.
func (n *Node) findEntry(r geo.Rectangle, id int) int {
	for i := 0; i < n.entryCount; i++ {
		if n.entries[i].ID == id && n.entries[i].Rect.Equal(r) {
			return i
		}
	}
	return -1
}

// deleteEntry removes the entry at index i via swap-remove with the
// current last entry, and refreshes the node's MBR unless the node has
// dropped below m (in which case CondenseTree is about to eliminate it, so
// there's no point recomputing). Returns the rectangle that was removed.
func (n *Node) deleteEntry(i, m int) geo.Rectangle {
	deleted := n.entries[i].Rect
	last := n.entryCount - 1
	n.entries[i] = n.entries[last]
	n.entryCount--
	n.entries = n.entries[:n.entryCount]
	if n.entryCount >= m {
		n.recalculateMBR(deleted)
	}
	return deleted
}

// recalculateMBR recomputes n's cached MBR from scratch, but only if the
// deleted rectangle actually touched an edge of the old MBR -- an interior
// deletion can't have shrunk it.
func (n *Node) recalculateMBR(deletedRect geo.Rectangle) {
	if n.entryCount == 0 {
		n.mbr = geo.Rectangle{}
		return
	}
	if !n.mbr.EdgeOverlaps(deletedRect) {
		return
	}
	n.rebuildMBR()
}

// rebuildMBR unconditionally recomputes n's cached MBR as the union of all
// its current entries.
func (n *Node) rebuildMBR() {
	if n.entryCount == 0 {
		n.mbr = geo.Rectangle{}
		return
	}
	n.mbr = n.entries[0].Rect
	for i := 1; i < n.entryCount; i++ {
		n.mbr.Add(n.entries[i].Rect)
	}
}
