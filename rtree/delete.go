package rtree

import "github.com/tormol/rtree/geo"

// Delete removes the leaf entry matching both rect and id. It reports
// whether a matching entry was found and removed.
func (t *Tree) Delete(rect geo.Rectangle, id int) bool {
	t.resetScratch()
	leaf := t.locate(rect, id)
	if leaf == nil {
		return false
	}
	idx := leaf.findEntry(rect, id)
	leaf.deleteEntry(idx, t.minEntries)
	t.condenseTree(leaf)
	return true
}

// locate finds the leaf holding (rect, id), descending only into children
// whose entry rectangle contains the query rectangle (a stronger
// predicate than intersection, since containment is necessary for an
// indexed rectangle to live under that subtree's MBR). It records the
// descent path on t.parents/t.parentsEntry exactly as ChooseNode does, so
// that CondenseTree can walk back up from the leaf it returns; on a dead
// end it backtracks by popping a frame and resuming the parent's scan
// from the next entry.
func (t *Tree) locate(rect geo.Rectangle, id int) *Node {
	cur := t.nodeAt(t.rootID)
	start := 0

	for {
		if cur.isLeaf() {
			if cur.findEntry(rect, id) >= 0 {
				return cur
			}
			if len(t.parents) == 0 {
				return nil
			}
			pid := t.parents[len(t.parents)-1]
			pidx := t.parentsEntry[len(t.parentsEntry)-1]
			t.parents = t.parents[:len(t.parents)-1]
			t.parentsEntry = t.parentsEntry[:len(t.parentsEntry)-1]
			cur = t.nodeAt(pid)
			start = pidx + 1
			continue
		}

		descended := false
		for i := start; i < cur.entryCount; i++ {
			if cur.entries[i].Rect.Contains(rect) {
				t.parents = append(t.parents, cur.id)
				t.parentsEntry = append(t.parentsEntry, i)
				cur = t.nodeAt(cur.entries[i].ID)
				start = 0
				descended = true
				break
			}
		}
		if descended {
			continue
		}

		if len(t.parents) == 0 {
			return nil
		}
		pid := t.parents[len(t.parents)-1]
		pidx := t.parentsEntry[len(t.parentsEntry)-1]
		t.parents = t.parents[:len(t.parents)-1]
		t.parentsEntry = t.parentsEntry[:len(t.parentsEntry)-1]
		cur = t.nodeAt(pid)
		start = pidx + 1
	}
}

// condenseTree walks upward from a leaf whose entry count just dropped,
// using the path locate recorded, removing any node that's fallen below m
// and rebuilding ancestor MBRs otherwise. Orphaned entries from eliminated
// nodes are reinserted at their original level once the walk reaches the
// root, and the root is collapsed if it ends up with a single child.
func (t *Tree) condenseTree(leaf *Node) {
	n := leaf
	var eliminated []*Node

	for len(t.parents) > 0 {
		pid := t.parents[len(t.parents)-1]
		pidx := t.parentsEntry[len(t.parentsEntry)-1]
		t.parents = t.parents[:len(t.parents)-1]
		t.parentsEntry = t.parentsEntry[:len(t.parentsEntry)-1]
		p := t.nodeAt(pid)

		if n.entryCount < t.minEntries {
			p.deleteEntry(pidx, t.minEntries)
			eliminated = append(eliminated, n)
		} else if !p.entries[pidx].Rect.Equal(n.mbr) {
			t.oldRectangle = p.entries[pidx].Rect
			p.entries[pidx].Rect = n.mbr
			p.recalculateMBR(t.oldRectangle)
		}
		n = p
	}

	for _, en := range eliminated {
		targetLevel := 1
		if !en.isLeaf() {
			targetLevel = en.level
		}
		for i := 0; i < en.entryCount; i++ {
			t.insert(en.entries[i].Rect, en.entries[i].ID, targetLevel)
		}
		delete(t.nodes, en.id)
		t.freeNodeIDs = append(t.freeNodeIDs, en.id)
	}

	root := t.nodeAt(t.rootID)
	for !root.isLeaf() && root.entryCount == 1 {
		childID := root.entries[0].ID
		delete(t.nodes, root.id)
		t.freeNodeIDs = append(t.freeNodeIDs, root.id)
		t.rootID = childID
		t.height--
		root = t.nodeAt(t.rootID)
	}
	// deleteEntry skips the MBR refresh for a node left below m, and the
	// root is exempt from m, so refresh its MBR from its entries here.
	root.rebuildMBR()
}
