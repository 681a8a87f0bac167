package rtree

import "github.com/tormol/rtree/geo"

// candidate assignment states, tracked in the tree-owned entryStatus
// scratch buffer during a split.
const (
	unassigned byte = iota
	assignedN
	assignedNN
)

// splitNode partitions n's M entries plus the incoming (newRect, newID)
// into two groups using Guttman's quadratic PickSeeds/PickNext algorithm:
// n keeps one group in place, and the returned sibling node holds the
// other. n must have exactly maxEntries entries when called.
func (t *Tree) splitNode(n *Node, newRect geo.Rectangle, newID int) *Node {
	M := t.maxEntries
	total := M + 1

	if cap(t.entryStatus) < total {
		t.entryStatus = make([]byte, total)
	}
	status := t.entryStatus[:total]
	for i := range status {
		status[i] = unassigned
	}

	candidates := make([]Entry, total)
	copy(candidates, n.entries[:n.entryCount])
	candidates[M] = Entry{Rect: newRect, ID: newID}

	seedN, seedNN := t.pickSeeds(candidates)

	nn := &Node{
		id:      t.allocNodeID(),
		level:   n.level,
		entries: make([]Entry, 0, total),
	}
	t.nodes[nn.id] = nn

	// Reorganize n in place: its surviving entries (just the seed, for
	// now) pack into the low indices of its existing backing array.
	n.entries = n.entries[:0]
	n.entryCount = 0
	n.addEntry(candidates[seedN].Rect, candidates[seedN].ID)
	nn.addEntry(candidates[seedNN].Rect, candidates[seedNN].ID)
	status[seedN] = assignedN
	status[seedNN] = assignedNN

	remaining := total - 2
	for remaining > 0 {
		nNeed := t.minEntries - n.entryCount
		nnNeed := t.minEntries - nn.entryCount

		if remaining == nNeed {
			assignAllRemaining(candidates, status, n, assignedN)
			break
		}
		if remaining == nnNeed {
			assignAllRemaining(candidates, status, nn, assignedNN)
			break
		}

		idx := t.pickNext(candidates, status, n, nn)
		assignToGroup(candidates, status, idx, n, nn)
		remaining--
	}

	return nn
}

// assignAllRemaining assigns every still-unassigned candidate to group,
// forced by the minimum-fill rule (group needs every remaining candidate to
// reach m).
func assignAllRemaining(candidates []Entry, status []byte, group *Node, mark byte) {
	for i := range status {
		if status[i] == unassigned {
			group.addEntry(candidates[i].Rect, candidates[i].ID)
			status[i] = mark
		}
	}
}

// pickSeeds implements Guttman's PickSeeds: for each dimension, find the
// candidate with the highest "low side" and the candidate with the lowest
// "high side", normalize their separation by the overall candidate-set span
// along that dimension, and keep the dimension/pair with the greatest
// normalized separation. Returns (seed for n, seed for nn), always two
// distinct indices even when every candidate ties (identical or
// axis-aligned-duplicate rectangles).
func (t *Tree) pickSeeds(candidates []Entry) (seedN, seedNN int) {
	overall := candidates[0].Rect
	for i := 1; i < len(candidates); i++ {
		overall.Add(candidates[i].Rect)
	}

	seedN, seedNN = 0, 1 // always distinct; overwritten once a dimension qualifies
	bestSeparation := -2.0
	for d := 0; d < 2; d++ {
		highestLowIdx, lowestHighIdx := 0, 0
		highestLow := candidates[0].Rect.AxisLow(d)
		lowestHigh := candidates[0].Rect.AxisHigh(d)
		for i := 1; i < len(candidates); i++ {
			lo := candidates[i].Rect.AxisLow(d)
			hi := candidates[i].Rect.AxisHigh(d)
			if lo > highestLow {
				highestLow = lo
				highestLowIdx = i
			}
			if hi < lowestHigh {
				lowestHigh = hi
				lowestHighIdx = i
			}
		}
		if highestLowIdx == lowestHighIdx {
			// One candidate holds both the highest low side and the lowest
			// high side on this axis (always so when every candidate ties):
			// PickSeeds still needs two distinct seeds, so fall back to the
			// next candidate.
			lowestHighIdx = (highestLowIdx + 1) % len(candidates)
		}

		span := overall.AxisHigh(d) - overall.AxisLow(d)
		var separation float64
		if span != 0 {
			separation = float64(highestLow-lowestHigh) / float64(span)
		}
		if separation > bestSeparation {
			bestSeparation = separation
			// The highestLow candidate becomes nn's seed; the
			// lowestHigh candidate becomes n's seed.
			seedNN = highestLowIdx
			seedN = lowestHighIdx
		}
	}
	return seedN, seedNN
}

// pickNext implements Guttman's PickNext: choose the still-unassigned
// candidate that maximizes the absolute difference between how much it
// would enlarge n versus nn.
func (t *Tree) pickNext(candidates []Entry, status []byte, n, nn *Node) int {
	best := -1
	bestDiff := -1.0
	for i, st := range status {
		if st != unassigned {
			continue
		}
		enlargeN := float64(n.mbr.Enlargement(candidates[i].Rect))
		enlargeNN := float64(nn.mbr.Enlargement(candidates[i].Rect))
		diff := enlargeN - enlargeNN
		if diff < 0 {
			diff = -diff
		}
		if diff > bestDiff {
			bestDiff = diff
			best = i
		}
	}
	return best
}

// assignToGroup assigns candidate idx to whichever of n/nn would be
// enlarged less, breaking ties by (a) smaller current area, (b) fewer
// current entries, (c) n (the original node).
func assignToGroup(candidates []Entry, status []byte, idx int, n, nn *Node) {
	enlargeN := n.mbr.Enlargement(candidates[idx].Rect)
	enlargeNN := nn.mbr.Enlargement(candidates[idx].Rect)

	var toN bool
	switch {
	case enlargeN < enlargeNN:
		toN = true
	case enlargeNN < enlargeN:
		toN = false
	case n.mbr.Area() != nn.mbr.Area():
		toN = n.mbr.Area() < nn.mbr.Area()
	case n.entryCount != nn.entryCount:
		toN = n.entryCount < nn.entryCount
	default:
		toN = true
	}

	if toN {
		n.addEntry(candidates[idx].Rect, candidates[idx].ID)
		status[idx] = assignedN
	} else {
		nn.addEntry(candidates[idx].Rect, candidates[idx].ID)
		status[idx] = assignedNN
	}
}
