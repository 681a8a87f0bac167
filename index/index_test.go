package index

import (
	"bytes"
	"errors"
	"math/rand"
	"sort"
	"strings"
	"testing"
	"time"

	"github.com/tormol/rtree/geo"
	"github.com/tormol/rtree/logger"
	"github.com/tormol/rtree/rtree"
)

func newTestIndex(t *testing.T) *Index[string] {
	t.Helper()
	ix, err := New[string](WithCapacity[string](4, 2))
	if err != nil {
		t.Fatal(err)
	}
	return ix
}

// nopWriteCloser adapts a bytes.Buffer to io.WriteCloser for tests, since
// logger.NewLogger requires one.
type nopWriteCloser struct{ *bytes.Buffer }

func (nopWriteCloser) Close() error { return nil }

func TestAddDuplicateFails(t *testing.T) {
	ix := newTestIndex(t)
	r := geo.NewRectangle(0, 0, 1, 1)
	if err := ix.Add(r, "A"); err != nil {
		t.Fatal(err)
	}
	err := ix.Add(r, "A")
	if !errors.Is(err, rtree.ErrDuplicatePayload) {
		t.Fatalf("expected ErrDuplicatePayload, got %v", err)
	}
}

func TestDeleteUnknownFails(t *testing.T) {
	ix := newTestIndex(t)
	_, err := ix.Delete(geo.NewRectangle(0, 0, 1, 1), "ghost")
	if !errors.Is(err, rtree.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

// TestDeleteWrongRectReportsFalseNotError covers spec.md §6's distinction:
// a known payload deleted under the wrong rectangle is a plain "false, nil"
// (the caller just named the wrong rect), not the same error as deleting a
// payload that was never indexed at all.
func TestDeleteWrongRectReportsFalseNotError(t *testing.T) {
	ix := newTestIndex(t)
	if err := ix.Add(geo.NewRectangle(0, 0, 1, 1), "A"); err != nil {
		t.Fatal(err)
	}
	removed, err := ix.Delete(geo.NewRectangle(5, 5, 6, 6), "A")
	if err != nil {
		t.Fatalf("expected no error for a known payload with a mismatched rect, got %v", err)
	}
	if removed {
		t.Fatal("expected false: the rect didn't match what A was indexed under")
	}
	if n, err := ix.Count(); err != nil || n != 1 {
		t.Fatalf("expected A to still be indexed, count=%d err=%v", n, err)
	}
}

func TestAddDeleteRoundTrip(t *testing.T) {
	ix := newTestIndex(t)
	r := geo.NewRectangle(0, 0, 1, 1)
	if err := ix.Add(r, "A"); err != nil {
		t.Fatal(err)
	}
	if n, err := ix.Count(); err != nil || n != 1 {
		t.Fatalf("expected count 1, got %d, err %v", n, err)
	}
	if removed, err := ix.Delete(r, "A"); err != nil || !removed {
		t.Fatalf("expected delete to succeed, removed=%v err=%v", removed, err)
	}
	if n, err := ix.Count(); err != nil || n != 0 {
		t.Fatalf("expected count 0 after delete, got %d, err %v", n, err)
	}
	if _, ok, err := ix.Bounds(); err != nil || ok {
		t.Fatalf("expected no bounds once empty, ok=%v err=%v", ok, err)
	}
}

func TestReaddAfterDeleteReusesNoStaleState(t *testing.T) {
	ix := newTestIndex(t)
	a := geo.NewRectangle(0, 0, 1, 1)
	b := geo.NewRectangle(10, 10, 11, 11)
	if err := ix.Add(a, "A"); err != nil {
		t.Fatal(err)
	}
	if removed, err := ix.Delete(a, "A"); err != nil || !removed {
		t.Fatalf("expected delete to succeed, removed=%v err=%v", removed, err)
	}
	if err := ix.Add(b, "A"); err != nil {
		t.Fatal(err)
	}
	var got []string
	if err := ix.Intersects(b, func(item string) { got = append(got, item) }); err != nil {
		t.Fatal(err)
	}
	if len(got) != 1 || got[0] != "A" {
		t.Fatalf("expected [A] intersecting new rect, got %v", got)
	}
	var none []string
	if err := ix.Intersects(a, func(item string) { none = append(none, item) }); err != nil {
		t.Fatal(err)
	}
	if len(none) != 0 {
		t.Fatalf("expected no matches at old rect, got %v", none)
	}
}

func TestQueriesAgainstTypedPayloads(t *testing.T) {
	ix := newTestIndex(t)
	ships := map[string]geo.Rectangle{
		"alpha": geo.NewRectangle(0, 0, 1, 1),
		"bravo": geo.NewRectangle(5, 5, 6, 6),
		"cecil": geo.NewRectangle(100, 100, 101, 101),
	}
	for name, r := range ships {
		if err := ix.Add(r, name); err != nil {
			t.Fatal(err)
		}
	}

	var near []string
	if err := ix.Nearest(geo.Point{X: 0, Y: 0}, 20, func(item string) { near = append(near, item) }); err != nil {
		t.Fatal(err)
	}
	if len(near) != 1 || near[0] != "alpha" {
		t.Fatalf("expected [alpha] nearest (0,0), got %v", near)
	}

	var contained []string
	if err := ix.Contains(geo.NewRectangle(0, 0, 10, 10), func(item string) { contained = append(contained, item) }); err != nil {
		t.Fatal(err)
	}
	sort.Strings(contained)
	if len(contained) != 2 || contained[0] != "alpha" || contained[1] != "bravo" {
		t.Fatalf("expected [alpha bravo], got %v", contained)
	}
}

func TestWithTimeoutAppliesToLockAcquisition(t *testing.T) {
	ix, err := New[string](WithTimeout[string](20 * time.Millisecond))
	if err != nil {
		t.Fatal(err)
	}
	ix.mu.Lock() // simulate a stuck writer
	defer ix.mu.Unlock()

	_, err = ix.Count()
	if !errors.Is(err, rtree.ErrLockTimeout) {
		t.Fatalf("expected ErrLockTimeout, got %v", err)
	}
}

func TestConcurrentAddsAllSucceed(t *testing.T) {
	ix, err := New[int](WithCapacity[int](4, 2))
	if err != nil {
		t.Fatal(err)
	}
	const n = 200
	done := make(chan error, n)
	rng := rand.New(rand.NewSource(1))
	rects := make([]geo.Rectangle, n)
	for i := 0; i < n; i++ {
		x := rng.Intn(1000)
		y := rng.Intn(1000)
		rects[i] = geo.NewRectangle(x, y, x+1, y+1)
	}
	for i := 0; i < n; i++ {
		i := i
		go func() { done <- ix.Add(rects[i], i) }()
	}
	for i := 0; i < n; i++ {
		if err := <-done; err != nil {
			t.Fatal(err)
		}
	}
	if count, err := ix.Count(); err != nil || count != n {
		t.Fatalf("expected count %d, got %d, err %v", n, count, err)
	}
}

// TestWithLoggerReportsSizePeriodically checks that New registers a
// periodic size report when given a logger, and that it reflects the
// current entry count once run.
func TestWithLoggerReportsSizePeriodically(t *testing.T) {
	var buf bytes.Buffer
	log := logger.NewLogger(nopWriteCloser{&buf}, logger.Info)
	defer log.Close()

	ix, err := New[string](WithCapacity[string](4, 2), WithLogger[string](log))
	if err != nil {
		t.Fatal(err)
	}
	defer ix.Close()

	if err := ix.Add(geo.NewRectangle(0, 0, 1, 1), "A"); err != nil {
		t.Fatal(err)
	}
	log.RunAllPeriodic()

	if !strings.Contains(buf.String(), "1 entries indexed") {
		t.Fatalf("expected a size report mentioning 1 entry, got log output: %q", buf.String())
	}
}
