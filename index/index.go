// Package index wraps rtree.Tree behind a payload-typed, concurrency-safe
// façade: callers Add/Delete their own comparable payload type instead of
// juggling the core tree's integer ids, and every operation is safe to call
// from multiple goroutines. Grounded on storage/shipDB.go's ShipDB -- a
// single sync.RWMutex guarding a map, with RLock()/RUnlock() around reads
// and Lock()/Unlock() around writes -- generalized to a bounded wait so a
// caller can't block forever behind a slow holder.
package index

import (
	"fmt"
	"sync"
	"time"

	"github.com/cenkalti/backoff"

	"github.com/tormol/rtree/geo"
	"github.com/tormol/rtree/logger"
	"github.com/tormol/rtree/rtree"
)

// DefaultTimeout bounds how long Add/Delete/Intersects/Contains/Nearest/
// Count/Bounds wait to acquire the index's lock before giving up.
const DefaultTimeout = 10 * time.Second

// Size-report periodic logger interval bounds, passed to logger.AddPeriodic
// the same way the teacher's own periodic loggers ramp from a short initial
// interval up to a long steady-state one.
const (
	sizeReportMinInterval = 30 * time.Second
	sizeReportMaxInterval = 10 * time.Minute
)

// Index is a concurrency-safe R-tree over a caller-chosen comparable
// payload type T. The zero value is not usable; construct with New.
type Index[T comparable] struct {
	tree *rtree.Tree
	log  *logger.Logger

	mu      sync.RWMutex
	timeout time.Duration

	idsToItems map[int]T
	itemsToIds map[T]int
	nextID     int
	freeIDs    []int

	maxEntries, minEntries int // 0,0 means "use rtree defaults"

	periodicID string // non-empty once a size report is registered with log
}

// Option configures an Index at construction time.
type Option[T comparable] func(*Index[T])

// WithCapacity sets the underlying tree's maximum and minimum entries per
// node; see rtree.NewWithCapacity for the validation rules.
func WithCapacity[T comparable](maxEntries, minEntries int) Option[T] {
	return func(ix *Index[T]) { ix.maxEntries, ix.minEntries = maxEntries, minEntries }
}

// WithTimeout overrides DefaultTimeout for this Index's lock acquisition.
func WithTimeout[T comparable](d time.Duration) Option[T] {
	return func(ix *Index[T]) { ix.timeout = d }
}

// WithLogger attaches a logger.Logger; Index is nil-safe without one --
// logging is skipped entirely rather than requiring every caller to supply
// one, mirroring the teacher's optional-logger pattern elsewhere.
func WithLogger[T comparable](l *logger.Logger) Option[T] {
	return func(ix *Index[T]) { ix.log = l }
}

// New creates an Index with the given options applied.
func New[T comparable](opts ...Option[T]) (*Index[T], error) {
	ix := &Index[T]{
		timeout:    DefaultTimeout,
		idsToItems: make(map[int]T),
		itemsToIds: make(map[T]int),
	}
	for _, opt := range opts {
		opt(ix)
	}

	var tree *rtree.Tree
	var err error
	if ix.maxEntries != 0 || ix.minEntries != 0 {
		tree, err = rtree.NewWithCapacity(ix.maxEntries, ix.minEntries)
	} else {
		tree = rtree.New()
	}
	if err != nil {
		return nil, err
	}
	ix.tree = tree

	if ix.log != nil {
		ix.periodicID = fmt.Sprintf("index:%p size", ix)
		ix.log.AddPeriodic(ix.periodicID, sizeReportMinInterval, sizeReportMaxInterval, ix.reportSize)
	}
	return ix, nil
}

// Close unregisters the periodic size report added by New when a logger was
// supplied via WithLogger. Safe to call on an Index built without a logger.
func (ix *Index[T]) Close() {
	if ix.log != nil && ix.periodicID != "" {
		ix.log.RemovePeriodic(ix.periodicID)
	}
}

// reportSize is a logger.AddPeriodic callback: logs how many payloads are
// currently indexed, giving a long-running caller an ambient signal of tree
// growth and churn without polling Count itself.
func (ix *Index[T]) reportSize(c *logger.Composer, sinceLast time.Duration) {
	n, err := ix.Count()
	if err != nil {
		c.Writeln("index: size report skipped: %s", err)
		return
	}
	c.Writeln("index: %d entries indexed (%s since last report)", n, sinceLast.Round(time.Second))
}

// timeoutBackoff builds the ExponentialBackOff used to poll TryLock/
// TryRLock, grounded on server/listeners.go's newSourceBackoff -- the same
// InitialInterval/MaxInterval/MaxElapsedTime shape, repurposed from network
// reconnection to lock acquisition.
func (ix *Index[T]) timeoutBackoff() *backoff.ExponentialBackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 1 * time.Millisecond
	b.MaxInterval = 50 * time.Millisecond
	b.MaxElapsedTime = ix.timeout
	b.Reset()
	return b
}

// lockWrite acquires the write side of mu, polling TryLock under an
// exponential backoff instead of blocking on Lock() so that a caller who
// gives up can't leave a goroutine stuck holding the lock forever -- the
// failure mode a select/time.After wrapper around Lock() would have, since
// Lock() itself can't be cancelled once entered.
func (ix *Index[T]) lockWrite() error {
	if ix.mu.TryLock() {
		return nil
	}
	b := ix.timeoutBackoff()
	for {
		d := b.NextBackOff()
		if d == backoff.Stop {
			if ix.log != nil {
				ix.log.Warning("index: timed out acquiring write lock after %s", ix.timeout)
			}
			return lockTimeoutError(ix.timeout)
		}
		time.Sleep(d)
		if ix.mu.TryLock() {
			return nil
		}
	}
}

// lockRead is lockWrite's read-side counterpart, polling TryRLock.
func (ix *Index[T]) lockRead() error {
	if ix.mu.TryRLock() {
		return nil
	}
	b := ix.timeoutBackoff()
	for {
		d := b.NextBackOff()
		if d == backoff.Stop {
			if ix.log != nil {
				ix.log.Warning("index: timed out acquiring read lock after %s", ix.timeout)
			}
			return lockTimeoutError(ix.timeout)
		}
		time.Sleep(d)
		if ix.mu.TryRLock() {
			return nil
		}
	}
}

func lockTimeoutError(timeout time.Duration) error {
	return fmt.Errorf("index: timed out acquiring lock after %s: %w", timeout, rtree.ErrLockTimeout)
}

func (ix *Index[T]) allocID() int {
	if n := len(ix.freeIDs); n > 0 {
		id := ix.freeIDs[n-1]
		ix.freeIDs = ix.freeIDs[:n-1]
		return id
	}
	id := ix.nextID
	ix.nextID++
	return id
}

// Add indexes item under rect. It fails with rtree.ErrDuplicatePayload if
// item is already indexed -- use Delete first to move it.
func (ix *Index[T]) Add(rect geo.Rectangle, item T) error {
	if err := ix.lockWrite(); err != nil {
		return err
	}
	defer ix.mu.Unlock()

	if _, exists := ix.itemsToIds[item]; exists {
		return fmt.Errorf("index: %v is already indexed: %w", item, rtree.ErrDuplicatePayload)
	}
	id := ix.allocID()
	ix.tree.Insert(rect, id)
	ix.itemsToIds[item] = id
	ix.idsToItems[id] = item
	if ix.log != nil {
		ix.log.Debug("index: added %v at %+v, %d entries", item, rect, len(ix.itemsToIds))
	}
	return nil
}

// Delete removes item, which must have been indexed under rect (the same
// rectangle it was last Added or re-Added with). It reports (true, nil) iff
// the pair was present and removed. If item is indexed but rect doesn't
// match what's stored for it, it reports (false, nil) -- a recoverable
// "try the right rectangle" case, distinct from item being unknown
// entirely, which fails with rtree.ErrNotFound.
func (ix *Index[T]) Delete(rect geo.Rectangle, item T) (bool, error) {
	if err := ix.lockWrite(); err != nil {
		return false, err
	}
	defer ix.mu.Unlock()

	id, exists := ix.itemsToIds[item]
	if !exists {
		return false, fmt.Errorf("index: %v is not indexed: %w", item, rtree.ErrNotFound)
	}
	if !ix.tree.Delete(rect, id) {
		return false, nil
	}
	delete(ix.itemsToIds, item)
	delete(ix.idsToItems, id)
	ix.freeIDs = append(ix.freeIDs, id)
	if ix.log != nil {
		ix.log.Debug("index: deleted %v, %d entries left", item, len(ix.itemsToIds))
	}
	return true, nil
}

// Intersects calls emit once for every indexed item whose rectangle
// intersects rect, in no particular order.
func (ix *Index[T]) Intersects(rect geo.Rectangle, emit func(T)) error {
	if err := ix.lockRead(); err != nil {
		return err
	}
	defer ix.mu.RUnlock()
	ix.tree.Intersects(rect, func(id int) { emit(ix.idsToItems[id]) })
	return nil
}

// Contains calls emit once for every indexed item whose rectangle is fully
// contained by rect, in no particular order.
func (ix *Index[T]) Contains(rect geo.Rectangle, emit func(T)) error {
	if err := ix.lockRead(); err != nil {
		return err
	}
	defer ix.mu.RUnlock()
	ix.tree.Contains(rect, func(id int) { emit(ix.idsToItems[id]) })
	return nil
}

// Nearest calls emit once for every indexed item at the minimum distance
// from p found within furthestDistance, or never if none lies within that
// radius. Ties are all emitted.
func (ix *Index[T]) Nearest(p geo.Point, furthestDistance float64, emit func(T)) error {
	if err := ix.lockRead(); err != nil {
		return err
	}
	defer ix.mu.RUnlock()
	ix.tree.Nearest(p, furthestDistance, func(id int) { emit(ix.idsToItems[id]) })
	return nil
}

// Count returns the number of items currently indexed.
func (ix *Index[T]) Count() (int, error) {
	if err := ix.lockRead(); err != nil {
		return 0, err
	}
	defer ix.mu.RUnlock()
	return len(ix.itemsToIds), nil
}

// Bounds returns the MBR of all indexed items, and false if the index is
// empty.
func (ix *Index[T]) Bounds() (geo.Rectangle, bool, error) {
	if err := ix.lockRead(); err != nil {
		return geo.Rectangle{}, false, err
	}
	defer ix.mu.RUnlock()
	r, ok := ix.tree.Bounds()
	return r, ok, nil
}
