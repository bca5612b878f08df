package descriptor

import (
	"sort"

	"github.com/shadow/shadow-sub001/internal/locker"
)

// Table is a per-process mapping from small non-negative integer handles to
// descriptor entries. Allocation policy is POSIX "lowest available
// integer": Add returns the smallest handle not currently in use. 0, 1 and
// 2 (stdin/stdout/stderr) are never returned by Add; they can only be
// produced via Set, the way a real process starts with those three already
// occupied.
type Table struct {
	mu        locker.Locker
	entries   map[int32]File
	freeList  []int32 // sorted ascending; freeList[0] is always the smallest free handle.
	highWater int32
}

// NewTable constructs an empty table whose high-water mark starts just
// above stderr, so the first Add returns 3.
func NewTable() *Table {
	return &Table{entries: make(map[int32]File), highWater: 2}
}

// Add stores desc at the lowest available handle, consuming the caller's
// reference (the table now owns one strong reference to desc).
func (t *Table) Add(desc File) int32 {
	t.mu.Lock()
	defer t.mu.Unlock()
	h := t.allocateLocked()
	t.entries[h] = desc
	desc.setHandle(h)
	return h
}

// Get returns the descriptor stored at handle, or nil if none.
func (t *Table) Get(handle int32) File {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.entries[handle]
}

// Set stores desc at an explicit handle, replacing any existing occupant.
// Like Add, it consumes the caller's reference to desc. The replaced
// occupant (if any) has its handle cleared and is released.
func (t *Table) Set(handle int32, desc File) File {
	t.mu.Lock()
	prev := t.entries[handle]
	t.removeFromFreeListLocked(handle)
	if handle > t.highWater {
		t.growHighWaterLocked(handle)
	}
	t.entries[handle] = desc
	desc.setHandle(handle)
	t.mu.Unlock()

	if prev != nil {
		prev.setHandle(unallocatedHandle)
		prev.Unref()
	}
	return prev
}

// Remove clears handle's occupant's handle to the sentinel *before*
// releasing the table's strong reference, so the freeing path can never
// observe a descriptor that still claims to be in the table. Returns the
// removed descriptor, or nil if handle was unoccupied.
func (t *Table) Remove(handle int32) File {
	t.mu.Lock()
	desc, ok := t.entries[handle]
	if !ok {
		t.mu.Unlock()
		return nil
	}
	delete(t.entries, handle)
	t.releaseLocked(handle)
	t.mu.Unlock()

	desc.setHandle(unallocatedHandle)
	desc.Unref()
	return desc
}

// HighWater returns the current high-water mark, exposed for tests of P5.
func (t *Table) HighWater() int32 {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.highWater
}

func (t *Table) allocateLocked() int32 {
	if n := len(t.freeList); n > 0 {
		h := t.freeList[0]
		t.freeList = t.freeList[1:]
		return h
	}
	t.highWater++
	return t.highWater
}

// growHighWaterLocked accounts for a Set at a handle above the current
// high-water mark: every handle strictly between the old mark and the new
// one becomes free (it was skipped over, not allocated).
func (t *Table) growHighWaterLocked(handle int32) {
	for h := t.highWater + 1; h < handle; h++ {
		t.insertFreeLocked(h)
	}
	t.highWater = handle
}

// releaseLocked inserts handle into the free set, then trims the free set
// from the high end while its maximum equals the high-water mark, shrinking
// the mark in step. This keeps the free set minimal (P5).
func (t *Table) releaseLocked(handle int32) {
	if handle <= 2 {
		return // stdio handles are never handed out by Add, so never freed for it.
	}
	t.insertFreeLocked(handle)
	for n := len(t.freeList); n > 0 && t.freeList[n-1] == t.highWater; n = len(t.freeList) {
		t.freeList = t.freeList[:n-1]
		t.highWater--
	}
}

func (t *Table) insertFreeLocked(handle int32) {
	i := sort.Search(len(t.freeList), func(i int) bool { return t.freeList[i] >= handle })
	if i < len(t.freeList) && t.freeList[i] == handle {
		return // already free
	}
	t.freeList = append(t.freeList, 0)
	copy(t.freeList[i+1:], t.freeList[i:])
	t.freeList[i] = handle
}

func (t *Table) removeFromFreeListLocked(handle int32) {
	i := sort.Search(len(t.freeList), func(i int) bool { return t.freeList[i] >= handle })
	if i < len(t.freeList) && t.freeList[i] == handle {
		t.freeList = append(t.freeList[:i], t.freeList[i+1:]...)
	}
}
