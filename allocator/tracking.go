package allocator

import (
	"context"
	"fmt"
	"reflect"
	"unsafe"

	"github.com/cockroachdb/errors"
	"github.com/dolthub/swiss"
	"github.com/vkngwrapper/emptybox/internal/utils"
	"github.com/vkngwrapper/emptybox/memutils"
	"golang.org/x/exp/slog"
)

type liveAllocation struct {
	id     int
	ptr    unsafe.Pointer
	typ    reflect.Type
	layout memutils.Layout
	// count is only ever above 1 for zero-sized types, which the runtime may place at a shared address
	count int
}

// Tracking is an Allocator that passes requests to a parent allocator while counting every
// allocate and free call, enforcing an optional byte budget, and remembering every live
// allocation so that double frees, foreign frees, and leaks can be reported.
//
// Live allocations are kept reachable by the Tracking allocator until they are freed.
type Tracking struct {
	logger *slog.Logger
	parent Allocator
	flags  CreateFlags

	mutex  utils.OptionalRWMutex
	budget budget
	nextID int
	live   *swiss.Map[uintptr, *liveAllocation]
	stats  memutils.DetailedStatistics
}

var _ Allocator = &Tracking{}

func (a *Tracking) Allocate(t reflect.Type) (unsafe.Pointer, error) {
	if t == nil {
		return nil, errors.New("attempted to allocate storage for a nil type")
	}

	layout := memutils.LayoutOfType(t)
	memutils.DebugValidate(layout)
	memutils.DebugCheckPow2(layout.Alignment, "alignment")

	err := a.budget.Reserve(layout.Size)
	if err != nil {
		a.logger.LogAttrs(context.Background(), slog.LevelWarn, "allocation refused by budget",
			slog.String("type", t.String()),
			slog.Int("size", layout.Size),
			slog.Int("budgetUsed", a.budget.Used()),
		)
		return nil, errors.Wrapf(err, "allocating %s", t.String())
	}

	ptr, err := a.parent.Allocate(t)
	if err != nil {
		a.budget.Release(layout.Size)
		return nil, errors.Wrapf(err, "parent allocator failed to allocate %s", t.String())
	}
	if ptr == nil {
		a.budget.Release(layout.Size)
		return nil, errors.Newf("parent allocator returned nil storage for %s", t.String())
	}

	id := a.track(ptr, t, layout)

	if a.flags&CreateLogAllocations != 0 {
		a.logger.LogAttrs(context.Background(), slog.LevelDebug, "Tracking::Allocate",
			slog.Int("id", id),
			slog.String("type", t.String()),
			slog.Int("size", layout.Size),
			slog.Uint64("address", uint64(uintptr(ptr))),
		)
	}

	return ptr, nil
}

func (a *Tracking) track(ptr unsafe.Pointer, t reflect.Type, layout memutils.Layout) int {
	a.mutex.Lock()
	defer a.mutex.Unlock()

	key := uintptr(ptr)
	record, exists := a.live.Get(key)
	if exists {
		if layout.Size != 0 || record.layout.Size != 0 {
			panic(fmt.Sprintf("parent allocator returned address %#x, which is already live as allocation %d", key, record.id))
		}
		record.count++
	} else {
		a.nextID++
		record = &liveAllocation{
			id:     a.nextID,
			ptr:    ptr,
			typ:    t,
			layout: layout,
			count:  1,
		}
		a.live.Put(key, record)
	}

	a.stats.AddAllocation(layout.Size)
	return record.id
}

func (a *Tracking) Free(ptr unsafe.Pointer, t reflect.Type) {
	if t == nil {
		panic("attempted to free storage with a nil type")
	}

	layout := memutils.LayoutOfType(t)
	id := a.untrack(ptr, layout)

	if a.flags&CreateLogAllocations != 0 {
		a.logger.LogAttrs(context.Background(), slog.LevelDebug, "Tracking::Free",
			slog.Int("id", id),
			slog.String("type", t.String()),
			slog.Int("size", layout.Size),
			slog.Uint64("address", uint64(uintptr(ptr))),
		)
	}

	a.budget.Release(layout.Size)
	a.parent.Free(ptr, t)
}

func (a *Tracking) untrack(ptr unsafe.Pointer, layout memutils.Layout) int {
	a.mutex.Lock()
	defer a.mutex.Unlock()

	key := uintptr(ptr)
	record, exists := a.live.Get(key)
	if !exists {
		panic(fmt.Sprintf("attempted to free address %#x, which is not a live allocation: it was already freed or never allocated here", key))
	}
	if record.layout.Size != layout.Size {
		panic(fmt.Sprintf("attempted to free allocation %d (%d bytes) as a %d byte value", record.id, record.layout.Size, layout.Size))
	}

	record.count--
	if record.count == 0 {
		a.live.Delete(key)
	}

	a.stats.RemoveAllocation(layout.Size)
	return record.id
}

// Statistics returns a snapshot of this allocator's counters
func (a *Tracking) Statistics() memutils.DetailedStatistics {
	a.mutex.RLock()
	defer a.mutex.RUnlock()

	return a.stats
}

// LiveCount returns the number of allocations that have not yet been freed
func (a *Tracking) LiveCount() int {
	a.mutex.RLock()
	defer a.mutex.RUnlock()

	return a.stats.AllocationCount
}

// IsLive reports whether ptr is an allocation from this allocator that has not been freed
func (a *Tracking) IsLive(ptr unsafe.Pointer) bool {
	a.mutex.RLock()
	defer a.mutex.RUnlock()

	return a.live.Has(uintptr(ptr))
}

// Validate verifies that the registry of live allocations agrees with the allocator's counters
func (a *Tracking) Validate() error {
	a.mutex.RLock()
	defer a.mutex.RUnlock()

	liveCount := 0
	liveBytes := 0
	a.live.Iter(func(key uintptr, record *liveAllocation) bool {
		liveCount += record.count
		liveBytes += record.count * record.layout.Size
		return false
	})

	if liveCount != a.stats.AllocationCount {
		return errors.Errorf("the listed number of live allocations (%d) does not match the actual number of allocations (%d)", a.stats.AllocationCount, liveCount)
	}
	if liveBytes != a.stats.AllocationBytes {
		return errors.Errorf("the listed number of live bytes (%d) does not match the actual number of bytes (%d)", a.stats.AllocationBytes, liveBytes)
	}
	if a.stats.AllocateCount-a.stats.FreeCount != liveCount {
		return errors.Errorf("%d allocate calls and %d free calls cannot leave %d allocations live", a.stats.AllocateCount, a.stats.FreeCount, liveCount)
	}

	return nil
}

// Destroy reports every allocation that is still live. If any remain, they are logged at error
// level and an error is returned. The allocator may continue to be used afterward.
func (a *Tracking) Destroy() error {
	memutils.DebugValidate(a)

	a.mutex.RLock()
	defer a.mutex.RUnlock()

	if a.live.Count() == 0 {
		return nil
	}

	a.live.Iter(func(key uintptr, record *liveAllocation) bool {
		a.logUnreleasedMemory(key, record)
		return false
	})

	return errors.Newf("%d allocations were not freed before the destruction of this allocator", a.stats.AllocationCount)
}

func (a *Tracking) logUnreleasedMemory(address uintptr, record *liveAllocation) {
	a.logger.LogAttrs(context.Background(), slog.LevelError, "[UNRELEASED MEMORY] unfreed allocation",
		slog.Int("id", record.id),
		slog.Uint64("address", uint64(address)),
		slog.Int("size", record.layout.Size),
		slog.String("type", record.typ.String()),
		slog.Int("count", record.count),
	)
}
