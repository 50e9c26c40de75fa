package allocator

import (
	"fmt"
	"sync/atomic"

	"github.com/cockroachdb/errors"
)

// ErrOutOfMemory is returned from Allocate when an allocation would take a Tracking allocator
// past its budget
var ErrOutOfMemory = errors.New("out of memory")

type budget struct {
	limit uint64
	used  atomic.Uint64
}

func (b *budget) Reserve(size int) error {
	for {
		currentVal := b.used.Load()
		targetVal := currentVal + uint64(size)

		if b.limit > 0 && targetVal > b.limit {
			return errors.WithHint(
				errors.Wrapf(ErrOutOfMemory, "%d bytes requested with %d of %d bytes in use", size, currentVal, b.limit),
				"release empty boxes that are no longer needed, or raise CreateOptions.BudgetBytes",
			)
		}

		if b.used.CompareAndSwap(currentVal, targetVal) {
			return nil
		}
	}
}

func (b *budget) Release(size int) {
	for {
		currentVal := b.used.Load()
		if currentVal < uint64(size) {
			panic(fmt.Sprintf("budget went negative releasing %d bytes with %d in use", size, currentVal))
		}

		if b.used.CompareAndSwap(currentVal, currentVal-uint64(size)) {
			return
		}
	}
}

func (b *budget) Used() int {
	return int(b.used.Load())
}
