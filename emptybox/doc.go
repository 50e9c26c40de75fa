// Package emptybox moves values in and out of heap allocations without reallocating them.
//
// A Box[T] owns a heap allocation holding a live T. Box.Take moves the T out and hands back an
// EmptyBox[T], which still owns the allocation but holds nothing that may be read. EmptyBox.Put
// moves a new T into that same allocation and turns it back into a Box[T]. The cycle can repeat
// indefinitely and never touches the allocator after the first allocation:
//
//	boxed := emptybox.New("Hello!")
//
//	old, empty := boxed.Take()
//	boxed = empty.Put("Objectively superior string!")
//	defer boxed.Drop()
//
// # Ownership
//
// Whether a live value is present is carried by which handle the caller holds, not by a flag the
// caller must check. Every operation that consumes a handle (Take, IntoInner, Drop, Put, Release,
// Retype) invalidates it in place, and using an invalidated handle panics. Handles must not be
// copied; go vet's copylocks check reports copies. Pass handles by pointer.
//
// Drop and Release are the only ways storage goes back to its allocator. Both are no-ops on a
// handle that has already been consumed, so deferring them immediately after a handle is created
// is always safe.
//
// # Teardown
//
// If *T implements Dropper, Box.Drop calls it exactly once before releasing the allocation.
// Values moved out with Take or IntoInner belong to the caller and are never torn down here, and
// EmptyBox.Release never tears anything down. By the time Dropper.Drop runs the handle has already
// been invalidated, so teardown logic must not expect to reach the value through it.
//
// # Concurrency
//
// Handles are single-owner and do no locking. Callers that share one across goroutines must
// provide their own synchronization.
//
// # Debugging
//
// Building with the debug_emptybox tag poisons the storage of pointer-free values while it is
// empty and panics on Put if anything wrote to it in the meantime.
package emptybox
