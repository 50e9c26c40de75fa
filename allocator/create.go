package allocator

import (
	"io"
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/dolthub/swiss"
	"github.com/vkngwrapper/emptybox/internal/utils"
	"golang.org/x/exp/slog"
)

// CreateFlags indicate specific allocator behaviors to activate or deactivate
type CreateFlags int32

const (
	// CreateExternallySynchronized ensures that the allocator will not be synchronized internally.
	// The consumer must guarantee it is used from only one goroutine at a time or is synchronized
	// by some other mechanism, but performance may improve because internal mutexes are not used.
	CreateExternallySynchronized CreateFlags = 1 << iota
	// CreateLogAllocations emits a debug-level log entry for every allocate and free call
	CreateLogAllocations
)

var createFlagNames = []struct {
	flag CreateFlags
	name string
}{
	{CreateExternallySynchronized, "CreateExternallySynchronized"},
	{CreateLogAllocations, "CreateLogAllocations"},
}

func (f CreateFlags) String() string {
	if f == 0 {
		return "None"
	}

	var names []string
	for _, entry := range createFlagNames {
		if f&entry.flag != 0 {
			names = append(names, entry.name)
			f &^= entry.flag
		}
	}
	if f != 0 {
		names = append(names, "Unknown")
	}

	return strings.Join(names, "|")
}

const (
	// defaultRegistryCapacity is the number of live allocations the registry is sized for before
	// it first needs to grow
	defaultRegistryCapacity uint32 = 64
)

// CreateOptions contains optional settings when creating a Tracking allocator
type CreateOptions struct {
	// Flags indicates specific allocator behaviors to activate or deactivate
	Flags CreateFlags

	// BudgetBytes can be left at 0, indicating no limit. If it is positive, it is the maximum
	// number of bytes that may be live at once. The budget is enforced at runtime: Allocate
	// returns an error wrapping ErrOutOfMemory rather than exceed it.
	BudgetBytes int

	// RegistryCapacity is a sizing hint for the live allocation registry. 0 uses a default.
	RegistryCapacity uint32
}

// New creates a new Tracking allocator
//
// logger - Where allocation events and unreleased memory reports go. May be nil.
//
// parent - The allocator that actually provides memory. If nil, System is used.
//
// options - Optional parameters: it is valid to leave all the fields blank
func New(logger *slog.Logger, parent Allocator, options CreateOptions) (*Tracking, error) {
	if options.BudgetBytes < 0 {
		return nil, errors.Newf("allocator.CreateOptions.BudgetBytes was %d, but it must be 0 (unlimited) or positive", options.BudgetBytes)
	}

	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	if parent == nil {
		parent = System
	}

	registryCapacity := options.RegistryCapacity
	if registryCapacity == 0 {
		registryCapacity = defaultRegistryCapacity
	}

	allocator := &Tracking{
		logger: logger,
		parent: parent,
		flags:  options.Flags,
		mutex:  utils.OptionalRWMutex{UseMutex: options.Flags&CreateExternallySynchronized == 0},
		budget: budget{limit: uint64(options.BudgetBytes)},
		live:   swiss.NewMap[uintptr, *liveAllocation](registryCapacity),
	}
	allocator.stats.Clear()

	return allocator, nil
}
