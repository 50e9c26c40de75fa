package allocator_test

import (
	"bytes"
	"reflect"
	"strings"
	"sync"
	"testing"
	"unsafe"

	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/require"
	"github.com/vkngwrapper/emptybox/allocator"
	"github.com/vkngwrapper/emptybox/allocator/mocks"
	"go.uber.org/mock/gomock"
	"golang.org/x/exp/slog"
)

func TestSystemAllocateAndFree(t *testing.T) {
	ptr, err := allocator.System.Allocate(reflect.TypeOf((*[]string)(nil)).Elem())
	require.NoError(t, err)
	require.NotNil(t, ptr)

	slice := (*[]string)(ptr)
	require.Nil(t, *slice)
	*slice = []string{"a"}

	allocator.System.Free(ptr, reflect.TypeOf((*[]string)(nil)).Elem())
	require.Nil(t, *slice)
}

func TestTrackingCounts(t *testing.T) {
	tracking, err := allocator.New(nil, nil, allocator.CreateOptions{})
	require.NoError(t, err)

	first, err := tracking.Allocate(reflect.TypeOf((*uint64)(nil)).Elem())
	require.NoError(t, err)
	second, err := tracking.Allocate(reflect.TypeOf((*[3]byte)(nil)).Elem())
	require.NoError(t, err)

	require.True(t, tracking.IsLive(first))
	require.True(t, tracking.IsLive(second))
	require.Equal(t, 2, tracking.LiveCount())

	stats := tracking.Statistics()
	require.Equal(t, 2, stats.AllocateCount)
	require.Equal(t, 0, stats.FreeCount)
	require.Equal(t, 11, stats.AllocationBytes)
	require.Equal(t, 3, stats.AllocationSizeMin)
	require.Equal(t, 8, stats.AllocationSizeMax)
	require.NoError(t, tracking.Validate())

	tracking.Free(first, reflect.TypeOf((*uint64)(nil)).Elem())
	require.False(t, tracking.IsLive(first))

	stats = tracking.Statistics()
	require.Equal(t, 2, stats.AllocateCount)
	require.Equal(t, 1, stats.FreeCount)
	require.Equal(t, 1, stats.AllocationCount)
	require.Equal(t, 3, stats.AllocationBytes)
	require.Equal(t, 2, stats.PeakAllocationCount)
	require.Equal(t, 11, stats.PeakAllocationBytes)
	require.NoError(t, tracking.Validate())

	tracking.Free(second, reflect.TypeOf((*[3]byte)(nil)).Elem())
	require.NoError(t, tracking.Destroy())
}

func TestTrackingDoubleFreePanics(t *testing.T) {
	tracking, err := allocator.New(nil, nil, allocator.CreateOptions{})
	require.NoError(t, err)

	ptr, err := tracking.Allocate(reflect.TypeOf((*int)(nil)).Elem())
	require.NoError(t, err)
	tracking.Free(ptr, reflect.TypeOf((*int)(nil)).Elem())

	require.Panics(t, func() {
		tracking.Free(ptr, reflect.TypeOf((*int)(nil)).Elem())
	})
	require.Equal(t, 1, tracking.Statistics().FreeCount)
}

func TestTrackingForeignFreePanics(t *testing.T) {
	tracking, err := allocator.New(nil, nil, allocator.CreateOptions{})
	require.NoError(t, err)

	require.Panics(t, func() {
		tracking.Free(unsafe.Pointer(new(int)), reflect.TypeOf((*int)(nil)).Elem())
	})
}

func TestTrackingFreeWrongSizePanics(t *testing.T) {
	tracking, err := allocator.New(nil, nil, allocator.CreateOptions{})
	require.NoError(t, err)

	ptr, err := tracking.Allocate(reflect.TypeOf((*uint64)(nil)).Elem())
	require.NoError(t, err)

	require.Panics(t, func() {
		tracking.Free(ptr, reflect.TypeOf((*uint32)(nil)).Elem())
	})
	require.True(t, tracking.IsLive(ptr))

	tracking.Free(ptr, reflect.TypeOf((*int64)(nil)).Elem())
	require.NoError(t, tracking.Destroy())
}

func TestTrackingNilType(t *testing.T) {
	tracking, err := allocator.New(nil, nil, allocator.CreateOptions{})
	require.NoError(t, err)

	_, err = tracking.Allocate(nil)
	require.Error(t, err)
	require.Equal(t, 0, tracking.Statistics().AllocateCount)
}

func TestTrackingZeroSized(t *testing.T) {
	tracking, err := allocator.New(nil, nil, allocator.CreateOptions{})
	require.NoError(t, err)

	first, err := tracking.Allocate(reflect.TypeOf((*struct{})(nil)).Elem())
	require.NoError(t, err)
	second, err := tracking.Allocate(reflect.TypeOf((*[0]int)(nil)).Elem())
	require.NoError(t, err)

	require.Equal(t, 2, tracking.LiveCount())
	require.NoError(t, tracking.Validate())

	tracking.Free(first, reflect.TypeOf((*struct{})(nil)).Elem())
	tracking.Free(second, reflect.TypeOf((*[0]int)(nil)).Elem())
	require.NoError(t, tracking.Destroy())
}

func TestTrackingBudget(t *testing.T) {
	tracking, err := allocator.New(nil, nil, allocator.CreateOptions{BudgetBytes: 12})
	require.NoError(t, err)

	first, err := tracking.Allocate(reflect.TypeOf((*uint64)(nil)).Elem())
	require.NoError(t, err)

	_, err = tracking.Allocate(reflect.TypeOf((*uint64)(nil)).Elem())
	require.ErrorIs(t, err, allocator.ErrOutOfMemory)
	require.NotEmpty(t, errors.GetAllHints(err))

	second, err := tracking.Allocate(reflect.TypeOf((*uint32)(nil)).Elem())
	require.NoError(t, err)

	tracking.Free(first, reflect.TypeOf((*uint64)(nil)).Elem())

	third, err := tracking.Allocate(reflect.TypeOf((*uint64)(nil)).Elem())
	require.NoError(t, err)

	stats := tracking.Statistics()
	require.Equal(t, 3, stats.AllocateCount)
	require.Equal(t, 12, stats.AllocationBytes)

	tracking.Free(second, reflect.TypeOf((*uint32)(nil)).Elem())
	tracking.Free(third, reflect.TypeOf((*uint64)(nil)).Elem())
	require.NoError(t, tracking.Destroy())
}

func TestNegativeBudget(t *testing.T) {
	_, err := allocator.New(nil, nil, allocator.CreateOptions{BudgetBytes: -1})
	require.Error(t, err)
}

func TestParentFailureReleasesBudget(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	parentErr := errors.New("parent exhausted")
	parent := mocks.NewMockAllocator(ctrl)
	parent.EXPECT().Allocate(reflect.TypeOf((*uint64)(nil)).Elem()).Return(unsafe.Pointer(nil), parentErr)

	tracking, err := allocator.New(nil, parent, allocator.CreateOptions{BudgetBytes: 8})
	require.NoError(t, err)

	_, err = tracking.Allocate(reflect.TypeOf((*uint64)(nil)).Elem())
	require.ErrorIs(t, err, parentErr)
	require.Equal(t, 0, tracking.LiveCount())

	storage := new(uint64)
	parent.EXPECT().Allocate(reflect.TypeOf((*uint64)(nil)).Elem()).Return(unsafe.Pointer(storage), nil)
	parent.EXPECT().Free(unsafe.Pointer(storage), reflect.TypeOf((*uint64)(nil)).Elem())

	ptr, err := tracking.Allocate(reflect.TypeOf((*uint64)(nil)).Elem())
	require.NoError(t, err)
	require.Equal(t, unsafe.Pointer(storage), ptr)

	tracking.Free(ptr, reflect.TypeOf((*uint64)(nil)).Elem())
	require.NoError(t, tracking.Destroy())
}

func TestParentReturnsLiveAddressPanics(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	storage := new(uint64)
	parent := mocks.NewMockAllocator(ctrl)
	parent.EXPECT().Allocate(gomock.Any()).Return(unsafe.Pointer(storage), nil).Times(2)

	tracking, err := allocator.New(nil, parent, allocator.CreateOptions{})
	require.NoError(t, err)

	_, err = tracking.Allocate(reflect.TypeOf((*uint64)(nil)).Elem())
	require.NoError(t, err)

	require.Panics(t, func() {
		_, _ = tracking.Allocate(reflect.TypeOf((*uint64)(nil)).Elem())
	})
}

func TestDestroyReportsUnreleasedMemory(t *testing.T) {
	var logs bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&logs, nil))

	tracking, err := allocator.New(logger, nil, allocator.CreateOptions{})
	require.NoError(t, err)

	ptr, err := tracking.Allocate(reflect.TypeOf((*[]int)(nil)).Elem())
	require.NoError(t, err)

	err = tracking.Destroy()
	require.Error(t, err)
	require.Contains(t, logs.String(), "[UNRELEASED MEMORY] unfreed allocation")
	require.Contains(t, logs.String(), `"type":"[]int"`)

	tracking.Free(ptr, reflect.TypeOf((*[]int)(nil)).Elem())
	require.NoError(t, tracking.Destroy())
}

func TestLogAllocations(t *testing.T) {
	var logs bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&logs, &slog.HandlerOptions{Level: slog.LevelDebug}))

	tracking, err := allocator.New(logger, nil, allocator.CreateOptions{Flags: allocator.CreateLogAllocations})
	require.NoError(t, err)

	ptr, err := tracking.Allocate(reflect.TypeOf((*int32)(nil)).Elem())
	require.NoError(t, err)
	tracking.Free(ptr, reflect.TypeOf((*int32)(nil)).Elem())

	lines := strings.Split(strings.TrimSpace(logs.String()), "\n")
	require.Len(t, lines, 2)
	require.Contains(t, lines[0], "Tracking::Allocate")
	require.Contains(t, lines[1], "Tracking::Free")
}

func TestTrackingConcurrent(t *testing.T) {
	tracking, err := allocator.New(nil, nil, allocator.CreateOptions{})
	require.NoError(t, err)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 200; j++ {
				ptr, err := tracking.Allocate(reflect.TypeOf((*[8]byte)(nil)).Elem())
				if err != nil {
					panic(err)
				}
				tracking.Free(ptr, reflect.TypeOf((*[8]byte)(nil)).Elem())
			}
		}()
	}
	wg.Wait()

	stats := tracking.Statistics()
	require.Equal(t, 1600, stats.AllocateCount)
	require.Equal(t, 1600, stats.FreeCount)
	require.NoError(t, tracking.Validate())
	require.NoError(t, tracking.Destroy())
}

func TestCreateFlagsString(t *testing.T) {
	require.Equal(t, "None", allocator.CreateFlags(0).String())
	require.Equal(t, "CreateExternallySynchronized", allocator.CreateExternallySynchronized.String())
	require.Equal(t, "CreateExternallySynchronized|CreateLogAllocations",
		(allocator.CreateExternallySynchronized | allocator.CreateLogAllocations).String())
	require.Equal(t, "CreateLogAllocations|Unknown", (allocator.CreateLogAllocations | 1<<10).String())
}

func TestTrackingFreeNilTypePanics(t *testing.T) {
	tracking, err := allocator.New(nil, nil, allocator.CreateOptions{})
	require.NoError(t, err)

	ptr, err := tracking.Allocate(reflect.TypeOf((*int)(nil)).Elem())
	require.NoError(t, err)

	require.PanicsWithValue(t, "attempted to free storage with a nil type", func() {
		tracking.Free(ptr, nil)
	})
	require.True(t, tracking.IsLive(ptr))

	tracking.Free(ptr, reflect.TypeOf((*int)(nil)).Elem())
	require.NoError(t, tracking.Destroy())
}

func TestTrackingAllocateOddLayouts(t *testing.T) {
	tracking, err := allocator.New(nil, nil, allocator.CreateOptions{})
	require.NoError(t, err)

	types := []reflect.Type{
		reflect.TypeOf((*struct{})(nil)).Elem(),
		reflect.TypeOf((*[3]byte)(nil)).Elem(),
		reflect.TypeOf((*struct {
			A byte
			B uint64
		})(nil)).Elem(),
		reflect.TypeOf((*[5]uint16)(nil)).Elem(),
	}

	for _, typ := range types {
		ptr, err := tracking.Allocate(typ)
		require.NoError(t, err, typ.String())
		tracking.Free(ptr, typ)
	}
	require.NoError(t, tracking.Destroy())
}
