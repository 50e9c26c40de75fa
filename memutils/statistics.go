package memutils

import "math"

// Statistics counts the traffic an allocator has seen
type Statistics struct {
	AllocateCount   int
	FreeCount       int
	AllocationCount int
	AllocationBytes int
}

func (s *Statistics) Clear() {
	s.AllocateCount = 0
	s.FreeCount = 0
	s.AllocationCount = 0
	s.AllocationBytes = 0
}

// AddAllocation records one allocate call producing a live allocation of the provided size
func (s *Statistics) AddAllocation(size int) {
	s.AllocateCount++
	s.AllocationCount++
	s.AllocationBytes += size
}

// RemoveAllocation records one free call releasing a live allocation of the provided size
func (s *Statistics) RemoveAllocation(size int) {
	s.FreeCount++
	s.AllocationCount--
	s.AllocationBytes -= size
}

type DetailedStatistics struct {
	Statistics
	PeakAllocationCount int
	PeakAllocationBytes int
	AllocationSizeMin   int
	AllocationSizeMax   int
}

func (s *DetailedStatistics) Clear() {
	s.Statistics.Clear()
	s.PeakAllocationCount = 0
	s.PeakAllocationBytes = 0
	s.AllocationSizeMin = math.MaxInt
	s.AllocationSizeMax = 0
}

func (s *DetailedStatistics) AddAllocation(size int) {
	s.Statistics.AddAllocation(size)

	if s.AllocationCount > s.PeakAllocationCount {
		s.PeakAllocationCount = s.AllocationCount
	}

	if s.AllocationBytes > s.PeakAllocationBytes {
		s.PeakAllocationBytes = s.AllocationBytes
	}

	if size < s.AllocationSizeMin {
		s.AllocationSizeMin = size
	}

	if size > s.AllocationSizeMax {
		s.AllocationSizeMax = size
	}
}
