package memutils

import "math"

type Statistics struct {
	// BufferCount is the number of packed buffers currently tracked
	BufferCount int
	// BlockCount is the number of driver blocks backing those buffers
	BlockCount int
	// BufferBytes is the total size of the virtual mappings of those buffers
	BufferBytes int
}

func (s *Statistics) Clear() {
	s.BufferCount = 0
	s.BlockCount = 0
	s.BufferBytes = 0
}

func (s *Statistics) AddStatistics(other *Statistics) {
	s.BufferCount += other.BufferCount
	s.BlockCount += other.BlockCount
	s.BufferBytes += other.BufferBytes
}

type DetailedStatistics struct {
	Statistics
	// AllocatedCount is the number of buffers whose backing storage this process owns
	AllocatedCount int
	// MappedCount is the number of buffers wrapping caller-owned memory
	MappedCount   int
	BufferSizeMin int
	BufferSizeMax int
}

func (s *DetailedStatistics) Clear() {
	s.Statistics.Clear()
	s.AllocatedCount = 0
	s.MappedCount = 0
	s.BufferSizeMin = math.MaxInt
	s.BufferSizeMax = 0
}

func (s *DetailedStatistics) AddBuffer(size int, blockCount int, mapped bool) {
	s.BufferCount++
	s.BlockCount += blockCount
	s.BufferBytes += size

	if mapped {
		s.MappedCount++
	} else {
		s.AllocatedCount++
	}

	if size < s.BufferSizeMin {
		s.BufferSizeMin = size
	}

	if size > s.BufferSizeMax {
		s.BufferSizeMax = size
	}
}

func (s *DetailedStatistics) AddDetailedStatistics(other *DetailedStatistics) {
	s.Statistics.AddStatistics(&other.Statistics)
	s.AllocatedCount += other.AllocatedCount
	s.MappedCount += other.MappedCount

	if other.BufferSizeMin < s.BufferSizeMin {
		s.BufferSizeMin = other.BufferSizeMin
	}

	if other.BufferSizeMax > s.BufferSizeMax {
		s.BufferSizeMax = other.BufferSizeMax
	}
}
