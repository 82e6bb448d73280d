package tilersim

import "github.com/cockroachdb/errors"

var errContainerFull = errors.New("container has no free span large enough")

type span struct {
	start int
	count int
}

// spanList hands out runs of units (pages or rows) from a fixed-size container, first fit, and
// coalesces neighbours on release
type spanList struct {
	total int
	free  []span
}

func newSpanList(total int) *spanList {
	return &spanList{
		total: total,
		free:  []span{{start: 0, count: total}},
	}
}

func (l *spanList) take(count int) (int, error) {
	if count <= 0 || count > l.total {
		return 0, errors.Wrapf(errContainerFull, "requested %d of %d units", count, l.total)
	}

	for i := range l.free {
		if l.free[i].count < count {
			continue
		}

		start := l.free[i].start
		l.free[i].start += count
		l.free[i].count -= count
		if l.free[i].count == 0 {
			l.free = append(l.free[:i], l.free[i+1:]...)
		}
		return start, nil
	}

	return 0, errors.Wrapf(errContainerFull, "requested %d units", count)
}

func (l *spanList) give(start, count int) {
	index := 0
	for index < len(l.free) && l.free[index].start < start {
		index++
	}

	l.free = append(l.free, span{})
	copy(l.free[index+1:], l.free[index:])
	l.free[index] = span{start: start, count: count}

	// Merge with the following span, then the preceding one
	if index+1 < len(l.free) && l.free[index].start+l.free[index].count == l.free[index+1].start {
		l.free[index].count += l.free[index+1].count
		l.free = append(l.free[:index+1], l.free[index+2:]...)
	}
	if index > 0 && l.free[index-1].start+l.free[index-1].count == l.free[index].start {
		l.free[index-1].count += l.free[index].count
		l.free = append(l.free[:index], l.free[index+1:]...)
	}
}

func (l *spanList) freeUnits() int {
	units := 0
	for _, s := range l.free {
		units += s.count
	}
	return units
}
