package tilersim

import (
	"testing"

	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/require"
)

func TestSpanListFirstFit(t *testing.T) {
	spans := newSpanList(10)

	first, err := spans.take(3)
	require.NoError(t, err)
	require.Equal(t, 0, first)

	second, err := spans.take(4)
	require.NoError(t, err)
	require.Equal(t, 3, second)

	third, err := spans.take(3)
	require.NoError(t, err)
	require.Equal(t, 7, third)
	require.Equal(t, 0, spans.freeUnits())

	_, err = spans.take(1)
	require.True(t, errors.Is(err, errContainerFull))

	spans.give(first, 3)
	_, err = spans.take(4)
	require.True(t, errors.Is(err, errContainerFull))

	again, err := spans.take(2)
	require.NoError(t, err)
	require.Equal(t, 0, again)
}

func TestSpanListCoalesce(t *testing.T) {
	spans := newSpanList(12)

	a, _ := spans.take(4)
	b, _ := spans.take(4)
	c, _ := spans.take(4)

	spans.give(a, 4)
	spans.give(c, 4)
	require.Len(t, spans.free, 2)

	spans.give(b, 4)
	require.Equal(t, []span{{start: 0, count: 12}}, spans.free)

	whole, err := spans.take(12)
	require.NoError(t, err)
	require.Equal(t, 0, whole)
}

func TestSpanListRejectsOversized(t *testing.T) {
	spans := newSpanList(4)

	_, err := spans.take(5)
	require.True(t, errors.Is(err, errContainerFull))

	_, err = spans.take(0)
	require.Error(t, err)
	require.Equal(t, 4, spans.freeUnits())
}
