package timegrid

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerateMorningGrid(t *testing.T) {
	g, err := Generate("08:00", "12:00", 30*time.Minute)
	require.NoError(t, err)

	slots := g.Slots()
	require.Len(t, slots, 8)
	assert.Equal(t, "08:00", slots[0].String())
	assert.Equal(t, "08:30", slots[1].String())
	assert.Equal(t, "11:30", slots[7].String())

	for i := 1; i < len(slots); i++ {
		assert.Equal(t, slots[i-1].Start+slots[i-1].Duration, slots[i].Start, "slots must be contiguous")
	}
}

func TestGenerateDeterministic(t *testing.T) {
	a, err := Generate("09:00", "17:00", 20*time.Minute)
	require.NoError(t, err)
	b, err := Generate("09:00", "17:00", 20*time.Minute)
	require.NoError(t, err)
	assert.Equal(t, a.Slots(), b.Slots())
}

func TestGenerateDropsPartialSlot(t *testing.T) {
	// 08:00-09:50 at 45m fits two full slots; the trailing 20m is dropped.
	g, err := Generate("08:00", "09:50", 45*time.Minute)
	require.NoError(t, err)
	slots := g.Slots()
	require.Len(t, slots, 2)
	assert.Equal(t, "08:45", slots[1].String())
}

func TestGenerateErrors(t *testing.T) {
	_, err := Generate("12:00", "08:00", 30*time.Minute)
	assert.ErrorIs(t, err, ErrEmptyRange)

	_, err = Generate("08:00", "08:00", 30*time.Minute)
	assert.ErrorIs(t, err, ErrEmptyRange)

	_, err = Generate("08:00", "12:00", 0)
	assert.ErrorIs(t, err, ErrBadGranularity)

	_, err = Generate("8am", "12:00", 30*time.Minute)
	assert.ErrorIs(t, err, ErrBadClock)
}

func TestContainsAndLookup(t *testing.T) {
	g, err := Generate("08:00", "12:00", 30*time.Minute)
	require.NoError(t, err)

	nine, err := ParseClock("09:00")
	require.NoError(t, err)
	assert.True(t, g.Contains(nine))

	s, ok := g.Lookup(nine)
	require.True(t, ok)
	assert.Equal(t, 30*time.Minute, s.Duration)

	assert.False(t, g.Contains(nine+15*time.Minute))
	assert.False(t, g.Contains(13*time.Hour))
}

func TestSlotAt(t *testing.T) {
	g, err := Generate("08:00", "12:00", 30*time.Minute)
	require.NoError(t, err)
	s, _ := g.Lookup(9 * time.Hour)

	date := time.Date(2025, 5, 20, 0, 0, 0, 0, time.UTC)
	at := s.At(date)
	assert.Equal(t, time.Date(2025, 5, 20, 9, 0, 0, 0, time.UTC), at)
}

func TestSample(t *testing.T) {
	g, err := Generate("08:00", "16:00", 30*time.Minute)
	require.NoError(t, err)

	sampled := g.Sample(2 * time.Hour)
	require.Len(t, sampled, 4)
	assert.Equal(t, "08:00", sampled[0].String())
	assert.Equal(t, "10:00", sampled[1].String())
	assert.Equal(t, "14:00", sampled[3].String())
	assert.Equal(t, 2*time.Hour, sampled[0].Duration)

	// At or below native granularity the full grid comes back.
	assert.Len(t, g.Sample(30*time.Minute), 16)
}
