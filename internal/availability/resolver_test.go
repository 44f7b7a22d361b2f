package availability

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hackgods/clinic-queue/internal/directory"
)

func slot(wd time.Weekday, start, end string, enabled bool) directory.AvailabilitySlot {
	return directory.AvailabilitySlot{
		ID:      uuid.New(),
		Weekday: wd,
		Start:   start,
		End:     end,
		Enabled: enabled,
	}
}

// 2025-06-02 is a Monday.
func mondayAt(hh, mm int) time.Time {
	return time.Date(2025, 6, 2, hh, mm, 0, 0, time.UTC)
}

func TestIsAvailableAt(t *testing.T) {
	slots := []directory.AvailabilitySlot{
		slot(time.Monday, "09:00", "17:00", true),
		slot(time.Wednesday, "08:30", "12:00", true),
		slot(time.Friday, "09:00", "17:00", false),
	}

	tests := []struct {
		name string
		at   time.Time
		want bool
	}{
		{"inside window", mondayAt(10, 30), true},
		{"start bound inclusive", mondayAt(9, 0), true},
		{"end bound inclusive", mondayAt(17, 0), true},
		{"before window", mondayAt(8, 59), false},
		{"after window", mondayAt(17, 1), false},
		{"wrong weekday", mondayAt(10, 0).AddDate(0, 0, 1), false},
		{"disabled slot", time.Date(2025, 6, 6, 10, 0, 0, 0, time.UTC), false},
		{"other weekday enabled", time.Date(2025, 6, 4, 9, 0, 0, 0, time.UTC), true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, IsAvailableAt(slots, tt.at))
		})
	}
}

func TestIsAvailableAtNoSlots(t *testing.T) {
	assert.False(t, IsAvailableAt(nil, mondayAt(10, 0)))
}

func TestNextAvailableSlot(t *testing.T) {
	slots := []directory.AvailabilitySlot{
		slot(time.Monday, "09:00", "17:00", true),
		slot(time.Thursday, "14:00", "18:00", true),
	}

	// From Monday 08:00 the same day's slot is still ahead.
	got := NextAvailableSlot(slots, mondayAt(8, 0))
	require.NotNil(t, got)
	assert.Equal(t, mondayAt(9, 0), *got)

	// From Monday 09:00 exactly, the candidate is not strictly after.
	got = NextAvailableSlot(slots, mondayAt(9, 0))
	require.NotNil(t, got)
	assert.Equal(t, time.Date(2025, 6, 5, 14, 0, 0, 0, time.UTC), *got)

	// From Friday the scan wraps into the following week.
	got = NextAvailableSlot(slots, time.Date(2025, 6, 6, 12, 0, 0, 0, time.UTC))
	require.NotNil(t, got)
	assert.Equal(t, time.Date(2025, 6, 9, 9, 0, 0, 0, time.UTC), *got)
}

func TestNextAvailableSlotFirstDeclaredWins(t *testing.T) {
	// Two Monday slots; the first declared one is later in the day but is
	// still the one considered.
	slots := []directory.AvailabilitySlot{
		slot(time.Monday, "13:00", "17:00", true),
		slot(time.Monday, "09:00", "12:00", true),
	}

	got := NextAvailableSlot(slots, mondayAt(8, 0))
	require.NotNil(t, got)
	assert.Equal(t, mondayAt(13, 0), *got)

	// Once today's first declared slot is in the past, the second Monday
	// slot is never considered and next Monday falls outside the 7-day
	// window, so nothing is found.
	assert.Nil(t, NextAvailableSlot(slots, mondayAt(14, 0)))
}

func TestNextAvailableSlotNone(t *testing.T) {
	assert.Nil(t, NextAvailableSlot(nil, mondayAt(8, 0)))

	disabled := []directory.AvailabilitySlot{
		slot(time.Monday, "09:00", "17:00", false),
	}
	assert.Nil(t, NextAvailableSlot(disabled, mondayAt(8, 0)))
}

func TestParseClock(t *testing.T) {
	hh, mm, ok := ParseClock("09:45")
	require.True(t, ok)
	assert.Equal(t, 9, hh)
	assert.Equal(t, 45, mm)

	for _, bad := range []string{"9:45", "09-45", "24:00", "09:60", "", "099:5"} {
		_, _, ok := ParseClock(bad)
		assert.False(t, ok, bad)
	}
}

func TestAddMinutes(t *testing.T) {
	got, ok := AddMinutes("09:00", 15)
	require.True(t, ok)
	assert.Equal(t, "09:15", got)

	// Wraps past midnight.
	got, ok = AddMinutes("23:50", 20)
	require.True(t, ok)
	assert.Equal(t, "00:10", got)

	_, ok = AddMinutes("bad", 15)
	assert.False(t, ok)
}
