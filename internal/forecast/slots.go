package forecast

import (
	"fmt"
	"time"
)

// DefaultTimezone is used for slot labels when none is configured.
const DefaultTimezone = "Asia/Kolkata"

// HourSlots returns n consecutive whole hours in loc, starting with the first
// whole hour strictly after now.
func HourSlots(now time.Time, loc *time.Location, n int) []time.Time {
	if loc == nil {
		loc = time.UTC
	}
	local := now.In(loc)
	// Top of the local hour on the instant timeline, so a repeated fall-back
	// hour is kept. Truncate rounds in UTC and breaks half-hour offsets.
	top := local.Add(-time.Duration(local.Minute())*time.Minute -
		time.Duration(local.Second())*time.Second -
		time.Duration(local.Nanosecond()))
	first := top.Add(time.Hour)

	out := make([]time.Time, n)
	for i := range out {
		out[i] = first.Add(time.Duration(i) * time.Hour)
	}
	return out
}

// SlotLabel formats t as "HH:00" in its own location.
func SlotLabel(t time.Time) string {
	return fmt.Sprintf("%02d:00", t.Hour())
}
