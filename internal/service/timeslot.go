package service

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/noah-isme/weekend-course-api/internal/models"
)

// parseClock converts an HH:MM wall-clock string into minutes since midnight.
func parseClock(raw string) (int, error) {
	parts := strings.Split(raw, ":")
	if len(parts) != 2 {
		return 0, fmt.Errorf("invalid clock value %q", raw)
	}
	hours, err := strconv.Atoi(parts[0])
	if err != nil {
		return 0, fmt.Errorf("invalid clock value %q", raw)
	}
	minutes, err := strconv.Atoi(parts[1])
	if err != nil {
		return 0, fmt.Errorf("invalid clock value %q", raw)
	}
	if hours < 0 || hours > 23 || minutes < 0 || minutes > 59 {
		return 0, fmt.Errorf("clock value %q out of range", raw)
	}
	return hours*60 + minutes, nil
}

func minutesOfDay(t time.Time) int {
	return t.Hour()*60 + t.Minute()
}

// sameDay reports whether t falls on the weekday the session runs on.
func sameDay(t time.Time, day models.SessionDay) bool {
	weekday, ok := day.Weekday()
	if !ok {
		return false
	}
	return t.Weekday() == weekday
}

// withinWindow reports whether the instant t lies inside the scan window
// [start-early, end+late], boundaries included.
func withinWindow(t time.Time, startMin, endMin, earlyMin, lateMin int) bool {
	now := minutesOfDay(t)
	return now >= startMin-earlyMin && now <= endMin+lateMin
}

// rangesOverlap reports whether two half-open minute ranges intersect.
// Sessions that merely touch (one ends exactly when the other begins) do
// not overlap.
func rangesOverlap(start1, end1, start2, end2 int) bool {
	return start1 < end2 && start2 < end1
}
