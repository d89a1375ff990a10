package metrics

import (
	"encoding/json"
	"fmt"
	"math"
	"time"
)

// ClockTime is a local time of day in minutes since midnight.
type ClockTime int

const minutesPerDay = 24 * 60

// ClockOf returns the time of day of t in t's own location, truncated to the minute.
func ClockOf(t time.Time) ClockTime {
	return ClockTime(t.Hour()*60 + t.Minute())
}

// ParseClock parses an "HH:MM" string.
func ParseClock(s string) (ClockTime, error) {
	t, err := time.Parse("15:04", s)
	if err != nil {
		return 0, fmt.Errorf("parsing clock time %q: %w", s, err)
	}
	return ClockOf(t), nil
}

// clockFromMinutes rounds m to the nearest minute and clamps it into a single day.
func clockFromMinutes(m float64) ClockTime {
	c := int(math.Round(m))
	if c < 0 {
		c = 0
	}
	if c >= minutesPerDay {
		c = minutesPerDay - 1
	}
	return ClockTime(c)
}

func (c ClockTime) Minutes() int { return int(c) }

func (c ClockTime) String() string {
	return fmt.Sprintf("%02d:%02d", int(c)/60, int(c)%60)
}

func (c ClockTime) MarshalJSON() ([]byte, error) {
	return json.Marshal(c.String())
}

func (c *ClockTime) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return fmt.Errorf("clock time must be a string: %w", err)
	}
	parsed, err := ParseClock(s)
	if err != nil {
		return err
	}
	*c = parsed
	return nil
}

func clockPtr(c ClockTime) *ClockTime { return &c }
