package statistics

import (
	"fmt"
	"strings"
	"time"
)

// Preset names a reporting period relative to today.
type Preset string

const (
	PresetToday     Preset = "today"
	PresetYesterday Preset = "yesterday"
	PresetWeek      Preset = "week"
	PresetMonth     Preset = "month"
)

var validPresets = []Preset{PresetToday, PresetYesterday, PresetWeek, PresetMonth}

func (p Preset) String() string {
	return string(p)
}

func (p Preset) IsValid() bool {
	for _, candidate := range validPresets {
		if candidate == p {
			return true
		}
	}
	return false
}

// ParsePreset converts raw input into a Preset. Matching is case-insensitive.
func ParsePreset(value string) (Preset, error) {
	preset := Preset(strings.ToLower(strings.TrimSpace(value)))
	if !preset.IsValid() {
		return "", fmt.Errorf("invalid statistics preset %q", value)
	}
	return preset, nil
}

// Period is an inclusive range of calendar days.
type Period struct {
	Start time.Time
	End   time.Time
}

// Range resolves the preset against now. Weeks start on Monday.
func (p Preset) Range(now time.Time) Period {
	today := startOfDay(now)
	switch p {
	case PresetYesterday:
		yesterday := today.AddDate(0, 0, -1)
		return Period{Start: yesterday, End: yesterday}
	case PresetWeek:
		offset := (int(today.Weekday()) + 6) % 7
		return Period{Start: today.AddDate(0, 0, -offset), End: today}
	case PresetMonth:
		return Period{Start: time.Date(today.Year(), today.Month(), 1, 0, 0, 0, 0, today.Location()), End: today}
	default:
		return Period{Start: today, End: today}
	}
}

func startOfDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}
