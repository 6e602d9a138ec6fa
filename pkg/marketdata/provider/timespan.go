package provider

import (
	"fmt"
	"time"

	"github.com/polygon-io/client-go/rest/models"
)

// Timespan is a bar interval such as 1m or 1h.
type Timespan string

const (
	TimespanOneMinute      Timespan = "1m"
	TimespanFiveMinutes    Timespan = "5m"
	TimespanFifteenMinutes Timespan = "15m"
	TimespanThirtyMinutes  Timespan = "30m"
	TimespanOneHour        Timespan = "1h"
	TimespanFourHours      Timespan = "4h"
	TimespanOneDay         Timespan = "1d"
)

// Timespans lists the supported intervals.
func Timespans() []Timespan {
	return []Timespan{
		TimespanOneMinute,
		TimespanFiveMinutes,
		TimespanFifteenMinutes,
		TimespanThirtyMinutes,
		TimespanOneHour,
		TimespanFourHours,
		TimespanOneDay,
	}
}

// ParseTimespan resolves an interval name.
func ParseTimespan(s string) (Timespan, error) {
	for _, t := range Timespans() {
		if string(t) == s {
			return t, nil
		}
	}

	return "", fmt.Errorf("unsupported interval %q", s)
}

func (t Timespan) Multiplier() int {
	switch t {
	case TimespanFiveMinutes:
		return 5
	case TimespanFifteenMinutes:
		return 15
	case TimespanThirtyMinutes:
		return 30
	case TimespanFourHours:
		return 4
	default:
		return 1
	}
}

// Polygon returns the aggregate unit used by Polygon.io.
func (t Timespan) Polygon() models.Timespan {
	switch t {
	case TimespanOneMinute, TimespanFiveMinutes, TimespanFifteenMinutes, TimespanThirtyMinutes:
		return models.Minute
	case TimespanOneHour, TimespanFourHours:
		return models.Hour
	default:
		return models.Day
	}
}

// Duration is the length of one bar.
func (t Timespan) Duration() time.Duration {
	switch t.Polygon() {
	case models.Minute:
		return time.Duration(t.Multiplier()) * time.Minute
	case models.Hour:
		return time.Duration(t.Multiplier()) * time.Hour
	default:
		return 24 * time.Hour
	}
}

// Binance intervals share the names used here.
func (t Timespan) Binance() string {
	return string(t)
}
