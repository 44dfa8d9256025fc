// Package datetime provides date and time utility functions.
package datetime

import (
	"fmt"
	"strings"
	"time"

	"github.com/lucasbaezmiranda/mark-frontend/pkg/constants"
)

const (
	// DateLayout is the format of the analysis date window.
	DateLayout = constants.DateLayout
)

// ParseDate parses an ISO date (YYYY-MM-DD), ignoring surrounding whitespace.
func ParseDate(date string) (time.Time, error) {
	trimmed := strings.TrimSpace(date)
	if trimmed == "" {
		return time.Time{}, fmt.Errorf("date is empty")
	}
	t, err := time.Parse(DateLayout, trimmed)
	if err != nil {
		return time.Time{}, fmt.Errorf("expected a date like 2023-01-31, got %q", date)
	}
	return t, nil
}

// OffsetDate returns the string-formatted date offset by the given number of
// months relative to the given date.
func OffsetDate(date string, months int) (string, error) {
	t, err := ParseDate(date)
	if err != nil {
		return date, err
	}
	return t.AddDate(0, months, 0).Format(DateLayout), nil
}

// DateBeforeDate returns true if firstDate is strictly before secondDate.
func DateBeforeDate(firstDate string, secondDate string) (bool, error) {
	firstDateT, err := ParseDate(firstDate)
	if err != nil {
		return false, err
	}
	secondDateT, err := ParseDate(secondDate)
	if err != nil {
		return false, err
	}
	return firstDateT.Before(secondDateT), nil
}

// DefaultWindow returns the trailing window of the given number of months
// ending at the start of now's day.
func DefaultWindow(now time.Time, months int) (string, string) {
	end := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	return end.AddDate(0, -months, 0).Format(DateLayout), end.Format(DateLayout)
}
