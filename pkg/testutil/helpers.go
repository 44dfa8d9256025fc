// Package testutil provides common utility functions for testing.
package testutil

import (
	"github.com/lucasbaezmiranda/mark-frontend/internal/series"
)

// FindSeries finds a series by name in the series slice.
// Returns a pointer to the series if found, nil otherwise.
func FindSeries(list []series.NamedSeries, name string) *series.NamedSeries {
	for i := range list {
		if list[i].Name == name {
			return &list[i]
		}
	}
	return nil
}

// SeriesNames returns the names of list in order.
func SeriesNames(list []series.NamedSeries) []string {
	names := make([]string, len(list))
	for i, s := range list {
		names[i] = s.Name
	}
	return names
}
