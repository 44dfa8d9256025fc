// Package request collects and validates the user's analysis inputs (tickers
// and date window) before they are submitted to the analytics service.
package request

import (
	"errors"
	"fmt"
	"math/rand"
	"strings"
	"time"

	"github.com/lucasbaezmiranda/mark-frontend/internal/client"
	"github.com/lucasbaezmiranda/mark-frontend/pkg/constants"
	"github.com/lucasbaezmiranda/mark-frontend/pkg/datetime"
)

// Defaults holds the form defaults and the pool random portfolios draw from.
type Defaults struct {
	TickerPool  []string `mapstructure:"tickerPool" yaml:"tickerPool" json:"tickerPool"`
	Tickers     []string `mapstructure:"tickers" yaml:"tickers" json:"tickers"`
	StartDate   string   `mapstructure:"startDate" yaml:"startDate" json:"startDate"`
	EndDate     string   `mapstructure:"endDate" yaml:"endDate" json:"endDate"`
	RandomCount int      `mapstructure:"randomCount" yaml:"randomCount" json:"randomCount"`
}

// Form is the raw user input.
type Form struct {
	Tickers      string `json:"tickers"`
	StartDate    string `json:"startDate"`
	EndDate      string `json:"endDate"`
	IncludePairs bool   `json:"includePairs"`
}

// ErrInvalidInput wraps every validation failure.
var ErrInvalidInput = errors.New("invalid input")

// ParseTickers splits a comma separated list, trims and upper-cases each
// symbol and drops blanks and duplicates while keeping first-seen order.
func ParseTickers(input string) []string {
	seen := make(map[string]struct{})
	var tickers []string
	for _, part := range strings.Split(input, ",") {
		ticker := strings.ToUpper(strings.TrimSpace(part))
		if ticker == "" {
			continue
		}
		if _, dup := seen[ticker]; dup {
			continue
		}
		seen[ticker] = struct{}{}
		tickers = append(tickers, ticker)
	}
	return tickers
}

// Validate checks the form against now and builds the service request.
func (f Form) Validate(now time.Time) (client.Request, error) {
	tickers := ParseTickers(f.Tickers)
	if len(tickers) < constants.MinTickers {
		return client.Request{}, fmt.Errorf("%w: at least %d distinct tickers are required, got %d",
			ErrInvalidInput, constants.MinTickers, len(tickers))
	}

	start, err := datetime.ParseDate(f.StartDate)
	if err != nil {
		return client.Request{}, fmt.Errorf("%w: start date: %v", ErrInvalidInput, err)
	}
	end, err := datetime.ParseDate(f.EndDate)
	if err != nil {
		return client.Request{}, fmt.Errorf("%w: end date: %v", ErrInvalidInput, err)
	}
	if !start.Before(end) {
		return client.Request{}, fmt.Errorf("%w: start date %s must be before end date %s",
			ErrInvalidInput, f.StartDate, f.EndDate)
	}
	if end.After(now) {
		return client.Request{}, fmt.Errorf("%w: end date %s is in the future", ErrInvalidInput, f.EndDate)
	}

	return client.Request{
		Tickers:          tickers,
		StartDate:        start.Format(constants.DateLayout),
		EndDate:          end.Format(constants.DateLayout),
		IncludePairs:     f.IncludePairs,
		IncludeMaxSharpe: true,
	}, nil
}

// Form returns the default form for d.
func (d Defaults) Form() Form {
	return Form{
		Tickers:   strings.Join(d.Tickers, ", "),
		StartDate: d.StartDate,
		EndDate:   d.EndDate,
	}
}

// RandomTickers draws n distinct tickers from pool. When n exceeds the pool
// size the whole pool is returned in shuffled order.
func RandomTickers(pool []string, n int, rng *rand.Rand) []string {
	candidates := ParseTickers(strings.Join(pool, ","))
	if n <= 0 || len(candidates) == 0 {
		return nil
	}
	rng.Shuffle(len(candidates), func(i, j int) {
		candidates[i], candidates[j] = candidates[j], candidates[i]
	})
	if n > len(candidates) {
		n = len(candidates)
	}
	return candidates[:n]
}
