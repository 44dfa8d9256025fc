package output

import (
	"github.com/lucasbaezmiranda/mark-frontend/internal/normalize"
	"github.com/lucasbaezmiranda/mark-frontend/internal/portfolio"
	"github.com/lucasbaezmiranda/mark-frontend/internal/series"
	"github.com/lucasbaezmiranda/mark-frontend/pkg/validation"
)

// Report is everything a client needs to draw one analysis.
type Report struct {
	Series    []series.NamedSeries   `json:"series"`
	Bounds    *series.Bounds         `json:"bounds,omitempty"`
	CSVURL    string                 `json:"csvUrl,omitempty"`
	Warnings  []string               `json:"warnings"`
	Unit      string                 `json:"unit"`
	MaxSharpe *portfolio.SharpePoint `json:"maxSharpe,omitempty"`
	RequestID string                 `json:"requestId,omitempty"`
	Duration  string                 `json:"duration,omitempty"`

	// Analysis is the canonical model in response form; posting it back to
	// /api/normalize redraws the same chart.
	Analysis normalize.Raw `json:"analysis"`
}

// NewReport assembles the report for a normalized analysis and its series.
// Inconsistent max-Sharpe weights become warnings.
func NewReport(a portfolio.Analysis, list []series.NamedSeries) Report {
	r := Report{
		Series:    list,
		CSVURL:    a.CSVURL,
		Warnings:  []string{},
		Unit:      a.Unit.String(),
		MaxSharpe: a.MaxSharpe,
		Analysis:  normalize.ToRaw(a),
	}
	if r.Series == nil {
		r.Series = []series.NamedSeries{}
	}
	if b, ok := series.ComputeBounds(list); ok {
		r.Bounds = &b
	}
	if a.MaxSharpe != nil {
		r.Warnings = append(r.Warnings, validation.ValidateWeights(a.MaxSharpe.Weights)...)
		r.Warnings = append(r.Warnings, validation.ValidateWeightCount(a.MaxSharpe.Weights, len(a.Assets))...)
	}
	return r
}
