// Package series turns a normalized portfolio analysis into the ordered list
// of labeled point series a risk/return chart draws.
package series

import (
	"encoding/json"
	"fmt"
	"math"
	"sort"

	"github.com/lucasbaezmiranda/mark-frontend/internal/portfolio"
	"github.com/lucasbaezmiranda/mark-frontend/pkg/format"
	"github.com/lucasbaezmiranda/mark-frontend/pkg/mathutil"
)

// Kind is how a series is rendered.
type Kind int

const (
	// Scatter draws discrete points.
	Scatter Kind = iota
	// Line connects the points in order.
	Line
)

// String returns the lower-case kind name used in JSON and CSV output.
func (k Kind) String() string {
	if k == Line {
		return "line"
	}
	return "scatter"
}

// MarshalJSON encodes the kind by name.
func (k Kind) MarshalJSON() ([]byte, error) {
	return json.Marshal(k.String())
}

// UnmarshalJSON decodes a kind name.
func (k *Kind) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	switch s {
	case "line":
		*k = Line
	case "scatter":
		*k = Scatter
	default:
		return fmt.Errorf("unknown series kind %q", s)
	}
	return nil
}

// Series names.
const (
	NameRandomPortfolios  = "Random portfolios"
	NameEfficientFrontier = "Efficient frontier"
	NameIndividualAssets  = "Individual assets"
	NameMinimumVariance   = "Minimum variance"
	NameMaxSharpe         = "Max Sharpe"
	NameCapitalMarketLine = "Capital market line"
)

// Draw orders; higher draws on top.
const (
	DrawRandomPortfolios  = 1
	DrawPairCurve         = 5
	DrawEfficientFrontier = 10
	DrawCapitalMarketLine = 15
	DrawIndividualAssets  = 20
	DrawMaxSharpe         = 25
	DrawMinimumVariance   = 30
)

// Point is a chart coordinate with an optional text label.
type Point struct {
	Risk   float64 `json:"risk"`
	Return float64 `json:"return"`
	Label  string  `json:"label,omitempty"`
}

// Style carries rendering intents; the chart widget decides how to honour them.
type Style struct {
	Color       string  `json:"color"`
	PointStyle  string  `json:"pointStyle,omitempty"`
	PointRadius float64 `json:"pointRadius"`
	BorderWidth float64 `json:"borderWidth,omitempty"`
	Tension     float64 `json:"tension,omitempty"`
	ShowLabels  bool    `json:"showLabels,omitempty"`
}

// NamedSeries is one render-ready series.
type NamedSeries struct {
	Name      string  `json:"name"`
	Kind      Kind    `json:"kind"`
	Points    []Point `json:"points"`
	DrawOrder int     `json:"drawOrder"`
	Style     Style   `json:"style"`
}

// Options are the presentation toggles.
type Options struct {
	ShowCapitalMarketLine bool
	// RiskFreeRate is used when the analysis carries none.
	RiskFreeRate *float64
}

// builder appends series in emission order. Optional series are offered
// together with their presence so omission is an explicit decision.
type builder struct {
	out []NamedSeries
}

func (b *builder) add(s NamedSeries) {
	if s.Points == nil {
		s.Points = []Point{}
	}
	b.out = append(b.out, s)
}

func (b *builder) addIf(present bool, s NamedSeries) {
	if present {
		b.add(s)
	}
}

// Build produces the series for a. The base series are always emitted, even
// when empty, so chart legends stay stable; the capital market line is only
// emitted when requested and computable. Build never fails and returns fresh
// slices on every call.
func Build(a portfolio.Analysis, opts Options) []NamedSeries {
	b := &builder{}

	b.add(NamedSeries{
		Name:      NameRandomPortfolios,
		Kind:      Scatter,
		Points:    fromPoints(a.SampledPortfolios),
		DrawOrder: DrawRandomPortfolios,
		Style:     Style{Color: "rgba(54, 162, 235, 0.15)", PointRadius: 2},
	})

	b.add(NamedSeries{
		Name:      NameEfficientFrontier,
		Kind:      Line,
		Points:    fromPoints(a.Frontier),
		DrawOrder: DrawEfficientFrontier,
		Style:     Style{Color: "rgba(75, 192, 192, 1)", BorderWidth: 3, Tension: 0.2},
	})

	assets := make([]Point, 0, len(a.Assets))
	for _, asset := range a.Assets {
		assets = append(assets, Point{Risk: asset.Risk, Return: asset.Return, Label: asset.Label})
	}
	b.add(NamedSeries{
		Name:      NameIndividualAssets,
		Kind:      Scatter,
		Points:    assets,
		DrawOrder: DrawIndividualAssets,
		Style:     Style{Color: "rgba(255, 99, 132, 1)", PointStyle: "rectRot", PointRadius: 7, ShowLabels: true},
	})

	var minVar []Point
	if a.MinVariance != nil {
		minVar = []Point{{Risk: a.MinVariance.Risk, Return: a.MinVariance.Return}}
	}
	b.add(NamedSeries{
		Name:      NameMinimumVariance,
		Kind:      Scatter,
		Points:    minVar,
		DrawOrder: DrawMinimumVariance,
		Style:     Style{Color: "rgba(255, 206, 86, 1)", PointStyle: "star", PointRadius: 9},
	})

	rf := riskFreeRate(a, opts)
	var maxSharpe []Point
	if a.MaxSharpe != nil {
		maxSharpe = []Point{{Risk: a.MaxSharpe.Risk, Return: a.MaxSharpe.Return, Label: sharpeLabel(a.MaxSharpe.Point, rf)}}
	}
	b.add(NamedSeries{
		Name:      NameMaxSharpe,
		Kind:      Scatter,
		Points:    maxSharpe,
		DrawOrder: DrawMaxSharpe,
		Style:     Style{Color: "rgba(153, 102, 255, 1)", PointStyle: "triangle", PointRadius: 9},
	})

	showCML := opts.ShowCapitalMarketLine && rf != nil && a.MaxSharpe != nil
	var cml []Point
	if showCML {
		cml = []Point{
			{Risk: 0, Return: *rf},
			{Risk: a.MaxSharpe.Risk, Return: a.MaxSharpe.Return},
		}
	}
	b.addIf(showCML, NamedSeries{
		Name:      NameCapitalMarketLine,
		Kind:      Line,
		Points:    cml,
		DrawOrder: DrawCapitalMarketLine,
		Style:     Style{Color: "rgba(255, 159, 64, 1)", BorderWidth: 2},
	})

	for i, pc := range a.PairCurves {
		b.add(NamedSeries{
			Name:      pc.Name(),
			Kind:      Line,
			Points:    fromPoints(pc.Points),
			DrawOrder: DrawPairCurve,
			Style:     Style{Color: PairColor(i), BorderWidth: 1.5},
		})
	}

	return b.out
}

// PairColor spreads pair curves around the hue wheel.
func PairColor(i int) string {
	return fmt.Sprintf("hsl(%d, 70%%, 40%%)", (i*60)%360)
}

// RenderOrder returns a copy of list sorted by draw order, lowest first.
// Series with equal draw order keep their emission order.
func RenderOrder(list []NamedSeries) []NamedSeries {
	ordered := append([]NamedSeries(nil), list...)
	sort.SliceStable(ordered, func(i, j int) bool {
		return ordered[i].DrawOrder < ordered[j].DrawOrder
	})
	return ordered
}

func riskFreeRate(a portfolio.Analysis, opts Options) *float64 {
	if a.RiskFreeRate != nil {
		return a.RiskFreeRate
	}
	return opts.RiskFreeRate
}

func sharpeLabel(p portfolio.Point, rf *float64) string {
	if rf == nil {
		return ""
	}
	ratio := mathutil.SharpeRatio(p.Return, p.Risk, *rf)
	if math.IsNaN(ratio) {
		return ""
	}
	return "Sharpe " + format.Ratio(ratio)
}

func fromPoints(points []portfolio.Point) []Point {
	out := make([]Point, len(points))
	for i, p := range points {
		out[i] = Point{Risk: p.Risk, Return: p.Return}
	}
	return out
}
