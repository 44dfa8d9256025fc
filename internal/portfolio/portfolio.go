// Package portfolio defines the canonical risk/return model produced from an
// analytics response. An Analysis is built once per request and is not
// modified afterwards; a superseding request builds a new one.
package portfolio

import "sort"

// Unit records whether the values in an Analysis are periodic or annualized.
type Unit int

const (
	// Periodic values are in the service's sampling period (monthly).
	Periodic Unit = iota
	// Annualized values have already been scaled to a yearly basis.
	Annualized
)

// String returns the lower-case unit name used in raw responses.
func (u Unit) String() string {
	if u == Annualized {
		return "annualized"
	}
	return "periodic"
}

// ParseUnit maps a unit marker back to a Unit. Unknown markers are reported
// with ok=false.
func ParseUnit(s string) (Unit, bool) {
	switch s {
	case "annualized", "annual":
		return Annualized, true
	case "periodic", "monthly":
		return Periodic, true
	}
	return Periodic, false
}

// Point is a single risk/return coordinate.
type Point struct {
	Risk   float64 `json:"risk"`
	Return float64 `json:"return"`
}

// Asset is an individual security plotted on its own.
type Asset struct {
	Point
	Label string `json:"label"`
}

// SharpePoint is the portfolio maximising the Sharpe ratio. Weights are
// surfaced exactly as the service sent them.
type SharpePoint struct {
	Point
	Weights []float64 `json:"weights,omitempty"`
}

// PairCurve is the two-asset combination line between LabelA and LabelB.
type PairCurve struct {
	LabelA string  `json:"labelA"`
	LabelB string  `json:"labelB"`
	Points []Point `json:"points"`
}

// Name returns the display name of the curve, "A-B".
func (p PairCurve) Name() string {
	return p.LabelA + "-" + p.LabelB
}

// Analysis is the normalized portfolio analysis for one request.
type Analysis struct {
	SampledPortfolios []Point      `json:"sampledPortfolios"`
	Assets            []Asset      `json:"assets"`
	Frontier          []Point      `json:"frontier"`
	MinVariance       *Point       `json:"minVariance,omitempty"`
	MaxSharpe         *SharpePoint `json:"maxSharpe,omitempty"`
	RiskFreeRate      *float64     `json:"riskFreeRate,omitempty"`
	PairCurves        []PairCurve  `json:"pairCurves"`
	Unit              Unit         `json:"-"`
	CSVURL            string       `json:"csvUrl,omitempty"`
}

// Parts groups the inputs of New.
type Parts struct {
	SampledPortfolios []Point
	Assets            []Asset
	Frontier          []Point
	MaxSharpe         *SharpePoint
	RiskFreeRate      *float64
	PairCurves        []PairCurve
	Unit              Unit
	CSVURL            string
}

// New builds an Analysis from its parts. All slices are copied, the frontier
// is sorted by risk then return, and the minimum-variance point is taken from
// the sorted frontier.
func New(p Parts) Analysis {
	a := Analysis{
		SampledPortfolios: clonePoints(p.SampledPortfolios),
		Assets:            append([]Asset{}, p.Assets...),
		Frontier:          clonePoints(p.Frontier),
		RiskFreeRate:      cloneFloat(p.RiskFreeRate),
		PairCurves:        make([]PairCurve, 0, len(p.PairCurves)),
		Unit:              p.Unit,
		CSVURL:            p.CSVURL,
	}
	for _, pc := range p.PairCurves {
		a.PairCurves = append(a.PairCurves, PairCurve{
			LabelA: pc.LabelA,
			LabelB: pc.LabelB,
			Points: clonePoints(pc.Points),
		})
	}
	if p.MaxSharpe != nil {
		ms := *p.MaxSharpe
		if p.MaxSharpe.Weights != nil {
			ms.Weights = append([]float64{}, p.MaxSharpe.Weights...)
		}
		a.MaxSharpe = &ms
	}

	SortFrontier(a.Frontier)
	if len(a.Frontier) > 0 {
		mv := a.Frontier[0]
		a.MinVariance = &mv
	}
	return a
}

// SortFrontier orders points ascending by risk, breaking ties by return. The
// sort is stable so identical points keep their relative order.
func SortFrontier(points []Point) {
	sort.SliceStable(points, func(i, j int) bool {
		if points[i].Risk != points[j].Risk {
			return points[i].Risk < points[j].Risk
		}
		return points[i].Return < points[j].Return
	})
}

// Scale returns a copy of the analysis with every risk, return and the
// risk-free rate multiplied by factor. Weights are left untouched.
func (a Analysis) Scale(factor float64, unit Unit) Analysis {
	scaled := New(Parts{
		SampledPortfolios: scalePoints(a.SampledPortfolios, factor),
		Frontier:          scalePoints(a.Frontier, factor),
		Unit:              unit,
		CSVURL:            a.CSVURL,
	})
	for _, asset := range a.Assets {
		scaled.Assets = append(scaled.Assets, Asset{Point: scalePoint(asset.Point, factor), Label: asset.Label})
	}
	for _, pc := range a.PairCurves {
		scaled.PairCurves = append(scaled.PairCurves, PairCurve{
			LabelA: pc.LabelA,
			LabelB: pc.LabelB,
			Points: scalePoints(pc.Points, factor),
		})
	}
	if a.MaxSharpe != nil {
		ms := SharpePoint{Point: scalePoint(a.MaxSharpe.Point, factor)}
		if a.MaxSharpe.Weights != nil {
			ms.Weights = append([]float64{}, a.MaxSharpe.Weights...)
		}
		scaled.MaxSharpe = &ms
	}
	if a.RiskFreeRate != nil {
		rf := *a.RiskFreeRate * factor
		scaled.RiskFreeRate = &rf
	}
	return scaled
}

func scalePoint(p Point, factor float64) Point {
	return Point{Risk: p.Risk * factor, Return: p.Return * factor}
}

func scalePoints(points []Point, factor float64) []Point {
	out := make([]Point, len(points))
	for i, p := range points {
		out[i] = scalePoint(p, factor)
	}
	return out
}

func clonePoints(points []Point) []Point {
	return append(make([]Point, 0, len(points)), points...)
}

func cloneFloat(v *float64) *float64 {
	if v == nil {
		return nil
	}
	c := *v
	return &c
}
