package series

import "github.com/lucasbaezmiranda/mark-frontend/pkg/mathutil"

// Bounds is the axis extent covering every point of a series list.
type Bounds struct {
	MinRisk   float64 `json:"minRisk"`
	MaxRisk   float64 `json:"maxRisk"`
	MinReturn float64 `json:"minReturn"`
	MaxReturn float64 `json:"maxReturn"`
}

// ComputeBounds returns the extent of all points in list. ok is false when
// the list holds no points at all.
func ComputeBounds(list []NamedSeries) (Bounds, bool) {
	var risks, returns []float64
	for _, s := range list {
		for _, p := range s.Points {
			risks = append(risks, p.Risk)
			returns = append(returns, p.Return)
		}
	}

	minRisk, maxRisk, ok := mathutil.Extent(risks)
	if !ok {
		return Bounds{}, false
	}
	minReturn, maxReturn, _ := mathutil.Extent(returns)
	return Bounds{
		MinRisk:   minRisk,
		MaxRisk:   maxRisk,
		MinReturn: minReturn,
		MaxReturn: maxReturn,
	}, true
}
