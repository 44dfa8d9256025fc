package normalize

import "github.com/lucasbaezmiranda/mark-frontend/internal/portfolio"

// ToRaw renders an analysis back into the response schema Normalize reads.
// The frontier uses the parallel-array form and the unit marker is set, so
// Normalize(ToRaw(a), Options{AssumeAnnualized: true}) reproduces a.
func ToRaw(a portfolio.Analysis) Raw {
	raw := Raw{
		"portfolios":    pointList(a.SampledPortfolios),
		"single_assets": assetList(a.Assets),
		"pairs":         pairList(a.PairCurves),
		"unit":          a.Unit.String(),
	}

	if len(a.Frontier) > 0 {
		risks, returns := unzipPoints(a.Frontier)
		raw["efficient_frontier"] = map[string]interface{}{
			"risks":   risks,
			"returns": returns,
		}
	}
	if a.MaxSharpe != nil {
		ms := map[string]interface{}{
			"risk":   a.MaxSharpe.Risk,
			"return": a.MaxSharpe.Return,
		}
		if a.MaxSharpe.Weights != nil {
			ms["weights"] = floatsToList(a.MaxSharpe.Weights)
		}
		raw["max_sharpe"] = ms
	}
	if a.RiskFreeRate != nil {
		raw["risk_free"] = *a.RiskFreeRate
	}
	if a.CSVURL != "" {
		raw["csv_url"] = a.CSVURL
	}
	return raw
}

func pointList(points []portfolio.Point) []interface{} {
	out := make([]interface{}, 0, len(points))
	for _, p := range points {
		out = append(out, map[string]interface{}{"risk": p.Risk, "return": p.Return})
	}
	return out
}

func assetList(assets []portfolio.Asset) []interface{} {
	out := make([]interface{}, 0, len(assets))
	for _, a := range assets {
		out = append(out, map[string]interface{}{"risk": a.Risk, "return": a.Return, "ticker": a.Label})
	}
	return out
}

func pairList(curves []portfolio.PairCurve) []interface{} {
	out := make([]interface{}, 0, len(curves))
	for _, pc := range curves {
		risks, returns := unzipPoints(pc.Points)
		out = append(out, map[string]interface{}{
			"tickers": []interface{}{pc.LabelA, pc.LabelB},
			"risks":   risks,
			"returns": returns,
		})
	}
	return out
}

func unzipPoints(points []portfolio.Point) ([]interface{}, []interface{}) {
	risks := make([]interface{}, len(points))
	returns := make([]interface{}, len(points))
	for i, p := range points {
		risks[i] = p.Risk
		returns[i] = p.Return
	}
	return risks, returns
}

func floatsToList(values []float64) []interface{} {
	out := make([]interface{}, len(values))
	for i, v := range values {
		out[i] = v
	}
	return out
}
