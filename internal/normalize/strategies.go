package normalize

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/lucasbaezmiranda/mark-frontend/internal/portfolio"
)

// Concept names used in errors and logs.
const (
	conceptPortfolios   = "portfolios"
	conceptAssets       = "single_assets"
	conceptFrontier     = "frontier"
	conceptMaxSharpe    = "max_sharpe"
	conceptRiskFree     = "risk_free"
	conceptPairs        = "pairs"
	conceptCSVURL       = "csv_url"
	conceptUnit         = "unit"
	conceptEnvelope     = "envelope"
	conceptResponseBody = "body"
)

// strategy extracts one concept from one key in one shape. Strategies for a
// concept are tried in slice order; the first that recognises the value wins.
type strategy[T any] struct {
	name   string
	key    string
	decode func(concept string, v interface{}) (T, error)
}

// resolve runs the strategies for concept against raw. found is false when
// none of the strategy keys is present (or all are null). A present value no
// strategy recognises is an UnsupportedSchemaVariant.
func resolve[T any](raw Raw, concept string, strategies []strategy[T]) (T, bool, error) {
	var zero T
	var rejected []string
	present := false

	for _, s := range strategies {
		v, ok := raw[s.key]
		if !ok || v == nil {
			continue
		}
		present = true

		out, err := s.decode(concept, v)
		if err == nil {
			return out, true, nil
		}
		var se shapeError
		if errors.As(err, &se) {
			rejected = append(rejected, fmt.Sprintf("%s (%s)", s.name, se.detail))
			continue
		}
		return zero, false, err
	}

	if !present {
		return zero, false, nil
	}
	return zero, false, unsupported(concept, "no known variant matched: %s", strings.Join(rejected, "; "))
}

var portfolioStrategies = []strategy[[]portfolio.Point]{
	{name: "portfolios-list", key: "portfolios", decode: decodePointList},
	{name: "portfolios-parallel", key: "portfolios", decode: decodeParallelPoints},
}

var assetStrategies = []strategy[[]portfolio.Asset]{
	{name: "single_assets-list", key: "single_assets", decode: decodeAssetList},
	{name: "single_assets-parallel", key: "single_assets", decode: decodeParallelAssets},
}

var frontierStrategies = []strategy[[]portfolio.Point]{
	{name: "frontier-list", key: "frontier", decode: decodePointList},
	{name: "frontier-parallel", key: "frontier", decode: decodeParallelPoints},
	{name: "efficient_frontier-parallel", key: "efficient_frontier", decode: decodeParallelPoints},
	{name: "efficient_frontier-list", key: "efficient_frontier", decode: decodePointList},
}

var maxSharpeStrategies = []strategy[portfolio.SharpePoint]{
	{name: "max_sharpe", key: "max_sharpe", decode: decodeSharpePoint},
	{name: "max_sharpe_point", key: "max_sharpe_point", decode: decodeSharpePoint},
}

var riskFreeStrategies = []strategy[float64]{
	{name: "risk_free", key: "risk_free", decode: decodeScalar},
}

var pairStrategies = []strategy[[]portfolio.PairCurve]{
	{name: "pairs-list", key: "pairs", decode: decodePairList},
}

var csvURLStrategies = []strategy[string]{
	{name: "csv_url", key: "csv_url", decode: decodeString},
}

var unitStrategies = []strategy[portfolio.Unit]{
	{name: "unit", key: "unit", decode: decodeUnit},
}

func decodePointList(concept string, v interface{}) ([]portfolio.Point, error) {
	items, ok := v.([]interface{})
	if !ok {
		return nil, badShape("expected a list, got %T", v)
	}
	points := make([]portfolio.Point, 0, len(items))
	for i, item := range items {
		rec, ok := item.(map[string]interface{})
		if !ok {
			return nil, badShape("element %d: expected an object, got %T", i, item)
		}
		p, err := decodePointRecord(rec)
		if err != nil {
			return nil, badShape("element %d: %v", i, err)
		}
		points = append(points, p)
	}
	return points, nil
}

func decodeParallelPoints(concept string, v interface{}) ([]portfolio.Point, error) {
	rec, ok := v.(map[string]interface{})
	if !ok {
		return nil, badShape("expected an object with risks/returns, got %T", v)
	}
	risks, returns, err := parallelArrays(rec)
	if err != nil {
		return nil, err
	}
	return zipPoints(concept, risks, returns)
}

func decodeAssetList(concept string, v interface{}) ([]portfolio.Asset, error) {
	items, ok := v.([]interface{})
	if !ok {
		return nil, badShape("expected a list, got %T", v)
	}
	assets := make([]portfolio.Asset, 0, len(items))
	for i, item := range items {
		rec, ok := item.(map[string]interface{})
		if !ok {
			return nil, badShape("element %d: expected an object, got %T", i, item)
		}
		p, err := decodePointRecord(rec)
		if err != nil {
			return nil, badShape("element %d: %v", i, err)
		}
		label, _ := rec["ticker"].(string)
		assets = append(assets, portfolio.Asset{Point: p, Label: assetLabel(label, i)})
	}
	return assets, nil
}

func decodeParallelAssets(concept string, v interface{}) ([]portfolio.Asset, error) {
	rec, ok := v.(map[string]interface{})
	if !ok {
		return nil, badShape("expected an object with risks/returns, got %T", v)
	}
	risks, returns, err := parallelArrays(rec)
	if err != nil {
		return nil, err
	}
	points, err := zipPoints(concept, risks, returns)
	if err != nil {
		return nil, err
	}

	var tickers []string
	if rawTickers, ok := rec["tickers"]; ok && rawTickers != nil {
		tickers, err = stringList(rawTickers)
		if err != nil {
			return nil, badShape("tickers: %v", err)
		}
		if len(tickers) != len(points) {
			return nil, mismatch(concept, "tickers has %d entries, risks/returns have %d", len(tickers), len(points))
		}
	}

	assets := make([]portfolio.Asset, len(points))
	for i, p := range points {
		label := ""
		if tickers != nil {
			label = tickers[i]
		}
		assets[i] = portfolio.Asset{Point: p, Label: assetLabel(label, i)}
	}
	return assets, nil
}

func decodeSharpePoint(concept string, v interface{}) (portfolio.SharpePoint, error) {
	rec, ok := v.(map[string]interface{})
	if !ok {
		return portfolio.SharpePoint{}, badShape("expected an object, got %T", v)
	}
	p, err := decodePointRecord(rec)
	if err != nil {
		return portfolio.SharpePoint{}, badShape("%v", err)
	}
	sp := portfolio.SharpePoint{Point: p}
	if rawWeights, ok := rec["weights"]; ok && rawWeights != nil {
		weights, err := floatList(rawWeights)
		if err != nil {
			return portfolio.SharpePoint{}, badShape("weights: %v", err)
		}
		sp.Weights = weights
	}
	return sp, nil
}

func decodeScalar(concept string, v interface{}) (float64, error) {
	f, ok := toFloat(v)
	if !ok {
		return 0, badShape("expected a number, got %T", v)
	}
	return f, nil
}

func decodeString(concept string, v interface{}) (string, error) {
	s, ok := v.(string)
	if !ok {
		return "", badShape("expected a string, got %T", v)
	}
	return strings.TrimSpace(s), nil
}

func decodeUnit(concept string, v interface{}) (portfolio.Unit, error) {
	s, ok := v.(string)
	if !ok {
		return portfolio.Periodic, badShape("expected a string, got %T", v)
	}
	u, ok := portfolio.ParseUnit(strings.ToLower(strings.TrimSpace(s)))
	if !ok {
		return portfolio.Periodic, badShape("unknown unit %q", s)
	}
	return u, nil
}

func decodePairList(concept string, v interface{}) ([]portfolio.PairCurve, error) {
	items, ok := v.([]interface{})
	if !ok {
		return nil, badShape("expected a list, got %T", v)
	}
	curves := make([]portfolio.PairCurve, 0, len(items))
	for i, item := range items {
		rec, ok := item.(map[string]interface{})
		if !ok {
			return nil, badShape("element %d: expected an object, got %T", i, item)
		}
		tickers, err := stringList(rec["tickers"])
		if err != nil {
			return nil, badShape("element %d: tickers: %v", i, err)
		}
		if len(tickers) < 2 {
			return nil, badShape("element %d: expected two tickers, got %d", i, len(tickers))
		}
		risks, returns, err := parallelArrays(rec)
		if err != nil {
			return nil, err
		}
		points, err := zipPoints(fmt.Sprintf("%s[%d]", concept, i), risks, returns)
		if err != nil {
			return nil, err
		}
		curves = append(curves, portfolio.PairCurve{LabelA: tickers[0], LabelB: tickers[1], Points: points})
	}
	return curves, nil
}

func decodePointRecord(rec map[string]interface{}) (portfolio.Point, error) {
	risk, ok := toFloat(rec["risk"])
	if !ok {
		return portfolio.Point{}, fmt.Errorf("risk is missing or not a number")
	}
	ret, ok := toFloat(rec["return"])
	if !ok {
		return portfolio.Point{}, fmt.Errorf("return is missing or not a number")
	}
	return portfolio.Point{Risk: risk, Return: ret}, nil
}

func parallelArrays(rec map[string]interface{}) ([]float64, []float64, error) {
	risks, err := floatList(rec["risks"])
	if err != nil {
		return nil, nil, badShape("risks: %v", err)
	}
	returns, err := floatList(rec["returns"])
	if err != nil {
		return nil, nil, badShape("returns: %v", err)
	}
	return risks, returns, nil
}

// zipPoints pairs risks and returns positionally.
func zipPoints(concept string, risks, returns []float64) ([]portfolio.Point, error) {
	if len(risks) != len(returns) {
		return nil, mismatch(concept, "risks has %d entries, returns has %d", len(risks), len(returns))
	}
	points := make([]portfolio.Point, len(risks))
	for i := range risks {
		points[i] = portfolio.Point{Risk: risks[i], Return: returns[i]}
	}
	return points, nil
}

func assetLabel(label string, index int) string {
	if trimmed := strings.TrimSpace(label); trimmed != "" {
		return trimmed
	}
	return fmt.Sprintf("Asset %d", index+1)
}

func floatList(v interface{}) ([]float64, error) {
	items, ok := v.([]interface{})
	if !ok {
		return nil, fmt.Errorf("expected a list of numbers, got %T", v)
	}
	out := make([]float64, 0, len(items))
	for i, item := range items {
		f, ok := toFloat(item)
		if !ok {
			return nil, fmt.Errorf("element %d: expected a number, got %T", i, item)
		}
		out = append(out, f)
	}
	return out, nil
}

func stringList(v interface{}) ([]string, error) {
	items, ok := v.([]interface{})
	if !ok {
		return nil, fmt.Errorf("expected a list of strings, got %T", v)
	}
	out := make([]string, 0, len(items))
	for i, item := range items {
		s, ok := item.(string)
		if !ok {
			return nil, fmt.Errorf("element %d: expected a string, got %T", i, item)
		}
		out = append(out, strings.TrimSpace(s))
	}
	return out, nil
}

func toFloat(v interface{}) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case json.Number:
		f, err := n.Float64()
		return f, err == nil
	}
	return 0, false
}
