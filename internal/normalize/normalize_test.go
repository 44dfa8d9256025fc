package normalize

import (
	"errors"
	"math"
	"reflect"
	"testing"

	"github.com/lucasbaezmiranda/mark-frontend/internal/portfolio"
)

const tolerance = 1e-9

func mustParse(t *testing.T, body string) Raw {
	t.Helper()
	raw, err := ParseResponse([]byte(body))
	if err != nil {
		t.Fatalf("ParseResponse() error = %v", err)
	}
	return raw
}

func assertPoints(t *testing.T, got []portfolio.Point, want []portfolio.Point) {
	t.Helper()
	if len(got) != len(want) {
		t.Fatalf("expected %d points, got %d: %+v", len(want), len(got), got)
	}
	for i := range want {
		if math.Abs(got[i].Risk-want[i].Risk) > tolerance || math.Abs(got[i].Return-want[i].Return) > tolerance {
			t.Fatalf("point %d: expected %+v, got %+v", i, want[i], got[i])
		}
	}
}

func TestNormalizeSortsFrontier(t *testing.T) {
	raw := mustParse(t, `{
		"portfolios": [{"risk": 0.1, "return": 0.05}],
		"single_assets": [],
		"frontier": [{"risk": 0.3, "return": 0.1}, {"risk": 0.1, "return": 0.05}]
	}`)

	a, err := Normalize(raw, Options{AssumeAnnualized: true})
	if err != nil {
		t.Fatalf("Normalize() error = %v", err)
	}

	assertPoints(t, a.Frontier, []portfolio.Point{{Risk: 0.1, Return: 0.05}, {Risk: 0.3, Return: 0.1}})
	if a.MinVariance == nil {
		t.Fatal("expected minimum variance point")
	}
	if *a.MinVariance != (portfolio.Point{Risk: 0.1, Return: 0.05}) {
		t.Fatalf("expected min variance {0.1 0.05}, got %+v", *a.MinVariance)
	}
	if a.Unit != portfolio.Annualized {
		t.Fatalf("expected annualized unit, got %v", a.Unit)
	}
}

func TestNormalizeParallelFrontierScaled(t *testing.T) {
	raw := mustParse(t, `{
		"portfolios": [],
		"efficient_frontier": {"risks": [0.2, 0.1], "returns": [0.08, 0.04]}
	}`)

	a, err := Normalize(raw, Options{AnnualizationFactor: 12})
	if err != nil {
		t.Fatalf("Normalize() error = %v", err)
	}

	assertPoints(t, a.Frontier, []portfolio.Point{{Risk: 1.2, Return: 0.48}, {Risk: 2.4, Return: 0.96}})
	assertPoints(t, []portfolio.Point{*a.MinVariance}, []portfolio.Point{{Risk: 1.2, Return: 0.48}})
}

func TestNormalizePairLengthMismatch(t *testing.T) {
	raw := mustParse(t, `{
		"portfolios": [],
		"pairs": [{"tickers": ["AAPL", "MSFT"], "risks": [0.1, 0.2, 0.3], "returns": [0.01, 0.02]}]
	}`)

	_, err := Normalize(raw, Options{AssumeAnnualized: true})
	if !errors.Is(err, ErrSchemaMismatch) {
		t.Fatalf("expected schema mismatch, got %v", err)
	}
	var nerr *Error
	if !errors.As(err, &nerr) {
		t.Fatalf("expected *Error, got %T", err)
	}
	if nerr.Concept != "pairs[0]" {
		t.Fatalf("expected concept pairs[0], got %q", nerr.Concept)
	}
}

func TestNormalizeMissingPortfolios(t *testing.T) {
	raw := mustParse(t, `{"single_assets": [], "frontier": []}`)

	_, err := Normalize(raw, Options{AssumeAnnualized: true})
	if !errors.Is(err, ErrMalformedResponse) {
		t.Fatalf("expected malformed response, got %v", err)
	}
	if KindName(err) != "MalformedResponse" {
		t.Fatalf("expected kind MalformedResponse, got %q", KindName(err))
	}
}

func TestNormalizeNilRaw(t *testing.T) {
	_, err := Normalize(nil, Options{})
	if !errors.Is(err, ErrMalformedResponse) {
		t.Fatalf("expected malformed response, got %v", err)
	}
}

func TestNormalizeFrontierPrecedence(t *testing.T) {
	raw := mustParse(t, `{
		"portfolios": [],
		"frontier": [{"risk": 0.5, "return": 0.2}],
		"efficient_frontier": {"risks": [0.1], "returns": [0.01]}
	}`)

	a, err := Normalize(raw, Options{AssumeAnnualized: true})
	if err != nil {
		t.Fatalf("Normalize() error = %v", err)
	}
	assertPoints(t, a.Frontier, []portfolio.Point{{Risk: 0.5, Return: 0.2}})
}

func TestNormalizeFrontierTiesBrokenByReturn(t *testing.T) {
	raw := mustParse(t, `{
		"portfolios": [],
		"frontier": [
			{"risk": 0.2, "return": 0.09},
			{"risk": 0.2, "return": 0.03},
			{"risk": 0.1, "return": 0.05}
		]
	}`)

	a, err := Normalize(raw, Options{AssumeAnnualized: true})
	if err != nil {
		t.Fatalf("Normalize() error = %v", err)
	}
	assertPoints(t, a.Frontier, []portfolio.Point{
		{Risk: 0.1, Return: 0.05},
		{Risk: 0.2, Return: 0.03},
		{Risk: 0.2, Return: 0.09},
	})
}

func TestNormalizeFrontierOrderingProperty(t *testing.T) {
	tests := []struct {
		name   string
		risks  []interface{}
		rets   []interface{}
		expect int
	}{
		{name: "empty", risks: []interface{}{}, rets: []interface{}{}, expect: 0},
		{name: "single", risks: []interface{}{0.4}, rets: []interface{}{0.1}, expect: 1},
		{name: "reversed", risks: []interface{}{0.5, 0.4, 0.3, 0.2, 0.1}, rets: []interface{}{0.5, 0.4, 0.3, 0.2, 0.1}, expect: 5},
		{name: "shuffled", risks: []interface{}{0.3, 0.1, 0.5, 0.2, 0.4}, rets: []interface{}{0.03, 0.01, 0.05, 0.02, 0.04}, expect: 5},
		{name: "duplicates", risks: []interface{}{0.2, 0.2, 0.1, 0.1}, rets: []interface{}{0.1, 0.1, 0.2, 0.2}, expect: 4},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			raw := Raw{
				"portfolios":         []interface{}{},
				"efficient_frontier": map[string]interface{}{"risks": tt.risks, "returns": tt.rets},
			}
			a, err := Normalize(raw, Options{AnnualizationFactor: 12})
			if err != nil {
				t.Fatalf("Normalize() error = %v", err)
			}
			if len(a.Frontier) != tt.expect {
				t.Fatalf("expected %d frontier points, got %d", tt.expect, len(a.Frontier))
			}
			for i := 1; i < len(a.Frontier); i++ {
				if a.Frontier[i].Risk < a.Frontier[i-1].Risk {
					t.Fatalf("frontier not sorted at %d: %+v", i, a.Frontier)
				}
			}
			if len(a.Frontier) == 0 {
				if a.MinVariance != nil {
					t.Fatalf("expected no min variance point, got %+v", *a.MinVariance)
				}
				return
			}
			if a.MinVariance == nil || *a.MinVariance != a.Frontier[0] {
				t.Fatalf("expected min variance %+v, got %+v", a.Frontier[0], a.MinVariance)
			}
		})
	}
}

func TestNormalizeScalesEverythingOnce(t *testing.T) {
	raw := mustParse(t, `{
		"portfolios": [{"risk": 0.01, "return": 0.002}],
		"single_assets": [{"risk": 0.02, "return": 0.003, "ticker": "GGAL"}],
		"frontier": [{"risk": 0.01, "return": 0.001}],
		"max_sharpe_point": {"risk": 0.015, "return": 0.0025, "weights": [0.25, 0.75]},
		"risk_free": 0.001,
		"pairs": [{"tickers": ["GGAL", "YPF"], "risks": [0.01], "returns": [0.002]}]
	}`)

	a, err := Normalize(raw, Options{AnnualizationFactor: 12})
	if err != nil {
		t.Fatalf("Normalize() error = %v", err)
	}

	assertPoints(t, a.SampledPortfolios, []portfolio.Point{{Risk: 0.12, Return: 0.024}})
	assertPoints(t, []portfolio.Point{a.Assets[0].Point}, []portfolio.Point{{Risk: 0.24, Return: 0.036}})
	assertPoints(t, a.Frontier, []portfolio.Point{{Risk: 0.12, Return: 0.012}})
	assertPoints(t, []portfolio.Point{a.MaxSharpe.Point}, []portfolio.Point{{Risk: 0.18, Return: 0.03}})
	assertPoints(t, a.PairCurves[0].Points, []portfolio.Point{{Risk: 0.12, Return: 0.024}})
	if math.Abs(*a.RiskFreeRate-0.012) > tolerance {
		t.Fatalf("expected risk free 0.012, got %v", *a.RiskFreeRate)
	}
	if !reflect.DeepEqual(a.MaxSharpe.Weights, []float64{0.25, 0.75}) {
		t.Fatalf("weights must not be scaled, got %v", a.MaxSharpe.Weights)
	}

	again := Annualize(a, 12)
	if !reflect.DeepEqual(again, a) {
		t.Fatalf("Annualize rescaled an annualized analysis")
	}
}

func TestNormalizeRespectsSourceUnitMarker(t *testing.T) {
	raw := mustParse(t, `{"portfolios": [{"risk": 0.2, "return": 0.1}], "unit": "annualized"}`)

	a, err := Normalize(raw, Options{AnnualizationFactor: 12})
	if err != nil {
		t.Fatalf("Normalize() error = %v", err)
	}
	assertPoints(t, a.SampledPortfolios, []portfolio.Point{{Risk: 0.2, Return: 0.1}})
}

func TestNormalizeDefaultFactor(t *testing.T) {
	raw := Raw{"portfolios": []interface{}{map[string]interface{}{"risk": 0.1, "return": 0.01}}}

	a, err := Normalize(raw, Options{})
	if err != nil {
		t.Fatalf("Normalize() error = %v", err)
	}
	assertPoints(t, a.SampledPortfolios, []portfolio.Point{{Risk: 1.2, Return: 0.12}})
}

func TestNormalizeRoundTrip(t *testing.T) {
	raw := mustParse(t, `{
		"portfolios": [{"risk": 0.3, "return": 0.1}, {"risk": 0.2, "return": 0.07}],
		"single_assets": [{"risk": 0.25, "return": 0.09, "ticker": "AAPL"}, {"risk": 0.35, "return": 0.12}],
		"efficient_frontier": {"risks": [0.3, 0.15, 0.2], "returns": [0.11, 0.05, 0.08]},
		"max_sharpe": {"risk": 0.2, "return": 0.08, "weights": [0.6, 0.4]},
		"risk_free": 0.02,
		"pairs": [{"tickers": ["AAPL", "Asset 2"], "risks": [0.25, 0.3], "returns": [0.09, 0.12]}],
		"csv_url": "https://example.com/markowitz.csv"
	}`)

	model, err := Normalize(raw, Options{AnnualizationFactor: 12})
	if err != nil {
		t.Fatalf("Normalize() error = %v", err)
	}

	again, err := Normalize(ToRaw(model), Options{AssumeAnnualized: true})
	if err != nil {
		t.Fatalf("Normalize(ToRaw()) error = %v", err)
	}
	if !reflect.DeepEqual(again, model) {
		t.Fatalf("round trip changed the model:\n got %+v\nwant %+v", again, model)
	}

	// Without AssumeAnnualized the unit marker still prevents rescaling.
	marked, err := Normalize(ToRaw(model), Options{AnnualizationFactor: 12})
	if err != nil {
		t.Fatalf("Normalize(ToRaw()) error = %v", err)
	}
	if !reflect.DeepEqual(marked, model) {
		t.Fatalf("unit marker ignored, model was rescaled")
	}
}

func TestNormalizeParallelFrontierRoundTrip(t *testing.T) {
	risks := []interface{}{0.4, 0.1, 0.3}
	returns := []interface{}{0.2, 0.05, 0.15}
	raw := Raw{
		"portfolios":         []interface{}{},
		"efficient_frontier": map[string]interface{}{"risks": risks, "returns": returns},
	}

	a, err := Normalize(raw, Options{AssumeAnnualized: true})
	if err != nil {
		t.Fatalf("Normalize() error = %v", err)
	}

	ef := ToRaw(a)["efficient_frontier"].(map[string]interface{})
	gotRisks := ef["risks"].([]interface{})
	gotReturns := ef["returns"].([]interface{})
	wantRisks := []interface{}{0.1, 0.3, 0.4}
	wantReturns := []interface{}{0.05, 0.15, 0.2}
	if !reflect.DeepEqual(gotRisks, wantRisks) || !reflect.DeepEqual(gotReturns, wantReturns) {
		t.Fatalf("expected %v/%v, got %v/%v", wantRisks, wantReturns, gotRisks, gotReturns)
	}
}

func TestNormalizeAssetLabels(t *testing.T) {
	raw := mustParse(t, `{
		"portfolios": [],
		"single_assets": [
			{"risk": 0.1, "return": 0.01, "ticker": "MELI"},
			{"risk": 0.2, "return": 0.02},
			{"risk": 0.3, "return": 0.03, "ticker": "  "}
		]
	}`)

	a, err := Normalize(raw, Options{AssumeAnnualized: true})
	if err != nil {
		t.Fatalf("Normalize() error = %v", err)
	}

	want := []string{"MELI", "Asset 2", "Asset 3"}
	for i, label := range want {
		if a.Assets[i].Label != label {
			t.Errorf("asset %d: expected label %q, got %q", i, label, a.Assets[i].Label)
		}
	}
}

func TestNormalizeParallelAssets(t *testing.T) {
	tests := []struct {
		name    string
		assets  map[string]interface{}
		labels  []string
		wantErr error
	}{
		{
			name:   "with tickers",
			assets: map[string]interface{}{"tickers": []interface{}{"A", "B"}, "risks": []interface{}{0.1, 0.2}, "returns": []interface{}{0.01, 0.02}},
			labels: []string{"A", "B"},
		},
		{
			name:   "without tickers",
			assets: map[string]interface{}{"risks": []interface{}{0.1}, "returns": []interface{}{0.01}},
			labels: []string{"Asset 1"},
		},
		{
			name:    "ticker count mismatch",
			assets:  map[string]interface{}{"tickers": []interface{}{"A"}, "risks": []interface{}{0.1, 0.2}, "returns": []interface{}{0.01, 0.02}},
			wantErr: ErrSchemaMismatch,
		},
		{
			name:    "risk count mismatch",
			assets:  map[string]interface{}{"risks": []interface{}{0.1, 0.2}, "returns": []interface{}{0.01}},
			wantErr: ErrSchemaMismatch,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			raw := Raw{"portfolios": []interface{}{}, "single_assets": tt.assets}
			a, err := Normalize(raw, Options{AssumeAnnualized: true})
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("expected %v, got %v", tt.wantErr, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("Normalize() error = %v", err)
			}
			if len(a.Assets) != len(tt.labels) {
				t.Fatalf("expected %d assets, got %d", len(tt.labels), len(a.Assets))
			}
			for i, label := range tt.labels {
				if a.Assets[i].Label != label {
					t.Errorf("asset %d: expected %q, got %q", i, label, a.Assets[i].Label)
				}
			}
		})
	}
}

func TestNormalizeMaxSharpeVariants(t *testing.T) {
	tests := []struct {
		name   string
		body   string
		risk   float64
		hasPtr bool
	}{
		{name: "max_sharpe", body: `{"portfolios": [], "max_sharpe": {"risk": 0.2, "return": 0.1}}`, risk: 0.2, hasPtr: true},
		{name: "max_sharpe_point", body: `{"portfolios": [], "max_sharpe_point": {"risk": 0.3, "return": 0.1}}`, risk: 0.3, hasPtr: true},
		{name: "both prefer max_sharpe", body: `{"portfolios": [], "max_sharpe": {"risk": 0.2, "return": 0.1}, "max_sharpe_point": {"risk": 0.3, "return": 0.1}}`, risk: 0.2, hasPtr: true},
		{name: "null is absent", body: `{"portfolios": [], "max_sharpe": null}`},
		{name: "absent", body: `{"portfolios": []}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a, err := Normalize(mustParse(t, tt.body), Options{AssumeAnnualized: true})
			if err != nil {
				t.Fatalf("Normalize() error = %v", err)
			}
			if !tt.hasPtr {
				if a.MaxSharpe != nil {
					t.Fatalf("expected no max sharpe point, got %+v", a.MaxSharpe)
				}
				return
			}
			if a.MaxSharpe == nil || a.MaxSharpe.Risk != tt.risk {
				t.Fatalf("expected max sharpe risk %v, got %+v", tt.risk, a.MaxSharpe)
			}
		})
	}
}

func TestNormalizeUnsupportedVariants(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{name: "portfolios not a list", body: `{"portfolios": "many"}`},
		{name: "portfolio missing risk", body: `{"portfolios": [{"return": 0.1}]}`},
		{name: "frontier scalar", body: `{"portfolios": [], "frontier": 3}`},
		{name: "max sharpe list", body: `{"portfolios": [], "max_sharpe": [0.1, 0.2]}`},
		{name: "risk free string", body: `{"portfolios": [], "risk_free": "2%"}`},
		{name: "pair with one ticker", body: `{"portfolios": [], "pairs": [{"tickers": ["A"], "risks": [], "returns": []}]}`},
		{name: "unknown unit", body: `{"portfolios": [], "unit": "weekly"}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Normalize(mustParse(t, tt.body), Options{AssumeAnnualized: true})
			if !errors.Is(err, ErrUnsupportedSchemaVariant) {
				t.Fatalf("expected unsupported schema variant, got %v", err)
			}
		})
	}
}

func TestNormalizeDoesNotShareSlices(t *testing.T) {
	points := []interface{}{map[string]interface{}{"risk": 0.2, "return": 0.1}}
	raw := Raw{"portfolios": points, "frontier": points}

	a, err := Normalize(raw, Options{AssumeAnnualized: true})
	if err != nil {
		t.Fatalf("Normalize() error = %v", err)
	}
	a.Frontier[0].Risk = 9
	if a.MinVariance.Risk == 9 {
		t.Fatal("min variance point aliases the frontier slice")
	}
}
