// Package normalize turns a raw analytics-service response into a
// portfolio.Analysis. The service's response schema has drifted over time, so
// every concept is resolved through an ordered list of extraction strategies
// (see strategies.go) rather than a fixed struct.
package normalize

import (
	"github.com/lucasbaezmiranda/mark-frontend/internal/portfolio"
	"github.com/lucasbaezmiranda/mark-frontend/pkg/constants"
)

// Raw is a decoded analytics response: a JSON object with loosely typed values.
type Raw map[string]interface{}

// Options controls unit handling.
type Options struct {
	// AnnualizationFactor multiplies periodic values; non-positive means
	// constants.DefaultAnnualizationFactor.
	AnnualizationFactor float64
	// AssumeAnnualized skips scaling because the source already annualizes.
	AssumeAnnualized bool
}

// Normalize resolves every concept in raw, sorts the frontier, derives the
// minimum-variance point and scales the values to annual units exactly once.
// No partial analysis is returned on error.
func Normalize(raw Raw, opts Options) (portfolio.Analysis, error) {
	if raw == nil {
		return portfolio.Analysis{}, malformed(conceptResponseBody, "response has no body")
	}

	portfolios, found, err := resolve(raw, conceptPortfolios, portfolioStrategies)
	if err != nil {
		return portfolio.Analysis{}, err
	}
	if !found {
		if msg, ok := raw["error"].(string); ok && msg != "" {
			return portfolio.Analysis{}, malformed(conceptPortfolios, "missing from response, service reported: %s", msg)
		}
		return portfolio.Analysis{}, malformed(conceptPortfolios, "missing from response")
	}

	assets, _, err := resolve(raw, conceptAssets, assetStrategies)
	if err != nil {
		return portfolio.Analysis{}, err
	}

	frontier, _, err := resolve(raw, conceptFrontier, frontierStrategies)
	if err != nil {
		return portfolio.Analysis{}, err
	}

	var maxSharpe *portfolio.SharpePoint
	ms, found, err := resolve(raw, conceptMaxSharpe, maxSharpeStrategies)
	if err != nil {
		return portfolio.Analysis{}, err
	}
	if found {
		maxSharpe = &ms
	}

	var riskFree *float64
	rf, found, err := resolve(raw, conceptRiskFree, riskFreeStrategies)
	if err != nil {
		return portfolio.Analysis{}, err
	}
	if found {
		riskFree = &rf
	}

	pairs, _, err := resolve(raw, conceptPairs, pairStrategies)
	if err != nil {
		return portfolio.Analysis{}, err
	}

	csvURL, _, err := resolve(raw, conceptCSVURL, csvURLStrategies)
	if err != nil {
		return portfolio.Analysis{}, err
	}

	sourceUnit, _, err := resolve(raw, conceptUnit, unitStrategies)
	if err != nil {
		return portfolio.Analysis{}, err
	}

	unit := portfolio.Periodic
	if opts.AssumeAnnualized || sourceUnit == portfolio.Annualized {
		unit = portfolio.Annualized
	}

	analysis := portfolio.New(portfolio.Parts{
		SampledPortfolios: portfolios,
		Assets:            assets,
		Frontier:          frontier,
		MaxSharpe:         maxSharpe,
		RiskFreeRate:      riskFree,
		PairCurves:        pairs,
		Unit:              unit,
		CSVURL:            csvURL,
	})

	return Annualize(analysis, opts.AnnualizationFactor), nil
}

// Annualize scales a periodic analysis by factor and marks it annualized. An
// analysis that is already annualized is returned unchanged, so calling it
// repeatedly never rescales.
func Annualize(a portfolio.Analysis, factor float64) portfolio.Analysis {
	if a.Unit == portfolio.Annualized {
		return a
	}
	if factor <= 0 {
		factor = constants.DefaultAnnualizationFactor
	}
	return a.Scale(factor, portfolio.Annualized)
}
