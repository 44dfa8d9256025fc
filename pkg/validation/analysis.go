package validation

import (
	"fmt"

	"github.com/lucasbaezmiranda/mark-frontend/pkg/constants"
	"github.com/lucasbaezmiranda/mark-frontend/pkg/mathutil"
)

// ValidateWeights warns when max-Sharpe weights do not add up to one. A nil
// slice means the service sent no weights and is not an error.
func ValidateWeights(weights []float64) []string {
	if weights == nil {
		return nil
	}
	var warnings []string
	for i, w := range weights {
		if !mathutil.IsFinite(w) {
			warnings = append(warnings, fmt.Sprintf("max Sharpe weight %d is not a finite number", i))
		}
	}
	if len(warnings) > 0 {
		return warnings
	}
	if !mathutil.WeightsSumToOne(weights, constants.WeightSumTolerance) {
		warnings = append(warnings, fmt.Sprintf("max Sharpe weights sum to %.4f, expected 1", mathutil.Sum(weights)))
	}
	return warnings
}

// ValidateWeightCount warns when the number of weights differs from the
// number of assets they should allocate across.
func ValidateWeightCount(weights []float64, assets int) []string {
	if weights == nil || assets == 0 || len(weights) == assets {
		return nil
	}
	return []string{fmt.Sprintf("max Sharpe carries %d weights for %d assets", len(weights), assets)}
}
