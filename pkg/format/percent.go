// Package format renders risk and return figures for people.
package format

import (
	"fmt"
	"math"
	"strings"

	"github.com/lucasbaezmiranda/mark-frontend/pkg/constants"
)

// Percent renders a fraction as a percentage with two decimals and thousands
// separators (e.g., 0.1234 -> "12.34%", -12.5 -> "-1,250.00%").
func Percent(fraction float64) string {
	return NumericPercent(fraction) + "%"
}

// NumericPercent is Percent without the percent sign.
func NumericPercent(fraction float64) string {
	if math.IsNaN(fraction) {
		return "NaN"
	}
	if math.IsInf(fraction, 0) {
		if fraction < 0 {
			return "-Inf"
		}
		return "+Inf"
	}
	value := fraction * constants.PercentageMultiplier
	formatted := groupDigits(math.Abs(value))
	if value < 0 && formatted != "0.00" {
		return "-" + formatted
	}
	return formatted
}

// Ratio renders a unitless ratio such as a Sharpe ratio.
func Ratio(v float64) string {
	if math.IsNaN(v) {
		return "n/a"
	}
	return fmt.Sprintf("%.2f", v)
}

func groupDigits(value float64) string {
	formatted := fmt.Sprintf("%.2f", value)
	parts := strings.SplitN(formatted, ".", 2)
	intPart := parts[0]
	decPart := "00"
	if len(parts) == 2 {
		decPart = parts[1]
	}

	if len(intPart) > 3 {
		var builder strings.Builder
		for i, digit := range intPart {
			if i > 0 && (len(intPart)-i)%3 == 0 {
				builder.WriteByte(',')
			}
			builder.WriteRune(digit)
		}
		intPart = builder.String()
	}

	return intPart + "." + decPart
}
