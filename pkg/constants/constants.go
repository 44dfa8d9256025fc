// Package constants provides shared constants for the mark-frontend application.
package constants

// DateLayout is the format of the date window sent to the analytics service.
const DateLayout = "2006-01-02"

// Financial constants
const (
	// MonthsPerYear is the number of months in a year
	MonthsPerYear = 12

	// DefaultAnnualizationFactor scales monthly risk/return figures to annual ones.
	DefaultAnnualizationFactor = float64(MonthsPerYear)

	// WeightSumTolerance is the allowed drift of max-Sharpe weights from 1.0
	WeightSumTolerance = 1e-3

	// PercentageMultiplier is used for percentage conversions
	PercentageMultiplier = 100.0
)

// Output format constants
const (
	// OutputFormatPretty is the human-readable output format
	OutputFormatPretty = "pretty"

	// OutputFormatCSV is the CSV output format
	OutputFormatCSV = "csv"

	// OutputFormatJSON emits the series list as JSON
	OutputFormatJSON = "json"
)

// Configuration file constants
const (
	// DefaultConfigFile is the default configuration file name
	DefaultConfigFile = "config.yaml"

	// DefaultServerConfigFile is the default server configuration file name
	DefaultServerConfigFile = "server-config.yaml"

	// EnvPrefix is the prefix for environment overrides, e.g. MARK_SERVICE_URL
	EnvPrefix = "MARK"
)

// Server configuration defaults
const (
	// DefaultServerAddress is the default HTTP listen address for the web UI
	DefaultServerAddress = ":8080"

	// DefaultMaxUploadSizeBytes is the default maximum body size for raw responses (1 MB)
	DefaultMaxUploadSizeBytes int64 = 1024 * 1024

	// DefaultServiceTimeoutSeconds bounds a single analytics service call
	DefaultServiceTimeoutSeconds = 30
)

// Request defaults
const (
	// MinTickers is the smallest portfolio the analytics service accepts
	MinTickers = 2

	// DefaultRandomTickers is how many tickers a random portfolio draws
	DefaultRandomTickers = 3
)
