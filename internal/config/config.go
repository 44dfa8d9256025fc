// Package config defines the application configuration and includes
// functions for loading it from YAML files and the environment.
package config

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"github.com/lucasbaezmiranda/mark-frontend/internal/client"
	"github.com/lucasbaezmiranda/mark-frontend/internal/normalize"
	"github.com/lucasbaezmiranda/mark-frontend/internal/request"
	"github.com/lucasbaezmiranda/mark-frontend/internal/series"
	"github.com/lucasbaezmiranda/mark-frontend/pkg/constants"
	"github.com/lucasbaezmiranda/mark-frontend/pkg/datetime"
)

// Configuration holds all configuration for mark-frontend.
type Configuration struct {
	Service       ServiceConfig       `yaml:"service"`
	Normalization NormalizationConfig `yaml:"normalization"`
	Chart         ChartConfig         `yaml:"chart"`
	Defaults      request.Defaults    `yaml:"defaults"`
	Logging       LoggingConfig       `yaml:"logging,omitempty"`
	Output        OutputConfig        `yaml:"output,omitempty"`
}

// ServiceConfig locates the analytics service.
type ServiceConfig struct {
	URL            string `yaml:"url"`
	APIKey         string `mapstructure:"apiKey" yaml:"apiKey,omitempty"`
	TimeoutSeconds int    `mapstructure:"timeoutSeconds" yaml:"timeoutSeconds"`
	Points         int    `yaml:"points,omitempty"`
	Portfolios     int    `yaml:"portfolios,omitempty"`
}

// NormalizationConfig controls unit scaling. Whether the service already
// annualizes its figures has changed between deployments, so it is explicit.
type NormalizationConfig struct {
	AnnualizationFactor float64 `mapstructure:"annualizationFactor" yaml:"annualizationFactor"`
	AssumeAnnualized    bool    `mapstructure:"assumeAnnualized" yaml:"assumeAnnualized"`
}

// ChartConfig holds presentation defaults.
type ChartConfig struct {
	ShowCapitalMarketLine bool     `mapstructure:"showCapitalMarketLine" yaml:"showCapitalMarketLine"`
	RiskFreeRate          *float64 `mapstructure:"riskFreeRate" yaml:"riskFreeRate,omitempty"`
}

// LoggingConfig holds logging configuration options
type LoggingConfig struct {
	Level      string `yaml:"level,omitempty"`      // debug, info, warn, error
	Format     string `yaml:"format,omitempty"`     // json, console
	OutputFile string `yaml:"outputFile,omitempty"` // optional file output
}

// OutputConfig holds output format configuration options
type OutputConfig struct {
	Format string `yaml:"format,omitempty"` // pretty, csv, json
}

// LoadConfiguration takes a file path as input and loads the YAML-formatted
// configuration there. An empty path loads defaults and environment
// overrides only. A .env file in the working directory is loaded first.
func LoadConfiguration(configPath string) (*Configuration, error) {
	_ = godotenv.Load()

	v := newViper()
	if configPath != "" {
		v.SetConfigFile(configPath)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("error reading config file, %s", err)
		}
	}
	return decode(v)
}

// LoadConfigurationFromReader loads YAML configuration from r.
func LoadConfigurationFromReader(r io.Reader) (*Configuration, error) {
	v := newViper()
	if err := v.ReadConfig(r); err != nil {
		return nil, fmt.Errorf("error reading config data, %s", err)
	}
	return decode(v)
}

func newViper() *viper.Viper {
	v := viper.New()
	v.SetConfigType("yml")
	v.SetEnvPrefix(constants.EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Every key needs a default so AutomaticEnv can override it on Unmarshal.
	v.SetDefault("service.url", "")
	v.SetDefault("service.apiKey", "")
	v.SetDefault("service.timeoutSeconds", constants.DefaultServiceTimeoutSeconds)
	v.SetDefault("service.points", 0)
	v.SetDefault("service.portfolios", 0)
	v.SetDefault("normalization.annualizationFactor", constants.DefaultAnnualizationFactor)
	v.SetDefault("normalization.assumeAnnualized", false)
	v.SetDefault("chart.showCapitalMarketLine", false)
	// No default: an unset rate must stay nil rather than become zero.
	_ = v.BindEnv("chart.riskFreeRate")
	v.SetDefault("defaults.tickerPool", []string{"AAPL", "GOOGL", "MSFT", "AMZN", "META", "NVDA", "GGAL", "YPF", "MELI"})
	v.SetDefault("defaults.tickers", []string{"AAPL", "GOOGL", "MSFT"})
	v.SetDefault("defaults.startDate", "")
	v.SetDefault("defaults.endDate", "")
	v.SetDefault("defaults.randomCount", constants.DefaultRandomTickers)
	v.SetDefault("logging.level", "")
	v.SetDefault("logging.format", "")
	v.SetDefault("logging.outputFile", "")
	v.SetDefault("output.format", "")
	return v
}

func decode(v *viper.Viper) (*Configuration, error) {
	var configuration Configuration
	if err := v.Unmarshal(&configuration); err != nil {
		return nil, fmt.Errorf("unable to decode into struct, %s", err)
	}
	configuration.applyDefaults(time.Now())
	return &configuration, nil
}

// applyDefaults fills the date window when the configuration leaves it open.
// A configured end date without a start gets the year leading up to it.
func (c *Configuration) applyDefaults(now time.Time) {
	if c.Defaults.StartDate == "" || c.Defaults.EndDate == "" {
		start, end := datetime.DefaultWindow(now, constants.MonthsPerYear)
		if c.Defaults.EndDate == "" {
			c.Defaults.EndDate = end
		}
		if c.Defaults.StartDate == "" {
			c.Defaults.StartDate = start
			if offset, err := datetime.OffsetDate(c.Defaults.EndDate, -constants.MonthsPerYear); err == nil {
				c.Defaults.StartDate = offset
			}
		}
	}
	if c.Defaults.RandomCount <= 0 {
		c.Defaults.RandomCount = constants.DefaultRandomTickers
	}
}

// ValidateConfiguration performs general validation of the configuration and returns warnings
func (c *Configuration) ValidateConfiguration() []string {
	var warnings []string

	if strings.TrimSpace(c.Service.URL) == "" {
		warnings = append(warnings, "service.url is not set; only offline normalization is available")
	}
	if !c.Normalization.AssumeAnnualized && c.Normalization.AnnualizationFactor <= 0 {
		warnings = append(warnings, fmt.Sprintf("normalization.annualizationFactor %v is not positive; %v will be used",
			c.Normalization.AnnualizationFactor, constants.DefaultAnnualizationFactor))
	}
	if before, err := datetime.DateBeforeDate(c.Defaults.StartDate, c.Defaults.EndDate); err != nil {
		warnings = append(warnings, fmt.Sprintf("default date window is invalid: %v", err))
	} else if !before {
		warnings = append(warnings, fmt.Sprintf("default start date %s is not before end date %s",
			c.Defaults.StartDate, c.Defaults.EndDate))
	}
	if len(request.ParseTickers(strings.Join(c.Defaults.TickerPool, ","))) < constants.MinTickers {
		warnings = append(warnings, "defaults.tickerPool has fewer than two tickers; random portfolios are disabled")
	}

	return warnings
}

// NormalizeOptions returns the normalizer options.
func (c *Configuration) NormalizeOptions() normalize.Options {
	return normalize.Options{
		AnnualizationFactor: c.Normalization.AnnualizationFactor,
		AssumeAnnualized:    c.Normalization.AssumeAnnualized,
	}
}

// SeriesOptions returns the series builder options; showCML overrides the
// configured capital-market-line toggle when non-nil.
func (c *Configuration) SeriesOptions(showCML *bool) series.Options {
	opts := series.Options{
		ShowCapitalMarketLine: c.Chart.ShowCapitalMarketLine,
		RiskFreeRate:          c.Chart.RiskFreeRate,
	}
	if showCML != nil {
		opts.ShowCapitalMarketLine = *showCML
	}
	return opts
}

// ClientOptions returns the analytics client options.
func (c *Configuration) ClientOptions() client.Options {
	return client.Options{
		Endpoint: c.Service.URL,
		APIKey:   c.Service.APIKey,
		Timeout:  time.Duration(c.Service.TimeoutSeconds) * time.Second,
	}
}

// ApplyServiceFlags copies the configured computation flags onto req.
func (c *Configuration) ApplyServiceFlags(req client.Request) client.Request {
	if req.Points == 0 {
		req.Points = c.Service.Points
	}
	if req.Portfolios == 0 {
		req.Portfolios = c.Service.Portfolios
	}
	return req
}
