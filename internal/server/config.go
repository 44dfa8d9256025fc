package server

import (
	"errors"
	"fmt"
	"io/fs"
	"math"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/lucasbaezmiranda/mark-frontend/internal/config"
	"github.com/lucasbaezmiranda/mark-frontend/pkg/constants"
)

const defaultRequestTimeout = 60 * time.Second

// Config is the listener side of mark-frontend-server: where it binds, how
// large a pasted analytics response may be, which origins may call the API,
// and how long one API request may take.
type Config struct {
	Address         string               `yaml:"address"`
	MaxUploadSize   string               `yaml:"maxUploadSize"`
	AllowedOrigins  []string             `yaml:"allowedOrigins"`
	RequestTimeout  string               `yaml:"requestTimeout"`
	Logging         config.LoggingConfig `yaml:"logging"`
	uploadSizeBytes int64
	requestTimeout  time.Duration
}

// sizeUnits maps upload size suffixes to byte multipliers.
var sizeUnits = map[string]int64{
	"":   1,
	"B":  1,
	"K":  1 << 10,
	"KB": 1 << 10,
	"M":  1 << 20,
	"MB": 1 << 20,
	"G":  1 << 30,
	"GB": 1 << 30,
}

func defaultConfig() *Config {
	return &Config{
		Address:         constants.DefaultServerAddress,
		MaxUploadSize:   strconv.FormatInt(constants.DefaultMaxUploadSizeBytes, 10),
		AllowedOrigins:  []string{"*"},
		uploadSizeBytes: constants.DefaultMaxUploadSizeBytes,
		requestTimeout:  defaultRequestTimeout,
	}
}

// LoadConfig reads the listener settings from a YAML file. An empty path or
// a file that is not there yields the built-in listener settings.
func LoadConfig(path string) (*Config, error) {
	cfg := defaultConfig()
	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	switch {
	case errors.Is(err, fs.ErrNotExist):
		return cfg, nil
	case err != nil:
		return nil, fmt.Errorf("unable to read listener settings %s: %w", path, err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("listener settings %s are not valid YAML: %w", path, err)
	}
	if err := cfg.resolve(); err != nil {
		return nil, fmt.Errorf("listener settings %s: %w", path, err)
	}
	return cfg, nil
}

// UploadSizeBytes is the largest request body /api/normalize and /api/export accept.
func (c *Config) UploadSizeBytes() int64 {
	return c.uploadSizeBytes
}

// Timeout returns how long a single API request may run.
func (c *Config) Timeout() time.Duration {
	return c.requestTimeout
}

// SetUploadSizeBytes applies the -max-upload-size flag; non-positive sizes
// leave the file setting in place.
func (c *Config) SetUploadSizeBytes(size int64) {
	if size <= 0 {
		return
	}
	c.uploadSizeBytes = size
	c.MaxUploadSize = strconv.FormatInt(size, 10)
}

// resolve turns the textual YAML fields into their typed forms.
func (c *Config) resolve() error {
	if strings.TrimSpace(c.Address) == "" {
		c.Address = constants.DefaultServerAddress
	}
	if len(c.AllowedOrigins) == 0 {
		c.AllowedOrigins = []string{"*"}
	}

	c.requestTimeout = defaultRequestTimeout
	if raw := strings.TrimSpace(c.RequestTimeout); raw != "" {
		d, err := time.ParseDuration(raw)
		if err != nil {
			return fmt.Errorf("requestTimeout %q is not a duration like 45s: %w", c.RequestTimeout, err)
		}
		if d > 0 {
			c.requestTimeout = d
		}
	}

	size, err := ParseSize(c.MaxUploadSize)
	if err != nil {
		return fmt.Errorf("maxUploadSize: %w", err)
	}
	if size <= 0 {
		size = constants.DefaultMaxUploadSizeBytes
	}
	c.uploadSizeBytes = size
	c.MaxUploadSize = strconv.FormatInt(size, 10)
	return nil
}

// ParseSize reads an upload limit such as "512", "256K" or "2MB" (binary
// multiples, case-insensitive). An empty value means the default limit.
func ParseSize(value string) (int64, error) {
	text := strings.ToUpper(strings.TrimSpace(value))
	if text == "" {
		return constants.DefaultMaxUploadSizeBytes, nil
	}

	split := strings.IndexFunc(text, func(r rune) bool { return r < '0' || r > '9' })
	if split == -1 {
		split = len(text)
	}
	digits, suffix := text[:split], strings.TrimSpace(text[split:])
	if digits == "" {
		return 0, fmt.Errorf("size %q does not start with a number", value)
	}

	multiplier, ok := sizeUnits[suffix]
	if !ok {
		return 0, fmt.Errorf("size %q has unknown unit %q (use B, K, M or G)", value, suffix)
	}
	n, err := strconv.ParseInt(digits, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("size %q: %w", value, err)
	}
	if n > math.MaxInt64/multiplier {
		return 0, fmt.Errorf("size %q does not fit in 64 bits", value)
	}
	return n * multiplier, nil
}
