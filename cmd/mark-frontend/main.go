package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"io/fs"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/lucasbaezmiranda/mark-frontend/internal/client"
	"github.com/lucasbaezmiranda/mark-frontend/internal/config"
	"github.com/lucasbaezmiranda/mark-frontend/internal/logging"
	"github.com/lucasbaezmiranda/mark-frontend/internal/normalize"
	"github.com/lucasbaezmiranda/mark-frontend/internal/series"
	"github.com/lucasbaezmiranda/mark-frontend/pkg/constants"
	"github.com/lucasbaezmiranda/mark-frontend/pkg/output"
	"github.com/lucasbaezmiranda/mark-frontend/pkg/validation"
)

// optionalBool is a boolean flag that remembers whether it was set.
type optionalBool struct {
	value *bool
}

func (o *optionalBool) String() string {
	if o == nil || o.value == nil {
		return ""
	}
	return strconv.FormatBool(*o.value)
}

func (o *optionalBool) Set(s string) error {
	v, err := strconv.ParseBool(s)
	if err != nil {
		return err
	}
	o.value = &v
	return nil
}

func (o *optionalBool) IsBoolFlag() bool { return true }

type options struct {
	configLocation string
	configSet      bool
	input          string
	outputFormat   string
	logLevel       string
	tickers        string
	start          string
	end            string
	pairs          bool
	cml            optionalBool
}

func parseFlags(args []string, stderr io.Writer) (*options, error) {
	opts := &options{}
	fset := flag.NewFlagSet("mark-frontend", flag.ContinueOnError)
	fset.SetOutput(stderr)
	fset.StringVar(&opts.configLocation, "config", constants.DefaultConfigFile, "path to configuration file")
	fset.StringVar(&opts.input, "input", "", "raw analytics response to normalize instead of calling the service (- for stdin)")
	fset.StringVar(&opts.outputFormat, "output-format", "", "type of output override: pretty, csv, json")
	fset.StringVar(&opts.logLevel, "log-level", "", "log level override (debug, info, warn, error)")
	fset.StringVar(&opts.tickers, "tickers", "", "comma separated tickers (defaults from configuration)")
	fset.StringVar(&opts.start, "start", "", "start date, YYYY-MM-DD")
	fset.StringVar(&opts.end, "end", "", "end date, YYYY-MM-DD")
	fset.BoolVar(&opts.pairs, "pairs", false, "request two-asset combination curves")
	fset.Var(&opts.cml, "cml", "draw the capital market line")
	if err := fset.Parse(args); err != nil {
		return nil, err
	}
	fset.Visit(func(f *flag.Flag) {
		if f.Name == "config" {
			opts.configSet = true
		}
	})
	return opts, nil
}

// loadConfiguration reads the configuration file. A missing default file
// falls back to defaults; a missing explicit file is an error.
func loadConfiguration(opts *options) (*config.Configuration, error) {
	path := opts.configLocation
	if !opts.configSet {
		if _, err := os.Stat(path); errors.Is(err, fs.ErrNotExist) {
			path = ""
		}
	}
	return config.LoadConfiguration(path)
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := run(ctx, os.Args[1:], os.Stdin, os.Stdout, os.Stderr)
	stop()
	if err != nil {
		if !errors.Is(err, flag.ErrHelp) {
			fmt.Fprintf(os.Stderr, "{\"op\": \"main\", \"level\": \"fatal\", \"msg\": %q}\n", err.Error())
		}
		os.Exit(1)
	}
}

func run(ctx context.Context, args []string, stdin io.Reader, stdout, stderr io.Writer) error {
	opts, err := parseFlags(args, stderr)
	if err != nil {
		return err
	}

	conf, err := loadConfiguration(opts)
	if err != nil {
		return fmt.Errorf("failed to load configuration at %s: %w", opts.configLocation, err)
	}

	logger, err := logging.New(conf.Logging, opts.logLevel)
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	defer func() {
		_ = logger.Sync()
	}()

	// Determine output format (CLI override takes precedence over config)
	outputFormat := conf.Output.Format
	if opts.outputFormat != "" {
		outputFormat = opts.outputFormat
	}
	if outputFormat == "" {
		outputFormat = constants.OutputFormatPretty
	}
	if err := validation.ValidateOutputFormat(outputFormat); err != nil {
		return err
	}

	for _, warning := range conf.ValidateConfiguration() {
		logger.Debug("Configuration warning: "+warning,
			zap.String("op", "main"),
		)
	}

	var raw normalize.Raw
	requestID := ""
	if opts.input != "" {
		raw, err = readRaw(opts.input, stdin)
		if err != nil {
			return err
		}
	} else {
		result, err := analyze(ctx, logger, conf, opts)
		if err != nil {
			return err
		}
		raw, requestID = result.Raw, result.RequestID
	}

	a, err := normalize.Normalize(raw, conf.NormalizeOptions())
	if err != nil {
		logger.Error("failed to normalize analytics response",
			zap.String("op", "main"),
			zap.String("kind", normalize.KindName(err)),
			zap.Error(err),
		)
		return err
	}

	report := output.NewReport(a, series.Build(a, conf.SeriesOptions(opts.cml.value)))
	report.RequestID = requestID
	for _, warning := range report.Warnings {
		logger.Warn(warning, zap.String("op", "main"))
	}

	return output.Write(stdout, outputFormat, report)
}

func readRaw(input string, stdin io.Reader) (normalize.Raw, error) {
	var data []byte
	var err error
	if input == "-" {
		data, err = io.ReadAll(stdin)
	} else {
		data, err = os.ReadFile(input)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read analytics response: %w", err)
	}
	return normalize.ParseResponse(data)
}

func analyze(ctx context.Context, logger *zap.Logger, conf *config.Configuration, opts *options) (*client.Result, error) {
	form := conf.Defaults.Form()
	if opts.tickers != "" {
		form.Tickers = opts.tickers
	}
	if opts.start != "" {
		form.StartDate = opts.start
	}
	if opts.end != "" {
		form.EndDate = opts.end
	}
	form.IncludePairs = opts.pairs

	req, err := form.Validate(time.Now())
	if err != nil {
		return nil, err
	}
	req = conf.ApplyServiceFlags(req)

	c, err := client.New(logger, conf.ClientOptions())
	if err != nil {
		return nil, fmt.Errorf("%w (set service.url or MARK_SERVICE_URL, or pass -input)", err)
	}

	logger.Info("requesting frontier",
		zap.String("op", "main"),
		zap.Strings("tickers", req.Tickers),
		zap.String("start", req.StartDate),
		zap.String("end", req.EndDate),
	)
	return c.Analyze(ctx, req)
}
