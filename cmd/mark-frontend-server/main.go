package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io/fs"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/lucasbaezmiranda/mark-frontend/internal/client"
	"github.com/lucasbaezmiranda/mark-frontend/internal/config"
	"github.com/lucasbaezmiranda/mark-frontend/internal/logging"
	"github.com/lucasbaezmiranda/mark-frontend/internal/server"
	"github.com/lucasbaezmiranda/mark-frontend/pkg/constants"
)

// version is set at build time with -ldflags "-X main.version=...".
var version = "dev"

const shutdownTimeout = 10 * time.Second

func main() {
	configLocation := flag.String("config", constants.DefaultConfigFile, "path to application configuration file")
	serverConfigLocation := flag.String("server-config", constants.DefaultServerConfigFile, "path to server configuration file")
	address := flag.String("address", "", "listen address override, e.g. :8080")
	maxUploadSize := flag.String("max-upload-size", "", "maximum raw response upload size override, e.g. 2M")
	logLevel := flag.String("log-level", "", "log level override (debug, info, warn, error)")
	flag.Parse()

	configPath := *configLocation
	if _, err := os.Stat(configPath); errors.Is(err, fs.ErrNotExist) && !flagSet("config") {
		configPath = ""
	}
	conf, err := config.LoadConfiguration(configPath)
	if err != nil {
		fmt.Printf("{\"op\": \"main\", \"level\": \"fatal\", \"msg\": \"failed to load configuration at %s\", \"error\": %q}\n", *configLocation, err.Error())
		os.Exit(1)
	}

	serverConf, err := server.LoadConfig(*serverConfigLocation)
	if err != nil {
		fmt.Printf("{\"op\": \"main\", \"level\": \"fatal\", \"msg\": \"failed to load server configuration at %s\", \"error\": %q}\n", *serverConfigLocation, err.Error())
		os.Exit(1)
	}

	// Server logging settings take precedence over the application ones.
	loggingConf := conf.Logging
	if serverConf.Logging != (config.LoggingConfig{}) {
		loggingConf = serverConf.Logging
	}
	logger, err := logging.New(loggingConf, *logLevel)
	if err != nil {
		fmt.Printf("{\"op\": \"main\", \"level\": \"fatal\", \"msg\": \"failed to initialize logger\", \"error\": %q}\n", err.Error())
		os.Exit(1)
	}
	defer func() {
		_ = logger.Sync()
	}()

	if *address != "" {
		serverConf.Address = *address
	}
	if *maxUploadSize != "" {
		size, err := server.ParseSize(*maxUploadSize)
		if err != nil {
			logger.Fatal("invalid max upload size",
				zap.String("op", "main"),
				zap.Error(err),
			)
		}
		serverConf.SetUploadSizeBytes(size)
	}

	for _, warning := range conf.ValidateConfiguration() {
		logger.Warn("Configuration warning: "+warning,
			zap.String("op", "main"),
		)
	}

	opts := server.Options{
		Logger:         logger,
		App:            conf,
		MaxUploadSize:  serverConf.UploadSizeBytes(),
		AllowedOrigins: serverConf.AllowedOrigins,
		RequestTimeout: serverConf.Timeout(),
		Version:        version,
	}
	if conf.Service.URL != "" {
		c, err := client.New(logger, conf.ClientOptions())
		if err != nil {
			logger.Fatal("failed to create analytics client",
				zap.String("op", "main"),
				zap.Error(err),
			)
		}
		opts.Analyzer = c
	}

	srv := &http.Server{
		Addr:              serverConf.Address,
		Handler:           server.NewHandler(opts),
		ReadHeaderTimeout: 15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("failed to start server",
				zap.String("op", "main"),
				zap.Error(err),
			)
		}
	}()

	logger.Info("server started",
		zap.String("op", "main"),
		zap.String("address", serverConf.Address),
		zap.Bool("serviceConfigured", opts.Analyzer != nil),
		zap.String("version", version),
	)

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down server", zap.String("op", "main"))

	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		logger.Error("server forced to shutdown",
			zap.String("op", "main"),
			zap.Error(err),
		)
	}

	logger.Info("server stopped", zap.String("op", "main"))
}

func flagSet(name string) bool {
	set := false
	flag.Visit(func(f *flag.Flag) {
		if f.Name == name {
			set = true
		}
	})
	return set
}
