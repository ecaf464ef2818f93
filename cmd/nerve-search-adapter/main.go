// Command nerve-search-adapter connects to the NERVE core over a Unix
// domain socket and serves its search queries through a delegated engine.
//
// It makes exactly one connection attempt and exits non-zero the moment the
// connection fails, is lost, or the stream turns malformed. Exit code 0
// means a requested, clean shutdown (SIGINT/SIGTERM).
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"nerve-search-adapter/client"
	"nerve-search-adapter/config"
	"nerve-search-adapter/middleware"
	"nerve-search-adapter/search"
)

func main() {
	var (
		configPath = flag.String("config", "", "path to JSON config file")
		socketPath = flag.String("socket", "", "core socket path (overrides config)")
	)
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	if *socketPath != "" {
		cfg.SocketPath = *socketPath
	}

	logger, err := newLogger(cfg.LogLevel)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	defer logger.Sync()

	engine, err := buildEngine(cfg)
	if err != nil {
		logger.Fatal("engine setup failed", zap.Error(err))
	}
	handler, err := buildHandler(cfg, engine, logger)
	if err != nil {
		logger.Fatal("handler setup failed", zap.Error(err))
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	logger.Info("starting nerve-search-adapter",
		zap.String("socket", cfg.SocketPath),
		zap.String("engine", cfg.Engine.Kind))

	cli := client.New(client.Config{SocketPath: cfg.SocketPath}, handler, logger)
	if err := cli.Run(ctx); err != nil {
		logger.Fatal("connection terminated", zap.Error(err))
	}
	logger.Info("shutdown complete")
}

func newLogger(level string) (*zap.Logger, error) {
	lvl, err := zapcore.ParseLevel(level)
	if err != nil {
		return nil, fmt.Errorf("invalid log level %q: %w", level, err)
	}
	zcfg := zap.NewProductionConfig()
	zcfg.Level = zap.NewAtomicLevelAt(lvl)
	return zcfg.Build()
}

func buildEngine(cfg *config.Config) (search.Engine, error) {
	switch cfg.Engine.Kind {
	case "http":
		return search.NewHTTPEngine(cfg.Engine.URL), nil
	case "corpus":
		if cfg.Engine.CorpusPath != "" {
			return search.NewCorpusEngineFromFile(cfg.Engine.CorpusPath)
		}
		return search.NewCorpusEngine(nil), nil
	default:
		return nil, fmt.Errorf("unknown engine kind %q", cfg.Engine.Kind)
	}
}

// buildHandler wraps the engine in the configured middleware chain. Recovery
// sits innermost so an engine panic is caught before anything else sees it.
func buildHandler(cfg *config.Config, engine search.Engine, logger *zap.Logger) (search.HandlerFunc, error) {
	mws := []middleware.Middleware{middleware.Logging(logger)}
	if cfg.Engine.RateLimit > 0 {
		burst := cfg.Engine.RateBurst
		if burst <= 0 {
			burst = 1
		}
		mws = append(mws, middleware.RateLimit(cfg.Engine.RateLimit, burst))
	}
	timeout, err := cfg.Engine.TimeoutDuration()
	if err != nil {
		return nil, err
	}
	if timeout > 0 {
		mws = append(mws, middleware.Timeout(timeout))
	}
	mws = append(mws, middleware.Recovery(logger))
	return middleware.Chain(mws...)(search.EngineHandler(engine)), nil
}
