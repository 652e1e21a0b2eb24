package main

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/urfave/cli/v3"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/nixls/nixls"
	"github.com/nixls/nixls/analysis"
	"github.com/nixls/nixls/docs"
	"github.com/nixls/nixls/module"
)

// env is the state shared by every command: configuration, the file
// registry and the process-wide builtin and documentation caches.
type env struct {
	cfg      *nixls.Config
	logger   *zap.Logger
	registry *module.Registry
	builtins *analysis.Builtins
	docs     *docs.Aggregate
	resolver *analysis.Resolver
}

func newEnv(ctx context.Context, cmd *cli.Command) (*env, error) {
	logger, err := newLogger(cmd.String("log-level"))
	if err != nil {
		return nil, err
	}

	cfg, err := loadConfig(cmd.String("config"))
	if err != nil {
		return nil, err
	}

	var interp analysis.Interpreter

	exec, err := analysis.NewExecInterpreter(cfg.Interpreter.Command)
	if err != nil {
		logger.Warn("Interpreter disabled, builtins fall back to names only", zap.Error(err))
	} else {
		interp = exec
	}

	index, err := docs.LoadSources(ctx, cfg.Docs, logger)
	if err != nil {
		// Failed sources were logged; the rest are served.
		logger.Debug("Documentation sources incomplete", zap.Error(err))
	}

	registry := module.NewRegistry(logger)
	builtins := analysis.NewBuiltins(interp, cfg.Interpreter, logger)

	return &env{
		cfg:      cfg,
		logger:   logger,
		registry: registry,
		builtins: builtins,
		docs:     index,
		resolver: analysis.NewResolver(registry, builtins, logger),
	}, nil
}

// newLogger builds a development logger on stderr; stdout carries the
// protocol when serving.
func newLogger(level string) (*zap.Logger, error) {
	lvl, err := zapcore.ParseLevel(level)
	if err != nil {
		return nil, fmt.Errorf("--log-level: %w", err)
	}

	config := zap.NewDevelopmentConfig()
	config.OutputPaths = []string{"stderr"}
	config.ErrorOutputPaths = []string{"stderr"}
	config.Level = zap.NewAtomicLevelAt(lvl)

	return config.Build()
}

// loadConfig reads path, or the nearest config above the working directory
// when path is empty. A missing config yields the defaults.
func loadConfig(path string) (*nixls.Config, error) {
	if path != "" {
		return nixls.LoadConfigFile(path)
	}

	wd, err := os.Getwd()
	if err != nil {
		return nil, err
	}

	cfg, err := nixls.LoadConfig(wd)
	if errors.Is(err, nixls.ErrConfigNotFound) {
		return nixls.DefaultConfig(), nil
	}

	return cfg, err
}
