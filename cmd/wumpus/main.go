package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

const (
	exitError       = 1
	exitFailed      = 2
	exitInterrupted = 130
)

var errChannelsFailed = errors.New("some channels failed to archive")

func exitCode(err error) int {
	switch {
	case err == nil:
		return 0
	case errors.Is(err, context.Canceled):
		return exitInterrupted
	case errors.Is(err, errChannelsFailed):
		return exitFailed
	default:
		return exitError
	}
}

// shouldLogError filters out errors that are a consequence of shutting down.
func shouldLogError(err error) bool {
	return err != nil && !errors.Is(err, context.Canceled)
}

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	lcf := zap.NewDevelopmentConfig() // to later switch level without reallocation
	lcf.Level.SetLevel(zapcore.InfoLevel)
	lcf.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	lcf.DisableCaller = true
	log, _ := lcf.Build()
	defer func() { _ = log.Sync() }()

	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		log.Sugar().Warnf("Couldn't load .env file: %s.", err)
	}

	err := newRootCommand(ctx, lcf, log).ExecuteContext(ctx)
	if shouldLogError(err) {
		log.Sugar().Errorf("%s.", err)
	}
	code := exitCode(err)
	if code != 0 {
		_ = log.Sync()
		os.Exit(code)
	}
}
