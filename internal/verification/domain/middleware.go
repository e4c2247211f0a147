package domain

import (
	"context"
	"log/slog"
	"time"
)

// loggingService is the interface required for logging middleware.
type loggingService interface {
	SaveAPIKey(ctx context.Context, value string) error
	LoadAPIKey(ctx context.Context) (string, bool, error)
	StartAsync(ctx context.Context, in Input) (string, <-chan Outcome)
	CheckStatus(ctx context.Context, network, guid string) (string, error)
}

// LoggingMiddleware returns a service middleware that logs all operations.
func LoggingMiddleware(logger *slog.Logger) func(loggingService) *loggingMiddleware {
	return func(next loggingService) *loggingMiddleware {
		return &loggingMiddleware{
			next:   next,
			logger: logger,
		}
	}
}

type loggingMiddleware struct {
	next   loggingService
	logger *slog.Logger
}

func (m *loggingMiddleware) SaveAPIKey(ctx context.Context, value string) error {
	start := time.Now()
	err := m.next.SaveAPIKey(ctx, value)
	m.logger.Info("SaveAPIKey",
		"set", value != "",
		"duration", time.Since(start),
		"error", err,
	)
	return err
}

func (m *loggingMiddleware) LoadAPIKey(ctx context.Context) (string, bool, error) {
	start := time.Now()
	value, ok, err := m.next.LoadAPIKey(ctx)
	m.logger.Debug("LoadAPIKey",
		"found", ok,
		"duration", time.Since(start),
		"error", err,
	)
	return value, ok, err
}

// Start logs the accepted attempt immediately and its outcome once it finishes.
func (m *loggingMiddleware) Start(ctx context.Context, in Input) string {
	start := time.Now()
	id, done := m.next.StartAsync(ctx, in)
	m.logger.Info("Start",
		"attempt", id,
		"address", in.Address,
		"contract", in.ContractName,
	)

	go func() {
		out, ok := <-done
		if !ok {
			return
		}
		level := slog.LevelInfo
		if out.Err != nil {
			level = slog.LevelWarn
		}
		m.logger.Log(context.Background(), level, "attempt finished",
			"attempt", id,
			"address", in.Address,
			"contract", in.ContractName,
			"result", out.Text,
			"duration", time.Since(start),
			"error", out.Err,
		)
	}()

	return id
}

func (m *loggingMiddleware) CheckStatus(ctx context.Context, network, guid string) (string, error) {
	start := time.Now()
	text, err := m.next.CheckStatus(ctx, network, guid)
	m.logger.Info("CheckStatus",
		"network", network,
		"guid", guid,
		"result", text,
		"duration", time.Since(start),
		"error", err,
	)
	return text, err
}
