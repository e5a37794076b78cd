package graceful

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"
)

const defaultTimeout = 30 * time.Second

type Shutdowner interface {
	Shutdown(timeout time.Duration) error
}

// ShutdownFunc adapts a plain function to Shutdowner
type ShutdownFunc func(timeout time.Duration) error

func (f ShutdownFunc) Shutdown(timeout time.Duration) error { return f(timeout) }

// ShutdownManager stops registered components in reverse registration order, then the HTTP server
type ShutdownManager struct {
	server      *http.Server
	shutdowners []namedShutdowner
	timeout     time.Duration
	logger      *zap.Logger
}

type namedShutdowner struct {
	name string
	Shutdowner
}

func NewShutdownManager(server *http.Server, logger *zap.Logger) *ShutdownManager {
	return &ShutdownManager{server: server, timeout: defaultTimeout, logger: logger}
}

func (sm *ShutdownManager) Register(name string, s Shutdowner) {
	sm.shutdowners = append(sm.shutdowners, namedShutdowner{name: name, Shutdowner: s})
}

// WaitForShutdown blocks until SIGINT/SIGTERM or ctx is done, then shuts everything down
func (sm *ShutdownManager) WaitForShutdown(ctx context.Context) {
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(quit)

	select {
	case sig := <-quit:
		sm.logger.Info("Shutting down gracefully", zap.String("signal", sig.String()))
	case <-ctx.Done():
		sm.logger.Info("Shutting down gracefully", zap.String("reason", "context done"))
	}
	sm.Shutdown()
}

func (sm *ShutdownManager) Shutdown() {
	ctx, cancel := context.WithTimeout(context.Background(), sm.timeout)
	defer cancel()

	if sm.server != nil {
		if err := sm.server.Shutdown(ctx); err != nil {
			sm.logger.Error("Server forced shutdown", zap.Error(err))
		}
	}

	for i := len(sm.shutdowners) - 1; i >= 0; i-- {
		s := sm.shutdowners[i]
		if err := s.Shutdown(sm.timeout); err != nil {
			sm.logger.Warn("Component shutdown error", zap.String("component", s.name), zap.Error(err))
		}
	}

	sm.logger.Info("Shutdown complete")
}
