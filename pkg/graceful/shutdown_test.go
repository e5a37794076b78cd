package graceful

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
)

func TestShutdown_ReverseOrder(t *testing.T) {
	sm := NewShutdownManager(nil, zap.NewNop())

	var order []string
	record := func(name string, err error) ShutdownFunc {
		return func(time.Duration) error {
			order = append(order, name)
			return err
		}
	}
	sm.Register("database", record("database", nil))
	sm.Register("reconciler", record("reconciler", errors.New("timeout")))
	sm.Register("cleanup", record("cleanup", nil))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	sm.WaitForShutdown(ctx)

	assert.Equal(t, []string{"cleanup", "reconciler", "database"}, order)
}
