package protocol

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"

	"go.uber.org/zap"

	"github.com/rail-service/crosschain_orchestrator/internal/domain/entities"
	"github.com/rail-service/crosschain_orchestrator/internal/infrastructure/adapters/apiclient"
)

// Adapter executes actions against one protocol family
type Adapter interface {
	Execute(ctx context.Context, req *entities.ProtocolActionRequest) (*entities.ProtocolActionResult, error)
}

// Registry dispatches protocol actions to the adapter registered for the protocol name
type Registry struct {
	mu       sync.RWMutex
	adapters map[string]Adapter
	logger   *zap.Logger
}

func NewRegistry(logger *zap.Logger) *Registry {
	return &Registry{adapters: make(map[string]Adapter), logger: logger}
}

// Register binds an adapter to a protocol name, replacing any previous binding
func (r *Registry) Register(name string, adapter Adapter) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.adapters[strings.ToLower(name)] = adapter
}

// Protocols returns the registered protocol names in sorted order
func (r *Registry) Protocols() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.adapters))
	for name := range r.adapters {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func (r *Registry) Execute(ctx context.Context, req *entities.ProtocolActionRequest) (*entities.ProtocolActionResult, error) {
	r.mu.RLock()
	adapter, ok := r.adapters[strings.ToLower(req.Protocol)]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("no adapter registered for protocol %q", req.Protocol)
	}

	result, err := adapter.Execute(ctx, req)
	if err != nil {
		r.logger.Error("Protocol action failed",
			zap.String("operation_id", req.OperationID.String()),
			zap.String("protocol", req.Protocol),
			zap.String("action", req.Action),
			zap.Error(err))
		return nil, err
	}

	r.logger.Info("Protocol action executed",
		zap.String("operation_id", req.OperationID.String()),
		zap.String("protocol", req.Protocol),
		zap.String("action", req.Action),
		zap.String("tx_hash", result.TransactionHash))
	return result, nil
}

// HTTPAdapter executes actions through a protocol service's REST API
type HTTPAdapter struct {
	api *apiclient.Client
}

func NewHTTPAdapter(config apiclient.Config, logger *zap.Logger) *HTTPAdapter {
	return &HTTPAdapter{api: apiclient.New(config, logger)}
}

func (a *HTTPAdapter) Execute(ctx context.Context, req *entities.ProtocolActionRequest) (*entities.ProtocolActionResult, error) {
	var result entities.ProtocolActionResult
	if err := a.api.Post(ctx, "/v1/actions", req, &result); err != nil {
		return nil, fmt.Errorf("%s %s: %w", req.Protocol, req.Action, err)
	}
	if result.TransactionHash == "" {
		return nil, fmt.Errorf("%s %s: response has no transaction hash", req.Protocol, req.Action)
	}
	if result.OutputToken == "" {
		result.OutputToken = req.OutputToken
	}
	return &result, nil
}
