// Package tools executes function calls requested by the live model.
package tools

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"livemic/internal/domain"
	"livemic/internal/metrics"
)

// Handler runs one tool invocation. A nil response is reported as {"result":"ok"}.
type Handler func(ctx context.Context, args map[string]any) (map[string]any, error)

type entry struct {
	declaration domain.ToolDeclaration
	handler     Handler
}

// Registry maps tool names to handlers. Dispatch never fails: every call
// produces a result with the call's id.
type Registry struct {
	logger  *slog.Logger
	metrics *metrics.Metrics

	mu    sync.RWMutex
	tools map[string]entry
}

func NewRegistry(logger *slog.Logger, m *metrics.Metrics) *Registry {
	if logger == nil {
		logger = slog.Default()
	}
	return &Registry{logger: logger, metrics: m, tools: make(map[string]entry)}
}

// Register adds a tool. Registering the same name twice is an error.
func (r *Registry) Register(declaration domain.ToolDeclaration, handler Handler) error {
	if declaration.Name == "" {
		return fmt.Errorf("tool name is required")
	}
	if handler == nil {
		return fmt.Errorf("tool %q has no handler", declaration.Name)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.tools[declaration.Name]; exists {
		return fmt.Errorf("tool %q already registered", declaration.Name)
	}
	r.tools[declaration.Name] = entry{declaration: declaration, handler: handler}
	return nil
}

// Declarations returns every registered tool sorted by name.
func (r *Registry) Declarations() []domain.ToolDeclaration {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]domain.ToolDeclaration, 0, len(r.tools))
	for _, e := range r.tools {
		out = append(out, e.declaration)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// Dispatch executes call synchronously. Unknown tools acknowledge with
// {"result":"ok"}; handler errors and panics become {"status":"error"} payloads.
func (r *Registry) Dispatch(ctx context.Context, call domain.ToolCall) domain.ToolResult {
	result := domain.ToolResult{ID: call.ID, Name: call.Name}

	r.mu.RLock()
	e, ok := r.tools[call.Name]
	r.mu.RUnlock()
	if !ok {
		r.logger.Info("acknowledging unregistered tool", "tool", call.Name, "id", call.ID)
		r.metrics.ToolCall(call.Name, "unregistered", 0)
		result.Response = map[string]any{"result": "ok"}
		return result
	}

	started := time.Now()
	response, err := invoke(ctx, e.handler, call.Args)
	elapsed := time.Since(started)
	if err != nil {
		r.logger.Warn("tool call failed", "tool", call.Name, "id", call.ID, "error", err)
		r.metrics.ToolCall(call.Name, "error", elapsed)
		result.Response = map[string]any{"status": "error", "error": err.Error()}
		return result
	}

	r.metrics.ToolCall(call.Name, "ok", elapsed)
	if response == nil {
		response = map[string]any{"result": "ok"}
	}
	result.Response = response
	return result
}

func invoke(ctx context.Context, handler Handler, args map[string]any) (response map[string]any, err error) {
	defer func() {
		if recovered := recover(); recovered != nil {
			response = nil
			err = fmt.Errorf("tool panicked: %v", recovered)
		}
	}()
	if args == nil {
		args = map[string]any{}
	}
	return handler(ctx, args)
}
