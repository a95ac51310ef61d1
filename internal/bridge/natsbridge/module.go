// Package natsbridge serves the calculator binding as NATS request-reply
// services so that clients in any language with a NATS library can call it.
package natsbridge

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/go-monolith/mono"
	"github.com/go-monolith/mono/pkg/helper"
	"go.uber.org/zap"

	"github.com/meandmytram/pybind-example/internal/binding"
	"github.com/meandmytram/pybind-example/internal/calculator"
)

// Module exposes the bound Calculator methods as request-reply services.
// The framework prefixes service names with "services.<module>.", so "add"
// is reachable at "services.calculator.add".
type Module struct {
	mod    *binding.Module
	logger *zap.Logger
}

// Compile-time interface checks.
var (
	_ mono.Module                = (*Module)(nil)
	_ mono.ServiceProviderModule = (*Module)(nil)
)

// NewModule wraps mod. A nil logger discards output.
func NewModule(mod *binding.Module, logger *zap.Logger) *Module {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Module{mod: mod, logger: logger.With(zap.String("module", mod.Name()))}
}

// Name returns the module name, which is also the subject prefix.
func (m *Module) Name() string {
	return m.mod.Name()
}

// RegisterServices registers one request-reply service per bound method.
func (m *Module) RegisterServices(container mono.ServiceContainer) error {
	for _, method := range []string{calculator.MethodAdd, calculator.MethodSubtract} {
		if err := helper.RegisterTypedRequestReplyService(
			container, method, json.Unmarshal, json.Marshal, m.handler(method),
		); err != nil {
			return fmt.Errorf("failed to register %s service: %w", method, err)
		}
		m.logger.Info("registered service", zap.String("subject", Subject(m.Name(), method)))
	}
	return nil
}

// Start initializes the module.
func (m *Module) Start(_ context.Context) error {
	m.logger.Info("module started")
	return nil
}

// Stop gracefully stops the module.
func (m *Module) Stop(_ context.Context) error {
	m.logger.Info("module stopped")
	return nil
}

// Subject returns the NATS subject a service is reachable at.
func Subject(module, method string) string {
	return "services." + module + "." + method
}
