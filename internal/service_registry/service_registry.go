package service_registry

import (
	"errors"
	"fmt"
	"time"

	"github.com/dataguardian/agent/internal/alerting"
	"github.com/dataguardian/agent/internal/config"
	"github.com/dataguardian/agent/internal/ledger"
	"github.com/dataguardian/agent/internal/services"
	"github.com/dataguardian/agent/internal/store"
	"github.com/dataguardian/agent/pkg/notify"
	"github.com/dataguardian/agent/pkg/procio"
	"github.com/rs/zerolog"
)

// Service is the interface for the daemon's long-lived services.
type Service interface {
	Start() error
	Stop() error
}

// ServiceRegistry manages the lifecycle of the daemon's services.
type ServiceRegistry struct {
	services    map[string]Service // Stores registered services
	serviceKeys []string           // Maintains order of service registration
	Logger      zerolog.Logger
}

// NewServiceRegistry initializes a new service registry.
func NewServiceRegistry(logger zerolog.Logger) *ServiceRegistry {
	return &ServiceRegistry{
		services: make(map[string]Service),
		Logger:   logger,
	}
}

// RegisterService adds a new service to the registry.
func (sr *ServiceRegistry) RegisterService(name string, svc Service) {
	if _, exists := sr.services[name]; exists {
		sr.Logger.Warn().Msgf("Service %s is already registered", name)
		return
	}
	sr.services[name] = svc
	sr.serviceKeys = append(sr.serviceKeys, name)
	sr.Logger.Info().Msgf("Registered service: %s", name)
}

// StartServices initiates all registered services in order.
// If a service fails to start, it stops already started services.
func (sr *ServiceRegistry) StartServices() error {
	startedServices := []string{}

	for _, name := range sr.serviceKeys {
		svc := sr.services[name]
		sr.Logger.Info().Msgf("Starting service: %s", name)
		if err := svc.Start(); err != nil {
			sr.Logger.Error().Err(err).Msgf("Failed to start service: %s", name)

			// Stop already started services before returning
			sr.Logger.Warn().Msg("Stopping already started services due to startup failure...")
			for i := len(startedServices) - 1; i >= 0; i-- {
				_ = sr.services[startedServices[i]].Stop()
			}
			return err
		}
		startedServices = append(startedServices, name)
	}

	return nil
}

// StopServices stops all services in reverse order.
func (sr *ServiceRegistry) StopServices() error {
	var stopErrors []error
	for i := len(sr.serviceKeys) - 1; i >= 0; i-- {
		name := sr.serviceKeys[i]
		if err := sr.services[name].Stop(); err != nil {
			stopErrors = append(stopErrors, fmt.Errorf("failed to stop %s: %w", name, err))
		}
	}
	if len(stopErrors) > 0 {
		for _, e := range stopErrors {
			sr.Logger.Error().Err(e).Msg("Service stop failure")
		}
		return errors.Join(stopErrors...)
	}
	return nil
}

// RegisterServices wires and registers the persistence and monitor
// services around one shared ledger. Persistence is registered first:
// services stop in reverse order, so the monitor stops before the
// drain flush and the final snapshot sees every merged cycle.
func (sr *ServiceRegistry) RegisterServices(settings *config.Settings, usageLedger *ledger.Ledger,
	snapshotStore *store.Store, collector procio.Collector, notifier notify.Notifier) {

	sr.RegisterService("persistence", services.NewPersistenceService(
		time.Duration(settings.PersistenceIntervalSeconds)*time.Second,
		usageLedger,
		snapshotStore,
		sr.Logger,
	))

	sr.RegisterService("monitor", services.NewMonitorService(
		time.Duration(settings.CheckIntervalSeconds)*time.Second,
		collector,
		usageLedger,
		alerting.NewEngine(settings.DataLimit),
		notifier,
		sr.Logger,
	))
}
