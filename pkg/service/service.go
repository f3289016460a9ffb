// Package service is the mock data layer. Every call waits a simulated
// latency before touching the repositories.
package service

import (
	"docuquery/pkg/storage"
	"docuquery/pkg/store"
)

// Config collects the tunables of all services.
type Config struct {
	Latency   Latency
	Simulator SimulatorConfig
	Documents DocumentOptions
}

// Services bundles the resource accessors over one store.
type Services struct {
	Documents  *DocumentService
	Ingestions *IngestionService
	Users      *UserService
	QA         *QAService
	Dashboard  *DashboardService
	Simulator  *Simulator
}

// New wires every service to st. objects may be nil. The simulator is not started.
func New(st store.Store, objects storage.ObjectStore, cfg Config) *Services {
	ingestions := NewIngestionService(st, st, cfg.Latency)
	return &Services{
		Documents:  NewDocumentService(st, ingestions, objects, cfg.Latency, cfg.Documents),
		Ingestions: ingestions,
		Users:      NewUserService(st, cfg.Latency),
		QA:         NewQAService(st, st, cfg.Latency),
		Dashboard:  NewDashboardService(st, st, cfg.Latency),
		Simulator:  NewSimulator(ingestions, cfg.Simulator),
	}
}
