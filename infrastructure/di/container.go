package di

import (
	"bobbin-backend/application/ports"
	"bobbin-backend/application/services"
	"bobbin-backend/infrastructure/config"
	"bobbin-backend/interfaces/http/rest"
	"bobbin-backend/pkg/observability"

	"go.uber.org/zap"
)

// Container holds all application dependencies
type Container struct {
	Config  *config.Config
	Logger  *zap.Logger
	Store   ports.GraphStore
	Graph   *services.KnowledgeGraph
	Metrics *observability.Collector
	Router  *rest.Router
	// Watcher is nil unless domain config hot reload is enabled
	Watcher *config.DomainConfigWatcher
}
