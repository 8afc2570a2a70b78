package controllers

import (
	"net/http"

	"github.com/rzbill/driftq/internal/runtime"
)

// ControllerRegistry manages all HTTP controllers.
type ControllerRegistry struct {
	general *GeneralController
	queues  *QueuesController
}

// NewControllerRegistry initializes all controllers with the provided runtime.
func NewControllerRegistry(rt *runtime.Runtime) *ControllerRegistry {
	return &ControllerRegistry{
		general: NewGeneralController(rt),
		queues:  NewQueuesController(rt),
	}
}

// RegisterAllRoutes registers every controller's routes with the given mux.
func (r *ControllerRegistry) RegisterAllRoutes(mux *http.ServeMux) {
	r.general.RegisterRoutes(mux)
	r.queues.RegisterRoutes(mux)
}
