// Package handler is the HTTP layer behind the router.
//
// It binds and validates requests through the shared pipeline in base.go, calls the
// service layer and writes the responses.
package handler

import (
	"github.com/MarkBenjamins/NHL-Stenden-RestAPI/internal/entity"
	"github.com/MarkBenjamins/NHL-Stenden-RestAPI/internal/repository"
	"github.com/MarkBenjamins/NHL-Stenden-RestAPI/internal/server"
	"github.com/MarkBenjamins/NHL-Stenden-RestAPI/internal/service"
)

// Handlers groups all HTTP handlers.
type Handlers struct {
	Health *HealthHandler

	// Records holds one handler per entity family, in entity.All order.
	Records []*RecordHandler
}

func NewHandlers(s *server.Server, repos *repository.Repositories, services *service.Services) *Handlers {
	records := make([]*RecordHandler, 0, len(entity.All()))
	for _, d := range entity.All() {
		records = append(records, NewRecordHandler(s, d, services.Records))
	}

	return &Handlers{
		Health:  NewHealthHandler(s, repos.Records),
		Records: records,
	}
}
