// Package service contains the business logic.
//
// It sits between the handler and repository layers: it receives validated payloads
// from the handlers, assigns identifiers, calls the store and publishes change events.
package service

import (
	"github.com/MarkBenjamins/NHL-Stenden-RestAPI/internal/lib/job"
	"github.com/MarkBenjamins/NHL-Stenden-RestAPI/internal/repository"
	"github.com/MarkBenjamins/NHL-Stenden-RestAPI/internal/server"
)

type Services struct {
	Auth    *AuthService
	Records *RecordService
	Job     *job.JobService
}

func NewService(s *server.Server, repos *repository.Repositories) (*Services, error) {
	authService := NewAuthService(s)

	var publisher Publisher
	if s.Job != nil {
		publisher = s.Job
	}

	return &Services{
		Job:     s.Job,
		Auth:    authService,
		Records: NewRecordService(repos.Records, s.Metrics, publisher),
	}, nil
}
