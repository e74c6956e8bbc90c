package service

import (
	"github.com/MarkBenjamins/NHL-Stenden-RestAPI/internal/server"
	"github.com/clerk/clerk-sdk-go/v2"
)

// AuthService configures the Clerk SDK with the secret key from config. The SDK keeps
// the key globally; the auth middleware verifies tokens with it.
type AuthService struct {
	server  *server.Server
	enabled bool
}

func NewAuthService(s *server.Server) *AuthService {
	enabled := s.Config.Auth.Enabled()
	if enabled {
		clerk.SetKey(s.Config.Auth.SecretKey)
	}
	return &AuthService{
		server:  s,
		enabled: enabled,
	}
}

// Enabled reports whether mutating routes require a session token.
func (a *AuthService) Enabled() bool {
	return a.enabled
}
