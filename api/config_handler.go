package api

import (
	"net/http"

	"github.com/seenimoa/tickersent/internal/config"
)

// ConfigResponse is the JSON envelope returned by GET /api/v1/config.
type ConfigResponse struct {
	Config  config.Config         `json:"config"`
	Secrets []config.SecretStatus `json:"secrets"`
}

// handleGetConfig returns the running configuration with secrets blanked.
// Their status is reported separately, masked.
func (s *Server) handleGetConfig(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, APIResponse{
		Success: true,
		Data: ConfigResponse{
			Config:  redact(s.cfg),
			Secrets: config.CheckSecrets(s.cfg),
		},
	})
}

// handleGetConfigKeys returns the status of the configured secrets.
func (s *Server) handleGetConfigKeys(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, APIResponse{
		Success: true,
		Data:    config.CheckSecrets(s.cfg),
	})
}

// redact returns a copy of cfg without secrets.
func redact(cfg *config.Config) config.Config {
	out := *cfg
	out.Provider.AuthToken = ""
	out.Store.DSN = ""
	return out
}
