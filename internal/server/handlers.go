package server

import (
	"net/http"
	"time"

	"github.com/abczzz13/unprotect"
	"github.com/abczzz13/unprotect/internal/settings"
)

// ClientAddressResponse is returned by GET /v1/client-address.
type ClientAddressResponse struct {
	ClientAddress string `json:"client_address"`
	Source        string `json:"source"`
}

// AccessResponse is returned by GET /v1/access.
type AccessResponse struct {
	Bypass        bool   `json:"bypass"`
	Reason        string `json:"reason"`
	ClientAddress string `json:"client_address,omitempty"`
	MatchedEntry  string `json:"matched_entry,omitempty"`
}

// SettingsResponse is returned by the settings endpoints.
type SettingsResponse struct {
	unprotect.Options
	Revision  string     `json:"revision,omitempty"`
	UpdatedAt *time.Time `json:"updated_at,omitempty"`
}

// ValidateResponse is returned by POST /v1/settings/validate.
type ValidateResponse struct {
	Valid       bool     `json:"valid"`
	Entries     []string `json:"entries"`
	IPv6Entries []string `json:"ipv6_entries,omitempty"`
}

func (s *Server) health(w http.ResponseWriter, _ *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) clientAddress(w http.ResponseWriter, r *http.Request) {
	res := s.policy.Resolver().ResolveRequest(r)
	respondJSON(w, http.StatusOK, ClientAddressResponse{
		ClientAddress: res.String(),
		Source:        res.Source,
	})
}

func (s *Server) access(w http.ResponseWriter, r *http.Request) {
	d, ok := DecisionFromContext(r.Context())
	if !ok {
		respondError(w, http.StatusInternalServerError, CodeInternal, "no decision in context")
		return
	}
	respondJSON(w, http.StatusOK, AccessResponse{
		Bypass:        d.Bypass,
		Reason:        d.Reason,
		ClientAddress: d.ClientAddress,
		MatchedEntry:  d.MatchedEntry,
	})
}

func (s *Server) getSettings(w http.ResponseWriter, r *http.Request) {
	rec, err := s.settings.Get(r.Context())
	if err != nil {
		s.handleError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, settingsResponse(rec))
}

func (s *Server) putSettings(w http.ResponseWriter, r *http.Request) {
	var opts unprotect.Options
	if err := decodeJSON(w, r, &opts); err != nil {
		s.handleError(w, r, err)
		return
	}

	rec, err := s.settings.Update(r.Context(), opts)
	if err != nil {
		s.handleError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, settingsResponse(rec))
}

func (s *Server) validateSettings(w http.ResponseWriter, r *http.Request) {
	var opts unprotect.Options
	if err := decodeJSON(w, r, &opts); err != nil {
		s.handleError(w, r, err)
		return
	}

	cfg, err := s.settings.Validate(opts)
	if err != nil {
		s.handleError(w, r, err)
		return
	}

	entries := []string(cfg.AllowList)
	if entries == nil {
		entries = []string{}
	}
	respondJSON(w, http.StatusOK, ValidateResponse{
		Valid:       true,
		Entries:     entries,
		IPv6Entries: cfg.AllowList.IPv6Entries(),
	})
}

func settingsResponse(rec *settings.Record) SettingsResponse {
	resp := SettingsResponse{Options: rec.Options, Revision: rec.Revision}
	if !rec.UpdatedAt.IsZero() {
		t := rec.UpdatedAt
		resp.UpdatedAt = &t
	}
	return resp
}
