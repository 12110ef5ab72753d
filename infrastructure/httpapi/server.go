package httpapi

import (
	"encoding/json"
	stderrors "errors"
	"log/slog"
	"net/http"
	"strings"

	"channel-gateway/auth"
	"channel-gateway/dispatch"
	"channel-gateway/domain"
	"channel-gateway/errors"
	"channel-gateway/observability"
	"channel-gateway/services"

	"github.com/go-chi/chi/v5"
)

// Server is the HTTP surface of the gateway: the client-facing auth and
// websocket endpoints, the internal trigger endpoint and the admin gate.
type Server struct {
	log        *slog.Logger
	verifier   *auth.Verifier
	authorizer *auth.Authorizer
	dispatcher *dispatch.Dispatcher
	admin      *services.AdminService
	monitoring *observability.Monitoring
	handleWS   http.HandlerFunc
	appKey     string
	appSecret  []byte
}

func NewServer(
	log *slog.Logger,
	verifier *auth.Verifier,
	authorizer *auth.Authorizer,
	dispatcher *dispatch.Dispatcher,
	admin *services.AdminService,
	monitoring *observability.Monitoring,
	handleWS http.HandlerFunc,
	appKey string,
	appSecret []byte,
) *Server {
	return &Server{
		log:        log,
		verifier:   verifier,
		authorizer: authorizer,
		dispatcher: dispatcher,
		admin:      admin,
		monitoring: monitoring,
		handleWS:   handleWS,
		appKey:     appKey,
		appSecret:  appSecret,
	}
}

// Router assembles the chi router with the given middleware chain.
func (s *Server) Router(middlewares ...func(http.Handler) http.Handler) chi.Router {
	r := chi.NewRouter()

	for _, mw := range middlewares {
		r.Use(mw)
	}

	r.Get("/health", s.handleHealth)
	r.Get("/stats", s.handleStats)
	r.Get("/ws", s.handleWS)
	r.Post("/auth", s.handleAuth)
	r.With(s.triggerAuth).Post("/events", s.handleEvents)
	r.Post("/admin/roles", s.handleAdminRoles)

	return r
}

type authRequest struct {
	SocketID    string `json:"socket_id"`
	ChannelName string `json:"channel_name"`
}

// handleAuth issues a subscription grant. The session token travels in
// the Authorization header, never in the body.
func (s *Server) handleAuth(w http.ResponseWriter, r *http.Request) {
	defer r.Body.Close()

	principal, err := s.verifier.Verify(r.Context(), bearerToken(r))
	if err != nil {
		s.monitoring.IncrGrantsDenied()
		writeError(w, http.StatusUnauthorized, "invalid session")
		return
	}

	var req authRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.monitoring.IncrGrantsDenied()
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	grant, err := s.authorizer.Authorize(principal, domain.ChannelName(req.ChannelName), domain.SocketID(req.SocketID))
	if err != nil {
		s.monitoring.IncrGrantsDenied()
		switch {
		case stderrors.Is(err, errors.ErrInvalidChannel):
			writeError(w, http.StatusBadRequest, "invalid channel name")
		default:
			writeError(w, http.StatusUnauthorized, "unauthorized")
		}
		return
	}

	s.monitoring.IncrGrantsIssued()
	writeJSON(w, http.StatusOK, grant)
}

// handleEvents is the internal trigger endpoint: application logic
// pushes events here, never end-user clients. triggerAuth verified the
// body signature before this runs.
func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	defer r.Body.Close()

	var evt domain.Event
	if err := json.NewDecoder(r.Body).Decode(&evt); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	if err := s.dispatcher.Dispatch(r.Context(), evt); err != nil {
		var missing errors.MissingFieldError
		switch {
		case stderrors.As(err, &missing):
			writeError(w, http.StatusBadRequest, missing.Error())
		case stderrors.Is(err, errors.ErrTransportUnavailable):
			s.log.Error("Dispatch failed, transport unavailable", "channel", evt.Channel)
			writeError(w, http.StatusInternalServerError, "transport unavailable")
		default:
			writeError(w, http.StatusBadRequest, err.Error())
		}
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"ok": true})
}

type adminRolesRequest struct {
	auth.RoleGrantRequest
	Credential string `json:"credential"`
}

func (s *Server) handleAdminRoles(w http.ResponseWriter, r *http.Request) {
	defer r.Body.Close()

	var req adminRolesRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	token, err := s.admin.GrantRole(r.Context(), bearerToken(r), req.Credential, req.RoleGrantRequest)
	if err != nil {
		switch {
		case stderrors.Is(err, errors.ErrUnauthenticated):
			writeError(w, http.StatusUnauthorized, "invalid session")
		case stderrors.Is(err, errors.ErrForbidden):
			writeError(w, http.StatusForbidden, "forbidden")
		case stderrors.Is(err, errors.ErrTokenGeneration):
			writeError(w, http.StatusInternalServerError, "token generation failed")
		default:
			writeError(w, http.StatusBadRequest, err.Error())
		}
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"token": token})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":  "ok",
		"service": "channel-gateway",
	})
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.monitoring.Snapshot())
}

func bearerToken(r *http.Request) string {
	header := r.Header.Get("Authorization")
	if after, found := strings.CutPrefix(header, "Bearer "); found {
		return after
	}
	return ""
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}
