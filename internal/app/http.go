package app

import (
	"bufio"
	"context"
	"crypto/rand"
	"crypto/subtle"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"missioncontrol/api/internal/auth"
	"missioncontrol/api/internal/config"
	"missioncontrol/api/internal/event"
	"missioncontrol/api/internal/ledger"
	"missioncontrol/api/internal/rbac"
	"missioncontrol/api/internal/realtime"
	"missioncontrol/api/internal/search"
	"missioncontrol/api/internal/store"
)

const maxEventBytes = 1 << 20

type HTTPServer struct {
	service *Service
	cfg     config.Config
	feed    *realtime.FeedServer
	checks  map[string]func(context.Context) error
}

// NewHTTPServer serves the API. feed may be nil, in which case /api/feed is 404.
func NewHTTPServer(service *Service, cfg config.Config, feed *realtime.FeedServer) *HTTPServer {
	return &HTTPServer{service: service, cfg: cfg, feed: feed, checks: map[string]func(context.Context) error{}}
}

// AddReadinessCheck adds a dependency probe to /api/ready.
func (s *HTTPServer) AddReadinessCheck(name string, check func(context.Context) error) {
	s.checks[name] = check
}

func (s *HTTPServer) Handler() http.Handler {
	return s.withMiddleware(http.HandlerFunc(s.handle))
}

func (s *HTTPServer) handle(w http.ResponseWriter, r *http.Request) {
	if r.Method == http.MethodOptions {
		writeJSON(w, http.StatusNoContent, map[string]any{})
		return
	}

	if (r.Method == http.MethodGet || r.Method == http.MethodHead) && r.URL.Path == "/api/health" {
		writeJSON(w, http.StatusOK, map[string]any{"ok": true})
		return
	}

	if (r.Method == http.MethodGet || r.Method == http.MethodHead) && r.URL.Path == "/api/ready" {
		s.handleReady(w, r)
		return
	}

	if r.Method == http.MethodPost && r.URL.Path == "/api/events" {
		s.handleEvent(w, r)
		return
	}

	if r.Method == http.MethodGet && r.URL.Path == "/api/feed" {
		s.handleFeed(w, r)
		return
	}

	if r.Method == http.MethodGet && r.URL.Path == "/api/search" {
		principal, ok := s.requirePrincipal(w, r, rbac.ActionRead)
		if !ok {
			return
		}
		team, ok := s.requireTeam(w, principal, teamParam(r, principal))
		if !ok {
			return
		}
		limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
		offset, _ := strconv.Atoi(r.URL.Query().Get("offset"))
		resp := s.service.Search(r.Context(), search.Query{
			Text:     r.URL.Query().Get("q"),
			TeamID:   team,
			OwnerID:  r.URL.Query().Get("owner"),
			OnlyOpen: r.URL.Query().Get("open") == "true",
			Limit:    limit,
			Offset:   offset,
		})
		writeJSON(w, http.StatusOK, resp)
		return
	}

	if r.Method == http.MethodPost && r.URL.Path == "/api/credits" {
		s.handleCredit(w, r)
		return
	}

	if r.Method == http.MethodPost && r.URL.Path == "/api/corrections" {
		s.handleCorrection(w, r)
		return
	}

	if r.Method == http.MethodGet && r.URL.Path == "/api/audit" {
		if _, ok := s.requirePrincipal(w, r, rbac.ActionRead); !ok {
			return
		}
		drifts, err := s.service.Audit(r.Context())
		if err != nil {
			s.fail(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"consistent": len(drifts) == 0, "drift": drifts})
		return
	}

	parts := splitPath(r.URL.Path)
	if len(parts) >= 2 && parts[0] == "api" && parts[1] == "entities" {
		s.handleEntities(w, r, parts[2:])
		return
	}

	if len(parts) == 4 && parts[0] == "api" && parts[1] == "teams" {
		s.handleTeam(w, r, parts[2], parts[3])
		return
	}

	writeError(w, http.StatusNotFound, "NOT_FOUND", "Route not found", nil)
}

func (s *HTTPServer) handleReady(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	status := "ready"
	statusCode := http.StatusOK
	checks := map[string]any{
		"database": map[string]any{"status": "ok"},
	}
	if err := s.service.Ping(ctx); err != nil {
		status = "not_ready"
		statusCode = http.StatusServiceUnavailable
		checks["database"] = map[string]any{"status": "error", "error": err.Error()}
	}
	for name, check := range s.checks {
		if err := check(ctx); err != nil {
			status = "not_ready"
			statusCode = http.StatusServiceUnavailable
			checks[name] = map[string]any{"status": "error", "error": err.Error()}
			continue
		}
		checks[name] = map[string]any{"status": "ok"}
	}

	writeJSON(w, statusCode, map[string]any{
		"ok":     status == "ready",
		"status": status,
		"checks": checks,
	})
}

// handleEvent accepts tracker webhooks (shared secret) and operator-issued
// events (bearer token with write access).
func (s *HTTPServer) handleEvent(w http.ResponseWriter, r *http.Request) {
	principal, ok := s.eventPrincipal(w, r)
	if !ok {
		return
	}
	raw, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxEventBytes))
	if err != nil {
		writeError(w, http.StatusRequestEntityTooLarge, "VALIDATION_ERROR", "Event body too large", nil)
		return
	}
	result, err := s.service.IngestPayload(r.Context(), principal, raw)
	if err != nil {
		s.fail(w, err)
		return
	}
	status := http.StatusOK
	if result.Outcome == OutcomeCreated {
		status = http.StatusCreated
	}
	writeJSON(w, status, result)
}

func (s *HTTPServer) eventPrincipal(w http.ResponseWriter, r *http.Request) (Principal, bool) {
	if secret := r.Header.Get("X-Webhook-Secret"); secret != "" {
		if s.cfg.WebhookSecret == "" || subtle.ConstantTimeCompare([]byte(secret), []byte(s.cfg.WebhookSecret)) != 1 {
			writeError(w, http.StatusUnauthorized, "UNAUTHORIZED", "Invalid webhook secret", nil)
			return Principal{}, false
		}
		return trackerPrincipal, true
	}
	return s.requirePrincipal(w, r, rbac.ActionWrite)
}

func (s *HTTPServer) handleFeed(w http.ResponseWriter, r *http.Request) {
	if s.feed == nil {
		writeError(w, http.StatusNotFound, "NOT_FOUND", "Realtime feed not enabled", nil)
		return
	}
	// Browsers cannot set headers on websocket upgrades.
	if r.Header.Get("Authorization") == "" && r.URL.Query().Get("token") != "" {
		r.Header.Set("Authorization", "Bearer "+r.URL.Query().Get("token"))
	}
	principal, ok := s.requirePrincipal(w, r, rbac.ActionRead)
	if !ok {
		return
	}
	team, ok := s.requireTeam(w, principal, teamParam(r, principal))
	if !ok {
		return
	}
	s.feed.Serve(w, r, team)
}

func (s *HTTPServer) handleEntities(w http.ResponseWriter, r *http.Request, parts []string) {
	if len(parts) == 0 {
		if r.Method != http.MethodGet {
			writeError(w, http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED", "Method not allowed", nil)
			return
		}
		principal, ok := s.requirePrincipal(w, r, rbac.ActionRead)
		if !ok {
			return
		}
		team, ok := s.requireTeam(w, principal, teamParam(r, principal))
		if !ok {
			return
		}
		entities, err := s.service.Snapshot(r.Context(), team)
		if err != nil {
			s.fail(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"entities": entities})
		return
	}

	entityID := parts[0]
	if len(parts) == 1 {
		switch r.Method {
		case http.MethodGet:
			principal, ok := s.requirePrincipal(w, r, rbac.ActionRead)
			if !ok {
				return
			}
			entity, err := s.service.Entity(r.Context(), entityID)
			if err != nil {
				s.fail(w, err)
				return
			}
			if _, ok := s.requireTeam(w, principal, entity.TeamID); !ok {
				return
			}
			writeJSON(w, http.StatusOK, entity)
		case http.MethodPatch:
			principal, ok := s.requirePrincipal(w, r, rbac.ActionWrite)
			if !ok || !s.requireEntityTeam(w, r, principal, entityID) {
				return
			}
			var body EditInput
			if err := decodeBody(r, &body); err != nil {
				writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
				return
			}
			s.respond(w, func() (Result, error) { return s.service.Edit(r.Context(), entityID, body) })
		case http.MethodDelete:
			principal, ok := s.requirePrincipal(w, r, rbac.ActionWrite)
			if !ok || !s.requireEntityTeam(w, r, principal, entityID) {
				return
			}
			privileged := r.URL.Query().Get("privileged") == "true"
			s.respond(w, func() (Result, error) {
				return s.service.Delete(r.Context(), principal, event.Target{EntityID: entityID}, privileged)
			})
		default:
			writeError(w, http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED", "Method not allowed", nil)
		}
		return
	}

	if len(parts) != 2 || r.Method != http.MethodPost {
		writeError(w, http.StatusNotFound, "NOT_FOUND", "Route not found", nil)
		return
	}
	principal, ok := s.requirePrincipal(w, r, rbac.ActionWrite)
	if !ok || !s.requireEntityTeam(w, r, principal, entityID) {
		return
	}
	target := event.Target{EntityID: entityID}

	switch parts[1] {
	case "reassign":
		var body struct {
			NewOwner string `json:"newOwner"`
		}
		if err := decodeBody(r, &body); err != nil {
			writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
			return
		}
		s.respond(w, func() (Result, error) { return s.service.Reassign(r.Context(), target, body.NewOwner) })
	case "complete":
		s.respond(w, func() (Result, error) { return s.service.Complete(r.Context(), target) })
	case "seen":
		var body struct {
			Viewer string `json:"viewer"`
		}
		if err := decodeBody(r, &body); err != nil {
			writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
			return
		}
		if body.Viewer == "" {
			body.Viewer = principal.ID
		}
		s.respond(w, func() (Result, error) { return s.service.MarkSeen(r.Context(), entityID, body.Viewer) })
	default:
		writeError(w, http.StatusNotFound, "NOT_FOUND", "Route not found", nil)
	}
}

func (s *HTTPServer) handleCredit(w http.ResponseWriter, r *http.Request) {
	principal, ok := s.requirePrincipal(w, r, rbac.ActionCredit)
	if !ok {
		return
	}
	var body struct {
		TeamID   string `json:"teamId"`
		PayeeID  string `json:"payeeId"`
		SourceID string `json:"sourceId"`
		Label    string `json:"label"`
		Points   int    `json:"points"`
	}
	if err := decodeBody(r, &body); err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
		return
	}
	if body.TeamID == "" {
		body.TeamID = principal.TeamID
	}
	if _, ok := s.requireTeam(w, principal, body.TeamID); !ok {
		return
	}
	credit, err := s.service.Credit(r.Context(), ledger.Credit{
		TeamID:   body.TeamID,
		PayeeID:  body.PayeeID,
		SourceID: body.SourceID,
		Label:    body.Label,
		Points:   body.Points,
	})
	if err != nil {
		s.fail(w, err)
		return
	}
	status := http.StatusCreated
	if credit.Outcome != store.CreditApplied.String() {
		status = http.StatusOK
	}
	writeJSON(w, status, credit)
}

func (s *HTTPServer) handleCorrection(w http.ResponseWriter, r *http.Request) {
	principal, ok := s.requirePrincipal(w, r, rbac.ActionCorrect)
	if !ok {
		return
	}
	var body struct {
		TeamID string `json:"teamId"`
		Delta  int    `json:"delta"`
		Label  string `json:"label"`
	}
	if err := decodeBody(r, &body); err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
		return
	}
	if body.TeamID == "" {
		body.TeamID = principal.TeamID
	}
	if _, ok := s.requireTeam(w, principal, body.TeamID); !ok {
		return
	}
	correction, err := s.service.Correct(r.Context(), principal, body.TeamID, body.Delta, body.Label)
	if err != nil {
		s.fail(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, correction)
}

func (s *HTTPServer) handleTeam(w http.ResponseWriter, r *http.Request, teamID, resource string) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED", "Method not allowed", nil)
		return
	}
	principal, ok := s.requirePrincipal(w, r, rbac.ActionRead)
	if !ok {
		return
	}
	if _, ok := s.requireTeam(w, principal, teamID); !ok {
		return
	}
	switch resource {
	case "balance":
		balance, err := s.service.Balance(r.Context(), teamID)
		if err != nil {
			s.fail(w, err)
			return
		}
		writeJSON(w, http.StatusOK, balance)
	case "transactions":
		limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
		txns, err := s.service.Transactions(r.Context(), teamID, limit)
		if err != nil {
			s.fail(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"transactions": txns})
	default:
		writeError(w, http.StatusNotFound, "NOT_FOUND", "Route not found", nil)
	}
}

func (s *HTTPServer) respond(w http.ResponseWriter, op func() (Result, error)) {
	result, err := op()
	if err != nil {
		s.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (s *HTTPServer) fail(w http.ResponseWriter, err error) {
	status, code, message, details := mapError(err)
	if status >= http.StatusInternalServerError {
		log.Printf("request failed: %v", err)
	}
	writeError(w, status, code, message, details)
}

func (s *HTTPServer) requirePrincipal(w http.ResponseWriter, r *http.Request, action rbac.Action) (Principal, bool) {
	token, err := auth.BearerToken(r.Header.Get("Authorization"))
	if err != nil {
		writeError(w, http.StatusUnauthorized, "UNAUTHORIZED", "Unauthorized", nil)
		return Principal{}, false
	}
	claims, err := auth.Parse([]byte(s.cfg.TokenSecret), token)
	if err != nil {
		writeError(w, http.StatusUnauthorized, "UNAUTHORIZED", "Unauthorized", nil)
		return Principal{}, false
	}
	principal := Principal{
		ID:     claims.Sub,
		Name:   claims.Name,
		Role:   rbac.Normalize(claims.Role),
		TeamID: claims.Team,
	}
	if principal.TeamID == "" {
		principal.TeamID = s.service.DefaultTeamID()
	}
	if !rbac.Can(principal.Role, action) {
		writeError(w, http.StatusForbidden, "FORBIDDEN", "Forbidden", map[string]any{"action": action})
		return Principal{}, false
	}
	return principal, true
}

// requireTeam writes 403 unless principal may access teamID.
func (s *HTTPServer) requireTeam(w http.ResponseWriter, principal Principal, teamID string) (string, bool) {
	if !principal.CanAccessTeam(teamID) {
		writeError(w, http.StatusForbidden, "FORBIDDEN", "Team not accessible", map[string]any{"teamId": teamID})
		return "", false
	}
	return teamID, true
}

func (s *HTTPServer) requireEntityTeam(w http.ResponseWriter, r *http.Request, principal Principal, entityID string) bool {
	if principal.Role == rbac.RoleAdmin {
		return true
	}
	entity, err := s.service.Entity(r.Context(), entityID)
	if err != nil {
		s.fail(w, err)
		return false
	}
	_, ok := s.requireTeam(w, principal, entity.TeamID)
	return ok
}

func teamParam(r *http.Request, principal Principal) string {
	if team := r.URL.Query().Get("team"); team != "" {
		return team
	}
	return principal.TeamID
}

func (s *HTTPServer) withMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID := r.Header.Get("X-Request-ID")
		if requestID == "" {
			requestID = randomRequestID()
		}
		ctx := context.WithValue(r.Context(), requestIDKey{}, requestID)
		r = r.WithContext(ctx)

		started := time.Now()
		writer := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		setCORSHeaders(writer.Header(), s.cfg.CORSOrigin)
		writer.Header().Set("X-Request-ID", requestID)

		next.ServeHTTP(writer, r)

		log.Printf(`{"request_id":"%s","method":"%s","path":"%s","status":%d,"duration_ms":%d}`,
			requestID,
			r.Method,
			r.URL.Path,
			writer.status,
			time.Since(started).Milliseconds(),
		)
	})
}

type requestIDKey struct{}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

// Hijack lets the websocket upgrader take over the connection.
func (r *statusRecorder) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	hijacker, ok := r.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, errors.New("response writer does not support hijacking")
	}
	r.status = http.StatusSwitchingProtocols
	return hijacker.Hijack()
}

func randomRequestID() string {
	buf := make([]byte, 8)
	_, _ = rand.Read(buf)
	return hex.EncodeToString(buf)
}

func setCORSHeaders(header http.Header, corsOrigin string) {
	header.Set("Access-Control-Allow-Origin", corsOrigin)
	header.Set("Access-Control-Allow-Headers", "Content-Type, Authorization, X-Request-ID, X-Webhook-Secret")
	header.Set("Access-Control-Allow-Methods", "GET,POST,PATCH,DELETE,OPTIONS")
	header.Set("Cache-Control", "no-store")
	header.Set("Content-Type", "application/json")
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, code, message string, details any) {
	response := map[string]any{
		"code":  code,
		"error": message,
	}
	if details != nil {
		response["details"] = details
	}
	writeJSON(w, status, response)
}

func decodeBody(r *http.Request, target any) error {
	if r.Body == nil {
		return nil
	}
	defer r.Body.Close()
	decoder := json.NewDecoder(r.Body)
	if err := decoder.Decode(target); err != nil {
		if errors.Is(err, io.EOF) || errors.Is(err, http.ErrBodyReadAfterClose) {
			return nil
		}
		return fmt.Errorf("invalid JSON body")
	}
	return nil
}

func splitPath(path string) []string {
	trimmed := strings.Trim(path, "/")
	if trimmed == "" {
		return nil
	}
	return strings.Split(trimmed, "/")
}

func mapError(err error) (status int, code, message string, details any) {
	var domainErr *DomainError
	if errors.As(err, &domainErr) {
		return domainErr.Status, domainErr.Code, domainErr.Message, domainErr.Details
	}
	if errors.Is(err, auth.ErrInvalidToken) || errors.Is(err, auth.ErrExpiredToken) || errors.Is(err, auth.ErrMissingToken) {
		return http.StatusUnauthorized, "UNAUTHORIZED", "Unauthorized", nil
	}
	return http.StatusInternalServerError, "SERVER_ERROR", "Server error", nil
}
