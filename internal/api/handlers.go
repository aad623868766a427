// HTTP handlers for the LeadLine endpoints.
package api

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/leadline/leadline/internal/models"
)

// webhookHandler receives one carrier delivery (POST /webhook/sms) and
// returns the acknowledgment the carrier relays to the sender. It always
// answers 200 with valid TwiML for parseable requests; pipeline failures are
// absorbed upstream so a carrier retry storm is never provoked.
func (s *Server) webhookHandler(w http.ResponseWriter, r *http.Request) {
	if r.Body != nil {
		defer r.Body.Close()
	}
	slog.Debug("Server.webhookHandler: processing carrier delivery", "method", r.Method, "path", r.URL.Path)
	if r.Method != http.MethodPost {
		w.Header().Set("Allow", http.MethodPost)
		slog.Warn("Server.webhookHandler: method not allowed", "method", r.Method)
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	if err := r.ParseForm(); err != nil {
		slog.Warn("Server.webhookHandler: failed to parse form", "error", err)
		writeJSONResponse(w, http.StatusBadRequest, models.Error("Invalid form payload"))
		return
	}

	if s.validator != nil && !s.validSignature(r) {
		slog.Warn("Server.webhookHandler: signature validation failed", "remote_addr", r.RemoteAddr)
		writeJSONResponse(w, http.StatusForbidden, models.Error("Invalid signature"))
		return
	}

	delivery := models.InboundDelivery{
		From:       r.PostFormValue("From"),
		To:         r.PostFormValue("To"),
		Body:       r.PostFormValue("Body"),
		MessageSID: r.PostFormValue("MessageSid"),
	}

	ack := s.pipeline.Process(r.Context(), delivery)
	writeTwiML(w, ack)
}

// validSignature checks the X-Twilio-Signature header against the request as
// the carrier would have signed it, using the configured public base URL.
func (s *Server) validSignature(r *http.Request) bool {
	params := make(map[string]string, len(r.PostForm))
	for key, values := range r.PostForm {
		if len(values) > 0 {
			params[key] = values[0]
		}
	}
	url := s.publicURL + r.URL.RequestURI()
	return s.validator.Validate(url, params, r.Header.Get("X-Twilio-Signature"))
}

// healthHandler reports service liveness (GET /health).
func (s *Server) healthHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.Header().Set("Allow", http.MethodGet)
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	healthData := map[string]interface{}{
		"status":         "healthy",
		"timestamp":      time.Now().UTC().Format(time.RFC3339),
		"uptime_seconds": int(time.Since(s.startedAt).Seconds()),
		"record_store":   s.store != nil,
	}
	writeJSONResponse(w, http.StatusOK, healthData)
}

// leadsHandler returns all lead records (GET /leads).
func (s *Server) leadsHandler(w http.ResponseWriter, r *http.Request) {
	slog.Debug("Server.leadsHandler: processing leads request", "method", r.Method, "path", r.URL.Path)
	if r.Method != http.MethodGet {
		w.Header().Set("Allow", http.MethodGet)
		slog.Warn("Server.leadsHandler: method not allowed", "method", r.Method)
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	if s.store == nil {
		writeJSONResponse(w, http.StatusServiceUnavailable, models.Error("Record store not configured"))
		return
	}

	leads, err := s.store.ListLeads()
	if err != nil {
		slog.Error("Server.leadsHandler: failed to list leads", "error", err)
		writeJSONResponse(w, http.StatusInternalServerError, models.Error("Failed to fetch leads"))
		return
	}
	slog.Debug("Server.leadsHandler: leads fetched", "count", len(leads))
	writeJSONResponse(w, http.StatusOK, models.Success(leads))
}

// messagesHandler returns message records (GET /messages), optionally
// filtered with ?lead_id=.
func (s *Server) messagesHandler(w http.ResponseWriter, r *http.Request) {
	slog.Debug("Server.messagesHandler: processing messages request", "method", r.Method, "path", r.URL.Path)
	if r.Method != http.MethodGet {
		w.Header().Set("Allow", http.MethodGet)
		slog.Warn("Server.messagesHandler: method not allowed", "method", r.Method)
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	if s.store == nil {
		writeJSONResponse(w, http.StatusServiceUnavailable, models.Error("Record store not configured"))
		return
	}

	var (
		messages []models.Message
		err      error
	)
	if leadID := r.URL.Query().Get("lead_id"); leadID != "" {
		messages, err = s.store.ListMessagesByLead(leadID)
	} else {
		messages, err = s.store.ListMessages()
	}
	if err != nil {
		slog.Error("Server.messagesHandler: failed to list messages", "error", err)
		writeJSONResponse(w, http.StatusInternalServerError, models.Error("Failed to fetch messages"))
		return
	}
	slog.Debug("Server.messagesHandler: messages fetched", "count", len(messages))
	writeJSONResponse(w, http.StatusOK, models.Success(messages))
}
