package api

import (
	"crypto/hmac"
	"crypto/sha1"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sort"
	"strings"
	"testing"

	"github.com/leadline/leadline/internal/compliance"
	"github.com/leadline/leadline/internal/dedup"
	"github.com/leadline/leadline/internal/models"
	"github.com/leadline/leadline/internal/pipeline"
	"github.com/leadline/leadline/internal/store"
)

func newTestServer(t *testing.T, options ...Option) (*Server, *store.InMemoryStore) {
	t.Helper()
	st := store.NewInMemoryStore()
	if _, err := st.CreateLead(models.Lead{Phone: "+15551234567", Name: "Jordan", Status: models.LeadStatusNew}); err != nil {
		t.Fatalf("seed lead failed: %v", err)
	}
	orch := pipeline.New(dedup.NewSeenCache(100), st, nil)
	return NewServer(orch, st, options...), st
}

func postWebhook(t *testing.T, s *Server, form url.Values, header map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/webhook/sms", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	for key, value := range header {
		req.Header.Set(key, value)
	}
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)
	return rec
}

func inboundForm(body, sid string) url.Values {
	return url.Values{
		"From":       {"+15551234567"},
		"To":         {"+15550009999"},
		"Body":       {body},
		"MessageSid": {sid},
	}
}

func TestWebhookHelpFlow(t *testing.T) {
	s, st := newTestServer(t)

	rec := postWebhook(t, s, inboundForm("HELP", "SM100"), nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if ct := rec.Header().Get("Content-Type"); ct != "text/xml" {
		t.Errorf("Content-Type = %q, want text/xml", ct)
	}
	if !strings.Contains(rec.Body.String(), compliance.HelpText) {
		t.Errorf("acknowledgment should carry the help text, got: %s", rec.Body.String())
	}

	messages, _ := st.ListMessages()
	if len(messages) != 1 {
		t.Errorf("expected one persisted message, got %d", len(messages))
	}
}

func TestWebhookStopIsSilent(t *testing.T) {
	s, st := newTestServer(t)

	rec := postWebhook(t, s, inboundForm("STOP", "SM101"), nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if strings.Contains(rec.Body.String(), "<Message>") {
		t.Errorf("STOP acknowledgment must carry no reply body, got: %s", rec.Body.String())
	}

	lead, err := st.FindLeadByPhone("+15551234567")
	if err != nil || lead == nil {
		t.Fatalf("lead lookup failed: %v", err)
	}
	if !lead.OptedOut {
		t.Error("STOP must set the opt-out flag")
	}
}

func TestWebhookDuplicateDelivery(t *testing.T) {
	s, st := newTestServer(t)

	first := postWebhook(t, s, inboundForm("hello", "SM102"), nil)
	second := postWebhook(t, s, inboundForm("hello", "SM102"), nil)
	if first.Code != http.StatusOK || second.Code != http.StatusOK {
		t.Fatalf("both deliveries must be acknowledged, got %d and %d", first.Code, second.Code)
	}

	messages, _ := st.ListMessages()
	if len(messages) != 1 {
		t.Errorf("duplicate delivery must not persist twice, got %d messages", len(messages))
	}
}

func TestWebhookMalformedDeliveryStillAcknowledged(t *testing.T) {
	s, st := newTestServer(t)

	rec := postWebhook(t, s, url.Values{"Body": {"hello"}}, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "<Response>") {
		t.Errorf("expected valid TwiML, got: %s", rec.Body.String())
	}
	messages, _ := st.ListMessages()
	if len(messages) != 0 {
		t.Errorf("malformed delivery must not persist, got %d messages", len(messages))
	}
}

func TestWebhookMethodNotAllowed(t *testing.T) {
	s, _ := newTestServer(t)

	req := httptest.NewRequest(http.MethodGet, "/webhook/sms", nil)
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)
	if rec.Code != http.StatusMethodNotAllowed {
		t.Errorf("status = %d, want 405", rec.Code)
	}
}

// twilioSign reproduces the carrier's request signature: base64 HMAC-SHA1 of
// the URL with the sorted form parameters concatenated as key+value.
func twilioSign(authToken, fullURL string, form url.Values) string {
	keys := make([]string, 0, len(form))
	for key := range form {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	payload := fullURL
	for _, key := range keys {
		payload += key + form.Get(key)
	}
	mac := hmac.New(sha1.New, []byte(authToken))
	mac.Write([]byte(payload))
	return base64.StdEncoding.EncodeToString(mac.Sum(nil))
}

func TestWebhookSignatureValidation(t *testing.T) {
	const authToken = "secret-token"
	const publicURL = "https://leads.example.com"
	s, _ := newTestServer(t, WithSignatureValidation(authToken, publicURL))

	form := inboundForm("HELP", "SM103")

	rec := postWebhook(t, s, form, nil)
	if rec.Code != http.StatusForbidden {
		t.Errorf("unsigned request status = %d, want 403", rec.Code)
	}

	rec = postWebhook(t, s, form, map[string]string{"X-Twilio-Signature": "bogus"})
	if rec.Code != http.StatusForbidden {
		t.Errorf("badly signed request status = %d, want 403", rec.Code)
	}

	signature := twilioSign(authToken, publicURL+"/webhook/sms", form)
	rec = postWebhook(t, s, form, map[string]string{"X-Twilio-Signature": signature})
	if rec.Code != http.StatusOK {
		t.Errorf("correctly signed request status = %d, want 200, body: %s", rec.Code, rec.Body.String())
	}
}

func TestHealthHandler(t *testing.T) {
	s, _ := newTestServer(t)

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}

	var health map[string]interface{}
	if err := json.Unmarshal(rec.Body.Bytes(), &health); err != nil {
		t.Fatalf("failed to decode health response: %v", err)
	}
	if health["status"] != "healthy" {
		t.Errorf("status field = %v, want healthy", health["status"])
	}
	if health["record_store"] != true {
		t.Errorf("record_store field = %v, want true", health["record_store"])
	}
}

func TestLeadsHandler(t *testing.T) {
	s, _ := newTestServer(t)

	req := httptest.NewRequest(http.MethodGet, "/leads", nil)
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}

	var resp models.APIResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if resp.Status != "ok" {
		t.Errorf("envelope status = %q, want ok", resp.Status)
	}
	leads, ok := resp.Result.([]interface{})
	if !ok || len(leads) != 1 {
		t.Errorf("expected one lead in result, got %v", resp.Result)
	}
}

func TestMessagesHandlerFiltersByLead(t *testing.T) {
	s, st := newTestServer(t)
	postWebhook(t, s, inboundForm("hello there", "SM104"), nil)

	lead, err := st.FindLeadByPhone("+15551234567")
	if err != nil || lead == nil {
		t.Fatalf("lead lookup failed: %v", err)
	}

	req := httptest.NewRequest(http.MethodGet, "/messages?lead_id="+lead.ID, nil)
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}

	var resp models.APIResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	messages, ok := resp.Result.([]interface{})
	if !ok || len(messages) != 1 {
		t.Fatalf("expected one message in result, got %v", resp.Result)
	}

	req = httptest.NewRequest(http.MethodGet, "/messages?lead_id=lead_missing", nil)
	rec = httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Errorf("unknown lead filter status = %d, want 200 with empty result", rec.Code)
	}
}

func TestListEndpointsWithoutStore(t *testing.T) {
	orch := pipeline.New(dedup.NewSeenCache(100), nil, nil)
	s := NewServer(orch, nil)

	for _, path := range []string{"/leads", "/messages"} {
		req := httptest.NewRequest(http.MethodGet, path, nil)
		rec := httptest.NewRecorder()
		s.Handler().ServeHTTP(rec, req)
		if rec.Code != http.StatusServiceUnavailable {
			t.Errorf("%s without store status = %d, want 503", path, rec.Code)
		}
	}

	// The webhook itself still acknowledges while degraded.
	rec := postWebhook(t, s, inboundForm("hello", "SM105"), nil)
	if rec.Code != http.StatusOK {
		t.Errorf("degraded webhook status = %d, want 200", rec.Code)
	}
}
