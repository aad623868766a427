// HTTP response helpers for the LeadLine API.
package api

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/twilio/twilio-go/twiml"

	"github.com/leadline/leadline/internal/models"
)

// emptyTwiML is the bare carrier acknowledgment used when rendering fails.
const emptyTwiML = `<?xml version="1.0" encoding="UTF-8"?><Response></Response>`

// Pre-marshaled fallback so a marshal failure can never leave the client
// without a body.
var fallbackErrorResponse []byte

func init() {
	var err error
	fallbackErrorResponse, err = json.Marshal(models.Error("Internal server error"))
	if err != nil {
		panic(fmt.Sprintf("failed to marshal fallback error response at startup: %v", err))
	}
}

// writeJSONResponse marshals before writing headers so encoding errors can
// still downgrade the status code.
func writeJSONResponse(w http.ResponseWriter, statusCode int, response interface{}) {
	jsonData, err := json.Marshal(response)
	if err != nil {
		slog.Error("Server.writeJSONResponse: failed to marshal JSON response", "error", err)
		jsonData = fallbackErrorResponse
		statusCode = http.StatusInternalServerError
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if _, writeErr := w.Write(jsonData); writeErr != nil {
		slog.Error("Server.writeJSONResponse: failed to write JSON response", "error", writeErr)
	}
}

// writeTwiML writes the carrier acknowledgment. An empty reply renders a bare
// <Response/> so the carrier sends nothing back to the lead.
func writeTwiML(w http.ResponseWriter, reply string) {
	var verbs []twiml.Element
	if reply != "" {
		verbs = append(verbs, &twiml.MessagingMessage{Body: reply})
	}

	doc, err := twiml.Messages(verbs)
	if err != nil {
		slog.Error("Server.writeTwiML: failed to render acknowledgment", "error", err)
		doc = emptyTwiML
	}

	w.Header().Set("Content-Type", "text/xml")
	w.WriteHeader(http.StatusOK)
	if _, writeErr := w.Write([]byte(doc)); writeErr != nil {
		slog.Error("Server.writeTwiML: failed to write acknowledgment", "error", writeErr)
	}
}
