// Package models defines the core data structures for LeadLine.
//
// It includes the lead and message entities shared with the record store, the
// ephemeral inbound delivery type consumed by the pipeline, and the JSON
// envelope used by the ops API.
package models

import (
	"errors"
	"regexp"
	"time"
)

// LeadStatus represents where a lead sits in its lifecycle.
type LeadStatus string

const (
	// LeadStatusNew indicates a lead that no agent has contacted yet.
	LeadStatusNew LeadStatus = "new"
	// LeadStatusContacted indicates an agent has reached out at least once.
	LeadStatusContacted LeadStatus = "contacted"
	// LeadStatusQualified indicates the lead has been qualified by an agent.
	LeadStatusQualified LeadStatus = "qualified"
	// LeadStatusClosed indicates the lead is closed (won or lost).
	LeadStatusClosed LeadStatus = "closed"
)

// MessageDirection indicates whether a message came from or went to the lead.
type MessageDirection string

const (
	// DirectionInbound is a message received from the lead.
	DirectionInbound MessageDirection = "inbound"
	// DirectionOutbound is a message sent to the lead.
	DirectionOutbound MessageDirection = "outbound"
)

// SenderType classifies who authored a message.
type SenderType string

const (
	// SenderTypeLead is a message written by the lead.
	SenderTypeLead SenderType = "lead"
	// SenderTypeAgent is a message written by a human agent.
	SenderTypeAgent SenderType = "agent"
	// SenderTypeSystem is an automated message produced by LeadLine itself.
	SenderTypeSystem SenderType = "system"
)

// Validation constants for input validation
const (
	// MaxMessageBodyLength defines the maximum body length accepted for persistence.
	MaxMessageBodyLength = 4096
)

// Error variables for better error handling and testability
var (
	ErrEmptyPhone         = errors.New("phone number cannot be empty")
	ErrInvalidPhone       = errors.New("phone number contains no digits")
	ErrPhoneTooShort      = errors.New("phone number is too short")
	ErrEmptyMessageBody   = errors.New("message body cannot be empty")
	ErrMessageBodyTooLong = errors.New("message body exceeds maximum length")
	ErrEmptyLeadID        = errors.New("lead ID cannot be empty")
	ErrLeadNotFound       = errors.New("lead not found")
)

// Lead is the record-store entity this pipeline reads and conditionally patches.
// LeadLine never creates leads; it resolves them by phone and updates the
// opt-out flag and last-inbound-contact timestamp.
type Lead struct {
	ID            string     `json:"id"`
	Phone         string     `json:"phone"`
	Name          string     `json:"name,omitempty"`
	Status        LeadStatus `json:"status"`
	OptedOut      bool       `json:"opted_out"`
	LastMessageAt *time.Time `json:"last_message_at,omitempty"`
	CreatedAt     time.Time  `json:"created_at"`
}

// LeadPatch describes a partial lead update. Nil fields are left unchanged.
type LeadPatch struct {
	OptedOut      *bool       `json:"opted_out,omitempty"`
	LastMessageAt *time.Time  `json:"last_message_at,omitempty"`
	Status        *LeadStatus `json:"status,omitempty"`
}

// Message is the record-store entity created once per accepted inbound delivery
// (and for automated outbound replies). ProviderMessageID stores the carrier's
// delivery identifier for dedup auditing.
type Message struct {
	ID                string           `json:"id"`
	LeadID            string           `json:"lead_id"`
	Direction         MessageDirection `json:"direction"`
	SenderType        SenderType       `json:"sender_type"`
	Body              string           `json:"body"`
	ProviderMessageID string           `json:"provider_message_id,omitempty"`
	CreatedAt         time.Time        `json:"created_at"`
}

// Validate performs basic validation before a message is handed to the store.
func (m *Message) Validate() error {
	if m.LeadID == "" {
		return ErrEmptyLeadID
	}
	if m.Body == "" {
		return ErrEmptyMessageBody
	}
	if len(m.Body) > MaxMessageBodyLength {
		return ErrMessageBodyTooLong
	}
	return nil
}

// InboundDelivery is one carrier webhook callback representing a single inbound
// SMS. It is consumed once per pipeline run and never persisted as an entity.
type InboundDelivery struct {
	From       string `json:"from"`
	To         string `json:"to"`
	Body       string `json:"body"`
	MessageSID string `json:"message_sid,omitempty"` // carrier-assigned, may be absent
}

// nonDigitRegex strips everything that is not a digit when canonicalizing phone numbers.
var nonDigitRegex = regexp.MustCompile(`[^0-9]`)

// CanonicalizePhone validates and canonicalizes a phone number by removing all
// non-numeric characters. The result must have at least 6 digits.
func CanonicalizePhone(phone string) (string, error) {
	if phone == "" {
		return "", ErrEmptyPhone
	}
	canonical := nonDigitRegex.ReplaceAllString(phone, "")
	if canonical == "" {
		return "", ErrInvalidPhone
	}
	if len(canonical) < 6 {
		return "", ErrPhoneTooShort
	}
	return canonical, nil
}

// RedactPhone returns a log-safe representation of a phone number, keeping only
// the last four digits.
func RedactPhone(phone string) string {
	digits := nonDigitRegex.ReplaceAllString(phone, "")
	if len(digits) <= 4 {
		return "***"
	}
	return "***" + digits[len(digits)-4:]
}

// API Response types for consistent JSON responses

// APIStatus represents the status of an API response.
type APIStatus string

const (
	// APIStatusOK indicates an API request completed successfully.
	APIStatusOK APIStatus = "ok"
	// APIStatusError indicates an API request failed with an error.
	APIStatusError APIStatus = "error"
)

// APIResponse represents a standard API response with a status and optional data.
type APIResponse struct {
	Status  string      `json:"status"`            // status of the API response
	Message string      `json:"message,omitempty"` // optional message for error responses or additional info
	Result  interface{} `json:"result,omitempty"`  // optional result data for successful responses
}

// Success creates a successful API response with optional result data.
func Success(result interface{}) APIResponse {
	return APIResponse{Status: string(APIStatusOK), Result: result}
}

// SuccessWithMessage creates a successful API response with a message and optional result data.
func SuccessWithMessage(message string, result interface{}) APIResponse {
	return APIResponse{Status: string(APIStatusOK), Message: message, Result: result}
}

// Error creates an error API response with a message.
func Error(message string) APIResponse {
	return APIResponse{Status: string(APIStatusError), Message: message}
}
