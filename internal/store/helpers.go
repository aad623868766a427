package store

import (
	"database/sql"
	"fmt"

	"github.com/leadline/leadline/internal/models"
)

// nilIfEmpty returns nil if s is empty, otherwise returns s.
// Used for nullable database columns.
func nilIfEmpty(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}

// rowScanner abstracts *sql.Row and *sql.Rows for the shared scan helpers.
type rowScanner interface {
	Scan(dest ...interface{}) error
}

// scanLead scans a Lead from a row with the canonical column order:
// id, phone, name, status, opted_out, last_message_at, created_at.
func scanLead(row rowScanner) (models.Lead, error) {
	var lead models.Lead
	var name sql.NullString
	var lastMessageAt sql.NullTime
	if err := row.Scan(&lead.ID, &lead.Phone, &name, &lead.Status, &lead.OptedOut, &lastMessageAt, &lead.CreatedAt); err != nil {
		return lead, fmt.Errorf("scan lead failed: %w", err)
	}
	lead.Name = name.String
	if lastMessageAt.Valid {
		t := lastMessageAt.Time
		lead.LastMessageAt = &t
	}
	return lead, nil
}

// scanMessage scans a Message from a row with the canonical column order:
// id, lead_id, direction, sender_type, body, provider_message_id, created_at.
func scanMessage(row rowScanner) (models.Message, error) {
	var msg models.Message
	var providerID sql.NullString
	if err := row.Scan(&msg.ID, &msg.LeadID, &msg.Direction, &msg.SenderType, &msg.Body, &providerID, &msg.CreatedAt); err != nil {
		return msg, fmt.Errorf("scan message failed: %w", err)
	}
	msg.ProviderMessageID = providerID.String
	return msg, nil
}
