// Package store provides record-store backends for LeadLine.
//
// The record store owns leads and messages. LeadLine's pipeline resolves leads
// by phone, conditionally patches the opt-out flag and last-contact timestamp,
// and creates one message per accepted inbound delivery. Backends: in-memory
// (tests and store-less deployments), SQLite, and PostgreSQL.
package store

import (
	"strings"

	"github.com/leadline/leadline/internal/models"
)

// Store defines the record-store contract consumed by the pipeline and the
// ops API. FindLeadByPhone returns (nil, nil) when no lead matches: an unknown
// sender is a valid outcome, not an error.
type Store interface {
	// CreateLead inserts a new lead record. The pipeline itself never calls
	// this; lead creation belongs to the intake surface that owns the store.
	CreateLead(lead models.Lead) (models.Lead, error)

	// FindLeadByPhone resolves a lead by phone number. The phone is
	// canonicalized before matching, so formatting differences do not matter.
	FindLeadByPhone(phone string) (*models.Lead, error)

	// UpdateLead applies a partial update and returns the updated lead.
	UpdateLead(id string, patch models.LeadPatch) (*models.Lead, error)

	// ListLeads returns all leads.
	ListLeads() ([]models.Lead, error)

	// CreateMessage inserts a message record, assigning an ID when absent.
	CreateMessage(msg models.Message) (models.Message, error)

	// ListMessages returns all messages, newest first.
	ListMessages() ([]models.Message, error)

	// ListMessagesByLead returns all messages for one lead, newest first.
	ListMessagesByLead(leadID string) ([]models.Message, error)

	// Close releases backend resources.
	Close() error
}

// Opts holds configuration options for store backends.
type Opts struct {
	DSN string
}

// Option defines a configuration option for store constructors.
type Option func(*Opts)

// WithSQLiteDSN sets the SQLite database file path.
func WithSQLiteDSN(dsn string) Option {
	return func(o *Opts) { o.DSN = dsn }
}

// WithPostgresDSN sets the PostgreSQL connection string.
func WithPostgresDSN(dsn string) Option {
	return func(o *Opts) { o.DSN = dsn }
}

// DetectDSNType inspects a DSN and reports "postgres" for PostgreSQL
// connection strings and "sqlite" for anything else (file paths).
func DetectDSNType(dsn string) string {
	if strings.HasPrefix(dsn, "postgres://") || strings.HasPrefix(dsn, "postgresql://") || strings.Contains(dsn, "host=") {
		return "postgres"
	}
	return "sqlite"
}
