// Package store provides record-store backends for LeadLine.
//
// This file implements the PostgreSQL-backed store.
package store

import (
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	_ "embed"

	"github.com/leadline/leadline/internal/models"
	"github.com/leadline/leadline/internal/util"
	_ "github.com/lib/pq"
)

// Database connection pool configuration constants
const (
	// DefaultMaxOpenConns is the default maximum number of open connections to the database
	DefaultMaxOpenConns = 25
	// DefaultMaxIdleConns is the default maximum number of idle connections in the pool
	DefaultMaxIdleConns = 25
	// DefaultConnMaxLifetime is the default maximum amount of time a connection may be reused
	DefaultConnMaxLifetime = 5 * time.Minute
)

//go:embed migrations_postgres.sql
var postgresMigrations string

type PostgresStore struct {
	db *sql.DB
}

// NewPostgresStore creates a new Postgres store based on provided options.
func NewPostgresStore(opts ...Option) (*PostgresStore, error) {
	var cfg Opts
	for _, opt := range opts {
		opt(&cfg)
	}
	slog.Debug("PostgresStore.NewPostgresStore: creating Postgres store", "DSN_set", cfg.DSN != "")

	dsn := cfg.DSN
	if dsn == "" {
		slog.Error("PostgresStore DSN not set")
		return nil, fmt.Errorf("database DSN not set")
	}

	db, err := sql.Open("postgres", dsn)
	if err != nil {
		slog.Error("Failed to open Postgres connection", "error", err)
		return nil, err
	}

	db.SetMaxOpenConns(DefaultMaxOpenConns)
	db.SetMaxIdleConns(DefaultMaxIdleConns)
	db.SetConnMaxLifetime(DefaultConnMaxLifetime)

	if err := db.Ping(); err != nil {
		slog.Error("Postgres ping failed", "error", err)
		return nil, err
	}

	slog.Debug("Running Postgres migrations")
	if _, err := db.Exec(postgresMigrations); err != nil {
		slog.Error("Failed to run Postgres migrations", "error", err)
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	return &PostgresStore{db: db}, nil
}

func (s *PostgresStore) CreateLead(lead models.Lead) (models.Lead, error) {
	canonical, err := models.CanonicalizePhone(lead.Phone)
	if err != nil {
		return models.Lead{}, fmt.Errorf("invalid lead phone: %w", err)
	}
	if lead.ID == "" {
		lead.ID = util.GenerateLeadID()
	}
	if lead.CreatedAt.IsZero() {
		lead.CreatedAt = time.Now().UTC()
	}
	if lead.Status == "" {
		lead.Status = models.LeadStatusNew
	}

	_, err = s.db.Exec(
		`INSERT INTO leads (id, phone, phone_canonical, name, status, opted_out, last_message_at, created_at) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		lead.ID, lead.Phone, canonical, nilIfEmpty(lead.Name), lead.Status, lead.OptedOut, lead.LastMessageAt, lead.CreatedAt)
	if err != nil {
		slog.Error("PostgresStore CreateLead failed", "error", err, "lead_id", lead.ID)
		return models.Lead{}, fmt.Errorf("failed to insert lead %s: %w", lead.ID, err)
	}
	slog.Debug("PostgresStore CreateLead succeeded", "lead_id", lead.ID)
	return lead, nil
}

func (s *PostgresStore) FindLeadByPhone(phone string) (*models.Lead, error) {
	canonical, err := models.CanonicalizePhone(phone)
	if err != nil {
		return nil, fmt.Errorf("invalid phone %s: %w", models.RedactPhone(phone), err)
	}

	row := s.db.QueryRow(
		`SELECT id, phone, name, status, opted_out, last_message_at, created_at FROM leads WHERE phone_canonical = $1`,
		canonical)
	lead, err := scanLead(row)
	if errors.Is(err, sql.ErrNoRows) {
		slog.Debug("PostgresStore FindLeadByPhone no match", "phone", models.RedactPhone(phone))
		return nil, nil
	}
	if err != nil {
		slog.Error("PostgresStore FindLeadByPhone failed", "error", err, "phone", models.RedactPhone(phone))
		return nil, err
	}
	return &lead, nil
}

func (s *PostgresStore) UpdateLead(id string, patch models.LeadPatch) (*models.Lead, error) {
	var status interface{}
	if patch.Status != nil {
		status = string(*patch.Status)
	}

	row := s.db.QueryRow(
		`UPDATE leads SET
			opted_out = COALESCE($1, opted_out),
			last_message_at = COALESCE($2, last_message_at),
			status = COALESCE($3, status)
		WHERE id = $4
		RETURNING id, phone, name, status, opted_out, last_message_at, created_at`,
		patch.OptedOut, patch.LastMessageAt, status, id)

	lead, err := scanLead(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("update lead %s: %w", id, models.ErrLeadNotFound)
	}
	if err != nil {
		slog.Error("PostgresStore UpdateLead failed", "error", err, "lead_id", id)
		return nil, fmt.Errorf("failed to update lead %s: %w", id, err)
	}
	slog.Debug("PostgresStore UpdateLead succeeded", "lead_id", id)
	return &lead, nil
}

func (s *PostgresStore) ListLeads() ([]models.Lead, error) {
	rows, err := s.db.Query(
		`SELECT id, phone, name, status, opted_out, last_message_at, created_at FROM leads ORDER BY created_at`)
	if err != nil {
		slog.Error("PostgresStore ListLeads query failed", "error", err)
		return nil, fmt.Errorf("failed to query leads: %w", err)
	}
	defer rows.Close()

	var leads []models.Lead
	for rows.Next() {
		lead, err := scanLead(rows)
		if err != nil {
			slog.Error("PostgresStore ListLeads scan failed", "error", err)
			return nil, err
		}
		leads = append(leads, lead)
	}
	if err := rows.Err(); err != nil {
		slog.Error("PostgresStore ListLeads rows iteration failed", "error", err)
		return nil, fmt.Errorf("failed to iterate lead rows: %w", err)
	}
	slog.Debug("PostgresStore ListLeads succeeded", "count", len(leads))
	return leads, nil
}

func (s *PostgresStore) CreateMessage(msg models.Message) (models.Message, error) {
	if err := msg.Validate(); err != nil {
		return models.Message{}, fmt.Errorf("invalid message: %w", err)
	}
	if msg.ID == "" {
		msg.ID = util.GenerateMessageID()
	}
	if msg.CreatedAt.IsZero() {
		msg.CreatedAt = time.Now().UTC()
	}

	_, err := s.db.Exec(
		`INSERT INTO messages (id, lead_id, direction, sender_type, body, provider_message_id, created_at) VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		msg.ID, msg.LeadID, msg.Direction, msg.SenderType, msg.Body, nilIfEmpty(msg.ProviderMessageID), msg.CreatedAt)
	if err != nil {
		slog.Error("PostgresStore CreateMessage failed", "error", err, "lead_id", msg.LeadID)
		return models.Message{}, fmt.Errorf("failed to insert message for lead %s: %w", msg.LeadID, err)
	}
	slog.Debug("PostgresStore CreateMessage succeeded", "message_id", msg.ID, "lead_id", msg.LeadID)
	return msg, nil
}

func (s *PostgresStore) ListMessages() ([]models.Message, error) {
	return s.queryMessages(
		`SELECT id, lead_id, direction, sender_type, body, provider_message_id, created_at FROM messages ORDER BY created_at DESC`)
}

func (s *PostgresStore) ListMessagesByLead(leadID string) ([]models.Message, error) {
	return s.queryMessages(
		`SELECT id, lead_id, direction, sender_type, body, provider_message_id, created_at FROM messages WHERE lead_id = $1 ORDER BY created_at DESC`,
		leadID)
}

func (s *PostgresStore) queryMessages(query string, args ...interface{}) ([]models.Message, error) {
	rows, err := s.db.Query(query, args...)
	if err != nil {
		slog.Error("PostgresStore message query failed", "error", err)
		return nil, fmt.Errorf("failed to query messages: %w", err)
	}
	defer rows.Close()

	var messages []models.Message
	for rows.Next() {
		msg, err := scanMessage(rows)
		if err != nil {
			slog.Error("PostgresStore message scan failed", "error", err)
			return nil, err
		}
		messages = append(messages, msg)
	}
	if err := rows.Err(); err != nil {
		slog.Error("PostgresStore message rows iteration failed", "error", err)
		return nil, fmt.Errorf("failed to iterate message rows: %w", err)
	}
	return messages, nil
}

// Close closes the Postgres database connection.
func (s *PostgresStore) Close() error {
	slog.Debug("Closing Postgres database connection")
	return s.db.Close()
}
