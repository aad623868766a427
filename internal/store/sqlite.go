// Package store provides record-store backends for LeadLine.
//
// This file implements the SQLite-backed store.
package store

import (
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	_ "embed"

	"github.com/leadline/leadline/internal/models"
	"github.com/leadline/leadline/internal/util"
	_ "github.com/mattn/go-sqlite3"
)

// Constants for SQLite store configuration
const (
	// DefaultDirPermissions defines the default permissions for database directories
	DefaultDirPermissions = 0755
)

//go:embed migrations_sqlite.sql
var sqliteMigrations string

type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore creates a new SQLite store with the given DSN.
// The DSN should be a file path to the SQLite database file.
// If the directory doesn't exist, it will be created.
func NewSQLiteStore(opts ...Option) (*SQLiteStore, error) {
	var cfg Opts
	for _, opt := range opts {
		opt(&cfg)
	}
	slog.Debug("NewSQLiteStore invoked", "DSN_set", cfg.DSN != "")

	dsn := cfg.DSN
	if dsn == "" {
		slog.Error("SQLiteStore DSN not set")
		return nil, fmt.Errorf("database DSN not set")
	}

	dir := filepath.Dir(dsn)
	if err := os.MkdirAll(dir, DefaultDirPermissions); err != nil {
		slog.Error("Failed to create database directory", "error", err, "dir", dir)
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		slog.Error("Failed to open SQLite connection", "error", err)
		return nil, err
	}

	if err := db.Ping(); err != nil {
		slog.Error("SQLite ping failed", "error", err)
		return nil, err
	}

	slog.Debug("Running SQLite migrations")
	if _, err := db.Exec(sqliteMigrations); err != nil {
		slog.Error("Failed to run migrations", "error", err)
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	return &SQLiteStore{db: db}, nil
}

func (s *SQLiteStore) CreateLead(lead models.Lead) (models.Lead, error) {
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
		`INSERT INTO leads (id, phone, phone_canonical, name, status, opted_out, last_message_at, created_at) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		lead.ID, lead.Phone, canonical, nilIfEmpty(lead.Name), lead.Status, lead.OptedOut, lead.LastMessageAt, lead.CreatedAt)
	if err != nil {
		slog.Error("SQLiteStore CreateLead failed", "error", err, "lead_id", lead.ID)
		return models.Lead{}, fmt.Errorf("failed to insert lead %s: %w", lead.ID, err)
	}
	slog.Debug("SQLiteStore CreateLead succeeded", "lead_id", lead.ID)
	return lead, nil
}

func (s *SQLiteStore) FindLeadByPhone(phone string) (*models.Lead, error) {
	canonical, err := models.CanonicalizePhone(phone)
	if err != nil {
		return nil, fmt.Errorf("invalid phone %s: %w", models.RedactPhone(phone), err)
	}

	row := s.db.QueryRow(
		`SELECT id, phone, name, status, opted_out, last_message_at, created_at FROM leads WHERE phone_canonical = ?`,
		canonical)
	lead, err := scanLead(row)
	if errors.Is(err, sql.ErrNoRows) {
		slog.Debug("SQLiteStore FindLeadByPhone no match", "phone", models.RedactPhone(phone))
		return nil, nil
	}
	if err != nil {
		slog.Error("SQLiteStore FindLeadByPhone failed", "error", err, "phone", models.RedactPhone(phone))
		return nil, err
	}
	return &lead, nil
}

func (s *SQLiteStore) UpdateLead(id string, patch models.LeadPatch) (*models.Lead, error) {
	query := `UPDATE leads SET
		opted_out = COALESCE(?, opted_out),
		last_message_at = COALESCE(?, last_message_at),
		status = COALESCE(?, status)
		WHERE id = ?`

	var status interface{}
	if patch.Status != nil {
		status = string(*patch.Status)
	}
	res, err := s.db.Exec(query, patch.OptedOut, patch.LastMessageAt, status, id)
	if err != nil {
		slog.Error("SQLiteStore UpdateLead failed", "error", err, "lead_id", id)
		return nil, fmt.Errorf("failed to update lead %s: %w", id, err)
	}
	affected, err := res.RowsAffected()
	if err == nil && affected == 0 {
		return nil, fmt.Errorf("update lead %s: %w", id, models.ErrLeadNotFound)
	}

	row := s.db.QueryRow(
		`SELECT id, phone, name, status, opted_out, last_message_at, created_at FROM leads WHERE id = ?`, id)
	lead, err := scanLead(row)
	if err != nil {
		slog.Error("SQLiteStore UpdateLead readback failed", "error", err, "lead_id", id)
		return nil, err
	}
	slog.Debug("SQLiteStore UpdateLead succeeded", "lead_id", id)
	return &lead, nil
}

func (s *SQLiteStore) ListLeads() ([]models.Lead, error) {
	rows, err := s.db.Query(
		`SELECT id, phone, name, status, opted_out, last_message_at, created_at FROM leads ORDER BY created_at`)
	if err != nil {
		slog.Error("SQLiteStore ListLeads query failed", "error", err)
		return nil, fmt.Errorf("failed to query leads: %w", err)
	}
	defer rows.Close()

	var leads []models.Lead
	for rows.Next() {
		lead, err := scanLead(rows)
		if err != nil {
			slog.Error("SQLiteStore ListLeads scan failed", "error", err)
			return nil, err
		}
		leads = append(leads, lead)
	}
	if err := rows.Err(); err != nil {
		slog.Error("SQLiteStore ListLeads rows iteration failed", "error", err)
		return nil, fmt.Errorf("failed to iterate lead rows: %w", err)
	}
	slog.Debug("SQLiteStore ListLeads succeeded", "count", len(leads))
	return leads, nil
}

func (s *SQLiteStore) CreateMessage(msg models.Message) (models.Message, error) {
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
		`INSERT INTO messages (id, lead_id, direction, sender_type, body, provider_message_id, created_at) VALUES (?, ?, ?, ?, ?, ?, ?)`,
		msg.ID, msg.LeadID, msg.Direction, msg.SenderType, msg.Body, nilIfEmpty(msg.ProviderMessageID), msg.CreatedAt)
	if err != nil {
		slog.Error("SQLiteStore CreateMessage failed", "error", err, "lead_id", msg.LeadID)
		return models.Message{}, fmt.Errorf("failed to insert message for lead %s: %w", msg.LeadID, err)
	}
	slog.Debug("SQLiteStore CreateMessage succeeded", "message_id", msg.ID, "lead_id", msg.LeadID)
	return msg, nil
}

func (s *SQLiteStore) ListMessages() ([]models.Message, error) {
	return s.queryMessages(
		`SELECT id, lead_id, direction, sender_type, body, provider_message_id, created_at FROM messages ORDER BY created_at DESC`)
}

func (s *SQLiteStore) ListMessagesByLead(leadID string) ([]models.Message, error) {
	return s.queryMessages(
		`SELECT id, lead_id, direction, sender_type, body, provider_message_id, created_at FROM messages WHERE lead_id = ? ORDER BY created_at DESC`,
		leadID)
}

func (s *SQLiteStore) queryMessages(query string, args ...interface{}) ([]models.Message, error) {
	rows, err := s.db.Query(query, args...)
	if err != nil {
		slog.Error("SQLiteStore message query failed", "error", err)
		return nil, fmt.Errorf("failed to query messages: %w", err)
	}
	defer rows.Close()

	var messages []models.Message
	for rows.Next() {
		msg, err := scanMessage(rows)
		if err != nil {
			slog.Error("SQLiteStore message scan failed", "error", err)
			return nil, err
		}
		messages = append(messages, msg)
	}
	if err := rows.Err(); err != nil {
		slog.Error("SQLiteStore message rows iteration failed", "error", err)
		return nil, fmt.Errorf("failed to iterate message rows: %w", err)
	}
	return messages, nil
}

// Close closes the SQLite database connection.
func (s *SQLiteStore) Close() error {
	slog.Debug("Closing SQLite database connection")
	err := s.db.Close()
	if err != nil {
		slog.Error("Failed to close SQLite database", "error", err)
	}
	return err
}
