// Package store provides record-store backends for LeadLine.
//
// This file implements the in-memory store used by tests and by deployments
// that run without a database.
package store

import (
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/leadline/leadline/internal/models"
	"github.com/leadline/leadline/internal/util"
)

// InMemoryStore keeps leads and messages in process memory. Safe for
// concurrent use.
type InMemoryStore struct {
	mu           sync.RWMutex
	leads        map[string]models.Lead // keyed by lead ID
	leadsByPhone map[string]string      // canonical phone -> lead ID
	messages     []models.Message
}

// NewInMemoryStore creates an empty in-memory store.
func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{
		leads:        make(map[string]models.Lead),
		leadsByPhone: make(map[string]string),
	}
}

// CreateLead inserts a new lead, assigning an ID and creation time when absent.
func (s *InMemoryStore) CreateLead(lead models.Lead) (models.Lead, error) {
	canonical, err := models.CanonicalizePhone(lead.Phone)
	if err != nil {
		return models.Lead{}, fmt.Errorf("invalid lead phone %q: %w", lead.Phone, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if lead.ID == "" {
		lead.ID = util.GenerateLeadID()
	}
	if lead.CreatedAt.IsZero() {
		lead.CreatedAt = time.Now().UTC()
	}
	if lead.Status == "" {
		lead.Status = models.LeadStatusNew
	}
	if existing, ok := s.leadsByPhone[canonical]; ok {
		return models.Lead{}, fmt.Errorf("lead with phone %s already exists as %s", models.RedactPhone(lead.Phone), existing)
	}

	s.leads[lead.ID] = lead
	s.leadsByPhone[canonical] = lead.ID
	return lead, nil
}

// FindLeadByPhone resolves a lead by canonicalized phone. Returns (nil, nil)
// when no lead matches.
func (s *InMemoryStore) FindLeadByPhone(phone string) (*models.Lead, error) {
	canonical, err := models.CanonicalizePhone(phone)
	if err != nil {
		return nil, fmt.Errorf("invalid phone %q: %w", models.RedactPhone(phone), err)
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	id, ok := s.leadsByPhone[canonical]
	if !ok {
		return nil, nil
	}
	lead := s.leads[id]
	return &lead, nil
}

// UpdateLead applies a partial update and returns the updated lead.
func (s *InMemoryStore) UpdateLead(id string, patch models.LeadPatch) (*models.Lead, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	lead, ok := s.leads[id]
	if !ok {
		return nil, fmt.Errorf("update lead %s: %w", id, models.ErrLeadNotFound)
	}
	if patch.OptedOut != nil {
		lead.OptedOut = *patch.OptedOut
	}
	if patch.LastMessageAt != nil {
		lead.LastMessageAt = patch.LastMessageAt
	}
	if patch.Status != nil {
		lead.Status = *patch.Status
	}
	s.leads[id] = lead
	return &lead, nil
}

// ListLeads returns all leads ordered by creation time.
func (s *InMemoryStore) ListLeads() ([]models.Lead, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	leads := make([]models.Lead, 0, len(s.leads))
	for _, lead := range s.leads {
		leads = append(leads, lead)
	}
	sort.Slice(leads, func(i, j int) bool { return leads[i].CreatedAt.Before(leads[j].CreatedAt) })
	return leads, nil
}

// CreateMessage inserts a message record, assigning an ID when absent.
func (s *InMemoryStore) CreateMessage(msg models.Message) (models.Message, error) {
	if err := msg.Validate(); err != nil {
		return models.Message{}, fmt.Errorf("invalid message: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if msg.ID == "" {
		msg.ID = util.GenerateMessageID()
	}
	if msg.CreatedAt.IsZero() {
		msg.CreatedAt = time.Now().UTC()
	}
	s.messages = append(s.messages, msg)
	return msg, nil
}

// ListMessages returns all messages, newest first.
func (s *InMemoryStore) ListMessages() ([]models.Message, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	messages := make([]models.Message, len(s.messages))
	copy(messages, s.messages)
	sort.SliceStable(messages, func(i, j int) bool { return messages[i].CreatedAt.After(messages[j].CreatedAt) })
	return messages, nil
}

// ListMessagesByLead returns all messages for one lead, newest first.
func (s *InMemoryStore) ListMessagesByLead(leadID string) ([]models.Message, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var messages []models.Message
	for _, msg := range s.messages {
		if msg.LeadID == leadID {
			messages = append(messages, msg)
		}
	}
	sort.SliceStable(messages, func(i, j int) bool { return messages[i].CreatedAt.After(messages[j].CreatedAt) })
	return messages, nil
}

// Close is a no-op for the in-memory store.
func (s *InMemoryStore) Close() error {
	return nil
}
