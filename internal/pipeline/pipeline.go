// Package pipeline implements the inbound SMS processing pipeline: the entry
// point that takes one carrier delivery through deduplication, lead
// resolution, keyword classification, compliance handling, persistence, and
// the downstream-trigger decision.
//
// The pipeline never fails past its own boundary. Every collaborator error is
// logged and swallowed so the carrier always receives a valid acknowledgment;
// a retried delivery is benign and a missed message is an operational
// follow-up, not a 5xx.
package pipeline

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/leadline/leadline/internal/automation"
	"github.com/leadline/leadline/internal/compliance"
	"github.com/leadline/leadline/internal/dedup"
	"github.com/leadline/leadline/internal/keyword"
	"github.com/leadline/leadline/internal/models"
	"github.com/leadline/leadline/internal/store"
)

// Orchestrator sequences the inbound pipeline. The dedup cache is required;
// the store and trigger are optional collaborators — a nil store degrades the
// pipeline to acknowledge-only, and a nil trigger drops automation signals.
type Orchestrator struct {
	cache   *dedup.SeenCache
	store   store.Store
	trigger automation.Trigger
}

// New creates an Orchestrator. cache must not be nil.
func New(cache *dedup.SeenCache, st store.Store, trigger automation.Trigger) *Orchestrator {
	return &Orchestrator{cache: cache, store: st, trigger: trigger}
}

// Process handles one carrier delivery and returns the reply text to embed in
// the carrier acknowledgment. An empty string means a bare acknowledgment.
// Process never panics past its boundary and never returns an error: there is
// no failure surface the carrier could act on.
func (o *Orchestrator) Process(ctx context.Context, delivery models.InboundDelivery) (ack string) {
	defer func() {
		if r := recover(); r != nil {
			slog.Error("Orchestrator.Process: recovered from panic",
				"panic", r,
				"from", models.RedactPhone(delivery.From),
				"delivery_id", delivery.MessageSID)
			ack = ""
		}
	}()

	from := strings.TrimSpace(delivery.From)
	body := delivery.Body
	if from == "" || strings.TrimSpace(body) == "" {
		slog.Warn("Orchestrator.Process: malformed delivery, missing sender or body",
			"from_set", from != "",
			"body_set", strings.TrimSpace(body) != "",
			"delivery_id", delivery.MessageSID)
		return ""
	}

	if !o.cache.IsNew(delivery.MessageSID) {
		slog.Info("Orchestrator.Process: duplicate delivery, acknowledging without side effects",
			"delivery_id", delivery.MessageSID,
			"from", models.RedactPhone(from))
		return ""
	}

	class := keyword.Classify(body)

	lead := o.resolveLead(from, delivery.MessageSID)
	if lead == nil {
		slog.Warn("Orchestrator.Process: no lead matches sender",
			"from", models.RedactPhone(from),
			"delivery_id", delivery.MessageSID,
			"classification", class)
	}

	outcome := compliance.Handle(class, lead, body, delivery.MessageSID)

	if lead != nil {
		o.applyLeadPatch(lead, outcome, delivery.MessageSID)
		if outcome.Persist {
			o.persistMessage(lead, body, delivery.MessageSID)
		}
		if outcome.TriggerAutomation && o.trigger != nil {
			o.trigger.TriggerAutomation(automation.Event{
				Type:       automation.EventTypeLeadMessage,
				LeadID:     lead.ID,
				LeadName:   lead.Name,
				LeadPhone:  lead.Phone,
				LeadStatus: lead.Status,
				Body:       body,
				DeliveryID: delivery.MessageSID,
			})
		}
	}

	return outcome.Ack
}

// resolveLead looks up the sender's lead record. Absence and lookup failure
// both resolve to nil: the former is a valid outcome, the latter is logged.
func (o *Orchestrator) resolveLead(from, deliveryID string) *models.Lead {
	if o.store == nil {
		slog.Debug("Orchestrator.resolveLead: record store not configured, skipping lookup", "delivery_id", deliveryID)
		return nil
	}
	lead, err := o.store.FindLeadByPhone(from)
	if err != nil {
		slog.Error("Orchestrator.resolveLead: lead lookup failed",
			"error", err,
			"from", models.RedactPhone(from),
			"delivery_id", deliveryID)
		return nil
	}
	return lead
}

// applyLeadPatch applies the opt-out mutation and last-contact touch the
// compliance handler indicated. Failures are logged and swallowed.
func (o *Orchestrator) applyLeadPatch(lead *models.Lead, outcome compliance.Outcome, deliveryID string) {
	if outcome.SetOptOut == nil && !outcome.TouchLastContact {
		return
	}

	patch := models.LeadPatch{OptedOut: outcome.SetOptOut}
	if outcome.TouchLastContact {
		now := time.Now().UTC()
		patch.LastMessageAt = &now
	}

	if _, err := o.store.UpdateLead(lead.ID, patch); err != nil {
		slog.Error("Orchestrator.applyLeadPatch: lead update failed",
			"error", err,
			"lead_id", lead.ID,
			"delivery_id", deliveryID)
	}
}

// persistMessage writes the inbound message record carrying the carrier
// delivery identifier for dedup auditing. Failures are logged and swallowed:
// the carrier still gets its acknowledgment and no retry is attempted here.
func (o *Orchestrator) persistMessage(lead *models.Lead, body, deliveryID string) {
	_, err := o.store.CreateMessage(models.Message{
		LeadID:            lead.ID,
		Direction:         models.DirectionInbound,
		SenderType:        models.SenderTypeLead,
		Body:              body,
		ProviderMessageID: deliveryID,
	})
	if err != nil {
		slog.Error("Orchestrator.persistMessage: message persist failed",
			"error", err,
			"lead_id", lead.ID,
			"delivery_id", deliveryID)
	}
}
