// Package compliance decides what an inbound message requires: persistence,
// opt-out flag mutation, the synchronous reply text returned to the carrier,
// and whether the downstream automation trigger may fire.
//
// The decision is a pure function over the keyword classification and the
// resolved lead. The carrier performs its own network-level blocking for STOP;
// LeadLine only tracks the opt-out state for its own reporting.
package compliance

import (
	"log/slog"

	"github.com/leadline/leadline/internal/keyword"
	"github.com/leadline/leadline/internal/models"
)

// HelpText is the fixed reply returned synchronously for HELP-class messages.
// It must name the opt-out instructions.
const HelpText = "LeadLine: You are receiving messages from your real estate agent. Reply STOP to unsubscribe, START to resubscribe."

// Outcome describes the side effects and reply the pipeline must apply for one
// inbound message. A nil SetOptOut leaves the lead's opt-out flag unchanged.
type Outcome struct {
	// Ack is the literal reply text returned to the carrier. Empty means a
	// bare acknowledgment with no outbound message.
	Ack string
	// Persist indicates the inbound message should be stored.
	Persist bool
	// SetOptOut, when non-nil, is the new value for the lead's opt-out flag.
	SetOptOut *bool
	// TouchLastContact indicates the lead's last-inbound-contact timestamp
	// should be updated.
	TouchLastContact bool
	// TriggerAutomation indicates the downstream automation signal may fire.
	TriggerAutomation bool
}

// Handle maps a classified inbound message onto its required outcome. lead is
// nil when the sender has no matching lead record; in that case nothing is
// persisted because there is no record to attribute the message to.
func Handle(class keyword.Classification, lead *models.Lead, body, deliveryID string) Outcome {
	switch class {
	case keyword.ClassStop:
		if lead == nil {
			slog.Warn("compliance.Handle: STOP from unknown sender", "delivery_id", deliveryID)
			return Outcome{}
		}
		optOut := true
		slog.Info("compliance.Handle: lead opted out", "lead_id", lead.ID, "delivery_id", deliveryID)
		return Outcome{Persist: true, SetOptOut: &optOut}

	case keyword.ClassStart:
		if lead == nil {
			slog.Warn("compliance.Handle: START from unknown sender", "delivery_id", deliveryID)
			return Outcome{}
		}
		optIn := false
		slog.Info("compliance.Handle: lead opted back in", "lead_id", lead.ID, "delivery_id", deliveryID)
		return Outcome{Persist: true, SetOptOut: &optIn}

	case keyword.ClassHelp:
		// Help text goes back regardless of whether we know the sender; the
		// audit record is only written when there is a lead to attach it to.
		return Outcome{Ack: HelpText, Persist: lead != nil}

	default:
		if lead == nil {
			slog.Warn("compliance.Handle: ordinary message from unknown sender", "delivery_id", deliveryID)
			return Outcome{}
		}
		if lead.OptedOut {
			// Persisted for support visibility, but an opted-out lead never
			// triggers automated replies.
			slog.Info("compliance.Handle: message from opted-out lead, suppressing automation", "lead_id", lead.ID, "delivery_id", deliveryID)
			return Outcome{Persist: true}
		}
		return Outcome{
			Persist:           true,
			TouchLastContact:  true,
			TriggerAutomation: lead.Status == models.LeadStatusNew,
		}
	}
}
