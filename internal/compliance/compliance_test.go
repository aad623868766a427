package compliance

import (
	"testing"

	"github.com/leadline/leadline/internal/keyword"
	"github.com/leadline/leadline/internal/models"
)

func knownLead(status models.LeadStatus, optedOut bool) *models.Lead {
	return &models.Lead{ID: "lead_1", Phone: "15551234567", Status: status, OptedOut: optedOut}
}

func TestStopKnownLead(t *testing.T) {
	out := Handle(keyword.ClassStop, knownLead(models.LeadStatusContacted, false), "STOP", "SM1")
	if !out.Persist {
		t.Error("STOP from a known lead must persist the message for audit")
	}
	if out.SetOptOut == nil || !*out.SetOptOut {
		t.Error("STOP must set the opt-out flag to true")
	}
	if out.Ack != "" {
		t.Errorf("STOP ack must be empty, got %q", out.Ack)
	}
	if out.TriggerAutomation {
		t.Error("STOP must not trigger automation")
	}
}

func TestStopUnknownSender(t *testing.T) {
	out := Handle(keyword.ClassStop, nil, "STOP", "SM1")
	if out.Persist || out.SetOptOut != nil || out.Ack != "" {
		t.Errorf("STOP from unknown sender must be a no-op, got %+v", out)
	}
}

func TestStartKnownLead(t *testing.T) {
	out := Handle(keyword.ClassStart, knownLead(models.LeadStatusContacted, true), "START", "SM2")
	if !out.Persist {
		t.Error("START from a known lead must persist the message")
	}
	if out.SetOptOut == nil || *out.SetOptOut {
		t.Error("START must reset the opt-out flag to false")
	}
	if out.Ack != "" {
		t.Errorf("START ack must be empty, got %q", out.Ack)
	}
}

func TestStartUnknownSender(t *testing.T) {
	out := Handle(keyword.ClassStart, nil, "START", "SM2")
	if out.Persist || out.SetOptOut != nil {
		t.Errorf("START from unknown sender must be a no-op, got %+v", out)
	}
}

func TestHelpKnownLead(t *testing.T) {
	out := Handle(keyword.ClassHelp, knownLead(models.LeadStatusNew, false), "INFO", "SM3")
	if out.Ack != HelpText {
		t.Errorf("HELP ack = %q, want fixed help text", out.Ack)
	}
	if !out.Persist {
		t.Error("HELP from a known lead must persist the message")
	}
	if out.SetOptOut != nil {
		t.Error("HELP must leave the opt-out flag unchanged")
	}
}

func TestHelpUnknownSender(t *testing.T) {
	out := Handle(keyword.ClassHelp, nil, "HELP", "SM3")
	if out.Ack != HelpText {
		t.Errorf("HELP ack = %q, want fixed help text even for unknown senders", out.Ack)
	}
	if out.Persist {
		t.Error("HELP from unknown sender has no lead to attribute the message to")
	}
}

func TestOrdinaryNewLeadTriggersAutomation(t *testing.T) {
	out := Handle(keyword.ClassOrdinary, knownLead(models.LeadStatusNew, false), "I'm interested in the listing", "SM4")
	if !out.Persist || !out.TouchLastContact {
		t.Errorf("ordinary message from active lead must persist and touch last contact, got %+v", out)
	}
	if !out.TriggerAutomation {
		t.Error("ordinary message from a new lead must trigger automation")
	}
	if out.Ack != "" {
		t.Errorf("ordinary ack must be empty, got %q", out.Ack)
	}
}

func TestOrdinaryContactedLeadNoTrigger(t *testing.T) {
	out := Handle(keyword.ClassOrdinary, knownLead(models.LeadStatusContacted, false), "ok", "SM5")
	if !out.Persist || !out.TouchLastContact {
		t.Errorf("ordinary message from contacted lead must persist and touch last contact, got %+v", out)
	}
	if out.TriggerAutomation {
		t.Error("only leads in the new status trigger automation")
	}
}

func TestOrdinaryOptedOutLeadSuppressed(t *testing.T) {
	out := Handle(keyword.ClassOrdinary, knownLead(models.LeadStatusNew, true), "hello?", "SM6")
	if !out.Persist {
		t.Error("messages from opted-out leads are still persisted for support visibility")
	}
	if out.TriggerAutomation {
		t.Error("opted-out leads must never trigger automation")
	}
	if out.TouchLastContact {
		t.Error("opted-out leads do not get a last-contact update")
	}
	if out.SetOptOut != nil {
		t.Error("ordinary messages must not mutate the opt-out flag")
	}
}

func TestOrdinaryUnknownSender(t *testing.T) {
	out := Handle(keyword.ClassOrdinary, nil, "who is this", "SM7")
	if out.Persist || out.TriggerAutomation || out.Ack != "" {
		t.Errorf("ordinary message from unknown sender must be a silent no-op, got %+v", out)
	}
}
