package util

import (
	"strings"
	"testing"
)

func TestGenerateRandomHex(t *testing.T) {
	hex := GenerateRandomHex(16)
	if len(hex) != 16 {
		t.Errorf("expected length 16, got %d", len(hex))
	}
	for _, c := range hex {
		if !strings.ContainsRune("0123456789abcdef", c) {
			t.Errorf("unexpected character %q in hex string", c)
		}
	}
	if GenerateRandomHex(0) != "" {
		t.Error("zero length should produce empty string")
	}
	if GenerateRandomHex(-5) != "" {
		t.Error("negative length should produce empty string")
	}
}

func TestGeneratePrefixedIDs(t *testing.T) {
	lead := GenerateLeadID()
	if !strings.HasPrefix(lead, "lead_") || len(lead) != len("lead_")+16 {
		t.Errorf("unexpected lead ID format: %q", lead)
	}
	msg := GenerateMessageID()
	if !strings.HasPrefix(msg, "msg_") || len(msg) != len("msg_")+16 {
		t.Errorf("unexpected message ID format: %q", msg)
	}
	if GenerateLeadID() == GenerateLeadID() {
		t.Error("consecutive IDs should not collide")
	}
}
