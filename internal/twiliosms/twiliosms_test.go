package twiliosms

import (
	"context"
	"errors"
	"testing"
)

func TestNewClientRequiresCredentials(t *testing.T) {
	t.Setenv("TWILIO_ACCOUNT_SID", "")
	t.Setenv("TWILIO_AUTH_TOKEN", "")
	t.Setenv("TWILIO_FROM_NUMBER", "")

	if _, err := NewClient(); err == nil {
		t.Error("NewClient without credentials should fail")
	}
	if _, err := NewClient(WithAccountSID("AC123"), WithAuthToken("token")); err == nil {
		t.Error("NewClient without a from number should fail")
	}
	if _, err := NewClient(WithAccountSID("AC123"), WithAuthToken("token"), WithFromNumber("+15550001111")); err != nil {
		t.Errorf("NewClient with full options failed: %v", err)
	}
}

func TestNewClientEnvFallback(t *testing.T) {
	t.Setenv("TWILIO_ACCOUNT_SID", "AC456")
	t.Setenv("TWILIO_AUTH_TOKEN", "envtoken")
	t.Setenv("TWILIO_FROM_NUMBER", "+15550002222")

	c, err := NewClient()
	if err != nil {
		t.Fatalf("NewClient with env credentials failed: %v", err)
	}
	if c.from != "+15550002222" {
		t.Errorf("from = %q, want env value", c.from)
	}
}

func TestMockSender(t *testing.T) {
	m := NewMockSender()
	if err := m.SendSMS(context.Background(), "+15551234567", "hello"); err != nil {
		t.Fatalf("MockSender SendSMS failed: %v", err)
	}
	if len(m.SentMessages) != 1 || m.SentMessages[0].Body != "hello" {
		t.Errorf("MockSender recorded %+v", m.SentMessages)
	}

	m.Err = errors.New("carrier down")
	if err := m.SendSMS(context.Background(), "+15551234567", "again"); err == nil {
		t.Error("MockSender should return configured error")
	}
	if len(m.SentMessages) != 1 {
		t.Error("failed send should not be recorded")
	}
}
