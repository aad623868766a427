package genai

import (
	"context"
	"errors"
	"testing"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
)

type fakeChat struct {
	reply string
	err   error
	// lastParams captures the request for inspection.
	lastParams openai.ChatCompletionNewParams
}

func (f *fakeChat) New(ctx context.Context, body openai.ChatCompletionNewParams, opts ...option.RequestOption) (*openai.ChatCompletion, error) {
	f.lastParams = body
	if f.err != nil {
		return nil, f.err
	}
	return &openai.ChatCompletion{
		Choices: []openai.ChatCompletionChoice{
			{Message: openai.ChatCompletionMessage{Content: f.reply}},
		},
	}, nil
}

func TestNewClientRequiresKey(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "")
	if _, err := NewClient(); err == nil {
		t.Error("NewClient without a key should fail")
	}
	if _, err := NewClient(WithAPIKey("sk-test")); err != nil {
		t.Errorf("NewClient with key option failed: %v", err)
	}
}

func TestDraftReply(t *testing.T) {
	fake := &fakeChat{reply: "  Thanks for reaching out! An agent will text you shortly.  "}
	c := &Client{chat: fake, model: openai.ChatModelGPT4oMini}

	got, err := c.DraftReply(context.Background(), "Jordan", "Is 12 Oak St still available?")
	if err != nil {
		t.Fatalf("DraftReply failed: %v", err)
	}
	if got != "Thanks for reaching out! An agent will text you shortly." {
		t.Errorf("DraftReply = %q, want trimmed fake reply", got)
	}
	if len(fake.lastParams.Messages) != 2 {
		t.Errorf("expected system + user messages, got %d", len(fake.lastParams.Messages))
	}
}

func TestDraftReplyErrors(t *testing.T) {
	c := &Client{chat: &fakeChat{err: errors.New("rate limited")}, model: openai.ChatModelGPT4oMini}
	if _, err := c.DraftReply(context.Background(), "Jordan", "hi"); err == nil {
		t.Error("upstream error should propagate")
	}

	empty := &fakeChat{}
	emptyClient := &Client{chat: empty, model: openai.ChatModelGPT4oMini}
	empty.reply = ""
	if got, err := emptyClient.DraftReply(context.Background(), "Jordan", "hi"); err != nil {
		t.Fatalf("DraftReply failed: %v", err)
	} else if got != "" {
		t.Errorf("DraftReply = %q, want empty", got)
	}
}
