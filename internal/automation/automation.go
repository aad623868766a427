// Package automation dispatches downstream workflow triggers for qualifying
// inbound messages.
//
// Dispatch is fire-and-forget from the pipeline's perspective: enqueueing never
// blocks the webhook response, and every delivery failure is logged on the
// dispatcher's own surface rather than propagated. The worker posts each event
// to the configured automation webhook and, when a responder is configured,
// drafts and sends an automated first-touch reply to the lead.
package automation

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/leadline/leadline/internal/models"
	"github.com/leadline/leadline/internal/store"
	"github.com/leadline/leadline/internal/twiliosms"
)

const (
	// DefaultEventBufferSize is the buffer size of the dispatch queue.
	DefaultEventBufferSize = 100
	// DefaultEnqueueTimeout bounds how long an enqueue may wait on a full queue
	// before the event is dropped.
	DefaultEnqueueTimeout = 100 * time.Millisecond
	// DefaultWebhookTimeout bounds one webhook delivery attempt.
	DefaultWebhookTimeout = 10 * time.Second
	// EventTypeLeadMessage is emitted when a new lead sends a qualifying message.
	EventTypeLeadMessage = "lead.message.received"
)

// Event is one downstream automation trigger.
type Event struct {
	ID         string            `json:"id"`
	Type       string            `json:"type"`
	LeadID     string            `json:"lead_id"`
	LeadName   string            `json:"lead_name,omitempty"`
	LeadPhone  string            `json:"lead_phone"`
	LeadStatus models.LeadStatus `json:"lead_status"`
	Body       string            `json:"body"`
	DeliveryID string            `json:"delivery_id,omitempty"`
	OccurredAt time.Time         `json:"occurred_at"`
}

// Trigger is the interface the pipeline uses to signal downstream automation.
type Trigger interface {
	// TriggerAutomation enqueues an event. It never blocks the caller beyond
	// the enqueue timeout and never returns an error: automation failure must
	// not change the carrier acknowledgment.
	TriggerAutomation(event Event)
}

// ReplyDrafter produces the text of an automated first-touch reply.
type ReplyDrafter interface {
	DraftReply(ctx context.Context, leadName, inbound string) (string, error)
}

// Responder sends automated first-touch replies when the dispatcher processes
// a new-lead event. All three collaborators must be set.
type Responder struct {
	Drafter ReplyDrafter
	Sender  twiliosms.Sender
	Store   store.Store
}

// Dispatcher owns the event queue and its worker goroutine.
type Dispatcher struct {
	events     chan Event
	done       chan struct{}
	wg         sync.WaitGroup
	mu         sync.RWMutex
	stopped    bool
	webhookURL string
	httpClient *http.Client
	responder  *Responder
}

// Opts holds configuration options for the Dispatcher.
type Opts struct {
	WebhookURL string
	Responder  *Responder
	HTTPClient *http.Client
	BufferSize int
}

// Option defines a configuration option for the Dispatcher.
type Option func(*Opts)

// WithWebhookURL sets the automation webhook endpoint.
func WithWebhookURL(url string) Option {
	return func(o *Opts) { o.WebhookURL = url }
}

// WithResponder configures the automated first-touch responder.
func WithResponder(r *Responder) Option {
	return func(o *Opts) { o.Responder = r }
}

// WithHTTPClient overrides the HTTP client used for webhook delivery.
func WithHTTPClient(c *http.Client) Option {
	return func(o *Opts) { o.HTTPClient = c }
}

// WithBufferSize overrides the dispatch queue buffer size.
func WithBufferSize(n int) Option {
	return func(o *Opts) { o.BufferSize = n }
}

// NewDispatcher creates a Dispatcher. Call Start to begin processing.
func NewDispatcher(opts ...Option) *Dispatcher {
	var cfg Opts
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.BufferSize <= 0 {
		cfg.BufferSize = DefaultEventBufferSize
	}
	if cfg.HTTPClient == nil {
		cfg.HTTPClient = &http.Client{Timeout: DefaultWebhookTimeout}
	}
	return &Dispatcher{
		events:     make(chan Event, cfg.BufferSize),
		done:       make(chan struct{}),
		webhookURL: cfg.WebhookURL,
		httpClient: cfg.HTTPClient,
		responder:  cfg.Responder,
	}
}

// Start launches the worker goroutine.
func (d *Dispatcher) Start(ctx context.Context) error {
	d.wg.Add(1)
	go d.run(ctx)
	slog.Info("Dispatcher started", "webhook_configured", d.webhookURL != "", "responder_configured", d.responder != nil)
	return nil
}

// Stop shuts down the worker and waits for in-flight events to finish.
func (d *Dispatcher) Stop() error {
	d.mu.Lock()
	if d.stopped {
		d.mu.Unlock()
		return nil
	}
	d.stopped = true
	d.mu.Unlock()

	close(d.done)
	d.wg.Wait()
	return nil
}

// TriggerAutomation enqueues an event for asynchronous processing. Events are
// dropped with a warning when the dispatcher is stopped or the queue stays
// full past the enqueue timeout.
func (d *Dispatcher) TriggerAutomation(event Event) {
	d.mu.RLock()
	stopped := d.stopped
	d.mu.RUnlock()
	if stopped {
		slog.Warn("Dispatcher dropping event (stopped)", "event_type", event.Type, "lead_id", event.LeadID)
		return
	}

	if event.ID == "" {
		event.ID = uuid.NewString()
	}
	if event.OccurredAt.IsZero() {
		event.OccurredAt = time.Now().UTC()
	}

	select {
	case d.events <- event:
		slog.Debug("Dispatcher enqueued event", "event_id", event.ID, "event_type", event.Type, "lead_id", event.LeadID)
	case <-time.After(DefaultEnqueueTimeout):
		slog.Warn("Dispatcher queue full, dropping event", "event_id", event.ID, "lead_id", event.LeadID)
	}
}

func (d *Dispatcher) run(ctx context.Context) {
	defer d.wg.Done()
	for {
		select {
		case event := <-d.events:
			d.process(ctx, event)
		case <-d.done:
			// Drain whatever is already queued before exiting.
			for {
				select {
				case event := <-d.events:
					d.process(ctx, event)
				default:
					return
				}
			}
		case <-ctx.Done():
			return
		}
	}
}

// process handles one event. Failures are logged and swallowed here; nothing
// propagates back toward the pipeline.
func (d *Dispatcher) process(ctx context.Context, event Event) {
	if d.webhookURL != "" {
		if err := d.postWebhook(ctx, event); err != nil {
			slog.Error("Dispatcher webhook delivery failed", "error", err, "event_id", event.ID, "lead_id", event.LeadID)
		}
	}
	if d.responder != nil {
		if err := d.respond(ctx, event); err != nil {
			slog.Error("Dispatcher auto-reply failed", "error", err, "event_id", event.ID, "lead_id", event.LeadID)
		}
	}
}

func (d *Dispatcher) postWebhook(ctx context.Context, event Event) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}

	reqCtx, cancel := context.WithTimeout(ctx, DefaultWebhookTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(reqCtx, http.MethodPost, d.webhookURL, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("build webhook request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := d.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("deliver webhook: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return fmt.Errorf("webhook returned status %d", resp.StatusCode)
	}
	slog.Debug("Dispatcher webhook delivered", "event_id", event.ID, "status", resp.StatusCode)
	return nil
}

// respond drafts and sends the automated first-touch reply, persisting it as
// an outbound system message.
func (d *Dispatcher) respond(ctx context.Context, event Event) error {
	draft, err := d.responder.Drafter.DraftReply(ctx, event.LeadName, event.Body)
	if err != nil {
		return fmt.Errorf("draft reply: %w", err)
	}
	if draft == "" {
		slog.Warn("Dispatcher responder produced empty draft, skipping send", "event_id", event.ID)
		return nil
	}

	if err := d.responder.Sender.SendSMS(ctx, event.LeadPhone, draft); err != nil {
		return fmt.Errorf("send reply: %w", err)
	}

	if d.responder.Store != nil {
		_, err = d.responder.Store.CreateMessage(models.Message{
			LeadID:     event.LeadID,
			Direction:  models.DirectionOutbound,
			SenderType: models.SenderTypeSystem,
			Body:       draft,
		})
		if err != nil {
			return fmt.Errorf("persist reply: %w", err)
		}
	}

	slog.Info("Dispatcher sent automated reply", "event_id", event.ID, "lead_id", event.LeadID)
	return nil
}
