package services

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/civic-fix/api-go/metrics"
	"go.uber.org/zap"
)

// SendResult mirrors the SMS provider reply.
type SendResult struct {
	Success   bool
	MessageID string
	Error     string
}

type SMSSender interface {
	Send(ctx context.Context, phone, message string) (SendResult, error)
}

type EventKind string

const (
	EventReportConfirmation EventKind = "report_confirmation"
	EventStatusUpdate       EventKind = "status_update"
	EventCompletion         EventKind = "completion"
)

type Event struct {
	Kind     EventKind
	TicketID string
	// Status is the new status for EventStatusUpdate.
	Status string
}

var statusLabels = map[string]string{
	"PENDING":     "pending review",
	"APPROVED":    "approved",
	"REJECTED":    "rejected",
	"IN_PROGRESS": "repair in progress",
	"COMPLETED":   "completed",
	"CANCELLED":   "cancelled",
}

func StatusLabel(status string) string {
	if label, ok := statusLabels[status]; ok {
		return label
	}
	return strings.ToLower(status)
}

// Message renders the fixed template for an event.
func Message(e Event) string {
	switch e.Kind {
	case EventReportConfirmation:
		return fmt.Sprintf("Your report has been received. Ticket ID: %s. Use this ID to track progress.", e.TicketID)
	case EventStatusUpdate:
		return fmt.Sprintf("Ticket %s status update: %s.", e.TicketID, StatusLabel(e.Status))
	case EventCompletion:
		return fmt.Sprintf("Ticket %s: the repair has been completed. Thank you for your report, please rate our service.", e.TicketID)
	}
	return fmt.Sprintf("Ticket %s updated.", e.TicketID)
}

// Dispatcher sends notifications on detached goroutines. Callers never see
// the outcome; it only reaches logs and metrics.
type Dispatcher struct {
	sender  SMSSender
	timeout time.Duration
	log     *zap.Logger
	wg      sync.WaitGroup
}

func NewDispatcher(sender SMSSender, timeout time.Duration, log *zap.Logger) *Dispatcher {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Dispatcher{sender: sender, timeout: timeout, log: log}
}

// Notify returns immediately. An empty phone is a no-op.
func (d *Dispatcher) Notify(event Event, phone string) {
	phone = strings.TrimSpace(phone)
	if phone == "" || d.sender == nil {
		return
	}

	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		d.send(event, phone)
	}()
}

func (d *Dispatcher) send(event Event, phone string) {
	// Detached from the request: the response may already be written.
	ctx, cancel := context.WithTimeout(context.Background(), d.timeout)
	defer cancel()

	defer func() {
		if r := recover(); r != nil {
			metrics.Notifications.WithLabelValues(string(event.Kind), "failed").Inc()
			d.log.Error("sms sender panicked", zap.String("ticket_id", event.TicketID), zap.Any("panic", r))
		}
	}()

	res, err := d.sender.Send(ctx, phone, Message(event))
	switch {
	case err != nil:
		metrics.Notifications.WithLabelValues(string(event.Kind), "failed").Inc()
		d.log.Warn("sms send failed",
			zap.String("event", string(event.Kind)),
			zap.String("ticket_id", event.TicketID),
			zap.Error(&DependencyError{Dependency: "sms", Err: err}))
	case !res.Success:
		metrics.Notifications.WithLabelValues(string(event.Kind), "rejected").Inc()
		d.log.Warn("sms rejected by provider",
			zap.String("event", string(event.Kind)),
			zap.String("ticket_id", event.TicketID),
			zap.String("provider_error", res.Error))
	default:
		metrics.Notifications.WithLabelValues(string(event.Kind), "sent").Inc()
		d.log.Info("sms sent",
			zap.String("event", string(event.Kind)),
			zap.String("ticket_id", event.TicketID),
			zap.String("message_id", res.MessageID))
	}
}

// Wait blocks until in-flight notifications finish. Used on shutdown.
func (d *Dispatcher) Wait() {
	d.wg.Wait()
}
