package notify

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Kind names the transition a message reports.
type Kind string

const (
	KindRequestCreated              Kind = "request.created"
	KindRequestAccepted             Kind = "request.accepted"
	KindRequestRejected             Kind = "request.rejected"
	KindRequestExpired              Kind = "request.expired"
	KindRequestCancelled            Kind = "request.cancelled"
	KindRequestStarted              Kind = "request.started"
	KindRequestAwaitingConfirmation Kind = "request.awaiting_confirmation"
	KindRequestCompleted            Kind = "request.completed"
)

// Message is a fire-and-forget notification addressed to one user.
type Message struct {
	ID          string
	RecipientID string
	Kind        Kind
	Payload     map[string]any
	CreatedAt   time.Time
}

//go:generate mockgen -source=notify.go -destination=mocks/sink_mock.go -package=mocks

// Sink delivers messages. Implementations may fail; callers never roll back on it.
type Sink interface {
	Send(ctx context.Context, msg Message) error
}

// SinkFunc adapts a function to Sink.
type SinkFunc func(ctx context.Context, msg Message) error

func (f SinkFunc) Send(ctx context.Context, msg Message) error { return f(ctx, msg) }

const defaultSendTimeout = 2 * time.Second

// Emitter hands messages to a Sink after a transition has committed. A nil
// *Emitter, or one without a sink, drops everything.
type Emitter struct {
	sink    Sink
	log     *zap.Logger
	timeout time.Duration
	now     func() time.Time
}

func NewEmitter(sink Sink, log *zap.Logger) *Emitter {
	if log == nil {
		log = zap.NewNop()
	}
	return &Emitter{sink: sink, log: log, timeout: defaultSendTimeout, now: time.Now}
}

func (e *Emitter) WithTimeout(d time.Duration) *Emitter {
	if d > 0 {
		e.timeout = d
	}
	return e
}

// Emit delivers msg with a bounded wait. Cancellation of the caller's context
// does not abort delivery of an already committed transition. Failures are
// logged and swallowed.
func (e *Emitter) Emit(ctx context.Context, msg Message) {
	if e == nil || e.sink == nil {
		return
	}
	if msg.RecipientID == "" {
		e.log.Warn("notify: dropping message without recipient", zap.String("kind", string(msg.Kind)))
		return
	}
	if msg.ID == "" {
		msg.ID = uuid.NewString()
	}
	if msg.CreatedAt.IsZero() {
		msg.CreatedAt = e.now().UTC()
	}

	sendCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), e.timeout)
	defer cancel()

	if err := e.sink.Send(sendCtx, msg); err != nil {
		e.log.Warn("notify: delivery failed",
			zap.Error(err),
			zap.String("message_id", msg.ID),
			zap.String("kind", string(msg.Kind)),
			zap.String("recipient_id", msg.RecipientID),
		)
	}
}
