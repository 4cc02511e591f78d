package printlog

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/sirupsen/logrus"

	"idcard/internal/queue"
)

// MessageType tags print events on the queue.
const MessageType = "card.printed"

var ErrUnknownType = errors.New("printlog: unexpected message type")

// Event says a student's card was printed.
type Event struct {
	UserID    int64     `json:"user_id"`
	PrintedAt time.Time `json:"printed_at"`
}

// Encode wraps e in a queue message.
func Encode(e Event) (queue.Message, error) {
	body, err := json.Marshal(e)
	if err != nil {
		return queue.Message{}, err
	}
	return queue.Message{Type: MessageType, Body: body}, nil
}

// Decode parses a queue message produced by Encode.
func Decode(m queue.Message) (Event, error) {
	if m.Type != MessageType {
		return Event{}, fmt.Errorf("%w: %q", ErrUnknownType, m.Type)
	}
	var e Event
	if err := json.Unmarshal(m.Body, &e); err != nil {
		return Event{}, fmt.Errorf("printlog: decode: %w", err)
	}
	if e.UserID <= 0 {
		return Event{}, fmt.Errorf("printlog: decode: missing user_id")
	}
	return e, nil
}

// Recorder persists a print.
type Recorder interface {
	RecordPrint(ctx context.Context, userID int64, at time.Time) error
}

// Hook is told about every recorded print.
type Hook func(Event)

func discardLogger() logrus.FieldLogger {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return l
}

// Publisher hands prints to the queue. When the queue is unavailable the
// print is recorded synchronously so the counter never loses a print.
type Publisher struct {
	q    queue.Queue
	rec  Recorder
	log  logrus.FieldLogger
	hook Hook
	now  func() time.Time
}

func NewPublisher(q queue.Queue, rec Recorder, log logrus.FieldLogger, hook Hook) *Publisher {
	if log == nil {
		log = discardLogger()
	}
	return &Publisher{q: q, rec: rec, log: log, hook: hook, now: time.Now}
}

// Printed records that userID's card was printed now.
func (p *Publisher) Printed(ctx context.Context, userID int64) error {
	e := Event{UserID: userID, PrintedAt: p.now().UTC()}
	msg, err := Encode(e)
	if err == nil {
		if err = p.q.Publish(ctx, msg); err == nil {
			return nil
		}
	}
	p.log.WithError(err).WithField("user_id", userID).Warn("print event not queued, recording inline")
	if err := p.rec.RecordPrint(ctx, e.UserID, e.PrintedAt); err != nil {
		return err
	}
	if p.hook != nil {
		p.hook(e)
	}
	return nil
}

// Consumer drains print events from a queue into a Recorder.
type Consumer struct {
	q    queue.Queue
	rec  Recorder
	log  logrus.FieldLogger
	hook Hook
}

func NewConsumer(q queue.Queue, rec Recorder, log logrus.FieldLogger, hook Hook) *Consumer {
	if log == nil {
		log = discardLogger()
	}
	return &Consumer{q: q, rec: rec, log: log, hook: hook}
}

// Run processes messages until ctx is cancelled or the queue closes.
func (c *Consumer) Run(ctx context.Context) error {
	msgs, err := c.q.Consume(ctx)
	if err != nil {
		return err
	}
	for msg := range msgs {
		c.Handle(ctx, msg)
	}
	return ctx.Err()
}

// Handle processes one message. Malformed messages and failed writes are
// logged and dropped.
func (c *Consumer) Handle(ctx context.Context, msg queue.Message) {
	e, err := Decode(msg)
	if err != nil {
		c.log.WithError(err).WithField("type", msg.Type).Warn("dropping message")
		return
	}
	if err := c.rec.RecordPrint(ctx, e.UserID, e.PrintedAt); err != nil {
		c.log.WithError(err).WithField("user_id", e.UserID).Error("record print failed")
		return
	}
	if c.hook != nil {
		c.hook(e)
	}
	c.log.WithField("user_id", e.UserID).Debug("print recorded")
}
