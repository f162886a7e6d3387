package producer

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/segmentio/kafka-go"

	auditdomain "github.com/jfkeci/job-board-sub000/internal/audit/domain"
)

var _ Producer = (*KafkaProducer)(nil)

type captureWriter struct {
	msgs     []kafka.Message
	err      error
	closed   bool
	deadline bool
}

func (w *captureWriter) WriteMessages(ctx context.Context, msgs ...kafka.Message) error {
	_, w.deadline = ctx.Deadline()
	w.msgs = append(w.msgs, msgs...)
	return w.err
}

func (w *captureWriter) Close() error {
	w.closed = true
	return nil
}

func TestNewKafkaProducer_EmptyConfigIsNil(t *testing.T) {
	p, err := NewKafkaProducer(nil, "audit")
	if err != nil || p != nil {
		t.Fatalf("NewKafkaProducer(no brokers) = %v, %v", p, err)
	}
	if err := p.Emit(context.Background(), &auditdomain.Event{}); err != nil {
		t.Errorf("nil producer Emit: %v", err)
	}
	if err := p.Close(); err != nil {
		t.Errorf("nil producer Close: %v", err)
	}
}

func TestKafkaProducer_Emit(t *testing.T) {
	w := &captureWriter{}
	p := NewKafkaProducerWithWriter(w)
	created := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	event := &auditdomain.Event{
		ID: "a1", UserID: "u1", Action: auditdomain.ActionRefresh,
		Outcome: auditdomain.OutcomeSuccess, CreatedAt: created,
	}
	if err := p.Emit(context.Background(), event); err != nil {
		t.Fatalf("Emit: %v", err)
	}
	if len(w.msgs) != 1 {
		t.Fatalf("wrote %d messages, want 1", len(w.msgs))
	}
	msg := w.msgs[0]
	if string(msg.Key) != "u1" {
		t.Errorf("key = %q, want u1", msg.Key)
	}
	if !w.deadline {
		t.Error("write context has no deadline")
	}
	var decoded auditdomain.Event
	if err := json.Unmarshal(msg.Value, &decoded); err != nil {
		t.Fatalf("payload is not JSON: %v", err)
	}
	if decoded.Action != auditdomain.ActionRefresh || decoded.ID != "a1" {
		t.Errorf("decoded = %+v", decoded)
	}
	headers := map[string]string{}
	for _, h := range msg.Headers {
		headers[h.Key] = string(h.Value)
	}
	if headers["action"] != "auth.refresh" || headers["outcome"] != "success" {
		t.Errorf("headers = %v", headers)
	}

	if err := p.Close(); err != nil || !w.closed {
		t.Errorf("Close = %v, closed = %v", err, w.closed)
	}
}

func TestKafkaProducer_EmitErrorAndAnonymousKey(t *testing.T) {
	w := &captureWriter{err: errors.New("leader not available")}
	p := NewKafkaProducerWithWriter(w)
	err := p.Emit(context.Background(), &auditdomain.Event{Action: auditdomain.ActionLoginFailure})
	if err == nil {
		t.Fatal("writer error should surface")
	}
	if w.msgs[0].Key != nil {
		t.Errorf("anonymous event key = %q, want nil", w.msgs[0].Key)
	}
}
