package metrics

import (
	"context"
	"time"

	"github.com/newrelic/go-agent/v3/newrelic"
)

// MethodTracer is a segment within the transaction found in the context.
// A nil *MethodTracer is valid and ignores every call.
type MethodTracer struct {
	txn   *newrelic.Transaction
	seg   *newrelic.Segment
	name  string
	start time.Time
}

// TraceMethodCall starts a segment named "<structOrPackageName> <methodName>".
func TraceMethodCall(ctx context.Context, structOrPackageName, methodName string) *MethodTracer {
	txn := newrelic.FromContext(ctx)
	if txn == nil {
		return nil
	}

	name := structOrPackageName + " " + methodName
	return &MethodTracer{
		txn:   txn,
		seg:   txn.StartSegment(name),
		name:  name,
		start: time.Now(),
	}
}

func (t *MethodTracer) AddAttribute(key string, value interface{}) {
	if t == nil {
		return
	}
	t.seg.AddAttribute(key, value)
}

func (t *MethodTracer) AddAttributes(attributes map[string]interface{}) {
	for key, value := range attributes {
		t.AddAttribute(key, value)
	}
}

// OnError notices err on the enclosing transaction. Nil errors are ignored.
func (t *MethodTracer) OnError(err error) {
	if t == nil || err == nil {
		return
	}
	t.txn.NoticeError(err)
}

// End completes the segment.
func (t *MethodTracer) End() {
	if t == nil {
		return
	}
	t.seg.End()
}

// Elapsed is the time since the trace was started.
func (t *MethodTracer) Elapsed() time.Duration {
	if t == nil {
		return 0
	}
	return time.Since(t.start)
}
