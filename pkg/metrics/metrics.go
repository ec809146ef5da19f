// Package metrics records custom metrics and traces against a New Relic
// application carried in the context. Every helper is a no-op when the
// context has none.
package metrics

import (
	"context"
	"time"

	"github.com/newrelic/go-agent/v3/newrelic"
)

type newRelicContextKey struct{}

// NewRelicContextKey is the context key holding the *newrelic.Application.
var NewRelicContextKey = newRelicContextKey{}

// NewContext returns a copy of ctx that carries app for metric recording
// and a background transaction named name for tracing.
func NewContext(ctx context.Context, app *newrelic.Application, name string) (context.Context, func()) {
	if app == nil {
		return ctx, func() {}
	}

	txn := app.StartTransaction(name)
	ctx = context.WithValue(ctx, NewRelicContextKey, app)
	ctx = newrelic.NewContext(ctx, txn)
	return ctx, txn.End
}

func fromContext(ctx context.Context) (*newrelic.Application, bool) {
	nr, ok := ctx.Value(NewRelicContextKey).(*newrelic.Application)
	return nr, ok && nr != nil
}

// RecordCount records a count metric
func RecordCount(ctx context.Context, metricName string, count uint64) {
	if nr, ok := fromContext(ctx); ok {
		nr.RecordCustomMetric(metricName, float64(count))
	}
}

// RecordDuration records a duration metric in milliseconds
func RecordDuration(ctx context.Context, metricName string, duration time.Duration) {
	if nr, ok := fromContext(ctx); ok {
		nr.RecordCustomMetric(metricName, float64(duration/time.Millisecond))
	}
}

// RecordEvent records a new event with a name and set of key-value pairs
func RecordEvent(ctx context.Context, eventName string, kvPairs map[string]interface{}) {
	if nr, ok := fromContext(ctx); ok {
		nr.RecordCustomEvent(eventName, kvPairs)
	}
}
