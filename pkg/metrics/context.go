package metrics

import (
	"context"

	"github.com/newrelic/go-agent/v3/newrelic"
)

type newRelicContextKey struct{}

// NewRelicContextKey is the context key under which the New Relic application
// is stored.
var NewRelicContextKey newRelicContextKey

// NewContext returns a context with the New Relic application attached, so
// downstream calls can record metrics and events against it.
func NewContext(ctx context.Context, app *newrelic.Application) context.Context {
	return context.WithValue(ctx, NewRelicContextKey, app)
}
