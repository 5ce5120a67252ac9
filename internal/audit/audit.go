// Package audit emits structured audit events for security-relevant
// actions (logins, token refreshes, password changes). Events go through
// the shared logger; they never contain credentials or token material.
package audit

import (
	"context"
	"strings"

	"github.com/sirupsen/logrus"

	"garnizon.org/internal/obs"
)

type ctxKey string

const requestIDKey ctxKey = "audit_request_id"

// WithRequestID attaches the request identifier to the context so audit
// entries can be correlated to access log lines.
func WithRequestID(ctx context.Context, requestID string) context.Context {
	requestID = strings.TrimSpace(requestID)
	if requestID == "" {
		return ctx
	}
	return context.WithValue(ctx, requestIDKey, requestID)
}

// RequestIDFromContext returns the correlation id attached by the request
// id middleware, or empty.
func RequestIDFromContext(ctx context.Context) string {
	return requestIDFromContext(ctx)
}

func requestIDFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	if v, ok := ctx.Value(requestIDKey).(string); ok {
		return v
	}
	return ""
}

// Event writes an audit entry enriched with request context.
func Event(ctx context.Context, event string, fields map[string]any) {
	event = strings.TrimSpace(event)
	if event == "" {
		return
	}
	entry := logrus.Fields{"type": "audit", "event": event}
	if rid := requestIDFromContext(ctx); rid != "" {
		entry["request_id"] = rid
	}
	for k, v := range fields {
		entry[k] = v
	}
	obs.Logger().WithFields(entry).Info("audit")
}
