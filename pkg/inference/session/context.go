package session

import "context"

type sessionMetaContextKey string

const (
	sessionIDContextKey   sessionMetaContextKey = "session_id"
	inferenceIDContextKey sessionMetaContextKey = "inference_id"
)

// WithSessionMeta stores session and inference identifiers in context so the
// completion client can correlate its logs with a single exchange.
func WithSessionMeta(ctx context.Context, sessionID, inferenceID string) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	if sessionID != "" {
		ctx = context.WithValue(ctx, sessionIDContextKey, sessionID)
	}
	if inferenceID != "" {
		ctx = context.WithValue(ctx, inferenceIDContextKey, inferenceID)
	}
	return ctx
}

// SessionIDFromContext returns the identifier attached with WithSessionMeta,
// or "" when unavailable.
func SessionIDFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	sessionID, _ := ctx.Value(sessionIDContextKey).(string)
	return sessionID
}

func InferenceIDFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	inferenceID, _ := ctx.Value(inferenceIDContextKey).(string)
	return inferenceID
}
