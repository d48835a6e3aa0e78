package domain

import "context"

type requestIDKey struct{}

// WithRequestID anexa o id da requisição ao contexto (logs e header upstream).
func WithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, requestIDKey{}, id)
}

func RequestIDFrom(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey{}).(string)
	return id
}
