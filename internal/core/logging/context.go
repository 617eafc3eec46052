package logging

import "context"

// Fields are the log fields carried on a context.
type Fields struct {
	SessionID string // tracking session, one per process
	Route     string // route file or planned output name
}

type fieldsKey struct{}

// FieldsFrom returns the fields stored on ctx, zero when none are.
func FieldsFrom(ctx context.Context) Fields {
	f, _ := ctx.Value(fieldsKey{}).(Fields)
	return f
}

func withFields(ctx context.Context, update func(*Fields)) context.Context {
	f := FieldsFrom(ctx)
	update(&f)
	return context.WithValue(ctx, fieldsKey{}, f)
}

// WithSessionID returns ctx tagged with a tracking session id.
func WithSessionID(ctx context.Context, sessionID string) context.Context {
	return withFields(ctx, func(f *Fields) { f.SessionID = sessionID })
}

// WithRoute returns ctx tagged with a route label.
func WithRoute(ctx context.Context, route string) context.Context {
	return withFields(ctx, func(f *Fields) { f.Route = route })
}

// GetSessionID returns the session id on ctx, or "".
func GetSessionID(ctx context.Context) string { return FieldsFrom(ctx).SessionID }

// GetRoute returns the route label on ctx, or "".
func GetRoute(ctx context.Context) string { return FieldsFrom(ctx).Route }
