package ctxkeys

import (
	"context"

	"github.com/templui/ressona/internal/config"
	"github.com/templui/ressona/internal/model"
)

// contextKey is a type for context keys to avoid collisions
type contextKey string

const (
	IdentityKey contextKey = "identity"
	ConfigKey   contextKey = "config"
	UserIDSink  contextKey = "user_id_sink"
)

// Identity returns the caller's identity, or the zero value outside the
// identity middleware.
func Identity(ctx context.Context) model.Identity {
	id, _ := ctx.Value(IdentityKey).(model.Identity)
	return id
}

// WithIdentity also reports the user id to an enclosing sink so the
// request logger can see it.
func WithIdentity(ctx context.Context, id model.Identity) context.Context {
	if sink, ok := ctx.Value(UserIDSink).(*string); ok && sink != nil {
		*sink = id.UserID
	}
	return context.WithValue(ctx, IdentityKey, id)
}

func WithUserIDSink(ctx context.Context, sink *string) context.Context {
	return context.WithValue(ctx, UserIDSink, sink)
}

func Config(ctx context.Context) *config.Config {
	cfg, _ := ctx.Value(ConfigKey).(*config.Config)
	return cfg
}

func WithConfig(ctx context.Context, cfg *config.Config) context.Context {
	return context.WithValue(ctx, ConfigKey, cfg)
}
