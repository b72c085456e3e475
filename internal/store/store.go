// Package store is the per-user intention store: write-once records with a
// single mutable flag, and push subscriptions that deliver the whole visible
// window on every change.
package store

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/templui/ressona/internal/model"
)

var (
	ErrStore          = errors.New("store error")
	ErrNotFound       = errors.New("intention not found")
	ErrImmutableField = errors.New("field cannot be changed after creation")
	ErrInvalidScope   = errors.New("invalid scope")
	ErrInvalidRecord  = errors.New("invalid record")
)

// Scope is one user's partition. Nothing in the store reads or writes
// across scopes.
type Scope struct {
	AppID  string
	UserID string
}

func (s Scope) Path() string {
	return "artifacts/" + s.AppID + "/users/" + s.UserID + "/intentions"
}

func (s Scope) Validate() error {
	if s.AppID == "" || s.UserID == "" {
		return fmt.Errorf("%w: app and user are required", ErrInvalidScope)
	}
	if strings.Contains(s.AppID, "/") || strings.Contains(s.UserID, "/") {
		return fmt.Errorf("%w: ids must not contain '/'", ErrInvalidScope)
	}
	return nil
}

// Fields is a record or partial update keyed by model.Field* names.
type Fields map[string]any

type serverTimestamp struct{}

// ServerTimestamp asks the store to stamp the field with its own clock.
var ServerTimestamp = serverTimestamp{}

// Store is implemented by SQL and Memory.
type Store interface {
	// Create writes a new record and returns its id.
	Create(ctx context.Context, scope Scope, fields Fields) (string, error)

	// Update applies a partial update. Only mutable fields are accepted.
	Update(ctx context.Context, scope Scope, id string, fields Fields) error

	// Subscribe delivers the scope's window (at most limit records) now
	// and after every change until the subscription is closed.
	Subscribe(ctx context.Context, scope Scope, limit int) (*Subscription, error)

	// ServerTimestamps reports whether ServerTimestamp is backed by a
	// store-side clock.
	ServerTimestamps() bool

	Ping(ctx context.Context) error
	Close() error
}

var mutableFields = map[string]bool{
	model.FieldIsManifested: true,
}

func validateCreate(fields Fields) error {
	text, _ := fields[model.FieldText].(string)
	if strings.TrimSpace(text) == "" {
		return fmt.Errorf("%w: text is required", ErrInvalidRecord)
	}
	if _, ok := fields[model.FieldCreatedAt]; !ok {
		return fmt.Errorf("%w: createdAt is required", ErrInvalidRecord)
	}
	return nil
}

func validateUpdate(fields Fields) error {
	if len(fields) == 0 {
		return fmt.Errorf("%w: empty update", ErrInvalidRecord)
	}
	for name, v := range fields {
		if !mutableFields[name] {
			return fmt.Errorf("%w: %s", ErrImmutableField, name)
		}
		if _, ok := v.(bool); !ok {
			return fmt.Errorf("%w: %s must be a boolean", ErrInvalidRecord, name)
		}
	}
	return nil
}

func wrap(op string, err error) error {
	if errors.Is(err, ErrStore) {
		return err
	}
	return fmt.Errorf("%w: %s: %w", ErrStore, op, err)
}
