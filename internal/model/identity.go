package model

type IdentityKind string

const (
	IdentityAnonymous IdentityKind = "anonymous"
	IdentityToken     IdentityKind = "token"
	// IdentityFallback is a locally generated id used while the identity
	// provider is unavailable.
	IdentityFallback IdentityKind = "fallback"
)

type Identity struct {
	UserID string       `json:"userId"`
	Kind   IdentityKind `json:"kind"`
}

func (i Identity) IsZero() bool {
	return i.UserID == ""
}
