package core

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

var (
	ErrUnknownKind     = errors.New("core: unknown entity kind")
	ErrInvalidEntityID = errors.New("core: invalid entity id")
)

// Kind identifies one of the persisted OIDC entity families. The names match
// what provider libraries use when they ask for an adapter, so they are
// exported verbatim rather than normalized.
type Kind string

const (
	KindClient            Kind = "Client"
	KindSession           Kind = "Session"
	KindGrant             Kind = "Grant"
	KindAuthorizationCode Kind = "AuthorizationCode"
	KindAccessToken       Kind = "AccessToken"
	KindRefreshToken      Kind = "RefreshToken"
	KindDeviceCode        Kind = "DeviceCode"
	KindInteraction       Kind = "Interaction"
)

// Kinds returns every supported entity kind in a stable order.
func Kinds() []Kind {
	return []Kind{
		KindClient,
		KindSession,
		KindGrant,
		KindAuthorizationCode,
		KindAccessToken,
		KindRefreshToken,
		KindDeviceCode,
		KindInteraction,
	}
}

// ParseKind resolves a provider-supplied kind name. Unknown names are a
// wiring defect, not a runtime condition, and surface as ErrUnknownKind.
func ParseKind(name string) (Kind, error) {
	trimmed := strings.TrimSpace(name)
	for _, kind := range Kinds() {
		if string(kind) == trimmed {
			return kind, nil
		}
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownKind, name)
}

// kindDescriptor is static per-kind configuration: the primary key field name
// and which lifecycle operations are meaningful for the kind. It is data, not
// behavior; the adapter strategies consult it once at construction.
type kindDescriptor struct {
	primaryKeyField string
	uidAddressable  bool
	userCodeIndexed bool
	grantIndexed    bool
	consumable      bool
	destroyable     bool
}

var kindDescriptors = map[Kind]kindDescriptor{
	KindClient: {
		primaryKeyField: "client_id",
	},
	KindSession: {
		primaryKeyField: "uid",
		uidAddressable:  true,
		destroyable:     true,
	},
	KindGrant: {
		primaryKeyField: "id",
		destroyable:     true,
	},
	KindAuthorizationCode: {
		primaryKeyField: "code",
		consumable:      true,
		destroyable:     true,
	},
	KindAccessToken: {
		primaryKeyField: "access_token",
		grantIndexed:    true,
		destroyable:     true,
	},
	KindRefreshToken: {
		primaryKeyField: "refresh_token",
		grantIndexed:    true,
		destroyable:     true,
	},
	KindDeviceCode: {
		primaryKeyField: "device_code",
		userCodeIndexed: true,
		destroyable:     true,
	},
	KindInteraction: {
		primaryKeyField: "uid",
		uidAddressable:  true,
		destroyable:     true,
	},
}

// PrimaryKeyField reports the name of the field the provider library treats
// as the kind's primary key.
func (k Kind) PrimaryKeyField() string {
	return kindDescriptors[k].primaryKeyField
}

func (k Kind) descriptor() kindDescriptor {
	return kindDescriptors[k]
}

// Payload is the typed, partial attribute bag for a persisted entity. Every
// field is optional; nil means "not supplied in this write" and never clears
// a previously stored value. The provider library upserts subsets of these at
// different protocol stages, so merge semantics are per-field overwrite.
//
// GrantID is the canonical grant-reference field. Access and refresh tokens
// carry it so a destroyed grant can cascade to every dependent token.
type Payload struct {
	ClientID  *string `json:"client_id,omitempty"`
	AccountID *string `json:"account_id,omitempty"`
	GrantID   *string `json:"grant_id,omitempty"`
	UserCode  *string `json:"user_code,omitempty"`
	JTI       *string `json:"jti,omitempty"`

	RedirectURI         *string `json:"redirect_uri,omitempty"`
	ResponseType        *string `json:"response_type,omitempty"`
	Scope               *string `json:"scope,omitempty"`
	State               *string `json:"state,omitempty"`
	Nonce               *string `json:"nonce,omitempty"`
	CodeChallenge       *string `json:"code_challenge,omitempty"`
	CodeChallengeMethod *string `json:"code_challenge_method,omitempty"`

	RedirectURIs            []string `json:"redirect_uris,omitempty"`
	GrantTypes              []string `json:"grant_types,omitempty"`
	ResponseTypes           []string `json:"response_types,omitempty"`
	TokenEndpointAuthMethod *string  `json:"token_endpoint_auth_method,omitempty"`
	RequirePKCE             *bool    `json:"require_pkce,omitempty"`

	Claims  map[string]any `json:"claims,omitempty"`
	Session map[string]any `json:"session,omitempty"`
	Params  map[string]any `json:"params,omitempty"`
	Extra   map[string]any `json:"extra,omitempty"`
}

// Merge overlays update onto p field by field. Fields the update leaves nil
// keep their previous values; map fields merge key-wise so staged writes stay
// additive. Neither receiver nor argument is mutated.
func (p Payload) Merge(update Payload) Payload {
	out := p.Clone()

	mergeString(&out.ClientID, update.ClientID)
	mergeString(&out.AccountID, update.AccountID)
	mergeString(&out.GrantID, update.GrantID)
	mergeString(&out.UserCode, update.UserCode)
	mergeString(&out.JTI, update.JTI)
	mergeString(&out.RedirectURI, update.RedirectURI)
	mergeString(&out.ResponseType, update.ResponseType)
	mergeString(&out.Scope, update.Scope)
	mergeString(&out.State, update.State)
	mergeString(&out.Nonce, update.Nonce)
	mergeString(&out.CodeChallenge, update.CodeChallenge)
	mergeString(&out.CodeChallengeMethod, update.CodeChallengeMethod)
	mergeString(&out.TokenEndpointAuthMethod, update.TokenEndpointAuthMethod)

	if update.RequirePKCE != nil {
		value := *update.RequirePKCE
		out.RequirePKCE = &value
	}
	if update.RedirectURIs != nil {
		out.RedirectURIs = append([]string(nil), update.RedirectURIs...)
	}
	if update.GrantTypes != nil {
		out.GrantTypes = append([]string(nil), update.GrantTypes...)
	}
	if update.ResponseTypes != nil {
		out.ResponseTypes = append([]string(nil), update.ResponseTypes...)
	}

	out.Claims = mergeAnyMap(out.Claims, update.Claims)
	out.Session = mergeAnyMap(out.Session, update.Session)
	out.Params = mergeAnyMap(out.Params, update.Params)
	out.Extra = mergeAnyMap(out.Extra, update.Extra)

	return out
}

// Clone returns a deep copy so callers can hold entities across adapter calls
// without aliasing engine-owned state.
func (p Payload) Clone() Payload {
	out := p
	out.ClientID = cloneString(p.ClientID)
	out.AccountID = cloneString(p.AccountID)
	out.GrantID = cloneString(p.GrantID)
	out.UserCode = cloneString(p.UserCode)
	out.JTI = cloneString(p.JTI)
	out.RedirectURI = cloneString(p.RedirectURI)
	out.ResponseType = cloneString(p.ResponseType)
	out.Scope = cloneString(p.Scope)
	out.State = cloneString(p.State)
	out.Nonce = cloneString(p.Nonce)
	out.CodeChallenge = cloneString(p.CodeChallenge)
	out.CodeChallengeMethod = cloneString(p.CodeChallengeMethod)
	out.TokenEndpointAuthMethod = cloneString(p.TokenEndpointAuthMethod)
	if p.RequirePKCE != nil {
		value := *p.RequirePKCE
		out.RequirePKCE = &value
	}
	if p.RedirectURIs != nil {
		out.RedirectURIs = append([]string(nil), p.RedirectURIs...)
	}
	if p.GrantTypes != nil {
		out.GrantTypes = append([]string(nil), p.GrantTypes...)
	}
	if p.ResponseTypes != nil {
		out.ResponseTypes = append([]string(nil), p.ResponseTypes...)
	}
	out.Claims = copyAnyMap(p.Claims)
	out.Session = copyAnyMap(p.Session)
	out.Params = copyAnyMap(p.Params)
	out.Extra = copyAnyMap(p.Extra)
	return out
}

// GrantReference returns the grant id the payload carries, if any.
func (p Payload) GrantReference() string {
	if p.GrantID == nil {
		return ""
	}
	return *p.GrantID
}

// Entity is one persisted OIDC record: a kind, the kind's primary key value,
// and the merged payload. ExpiresAt nil means the record never expires.
type Entity struct {
	Kind      Kind
	Key       string
	Payload   Payload
	CreatedAt time.Time
	UpdatedAt time.Time
	ExpiresAt *time.Time
}

// Expired reports whether the entity is logically absent at the given instant.
func (e Entity) Expired(now time.Time) bool {
	return e.ExpiresAt != nil && !e.ExpiresAt.After(now)
}

// Clone deep-copies the entity.
func (e Entity) Clone() Entity {
	out := e
	out.Payload = e.Payload.Clone()
	if e.ExpiresAt != nil {
		expires := *e.ExpiresAt
		out.ExpiresAt = &expires
	}
	return out
}

func mergeString(dst **string, src *string) {
	if src == nil {
		return
	}
	value := *src
	*dst = &value
}

func cloneString(value *string) *string {
	if value == nil {
		return nil
	}
	out := *value
	return &out
}

func mergeAnyMap(base, update map[string]any) map[string]any {
	if update == nil {
		return copyAnyMap(base)
	}
	out := copyAnyMap(base)
	if out == nil {
		out = make(map[string]any, len(update))
	}
	for key, value := range update {
		out[key] = value
	}
	return out
}

func copyAnyMap(in map[string]any) map[string]any {
	if in == nil {
		return nil
	}
	out := make(map[string]any, len(in))
	for key, value := range in {
		out[key] = value
	}
	return out
}
