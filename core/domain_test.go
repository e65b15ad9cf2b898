package core

import (
	"testing"
	"time"
)

func TestParseKind(t *testing.T) {
	for _, kind := range Kinds() {
		parsed, err := ParseKind(string(kind))
		if err != nil {
			t.Fatalf("parse %s: %v", kind, err)
		}
		if parsed != kind {
			t.Fatalf("expected %s, got %s", kind, parsed)
		}
	}

	if _, err := ParseKind("PushedAuthorizationRequest"); err == nil {
		t.Fatalf("expected unknown kind error")
	}
}

func TestPayloadMerge_AdditiveOverwrite(t *testing.T) {
	base := Payload{
		ClientID: stringPtr("web"),
		Scope:    stringPtr("openid"),
		Claims:   map[string]any{"sub": "usr_1"},
	}

	merged := base.Merge(Payload{
		Scope:   stringPtr("openid email"),
		GrantID: stringPtr("grant_1"),
		Claims:  map[string]any{"email": "u@example.com"},
	})

	if merged.ClientID == nil || *merged.ClientID != "web" {
		t.Fatalf("expected client id to survive merge, got %v", merged.ClientID)
	}
	if merged.Scope == nil || *merged.Scope != "openid email" {
		t.Fatalf("expected scope overwrite, got %v", merged.Scope)
	}
	if merged.GrantID == nil || *merged.GrantID != "grant_1" {
		t.Fatalf("expected grant id to be set, got %v", merged.GrantID)
	}
	if merged.Claims["sub"] != "usr_1" || merged.Claims["email"] != "u@example.com" {
		t.Fatalf("expected claims to merge key-wise, got %v", merged.Claims)
	}

	// the original must not be mutated
	if base.Scope == nil || *base.Scope != "openid" {
		t.Fatalf("merge mutated its receiver: %v", base.Scope)
	}
	if _, ok := base.Claims["email"]; ok {
		t.Fatalf("merge mutated receiver claims: %v", base.Claims)
	}
}

func TestPayloadMerge_NilFieldsPreservePriorValues(t *testing.T) {
	base := Payload{
		CodeChallenge:       stringPtr("challenge"),
		CodeChallengeMethod: stringPtr("S256"),
		RedirectURIs:        []string{"https://rp.example.com/cb"},
	}

	merged := base.Merge(Payload{State: stringPtr("st_1")})

	if merged.CodeChallenge == nil || merged.CodeChallengeMethod == nil {
		t.Fatalf("expected PKCE fields to survive a partial update")
	}
	if len(merged.RedirectURIs) != 1 {
		t.Fatalf("expected redirect uris to survive, got %v", merged.RedirectURIs)
	}
	if merged.State == nil || *merged.State != "st_1" {
		t.Fatalf("expected state to be applied, got %v", merged.State)
	}
}

func TestEntityExpired(t *testing.T) {
	now := time.Now().UTC()
	past := now.Add(-time.Minute)
	future := now.Add(time.Minute)

	if (Entity{}).Expired(now) {
		t.Fatalf("entity without expiry must never expire")
	}
	if !(Entity{ExpiresAt: &past}).Expired(now) {
		t.Fatalf("expected past expiry to report expired")
	}
	if (Entity{ExpiresAt: &future}).Expired(now) {
		t.Fatalf("expected future expiry to report live")
	}
}

func TestKindPrimaryKeyField(t *testing.T) {
	expected := map[Kind]string{
		KindClient:            "client_id",
		KindSession:           "uid",
		KindGrant:             "id",
		KindAuthorizationCode: "code",
		KindAccessToken:       "access_token",
		KindRefreshToken:      "refresh_token",
		KindDeviceCode:        "device_code",
		KindInteraction:       "uid",
	}
	for kind, field := range expected {
		if got := kind.PrimaryKeyField(); got != field {
			t.Fatalf("%s: expected primary key field %q, got %q", kind, field, got)
		}
	}
}

func stringPtr(value string) *string {
	return &value
}
