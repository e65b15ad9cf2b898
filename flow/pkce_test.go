package flow

import (
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"testing"
)

func TestNewCodeVerifier(t *testing.T) {
	got, err := NewCodeVerifier()
	if err != nil {
		t.Fatalf("new code verifier: %v", err)
	}
	if len(got.Verifier()) != verifierLen {
		t.Fatalf("expected %d-char verifier, got %d", verifierLen, len(got.Verifier()))
	}
	if got.Method() != S256 {
		t.Fatalf("expected S256, got %q", got.Method())
	}

	challenge, err := CreateCodeChallenge(S256, got)
	if err != nil {
		t.Fatalf("create code challenge: %v", err)
	}
	if challenge != got.Challenge() {
		t.Fatalf("precomputed challenge %q != derived %q", got.Challenge(), challenge)
	}

	sum := sha256.Sum256([]byte(got.Verifier()))
	if want := base64.RawURLEncoding.EncodeToString(sum[:]); challenge != want {
		t.Fatalf("challenge %q is not the S256 transform of the verifier", challenge)
	}
}

func TestNewCodeVerifier_Unique(t *testing.T) {
	a, err := NewCodeVerifier()
	if err != nil {
		t.Fatalf("first verifier: %v", err)
	}
	b, err := NewCodeVerifier()
	if err != nil {
		t.Fatalf("second verifier: %v", err)
	}
	if a.Verifier() == b.Verifier() {
		t.Fatalf("verifiers must not repeat")
	}
}

func TestCreateCodeChallenge_UnsupportedMethod(t *testing.T) {
	v, err := NewCodeVerifier()
	if err != nil {
		t.Fatalf("new code verifier: %v", err)
	}
	challenge, err := CreateCodeChallenge(ChallengeMethod("plain"), v)
	if err == nil {
		t.Fatalf("expected unsupported method error")
	}
	if !errors.Is(err, ErrUnsupportedChallengeMethod) {
		t.Fatalf("expected ErrUnsupportedChallengeMethod, got %v", err)
	}
	if challenge != "" {
		t.Fatalf("expected empty challenge, got %q", challenge)
	}
}
