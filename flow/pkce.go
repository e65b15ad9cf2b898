package flow

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"fmt"
)

// ChallengeMethod names a PKCE code challenge transformation.
type ChallengeMethod string

// S256 is the only supported challenge method. The plain method defeats the
// purpose of PKCE and is deliberately not implemented.
const S256 ChallengeMethod = "S256"

// ErrUnsupportedChallengeMethod reports a challenge method other than S256.
var ErrUnsupportedChallengeMethod = errors.New("flow: unsupported code challenge method")

// 32 random bytes base64url-encode to 43 characters, the RFC 7636 minimum
// verifier length.
const verifierLen = 43

// CodeVerifier holds one flow attempt's PKCE secret and its derived
// challenge. The verifier is generated once per attempt and never reused.
type CodeVerifier struct {
	verifier  string
	challenge string
}

// NewCodeVerifier generates a high-entropy code verifier and computes its
// S256 challenge.
func NewCodeVerifier() (*CodeVerifier, error) {
	raw := make([]byte, 32)
	if _, err := rand.Read(raw); err != nil {
		return nil, fmt.Errorf("flow: generate code verifier: %w", err)
	}
	v := &CodeVerifier{
		verifier: base64.RawURLEncoding.EncodeToString(raw),
	}
	challenge, err := CreateCodeChallenge(S256, v)
	if err != nil {
		return nil, err
	}
	v.challenge = challenge
	return v, nil
}

// Verifier returns the plaintext verifier sent to the token endpoint.
func (v *CodeVerifier) Verifier() string { return v.verifier }

// Challenge returns the derived challenge sent on the authorization URL.
func (v *CodeVerifier) Challenge() string { return v.challenge }

// Method returns the challenge method the verifier was derived with.
func (v *CodeVerifier) Method() ChallengeMethod { return S256 }

// CreateCodeChallenge derives the code challenge for the given verifier.
func CreateCodeChallenge(method ChallengeMethod, v *CodeVerifier) (string, error) {
	if method != S256 {
		return "", fmt.Errorf("flow: %q: %w", method, ErrUnsupportedChallengeMethod)
	}
	if v == nil || v.verifier == "" {
		return "", fmt.Errorf("flow: code verifier is required")
	}
	sum := sha256.Sum256([]byte(v.verifier))
	return base64.RawURLEncoding.EncodeToString(sum[:]), nil
}
