package flow

import (
	"context"
	"fmt"
	"time"

	gooidc "github.com/coreos/go-oidc/v3/oidc"
	goerrors "github.com/goliatone/go-errors"
	glog "github.com/goliatone/go-logger/glog"
	"github.com/goliatone/go-oidc-store/core"
	"golang.org/x/oauth2"
)

// IDTokenVerifier validates a raw ID token's signature and standard claims.
// *gooidc.IDTokenVerifier satisfies it.
type IDTokenVerifier interface {
	Verify(ctx context.Context, rawIDToken string) (*gooidc.IDToken, error)
}

// Authorization is the outcome of Begin: the URL to redirect the browser to
// and the state value the callback must echo.
type Authorization struct {
	URL   string
	State string
}

// TokenSet is the terminal result of a completed flow.
type TokenSet struct {
	AccessToken  string
	RefreshToken string
	IDToken      string
	TokenType    string
	Expiry       time.Time
}

// Controller drives the authorization code flow for one registered client.
// Begin issues the redirect; Complete consumes the callback. Failures are
// terminal per attempt, there is no retry path.
type Controller struct {
	oauth      oauth2.Config
	attempts   AttemptStore
	verifier   IDTokenVerifier
	attemptTTL time.Duration
	logger     core.Logger
}

// ControllerOption customizes a Controller.
type ControllerOption func(*Controller)

// WithAttemptStore overrides the pending-attempt store.
func WithAttemptStore(store AttemptStore) ControllerOption {
	return func(c *Controller) {
		if store != nil {
			c.attempts = store
		}
	}
}

// WithAttemptTTL bounds how long an attempt may sit between redirect and
// callback.
func WithAttemptTTL(ttl time.Duration) ControllerOption {
	return func(c *Controller) {
		if ttl > 0 {
			c.attemptTTL = ttl
		}
	}
}

// WithIDTokenVerifier enables ID token verification on Complete. Without it
// the ID token is passed through unverified, which is only acceptable when a
// downstream component verifies it.
func WithIDTokenVerifier(verifier IDTokenVerifier) ControllerOption {
	return func(c *Controller) {
		c.verifier = verifier
	}
}

// WithControllerLogger overrides the controller logger.
func WithControllerLogger(logger core.Logger) ControllerOption {
	return func(c *Controller) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// WithControllerLoggerProvider resolves the controller logger from a named
// provider.
func WithControllerLoggerProvider(provider core.LoggerProvider) ControllerOption {
	return func(c *Controller) {
		_, c.logger = glog.Resolve("oidc-flow", provider, c.logger)
	}
}

// NewController builds a flow controller over the given OAuth2 client
// configuration. The configuration must carry the client id, redirect URL,
// endpoint, and scopes; the controller adds the per-attempt material.
func NewController(cfg oauth2.Config, opts ...ControllerOption) (*Controller, error) {
	if cfg.ClientID == "" {
		return nil, fmt.Errorf("flow: client id is required")
	}
	if cfg.RedirectURL == "" {
		return nil, fmt.Errorf("flow: redirect url is required")
	}
	_, logger := glog.Resolve("oidc-flow", nil, nil)
	controller := &Controller{
		oauth:      cfg,
		attemptTTL: defaultAttemptTTL,
		logger:     logger,
	}
	for _, opt := range opts {
		if opt == nil {
			continue
		}
		opt(controller)
	}
	if controller.attempts == nil {
		controller.attempts = NewMemoryAttemptStore(controller.attemptTTL)
	}
	return controller, nil
}

// Begin creates a new flow attempt and returns the authorization URL the
// browser should be redirected to. Each call mints fresh state, nonce, and
// PKCE material; nothing is shared between attempts.
func (c *Controller) Begin(ctx context.Context) (Authorization, error) {
	state, err := GenerateState()
	if err != nil {
		return Authorization{}, err
	}
	nonce, err := GenerateNonce()
	if err != nil {
		return Authorization{}, err
	}
	verifier, err := NewCodeVerifier()
	if err != nil {
		return Authorization{}, err
	}

	now := time.Now().UTC()
	attempt := Attempt{
		State:       state,
		Nonce:       nonce,
		Verifier:    verifier,
		RedirectURI: c.oauth.RedirectURL,
		CreatedAt:   now,
		ExpiresAt:   now.Add(c.attemptTTL),
	}
	if err := c.attempts.Save(ctx, attempt); err != nil {
		return Authorization{}, fmt.Errorf("flow: save attempt: %w", err)
	}

	url := c.oauth.AuthCodeURL(state,
		oauth2.SetAuthURLParam("nonce", nonce),
		oauth2.SetAuthURLParam("code_challenge", verifier.Challenge()),
		oauth2.SetAuthURLParam("code_challenge_method", string(verifier.Method())),
	)

	c.logger.Debug("authorization flow started", "client_id", c.oauth.ClientID)
	return Authorization{URL: url, State: state}, nil
}

// Complete consumes the callback for a pending attempt. A state value that
// does not match a pending attempt is a fatal security failure and the token
// endpoint is never called for it. On a match the code is exchanged with the
// attempt's PKCE verifier, and when an ID token verifier is configured the
// returned ID token's nonce must equal the attempt's nonce.
func (c *Controller) Complete(ctx context.Context, state, code string) (TokenSet, error) {
	attempt, err := c.attempts.Consume(ctx, state)
	if err != nil {
		c.logger.Warn("authorization callback rejected", "error", err)
		return TokenSet{}, authFailure("flow: state mismatch: no pending attempt for returned state", err)
	}
	if code == "" {
		return TokenSet{}, authFailure("flow: authorization code is required", nil)
	}

	token, err := c.oauth.Exchange(ctx, code,
		oauth2.SetAuthURLParam("code_verifier", attempt.Verifier.Verifier()),
	)
	if err != nil {
		return TokenSet{}, authFailure("flow: code exchange failed", err)
	}

	set := TokenSet{
		AccessToken:  token.AccessToken,
		RefreshToken: token.RefreshToken,
		TokenType:    token.TokenType,
		Expiry:       token.Expiry,
	}
	if raw, ok := token.Extra("id_token").(string); ok {
		set.IDToken = raw
	}

	if c.verifier != nil {
		if set.IDToken == "" {
			return TokenSet{}, authFailure("flow: id_token is missing from code exchange", nil)
		}
		idToken, err := c.verifier.Verify(ctx, set.IDToken)
		if err != nil {
			return TokenSet{}, authFailure("flow: id_token failed verification", err)
		}
		if idToken.Nonce != attempt.Nonce {
			return TokenSet{}, authFailure("flow: nonce mismatch in id_token", nil)
		}
	}

	c.logger.Info("authorization flow completed", "client_id", c.oauth.ClientID)
	return set, nil
}

func authFailure(message string, cause error) *goerrors.Error {
	if cause != nil {
		return goerrors.Wrap(cause, goerrors.CategoryAuth, message).
			WithTextCode(core.StoreErrorAuthFailed)
	}
	return goerrors.New(message, goerrors.CategoryAuth).
		WithTextCode(core.StoreErrorAuthFailed)
}
