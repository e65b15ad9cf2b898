package flow

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	gooidc "github.com/coreos/go-oidc/v3/oidc"
	goerrors "github.com/goliatone/go-errors"
	"golang.org/x/oauth2"
)

type stubVerifier struct {
	nonce string
	err   error
}

func (v stubVerifier) Verify(_ context.Context, _ string) (*gooidc.IDToken, error) {
	if v.err != nil {
		return nil, v.err
	}
	return &gooidc.IDToken{Nonce: v.nonce}, nil
}

func newTokenEndpoint(t *testing.T, hits *atomic.Int64) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		if err := r.ParseForm(); err != nil {
			t.Errorf("parse token request: %v", err)
		}
		if r.PostFormValue("code_verifier") == "" {
			t.Errorf("expected code_verifier on the token request")
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"access_token":  "at_1",
			"token_type":    "bearer",
			"refresh_token": "rt_1",
			"expires_in":    3600,
			"id_token":      "raw-id-token",
		})
	}))
}

func newTestController(t *testing.T, server *httptest.Server, opts ...ControllerOption) *Controller {
	t.Helper()
	cfg := oauth2.Config{
		ClientID:    "web",
		RedirectURL: "https://rp.example.com/cb",
		Scopes:      []string{"openid", "email"},
		Endpoint: oauth2.Endpoint{
			AuthURL:   "https://op.example.com/auth",
			TokenURL:  server.URL + "/token",
			AuthStyle: oauth2.AuthStyleInParams,
		},
	}
	controller, err := NewController(cfg, opts...)
	if err != nil {
		t.Fatalf("new controller: %v", err)
	}
	return controller
}

func TestController_BeginEmbedsAttemptMaterial(t *testing.T) {
	ctx := context.Background()
	var hits atomic.Int64
	server := newTokenEndpoint(t, &hits)
	defer server.Close()

	controller := newTestController(t, server)
	auth, err := controller.Begin(ctx)
	if err != nil {
		t.Fatalf("begin: %v", err)
	}

	parsed, err := url.Parse(auth.URL)
	if err != nil {
		t.Fatalf("parse auth url: %v", err)
	}
	query := parsed.Query()
	if query.Get("state") != auth.State {
		t.Fatalf("url state %q != returned state %q", query.Get("state"), auth.State)
	}
	if query.Get("client_id") != "web" {
		t.Fatalf("expected client_id web, got %q", query.Get("client_id"))
	}
	if query.Get("code_challenge_method") != "S256" {
		t.Fatalf("expected S256 challenge method, got %q", query.Get("code_challenge_method"))
	}
	if len(query.Get("code_challenge")) != verifierLen {
		t.Fatalf("expected a %d-char challenge, got %q", verifierLen, query.Get("code_challenge"))
	}
	if !strings.HasPrefix(query.Get("nonce"), "n_") {
		t.Fatalf("expected a generated nonce, got %q", query.Get("nonce"))
	}
	if !strings.Contains(query.Get("scope"), "openid") {
		t.Fatalf("expected openid scope, got %q", query.Get("scope"))
	}
}

func TestController_BeginMintsFreshMaterialPerAttempt(t *testing.T) {
	ctx := context.Background()
	var hits atomic.Int64
	server := newTokenEndpoint(t, &hits)
	defer server.Close()

	controller := newTestController(t, server)
	first, err := controller.Begin(ctx)
	if err != nil {
		t.Fatalf("first begin: %v", err)
	}
	second, err := controller.Begin(ctx)
	if err != nil {
		t.Fatalf("second begin: %v", err)
	}
	if first.State == second.State {
		t.Fatalf("state values must not repeat across attempts")
	}
}

func TestController_CompleteExchangesCode(t *testing.T) {
	ctx := context.Background()
	var hits atomic.Int64
	server := newTokenEndpoint(t, &hits)
	defer server.Close()

	controller := newTestController(t, server)
	auth, err := controller.Begin(ctx)
	if err != nil {
		t.Fatalf("begin: %v", err)
	}

	set, err := controller.Complete(ctx, auth.State, "code_1")
	if err != nil {
		t.Fatalf("complete: %v", err)
	}
	if set.AccessToken != "at_1" || set.RefreshToken != "rt_1" || set.IDToken != "raw-id-token" {
		t.Fatalf("unexpected token set %+v", set)
	}
	if set.Expiry.IsZero() {
		t.Fatalf("expected expires_in to map onto the token set expiry")
	}
	if hits.Load() != 1 {
		t.Fatalf("expected exactly one token endpoint call, got %d", hits.Load())
	}
}

func TestController_CompleteStateMismatchSkipsExchange(t *testing.T) {
	ctx := context.Background()
	var hits atomic.Int64
	server := newTokenEndpoint(t, &hits)
	defer server.Close()

	controller := newTestController(t, server)
	if _, err := controller.Begin(ctx); err != nil {
		t.Fatalf("begin: %v", err)
	}

	_, err := controller.Complete(ctx, "st_forged", "code_1")
	if err == nil {
		t.Fatalf("expected a mismatched state to fail")
	}
	var richErr *goerrors.Error
	if !goerrors.As(err, &richErr) || richErr.Category != goerrors.CategoryAuth {
		t.Fatalf("expected an auth category failure, got %v", err)
	}
	if hits.Load() != 0 {
		t.Fatalf("token endpoint must not be called on state mismatch, got %d calls", hits.Load())
	}
}

func TestController_CompleteStateIsSingleUse(t *testing.T) {
	ctx := context.Background()
	var hits atomic.Int64
	server := newTokenEndpoint(t, &hits)
	defer server.Close()

	controller := newTestController(t, server)
	auth, err := controller.Begin(ctx)
	if err != nil {
		t.Fatalf("begin: %v", err)
	}
	if _, err := controller.Complete(ctx, auth.State, "code_1"); err != nil {
		t.Fatalf("first complete: %v", err)
	}
	if _, err := controller.Complete(ctx, auth.State, "code_1"); err == nil {
		t.Fatalf("expected a replayed state to fail")
	}
	if hits.Load() != 1 {
		t.Fatalf("replay must not reach the token endpoint, got %d calls", hits.Load())
	}
}

func TestController_CompleteVerifiesNonce(t *testing.T) {
	ctx := context.Background()
	var hits atomic.Int64
	server := newTokenEndpoint(t, &hits)
	defer server.Close()

	t.Run("matching nonce passes", func(t *testing.T) {
		store := NewMemoryAttemptStore(time.Minute)
		controller := newTestController(t, server, WithAttemptStore(store))
		auth, err := controller.Begin(ctx)
		if err != nil {
			t.Fatalf("begin: %v", err)
		}
		parsed, _ := url.Parse(auth.URL)
		nonce := parsed.Query().Get("nonce")

		verified := newTestController(t, server,
			WithAttemptStore(store),
			WithIDTokenVerifier(stubVerifier{nonce: nonce}),
		)
		if _, err := verified.Complete(ctx, auth.State, "code_1"); err != nil {
			t.Fatalf("complete with matching nonce: %v", err)
		}
	})

	t.Run("nonce mismatch fails", func(t *testing.T) {
		controller := newTestController(t, server,
			WithIDTokenVerifier(stubVerifier{nonce: "n_other"}),
		)
		auth, err := controller.Begin(ctx)
		if err != nil {
			t.Fatalf("begin: %v", err)
		}
		_, err = controller.Complete(ctx, auth.State, "code_1")
		if err == nil {
			t.Fatalf("expected nonce mismatch to fail")
		}
		var richErr *goerrors.Error
		if !goerrors.As(err, &richErr) || richErr.Category != goerrors.CategoryAuth {
			t.Fatalf("expected an auth category failure, got %v", err)
		}
	})
}

func TestNewController_RequiresClientAndRedirect(t *testing.T) {
	if _, err := NewController(oauth2.Config{RedirectURL: "https://rp/cb"}); err == nil {
		t.Fatalf("expected client id requirement error")
	}
	if _, err := NewController(oauth2.Config{ClientID: "web"}); err == nil {
		t.Fatalf("expected redirect url requirement error")
	}
}
