// Package flow implements the relying-party side of the OIDC authorization
// code flow: PKCE material, per-attempt state tracking, and a controller that
// turns a callback into a verified token set. The controller never retries a
// failed exchange and never calls the token endpoint when the returned state
// does not match a pending attempt.
package flow
