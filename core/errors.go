package core

import (
	"net/http"
	"strings"

	goerrors "github.com/goliatone/go-errors"
)

const (
	StoreErrorBadInput       = "OIDC_STORE_BAD_INPUT"
	StoreErrorUnknownKind    = "OIDC_STORE_UNKNOWN_KIND"
	StoreErrorBackendFailure = "OIDC_STORE_BACKEND_FAILURE"
	StoreErrorAuthFailed     = "OIDC_FLOW_AUTH_FAILED"
	StoreErrorInternal       = "OIDC_STORE_INTERNAL_ERROR"
)

// ErrorFactory builds a categorized error from a message.
type ErrorFactory func(message string, category ...goerrors.Category) *goerrors.Error

// ErrorMapper normalizes an arbitrary error into the module's envelope.
type ErrorMapper func(err error) *goerrors.Error

func defaultErrorFactory(message string, category ...goerrors.Category) *goerrors.Error {
	cat := goerrors.CategoryInternal
	if len(category) > 0 {
		cat = category[0]
	}
	return ensureStoreErrorEnvelope(goerrors.New(message, cat))
}

func storeErrorMapper(err error) *goerrors.Error {
	if err == nil {
		return nil
	}

	var richErr *goerrors.Error
	if goerrors.As(err, &richErr) {
		return ensureStoreErrorEnvelope(richErr)
	}

	msg := strings.ToLower(strings.TrimSpace(err.Error()))
	switch {
	case strings.Contains(msg, "unknown entity kind"):
		return newStoreError(err.Error(), goerrors.CategoryOperation, StoreErrorUnknownKind)
	case strings.Contains(msg, "state mismatch"), strings.Contains(msg, "nonce mismatch"),
		strings.Contains(msg, "code exchange"):
		return newStoreError(err.Error(), goerrors.CategoryAuth, StoreErrorAuthFailed)
	case strings.Contains(msg, "required"), strings.Contains(msg, "invalid entity id"):
		return newStoreError(err.Error(), goerrors.CategoryBadInput, StoreErrorBadInput)
	}

	mapped := goerrors.MapToError(err, goerrors.DefaultErrorMappers())
	return ensureStoreErrorEnvelope(mapped)
}

func newStoreError(message string, category goerrors.Category, textCode string) *goerrors.Error {
	return ensureStoreErrorEnvelope(
		goerrors.New(message, category).
			WithTextCode(textCode),
	)
}

// misconfigurationError flags an unrecognized kind: a defect in wiring, never
// retried or masked.
func misconfigurationError(message string) *goerrors.Error {
	return goerrors.New(message, goerrors.CategoryOperation).
		WithCode(http.StatusInternalServerError).
		WithTextCode(StoreErrorUnknownKind)
}

// backendError wraps a storage I/O failure. The adapter propagates these to
// the provider library untouched; swallowing one corrupts protocol state.
func backendError(err error, message string) *goerrors.Error {
	return goerrors.Wrap(err, goerrors.CategoryInternal, message).
		WithCode(http.StatusInternalServerError).
		WithTextCode(StoreErrorBackendFailure)
}

func ensureStoreErrorEnvelope(err *goerrors.Error) *goerrors.Error {
	if err == nil {
		return nil
	}
	if err.Code == 0 {
		err.Code = storeHTTPStatus(err.Category)
	}
	if strings.TrimSpace(err.TextCode) == "" {
		err.TextCode = defaultStoreTextCode(err.Category)
	}
	if err.Category == goerrors.CategoryInternal && strings.TrimSpace(err.Message) == "" {
		err.Message = "An unexpected error occurred"
	}
	return err
}

func defaultStoreTextCode(category goerrors.Category) string {
	switch category {
	case goerrors.CategoryBadInput, goerrors.CategoryValidation:
		return StoreErrorBadInput
	case goerrors.CategoryAuth, goerrors.CategoryAuthz:
		return StoreErrorAuthFailed
	case goerrors.CategoryOperation:
		return StoreErrorUnknownKind
	default:
		return StoreErrorInternal
	}
}

func storeHTTPStatus(category goerrors.Category) int {
	switch category {
	case goerrors.CategoryBadInput, goerrors.CategoryValidation:
		return http.StatusBadRequest
	case goerrors.CategoryNotFound:
		return http.StatusNotFound
	case goerrors.CategoryAuth:
		return http.StatusUnauthorized
	case goerrors.CategoryAuthz:
		return http.StatusForbidden
	default:
		return http.StatusInternalServerError
	}
}
