// Package errs implements the engine's stable, user-visible error taxonomy.
// Every fatal or per-task error surfaced by the engine is one of the Kind
// values below; CLI exit-code mapping and task outcome classification both
// switch on Kind rather than comparing arbitrary error strings.
package errs

import (
	"errors"
	"fmt"
)

// Kind enumerates the stable error categories the engine can produce.
type Kind string

const (
	KindConfigError          Kind = "ConfigError"
	KindProfileNotFound      Kind = "ProfileNotFound"
	KindAmbiguousDefault     Kind = "AmbiguousDefault"
	KindInvalidQuery         Kind = "InvalidQuery"
	KindInvalidName          Kind = "InvalidName"
	KindAuthError            Kind = "AuthError"
	KindNetworkError         Kind = "NetworkError"
	KindRateLimited          Kind = "RateLimited"
	KindNotFound             Kind = "NotFound"
	KindGitOperationError    Kind = "GitOperationError"
	KindDestinationObstructed Kind = "DestinationObstructed"
	KindNameCollision        Kind = "NameCollision"
	KindCancelled            Kind = "Cancelled"
)

// GitSubkind refines KindGitOperationError per §7.
type GitSubkind string

const (
	SubkindNonFastForward GitSubkind = "non_fast_forward"
	SubkindAuthRefused    GitSubkind = "auth_refused"
	SubkindBrokenRef      GitSubkind = "broken_ref"
	SubkindOther          GitSubkind = "other"
)

// Sentinel errors for errors.Is-style comparisons.
var (
	ErrConfigError           = errors.New("config error")
	ErrProfileNotFound       = errors.New("profile not found")
	ErrAmbiguousDefault      = errors.New("ambiguous default profile")
	ErrInvalidQuery          = errors.New("invalid query")
	ErrInvalidName           = errors.New("invalid name")
	ErrAuthError             = errors.New("authentication error")
	ErrNetworkError          = errors.New("network error")
	ErrRateLimited           = errors.New("rate limited")
	ErrNotFound              = errors.New("not found")
	ErrGitOperationError     = errors.New("git operation error")
	ErrDestinationObstructed = errors.New("destination obstructed")
	ErrNameCollision         = errors.New("name collision")
	ErrCancelled             = errors.New("cancelled")
)

var sentinelByKind = map[Kind]error{
	KindConfigError:           ErrConfigError,
	KindProfileNotFound:       ErrProfileNotFound,
	KindAmbiguousDefault:      ErrAmbiguousDefault,
	KindInvalidQuery:          ErrInvalidQuery,
	KindInvalidName:           ErrInvalidName,
	KindAuthError:             ErrAuthError,
	KindNetworkError:          ErrNetworkError,
	KindRateLimited:           ErrRateLimited,
	KindNotFound:              ErrNotFound,
	KindGitOperationError:     ErrGitOperationError,
	KindDestinationObstructed: ErrDestinationObstructed,
	KindNameCollision:         ErrNameCollision,
	KindCancelled:             ErrCancelled,
}

// EngineError carries a stable Kind plus enough context (operation,
// repository path, redacted detail) to render a one-line summary without
// ever including a raw secret.
type EngineError struct {
	Kind    Kind
	Subkind GitSubkind
	Op      string
	Repo    string
	Detail  string
	Cause   error
}

// Error implements the error interface. Detail is expected to already be
// redacted by the caller (see pkg/urlutil.Redact) before it reaches here.
func (e *EngineError) Error() string {
	msg := string(e.Kind)
	if e.Subkind != "" {
		msg += "/" + string(e.Subkind)
	}
	if e.Op != "" {
		msg = e.Op + ": " + msg
	}
	if e.Repo != "" {
		msg += " (" + e.Repo + ")"
	}
	if e.Detail != "" {
		msg += ": " + e.Detail
	}
	if e.Cause != nil {
		msg += ": " + e.Cause.Error()
	}
	return msg
}

// Unwrap exposes both the underlying cause and the kind's sentinel so
// errors.Is(err, errs.ErrAuthError) and errors.Is(err, someCause) both work.
func (e *EngineError) Unwrap() []error {
	unwrapped := make([]error, 0, 2)
	if sentinel, ok := sentinelByKind[e.Kind]; ok {
		unwrapped = append(unwrapped, sentinel)
	}
	if e.Cause != nil {
		unwrapped = append(unwrapped, e.Cause)
	}
	return unwrapped
}

// New builds an EngineError for the given kind.
func New(kind Kind, op, repo, detail string, cause error) *EngineError {
	return &EngineError{Kind: kind, Op: op, Repo: repo, Detail: detail, Cause: cause}
}

// NewGitError builds an EngineError of KindGitOperationError with a subkind.
func NewGitError(subkind GitSubkind, op, repo, detail string, cause error) *EngineError {
	return &EngineError{Kind: KindGitOperationError, Subkind: subkind, Op: op, Repo: repo, Detail: detail, Cause: cause}
}

// Wrap attaches target to err so that Is(result, target) holds.
// Wrap(nil, target) returns target. Wrap(err, nil) returns err unchanged.
func Wrap(err, target error) error {
	if err == nil {
		return target
	}
	if target == nil {
		return err
	}
	return fmt.Errorf("%w: %w", err, target)
}

// WrapWithMessage annotates err with a plain-text context message while
// preserving it for errors.Is/errors.As. WrapWithMessage(nil, ...) is nil.
func WrapWithMessage(err error, message string) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", message, err)
}

// Is reports whether err matches target anywhere in its Unwrap chain.
func Is(err, target error) bool {
	return errors.Is(err, target)
}

// KindOf extracts the Kind from err if it (or something it wraps) is an
// *EngineError; returns ("", false) otherwise.
func KindOf(err error) (Kind, bool) {
	var ee *EngineError
	if errors.As(err, &ee) {
		return ee.Kind, true
	}
	return "", false
}
