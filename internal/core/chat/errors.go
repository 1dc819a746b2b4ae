package chat

import "errors"

var (
	// ErrNotFound is returned when a message, channel or user does not exist.
	ErrNotFound = errors.New("chat: not found")
	// ErrPermission is returned when the bot lacks rights for an action.
	ErrPermission = errors.New("chat: missing permission")
	// ErrTransient is returned for rate limits and temporary outages.
	ErrTransient = errors.New("chat: temporarily unavailable")
)

// IsNotFound reports whether err means the target is already gone.
func IsNotFound(err error) bool { return errors.Is(err, ErrNotFound) }

// IsPermission reports whether err is a permission failure.
func IsPermission(err error) bool { return errors.Is(err, ErrPermission) }

// IsTransient reports whether err is a transient failure.
func IsTransient(err error) bool { return errors.Is(err, ErrTransient) }

// Kind classifies err for the "kind" log field.
func Kind(err error) string {
	switch {
	case err == nil:
		return ""
	case IsNotFound(err):
		return "not_found"
	case IsPermission(err):
		return "permission"
	case IsTransient(err):
		return "transient"
	default:
		return "unknown"
	}
}
