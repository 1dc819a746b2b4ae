package operation

import "errors"

// Validation errors returned at the mutation boundary. No mutation happens
// when one of these is returned.
var (
	ErrNotFound         = errors.New("operation not found")
	ErrRoleNotFound     = errors.New("role not found")
	ErrRoleHidden       = errors.New("role is disabled")
	ErrRoleFull         = errors.New("role is full")
	ErrAlreadySignedUp  = errors.New("already signed up")
	ErrNotSignedUp      = errors.New("not signed up")
	ErrReserveDisabled  = errors.New("reserve is disabled")
	ErrSignupsClosed    = errors.New("signups are closed")
	ErrPastDate         = errors.New("date is in the past")
	ErrNotEditable      = errors.New("operation can no longer be edited")
	ErrInvalidName      = errors.New("operation name is required")
	ErrDuplicateRole    = errors.New("duplicate role name")
	ErrTemplateNotFound = errors.New("template not found")
	ErrInvalidStatus    = errors.New("invalid status")
	ErrDuplicate        = errors.New("an operation with that name and date already exists")
)

// ErrCorrupt reports a record file that exists but does not decode.
var ErrCorrupt = errors.New("record file is corrupt")

var userMessages = map[error]string{
	ErrNotFound:         "That operation no longer exists.",
	ErrRoleNotFound:     "That role does not exist on this operation.",
	ErrRoleHidden:       "That role is not available on this operation.",
	ErrRoleFull:         "That role is full.",
	ErrAlreadySignedUp:  "You are already signed up for that.",
	ErrNotSignedUp:      "You are not signed up for this operation.",
	ErrReserveDisabled:  "This operation does not use a reserve list.",
	ErrSignupsClosed:    "Signups for this operation are closed.",
	ErrPastDate:         "The new date must be in the future.",
	ErrNotEditable:      "This operation is about to start and can no longer be edited.",
	ErrInvalidName:      "The operation needs a name.",
	ErrDuplicateRole:    "Role names must be unique.",
	ErrTemplateNotFound: "No template with that name exists.",
	ErrInvalidStatus:    "That status is not valid here.",
	ErrDuplicate:        "An operation with that name is already scheduled at that time.",
}

// UserMessage maps a validation error to a message suitable for the person
// who triggered it. Unknown errors map to a generic message.
func UserMessage(err error) string {
	if err == nil {
		return ""
	}
	for target, msg := range userMessages {
		if errors.Is(err, target) {
			return msg
		}
	}
	return "Something went wrong, please try again later."
}
