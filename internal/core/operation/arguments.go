package operation

import "strings"

// Option toggle arguments as typed by organizers.
const (
	ArgReserve     = "reserve"
	ArgNoReserve   = "noreserve"
	ArgCompact     = "compact"
	ArgAutoStart   = "autostart"
	ArgNoAutoStart = "noautostart"
	ArgFeedback    = "feedback"
	ArgGameEvent   = "gameevent"
)

// ApplyArguments folds raw toggle arguments over base. Unknown arguments are
// returned so the caller can report them; later toggles win.
func ApplyArguments(base Options, args []string) (Options, []string) {
	opts := base
	var unknown []string
	for _, raw := range args {
		switch strings.ToLower(strings.TrimSpace(raw)) {
		case "":
		case ArgReserve:
			opts.UseReserve = true
		case ArgNoReserve:
			opts.UseReserve = false
		case ArgCompact:
			opts.UseCompact = true
		case ArgAutoStart:
			opts.AutoStart = true
		case ArgNoAutoStart:
			opts.AutoStart = false
		case ArgFeedback:
			opts.UseExternalFeedback = true
		case ArgGameEvent:
			opts.IsGameEvent = true
		default:
			unknown = append(unknown, raw)
		}
	}
	return opts, unknown
}

// Validate checks the structural rules every record must satisfy.
func (r *Record) Validate() error {
	if strings.TrimSpace(r.Name) == "" || Slugify(r.Name) == "" {
		return ErrInvalidName
	}
	if !r.Status.IsValid() {
		return ErrInvalidStatus
	}
	seen := make(map[string]bool, len(r.Roles))
	for _, role := range r.Roles {
		key := strings.ToLower(role.Name)
		if key == "" || seen[key] {
			return ErrDuplicateRole
		}
		seen[key] = true
	}
	return nil
}
