package weave

import (
	"errors"
	"fmt"

	"github.com/bronystylecrazy/ultraweave/inject"
)

var (
	ErrMissingHookTarget = errors.New("missing hook target")
	// ErrAlreadyWoven is returned for a second weave of the same type.
	ErrAlreadyWoven = inject.ErrAlreadyWoven
)

// MissingHookTargetError reports a hook name with no usable method. Member is
// empty for type-level hooks.
type MissingHookTargetError struct {
	Type   string
	Member string
	Hook   string
	Reason string
}

func (e *MissingHookTargetError) Error() string {
	owner := e.Type
	if e.Member != "" {
		owner += "." + e.Member
	}
	return fmt.Sprintf("hook %q of %s: %s", e.Hook, owner, e.Reason)
}

func (e *MissingHookTargetError) Unwrap() error { return ErrMissingHookTarget }
