package auth

import (
	"fmt"

	"tutela.org/internal/jurisdiction"
)

// CheckScope decides whether the caller may act on the target geographic
// scope. Only supervisors perform scope-gated administrative writes; a
// central supervisor is granted unconditionally, anyone else must match the
// target on every field their own level pins.
func CheckScope(caller Principal, target jurisdiction.Scope) error {
	if caller.Role != RoleSupervisor {
		return fmt.Errorf("%w: supervisor role required", ErrForbidden)
	}
	if caller.Level == jurisdiction.Central {
		return nil
	}
	if !jurisdiction.Covers(caller.Level, caller.Scope, target) {
		return fmt.Errorf("%w: target scope outside caller jurisdiction", ErrForbidden)
	}
	return nil
}
