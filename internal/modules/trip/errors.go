// README: Trip error values mapped onto the shared error kinds.
package trip

import (
	"fmt"

	"ridedesk/internal/apperr"
)

var (
	ErrNotFound     = apperr.NotFound("trip not found")
	ErrNotAssigned  = apperr.Unauthorized("you are not assigned to this trip")
	ErrInvalidState = apperr.Conflict("invalid trip state transition")
	ErrConflict     = apperr.Conflict("trip state changed concurrently")
)

func errUnknownAction(a Action) error {
	return apperr.BadRequest(fmt.Sprintf("unknown trip action %q", a))
}

func errWrongStage(kind Kind, a Action, current Status) error {
	return apperr.Conflict(fmt.Sprintf("%s cannot %s while %s", kind, a, current))
}
