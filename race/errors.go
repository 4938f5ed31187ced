package race

import "errors"

// Expected negative outcomes of racing operations. These map to exit
// code 1 on the CLI, as opposed to unexpected errors.
var (
	// ErrNotEligible is returned when the racing torrent must not be
	// raced: wrong category, already paused, or already complete.
	ErrNotEligible = errors.New("torrent not eligible")

	// ErrNoWorkingTracker is returned when the reannounce attempts
	// were exhausted without any tracker reaching working state.
	ErrNoWorkingTracker = errors.New("no working tracker")

	// ErrEventNotFound is returned when a pause event id is unknown.
	ErrEventNotFound = errors.New("pause event not found")
)
