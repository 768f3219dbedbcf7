package commod

import (
	"errors"
)

var (
	// Unknown rule, queue item, or community.
	ErrNotFound = errors.New("not found")
	// Illegal queue status change (eg, disposing an already-terminal item,
	// or losing a concurrent disposition race). The call is rejected with
	// no mutation.
	ErrInvalidTransition = errors.New("invalid queue status transition")
	// External scorer failed or timed out. Internal: score-based rules
	// degrade to "no match" and the failure is only logged, never surfaced
	// as an ingestion failure.
	ErrOracleUnavailable = errors.New("scoring oracle unavailable")
	ErrRuleInactive      = errors.New("rule is not active")
)
