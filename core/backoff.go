package core

import "time"

const defaultBackoffUnit = time.Second

// LinearBackoffScheduler waits attempt × Unit before retry number attempt.
type LinearBackoffScheduler struct {
	Unit time.Duration
}

func (s LinearBackoffScheduler) NextDelay(attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	unit := s.Unit
	if unit < 0 {
		unit = defaultBackoffUnit
	}
	return time.Duration(attempt) * unit
}

var _ BackoffScheduler = LinearBackoffScheduler{}
