package task

// transitions is the allowed lifecycle transition table. Restart bypasses it.
var transitions = map[Status][]Status{
	StatusCreated:   {StatusRunning},
	StatusRunning:   {StatusPaused, StatusStopped, StatusFailed, StatusCompleted},
	StatusPaused:    {StatusRunning, StatusStopped},
	StatusStopped:   {StatusRunning},
	StatusFailed:    {StatusRunning},
	StatusCompleted: {StatusRunning},
}

// CanTransitionTo reports whether the table allows moving from s to target.
func (s Status) CanTransitionTo(target Status) bool {
	for _, allowed := range transitions[s] {
		if allowed == target {
			return true
		}
	}
	return false
}

// Valid reports whether s is a known lifecycle status.
func (s Status) Valid() bool {
	_, ok := transitions[s]
	return ok
}

// Valid reports whether h is a known health status.
func (h HealthStatus) Valid() bool {
	switch h {
	case HealthHealthy, HealthDegraded, HealthUnhealthy, HealthPaused, HealthUnknown:
		return true
	}
	return false
}
