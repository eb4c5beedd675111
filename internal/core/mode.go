package core

// RunModeConfig holds the two global run-mode switches for a session.
//
// It is passed into OpenSession explicitly and validated once; nothing in this
// package reads run modes from global state.
type RunModeConfig struct {
	// Force reruns every measurement whose build succeeded, even when fresh.
	Force bool

	// Prohibit never executes a measurement. Builds are still attempted.
	Prohibit bool
}

// Validate rejects the force+prohibit combination.
func (m RunModeConfig) Validate() error {
	if m.Force && m.Prohibit {
		return &ConflictingRunModeError{Mode: m}
	}
	return nil
}

// String renders the mode for logs and session records.
func (m RunModeConfig) String() string {
	switch {
	case m.Force && m.Prohibit:
		return "conflicting"
	case m.Force:
		return "force"
	case m.Prohibit:
		return "prohibit"
	default:
		return "incremental"
	}
}
