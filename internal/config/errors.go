package config

// Error is a configuration-time failure: invalid or inconsistent
// environment variables. Fatal at startup; maps to exit code 1.
type Error struct {
	Message string
}

func (e *Error) Error() string { return e.Message }
