package options

import "fmt"

// ConfigError reports a violated Options invariant (spec §3/§4.4), fatal at
// initialization per spec §7's Configuration errors taxonomy.
type ConfigError struct {
	Reason string
}

func (e *ConfigError) Error() string { return fmt.Sprintf("options: %s", e.Reason) }

func configErrorf(format string, args ...any) error {
	return &ConfigError{Reason: fmt.Sprintf(format, args...)}
}
