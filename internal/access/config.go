package access

import "fmt"

// SecretMode selects the proof of identity a player gives.
type SecretMode string

const (
	SecretPassword  SecretMode = "password"
	SecretBirthDate SecretMode = "birthdate"
)

// Config holds the protocol policy for a deployment.
type Config struct {
	// Secret selects MOT_DE_PASSE or DATE_NAISSANCE as the second step.
	Secret SecretMode `yaml:"secret"`
	// TeamBinding adds the NOM_EQUIPE step. Without it the player only
	// needs one confirmed reservation with an active ticket.
	TeamBinding bool `yaml:"team_binding"`
	// MaxAttempts is the total number of tries for the secret and team
	// steps. Malformed lines count as tries.
	MaxAttempts int `yaml:"max_attempts"`
}

// DefaultConfig returns the birth date flow with team binding and two
// attempts per step.
func DefaultConfig() Config {
	return Config{
		Secret:      SecretBirthDate,
		TeamBinding: true,
		MaxAttempts: 2,
	}
}

// Validate checks the configuration.
func (c Config) Validate() error {
	switch c.Secret {
	case SecretPassword, SecretBirthDate:
	default:
		return fmt.Errorf("unknown secret mode %q", c.Secret)
	}
	if c.MaxAttempts < 1 {
		return fmt.Errorf("max attempts must be at least 1, got %d", c.MaxAttempts)
	}
	return nil
}
