package blockchain

import (
	"fmt"
	"strings"
)

// DefaultTarget is the hex prefix a proof hash must start with unless
// configured otherwise.
const DefaultTarget = "0000"

// Difficulty is the proof-of-work target. Every node validating the same
// chain must use the same target.
type Difficulty struct {
	Target string
}

// DefaultDifficulty returns the difficulty used by a node started without
// explicit configuration.
func DefaultDifficulty() Difficulty {
	return Difficulty{Target: DefaultTarget}
}

// ParseDifficulty normalizes and validates a target prefix.
func ParseDifficulty(target string) (Difficulty, error) {
	target = strings.ToLower(strings.TrimSpace(target))
	d := Difficulty{Target: target}
	if err := d.Validate(); err != nil {
		return Difficulty{}, err
	}
	return d, nil
}

func (d Difficulty) Validate() error {
	if d.Target == "" {
		return fmt.Errorf("difficulty target must not be empty")
	}
	if len(d.Target) > 64 {
		return fmt.Errorf("difficulty target longer than a sha256 hex digest: %d", len(d.Target))
	}
	for _, c := range d.Target {
		if !(c >= '0' && c <= '9' || c >= 'a' && c <= 'f') {
			return fmt.Errorf("difficulty target %q is not lowercase hex", d.Target)
		}
	}
	return nil
}

func (d Difficulty) String() string { return d.Target }
