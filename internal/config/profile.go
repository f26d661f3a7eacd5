package config

import (
	"errors"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/amishk599/jobhound/internal/model"
)

// LoadProfile reads the candidate profile used for keyword scoring and AI
// prompts.
func LoadProfile(path string) (model.Profile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return model.Profile{}, fmt.Errorf("read profile: %w", err)
	}

	var p model.Profile
	if err := yaml.Unmarshal(data, &p); err != nil {
		return model.Profile{}, fmt.Errorf("parse profile: %w", err)
	}
	if p.IsZero() {
		return model.Profile{}, errors.New("profile defines no skills")
	}
	for _, s := range p.Skills.NotKnown {
		if s.Penalty < 0 {
			return model.Profile{}, fmt.Errorf("skill %q: penalty must not be negative", s.Keyword)
		}
	}
	return p, nil
}
