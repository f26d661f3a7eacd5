package model

// Skill is one weighted keyword of the candidate profile. Aliases are matched
// in addition to Keyword.
type Skill struct {
	Keyword string   `yaml:"keyword"`
	Aliases []string `yaml:"aliases"`
	Weight  float64  `yaml:"weight"`
	Penalty float64  `yaml:"penalty"` // only used by not_known skills
}

// Terms returns the keyword followed by its aliases.
func (s Skill) Terms() []string {
	return append([]string{s.Keyword}, s.Aliases...)
}

// SkillSet partitions the profile's skills by importance.
type SkillSet struct {
	Required   []Skill `yaml:"required"`
	Important  []Skill `yaml:"important"`
	NiceToHave []Skill `yaml:"nice_to_have"`
	NotKnown   []Skill `yaml:"not_known"`
}

// Exclusions are substring blocklists that zero a posting's score.
type Exclusions struct {
	Titles       []string `yaml:"titles"`
	Requirements []string `yaml:"requirements"`
	Companies    []string `yaml:"companies"`
}

// Bonus adds a flat amount when its keyword appears anywhere in the posting.
type Bonus struct {
	Keyword string  `yaml:"keyword"`
	Bonus   float64 `yaml:"bonus"`
}

// SearchPreferences feed the AI prompt's candidate summary.
type SearchPreferences struct {
	CompanyTypesPreferred []string `yaml:"company_types_preferred"`
	Summary               string   `yaml:"summary"`
}

// Profile is the candidate profile postings are scored against.
type Profile struct {
	Skills     SkillSet          `yaml:"skills"`
	Exclusions Exclusions        `yaml:"exclusions"`
	Bonuses    []Bonus           `yaml:"bonuses"`
	Search     SearchPreferences `yaml:"search"`
}

// IsZero reports whether no skills were configured at all.
func (p Profile) IsZero() bool {
	s := p.Skills
	return len(s.Required)+len(s.Important)+len(s.NiceToHave)+len(s.NotKnown) == 0
}
