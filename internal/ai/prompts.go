package ai

import (
	"bytes"
	_ "embed"
	"fmt"
	"strings"
	"text/template"

	"github.com/amishk599/jobhound/internal/model"
)

//go:embed prompts/score_posting.md
var scorePromptRaw string

// ScorePromptTemplate is the parsed prompt template for posting scoring.
var ScorePromptTemplate = template.Must(template.New("score_posting").Parse(scorePromptRaw))

// MaxPromptDescription is the number of description characters sent to the model.
const MaxPromptDescription = 2000

const defaultTarget = "the candidate profile below"

type promptData struct {
	Target         string
	Title          string
	Company        string
	Location       string
	ContractType   string
	Description    string
	ProfileSummary string
}

// BuildPrompt renders the scoring prompt for p against profile.
func BuildPrompt(p model.Posting, profile model.Profile) (string, error) {
	target := strings.TrimSpace(profile.Search.Summary)
	if target == "" {
		target = defaultTarget
	}

	var buf bytes.Buffer
	err := ScorePromptTemplate.Execute(&buf, promptData{
		Target:         target,
		Title:          p.Title,
		Company:        p.Company,
		Location:       p.Location,
		ContractType:   p.ContractType,
		Description:    truncateRunes(p.Description, MaxPromptDescription),
		ProfileSummary: ProfileSummary(profile),
	})
	if err != nil {
		return "", fmt.Errorf("render prompt: %w", err)
	}
	return buf.String(), nil
}

// ProfileSummary lists the profile's required, important and unknown skills
// and preferred company types, one per line.
func ProfileSummary(profile model.Profile) string {
	var lines []string
	add := func(label string, values []string) {
		if len(values) > 0 {
			lines = append(lines, "- "+label+": "+strings.Join(values, ", "))
		}
	}
	add("Required", keywords(profile.Skills.Required))
	add("Important", keywords(profile.Skills.Important))
	add("Not known", keywords(profile.Skills.NotKnown))
	add("Preferred companies", profile.Search.CompanyTypesPreferred)

	if len(lines) == 0 {
		return "- Profile not configured"
	}
	return strings.Join(lines, "\n")
}

func keywords(skills []model.Skill) []string {
	out := make([]string, 0, len(skills))
	for _, s := range skills {
		if s.Keyword != "" {
			out = append(out, s.Keyword)
		}
	}
	return out
}

func truncateRunes(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
