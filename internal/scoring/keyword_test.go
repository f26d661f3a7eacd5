package scoring

import (
	"strings"
	"testing"

	"github.com/amishk599/jobhound/internal/model"
)

func powerBIProfile() model.Profile {
	return model.Profile{
		Skills: model.SkillSet{
			Required:  []model.Skill{{Keyword: "Power BI", Weight: 10}},
			Important: []model.Skill{{Keyword: "SQL", Weight: 10}},
		},
	}
}

func posting(title, desc string) model.Posting {
	return model.Posting{Title: title, Company: "Acme", Description: desc}
}

func TestScore_RequiredSkillGate(t *testing.T) {
	got := Score(posting("Data Analyst", "We need SQL and dashboards"), powerBIProfile())
	if got != 0 {
		t.Errorf("Score = %v, want 0 when a required skill is missing", got)
	}
}

func TestScore_AllMatched(t *testing.T) {
	got := Score(posting("Power BI Analyst", "Power BI and SQL required."), powerBIProfile())
	if got != 100 {
		t.Errorf("Score = %v, want 100", got)
	}
}

func TestScore_Exclusions(t *testing.T) {
	base := powerBIProfile()
	tests := []struct {
		name string
		ex   model.Exclusions
		p    model.Posting
	}{
		{
			name: "title",
			ex:   model.Exclusions{Titles: []string{"Stage"}},
			p:    posting("Stage Power BI", "Power BI, SQL"),
		},
		{
			name: "requirement with accents",
			ex:   model.Exclusions{Requirements: []string{"10 ans d'expérience"}},
			p:    posting("Power BI Analyst", "SQL, 10 ans d'experience minimum"),
		},
		{
			name: "company",
			ex:   model.Exclusions{Companies: []string{"ESN"}},
			p:    model.Posting{Title: "Power BI Analyst", Company: "Big ESN Group", Description: "SQL"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			profile := base
			profile.Exclusions = tt.ex
			if got := Score(tt.p, profile); got != 0 {
				t.Errorf("Score = %v, want 0 for excluded posting", got)
			}
		})
	}
}

func TestScore_AliasesAndDiacritics(t *testing.T) {
	profile := model.Profile{
		Skills: model.SkillSet{
			Required:  []model.Skill{{Keyword: "PostgreSQL", Aliases: []string{"postgres"}, Weight: 5}},
			Important: []model.Skill{{Keyword: "modélisation", Weight: 5}},
		},
	}
	got := Score(posting("Data Engineer", "Postgres, Modelisation des donnees"), profile)
	if got != 100 {
		t.Errorf("Score = %v, want 100", got)
	}
}

func TestScore_NotKnownPenaltyOnlyWhenRequired(t *testing.T) {
	profile := model.Profile{
		Skills: model.SkillSet{
			Required: []model.Skill{{Keyword: "SQL", Weight: 10}},
			NotKnown: []model.Skill{{Keyword: "Python", Penalty: -5}},
		},
	}
	tests := []struct {
		name string
		desc string
		want float64
	}{
		{"keyword before marker", "SQL and Python required", 50},
		{"marker before keyword", "SQL. Must have: solid Python", 50},
		{"french marker", "Python obligatoire, SQL", 50},
		{"mentioned without marker", "SQL. Python would be a plus.", 100},
		{"marker too far", "SQL. Python " + strings.Repeat("x", 50) + " required", 100},
		{"absent", "SQL only", 100},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Score(posting("Analyst", tt.desc), profile); got != tt.want {
				t.Errorf("Score = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestScore_BonusAndRounding(t *testing.T) {
	profile := model.Profile{
		Skills: model.SkillSet{
			Required:  []model.Skill{{Keyword: "SQL", Weight: 10}},
			Important: []model.Skill{{Keyword: "Go", Weight: 10}},
		},
		Bonuses: []model.Bonus{{Keyword: "Télétravail", Bonus: 5}},
	}
	if got := Score(posting("Analyst", "SQL, teletravail possible"), profile); got != 75 {
		t.Errorf("Score with bonus = %v, want 75", got)
	}

	thirds := model.Profile{
		Skills: model.SkillSet{
			Required:   []model.Skill{{Keyword: "SQL", Weight: 3}},
			NiceToHave: []model.Skill{{Keyword: "dbt", Weight: 4}},
		},
	}
	if got := Score(posting("Analyst", "SQL"), thirds); got != 42.9 {
		t.Errorf("Score = %v, want 42.9", got)
	}
}

func TestScore_ClampedTo100(t *testing.T) {
	profile := powerBIProfile()
	profile.Bonuses = []model.Bonus{{Keyword: "remote", Bonus: 50}}
	if got := Score(posting("Power BI", "SQL, remote"), profile); got != 100 {
		t.Errorf("Score = %v, want clamp at 100", got)
	}
}

func TestScore_ClampedTo0(t *testing.T) {
	profile := model.Profile{
		Skills: model.SkillSet{
			Important: []model.Skill{{Keyword: "Go", Weight: 1}},
			NotKnown:  []model.Skill{{Keyword: "Java", Penalty: -20}},
		},
	}
	if got := Score(posting("Dev", "Java mandatory"), profile); got != 0 {
		t.Errorf("Score = %v, want 0", got)
	}
}

func TestScore_NoWeightsScoresZero(t *testing.T) {
	profile := model.Profile{Bonuses: []model.Bonus{{Keyword: "sql", Bonus: 10}}}
	if got := Score(posting("Analyst", "SQL"), profile); got != 0 {
		t.Errorf("Score = %v, want 0 when max possible is 0", got)
	}
}

func TestScore_EmptyKeywordNeverMatches(t *testing.T) {
	profile := model.Profile{
		Skills: model.SkillSet{
			Important: []model.Skill{{Keyword: "", Weight: 10}, {Keyword: "SQL", Weight: 10}},
		},
	}
	if got := Score(posting("Analyst", "SQL"), profile); got != 50 {
		t.Errorf("Score = %v, want 50", got)
	}
}

func TestScore_TitleOnly(t *testing.T) {
	if got := Score(posting("Power BI SQL Developer", ""), powerBIProfile()); got != 100 {
		t.Errorf("Score = %v, want 100 from title alone", got)
	}
}

func TestScore_Idempotent(t *testing.T) {
	p := posting("Power BI Analyst", "Power BI and SQL required.")
	profile := powerBIProfile()
	if a, b := Score(p, profile), Score(p, profile); a != b {
		t.Errorf("Score not idempotent: %v then %v", a, b)
	}
}

func TestNearby(t *testing.T) {
	gap := func(n int) string { return strings.Repeat("x", n) }
	tests := []struct {
		name   string
		corpus string
		want   bool
	}{
		{"marker before term", "required: kubernetes", true},
		{"term before marker", "kubernetes is required", true},
		{"adjacent", "requiredkubernetes", true},
		{"gap at window", "required" + gap(contextWindow) + "kubernetes", true},
		{"gap past window", "required" + gap(contextWindow+1) + "kubernetes", false},
		{"window counts characters", "required" + strings.Repeat("é", contextWindow) + "kubernetes", true},
		{"second marker close", "required" + gap(60) + "kubernetes required", true},
		{"term missing", "required golang", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := nearby(tt.corpus, "required", "kubernetes"); got != tt.want {
				t.Errorf("nearby(%q) = %v, want %v", tt.corpus, got, tt.want)
			}
		})
	}
}
