// Package scoring computes the local keyword relevance of a posting and merges
// it with the externally supplied AI score.
package scoring

import (
	"math"
	"strings"
	"unicode/utf8"

	"github.com/amishk599/jobhound/internal/model"
	"github.com/amishk599/jobhound/internal/textnorm"
)

// requirementMarkers flag a not_known skill as mandatory when found nearby.
var requirementMarkers = []string{"required", "requis", "obligatoire", "mandatory", "must have", "must-have"}

// contextWindow is the maximum number of characters between a marker and a
// not_known keyword for the keyword to count as required.
const contextWindow = 40

// Score returns the 0-100 keyword relevance of p against profile. Excluded
// postings and postings missing a required skill score 0.
func Score(p model.Posting, profile model.Profile) float64 {
	title := textnorm.Normalize(p.Title)
	company := textnorm.Normalize(p.Company)
	corpus := textnorm.Normalize(p.Title + " " + p.Description)

	if isExcluded(title, company, corpus, profile.Exclusions) {
		return 0
	}

	skills := profile.Skills
	for _, s := range skills.Required {
		if !matches(corpus, s) {
			return 0
		}
	}

	var score, maxPossible float64
	for _, group := range [][]model.Skill{skills.Required, skills.Important, skills.NiceToHave} {
		for _, s := range group {
			maxPossible += s.Weight
			if matches(corpus, s) {
				score += s.Weight
			}
		}
	}

	for _, s := range skills.NotKnown {
		if requiredInContext(corpus, s) {
			score += s.Penalty
		}
	}

	for _, b := range profile.Bonuses {
		kw := textnorm.Normalize(b.Keyword)
		if kw != "" && strings.Contains(corpus, kw) {
			score += b.Bonus
		}
	}

	if maxPossible <= 0 {
		return 0
	}
	pct := math.Max(0, math.Min(100, score/maxPossible*100))
	return math.Round(pct*10) / 10
}

func isExcluded(title, company, corpus string, ex model.Exclusions) bool {
	return containsAny(title, ex.Titles) ||
		containsAny(corpus, ex.Requirements) ||
		containsAny(company, ex.Companies)
}

func containsAny(text string, needles []string) bool {
	for _, n := range needles {
		n = textnorm.Normalize(n)
		if n != "" && strings.Contains(text, n) {
			return true
		}
	}
	return false
}

// matches reports whether the skill's keyword or any alias occurs in corpus.
func matches(corpus string, s model.Skill) bool {
	return containsAny(corpus, s.Terms())
}

// requiredInContext reports whether any of the skill's terms appears within
// contextWindow characters of a requirement marker, on either side.
func requiredInContext(corpus string, s model.Skill) bool {
	for _, term := range s.Terms() {
		term = textnorm.Normalize(term)
		if term == "" || !strings.Contains(corpus, term) {
			continue
		}
		for _, marker := range requirementMarkers {
			if nearby(corpus, marker, term) {
				return true
			}
		}
	}
	return false
}

// nearby reports whether term starts within contextWindow characters after
// marker ends, or marker starts within contextWindow characters after term ends.
func nearby(corpus, marker, term string) bool {
	markers, terms := occurrences(corpus, marker), occurrences(corpus, term)
	for _, m := range markers {
		for _, t := range terms {
			if follows(corpus, m, len(marker), t) || follows(corpus, t, len(term), m) {
				return true
			}
		}
	}
	return false
}

// occurrences returns the byte offset of every match of sub, overlapping ones
// included.
func occurrences(s, sub string) []int {
	var out []int
	for i := 0; i <= len(s)-len(sub); {
		j := strings.Index(s[i:], sub)
		if j < 0 {
			break
		}
		out = append(out, i+j)
		i += j + 1
	}
	return out
}

func follows(corpus string, first, firstLen, second int) bool {
	end := first + firstLen
	return second >= end && utf8.RuneCountInString(corpus[end:second]) <= contextWindow
}
