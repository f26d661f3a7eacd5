package filter

import (
	"regexp"
	"strings"

	"github.com/amishk599/jobhound/internal/model"
	"github.com/amishk599/jobhound/internal/textnorm"
)

var locationSplitRegex = regexp.MustCompile(`[\s,/]+`)

// ContractLocationFilter keeps postings whose contract type and location match
// the configured search. Matching is accent- and case-insensitive. A criterion
// only applies when both the desired value and the posting's field are set.
type ContractLocationFilter struct {
	contract       string
	locationTokens []string
}

// NewContractLocationFilter returns a filter for the desired contract type and
// location. Either may be empty to disable that criterion.
func NewContractLocationFilter(contract, location string) *ContractLocationFilter {
	var tokens []string
	for _, tok := range locationSplitRegex.Split(textnorm.Normalize(location), -1) {
		if tok != "" {
			tokens = append(tokens, tok)
		}
	}
	return &ContractLocationFilter{
		contract:       textnorm.Normalize(contract),
		locationTokens: tokens,
	}
}

// Match returns false only when a configured criterion is contradicted by the
// posting.
func (f *ContractLocationFilter) Match(p model.Posting) bool {
	if f.contract != "" && p.ContractType != "" && !f.matchContract(textnorm.Normalize(p.ContractType)) {
		return false
	}
	if len(f.locationTokens) > 0 && p.Location != "" && !f.matchLocation(textnorm.Normalize(p.Location)) {
		return false
	}
	return true
}

func (f *ContractLocationFilter) matchContract(contract string) bool {
	if strings.Contains(contract, f.contract) {
		return true
	}
	// Index records spell permanent contracts in English.
	if f.contract == "cdi" {
		return strings.Contains(contract, "permanent") || strings.Contains(contract, "full_time")
	}
	return false
}

func (f *ContractLocationFilter) matchLocation(location string) bool {
	for _, tok := range f.locationTokens {
		if strings.Contains(location, tok) {
			return true
		}
	}
	return false
}
