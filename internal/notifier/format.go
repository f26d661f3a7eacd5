package notifier

import (
	"fmt"
	"strings"
	"time"

	"github.com/amishk599/jobhound/internal/model"
)

// FormatSalary renders an optional salary range.
func FormatSalary(minSalary, maxSalary *int) string {
	hasMin := minSalary != nil && *minSalary != 0
	hasMax := maxSalary != nil && *maxSalary != 0
	switch {
	case hasMin && hasMax:
		return fmt.Sprintf("%d - %d", *minSalary, *maxSalary)
	case hasMin:
		return fmt.Sprintf(">= %d", *minSalary)
	case hasMax:
		return fmt.Sprintf("<= %d", *maxSalary)
	default:
		return "Not specified"
	}
}

func formatScore(score *float64) string {
	if score == nil {
		return "N/A"
	}
	return fmt.Sprintf("%g%%", *score)
}

func orUnknown(s string) string {
	if strings.TrimSpace(s) == "" {
		return "Unknown"
	}
	return s
}

func sourceLabel(s model.Source) string {
	switch s {
	case model.SourceSearchIndex:
		return "Welcome to the Jungle"
	case model.SourceInbox:
		return "LinkedIn"
	default:
		return strings.ToUpper(string(s))
	}
}

// truncate cuts s to at most n runes.
func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}

const maxNotesLen = 200

// SendTestMessage sends a dummy posting notification to verify the integration works.
func SendTestMessage(n model.Notifier) error {
	score := 87.5
	minSalary, maxSalary := 45000, 55000
	test := model.StoredPosting{
		ID: 0,
		Posting: model.Posting{
			Source:       model.SourceSearchIndex,
			Title:        "Test Notification: Integration Verified",
			Company:      "jobhound",
			Location:     "Paris, France",
			ContractType: "CDI",
			SalaryMin:    &minSalary,
			SalaryMax:    &maxSalary,
			URL:          "https://www.welcometothejungle.com/en/jobs",
			ScrapedAt:    time.Now(),
		},
		FinalScore:  &score,
		AIReasoning: "This is a test message sent by `jobhound notify test`.",
		Status:      model.StatusScored,
	}
	return n.Notify([]model.StoredPosting{test})
}
