package extract

import (
	"fmt"
	"io"
	"regexp"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// DetailFields are the values recovered from a LinkedIn job page. Empty
// strings and nil salaries mean "not found".
type DetailFields struct {
	Description  string
	ContractType string
	SalaryMin    *int
	SalaryMax    *int
}

var descriptionSelectors = []string{
	`div[class*="show-more-less-html__markup"]`,
	`div[class*="description__text"]`,
	`div[class*="jobs-description-content__text"]`,
	`section#job-details`,
}

// ParseDetailPage reads a job detail page and extracts its description and
// job criteria.
func ParseDetailPage(r io.Reader) (DetailFields, error) {
	doc, err := goquery.NewDocumentFromReader(r)
	if err != nil {
		return DetailFields{}, fmt.Errorf("parse detail page: %w", err)
	}

	var d DetailFields
	for _, sel := range descriptionSelectors {
		node := doc.Find(sel).First()
		if node.Length() == 0 {
			continue
		}
		if text := selectionText(node); text != "" {
			d.Description = text
			break
		}
	}

	var salaryText string
	doc.Find("li.description__job-criteria-item").Each(func(_ int, item *goquery.Selection) {
		label := item.Find(`h3[class*="description__job-criteria-subheader"], span[class*="description__job-criteria-subheader"]`).First()
		value := item.Find(`span[class*="description__job-criteria-text"], p[class*="description__job-criteria-text"]`).First()
		if label.Length() == 0 || value.Length() == 0 {
			return
		}
		labelText := strings.ToLower(selectionText(label))
		valueText := selectionText(value)
		if (strings.Contains(labelText, "type") && strings.Contains(labelText, "contrat")) ||
			strings.Contains(labelText, "employment") || strings.Contains(labelText, "emploi") {
			d.ContractType = valueText
		}
		if strings.Contains(labelText, "salary") || strings.Contains(labelText, "salaire") {
			salaryText = valueText
		}
	})

	d.SalaryMin, d.SalaryMax = ParseSalaryRange(salaryText)
	return d, nil
}

var (
	thousandsRegex = regexp.MustCompile(`(\d{2,3})\s?[kK]`)
	digitsRegex    = regexp.MustCompile(`\d[\d\s\x{00a0}]{2,}`)
	nonDigitRegex  = regexp.MustCompile(`\D`)
)

// ParseSalaryRange reads a salary range such as "40k - 50k" or "45 000 €".
// Numbers followed by k are multiplied by 1000; otherwise digit groups of at
// least 1000 are taken literally. A single number yields only a minimum.
func ParseSalaryRange(text string) (minSalary, maxSalary *int) {
	var numbers []int
	for _, m := range thousandsRegex.FindAllStringSubmatch(text, -1) {
		n, err := strconv.Atoi(m[1])
		if err == nil {
			numbers = append(numbers, n*1000)
		}
	}

	if len(numbers) == 0 {
		for _, raw := range digitsRegex.FindAllString(text, -1) {
			n, err := strconv.Atoi(nonDigitRegex.ReplaceAllString(raw, ""))
			if err == nil && n >= 1000 {
				numbers = append(numbers, n)
			}
		}
	}

	switch len(numbers) {
	case 0:
		return nil, nil
	case 1:
		return &numbers[0], nil
	}
	lo, hi := numbers[0], numbers[0]
	for _, n := range numbers[1:] {
		lo = min(lo, n)
		hi = max(hi, n)
	}
	return &lo, &hi
}
