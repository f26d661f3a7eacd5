package extract

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/amishk599/jobhound/internal/dedup"
)

// JobViewMarker identifies anchors that point at a LinkedIn job posting.
const JobViewMarker = "linkedin.com/jobs/view"

// InboxLink is one job posting referenced from an alert e-mail.
type InboxLink struct {
	URL   string
	Title string // from aria-label, title, or anchor text; may be empty
	Block string // text of the anchor's parent element
}

// ParseInboxLinks returns the unique job links in an alert e-mail body, in
// document order.
func ParseInboxLinks(body string) ([]InboxLink, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("parse alert html: %w", err)
	}

	var links []InboxLink
	seen := make(map[string]bool)
	doc.Find("a[href]").Each(func(_ int, a *goquery.Selection) {
		href, _ := a.Attr("href")
		if !strings.Contains(href, JobViewMarker) {
			return
		}
		url := NormalizeInboxHref(href)
		if seen[url] {
			return
		}
		seen[url] = true
		links = append(links, InboxLink{
			URL:   url,
			Title: anchorTitle(a),
			Block: selectionText(a.Parent()),
		})
	})
	return links, nil
}

// NormalizeInboxHref makes href absolute and strips tracking parameters.
func NormalizeInboxHref(href string) string {
	href = strings.TrimSpace(href)
	switch {
	case strings.HasPrefix(href, "//"):
		href = "https:" + href
	case strings.HasPrefix(href, "/"):
		href = "https://www.linkedin.com" + href
	case !strings.HasPrefix(href, "http"):
		href = "https://" + href
	}
	if canonical, err := dedup.CanonicalURL(href); err == nil {
		return canonical
	}
	return href
}

func anchorTitle(a *goquery.Selection) string {
	for _, attr := range []string{"aria-label", "title"} {
		if v, ok := a.Attr(attr); ok && strings.TrimSpace(v) != "" {
			return strings.TrimSpace(v)
		}
	}
	return selectionText(a)
}

var (
	boilerplateRegex = regexp.MustCompile(`(?i)View job|See job|Voir l'offre`)
	separatorRegex   = regexp.MustCompile(`·|\||-`)
)

// SplitCompanyLocation guesses the company and location from the text around a
// job link: the title and call-to-action phrases are removed, the rest is split
// on middle dots, pipes and hyphens. Either result may be empty.
func SplitCompanyLocation(block, title string) (company, location string) {
	if title != "" {
		block = strings.ReplaceAll(block, title, "")
	}
	block = boilerplateRegex.ReplaceAllString(block, "")

	var parts []string
	for _, p := range separatorRegex.Split(block, -1) {
		if p = strings.TrimSpace(p); p != "" {
			parts = append(parts, p)
		}
	}
	if len(parts) > 0 {
		company = parts[0]
	}
	if len(parts) > 1 {
		location = parts[1]
	}
	return company, location
}
