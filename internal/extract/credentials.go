package extract

import (
	"fmt"
	"regexp"
	"strings"
)

// IndexCredentials are the public search-index settings embedded in the jobs page.
type IndexCredentials struct {
	AppID  string
	APIKey string
	Index  string
}

var (
	appIDRegex       = embeddedValue("ALGOLIA_APPLICATION_ID")
	apiKeyRegex      = embeddedValue("ALGOLIA_API_KEY_CLIENT")
	indexPrefixRegex = embeddedValue("ALGOLIA_JOBS_INDEX_PREFIX")
)

func embeddedValue(key string) *regexp.Regexp {
	return regexp.MustCompile(`"` + key + `":"(.*?)"`)
}

// ParseIndexCredentials extracts the search-index settings from page. Every
// value must be present.
func ParseIndexCredentials(page string) (IndexCredentials, error) {
	c := IndexCredentials{
		AppID:  firstGroup(appIDRegex, page),
		APIKey: firstGroup(apiKeyRegex, page),
		Index:  firstGroup(indexPrefixRegex, page),
	}
	var missing []string
	if c.AppID == "" {
		missing = append(missing, "application id")
	}
	if c.APIKey == "" {
		missing = append(missing, "api key")
	}
	if c.Index == "" {
		missing = append(missing, "index prefix")
	}
	if len(missing) > 0 {
		return IndexCredentials{}, fmt.Errorf("search index config missing %s", strings.Join(missing, ", "))
	}
	return c, nil
}

func firstGroup(re *regexp.Regexp, s string) string {
	m := re.FindStringSubmatch(s)
	if len(m) < 2 {
		return ""
	}
	return m[1]
}
