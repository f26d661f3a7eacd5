// Package dedup derives the stable fingerprint used to recognise a posting
// that was already ingested.
package dedup

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"net/url"
	"strings"
)

// ErrInvalidKeyInput is returned when neither a usable URL nor a title and
// company pair is available.
var ErrInvalidKeyInput = errors.New("fingerprint needs a URL or a title and company")

// trackingParams are dropped from query strings before hashing.
var trackingParams = map[string]bool{
	"utm_source":   true,
	"utm_medium":   true,
	"utm_campaign": true,
	"utm_content":  true,
	"utm_term":     true,
	"ref":          true,
	"source":       true,
}

// Fingerprint returns the hex SHA-256 of the canonical URL when rawURL is an
// absolute http(s) URL, otherwise of "title|company" lower-cased and trimmed.
func Fingerprint(rawURL, title, company string) (string, error) {
	rawURL = strings.TrimSpace(rawURL)
	if strings.HasPrefix(rawURL, "http") {
		canonical, err := CanonicalURL(rawURL)
		if err == nil {
			return digest(canonical), nil
		}
	}

	title = strings.ToLower(strings.TrimSpace(title))
	company = strings.ToLower(strings.TrimSpace(company))
	if title != "" && company != "" {
		return digest(title + "|" + company), nil
	}
	return "", ErrInvalidKeyInput
}

// CanonicalURL strips tracking parameters from rawURL and re-encodes the
// remaining ones in order of each key's first appearance, with repeated keys
// grouped together (a=1&b=2&a=3 becomes a=1&a=3&b=2). Parameters with an
// empty value are dropped. The result is stable under repeated application.
func CanonicalURL(rawURL string) (string, error) {
	u, err := url.Parse(strings.TrimSpace(rawURL))
	if err != nil {
		return "", fmt.Errorf("canonicalize %q: %w", rawURL, err)
	}

	var keys []string
	values := make(map[string][]string)
	for _, pair := range strings.Split(u.RawQuery, "&") {
		if pair == "" {
			continue
		}
		rawKey, rawValue, _ := strings.Cut(pair, "=")
		key, err := url.QueryUnescape(rawKey)
		if err != nil {
			key = rawKey
		}
		value, err := url.QueryUnescape(rawValue)
		if err != nil {
			value = rawValue
		}
		if value == "" || trackingParams[key] {
			continue
		}
		if _, ok := values[key]; !ok {
			keys = append(keys, key)
		}
		values[key] = append(values[key], value)
	}

	var kept []string
	for _, key := range keys {
		for _, value := range values[key] {
			kept = append(kept, url.QueryEscape(key)+"="+url.QueryEscape(value))
		}
	}

	u.RawQuery = strings.Join(kept, "&")
	u.ForceQuery = false
	return u.String(), nil
}

func digest(s string) string {
	sum := sha256.Sum256([]byte(s))
	return hex.EncodeToString(sum[:])
}
