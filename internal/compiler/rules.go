package compiler

import (
	"encoding/json"
	"strings"
	"unicode/utf8"

	"golang.org/x/net/idna"

	"github.com/burrowhq/burrow/internal/model"
)

// DefaultPriority is the router priority of a resource without path or override.
const DefaultPriority = 100

// Priority resolves a router priority. An explicit priority other than the
// default is used verbatim. Otherwise a path with a match type earns +10 plus
// a match-type bonus (exact +5, prefix +3, regex +2), and the root path drops
// to 1 so that every sibling route wins over it.
func Priority(explicit int, path string, matchType model.PathMatchType) int {
	if explicit != 0 && explicit != DefaultPriority {
		return explicit
	}
	priority := DefaultPriority
	if path != "" && matchType != model.PathMatchNone {
		priority += 10
		switch matchType {
		case model.PathMatchExact:
			priority += 5
		case model.PathMatchPrefix:
			priority += 3
		case model.PathMatchRegex:
			priority += 2
		}
		if path == "/" {
			priority = 1
		}
	}
	return priority
}

// MatchRule builds the router rule for host and an optional path variant.
// Regex paths are used as-is; exact and prefix paths get a leading slash.
func MatchRule(host, path string, matchType model.PathMatchType) string {
	rule := "Host(`" + host + "`)"
	if path == "" || matchType == model.PathMatchNone {
		return rule
	}
	switch matchType {
	case model.PathMatchExact:
		rule += " && Path(`" + withLeadingSlash(path) + "`)"
	case model.PathMatchPrefix:
		rule += " && PathPrefix(`" + withLeadingSlash(path) + "`)"
	case model.PathMatchRegex:
		rule += " && PathRegexp(`" + path + "`)"
	}
	return rule
}

func withLeadingSlash(path string) string {
	if strings.HasPrefix(path, "/") {
		return path
	}
	return "/" + path
}

// WildcardDomain returns the certificate name covering fullDomain: the
// domain itself when there is no subdomain, *.<domain> for names of at most
// two labels, else the first label replaced by *.
func WildcardDomain(fullDomain, subdomain string) string {
	if subdomain == "" {
		return fullDomain
	}
	labels := strings.Split(fullDomain, ".")
	if len(labels) <= 2 {
		return "*." + fullDomain
	}
	return "*." + strings.Join(labels[1:], ".")
}

// asciiHost converts an internationalized domain to its punycode form.
// ASCII input and unconvertible names are returned unchanged.
func asciiHost(domain string) string {
	if isASCII(domain) {
		return domain
	}
	converted, err := idna.Lookup.ToASCII(domain)
	if err != nil {
		return domain
	}
	return converted
}

func isASCII(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] >= utf8.RuneSelf {
			return false
		}
	}
	return true
}

type headerEntry struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

// customRequestHeaders merges the serialized header list with the host
// override. A malformed list is reported through err while the host override
// still applies.
func customRequestHeaders(serialized, hostOverride string) (map[string]string, error) {
	headers := make(map[string]string)
	var parseErr error
	if serialized != "" {
		var entries []headerEntry
		if err := json.Unmarshal([]byte(serialized), &entries); err != nil {
			parseErr = err
		} else {
			for _, e := range entries {
				if e.Name == "" {
					continue
				}
				headers[e.Name] = e.Value
			}
		}
	}
	if hostOverride != "" {
		headers["Host"] = hostOverride
	}
	return headers, parseErr
}
