package siteconfig

import "strings"

// Environment is the deployment mode.
type Environment string

const (
	Development Environment = "development"
	Staging     Environment = "staging"
	Production  Environment = "production"
)

// DetectEnvironment maps a serving host name to its deployment mode.
// A port suffix is ignored.
func DetectEnvironment(host string) Environment {
	h := strings.ToLower(strings.TrimSpace(host))
	if i := strings.LastIndexByte(h, ':'); i >= 0 && !strings.Contains(h[i:], "]") {
		h = h[:i]
	}
	h = strings.Trim(h, "[]")
	switch {
	case h == "localhost" || h == "127.0.0.1":
		return Development
	case strings.Contains(h, "staging"):
		return Staging
	default:
		return Production
	}
}

// ParseEnvironment accepts an explicit mode name; anything unknown is production.
func ParseEnvironment(s string) Environment {
	switch Environment(strings.ToLower(s)) {
	case Development:
		return Development
	case Staging:
		return Staging
	}
	return Production
}
