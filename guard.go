package warden

import "strings"

// RequireAuth reports whether path needs authentication given the exempt
// paths. Exemptions ending in "*" match by prefix, the rest must equal the
// path once it has been given a trailing slash.
func RequireAuth(path string, exemptions []string) bool {
	if path == "" || len(exemptions) == 0 {
		return true
	}

	if !strings.HasSuffix(path, "/") {
		path += "/"
	}

	for _, exempt := range exemptions {
		if exempt == "" {
			continue
		}
		if prefix, ok := strings.CutSuffix(exempt, "*"); ok && strings.HasPrefix(path, prefix) {
			return false
		}
		if exempt == path {
			return false
		}
	}

	return true
}
