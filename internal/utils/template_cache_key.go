package utils

import "strings"

// BuildLatestTemplateCacheKey keys the short-lived "latest template"
// lookup; nil name means "newest overall".
func BuildLatestTemplateCacheKey(name *string) string {
	n := ""
	if name != nil {
		n = strings.ToLower(strings.TrimSpace(*name))
	}

	return "templates:latest:v1:name=" + n
}
