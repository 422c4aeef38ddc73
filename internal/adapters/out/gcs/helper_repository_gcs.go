// backend/internal/adapters/out/gcs/helper_repository_gcs.go
package gcs

import (
	"strings"
)

// sanitizePathSegment normalizes a path segment for GCS object paths.
// - removes separators
// - trims dots/spaces
func sanitizePathSegment(s string) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return ""
	}
	s = strings.ReplaceAll(s, "\\", "_")
	s = strings.ReplaceAll(s, "/", "_")
	s = strings.Trim(s, ". ")
	return s
}

// cleanObjectPath sanitizes each segment and drops empty ones ("a//b/../c" -> "a/b/c").
func cleanObjectPath(p string) string {
	parts := strings.Split(strings.TrimSpace(p), "/")
	out := make([]string, 0, len(parts))
	for _, seg := range parts {
		if s := sanitizePathSegment(seg); s != "" {
			out = append(out, s)
		}
	}
	return strings.Join(out, "/")
}
