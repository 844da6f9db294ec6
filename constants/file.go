package constants

import "strings"

// AllowedExtensions holds the default allowed file extensions for ingestion.
var AllowedExtensions = map[string]struct{}{
	"pdf": {},
}

// NormalizeExt lowercases and trims the dot from a file extension.
func NormalizeExt(ext string) string {
	return strings.ToLower(strings.TrimPrefix(ext, "."))
}

// ExtAllowed reports whether a (possibly dotted, mixed-case) extension is
// allowed by the given set, falling back to AllowedExtensions when nil.
func ExtAllowed(ext string, allowed map[string]struct{}) bool {
	if allowed == nil {
		allowed = AllowedExtensions
	}
	_, ok := allowed[NormalizeExt(ext)]
	return ok
}
