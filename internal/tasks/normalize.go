package tasks

import (
	"net/url"
	"strings"

	"github.com/desertthunder/segx/internal/models"
)

// Normalize rewrites an artifact path so it carries exactly one copy of base.
//
// Leading copies of base are stripped (repeated or slash-separated), an absolute URL on another
// origin keeps only its path and query, and the result is base plus a rooted path.
// Normalize(base, Normalize(base, p)) == Normalize(base, p). An empty path stays empty.
func Normalize(base, p string) string {
	if p == "" {
		return ""
	}
	base = strings.TrimRight(base, "/")

	p = stripBase(base, p)
	if u, err := url.Parse(p); err == nil && u.Scheme != "" && u.Host != "" {
		p = stripBase(base, u.RequestURI())
	}
	if !strings.HasPrefix(p, "/") {
		p = "/" + p
	}
	return base + p
}

// NormalizeResult applies [Normalize] to both artifact paths.
func NormalizeResult(base string, r models.JobResult) models.JobResult {
	return models.JobResult{
		StaticImage: Normalize(base, r.StaticImage),
		GIF:         Normalize(base, r.GIF),
	}
}

func stripBase(base, p string) string {
	if base == "" {
		return p
	}
	for {
		switch {
		case strings.HasPrefix(p, base) && atBoundary(base, p[len(base):]):
			p = p[len(base):]
		case strings.HasPrefix(p, "/"+base) && atBoundary(base, p[len(base)+1:]):
			p = p[len(base)+1:]
		default:
			return p
		}
	}
}

// atBoundary reports whether rest, the text after a matched base, starts a new path segment.
func atBoundary(base, rest string) bool {
	return rest == "" || rest[0] == '/' || rest[0] == '?' || strings.HasPrefix(rest, base)
}
