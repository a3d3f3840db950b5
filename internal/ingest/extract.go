// Package ingest turns freeform text (pasted dumps, page text, link lists)
// into unverified account and device candidates.
package ingest

import (
	"net/url"
	"regexp"
	"strings"

	"github.com/iptvterm/terminator/internal/check"
)

// Label synonyms are kept as data so the tables can be extended and tested
// without touching the scan loop.
var (
	hostLabels = []string{"url", "host", "server"}
	userLabels = []string{"user", "username"}
	passLabels = []string{"pass", "password"}

	// Path prefixes whose next two segments are user and pass.
	streamPrefixes = map[string]bool{"movie": true, "series": true, "live": true}
)

var (
	labelRe = regexp.MustCompile(`(?i)^\s*([a-z]+)\s*[:=]\s*(\S+)`)
	urlRe   = regexp.MustCompile(`[a-zA-Z][a-zA-Z0-9+.-]*://\S+`)
)

// Extract runs both extraction strategies over the lines and returns the
// union, deduplicated on (host, username) keeping the first-seen candidate.
// Order of first appearance is preserved.
func Extract(lines []string) []check.AccountCandidate {
	var out []check.AccountCandidate
	seen := make(map[string]bool)

	add := func(c check.AccountCandidate) {
		if c.Host == "" || c.Username == "" || c.Password == "" {
			return
		}
		if seen[c.Key()] {
			return
		}
		seen[c.Key()] = true
		out = append(out, c)
	}

	var block check.AccountCandidate
	for _, line := range lines {
		if c, ok := candidateFromURLLine(line); ok {
			add(c)
		}

		label, value, ok := splitLabeled(line)
		if !ok {
			continue
		}
		switch {
		case matchLabel(label, hostLabels):
			// A host label always starts a fresh block, dropping any
			// partially accumulated user/pass.
			block = check.AccountCandidate{Host: value}
		case matchLabel(label, userLabels):
			block.Username = value
		case matchLabel(label, passLabels):
			block.Password = value
		}
		if block.Host != "" && block.Username != "" && block.Password != "" {
			add(block)
			block = check.AccountCandidate{}
		}
	}
	return out
}

// ExtractText is Extract over raw text split on newlines.
func ExtractText(text string) []check.AccountCandidate {
	return Extract(strings.Split(text, "\n"))
}

func splitLabeled(line string) (label, value string, ok bool) {
	m := labelRe.FindStringSubmatch(line)
	if m == nil {
		return "", "", false
	}
	return strings.ToLower(m[1]), m[2], true
}

func matchLabel(label string, synonyms []string) bool {
	for _, s := range synonyms {
		if label == s {
			return true
		}
	}
	return false
}

// candidateFromURLLine recognizes the two URL shapes that embed
// credentials: query parameters (username=/password=) and path segments.
// Malformed URLs are skipped, never reported.
func candidateFromURLLine(line string) (check.AccountCandidate, bool) {
	raw := urlRe.FindString(line)
	if raw == "" {
		return check.AccountCandidate{}, false
	}
	return CandidateFromURL(raw)
}

// CandidateFromURL extracts a candidate from a single URL string. The same
// parser is used by credential recovery to inspect redirect targets.
func CandidateFromURL(raw string) (check.AccountCandidate, bool) {
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" {
		return check.AccountCandidate{}, false
	}
	scheme := strings.ToLower(u.Scheme)
	// Only portal-reachable schemes; ftp:// and file:// hits in dumps are noise.
	if scheme != "http" && scheme != "https" {
		return check.AccountCandidate{}, false
	}
	host := scheme + "://" + u.Host

	q := u.Query()
	if user, pass := q.Get("username"), q.Get("password"); user != "" && pass != "" {
		return check.AccountCandidate{Host: host, Username: user, Password: pass}, true
	}

	segs := pathSegments(u.Path)
	if len(segs) >= 4 && streamPrefixes[strings.ToLower(segs[0])] {
		return check.AccountCandidate{Host: host, Username: segs[1], Password: segs[2]}, true
	}
	if len(segs) >= 3 && !streamPrefixes[strings.ToLower(segs[0])] {
		return check.AccountCandidate{Host: host, Username: segs[0], Password: segs[1]}, true
	}
	return check.AccountCandidate{}, false
}

func pathSegments(p string) []string {
	var segs []string
	for _, s := range strings.Split(p, "/") {
		if s != "" {
			segs = append(segs, s)
		}
	}
	return segs
}
