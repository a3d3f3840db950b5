package ingest

import (
	"net/url"
	"regexp"
	"strings"

	"github.com/iptvterm/terminator/internal/check"
)

var macRe = regexp.MustCompile(`\b(?:[0-9A-Fa-f]{2}:){5}[0-9A-Fa-f]{2}\b`)

// HostMacSet maps hosts to their ordered, value-deduplicated MAC lists.
// Host insertion order is preserved for deterministic selection menus.
type HostMacSet struct {
	hosts []string
	macs  map[string][]string
	seen  map[string]bool
}

func newHostMacSet() *HostMacSet {
	return &HostMacSet{
		macs: make(map[string][]string),
		seen: make(map[string]bool),
	}
}

func (s *HostMacSet) add(host, mac string) {
	key := host + "|" + mac
	if s.seen[key] {
		return
	}
	s.seen[key] = true
	if _, ok := s.macs[host]; !ok {
		s.hosts = append(s.hosts, host)
	}
	s.macs[host] = append(s.macs[host], mac)
}

// Hosts returns the hosts in first-seen order.
func (s *HostMacSet) Hosts() []string { return s.hosts }

// MACs returns the ordered MAC list for a host.
func (s *HostMacSet) MACs(host string) []string { return s.macs[host] }

// Candidates flattens the set into MacCandidates, hosts in first-seen
// order, MACs in first-seen order within each host.
func (s *HostMacSet) Candidates() []check.MacCandidate {
	var out []check.MacCandidate
	for _, h := range s.hosts {
		for _, m := range s.macs[h] {
			out = append(out, check.MacCandidate{Host: h, MAC: m})
		}
	}
	return out
}

// Len returns the total number of (host, MAC) pairs.
func (s *HostMacSet) Len() int { return len(s.seen) }

// ExtractHostMacPairs walks the text keeping a "current host" cursor. A URL
// line moves the cursor to that URL's scheme+authority (a trailing /c portal
// path is dropped); a MAC line attaches to the current host. MACs seen
// before any host are discarded.
func ExtractHostMacPairs(text string) *HostMacSet {
	set := newHostMacSet()
	current := ""
	for _, line := range strings.Split(text, "\n") {
		if raw := urlRe.FindString(line); raw != "" {
			if host, ok := portalHost(raw); ok {
				current = host
			}
		}
		mac := macRe.FindString(line)
		if mac == "" || current == "" {
			continue
		}
		set.add(current, check.NormalizeMAC(mac))
	}
	return set
}

// portalHost reduces a URL to scheme://authority, stripping a trailing /c
// path so Stalker portal roots and plain hosts compare equal.
func portalHost(raw string) (string, bool) {
	u, err := url.Parse(raw)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return "", false
	}
	// Only the authority matters: /c portal roots and deeper stream paths
	// all identify the same portal for MAC pairing purposes.
	return strings.ToLower(u.Scheme) + "://" + u.Host, true
}
