package session

import (
	"context"
	"log"
	"net/http"
	"net/url"
	"time"

	"github.com/iptvterm/terminator/internal/check"
	"github.com/iptvterm/terminator/internal/httpclient"
	"github.com/iptvterm/terminator/internal/ingest"
	"github.com/iptvterm/terminator/internal/xtream"
)

// Recovery upgrades a MAC session whose info call came back unusable. It
// only ever runs against the single interactively selected session, never
// against bulk candidates.
type Recovery struct {
	prober *xtream.Prober
	client *http.Client
}

// NewRecovery wires a recovery service around an interactive-timeout prober.
func NewRecovery() *Recovery {
	return &Recovery{
		prober: xtream.New(xtream.InteractiveTimeout),
		client: httpclient.WithTimeout(10 * time.Second),
	}
}

// Recover tries, in order: one http->https host upgrade with a re-check,
// then the playlist-export redirect trick to recover username/password from
// the MAC. If both fail the session survives in reduced-capability MAC mode
// with Limited set; partial capability beats total failure.
func (r *Recovery) Recover(ctx context.Context, s Session) Session {
	if upgraded, ok := s.WithHTTPS(); ok {
		if res := r.recheck(ctx, upgraded); res.IsActive() {
			log.Printf("[recovery] https upgrade succeeded for %s", upgraded.Host)
			upgraded.Expiry, upgraded.DaysLeft = res.Expiry, res.DaysLeft
			s = upgraded
		}
	}
	if s.AuthMode != ModeMAC {
		return s
	}
	if user, pass, ok := r.credentialsFromPlaylistRedirect(ctx, s); ok {
		promoted := s.Promote(user, pass)
		if res := r.recheck(ctx, promoted); res.IsActive() {
			log.Printf("[recovery] recovered credentials for %s via playlist redirect", s.Host)
			promoted.Expiry, promoted.DaysLeft = res.Expiry, res.DaysLeft
			return promoted
		}
	}
	s.Limited = true
	log.Printf("[recovery] %s stays in limited MAC mode", s.Host)
	return s
}

func (r *Recovery) recheck(ctx context.Context, s Session) check.VerificationResult {
	switch s.AuthMode {
	case ModeCredentials:
		return r.prober.VerifyAccount(ctx, check.AccountCandidate{
			Host: s.Host, Username: s.Username, Password: s.Password,
		})
	default:
		return r.prober.VerifyMAC(ctx, check.MacCandidate{Host: s.Host, MAC: s.MAC})
	}
}

// credentialsFromPlaylistRedirect requests the m3u_plus export for the
// device MAC and inspects the final redirected URL, not the body: portals
// that know the MAC bounce the request to a credential-bearing get.php URL.
func (r *Recovery) credentialsFromPlaylistRedirect(ctx context.Context, s Session) (user, pass string, ok bool) {
	u := s.Host + "/get.php?type=m3u_plus&deviceMac=" + url.QueryEscape(s.MAC)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return "", "", false
	}
	resp, err := r.client.Do(req)
	if err != nil {
		return "", "", false
	}
	defer resp.Body.Close()
	final := resp.Request.URL.String()
	cand, found := ingest.CandidateFromURL(final)
	if !found || cand.Username == "" || cand.Password == "" {
		return "", "", false
	}
	return cand.Username, cand.Password, true
}
