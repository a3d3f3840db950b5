// Package session models a verified account/device context and the
// recovery paths that upgrade it. Sessions live in memory only; nothing
// here persists tokens or credentials across runs.
package session

import (
	"errors"
	"strings"

	"github.com/iptvterm/terminator/internal/check"
)

// AuthMode says how the session authenticates.
type AuthMode string

const (
	ModeCredentials AuthMode = "credentials"
	ModeMAC         AuthMode = "mac"
)

// Session is a verified, authenticated context ready for downstream
// consumption (playlist generation lives outside this module). Values are
// treated as immutable per step: recovery returns updated copies rather
// than mutating shared state.
type Session struct {
	Host     string
	AuthMode AuthMode
	Username string
	Password string
	MAC      string
	// Token is the stalker bearer token; empty for credential sessions.
	Token    string
	EPGURL   string
	Expiry   string
	DaysLeft int
	// Limited marks a MAC session whose credential recovery failed; it
	// still works for playback but cannot use credential-only endpoints.
	Limited bool
}

var errNotActive = errors.New("session: result is not active")

// FromResult builds a Session from an Active verification result. MAC
// results start in MAC mode; everything else starts in credentials mode.
func FromResult(r check.VerificationResult) (Session, error) {
	if !r.IsActive() {
		return Session{}, errNotActive
	}
	s := Session{
		Host:     r.Host,
		Username: r.Username,
		Password: r.Password,
		MAC:      r.MAC,
		Token:    r.Token,
		Expiry:   r.Expiry,
		DaysLeft: r.DaysLeft,
	}
	if r.Username != "" && r.Password != "" {
		s.AuthMode = ModeCredentials
	} else {
		s.AuthMode = ModeMAC
	}
	s.EPGURL = epgURL(s)
	return s, nil
}

// Valid checks the mode invariants: MAC mode requires a MAC, credentials
// mode requires both username and password.
func (s Session) Valid() bool {
	switch s.AuthMode {
	case ModeMAC:
		return s.MAC != ""
	case ModeCredentials:
		return s.Username != "" && s.Password != ""
	}
	return false
}

// WithHTTPS returns a copy with an http:// host upgraded to https://.
// The second return is false when the host was already https (or odd).
func (s Session) WithHTTPS() (Session, bool) {
	if !strings.HasPrefix(s.Host, "http://") {
		return s, false
	}
	s.Host = "https://" + strings.TrimPrefix(s.Host, "http://")
	s.EPGURL = epgURL(s)
	return s, true
}

// Promote returns a copy upgraded from MAC mode to credentials mode.
func (s Session) Promote(username, password string) Session {
	s.AuthMode = ModeCredentials
	s.Username = username
	s.Password = password
	s.Limited = false
	s.EPGURL = epgURL(s)
	return s
}

func epgURL(s Session) string {
	if s.Username == "" || s.Password == "" {
		return ""
	}
	return s.Host + "/xmltv.php?username=" + s.Username + "&password=" + s.Password
}
