package session

import (
	"strings"
	"testing"

	"github.com/iptvterm/terminator/internal/check"
)

func activeResult() check.VerificationResult {
	return check.VerificationResult{
		Host:     "http://x.tv:8080",
		Protocol: check.ProtocolXtream,
		Outcome:  check.OutcomeActive,
		Expiry:   "2026-12-31",
		DaysLeft: 100,
	}
}

func TestFromResult_credentialsMode(t *testing.T) {
	r := activeResult()
	r.Username, r.Password = "bob", "pw"
	s, err := FromResult(r)
	if err != nil {
		t.Fatal(err)
	}
	if s.AuthMode != ModeCredentials || !s.Valid() {
		t.Errorf("mode=%s valid=%v", s.AuthMode, s.Valid())
	}
	if !strings.Contains(s.EPGURL, "/xmltv.php?username=bob") {
		t.Errorf("EPGURL=%q", s.EPGURL)
	}
}

func TestFromResult_macMode(t *testing.T) {
	r := activeResult()
	r.MAC, r.Token = "00:1A:79:AA:BB:CC", "tok"
	s, err := FromResult(r)
	if err != nil {
		t.Fatal(err)
	}
	if s.AuthMode != ModeMAC || !s.Valid() {
		t.Errorf("mode=%s valid=%v", s.AuthMode, s.Valid())
	}
	if s.EPGURL != "" {
		t.Errorf("MAC session has no EPG URL, got %q", s.EPGURL)
	}
}

func TestFromResult_rejectsNonActive(t *testing.T) {
	r := activeResult()
	r.Outcome = check.OutcomeInactive
	if _, err := FromResult(r); err == nil {
		t.Error("want error for non-active result")
	}
}

func TestValid_modeInvariants(t *testing.T) {
	if (Session{AuthMode: ModeMAC}).Valid() {
		t.Error("MAC mode without MAC should be invalid")
	}
	if (Session{AuthMode: ModeCredentials, Username: "u"}).Valid() {
		t.Error("credentials mode without password should be invalid")
	}
	if (Session{}).Valid() {
		t.Error("unset mode should be invalid")
	}
}

func TestWithHTTPS(t *testing.T) {
	s := Session{Host: "http://x.tv", Username: "u", Password: "p", AuthMode: ModeCredentials}
	up, ok := s.WithHTTPS()
	if !ok || up.Host != "https://x.tv" {
		t.Errorf("ok=%v host=%q", ok, up.Host)
	}
	if !strings.HasPrefix(up.EPGURL, "https://") {
		t.Errorf("EPGURL not upgraded: %q", up.EPGURL)
	}
	if _, ok := up.WithHTTPS(); ok {
		t.Error("https host must not upgrade again")
	}
}

func TestPromote(t *testing.T) {
	s := Session{Host: "http://x.tv", AuthMode: ModeMAC, MAC: "00:1A:79:AA:BB:CC", Limited: true}
	p := s.Promote("bob", "pw")
	if p.AuthMode != ModeCredentials || p.Username != "bob" || p.Limited {
		t.Errorf("promoted: %+v", p)
	}
	if p.EPGURL == "" {
		t.Error("promotion should fill the EPG URL")
	}
	if s.AuthMode != ModeMAC {
		t.Error("Promote must not mutate the receiver")
	}
}
