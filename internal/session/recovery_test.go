package session

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/iptvterm/terminator/internal/xtream"
)

func testRecovery() *Recovery {
	return &Recovery{
		prober: xtream.New(2 * time.Second),
		client: &http.Client{Timeout: 2 * time.Second},
	}
}

func macSession(host string) Session {
	return Session{
		Host:     host,
		AuthMode: ModeMAC,
		MAC:      "00:1A:79:AA:BB:CC",
		Expiry:   "2026-12-31",
		DaysLeft: 100,
	}
}

// portal that bounces the playlist export to a credential-bearing URL and
// accepts the recovered pair on player_api.
func redirectingPortal(t *testing.T) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/get.php":
			if r.URL.Query().Get("username") == "" {
				if r.URL.Query().Get("deviceMac") != "00:1A:79:AA:BB:CC" {
					t.Errorf("deviceMac=%q", r.URL.Query().Get("deviceMac"))
				}
				http.Redirect(w, r, "/get.php?username=bob&password=pw&type=m3u_plus", http.StatusFound)
				return
			}
			fmt.Fprint(w, "#EXTM3U\n")
		case "/player_api.php":
			if r.URL.Query().Get("username") == "bob" && r.URL.Query().Get("password") == "pw" {
				fmt.Fprint(w, `{"user_info":{"status":"Active","exp_date":"0"}}`)
				return
			}
			fmt.Fprint(w, `{"user_info":{"status":"Disabled"}}`)
		default:
			http.NotFound(w, r)
		}
	})
}

func TestRecover_promotesViaPlaylistRedirect(t *testing.T) {
	srv := httptest.NewServer(redirectingPortal(t))
	defer srv.Close()

	got := testRecovery().Recover(context.Background(), macSession(srv.URL))
	if got.AuthMode != ModeCredentials {
		t.Fatalf("mode=%s, want credentials", got.AuthMode)
	}
	if got.Username != "bob" || got.Password != "pw" {
		t.Errorf("recovered %q/%q", got.Username, got.Password)
	}
	if got.Limited {
		t.Error("promoted session must not be limited")
	}
	if got.MAC == "" {
		t.Error("MAC should survive promotion")
	}
}

func TestRecover_fallsBackToLimitedMAC(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// playlist served inline, no credential redirect
		fmt.Fprint(w, "#EXTM3U\n")
	}))
	defer srv.Close()

	got := testRecovery().Recover(context.Background(), macSession(srv.URL))
	if got.AuthMode != ModeMAC || !got.Limited {
		t.Errorf("mode=%s limited=%v, want limited MAC session", got.AuthMode, got.Limited)
	}
	if got.Expiry != "2026-12-31" || got.DaysLeft != 100 {
		t.Errorf("original expiry lost: %+v", got)
	}
}

func TestRecover_unrecheckableCredentialsStayMAC(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/get.php":
			if r.URL.Query().Get("username") == "" {
				http.Redirect(w, r, "/get.php?username=bob&password=pw", http.StatusFound)
				return
			}
			fmt.Fprint(w, "#EXTM3U\n")
		case "/player_api.php":
			// recovered pair does not actually authenticate
			fmt.Fprint(w, `{"user_info":{"status":"Disabled"}}`)
		}
	}))
	defer srv.Close()

	got := testRecovery().Recover(context.Background(), macSession(srv.URL))
	if got.AuthMode != ModeMAC || !got.Limited {
		t.Errorf("mode=%s limited=%v", got.AuthMode, got.Limited)
	}
}
