// Package stalker performs the MAC-bound token-negotiation handshake
// against Stalker/Ministra portals.
//
// A Stalker portal authenticates the device identity, not static
// credentials: a handshake negotiates a session token bound to the MAC, and
// that token must accompany every later API call.
package stalker

import (
	"context"
	"encoding/json"
	"io"
	"math"
	"math/rand"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/iptvterm/terminator/internal/check"
	"github.com/iptvterm/terminator/internal/httpclient"
)

const (
	HandshakeTimeout = 5 * time.Second

	stbUserAgent = "Mozilla/5.0 (QtEmbedded; U; Linux; C) AppleWebKit/533.3 (KHTML, like Gecko) MAG200 stbapp ver: 2 rev: 250 Safari/533.3"
	xUserAgent   = "Model: MAG250; Link: WiFi"
)

// handshakeEndpoints lists the relative endpoints tried in fixed order.
// The first one that yields js.token wins; the rest are never probed.
var handshakeEndpoints = []string{"portal.php", "load.php", "c/portal.php"}

// Expiry field names checked on the profile payload, in priority order.
var expiryKeys = []string{"expire_billing_date", "exp_date", "services_expiration"}

// identity is the per-attempt randomized device identity. It is generated
// fresh for every attempt and never cached: reusing identities across
// attempts gets MACs flagged by some portals.
type identity struct {
	DeviceID  string
	DeviceID2 string
	Serial    string
	Signature string
}

func newIdentity() identity {
	return identity{
		DeviceID:  randomString(13, upperAlnum),
		DeviceID2: randomString(13, upperAlnum),
		Serial:    randomString(14, digits),
		Signature: randomString(32, alnum),
	}
}

const (
	upperAlnum = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
	alnum      = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
	digits     = "0123456789"
)

func randomString(n int, alphabet string) string {
	b := make([]byte, n)
	for i := range b {
		b[i] = alphabet[rand.Intn(len(alphabet))]
	}
	return string(b)
}

// PortalRoot computes the canonical "/c/" portal root for a raw host URL:
// a path already ending in /c gets a single trailing slash, anything else
// gets /c/ appended, and a doubled /c/c/ collapses back to /c/.
func PortalRoot(raw string) string {
	raw = strings.TrimSpace(raw)
	if !strings.HasPrefix(raw, "http://") && !strings.HasPrefix(raw, "https://") {
		raw = "http://" + raw
	}
	if strings.HasSuffix(raw, "/c") {
		raw += "/"
	} else {
		raw = strings.TrimSuffix(raw, "/") + "/c/"
	}
	return strings.Replace(raw, "/c/c/", "/c/", 1)
}

// Solver drives the two-step handshake.
type Solver struct {
	timeout time.Duration
}

// New returns a solver; timeout 0 uses HandshakeTimeout per call.
func New(timeout time.Duration) *Solver {
	if timeout <= 0 {
		timeout = HandshakeTimeout
	}
	return &Solver{timeout: timeout}
}

// Solve runs handshake then profile for one host/MAC pair. Every failure is
// classified and reported in the result; Solve never returns an error.
func (s *Solver) Solve(ctx context.Context, c check.MacCandidate) check.VerificationResult {
	res := check.VerificationResult{
		Host:     c.Host,
		MAC:      check.NormalizeMAC(c.MAC),
		Protocol: check.ProtocolStalker,
		Outcome:  check.OutcomeFailed,
	}
	root := PortalRoot(c.Host)
	id := newIdentity()

	// The cookie jar carries whatever session cookies the portal sets
	// during the handshake into the profile call.
	jar, _ := cookiejar.New(nil)
	client := httpclient.WithTimeout(s.timeout)
	client.Jar = jar

	token, reason := s.handshake(ctx, client, root, res.MAC, id)
	if token == "" {
		res.Reason = reason
		return res
	}
	res.Token = token

	return s.profile(ctx, client, root, res)
}

// handshake walks the endpoint candidates in order and stops at the first
// one whose response carries js.token.
func (s *Solver) handshake(ctx context.Context, client *http.Client, root, mac string, id identity) (string, check.Reason) {
	q := url.Values{}
	q.Set("type", "stb")
	q.Set("action", "handshake")
	q.Set("token", "")
	q.Set("mac", mac)
	q.Set("deviceId", id.DeviceID)
	q.Set("deviceId2", id.DeviceID2)
	q.Set("signature", id.Signature)
	q.Set("serial", id.Serial)

	// Only a token terminates the scan; a 403/511 from one endpoint does
	// not rule out a token from a later one. The first classified status
	// becomes the reason when no endpoint pays off.
	var statusReason check.Reason
	sawTransportError := false
	for _, ep := range handshakeEndpoints {
		body, status, err := s.get(ctx, client, root+ep+"?"+q.Encode(), mac, "")
		if err != nil {
			sawTransportError = true
			continue
		}
		if r, ok := classifyStatus(status); ok {
			if statusReason == check.ReasonNone {
				statusReason = r
			}
			continue
		}
		if token := tokenFromBody(body); token != "" {
			return token, check.ReasonNone
		}
	}
	if statusReason != check.ReasonNone {
		return "", statusReason
	}
	if sawTransportError {
		return "", check.ReasonNetworkError
	}
	return "", check.ReasonHandshakeFailed
}

// profile fetches get_profile with the bearer token and fills in expiry.
func (s *Solver) profile(ctx context.Context, client *http.Client, root string, res check.VerificationResult) check.VerificationResult {
	u := root + "portal.php?type=stb&action=get_profile"
	body, status, err := s.get(ctx, client, u, res.MAC, res.Token)
	if err != nil {
		res.Reason = check.ReasonNetworkError
		return res
	}
	if r, ok := classifyStatus(status); ok {
		res.Reason = r
		return res
	}
	fields := profileFields(body)
	if fields == nil {
		res.Reason = check.ReasonParseError
		return res
	}
	if fields["id"] == nil && fields["login"] == nil {
		res.Reason = check.ReasonBlockedOrExpired
		return res
	}
	res.Outcome = check.OutcomeActive
	res.Reason = check.ReasonNone
	res.Expiry, res.DaysLeft = expiryFromProfile(fields, time.Now())
	return res
}

func (s *Solver) get(ctx context.Context, client *http.Client, u, mac, bearer string) ([]byte, int, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, 0, err
	}
	req.Header.Set("User-Agent", stbUserAgent)
	req.Header.Set("X-User-Agent", xUserAgent)
	req.Header.Set("Cookie", "mac="+url.QueryEscape(mac)+"; stb_lang=en; timezone=Europe/Paris")
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, 0, err
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(io.LimitReader(httpclient.BodyReader(resp), maxBodyBytes))
	if err != nil {
		return nil, resp.StatusCode, err
	}
	return body, resp.StatusCode, nil
}

// maxBodyBytes caps portal responses; profile payloads are small and a
// misbehaving portal should not be able to balloon memory.
const maxBodyBytes = 1 << 20

// classifyStatus maps the portal's HTTP condition to a failure reason.
// 403 is a geo block; 511 is the portal rejecting a token.
func classifyStatus(status int) (check.Reason, bool) {
	switch status {
	case http.StatusForbidden:
		return check.ReasonGeoBlocked403, true
	case http.StatusNetworkAuthenticationRequired:
		return check.ReasonTokenInvalid511, true
	}
	return check.ReasonNone, false
}

func tokenFromBody(body []byte) string {
	var payload struct {
		JS struct {
			Token string `json:"token"`
		} `json:"js"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		return ""
	}
	return payload.JS.Token
}

// profileFields returns the profile object, preferring the js sub-object
// when present; some portals answer with the fields at top level.
func profileFields(body []byte) map[string]interface{} {
	var top map[string]interface{}
	if err := json.Unmarshal(body, &top); err != nil {
		return nil
	}
	if js, ok := top["js"].(map[string]interface{}); ok {
		return js
	}
	return top
}

// expiryFromProfile reads the first present expiry field. A numeric zero
// means unlimited; a non-numeric value is treated as a literal date string
// and diffed directly rather than converted through an epoch.
func expiryFromProfile(fields map[string]interface{}, now time.Time) (string, int) {
	for _, key := range expiryKeys {
		v, ok := fields[key]
		if !ok || v == nil {
			continue
		}
		switch x := v.(type) {
		case float64:
			if x == 0 {
				return check.ExpiryUnlimited, check.DaysUnlimited
			}
			exp := time.Unix(int64(x), 0)
			return exp.Format("2006-01-02"), daysBetween(now, exp)
		case string:
			t := strings.TrimSpace(x)
			if t == "" {
				continue
			}
			if n, err := strconv.ParseInt(t, 10, 64); err == nil {
				if n == 0 {
					return check.ExpiryUnlimited, check.DaysUnlimited
				}
				exp := time.Unix(n, 0)
				return exp.Format("2006-01-02"), daysBetween(now, exp)
			}
			if exp, ok := parseDateString(t); ok {
				return exp.Format("2006-01-02"), daysBetween(now, exp)
			}
			// Unparseable but present: report the raw string, unknown days.
			return t, 0
		}
	}
	return check.ExpiryUnlimited, check.DaysUnlimited
}

// dateLayouts covers the date formats Ministra panels are seen emitting.
var dateLayouts = []string{
	"2006-01-02 15:04:05",
	"2006-01-02",
	"January 2, 2006",
	"Jan 2, 2006",
	"02.01.2006",
}

func parseDateString(s string) (time.Time, bool) {
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

func daysBetween(now, exp time.Time) int {
	return int(math.Floor(exp.Sub(now).Hours() / 24))
}
