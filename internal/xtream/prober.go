// Package xtream verifies credentials against Xtream-style player_api
// backends with a single stateless GET.
package xtream

import (
	"context"
	"encoding/json"
	"math"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/iptvterm/terminator/internal/check"
	"github.com/iptvterm/terminator/internal/httpclient"
)

const (
	// BulkTimeout is used by the scheduler; interactive single-account
	// checks get a longer window via New.
	BulkTimeout        = 5 * time.Second
	InteractiveTimeout = 15 * time.Second

	userAgent = "Terminator/1.0"
)

// UserInfo is the player_api.php auth payload we care about.
type UserInfo struct {
	Status  string      `json:"status"`
	ExpDate interface{} `json:"exp_date"` // string or number, panel-dependent

	ActiveCons     interface{} `json:"active_cons"`
	MaxConnections interface{} `json:"max_connections"`
	CreatedAt      string      `json:"created_at"`
	Username       string      `json:"username"`
	Password       string      `json:"password"`
}

type authResponse struct {
	UserInfo *UserInfo `json:"user_info"`
}

// Prober issues player_api.php checks.
type Prober struct {
	client *http.Client
	now    func() time.Time
}

// New returns a prober with the given per-call timeout. Passing 0 uses
// BulkTimeout.
func New(timeout time.Duration) *Prober {
	if timeout <= 0 {
		timeout = BulkTimeout
	}
	return &Prober{client: httpclient.WithTimeout(timeout), now: time.Now}
}

// NormalizeHost prefixes bare hosts with http:// and drops a trailing slash.
func NormalizeHost(host string) string {
	host = strings.TrimSpace(host)
	if !strings.HasPrefix(host, "http://") && !strings.HasPrefix(host, "https://") {
		host = "http://" + host
	}
	return strings.TrimSuffix(host, "/")
}

// VerifyAccount checks a host/user/pass triple. Any transport error,
// non-200 status or JSON shape mismatch comes back as Failed(NetworkError);
// nothing escapes this boundary.
func (p *Prober) VerifyAccount(ctx context.Context, c check.AccountCandidate) check.VerificationResult {
	res := check.VerificationResult{
		Host:     NormalizeHost(c.Host),
		Username: c.Username,
		Password: c.Password,
		Protocol: check.ProtocolXtream,
	}
	q := url.Values{}
	q.Set("username", c.Username)
	q.Set("password", c.Password)
	p.verify(ctx, &res, q)
	return res
}

// VerifyMAC checks a host/MAC pair via the device_mac query variant. Some
// Xtream panels expose MAC-registered devices this way without a password.
func (p *Prober) VerifyMAC(ctx context.Context, c check.MacCandidate) check.VerificationResult {
	res := check.VerificationResult{
		Host:     NormalizeHost(c.Host),
		MAC:      c.MAC,
		Protocol: check.ProtocolXtream,
	}
	q := url.Values{}
	q.Set("device_mac", c.MAC)
	p.verify(ctx, &res, q)
	return res
}

func (p *Prober) verify(ctx context.Context, res *check.VerificationResult, q url.Values) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, res.Host+"/player_api.php?"+q.Encode(), nil)
	if err != nil {
		res.Outcome, res.Reason = check.OutcomeFailed, check.ReasonNetworkError
		return
	}
	req.Header.Set("User-Agent", userAgent)
	resp, err := p.client.Do(req)
	if err != nil {
		res.Outcome, res.Reason = check.OutcomeFailed, check.ReasonNetworkError
		return
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		res.Outcome, res.Reason = check.OutcomeFailed, check.ReasonNetworkError
		return
	}
	var auth authResponse
	if err := json.NewDecoder(httpclient.BodyReader(resp)).Decode(&auth); err != nil || auth.UserInfo == nil {
		res.Outcome, res.Reason = check.OutcomeFailed, check.ReasonNetworkError
		return
	}
	info := auth.UserInfo
	if info.Status != "Active" {
		res.Outcome = check.OutcomeInactive
		return
	}
	res.Outcome = check.OutcomeActive
	// Panels sometimes answer with the canonical credentials; prefer them.
	if info.Username != "" {
		res.Username = info.Username
	}
	if info.Password != "" {
		res.Password = info.Password
	}
	res.Expiry, res.DaysLeft = expiryFromEpoch(info.ExpDate, p.now())
	res.ActiveCons = fieldString(info.ActiveCons)
	res.MaxConns = fieldString(info.MaxConnections)
	res.CreatedAt = info.CreatedAt
}

// fieldString renders a panel field that may arrive as string or number.
func fieldString(v interface{}) string {
	switch x := v.(type) {
	case string:
		return x
	case float64:
		return strconv.FormatInt(int64(x), 10)
	}
	return ""
}

// expiryFromEpoch maps an exp_date epoch-seconds value (string or number,
// panel-dependent) to a calendar date and days-left. Absent or zero means
// unlimited. Days-left may be negative: servers do report "Active" past the
// expiry and we pass that through.
func expiryFromEpoch(expDate interface{}, now time.Time) (string, int) {
	var secs int64
	switch v := expDate.(type) {
	case string:
		n, err := strconv.ParseInt(strings.TrimSpace(v), 10, 64)
		if err != nil {
			return check.ExpiryUnlimited, check.DaysUnlimited
		}
		secs = n
	case float64:
		secs = int64(v)
	default:
		return check.ExpiryUnlimited, check.DaysUnlimited
	}
	if secs == 0 {
		return check.ExpiryUnlimited, check.DaysUnlimited
	}
	exp := time.Unix(secs, 0)
	days := int(math.Floor(exp.Sub(now).Hours() / 24))
	return exp.Format("2006-01-02"), days
}
