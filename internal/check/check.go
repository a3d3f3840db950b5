// Package check holds the shared candidate and verification result types
// passed between the ingestor, the protocol probers and the scheduler.
package check

import "strings"

// Protocol identifies which backend protocol produced a result.
type Protocol string

const (
	ProtocolXtream  Protocol = "xtream"
	ProtocolStalker Protocol = "stalker"
)

// Outcome is the terminal state of one verification attempt.
type Outcome string

const (
	OutcomeActive   Outcome = "active"
	OutcomeInactive Outcome = "inactive"
	OutcomeFailed   Outcome = "failed"
)

// Reason classifies a failed attempt. All reasons are non-fatal: the
// scheduler reports them per candidate and keeps going.
type Reason string

const (
	ReasonNone             Reason = ""
	ReasonNetworkError     Reason = "network_error"
	ReasonHandshakeFailed  Reason = "handshake_failed"
	ReasonTokenInvalid511  Reason = "token_invalid_511"
	ReasonGeoBlocked403    Reason = "geo_blocked_403"
	ReasonBlockedOrExpired Reason = "blocked_or_expired"
	ReasonParseError       Reason = "parse_error"
)

// DaysUnlimited is the DaysLeft sentinel for subscriptions without an
// expiry date. Real days-left values may be negative (expired but still
// reported active by the server); they are passed through unclamped.
const DaysUnlimited = 1<<31 - 1

// ExpiryUnlimited is the Expiry value used when exp_date is absent or zero.
const ExpiryUnlimited = "Unlimited"

// AccountCandidate is an unverified host/user/pass triple extracted from text.
// Uniqueness key is (host, username); insertion order is preserved so
// selection menus are deterministic.
type AccountCandidate struct {
	Host     string
	Username string
	Password string
}

func (c AccountCandidate) Key() string { return c.Host + "|" + c.Username }

func (AccountCandidate) isCandidate() {}

// MacCandidate is an unverified host/MAC pair. MAC is canonical uppercase
// colon-separated 6-octet form.
type MacCandidate struct {
	Host string
	MAC  string
}

func (c MacCandidate) Key() string { return c.Host + "|" + c.MAC }

func (MacCandidate) isCandidate() {}

// Candidate is either an AccountCandidate or a MacCandidate.
type Candidate interface {
	Key() string
	isCandidate()
}

// VerificationResult is the immutable outcome of verifying one candidate.
type VerificationResult struct {
	Host     string
	Username string
	Password string
	MAC      string

	Protocol Protocol
	Outcome  Outcome
	Reason   Reason

	// Expiry is a calendar date string or ExpiryUnlimited.
	Expiry   string
	DaysLeft int

	// Connection info reported by Xtream panels, as received (string or
	// numeric upstream, rendered to string). Empty when not reported.
	ActiveCons string
	MaxConns   string
	CreatedAt  string

	// Token is only set for stalker results; it is the bearer token
	// negotiated by the handshake and lives in memory only.
	Token string
}

// IsActive reports whether the result represents a working account.
func (r VerificationResult) IsActive() bool { return r.Outcome == OutcomeActive }

// Unlimited reports whether the subscription has no expiry.
func (r VerificationResult) Unlimited() bool { return r.DaysLeft == DaysUnlimited }

// Identity returns the username or, for MAC-verified results, the MAC.
func (r VerificationResult) Identity() string {
	if r.Username != "" {
		return r.Username
	}
	return r.MAC
}

// NormalizeMAC uppercases a colon-separated MAC. It assumes the shape was
// already validated by the ingest patterns.
func NormalizeMAC(mac string) string {
	return strings.ToUpper(strings.TrimSpace(mac))
}
