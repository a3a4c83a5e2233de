package internaldefs

import (
	goToken "github.com/MrEthical07/goToken"
)

// Namespace prefixes every exported series.
const Namespace = "gotoken"

// CounterDef names one engine counter.
type CounterDef struct {
	ID   goToken.MetricID
	Name string
	Help string
}

// HistogramDef names one engine histogram.
type HistogramDef struct {
	ID   goToken.MetricID
	Name string
	Help string
}

// AuditDropped is exported next to the engine counters.
var AuditDropped = CounterDef{
	Name: Namespace + "_audit_dropped_total",
	Help: "Audit events dropped because the dispatcher buffer was full.",
}

var CounterDefs = []CounterDef{
	counter(goToken.MetricLoginSuccess, "login_success_total", "Successful logins."),
	counter(goToken.MetricLoginFailure, "login_failure_total", "Failed logins."),
	counter(goToken.MetricLoginRateLimited, "login_rate_limited_total", "Logins rejected by the throttle."),
	counter(goToken.MetricRegisterSuccess, "register_success_total", "Registered principals."),
	counter(goToken.MetricRegisterDuplicate, "register_duplicate_total", "Registrations rejected for a taken email."),
	counter(goToken.MetricRefreshSuccess, "refresh_success_total", "Successful refresh rotations."),
	counter(goToken.MetricRefreshFailure, "refresh_failure_total", "Failed refresh rotations."),
	counter(goToken.MetricRefreshRaceDetected, "refresh_race_detected_total", "Concurrent rotations of the same refresh token."),
	counter(goToken.MetricRefreshRateLimited, "refresh_rate_limited_total", "Refreshes rejected by the throttle."),
	counter(goToken.MetricVerifySuccess, "verify_success_total", "Tokens that verified."),
	counter(goToken.MetricVerifyFailure, "verify_failure_total", "Tokens that failed verification."),
	counter(goToken.MetricVerifyExpired, "verify_expired_total", "Expired tokens presented."),
	counter(goToken.MetricVerifyRevoked, "verify_revoked_total", "Revoked tokens presented."),
	counter(goToken.MetricVerifyFailOpen, "verify_fail_open_total", "Verifications accepted while the revocation store was unavailable."),
	counter(goToken.MetricRevokeSuccess, "revoke_success_total", "Tokens revoked."),
	counter(goToken.MetricRevokeDuplicate, "revoke_duplicate_total", "Revocations of already revoked tokens."),
	counter(goToken.MetricRevokeFailure, "revoke_failure_total", "Revocations that failed."),
	counter(goToken.MetricLogout, "logout_total", "Logouts."),
	counter(goToken.MetricRevokeAll, "revoke_all_total", "Subject-wide revocations."),
	counter(goToken.MetricPasswordChangeSuccess, "password_change_success_total", "Password changes."),
	counter(goToken.MetricPasswordChangeInvalidOld, "password_change_invalid_old_total", "Password changes with a wrong old password."),
	counter(goToken.MetricPurgedRecords, "purged_records_total", "Expired revocation records deleted."),
}

var HistogramDefs = []HistogramDef{
	{ID: goToken.MetricVerifyLatency, Name: Namespace + "_verify_latency_seconds", Help: "Verify latency."},
}

// HistogramBounds are the upper bounds in seconds, matching the engine
// buckets.
var HistogramBounds = []string{"0.005", "0.01", "0.025", "0.05", "0.1", "0.25", "0.5", "+Inf"}

// HistogramBoundValues are HistogramBounds without the +Inf bucket, for
// exporters that take explicit float boundaries.
var HistogramBoundValues = []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5}

func counter(id goToken.MetricID, suffix, help string) CounterDef {
	return CounterDef{ID: id, Name: Namespace + "_" + suffix, Help: help}
}

// NormalizeBuckets copies raw into a fixed array, zero-filling missing
// buckets.
func NormalizeBuckets(raw []uint64) [8]uint64 {
	var out [8]uint64
	copy(out[:], raw)
	return out
}

// CumulativeBuckets converts per-bucket counts into running totals.
func CumulativeBuckets(raw [8]uint64) [8]uint64 {
	var out [8]uint64
	var running uint64
	for i, v := range raw {
		running += v
		out[i] = running
	}
	return out
}
