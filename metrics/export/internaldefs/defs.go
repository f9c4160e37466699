package internaldefs

import (
	goSession "github.com/MrEthical07/goSession"
)

// Label is one name/value pair attached to a series.
type Label struct {
	Key   string
	Value string
}

// Series binds one engine counter to the labels it is exported under.
type Series struct {
	ID     goSession.MetricID
	Labels []Label
}

// CounterFamily groups engine counters that describe outcomes of the same
// operation under one metric name.
type CounterFamily struct {
	Name   string
	Help   string
	Series []Series
}

// HistogramDef defines a public type used by goSession APIs.
//
// HistogramDef instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type HistogramDef struct {
	ID   goSession.MetricID
	Name string
	Help string
}

func outcome(id goSession.MetricID, value string) Series {
	return Series{ID: id, Labels: []Label{{Key: "outcome", Value: value}}}
}

func single(id goSession.MetricID) []Series {
	return []Series{{ID: id}}
}

// CounterFamilies lists every exported engine counter in exposition order.
var CounterFamilies = []CounterFamily{
	{
		Name: "gosession_sign_up_total",
		Help: "Sign-up attempts by outcome.",
		Series: []Series{
			outcome(goSession.MetricRegisterSuccess, "success"),
			outcome(goSession.MetricRegisterDuplicate, "duplicate"),
			outcome(goSession.MetricRegisterInvalid, "invalid"),
		},
	},
	{
		Name: "gosession_sign_in_total",
		Help: "Sign-in attempts by outcome.",
		Series: []Series{
			outcome(goSession.MetricLoginSuccess, "success"),
			outcome(goSession.MetricLoginFailure, "failure"),
			outcome(goSession.MetricLoginLockedRejected, "locked"),
		},
	},
	{Name: "gosession_account_locked_total", Help: "Accounts locked after repeated failures.", Series: single(goSession.MetricAccountLocked)},
	{Name: "gosession_sign_out_total", Help: "Sign-outs.", Series: single(goSession.MetricLogout)},
	{
		Name: "gosession_sessions_total",
		Help: "Session lifecycle transitions.",
		Series: []Series{
			{ID: goSession.MetricSessionCreated, Labels: []Label{{Key: "event", Value: "created"}}},
			{ID: goSession.MetricSessionRevoked, Labels: []Label{{Key: "event", Value: "revoked"}}},
		},
	},
	{
		Name: "gosession_session_lookups_total",
		Help: "Cookie lookups by result.",
		Series: []Series{
			outcome(goSession.MetricSessionLookupHit, "hit"),
			outcome(goSession.MetricSessionLookupMiss, "miss"),
			outcome(goSession.MetricSessionUserMismatch, "user_mismatch"),
		},
	},
	{Name: "gosession_rate_limit_denied_total", Help: "Requests denied by the rate limiter.", Series: single(goSession.MetricRateLimitHit)},
	{
		Name: "gosession_email_verification_total",
		Help: "Email verification tokens issued and consumed.",
		Series: []Series{
			outcome(goSession.MetricEmailVerificationRequest, "requested"),
			outcome(goSession.MetricEmailVerificationSuccess, "verified"),
			outcome(goSession.MetricEmailVerificationFailure, "failed"),
		},
	},
	{
		Name: "gosession_password_reset_total",
		Help: "Password reset tokens issued and consumed.",
		Series: []Series{
			outcome(goSession.MetricPasswordResetRequest, "requested"),
			outcome(goSession.MetricPasswordResetSuccess, "completed"),
			outcome(goSession.MetricPasswordResetFailure, "failed"),
		},
	},
	{
		Name: "gosession_password_change_total",
		Help: "Password changes by outcome.",
		Series: []Series{
			outcome(goSession.MetricPasswordChangeSuccess, "success"),
			outcome(goSession.MetricPasswordChangeFailure, "failure"),
		},
	},
	{Name: "gosession_user_updated_total", Help: "Profile updates.", Series: single(goSession.MetricUserUpdated)},
	{Name: "gosession_account_deleted_total", Help: "Deleted accounts.", Series: single(goSession.MetricAccountDeleted)},
	{Name: "gosession_hook_short_circuit_total", Help: "Requests answered by a before hook.", Series: single(goSession.MetricHookShortCircuit)},
	{Name: "gosession_internal_error_total", Help: "Requests that failed with an internal error.", Series: single(goSession.MetricInternalError)},
}

// HistogramDefs lists the exported latency histograms.
var HistogramDefs = []HistogramDef{
	{ID: goSession.MetricHandleLatency, Name: "gosession_handle_latency_seconds", Help: "Engine.Handle latency histogram."},
}

// Engine-level series that are not part of the counter snapshot.
const (
	AuditDroppedName      = "gosession_audit_dropped_total"
	AuditDroppedHelp      = "Audit records dropped because the forwarder buffer was full."
	EventFailuresName     = "gosession_event_handler_failures_total"
	EventFailuresHelp     = "Event and hook handlers that returned an error or panicked."
	RateLimitFailOpenName = "gosession_rate_limit_fail_open_total"
	RateLimitFailOpenHelp = "Requests admitted because the rate-limit backend failed."
	RateLimitInfoName     = "gosession_rate_limit_strategy_info"
	RateLimitInfoHelp     = "Active rate-limit counting backend; absent when limiting is disabled."
)

// EventSource is implemented by sources that can report handler failures.
// *goSession.Engine implements it.
type EventSource interface {
	EventFailures() uint64
}

// LimiterSource is implemented by sources backed by a rate limiter.
// *goSession.Engine implements it.
type LimiterSource interface {
	RateLimitFailOpens() uint64
	RateLimitStrategy() string
}

// HistogramBounds are the upper bounds of the engine's latency buckets.
var HistogramBounds = []string{
	"0.005",
	"0.01",
	"0.025",
	"0.05",
	"0.1",
	"0.25",
	"0.5",
	"+Inf",
}

// HistogramBoundSuffix names the buckets in instrument names.
var HistogramBoundSuffix = []string{
	"0_005",
	"0_01",
	"0_025",
	"0_05",
	"0_1",
	"0_25",
	"0_5",
	"inf",
}

// NormalizeBuckets describes the normalizebuckets operation and its observable behavior.
//
// NormalizeBuckets does not mutate shared global state and can be used concurrently.
func NormalizeBuckets(raw []uint64) [8]uint64 {
	var out [8]uint64
	copy(out[:], raw)
	return out
}

// CumulativeBuckets converts per-bucket counts to running totals.
func CumulativeBuckets(raw [8]uint64) [8]uint64 {
	var out [8]uint64
	var running uint64
	for i, v := range raw {
		running += v
		out[i] = running
	}
	return out
}

