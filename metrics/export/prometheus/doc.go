// Package prometheus renders goSession metrics in Prometheus text
// exposition format.
//
// [NewPrometheusExporter] accepts a [goSession.Engine] and exposes an
// [http.Handler]. Outcomes of one operation share a family, for example
// gosession_sign_in_total{outcome="success|failure|locked"} and
// gosession_session_lookups_total{outcome="hit|miss|user_mismatch"}. The
// output also carries the Handle latency histogram, dropped audit records,
// event handler failures, rate-limiter fail-opens and
// gosession_rate_limit_strategy_info{strategy="kv|storage|memory"}.
//
// Nothing is registered in a global registry; callers mount the Handler.
package prometheus
