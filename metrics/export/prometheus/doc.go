// Package prometheus renders goToken engine metrics in the Prometheus text
// exposition format.
//
// Counters are named gotoken_*_total and the verify latency histogram is
// gotoken_verify_latency_seconds. When the source also reports health, a
// gotoken_store_up gauge is added. Nothing is registered globally; mount
// [Exporter.Handler] on whatever mux serves /metrics.
package prometheus
