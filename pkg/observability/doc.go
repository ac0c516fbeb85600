/*
Package observability exposes pattern runs as Prometheus metrics.

A Metrics value owns its own registry. Its lifecycle hooks are composed into
the engine hooks and its sink is added to the capture fan-out, so every
observed event, transition and outcome is counted without the wrappers or the
engine knowing about Prometheus.
*/
package observability
