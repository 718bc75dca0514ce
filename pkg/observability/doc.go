/*
Package observability provides Prometheus metrics and structured audit logging
for playback runs.

Both are delivered as domain.LifecycleHooks, so the Conductor stays unaware of
how runs are observed.
*/
package observability
