/*
Package observability turns engine lifecycle events into Prometheus metrics
and structured log lines.

Both are plain domain.LifecycleHooks values, combined with domain.Merge and
handed to the runtime through runtime.WithLifecycleHooks.
*/
package observability
