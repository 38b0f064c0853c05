/*
Package observability turns fan-out lifecycle events into Prometheus metrics
and structured log lines.

Both are expressed as domain.GenerationHooks so they can be merged and handed
to the orchestrator.
*/
package observability
