// Package engine provides the request handler. It assigns request IDs from a
// process-wide counter, runs the simulated work inline or on the configured
// executor for the requested mode, times it, and reports finished results to
// the sample store and to live subscribers.
package engine
