// Package engine wires the issue tracker, the model, the output writers, the
// Confluence publisher and the run history into one release-notes run.
// Frontends (the HTTP server and the CLI) call Engine.Run and observe progress
// through an EventBus; they never drive the lower-level packages directly.
package engine
