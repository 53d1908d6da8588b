// Package modeladapter adapts chat-completion requests to the quirks of the
// configured model deployment.
//
// It contains:
//   - [Profile] and [Catalog]: static descriptions of a model family's parameter
//     restrictions (fixed temperature, token-limit parameter name, unsupported
//     parameters, minimum API version)
//   - [Adapter]: rewrites a [Params] set for a profile and reports each change as
//     a [Note]; built once with the active API version
//   - [Execute]: sends an adjusted request and retries exactly once when the
//     provider rejects a parameter the profile did not know about
//   - [Completer] and [RateLimitedCompleter]: the provider seam plus TPM/RPM
//     throttling and 429 backoff
//   - [github.com/germanamz/relnotes/pkg/modeladapter/usage]: thread-safe token usage tracker
//
// This package contains no provider-specific code. Concrete completers live in
// separate packages that import modeladapter.
package modeladapter
