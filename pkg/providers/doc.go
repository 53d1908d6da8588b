// Package providers groups the concrete [github.com/germanamz/relnotes/pkg/modeladapter.Completer]
// implementations.
//
//   - [github.com/germanamz/relnotes/pkg/providers/openai]: Azure OpenAI and OpenAI chat completions
//
// Provider packages translate between modeladapter's parameter map and the
// vendor request, and classify vendor errors into the modeladapter error
// types so the adaptive retry can act on them.
package providers
