// Package agents implements the generation agents of a content run.
//
// Each agent is a named capability declared once in a static Registry: what
// it produces, which tools it may call and which collections it reads for
// grounding. Agents call a Completer and parse its JSON answer into a typed
// artifact. An answer that fails its contract is retried once with a
// corrective instruction before ErrStructuralOutput is returned.
//
// The Completer is pluggable: LangChainCompleter talks to OpenAI, Anthropic
// or Ollama through langchaingo, and ScriptedCompleter produces deterministic
// offline answers for demos and tests.
package agents
