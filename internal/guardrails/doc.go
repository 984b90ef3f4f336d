// Package guardrails checks generated artifacts against brand and style
// rules.
//
// Checks are deterministic given an artifact and a StyleGuide. Any violation
// rejects the artifact; nothing is rewritten. The rule set covers banned hype
// phrases, prohibited claims, required disclosures, per-platform length
// limits, creator tone (line count, emoji count, developer jargon) and leaked
// credentials.
//
// The style guide is loaded from TOML and can be hot-reloaded with Watcher.
package guardrails
