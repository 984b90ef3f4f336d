// Package orchestrator drives one content run from product input to
// content package.
//
// A run moves through eight stages in order: duplicate check, planning,
// parallel generation, image generation, editorial pass, guardrail
// validation, persistence and an optional publish hook. The two fan-out
// stages are joined before the next stage starts, so the editor always
// sees the complete set of surviving artifacts. Per-artifact failures are
// recorded as diagnostics on the package; only a missing brief, a blocked
// duplicate, an unreachable store at the duplicate check, or a run left
// with no artifacts fails the run.
package orchestrator
