// Package prompts contains the LLM prompt templates used by aviary agents.
//
// Prompt text is Go code rather than config files because it is program logic:
// templates use fmt.Sprintf interpolation, benefit from compile-time embedding,
// and can be validated by tests. Simulation configuration lives in aviary.yaml;
// this package holds the instructions sent to models on every turn (persona
// system messages, environment observations, the JSON reply contract for
// models without native tool calling).
//
// Convention: each prompt category gets its own file (system.go,
// environment.go) with an exported function that accepts the dynamic parts
// and returns the fully interpolated prompt string.
package prompts
