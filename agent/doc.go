// Package agent implements the orchestration agent: the identity,
// iteration budget, lifecycle status, and per-turn loop shared by the
// root agent and every agent it delegates to or spawns for verification.
//
// State (state.go) holds an agent's identity, conversation history, action
// log, and lifecycle status, guarded by a single mutex so a running loop
// and a concurrent status query never race. Loop (loop.go) drives one
// Tick of that state: assemble a prompt, call the LLM, dispatch whatever
// tools it requested, and report back whether the caller should continue,
// wait on the mailbox, or stop. Lifecycle (lifecycle.go) defines the
// Status state machine both of them share.
package agent
