// Package orchestrator routes a query to one or more specialists and
// merges their answers into a single reply.
//
// A request flows through four stages:
//   - Classifier: one structured completion choosing specialist ids
//   - Dispatcher: one completion per chosen specialist, fanned out
//   - Synthesizer: one completion merging answers, only when there are several
//   - Shaper: length enforcement and attribution of the final text
//
// The conversation state is read and returned extended; persisting it is
// the caller's job.
//
// Example usage:
//
//	reg, _ := specialist.Builtin()
//	orch, err := orchestrator.New(orchestrator.Deps{Registry: reg, Completer: client}, orchestrator.DefaultConfig())
//	resp := orch.Respond(ctx, "Should I raise my prices?", conversation.NewState(id, conversation.ModeTurns))
package orchestrator
