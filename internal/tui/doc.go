// Package tui provides the terminal chat interface for soloagency.
//
// The chat opens with the greeting, sends each submitted line through a
// Sender and shows the reply under the name of the specialist it is
// attributed to. While a reply is pending the input is disabled and the
// footer shows which specialists are being consulted.
//
// Usage:
//
//	program, app := tui.NewChatProgram(send, greeting)
//	// forward pipeline events to the footer
//	onEvent := func(e orchestrator.Event) { program.Send(tui.PipelineEventMsg{Event: e}) }
//	_, err := program.Run()
package tui
