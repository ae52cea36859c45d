// Package cli provides the interactive insightlens terminal client.
//
// It wires configuration, the credential store, the session manager and the
// search orchestrator into a REPL. On start the stored session is restored;
// search results are rendered whenever the orchestrator state changes.
//
// Commands:
//   - register / login / logout / whoami / status
//   - search [query], results, expand <id>, clear, cancel
//
// The REPL is started via App.Run(ctx), which blocks until the user exits.
package cli
