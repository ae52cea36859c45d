package cli

import (
	"bufio"
	"context"
	"fmt"
	"strings"
)

// printlnFn is a test seam for user-facing output. In tests, replace it with a stub.
var printlnFn = fmt.Println

// execIface defines the minimal command surface the REPL needs to operate.
// The real App type satisfies this interface; tests can provide a lightweight stub.
type execIface interface {
	isLoggedIn() bool
	Register(ctx context.Context) error
	Login(ctx context.Context) error
	Logout(ctx context.Context) error
	WhoAmI(ctx context.Context) error
	Status(ctx context.Context) error
	Type(ctx context.Context, text string) error
	Search(ctx context.Context, query string) error
	Results(ctx context.Context) error
	Expand(ctx context.Context, id string) error
	Clear(ctx context.Context) error
	Cancel(ctx context.Context) error
}

// runREPL starts a simple read-eval-print loop for the insightlens CLI.
//
// It reads a line from the provided scanner, parses the first token as the
// command, and dispatches to methods on 'a'. The rest of the line is the
// command argument. The loop exits on scanner EOF or when the user types
// "exit" or "quit".
//
//	Always available:
//	  - help          show available commands
//	  - type <text>   edit the query without searching
//	  - search [text] search for text, or for the typed query
//	  - results       show the current results
//	  - expand <id>   show or hide all reviews of a result
//	  - clear         clear results
//	  - cancel        abandon the running search
//	  - status        show session and token state
//	  - exit | quit   leave the program
//
//	Not logged in: register, login
//	Logged in:     whoami, logout
//
// Errors returned by command handlers are ignored here; handlers report
// their own failures.
func runREPL(ctx context.Context, a execIface, statusFn func() string, scanner *bufio.Scanner) {
	for {
		printlnFn(fmt.Sprintf("insightlens %s > ", statusFn()))
		if !scanner.Scan() {
			return
		}
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		cmd, arg, _ := strings.Cut(line, " ")
		arg = strings.TrimSpace(arg)

		switch cmd {
		case "help":
			if a.isLoggedIn() {
				printlnFn("Available commands: (s)earch, type, (r)esults, expand, clear, cancel, whoami, status, logout, exit")
			} else {
				printlnFn("Available commands: (s)earch, type, (r)esults, expand, clear, cancel, register, login, status, exit")
			}

		case "register":
			_ = a.Register(ctx)

		case "login":
			_ = a.Login(ctx)

		case "logout":
			_ = a.Logout(ctx)

		case "whoami":
			_ = a.WhoAmI(ctx)

		case "status":
			_ = a.Status(ctx)

		case "type":
			_ = a.Type(ctx, arg)

		case "s", "search":
			_ = a.Search(ctx, arg)

		case "r", "results":
			_ = a.Results(ctx)

		case "expand":
			if arg == "" {
				printlnFn("Usage: expand <id>")
				continue
			}
			_ = a.Expand(ctx, arg)

		case "clear":
			_ = a.Clear(ctx)

		case "cancel":
			_ = a.Cancel(ctx)

		case "exit", "quit":
			printlnFn("Bye!")
			return

		default:
			printlnFn("Unknown command:", cmd)
		}
	}
}
