package cli

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"sync"

	"github.com/dmitrijs2005/insightlens/internal/client/config"
	"github.com/dmitrijs2005/insightlens/internal/client/search"
	"github.com/dmitrijs2005/insightlens/internal/client/session"
	"github.com/dmitrijs2005/insightlens/internal/logging"
)

type App struct {
	config     *config.Config
	log        logging.Logger
	session    *session.Manager
	search     *search.Orchestrator
	closeStore func() error
	reader     *bufio.Reader

	// outMu serializes output; search results are rendered from the
	// orchestrator's goroutine while the REPL is prompting.
	outMu    sync.Mutex
	out      io.Writer
	rendered search.State
}

// NewApp wires the client from configuration, reading commands from stdin.
func NewApp(ctx context.Context, c *config.Config, l logging.Logger) (*App, error) {
	return newApp(ctx, c, l, os.Stdin, os.Stdout)
}

func newApp(ctx context.Context, c *config.Config, l logging.Logger, in io.Reader, out io.Writer) (*App, error) {
	store, closeStore, err := openStore(ctx, c)
	if err != nil {
		l.Error(ctx, "error initializing credential store", "path", c.StorePath, "error", err)
		return nil, err
	}

	a := &App{
		config:     c,
		log:        l,
		closeStore: closeStore,
		reader:     bufio.NewReader(in),
		out:        out,
	}

	a.session = session.New(c.APIBaseURL, store,
		session.WithLogger(l),
		session.WithRefreshTimeout(c.RefreshTimeout),
		session.WithNavigator(session.NavigatorFunc(a.navigateToLogin)),
	)

	a.search = search.New(c.SearchURL, a.session.Client(),
		search.WithDebounce(c.DebounceInterval),
		search.WithTimeout(c.RequestTimeout),
		search.WithLogger(l),
		search.WithOnChange(a.render),
	)

	return a, nil
}

// Run restores the stored session and serves the REPL until the user exits.
func (a *App) Run(ctx context.Context) {
	defer a.Close(ctx)

	a.println("Welcome to insightlens (type 'help' for commands)")

	if a.session.Initialize(ctx) == session.StateAuthenticated {
		_, u := a.session.State()
		a.println("Restored session for", u.Username)
	}

	runREPL(ctx, a, a.getStatus, bufio.NewScanner(a.reader))
}

// Close stops pending searches and releases the credential store.
func (a *App) Close(ctx context.Context) {
	a.search.Close()
	if err := a.closeStore(); err != nil {
		a.log.Error(ctx, "error closing credential store", "error", err)
	}
}

func (a *App) isLoggedIn() bool {
	state, _ := a.session.State()
	return state == session.StateAuthenticated
}

func (a *App) getStatus() string {
	state, u := a.session.State()
	if u != nil {
		return fmt.Sprintf("(%s)", u.Username)
	}
	return fmt.Sprintf("(%s)", state)
}

func (a *App) navigateToLogin(context.Context) {
	a.println("Your session has expired. Please log in again.")
}

func (a *App) println(args ...any) {
	a.outMu.Lock()
	defer a.outMu.Unlock()
	fmt.Fprintln(a.out, args...)
}

func (a *App) printf(format string, args ...any) {
	a.outMu.Lock()
	defer a.outMu.Unlock()
	a.printfLocked(format, args...)
}

func (a *App) printfLocked(format string, args ...any) {
	fmt.Fprintf(a.out, format, args...)
}

func (a *App) printlnLocked(s string) {
	fmt.Fprintln(a.out, s)
}
