package cli

import (
	"context"
	"strings"

	"github.com/dmitrijs2005/insightlens/internal/client/search"
	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
)

// Search commits query, or the text typed so far when query is empty.
// Results are rendered once the orchestrator settles.
func (a *App) Search(_ context.Context, query string) error {
	if query == "" {
		query = a.search.State().RawQuery
	}
	a.search.PerformSearch(query)
	return nil
}

// Type records query text without searching.
func (a *App) Type(_ context.Context, text string) error {
	a.search.SetQuery(text)
	return nil
}

func (a *App) Results(context.Context) error {
	a.renderResults(a.search.State())
	return nil
}

// Expand toggles the full review list of a result.
func (a *App) Expand(_ context.Context, id string) error {
	st := a.search.State()
	for _, r := range st.Results {
		if r.ID == id {
			a.search.ToggleReviewExpansion(id)
			return nil
		}
	}
	a.println("No result with id", id)
	return nil
}

func (a *App) Clear(context.Context) error {
	a.search.ClearResults()
	return nil
}

func (a *App) Cancel(context.Context) error {
	a.search.Cancel()
	return nil
}

// render is the orchestrator's change callback. Edits of the typed text
// alone are not rendered.
func (a *App) render(st search.State) {
	a.outMu.Lock()
	typing := st.RawQuery != a.rendered.RawQuery &&
		cmp.Equal(a.rendered, st, cmpopts.IgnoreFields(search.State{}, "RawQuery"))
	a.rendered = st
	a.outMu.Unlock()
	if typing {
		return
	}

	switch st.Phase {
	case search.PhasePending:
		a.printf("Searching for %q...\n", st.CommittedQuery)
	case search.PhaseFailed:
		a.println("Error:", st.Err)
	case search.PhaseSucceeded:
		a.renderResults(st)
	}
}

func (a *App) renderResults(st search.State) {
	a.outMu.Lock()
	defer a.outMu.Unlock()

	if len(st.Results) == 0 {
		if st.Phase == search.PhaseFailed && st.Err != nil {
			a.printlnLocked("Error: "+st.Err.Error())
		} else {
			a.printlnLocked("No results.")
		}
		return
	}

	a.printfLocked("Found %d product(s) for %q:\n", len(st.Results), st.CommittedQuery)
	for _, r := range st.Results {
		a.printfLocked("[%s] %s", r.ID, r.ProductName)
		if r.Price != nil {
			a.printfLocked("  $%.2f", *r.Price)
		}
		a.printlnLocked("")

		if r.Summary != "" {
			a.printlnLocked("    Summary: "+r.Summary)
		}
		if len(r.ExtractedAspects) > 0 {
			a.printlnLocked("    Aspects: "+strings.Join(r.ExtractedAspects, ", "))
		}

		visible := search.Visible(r, st.Expanded[r.ID])
		if len(visible) == 0 {
			continue
		}
		if len(visible) < len(r.Reviews) {
			a.printfLocked("    Reviews (%d of %d, 'expand %s' for all):\n", len(visible), len(r.Reviews), r.ID)
		} else {
			a.printlnLocked("    Reviews:")
		}
		for _, review := range visible {
			a.printlnLocked("      - "+review)
		}
	}
}
