// Package search turns a stream of query edits into at most one outstanding
// request against the product search endpoint.
//
// PerformSearch commits a query and arms a debounce timer; only the query
// committed last is dispatched when the timer fires. Each dispatch cancels
// the previous request, and a response is applied only while its query is
// still the latest one, so results never regress to a superseded query.
// Failures are classified into Kind values carrying user-facing messages.
package search
