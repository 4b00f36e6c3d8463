// Package extract recovers author names and email addresses from journal
// pages.
//
// A page is first decoded into a tagged intermediate form (see payload.go),
// then an ordered chain of typed attempts is run over it. Each attempt either
// matches and returns contacts, possibly none, or declines. The first match
// wins. Nothing in this package returns an error or panics on malformed
// input; a page that no attempt recognizes produces an empty result.
package extract
