// Package knowledge answers questions about the firm by querying a
// retrieval service. Retrieval failures never reach the caller as
// errors; they degrade to a message directing the caller to phone the
// office.
package knowledge

import (
	"context"
	"strings"
)

// Retriever looks up firm information relevant to a caller's query.
type Retriever interface {
	// Retrieve returns relevant passages for the query, best first.
	// An empty slice means nothing relevant was found.
	Retrieve(ctx context.Context, query string) ([]string, error)
}

// NoResultsReply is returned when retrieval succeeds but finds
// nothing relevant.
const NoResultsReply = "I don't have specific information about that. " +
	"Let me connect you with one of our attorneys."

// UnavailableReply is the safe degraded answer when the retrieval
// service fails.
const UnavailableReply = "I'm unable to retrieve that information right now. " +
	"Please call us directly at (312) 555-0100."

// Answer runs a query through the retriever and formats a
// caller-facing answer, absorbing retrieval failures.
func Answer(ctx context.Context, r Retriever, query string) string {
	passages, err := r.Retrieve(ctx, query)
	if err != nil {
		return UnavailableReply
	}
	if len(passages) == 0 {
		return NoResultsReply
	}
	return "Based on our firm information:\n\n" + strings.Join(passages, "\n\n")
}
