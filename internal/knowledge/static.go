package knowledge

import (
	"context"
	"strings"
)

// StaticRetriever answers from a fixed keyword-matched fact table. It
// is the default when no knowledge base is configured, so local runs
// and tests work without AWS access.
type StaticRetriever struct {
	facts map[string]string
}

// NewStaticRetriever builds a retriever over the firm's standard facts.
func NewStaticRetriever() *StaticRetriever {
	return &StaticRetriever{facts: map[string]string{
		"hours":        "Our office hours are Monday-Friday 9am-6pm CST.",
		"address":      "We are located at 400 Main Street, Suite 300, Austin, TX 78701.",
		"location":     "We are located at 400 Main Street, Suite 300, Austin, TX 78701.",
		"consultation": "We offer a free 15-minute consultation via phone or Zoom.",
		"divorce":      "Our family law team handles divorce, custody, child support, and adoption. Rates are $300-$400/hour with a retainer of $2,500-$5,000.",
		"custody":      "Our family law team handles divorce, custody, child support, and adoption. Rates are $300-$400/hour with a retainer of $2,500-$5,000.",
		"injury":       "Personal injury cases are handled on a contingency fee of 33% of the settlement. No win, no fee.",
		"accident":     "Personal injury cases are handled on a contingency fee of 33% of the settlement. No win, no fee.",
		"dui":          "Criminal defense matters are billed as a flat fee or hourly depending on the case.",
		"criminal":     "Criminal defense matters are billed as a flat fee or hourly depending on the case.",
		"will":         "Estate planning packages, including wills and trusts, start at a flat fee of $800.",
		"estate":       "Estate planning packages, including wills and trusts, start at a flat fee of $800.",
		"price":        "Family law is $300-$400/hour. Personal injury is contingency at 33%. Criminal defense is flat fee or hourly. Estate planning starts at $800.",
		"cost":         "Family law is $300-$400/hour. Personal injury is contingency at 33%. Criminal defense is flat fee or hourly. Estate planning starts at $800.",
		"charge":       "Family law is $300-$400/hour. Personal injury is contingency at 33%. Criminal defense is flat fee or hourly. Estate planning starts at $800.",
	}}
}

// Retrieve implements Retriever via substring keyword matching.
func (r *StaticRetriever) Retrieve(ctx context.Context, query string) ([]string, error) {
	q := strings.ToLower(query)

	var passages []string
	seen := map[string]bool{}
	for keyword, fact := range r.facts {
		if !strings.Contains(q, keyword) || seen[fact] {
			continue
		}
		seen[fact] = true
		passages = append(passages, fact)
	}
	return passages, nil
}
