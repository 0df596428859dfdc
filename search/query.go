package search

import (
	"strconv"
	"strings"

	"github.com/google/uuid"
	"github.com/samber/lo"
)

const DefaultLimit = 10

// Query is a parsed search request. ChatID narrows the search to one
// conversation when set.
type Query struct {
	Terms  string
	ChatID *uuid.UUID
	Limit  int
}

// ParseQuery splits a raw command line into search terms and options.
// Tokens of the form --chat=<uuid> and --limit=<n> are options, the rest
// joins into the match terms.
func ParseQuery(raw string) (Query, error) {
	query := Query{Limit: DefaultLimit}
	var terms []string

	for _, token := range strings.Fields(raw) {
		switch {
		case strings.HasPrefix(token, "--chat="):
			chatID, err := uuid.Parse(strings.TrimPrefix(token, "--chat="))
			if err != nil {
				return Query{}, err
			}
			query.ChatID = lo.ToPtr(chatID)
		case strings.HasPrefix(token, "--limit="):
			limit, err := strconv.Atoi(strings.TrimPrefix(token, "--limit="))
			if err != nil {
				return Query{}, err
			}
			query.Limit = limit
		default:
			terms = append(terms, token)
		}
	}

	query.Terms = strings.Join(terms, " ")
	return query, nil
}
