package index

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/search/query"

	"github.com/tporcham/hermes/snomed"
)

// FuzzyMode mirrors terminology/bleve.go's snomed.SearchRequest_Fuzzy enum,
// generalized to package index's own request type rather than a protobuf
// message (spec.md §4.3's search modes).
type FuzzyMode int

const (
	FuzzyNever FuzzyMode = iota
	FuzzyFallback
	FuzzyAlways
)

// RankMode selects between C10's two scoring regimes (spec.md §4.3): an
// autocomplete mode that ANDs tokens and boosts short terms, and a ranked
// mode that ORs tokens and relies on bleve's native relevance score.
type RankMode int

const (
	RankAutocomplete RankMode = iota
	RankRanked
)

// Request describes a C10 search.
type Request struct {
	Text            string
	Mode            RankMode
	Fuzzy           FuzzyMode
	IsA             []int64 // restrict to descendants-or-self of these concepts
	ConceptRefsets  []int64
	IncludeInactive bool
	MaximumHits     int
}

// Result is one matching description, with its concept's preferred
// synonym resolved for the caller's locale priority (spec.md §4.3's result
// shape).
type Result struct {
	DescriptionID int64
	ConceptID     int64
	Term          string
	PreferredTerm string
}

// Search runs req against idx, grounded on terminology/bleve.go's token
// loop (per-token Match/Prefix/Fuzzy disjunction, fallback-fuzzy one-shot
// retry on zero hits), expanded to the richer C7 schema's "nterm" field and
// "length-boost" scoring, and to accept an arbitrary IS-A restriction set
// rather than the teacher's hardcoded root concept.
func Search(idx Searcher, req Request, localeRefsets []int64) ([]Result, error) {
	if req.Text == "" {
		return nil, fmt.Errorf("index: empty search text")
	}
	maxHits := req.MaximumHits
	if maxHits == 0 {
		maxHits = 100
	}

	tokens := strings.Fields(req.Text)
	tokenQueries := make([]query.Query, 0, len(tokens))
	for _, token := range tokens {
		tokenQueries = append(tokenQueries, tokenQuery(token, req.Fuzzy == FuzzyAlways))
	}

	var textQuery query.Query
	switch req.Mode {
	case RankAutocomplete:
		textQuery = QAnd(tokenQueries...)
	default:
		textQuery = QOr(tokenQueries...)
	}

	filters := []query.Query{textQuery}
	if !req.IncludeInactive {
		activeTerm := bleve.NewTermQuery("true")
		activeTerm.SetField("description-active")
		filters = append(filters, activeTerm)
	}
	if len(req.IsA) > 0 {
		isaQueries := make([]query.Query, len(req.IsA))
		for i, root := range req.IsA {
			isaQueries[i] = QDescendantOrSelfOf(snomed.IsA, root)
		}
		filters = append(filters, QOr(isaQueries...))
	}
	if len(req.ConceptRefsets) > 0 {
		refsetQueries := make([]query.Query, len(req.ConceptRefsets))
		for i, r := range req.ConceptRefsets {
			refsetQueries[i] = QMemberOf(r)
		}
		filters = append(filters, QOr(refsetQueries...))
	}

	q := QAnd(filters...)
	searchReq := bleve.NewSearchRequestOptions(q, maxHits, 0, false)
	searchReq.Fields = []string{"term", "description-id", "concept-id"}
	for _, refsetID := range localeRefsets {
		searchReq.Fields = append(searchReq.Fields, strconv.FormatInt(refsetID, 10))
	}
	if req.Mode == RankAutocomplete {
		searchReq.SortBy([]string{"-length-boost", "-_score"})
	}

	result, err := idx.Search(searchReq)
	if err != nil {
		return nil, err
	}

	results := make([]Result, 0, len(result.Hits))
	for _, hit := range result.Hits {
		r := Result{}
		if v, ok := hit.Fields["description-id"].(float64); ok {
			r.DescriptionID = int64(v)
		}
		if v, ok := hit.Fields["concept-id"].(float64); ok {
			r.ConceptID = int64(v)
		}
		if v, ok := hit.Fields["term"].(string); ok {
			r.Term = v
		}
		for _, refsetID := range localeRefsets {
			if v, ok := hit.Fields[strconv.FormatInt(refsetID, 10)].(string); ok && v != "" {
				r.PreferredTerm = v
				break
			}
		}
		if r.PreferredTerm == "" {
			r.PreferredTerm = r.Term
		}
		results = append(results, r)
	}

	if len(results) == 0 && req.Fuzzy == FuzzyFallback {
		retry := req
		retry.Fuzzy = FuzzyAlways
		return Search(idx, retry, localeRefsets)
	}
	return results, nil
}

func tokenQuery(token string, fuzzy bool) query.Query {
	match := bleve.NewMatchQuery(token)
	match.SetField("nterm")
	if len(token) < 3 {
		return match
	}
	qs := []query.Query{match}
	prefix := bleve.NewPrefixQuery(token)
	prefix.SetField("nterm")
	qs = append(qs, prefix)
	if fuzzy {
		fz := bleve.NewFuzzyQuery(token)
		fz.SetField("nterm")
		fz.SetFuzziness(2)
		qs = append(qs, fz)
	}
	return QOr(qs...)
}
