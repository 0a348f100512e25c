// Package search ranks notes for the search_notes tool. Candidate lists
// from several queries are merged with reciprocal rank fusion so that a
// note matching more than one query floats to the top.
package search

import (
	"context"
	"fmt"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/rs/zerolog"

	"github.com/ainotes/backend/internal/domain"
	"github.com/ainotes/backend/internal/store"
)

const (
	rrfK         = 60
	unionLimit   = 10
	mergedLimit  = 15
	snippetChars = 200
)

var querySep = regexp.MustCompile(`[,;\n]+`)

// Result is one ranked note.
type Result struct {
	ID      int64   `json:"id"`
	Title   string  `json:"title"`
	Snippet string  `json:"snippet"`
	Score   float64 `json:"-"`
}

// Searcher runs note lookups against the store.
type Searcher struct {
	store *store.SQLiteStore
	log   zerolog.Logger
}

func NewSearcher(st *store.SQLiteStore, log zerolog.Logger) *Searcher {
	return &Searcher{store: st, log: log.With().Str("component", "search").Logger()}
}

// NormalizeQueries flattens model output into a list of query strings.
// Accepts a string, a list, or nil; splits on commas, semicolons and
// newlines; drops blanks.
func NormalizeQueries(raw interface{}) []string {
	var out []string
	if raw == nil {
		return out
	}
	items, ok := raw.([]interface{})
	if !ok {
		items = []interface{}{raw}
	}
	for _, x := range items {
		if x == nil {
			continue
		}
		s := strings.TrimSpace(toString(x))
		if s == "" {
			continue
		}
		for _, p := range querySep.Split(s, -1) {
			if q := strings.TrimSpace(p); q != "" {
				out = append(out, q)
			}
		}
	}
	return out
}

func toString(v interface{}) string {
	switch t := v.(type) {
	case string:
		return t
	case float64:
		// whole numbers only; queries are never fractional
		return strconv.FormatFloat(t, 'f', -1, 64)
	default:
		return fmt.Sprintf("%v", t)
	}
}

// Search merges exact and semantic query lists with RRF. Semantic ranks
// are pushed down by ten positions per exact query so exact matches win
// ties. Returns at most fifteen results.
func (s *Searcher) Search(ctx context.Context, userID int64, exactQueries, semanticQueries []string) ([]Result, error) {
	seen := map[int64]*Result{}

	add := func(rank int, n domain.Note) {
		score := 1.0 / float64(rrfK+rank+1)
		r, ok := seen[n.ID]
		if !ok {
			r = &Result{ID: n.ID, Title: n.Title, Snippet: snippet(n.Content)}
			seen[n.ID] = r
		}
		r.Score += score
		if r.Title == "" && n.Title != "" {
			r.Title = n.Title
		}
		if r.Snippet == "" {
			r.Snippet = snippet(n.Content)
		}
	}

	if len(exactQueries) > 0 {
		hits, err := s.union(ctx, userID, exactQueries)
		if err != nil {
			s.log.Warn().Err(err).Strs("queries", exactQueries).Msg("exact search failed")
		} else {
			for rank, h := range hits {
				add(rank, h)
			}
		}
	}
	if len(semanticQueries) > 0 {
		hits, err := s.union(ctx, userID, semanticQueries)
		if err != nil {
			s.log.Warn().Err(err).Strs("queries", semanticQueries).Msg("semantic search failed")
		} else {
			offset := len(exactQueries) * 10
			for rank, h := range hits {
				add(rank+offset, h)
			}
		}
	}

	merged := make([]Result, 0, len(seen))
	for _, r := range seen {
		merged = append(merged, *r)
	}
	sort.Slice(merged, func(i, j int) bool {
		if merged[i].Score != merged[j].Score {
			return merged[i].Score > merged[j].Score
		}
		return merged[i].ID < merged[j].ID
	})
	if len(merged) > mergedLimit {
		merged = merged[:mergedLimit]
	}
	return merged, nil
}

// union runs one lookup per term and fuses the per-term rankings.
func (s *Searcher) union(ctx context.Context, userID int64, terms []string) ([]domain.Note, error) {
	type scored struct {
		hit   domain.Note
		score float64
	}
	byID := map[int64]*scored{}
	var firstErr error
	for _, term := range terms {
		hits, err := s.store.SearchNotes(ctx, userID, term, unionLimit)
		if err != nil {
			if firstErr == nil {
				firstErr = err
			}
			continue
		}
		for rank, h := range hits {
			sc, ok := byID[h.ID]
			if !ok {
				sc = &scored{hit: h}
				byID[h.ID] = sc
			}
			sc.score += 1.0 / float64(rrfK+rank+1)
		}
	}
	if len(byID) == 0 && firstErr != nil {
		return nil, firstErr
	}
	out := make([]scored, 0, len(byID))
	for _, sc := range byID {
		out = append(out, *sc)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].score != out[j].score {
			return out[i].score > out[j].score
		}
		return out[i].hit.ID < out[j].hit.ID
	})
	if len(out) > unionLimit {
		out = out[:unionLimit]
	}
	hits := make([]domain.Note, len(out))
	for i, sc := range out {
		hits[i] = sc.hit
	}
	return hits, nil
}

func snippet(content string) string {
	if content == "" {
		return ""
	}
	if runes := []rune(content); len(runes) > snippetChars {
		content = string(runes[:snippetChars])
	}
	return strings.ReplaceAll(content, "\n", " ")
}
