package search

import (
	"context"
	"fmt"

	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/search/query"
)

// DefaultChapterLimit caps chapter search results when the caller does not.
const DefaultChapterLimit = 20

// Search finds chapters of one book whose name or content match q,
// best match first. A blank query returns no hits.
func (s *ChapterIndex) Search(ctx context.Context, bookID, q string, limit int) ([]ChapterHit, error) {
	if q == "" {
		return []ChapterHit{}, nil
	}
	if limit <= 0 {
		limit = DefaultChapterLimit
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	req := bleve.NewSearchRequestOptions(buildChapterQuery(bookID, q), limit, 0, false)
	req.SortBy([]string{"-_score", "number"})
	req.Fields = []string{"name", "number", "permalink"}

	res, err := s.index.SearchInContext(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("execute search: %w", err)
	}

	hits := make([]ChapterHit, 0, len(res.Hits))
	for _, hit := range res.Hits {
		h := ChapterHit{ID: hit.ID, Score: hit.Score}
		if n, ok := hit.Fields["name"].(string); ok {
			h.Name = n
		}
		if n, ok := hit.Fields["number"].(float64); ok {
			h.Number = int(n)
		}
		if p, ok := hit.Fields["permalink"].(string); ok {
			h.Permalink = p
		}
		hits = append(hits, h)
	}
	return hits, nil
}

// buildChapterQuery matches q against name (boosted) and content, restricted to bookID.
func buildChapterQuery(bookID, q string) query.Query {
	nameMatch := bleve.NewMatchQuery(q)
	nameMatch.SetField("name")
	nameMatch.SetBoost(2.0)

	contentMatch := bleve.NewMatchQuery(q)
	contentMatch.SetField("content")

	text := bleve.NewDisjunctionQuery(nameMatch, contentMatch)

	book := bleve.NewTermQuery(bookID)
	book.SetField("book_id")

	return bleve.NewConjunctionQuery(text, book)
}
