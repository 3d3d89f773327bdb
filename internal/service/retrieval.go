package service

import (
	"context"
	"regexp"
	"strings"

	"github.com/cloo-solutions/leadline/internal/domain"
	"github.com/cloo-solutions/leadline/internal/embedding"
	"github.com/cloo-solutions/leadline/internal/telemetry"
)

// DefaultRetrievalLimit caps how many chunks feed a single prompt.
const DefaultRetrievalLimit = 5

// RetrievedChunk is one knowledge chunk selected for a query.
type RetrievedChunk struct {
	ID      string
	Content string
	Score   float64
}

// SimilaritySearcher ranks chunks against a query by embedding similarity.
type SimilaritySearcher interface {
	FindSimilar(ctx context.Context, query string, chunks []domain.KnowledgeChunk, limit int) []embedding.ScoredChunk
}

// RetrievalService selects the tenant's knowledge chunks most relevant to a
// query. Vector similarity is primary; a keyword match over ready chunks is
// the fallback when no embedded candidates score.
type RetrievalService struct {
	chunkRepo KnowledgeChunkRepositoryInterface
	searcher  SimilaritySearcher
}

func NewRetrievalService(chunkRepo KnowledgeChunkRepositoryInterface, searcher SimilaritySearcher) *RetrievalService {
	return &RetrievalService{
		chunkRepo: chunkRepo,
		searcher:  searcher,
	}
}

func (s *RetrievalService) Retrieve(ctx context.Context, tenantID, query string, limit int) ([]RetrievedChunk, error) {
	ctx, span := telemetry.StartSpan(ctx, "RetrievalService.Retrieve", telemetry.SpanAttributes{
		TenantID:  tenantID,
		Operation: "retrieve",
	})
	defer span.End()

	if limit <= 0 {
		limit = DefaultRetrievalLimit
	}

	embedded, err := s.chunkRepo.ListEmbedded(ctx, tenantID)
	if err != nil {
		span.SetError(err)
		return nil, err
	}

	candidates := make([]domain.KnowledgeChunk, 0, len(embedded))
	for _, c := range embedded {
		candidates = append(candidates, *c)
	}

	scored := s.searcher.FindSimilar(ctx, query, candidates, limit)
	if len(scored) > 0 {
		results := make([]RetrievedChunk, 0, len(scored))
		for _, sc := range scored {
			results = append(results, RetrievedChunk{ID: sc.ID, Content: sc.Content, Score: sc.Similarity})
		}
		return results, nil
	}

	return s.keywordFallback(ctx, tenantID, query, limit)
}

// keywordFallback matches query keywords as substrings of chunk content and
// takes the first limit matches in repository order, without ranking.
func (s *RetrievalService) keywordFallback(ctx context.Context, tenantID, query string, limit int) ([]RetrievedChunk, error) {
	keywords := extractKeywords(query)
	if len(keywords) == 0 {
		return nil, nil
	}

	chunks, err := s.chunkRepo.ListReady(ctx, tenantID)
	if err != nil {
		return nil, err
	}

	var results []RetrievedChunk
	for _, c := range chunks {
		if len(results) == limit {
			break
		}
		content := strings.ToLower(c.Content)
		for _, kw := range keywords {
			if strings.Contains(content, kw) {
				results = append(results, RetrievedChunk{ID: c.ID, Content: c.Content})
				break
			}
		}
	}
	return results, nil
}

var keywordSplitRe = regexp.MustCompile(`\W+`)

var stopWords = map[string]struct{}{
	"the": {}, "and": {}, "for": {}, "are": {}, "but": {}, "not": {},
	"you": {}, "all": {}, "can": {}, "had": {}, "her": {}, "was": {},
	"one": {}, "our": {}, "out": {}, "has": {}, "have": {}, "what": {},
	"when": {}, "where": {}, "which": {}, "with": {}, "your": {},
	"how": {}, "who": {}, "why": {}, "does": {}, "this": {}, "that": {},
}

func extractKeywords(query string) []string {
	var keywords []string
	for _, tok := range keywordSplitRe.Split(strings.ToLower(query), -1) {
		if len(tok) <= 2 {
			continue
		}
		if _, stop := stopWords[tok]; stop {
			continue
		}
		keywords = append(keywords, tok)
	}
	return keywords
}
