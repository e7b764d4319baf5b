package services

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// RAGService answers semantic catalog queries: embed the query text, search
// the Pinecone product index, return matched robot IDs with scores.
type RAGService struct {
	llm       *LLMClient
	apiKey    string
	indexHost string
	client    *http.Client
}

// NewRAGService creates a new semantic search service
func NewRAGService(llm *LLMClient, apiKey, indexHost string) *RAGService {
	return &RAGService{
		llm:       llm,
		apiKey:    apiKey,
		indexHost: indexHost,
		client:    &http.Client{Timeout: 15 * time.Second},
	}
}

// Enabled reports whether Pinecone is configured.
func (s *RAGService) Enabled() bool {
	return s.apiKey != "" && s.indexHost != ""
}

// SearchMatch is one Pinecone hit mapped back to a catalog row ID.
type SearchMatch struct {
	RobotID string  `json:"robot_id"`
	Score   float64 `json:"score"`
}

type pineconeQueryRequest struct {
	Vector          []float32              `json:"vector"`
	TopK            int                    `json:"topK"`
	Filter          map[string]interface{} `json:"filter,omitempty"`
	IncludeMetadata bool                   `json:"includeMetadata"`
}

type pineconeQueryResponse struct {
	Matches []struct {
		ID       string                 `json:"id"`
		Score    float64                `json:"score"`
		Metadata map[string]interface{} `json:"metadata"`
	} `json:"matches"`
	Message string `json:"message"`
}

// Search embeds the query and runs a top-K vector search. Category and
// surface narrow the search through metadata filters when set.
func (s *RAGService) Search(ctx context.Context, query string, topK int, category, surface string) ([]SearchMatch, error) {
	if !s.Enabled() {
		return nil, fmt.Errorf("semantic search is not configured")
	}
	if topK <= 0 {
		topK = 5
	}

	vector, err := s.llm.Embed(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to embed query: %w", err)
	}

	queryReq := pineconeQueryRequest{
		Vector:          vector,
		TopK:            topK,
		IncludeMetadata: true,
	}

	filter := map[string]interface{}{}
	if category != "" {
		filter["category"] = map[string]interface{}{"$eq": category}
	}
	if surface != "" {
		filter["surfaces"] = map[string]interface{}{"$in": []string{surface}}
	}
	if len(filter) > 0 {
		queryReq.Filter = filter
	}

	reqBody, err := json.Marshal(queryReq)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal query: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, "POST", s.indexHost+"/query", bytes.NewBuffer(reqBody))
	if err != nil {
		return nil, fmt.Errorf("failed to create query request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Api-Key", s.apiKey)

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("vector query failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read query response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("vector index returned %d: %s", resp.StatusCode, string(body))
	}

	var queryResp pineconeQueryResponse
	if err := json.Unmarshal(body, &queryResp); err != nil {
		return nil, fmt.Errorf("failed to parse query response: %w", err)
	}

	matches := make([]SearchMatch, 0, len(queryResp.Matches))
	for _, m := range queryResp.Matches {
		robotID := m.ID
		// Vectors are keyed by robot ID at seed time; metadata wins if present
		if rid, ok := m.Metadata["robot_id"].(string); ok && rid != "" {
			robotID = rid
		}
		matches = append(matches, SearchMatch{RobotID: robotID, Score: m.Score})
	}
	return matches, nil
}
