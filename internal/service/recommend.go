package service

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/rajpalom13/move-meal-sub001/internal/domain"
)

// Ranker scores candidate clusters for a user. The core treats it as an
// opaque collaborator: any failure means the caller keeps its own ordering.
type Ranker interface {
	RankRides(ctx context.Context, userID string, candidates []domain.RideCluster) ([]domain.RideCluster, error)
}

// HTTPRanker calls the external recommendation service.
type HTTPRanker struct {
	url    string
	client *http.Client
}

func NewHTTPRanker(url string) *HTTPRanker {
	return &HTTPRanker{
		url:    url,
		client: &http.Client{Timeout: 2 * time.Second},
	}
}

type rankRequest struct {
	UserID     string   `json:"user_id"`
	Candidates []string `json:"candidates"`
}

type rankResponse struct {
	Ranked []string `json:"ranked"`
}

func (r *HTTPRanker) RankRides(ctx context.Context, userID string, candidates []domain.RideCluster) ([]domain.RideCluster, error) {
	ids := make([]string, len(candidates))
	byID := make(map[string]domain.RideCluster, len(candidates))
	for i, c := range candidates {
		ids[i] = c.ID
		byID[c.ID] = c
	}

	body, err := json.Marshal(rankRequest{UserID: userID, Candidates: ids})
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, r.url, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := r.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("ranker returned %d", resp.StatusCode)
	}

	var out rankResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, err
	}

	// Keep only ids we sent; anything the ranker dropped goes to the tail in
	// original (distance) order.
	ranked := make([]domain.RideCluster, 0, len(candidates))
	seen := make(map[string]bool, len(out.Ranked))
	for _, rid := range out.Ranked {
		if c, ok := byID[rid]; ok && !seen[rid] {
			ranked = append(ranked, c)
			seen[rid] = true
		}
	}
	for _, c := range candidates {
		if !seen[c.ID] {
			ranked = append(ranked, c)
		}
	}
	return ranked, nil
}
