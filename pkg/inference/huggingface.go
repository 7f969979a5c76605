// Package inference wraps the remote models used for enrichment: a text
// sentiment classifier and an audio tempo analyzer.
package inference

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// DefaultHFBaseURL is the hosted inference endpoint.
const DefaultHFBaseURL = "https://api-inference.huggingface.co/models"

// Prediction is one scored label.
type Prediction struct {
	Label string  `json:"label"`
	Score float64 `json:"score"`
}

// Classifier scores text with a hosted sequence classification model.
type Classifier struct {
	httpClient *http.Client
	baseURL    string
	model      string
	token      string
}

func NewClassifier(baseURL, model, token string) *Classifier {
	if baseURL == "" {
		baseURL = DefaultHFBaseURL
	}
	return &Classifier{
		httpClient: &http.Client{Timeout: 30 * time.Second},
		baseURL:    strings.TrimRight(baseURL, "/"),
		model:      model,
		token:      token,
	}
}

// Classify returns the highest scoring label and its score.
func (c *Classifier) Classify(ctx context.Context, text string) (string, float64, error) {
	payload, err := json.Marshal(map[string]any{
		"inputs":  text,
		"options": map[string]any{"wait_for_model": true},
	})
	if err != nil {
		return "", 0, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/"+c.model, bytes.NewReader(payload))
	if err != nil {
		return "", 0, err
	}
	req.Header.Set("Content-Type", "application/json")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", 0, err
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", 0, err
	}
	if resp.StatusCode != http.StatusOK {
		return "", 0, fmt.Errorf("classifier status %s: %s", resp.Status, strings.TrimSpace(string(body)))
	}

	preds, err := decodePredictions(body)
	if err != nil {
		return "", 0, err
	}
	best := preds[0]
	for _, p := range preds[1:] {
		if p.Score > best.Score {
			best = p
		}
	}
	return best.Label, best.Score, nil
}

// decodePredictions accepts both the nested [[...]] shape returned for a
// single input and a flat [...] list.
func decodePredictions(body []byte) ([]Prediction, error) {
	var nested [][]Prediction
	if err := json.Unmarshal(body, &nested); err == nil && len(nested) > 0 && len(nested[0]) > 0 {
		return nested[0], nil
	}
	var flat []Prediction
	if err := json.Unmarshal(body, &flat); err == nil && len(flat) > 0 {
		return flat, nil
	}
	return nil, errors.New("classifier returned no predictions")
}
