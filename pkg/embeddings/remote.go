// SPDX-FileCopyrightText: Copyright 2025 Please Authors
// SPDX-License-Identifier: Apache-2.0

package embeddings

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"sort"
	"time"

	"github.com/cenkalti/backoff/v5"

	"github.com/pleasehq/please/pkg/logger"
	"github.com/pleasehq/please/pkg/networking"
)

const remoteMaxTries = 3

// remoteProvider is the shared shape of the hosted embedding APIs: an
// OpenAI-style POST endpoint returning indexed embedding objects.
type remoteProvider struct {
	tag    string
	model  string
	dim    int
	url    string
	envKey string
	apiKey string
	client *http.Client

	// extra is merged into every request body, for provider-specific
	// parameters.
	extra map[string]any
}

func (p *remoteProvider) Tag() string    { return p.tag }
func (p *remoteProvider) Dimension() int { return p.dim }

// Initialize resolves the API key from the environment. Idempotent.
func (p *remoteProvider) Initialize(_ context.Context) error {
	if p.apiKey != "" {
		return nil
	}
	key := os.Getenv(p.envKey)
	if key == "" {
		return fmt.Errorf("%s is not set, required for provider %s", p.envKey, p.tag)
	}
	p.apiKey = key
	return nil
}

func (p *remoteProvider) Embed(ctx context.Context, text string) ([]float64, error) {
	vectors, err := p.EmbedBatch(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vectors[0], nil
}

type remoteEmbedding struct {
	Index     int       `json:"index"`
	Embedding []float64 `json:"embedding"`
}

type remoteEmbedResponse struct {
	Data []remoteEmbedding `json:"data"`
}

func (p *remoteProvider) EmbedBatch(ctx context.Context, texts []string) ([][]float64, error) {
	if len(texts) == 0 {
		return [][]float64{}, nil
	}
	if err := p.Initialize(ctx); err != nil {
		return nil, err
	}

	payload := map[string]any{"model": p.model, "input": texts}
	for k, v := range p.extra {
		payload[k] = v
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to encode embed request: %w", err)
	}

	expBackoff := backoff.NewExponentialBackOff()
	expBackoff.InitialInterval = 500 * time.Millisecond

	parsed, err := backoff.Retry(ctx, func() (*remoteEmbedResponse, error) {
		return p.post(ctx, body)
	},
		backoff.WithBackOff(expBackoff),
		backoff.WithMaxTries(remoteMaxTries),
		backoff.WithNotify(func(err error, duration time.Duration) {
			logger.Debugf("Retrying %s embed after %v: %v", p.tag, duration, err)
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("%s embed failed: %w", p.tag, err)
	}

	if len(parsed.Data) != len(texts) {
		return nil, fmt.Errorf("%s returned %d embeddings for %d inputs", p.tag, len(parsed.Data), len(texts))
	}
	sort.Slice(parsed.Data, func(i, j int) bool { return parsed.Data[i].Index < parsed.Data[j].Index })

	out := make([][]float64, len(parsed.Data))
	for i, item := range parsed.Data {
		if len(item.Embedding) != p.dim {
			return nil, fmt.Errorf("%s produced %d dimensions, expected %d", p.tag, len(item.Embedding), p.dim)
		}
		Normalize(item.Embedding)
		out[i] = item.Embedding
	}
	return out, nil
}

// post performs one attempt. Rate limiting and server errors are retryable;
// every other failure is permanent.
func (p *remoteProvider) post(ctx context.Context, body []byte) (*remoteEmbedResponse, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.url, bytes.NewReader(body))
	if err != nil {
		return nil, backoff.Permanent(err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+p.apiKey)

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500 {
		return nil, fmt.Errorf("%s returned %d", p.url, resp.StatusCode)
	}
	if resp.StatusCode != http.StatusOK {
		data, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, backoff.Permanent(fmt.Errorf("%s returned %d: %s", p.url, resp.StatusCode, string(data)))
	}

	var parsed remoteEmbedResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, backoff.Permanent(fmt.Errorf("failed to decode embed response: %w", err))
	}
	return &parsed, nil
}

func (*remoteProvider) Dispose() error { return nil }

func newOpenAIProvider(opts Options) (Provider, error) {
	url := opts.BaseURL
	if url == "" {
		url = "https://api.openai.com/v1/embeddings"
	}
	client := opts.HTTPClient
	if client == nil {
		client = networking.NewHttpClient(0)
	}
	return &remoteProvider{
		tag:    "openai:text-embedding-3-small",
		model:  "text-embedding-3-small",
		dim:    1536,
		url:    url,
		envKey: "OPENAI_API_KEY",
		client: client,
		extra:  map[string]any{"encoding_format": "float"},
	}, nil
}

func newVoyageProvider(opts Options) (Provider, error) {
	url := opts.BaseURL
	if url == "" {
		url = "https://api.voyageai.com/v1/embeddings"
	}
	client := opts.HTTPClient
	if client == nil {
		client = networking.NewHttpClient(0)
	}
	return &remoteProvider{
		tag:    "voyage:voyage-3-lite",
		model:  "voyage-3-lite",
		dim:    512,
		url:    url,
		envKey: "VOYAGE_API_KEY",
		client: client,
		extra:  map[string]any{"input_type": "document"},
	}, nil
}
