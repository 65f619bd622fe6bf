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
	"sync"

	"github.com/pleasehq/please/pkg/logger"
	"github.com/pleasehq/please/pkg/networking"
)

// DefaultOllamaURL is where a local Ollama daemon listens.
const DefaultOllamaURL = "http://localhost:11434"

// ollamaProvider embeds via a locally running Ollama daemon. When nativeDim
// exceeds dim, the model is Matryoshka-trained and vectors are truncated and
// re-normalized to dim.
type ollamaProvider struct {
	tag       string
	model     string
	dim       int
	nativeDim int
	dtype     Dtype
	baseURL   string
	client    *http.Client

	initOnce sync.Once
	initErr  error
}

func newOllamaProvider(tag, model string, dim, nativeDim int, opts Options) (Provider, error) {
	if err := ValidateDtype(opts.Dtype); err != nil {
		return nil, err
	}
	baseURL := opts.BaseURL
	if baseURL == "" {
		baseURL = DefaultOllamaURL
	}
	client := opts.HTTPClient
	if client == nil {
		client = networking.NewHttpClient(0)
	}
	return &ollamaProvider{
		tag:       tag,
		model:     model,
		dim:       dim,
		nativeDim: nativeDim,
		dtype:     opts.Dtype,
		baseURL:   baseURL,
		client:    client,
	}, nil
}

func (p *ollamaProvider) Tag() string    { return p.tag }
func (p *ollamaProvider) Dimension() int { return p.dim }

// Initialize verifies the daemon is reachable by embedding a probe string,
// which also pulls the model into memory.
func (p *ollamaProvider) Initialize(ctx context.Context) error {
	p.initOnce.Do(func() {
		if p.dtype != "" && p.dtype != DtypeFP32 {
			logger.Debugf("Quantization hint %s for %s is handled by the model the daemon serves", p.dtype, p.model)
		}
		_, p.initErr = p.embedBatch(ctx, []string{"ping"})
		if p.initErr != nil {
			p.initErr = fmt.Errorf("ollama at %s is not serving %s: %w", p.baseURL, p.model, p.initErr)
		}
	})
	return p.initErr
}

func (p *ollamaProvider) Embed(ctx context.Context, text string) ([]float64, error) {
	vectors, err := p.EmbedBatch(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vectors[0], nil
}

func (p *ollamaProvider) EmbedBatch(ctx context.Context, texts []string) ([][]float64, error) {
	if len(texts) == 0 {
		return [][]float64{}, nil
	}
	return p.embedBatch(ctx, texts)
}

type ollamaEmbedRequest struct {
	Model string   `json:"model"`
	Input []string `json:"input"`
}

type ollamaEmbedResponse struct {
	Embeddings [][]float64 `json:"embeddings"`
}

func (p *ollamaProvider) embedBatch(ctx context.Context, texts []string) ([][]float64, error) {
	body, err := json.Marshal(ollamaEmbedRequest{Model: p.model, Input: texts})
	if err != nil {
		return nil, fmt.Errorf("failed to encode embed request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL+"/api/embed", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("embed request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		data, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, fmt.Errorf("ollama returned %d: %s", resp.StatusCode, string(data))
	}

	var parsed ollamaEmbedResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, fmt.Errorf("failed to decode embed response: %w", err)
	}
	if len(parsed.Embeddings) != len(texts) {
		return nil, fmt.Errorf("ollama returned %d embeddings for %d inputs", len(parsed.Embeddings), len(texts))
	}

	out := make([][]float64, len(parsed.Embeddings))
	for i, vector := range parsed.Embeddings {
		if len(vector) < p.dim {
			return nil, fmt.Errorf("model %s produced %d dimensions, need %d", p.model, len(vector), p.dim)
		}
		if p.nativeDim > p.dim {
			out[i] = TruncateNormalize(vector, p.dim)
			continue
		}
		Normalize(vector)
		out[i] = vector
	}
	return out, nil
}

func (*ollamaProvider) Dispose() error { return nil }
