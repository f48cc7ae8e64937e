// Copyright 2025 KrakLabs
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published
// by the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU Affero General Public License for more details.
//
// You should have received a copy of the GNU Affero General Public License
// along with this program. If not, see <https://www.gnu.org/licenses/>.
//
// For commercial licensing, contact: licensing@kraklabs.com
//
// SPDX-License-Identifier: AGPL-3.0-or-later

package ingestion

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"math/rand/v2"
	"net/http"
	"os"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"log/slog"
)

// EmbeddingProvider generates embeddings for code text.
type EmbeddingProvider interface {
	// Embed returns a normalized vector (L2 norm = 1.0) for text, or an error.
	Embed(ctx context.Context, text string) ([]float32, error)
}

// MockEmbeddingProvider returns deterministic, non-semantic embeddings
// derived from a text hash - for tests and for running the pipeline without
// a real embedding backend configured.
type MockEmbeddingProvider struct {
	dimension int
	logger    *slog.Logger
}

func NewMockEmbeddingProvider(dimension int, logger *slog.Logger) *MockEmbeddingProvider {
	if logger == nil {
		logger = slog.Default()
	}
	return &MockEmbeddingProvider{dimension: dimension, logger: logger}
}

func (m *MockEmbeddingProvider) Embed(ctx context.Context, text string) ([]float32, error) {
	hash := fnv1aHash(text)

	embedding := make([]float32, m.dimension)
	for i := 0; i < m.dimension; i++ {
		val := float32((hash+uint64(i)*7919)%10000) / 10000.0
		embedding[i] = val*2.0 - 1.0
	}
	return normalizeEmbedding(embedding), nil
}

// fnv1aHash is a small non-cryptographic string hash (the djb2 scheme:
// seed 5381, hash*33 + c per rune, not FNV-1a despite the name), used only
// to seed MockEmbeddingProvider's fake vectors deterministically.
func fnv1aHash(s string) uint64 {
	var hash uint64 = 5381
	for _, c := range s {
		hash = ((hash << 5) + hash) + uint64(c)
	}
	return hash
}

// EmbeddingGenerator drives embedding generation for a batch of functions or
// types: worker-pool concurrency, per-item truncation, and classified
// retry with jittered backoff.
type EmbeddingGenerator struct {
	provider EmbeddingProvider
	workers  int
	logger   *slog.Logger
	retry    RetryConfig
}

func NewEmbeddingGenerator(provider EmbeddingProvider, workers int, logger *slog.Logger) *EmbeddingGenerator {
	if logger == nil {
		logger = slog.Default()
	}
	return &EmbeddingGenerator{
		provider: provider,
		workers:  workers,
		logger:   logger,
		retry:    RetryConfig{MaxRetries: 3, InitialBackoff: 200 * time.Millisecond, MaxBackoff: 2 * time.Second, Multiplier: 2.0},
	}
}

// SetRetryConfig overrides the default retry policy, clamping any zero or
// nonsensical field back to its default rather than letting it produce a
// busy loop.
func (eg *EmbeddingGenerator) SetRetryConfig(cfg RetryConfig) {
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = 3
	}
	if cfg.InitialBackoff <= 0 {
		cfg.InitialBackoff = 200 * time.Millisecond
	}
	if cfg.MaxBackoff <= 0 {
		cfg.MaxBackoff = 2 * time.Second
	}
	if cfg.Multiplier <= 1.0 {
		cfg.Multiplier = 2.0
	}
	eg.retry = cfg
}

type EmbedFunctionsResult struct {
	Functions      []FunctionEntity
	ErrorCount     int
	TruncatedCount int
}

// EmbedFunctions embeds a batch of functions, never failing the batch for a
// per-item embedding error: a failed function gets an empty Embedding and
// is counted in ErrorCount so the caller can report it.
func (eg *EmbeddingGenerator) EmbedFunctions(ctx context.Context, functions []FunctionEntity) (*EmbedFunctionsResult, error) {
	if len(functions) == 0 {
		return &EmbedFunctionsResult{Functions: functions}, nil
	}

	results, errCount, truncCount, err := embedBatch(ctx, functions, eg.workers, eg.embedFunction, func(fn *FunctionEntity, e []float32) { fn.Embedding = e })
	if err != nil {
		return nil, err
	}
	eg.logBatchSummary("embedding.summary", "total_functions", len(functions), errCount, truncCount)

	return &EmbedFunctionsResult{Functions: results, ErrorCount: errCount, TruncatedCount: truncCount}, nil
}

type EmbedTypesResult struct {
	Types          []TypeEntity
	ErrorCount     int
	TruncatedCount int
}

// EmbedTypes is EmbedFunctions' counterpart for TypeEntity.
func (eg *EmbeddingGenerator) EmbedTypes(ctx context.Context, types []TypeEntity) (*EmbedTypesResult, error) {
	if len(types) == 0 {
		return &EmbedTypesResult{Types: types}, nil
	}

	results, errCount, truncCount, err := embedBatch(ctx, types, eg.workers, eg.embedType, func(t *TypeEntity, e []float32) { t.Embedding = e })
	if err != nil {
		return nil, err
	}
	eg.logBatchSummary("embedding.types.summary", "total_types", len(types), errCount, truncCount)

	return &EmbedTypesResult{Types: results, ErrorCount: errCount, TruncatedCount: truncCount}, nil
}

func (eg *EmbeddingGenerator) logBatchSummary(event, totalField string, total, errCount, truncCount int) {
	if errCount == 0 && truncCount == 0 {
		return
	}
	fields := []any{totalField, total, "errors", errCount, "truncated", truncCount, "workers", eg.workers}
	if total > 0 {
		fields = append(fields, "error_rate_pct", float64(errCount)/float64(total)*100.0)
	}
	eg.logger.Info(event, fields...)
}

// embedBatch runs embedOne over items sequentially (workers <= 1) or across
// a bounded worker pool, collecting per-item error/truncation counts while
// preserving input order in the returned slice.
func embedBatch[T any](ctx context.Context, items []T, workers int, embedOne func(context.Context, T) ([]float32, bool, error), setEmbedding func(*T, []float32)) ([]T, int, int, error) {
	if workers <= 1 {
		return embedBatchSequential(ctx, items, embedOne, setEmbedding)
	}
	return embedBatchParallel(ctx, items, workers, embedOne, setEmbedding)
}

func embedBatchSequential[T any](ctx context.Context, items []T, embedOne func(context.Context, T) ([]float32, bool, error), setEmbedding func(*T, []float32)) ([]T, int, int, error) {
	results := make([]T, len(items))
	errorCount, truncatedCount := 0, 0

	for i, item := range items {
		select {
		case <-ctx.Done():
			return nil, 0, 0, ctx.Err()
		default:
		}

		embedding, wasTruncated, err := embedOne(ctx, item)
		if err != nil {
			errorCount++
		}
		if wasTruncated {
			truncatedCount++
		}
		setEmbedding(&item, embedding)
		results[i] = item
	}

	return results, errorCount, truncatedCount, nil
}

func embedBatchParallel[T any](ctx context.Context, items []T, workers int, embedOne func(context.Context, T) ([]float32, bool, error), setEmbedding func(*T, []float32)) ([]T, int, int, error) {
	results := make([]T, len(items))
	var errorCount, truncatedCount int32

	jobs := make(chan int, len(items))
	type resultMsg struct {
		index int
		item  T
	}
	resultsChan := make(chan resultMsg, len(items))

	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range jobs {
				select {
				case <-ctx.Done():
					return
				default:
				}

				item := items[i]
				embedding, wasTruncated, err := embedOne(ctx, item)
				if err != nil {
					atomic.AddInt32(&errorCount, 1)
				}
				if wasTruncated {
					atomic.AddInt32(&truncatedCount, 1)
				}
				setEmbedding(&item, embedding)
				resultsChan <- resultMsg{i, item}
			}
		}()
	}
	for i := range items {
		jobs <- i
	}
	close(jobs)
	go func() {
		wg.Wait()
		close(resultsChan)
	}()

	for r := range resultsChan {
		results[r.index] = r.item
	}

	return results, int(errorCount), int(truncatedCount), nil
}

// embedLogFields names the slog event keys a single-item embed retry/failure
// uses, since a function and a type log under different event names and ID
// field names.
type embedLogFields struct {
	retryEvent string
	failEvent  string
	idField    string
	nameField  string
}

var functionEmbedFields = embedLogFields{retryEvent: "embedding.retry", failEvent: "embedding.function.failed", idField: "function_id", nameField: "function_name"}
var typeEmbedFields = embedLogFields{retryEvent: "embedding.type.retry", failEvent: "embedding.type.failed", idField: "type_id", nameField: "type_name"}

// embedCodeText truncates text (code tokenizes poorly - special characters
// and operators cost multiple tokens, so 2000 chars is a conservative stand-in
// for an embedding model's token budget), then embeds it with classified
// retry and full-jitter backoff. A failure after all retries returns an
// empty embedding rather than propagating the error, so one bad item never
// fails the whole batch.
func (eg *EmbeddingGenerator) embedCodeText(ctx context.Context, text, id, name string, fields embedLogFields) ([]float32, bool, error) {
	maxChars := 2000
	wasTruncated := false
	if len(text) > maxChars {
		text = text[:maxChars]
		wasTruncated = true
	}

	var embedding []float32
	var err error
	for attempt := 0; attempt < eg.retry.MaxRetries; attempt++ {
		embedding, err = eg.provider.Embed(ctx, text)
		if err == nil {
			break
		}
		if !isRetryableEmbeddingError(err) || attempt == eg.retry.MaxRetries-1 {
			break
		}
		sleep := computeBackoffWithJitter(eg.retry.InitialBackoff, attempt, eg.retry.Multiplier, eg.retry.MaxBackoff)
		recordEmbedRetry()
		eg.logger.Warn(fields.retryEvent, fields.idField, id, "attempt", attempt+1, "sleep_ms", sleep.Milliseconds(), "err", err)
		select {
		case <-ctx.Done():
			return nil, wasTruncated, ctx.Err()
		case <-time.After(sleep):
		}
	}

	if err != nil {
		eg.logger.Error(fields.failEvent, fields.idField, id, fields.nameField, name, "code_text_len", len(text), "error", err)
		embedding = []float32{}
	}

	return embedding, wasTruncated, err
}

func (eg *EmbeddingGenerator) embedFunction(ctx context.Context, fn FunctionEntity) ([]float32, bool, error) {
	return eg.embedCodeText(ctx, fn.CodeText, fn.ID, fn.Name, functionEmbedFields)
}

func (eg *EmbeddingGenerator) embedType(ctx context.Context, t TypeEntity) ([]float32, bool, error) {
	return eg.embedCodeText(ctx, t.CodeText, t.ID, t.Name, typeEmbedFields)
}

// isRetryableEmbeddingError classifies a provider error by matching common
// transient substrings, since providers return errors as plain strings
// rather than typed sentinel errors.
func isRetryableEmbeddingError(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	for _, s := range []string{"timeout", "temporarily unavailable", "connection refused", "connection reset", "deadline exceeded", "EOF"} {
		if containsFold(msg, s) {
			return true
		}
	}
	for _, s := range []string{" 429 ", " 500 ", " 502 ", " 503 ", " 504 "} {
		if containsFold(msg, s) {
			return true
		}
	}
	return false
}

// computeBackoffWithJitter returns exponential backoff with full jitter:
// a uniform draw from [0, min(base*mult^attempt, capDur)].
func computeBackoffWithJitter(base time.Duration, attempt int, mult float64, capDur time.Duration) time.Duration {
	exp := float64(base)
	for i := 0; i < attempt; i++ {
		exp *= mult
	}
	d := time.Duration(exp)
	if d > capDur {
		d = capDur
	}
	if d <= 0 {
		return base
	}
	return time.Duration(rand.Int64N(int64(d) + 1))
}

func containsFold(s, substr string) bool {
	return strings.Contains(strings.ToLower(s), strings.ToLower(substr))
}

// CreateEmbeddingProvider builds the EmbeddingProvider named by
// providerType:
//   - "mock": deterministic, non-semantic embeddings (384 dimensions)
//   - "nomic": Nomic Atlas API (NOMIC_API_KEY required)
//   - "ollama"/"local_model": local Ollama server (default http://localhost:11434)
//   - "openai": OpenAI-compatible API (OPENAI_API_KEY required)
//   - "llamacpp"/"qodo": local llama.cpp server running an embedding model
func CreateEmbeddingProvider(providerType string, logger *slog.Logger) (EmbeddingProvider, error) {
	switch providerType {
	case "mock":
		return NewMockEmbeddingProvider(384, logger), nil

	case "nomic":
		apiKey := os.Getenv("NOMIC_API_KEY")
		if apiKey == "" {
			return nil, fmt.Errorf("NOMIC_API_KEY environment variable is required for nomic provider")
		}
		baseURL := envOr("NOMIC_API_BASE", "https://api-atlas.nomic.ai/v1")
		model := envOr("NOMIC_MODEL", "nomic-embed-text-v1.5")
		return NewNomicEmbeddingProvider(apiKey, baseURL, model, logger), nil

	case "ollama", "local_model":
		baseURL := envOr("OLLAMA_BASE_URL", "http://localhost:11434")
		model := envOr("OLLAMA_EMBED_MODEL", "nomic-embed-text")
		return NewOllamaEmbeddingProvider(baseURL, model, logger), nil

	case "openai":
		apiKey := os.Getenv("OPENAI_API_KEY")
		if apiKey == "" {
			return nil, fmt.Errorf("OPENAI_API_KEY environment variable is required for openai provider")
		}
		baseURL := envOr("OPENAI_API_BASE", "https://api.openai.com/v1")
		model := envOr("OPENAI_EMBED_MODEL", "text-embedding-3-small")
		return NewOpenAIEmbeddingProvider(apiKey, baseURL, model, logger), nil

	case "llamacpp", "qodo":
		// Qodo-Embed-1-1.5B, served via: llama-server --embedding -m Qodo-Embed-1-1.5B-Q8_0.gguf --port 8090
		baseURL := envOr("LLAMACPP_EMBED_URL", "http://localhost:8090")
		return NewLlamaCppEmbeddingProvider(baseURL, logger), nil

	default:
		return nil, fmt.Errorf("unknown embedding provider: %s (supported: mock, nomic, ollama, openai, llamacpp, qodo)", providerType)
	}
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

// postEmbedJSON marshals reqBody, POSTs it as JSON to url with headers
// merged in, and returns the raw response body and status code. connHint,
// when non-empty, is folded into the error for a connection failure (e.g.
// "is Ollama running at %s?") so a local-server provider gives an
// actionable message instead of a bare dial error.
func postEmbedJSON(ctx context.Context, client *http.Client, url string, headers map[string]string, reqBody any, connHint string) ([]byte, int, error) {
	jsonBody, err := json.Marshal(reqBody)
	if err != nil {
		return nil, 0, fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(jsonBody))
	if err != nil {
		return nil, 0, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := client.Do(req)
	if err != nil {
		if connHint != "" {
			return nil, 0, fmt.Errorf("http request (is %s?): %w", connHint, err)
		}
		return nil, 0, fmt.Errorf("http request: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, 0, fmt.Errorf("read response: %w", err)
	}
	return body, resp.StatusCode, nil
}

// NomicEmbeddingProvider generates embeddings via the Nomic Atlas API.
// https://docs.nomic.ai/reference/endpoints/nomic-embed-text
type NomicEmbeddingProvider struct {
	apiKey     string
	baseURL    string
	model      string
	httpClient *http.Client
	logger     *slog.Logger
}

type NomicEmbedRequest struct {
	Texts    []string `json:"texts"`
	Model    string   `json:"model"`
	TaskType string   `json:"task_type,omitempty"`
}

type NomicEmbedResponse struct {
	Embeddings [][]float64 `json:"embeddings"`
	Model      string      `json:"model"`
	Usage      struct {
		TotalTokens int `json:"total_tokens"`
	} `json:"usage"`
}

type NomicErrorResponse struct {
	Detail string `json:"detail"`
}

func NewNomicEmbeddingProvider(apiKey, baseURL, model string, logger *slog.Logger) *NomicEmbeddingProvider {
	if logger == nil {
		logger = slog.Default()
	}
	return &NomicEmbeddingProvider{
		apiKey:     apiKey,
		baseURL:    baseURL,
		model:      model,
		httpClient: &http.Client{Timeout: 60 * time.Second},
		logger:     logger,
	}
}

func (n *NomicEmbeddingProvider) Embed(ctx context.Context, text string) ([]float32, error) {
	reqBody := NomicEmbedRequest{Texts: []string{text}, Model: n.model, TaskType: "search_document"}
	headers := map[string]string{"Authorization": "Bearer " + n.apiKey}

	body, status, err := postEmbedJSON(ctx, n.httpClient, n.baseURL+"/embedding/text", headers, reqBody, "")
	if err != nil {
		return nil, err
	}
	if status != http.StatusOK {
		var errResp NomicErrorResponse
		if json.Unmarshal(body, &errResp) == nil && errResp.Detail != "" {
			return nil, fmt.Errorf("nomic API error (status %d): %s", status, errResp.Detail)
		}
		return nil, fmt.Errorf("nomic API error (status %d): %s", status, string(body))
	}

	var embedResp NomicEmbedResponse
	if err := json.Unmarshal(body, &embedResp); err != nil {
		return nil, fmt.Errorf("parse response: %w", err)
	}
	if len(embedResp.Embeddings) == 0 {
		return nil, fmt.Errorf("nomic returned empty embeddings")
	}

	return normalizeEmbedding(toFloat32(embedResp.Embeddings[0])), nil
}

// OllamaEmbeddingProvider generates embeddings via a local Ollama server,
// covering nomic-embed-text, mxbai-embed-large, all-minilm, and similar.
type OllamaEmbeddingProvider struct {
	baseURL    string
	model      string
	httpClient *http.Client
	logger     *slog.Logger
}

type OllamaEmbedRequest struct {
	Model  string `json:"model"`
	Prompt string `json:"prompt"`
}

type OllamaEmbedResponse struct {
	Embedding []float64 `json:"embedding"`
}

type OllamaErrorResponse struct {
	Error string `json:"error"`
}

// isNomicModel reports whether model supports the asymmetric
// search_document/search_query prefix convention.
func isNomicModel(model string) bool {
	return strings.Contains(strings.ToLower(model), "nomic")
}

// isQodoModel reports whether model is a Qodo-Embed model, which is trained
// on natural-language/code pairs directly and needs no prefix.
// See https://huggingface.co/Qodo/Qodo-Embed-1-1.5B
func isQodoModel(model string) bool {
	return strings.Contains(strings.ToLower(model), "qodo")
}

func NewOllamaEmbeddingProvider(baseURL, model string, logger *slog.Logger) *OllamaEmbeddingProvider {
	if logger == nil {
		logger = slog.Default()
	}
	return &OllamaEmbeddingProvider{
		baseURL:    baseURL,
		model:      model,
		httpClient: &http.Client{Timeout: 120 * time.Second},
		logger:     logger,
	}
}

func (o *OllamaEmbeddingProvider) Embed(ctx context.Context, text string) ([]float32, error) {
	prompt := text
	if isNomicModel(o.model) {
		// nomic-embed-text improves retrieval quality when documents carry
		// this prefix and queries carry "search_query:".
		prompt = "search_document: " + text
	}

	reqBody := OllamaEmbedRequest{Model: o.model, Prompt: prompt}
	body, status, err := postEmbedJSON(ctx, o.httpClient, o.baseURL+"/api/embeddings", nil, reqBody, fmt.Sprintf("Ollama running at %s", o.baseURL))
	if err != nil {
		return nil, err
	}
	if status != http.StatusOK {
		var errResp OllamaErrorResponse
		if json.Unmarshal(body, &errResp) == nil && errResp.Error != "" {
			return nil, fmt.Errorf("ollama API error (status %d): %s", status, errResp.Error)
		}
		return nil, fmt.Errorf("ollama API error (status %d): %s", status, string(body))
	}

	var embedResp OllamaEmbedResponse
	if err := json.Unmarshal(body, &embedResp); err != nil {
		return nil, fmt.Errorf("parse response: %w", err)
	}
	if len(embedResp.Embedding) == 0 {
		return nil, fmt.Errorf("ollama returned empty embedding")
	}

	return normalizeEmbedding(toFloat32(embedResp.Embedding)), nil
}

// OpenAIEmbeddingProvider generates embeddings via OpenAI or a compatible
// API (Azure OpenAI, Anyscale, Together AI, ...).
type OpenAIEmbeddingProvider struct {
	apiKey     string
	baseURL    string
	model      string
	httpClient *http.Client
	logger     *slog.Logger
}

type OpenAIEmbedRequest struct {
	Input          string `json:"input"`
	Model          string `json:"model"`
	EncodingFormat string `json:"encoding_format,omitempty"`
}

type OpenAIEmbedResponse struct {
	Object string `json:"object"`
	Data   []struct {
		Object    string    `json:"object"`
		Index     int       `json:"index"`
		Embedding []float64 `json:"embedding"`
	} `json:"data"`
	Model string `json:"model"`
	Usage struct {
		PromptTokens int `json:"prompt_tokens"`
		TotalTokens  int `json:"total_tokens"`
	} `json:"usage"`
}

type OpenAIErrorResponse struct {
	Error struct {
		Message string `json:"message"`
		Type    string `json:"type"`
		Code    string `json:"code"`
	} `json:"error"`
}

func NewOpenAIEmbeddingProvider(apiKey, baseURL, model string, logger *slog.Logger) *OpenAIEmbeddingProvider {
	if logger == nil {
		logger = slog.Default()
	}
	return &OpenAIEmbeddingProvider{
		apiKey:     apiKey,
		baseURL:    baseURL,
		model:      model,
		httpClient: &http.Client{Timeout: 60 * time.Second},
		logger:     logger,
	}
}

// Embed embeds text as-is: Qodo-Embed (gte-Qwen2-based) models expect
// documents unprefixed, with the asymmetric "Instruct:\nQuery:" wrapping
// applied only to queries at search time.
func (o *OpenAIEmbeddingProvider) Embed(ctx context.Context, text string) ([]float32, error) {
	reqBody := OpenAIEmbedRequest{Input: text, Model: o.model, EncodingFormat: "float"}
	headers := map[string]string{"Authorization": "Bearer " + o.apiKey}

	body, status, err := postEmbedJSON(ctx, o.httpClient, o.baseURL+"/embeddings", headers, reqBody, "")
	if err != nil {
		return nil, err
	}
	if status != http.StatusOK {
		var errResp OpenAIErrorResponse
		if json.Unmarshal(body, &errResp) == nil && errResp.Error.Message != "" {
			return nil, fmt.Errorf("openai API error (status %d): %s", status, errResp.Error.Message)
		}
		return nil, fmt.Errorf("openai API error (status %d): %s", status, string(body))
	}

	var embedResp OpenAIEmbedResponse
	if err := json.Unmarshal(body, &embedResp); err != nil {
		return nil, fmt.Errorf("parse response: %w", err)
	}
	if len(embedResp.Data) == 0 || len(embedResp.Data[0].Embedding) == 0 {
		return nil, fmt.Errorf("openai returned empty embedding")
	}

	return normalizeEmbedding(toFloat32(embedResp.Data[0].Embedding)), nil
}

// LlamaCppEmbeddingProvider generates embeddings via a llama.cpp server,
// sized for Qodo-Embed-1-1.5B's 1536-dimensional output. Start the server
// with: llama-server --embedding -m model.gguf --port 8090
type LlamaCppEmbeddingProvider struct {
	baseURL    string
	httpClient *http.Client
	logger     *slog.Logger
}

type LlamaCppEmbedRequest struct {
	Content string `json:"content"`
}

// LlamaCppEmbedResponse is one element of llama.cpp's response array; its
// Embedding field nests one more level than the other providers'.
type LlamaCppEmbedResponse struct {
	Index     int         `json:"index"`
	Embedding [][]float64 `json:"embedding"`
}

func NewLlamaCppEmbeddingProvider(baseURL string, logger *slog.Logger) *LlamaCppEmbeddingProvider {
	if logger == nil {
		logger = slog.Default()
	}
	return &LlamaCppEmbeddingProvider{
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: 120 * time.Second},
		logger:     logger,
	}
}

// Embed embeds text as-is: Qodo-Embed was trained directly on
// natural-language/code pairs and needs no prefix.
func (l *LlamaCppEmbeddingProvider) Embed(ctx context.Context, text string) ([]float32, error) {
	reqBody := LlamaCppEmbedRequest{Content: text}
	body, status, err := postEmbedJSON(ctx, l.httpClient, l.baseURL+"/embedding", nil, reqBody, fmt.Sprintf("llama-server running at %s", l.baseURL))
	if err != nil {
		return nil, err
	}
	if status != http.StatusOK {
		return nil, fmt.Errorf("llama.cpp API error (status %d): %s", status, string(body))
	}

	var embedResps []LlamaCppEmbedResponse
	if err := json.Unmarshal(body, &embedResps); err != nil {
		return nil, fmt.Errorf("parse response: %w", err)
	}
	if len(embedResps) == 0 || len(embedResps[0].Embedding) == 0 {
		return nil, fmt.Errorf("llama.cpp returned empty embedding")
	}
	vectors := embedResps[0].Embedding
	if len(vectors) == 0 || len(vectors[0]) == 0 {
		return nil, fmt.Errorf("llama.cpp returned empty embedding vector")
	}

	return normalizeEmbedding(toFloat32(vectors[0])), nil
}

func toFloat32(v []float64) []float32 {
	out := make([]float32, len(v))
	for i, x := range v {
		out[i] = float32(x)
	}
	return out
}

// normalizeEmbedding scales embedding to unit L2 norm in place, returning it
// unchanged if it's empty or already zero.
func normalizeEmbedding(embedding []float32) []float32 {
	if len(embedding) == 0 {
		return embedding
	}

	var norm float64
	for _, v := range embedding {
		norm += float64(v) * float64(v)
	}
	norm = math.Sqrt(norm)
	if norm == 0 {
		return embedding
	}

	normf := float32(norm)
	for i := range embedding {
		embedding[i] /= normf
	}
	return embedding
}
