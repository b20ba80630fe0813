package analysis

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	retryablehttp "github.com/hashicorp/go-retryablehttp"

	"github.com/sp1nlock/legwork/internal/utils"
)

const (
	defaultOllamaHost = "http://localhost:11434"
	defaultModel      = "llama3"
)

// Config controls how the analyzer behaves.
type Config struct {
	// Endpoint, when set, delegates the whole analysis to a remote
	// analyzer service. Empty means the local engine runs in-process.
	Endpoint string

	OllamaHost string
	Model      string
	APIMode    string // "ollama" (generate) or "openai" (chat)
	PromptFile string

	HTTPClient httpClient
	Timeout    time.Duration
}

type httpClient interface {
	Do(req *http.Request) (*http.Response, error)
}

// Analyzer runs analysis requests. Safe for concurrent use.
type Analyzer struct {
	endpoint   string
	ollamaHost string
	model      string
	apiMode    string
	promptFile string
	client     httpClient
}

func NewAnalyzer(cfg Config) *Analyzer {
	host := strings.TrimRight(strings.TrimSpace(cfg.OllamaHost), "/")
	if host == "" {
		host = defaultOllamaHost
	}
	model := strings.TrimSpace(cfg.Model)
	if model == "" {
		model = defaultModel
	}
	apiMode := strings.ToLower(strings.TrimSpace(cfg.APIMode))
	if apiMode != ModeOpenAI {
		apiMode = ModeOllama
	}
	client := cfg.HTTPClient
	if client == nil {
		rc := retryablehttp.NewClient()
		rc.RetryMax = 2
		rc.Logger = nil
		timeout := cfg.Timeout
		if timeout == 0 {
			timeout = 60 * time.Second
		}
		rc.HTTPClient.Timeout = timeout
		client = rc.StandardClient()
	}
	return &Analyzer{
		endpoint:   strings.TrimSpace(cfg.Endpoint),
		ollamaHost: host,
		model:      model,
		apiMode:    apiMode,
		promptFile: cfg.PromptFile,
		client:     client,
	}
}

// Analyze runs the request. With an endpoint configured it is a single
// remote call; otherwise the local engine computes the heuristic base and,
// when use_llm is set, layers the model summary on top. A failed model
// call never fails the whole analysis: it degrades to mode
// heuristic_fallback with llm_error set.
func (a *Analyzer) Analyze(ctx context.Context, req Request) (Report, error) {
	if a.endpoint != "" {
		return a.analyzeRemote(ctx, req)
	}

	deduped := DedupeProfiles(req.Profiles)
	base := Heuristic(deduped)
	if !req.UseLLM {
		return base, nil
	}

	model := req.LLMModel
	if model == "" {
		model = a.model
	}
	host := strings.TrimRight(req.OllamaHost, "/")
	if host == "" {
		host = a.ollamaHost
	}
	apiMode := strings.ToLower(req.APIMode)
	if apiMode == "" {
		apiMode = a.apiMode
	}

	prompt := buildPrompt(req, loadPrompt(req.Prompt, a.promptFile))
	summary, usedMode, err := a.callModel(ctx, host, model, apiMode, prompt)
	if err == nil {
		summary = strings.TrimSpace(summary)
		switch {
		case summary == "":
			err = errors.New("model returned an empty summary")
		case containsBannedMarker(summary):
			err = errors.New("model produced disallowed content (code/HTML)")
		}
		if err == nil {
			// The model summary supersedes heuristic traits/risks.
			base.Summary = summary
			base.Traits = nil
			base.Risks = nil
			base.Mode = usedMode
			base.LLMUsed = true
			base.LLMModel = model
			base.LLMError = ""
			return base, nil
		}
	}

	utils.Log.Warnf("model analysis failed, falling back to heuristic: %v", err)
	base.Mode = ModeHeuristicFallback
	base.LLMUsed = false
	base.LLMModel = model
	base.LLMError = err.Error()
	return base, nil
}

// callModel tries the preferred API shape first and falls back to the
// other one on 404, since Ollama hosts differ in which they expose.
func (a *Analyzer) callModel(ctx context.Context, host, model, apiMode, prompt string) (string, string, error) {
	if apiMode == ModeOpenAI {
		text, err := a.callChat(ctx, host, model, prompt)
		if err == nil {
			return text, ModeOpenAI, nil
		}
		if !isNotFound(err) {
			return "", "", err
		}
		text, err = a.callGenerate(ctx, host, model, prompt)
		return text, ModeOllama, err
	}

	text, err := a.callGenerate(ctx, host, model, prompt)
	if err == nil {
		return text, ModeOllama, nil
	}
	if !isNotFound(err) {
		return "", "", err
	}
	text, err = a.callChat(ctx, host, model, prompt)
	return text, ModeOpenAI, err
}

// statusError carries the HTTP status of a failed model call so the 404
// fallback can branch on it.
type statusError struct {
	status int
	body   string
}

func (e *statusError) Error() string {
	return fmt.Sprintf("model endpoint returned HTTP %d: %s", e.status, e.body)
}

func isNotFound(err error) bool {
	var se *statusError
	return errors.As(err, &se) && se.status == http.StatusNotFound
}

func (a *Analyzer) callGenerate(ctx context.Context, host, model, prompt string) (string, error) {
	payload := map[string]any{"model": model, "prompt": prompt, "stream": false}
	body, err := a.postJSON(ctx, host+"/api/generate", payload)
	if err != nil {
		return "", err
	}
	var resp struct {
		Response string `json:"response"`
		Data     string `json:"data"`
	}
	if err := json.Unmarshal(body, &resp); err != nil {
		return "", fmt.Errorf("decoding generate response: %w", err)
	}
	text := resp.Response
	if text == "" {
		text = resp.Data
	}
	if strings.TrimSpace(text) == "" {
		return "", errors.New("generate returned an empty response")
	}
	return text, nil
}

func (a *Analyzer) callChat(ctx context.Context, host, model, prompt string) (string, error) {
	payload := map[string]any{
		"model": model,
		"messages": []map[string]string{
			{"role": "system", "content": "You are a concise profile analyst."},
			{"role": "user", "content": prompt},
		},
		"temperature": 0.2,
	}
	body, err := a.postJSON(ctx, host+"/v1/chat/completions", payload)
	if err != nil {
		return "", err
	}
	var resp struct {
		Choices []struct {
			Message struct {
				Content string `json:"content"`
			} `json:"message"`
		} `json:"choices"`
	}
	if err := json.Unmarshal(body, &resp); err != nil {
		return "", fmt.Errorf("decoding chat response: %w", err)
	}
	if len(resp.Choices) == 0 || strings.TrimSpace(resp.Choices[0].Message.Content) == "" {
		return "", errors.New("chat returned an empty response")
	}
	return resp.Choices[0].Message.Content, nil
}

func (a *Analyzer) postJSON(ctx context.Context, url string, payload any) ([]byte, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := a.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	var buf bytes.Buffer
	if _, err := buf.ReadFrom(resp.Body); err != nil {
		return nil, err
	}
	if resp.StatusCode >= 300 {
		return nil, &statusError{status: resp.StatusCode, body: strings.TrimSpace(buf.String())}
	}
	return buf.Bytes(), nil
}

// analyzeRemote POSTs the request to the configured analyzer endpoint.
// Non-2xx responses carry {detail|error}; that text becomes the returned
// error so the caller can surface it verbatim.
func (a *Analyzer) analyzeRemote(ctx context.Context, req Request) (Report, error) {
	data, err := json.Marshal(req)
	if err != nil {
		return Report{}, err
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, a.endpoint, bytes.NewReader(data))
	if err != nil {
		return Report{}, err
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := a.client.Do(httpReq)
	if err != nil {
		return Report{}, fmt.Errorf("analysis request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		var apiErr struct {
			Detail string `json:"detail"`
			Error  string `json:"error"`
		}
		_ = json.NewDecoder(resp.Body).Decode(&apiErr)
		msg := apiErr.Detail
		if msg == "" {
			msg = apiErr.Error
		}
		if msg == "" {
			msg = fmt.Sprintf("analysis failed with HTTP %d", resp.StatusCode)
		}
		return Report{}, errors.New(msg)
	}

	var report Report
	if err := json.NewDecoder(resp.Body).Decode(&report); err != nil {
		return Report{}, fmt.Errorf("decoding analysis response: %w", err)
	}
	return report, nil
}
