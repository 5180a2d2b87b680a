package answer

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"regexp"
	"strings"
	"time"

	"pagerag/internal/domain"
)

var _ domain.Answerer = (*OpenAI)(nil)

const (
	DefaultBaseURL     = "https://api.openai.com/v1"
	DefaultModel       = "gpt-4o-mini"
	DefaultTemperature = 0.3
	DefaultTimeout     = 120 * time.Second
)

const systemPrompt = `You answer questions using only the numbered extracts you are given.
If the extracts do not contain the answer, say that you don't know.
Reply in exactly this form:
ANSWER: <the answer>
SOURCES: <comma-separated sources of the extracts you used>`

// OpenAIConfig configures the chat-completion answerer. APIKey is already
// resolved.
type OpenAIConfig struct {
	BaseURL     string
	APIKey      string
	Model       string
	Temperature float64
	Timeout     time.Duration
}

// OpenAI answers through an OpenAI-compatible /chat/completions endpoint.
type OpenAI struct {
	client      *http.Client
	baseURL     string
	apiKey      string
	model       string
	temperature float64
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	Temperature float64       `json:"temperature"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

func NewOpenAI(cfg OpenAIConfig) (*OpenAI, error) {
	if cfg.APIKey == "" {
		return nil, &domain.MissingCredentialError{Name: "answerer API key"}
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.Model == "" {
		cfg.Model = DefaultModel
	}
	if cfg.Temperature == 0 {
		cfg.Temperature = DefaultTemperature
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = DefaultTimeout
	}
	return &OpenAI{
		client:      &http.Client{Timeout: cfg.Timeout},
		baseURL:     strings.TrimRight(cfg.BaseURL, "/"),
		apiKey:      cfg.APIKey,
		model:       cfg.Model,
		temperature: cfg.Temperature,
	}, nil
}

// Answer asks the model to answer query from results and parses the reply.
// Cited sources that were not among the results are dropped.
func (o *OpenAI) Answer(ctx context.Context, query string, results []domain.SearchResult) (domain.Answer, error) {
	if len(results) == 0 {
		return domain.Answer{Text: NoAnswer}, nil
	}
	content, err := o.complete(ctx, []chatMessage{
		{Role: "system", Content: systemPrompt},
		{Role: "user", Content: BuildPrompt(query, results)},
	})
	if err != nil {
		return domain.Answer{}, err
	}
	return ParseReply(content, results), nil
}

func (o *OpenAI) complete(ctx context.Context, messages []chatMessage) (string, error) {
	body, err := json.Marshal(chatRequest{Model: o.model, Messages: messages, Temperature: o.temperature})
	if err != nil {
		return "", fmt.Errorf("marshal request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, o.baseURL+"/chat/completions", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+o.apiKey)

	resp, err := o.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("send request: %w", err)
	}
	defer resp.Body.Close()

	payload, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("read response: %w", err)
	}
	var out chatResponse
	if err := json.Unmarshal(payload, &out); err != nil {
		return "", fmt.Errorf("decode response (status %d): %w", resp.StatusCode, err)
	}
	if out.Error != nil {
		return "", fmt.Errorf("openai error: %s", out.Error.Message)
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("openai error (status %d): %s", resp.StatusCode, string(payload))
	}
	if len(out.Choices) == 0 {
		return "", fmt.Errorf("openai: no choices returned")
	}
	return out.Choices[0].Message.Content, nil
}

// BuildPrompt numbers each retrieved chunk and labels it with its source.
func BuildPrompt(query string, results []domain.SearchResult) string {
	var b strings.Builder
	b.WriteString("Extracts:\n")
	for i, r := range results {
		fmt.Fprintf(&b, "[%d] (source: %s)\n%s\n\n", i+1, r.Chunk.Source, r.Chunk.Text)
	}
	b.WriteString("Question: ")
	b.WriteString(query)
	return b.String()
}

var (
	answerMarker  = regexp.MustCompile(`(?i)(?:final\s+)?answer:`)
	sourcesMarker = regexp.MustCompile(`(?i)\bsources?:`)
)

// ParseReply splits a model reply into answer text and cited sources. A reply
// without a SOURCES section cites every retrieved source in rank order.
func ParseReply(reply string, results []domain.SearchResult) domain.Answer {
	text := reply
	var cited string
	hasSources := false
	if loc := sourcesMarker.FindAllStringIndex(reply, -1); len(loc) > 0 {
		last := loc[len(loc)-1]
		text, cited = reply[:last[0]], reply[last[1]:]
		hasSources = true
	}
	if loc := answerMarker.FindStringIndex(text); loc != nil {
		text = text[loc[1]:]
	}

	known := make(map[string]struct{}, len(results))
	for _, r := range results {
		known[r.Chunk.Source] = struct{}{}
	}

	ans := domain.Answer{Text: strings.TrimSpace(text)}
	if !hasSources {
		ans.Sources = RankedSources(results)
		return ans
	}
	seen := map[string]struct{}{}
	for _, s := range strings.FieldsFunc(cited, func(r rune) bool { return r == ',' || r == '\n' || r == ';' }) {
		s = strings.Trim(strings.TrimSpace(s), "-*[]")
		s = strings.TrimSpace(s)
		if _, ok := known[s]; !ok {
			continue
		}
		if _, dup := seen[s]; dup {
			continue
		}
		seen[s] = struct{}{}
		ans.Sources = append(ans.Sources, s)
	}
	return ans
}
