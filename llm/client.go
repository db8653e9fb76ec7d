package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// ClientConfig configures a Client's vendor transport. The wire shape is a
// generic OpenAI-compatible chat completion request/response, matching the
// teacher's stdlib-first transport style: no vendor SDK is pulled in for
// what is, underneath, one JSON POST.
type ClientConfig struct {
	Endpoint   string
	APIKey     string
	Model      string
	HTTPClient *http.Client
}

// Client is the single LLM transport a scan's agents share. Every
// completion passes through RequestQueue's one slot before reaching the
// vendor endpoint, and its token usage is folded into tracker under the
// caller-supplied slot name.
type Client struct {
	cfg     ClientConfig
	queue   *RequestQueue
	tracker TokenTracker
}

// NewClient constructs a Client with a fresh request queue.
func NewClient(cfg ClientConfig, tracker TokenTracker) *Client {
	if cfg.HTTPClient == nil {
		cfg.HTTPClient = &http.Client{Timeout: 120 * time.Second}
	}
	return &Client{cfg: cfg, queue: NewRequestQueue(), tracker: tracker}
}

type wireRequest struct {
	Model       string    `json:"model"`
	Messages    []wireMsg `json:"messages"`
	Temperature *float64  `json:"temperature,omitempty"`
	MaxTokens   *int      `json:"max_tokens,omitempty"`
	TopP        *float64  `json:"top_p,omitempty"`
	Stop        []string  `json:"stop,omitempty"`
	Tools       []ToolDef `json:"tools,omitempty"`
}

type wireMsg struct {
	Role            string `json:"role"`
	Content         string `json:"content"`
	Name            string `json:"name,omitempty"`
	CacheBreakpoint bool   `json:"cache_breakpoint,omitempty"`
}

type wireResponse struct {
	Content      string     `json:"content"`
	ToolCalls    []ToolCall `json:"tool_calls"`
	FinishReason string     `json:"finish_reason"`
	Usage        TokenUsage `json:"usage"`
}

// Complete assembles prompt into a vendor request gated by the process-wide
// request slot, folds the reply's usage into slot's tracker bucket, and
// returns it as an assistant Message ready for State.AddMessage.
func (c *Client) Complete(ctx context.Context, slot string, prompt AssembledPrompt, opts ...CompletionOption) (Message, error) {
	release, err := c.queue.Acquire(ctx)
	if err != nil {
		return Message{}, NewRequestFailedError(FailureTimeout, "request queue wait cancelled: "+err.Error(), 0)
	}
	defer release()

	req := NewCompletionRequest(messagesFromPrompt(prompt), opts...)
	req.Stop = append(req.Stop, StopSequences()...)
	if len(prompt.Tools) > 0 {
		req.Tools = prompt.Tools
	}

	resp, err := c.send(ctx, req)
	if err != nil {
		return Message{}, err
	}
	if c.tracker != nil {
		c.tracker.Add(slot, resp.Usage)
	}

	return Message{
		Role:      RoleAssistant,
		Content:   resp.Content,
		ToolCalls: resp.ToolCalls,
	}, nil
}

func messagesFromPrompt(p AssembledPrompt) []Message {
	out := make([]Message, 0, len(p.Messages)+1)
	if p.System != "" {
		out = append(out, Message{Role: RoleSystem, Content: p.System, CacheBreakpoint: true})
	}
	out = append(out, p.Messages...)
	return out
}

func (c *Client) send(ctx context.Context, req *CompletionRequest) (*CompletionResponse, error) {
	wire := wireRequest{
		Model:       c.cfg.Model,
		Temperature: req.Temperature,
		MaxTokens:   req.MaxTokens,
		TopP:        req.TopP,
		Stop:        req.Stop,
		Tools:       req.Tools,
	}
	for _, m := range req.Messages {
		wire.Messages = append(wire.Messages, wireMsg{
			Role: string(m.Role), Content: m.Content, Name: m.Name, CacheBreakpoint: m.CacheBreakpoint,
		})
	}

	body, err := json.Marshal(wire)
	if err != nil {
		return nil, fmt.Errorf("llm: marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.Endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("llm: build request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if c.cfg.APIKey != "" {
		httpReq.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)
	}

	httpResp, err := c.cfg.HTTPClient.Do(httpReq)
	if err != nil {
		return nil, NewRequestFailedError(FailureConnection, err.Error(), 0)
	}
	defer httpResp.Body.Close()

	respBody, err := io.ReadAll(httpResp.Body)
	if err != nil {
		return nil, NewRequestFailedError(FailureConnection, "read response body: "+err.Error(), httpResp.StatusCode)
	}

	if httpResp.StatusCode != http.StatusOK {
		kind := ClassifyHTTPStatus(httpResp.StatusCode)
		return nil, NewRequestFailedError(kind, truncateBody(respBody, 500), httpResp.StatusCode)
	}

	var wireResp wireResponse
	if err := json.Unmarshal(respBody, &wireResp); err != nil {
		return nil, NewRequestFailedError(FailureOther, "decode response: "+err.Error(), httpResp.StatusCode)
	}

	return &CompletionResponse{
		Content:      TruncateAtStopSequence(wireResp.Content),
		ToolCalls:    wireResp.ToolCalls,
		FinishReason: wireResp.FinishReason,
		Usage:        wireResp.Usage,
	}, nil
}

func truncateBody(b []byte, n int) string {
	if len(b) <= n {
		return string(b)
	}
	return string(b[:n]) + "... [truncated]"
}
