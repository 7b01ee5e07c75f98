// Package script 基于 LLM 把源文档转写成两人播客对话脚本。
package script

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"time"

	"github.com/cadrianmae/gencast/internal/config"
	"github.com/cadrianmae/gencast/internal/logger"
)

// Message 表示与 LLM 对话中的一条消息。
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Client 与 OpenAI 兼容的 chat completions 接口通信（非流式）。
type Client struct {
	apiURL     string
	apiKey     string
	model      string
	maxRetries int
	backoff    time.Duration
	httpClient *http.Client
}

// NewClient 创建 LLM 客户端。
func NewClient(cfg config.LLMConfig) (*Client, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("[script] 生成脚本需要 LLM API Key")
	}
	apiURL := cfg.APIURL
	if apiURL == "" {
		apiURL = "https://openrouter.ai/api/v1"
	}
	model := cfg.Model
	if model == "" {
		model = "anthropic/claude-sonnet-4-5"
	}
	timeout := cfg.TimeoutSec
	if timeout <= 0 {
		timeout = 120
	}
	maxRetries := cfg.MaxRetries
	if maxRetries < 0 {
		maxRetries = 0
	}

	return &Client{
		apiURL:     apiURL,
		apiKey:     cfg.APIKey,
		model:      model,
		maxRetries: maxRetries,
		backoff:    2 * time.Second,
		httpClient: &http.Client{
			Timeout: time.Duration(timeout) * time.Second,
		},
	}, nil
}

// Model 返回客户端使用的模型名。
func (c *Client) Model() string { return c.model }

// chatRequest 是发送到 chat completions 接口的 JSON 请求体。
type chatRequest struct {
	Model     string    `json:"model"`
	Messages  []Message `json:"messages"`
	MaxTokens int       `json:"max_tokens,omitempty"`
}

// chatResponse 是 chat completions 接口的 JSON 响应体。
type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

// Chat 发送对话消息并返回完整回复文本。
// 限流和服务端错误会在重试预算内退避重试。
func (c *Client) Chat(ctx context.Context, messages []Message, maxTokens int) (string, error) {
	backoff := c.backoff
	var lastErr error
	for attempt := 1; attempt <= c.maxRetries+1; attempt++ {
		content, err := c.request(ctx, messages, maxTokens)
		if err == nil {
			return content, nil
		}
		lastErr = err

		if ctx.Err() != nil {
			break
		}
		if attempt == c.maxRetries+1 || !transientChatError(err) {
			break
		}
		logger.Warnf("[script] LLM 第 %d 次请求失败，%v 后重试: %v", attempt, backoff, err)
		select {
		case <-time.After(backoff):
		case <-ctx.Done():
			return "", ctx.Err()
		}
		backoff *= 2
	}
	return "", fmt.Errorf("[script] LLM 请求失败: %w", lastErr)
}

func (c *Client) request(ctx context.Context, messages []Message, maxTokens int) (string, error) {
	reqBody := chatRequest{
		Model:     c.model,
		Messages:  messages,
		MaxTokens: maxTokens,
	}
	bodyBytes, err := json.Marshal(reqBody)
	if err != nil {
		return "", fmt.Errorf("序列化请求体失败: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		c.apiURL+"/chat/completions", bytes.NewReader(bodyBytes))
	if err != nil {
		return "", fmt.Errorf("创建请求失败: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("请求失败: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return "", &chatStatusError{code: resp.StatusCode, body: string(body)}
	}

	var parsed chatResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return "", fmt.Errorf("解析响应失败: %w", err)
	}
	if len(parsed.Choices) == 0 || parsed.Choices[0].Message.Content == "" {
		return "", fmt.Errorf("LLM 未返回内容")
	}
	return parsed.Choices[0].Message.Content, nil
}

// chatStatusError 记录 LLM 接口返回的非 200 状态码。
type chatStatusError struct {
	code int
	body string
}

func (e *chatStatusError) Error() string {
	return fmt.Sprintf("HTTP %d: %s", e.code, e.body)
}

// transientChatError 判断 LLM 请求错误是否值得重试。
func transientChatError(err error) bool {
	var se *chatStatusError
	if errors.As(err, &se) {
		return se.code == http.StatusRequestTimeout ||
			se.code == http.StatusTooManyRequests ||
			se.code >= 500
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}
	return errors.Is(err, context.DeadlineExceeded)
}
