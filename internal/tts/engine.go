// Package tts 提供多后端的语音合成引擎，将文本转换为单声道 PCM 样本。
package tts

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"

	"github.com/cadrianmae/gencast/internal/config"
)

// Engine 定义语音合成后端接口。
type Engine interface {
	// Name 返回引擎标识，用于日志和错误信息。
	Name() string
	// Synthesize 将文本转换为音频。
	// 返回单声道 float32 音频样本、采样率（Hz）和错误。
	Synthesize(ctx context.Context, text string) ([]float32, int, error)
}

// HTTPError 记录合成服务返回的非 200 状态码，供重试逻辑分类。
type HTTPError struct {
	StatusCode int
	Body       string
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("HTTP %d: %s", e.StatusCode, e.Body)
}

// Transient 判断合成错误是否为临时故障，值得重试。
// 限流（408/429）、服务端错误（5xx）和网络超时视为临时故障；
// 上下文取消和参数类错误不重试。
func Transient(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) {
		return false
	}
	var httpErr *HTTPError
	if errors.As(err, &httpErr) {
		return httpErr.StatusCode == http.StatusRequestTimeout ||
			httpErr.StatusCode == http.StatusTooManyRequests ||
			httpErr.StatusCode >= 500
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}
	return false
}

// NewEngines 根据配置为两位主持人分别创建 TTS 引擎。
func NewEngines(cfg config.TTSConfig) (host1, host2 Engine, err error) {
	switch cfg.Engine {
	case "openai":
		host1, err = NewOpenAIEngine(cfg.OpenAI, cfg.OpenAI.Host1Voice)
		if err != nil {
			return nil, nil, err
		}
		host2, err = NewOpenAIEngine(cfg.OpenAI, cfg.OpenAI.Host2Voice)
		if err != nil {
			return nil, nil, err
		}
		return host1, host2, nil
	case "edge":
		return NewEdgeEngine(cfg.Edge.Host1Voice), NewEdgeEngine(cfg.Edge.Host2Voice), nil
	case "tencent":
		host1, err = NewTencentEngine(cfg.Tencent, cfg.Tencent.Host1Voice)
		if err != nil {
			return nil, nil, err
		}
		host2, err = NewTencentEngine(cfg.Tencent, cfg.Tencent.Host2Voice)
		if err != nil {
			return nil, nil, err
		}
		return host1, host2, nil
	case "piper":
		host1, err = NewPiperEngine(cfg.Piper, cfg.Piper.Host1Model)
		if err != nil {
			return nil, nil, err
		}
		host2, err = NewPiperEngine(cfg.Piper, cfg.Piper.Host2Model)
		if err != nil {
			return nil, nil, err
		}
		return host1, host2, nil
	default:
		return nil, nil, fmt.Errorf("[tts] 未知的 TTS 引擎: %q（可选 openai/edge/tencent/piper）", cfg.Engine)
	}
}
