package transcribe

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/cadrianmae/gencast/internal/config"
	"github.com/cadrianmae/gencast/internal/logger"
	"github.com/cadrianmae/gencast/internal/subtitle"
)

const whisperMaxAttempts = 3

// WhisperTranscriber 通过 OpenAI transcription 接口转写音频，
// 要求接口直接返回 SRT 格式的转写结果。
type WhisperTranscriber struct {
	apiURL     string
	apiKey     string
	model      string
	backoff    time.Duration
	httpClient *http.Client
}

// NewWhisper 创建 whisper 转写引擎。
func NewWhisper(cfg config.WhisperConfig) (*WhisperTranscriber, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("[transcribe] whisper 转写需要 API Key")
	}
	apiURL := cfg.APIURL
	if apiURL == "" {
		apiURL = "https://api.openai.com/v1"
	}
	model := cfg.Model
	if model == "" {
		model = "whisper-1"
	}
	timeout := cfg.TimeoutSec
	if timeout <= 0 {
		timeout = 300
	}

	return &WhisperTranscriber{
		apiURL:  apiURL,
		apiKey:  cfg.APIKey,
		model:   model,
		backoff: 2 * time.Second,
		httpClient: &http.Client{
			Timeout: time.Duration(timeout) * time.Second,
		},
	}, nil
}

// Name 返回引擎标识。
func (w *WhisperTranscriber) Name() string { return "whisper" }

// Transcribe 上传音频文件并把返回的 SRT 解析为文本块。
// 限流和服务端错误会在小的重试预算内退避重试。
func (w *WhisperTranscriber) Transcribe(ctx context.Context, in Input) ([]subtitle.Cue, error) {
	audioData, err := os.ReadFile(in.Path)
	if err != nil {
		return nil, fmt.Errorf("[transcribe] 读取音频文件失败: %w", err)
	}

	logger.Infof("[transcribe] whisper: 正在上传 %d 字节音频 (%s)", len(audioData), filepath.Base(in.Path))

	backoff := w.backoff
	var lastErr error
	for attempt := 1; attempt <= whisperMaxAttempts; attempt++ {
		srt, err := w.request(ctx, filepath.Base(in.Path), audioData)
		if err == nil {
			cues, err := subtitle.Parse(srt)
			if err != nil {
				return nil, fmt.Errorf("[transcribe] 解析转写结果失败: %w", err)
			}
			logger.Infof("[transcribe] whisper: 转写得到 %d 个文本块", len(cues))
			return cues, nil
		}
		lastErr = err

		if ctx.Err() != nil {
			break
		}
		if attempt == whisperMaxAttempts || !transient(err) {
			break
		}
		logger.Warnf("[transcribe] whisper 第 %d 次尝试失败，%v 后重试: %v", attempt, backoff, err)
		select {
		case <-time.After(backoff):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
		backoff *= 2
	}

	return nil, fmt.Errorf("[transcribe] whisper 转写失败: %w", lastErr)
}

// request 发起一次 multipart 上传，返回 SRT 文本。
func (w *WhisperTranscriber) request(ctx context.Context, filename string, audioData []byte) (string, error) {
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	fw, err := mw.CreateFormFile("file", filename)
	if err != nil {
		return "", fmt.Errorf("构建上传表单失败: %w", err)
	}
	if _, err := fw.Write(audioData); err != nil {
		return "", fmt.Errorf("写入上传表单失败: %w", err)
	}
	_ = mw.WriteField("model", w.model)
	_ = mw.WriteField("response_format", "srt")
	if err := mw.Close(); err != nil {
		return "", fmt.Errorf("封闭上传表单失败: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		w.apiURL+"/audio/transcriptions", &buf)
	if err != nil {
		return "", fmt.Errorf("创建请求失败: %w", err)
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())
	req.Header.Set("Authorization", "Bearer "+w.apiKey)

	resp, err := w.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("请求失败: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return "", &statusError{code: resp.StatusCode, body: string(body)}
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("读取响应失败: %w", err)
	}
	return string(body), nil
}

// statusError 记录转写服务返回的非 200 状态码。
type statusError struct {
	code int
	body string
}

func (e *statusError) Error() string {
	return fmt.Sprintf("HTTP %d: %s", e.code, e.body)
}

// transient 判断转写错误是否值得重试。
func transient(err error) bool {
	var se *statusError
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
