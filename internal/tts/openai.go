package tts

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/cadrianmae/gencast/internal/audio"
	"github.com/cadrianmae/gencast/internal/config"
	"github.com/cadrianmae/gencast/internal/logger"
)

// OpenAIEngine 通过 OpenAI speech 接口实现语音合成。
// 接口返回 MP3 格式，解码为单声道 PCM。
type OpenAIEngine struct {
	apiURL     string
	apiKey     string
	model      string
	voice      string
	httpClient *http.Client
}

// NewOpenAIEngine 创建指定音色的 OpenAI TTS 引擎。
func NewOpenAIEngine(cfg config.OpenAIConfig, voice string) (*OpenAIEngine, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("[tts] OpenAI TTS 需要 API Key")
	}
	apiURL := cfg.APIURL
	if apiURL == "" {
		apiURL = "https://api.openai.com/v1"
	}
	model := cfg.Model
	if model == "" {
		model = "tts-1-hd"
	}

	return &OpenAIEngine{
		apiURL: apiURL,
		apiKey: cfg.APIKey,
		model:  model,
		voice:  voice,
		httpClient: &http.Client{
			Timeout: 120 * time.Second,
		},
	}, nil
}

// Name 返回含模型与音色的引擎标识，作为合成缓存的命名空间。
func (e *OpenAIEngine) Name() string { return "openai/" + e.model + "/" + e.voice }

// speechRequest 是发送到 speech 接口的 JSON 请求体。
type speechRequest struct {
	Model          string `json:"model"`
	Voice          string `json:"voice"`
	Input          string `json:"input"`
	ResponseFormat string `json:"response_format"`
}

// Synthesize 将文本合成为单声道 float32 音频样本。
// 返回样本数据、采样率和错误。
func (e *OpenAIEngine) Synthesize(ctx context.Context, text string) ([]float32, int, error) {
	logger.Debugf("[tts] openai: 正在合成 %d 个字符，音色=%s", len([]rune(text)), e.voice)

	reqBody := speechRequest{
		Model:          e.model,
		Voice:          e.voice,
		Input:          text,
		ResponseFormat: "mp3",
	}
	bodyBytes, err := json.Marshal(reqBody)
	if err != nil {
		return nil, 0, fmt.Errorf("[tts] 序列化请求体失败: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		e.apiURL+"/audio/speech", bytes.NewReader(bodyBytes))
	if err != nil {
		return nil, 0, fmt.Errorf("[tts] 创建请求失败: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+e.apiKey)

	resp, err := e.httpClient.Do(req)
	if err != nil {
		return nil, 0, fmt.Errorf("[tts] openai 请求失败: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return nil, 0, fmt.Errorf("[tts] openai 合成失败: %w",
			&HTTPError{StatusCode: resp.StatusCode, Body: string(body)})
	}

	mp3Data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, 0, fmt.Errorf("[tts] 读取响应失败: %w", err)
	}
	if len(mp3Data) == 0 {
		return nil, 0, fmt.Errorf("[tts] openai: 未收到音频数据")
	}

	logger.Debugf("[tts] openai: 收到 %d 字节 MP3 数据", len(mp3Data))

	samples, sampleRate, err := audio.DecodeMP3Mono(ctx, mp3Data)
	if err != nil {
		return nil, 0, err
	}

	logger.Debugf("[tts] openai: 生成 %d 个单声道 float32 样本，采样率 %d Hz", len(samples), sampleRate)

	return samples, sampleRate, nil
}
