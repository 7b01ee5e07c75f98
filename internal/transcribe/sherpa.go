package transcribe

import (
	"context"
	"fmt"
	"strings"

	sherpa "github.com/k2-fsa/sherpa-onnx-go/sherpa_onnx"

	"github.com/cadrianmae/gencast/internal/audio"
	"github.com/cadrianmae/gencast/internal/config"
	"github.com/cadrianmae/gencast/internal/logger"
	"github.com/cadrianmae/gencast/internal/subtitle"
)

const (
	sherpaSampleRate = 16000
	sherpaFeedChunk  = 3200 // 每次送入 200ms
	sherpaTailPadMs  = 800  // 尾部补静音，促使最后一个端点触发
)

// SherpaTranscriber 使用 sherpa-onnx 流式识别器（Zipformer）在本地转写，
// 不依赖外部服务。通过端点检测把连续语音切成句子级文本块，
// 块的时间来自送入识别器的样本时钟。
type SherpaTranscriber struct {
	recognizer *sherpa.OnlineRecognizer
}

// NewSherpa 创建本地 sherpa-onnx 转写引擎。
func NewSherpa(cfg config.LocalASRConfig) (*SherpaTranscriber, error) {
	if cfg.Encoder == "" || cfg.Decoder == "" || cfg.Joiner == "" || cfg.Tokens == "" {
		return nil, fmt.Errorf("[transcribe] 本地转写需要 encoder/decoder/joiner/tokens 模型路径")
	}
	numThreads := cfg.NumThreads
	if numThreads <= 0 {
		numThreads = 2
	}

	conf := sherpa.OnlineRecognizerConfig{}
	conf.FeatConfig.SampleRate = sherpaSampleRate
	conf.FeatConfig.FeatureDim = 80
	conf.ModelConfig.Transducer.Encoder = cfg.Encoder
	conf.ModelConfig.Transducer.Decoder = cfg.Decoder
	conf.ModelConfig.Transducer.Joiner = cfg.Joiner
	conf.ModelConfig.Tokens = cfg.Tokens
	conf.ModelConfig.NumThreads = numThreads
	conf.ModelConfig.Provider = "cpu"
	conf.ModelConfig.ModelType = "zipformer"
	conf.DecodingMethod = "greedy_search"
	conf.EnableEndpoint = 1
	conf.Rule1MinTrailingSilence = 2.4
	conf.Rule2MinTrailingSilence = 1.2
	conf.Rule3MinUtteranceLength = 20.0

	recognizer := sherpa.NewOnlineRecognizer(&conf)
	if recognizer == nil {
		return nil, fmt.Errorf("[transcribe] 创建本地识别器失败，模型: %s", cfg.Encoder)
	}

	logger.Infof("[transcribe] 本地识别器已初始化 (threads=%d)", numThreads)

	return &SherpaTranscriber{recognizer: recognizer}, nil
}

// Name 返回引擎标识。
func (s *SherpaTranscriber) Name() string { return "local" }

// Transcribe 将母带样本送入识别器，按端点切出句子级文本块。
func (s *SherpaTranscriber) Transcribe(ctx context.Context, in Input) ([]subtitle.Cue, error) {
	m := in.Master
	if m == nil || len(m.Left) == 0 {
		return nil, fmt.Errorf("[transcribe] 本地转写需要内存样本")
	}

	// 双声道合并为单声道，再重采样到识别器要求的 16 kHz
	mono := audio.Downmix(m.Left, m.Right)
	samples := audio.Resample(mono, m.SampleRate, sherpaSampleRate)
	samples = append(samples, make([]float32, sherpaSampleRate*sherpaTailPadMs/1000)...)

	totalMs := m.DurationMs()

	stream := sherpa.NewOnlineStream(s.recognizer)
	if stream == nil {
		return nil, fmt.Errorf("[transcribe] 创建识别流失败")
	}
	defer func() {
		if stream != nil {
			sherpa.DeleteOnlineStream(stream)
		}
	}()

	var cues []subtitle.Cue
	blockStart := 0

	for pos := 0; pos < len(samples); pos += sherpaFeedChunk {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		end := pos + sherpaFeedChunk
		if end > len(samples) {
			end = len(samples)
		}
		stream.AcceptWaveform(sherpaSampleRate, samples[pos:end])
		for s.recognizer.IsReady(stream) {
			s.recognizer.Decode(stream)
		}

		if !s.recognizer.IsEndpoint(stream) {
			continue
		}

		endMs := end * 1000 / sherpaSampleRate
		if endMs > totalMs {
			endMs = totalMs
		}
		text := strings.TrimSpace(s.recognizer.GetResult(stream).Text)
		if text != "" && endMs > blockStart {
			cues = append(cues, subtitle.Cue{
				Index:   len(cues) + 1,
				StartMs: blockStart,
				EndMs:   endMs,
				Text:    text,
			})
		}
		blockStart = endMs

		// 销毁并重建流以清空内部 circular buffer
		sherpa.DeleteOnlineStream(stream)
		stream = sherpa.NewOnlineStream(s.recognizer)
		if stream == nil {
			return nil, fmt.Errorf("[transcribe] 重建识别流失败")
		}
	}

	// 收尾：取出最后一个端点之后的剩余文本
	for s.recognizer.IsReady(stream) {
		s.recognizer.Decode(stream)
	}
	if text := strings.TrimSpace(s.recognizer.GetResult(stream).Text); text != "" && totalMs > blockStart {
		cues = append(cues, subtitle.Cue{
			Index:   len(cues) + 1,
			StartMs: blockStart,
			EndMs:   totalMs,
			Text:    text,
		})
	}

	logger.Infof("[transcribe] 本地转写得到 %d 个文本块", len(cues))

	return cues, nil
}

// Close 释放底层 sherpa-onnx 资源。调用后不可再使用此引擎。
func (s *SherpaTranscriber) Close() {
	if s.recognizer != nil {
		sherpa.DeleteOnlineRecognizer(s.recognizer)
		s.recognizer = nil
	}
}
