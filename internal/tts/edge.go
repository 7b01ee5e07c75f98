package tts

import (
	"bytes"
	"context"
	"fmt"

	"github.com/pp-group/edge-tts-go/biz/service/tts/edge"

	"github.com/cadrianmae/gencast/internal/audio"
	"github.com/cadrianmae/gencast/internal/logger"
)

// EdgeEngine 使用微软 Edge TTS 实现语音合成，
// 通过 edge-tts-go 获取 MP3 音频，再解码为单声道 PCM。
// 免费接口，无需 API Key。
type EdgeEngine struct {
	voice string
}

// NewEdgeEngine 创建指定语音的 Edge TTS 引擎。
func NewEdgeEngine(voice string) *EdgeEngine {
	return &EdgeEngine{voice: voice}
}

// Name 返回含音色的引擎标识，作为合成缓存的命名空间。
func (e *EdgeEngine) Name() string { return "edge/" + e.voice }

// Synthesize 将文本合成为单声道 float32 音频样本。
// 返回样本数据、采样率和错误。
func (e *EdgeEngine) Synthesize(ctx context.Context, text string) ([]float32, int, error) {
	logger.Debugf("[tts] edge-tts: 正在合成 %d 个字符，语音=%s", len([]rune(text)), e.voice)

	// 创建 Communicate 实例并通过 Stream() 获取 MP3 音频块
	comm, err := edge.NewCommunicate(text, edge.WithVoice(e.voice))
	if err != nil {
		return nil, 0, fmt.Errorf("[tts] edge-tts 创建实例失败: %w", err)
	}

	ch, err := comm.Stream()
	if err != nil {
		return nil, 0, fmt.Errorf("[tts] edge-tts 开始流式合成失败: %w", err)
	}

	// 从 channel 收集所有音频数据
	var mp3Buf bytes.Buffer
	for msg := range ch {
		select {
		case <-ctx.Done():
			return nil, 0, ctx.Err()
		default:
		}
		// Stream() 返回的 map 中，type=="audio" 的条目包含音频数据
		if msgType, ok := msg["type"].(string); ok && msgType == "audio" {
			if data, ok := msg["data"].([]byte); ok {
				mp3Buf.Write(data)
			}
		}
	}

	mp3Data := mp3Buf.Bytes()
	if len(mp3Data) == 0 {
		return nil, 0, fmt.Errorf("[tts] edge-tts: 未收到音频数据")
	}

	logger.Debugf("[tts] edge-tts: 收到 %d 字节 MP3 数据", len(mp3Data))

	samples, sampleRate, err := audio.DecodeMP3Mono(ctx, mp3Data)
	if err != nil {
		return nil, 0, err
	}

	logger.Debugf("[tts] edge-tts: 生成 %d 个单声道 float32 样本，采样率 %d Hz", len(samples), sampleRate)

	return samples, sampleRate, nil
}
