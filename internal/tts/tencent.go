package tts

import (
	"context"
	"encoding/base64"
	"fmt"
	"strconv"

	tencenttts "github.com/tencentcloud/tencentcloud-sdk-go/tencentcloud/tts/v20190823"

	"github.com/tencentcloud/tencentcloud-sdk-go/tencentcloud/common"
	"github.com/tencentcloud/tencentcloud-sdk-go/tencentcloud/common/profile"

	"github.com/cadrianmae/gencast/internal/audio"
	"github.com/cadrianmae/gencast/internal/config"
	"github.com/cadrianmae/gencast/internal/logger"
)

// TencentEngine 使用腾讯云 TTS 实现语音合成。
// 适用于中国大陆网络环境，支持多种中文音色。
type TencentEngine struct {
	client    *tencenttts.Client
	voiceType int64
}

// NewTencentEngine 创建指定音色的腾讯云 TTS 引擎。
func NewTencentEngine(cfg config.TencentConfig, voiceType int64) (*TencentEngine, error) {
	if cfg.SecretID == "" || cfg.SecretKey == "" {
		return nil, fmt.Errorf("[tts] 腾讯云 TTS 需要 SecretID 和 SecretKey")
	}

	if voiceType == 0 {
		voiceType = 1001 // 默认音色：智瑜（女声）
	}
	region := cfg.Region
	if region == "" {
		region = "ap-guangzhou"
	}

	credential := common.NewCredential(cfg.SecretID, cfg.SecretKey)
	cpf := profile.NewClientProfile()
	cpf.HttpProfile.Endpoint = "tts.tencentcloudapi.com"

	client, err := tencenttts.NewClient(credential, region, cpf)
	if err != nil {
		return nil, fmt.Errorf("[tts] 创建腾讯云 TTS 客户端失败: %w", err)
	}

	logger.Debugf("[tts] 腾讯云 TTS 引擎已初始化 (voice=%d, region=%s)", voiceType, region)

	return &TencentEngine{
		client:    client,
		voiceType: voiceType,
	}, nil
}

// Name 返回含音色的引擎标识，作为合成缓存的命名空间。
func (e *TencentEngine) Name() string { return "tencent/" + strconv.FormatInt(e.voiceType, 10) }

// Synthesize 将文本合成为单声道 float32 音频样本。
// 腾讯云 TTS 返回 MP3 格式，需要解码为 PCM。
func (e *TencentEngine) Synthesize(ctx context.Context, text string) ([]float32, int, error) {
	logger.Debugf("[tts] 腾讯云 TTS: 正在合成 %d 个字符，音色=%d", len([]rune(text)), e.voiceType)

	request := tencenttts.NewTextToVoiceRequest()
	request.Text = common.StringPtr(text)
	request.VoiceType = common.Int64Ptr(e.voiceType)
	request.Codec = common.StringPtr("mp3")
	request.Speed = common.Float64Ptr(1.0)
	request.Volume = common.Float64Ptr(5.0)

	response, err := e.client.TextToVoice(request)
	if err != nil {
		return nil, 0, fmt.Errorf("[tts] 腾讯云 TTS 合成失败: %w", err)
	}

	if response.Response == nil || response.Response.Audio == nil {
		return nil, 0, fmt.Errorf("[tts] 腾讯云 TTS: 未返回音频数据")
	}

	// Base64 解码
	mp3Data, err := base64.StdEncoding.DecodeString(*response.Response.Audio)
	if err != nil {
		return nil, 0, fmt.Errorf("[tts] Base64 解码失败: %w", err)
	}

	logger.Debugf("[tts] 腾讯云 TTS: 收到 %d 字节 MP3 数据", len(mp3Data))

	samples, sampleRate, err := audio.DecodeMP3Mono(ctx, mp3Data)
	if err != nil {
		return nil, 0, err
	}

	logger.Debugf("[tts] 腾讯云 TTS: 生成 %d 个单声道 float32 样本，采样率 %d Hz", len(samples), sampleRate)

	return samples, sampleRate, nil
}
