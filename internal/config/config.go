package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// Config 是 gencast 的顶层配置结构。
type Config struct {
	LLM        LLMConfig        `yaml:"llm"`
	TTS        TTSConfig        `yaml:"tts"`
	Spatial    SpatialConfig    `yaml:"spatial"`
	Pacing     PacingConfig     `yaml:"pacing"`
	Transcribe TranscribeConfig `yaml:"transcribe"`
	Subtitle   SubtitleConfig   `yaml:"subtitle"`
	Output     OutputConfig     `yaml:"output"`
	Storage    StorageConfig    `yaml:"storage"`
	Log        LogConfig        `yaml:"log"`

	// Warnings 收集加载阶段被钳制的越界配置项说明，
	// 由调用方在 logger 初始化后统一输出。
	Warnings []string `yaml:"-"`
}

// LLMConfig 稿件生成所用的大模型配置。
type LLMConfig struct {
	APIURL     string `yaml:"api_url"`
	APIKey     string `yaml:"api_key"`
	Model      string `yaml:"model"`
	TimeoutSec int    `yaml:"timeout_sec"`
	MaxRetries int    `yaml:"max_retries"`
}

// TTSConfig 语音合成配置。
type TTSConfig struct {
	Engine      string        `yaml:"engine"` // openai, edge, tencent, piper
	TimeoutSec  int           `yaml:"timeout_sec"`
	MaxRetries  int           `yaml:"max_retries"`
	Concurrency int           `yaml:"concurrency"`
	CacheMB     int64         `yaml:"cache_mb"` // 合成缓存上限，0 表示关闭
	OpenAI      OpenAIConfig  `yaml:"openai"`
	Edge        EdgeConfig    `yaml:"edge"`
	Tencent     TencentConfig `yaml:"tencent"`
	Piper       PiperConfig   `yaml:"piper"`
}

// OpenAIConfig OpenAI TTS 配置。
type OpenAIConfig struct {
	APIURL     string `yaml:"api_url"`
	APIKey     string `yaml:"api_key"`
	Model      string `yaml:"model"`
	Host1Voice string `yaml:"host1_voice"`
	Host2Voice string `yaml:"host2_voice"`
}

// EdgeConfig Edge TTS 配置。
type EdgeConfig struct {
	Host1Voice string `yaml:"host1_voice"`
	Host2Voice string `yaml:"host2_voice"`
}

// TencentConfig 腾讯云 TTS 配置。
type TencentConfig struct {
	SecretID   string `yaml:"secret_id"`
	SecretKey  string `yaml:"secret_key"`
	Region     string `yaml:"region"`
	Host1Voice int64  `yaml:"host1_voice"`
	Host2Voice int64  `yaml:"host2_voice"`
}

// PiperConfig 本地 piper 引擎配置，模型文件决定音色。
type PiperConfig struct {
	Binary     string `yaml:"binary"`
	Host1Model string `yaml:"host1_model"`
	Host2Model string `yaml:"host2_model"`
}

// SpatialConfig 空间混音配置。
// host1_pan / host2_pan 同时为 0 时按 separation 推导：
// HOST1 在左（-separation），HOST2 在右（+separation）。
type SpatialConfig struct {
	Separation float64 `yaml:"separation"`
	Host1Pan   float64 `yaml:"host1_pan"`
	Host2Pan   float64 `yaml:"host2_pan"`
}

// PacingConfig 分段间停顿配置。
type PacingConfig struct {
	GapMs int `yaml:"gap_ms"`
}

// TranscribeConfig 字幕转写配置。
type TranscribeConfig struct {
	Engine  string         `yaml:"engine"` // whisper, local, off
	Whisper WhisperConfig  `yaml:"whisper"`
	Local   LocalASRConfig `yaml:"local"`
}

// WhisperConfig OpenAI Whisper 转写配置。
type WhisperConfig struct {
	APIURL     string `yaml:"api_url"`
	APIKey     string `yaml:"api_key"`
	Model      string `yaml:"model"`
	TimeoutSec int    `yaml:"timeout_sec"`
}

// LocalASRConfig 本地 sherpa-onnx 转写配置。
type LocalASRConfig struct {
	Encoder    string `yaml:"encoder"`
	Decoder    string `yaml:"decoder"`
	Joiner     string `yaml:"joiner"`
	Tokens     string `yaml:"tokens"`
	NumThreads int    `yaml:"num_threads"`
}

// SubtitleConfig 字幕切分与翻译配置。
type SubtitleConfig struct {
	MinCueMs    int             `yaml:"min_cue_ms"`
	MaxCueMs    int             `yaml:"max_cue_ms"`
	MaxCueChars int             `yaml:"max_cue_chars"`
	Translate   TranslateConfig `yaml:"translate"`
}

// TranslateConfig 字幕机器翻译配置（腾讯云 TMT）。
type TranslateConfig struct {
	Target    string `yaml:"target"`
	SecretID  string `yaml:"secret_id"`
	SecretKey string `yaml:"secret_key"`
	Region    string `yaml:"region"`
}

// OutputConfig 成品输出配置。
type OutputConfig struct {
	BitrateKbps int    `yaml:"bitrate_kbps"`
	Artist      string `yaml:"artist"`
	Album       string `yaml:"album"`
	Genre       string `yaml:"genre"`
}

// StorageConfig 本地数据目录配置。
type StorageConfig struct {
	DataDir string `yaml:"data_dir"`
}

// LogConfig 日志配置。
type LogConfig struct {
	Level string `yaml:"level"`
	File  string `yaml:"file"`
}

// Load 读取 YAML 配置文件并返回 Config。
// 支持 ${VAR_NAME} 形式的环境变量展开。
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("读取配置文件 %s 失败: %w", path, err)
	}

	// 展开环境变量，如 ${OPENAI_API_KEY}
	expanded := os.Expand(string(data), func(key string) string {
		return os.Getenv(key)
	})

	cfg := &Config{}
	if err := yaml.Unmarshal([]byte(expanded), cfg); err != nil {
		return nil, fmt.Errorf("解析配置文件 %s 失败: %w", path, err)
	}

	setDefaults(cfg)
	clampRanges(cfg)
	return cfg, nil
}

// Default 返回不依赖配置文件的默认配置（API 密钥取自环境变量）。
func Default() *Config {
	cfg := &Config{}
	setDefaults(cfg)
	clampRanges(cfg)
	return cfg
}

// setDefaults 为未设置的配置项填充默认值。
func setDefaults(cfg *Config) {
	if cfg.LLM.APIURL == "" {
		cfg.LLM.APIURL = "https://openrouter.ai/api/v1"
	}
	if cfg.LLM.Model == "" {
		cfg.LLM.Model = "anthropic/claude-sonnet-4-5"
	}
	if cfg.LLM.TimeoutSec == 0 {
		cfg.LLM.TimeoutSec = 120
	}
	if cfg.LLM.MaxRetries == 0 {
		cfg.LLM.MaxRetries = 2
	}

	if cfg.TTS.Engine == "" {
		cfg.TTS.Engine = "openai"
	}
	if cfg.TTS.TimeoutSec == 0 {
		cfg.TTS.TimeoutSec = 60
	}
	if cfg.TTS.MaxRetries == 0 {
		cfg.TTS.MaxRetries = 2
	}
	if cfg.TTS.Concurrency == 0 {
		cfg.TTS.Concurrency = 2
	}
	if cfg.TTS.OpenAI.APIURL == "" {
		cfg.TTS.OpenAI.APIURL = "https://api.openai.com/v1"
	}
	if cfg.TTS.OpenAI.Model == "" {
		cfg.TTS.OpenAI.Model = "tts-1-hd"
	}
	if cfg.TTS.OpenAI.Host1Voice == "" {
		cfg.TTS.OpenAI.Host1Voice = "nova"
	}
	if cfg.TTS.OpenAI.Host2Voice == "" {
		cfg.TTS.OpenAI.Host2Voice = "echo"
	}
	if cfg.TTS.Edge.Host1Voice == "" {
		cfg.TTS.Edge.Host1Voice = "en-US-JennyNeural"
	}
	if cfg.TTS.Edge.Host2Voice == "" {
		cfg.TTS.Edge.Host2Voice = "en-US-GuyNeural"
	}
	if cfg.TTS.Tencent.Region == "" {
		cfg.TTS.Tencent.Region = "ap-guangzhou"
	}
	if cfg.TTS.Tencent.Host1Voice == 0 {
		cfg.TTS.Tencent.Host1Voice = 1001
	}
	if cfg.TTS.Tencent.Host2Voice == 0 {
		cfg.TTS.Tencent.Host2Voice = 1017
	}
	if cfg.TTS.Piper.Binary == "" {
		cfg.TTS.Piper.Binary = "piper"
	}

	if cfg.Spatial.Separation == 0 && cfg.Spatial.Host1Pan == 0 && cfg.Spatial.Host2Pan == 0 {
		cfg.Spatial.Separation = 0.4
	}

	if cfg.Pacing.GapMs == 0 {
		cfg.Pacing.GapMs = 300
	}

	if cfg.Transcribe.Engine == "" {
		cfg.Transcribe.Engine = "whisper"
	}
	if cfg.Transcribe.Whisper.APIURL == "" {
		cfg.Transcribe.Whisper.APIURL = "https://api.openai.com/v1"
	}
	if cfg.Transcribe.Whisper.Model == "" {
		cfg.Transcribe.Whisper.Model = "whisper-1"
	}
	if cfg.Transcribe.Whisper.TimeoutSec == 0 {
		cfg.Transcribe.Whisper.TimeoutSec = 300
	}
	if cfg.Transcribe.Local.NumThreads == 0 {
		cfg.Transcribe.Local.NumThreads = 2
	}

	if cfg.Subtitle.MinCueMs == 0 {
		cfg.Subtitle.MinCueMs = 1000
	}
	if cfg.Subtitle.MaxCueMs == 0 {
		cfg.Subtitle.MaxCueMs = 3000
	}
	if cfg.Subtitle.MaxCueChars == 0 {
		cfg.Subtitle.MaxCueChars = 84
	}
	if cfg.Subtitle.Translate.Region == "" {
		cfg.Subtitle.Translate.Region = "ap-guangzhou"
	}

	if cfg.Output.BitrateKbps == 0 {
		cfg.Output.BitrateKbps = 192
	}
	if cfg.Output.Artist == "" {
		cfg.Output.Artist = "Podcast AI"
	}
	if cfg.Output.Album == "" {
		cfg.Output.Album = "Generated Podcast"
	}
	if cfg.Output.Genre == "" {
		cfg.Output.Genre = "Educational"
	}

	if cfg.Storage.DataDir == "" {
		home, _ := os.UserHomeDir()
		if home != "" {
			cfg.Storage.DataDir = home + "/.gencast"
		} else {
			cfg.Storage.DataDir = "./.gencast-data"
		}
	} else if strings.HasPrefix(cfg.Storage.DataDir, "~/") {
		// Go 不会自动展开 ~，需要手动替换为用户主目录
		home, _ := os.UserHomeDir()
		if home != "" {
			cfg.Storage.DataDir = home + cfg.Storage.DataDir[1:]
		}
	}

	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}

	// 未配置的 API 密钥回退到约定环境变量
	if cfg.LLM.APIKey == "" {
		cfg.LLM.APIKey = os.Getenv("OPENROUTER_API_KEY")
	}
	if cfg.TTS.OpenAI.APIKey == "" {
		cfg.TTS.OpenAI.APIKey = os.Getenv("OPENAI_API_KEY")
	}
	if cfg.Transcribe.Whisper.APIKey == "" {
		cfg.Transcribe.Whisper.APIKey = os.Getenv("OPENAI_API_KEY")
	}
	if cfg.TTS.Tencent.SecretID == "" {
		cfg.TTS.Tencent.SecretID = os.Getenv("TENCENTCLOUD_SECRET_ID")
	}
	if cfg.TTS.Tencent.SecretKey == "" {
		cfg.TTS.Tencent.SecretKey = os.Getenv("TENCENTCLOUD_SECRET_KEY")
	}
	if cfg.Subtitle.Translate.SecretID == "" {
		cfg.Subtitle.Translate.SecretID = cfg.TTS.Tencent.SecretID
	}
	if cfg.Subtitle.Translate.SecretKey == "" {
		cfg.Subtitle.Translate.SecretKey = cfg.TTS.Tencent.SecretKey
	}

	// 去除 API Key 两端可能的空白（环境变量展开后常见）
	cfg.LLM.APIKey = strings.TrimSpace(cfg.LLM.APIKey)
	cfg.TTS.OpenAI.APIKey = strings.TrimSpace(cfg.TTS.OpenAI.APIKey)
	cfg.Transcribe.Whisper.APIKey = strings.TrimSpace(cfg.Transcribe.Whisper.APIKey)
}

// clampRanges 把越界的数值配置钳制到有效范围内并记录说明。
// 越界不是致命错误，否则一个手误就会丢掉整次生成。
func clampRanges(cfg *Config) {
	warnf := func(format string, args ...interface{}) {
		cfg.Warnings = append(cfg.Warnings, fmt.Sprintf(format, args...))
	}

	if cfg.Spatial.Separation < 0 {
		warnf("spatial.separation %.2f 小于 0，已钳制为 0", cfg.Spatial.Separation)
		cfg.Spatial.Separation = 0
	} else if cfg.Spatial.Separation > 1 {
		warnf("spatial.separation %.2f 超过 1，已钳制为 1", cfg.Spatial.Separation)
		cfg.Spatial.Separation = 1
	}
	if cfg.Spatial.Host1Pan < -1 || cfg.Spatial.Host1Pan > 1 {
		clamped := clampPan(cfg.Spatial.Host1Pan)
		warnf("spatial.host1_pan %.2f 超出 [-1,1]，已钳制为 %.2f", cfg.Spatial.Host1Pan, clamped)
		cfg.Spatial.Host1Pan = clamped
	}
	if cfg.Spatial.Host2Pan < -1 || cfg.Spatial.Host2Pan > 1 {
		clamped := clampPan(cfg.Spatial.Host2Pan)
		warnf("spatial.host2_pan %.2f 超出 [-1,1]，已钳制为 %.2f", cfg.Spatial.Host2Pan, clamped)
		cfg.Spatial.Host2Pan = clamped
	}

	if cfg.Pacing.GapMs < 0 {
		warnf("pacing.gap_ms %d 小于 0，已钳制为 0", cfg.Pacing.GapMs)
		cfg.Pacing.GapMs = 0
	}

	if cfg.Subtitle.MinCueMs < 0 || cfg.Subtitle.MaxCueMs <= 0 ||
		cfg.Subtitle.MinCueMs >= cfg.Subtitle.MaxCueMs {
		warnf("subtitle 时长窗口 [%d, %d] 无效，已恢复默认 [1000, 3000]",
			cfg.Subtitle.MinCueMs, cfg.Subtitle.MaxCueMs)
		cfg.Subtitle.MinCueMs = 1000
		cfg.Subtitle.MaxCueMs = 3000
	}
	if cfg.Subtitle.MaxCueChars < 10 {
		warnf("subtitle.max_cue_chars %d 过小，已恢复默认 84", cfg.Subtitle.MaxCueChars)
		cfg.Subtitle.MaxCueChars = 84
	}

	if cfg.TTS.Concurrency < 1 {
		warnf("tts.concurrency %d 无效，已钳制为 1", cfg.TTS.Concurrency)
		cfg.TTS.Concurrency = 1
	} else if cfg.TTS.Concurrency > 8 {
		warnf("tts.concurrency %d 过大，已钳制为 8", cfg.TTS.Concurrency)
		cfg.TTS.Concurrency = 8
	}
	if cfg.TTS.MaxRetries < 0 {
		warnf("tts.max_retries %d 小于 0，已钳制为 0", cfg.TTS.MaxRetries)
		cfg.TTS.MaxRetries = 0
	}
	if cfg.TTS.CacheMB < 0 {
		warnf("tts.cache_mb %d 小于 0，合成缓存已关闭", cfg.TTS.CacheMB)
		cfg.TTS.CacheMB = 0
	}

	if cfg.Output.BitrateKbps < 32 {
		warnf("output.bitrate_kbps %d 过低，已钳制为 32", cfg.Output.BitrateKbps)
		cfg.Output.BitrateKbps = 32
	} else if cfg.Output.BitrateKbps > 320 {
		warnf("output.bitrate_kbps %d 超过 MP3 上限，已钳制为 320", cfg.Output.BitrateKbps)
		cfg.Output.BitrateKbps = 320
	}

	// 字幕是次要产物：缺少 Whisper Key 时关闭转写而不是让整条流水线失败
	if cfg.Transcribe.Engine == "whisper" && cfg.Transcribe.Whisper.APIKey == "" {
		warnf("transcribe.whisper.api_key 未配置，字幕转写已关闭")
		cfg.Transcribe.Engine = "off"
	}
}

func clampPan(v float64) float64 {
	if v < -1 {
		return -1
	}
	if v > 1 {
		return 1
	}
	return v
}

// SynthCacheDir 返回合成缓存目录路径。
func (c *Config) SynthCacheDir() string {
	return filepath.Join(c.Storage.DataDir, "synth-cache")
}

// PanPositions 返回两位主持人的声像位置。
// 显式配置优先，否则按 separation 推导（HOST1 左，HOST2 右）。
func (c *Config) PanPositions() (host1, host2 float64) {
	if c.Spatial.Host1Pan != 0 || c.Spatial.Host2Pan != 0 {
		return c.Spatial.Host1Pan, c.Spatial.Host2Pan
	}
	return -c.Spatial.Separation, c.Spatial.Separation
}
