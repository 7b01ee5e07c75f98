// Package transcribe 将成品音频转写为带时间的文本块，供字幕重切使用。
package transcribe

import (
	"context"
	"fmt"

	"github.com/cadrianmae/gencast/internal/audio"
	"github.com/cadrianmae/gencast/internal/config"
	"github.com/cadrianmae/gencast/internal/subtitle"
)

// Input 转写输入。Path 指向磁盘上的成品音频文件（远端引擎上传用），
// Master 为同一内容的内存样本（本地引擎直接解码用）。
type Input struct {
	Path   string
	Master *audio.Master
}

// Transcriber 定义转写后端接口。
type Transcriber interface {
	// Name 返回引擎标识，用于日志和错误信息。
	Name() string
	// Transcribe 将音频转写为按时间排序的文本块。
	// 块的粒度由引擎决定（通常为句子级），时间为相对音频起点的毫秒。
	Transcribe(ctx context.Context, in Input) ([]subtitle.Cue, error)
}

// New 根据配置创建转写引擎。engine 为 off 时返回 (nil, nil)，
// 表示跳过字幕生成。
func New(cfg config.TranscribeConfig) (Transcriber, error) {
	switch cfg.Engine {
	case "whisper":
		return NewWhisper(cfg.Whisper)
	case "local":
		return NewSherpa(cfg.Local)
	case "off":
		return nil, nil
	default:
		return nil, fmt.Errorf("[transcribe] 未知的转写引擎: %q（可选 whisper/local/off）", cfg.Engine)
	}
}
