package tts

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"path/filepath"

	"github.com/cadrianmae/gencast/internal/audio"
	"github.com/cadrianmae/gencast/internal/config"
	"github.com/cadrianmae/gencast/internal/logger"
)

// piperSampleRate 是 piper 输出的固定采样率。
const piperSampleRate = 22050

// PiperEngine 使用 piper CLI 子进程实现语音合成，作为离线本地方案。
// 每位主持人使用独立的模型文件，模型即音色。
type PiperEngine struct {
	binary    string
	modelPath string
}

// NewPiperEngine 创建指定模型的 Piper TTS 引擎。
func NewPiperEngine(cfg config.PiperConfig, modelPath string) (*PiperEngine, error) {
	if modelPath == "" {
		return nil, fmt.Errorf("[tts] piper 需要配置主持人模型路径（tts.piper.host1_model / host2_model）")
	}
	if _, err := exec.LookPath(cfg.Binary); err != nil {
		return nil, fmt.Errorf("[tts] 找不到 piper 可执行文件 %q: %w", cfg.Binary, err)
	}
	return &PiperEngine{binary: cfg.Binary, modelPath: modelPath}, nil
}

// Name 返回含模型名的引擎标识，不同模型合成的音频互不混淆。
func (p *PiperEngine) Name() string {
	return "piper/" + filepath.Base(p.modelPath)
}

// Synthesize 使用 piper CLI 将文本转换为单声道 float32 音频样本。
// piper 输出 signed 16-bit LE 单声道 PCM，采样率 22050 Hz。
func (p *PiperEngine) Synthesize(ctx context.Context, text string) ([]float32, int, error) {
	logger.Debugf("[tts] piper: 正在合成 %d 个字符，模型=%s", len([]rune(text)), p.modelPath)

	cmd := exec.CommandContext(ctx, p.binary, "--model", p.modelPath, "--output-raw")
	cmd.Stdin = bytes.NewReader([]byte(text))

	var stdout bytes.Buffer
	var stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		stderrStr := stderr.String()
		if stderrStr != "" {
			logger.Warnf("[tts] piper stderr: %s", stderrStr)
		}
		return nil, 0, fmt.Errorf("[tts] piper 执行失败: %w", err)
	}

	pcmData := stdout.Bytes()

	if len(pcmData) == 0 {
		return nil, 0, fmt.Errorf("[tts] piper: 未收到音频数据")
	}

	logger.Debugf("[tts] piper: 收到 %d 字节原始 PCM", len(pcmData))

	samples := audio.BytesToFloat32(pcmData)

	logger.Debugf("[tts] piper: 生成 %d 个单声道 float32 样本", len(samples))

	return samples, piperSampleRate, nil
}
