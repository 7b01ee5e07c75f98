package audio

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"

	"github.com/hajimehoshi/go-mp3"

	"github.com/cadrianmae/gencast/internal/logger"
)

// DecodeMP3Mono 将 MP3 数据解码为单声道 float32 样本。
// go-mp3 输出立体声 signed 16-bit LE PCM，左右声道取平均得到单声道。
// 返回样本数据、采样率和错误。
func DecodeMP3Mono(ctx context.Context, data []byte) ([]float32, int, error) {
	decoder, err := mp3.NewDecoder(bytes.NewReader(data))
	if err != nil {
		return nil, 0, fmt.Errorf("[audio] MP3 解码失败: %w", err)
	}

	sampleRate := decoder.SampleRate()

	pcmBuf := new(bytes.Buffer)
	buf := make([]byte, 4096)
	for {
		select {
		case <-ctx.Done():
			return nil, 0, ctx.Err()
		default:
		}
		n, err := decoder.Read(buf)
		if n > 0 {
			pcmBuf.Write(buf[:n])
		}
		if err != nil {
			break
		}
	}

	samples := MonoFromStereoPCM(pcmBuf.Bytes())
	if len(samples) == 0 {
		return nil, 0, fmt.Errorf("[audio] MP3 解码后没有样本数据")
	}

	return samples, sampleRate, nil
}

// EncodeOptions MP3 编码参数。
type EncodeOptions struct {
	BitrateKbps int    // 比特率，默认 192
	Title       string // ID3 标题
	Artist      string // ID3 艺术家
	Album       string // ID3 专辑
	Genre       string // ID3 流派
}

// EncodeMP3 使用 ffmpeg 子进程将 WAV 文件编码为带 ID3 标签的 MP3。
func EncodeMP3(ctx context.Context, wavPath, mp3Path string, opts EncodeOptions) error {
	if _, err := exec.LookPath("ffmpeg"); err != nil {
		return fmt.Errorf("[audio] 未找到 ffmpeg，无法编码 MP3: %w", err)
	}

	bitrate := opts.BitrateKbps
	if bitrate <= 0 {
		bitrate = 192
	}

	args := []string{
		"-y",
		"-i", wavPath,
		"-codec:a", "libmp3lame",
		"-b:a", fmt.Sprintf("%dk", bitrate),
		"-id3v2_version", "3",
	}
	for _, tag := range []struct{ key, value string }{
		{"title", opts.Title},
		{"artist", opts.Artist},
		{"album", opts.Album},
		{"genre", opts.Genre},
	} {
		if tag.value != "" {
			args = append(args, "-metadata", tag.key+"="+tag.value)
		}
	}
	args = append(args, mp3Path)

	logger.Debugf("[audio] ffmpeg: 正在编码 %s (%d kbps)", mp3Path, bitrate)

	cmd := exec.CommandContext(ctx, "ffmpeg", args...)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		stderrStr := stderr.String()
		if stderrStr != "" {
			logger.Warnf("[audio] ffmpeg stderr: %s", stderrStr)
		}
		return fmt.Errorf("[audio] ffmpeg 执行失败: %w", err)
	}

	logger.Debugf("[audio] ffmpeg: 已生成 %s", mp3Path)

	return nil
}
