package audio

import (
	"encoding/binary"
	"fmt"
	"os"
)

const wavHeaderSize = 44

// WAVBytes 把立体声母带编码为 16-bit PCM WAV 字节。
func WAVBytes(m *Master) ([]byte, error) {
	if len(m.Left) != len(m.Right) {
		return nil, fmt.Errorf("母带左右声道长度不等 (%d != %d): %w",
			len(m.Left), len(m.Right), ErrChannelMismatch)
	}

	pcm := Float32ToBytes(InterleaveStereo(m.Left, m.Right))

	const (
		numChannels   = 2
		bitsPerSample = 16
	)
	blockAlign := numChannels * bitsPerSample / 8
	byteRate := m.SampleRate * blockAlign

	buf := make([]byte, wavHeaderSize+len(pcm))
	copy(buf[0:4], "RIFF")
	binary.LittleEndian.PutUint32(buf[4:8], uint32(36+len(pcm)))
	copy(buf[8:12], "WAVE")
	copy(buf[12:16], "fmt ")
	binary.LittleEndian.PutUint32(buf[16:20], 16) // PCM fmt 块固定 16 字节
	binary.LittleEndian.PutUint16(buf[20:22], 1)  // PCM
	binary.LittleEndian.PutUint16(buf[22:24], numChannels)
	binary.LittleEndian.PutUint32(buf[24:28], uint32(m.SampleRate))
	binary.LittleEndian.PutUint32(buf[28:32], uint32(byteRate))
	binary.LittleEndian.PutUint16(buf[32:34], uint16(blockAlign))
	binary.LittleEndian.PutUint16(buf[34:36], bitsPerSample)
	copy(buf[36:40], "data")
	binary.LittleEndian.PutUint32(buf[40:44], uint32(len(pcm)))
	copy(buf[wavHeaderSize:], pcm)

	return buf, nil
}

// WriteWAV 把立体声母带写为 16-bit PCM WAV 文件。
func WriteWAV(path string, m *Master) error {
	data, err := WAVBytes(m)
	if err != nil {
		return err
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("写入 WAV 文件失败: %w", err)
	}
	return nil
}

// ReadWAV 读取 16-bit PCM WAV 文件并返回左右声道与采样率。
// 单声道文件的两个返回声道指向同一份样本。
func ReadWAV(path string) (left, right []float32, sampleRate int, err error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, nil, 0, fmt.Errorf("读取 WAV 文件失败: %w", err)
	}
	if len(data) < 12 || string(data[0:4]) != "RIFF" || string(data[8:12]) != "WAVE" {
		return nil, nil, 0, fmt.Errorf("不是有效的 WAV 文件: %s", path)
	}

	var (
		numChannels int
		bits        int
		pcm         []byte
		haveFmt     bool
	)

	// 逐块扫描，fmt 和 data 之外的块（LIST 等）直接跳过
	pos := 12
	for pos+8 <= len(data) {
		chunkID := string(data[pos : pos+4])
		chunkSize := int(binary.LittleEndian.Uint32(data[pos+4 : pos+8]))
		body := pos + 8
		if body+chunkSize > len(data) {
			chunkSize = len(data) - body
		}

		switch chunkID {
		case "fmt ":
			if chunkSize < 16 {
				return nil, nil, 0, fmt.Errorf("fmt 块过短: %d 字节", chunkSize)
			}
			format := binary.LittleEndian.Uint16(data[body : body+2])
			if format != 1 {
				return nil, nil, 0, fmt.Errorf("不支持的 WAV 编码格式: %d（仅支持 PCM）", format)
			}
			numChannels = int(binary.LittleEndian.Uint16(data[body+2 : body+4]))
			sampleRate = int(binary.LittleEndian.Uint32(data[body+4 : body+8]))
			bits = int(binary.LittleEndian.Uint16(data[body+14 : body+16]))
			haveFmt = true
		case "data":
			pcm = data[body : body+chunkSize]
		}

		pos = body + chunkSize
		if chunkSize%2 == 1 {
			pos++ // 块体按 2 字节对齐
		}
	}

	if !haveFmt || pcm == nil {
		return nil, nil, 0, fmt.Errorf("WAV 文件缺少 fmt 或 data 块: %s", path)
	}
	if bits != 16 {
		return nil, nil, 0, fmt.Errorf("不支持的位深: %d（仅支持 16-bit）", bits)
	}

	switch numChannels {
	case 1:
		mono := Int16ToFloat32(BytesToInt16(pcm))
		return mono, mono, sampleRate, nil
	case 2:
		samples := BytesToInt16(pcm)
		n := len(samples) / 2
		left = make([]float32, n)
		right = make([]float32, n)
		for i := 0; i < n; i++ {
			left[i] = float32(samples[2*i]) / 32767.0
			right[i] = float32(samples[2*i+1]) / 32767.0
		}
		return left, right, sampleRate, nil
	default:
		return nil, nil, 0, fmt.Errorf("不支持的声道数: %d", numChannels)
	}
}
