package audio

import (
	"math"
)

// Int16ToFloat32 将 PCM int16 样本转换为 [-1.0, 1.0] 范围的 float32。
func Int16ToFloat32(in []int16) []float32 {
	out := make([]float32, len(in))
	for i, s := range in {
		out[i] = float32(s) / math.MaxInt16
	}
	return out
}

// Float32ToInt16 将 [-1.0, 1.0] 范围的 float32 样本转换为 PCM int16。
func Float32ToInt16(in []float32) []int16 {
	out := make([]int16, len(in))
	for i, s := range in {
		// 钳位到 [-1.0, 1.0]
		if s > 1.0 {
			s = 1.0
		} else if s < -1.0 {
			s = -1.0
		}
		out[i] = int16(s * math.MaxInt16)
	}
	return out
}

// BytesToInt16 将小端字节切片转换为 int16 样本。
func BytesToInt16(b []byte) []int16 {
	n := len(b) / 2
	out := make([]int16, n)
	for i := 0; i < n; i++ {
		out[i] = int16(b[2*i]) | int16(b[2*i+1])<<8
	}
	return out
}

// Int16ToBytes 将 int16 样本转换为小端字节切片。
func Int16ToBytes(in []int16) []byte {
	out := make([]byte, len(in)*2)
	for i, s := range in {
		out[2*i] = byte(s)
		out[2*i+1] = byte(s >> 8)
	}
	return out
}

// Float32ToBytes 便捷函数：将 float32 样本直接转换为原始 PCM 字节。
func Float32ToBytes(in []float32) []byte {
	return Int16ToBytes(Float32ToInt16(in))
}

// BytesToFloat32 便捷函数：将原始 16-bit LE PCM 字节直接转换为 float32 样本。
func BytesToFloat32(b []byte) []float32 {
	return Int16ToFloat32(BytesToInt16(b))
}

// MonoFromStereoPCM 将 16-bit LE 立体声 PCM 字节下混为单声道 float32。
// 每帧 4 字节（左 2 + 右 2），左右取平均；不足一帧的尾部字节丢弃。
func MonoFromStereoPCM(b []byte) []float32 {
	const bytesPerFrame = 4
	n := len(b) / bytesPerFrame
	out := make([]float32, n)
	for i := 0; i < n; i++ {
		off := i * bytesPerFrame
		left := int16(b[off]) | int16(b[off+1])<<8
		right := int16(b[off+2]) | int16(b[off+3])<<8
		out[i] = (float32(left) + float32(right)) / 2.0 / 32768.0
	}
	return out
}

// InterleaveStereo 将等长的左右声道交织为 L R L R 顺序的单一切片。
func InterleaveStereo(left, right []float32) []float32 {
	n := len(left)
	if len(right) < n {
		n = len(right)
	}
	out := make([]float32, n*2)
	for i := 0; i < n; i++ {
		out[2*i] = left[i]
		out[2*i+1] = right[i]
	}
	return out
}

// Downmix 将左右声道按样本取平均，得到单声道信号。
func Downmix(left, right []float32) []float32 {
	n := len(left)
	if len(right) < n {
		n = len(right)
	}
	out := make([]float32, n)
	for i := 0; i < n; i++ {
		out[i] = (left[i] + right[i]) / 2.0
	}
	return out
}

// Resample 用线性插值把样本从 fromRate 重采样到 toRate。
// 两个采样率相同时原样返回输入切片。
func Resample(in []float32, fromRate, toRate int) []float32 {
	if fromRate == toRate || len(in) == 0 {
		return in
	}
	ratio := float64(fromRate) / float64(toRate)
	outLen := int(math.Round(float64(len(in)) * float64(toRate) / float64(fromRate)))
	if outLen == 0 {
		outLen = 1
	}
	out := make([]float32, outLen)
	for i := 0; i < outLen; i++ {
		pos := float64(i) * ratio
		j := int(pos)
		if j >= len(in)-1 {
			out[i] = in[len(in)-1]
			continue
		}
		frac := float32(pos - float64(j))
		out[i] = in[j]*(1-frac) + in[j+1]*frac
	}
	return out
}
