package audio

import "math"

// MaxITDMs 双耳时间差的最大毫秒数，对应声像完全偏向一侧。
const MaxITDMs = 0.6

// Pan 把单声道信号渲染为带空间感的立体声。
// position ∈ [-1, 1]：负值偏左、正值偏右、0 居中（越界值由配置层钳制）。
// 两个效果叠加：
//  1. 等功率声像增益：近侧 cos((1-|p|)·π/4)，远侧 cos((1+|p|)·π/4)，
//     任意位置左右功率之和恒定，居中时两声道增益相等。
//  2. 双耳时间差：远离声源的一侧延迟 |p|·MaxITDMs 毫秒（换算为采样点数），
//     延迟通过前导静音实现，另一声道补尾部静音，两声道长度严格相等。
// 纯函数：相同输入产生逐位相同的输出。
func Pan(mono []float32, position float64, sampleRate int) (left, right []float32) {
	leftGain, rightGain := panGains(position)
	delay := delaySamples(position, sampleRate)

	total := len(mono) + delay
	left = make([]float32, total)
	right = make([]float32, total)

	if position > 0 {
		// 声源在右，左耳滞后
		for i, s := range mono {
			left[i+delay] = s * leftGain
			right[i] = s * rightGain
		}
	} else {
		// 声源在左（或居中，此时 delay 为 0），右耳滞后
		for i, s := range mono {
			left[i] = s * leftGain
			right[i+delay] = s * rightGain
		}
	}
	return left, right
}

// panGains 计算等功率声像增益。
// 近侧和远侧增益都按 |position| 计算再分配给左右，
// 位置取反时输出严格互换。
func panGains(position float64) (leftGain, rightGain float32) {
	p := math.Abs(position)
	near := float32(math.Cos((1 - p) * math.Pi / 4))
	far := float32(math.Cos((1 + p) * math.Pi / 4))
	if position >= 0 {
		return far, near
	}
	return near, far
}

// delaySamples 把双耳时间差换算为采样点数（四舍五入）。
func delaySamples(position float64, sampleRate int) int {
	delayMs := math.Abs(position) * MaxITDMs
	return int(math.Round(delayMs * float64(sampleRate) / 1000.0))
}
