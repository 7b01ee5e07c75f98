package audio

import (
	"errors"
	"fmt"
	"math"
)

var (
	// ErrChannelMismatch 表示分段的声道长度或采样率与时间线要求不一致。
	// 这是上游归一化的缺陷，拼接阶段绝不静默修正。
	ErrChannelMismatch = errors.New("声道不匹配")

	// ErrFailedSegment 在严格模式下表示输入中存在合成失败的分段。
	ErrFailedSegment = errors.New("存在合成失败的分段")
)

// RenderedSegment 是完成空间渲染、等待拼接的音频分段。
// 左右声道长度严格相等；Failed 为 true 的分段是上游合成失败的占位，
// 不携带任何音频数据。
type RenderedSegment struct {
	Order      int
	Speaker    string
	Left       []float32
	Right      []float32
	SampleRate int
	Failed     bool
}

// DurationMs 返回分段时长（毫秒，四舍五入）。
func (s *RenderedSegment) DurationMs() int {
	return samplesToMs(len(s.Left), s.SampleRate)
}

// Interval 记录一个分段在成品音轨中的半开毫秒区间 [StartMs, EndMs)，
// 区间不含分段之后的停顿。
type Interval struct {
	Order   int `json:"order"`
	StartMs int `json:"start_ms"`
	EndMs   int `json:"end_ms"`
}

// TimelineIndex 是分段到成品音轨时间区间的只读映射。
// 区间按 Order 严格递增且互不重叠，GapMs 在整条音轨上恒定。
type TimelineIndex struct {
	GapMs     int        `json:"gap_ms"`
	Intervals []Interval `json:"intervals"`
}

// At 返回覆盖指定毫秒时刻的分段区间，用于诊断日志。
// 时刻落在停顿内时返回 false。
func (t *TimelineIndex) At(ms int) (Interval, bool) {
	for _, iv := range t.Intervals {
		if ms >= iv.StartMs && ms < iv.EndMs {
			return iv, true
		}
	}
	return Interval{}, false
}

// TotalMs 返回成品音轨总时长（最后一个分段的结束时刻）。
func (t *TimelineIndex) TotalMs() int {
	if len(t.Intervals) == 0 {
		return 0
	}
	return t.Intervals[len(t.Intervals)-1].EndMs
}

// Master 是拼接完成的立体声母带。
type Master struct {
	Left       []float32
	Right      []float32
	SampleRate int
}

// DurationMs 返回母带总时长（毫秒）。
func (m *Master) DurationMs() int {
	return samplesToMs(len(m.Left), m.SampleRate)
}

// AssembleOptions 控制拼接行为。
// SkipFailed 为 true 时失败分段被跳过、相邻存活分段之间仍保留停顿；
// 为 false 时任何失败分段都会使拼接返回错误。
type AssembleOptions struct {
	GapMs      int
	SampleRate int
	SkipFailed bool
}

// Assemble 按 Order 顺序把渲染分段拼接为单条母带，并记录每个分段的
// 时间区间。相邻分段之间插入恒定时长的静音停顿（最后一个分段之后不插入）。
// 输入必须已按 Order 严格递增排列，且所有分段使用同一采样率。
func Assemble(segments []RenderedSegment, opts AssembleOptions) (*Master, *TimelineIndex, error) {
	if opts.SampleRate <= 0 {
		return nil, nil, fmt.Errorf("无效的采样率: %d", opts.SampleRate)
	}
	gapSamples := msToSamples(opts.GapMs, opts.SampleRate)

	// 预检：在写入任何样本之前发现顺序和声道问题
	prevOrder := -1
	totalSamples := 0
	survivors := 0
	for i := range segments {
		seg := &segments[i]
		if seg.Order <= prevOrder {
			return nil, nil, fmt.Errorf("分段顺序错乱: %d 出现在 %d 之后", seg.Order, prevOrder)
		}
		prevOrder = seg.Order

		if seg.Failed {
			if !opts.SkipFailed {
				return nil, nil, fmt.Errorf("分段 %d: %w", seg.Order, ErrFailedSegment)
			}
			continue
		}
		if len(seg.Left) != len(seg.Right) {
			return nil, nil, fmt.Errorf("分段 %d 左右声道长度不等 (%d != %d): %w",
				seg.Order, len(seg.Left), len(seg.Right), ErrChannelMismatch)
		}
		if seg.SampleRate != opts.SampleRate {
			return nil, nil, fmt.Errorf("分段 %d 采样率 %d 与时间线 %d 不一致: %w",
				seg.Order, seg.SampleRate, opts.SampleRate, ErrChannelMismatch)
		}
		if survivors > 0 {
			totalSamples += gapSamples
		}
		totalSamples += len(seg.Left)
		survivors++
	}
	if survivors == 0 {
		return nil, nil, fmt.Errorf("没有可拼接的渲染分段")
	}

	master := &Master{
		Left:       make([]float32, 0, totalSamples),
		Right:      make([]float32, 0, totalSamples),
		SampleRate: opts.SampleRate,
	}
	index := &TimelineIndex{
		GapMs:     opts.GapMs,
		Intervals: make([]Interval, 0, survivors),
	}

	gap := make([]float32, gapSamples)
	elapsed := 0
	for i := range segments {
		seg := &segments[i]
		if seg.Failed {
			continue
		}
		if len(index.Intervals) > 0 {
			master.Left = append(master.Left, gap...)
			master.Right = append(master.Right, gap...)
			elapsed += gapSamples
		}
		start := elapsed
		master.Left = append(master.Left, seg.Left...)
		master.Right = append(master.Right, seg.Right...)
		elapsed += len(seg.Left)

		index.Intervals = append(index.Intervals, Interval{
			Order:   seg.Order,
			StartMs: samplesToMs(start, opts.SampleRate),
			EndMs:   samplesToMs(elapsed, opts.SampleRate),
		})
	}
	return master, index, nil
}

func samplesToMs(n, rate int) int {
	return int(math.Round(float64(n) * 1000.0 / float64(rate)))
}

func msToSamples(ms, rate int) int {
	return int(math.Round(float64(ms) * float64(rate) / 1000.0))
}
