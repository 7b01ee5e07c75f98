// Package pipeline 把对话脚本串成完整的播客成品：
// 并发合成语音、空间混音、拼接母带、编码 MP3、转写并重切字幕。
package pipeline

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/cadrianmae/gencast/internal/audio"
	"github.com/cadrianmae/gencast/internal/config"
	"github.com/cadrianmae/gencast/internal/dialogue"
	"github.com/cadrianmae/gencast/internal/logger"
	"github.com/cadrianmae/gencast/internal/store"
	"github.com/cadrianmae/gencast/internal/subtitle"
	"github.com/cadrianmae/gencast/internal/synth"
	"github.com/cadrianmae/gencast/internal/transcribe"
	"github.com/cadrianmae/gencast/internal/tts"
)

// Options 单次生成任务的参数。
type Options struct {
	OutputBase    string // 输出文件路径前缀，不含扩展名
	Title         string // 节目标题，空则取 OutputBase 的文件名
	Style         string // 对话风格，仅写入历史记录
	Strict        bool   // 任一分段合成失败即中止
	TranslateSubs bool   // 额外生成翻译字幕
}

// Result 单次生成任务的产物清单。
type Result struct {
	EpisodeID      string
	AudioPath      string // 最终音频，MP3 编码失败时指向 WAV
	WAVPath        string // 保留的 WAV 路径，MP3 编码成功后为空
	SubtitlePath   string
	TranslatedPath string
	Master         *audio.Master
	Timeline       *audio.TimelineIndex
	SegmentCount   int
	FailedOrders   []int
	Degraded       bool // 有非致命环节失败（分段缺失、编码或字幕）
}

// Pipeline 播客生成流水线。
type Pipeline struct {
	cfg         *config.Config
	host1       tts.Engine
	host2       tts.Engine
	transcriber transcribe.Transcriber
	cache       *synth.Cache
	store       *store.Store
	reporter    Reporter
}

// New 根据配置组装流水线。st 为 nil 时不记录历史，rep 为 nil 时不输出进度。
func New(cfg *config.Config, st *store.Store, rep Reporter) (*Pipeline, error) {
	host1, host2, err := tts.NewEngines(cfg.TTS)
	if err != nil {
		return nil, err
	}
	transcriber, err := transcribe.New(cfg.Transcribe)
	if err != nil {
		return nil, err
	}
	var cache *synth.Cache
	if cfg.TTS.CacheMB > 0 {
		cache, err = synth.NewCache(cfg.SynthCacheDir(), cfg.TTS.CacheMB)
		if err != nil {
			logger.Warnf("[pipeline] 合成缓存不可用: %v", err)
			cache = nil
		}
	}
	if rep == nil {
		rep = NopReporter()
	}
	logger.Infof("[pipeline] 流水线就绪（tts=%s, transcribe=%s）",
		cfg.TTS.Engine, cfg.Transcribe.Engine)
	return &Pipeline{
		cfg:         cfg,
		host1:       host1,
		host2:       host2,
		transcriber: transcriber,
		cache:       cache,
		store:       st,
		reporter:    rep,
	}, nil
}

// Run 执行一次完整的生成任务。
// 单个分段的合成失败不会中止任务（除非 Strict），字幕环节的失败
// 只降级不影响音频产出。
func (p *Pipeline) Run(ctx context.Context, dialogueText string, opts Options) (*Result, error) {
	defer p.reporter.Done()

	segments, err := dialogue.Parse(dialogueText)
	if err != nil {
		return nil, err
	}
	logger.Infof("[pipeline] 对话脚本共 %d 个分段", len(segments))

	title := opts.Title
	if title == "" {
		title = filepath.Base(opts.OutputBase)
	}

	// 合成
	p.reporter.Stage("合成语音")
	orch := synth.New(p.host1, p.host2, synth.Options{
		Concurrency: p.cfg.TTS.Concurrency,
		MaxRetries:  p.cfg.TTS.MaxRetries,
		Timeout:     time.Duration(p.cfg.TTS.TimeoutSec) * time.Second,
		OnProgress:  p.reporter.Progress,
		Cache:       p.cache,
	})
	results := orch.SynthesizeAll(ctx, segments)
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	res := &Result{SegmentCount: len(segments)}
	failures := synth.Failures(results)
	for _, f := range failures {
		res.FailedOrders = append(res.FailedOrders, f.Order)
	}
	if len(failures) > 0 {
		if opts.Strict {
			return nil, fmt.Errorf("[pipeline] %d 个分段合成失败: %w", len(failures), failures[0])
		}
		if len(failures) == len(segments) {
			return nil, fmt.Errorf("[pipeline] 所有分段合成失败: %w", failures[0])
		}
		res.Degraded = true
		logger.Warnf("[pipeline] 跳过 %d 个失败分段继续拼接", len(failures))
	}

	// 统一采样率：以第一个成功分段为准
	rate := 0
	for i := range results {
		if results[i].Err == nil {
			rate = results[i].SampleRate
			break
		}
	}
	for i := range results {
		r := &results[i]
		if r.Err != nil || r.SampleRate == rate {
			continue
		}
		logger.Warnf("[pipeline] 分段 %d 采样率 %d 与母带 %d 不一致，重采样",
			r.Segment.Order, r.SampleRate, rate)
		r.Mono = audio.Resample(r.Mono, r.SampleRate, rate)
		r.SampleRate = rate
	}

	// 空间混音 + 拼接
	p.reporter.Stage("混音拼接")
	pan1, pan2 := p.cfg.PanPositions()
	rendered := make([]audio.RenderedSegment, len(results))
	for i := range results {
		r := &results[i]
		rs := audio.RenderedSegment{
			Order:      r.Segment.Order,
			Speaker:    r.Segment.Speaker.String(),
			SampleRate: rate,
		}
		if r.Err != nil {
			rs.Failed = true
		} else {
			pan := pan1
			if r.Segment.Speaker == dialogue.Host2 {
				pan = pan2
			}
			rs.Left, rs.Right = audio.Pan(r.Mono, pan, rate)
		}
		rendered[i] = rs
	}

	master, timeline, err := audio.Assemble(rendered, audio.AssembleOptions{
		GapMs:      p.cfg.Pacing.GapMs,
		SampleRate: rate,
		SkipFailed: true,
	})
	if err != nil {
		return nil, fmt.Errorf("[pipeline] 拼接母带失败: %w", err)
	}
	res.Master = master
	res.Timeline = timeline
	logger.Infof("[pipeline] 母带就绪：%d 个分段，总时长 %.1f 秒",
		len(timeline.Intervals), float64(master.DurationMs())/1000)

	// 写 WAV 并编码 MP3
	p.reporter.Stage("编码音频")
	wavPath := opts.OutputBase + ".wav"
	if err := audio.WriteWAV(wavPath, master); err != nil {
		return nil, fmt.Errorf("[pipeline] 写入 WAV 失败: %w", err)
	}
	mp3Path := opts.OutputBase + ".mp3"
	encodeErr := audio.EncodeMP3(ctx, wavPath, mp3Path, audio.EncodeOptions{
		BitrateKbps: p.cfg.Output.BitrateKbps,
		Title:       title,
		Artist:      p.cfg.Output.Artist,
		Album:       p.cfg.Output.Album,
		Genre:       p.cfg.Output.Genre,
	})
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if encodeErr != nil {
		logger.Warnf("[pipeline] MP3 编码失败，保留 WAV: %v", encodeErr)
		res.Degraded = true
		res.AudioPath = wavPath
		res.WAVPath = wavPath
	} else {
		res.AudioPath = mp3Path
		if err := os.Remove(wavPath); err != nil {
			logger.Debugf("[pipeline] 清理 WAV 失败: %v", err)
		}
	}

	// 字幕：转写失败只降级，不影响音频产出
	if p.transcriber != nil {
		p.writeSubtitles(ctx, master, timeline, res, opts)
		if err := ctx.Err(); err != nil {
			return nil, err
		}
	}

	// 历史记录：失败只告警
	if p.store != nil {
		id, err := p.store.Add(store.Episode{
			Title:        title,
			Style:        opts.Style,
			AudioPath:    res.AudioPath,
			SubtitlePath: res.SubtitlePath,
			DurationMs:   int64(master.DurationMs()),
			SegmentCount: len(segments),
			FailedCount:  len(res.FailedOrders),
			Timeline:     timeline,
		})
		if err != nil {
			logger.Warnf("[pipeline] 写入节目历史失败: %v", err)
		} else {
			res.EpisodeID = id
		}
	}

	return res, nil
}

// writeSubtitles 转写音频、重切字幕并写出 SRT，必要时生成翻译轨。
func (p *Pipeline) writeSubtitles(ctx context.Context, master *audio.Master, timeline *audio.TimelineIndex, res *Result, opts Options) {
	p.reporter.Stage("转写字幕")

	cues, err := p.transcriber.Transcribe(ctx, transcribe.Input{
		Path:   res.AudioPath,
		Master: master,
	})
	if err != nil {
		logger.Warnf("[pipeline] 字幕转写失败，音频不受影响: %v", err)
		res.Degraded = true
		return
	}

	cues = subtitle.Rechunk(cues, subtitle.RechunkOptions{
		MinCueMs:    p.cfg.Subtitle.MinCueMs,
		MaxCueMs:    p.cfg.Subtitle.MaxCueMs,
		MaxCueChars: p.cfg.Subtitle.MaxCueChars,
	})

	// 诊断：中点落在停顿里的字幕通常意味着转写时间轴漂移
	inGap := 0
	for _, cue := range cues {
		mid := (cue.StartMs + cue.EndMs) / 2
		if _, ok := timeline.At(mid); !ok && mid < timeline.TotalMs() {
			inGap++
		}
	}
	if inGap > 0 {
		logger.Debugf("[pipeline] %d/%d 条字幕的中点落在分段停顿内", inGap, len(cues))
	}

	srtPath := opts.OutputBase + ".srt"
	if err := subtitle.WriteFile(srtPath, cues); err != nil {
		logger.Warnf("[pipeline] 写入字幕失败: %v", err)
		res.Degraded = true
		return
	}
	res.SubtitlePath = srtPath
	logger.Infof("[pipeline] 字幕已写入 %s（%d 条）", srtPath, len(cues))

	if !opts.TranslateSubs {
		return
	}
	translator, err := subtitle.NewTranslator(p.cfg.Subtitle.Translate)
	if err != nil {
		logger.Warnf("[pipeline] 翻译字幕不可用: %v", err)
		res.Degraded = true
		return
	}
	translated, err := translator.TranslateCues(ctx, cues)
	if err != nil {
		logger.Warnf("[pipeline] 翻译字幕失败: %v", err)
		res.Degraded = true
		return
	}
	translatedPath := fmt.Sprintf("%s.%s.srt", opts.OutputBase, p.cfg.Subtitle.Translate.Target)
	if err := subtitle.WriteFile(translatedPath, translated); err != nil {
		logger.Warnf("[pipeline] 写入翻译字幕失败: %v", err)
		res.Degraded = true
		return
	}
	res.TranslatedPath = translatedPath
	logger.Infof("[pipeline] 翻译字幕已写入 %s", translatedPath)
}
