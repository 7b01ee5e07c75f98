// Package synth 并发编排 TTS 合成：按说话人路由引擎、限制并发数、
// 对临时故障重试，并把单个分段的失败隔离在该分段内。
package synth

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/cadrianmae/gencast/internal/dialogue"
	"github.com/cadrianmae/gencast/internal/logger"
	"github.com/cadrianmae/gencast/internal/tts"
)

const (
	defaultBackoff = time.Second
	maxBackoff     = 15 * time.Second
)

// SegmentError 记录单个分段的合成失败。
type SegmentError struct {
	Order    int
	Speaker  dialogue.Speaker
	Attempts int
	Err      error
}

func (e *SegmentError) Error() string {
	return fmt.Sprintf("分段 %d (%s) 合成失败（尝试 %d 次）: %v",
		e.Order, e.Speaker, e.Attempts, e.Err)
}

func (e *SegmentError) Unwrap() error { return e.Err }

// Result 单个分段的合成结果。Err 非 nil 时该分段失败，样本为空。
type Result struct {
	Segment    dialogue.Segment
	Mono       []float32
	SampleRate int
	Attempts   int
	Err        error
}

// Options 合成编排参数。
type Options struct {
	Concurrency  int           // 并发工作协程数，最少 1
	MaxRetries   int           // 每个分段首次尝试之后最多重试的次数
	Timeout      time.Duration // 单次合成请求超时，0 表示不限制
	RetryBackoff time.Duration // 首次重试前的等待时间，之后指数增长，0 使用默认值

	// OnProgress 每完成一个分段后回调（含失败的分段），可为 nil。
	// 回调可能由不同工作协程触发，实现需自行保证并发安全。
	OnProgress func(done, total int)

	// Cache 合成分段缓存，可为 nil。命中时跳过引擎调用。
	Cache *Cache
}

// Orchestrator 并发驱动两位主持人的 TTS 引擎合成所有分段。
type Orchestrator struct {
	host1 tts.Engine
	host2 tts.Engine
	opts  Options
}

// New 创建合成编排器。
func New(host1, host2 tts.Engine, opts Options) *Orchestrator {
	if opts.Concurrency < 1 {
		opts.Concurrency = 1
	}
	if opts.MaxRetries < 0 {
		opts.MaxRetries = 0
	}
	if opts.RetryBackoff <= 0 {
		opts.RetryBackoff = defaultBackoff
	}
	return &Orchestrator{host1: host1, host2: host2, opts: opts}
}

// SynthesizeAll 并发合成所有分段，返回与输入同序的结果切片。
// 单个分段的失败不会中止其他分段，失败记录在对应 Result.Err 中；
// ctx 取消后未开始的分段直接标记为失败，不再发起请求。
func (o *Orchestrator) SynthesizeAll(ctx context.Context, segments []dialogue.Segment) []Result {
	results := make([]Result, len(segments))
	if len(segments) == 0 {
		return results
	}

	workers := o.opts.Concurrency
	if workers > len(segments) {
		workers = len(segments)
	}

	logger.Infof("[synth] 开始合成 %d 个分段（并发=%d，重试=%d）",
		len(segments), workers, o.opts.MaxRetries)

	jobs := make(chan int)
	var wg sync.WaitGroup
	var done atomic.Int64
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range jobs {
				results[i] = o.synthesizeOne(ctx, segments[i])
				if o.opts.OnProgress != nil {
					o.opts.OnProgress(int(done.Add(1)), len(segments))
				}
			}
		}()
	}

	for i := range segments {
		jobs <- i
	}
	close(jobs)
	wg.Wait()

	failed := Failures(results)
	if len(failed) > 0 {
		logger.Warnf("[synth] 合成完成，%d/%d 个分段失败", len(failed), len(segments))
	} else {
		logger.Infof("[synth] 全部 %d 个分段合成完成", len(segments))
	}

	return results
}

// synthesizeOne 合成单个分段，对临时故障做指数退避重试。
func (o *Orchestrator) synthesizeOne(ctx context.Context, seg dialogue.Segment) Result {
	res := Result{Segment: seg}

	if err := ctx.Err(); err != nil {
		res.Err = &SegmentError{Order: seg.Order, Speaker: seg.Speaker, Err: err}
		return res
	}

	engine := o.host1
	if seg.Speaker == dialogue.Host2 {
		engine = o.host2
	}

	if mono, rate, ok := o.opts.Cache.Lookup(engine.Name(), seg.Text); ok {
		res.Mono = mono
		res.SampleRate = rate
		logger.Debugf("[synth] 分段 %d (%s) 命中合成缓存: %d 个样本 @ %d Hz",
			seg.Order, seg.Speaker, len(mono), rate)
		return res
	}

	maxAttempts := o.opts.MaxRetries + 1
	backoff := o.opts.RetryBackoff
	var lastErr error

	for attempt := 1; attempt <= maxAttempts; attempt++ {
		res.Attempts = attempt

		attemptCtx := ctx
		var cancel context.CancelFunc
		if o.opts.Timeout > 0 {
			attemptCtx, cancel = context.WithTimeout(ctx, o.opts.Timeout)
		}
		samples, rate, err := engine.Synthesize(attemptCtx, seg.Text)
		if cancel != nil {
			cancel()
		}

		if err == nil {
			res.Mono = samples
			res.SampleRate = rate
			logger.Debugf("[synth] 分段 %d (%s) 合成完成: %d 个样本 @ %d Hz",
				seg.Order, seg.Speaker, len(samples), rate)
			// 缓存失败只影响下次生成的速度，不影响本次结果
			if cacheErr := o.opts.Cache.Store(engine.Name(), seg.Text, samples, rate); cacheErr != nil {
				logger.Warnf("[synth] 写入合成缓存失败: %v", cacheErr)
			}
			return res
		}
		lastErr = err

		// 上层取消时立即结束，不算作可重试故障
		if ctx.Err() != nil {
			break
		}
		if attempt == maxAttempts || !tts.Transient(err) {
			break
		}

		logger.Warnf("[synth] 分段 %d 第 %d 次尝试失败，%v 后重试: %v",
			seg.Order, attempt, backoff, err)
		select {
		case <-time.After(backoff):
		case <-ctx.Done():
			lastErr = ctx.Err()
			res.Err = &SegmentError{Order: seg.Order, Speaker: seg.Speaker, Attempts: res.Attempts, Err: lastErr}
			return res
		}
		backoff *= 2
		if backoff > maxBackoff {
			backoff = maxBackoff
		}
	}

	res.Err = &SegmentError{Order: seg.Order, Speaker: seg.Speaker, Attempts: res.Attempts, Err: lastErr}
	logger.Errorf("[synth] %v", res.Err)
	return res
}

// Failures 提取所有失败分段的错误，按分段顺序排列。
func Failures(results []Result) []*SegmentError {
	var errs []*SegmentError
	for _, r := range results {
		if r.Err == nil {
			continue
		}
		if segErr, ok := r.Err.(*SegmentError); ok {
			errs = append(errs, segErr)
		} else {
			errs = append(errs, &SegmentError{
				Order:    r.Segment.Order,
				Speaker:  r.Segment.Speaker,
				Attempts: r.Attempts,
				Err:      r.Err,
			})
		}
	}
	return errs
}
