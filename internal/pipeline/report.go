package pipeline

import (
	"fmt"
	"io"
	"os"
	"sync"

	"github.com/mattn/go-isatty"

	"github.com/cadrianmae/gencast/internal/logger"
)

// Reporter 接收流水线的阶段性进度，实现需并发安全。
type Reporter interface {
	// Stage 进入一个新阶段。
	Stage(name string)
	// Progress 报告当前阶段的完成进度，可能由多个工作协程触发。
	Progress(done, total int)
	// Done 流水线结束，成功或失败都会调用。
	Done()
}

type nopReporter struct{}

func (nopReporter) Stage(string)      {}
func (nopReporter) Progress(int, int) {}
func (nopReporter) Done()             {}

// NopReporter 返回不输出任何内容的进度报告器。
func NopReporter() Reporter { return nopReporter{} }

// consoleReporter 在终端上单行刷新进度，非终端环境退化为日志输出。
type consoleReporter struct {
	out io.Writer
	tty bool

	mu    sync.Mutex
	stage string
	dirty bool // 当前行有未换行的输出
}

// NewConsoleReporter 创建面向终端用户的进度报告器。
func NewConsoleReporter() Reporter {
	return &consoleReporter{
		out: os.Stderr,
		tty: isatty.IsTerminal(os.Stderr.Fd()),
	}
}

func (r *consoleReporter) Stage(name string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.tty {
		logger.Infof("[pipeline] %s", name)
		r.stage = name
		return
	}
	if r.dirty {
		fmt.Fprintln(r.out)
	}
	r.stage = name
	fmt.Fprintf(r.out, "%s...", name)
	r.dirty = true
}

func (r *consoleReporter) Progress(done, total int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.tty {
		if done == total {
			logger.Infof("[pipeline] %s 完成 (%d/%d)", r.stage, done, total)
		}
		return
	}
	fmt.Fprintf(r.out, "\r%s %d/%d", r.stage, done, total)
	r.dirty = true
}

func (r *consoleReporter) Done() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.tty && r.dirty {
		fmt.Fprintln(r.out)
		r.dirty = false
	}
	r.stage = ""
}
