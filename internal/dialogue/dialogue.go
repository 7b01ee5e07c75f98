// Package dialogue 解析两人对话脚本，将其拆分为有序的说话分段。
package dialogue

import (
	"errors"
	"strings"
)

// ErrNoSegments 表示脚本中解析不出任何对话分段。
var ErrNoSegments = errors.New("对话脚本中没有可用的分段")

// Speaker 标识对话中的说话人。
type Speaker int

const (
	Host1 Speaker = iota
	Host2
)

// String 返回脚本中使用的说话人标签。
func (s Speaker) String() string {
	if s == Host2 {
		return "HOST2"
	}
	return "HOST1"
}

// Index 返回说话人的序号（HOST1 为 0，HOST2 为 1），
// 用于在音色、声像位置等配置对中选择。
func (s Speaker) Index() int {
	if s == Host2 {
		return 1
	}
	return 0
}

// Segment 一条对话分段，Order 为其在脚本中的位置（从 0 开始）。
type Segment struct {
	Speaker Speaker
	Text    string
	Order   int
}

const (
	labelHost1 = "HOST1:"
	labelHost2 = "HOST2:"
)

// Parse 将两人对话脚本解析为有序分段。
//
// 行首的 HOST1:/HOST2: 标签开启新分段，标签后的内容为分段起始文本；
// 不带标签的行并入当前分段，用单个空格连接；空行跳过；
// Markdown 加粗标记（**）在匹配前剥离；第一个标签之前的行没有归属，丢弃。
// 文本为空的分段不保留。解析不出任何分段时返回 ErrNoSegments。
func Parse(text string) ([]Segment, error) {
	var segments []Segment
	var parts []string
	current := Host1
	active := false

	flush := func() {
		if !active {
			return
		}
		joined := strings.Join(parts, " ")
		if joined != "" {
			segments = append(segments, Segment{
				Speaker: current,
				Text:    joined,
				Order:   len(segments),
			})
		}
		parts = nil
	}

	for _, raw := range strings.Split(text, "\n") {
		line := strings.TrimSpace(raw)
		line = strings.ReplaceAll(line, "**", "")
		if line == "" {
			continue
		}

		switch {
		case strings.HasPrefix(line, labelHost1):
			flush()
			current = Host1
			active = true
			if rest := strings.TrimSpace(line[len(labelHost1):]); rest != "" {
				parts = append(parts, rest)
			}
		case strings.HasPrefix(line, labelHost2):
			flush()
			current = Host2
			active = true
			if rest := strings.TrimSpace(line[len(labelHost2):]); rest != "" {
				parts = append(parts, rest)
			}
		case active:
			parts = append(parts, line)
		}
	}
	flush()

	if len(segments) == 0 {
		return nil, ErrNoSegments
	}
	return segments, nil
}
