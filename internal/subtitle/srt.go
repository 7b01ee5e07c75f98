// Package subtitle 解析、生成和重切 SRT 字幕。
package subtitle

import (
	"fmt"
	"os"
	"strconv"
	"strings"
)

// Cue 一条字幕。时间为相对音频起点的毫秒，区间左闭右开，Index 从 1 开始。
type Cue struct {
	Index   int
	StartMs int
	EndMs   int
	Text    string
}

// DurationMs 返回字幕的显示时长（毫秒）。
func (c Cue) DurationMs() int { return c.EndMs - c.StartMs }

// Parse 解析 SRT 文本为字幕序列。
// 格式异常的块被跳过；内容非空却解析不出任何字幕时返回错误，
// 空白内容返回空序列。
func Parse(content string) ([]Cue, error) {
	content = strings.ReplaceAll(content, "\r\n", "\n")
	trimmed := strings.TrimSpace(content)
	if trimmed == "" {
		return nil, nil
	}

	// 字幕块之间以空行分隔
	blocks := strings.Split(trimmed, "\n\n")
	var cues []Cue

	for _, block := range blocks {
		block = strings.TrimSpace(block)
		if block == "" {
			continue
		}

		lines := strings.Split(block, "\n")
		if len(lines) < 3 {
			continue
		}

		index, err := strconv.Atoi(strings.TrimSpace(lines[0]))
		if err != nil {
			continue
		}

		parts := strings.Split(lines[1], "-->")
		if len(parts) != 2 {
			continue
		}
		startMs, err := parseTimestamp(parts[0])
		if err != nil {
			continue
		}
		endMs, err := parseTimestamp(parts[1])
		if err != nil {
			continue
		}

		text := strings.TrimSpace(strings.Join(lines[2:], "\n"))
		if text == "" {
			continue
		}

		cues = append(cues, Cue{Index: index, StartMs: startMs, EndMs: endMs, Text: text})
	}

	if len(cues) == 0 {
		return nil, fmt.Errorf("[subtitle] SRT 内容中没有可解析的字幕块")
	}
	return cues, nil
}

// Format 将字幕序列渲染为 SRT 文本，索引重新从 1 编号。
func Format(cues []Cue) string {
	var sb strings.Builder
	for i, cue := range cues {
		if i > 0 {
			sb.WriteString("\n")
		}
		sb.WriteString(fmt.Sprintf("%d\n", i+1))
		sb.WriteString(fmt.Sprintf("%s --> %s\n", formatTimestamp(cue.StartMs), formatTimestamp(cue.EndMs)))
		sb.WriteString(cue.Text)
		sb.WriteString("\n")
	}
	return sb.String()
}

// WriteFile 将字幕序列写入 SRT 文件。
func WriteFile(path string, cues []Cue) error {
	if err := os.WriteFile(path, []byte(Format(cues)), 0644); err != nil {
		return fmt.Errorf("[subtitle] 写入字幕文件失败: %w", err)
	}
	return nil
}

// parseTimestamp 解析 HH:MM:SS,mmm 形式的时间戳为毫秒。
// 标准用逗号分隔毫秒，同时容忍句点。
func parseTimestamp(value string) (int, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return 0, fmt.Errorf("时间戳为空")
	}
	value = strings.ReplaceAll(value, ".", ",")
	timeParts := strings.Split(value, ",")
	if len(timeParts) != 2 {
		return 0, fmt.Errorf("无效的时间戳 %q", value)
	}
	hms := strings.Split(timeParts[0], ":")
	if len(hms) != 3 {
		return 0, fmt.Errorf("无效的时间戳 %q", value)
	}
	hours, errH := strconv.Atoi(hms[0])
	minutes, errM := strconv.Atoi(hms[1])
	seconds, errS := strconv.Atoi(hms[2])
	millis, errMS := strconv.Atoi(timeParts[1])
	if errH != nil || errM != nil || errS != nil || errMS != nil {
		return 0, fmt.Errorf("无效的时间戳 %q", value)
	}
	return ((hours*60+minutes)*60+seconds)*1000 + millis, nil
}

// formatTimestamp 将毫秒格式化为 HH:MM:SS,mmm。
func formatTimestamp(ms int) string {
	if ms < 0 {
		ms = 0
	}
	h := ms / 3600000
	m := ms % 3600000 / 60000
	s := ms % 60000 / 1000
	return fmt.Sprintf("%02d:%02d:%02d,%03d", h, m, s, ms%1000)
}
