package main

import "fmt"

// formatDuration 把毫秒时长格式化为 M:SS 或 H:MM:SS。
func formatDuration(ms int64) string {
	totalSec := (ms + 500) / 1000
	h := totalSec / 3600
	m := totalSec % 3600 / 60
	s := totalSec % 60
	if h > 0 {
		return fmt.Sprintf("%d:%02d:%02d", h, m, s)
	}
	return fmt.Sprintf("%d:%02d", m, s)
}

// formatClock 把毫秒时刻格式化为 M:SS.m，保留十分之一秒，
// 供时间线表格对齐阅读。
func formatClock(ms int) string {
	tenth := (ms + 50) / 100
	m := tenth / 600
	s := tenth % 600 / 10
	d := tenth % 10
	return fmt.Sprintf("%d:%02d.%d", m, s, d)
}

// shortID 取 UUID 的首段作为表格里的短标识。
func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

// truncateText 截断过长的文本用于表格显示，按字符而非字节截断。
func truncateText(s string, max int) string {
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	return string(runes[:max]) + "…"
}

// formatSize 把字节数格式化为可读的 KB/MB。
func formatSize(bytes int64) string {
	const mb = 1024 * 1024
	if bytes >= mb {
		return fmt.Sprintf("%.1f MB", float64(bytes)/mb)
	}
	return fmt.Sprintf("%d KB", (bytes+1023)/1024)
}
