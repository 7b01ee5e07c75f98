package subtitle

import (
	"math"
	"strings"
	"unicode/utf8"
)

// RechunkOptions 重切参数。零值字段使用默认值。
type RechunkOptions struct {
	MinCueMs    int // 目标最短显示时长，默认 1000
	MaxCueMs    int // 最长显示时长，默认 3000
	MaxCueChars int // 单条字幕最大字符数，默认 84
}

func (o RechunkOptions) withDefaults() RechunkOptions {
	if o.MinCueMs <= 0 {
		o.MinCueMs = 1000
	}
	if o.MaxCueMs <= o.MinCueMs {
		o.MaxCueMs = 3000
	}
	if o.MaxCueChars <= 0 {
		o.MaxCueChars = 84
	}
	return o
}

// Rechunk 把转写返回的粗粒度时间块重切为适合阅读的短字幕。
//
// 每个时间块在单词边界切分为若干子块，子块的显示时长不超过
// MaxCueMs、字符数不超过 MaxCueChars；块内时间按子块的字符量
// 占比分配，块的总时长保持不变，末尾子块吸收取整误差。
// 所有字幕的索引从 1 重新连续编号。
func Rechunk(blocks []Cue, opts RechunkOptions) []Cue {
	opts = opts.withDefaults()

	var out []Cue
	for _, block := range blocks {
		out = append(out, rechunkBlock(block, opts)...)
	}
	for i := range out {
		out[i].Index = i + 1
	}
	return out
}

// chunk 一个待定字幕子块及其字符权重（不含单词间空格）。
type chunk struct {
	words  []string
	weight int
}

func (c chunk) text() string { return strings.Join(c.words, " ") }

func (c chunk) chars() int {
	n := c.weight
	if len(c.words) > 1 {
		n += len(c.words) - 1
	}
	return n
}

func rechunkBlock(block Cue, opts RechunkOptions) []Cue {
	durMs := block.EndMs - block.StartMs
	text := strings.Join(strings.Fields(block.Text), " ")
	if text == "" || durMs <= 0 {
		return nil
	}

	// 整块已满足约束时原样保留
	if utf8.RuneCountInString(text) <= opts.MaxCueChars && durMs <= opts.MaxCueMs {
		return []Cue{{StartMs: block.StartMs, EndMs: block.EndMs, Text: text}}
	}

	words := splitWords(text, opts.MaxCueChars)
	totalW := 0
	for _, w := range words {
		totalW += utf8.RuneCountInString(w)
	}

	// 单个子块允许的最大权重，对应 MaxCueMs 的时间配额
	maxW := totalW
	if durMs > opts.MaxCueMs {
		maxW = opts.MaxCueMs * totalW / durMs
		if maxW < 1 {
			maxW = 1
		}
	}

	chunks := groupWords(words, maxW, opts.MaxCueChars)
	chunks = rebalanceTrailingRunt(chunks, durMs, totalW, maxW, opts)

	// 按权重占比划分时间边界，末尾子块固定在块结束时刻
	cues := make([]Cue, 0, len(chunks))
	cumW := 0
	prev := block.StartMs
	for i, c := range chunks {
		cumW += c.weight
		boundary := block.StartMs + int(math.Round(float64(durMs)*float64(cumW)/float64(totalW)))
		if boundary <= prev {
			boundary = prev + 1
		}
		if boundary > block.EndMs || i == len(chunks)-1 {
			boundary = block.EndMs
		}
		if boundary > prev {
			cues = append(cues, Cue{StartMs: prev, EndMs: boundary, Text: c.text()})
		}
		prev = boundary
	}
	return cues
}

// splitWords 按空白切词；超过字符上限的超长单词按上限硬切。
func splitWords(text string, maxChars int) []string {
	var words []string
	for _, w := range strings.Fields(text) {
		runes := []rune(w)
		for len(runes) > maxChars {
			words = append(words, string(runes[:maxChars]))
			runes = runes[maxChars:]
		}
		if len(runes) > 0 {
			words = append(words, string(runes))
		}
	}
	return words
}

// groupWords 贪心合并单词：当加入下一个单词会超出字符上限
// 或权重配额时封闭当前子块。
func groupWords(words []string, maxW, maxChars int) []chunk {
	var chunks []chunk
	var cur chunk
	for _, w := range words {
		wRunes := utf8.RuneCountInString(w)
		if len(cur.words) > 0 {
			newChars := cur.chars() + 1 + wRunes
			if newChars > maxChars || cur.weight+wRunes > maxW {
				chunks = append(chunks, cur)
				cur = chunk{}
			}
		}
		cur.words = append(cur.words, w)
		cur.weight += wRunes
	}
	if len(cur.words) > 0 {
		chunks = append(chunks, cur)
	}
	return chunks
}

// rebalanceTrailingRunt 处理块尾过短的子块：贪心打包会把前面的
// 子块填满，留下一个显示时间极短的尾巴。把最后两个子块的单词
// 合并后在权重最均衡且不违反约束的单词边界重新一分为二。
func rebalanceTrailingRunt(chunks []chunk, durMs, totalW, maxW int, opts RechunkOptions) []chunk {
	if len(chunks) < 2 || totalW == 0 {
		return chunks
	}
	last := chunks[len(chunks)-1]
	allocated := durMs * last.weight / totalW
	if allocated >= opts.MinCueMs {
		return chunks
	}

	prev := chunks[len(chunks)-2]
	combined := append(append([]string{}, prev.words...), last.words...)
	combinedW := prev.weight + last.weight

	type candidate struct {
		at    int
		score int
	}
	var candidates []candidate
	leftW := 0
	for i := 0; i < len(combined)-1; i++ {
		leftW += utf8.RuneCountInString(combined[i])
		rightW := combinedW - leftW
		score := leftW - rightW
		if score < 0 {
			score = -score
		}
		candidates = append(candidates, candidate{at: i + 1, score: score})
	}
	// 按均衡程度排序（候选数很小，简单插入即可）
	for i := 1; i < len(candidates); i++ {
		for j := i; j > 0 && candidates[j].score < candidates[j-1].score; j-- {
			candidates[j], candidates[j-1] = candidates[j-1], candidates[j]
		}
	}

	for _, cand := range candidates {
		left := makeChunk(combined[:cand.at])
		right := makeChunk(combined[cand.at:])
		if left.weight > maxW || right.weight > maxW {
			continue
		}
		if left.chars() > opts.MaxCueChars || right.chars() > opts.MaxCueChars {
			continue
		}
		out := append([]chunk{}, chunks[:len(chunks)-2]...)
		return append(out, left, right)
	}
	return chunks
}

func makeChunk(words []string) chunk {
	c := chunk{words: words}
	for _, w := range words {
		c.weight += utf8.RuneCountInString(w)
	}
	return c
}
