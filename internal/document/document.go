// Package document 读取播客的源材料：本地文档、网页和 RSS 订阅源。
package document

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/exec"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/mmcdole/gofeed"
	"golang.org/x/net/html"

	"github.com/cadrianmae/gencast/internal/logger"
)

const (
	defaultFetchTimeout = 30 * time.Second
	defaultMaxFeedItems = 10               // 每个订阅源取用的最大条目数
	maxFetchBytes       = 10 * 1024 * 1024 // 网页响应体上限
)

// Loader 把各种来源的输入统一成纯文本。
type Loader struct {
	httpClient   *http.Client
	parser       *gofeed.Parser
	maxFeedItems int
}

// NewLoader 创建源材料读取器。
func NewLoader() *Loader {
	return &Loader{
		httpClient:   &http.Client{Timeout: defaultFetchTimeout},
		parser:       gofeed.NewParser(),
		maxFeedItems: defaultMaxFeedItems,
	}
}

// Load 读取全部输入并拼接成一份源文本。
// 单个输入直接返回其内容；多个输入用 "=== 名称 ===" 标题分隔。
func (l *Loader) Load(ctx context.Context, inputs []string) (string, error) {
	if len(inputs) == 0 {
		return "", fmt.Errorf("[document] 没有指定任何源材料")
	}

	type section struct {
		name    string
		content string
	}
	sections := make([]section, 0, len(inputs))
	for _, input := range inputs {
		name, content, err := l.loadOne(ctx, input)
		if err != nil {
			return "", err
		}
		if content == "" {
			return "", fmt.Errorf("[document] %s 中没有可用的文本内容", name)
		}
		logger.Infof("[document] 已读取 %s（%d 字符）", name, len([]rune(content)))
		sections = append(sections, section{name: name, content: content})
	}

	if len(sections) == 1 {
		return sections[0].content, nil
	}
	var sb strings.Builder
	for i, sec := range sections {
		if i > 0 {
			sb.WriteString("\n\n")
		}
		fmt.Fprintf(&sb, "=== %s ===\n\n%s", sec.name, sec.content)
	}
	return sb.String(), nil
}

// loadOne 读取单个输入，返回展示名和提取出的文本。
func (l *Loader) loadOne(ctx context.Context, input string) (name, content string, err error) {
	if strings.HasPrefix(input, "http://") || strings.HasPrefix(input, "https://") {
		content, err = l.fetchURL(ctx, input)
		return input, content, err
	}

	name = filepath.Base(input)
	switch strings.ToLower(filepath.Ext(input)) {
	case ".pdf":
		content, err = extractPDF(ctx, input)
	default:
		// .md/.txt 以及其他文本文件直接读取
		var data []byte
		data, err = os.ReadFile(input)
		if err != nil {
			err = fmt.Errorf("[document] 读取文件失败: %w", err)
			break
		}
		content = strings.TrimSpace(string(data))
	}
	return name, content, err
}

// fetchURL 抓取网页或订阅源并提取文本。
// 响应体能解析成 RSS/Atom 时按订阅源处理，否则按 HTML 网页处理。
func (l *Loader) fetchURL(ctx context.Context, url string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, "GET", url, nil)
	if err != nil {
		return "", fmt.Errorf("[document] 创建请求失败: %w", err)
	}
	req.Header.Set("User-Agent", "gencast/1.0")

	resp, err := l.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("[document] 抓取 %s 失败: %w", url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("[document] 抓取 %s 失败: HTTP %d", url, resp.StatusCode)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxFetchBytes))
	if err != nil {
		return "", fmt.Errorf("[document] 读取响应失败: %w", err)
	}

	if feed, err := l.parser.ParseString(string(data)); err == nil && feed != nil {
		logger.Debugf("[document] %s 识别为订阅源（%d 条）", url, len(feed.Items))
		return l.feedToText(feed), nil
	}
	return htmlToText(data), nil
}

// feedToText 把订阅源条目整理成纯文本。
func (l *Loader) feedToText(feed *gofeed.Feed) string {
	var sb strings.Builder
	if feed.Title != "" {
		sb.WriteString(feed.Title)
		sb.WriteString("\n\n")
	}
	for i, item := range feed.Items {
		if i >= l.maxFeedItems {
			break
		}
		if item.Title != "" {
			sb.WriteString(item.Title)
			sb.WriteString("\n")
		}
		body := item.Content
		if body == "" {
			body = item.Description
		}
		if body = htmlToText([]byte(body)); body != "" {
			sb.WriteString(body)
			sb.WriteString("\n")
		}
		sb.WriteString("\n")
	}
	return strings.TrimSpace(sb.String())
}

// extractPDF 通过 pdftotext 提取 PDF 文本。
func extractPDF(ctx context.Context, path string) (string, error) {
	if _, err := exec.LookPath("pdftotext"); err != nil {
		return "", fmt.Errorf("[document] 未找到 pdftotext，请先安装 poppler-utils: %w", err)
	}
	if _, err := os.Stat(path); err != nil {
		return "", fmt.Errorf("[document] 读取文件失败: %w", err)
	}

	cmd := exec.CommandContext(ctx, "pdftotext", "-enc", "UTF-8", path, "-")
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		logger.Warnf("[document] pdftotext 输出: %s", stderr.String())
		return "", fmt.Errorf("[document] 提取 PDF 文本失败: %w", err)
	}
	return strings.TrimSpace(stdout.String()), nil
}

var (
	spaceRe = regexp.MustCompile(`[ \t]+`)
	blankRe = regexp.MustCompile(`\n{3,}`)
)

// htmlToText 提取 HTML 中的可读文本，跳过脚本和样式。
func htmlToText(data []byte) string {
	tok := html.NewTokenizer(bytes.NewReader(data))
	var sb strings.Builder
	var skipTag string
	for {
		switch tok.Next() {
		case html.ErrorToken:
			return tidyText(sb.String())
		case html.StartTagToken:
			name, _ := tok.TagName()
			tag := string(name)
			switch tag {
			case "script", "style", "noscript":
				if skipTag == "" {
					skipTag = tag
				}
			case "br":
				sb.WriteString("\n")
			}
		case html.SelfClosingTagToken:
			if name, _ := tok.TagName(); string(name) == "br" {
				sb.WriteString("\n")
			}
		case html.EndTagToken:
			name, _ := tok.TagName()
			tag := string(name)
			if tag == skipTag {
				skipTag = ""
				continue
			}
			switch tag {
			case "p", "div", "li", "h1", "h2", "h3", "h4", "h5", "h6", "tr", "article", "section":
				sb.WriteString("\n")
			}
		case html.TextToken:
			if skipTag == "" {
				sb.Write(tok.Text())
				sb.WriteString(" ")
			}
		}
	}
}

// tidyText 合并多余空白，保留段落结构。
func tidyText(s string) string {
	s = spaceRe.ReplaceAllString(s, " ")
	lines := strings.Split(s, "\n")
	for i, line := range lines {
		lines[i] = strings.TrimSpace(line)
	}
	s = strings.Join(lines, "\n")
	s = blankRe.ReplaceAllString(s, "\n\n")
	return strings.TrimSpace(s)
}
