package script

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/cadrianmae/gencast/internal/logger"
)

// 对话 max_tokens 预算按源文本长度的两倍估算，并夹在固定区间内。
// 大纲预算取对话预算的一半。
const (
	minDialogueTokens = 2000
	maxDialogueTokens = 5000
	minPlanTokens     = 1500
	maxPlanTokens     = 3000
)

// styles 是预设的对话风格及其提示词片段。
var styles = map[string]string{
	"educational": "an educational tone: HOST1 is a curious learner who asks questions, and HOST2 is a knowledgeable teacher who explains clearly",
	"interview":   "an interview format: HOST1 is the interviewer guiding the conversation, and HOST2 is the expert guest with deep knowledge of the material",
	"casual":      "a casual, friendly conversation between two equally knowledgeable co-hosts who riff off each other",
	"debate":      "a respectful debate: the hosts take opposing viewpoints on the material and challenge each other's arguments",
}

// audiences 是预设的目标听众及其提示词片段。
var audiences = map[string]string{
	"general":   "a general audience with no special background; avoid unexplained jargon",
	"technical": "a technically literate audience comfortable with domain terminology and implementation detail",
	"academic":  "an academic audience that expects precision, nuance, and references to the evidence in the material",
	"beginner":  "complete beginners; explain every concept from scratch with simple analogies",
}

// Options 控制脚本生成的风格与预算。
type Options struct {
	// Style 对话风格，可选 educational/interview/casual/debate。
	Style string
	// Audience 目标听众，可选 general/technical/academic/beginner。
	Audience string
	// Instructions 追加到提示词的自定义要求，可为空。
	Instructions string
	// UnlockTokens 解除对话 max_tokens 上限，用于长文档。
	UnlockTokens bool
}

// StyleNames 返回全部可用风格名，按字典序排列。
func StyleNames() []string {
	names := make([]string, 0, len(styles))
	for name := range styles {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// AudienceNames 返回全部可用听众名，按字典序排列。
func AudienceNames() []string {
	names := make([]string, 0, len(audiences))
	for name := range audiences {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Generator 基于 LLM 把文档内容转写成两人对话脚本。
type Generator struct {
	client *Client
}

// NewGenerator 创建脚本生成器。
func NewGenerator(client *Client) *Generator {
	return &Generator{client: client}
}

// Plan 先为文档生成一份播客大纲，供后续对话生成参考。
func (g *Generator) Plan(ctx context.Context, source string, opts Options) (string, error) {
	styleDesc, audienceDesc, err := resolveOptions(opts)
	if err != nil {
		return "", err
	}

	budget := planTokenBudget(len(source))
	logger.Infof("[script] 生成播客大纲（模型 %s，max_tokens=%d）", g.client.Model(), budget)

	var sb strings.Builder
	sb.WriteString("You are a podcast producer. Read the source material and write a structured episode outline: ")
	sb.WriteString("the key topics in the order they should be discussed, the main points under each topic, ")
	sb.WriteString("and a natural opening and closing.\n")
	fmt.Fprintf(&sb, "The episode uses %s.\n", styleDesc)
	fmt.Fprintf(&sb, "The episode targets %s.\n", audienceDesc)
	if opts.Instructions != "" {
		fmt.Fprintf(&sb, "Additional requirements: %s\n", opts.Instructions)
	}
	sb.WriteString("Respond with the outline only.")

	messages := []Message{
		{Role: "system", Content: sb.String()},
		{Role: "user", Content: source},
	}
	plan, err := g.client.Chat(ctx, messages, budget)
	if err != nil {
		return "", fmt.Errorf("[script] 生成大纲失败: %w", err)
	}
	return strings.TrimSpace(plan), nil
}

// Dialogue 生成 HOST1/HOST2 交替的对话脚本。plan 可为空。
func (g *Generator) Dialogue(ctx context.Context, source string, plan string, opts Options) (string, error) {
	styleDesc, audienceDesc, err := resolveOptions(opts)
	if err != nil {
		return "", err
	}

	budget := dialogueTokenBudget(len(source), opts.UnlockTokens)
	logger.Infof("[script] 生成对话脚本（模型 %s，max_tokens=%d）", g.client.Model(), budget)

	var sb strings.Builder
	sb.WriteString("You are a podcast script writer. Turn the source material into a natural spoken dialogue ")
	sb.WriteString("between two hosts, HOST1 and HOST2.\n")
	fmt.Fprintf(&sb, "The conversation uses %s.\n", styleDesc)
	fmt.Fprintf(&sb, "The conversation targets %s.\n", audienceDesc)
	sb.WriteString("Rules:\n")
	sb.WriteString("- Every line must start with \"HOST1:\" or \"HOST2:\" followed by what that host says.\n")
	sb.WriteString("- Alternate speakers naturally; short reactions are fine.\n")
	sb.WriteString("- Cover the material faithfully; do not invent facts that are not in it.\n")
	sb.WriteString("- Write only the dialogue, with no headings, stage directions, or commentary.\n")
	if opts.Instructions != "" {
		fmt.Fprintf(&sb, "Additional requirements: %s\n", opts.Instructions)
	}
	if plan != "" {
		sb.WriteString("Follow this episode outline:\n")
		sb.WriteString(plan)
		sb.WriteString("\n")
	}

	messages := []Message{
		{Role: "system", Content: sb.String()},
		{Role: "user", Content: source},
	}
	dialogue, err := g.client.Chat(ctx, messages, budget)
	if err != nil {
		return "", fmt.Errorf("[script] 生成对话失败: %w", err)
	}
	return strings.TrimSpace(dialogue), nil
}

// resolveOptions 把风格和听众名解析成提示词片段，未知名字返回错误。
func resolveOptions(opts Options) (styleDesc, audienceDesc string, err error) {
	style := opts.Style
	if style == "" {
		style = "educational"
	}
	audience := opts.Audience
	if audience == "" {
		audience = "general"
	}

	styleDesc, ok := styles[style]
	if !ok {
		return "", "", fmt.Errorf("[script] 未知的对话风格: %q（可选 %s）",
			style, strings.Join(StyleNames(), "/"))
	}
	audienceDesc, ok = audiences[audience]
	if !ok {
		return "", "", fmt.Errorf("[script] 未知的目标听众: %q（可选 %s）",
			audience, strings.Join(AudienceNames(), "/"))
	}
	return styleDesc, audienceDesc, nil
}

// dialogueTokenBudget 估算对话生成的 max_tokens。
func dialogueTokenBudget(sourceLen int, unlocked bool) int {
	budget := sourceLen * 2
	if budget < minDialogueTokens {
		budget = minDialogueTokens
	}
	if !unlocked && budget > maxDialogueTokens {
		budget = maxDialogueTokens
	}
	return budget
}

// planTokenBudget 估算大纲生成的 max_tokens，取对话预算的一半。
func planTokenBudget(sourceLen int) int {
	budget := sourceLen
	if budget < minPlanTokens {
		budget = minPlanTokens
	}
	if budget > maxPlanTokens {
		budget = maxPlanTokens
	}
	return budget
}
