package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/cadrianmae/gencast/internal/config"
)

// voiceEntry 一条可选音色。
type voiceEntry struct {
	engine string
	voice  string
	desc   string
}

// 各引擎支持的音色。OpenAI 与腾讯云为官方固定列表的常用子集，
// Edge 音色数以百计，这里只列出适合播客对谈的几种。
var voiceCatalog = []voiceEntry{
	{"openai", "alloy", "中性，偏温暖"},
	{"openai", "echo", "沉稳男声"},
	{"openai", "fable", "英式叙事腔"},
	{"openai", "onyx", "低沉男声"},
	{"openai", "nova", "明亮女声"},
	{"openai", "shimmer", "柔和女声"},
	{"edge", "en-US-JennyNeural", "美式英语女声"},
	{"edge", "en-US-GuyNeural", "美式英语男声"},
	{"edge", "en-US-AriaNeural", "美式英语女声，新闻腔"},
	{"edge", "en-GB-SoniaNeural", "英式英语女声"},
	{"edge", "zh-CN-XiaoxiaoNeural", "普通话女声"},
	{"edge", "zh-CN-YunxiNeural", "普通话男声"},
	{"edge", "zh-CN-YunjianNeural", "普通话男声，旁白腔"},
	{"tencent", "1001", "智瑜，知性女声"},
	{"tencent", "1017", "智蓉，情感女声"},
	{"tencent", "1018", "智靖，情感男声"},
	{"tencent", "101001", "智瑜（精品版）"},
	{"tencent", "101004", "智云，通用男声"},
}

func newVoicesCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "voices",
		Short: "列出可选的语音合成音色",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := ctx.configValue()

			catalog := voiceCatalog
			// piper 的音色由本地模型文件决定，按配置动态列出
			if cfg.TTS.Piper.Host1Model != "" {
				catalog = append(catalog, voiceEntry{"piper", cfg.TTS.Piper.Host1Model, "本地模型"})
			}
			if cfg.TTS.Piper.Host2Model != "" && cfg.TTS.Piper.Host2Model != cfg.TTS.Piper.Host1Model {
				catalog = append(catalog, voiceEntry{"piper", cfg.TTS.Piper.Host2Model, "本地模型"})
			}

			rows := make([][]string, 0, len(catalog))
			for _, v := range catalog {
				rows = append(rows, []string{v.engine, v.voice, v.desc, assignedHost(cfg, v)})
			}
			out := cmd.OutOrStdout()
			fmt.Fprintln(out, renderTable(
				[]string{"引擎", "音色", "说明", "当前"},
				rows,
				[]columnAlignment{alignLeft, alignLeft, alignLeft, alignLeft},
			))
			fmt.Fprintf(out, "当前引擎：%s。在配置文件的 tts 段选择引擎与两位主持人的音色。\n", cfg.TTS.Engine)
			return nil
		},
	}
}

// assignedHost 返回该音色在当前配置中的角色标记。
func assignedHost(cfg *config.Config, v voiceEntry) string {
	if v.engine != cfg.TTS.Engine {
		return ""
	}
	var host1, host2 string
	switch v.engine {
	case "openai":
		host1, host2 = cfg.TTS.OpenAI.Host1Voice, cfg.TTS.OpenAI.Host2Voice
	case "edge":
		host1, host2 = cfg.TTS.Edge.Host1Voice, cfg.TTS.Edge.Host2Voice
	case "tencent":
		host1 = strconv.FormatInt(cfg.TTS.Tencent.Host1Voice, 10)
		host2 = strconv.FormatInt(cfg.TTS.Tencent.Host2Voice, 10)
	case "piper":
		host1, host2 = cfg.TTS.Piper.Host1Model, cfg.TTS.Piper.Host2Model
	}
	switch v.voice {
	case host1:
		return "HOST1"
	case host2:
		return "HOST2"
	}
	return ""
}
