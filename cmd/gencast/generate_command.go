package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/cadrianmae/gencast/internal/audio"
	"github.com/cadrianmae/gencast/internal/config"
	"github.com/cadrianmae/gencast/internal/document"
	"github.com/cadrianmae/gencast/internal/logger"
	"github.com/cadrianmae/gencast/internal/pipeline"
	"github.com/cadrianmae/gencast/internal/script"
	"github.com/cadrianmae/gencast/internal/store"
)

func newGenerateCommand(ctx *commandContext) *cobra.Command {
	var (
		output        string
		title         string
		style         string
		audience      string
		instructions  string
		scriptFile    string
		withPlan      bool
		saveScript    bool
		unlockTokens  bool
		strict        bool
		translateSubs bool
		play          bool
	)

	cmd := &cobra.Command{
		Use:   "generate [源文件或 URL]...",
		Short: "从源材料生成一期播客节目",
		Long: `generate 读取文本、Markdown、PDF、网页或 RSS 订阅源，
用大模型撰写双主持人对话脚本，逐段合成语音并混音为一期节目。

多个源材料会合并为同一期节目的素材。已有对话脚本时
可用 --script-file 跳过撰稿，直接进入合成。`,
		Args: cobra.ArbitraryArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if scriptFile == "" && len(args) == 0 {
				return fmt.Errorf("没有指定任何源材料（文件、URL，或改用 --script-file 提供现成脚本）")
			}
			cfg := ctx.configValue()
			base := outputBase(output)

			runCtx, cancel := context.WithCancel(cmd.Context())
			defer cancel()

			// 监听系统信号，中止后续阶段
			sigCh := make(chan os.Signal, 1)
			signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
			defer signal.Stop(sigCh)
			go func() {
				select {
				case sig := <-sigCh:
					logger.Warnf("[main] 收到信号 %v，正在中止生成...", sig)
					cancel()
				case <-runCtx.Done():
				}
			}()

			// 同一数据目录同时只允许一次生成
			lock, err := store.AcquireLock(cfg.Storage.DataDir)
			if err != nil {
				return err
			}
			defer lock.Release()

			st, err := store.Open(cfg.Storage.DataDir)
			if err != nil {
				logger.Warnf("[main] 打开节目历史失败，本次生成将不入库: %v", err)
				st = nil
			} else {
				defer st.Close()
			}

			dialogueText, err := prepareScript(runCtx, cfg, args, scriptArgs{
				file:         scriptFile,
				style:        style,
				audience:     audience,
				instructions: instructions,
				withPlan:     withPlan,
				save:         saveScript,
				unlockTokens: unlockTokens,
				base:         base,
			})
			if err != nil {
				return err
			}

			p, err := pipeline.New(cfg, st, pipeline.NewConsoleReporter())
			if err != nil {
				return err
			}
			res, err := p.Run(runCtx, dialogueText, pipeline.Options{
				OutputBase:    base,
				Title:         title,
				Style:         style,
				Strict:        strict,
				TranslateSubs: translateSubs,
			})
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "生成完成：%s（%d 个分段，时长 %s）\n",
				res.AudioPath, res.SegmentCount, formatDuration(int64(res.Master.DurationMs())))
			if res.SubtitlePath != "" {
				fmt.Fprintf(out, "字幕：%s\n", res.SubtitlePath)
			}
			if res.TranslatedPath != "" {
				fmt.Fprintf(out, "翻译字幕：%s\n", res.TranslatedPath)
			}
			if len(res.FailedOrders) > 0 {
				fmt.Fprintf(out, "注意：%d 个分段合成失败（序号 %v），已跳过\n",
					len(res.FailedOrders), res.FailedOrders)
			}

			if play {
				playMaster(runCtx, res)
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&output, "output", "o", "episode", "输出路径前缀（生成 <前缀>.mp3 等文件）")
	cmd.Flags().StringVar(&title, "title", "", "节目标题，默认取输出文件名")
	cmd.Flags().StringVar(&style, "style", "", fmt.Sprintf("对话风格（%s）", strings.Join(script.StyleNames(), "/")))
	cmd.Flags().StringVar(&audience, "audience", "", fmt.Sprintf("目标听众（%s）", strings.Join(script.AudienceNames(), "/")))
	cmd.Flags().StringVar(&instructions, "instructions", "", "附加给撰稿模型的自由指示")
	cmd.Flags().StringVar(&scriptFile, "script-file", "", "使用现成的对话脚本文件，跳过大模型撰稿")
	cmd.Flags().BoolVar(&withPlan, "plan", false, "先生成节目大纲再撰写对话，长素材效果更好")
	cmd.Flags().BoolVar(&saveScript, "save-script", false, "把生成的对话脚本保存为 <前缀>.script.txt")
	cmd.Flags().BoolVar(&unlockTokens, "unlock-tokens", false, "解除对话脚本的长度上限")
	cmd.Flags().BoolVar(&strict, "strict", false, "任一分段合成失败即中止，不产出降级音频")
	cmd.Flags().BoolVar(&translateSubs, "translate-subs", false, "额外生成翻译字幕轨")
	cmd.Flags().BoolVar(&play, "play", false, "生成完成后在本机播放")

	return cmd
}

type scriptArgs struct {
	file         string
	style        string
	audience     string
	instructions string
	withPlan     bool
	save         bool
	unlockTokens bool
	base         string
}

// prepareScript 返回待合成的对话脚本：优先使用现成文件，
// 否则聚合源材料并调用大模型撰写。
func prepareScript(ctx context.Context, cfg *config.Config, inputs []string, a scriptArgs) (string, error) {
	if a.file != "" {
		if len(inputs) > 0 {
			logger.Warnf("[main] 已指定 --script-file，忽略 %d 个源材料参数", len(inputs))
		}
		data, err := os.ReadFile(a.file)
		if err != nil {
			return "", fmt.Errorf("读取对话脚本失败: %w", err)
		}
		return string(data), nil
	}

	source, err := document.NewLoader().Load(ctx, inputs)
	if err != nil {
		return "", err
	}

	client, err := script.NewClient(cfg.LLM)
	if err != nil {
		return "", err
	}
	gen := script.NewGenerator(client)
	opts := script.Options{
		Style:        a.style,
		Audience:     a.audience,
		Instructions: a.instructions,
		UnlockTokens: a.unlockTokens,
	}

	plan := ""
	if a.withPlan {
		plan, err = gen.Plan(ctx, source, opts)
		if err != nil {
			return "", err
		}
		if a.save {
			savePath := a.base + ".plan.txt"
			if err := os.WriteFile(savePath, []byte(plan), 0644); err != nil {
				logger.Warnf("[main] 保存节目大纲失败: %v", err)
			} else {
				logger.Infof("[main] 节目大纲已保存到 %s", savePath)
			}
		}
	}

	text, err := gen.Dialogue(ctx, source, plan, opts)
	if err != nil {
		return "", err
	}
	if a.save {
		savePath := a.base + ".script.txt"
		if err := os.WriteFile(savePath, []byte(text), 0644); err != nil {
			logger.Warnf("[main] 保存对话脚本失败: %v", err)
		} else {
			logger.Infof("[main] 对话脚本已保存到 %s", savePath)
		}
	}
	return text, nil
}

// playMaster 在本机播放成品，播放失败只告警（音频已落盘）。
func playMaster(ctx context.Context, res *pipeline.Result) {
	player, err := audio.NewPlayer(2)
	if err != nil {
		logger.Warnf("[main] 初始化播放设备失败: %v", err)
		return
	}
	defer player.Close()
	logger.Infof("[main] 正在播放 %s（Ctrl+C 停止）", res.AudioPath)
	if err := player.PlayMaster(ctx, res.Master); err != nil && ctx.Err() == nil {
		logger.Warnf("[main] 播放失败: %v", err)
	}
}

// outputBase 去掉用户顺手带上的音频扩展名，统一为输出前缀。
func outputBase(output string) string {
	for _, ext := range []string{".mp3", ".wav", ".srt"} {
		if strings.HasSuffix(strings.ToLower(output), ext) {
			return output[:len(output)-len(ext)]
		}
	}
	return output
}
