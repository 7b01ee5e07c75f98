package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/cadrianmae/gencast/internal/synth"
)

func newCacheCommand(ctx *commandContext) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "cache",
		Short: "查看和清理合成缓存",
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			cache, err := openCache(ctx)
			if err != nil {
				return err
			}
			if !cache.Enabled() {
				fmt.Fprintln(out, "合成缓存未启用（在配置文件中设置 tts.cache_mb）")
				return nil
			}

			entries := cache.List()
			if len(entries) == 0 {
				fmt.Fprintln(out, "合成缓存为空")
				return nil
			}

			var totalSize int64
			rows := make([][]string, 0, len(entries))
			for _, e := range entries {
				totalSize += e.Size
				durationMs := int64(0)
				if e.SampleRate > 0 {
					durationMs = int64(e.Samples) * 1000 / int64(e.SampleRate)
				}
				rows = append(rows, []string{
					e.Engine,
					truncateText(e.Text, 32),
					formatDuration(durationMs),
					formatSize(e.Size),
					e.LastUsed,
				})
			}
			fmt.Fprintln(out, renderTable(
				[]string{"引擎", "台词", "时长", "大小", "最近使用"},
				rows,
				[]columnAlignment{alignLeft, alignLeft, alignRight, alignRight, alignLeft},
			))
			fmt.Fprintf(out, "共 %d 个分段，%s（目录 %s）\n",
				len(entries), formatSize(totalSize), cache.CacheDir())
			return nil
		},
	}

	cmd.AddCommand(newCacheClearCommand(ctx))
	return cmd
}

func newCacheClearCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "clear",
		Short: "清空全部缓存分段",
		RunE: func(cmd *cobra.Command, args []string) error {
			cache, err := openCache(ctx)
			if err != nil {
				return err
			}
			if !cache.Enabled() {
				fmt.Fprintln(cmd.OutOrStdout(), "合成缓存未启用，无需清理")
				return nil
			}
			removed := cache.Clear()
			fmt.Fprintf(cmd.OutOrStdout(), "已清理 %d 个缓存分段\n", removed)
			return nil
		},
	}
}

func openCache(ctx *commandContext) (*synth.Cache, error) {
	cfg := ctx.configValue()
	return synth.NewCache(cfg.SynthCacheDir(), cfg.TTS.CacheMB)
}
