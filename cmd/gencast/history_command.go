package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/cadrianmae/gencast/internal/store"
)

func newHistoryCommand(ctx *commandContext) *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "history",
		Short: "查看和管理生成过的节目",
		RunE: func(cmd *cobra.Command, args []string) error {
			st, err := store.Open(ctx.configValue().Storage.DataDir)
			if err != nil {
				return err
			}
			defer st.Close()

			episodes, err := st.List(limit)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if len(episodes) == 0 {
				fmt.Fprintln(out, "还没有生成记录")
				return nil
			}

			rows := make([][]string, 0, len(episodes))
			for _, ep := range episodes {
				failed := "-"
				if ep.FailedCount > 0 {
					failed = strconv.Itoa(ep.FailedCount)
				}
				rows = append(rows, []string{
					shortID(ep.ID),
					ep.Title,
					ep.Style,
					formatDuration(ep.DurationMs),
					strconv.Itoa(ep.SegmentCount),
					failed,
					ep.CreatedAt.Format("2006-01-02 15:04"),
				})
			}
			fmt.Fprintln(out, renderTable(
				[]string{"ID", "标题", "风格", "时长", "分段", "失败", "生成时间"},
				rows,
				[]columnAlignment{alignLeft, alignLeft, alignLeft, alignRight, alignRight, alignRight, alignLeft},
			))
			return nil
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 20, "最多显示的记录条数，0 表示全部")

	cmd.AddCommand(newHistoryShowCommand(ctx))
	cmd.AddCommand(newHistoryDeleteCommand(ctx))
	return cmd
}

func newHistoryShowCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "show <节目 ID>",
		Short: "显示单期节目的详情与分段时间线",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			st, err := store.Open(ctx.configValue().Storage.DataDir)
			if err != nil {
				return err
			}
			defer st.Close()

			ep, err := resolveEpisode(st, args[0])
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "ID:       %s\n", ep.ID)
			fmt.Fprintf(out, "标题:     %s\n", ep.Title)
			if ep.Style != "" {
				fmt.Fprintf(out, "风格:     %s\n", ep.Style)
			}
			fmt.Fprintf(out, "音频:     %s\n", ep.AudioPath)
			if ep.SubtitlePath != "" {
				fmt.Fprintf(out, "字幕:     %s\n", ep.SubtitlePath)
			}
			fmt.Fprintf(out, "时长:     %s\n", formatDuration(ep.DurationMs))
			fmt.Fprintf(out, "分段:     %d（失败 %d）\n", ep.SegmentCount, ep.FailedCount)
			fmt.Fprintf(out, "生成时间: %s\n", ep.CreatedAt.Format("2006-01-02 15:04:05"))

			if ep.Timeline == nil || len(ep.Timeline.Intervals) == 0 {
				return nil
			}
			fmt.Fprintf(out, "\n分段时间线（停顿 %dms）：\n", ep.Timeline.GapMs)
			rows := make([][]string, 0, len(ep.Timeline.Intervals))
			for _, iv := range ep.Timeline.Intervals {
				rows = append(rows, []string{
					strconv.Itoa(iv.Order),
					formatClock(iv.StartMs),
					formatClock(iv.EndMs),
				})
			}
			fmt.Fprintln(out, renderTable(
				[]string{"序号", "开始", "结束"},
				rows,
				[]columnAlignment{alignRight, alignRight, alignRight},
			))
			return nil
		},
	}
}

func newHistoryDeleteCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "delete <节目 ID>",
		Short: "删除一条生成记录（不删除音频文件）",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			st, err := store.Open(ctx.configValue().Storage.DataDir)
			if err != nil {
				return err
			}
			defer st.Close()

			ep, err := resolveEpisode(st, args[0])
			if err != nil {
				return err
			}
			if err := st.Delete(ep.ID); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "已删除节目 %s（%s）\n", shortID(ep.ID), ep.Title)
			return nil
		},
	}
}

// resolveEpisode 按完整 ID 或唯一前缀查找节目。
func resolveEpisode(st *store.Store, key string) (*store.Episode, error) {
	ep, err := st.Get(key)
	if err != nil {
		return nil, err
	}
	if ep != nil {
		return ep, nil
	}

	all, err := st.List(0)
	if err != nil {
		return nil, err
	}
	var matches []store.Episode
	for _, e := range all {
		if len(key) > 0 && len(e.ID) >= len(key) && e.ID[:len(key)] == key {
			matches = append(matches, e)
		}
	}
	switch len(matches) {
	case 0:
		return nil, fmt.Errorf("没有找到节目 %s", key)
	case 1:
		return &matches[0], nil
	default:
		return nil, fmt.Errorf("ID 前缀 %s 匹配 %d 条记录，请使用更长的前缀", key, len(matches))
	}
}
