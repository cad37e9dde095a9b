package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"MathAgent/internal/agent"
)

func newAskCmd(opts *rootOptions) *cobra.Command {
	var (
		asJSON      bool
		preferences map[string]string
	)
	cmd := &cobra.Command{
		Use:   "ask <query>",
		Short: "同步执行一次会话并输出答案与执行轨迹",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			query := strings.TrimSpace(strings.Join(args, " "))
			if query == "" {
				return fmt.Errorf("查询内容不能为空")
			}
			a, err := wireApp(cmd.Context(), opts.cfg)
			if err != nil {
				return err
			}
			defer a.Close()

			res := a.agent.Run(cmd.Context(), agent.Request{Query: query, Preferences: preferences})
			if asJSON {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(res)
			}
			printResult(cmd.OutOrStdout(), res)
			return nil
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "以 JSON 输出完整结果")
	cmd.Flags().StringToStringVar(&preferences, "pref", nil, "会话偏好，例如 --pref units=metric")
	return cmd
}

func printResult(w io.Writer, res *agent.Result) {
	fmt.Fprintf(w, "Query: %s\nResult: %s\n", res.Query, res.Answer)
	fmt.Fprintf(w, "session=%s success=%t counter=%d rounds=%d\n", res.SessionID, res.Success, res.Counter, res.Rounds)
	for _, entry := range res.Trace {
		line := fmt.Sprintf("  [%d.%d] %s %s %s", entry.Round, entry.Step, entry.Kind, entry.Tool, entry.Outcome)
		switch {
		case entry.Error != "":
			line += fmt.Sprintf(" %s: %s", entry.Code, entry.Error)
		case entry.Value != "":
			line += " = " + entry.Value
		}
		fmt.Fprintln(w, line)
	}
	for _, d := range res.Diagnostics {
		fmt.Fprintf(w, "  ! %s %s: %s\n", d.Stage, d.Code, d.Message)
	}
}
