// Package delivery 提供把结果投递给用户的工具。它们属于非计算类工具，
// 返回值不会出现在最终答案中。
package delivery

import (
	"context"
	"fmt"
	"strings"

	"MathAgent/internal/tools"
)

// Subject 是结果邮件的标题。
const Subject = "Math Agent Result"

// Sender 发送一封邮件。mail.SMTPSender 实现了该接口。
type Sender interface {
	Send(ctx context.Context, subject, content string, to []string) error
}

// Tools 返回投递工具，recipients 为默认收件人。
func Tools(sender Sender, recipients []string) []tools.Tool {
	return []tools.Tool{
		tools.New(tools.Spec{
			Name:        "send_gmail",
			Description: "把 content 通过邮件发送给默认收件人",
			Category:    tools.CategoryDelivery,
			Params:      []tools.Param{tools.Text("content", "邮件正文")},
			Result:      tools.TextResult,
		}, func(ctx context.Context, args tools.Args) (any, error) {
			if sender == nil || len(recipients) == 0 {
				return nil, tools.Failf("邮件发送未配置")
			}
			content := args.String("content")
			if strings.TrimSpace(content) == "" {
				return nil, tools.Failf("邮件内容为空")
			}
			if err := sender.Send(ctx, Subject, content, recipients); err != nil {
				return nil, tools.Failf("发送邮件失败: %v", err)
			}
			return fmt.Sprintf("Email sent to %s", strings.Join(recipients, ", ")), nil
		}),
	}
}
