// Package mail 通过 SMTP over TLS 发送纯文本邮件，供结果投递工具和告警共用。
package mail

import (
	"context"
	"crypto/tls"
	"fmt"
	"net"
	"net/smtp"
	"strings"
	"time"

	xerrors "MathAgent/internal/errors"
)

// Config 描述 SMTP 连接参数。
type Config struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Username string `mapstructure:"username"`
	Password string `mapstructure:"password"`
	From     string `mapstructure:"from"`
	// To 是结果投递的默认收件人。
	To      []string      `mapstructure:"to"`
	Timeout time.Duration `mapstructure:"timeout"`
}

// SMTPSender 使用隐式 TLS（默认 465 端口）发送邮件。
type SMTPSender struct {
	cfg Config
}

// NewSMTPSender 校验配置并返回发送器。
func NewSMTPSender(cfg Config) (*SMTPSender, error) {
	if cfg.Host == "" {
		cfg.Host = "smtp.gmail.com"
	}
	if cfg.Port == 0 {
		cfg.Port = 465
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 15 * time.Second
	}
	if cfg.From == "" {
		cfg.From = cfg.Username
	}
	if cfg.Username == "" || cfg.Password == "" {
		return nil, xerrors.New(xerrors.CodeInvalidArgument, "SMTP 用户名或密码未配置")
	}
	if !strings.Contains(cfg.From, "@") {
		return nil, xerrors.Newf(xerrors.CodeInvalidArgument, "发件人地址无效: %s", cfg.From)
	}
	return &SMTPSender{cfg: cfg}, nil
}

// Recipients 返回默认收件人。
func (s *SMTPSender) Recipients() []string {
	return append([]string(nil), s.cfg.To...)
}

// Send 发送一封邮件。
func (s *SMTPSender) Send(ctx context.Context, subject, content string, to []string) error {
	if len(to) == 0 {
		return xerrors.New(xerrors.CodeInvalidArgument, "收件人为空")
	}
	for _, addr := range to {
		if !strings.Contains(addr, "@") {
			return xerrors.Newf(xerrors.CodeInvalidArgument, "收件人地址无效: %s", addr)
		}
	}

	addr := net.JoinHostPort(s.cfg.Host, fmt.Sprint(s.cfg.Port))
	dialer := &tls.Dialer{
		NetDialer: &net.Dialer{Timeout: s.cfg.Timeout},
		Config:    &tls.Config{ServerName: s.cfg.Host, MinVersion: tls.VersionTLS12},
	}
	conn, err := dialer.DialContext(ctx, "tcp", addr)
	if err != nil {
		return fmt.Errorf("连接 SMTP 服务器失败: %w", err)
	}
	if deadline, ok := ctx.Deadline(); ok {
		_ = conn.SetDeadline(deadline)
	} else {
		_ = conn.SetDeadline(time.Now().Add(s.cfg.Timeout))
	}

	client, err := smtp.NewClient(conn, s.cfg.Host)
	if err != nil {
		_ = conn.Close()
		return fmt.Errorf("初始化 SMTP 会话失败: %w", err)
	}
	defer client.Close()

	if err := client.Auth(smtp.PlainAuth("", s.cfg.Username, s.cfg.Password, s.cfg.Host)); err != nil {
		return fmt.Errorf("SMTP 认证失败: %w", err)
	}
	if err := client.Mail(s.cfg.From); err != nil {
		return fmt.Errorf("设置发件人失败: %w", err)
	}
	for _, rcpt := range to {
		if err := client.Rcpt(rcpt); err != nil {
			return fmt.Errorf("设置收件人 %s 失败: %w", rcpt, err)
		}
	}
	w, err := client.Data()
	if err != nil {
		return fmt.Errorf("开始写入邮件失败: %w", err)
	}
	if _, err := w.Write(Compose(s.cfg.From, to, subject, content)); err != nil {
		_ = w.Close()
		return fmt.Errorf("写入邮件失败: %w", err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("提交邮件失败: %w", err)
	}
	return client.Quit()
}

// Compose 生成 RFC 5322 格式的纯文本邮件。
func Compose(from string, to []string, subject, content string) []byte {
	var b strings.Builder
	b.WriteString("From: " + from + "\r\n")
	b.WriteString("To: " + strings.Join(to, ", ") + "\r\n")
	b.WriteString("Subject: " + subject + "\r\n")
	b.WriteString("MIME-Version: 1.0\r\n")
	b.WriteString("Content-Type: text/plain; charset=UTF-8\r\n")
	b.WriteString("\r\n")
	b.WriteString(strings.ReplaceAll(content, "\n", "\r\n"))
	return []byte(b.String())
}
