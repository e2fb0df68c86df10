// Package notify 发送面向报名者的提醒邮件。发送失败只记录，不阻断调用方。
package notify

import (
	"context"
	"fmt"
	"net"
	"net/smtp"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/fabsignup/fabsignup/internal/config"
	"github.com/fabsignup/fabsignup/pkg/logger"
)

// Message 一封提醒邮件
type Message struct {
	To      string `json:"to"`
	Subject string `json:"subject"`
	Body    string `json:"body"`
}

// Notifier 通知发送方
type Notifier interface {
	Send(ctx context.Context, msg Message) error
}

// New 按配置选择后端：smtp | log（默认）
func New(cfg config.NotifyConfig) Notifier {
	switch strings.ToLower(cfg.Backend) {
	case "smtp":
		return NewSMTP(cfg.SMTP)
	default:
		return &LogNotifier{}
	}
}

// LogNotifier 只写日志，并保留最近发送的消息
type LogNotifier struct {
	mu   sync.Mutex
	sent []Message
}

// Send 实现 Notifier
func (n *LogNotifier) Send(_ context.Context, msg Message) error {
	logger.Info("Notification", "to", msg.To, "subject", msg.Subject)
	n.mu.Lock()
	n.sent = append(n.sent, msg)
	n.mu.Unlock()
	return nil
}

// Sent 已发送的消息副本
func (n *LogNotifier) Sent() []Message {
	n.mu.Lock()
	defer n.mu.Unlock()
	out := make([]Message, len(n.sent))
	copy(out, n.sent)
	return out
}

// SMTPNotifier 通过 SMTP 发送
type SMTPNotifier struct {
	cfg config.SMTPConfig
	// sendMail 便于测试替换
	sendMail func(addr string, a smtp.Auth, from string, to []string, msg []byte) error
}

// NewSMTP 创建 SMTP 发送方
func NewSMTP(cfg config.SMTPConfig) *SMTPNotifier {
	return &SMTPNotifier{cfg: cfg, sendMail: smtp.SendMail}
}

// Send 实现 Notifier
func (n *SMTPNotifier) Send(ctx context.Context, msg Message) error {
	if msg.To == "" {
		return fmt.Errorf("notify: no recipient")
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	port := n.cfg.Port
	if port == 0 {
		port = 587
	}
	addr := net.JoinHostPort(n.cfg.Host, strconv.Itoa(port))

	var auth smtp.Auth
	if n.cfg.Username != "" {
		auth = smtp.PlainAuth("", n.cfg.Username, n.cfg.Password, n.cfg.Host)
	}
	if err := n.sendMail(addr, auth, n.cfg.From, []string{msg.To}, n.compose(msg)); err != nil {
		return fmt.Errorf("notify: send to %s: %w", msg.To, err)
	}
	logger.Info("Notification sent", "to", msg.To, "subject", msg.Subject)
	return nil
}

func (n *SMTPNotifier) compose(msg Message) []byte {
	var b strings.Builder
	fmt.Fprintf(&b, "From: %s\r\n", n.cfg.From)
	fmt.Fprintf(&b, "To: %s\r\n", msg.To)
	fmt.Fprintf(&b, "Subject: %s\r\n", msg.Subject)
	fmt.Fprintf(&b, "Date: %s\r\n", time.Now().Format(time.RFC1123Z))
	b.WriteString("MIME-Version: 1.0\r\n")
	b.WriteString("Content-Type: text/plain; charset=UTF-8\r\n\r\n")
	b.WriteString(strings.ReplaceAll(msg.Body, "\n", "\r\n"))
	return []byte(b.String())
}
