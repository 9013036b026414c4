package mail

import (
	"context"
	"crypto/tls"
	"fmt"
	"net"
	"net/smtp"
	"strconv"
	"strings"
	"time"

	"github.com/sony/gobreaker"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"petstore/internal/config"
	"petstore/internal/logger"
)

type Sender interface {
	Send(ctx context.Context, msg Message) error
}

type smtpSender struct {
	cfg    config.SMTP
	cb     *gobreaker.CircuitBreaker
	log    *zap.Logger
	tracer trace.Tracer
}

// hostが空ならログに出すだけのSenderを返す
func NewSender(cfg config.SMTP, log *zap.Logger) Sender {
	if cfg.Host == "" {
		return &logSender{log: log}
	}
	return &smtpSender{
		cfg: cfg,
		cb: gobreaker.NewCircuitBreaker(gobreaker.Settings{
			Name:    "smtp",
			Timeout: 30 * time.Second,
			ReadyToTrip: func(c gobreaker.Counts) bool {
				return c.ConsecutiveFailures >= 5
			},
		}),
		log:    log,
		tracer: otel.Tracer("infra/mail"),
	}
}

func (s *smtpSender) Send(ctx context.Context, msg Message) error {
	ctx, span := s.tracer.Start(ctx, "smtp.Send")
	defer span.End()
	span.SetAttributes(attribute.String("to.email", msg.To))

	logger.Info(ctx, s.log, "Sending email", zap.String("to", msg.To), zap.String("subject", msg.Subject))

	_, err := s.cb.Execute(func() (interface{}, error) {
		return nil, s.deliver(msg)
	})
	if err != nil {
		span.RecordError(err)
		logger.Error(ctx, s.log, "Error sending email", zap.String("to", msg.To), zap.Error(err))
		return fmt.Errorf("failed to send mail: %w", err)
	}
	return nil
}

func (s *smtpSender) deliver(msg Message) error {
	addr := net.JoinHostPort(s.cfg.Host, strconv.Itoa(s.cfg.Port))

	conn, err := net.DialTimeout("tcp", addr, s.cfg.Timeout)
	if err != nil {
		return err
	}
	_ = conn.SetDeadline(time.Now().Add(s.cfg.Timeout))

	c, err := smtp.NewClient(conn, s.cfg.Host)
	if err != nil {
		conn.Close()
		return err
	}
	defer c.Close()

	if ok, _ := c.Extension("STARTTLS"); ok {
		if err := c.StartTLS(&tls.Config{ServerName: s.cfg.Host}); err != nil {
			return err
		}
	}
	if s.cfg.User != "" {
		if err := c.Auth(smtp.PlainAuth("", s.cfg.User, s.cfg.Password, s.cfg.Host)); err != nil {
			return err
		}
	}
	if err := c.Mail(s.cfg.From); err != nil {
		return err
	}
	if err := c.Rcpt(msg.To); err != nil {
		return err
	}

	w, err := c.Data()
	if err != nil {
		return err
	}
	if _, err := w.Write(buildMIME(s.cfg.From, msg)); err != nil {
		return err
	}
	if err := w.Close(); err != nil {
		return err
	}
	return c.Quit()
}

func buildMIME(from string, msg Message) []byte {
	var b strings.Builder
	b.WriteString("From: " + from + "\r\n")
	b.WriteString("To: " + msg.To + "\r\n")
	b.WriteString("Subject: " + msg.Subject + "\r\n")
	b.WriteString("MIME-Version: 1.0\r\n")
	b.WriteString("Content-Type: text/html; charset=\"UTF-8\"\r\n\r\n")
	b.WriteString(msg.HTML)
	return []byte(b.String())
}

// SMTP未設定の開発環境用
type logSender struct {
	log *zap.Logger
}

func (s *logSender) Send(ctx context.Context, msg Message) error {
	logger.Info(ctx, s.log, "SMTP not configured, email skipped",
		zap.String("to", msg.To),
		zap.String("subject", msg.Subject),
	)
	return nil
}
