package notify

import (
	"crypto/tls"
	"fmt"
	"net"
	"net/smtp"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

const defaultSMTPTimeout = 30 * time.Second

type SMTPConfig struct {
	Host     string        `mapstructure:"host"`
	Port     int           `mapstructure:"port"`
	From     string        `mapstructure:"from"`
	To       []string      `mapstructure:"to"`
	User     string        `mapstructure:"user"`
	Password string        `mapstructure:"password"`
	TLS      bool          `mapstructure:"tls"`
	Timeout  time.Duration `mapstructure:"timeout"`
}

// SMTPNotifier mails run outcomes. With no host configured it only logs.
type SMTPNotifier struct {
	logger logrus.FieldLogger
	config SMTPConfig
	now    func() time.Time
}

func NewSMTPNotifier(logger logrus.FieldLogger, config SMTPConfig) *SMTPNotifier {
	if config.Port == 0 {
		config.Port = 25
	}
	if config.Timeout <= 0 {
		config.Timeout = defaultSMTPTimeout
	}

	return &SMTPNotifier{
		logger: logger,
		config: config,
		now:    time.Now,
	}
}

func (n *SMTPNotifier) Notify(subject, body string) error {
	if n.config.Host == "" || len(n.config.To) == 0 {
		n.logger.WithField("subject", subject).Debug("Mail notifications are not configured, skipping")
		return nil
	}

	return n.send(n.buildMessage(subject, body))
}

func (n *SMTPNotifier) buildMessage(subject, body string) string {
	var msg strings.Builder

	msg.WriteString("From: " + n.config.From + "\r\n")
	msg.WriteString("To: " + strings.Join(n.config.To, ", ") + "\r\n")
	msg.WriteString("Subject: " + subject + "\r\n")
	msg.WriteString("Date: " + n.now().Format(time.RFC1123Z) + "\r\n")
	msg.WriteString(fmt.Sprintf("Message-ID: <%s@wpbackup>\r\n", uuid.New().String()))
	msg.WriteString("MIME-Version: 1.0\r\n")
	msg.WriteString("Content-Type: text/plain; charset=UTF-8\r\n")
	msg.WriteString("\r\n")
	msg.WriteString(strings.ReplaceAll(body, "\n", "\r\n"))
	msg.WriteString("\r\n")

	return msg.String()
}

func (n *SMTPNotifier) send(msg string) error {
	addr := net.JoinHostPort(n.config.Host, fmt.Sprint(n.config.Port))

	conn, err := net.DialTimeout("tcp", addr, n.config.Timeout)
	if err != nil {
		return errors.Wrap(err, "failed to connect to SMTP server")
	}
	defer conn.Close()

	err = conn.SetDeadline(time.Now().Add(n.config.Timeout))
	if err != nil {
		return err
	}

	client, err := smtp.NewClient(conn, n.config.Host)
	if err != nil {
		return errors.Wrap(err, "failed to create SMTP client")
	}
	defer client.Close()

	if n.config.TLS {
		err = client.StartTLS(&tls.Config{
			ServerName: n.config.Host,
			MinVersion: tls.VersionTLS12,
		})
		if err != nil {
			return errors.Wrap(err, "failed to start TLS")
		}
	}

	if n.config.User != "" && n.config.Password != "" {
		err = client.Auth(smtp.PlainAuth("", n.config.User, n.config.Password, n.config.Host))
		if err != nil {
			return errors.Wrap(err, "SMTP authentication failed")
		}
	}

	err = client.Mail(n.config.From)
	if err != nil {
		return errors.Wrap(err, "failed to set sender")
	}

	for _, to := range n.config.To {
		err = client.Rcpt(to)
		if err != nil {
			return errors.Wrapf(err, "failed to set recipient %s", to)
		}
	}

	w, err := client.Data()
	if err != nil {
		return errors.Wrap(err, "failed to start message")
	}

	_, err = w.Write([]byte(msg))
	if err != nil {
		return errors.Wrap(err, "failed to write message")
	}

	err = w.Close()
	if err != nil {
		return errors.Wrap(err, "failed to close message")
	}

	// message is accepted at this point
	_ = client.Quit()

	return nil
}
