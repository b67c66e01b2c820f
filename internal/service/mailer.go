package service

import (
	"context"
	"fmt"
	"net/smtp"
	"strings"

	"github.com/mpoirier/auth-core/internal/domain"
	"go.uber.org/zap"
)

// SMTPMailer delivers verification and password reset emails over plain
// SMTP with AUTH. Message bodies are short text emails carrying the action
// link; rendering rich templates is a front-end concern.
type SMTPMailer struct {
	addr     string
	auth     smtp.Auth
	from     string
	baseURL  string
	sendMail func(addr string, a smtp.Auth, from string, to []string, msg []byte) error
}

// NewSMTPMailer creates a new SMTP mailer. baseURL is the public site URL
// the action links point at.
func NewSMTPMailer(host, port, username, password, from, baseURL string) *SMTPMailer {
	var auth smtp.Auth
	if username != "" {
		auth = smtp.PlainAuth("", username, password, host)
	}

	return &SMTPMailer{
		addr:     host + ":" + port,
		auth:     auth,
		from:     from,
		baseURL:  strings.TrimRight(baseURL, "/"),
		sendMail: smtp.SendMail,
	}
}

// SendVerificationEmail sends the email verification link
func (m *SMTPMailer) SendVerificationEmail(ctx context.Context, user *domain.PublicUser, secret, locale string) error {
	link := fmt.Sprintf("%s/auth/verify-email?token=%s", m.baseURL, secret)

	subject, body := verificationEmailText(user.Name, link, locale)
	return m.send(user.Email, subject, body)
}

// SendPasswordResetEmail sends the password reset link
func (m *SMTPMailer) SendPasswordResetEmail(ctx context.Context, user *domain.PublicUser, secret, locale string) error {
	link := fmt.Sprintf("%s/auth/reset-password?token=%s", m.baseURL, secret)

	subject, body := passwordResetEmailText(user.Name, link, locale)
	return m.send(user.Email, subject, body)
}

func (m *SMTPMailer) send(to, subject, body string) error {
	msg := strings.Join([]string{
		"From: " + m.from,
		"To: " + to,
		"Subject: " + subject,
		"MIME-Version: 1.0",
		"Content-Type: text/plain; charset=utf-8",
		"",
		body,
	}, "\r\n")

	if err := m.sendMail(m.addr, m.auth, m.from, []string{to}, []byte(msg)); err != nil {
		return fmt.Errorf("failed to send email to %s: %w", to, err)
	}

	return nil
}

func verificationEmailText(name, link, locale string) (subject, body string) {
	if locale == "fr" {
		return "Confirmez votre adresse email",
			fmt.Sprintf("Bonjour %s,\n\nConfirmez votre adresse email en ouvrant le lien suivant :\n%s\n\nCe lien expire dans 24 heures.", name, link)
	}
	return "Confirm your email address",
		fmt.Sprintf("Hi %s,\n\nConfirm your email address by opening the link below:\n%s\n\nThis link expires in 24 hours.", name, link)
}

func passwordResetEmailText(name, link, locale string) (subject, body string) {
	if locale == "fr" {
		return "Réinitialisation de votre mot de passe",
			fmt.Sprintf("Bonjour %s,\n\nRéinitialisez votre mot de passe en ouvrant le lien suivant :\n%s\n\nCe lien expire dans 1 heure. Si vous n'êtes pas à l'origine de cette demande, ignorez cet email.", name, link)
	}
	return "Reset your password",
		fmt.Sprintf("Hi %s,\n\nReset your password by opening the link below:\n%s\n\nThis link expires in 1 hour. If you did not request this, ignore this email.", name, link)
}

// LogMailer is a development stand-in that logs instead of sending. Used
// when no SMTP host is configured.
type LogMailer struct {
	logger *zap.Logger
}

// NewLogMailer creates a mailer that only logs
func NewLogMailer(logger *zap.Logger) *LogMailer {
	return &LogMailer{logger: logger}
}

func (m *LogMailer) SendVerificationEmail(ctx context.Context, user *domain.PublicUser, secret, locale string) error {
	m.logger.Info("verification email (not sent, smtp disabled)",
		zap.String("user_id", user.ID),
		zap.String("token", secret),
	)
	return nil
}

func (m *LogMailer) SendPasswordResetEmail(ctx context.Context, user *domain.PublicUser, secret, locale string) error {
	m.logger.Info("password reset email (not sent, smtp disabled)",
		zap.String("user_id", user.ID),
		zap.String("token", secret),
	)
	return nil
}
