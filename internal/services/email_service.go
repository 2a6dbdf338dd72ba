package services

import (
	"context"
	"fmt"
	"html"
	"log/slog"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/ses"
	"github.com/aws/aws-sdk-go-v2/service/ses/types"

	pkglogger "github.com/BradenHooton/authcore/pkg/logger"
)

// Mailer delivers account emails
type Mailer interface {
	SendVerificationCode(ctx context.Context, to, name, code string, expiresAt time.Time) error
	SendPasswordReset(ctx context.Context, to, name, resetURL string, expiresAt time.Time) error
}

// SESAPI is the subset of the SES client used for sending
type SESAPI interface {
	SendEmail(ctx context.Context, params *ses.SendEmailInput, optFns ...func(*ses.Options)) (*ses.SendEmailOutput, error)
}

// SESMailer sends emails using AWS SES
type SESMailer struct {
	client      SESAPI
	fromAddress string
	logger      *slog.Logger
}

// NewSESMailer loads the default AWS credential chain for region
func NewSESMailer(ctx context.Context, region, fromAddress string, logger *slog.Logger) (*SESMailer, error) {
	cfg, err := config.LoadDefaultConfig(ctx, config.WithRegion(region))
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	return NewSESMailerWithClient(ses.NewFromConfig(cfg), fromAddress, logger), nil
}

// NewSESMailerWithClient creates an SESMailer over an existing client
func NewSESMailerWithClient(client SESAPI, fromAddress string, logger *slog.Logger) *SESMailer {
	return &SESMailer{
		client:      client,
		fromAddress: fromAddress,
		logger:      logger,
	}
}

func greeting(name string) string {
	if name == "" {
		return "Hello,"
	}
	return fmt.Sprintf("Hello %s,", name)
}

// humanDuration renders the remaining validity as "24 hours" or "10 minutes"
func humanDuration(d time.Duration) string {
	if d >= time.Hour {
		return fmt.Sprintf("%d hours", int(d.Round(time.Hour)/time.Hour))
	}
	return fmt.Sprintf("%d minutes", int(d.Round(time.Minute)/time.Minute))
}

// SendVerificationCode sends the email verification OTP
func (s *SESMailer) SendVerificationCode(ctx context.Context, to, name, code string, expiresAt time.Time) error {
	validFor := humanDuration(time.Until(expiresAt))

	htmlBody := fmt.Sprintf(`<!DOCTYPE html>
<html>
<body style="font-family: Arial, sans-serif; line-height: 1.6; color: #333;">
    <p>%s</p>
    <p>Use the code below to verify your email address:</p>
    <p style="font-size: 28px; letter-spacing: 6px; font-weight: bold;">%s</p>
    <p>This code expires in %s.</p>
    <p>If you didn't create an account, you can ignore this email.</p>
</body>
</html>
`, html.EscapeString(greeting(name)), code, validFor)

	textBody := fmt.Sprintf(`%s

Use the code below to verify your email address:

%s

This code expires in %s.

If you didn't create an account, you can ignore this email.
`, greeting(name), code, validFor)

	return s.send(ctx, to, "Your email verification code", htmlBody, textBody)
}

// SendPasswordReset sends the password reset link
func (s *SESMailer) SendPasswordReset(ctx context.Context, to, name, resetURL string, expiresAt time.Time) error {
	validFor := humanDuration(time.Until(expiresAt))
	escapedURL := html.EscapeString(resetURL)

	htmlBody := fmt.Sprintf(`<!DOCTYPE html>
<html>
<body style="font-family: Arial, sans-serif; line-height: 1.6; color: #333;">
    <p>%s</p>
    <p>Someone requested a password reset for your account. Follow the link below to choose a new password:</p>
    <p><a href="%s">Reset your password</a></p>
    <p>Or copy and paste this link in your browser:<br><code>%s</code></p>
    <p>This link expires in %s. If you didn't request a reset, you can ignore this email.</p>
</body>
</html>
`, html.EscapeString(greeting(name)), escapedURL, escapedURL, validFor)

	textBody := fmt.Sprintf(`%s

Someone requested a password reset for your account. Open the link below to choose a new password:

%s

This link expires in %s. If you didn't request a reset, you can ignore this email.
`, greeting(name), resetURL, validFor)

	return s.send(ctx, to, "Reset your password", htmlBody, textBody)
}

func (s *SESMailer) send(ctx context.Context, to, subject, htmlBody, textBody string) error {
	input := &ses.SendEmailInput{
		Source: aws.String(s.fromAddress),
		Destination: &types.Destination{
			ToAddresses: []string{to},
		},
		Message: &types.Message{
			Subject: &types.Content{
				Data:    aws.String(subject),
				Charset: aws.String("UTF-8"),
			},
			Body: &types.Body{
				Html: &types.Content{
					Data:    aws.String(htmlBody),
					Charset: aws.String("UTF-8"),
				},
				Text: &types.Content{
					Data:    aws.String(textBody),
					Charset: aws.String("UTF-8"),
				},
			},
		},
	}

	result, err := s.client.SendEmail(ctx, input)
	if err != nil {
		s.logger.Error("failed to send email via SES",
			pkglogger.EmailAttr(to),
			slog.String("subject", subject),
			slog.Any("error", err))
		return fmt.Errorf("failed to send email: %w", err)
	}

	s.logger.Info("email sent",
		pkglogger.EmailAttr(to),
		slog.String("subject", subject),
		slog.String("message_id", aws.ToString(result.MessageId)))

	return nil
}

// LogMailer records outgoing mail in the log instead of delivering it.
// Secrets are only written at debug level.
type LogMailer struct {
	logger *slog.Logger
}

func NewLogMailer(logger *slog.Logger) *LogMailer {
	return &LogMailer{logger: logger}
}

func (m *LogMailer) SendVerificationCode(ctx context.Context, to, name, code string, expiresAt time.Time) error {
	m.logger.Info("verification code issued (log mailer)",
		pkglogger.EmailAttr(to),
		slog.Time("expires_at", expiresAt))
	m.logger.Debug("verification code", pkglogger.EmailAttr(to), slog.String("code", code))
	return nil
}

func (m *LogMailer) SendPasswordReset(ctx context.Context, to, name, resetURL string, expiresAt time.Time) error {
	m.logger.Info("password reset issued (log mailer)",
		pkglogger.EmailAttr(to),
		slog.Time("expires_at", expiresAt))
	m.logger.Debug("password reset link", pkglogger.EmailAttr(to), slog.String("reset_url", resetURL))
	return nil
}
