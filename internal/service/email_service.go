package service

import (
	"context"
	"fmt"
	"html"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/sesv2"
	"github.com/aws/aws-sdk-go-v2/service/sesv2/types"
	"github.com/sirupsen/logrus"

	"carecoins/internal/models"
	"carecoins/internal/validation"
)

// sesSender is the part of the SES client used here
type sesSender interface {
	SendEmail(ctx context.Context, params *sesv2.SendEmailInput, optFns ...func(*sesv2.Options)) (*sesv2.SendEmailOutput, error)
}

// EmailNotifier sends approval emails via Amazon SES
type EmailNotifier struct {
	client     sesSender
	fromEmail  string
	fromName   string
	appBaseURL string
	enabled    bool
	debug      bool
	log        logrus.FieldLogger
}

// EmailConfig configures NewEmailNotifier
type EmailConfig struct {
	AWSRegion  string
	FromEmail  string
	FromName   string
	AppBaseURL string
	Debug      bool
}

// NewEmailNotifier creates a notifier. Without a sender address it is
// created disabled and every notification is skipped.
func NewEmailNotifier(ctx context.Context, cfg EmailConfig, log logrus.FieldLogger) (*EmailNotifier, error) {
	if cfg.FromEmail == "" {
		log.Info("Email notifications disabled: SES_FROM_EMAIL not configured")
		return &EmailNotifier{enabled: false, debug: cfg.Debug, log: log}, nil
	}

	if cfg.Debug {
		log.WithFields(logrus.Fields{
			"region":       cfg.AWSRegion,
			"from_email":   cfg.FromEmail,
			"from_name":    cfg.FromName,
			"app_base_url": cfg.AppBaseURL,
		}).Debug("Initializing email notifier with AWS SES")
	}

	awsCfg, err := config.LoadDefaultConfig(ctx, config.WithRegion(cfg.AWSRegion))
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	log.WithFields(logrus.Fields{"from": cfg.FromEmail, "region": cfg.AWSRegion}).Info("Email notifications enabled")

	return newEmailNotifier(sesv2.NewFromConfig(awsCfg), cfg, log), nil
}

func newEmailNotifier(client sesSender, cfg EmailConfig, log logrus.FieldLogger) *EmailNotifier {
	return &EmailNotifier{
		client:     client,
		fromEmail:  cfg.FromEmail,
		fromName:   cfg.FromName,
		appBaseURL: cfg.AppBaseURL,
		enabled:    true,
		debug:      cfg.Debug,
		log:        log,
	}
}

// IsEnabled returns whether the notifier sends anything
func (s *EmailNotifier) IsEnabled() bool {
	return s.enabled
}

// NotifyApproval tells the assignee that their activity was approved
func (s *EmailNotifier) NotifyApproval(ctx context.Context, recipient *models.User, activity *models.Activity, balance int64) error {
	entry := s.log.WithFields(logrus.Fields{"activity_id": activity.ID, "user_id": recipient.ID})

	if !s.enabled {
		if s.debug {
			entry.Debug("Skipping approval email (notifier disabled)")
		}
		return nil
	}
	if err := validation.ValidateEmail(recipient.Email); err != nil {
		entry.Debug("Skipping approval email: recipient has no usable address")
		return nil
	}

	name := recipient.DisplayName
	if name == "" {
		name = "there"
	}

	subject := fmt.Sprintf("You earned %d coins for %q", activity.CoinValue, activity.Title)
	htmlBody := fmt.Sprintf(`<!DOCTYPE html>
<html>
<head><meta charset="UTF-8"></head>
<body style="font-family: Arial, sans-serif; line-height: 1.6; color: #333;">
	<p>Hi %s,</p>
	<p>Your activity <strong>%s</strong> was approved and <strong>%d coins</strong> were added to your balance.</p>
	<p>Your balance is now <strong>%d coins</strong>.</p>
	<p><a href="%s">Open CareCoins</a></p>
	<p style="font-size: 12px; color: #666;">This is an automated email from CareCoins. Please do not reply.</p>
</body>
</html>
`, html.EscapeString(name), html.EscapeString(activity.Title), activity.CoinValue, balance, html.EscapeString(s.appBaseURL))

	textBody := fmt.Sprintf(`Hi %s,

Your activity "%s" was approved and %d coins were added to your balance.
Your balance is now %d coins.

%s

---
This is an automated email from CareCoins. Please do not reply.
`, name, activity.Title, activity.CoinValue, balance, s.appBaseURL)

	return s.sendEmail(ctx, recipient.Email, subject, htmlBody, textBody)
}

// sendEmail sends an email using Amazon SES
func (s *EmailNotifier) sendEmail(ctx context.Context, toEmail, subject, htmlBody, textBody string) error {
	fromAddress := s.fromEmail
	if s.fromName != "" {
		fromAddress = fmt.Sprintf("%s <%s>", s.fromName, s.fromEmail)
	}

	input := &sesv2.SendEmailInput{
		FromEmailAddress: aws.String(fromAddress),
		Destination: &types.Destination{
			ToAddresses: []string{toEmail},
		},
		Content: &types.EmailContent{
			Simple: &types.Message{
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
		},
	}

	result, err := s.client.SendEmail(ctx, input)
	if err != nil {
		return fmt.Errorf("failed to send email to %s: %w", toEmail, err)
	}

	entry := s.log.WithFields(logrus.Fields{"to": toEmail, "subject": subject})
	if s.debug && result.MessageId != nil {
		entry = entry.WithField("message_id", *result.MessageId)
	}
	entry.Info("Email sent")
	return nil
}
