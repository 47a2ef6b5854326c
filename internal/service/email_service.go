package service

import (
	"context"
	"fmt"
	"log"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/sesv2"
	"github.com/aws/aws-sdk-go-v2/service/sesv2/types"
)

// EmailService sends transactional email via Amazon SES. With no sender
// address configured the service is disabled and every send becomes a
// logged no-op.
type EmailService struct {
	client     *sesv2.Client
	fromEmail  string
	fromName   string
	appBaseURL string
	enabled    bool
}

// NewEmailService creates a new email service
func NewEmailService(awsRegion, fromEmail, fromName, appBaseURL string) (*EmailService, error) {
	if fromEmail == "" {
		log.Println("Email service disabled: SES_FROM_EMAIL not configured")
		return &EmailService{enabled: false}, nil
	}

	cfg, err := config.LoadDefaultConfig(context.TODO(),
		config.WithRegion(awsRegion),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	log.Printf("Email service enabled: from=%s, region=%s", fromEmail, awsRegion)
	return &EmailService{
		client:     sesv2.NewFromConfig(cfg),
		fromEmail:  fromEmail,
		fromName:   fromName,
		appBaseURL: appBaseURL,
		enabled:    true,
	}, nil
}

// IsEnabled returns whether sending is configured
func (s *EmailService) IsEnabled() bool {
	return s.enabled
}

// SendCompletionCertificate congratulates a player who finished the
// final level.
func (s *EmailService) SendCompletionCertificate(ctx context.Context, toEmail, toName string) error {
	if !s.enabled {
		log.Printf("Skipping email send (service disabled): completion certificate to %s", toEmail)
		return nil
	}

	subject := "You beat Scameleon – certificate inside!"
	htmlBody := fmt.Sprintf(`
<!DOCTYPE html>
<html>
<head>
	<meta charset="UTF-8">
	<style>
		body { font-family: Arial, sans-serif; line-height: 1.6; color: #333; }
		.container { max-width: 600px; margin: 0 auto; padding: 20px; }
		.header { background-color: #2e8b57; color: white; padding: 20px; text-align: center; border-radius: 5px 5px 0 0; }
		.content { background-color: #f9f9f9; padding: 30px; border-radius: 0 0 5px 5px; }
		.certificate { border: 3px double #2e8b57; padding: 20px; margin: 20px 0; text-align: center; }
		.footer { text-align: center; margin-top: 20px; font-size: 12px; color: #666; }
	</style>
</head>
<body>
	<div class="container">
		<div class="header">
			<h1>Congratulations, %s!</h1>
		</div>
		<div class="content">
			<p>You finished every level of Scam Smash and earned the Scam Guardian badge.</p>
			<div class="certificate">
				<h2>Certificate of Completion</h2>
				<p><strong>%s</strong> has completed the Scameleon scam-awareness training.</p>
			</div>
			<p>Keep your streak going: <a href="%s">play again any time</a> and share what you learned.</p>
		</div>
		<div class="footer">
			<p>You received this email because you completed the game on Scameleon.</p>
		</div>
	</div>
</body>
</html>`, toName, toName, s.appBaseURL)

	textBody := fmt.Sprintf(
		"Congratulations, %s!\n\nYou finished every level of Scam Smash and earned the Scam Guardian badge.\nThis email is your certificate of completion for the Scameleon scam-awareness training.\n\nPlay again any time: %s\n",
		toName, s.appBaseURL)

	input := &sesv2.SendEmailInput{
		FromEmailAddress: aws.String(fmt.Sprintf("%s <%s>", s.fromName, s.fromEmail)),
		Destination: &types.Destination{
			ToAddresses: []string{toEmail},
		},
		Content: &types.EmailContent{
			Simple: &types.Message{
				Subject: &types.Content{Data: aws.String(subject)},
				Body: &types.Body{
					Html: &types.Content{Data: aws.String(htmlBody)},
					Text: &types.Content{Data: aws.String(textBody)},
				},
			},
		},
	}

	if _, err := s.client.SendEmail(ctx, input); err != nil {
		return fmt.Errorf("failed to send completion certificate: %w", err)
	}
	log.Printf("Sent completion certificate to %s", toEmail)
	return nil
}
