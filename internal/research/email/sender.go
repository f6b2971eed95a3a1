// internal/research/email/sender.go
package email

import (
	"context"
	"errors"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ses"
	"github.com/aws/aws-sdk-go-v2/service/ses/types"

	apperrors "kiro-assistant/internal/common/errors"
	"kiro-assistant/internal/common/logger"
	"kiro-assistant/internal/common/metrics"
)

var ErrEmailSendFailed = errors.New("EMAIL_SEND_FAILED")

const charset = "UTF-8"

// SESClient is satisfied by *aws.SESClient from internal/common/aws.
type SESClient interface {
	SendEmail(ctx context.Context, input *ses.SendEmailInput) (*ses.SendEmailOutput, error)
}

type Sender struct {
	client  SESClient
	from    string
	replyTo string
	logger  logger.Logger
}

func NewSender(client SESClient, from, replyTo string, log logger.Logger) *Sender {
	return &Sender{client: client, from: from, replyTo: replyTo, logger: log}
}

func (s *Sender) Send(ctx context.Context, to string, e Email) error {
	input := &ses.SendEmailInput{
		Destination: &types.Destination{
			ToAddresses: []string{to},
		},
		Message: &types.Message{
			Subject: &types.Content{Data: aws.String(e.Subject), Charset: aws.String(charset)},
			Body: &types.Body{
				Text: &types.Content{Data: aws.String(e.Text), Charset: aws.String(charset)},
				Html: &types.Content{Data: aws.String(e.HTML), Charset: aws.String(charset)},
			},
		},
		Source: aws.String(s.from),
	}
	if s.replyTo != "" {
		input.ReplyToAddresses = []string{s.replyTo}
	}

	out, err := s.client.SendEmail(ctx, input)
	if err != nil {
		metrics.EmailSends.WithLabelValues("failed").Inc()
		s.logger.Error("failed to send report email", map[string]interface{}{
			"error": err,
		})
		return apperrors.NewEmailSendFailedError(to, fmt.Errorf("%w: %w", ErrEmailSendFailed, err))
	}

	metrics.EmailSends.WithLabelValues("sent").Inc()
	fields := map[string]interface{}{"subject": e.Subject}
	if out != nil && out.MessageId != nil {
		fields["messageId"] = *out.MessageId
	}
	s.logger.Info("report email sent", fields)
	return nil
}
