// Package resend delivers transactional email through the Resend API.
package resend

import (
	"context"

	"github.com/cockroachdb/errors"
	resend "github.com/resend/resend-go/v2"
)

type emailSender interface {
	SendWithContext(ctx context.Context, params *resend.SendEmailRequest) (*resend.SendEmailResponse, error)
}

type Sender struct {
	emails emailSender
}

func NewSender(apiKey string) *Sender {
	return &Sender{emails: resend.NewClient(apiKey).Emails}
}

// Send submits one HTML email and returns the provider's message id.
func (s *Sender) Send(ctx context.Context, from string, to []string, subject, html string) (string, error) {
	resp, err := s.emails.SendWithContext(ctx, &resend.SendEmailRequest{
		From:    from,
		To:      to,
		Subject: subject,
		Html:    html,
	})
	if err != nil {
		return "", errors.Wrap(err, "resend")
	}
	if resp == nil {
		return "", errors.New("resend: empty response")
	}
	return resp.Id, nil
}
