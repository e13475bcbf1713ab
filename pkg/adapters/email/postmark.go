package email

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"

	"github.com/mrz1836/postmark"
)

type postmarkSender struct {
	client *postmark.Client
	config Config
}

// NewPostmarkSender creates a Postmark-backed email sender. Both tokens are
// required for runtime operation so misconfiguration fails at startup instead
// of silently dropping mail in production.
func NewPostmarkSender(cfg Config) (Sender, error) {
	if cfg.PostmarkServerToken == "" {
		return nil, fmt.Errorf("%w: PostmarkServerToken is required", ErrInvalidConfig)
	}
	if cfg.PostmarkAccountToken == "" {
		return nil, fmt.Errorf("%w: PostmarkAccountToken is required", ErrInvalidConfig)
	}
	if cfg.SenderEmail == "" {
		return nil, fmt.Errorf("%w: SenderEmail is required", ErrInvalidConfig)
	}
	if !emailRegex.MatchString(cfg.SenderEmail) {
		return nil, fmt.Errorf("%w: SenderEmail must be a valid email address", ErrInvalidConfig)
	}
	if cfg.SupportEmail == "" {
		return nil, fmt.Errorf("%w: SupportEmail is required", ErrInvalidConfig)
	}
	if !emailRegex.MatchString(cfg.SupportEmail) {
		return nil, fmt.Errorf("%w: SupportEmail must be a valid email address", ErrInvalidConfig)
	}

	return &postmarkSender{
		client: postmark.NewClient(cfg.PostmarkServerToken, cfg.PostmarkAccountToken),
		config: cfg,
	}, nil
}

// MustNewPostmarkSender creates a Postmark sender that panics on invalid
// config, failing fast during initialization.
func MustNewPostmarkSender(cfg Config) Sender {
	s, err := NewPostmarkSender(cfg)
	if err != nil {
		panic(err)
	}
	return s
}

// SendEmail implements Sender using Postmark's transactional API. Tracking is
// limited to opens and HTML link clicks to avoid mangling plain text.
// Reply-To is set to the support address so recipient responses reach a
// monitored inbox.
func (s *postmarkSender) SendEmail(ctx context.Context, params SendEmailParams) error {
	if err := params.Validate(); err != nil {
		return err
	}

	msg := postmark.Email{
		From:       s.config.SenderEmail,
		ReplyTo:    s.config.SupportEmail,
		To:         params.SendTo,
		Subject:    params.Subject,
		Tag:        params.Tag,
		HTMLBody:   params.BodyHTML,
		TrackOpens: true,
		TrackLinks: "HtmlOnly",
	}
	for _, a := range params.Attachments {
		msg.Attachments = append(msg.Attachments, postmark.Attachment{
			Name:        a.Name,
			Content:     base64.StdEncoding.EncodeToString(a.Content),
			ContentType: a.ContentType,
		})
	}

	resp, err := s.client.SendEmail(ctx, msg)
	if err != nil {
		return errors.Join(ErrFailedToSendEmail, err)
	}
	if resp.ErrorCode > 0 {
		return errors.Join(
			ErrFailedToSendEmail,
			fmt.Errorf("postmark error: %d - %s", resp.ErrorCode, resp.Message),
		)
	}
	return nil
}
