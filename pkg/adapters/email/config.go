package email

// Config holds email delivery configuration.
// SenderEmail establishes the sender identity and SupportEmail the reply-to
// behavior for all outbound emails. The Postmark tokens are optional so
// development environments can run on the dev sender instead.
type Config struct {
	PostmarkServerToken  string `env:"POSTMARK_SERVER_TOKEN"`
	PostmarkAccountToken string `env:"POSTMARK_ACCOUNT_TOKEN"`
	SenderEmail          string `env:"SENDER_EMAIL,required"`
	SupportEmail         string `env:"SUPPORT_EMAIL,required"`
}
