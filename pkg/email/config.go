package email

// Provider selects the email backend.
type Provider string

const (
	ProviderPostmark Provider = "postmark"
	ProviderSMTP     Provider = "smtp"
	ProviderDev      Provider = "dev"
)

// Config holds email service configuration.
// Postmark and SMTP settings are optional so development environments can
// run with the dev sender. SenderEmail is required as it establishes the
// sender identity; SupportEmail becomes the Reply-To address.
type Config struct {
	Provider             Provider `env:"EMAIL_PROVIDER" envDefault:"postmark"`
	PostmarkServerToken  string   `env:"POSTMARK_SERVER_TOKEN"`
	PostmarkAccountToken string   `env:"POSTMARK_ACCOUNT_TOKEN"`
	PostmarkStream       string   `env:"POSTMARK_MESSAGE_STREAM" envDefault:"outbound"`
	SMTPHost             string   `env:"SMTP_HOST"`
	SMTPPort             int      `env:"SMTP_PORT" envDefault:"587"`
	SMTPUsername         string   `env:"SMTP_USERNAME"`
	SMTPPassword         string   `env:"SMTP_PASSWORD"`
	SMTPImplicitTLS      bool     `env:"SMTP_IMPLICIT_TLS" envDefault:"false"`
	SenderEmail          string   `env:"SENDER_EMAIL"`
	SenderName           string   `env:"SENDER_NAME"`
	SupportEmail         string   `env:"SUPPORT_EMAIL"`
	DevOutputDir         string   `env:"EMAIL_DEV_DIR" envDefault:"./tmp/emails"`
}

// Credential keys understood by FromCredentials.
const (
	CredProvider             = "provider"
	CredPostmarkServerToken  = "postmark_server_token"
	CredPostmarkAccountToken = "postmark_account_token"
	CredSMTPHost             = "smtp_host"
	CredSMTPPort             = "smtp_port"
	CredSMTPUsername         = "smtp_username"
	CredSMTPPassword         = "smtp_password"
	CredSenderEmail          = "sender_email"
	CredSenderName           = "sender_name"
	CredReplyTo              = "reply_to"
)
