package channels

import (
	"time"

	"github.com/dmitrymomot/notifykit/pkg/email"
)

// Config holds platform-wide provider credentials. A tenant channel config
// overrides any of them through its credentials map.
type Config struct {
	Email email.Config

	LineChannelAccessToken string `env:"LINE_CHANNEL_ACCESS_TOKEN"`
	LineAPIURL             string `env:"LINE_API_URL" envDefault:"https://api.line.me"`

	WhatsAppAccessToken   string `env:"WHATSAPP_ACCESS_TOKEN"`
	WhatsAppPhoneNumberID string `env:"WHATSAPP_PHONE_NUMBER_ID"`
	WhatsAppAPIURL        string `env:"WHATSAPP_API_URL" envDefault:"https://graph.facebook.com/v19.0"`

	TelegramBotToken    string `env:"TELEGRAM_BOT_TOKEN"`
	TelegramAPIEndpoint string `env:"TELEGRAM_API_ENDPOINT" envDefault:"https://api.telegram.org/bot%s/%s"`

	SMSAccountSID string `env:"SMS_ACCOUNT_SID"`
	SMSAuthToken  string `env:"SMS_AUTH_TOKEN"`
	SMSFrom       string `env:"SMS_FROM"`
	SMSAPIURL     string `env:"SMS_API_URL" envDefault:"https://api.twilio.com/2010-04-01"`

	FCMProjectID       string `env:"FCM_PROJECT_ID"`
	FCMCredentialsJSON string `env:"FCM_CREDENTIALS_JSON"`
	FCMAPIURL          string `env:"FCM_API_URL" envDefault:"https://fcm.googleapis.com"`

	BreakerFailureThreshold int           `env:"PROVIDER_BREAKER_FAILURES" envDefault:"5"`
	BreakerSuccessThreshold int           `env:"PROVIDER_BREAKER_SUCCESSES" envDefault:"2"`
	BreakerRecoveryTimeout  time.Duration `env:"PROVIDER_BREAKER_RECOVERY" envDefault:"30s"`
}

// Credential keys read from tenant channel configs.
const (
	CredLineChannelAccessToken = "channel_access_token"
	CredWhatsAppAccessToken    = "access_token"
	CredWhatsAppPhoneNumberID  = "phone_number_id"
	CredTelegramBotToken       = "bot_token"
	CredSMSAccountSID          = "account_sid"
	CredSMSAuthToken           = "auth_token"
	CredSMSFrom                = "from"
	CredFCMProjectID           = "project_id"
	CredFCMCredentialsJSON     = "service_account_json"
	CredFCMAccessToken         = "access_token"
)

// Metadata keys adapters read from notifications.
const (
	MetaWhatsAppTemplate = "whatsapp_template"
	MetaWhatsAppLanguage = "whatsapp_language"
)
