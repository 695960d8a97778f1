// Package email sends transactional email through a provider-agnostic
// Sender interface.
//
// Implementations:
//   - PostmarkSender delivers through Postmark and can report delivery
//     state via StatusChecker.
//   - SMTPSender delivers over SMTP using gomail.
//   - DevSender saves messages to disk for local development.
//
// Every Send validates the message, fills From and Reply-To from Config
// and returns the provider message id used later to match delivery
// callbacks.
//
//	sender, err := email.New(cfg)
//	if err != nil {
//		return err
//	}
//	res, err := sender.Send(ctx, email.Message{
//		To:       "user@example.com",
//		Subject:  "Your reservation is confirmed",
//		HTMLBody: html,
//		TextBody: text,
//		Tag:      "reservation",
//	})
//
// Tenants that bring their own provider store credentials in their email
// channel configuration; FromCredentials builds a Sender from them, taking
// anything missing from the platform Config.
package email
