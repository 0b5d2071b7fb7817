package events

import (
	"context"
	"fmt"
	"html"

	"github.com/keighl/postmark"
	"github.com/rs/zerolog/log"

	"git.sr.ht/~aondrejcak/chai-api/models"
)

type Mailer interface {
	SendEmail(email postmark.Email) (postmark.EmailResponse, error)
}

type UserLookup interface {
	FindUserByID(ctx context.Context, id string) (*models.User, error)
}

// MailHandler tells a creator about a donation they received.
type MailHandler struct {
	mailer Mailer
	users  UserLookup
	sender string
}

func NewMailHandler(mailer Mailer, users UserLookup, sender string) *MailHandler {
	return &MailHandler{mailer: mailer, users: users, sender: sender}
}

func NewPostmarkHandler(serverToken string, users UserLookup, sender string) *MailHandler {
	return NewMailHandler(postmark.NewClient(serverToken, ""), users, sender)
}

func (h *MailHandler) Name() string {
	return "postmark"
}

func (h *MailHandler) Handle(ctx context.Context, ev DonationCompleted) error {
	creator, err := h.users.FindUserByID(ctx, ev.PayeeID)
	if err != nil {
		return fmt.Errorf("could not look up creator: %w", err)
	}
	if creator == nil || creator.Email == "" {
		log.Warn().Str("payee_id", ev.PayeeID).Msg("creator has no email, skipping notification")
		return nil
	}

	from := "Someone"
	if payer, err := h.users.FindUserByID(ctx, ev.PayerID); err == nil && payer != nil {
		from = payer.Username
	}

	subject := fmt.Sprintf("%s bought you a chai", from)
	text := fmt.Sprintf("%s sent you %d %s.", from, ev.Amount, ev.Currency)
	body := "<p>" + html.EscapeString(text) + "</p>"
	if ev.Message != "" {
		text += "\n\n" + ev.Message
		body += "<blockquote>" + html.EscapeString(ev.Message) + "</blockquote>"
	}

	res, err := h.mailer.SendEmail(postmark.Email{
		From:     h.sender,
		To:       creator.Email,
		Subject:  subject,
		HtmlBody: body,
		TextBody: text,
		Tag:      TypeDonationCompleted,
	})
	if err != nil {
		return fmt.Errorf("failed to send email: %w", err)
	}
	if res.ErrorCode != 0 {
		return fmt.Errorf("postmark rejected email: %d %s", res.ErrorCode, res.Message)
	}

	log.Info().Str("payment_id", ev.PaymentID).Str("message_id", res.MessageID).Msg("donation email sent")
	return nil
}
