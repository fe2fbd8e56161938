package notify

import (
	"context"
	"fmt"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/ticketd-io/ticketd/internal/platform"
)

// LogChannel uploads the transcript artifact into the configured staff
// log channel.
type LogChannel struct {
	Platform   platform.Platform
	ChannelRef string
}

func (l *LogChannel) Name() string { return "log-channel" }

func (l *LogChannel) Deliver(ctx context.Context, c Closure) error {
	comment := fmt.Sprintf("Ticket closed: %s — reason: %s", c.Ticket.ChannelRef, c.Reason)
	return l.Platform.SendFile(ctx, l.ChannelRef, c.ArtifactName, c.Transcript, comment)
}

// OwnerDM sends the transcript artifact to the ticket owner as a direct
// message.
type OwnerDM struct {
	Platform platform.Platform
}

func (o *OwnerDM) Name() string { return "owner-dm" }

func (o *OwnerDM) Deliver(ctx context.Context, c Closure) error {
	text := fmt.Sprintf("Your ticket %s was closed. Reason: %s", c.Ticket.ChannelRef, c.Reason)
	return o.Platform.SendDirect(ctx, c.Ticket.OwnerRef, text, &platform.Attachment{
		Name:    c.ArtifactName,
		Content: c.Transcript,
	})
}

// OpsAlert posts a one-line closure notice to an operator's Telegram
// chat. Outbound only; no transcript content leaves the platform.
type OpsAlert struct {
	bot    *tgbotapi.BotAPI
	chatID int64
}

// NewOpsAlert creates a Telegram ops-alert target.
func NewOpsAlert(token string, chatID int64) (*OpsAlert, error) {
	bot, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("notify: init telegram bot: %w", err)
	}
	return &OpsAlert{bot: bot, chatID: chatID}, nil
}

func (o *OpsAlert) Name() string { return "ops-alert" }

func (o *OpsAlert) Deliver(_ context.Context, c Closure) error {
	text := fmt.Sprintf("Ticket %s (scope %s) closed by %s: %s",
		c.Ticket.ChannelRef, c.Ticket.ScopeID, c.Actor, c.Reason)
	if _, err := o.bot.Send(tgbotapi.NewMessage(o.chatID, text)); err != nil {
		return fmt.Errorf("notify: telegram send: %w", err)
	}
	return nil
}
