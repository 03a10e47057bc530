package bot

import (
	"context"
	"fmt"
	"log"
	"strconv"
	"strings"
	"time"

	"riskwatch/internal/domain"

	tele "gopkg.in/telebot.v3"
)

const (
	defaultIncidentCount = 5
	maxIncidentCount     = 20
)

// IncidentFeed lists recent incidents for the given caller.
type IncidentFeed interface {
	ListIncidents(ctx context.Context, caller domain.Caller, accountID *int64, limit int) ([]domain.Incident, error)
}

type sender interface {
	Send(to tele.Recipient, what interface{}, opts ...interface{}) (*tele.Message, error)
}

// TelegramRelay forwards admin notices to one Telegram chat.
type TelegramRelay struct {
	bot    sender
	chatID int64
}

func (r *TelegramRelay) Relay(ctx context.Context, message string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	_, err := r.bot.Send(tele.ChatID(r.chatID), message)
	return err
}

var newBot = tele.NewBot

// StartTelegramBot starts the bot and returns a relay to the admin chat. It
// returns nil when no token or admin chat is configured.
func StartTelegramBot(token string, adminChatID int64, incidents IncidentFeed) *TelegramRelay {
	if token == "" {
		log.Println("TELEGRAM_BOT_TOKEN not set, skipping Telegram bot startup")
		return nil
	}
	if adminChatID == 0 {
		log.Println("TELEGRAM_ADMIN_CHAT_ID not set, skipping Telegram bot startup")
		return nil
	}
	pref := tele.Settings{
		Token:  token,
		Poller: &tele.LongPoller{Timeout: 10 * time.Second},
	}
	b, err := newBot(pref)
	if err != nil {
		log.Fatalf("failed to create Telegram bot: %v", err)
	}

	admin := adminOnly(adminChatID)
	b.Handle("/ping", func(c tele.Context) error {
		return c.Send("pong")
	}, admin)
	b.Handle("/incidents", incidentsHandler(incidents), admin)

	log.Println("Telegram bot started")
	go b.Start()
	return &TelegramRelay{bot: b, chatID: adminChatID}
}

// adminOnly drops updates from any chat other than the admin chat.
func adminOnly(chatID int64) tele.MiddlewareFunc {
	return func(next tele.HandlerFunc) tele.HandlerFunc {
		return func(c tele.Context) error {
			if c.Chat() == nil || c.Chat().ID != chatID {
				return nil
			}
			return next(c)
		}
	}
}

func incidentsHandler(incidents IncidentFeed) tele.HandlerFunc {
	return func(c tele.Context) error {
		n := defaultIncidentCount
		if args := c.Args(); len(args) > 0 {
			v, err := strconv.Atoi(args[0])
			if err != nil || v <= 0 {
				return c.Send("Usage: /incidents [count]")
			}
			n = min(v, maxIncidentCount)
		}

		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		list, err := incidents.ListIncidents(ctx, domain.Caller{IsAdmin: true}, nil, n)
		if err != nil {
			return c.Send(fmt.Sprintf("Error loading incidents: %v", err))
		}
		return c.Send(formatIncidents(list))
	}
}

func formatIncidents(list []domain.Incident) string {
	if len(list) == 0 {
		return "No incidents recorded"
	}
	var b strings.Builder
	fmt.Fprintf(&b, "Last %d incidents\n", len(list))
	for _, inc := range list {
		state := "logged"
		switch {
		case inc.IsExecuted:
			state = "executed"
		case inc.Fired:
			state = "PENDING"
		}
		rule := inc.RuleName
		if rule == "" {
			rule = fmt.Sprintf("rule %d", inc.RiskRuleID)
		}
		fmt.Fprintf(&b, "#%d %s acct %d %s (%s) x%d [%s]\n",
			inc.ID, inc.CreatedAt.UTC().Format("01-02 15:04"), inc.AccountLogin, rule, inc.RuleSeverity, inc.Count, state)
	}
	return strings.TrimRight(b.String(), "\n")
}
