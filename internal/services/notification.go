package services

import (
	"context"
	"fmt"
	"html"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/go-telegram/bot"
	tgmodels "github.com/go-telegram/bot/models"
	"github.com/sirupsen/logrus"
	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/irfndi/sepa-screener/internal/config"
	"github.com/irfndi/sepa-screener/internal/models"
	"github.com/irfndi/sepa-screener/internal/screener"
)

// telegramMessageLimit stays under Telegram's 4096 character cap.
const telegramMessageLimit = 3800

// MessageSender is the part of *bot.Bot the notifier needs.
type MessageSender interface {
	SendMessage(ctx context.Context, params *bot.SendMessageParams) (*tgmodels.Message, error)
}

// Notifier delivers watch-list notifications.
type Notifier interface {
	Notify(ctx context.Context, date time.Time, notes []models.Notification) (int, error)
}

// TelegramNotifier sends a digest of the day's notifications to every
// configured chat. Sends go through the "telegram_send" retry policy and a
// circuit breaker so an outage does not stall the run.
type TelegramNotifier struct {
	sender   MessageSender
	chatIDs  []int64
	printer  *message.Printer
	recovery *ErrorRecoveryManager
	breaker  *CircuitBreaker
	logger   *logrus.Logger
}

// NewTelegramBot connects to the Bot API with token.
func NewTelegramBot(token string) (*bot.Bot, error) {
	b, err := bot.New(token)
	if err != nil {
		return nil, fmt.Errorf("failed to create telegram bot: %w", err)
	}
	return b, nil
}

// NewTelegramNotifier builds a notifier over sender. lang is a BCP 47 tag
// used for number formatting; unknown tags fall back to en-US.
func NewTelegramNotifier(sender MessageSender, cfg config.TelegramConfig, lang string, recovery *ErrorRecoveryManager, logger *logrus.Logger) *TelegramNotifier {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	if recovery == nil {
		recovery = NewErrorRecoveryManager(logger)
	}
	breaker := recovery.CircuitBreaker(PolicyTelegram)
	if breaker == nil {
		breaker = recovery.RegisterCircuitBreaker(PolicyTelegram, CircuitBreakerConfig{
			FailureThreshold: 3,
			SuccessThreshold: 1,
			Timeout:          time.Minute,
			MaxRequests:      1,
			ResetTimeout:     10 * time.Minute,
		})
	}
	tag, err := language.Parse(lang)
	if err != nil {
		tag = language.AmericanEnglish
	}
	return &TelegramNotifier{
		sender:   sender,
		chatIDs:  cfg.ChatIDs,
		printer:  message.NewPrinter(tag),
		recovery: recovery,
		breaker:  breaker,
		logger:   logger,
	}
}

// Notify sends the digest to every chat and returns the number of messages
// delivered. Failures for one chat do not stop the others; the last error
// is returned.
func (n *TelegramNotifier) Notify(ctx context.Context, date time.Time, notes []models.Notification) (int, error) {
	if len(notes) == 0 || len(n.chatIDs) == 0 {
		return 0, nil
	}

	messages := n.FormatDigest(date, notes)
	sent := 0
	var lastErr error
	for _, chatID := range n.chatIDs {
		for _, text := range messages {
			err := n.recovery.ExecuteWithRetry(ctx, PolicyTelegram, func() error {
				return n.breaker.Execute(ctx, func(ctx context.Context) error {
					_, err := n.sender.SendMessage(ctx, &bot.SendMessageParams{
						ChatID:    chatID,
						Text:      text,
						ParseMode: tgmodels.ParseModeHTML,
					})
					return err
				})
			})
			if err != nil {
				lastErr = fmt.Errorf("failed to send telegram message to %d: %w", chatID, err)
				n.logger.WithFields(logrus.Fields{
					"chat_id": chatID,
					"error":   err.Error(),
				}).Error("Failed to deliver notification digest")
				break
			}
			sent++
		}
	}

	n.logger.WithFields(logrus.Fields{
		"date":          date.Format(models.DateLayout),
		"notifications": len(notes),
		"messages":      sent,
		"chats":         len(n.chatIDs),
	}).Info("Delivered notification digest")
	return sent, lastErr
}

// FormatDigest renders notes grouped by symbol, split into messages that
// fit one Telegram message each.
func (n *TelegramNotifier) FormatDigest(date time.Time, notes []models.Notification) []string {
	bySymbol := make(map[string][]models.Notification)
	for _, note := range notes {
		bySymbol[note.Symbol] = append(bySymbol[note.Symbol], note)
	}
	symbols := make([]string, 0, len(bySymbol))
	for s := range bySymbol {
		symbols = append(symbols, s)
	}
	sort.Strings(symbols)

	header := n.printer.Sprintf("<b>SEPA watch list %s</b>: %d updates\n", date.Format(models.DateLayout), len(notes))
	var (
		messages []string
		b        strings.Builder
	)
	b.WriteString(header)
	for _, symbol := range symbols {
		block := n.formatSymbol(symbol, bySymbol[symbol])
		if b.Len()+len(block) > telegramMessageLimit && b.Len() > len(header) {
			messages = append(messages, b.String())
			b.Reset()
			b.WriteString(header)
		}
		b.WriteString(block)
	}
	return append(messages, b.String())
}

func (n *TelegramNotifier) formatSymbol(symbol string, notes []models.Notification) string {
	var b strings.Builder
	fmt.Fprintf(&b, "\n<b>%s</b>\n", html.EscapeString(symbol))
	for _, note := range notes {
		b.WriteString("• ")
		b.WriteString(n.FormatNotification(note))
		b.WriteString("\n")
		for _, r := range note.Reasons {
			fmt.Fprintf(&b, "    - %s\n", html.EscapeString(r.String()))
		}
	}
	return b.String()
}

// FormatNotification renders one notification as a single line.
func (n *TelegramNotifier) FormatNotification(note models.Notification) string {
	switch note.Type {
	case models.NotifyWaitToBuy:
		if note.OldValue == "" {
			return "Buy signal: WAIT"
		}
		return fmt.Sprintf("Buy signal: %s → WAIT", html.EscapeString(note.OldValue))
	case models.NotifyEarningsSurprise:
		return "Earnings surprise " + n.signedPercent(note.NewValue)
	default:
		return fmt.Sprintf("%s: %s → %s", metricLabel(note.Metric), n.value(note.OldValue), n.value(note.NewValue))
	}
}

func (n *TelegramNotifier) value(s string) string {
	if s == "" {
		return "n/a"
	}
	if _, err := strconv.Atoi(s); err == nil {
		return s
	}
	if v, err := strconv.ParseFloat(s, 64); err == nil {
		return n.printer.Sprintf("%.2f", v)
	}
	return html.EscapeString(s)
}

func (n *TelegramNotifier) signedPercent(s string) string {
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return html.EscapeString(s)
	}
	return n.printer.Sprintf("%+.2f%%", v)
}

func metricLabel(metric string) string {
	switch metric {
	case screener.MetricBuySignal:
		return "Buy signal"
	case screener.MetricHolderSignal:
		return "Holder signal"
	case screener.MetricStage:
		return "Stage"
	case screener.MetricVCPDetected:
		return "VCP detected"
	case screener.MetricVCPScore:
		return "VCP score"
	case screener.MetricRSRating:
		return "RS rating"
	case screener.MetricPassesTemplate:
		return "Trend template"
	case screener.MetricPassesEarnings:
		return "Earnings criteria"
	default:
		return html.EscapeString(metric)
	}
}
