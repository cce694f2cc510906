package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/go-telegram/bot"
	tgmodels "github.com/go-telegram/bot/models"
	"github.com/joho/godotenv"

	"github.com/irfndi/sepa-screener/internal/config"
	"github.com/irfndi/sepa-screener/internal/logging"
	"github.com/irfndi/sepa-screener/internal/models"
	"github.com/irfndi/sepa-screener/internal/services"
)

// telegramClient is the part of *bot.Bot the check needs.
type telegramClient interface {
	services.MessageSender
	GetMe(ctx context.Context) (*tgmodels.User, error)
}

func main() {
	send := flag.Bool("send", false, "send a sample digest to every configured chat")
	flag.Parse()

	if err := godotenv.Load(); err != nil {
		fmt.Printf("Warning: could not load .env file: %v\n", err)
	}

	cfg, err := config.Load()
	if err != nil {
		fmt.Printf("Failed to load configuration: %v\n", err)
		os.Exit(1)
	}
	if cfg.Telegram.BotToken == "" {
		fmt.Println("TELEGRAM_BOT_TOKEN is not configured")
		os.Exit(1)
	}

	b, err := bot.New(cfg.Telegram.BotToken)
	if err != nil {
		fmt.Printf("Failed to create Telegram bot: %v\n", err)
		os.Exit(1)
	}

	if err := validate(context.Background(), cfg, b, *send, os.Stdout); err != nil {
		fmt.Printf("Validation failed: %v\n", err)
		os.Exit(1)
	}
}

// validate checks the bot identity and chat configuration, and with send
// delivers a sample digest through the production notifier.
func validate(ctx context.Context, cfg *config.Config, client telegramClient, send bool, out io.Writer) error {
	fmt.Fprintf(out, "Bot token configured (length: %d)\n", len(cfg.Telegram.BotToken))

	me, err := client.GetMe(ctx)
	if err != nil {
		return fmt.Errorf("bot API connection failed: %w", err)
	}
	fmt.Fprintf(out, "Bot: %s (@%s, id %d)\n", me.FirstName, me.Username, me.ID)

	if len(cfg.Telegram.ChatIDs) == 0 {
		return errors.New("TELEGRAM_CHAT_IDS is empty, digests would not be delivered")
	}
	fmt.Fprintf(out, "Chats configured: %d\n", len(cfg.Telegram.ChatIDs))

	if !send {
		return nil
	}

	logger := logging.NewLogger("warn", cfg.Environment)
	notifier := services.NewTelegramNotifier(client, cfg.Telegram, cfg.Notifications.Language, nil, logger)
	date := models.DateOnly(time.Now().UTC())
	sent, err := notifier.Notify(ctx, date, []models.Notification{{
		Symbol:   "TEST",
		Date:     date,
		Type:     models.NotifyMetricChange,
		Metric:   "stage",
		OldValue: "1",
		NewValue: "2",
	}})
	if err != nil {
		return fmt.Errorf("sample digest failed after %d messages: %w", sent, err)
	}
	fmt.Fprintf(out, "Sample digest delivered: %d messages\n", sent)
	return nil
}
