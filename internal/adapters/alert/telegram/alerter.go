// Package telegram delivers operator alerts to a Telegram chat through a bot.
package telegram

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/bnema/accountpool/internal/ports"
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

const (
	defaultTimeout = 10 * time.Second
	// Telegram rejects text longer than this many characters.
	maxMessageLength = 4096
)

var errMissingToken = errors.New("telegram bot token is empty")

type Config struct {
	Token  string
	ChatID int64
	// Source is prepended to every alert so operators can tell processes apart.
	Source string
	// Endpoint overrides tgbotapi.APIEndpoint, mainly for tests.
	Endpoint string
	Client   *http.Client
}

type Alerter struct {
	bot    *tgbotapi.BotAPI
	chatID int64
	source string
}

var _ ports.Alerter = (*Alerter)(nil)

// New authenticates the bot with getMe before returning.
func New(cfg Config) (*Alerter, error) {
	if strings.TrimSpace(cfg.Token) == "" {
		return nil, errMissingToken
	}
	if cfg.ChatID == 0 {
		return nil, errors.New("telegram chat id is empty")
	}

	endpoint := cfg.Endpoint
	if endpoint == "" {
		endpoint = tgbotapi.APIEndpoint
	}
	client := cfg.Client
	if client == nil {
		client = &http.Client{Timeout: defaultTimeout}
	}

	bot, err := tgbotapi.NewBotAPIWithClient(cfg.Token, endpoint, client)
	if err != nil {
		return nil, fmt.Errorf("connect telegram bot: %w", err)
	}

	return &Alerter{bot: bot, chatID: cfg.ChatID, source: cfg.Source}, nil
}

func (a *Alerter) Alert(ctx context.Context, message string) error {
	text := message
	if a.source != "" {
		text = "[" + a.source + "] " + message
	}
	if runes := []rune(text); len(runes) > maxMessageLength {
		text = string(runes[:maxMessageLength-1]) + "…"
	}

	// The bot client has no context support; the send is abandoned, not
	// aborted, when ctx ends first.
	done := make(chan error, 1)
	go func() {
		_, err := a.bot.Send(tgbotapi.NewMessage(a.chatID, text))
		done <- err
	}()

	select {
	case err := <-done:
		if err != nil {
			return fmt.Errorf("send telegram alert: %w", err)
		}
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
