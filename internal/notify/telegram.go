package notify

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

// TelegramConfig holds Telegram bot configuration
type TelegramConfig struct {
	Token       string
	Endpoint    string // Bot API URL template, defaults to tgbotapi.APIEndpoint
	HTTPClient  *http.Client
	RespondPing bool // Answer "ping" with "pong" to confirm the bot is alive
}

// Telegram is a Channel backed by a Telegram bot. Recipients are chat ids.
type Telegram struct {
	cfg       TelegramConfig
	lifecycle *Lifecycle

	mu     sync.RWMutex
	api    *tgbotapi.BotAPI
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewTelegram creates a Telegram channel. No network calls happen until Start.
func NewTelegram(cfg TelegramConfig) (*Telegram, error) {
	if cfg.Token == "" {
		return nil, fmt.Errorf("telegram token is required")
	}
	if cfg.Endpoint == "" {
		cfg.Endpoint = tgbotapi.APIEndpoint
	}
	if cfg.HTTPClient == nil {
		cfg.HTTPClient = &http.Client{Timeout: 30 * time.Second}
	}
	return &Telegram{
		cfg:       cfg,
		lifecycle: NewLifecycle(),
	}, nil
}

// Start authenticates the bot and, if configured, starts answering pings
func (t *Telegram) Start(ctx context.Context) error {
	if err := t.lifecycle.Transition(StateAwaitingAuth, nil); err != nil {
		return err
	}

	api, err := tgbotapi.NewBotAPIWithClient(t.cfg.Token, t.cfg.Endpoint, t.cfg.HTTPClient)
	if err != nil {
		err = fmt.Errorf("authenticating telegram bot: %w", err)
		t.lifecycle.Transition(StateFailed, err)
		return err
	}
	slog.Info("Telegram bot authorized", "username", api.Self.UserName)

	t.mu.Lock()
	t.api = api
	if t.cfg.RespondPing {
		loopCtx, cancel := context.WithCancel(ctx)
		t.cancel = cancel
		t.wg.Add(1)
		go t.run(loopCtx, api)
	}
	t.mu.Unlock()

	return t.lifecycle.Transition(StateReady, nil)
}

// WaitReady blocks until Start has settled
func (t *Telegram) WaitReady(ctx context.Context) error {
	return t.lifecycle.WaitReady(ctx)
}

// State returns the channel state
func (t *Telegram) State() State {
	return t.lifecycle.State()
}

// Shutdown stops the update loop. The channel cannot be used afterwards.
func (t *Telegram) Shutdown() {
	t.mu.Lock()
	api, cancel := t.api, t.cancel
	t.cancel = nil
	t.mu.Unlock()

	if cancel != nil {
		api.StopReceivingUpdates()
		cancel()
		t.wg.Wait()
	}
	if t.lifecycle.State() == StateReady {
		t.lifecycle.Transition(StateFailed, ErrClosed)
	}
}

// Send delivers text to the chat identified by recipient
func (t *Telegram) Send(ctx context.Context, recipient, text string) error {
	if t.lifecycle.State() != StateReady {
		return ErrNotReady
	}
	chatID, err := ParseChatID(recipient)
	if err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	t.mu.RLock()
	api := t.api
	t.mu.RUnlock()

	if _, err := api.Send(tgbotapi.NewMessage(chatID, text)); err != nil {
		return fmt.Errorf("sending telegram message: %w", err)
	}
	return nil
}

// ParseChatID validates a Telegram chat id. Group chats have negative ids.
func ParseChatID(recipient string) (int64, error) {
	id, err := strconv.ParseInt(strings.TrimSpace(recipient), 10, 64)
	if err != nil || id == 0 {
		return 0, fmt.Errorf("%q: %w", recipient, ErrInvalidRecipient)
	}
	return id, nil
}

func (t *Telegram) run(ctx context.Context, api *tgbotapi.BotAPI) {
	defer t.wg.Done()

	u := tgbotapi.NewUpdate(0)
	u.Timeout = 60
	updates := api.GetUpdatesChan(u)

	for {
		select {
		case <-ctx.Done():
			return
		case update, ok := <-updates:
			if !ok {
				return
			}
			t.handleUpdate(api, update)
		}
	}
}

func (t *Telegram) handleUpdate(api *tgbotapi.BotAPI, update tgbotapi.Update) {
	msg := update.Message
	if msg == nil || msg.Chat == nil {
		return
	}
	if strings.ToLower(strings.TrimSpace(msg.Text)) != "ping" {
		return
	}

	reply := tgbotapi.NewMessage(msg.Chat.ID, "pong")
	reply.ReplyToMessageID = msg.MessageID
	if _, err := api.Send(reply); err != nil {
		slog.Warn("Failed to answer ping", "chat_id", msg.Chat.ID, "error", err)
	}
}
