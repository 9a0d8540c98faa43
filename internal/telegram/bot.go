package telegram

import (
	"context"
	"errors"
	"fmt"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rs/zerolog/log"

	"portfolio/internal/chat"
	"portfolio/internal/sessions"
)

const clearCmd = "clear_chat"

const busyText = "Still working on your previous question, one moment."

// Bot exposes the assistant in Telegram. Every chat gets its own widget.
type Bot struct {
	api      *tgbotapi.BotAPI
	s        sender
	sessions *sessions.Manager
	greeting string
}

func New(botToken string, mgr *sessions.Manager, greeting string) (*Bot, error) {
	api, err := tgbotapi.NewBotAPI(botToken)
	if err != nil {
		return nil, fmt.Errorf("init telegram api: %w", err)
	}
	return &Bot{
		api:      api,
		s:        botAPISender{api: api},
		sessions: mgr,
		greeting: greeting,
	}, nil
}

// Start polls for updates until ctx is done. Each message is handled on
// its own goroutine so one slow reply does not hold up other chats.
func (b *Bot) Start(ctx context.Context) {
	u := tgbotapi.NewUpdate(0)
	u.Timeout = 60

	updates := b.api.GetUpdatesChan(u)
	log.Info().Str("bot", b.api.Self.UserName).Msg("telegram bot started")

	for {
		select {
		case <-ctx.Done():
			b.api.StopReceivingUpdates()
			log.Info().Msg("telegram bot stopped")
			return
		case update, ok := <-updates:
			if !ok {
				return
			}
			if update.Message != nil {
				go b.handleIncomingMessage(ctx, update.Message)
				continue
			}
			if update.CallbackQuery != nil {
				b.handleCallback(update.CallbackQuery)
			}
		}
	}
}

func sessionID(chatID int64) string {
	return fmt.Sprintf("tg:%d", chatID)
}

func (b *Bot) handleIncomingMessage(ctx context.Context, msg *tgbotapi.Message) {
	w := b.sessions.GetOrCreate(sessionID(msg.Chat.ID), sessions.ChannelTelegram)

	if msg.IsCommand() {
		switch msg.Command() {
		case "start":
			b.sendMessage(msg.Chat.ID, b.greeting)
		case "clear":
			w.Clear()
			b.sendMessage(msg.Chat.ID, "Chat cleared.")
		default:
			b.sendMessage(msg.Chat.ID, "Unknown command. Just ask me a question!")
		}
		return
	}

	log.Info().Int64("chat", msg.Chat.ID).Int("len", len(msg.Text)).Msg("incoming telegram message")

	reply, err := w.Submit(ctx, msg.Text)
	switch {
	case errors.Is(err, chat.ErrEmptyInput):
		return
	case errors.Is(err, chat.ErrBusy):
		b.sendMessage(msg.Chat.ID, busyText)
		return
	case err != nil:
		log.Error().Err(err).Int64("chat", msg.Chat.ID).Msg("submit failed")
		return
	}

	kb := tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("Clear chat", clearCmd),
		),
	)
	out := tgbotapi.NewMessage(msg.Chat.ID, reply.Text)
	out.ReplyMarkup = kb
	if _, err := b.s.Send(out); err != nil {
		log.Error().Err(err).Msg("failed to send message")
	}
}

func (b *Bot) handleCallback(cb *tgbotapi.CallbackQuery) {
	if _, err := b.s.Request(tgbotapi.NewCallback(cb.ID, "")); err != nil {
		log.Warn().Err(err).Msg("failed to answer callback")
	}
	if cb.Data != clearCmd || cb.Message == nil {
		return
	}
	w, err := b.sessions.Get(sessionID(cb.Message.Chat.ID))
	if err != nil {
		b.sendMessage(cb.Message.Chat.ID, "Nothing to clear.")
		return
	}
	w.Clear()
	b.sendMessage(cb.Message.Chat.ID, "Chat cleared.")
}

func (b *Bot) sendMessage(chatID int64, text string) {
	msg := tgbotapi.NewMessage(chatID, text)
	if _, err := b.s.Send(msg); err != nil {
		log.Error().Err(err).Msg("failed to send message")
	}
}
