// Package discord exposes the assistant to Discord channels. Messages that
// start with the command prefix are questions; each author in each channel
// has their own widget.
package discord

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/bwmarrin/discordgo"
	"github.com/rs/zerolog/log"

	"portfolio/internal/chat"
	"portfolio/internal/sessions"
)

// Discord rejects messages over 2000 characters.
const maxMessageLen = 1900

const busyText = "Still working on your previous question, one moment."

type sender interface {
	ChannelMessageSend(channelID, content string, options ...discordgo.RequestOption) (*discordgo.Message, error)
	ChannelTyping(channelID string, options ...discordgo.RequestOption) error
}

type Bot struct {
	session  *discordgo.Session
	s        sender
	sessions *sessions.Manager
	prefix   string
	greeting string
	ctx      context.Context
}

func New(token, prefix string, mgr *sessions.Manager, greeting string) (*Bot, error) {
	session, err := discordgo.New("Bot " + token)
	if err != nil {
		return nil, fmt.Errorf("create discord session: %w", err)
	}
	session.Identify.Intents = discordgo.IntentsGuildMessages | discordgo.IntentsDirectMessages | discordgo.IntentsMessageContent

	b := &Bot{
		session:  session,
		s:        session,
		sessions: mgr,
		prefix:   prefix,
		greeting: greeting,
		ctx:      context.Background(),
	}
	session.AddHandler(func(s *discordgo.Session, r *discordgo.Ready) {
		log.Info().Str("bot", r.User.Username).Int("guilds", len(r.Guilds)).Msg("discord bot online")
	})
	session.AddHandler(func(_ *discordgo.Session, m *discordgo.MessageCreate) {
		b.handleMessage(b.ctx, m.Message)
	})
	return b, nil
}

// Start opens the gateway connection and blocks until ctx is done.
func (b *Bot) Start(ctx context.Context) error {
	b.ctx = ctx
	if err := b.session.Open(); err != nil {
		return fmt.Errorf("open discord connection: %w", err)
	}
	log.Info().Str("prefix", b.prefix).Msg("discord bot started")
	<-ctx.Done()
	log.Info().Msg("discord bot stopped")
	return b.session.Close()
}

func sessionID(channelID, authorID string) string {
	return fmt.Sprintf("discord:%s:%s", channelID, authorID)
}

func (b *Bot) handleMessage(ctx context.Context, m *discordgo.Message) {
	if m.Author == nil || m.Author.Bot {
		return
	}
	if !strings.HasPrefix(m.Content, b.prefix) {
		return
	}
	text := strings.TrimSpace(m.Content[len(b.prefix):])
	id := sessionID(m.ChannelID, m.Author.ID)

	switch strings.ToLower(text) {
	case "":
		b.send(m.ChannelID, b.greeting)
		return
	case "clear":
		if w, err := b.sessions.Get(id); err == nil {
			w.Clear()
		}
		b.send(m.ChannelID, "Chat cleared.")
		return
	}

	w := b.sessions.GetOrCreate(id, sessions.ChannelDiscord)
	if err := b.s.ChannelTyping(m.ChannelID); err != nil {
		log.Debug().Err(err).Msg("typing indicator failed")
	}

	reply, err := w.Submit(ctx, text)
	switch {
	case errors.Is(err, chat.ErrBusy):
		b.send(m.ChannelID, busyText)
		return
	case err != nil:
		log.Error().Err(err).Str("channel", m.ChannelID).Msg("submit failed")
		return
	}
	b.send(m.ChannelID, reply.Text)
}

func (b *Bot) send(channelID, text string) {
	for _, chunk := range splitMessage(text, maxMessageLen) {
		if _, err := b.s.ChannelMessageSend(channelID, chunk); err != nil {
			log.Error().Err(err).Str("channel", channelID).Msg("failed to send discord message")
			return
		}
	}
}

// splitMessage cuts text into chunks of at most limit bytes, preferring
// line breaks and then spaces as cut points.
func splitMessage(text string, limit int) []string {
	var chunks []string
	for len(text) > limit {
		cut := strings.LastIndex(text[:limit], "\n")
		if cut <= 0 {
			cut = strings.LastIndex(text[:limit], " ")
		}
		if cut <= 0 {
			cut = limit
			for cut > 0 && !utf8.RuneStart(text[cut]) {
				cut--
			}
			if cut == 0 {
				_, cut = utf8.DecodeRuneInString(text)
			}
		}
		chunks = append(chunks, text[:cut])
		text = strings.TrimLeft(text[cut:], " \n")
	}
	if text != "" || len(chunks) == 0 {
		chunks = append(chunks, text)
	}
	return chunks
}
