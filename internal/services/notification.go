package services

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/go-telegram/bot"
	tgmodels "github.com/go-telegram/bot/models"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// ErrOutboundRateLimited is returned when the global per-minute outbound
// budget is exhausted. Callers treat it as a delivery failure, not a
// reason to retry immediately.
var ErrOutboundRateLimited = errors.New("outbound rate limit exceeded")

// NotificationService delivers outbound messages over Telegram and
// enforces the global per-minute rate limit every alert path funnels
// through. With no bot token configured it runs in log-only mode, which
// keeps development environments quiet but observable.
type NotificationService struct {
	bot       *bot.Bot
	chatID    int64
	perMinute int
	logger    *logrus.Logger

	mu   sync.Mutex
	sent []time.Time

	// now is swapped out by tests to drive the rate-limit window.
	now func() time.Time
}

// NewNotificationService creates the sender. An empty token selects
// log-only mode.
func NewNotificationService(botToken string, chatID int64, perMinute int, logger *logrus.Logger) *NotificationService {
	var telegramBot *bot.Bot
	if botToken != "" {
		var err error
		telegramBot, err = bot.New(botToken)
		if err != nil {
			logger.WithFields(logrus.Fields{"error": err.Error()}).Warn("Telegram bot init failed, falling back to log-only mode")
			telegramBot = nil
		}
	}
	if perMinute <= 0 {
		perMinute = 20
	}

	return &NotificationService{
		bot:       telegramBot,
		chatID:    chatID,
		perMinute: perMinute,
		logger:    logger,
		now:       time.Now,
	}
}

// Send delivers one message. Implements the Notifier contract.
func (ns *NotificationService) Send(ctx context.Context, text string, allowFormatting bool) (*SendResult, error) {
	if !ns.allow() {
		ns.logger.WithFields(logrus.Fields{"per_minute": ns.perMinute}).Warn("Outbound message dropped by rate limit")
		return &SendResult{Success: false, Error: ErrOutboundRateLimited.Error()}, ErrOutboundRateLimited
	}

	if ns.bot == nil {
		id := uuid.NewString()
		ns.logger.WithFields(logrus.Fields{
			"id":   id,
			"text": text,
		}).Info("Outbound message (log-only mode)")
		return &SendResult{Success: true, ID: id}, nil
	}

	params := &bot.SendMessageParams{
		ChatID: ns.chatID,
		Text:   text,
	}
	if allowFormatting {
		params.ParseMode = tgmodels.ParseModeMarkdown
	}

	msg, err := ns.bot.SendMessage(ctx, params)
	if err != nil {
		return &SendResult{Success: false, Error: err.Error()}, fmt.Errorf("failed to send telegram message: %w", err)
	}

	return &SendResult{Success: true, ID: strconv.Itoa(msg.ID)}, nil
}

// allow admits a message while the one-minute sliding window has budget
// left.
func (ns *NotificationService) allow() bool {
	ns.mu.Lock()
	defer ns.mu.Unlock()

	now := ns.now()
	cutoff := now.Add(-time.Minute)

	kept := ns.sent[:0]
	for _, t := range ns.sent {
		if t.After(cutoff) {
			kept = append(kept, t)
		}
	}
	ns.sent = kept

	if len(ns.sent) >= ns.perMinute {
		return false
	}
	ns.sent = append(ns.sent, now)
	return true
}
