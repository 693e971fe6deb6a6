package services

import (
	"context"
	"fmt"
	"strings"

	"github.com/go-telegram/bot"
	botmodels "github.com/go-telegram/bot/models"
	"github.com/sirupsen/logrus"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/virellia/driftline/internal/models"
)

// Notifier pushes engine advice to a Telegram chat. With no bot token it is
// a silent no-op, so the engine runs unattended without alerting.
type Notifier struct {
	bot    *bot.Bot
	chatID int64
	logger *logrus.Logger
	caser  cases.Caser
}

// NewNotifier creates a notifier. An empty token disables sending.
func NewNotifier(botToken string, chatID int64, logger *logrus.Logger) *Notifier {
	if logger == nil {
		logger = logrus.New()
	}
	var tgBot *bot.Bot
	if botToken != "" {
		b, err := bot.New(botToken)
		if err != nil {
			logger.WithError(err).Warn("Telegram bot init failed, alerts disabled")
		} else {
			tgBot = b
		}
	}

	return &Notifier{
		bot:    tgBot,
		chatID: chatID,
		logger: logger,
		caser:  cases.Title(language.English),
	}
}

// Enabled reports whether a bot is configured.
func (n *Notifier) Enabled() bool {
	return n.bot != nil
}

// NotifyAdvice sends an alert for actionable advice. ActionNone is skipped.
func (n *Notifier) NotifyAdvice(ctx context.Context, advice *models.Advice) {
	if n.bot == nil || advice == nil || advice.Action == models.ActionNone {
		return
	}

	text := n.formatAdvice(advice)
	if err := n.send(ctx, text); err != nil {
		n.logger.WithFields(logrus.Fields{
			"pair":  advice.Pair,
			"error": err.Error(),
		}).Warn("Failed to send Telegram alert")
	}
}

// NotifyRiskOff sends a one-line alert when the on-chain regime flips.
func (n *Notifier) NotifyRiskOff(ctx context.Context, velocity float64) {
	if n.bot == nil {
		return
	}

	text := fmt.Sprintf("⚠️ *Risk-Off Regime*\nStablecoin supply velocity: %.4f/day\nNew entries are suspended.", velocity)
	if err := n.send(ctx, text); err != nil {
		n.logger.WithField("error", err.Error()).Warn("Failed to send Telegram alert")
	}
}

func (n *Notifier) formatAdvice(advice *models.Advice) string {
	var sb strings.Builder

	switch advice.Action {
	case models.ActionBuy:
		sb.WriteString(fmt.Sprintf("🟢 *Buy Signal: %s*\n", advice.Pair))
		sb.WriteString(fmt.Sprintf("Rule: %s\n", n.ruleTitle(advice.Rule)))
		sb.WriteString(fmt.Sprintf("Price: %.8g\n", advice.TargetPrice))
		sb.WriteString(fmt.Sprintf("Stake: %.2fx base\n", advice.StakeFraction))
	case models.ActionDCA:
		sb.WriteString(fmt.Sprintf("🔵 *DCA Fill: %s*\n", advice.Pair))
		sb.WriteString(fmt.Sprintf("Price: %.8g\n", advice.TargetPrice))
	case models.ActionExit:
		sb.WriteString(fmt.Sprintf("🔴 *Exit: %s*\n", advice.Pair))
		sb.WriteString(fmt.Sprintf("Reason: %s\n", n.ruleTitle(advice.ExitReason)))
		sb.WriteString(fmt.Sprintf("Price: %.8g\n", advice.TargetPrice))
	}

	sb.WriteString(fmt.Sprintf("Time: %s", advice.Timestamp.Format("2006-01-02 15:04 MST")))
	return sb.String()
}

// ruleTitle turns a rule identifier like "dip_ema16_shallow" into a
// readable title.
func (n *Notifier) ruleTitle(rule string) string {
	return n.caser.String(strings.ReplaceAll(rule, "_", " "))
}

func (n *Notifier) send(ctx context.Context, text string) error {
	_, err := n.bot.SendMessage(ctx, &bot.SendMessageParams{
		ChatID:    n.chatID,
		Text:      text,
		ParseMode: botmodels.ParseModeMarkdown,
	})
	return err
}
