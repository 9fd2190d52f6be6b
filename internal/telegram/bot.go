package telegram

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"strconv"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"ai-day-planner/internal/app"
	"ai-day-planner/internal/config"
	"ai-day-planner/internal/metrics"
	"ai-day-planner/internal/planner"
)

// Bot exposes the planner over Telegram as an alternative to the browser
// client. One allowed user, webhook delivery.
type Bot struct {
	api          *tgbotapi.BotAPI
	app          *app.App
	metricsStore *metrics.Store
	cfg          *config.Config
}

// NewBot initializes the Telegram Bot and sets the webhook.
func NewBot(cfg *config.Config, a *app.App, metricsStore *metrics.Store) (*Bot, error) {
	bot, err := tgbotapi.NewBotAPI(cfg.TelegramBotToken)
	if err != nil {
		return nil, fmt.Errorf("failed to init telegram api: %w", err)
	}

	log.Printf("Authorized on account %s", bot.Self.UserName)

	wh, _ := tgbotapi.NewWebhook(cfg.TelegramWebhookURL)
	resp, err := bot.Request(wh)
	if err != nil {
		return nil, fmt.Errorf("failed to set webhook to %s: %w", cfg.TelegramWebhookURL, err)
	}
	log.Printf("Webhook set response: %s", resp.Description)

	return &Bot{
		api:          bot,
		app:          a,
		metricsStore: metricsStore,
		cfg:          cfg,
	}, nil
}

// RegisterHandlers registers the webhook handler with the default HTTP mux.
func (b *Bot) RegisterHandlers() {
	http.HandleFunc("/webhook", b.handleWebhook)
	http.HandleFunc("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	})
}

func (b *Bot) handleWebhook(w http.ResponseWriter, r *http.Request) {
	update, err := b.api.HandleUpdate(r)
	if err != nil {
		log.Printf("Error parsing update: %v", err)
		return
	}
	if update.Message == nil {
		return
	}
	if update.Message.From.ID != b.cfg.TelegramAllowUserID {
		log.Printf("Unauthorized access attempt from UserID: %d (@%s)", update.Message.From.ID, update.Message.From.UserName)
		return
	}
	go b.processMessage(update.Message)
}

func (b *Bot) processMessage(msg *tgbotapi.Message) {
	text := strings.TrimSpace(msg.Text)
	command, args := splitCommand(text)

	switch command {
	case "/metrics":
		b.handleMetricsCommand(msg.Chat.ID)
	case "/stop":
		if b.app.Stop() {
			b.send(msg.Chat.ID, "🛑 Generation stopped. Completed blocks are kept.")
		} else {
			b.send(msg.Chat.ID, "Nothing is running right now.")
		}
	case "/city":
		if args == "" {
			b.send(msg.Chat.ID, "Usage: /city <name>")
			return
		}
		b.runFlow(msg.Chat.ID, fmt.Sprintf("📍 Moving your plan to *%s*...", args), func(ctx context.Context) error {
			return b.app.ModifyLocation(ctx, args)
		})
	case "/modify":
		if args == "" {
			b.send(msg.Chat.ID, "Usage: /modify <instructions>")
			return
		}
		b.runFlow(msg.Chat.ID, "🔄 Reworking your plan...", func(ctx context.Context) error {
			return b.app.ModifyAll(ctx, args)
		})
	case "/block":
		blockID, rest, err := parseBlockArgs(args)
		if err != nil {
			b.send(msg.Chat.ID, "Usage: /block <id> [instructions]")
			return
		}
		b.runFlow(msg.Chat.ID, fmt.Sprintf("🔄 Reworking block %d...", blockID), func(ctx context.Context) error {
			return b.app.ModifyBlock(ctx, blockID, rest)
		})
	case "/plan", "":
		b.runFlow(msg.Chat.ID, "🗓 *Planning your day...*", func(ctx context.Context) error {
			return b.app.Plan(ctx, args)
		})
	default:
		// Plain text is treated as planning instructions.
		b.runFlow(msg.Chat.ID, "🗓 *Planning your day...*", func(ctx context.Context) error {
			return b.app.Plan(ctx, text)
		})
	}
}

// runFlow sends a status message, runs the flow and edits the status into
// the result. Flows block until the plan settles, so each runs in the
// goroutine processMessage already started.
func (b *Bot) runFlow(chatID int64, statusText string, flow func(context.Context) error) {
	replyMsg := tgbotapi.NewMessage(chatID, statusText)
	replyMsg.ParseMode = "Markdown"
	sentMsg, err := b.api.Send(replyMsg)
	if err != nil {
		log.Printf("Failed to send initial reply: %v", err)
		return
	}

	var finalText string
	if err := flow(context.Background()); err != nil {
		log.Printf("Flow error: %v", err)
		safeErr := strings.ReplaceAll(err.Error(), "`", "'")
		finalText = fmt.Sprintf("❌ *Error:*\n```\n%v\n```", safeErr)
	} else {
		finalText = formatPlanMarkdown(b.app.State())
	}

	edit := tgbotapi.NewEditMessageText(chatID, sentMsg.MessageID, finalText)
	edit.ParseMode = "Markdown"
	b.api.Send(edit)
}

func (b *Bot) send(chatID int64, text string) {
	msg := tgbotapi.NewMessage(chatID, text)
	msg.ParseMode = "Markdown"
	b.api.Send(msg)
}

func splitCommand(text string) (command, args string) {
	if !strings.HasPrefix(text, "/") {
		return "", text
	}
	parts := strings.SplitN(text, " ", 2)
	command = parts[0]
	if len(parts) == 2 {
		args = strings.TrimSpace(parts[1])
	}
	return command, args
}

func parseBlockArgs(args string) (int, string, error) {
	parts := strings.SplitN(args, " ", 2)
	if parts[0] == "" {
		return 0, "", fmt.Errorf("missing block id")
	}
	blockID, err := strconv.Atoi(parts[0])
	if err != nil {
		return 0, "", fmt.Errorf("invalid block id %q", parts[0])
	}
	rest := ""
	if len(parts) == 2 {
		rest = strings.TrimSpace(parts[1])
	}
	return blockID, rest, nil
}

func formatPlanMarkdown(state planner.PlanState) string {
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("🗓 *Your Day in %s*\n", state.Location.City))
	sb.WriteString(fmt.Sprintf("🌤 %.1f°C, %.1fmm rain, wind %.1fkm/h", state.Environment.Temperature, state.Environment.PrecipitationMm, state.Environment.WindSpeedKmh))
	if state.Environment.AQI != nil {
		sb.WriteString(fmt.Sprintf(", AQI %d", *state.Environment.AQI))
	}
	sb.WriteString("\n")
	if state.Clothing != "" {
		sb.WriteString(fmt.Sprintf("👕 _%s_\n", state.Clothing))
	}
	sb.WriteString("\n")

	for _, block := range state.Blocks {
		sb.WriteString(fmt.Sprintf("*%s–%s %s*\n", block.Block.Start, block.Block.End, block.Block.Label))
		switch block.State {
		case planner.BlockComplete:
			for _, a := range block.Activities {
				sb.WriteString(fmt.Sprintf("• %s", a.Activity))
				if a.Meal != "" {
					sb.WriteString(fmt.Sprintf(" 🍽 %s", a.Meal))
				}
				sb.WriteString("\n")
				if a.Notes != "" {
					sb.WriteString(fmt.Sprintf("_%s_\n", a.Notes))
				}
			}
		case planner.BlockLoading:
			sb.WriteString("_generating..._\n")
		case planner.BlockError:
			sb.WriteString(fmt.Sprintf("⚠️ %s\n", block.Message))
		default:
			if block.Message != "" {
				sb.WriteString(fmt.Sprintf("_%s_\n", block.Message))
			} else {
				sb.WriteString("_empty_\n")
			}
		}
		sb.WriteString("\n")
	}
	return sb.String()
}

func (b *Bot) handleMetricsCommand(chatID int64) {
	if b.metricsStore == nil {
		b.send(chatID, "Metrics are disabled.")
		return
	}
	usage, err := b.metricsStore.GetDailyUsage(7)
	if err != nil {
		b.send(chatID, "❌ Error fetching metrics.")
		return
	}

	health := metrics.GetSysHealth(b.cfg.MetricsDBPath)

	var sb strings.Builder
	sb.WriteString("📊 *Usage & Health Report*\n\n")

	sb.WriteString("🗓 *Recent LLM Activity*\n")
	if len(usage) == 0 {
		sb.WriteString("_No data yet_\n")
	}
	for _, d := range usage {
		sb.WriteString(fmt.Sprintf("• *%s*: %d tokens (%d execs)\n", d.Date, d.TotalPrompt+d.TotalCompletion, d.TotalExecution))
	}

	sb.WriteString("\n🧠 *System Health*\n")
	sb.WriteString(fmt.Sprintf("• RAM: %dMB (Alloc) / %dMB (Sys)\n", health.AllocMB, health.SysMB))
	sb.WriteString(fmt.Sprintf("• Goroutines: %d\n", health.Goroutines))
	sb.WriteString(fmt.Sprintf("• Metrics DB: %s\n", health.MetricsDBSize))

	b.send(chatID, sb.String())
}
