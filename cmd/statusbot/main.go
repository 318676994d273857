// Command statusbot is the Telegram control surface for the trader. It
// long-polls the bot API for commands and talks to the trader through
// Redis only, so it can run on a separate host.
//
// Commands:
//
//	/status              current balance, P&L and halt state
//	/halt <code> <why>   request a trading halt (TOTP gated)
//	/resume <code>       clear a remote halt (TOTP gated)
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/pquerna/otp/totp"

	"polytraderv1/config"
	"polytraderv1/internal/model"
	redisstore "polytraderv1/internal/store/redis"
)

const (
	pollTimeout = 50 * time.Second
	haltTTL     = 24 * time.Hour
)

type update struct {
	UpdateID int64 `json:"update_id"`
	Message  *struct {
		Text string `json:"text"`
		Chat struct {
			ID int64 `json:"id"`
		} `json:"chat"`
		From struct {
			Username string `json:"username"`
		} `json:"from"`
	} `json:"message"`
}

type bot struct {
	token      string
	chatID     int64
	totpSecret string
	store      *redisstore.Store
	http       *http.Client
	offset     int64
}

func main() {
	log.SetFlags(log.LstdFlags | log.Lmicroseconds | log.Lshortfile)
	log.Println("[statusbot] starting...")

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("[statusbot] config: %v", err)
	}
	if cfg.TelegramBotToken == "" || cfg.TelegramChatID == "" {
		log.Fatal("[statusbot] TELEGRAM_BOT_TOKEN and TELEGRAM_CHAT_ID are required")
	}
	chatID, err := strconv.ParseInt(cfg.TelegramChatID, 10, 64)
	if err != nil {
		log.Fatalf("[statusbot] TELEGRAM_CHAT_ID must be numeric: %v", err)
	}

	store, err := redisstore.New(redisstore.Config{Addr: cfg.RedisAddr, Password: cfg.RedisPassword})
	if err != nil {
		log.Fatalf("[statusbot] redis: %v", err)
	}
	defer store.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		s := <-sigCh
		log.Printf("[statusbot] received %s, shutting down...", s)
		cancel()
	}()

	b := &bot{
		token:      cfg.TelegramBotToken,
		chatID:     chatID,
		totpSecret: cfg.ControlTOTPSecret,
		store:      store,
		http:       &http.Client{Timeout: pollTimeout + 10*time.Second},
	}
	b.run(ctx)
	log.Println("[statusbot] stopped")
}

func (b *bot) run(ctx context.Context) {
	for ctx.Err() == nil {
		updates, err := b.poll(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			log.Printf("[statusbot] poll: %v", err)
			time.Sleep(5 * time.Second)
			continue
		}
		for _, u := range updates {
			b.offset = u.UpdateID + 1
			if u.Message == nil || u.Message.Chat.ID != b.chatID {
				continue
			}
			b.handle(ctx, u.Message.From.Username, strings.TrimSpace(u.Message.Text))
		}
	}
}

func (b *bot) poll(ctx context.Context) ([]update, error) {
	q := url.Values{}
	q.Set("timeout", strconv.Itoa(int(pollTimeout.Seconds())))
	if b.offset > 0 {
		q.Set("offset", strconv.FormatInt(b.offset, 10))
	}
	reqURL := fmt.Sprintf("https://api.telegram.org/bot%s/getUpdates?%s", b.token, q.Encode())
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, err
	}
	resp, err := b.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	var body struct {
		OK     bool     `json:"ok"`
		Result []update `json:"result"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, fmt.Errorf("decode updates: %w", err)
	}
	if !body.OK {
		return nil, fmt.Errorf("telegram getUpdates not ok (http %d)", resp.StatusCode)
	}
	return body.Result, nil
}

func (b *bot) handle(ctx context.Context, username, text string) {
	cmd, rest, _ := strings.Cut(text, " ")
	switch cmd {
	case "/status":
		b.reply(ctx, b.statusText(ctx))
	case "/halt":
		code, reason, _ := strings.Cut(strings.TrimSpace(rest), " ")
		if !b.authorize(code) {
			b.reply(ctx, "invalid or missing TOTP code")
			return
		}
		if reason == "" {
			reason = "manual halt"
		}
		err := b.store.RequestHalt(ctx, redisstore.HaltCommand{
			Reason:   reason,
			Until:    time.Now().UTC().Add(haltTTL),
			IssuedBy: username,
			IssuedAt: time.Now().UTC(),
		})
		if err != nil {
			b.reply(ctx, fmt.Sprintf("halt request failed: %v", err))
			return
		}
		log.Printf("[statusbot] halt requested by %s: %s", username, reason)
		b.reply(ctx, fmt.Sprintf("halt requested: %s (applies on next tick)", reason))
	case "/resume":
		if !b.authorize(strings.TrimSpace(rest)) {
			b.reply(ctx, "invalid or missing TOTP code")
			return
		}
		if err := b.store.ClearHalt(ctx); err != nil {
			b.reply(ctx, fmt.Sprintf("resume failed: %v", err))
			return
		}
		log.Printf("[statusbot] resume requested by %s", username)
		b.reply(ctx, "remote halt cleared (drawdown cooldowns still apply)")
	default:
		b.reply(ctx, "commands: /status, /halt <code> <reason>, /resume <code>")
	}
}

// authorize validates a one-time code against the shared TOTP secret.
// With no secret configured, control commands are refused outright.
func (b *bot) authorize(code string) bool {
	if b.totpSecret == "" || code == "" {
		return false
	}
	return totp.Validate(code, b.totpSecret)
}

func (b *bot) statusText(ctx context.Context) string {
	snap, ok, err := b.store.ReadStatus(ctx)
	if err != nil {
		return fmt.Sprintf("status read failed: %v", err)
	}
	if !ok {
		return "no status published (trader down or stale for >10m)"
	}
	var sb strings.Builder
	fmt.Fprintf(&sb, "mode: %s\n", snap.Mode)
	fmt.Fprintf(&sb, "balance: %s  daily P&L: %s\n",
		model.FormatUSD(snap.BalanceCents), model.FormatUSD(snap.DailyPnLCents))
	fmt.Fprintf(&sb, "trades today: %d  open: %d  size mult: %.1fx\n",
		snap.TradesToday, snap.OpenPositions, snap.SizeMultiplier)
	if snap.CurrentWindowID != "" {
		fmt.Fprintf(&sb, "window: %s\n", snap.CurrentWindowID)
	}
	if !snap.HaltedUntil.IsZero() && snap.HaltedUntil.After(time.Now()) {
		fmt.Fprintf(&sb, "HALTED until %s (%s)\n",
			snap.HaltedUntil.UTC().Format(time.RFC3339), snap.HaltReason)
	}
	fmt.Fprintf(&sb, "updated: %s", snap.UpdatedAt.UTC().Format(time.RFC3339))
	return sb.String()
}

func (b *bot) reply(ctx context.Context, text string) {
	payload, _ := json.Marshal(map[string]any{"chat_id": b.chatID, "text": text})
	reqURL := fmt.Sprintf("https://api.telegram.org/bot%s/sendMessage", b.token)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, reqURL, strings.NewReader(string(payload)))
	if err != nil {
		return
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := b.http.Do(req)
	if err != nil {
		log.Printf("[statusbot] reply failed: %v", err)
		return
	}
	resp.Body.Close()
}
