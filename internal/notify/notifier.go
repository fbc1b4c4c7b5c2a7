// Package notify delivers signal lifecycle notifications. Delivery is
// asynchronous and best-effort: the ingestion loop never blocks on it.
package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"pump-signals/internal/domain"
	"pump-signals/internal/enrichment"
)

// Kind distinguishes what happened to the signal.
type Kind string

const (
	KindSignalCreated  Kind = "signal_created"
	KindSignalMigrated Kind = "signal_migrated"
)

// Notification carries everything a channel needs to render a message.
// Pair is filled by the dispatcher when Dexscreener knows the token.
type Notification struct {
	Kind   Kind
	Signal *domain.Signal
	Pair   *enrichment.Pair
}

// Notifier delivers one notification. Implementations own their timeout.
type Notifier interface {
	Notify(ctx context.Context, n Notification) error
}

// TelegramNotifier pushes messages through the Telegram Bot API.
type TelegramNotifier struct {
	botToken string
	chatID   string
	baseURL  string
	client   *http.Client
	logger   zerolog.Logger
}

func NewTelegramNotifier(botToken, chatID, baseURL string, timeout time.Duration, logger zerolog.Logger) *TelegramNotifier {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	if baseURL == "" {
		baseURL = "https://api.telegram.org"
	}

	return &TelegramNotifier{
		botToken: botToken,
		chatID:   chatID,
		baseURL:  strings.TrimRight(baseURL, "/"),
		client:   &http.Client{Timeout: timeout},
		logger:   logger.With().Str("component", "notify_telegram").Logger(),
	}
}

var _ Notifier = (*TelegramNotifier)(nil)

// Notify calls the sendMessage API with the rendered text.
func (t *TelegramNotifier) Notify(ctx context.Context, n Notification) error {
	payload := map[string]string{
		"chat_id": t.chatID,
		"text":    renderMessage(n),
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal telegram payload: %w", err)
	}

	url := fmt.Sprintf("%s/bot%s/sendMessage", t.baseURL, t.botToken)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create telegram request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := t.client.Do(req)
	if err != nil {
		return fmt.Errorf("send telegram request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("telegram status %d", resp.StatusCode)
	}

	var result struct {
		OK bool `json:"ok"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err == nil && !result.OK {
		return fmt.Errorf("telegram returned ok=false")
	}

	t.logger.Info().
		Str("kind", string(n.Kind)).
		Str("token", n.Signal.SubjectToken).
		Msg("notification sent")
	return nil
}

// LogNotifier writes notifications to the log. Used when no Telegram
// credentials are configured.
type LogNotifier struct {
	logger zerolog.Logger
}

func NewLogNotifier(logger zerolog.Logger) *LogNotifier {
	return &LogNotifier{logger: logger.With().Str("component", "notify_log").Logger()}
}

var _ Notifier = (*LogNotifier)(nil)

func (l *LogNotifier) Notify(_ context.Context, n Notification) error {
	l.logger.Info().
		Str("kind", string(n.Kind)).
		Str("token", n.Signal.SubjectToken).
		Str("signal_id", n.Signal.ID).
		Msg(renderMessage(n))
	return nil
}

func renderMessage(n Notification) string {
	s := n.Signal
	b := strings.Builder{}

	switch n.Kind {
	case KindSignalCreated:
		b.WriteString("[Signal] New entry\n")
		b.WriteString(fmt.Sprintf("Token: %s\n", s.SubjectToken))
		b.WriteString(fmt.Sprintf("Time: %s UTC\n", s.SignalTime.UTC().Format(time.RFC3339)))
		b.WriteString(fmt.Sprintf("Liquidity: %s SOL\n", s.EntryLiquidity.String()))
		if s.EntryPrice.IsPositive() {
			b.WriteString(fmt.Sprintf("Entry price: %s SOL\n", s.EntryPrice.String()))
		}
		if s.EntryMarketCap.IsPositive() {
			b.WriteString(fmt.Sprintf("Market cap: %s SOL\n", s.EntryMarketCap.String()))
		}
		b.WriteString(fmt.Sprintf("Simulated buy: %s SOL\n", s.SimulatedBuyAmount.String()))
	case KindSignalMigrated:
		b.WriteString("[Signal] Migration\n")
		b.WriteString(fmt.Sprintf("Token: %s\n", s.SubjectToken))
		if s.Outcome.MigrationTime != nil {
			b.WriteString(fmt.Sprintf("Time: %s UTC\n", s.Outcome.MigrationTime.UTC().Format(time.RFC3339)))
		}
		if s.Outcome.SimulatedPnLPct != nil {
			b.WriteString(fmt.Sprintf("Simulated PnL: %.2f%% (%s SOL)\n",
				*s.Outcome.SimulatedPnLPct, s.Outcome.SimulatedPnLAmount.String()))
		}
		if s.Outcome.ExitPriceSource != "" {
			b.WriteString(fmt.Sprintf("Exit price: %s SOL (%s)\n",
				s.Outcome.ExitReferencePrice.String(), s.Outcome.ExitPriceSource))
		}
	}
	if n.Pair != nil {
		b.WriteString(fmt.Sprintf("Venue: %s\n", n.Pair.DexID))
		if n.Pair.PriceUSD.IsPositive() {
			b.WriteString(fmt.Sprintf("Price: $%s\n", n.Pair.PriceUSD.String()))
		}
		if n.Pair.LiquidityUSD.IsPositive() {
			b.WriteString(fmt.Sprintf("Liquidity: $%s\n", n.Pair.LiquidityUSD.Round(0).String()))
		}
		b.WriteString(fmt.Sprintf("Chart: %s", n.Pair.ChartURL()))
	} else {
		b.WriteString(fmt.Sprintf("Chart: https://dexscreener.com/solana/%s", s.SubjectToken))
	}
	return b.String()
}
