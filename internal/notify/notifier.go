package notify

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/sony/gobreaker/v2"
	"golang.org/x/time/rate"

	"github.com/zombor/auto-bills/internal/extract"
)

// Options tunes delivery protection
type Options struct {
	SendRate       float64       // messages per second, zero for unlimited
	MaxFailures    uint32        // consecutive failures before the breaker opens
	BreakerTimeout time.Duration // how long the breaker stays open
}

// Notifier turns extraction results into chat messages
type Notifier struct {
	channel Channel
	limiter *rate.Limiter
	breaker *gobreaker.CircuitBreaker[struct{}]
}

// NewNotifier creates a Notifier sending through channel
func NewNotifier(channel Channel, opts Options) *Notifier {
	limit := rate.Inf
	if opts.SendRate > 0 {
		limit = rate.Limit(opts.SendRate)
	}
	if opts.MaxFailures == 0 {
		opts.MaxFailures = 5
	}
	if opts.BreakerTimeout == 0 {
		opts.BreakerTimeout = time.Minute
	}
	maxFailures := opts.MaxFailures

	breaker := gobreaker.NewCircuitBreaker[struct{}](gobreaker.Settings{
		Name:    "notifier",
		Timeout: opts.BreakerTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= maxFailures
		},
		// A bad destination is a configuration problem, not an outage
		IsSuccessful: func(err error) bool {
			return err == nil || errors.Is(err, ErrInvalidRecipient)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			slog.Warn("Circuit breaker state changed", "name", name, "from", from.String(), "to", to.String())
		},
	})

	return &Notifier{
		channel: channel,
		limiter: rate.NewLimiter(limit, 1),
		breaker: breaker,
	}
}

// Notify sends the summary of result to recipient. Results with neither a
// code nor a value are not sent. The returned bool reports whether the
// summary reached the recipient; true with an error means a follow-up
// message was lost after the summary went out.
func (n *Notifier) Notify(ctx context.Context, recipient string, result *extract.Result) (bool, error) {
	if result == nil || result.Empty() {
		return false, nil
	}
	delivered := false
	for _, text := range Compose(result) {
		if err := n.send(ctx, recipient, text); err != nil {
			return delivered, err
		}
		delivered = true
	}
	return true, nil
}

func (n *Notifier) send(ctx context.Context, recipient, text string) error {
	if err := n.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("waiting for send slot: %w", err)
	}
	_, err := n.breaker.Execute(func() (struct{}, error) {
		return struct{}{}, n.channel.Send(ctx, recipient, text)
	})
	if err != nil {
		return fmt.Errorf("sending notification: %w", err)
	}
	return nil
}

// Compose renders the chat messages for a result. The payment code goes in
// its own message so it can be copied on its own.
func Compose(result *extract.Result) []string {
	lines := []string{
		"📢 Nova fatura detectada:",
		"Tipo: " + string(result.Category),
	}
	if result.HasValue() {
		lines = append(lines, "Valor: R$ "+result.Value.String())
	}
	if result.HasCode() {
		lines = append(lines, "Código:")
	}
	lines = append(lines, "(Enviada automaticamente)")

	messages := []string{strings.Join(lines, "\n")}
	if result.HasCode() {
		messages = append(messages, string(result.Code))
	}
	return messages
}
