package notification

import (
	"context"
	"errors"
	"log/slog"
)

const (
	// KindCurrencyCreated announces a new currency to the registration service.
	KindCurrencyCreated = "currency_created"
	// KindSupplyUpdated carries the supply of a currency after an issue.
	KindSupplyUpdated = "supply_updated"
)

// TokenEvent is the currency metadata attached to a notification.
type TokenEvent struct {
	Code      string `json:"code"`
	Precision uint8  `json:"precision"`
	Name      string `json:"name,omitempty"`
	Memo      string `json:"memo,omitempty"`
	Issuer    string `json:"issuer"`
	Supply    int64  `json:"supply"`
	MaxSupply int64  `json:"max_supply"`
	TokenNo   uint32 `json:"token_no"`
}

// Message describes a notification payload. Destination names the account of
// the collaborating service the message is meant for.
type Message struct {
	Kind        string     `json:"kind"`
	Destination string     `json:"destination"`
	Body        string     `json:"body,omitempty"`
	Token       TokenEvent `json:"token"`
}

// Notifier delivers notifications to downstream systems.
type Notifier interface {
	Send(ctx context.Context, message Message) error
}

// LoggerNotifier writes notifications to the structured logger.
type LoggerNotifier struct {
	logger *slog.Logger
}

// NewLoggerNotifier constructs a logging notifier.
func NewLoggerNotifier(logger *slog.Logger) *LoggerNotifier {
	return &LoggerNotifier{logger: logger}
}

// Send writes the message to the structured logger.
func (n *LoggerNotifier) Send(_ context.Context, message Message) error {
	if n == nil || n.logger == nil {
		return nil
	}
	n.logger.Info("notification",
		slog.String("kind", message.Kind),
		slog.String("destination", message.Destination),
		slog.String("currency", message.Token.Code),
		slog.Int64("supply", message.Token.Supply),
	)
	return nil
}

// Fanout delivers every message to all notifiers and joins their errors.
type Fanout []Notifier

func (f Fanout) Send(ctx context.Context, message Message) error {
	var errs []error
	for _, n := range f {
		if n == nil {
			continue
		}
		if err := n.Send(ctx, message); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
