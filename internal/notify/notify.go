// Package notify provides notification functionality for the trading platform.
package notify

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"ai-trader/internal/config"
	"ai-trader/internal/models"
)

// Notifier defines the interface for sending notifications.
type Notifier interface {
	Send(ctx context.Context, n Notification) error
	SendFill(ctx context.Context, order *models.Order) error
	SendRejection(ctx context.Context, order *models.Order) error
}

// NotificationChannel defines the interface for a notification channel.
type NotificationChannel interface {
	Name() string
	Send(ctx context.Context, n Notification) error
	IsEnabled() bool
}

// Notification represents a notification message.
type Notification struct {
	Type      NotificationType
	Title     string
	Message   string
	Data      map[string]interface{}
	Timestamp time.Time
}

// NotificationType represents the type of notification.
type NotificationType string

const (
	NotificationFill      NotificationType = "fill"
	NotificationRejection NotificationType = "rejection"
	NotificationInfo      NotificationType = "info"
)

// MultiNotifier sends notifications to multiple channels.
type MultiNotifier struct {
	channels []NotificationChannel
	mu       sync.RWMutex
}

// NewMultiNotifier creates a new MultiNotifier with the given configuration.
func NewMultiNotifier(cfg *config.NotificationConfig) *MultiNotifier {
	mn := &MultiNotifier{
		channels: make([]NotificationChannel, 0),
	}

	if cfg.Webhook.Enabled {
		mn.channels = append(mn.channels, NewWebhookNotifier(cfg.Webhook))
	}

	return mn
}

// AddChannel adds a notification channel.
func (mn *MultiNotifier) AddChannel(ch NotificationChannel) {
	mn.mu.Lock()
	defer mn.mu.Unlock()
	mn.channels = append(mn.channels, ch)
}

// Send sends a notification to all enabled channels.
func (mn *MultiNotifier) Send(ctx context.Context, n Notification) error {
	if n.Timestamp.IsZero() {
		n.Timestamp = time.Now()
	}

	mn.mu.RLock()
	channels := mn.channels
	mn.mu.RUnlock()

	var errs []string
	for _, ch := range channels {
		if ch.IsEnabled() {
			if err := ch.Send(ctx, n); err != nil {
				errs = append(errs, fmt.Sprintf("%s: %v", ch.Name(), err))
			}
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("notification errors: %s", strings.Join(errs, "; "))
	}
	return nil
}

// SendFill sends a notification for a filled order.
func (mn *MultiNotifier) SendFill(ctx context.Context, order *models.Order) error {
	title := fmt.Sprintf("Order Filled: %s %s", order.Side, order.Symbol)
	message := fmt.Sprintf(
		"Symbol: %s\nSide: %s\nQuantity: %d\nPrice: %.2f\nCommission: %.2f",
		order.Symbol, order.Side, order.ExecutedQty, order.ExecutedPrice, order.Commission,
	)

	data := map[string]interface{}{
		"order_id":       order.ID,
		"portfolio_id":   order.PortfolioID,
		"symbol":         order.Symbol,
		"side":           order.Side,
		"quantity":       order.ExecutedQty,
		"executed_price": order.ExecutedPrice,
		"commission":     order.Commission,
	}
	if order.RealizedPL != nil {
		message += fmt.Sprintf("\nRealized P&L: %.2f", *order.RealizedPL)
		data["realized_pl"] = *order.RealizedPL
	}

	return mn.Send(ctx, Notification{
		Type:    NotificationFill,
		Title:   title,
		Message: message,
		Data:    data,
	})
}

// SendRejection sends a notification for a rejected order.
func (mn *MultiNotifier) SendRejection(ctx context.Context, order *models.Order) error {
	title := fmt.Sprintf("Order Rejected: %s %s", order.Side, order.Symbol)
	message := fmt.Sprintf(
		"Symbol: %s\nSide: %s\nQuantity: %d\nReason: %s",
		order.Symbol, order.Side, order.Quantity, order.RejectReason,
	)

	return mn.Send(ctx, Notification{
		Type:    NotificationRejection,
		Title:   title,
		Message: message,
		Data: map[string]interface{}{
			"order_id":     order.ID,
			"portfolio_id": order.PortfolioID,
			"symbol":       order.Symbol,
			"side":         order.Side,
			"quantity":     order.Quantity,
			"reason":       order.RejectReason,
		},
	})
}
