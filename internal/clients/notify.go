package clients

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/sirupsen/logrus"
)

type Notification struct {
	UserID  string `json:"user_id"`
	OrderID string `json:"order_id"`
	Type    string `json:"type"`
}

type NotificationClient struct {
	base string
	http *http.Client
}

func NewNotificationClient(base string, timeout time.Duration) *NotificationClient {
	return &NotificationClient{base: base, http: &http.Client{Timeout: timeout}}
}

func (c *NotificationClient) Post(ctx context.Context, n Notification) error {
	payload, _ := json.Marshal(n)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		c.base+"/api/notifications/send", bytes.NewReader(payload))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("send notification: %w", ErrUnavailable)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("send notification: status %d: %w", resp.StatusCode, ErrUnavailable)
	}
	return nil
}

// FailureHook is called when a queued notification cannot be delivered.
type FailureHook func()

// Dispatcher delivers notifications off the request path through a buffered
// inbox. Delivery failures are logged and counted, never surfaced to the
// operation that queued them.
type Dispatcher struct {
	client  *NotificationClient
	timeout time.Duration
	onFail  FailureHook
	inbox   chan Notification
	closeCh chan struct{}
}

func NewDispatcher(client *NotificationClient, timeout time.Duration, buf int, onFail FailureHook) *Dispatcher {
	return &Dispatcher{
		client:  client,
		timeout: timeout,
		onFail:  onFail,
		inbox:   make(chan Notification, buf),
		closeCh: make(chan struct{}),
	}
}

func (d *Dispatcher) Start(ctx context.Context) {
	go func() {
		for {
			select {
			case <-ctx.Done():
				close(d.closeCh)
				return
			case n, ok := <-d.inbox:
				if !ok {
					close(d.closeCh)
					return
				}
				d.deliver(n)
			}
		}
	}()
}

func (d *Dispatcher) deliver(n Notification) {
	ctx, cancel := context.WithTimeout(context.Background(), d.timeout)
	defer cancel()
	if err := d.client.Post(ctx, n); err != nil {
		logrus.WithFields(logrus.Fields{
			"user_id":  n.UserID,
			"order_id": n.OrderID,
			"type":     n.Type,
		}).WithError(err).Warn("notification delivery failed")
		if d.onFail != nil {
			d.onFail()
		}
	}
}

// Send enqueues a notification; a full inbox drops it rather than block.
func (d *Dispatcher) Send(userID, orderID, kind string) {
	n := Notification{UserID: userID, OrderID: orderID, Type: kind}
	select {
	case d.inbox <- n:
	default:
		logrus.WithField("order_id", orderID).Warn("notification inbox full, dropping")
		if d.onFail != nil {
			d.onFail()
		}
	}
}

func (d *Dispatcher) Close() { close(d.inbox) }

func (d *Dispatcher) WaitClosed() { <-d.closeCh }
