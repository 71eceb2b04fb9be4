package fcm

import (
	"context"
	"fmt"

	firebase "firebase.google.com/go/v4"
	"firebase.google.com/go/v4/messaging"
	"github.com/sirupsen/logrus"

	"confluence-backend/internal/domain"
)

// multicastLimit is the largest token batch SendEachForMulticast accepts.
const multicastLimit = 500

type Client struct {
	client *messaging.Client
	logger *logrus.Entry
}

var _ domain.Notifier = (*Client)(nil)

// NewClient initializes Firebase Cloud Messaging. A nil app yields a disabled
// client.
func NewClient(ctx context.Context, app *firebase.App, logger *logrus.Logger) (*Client, error) {
	entry := logger.WithField("component", "fcm")
	if app == nil {
		entry.Warn("No Firebase credentials found. FCM disabled.")
		return &Client{logger: entry}, nil
	}

	client, err := app.Messaging(ctx)
	if err != nil {
		return nil, fmt.Errorf("error getting messaging client: %w", err)
	}

	entry.Info("Firebase Cloud Messaging initialized successfully")
	return &Client{client: client, logger: entry}, nil
}

func androidConfig() *messaging.AndroidConfig {
	return &messaging.AndroidConfig{
		Priority: "high",
		Notification: &messaging.AndroidNotification{
			ChannelID: "confluence_alerts",
			Priority:  messaging.PriorityHigh,
		},
	}
}

// SendNotification sends a push notification to a specific device token
func (c *Client) SendNotification(ctx context.Context, token, title, body string, data map[string]string) error {
	if c.client == nil {
		return fmt.Errorf("FCM client not initialized")
	}

	message := &messaging.Message{
		Token: token,
		Notification: &messaging.Notification{
			Title: title,
			Body:  body,
		},
		Data:    data,
		Android: androidConfig(),
	}

	response, err := c.client.Send(ctx, message)
	if err != nil {
		return fmt.Errorf("error sending message: %w", err)
	}

	c.logger.WithField("message_id", response).Debug("Successfully sent message")
	return nil
}

// SendMulticast sends notification to multiple tokens in batches of 500.
func (c *Client) SendMulticast(ctx context.Context, tokens []string, title, body string, data map[string]string) error {
	if c.client == nil {
		return fmt.Errorf("FCM client not initialized")
	}

	for _, batch := range Batches(tokens, multicastLimit) {
		message := &messaging.MulticastMessage{
			Tokens: batch,
			Notification: &messaging.Notification{
				Title: title,
				Body:  body,
			},
			Data:    data,
			Android: androidConfig(),
		}

		response, err := c.client.SendEachForMulticast(ctx, message)
		if err != nil {
			return fmt.Errorf("error sending multicast: %w", err)
		}

		c.logger.WithFields(logrus.Fields{
			"success": response.SuccessCount,
			"failure": response.FailureCount,
		}).Info("Multicast sent")
	}
	return nil
}

// IsEnabled returns true if FCM client is initialized
func (c *Client) IsEnabled() bool {
	return c.client != nil
}

// Batches splits tokens into chunks of at most size.
func Batches(tokens []string, size int) [][]string {
	var out [][]string
	for len(tokens) > 0 {
		n := size
		if len(tokens) < n {
			n = len(tokens)
		}
		out = append(out, tokens[:n])
		tokens = tokens[n:]
	}
	return out
}
