package notifications

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"time"
)

// Discord is a simple Discord webhook notifier.
type Discord struct {
	webhookURL string
	logger     *log.Logger
	client     *http.Client
}

// NewDiscord creates a new Discord notifier. If webhookURL is empty,
// notifications are silently skipped.
func NewDiscord(webhookURL string, logger *log.Logger) *Discord {
	return &Discord{
		webhookURL: webhookURL,
		logger:     logger,
		client:     &http.Client{Timeout: 10 * time.Second},
	}
}

// Enabled returns true if the webhook is configured.
func (d *Discord) Enabled() bool {
	return d.webhookURL != ""
}

// discordMessage is the payload for Discord webhook.
type discordMessage struct {
	Content string         `json:"content,omitempty"`
	Embeds  []discordEmbed `json:"embeds,omitempty"`
}

type discordEmbed struct {
	Title       string       `json:"title,omitempty"`
	Description string       `json:"description,omitempty"`
	Color       int          `json:"color,omitempty"`
	Fields      []embedField `json:"fields,omitempty"`
	Timestamp   string       `json:"timestamp,omitempty"`
}

type embedField struct {
	Name   string `json:"name"`
	Value  string `json:"value"`
	Inline bool   `json:"inline,omitempty"`
}

// send posts a message to Discord webhook asynchronously.
// Errors are logged but don't affect caller.
func (d *Discord) send(ctx context.Context, msg discordMessage) {
	if !d.Enabled() {
		return
	}

	go func() {
		sendCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 10*time.Second)
		defer cancel()

		body, err := json.Marshal(msg)
		if err != nil {
			d.logger.Printf("discord: failed to marshal message: %v", err)
			return
		}

		req, err := http.NewRequestWithContext(sendCtx, http.MethodPost, d.webhookURL, bytes.NewReader(body))
		if err != nil {
			d.logger.Printf("discord: failed to create request: %v", err)
			return
		}
		req.Header.Set("Content-Type", "application/json")

		resp, err := d.client.Do(req)
		if err != nil {
			d.logger.Printf("discord: failed to send notification: %v", err)
			return
		}
		defer resp.Body.Close()

		if resp.StatusCode < 200 || resp.StatusCode >= 300 {
			d.logger.Printf("discord: webhook returned %d", resp.StatusCode)
		}
	}()
}

// NotifyBooking posts a new appointment to the operations channel.
func (d *Discord) NotifyBooking(ctx context.Context, technicianName, appliance, zipCode string, start time.Time) {
	appl := appliance
	if appl == "" {
		appl = "unspecified"
	}
	d.send(ctx, discordMessage{
		Embeds: []discordEmbed{{
			Title: "New appointment booked",
			Color: 0x2ecc71,
			Fields: []embedField{
				{Name: "Technician", Value: technicianName, Inline: true},
				{Name: "Appliance", Value: appl, Inline: true},
				{Name: "ZIP", Value: zipCode, Inline: true},
				{Name: "Time", Value: start.Format("Mon, Jan 2 3:04 PM MST"), Inline: false},
			},
			Timestamp: time.Now().UTC().Format(time.RFC3339),
		}},
	})
}

// NotifyNoAvailability posts when a caller could not be offered any slot,
// which usually means coverage in that ZIP needs attention.
func (d *Discord) NotifyNoAvailability(ctx context.Context, zipCode, appliance string) {
	d.send(ctx, discordMessage{
		Content: fmt.Sprintf("No availability for ZIP %s (%s); caller was turned away.", zipCode, appliance),
	})
}
