// Package notify sends alerts when the bot finds or executes an
// opportunity. Alerts always go to the log; a webhook (ntfy.sh or a generic
// JSON endpoint) is optional.
package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/lox/heatlock/internal/httputil"
)

const defaultCooldown = 60 * time.Second

type Notifier struct {
	webhookURL string
	client     *http.Client
	cooldown   time.Duration

	mu        sync.Mutex
	lastAlert time.Time
}

func New(webhookURL string) *Notifier {
	return &Notifier{
		webhookURL: webhookURL,
		client:     httputil.NewClient(),
		cooldown:   defaultCooldown,
	}
}

// Alert logs the alert and posts it to the webhook if one is configured.
// Alerts inside the cooldown window are dropped unless forced; trade
// confirmations are forced so none go missing in a burst.
func (n *Notifier) Alert(ctx context.Context, title, message string, force bool) {
	if !force && !n.take(time.Now()) {
		return
	}

	log.Printf("ALERT: %s: %s", title, message)

	if n.webhookURL == "" {
		return
	}
	if err := n.sendWebhook(ctx, title, message); err != nil {
		log.Printf("notify: webhook failed: %v", err)
	}
}

// Opportunity announces an actionable market with its edge.
func (n *Notifier) Opportunity(ctx context.Context, city, ticker string, edge float64, action string) {
	title := fmt.Sprintf("Weather arb: %s", strings.ToUpper(city))
	message := fmt.Sprintf("%s %s | edge %.1f%%", action, ticker, edge*100)
	n.Alert(ctx, title, message, false)
}

// take reports whether an alert may fire at now, claiming the window if so.
func (n *Notifier) take(now time.Time) bool {
	n.mu.Lock()
	defer n.mu.Unlock()
	if now.Sub(n.lastAlert) <= n.cooldown {
		return false
	}
	n.lastAlert = now
	return true
}

func (n *Notifier) sendWebhook(ctx context.Context, title, message string) error {
	var req *http.Request
	var err error

	if strings.Contains(n.webhookURL, "ntfy.sh") {
		req, err = http.NewRequestWithContext(ctx, http.MethodPost, n.webhookURL, strings.NewReader(message))
		if err != nil {
			return err
		}
		req.Header.Set("Title", title)
		req.Header.Set("Priority", "high")
	} else {
		body, merr := json.Marshal(map[string]string{"title": title, "message": message})
		if merr != nil {
			return merr
		}
		req, err = http.NewRequestWithContext(ctx, http.MethodPost, n.webhookURL, bytes.NewReader(body))
		if err != nil {
			return err
		}
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("User-Agent", httputil.UserAgent)

	resp, err := n.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 400 {
		return fmt.Errorf("status %d", resp.StatusCode)
	}
	return nil
}
