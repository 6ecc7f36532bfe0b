package kalshi

import (
	"context"
	"crypto"
	"crypto/rand"
	"crypto/rsa"
	"crypto/sha256"
	"crypto/x509"
	"encoding/base64"
	"encoding/json"
	"encoding/pem"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/lox/heatlock/internal/httputil"
	"github.com/lox/heatlock/internal/metrics"
)

const (
	apiBase    = "https://api.elections.kalshi.com/trade-api/v2"
	apiPrefix  = "/trade-api/v2"
	maxElapsed = 30 * time.Second
)

// Client talks to the Kalshi exchange API. Every request is signed with the
// account's RSA key; there is no session to establish or refresh.
type Client struct {
	keyID      string
	privateKey *rsa.PrivateKey
	client     *http.Client
	base       string
}

// New loads the PEM private key at keyPath and returns a signing client.
func New(keyID, keyPath string) (*Client, error) {
	raw, err := os.ReadFile(keyPath)
	if err != nil {
		return nil, fmt.Errorf("read private key: %w", err)
	}
	key, err := parsePrivateKey(raw)
	if err != nil {
		return nil, fmt.Errorf("parse private key %s: %w", keyPath, err)
	}
	return &Client{
		keyID:      keyID,
		privateKey: key,
		client:     httputil.NewClient(),
		base:       apiBase,
	}, nil
}

// NewPublic returns a client without credentials. Market data on the
// elections API is public; order and portfolio endpoints will be refused.
func NewPublic() *Client {
	return &Client{client: httputil.NewClient(), base: apiBase}
}

func parsePrivateKey(raw []byte) (*rsa.PrivateKey, error) {
	block, _ := pem.Decode(raw)
	if block == nil {
		return nil, errors.New("no PEM block found")
	}
	if key, err := x509.ParsePKCS1PrivateKey(block.Bytes); err == nil {
		return key, nil
	}
	parsed, err := x509.ParsePKCS8PrivateKey(block.Bytes)
	if err != nil {
		return nil, err
	}
	key, ok := parsed.(*rsa.PrivateKey)
	if !ok {
		return nil, fmt.Errorf("not an RSA key: %T", parsed)
	}
	return key, nil
}

// sign produces the request signature over timestamp + method + path. The
// path includes the API prefix but never the query string.
func (c *Client) sign(method, path, timestamp string) (string, error) {
	msg := timestamp + method + path
	digest := sha256.Sum256([]byte(msg))
	sig, err := rsa.SignPSS(rand.Reader, c.privateKey, crypto.SHA256, digest[:], &rsa.PSSOptions{
		SaltLength: sha256.Size,
		Hash:       crypto.SHA256,
	})
	if err != nil {
		return "", err
	}
	return base64.StdEncoding.EncodeToString(sig), nil
}

func (c *Client) setAuthHeaders(req *http.Request, method, path string) error {
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", httputil.UserAgent)
	if c.privateKey == nil {
		return nil
	}

	timestamp := strconv.FormatInt(time.Now().UnixMilli(), 10)
	sig, err := c.sign(method, path, timestamp)
	if err != nil {
		return fmt.Errorf("sign request: %w", err)
	}
	req.Header.Set("KALSHI-ACCESS-KEY", c.keyID)
	req.Header.Set("KALSHI-ACCESS-TIMESTAMP", timestamp)
	req.Header.Set("KALSHI-ACCESS-SIGNATURE", sig)
	return nil
}

// attempt issues one signed request. Retryable failures (rate limits, server
// errors) come back wrapped for backoff; everything else is permanent.
func (c *Client) attempt(ctx context.Context, method, path, query string, payload []byte) ([]byte, error) {
	url := c.base + strings.TrimPrefix(path, apiPrefix)
	if query != "" {
		url += "?" + query
	}

	var body io.Reader
	if payload != nil {
		body = strings.NewReader(string(payload))
	}
	req, err := http.NewRequestWithContext(ctx, method, url, body)
	if err != nil {
		return nil, backoff.Permanent(err)
	}
	if err := c.setAuthHeaders(req, method, path); err != nil {
		return nil, backoff.Permanent(err)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	switch {
	case resp.StatusCode == http.StatusOK || resp.StatusCode == http.StatusCreated:
		return data, nil
	case resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500:
		return nil, fmt.Errorf("status %d: %s", resp.StatusCode, data)
	default:
		return nil, backoff.Permanent(fmt.Errorf("status %d: %s", resp.StatusCode, data))
	}
}

// do retries a read request with backoff. Each attempt is re-signed so the
// timestamp stays fresh. Orders never come through here: a retried order that
// actually reached the exchange would double-buy.
func (c *Client) do(ctx context.Context, method, path, query string, payload []byte) ([]byte, error) {
	bo := backoff.NewExponentialBackOff()
	bo.MaxElapsedTime = maxElapsed

	var result []byte
	err := backoff.Retry(func() error {
		var opErr error
		result, opErr = c.attempt(ctx, method, path, query, payload)
		return opErr
	}, backoff.WithContext(bo, ctx))
	return result, err
}

// GetBalance returns the available account balance in dollars.
func (c *Client) GetBalance(ctx context.Context) (float64, error) {
	path := apiPrefix + "/portfolio/balance"

	data, err := c.do(ctx, http.MethodGet, path, "", nil)
	metrics.KalshiCallsTotal.WithLabelValues("balance", status(err)).Inc()
	if err != nil {
		return 0, fmt.Errorf("balance: %w", err)
	}

	var out struct {
		Balance int64 `json:"balance"` // cents
	}
	if err := json.Unmarshal(data, &out); err != nil {
		return 0, fmt.Errorf("balance: unmarshal: %w", err)
	}
	return float64(out.Balance) / 100.0, nil
}

func status(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}
