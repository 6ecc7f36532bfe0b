package httputil

import (
	"net/http"
	"time"
)

const DefaultTimeout = 15 * time.Second

// UserAgent identifies the bot to the weather APIs; the NWS API requires a
// contact string in the agent.
const UserAgent = "heatlock (github.com/lox/heatlock)"

// NewClient returns an HTTP client with standard timeout configuration.
func NewClient() *http.Client {
	return &http.Client{
		Timeout: DefaultTimeout,
	}
}
