package orchestrate

import (
	"fmt"
	"net"
	"net/http"
	"os"
	"strings"

	"github.com/silvabox/orchestrate-go/internal/seed"
	"github.com/silvabox/orchestrate-go/pkg/orchestrate/mock"
)

const (
	envMode     = "ORCHESTRATE_MODE"
	envAPIKey   = "ORCHESTRATE_API_KEY"
	envBaseURL  = "ORCHESTRATE_URL"
	envMockSeed = "ORCHESTRATE_MOCK_SEED"

	modeAuto = "auto"
	modeHTTP = "http"
	modeMock = "mock"

	defaultBaseURL = "https://api.orchestrate.io"
	mockAPIKey     = "mock-api-key"
)

// NewFromEnv initialises a Client from environment variables and returns the
// resolved mode ("http" or "mock"). In auto mode (the default), a configured
// API key selects HTTP, otherwise an in-process mock service is started on a
// loopback listener that lives for the rest of the process.
func NewFromEnv() (client *Client, mode string, err error) {
	mode = strings.ToLower(strings.TrimSpace(os.Getenv(envMode)))
	apiKey := strings.TrimSpace(os.Getenv(envAPIKey))

	switch mode {
	case "", modeAuto:
		if apiKey != "" {
			return newHTTPClientFromEnv(apiKey)
		}
		return newMockClientFromEnv()
	case modeHTTP:
		if apiKey == "" {
			return nil, "", fmt.Errorf("orchestrate: HTTP mode requires %s", envAPIKey)
		}
		return newHTTPClientFromEnv(apiKey)
	case modeMock:
		return newMockClientFromEnv()
	default:
		return nil, "", fmt.Errorf("orchestrate: unsupported %s value %q", envMode, mode)
	}
}

func newHTTPClientFromEnv(apiKey string) (*Client, string, error) {
	baseURL := strings.TrimSpace(os.Getenv(envBaseURL))
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	client, err := New(Config{APIKey: apiKey, BaseURL: baseURL})
	if err != nil {
		return nil, "", fmt.Errorf("orchestrate: init HTTP client: %w", err)
	}
	return client, modeHTTP, nil
}

func newMockClientFromEnv() (*Client, string, error) {
	server := mock.New(mock.WithAPIKey(mockAPIKey))
	if path := strings.TrimSpace(os.Getenv(envMockSeed)); path != "" {
		entries, err := seed.Load(path)
		if err != nil {
			return nil, "", fmt.Errorf("orchestrate: load mock seed: %w", err)
		}
		if err := server.Seed(entries); err != nil {
			return nil, "", fmt.Errorf("orchestrate: apply mock seed: %w", err)
		}
	}

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		return nil, "", fmt.Errorf("orchestrate: start mock listener: %w", err)
	}
	go func() {
		_ = http.Serve(ln, server)
	}()

	client, err := New(Config{
		APIKey:  mockAPIKey,
		BaseURL: "http://" + ln.Addr().String(),
	})
	if err != nil {
		return nil, "", fmt.Errorf("orchestrate: init mock client: %w", err)
	}
	return client, modeMock, nil
}
