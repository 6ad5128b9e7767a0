package quota

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

// Notifier is told once per completed job so usage accounting can charge the
// owner. Calls are fire-and-forget from the orchestrators; failures are
// logged there, never surfaced to callers.
type Notifier interface {
	NotifyJobCompleted(ctx context.Context, ownerID string) error
}

// HTTPNotifier posts completion events to the quota subsystem.
type HTTPNotifier struct {
	apiURL     string
	httpClient *http.Client
}

func NewHTTPNotifier(apiURL string) *HTTPNotifier {
	return &HTTPNotifier{
		apiURL: apiURL,
		httpClient: &http.Client{
			Timeout: 10 * time.Second,
		},
	}
}

func (n *HTTPNotifier) NotifyJobCompleted(ctx context.Context, ownerID string) error {
	payload, err := json.Marshal(map[string]string{"owner_id": ownerID})
	if err != nil {
		return fmt.Errorf("marshal quota event: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.apiURL, bytes.NewBuffer(payload))
	if err != nil {
		return fmt.Errorf("create quota request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := n.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("notify quota: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return fmt.Errorf("quota endpoint returned status %d", resp.StatusCode)
	}
	return nil
}

// NopNotifier is used when no quota endpoint is configured.
type NopNotifier struct{}

func (NopNotifier) NotifyJobCompleted(context.Context, string) error { return nil }
