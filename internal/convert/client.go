package convert

import (
	"archive/zip"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// Client talks to a MinerU-style batch conversion API:
// request an upload slot, PUT the file, poll the batch, download a zip
// holding the markdown plus extracted images.
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
}

func NewClient(baseURL, apiKey string) (*Client, error) {
	if baseURL == "" {
		return nil, fmt.Errorf("conversion API URL is required")
	}
	if apiKey == "" {
		return nil, fmt.Errorf("conversion API key is required")
	}
	return &Client{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		apiKey:  apiKey,
		httpClient: &http.Client{
			Timeout: 60 * time.Second,
		},
	}, nil
}

type batchEnvelope struct {
	Code int             `json:"code"`
	Msg  string          `json:"msg"`
	Data json.RawMessage `json:"data"`
}

type submitData struct {
	BatchID  string   `json:"batch_id"`
	FileURLs []string `json:"file_urls"`
}

type pollData struct {
	ExtractResult []struct {
		State      string `json:"state"`
		FullZipURL string `json:"full_zip_url"`
		ErrMsg     string `json:"err_msg"`
	} `json:"extract_result"`
}

// Submit requests an upload slot and uploads the file bytes. The returned
// batch id is used for polling.
func (c *Client) Submit(ctx context.Context, filename string, data []byte, refID string) (string, error) {
	payload := map[string]any{
		"files":          []map[string]string{{"name": filename, "data_id": refID}},
		"enable_formula": true,
		"enable_table":   true,
	}
	var env batchEnvelope
	if err := c.postJSON(ctx, "/file-urls/batch", payload, &env); err != nil {
		return "", err
	}
	if env.Code != 0 {
		return "", fmt.Errorf("conversion API error: %s", env.Msg)
	}
	var sub submitData
	if err := json.Unmarshal(env.Data, &sub); err != nil {
		return "", fmt.Errorf("decode submit response: %w", err)
	}
	if sub.BatchID == "" || len(sub.FileURLs) == 0 {
		return "", fmt.Errorf("conversion API returned no upload slot")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPut, sub.FileURLs[0], bytes.NewReader(data))
	if err != nil {
		return "", fmt.Errorf("create upload request: %w", err)
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("upload file: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return "", fmt.Errorf("upload failed with status %d", resp.StatusCode)
	}
	return sub.BatchID, nil
}

// PollStatus reads the state of the first file in the batch.
func (c *Client) PollStatus(ctx context.Context, batchID string) (Status, error) {
	var env batchEnvelope
	if err := c.getJSON(ctx, "/extract-results/batch/"+batchID, &env); err != nil {
		return Status{}, err
	}
	if env.Code != 0 {
		return Status{}, fmt.Errorf("conversion API error: %s", env.Msg)
	}
	var poll pollData
	if err := json.Unmarshal(env.Data, &poll); err != nil {
		return Status{}, fmt.Errorf("decode poll response: %w", err)
	}
	if len(poll.ExtractResult) == 0 {
		return Status{}, fmt.Errorf("batch %s has no results", batchID)
	}
	first := poll.ExtractResult[0]
	return Status{
		State:          State(first.State),
		ResultLocation: first.FullZipURL,
		ErrMsg:         first.ErrMsg,
	}, nil
}

// Fetch downloads the result zip and flattens it into markdown content plus
// named image assets.
func (c *Client) Fetch(ctx context.Context, location string) (*Result, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, location, nil)
	if err != nil {
		return nil, fmt.Errorf("create fetch request: %w", err)
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch result: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fetch failed with status %d", resp.StatusCode)
	}

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read result body: %w", err)
	}
	return unpackZip(raw)
}

func unpackZip(raw []byte) (*Result, error) {
	reader, err := zip.NewReader(bytes.NewReader(raw), int64(len(raw)))
	if err != nil {
		return nil, fmt.Errorf("open result zip: %w", err)
	}

	result := &Result{}
	for _, zf := range reader.File {
		name := zf.Name
		lower := strings.ToLower(name)
		isMarkdown := strings.HasSuffix(lower, ".md")
		isImage := strings.HasSuffix(lower, ".png") || strings.HasSuffix(lower, ".jpg") ||
			strings.HasSuffix(lower, ".jpeg") || strings.HasSuffix(lower, ".gif")
		if !isMarkdown && !isImage {
			continue
		}
		rc, err := zf.Open()
		if err != nil {
			return nil, fmt.Errorf("open %s in result zip: %w", name, err)
		}
		data, err := io.ReadAll(rc)
		rc.Close()
		if err != nil {
			return nil, fmt.Errorf("read %s in result zip: %w", name, err)
		}
		if isMarkdown {
			result.Content = string(data)
		} else {
			result.Assets = append(result.Assets, NamedAsset{Name: name, Data: data})
		}
	}
	return result, nil
}

func (c *Client) postJSON(ctx context.Context, path string, payload any, out any) error {
	jsonData, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewBuffer(jsonData))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	return c.do(req, out)
}

func (c *Client) getJSON(ctx context.Context, path string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	return c.do(req, out)
}

func (c *Client) do(req *http.Request, out any) error {
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unexpected status %d: %s", resp.StatusCode, string(body))
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
