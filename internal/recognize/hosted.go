package recognize

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"path/filepath"
	"strings"
	"time"
)

// DefaultEndpoint is an OpenAI-compatible transcription endpoint.
const DefaultEndpoint = "https://api.openai.com/v1/audio/transcriptions"

// Hosted calls an OpenAI-compatible /audio/transcriptions endpoint.
type Hosted struct {
	Endpoint string
	APIKey   string
	Model    string
	Language string
	Client   *http.Client
}

// NewHosted returns a hosted recognizer whose requests time out after
// timeout.
func NewHosted(endpoint, apiKey, model, language string, timeout time.Duration) *Hosted {
	if endpoint == "" {
		endpoint = DefaultEndpoint
	}
	return &Hosted{
		Endpoint: endpoint,
		APIKey:   apiKey,
		Model:    model,
		Language: language,
		Client:   &http.Client{Timeout: timeout},
	}
}

func (h *Hosted) Name() string { return "hosted" }

// Recognize uploads the clip's original file and returns the text field of
// the JSON response.
func (h *Hosted) Recognize(ctx context.Context, clip *Clip) (string, error) {
	var body bytes.Buffer
	writer := multipart.NewWriter(&body)

	part, err := writer.CreateFormFile("file", filepath.Base(clip.Path))
	if err != nil {
		return "", err
	}
	if _, err := part.Write(clip.Data); err != nil {
		return "", err
	}
	if h.Model != "" {
		_ = writer.WriteField("model", h.Model)
	}
	_ = writer.WriteField("response_format", "json")
	if h.Language != "" {
		_ = writer.WriteField("language", h.Language)
	}
	if err := writer.Close(); err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, h.Endpoint, &body)
	if err != nil {
		return "", fmt.Errorf("building request: %w", err)
	}
	if h.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+h.APIKey)
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())

	client := h.Client
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(req)
	if err != nil {
		return "", err
	}
	defer func() { _ = resp.Body.Close() }()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("reading response: %w", err)
	}

	switch {
	case resp.StatusCode == http.StatusRequestTimeout || resp.StatusCode == http.StatusGatewayTimeout:
		return "", fmt.Errorf("%w: HTTP %d", ErrTimeout, resp.StatusCode)
	case resp.StatusCode != http.StatusOK:
		return "", fmt.Errorf("hosted API error %d: %s", resp.StatusCode, strings.TrimSpace(string(data)))
	}

	var out struct {
		Text string `json:"text"`
	}
	if err := json.Unmarshal(data, &out); err != nil {
		return "", fmt.Errorf("hosted response parse error: %w", err)
	}
	text := strings.TrimSpace(out.Text)
	if text == "" {
		return "", ErrUnintelligible
	}
	return text, nil
}
