// Package generator wraps the external image-synthesis service. The heavy
// lifting happens in a diffusion sidecar; this package only ships prompts and
// canvas bytes over HTTP and hands the result back.
package generator

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// Params — фиксированные параметры генерации (не пользовательский ввод).
type Params struct {
	Steps             int
	GuidanceScale     float64
	ConditioningScale float64
}

// Generator produces an image from a canvas sketch and prompts.
// Implementations must honour ctx cancellation; calls may take minutes.
type Generator interface {
	Generate(ctx context.Context, canvas []byte, prompt, negativePrompt string) ([]byte, error)
}

// Client calls a stable-diffusion style HTTP endpoint.
type Client struct {
	endpoint string
	params   Params
	http     *http.Client
}

func NewClient(endpoint string, params Params, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 5 * time.Minute
	}
	return &Client{
		endpoint: endpoint,
		params:   params,
		http:     &http.Client{Timeout: timeout},
	}
}

type generateRequest struct {
	Prompt            string  `json:"prompt"`
	NegativePrompt    string  `json:"negative_prompt,omitempty"`
	Image             string  `json:"image"` // base64 PNG
	NumInferenceSteps int     `json:"num_inference_steps"`
	GuidanceScale     float64 `json:"guidance_scale"`
	ConditioningScale float64 `json:"conditioning_scale"`
}

type generateResponse struct {
	Image  string `json:"image"` // base64 PNG
	Detail string `json:"detail,omitempty"`
}

func (c *Client) Generate(ctx context.Context, canvas []byte, prompt, negativePrompt string) ([]byte, error) {
	body, err := json.Marshal(generateRequest{
		Prompt:            prompt,
		NegativePrompt:    negativePrompt,
		Image:             base64.StdEncoding.EncodeToString(canvas),
		NumInferenceSteps: c.params.Steps,
		GuidanceScale:     c.params.GuidanceScale,
		ConditioningScale: c.params.ConditioningScale,
	})
	if err != nil {
		return nil, fmt.Errorf("marshal generate request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("generator call: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("generator response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("generator returned %d: %s", resp.StatusCode, bytes.TrimSpace(raw))
	}

	var out generateResponse
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, fmt.Errorf("decode generator response: %w", err)
	}
	img, err := base64.StdEncoding.DecodeString(out.Image)
	if err != nil {
		return nil, fmt.Errorf("generator image payload: %w", err)
	}
	return img, nil
}
