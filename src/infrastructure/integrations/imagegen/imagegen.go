// Package imagegen is a thin client for the thumbnail image-generation API.
package imagegen

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"
)

// GenerateRequest represents the request structure for image generation
type GenerateRequest struct {
	Prompt string `json:"prompt"`
	Width  int    `json:"width,omitempty"`
	Height int    `json:"height,omitempty"`
}

// GenerateResponse represents the response structure from image generation
type GenerateResponse struct {
	Image    string `json:"image"` // base64 encoded
	MimeType string `json:"mime_type"`
	Error    string `json:"error,omitempty"`
}

// Client represents an image generation API client
type Client struct {
	httpClient *http.Client
	baseURL    string
}

// NewClient creates a new image generation API client
func NewClient(baseURL string, c *http.Client) *Client {
	return &Client{
		httpClient: c,
		baseURL:    baseURL,
	}
}

// Generate produces an image for the given prompt and returns the raw bytes
// and mime type.
func (c *Client) Generate(ctx context.Context, prompt string, width, height int) ([]byte, string, error) {
	reqBody := GenerateRequest{
		Prompt: prompt,
		Width:  width,
		Height: height,
	}

	jsonData, err := json.Marshal(reqBody)
	if err != nil {
		return nil, "", fmt.Errorf("error marshaling request: %w", err)
	}

	url := fmt.Sprintf("%s/generate", c.baseURL)
	req, err := http.NewRequestWithContext(ctx, "POST", url, bytes.NewBuffer(jsonData))
	if err != nil {
		return nil, "", fmt.Errorf("error creating request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, "", fmt.Errorf("error making request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, "", fmt.Errorf("image generation returned status %d", resp.StatusCode)
	}

	var result GenerateResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, "", fmt.Errorf("error decoding response: %w", err)
	}
	if result.Error != "" {
		return nil, "", fmt.Errorf("image generation failed: %s", result.Error)
	}

	data, err := base64.StdEncoding.DecodeString(result.Image)
	if err != nil {
		return nil, "", fmt.Errorf("error decoding image data: %w", err)
	}

	mimeType := result.MimeType
	if mimeType == "" {
		mimeType = "image/png"
	}
	return data, mimeType, nil
}
