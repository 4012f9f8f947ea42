package openai

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strings"
	"time"
)

// Options controls how the OpenAI client is configured.
type Options struct {
	APIKey       string
	BaseURL      string
	Organization string
	HTTPClient   *http.Client
}

// Client is a thin facade over the OpenAI HTTP API exposing the four
// capabilities the texture pipeline needs: prompt enhancement from
// reference images, image synthesis, image editing and image
// description.
type Client struct {
	apiKey       string
	baseURL      string
	organization string
	httpClient   *http.Client
}

const (
	defaultBaseURL = "https://api.openai.com/v1"
	defaultTimeout = 60 * time.Second

	visionModel = "gpt-4o"

	// Small output sizes run on the cheaper synthesis tier.
	modelTierSmall = "dall-e-2"
	modelTierLarge = "dall-e-3"
)

// SmallSize reports whether size belongs to the small output tier.
func SmallSize(size string) bool {
	return size == "256x256" || size == "512x512"
}

// SynthesisModel returns the image-synthesis model tier for a size.
func SynthesisModel(size string) string {
	if SmallSize(size) {
		return modelTierSmall
	}
	return modelTierLarge
}

type chatRequest struct {
	Model     string        `json:"model"`
	Messages  []chatMessage `json:"messages"`
	MaxTokens int           `json:"max_tokens,omitempty"`
}

type chatMessage struct {
	Role    string     `json:"role"`
	Content []chatPart `json:"content"`
}

type chatPart struct {
	Type     string        `json:"type"`
	Text     string        `json:"text,omitempty"`
	ImageURL *chatImageURL `json:"image_url,omitempty"`
}

type chatImageURL struct {
	URL string `json:"url"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

type imageGenerateRequest struct {
	Model   string `json:"model"`
	Prompt  string `json:"prompt"`
	Size    string `json:"size"`
	Quality string `json:"quality,omitempty"`
	Style   string `json:"style,omitempty"`
	N       int    `json:"n"`
}

type imageResponse struct {
	Data []struct {
		URL string `json:"url"`
	} `json:"data"`
}

type apiErrorResponse struct {
	Error struct {
		Message string `json:"message"`
		Type    string `json:"type"`
	} `json:"error"`
}

// NewClient constructs an OpenAI client with sane defaults. Callers may
// provide a nil HTTP client; a reusable one with a bounded timeout will
// be created.
func NewClient(opts Options) (*Client, error) {
	if strings.TrimSpace(opts.APIKey) == "" {
		return nil, errors.New("openai api key is required")
	}
	baseURL := strings.TrimRight(opts.BaseURL, "/")
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	client := opts.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: defaultTimeout}
	}
	return &Client{
		apiKey:       strings.TrimSpace(opts.APIKey),
		baseURL:      baseURL,
		organization: strings.TrimSpace(opts.Organization),
		httpClient:   client,
	}, nil
}

// EnhancePrompt derives a detailed synthesis prompt from the user
// prompt plus reference images. limit caps the requested prompt length
// in characters; the cap tracks what the downstream image model
// accepts for the chosen output size.
func (c *Client) EnhancePrompt(ctx context.Context, userPrompt string, referenceImages [][]byte, limit int) (string, error) {
	parts := []chatPart{{
		Type: "text",
		Text: fmt.Sprintf(
			"%s. Generate a detailed image-synthesis prompt focusing on style, colors, and composition. "+
				"Use the reference images to create a detailed prompt. "+
				"The generated prompt should be regarding a texture with a repeatable pattern. "+
				"Limit the prompt to %d characters.",
			userPrompt, limit,
		),
	}}
	for _, img := range referenceImages {
		parts = append(parts, chatPart{
			Type:     "image_url",
			ImageURL: &chatImageURL{URL: "data:image/jpeg;base64," + base64.StdEncoding.EncodeToString(img)},
		})
	}

	payload := chatRequest{
		Model:     visionModel,
		Messages:  []chatMessage{{Role: "user", Content: parts}},
		MaxTokens: 300,
	}
	var resp chatResponse
	if err := c.invokeJSON(ctx, "/chat/completions", payload, &resp); err != nil {
		return "", err
	}
	if len(resp.Choices) == 0 || strings.TrimSpace(resp.Choices[0].Message.Content) == "" {
		return "", errors.New("openai: no prompt content returned")
	}
	return strings.TrimSpace(resp.Choices[0].Message.Content), nil
}

// GenerateImage synthesizes one image for the prompt at the requested
// size and returns its locator. The model tier follows the size: small
// sizes use the cheaper tier.
func (c *Client) GenerateImage(ctx context.Context, prompt, size string) (string, error) {
	payload := imageGenerateRequest{
		Model:   SynthesisModel(size),
		Prompt:  prompt,
		Size:    size,
		Quality: "hd",
		Style:   "natural",
		N:       1,
	}
	var resp imageResponse
	if err := c.invokeJSON(ctx, "/images/generations", payload, &resp); err != nil {
		return "", err
	}
	if len(resp.Data) == 0 || resp.Data[0].URL == "" {
		return "", errors.New("openai: no image url returned")
	}
	return resp.Data[0].URL, nil
}

// EditImage applies prompt-driven edits to the provided image bytes on
// the given model and size, returning the locator of the edited image.
func (c *Client) EditImage(ctx context.Context, image []byte, prompt, model, size string) (string, error) {
	var body bytes.Buffer
	writer := multipart.NewWriter(&body)
	part, err := writer.CreateFormFile("image", "texture.png")
	if err != nil {
		return "", fmt.Errorf("openai: build edit form: %w", err)
	}
	if _, err := part.Write(image); err != nil {
		return "", fmt.Errorf("openai: build edit form: %w", err)
	}
	for field, value := range map[string]string{
		"prompt": prompt,
		"model":  model,
		"size":   size,
		"n":      "1",
	} {
		if err := writer.WriteField(field, value); err != nil {
			return "", fmt.Errorf("openai: build edit form: %w", err)
		}
	}
	if err := writer.Close(); err != nil {
		return "", fmt.Errorf("openai: build edit form: %w", err)
	}

	var resp imageResponse
	if err := c.invoke(ctx, "/images/edits", writer.FormDataContentType(), &body, &resp); err != nil {
		return "", err
	}
	if len(resp.Data) == 0 || resp.Data[0].URL == "" {
		return "", errors.New("openai: no image url returned")
	}
	return resp.Data[0].URL, nil
}

// DescribeImage derives a short human-readable title from the pixel
// content of the provided image.
func (c *Client) DescribeImage(ctx context.Context, image []byte) (string, error) {
	payload := chatRequest{
		Model: visionModel,
		Messages: []chatMessage{{
			Role: "user",
			Content: []chatPart{
				{
					Type: "text",
					Text: "Generate a short, descriptive title for this texture image. " +
						"Focus on the main visual elements, colors, and patterns. " +
						`Keep it concise and descriptive, like "Blue Marble Wall" or "Rustic Wood Grain".`,
				},
				{
					Type:     "image_url",
					ImageURL: &chatImageURL{URL: "data:image/png;base64," + base64.StdEncoding.EncodeToString(image)},
				},
			},
		}},
	}
	var resp chatResponse
	if err := c.invokeJSON(ctx, "/chat/completions", payload, &resp); err != nil {
		return "", err
	}
	if len(resp.Choices) == 0 || strings.TrimSpace(resp.Choices[0].Message.Content) == "" {
		return "", errors.New("openai: no description returned")
	}
	return strings.TrimSpace(resp.Choices[0].Message.Content), nil
}

func (c *Client) invokeJSON(ctx context.Context, path string, payload, out any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("openai: marshal request: %w", err)
	}
	return c.invoke(ctx, path, "application/json", bytes.NewReader(body), out)
}

func (c *Client) invoke(ctx context.Context, path, contentType string, body io.Reader, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("openai: create request: %w", err)
	}
	req.Header.Set("Content-Type", contentType)
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	if c.organization != "" {
		req.Header.Set("OpenAI-Organization", c.organization)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("openai: invoke %s: %w", path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest {
		var apiErr apiErrorResponse
		if err := json.NewDecoder(resp.Body).Decode(&apiErr); err == nil && apiErr.Error.Message != "" {
			return fmt.Errorf("openai status %d: %s", resp.StatusCode, apiErr.Error.Message)
		}
		return fmt.Errorf("openai status %d", resp.StatusCode)
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("openai: decode response: %w", err)
	}
	return nil
}
