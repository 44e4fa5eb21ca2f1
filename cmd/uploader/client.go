package uploader

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"

	"tradejournal/src/handler"
	"tradejournal/src/model"
)

// Client talks to a running tradejournal API.
type Client struct {
	http *resty.Client
}

func isRetryableResp(r *resty.Response, err error) bool {
	if err != nil {
		return true
	}
	if r == nil {
		return false
	}

	switch r.StatusCode() {
	case http.StatusTooManyRequests, http.StatusBadGateway, http.StatusServiceUnavailable, http.StatusGatewayTimeout:
		return true
	}
	return false
}

func NewClient(baseURL string, timeout time.Duration, retryCount int) *Client {
	httpClient := resty.New().
		SetBaseURL(strings.TrimRight(baseURL, "/")).
		SetTimeout(timeout).
		SetRetryCount(retryCount).
		SetRetryWaitTime(500 * time.Millisecond).
		SetRetryMaxWaitTime(5 * time.Second).
		AddRetryCondition(isRetryableResp)

	return &Client{http: httpClient}
}

func apiError(resp *resty.Response) error {
	return fmt.Errorf("HTTP %d: %s", resp.StatusCode(), strings.TrimSpace(resp.String()))
}

// Login exchanges credentials for a bearer token.
func (c *Client) Login(ctx context.Context, email, password string) (string, error) {
	var token model.TokenResponse

	resp, err := c.http.R().
		SetContext(ctx).
		SetFormData(map[string]string{
			"username": email,
			"password": password,
		}).
		SetResult(&token).
		Post("/api/v1/token")
	if err != nil {
		return "", err
	}
	if resp.IsError() {
		return "", apiError(resp)
	}
	if token.AccessToken == "" {
		return "", fmt.Errorf("token response without access_token")
	}

	return token.AccessToken, nil
}

// Upload posts a CSV export. timezone may be empty.
func (c *Client) Upload(ctx context.Context, token, path, timezone string) (*handler.UploadResponse, error) {
	var result handler.UploadResponse

	req := c.http.R().
		SetContext(ctx).
		SetAuthToken(token).
		SetFile("file", path).
		SetResult(&result)
	if timezone != "" {
		req = req.SetFormData(map[string]string{"timezone": timezone})
	}

	resp, err := req.Post("/api/v1/orders/upload")
	if err != nil {
		return nil, err
	}
	if resp.StatusCode() != http.StatusCreated {
		return nil, apiError(resp)
	}

	return &result, nil
}
