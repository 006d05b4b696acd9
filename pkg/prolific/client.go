package prolific

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// DefaultBaseURL Prolific API v1
const DefaultBaseURL = "https://api.prolific.com/api/v1"

// Client Prolific 메시지 API 클라이언트
type Client struct {
	baseURL    string
	token      string
	httpClient *http.Client
}

// NewClient 토큰은 필수
func NewClient(baseURL, token string) (*Client, error) {
	if token == "" {
		return nil, fmt.Errorf("prolific API token is empty")
	}
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}

	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		token:   token,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}, nil
}

type sendMessageRequest struct {
	StudyID     string `json:"study_id"`
	RecipientID string `json:"recipient_id"`
	Body        string `json:"body"`
}

// APIError 2xx가 아닌 응답
type APIError struct {
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("prolific API returned %d: %s", e.StatusCode, e.Body)
}

// SendMessage 참가자에게 스터디 메시지 전송
func (c *Client) SendMessage(ctx context.Context, studyID, recipientID, body string) error {
	payload, err := json.Marshal(sendMessageRequest{
		StudyID:     studyID,
		RecipientID: recipientID,
		Body:        body,
	})
	if err != nil {
		return fmt.Errorf("failed to encode message: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/messages/", bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Authorization", "Token "+c.token)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to send message: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		data, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return &APIError{StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(data))}
	}

	return nil
}
