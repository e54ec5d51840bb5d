package sms

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/civic-fix/api-go/config"
	"github.com/civic-fix/api-go/services"
	"go.uber.org/zap"
)

// HTTPSender posts messages to a JSON SMS gateway.
type HTTPSender struct {
	URL    string
	APIKey string
	Sender string
	Client *http.Client
}

func NewHTTPSender(cfg config.SMSConfig) *HTTPSender {
	return &HTTPSender{
		URL:    cfg.GatewayURL,
		APIKey: cfg.APIKey,
		Sender: cfg.Sender,
		Client: &http.Client{Timeout: 10 * time.Second},
	}
}

type sendRequest struct {
	To      string `json:"to"`
	Message string `json:"message"`
	From    string `json:"from,omitempty"`
}

type sendResponse struct {
	Success   bool   `json:"success"`
	MessageID string `json:"messageId"`
	Error     string `json:"error"`
}

func (s *HTTPSender) Send(ctx context.Context, phone, message string) (services.SendResult, error) {
	body, err := json.Marshal(sendRequest{To: phone, Message: message, From: s.Sender})
	if err != nil {
		return services.SendResult{}, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.URL, bytes.NewReader(body))
	if err != nil {
		return services.SendResult{}, err
	}
	req.Header.Set("Content-Type", "application/json")
	if s.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+s.APIKey)
	}

	resp, err := s.Client.Do(req)
	if err != nil {
		return services.SendResult{}, err
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	if err != nil {
		return services.SendResult{}, err
	}

	var out sendResponse
	if err := json.Unmarshal(raw, &out); err != nil {
		if resp.StatusCode >= 300 {
			return services.SendResult{}, fmt.Errorf("sms gateway returned %d", resp.StatusCode)
		}
		return services.SendResult{}, fmt.Errorf("decode gateway response: %w", err)
	}
	if resp.StatusCode >= 300 && out.Error == "" {
		out.Error = fmt.Sprintf("gateway returned %d", resp.StatusCode)
		out.Success = false
	}
	return services.SendResult{Success: out.Success, MessageID: out.MessageID, Error: out.Error}, nil
}

// LogSender writes messages to the log instead of sending them. Used when
// no gateway is configured.
type LogSender struct {
	Log *zap.Logger
}

func (s LogSender) Send(_ context.Context, phone, message string) (services.SendResult, error) {
	log := s.Log
	if log == nil {
		log = zap.NewNop()
	}
	log.Info("sms (not sent, no gateway configured)", zap.String("to", phone), zap.String("message", message))
	return services.SendResult{Success: true, MessageID: "log"}, nil
}
