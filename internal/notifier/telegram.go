package notifier

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"mime/multipart"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"SignalSentinel/internal/fault"
)

// Message is one outgoing alert.
type Message struct {
	Text    string
	Image   []byte // optional PNG, sent as a photo with Text as caption
	ReplyTo string // optional id of the message to thread under
}

// Sender delivers alerts and returns the id of the sent message.
type Sender interface {
	Send(ctx context.Context, msg Message) (string, error)
}

// TelegramNotifier sends messages via the Telegram Bot API.
type TelegramNotifier struct {
	BotToken string
	ChatID   string
	BaseURL  string
	Client   *http.Client
}

// NewTelegramNotifier creates a notifier with optional proxy support.
func NewTelegramNotifier(botToken, chatID, proxyURL string) *TelegramNotifier {
	transport := &http.Transport{}
	if proxyURL != "" {
		if u, err := url.Parse(proxyURL); err == nil {
			transport.Proxy = http.ProxyURL(u)
		}
	}
	return &TelegramNotifier{
		BotToken: botToken,
		ChatID:   chatID,
		BaseURL:  "https://api.telegram.org",
		Client: &http.Client{
			Timeout:   30 * time.Second,
			Transport: transport,
		},
	}
}

// telegramResponse is the envelope of every Bot API reply.
type telegramResponse struct {
	OK          bool   `json:"ok"`
	Description string `json:"description"`
	Result      struct {
		MessageID int64 `json:"message_id"`
	} `json:"result"`
}

// Send posts msg to the configured chat. Failures are TransientIO faults.
func (t *TelegramNotifier) Send(ctx context.Context, msg Message) (string, error) {
	var (
		req *http.Request
		err error
	)
	if len(msg.Image) > 0 {
		req, err = t.photoRequest(ctx, msg)
	} else {
		req, err = t.textRequest(ctx, msg)
	}
	if err != nil {
		return "", fault.IO("telegram send", err)
	}

	resp, err := t.Client.Do(req)
	if err != nil {
		return "", fault.IO("telegram send", err)
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fault.IO("telegram send", fmt.Errorf("read response: %w", err))
	}
	if resp.StatusCode != http.StatusOK {
		return "", fault.IO("telegram send", fmt.Errorf("telegram API error: status %d, body: %s", resp.StatusCode, string(body)))
	}
	var result telegramResponse
	if err := json.Unmarshal(body, &result); err != nil {
		return "", fault.IO("telegram send", fmt.Errorf("decode response: %w", err))
	}
	if !result.OK {
		return "", fault.IO("telegram send", fmt.Errorf("telegram API error: %s", result.Description))
	}
	return strconv.FormatInt(result.Result.MessageID, 10), nil
}

func (t *TelegramNotifier) textRequest(ctx context.Context, msg Message) (*http.Request, error) {
	payload := map[string]any{
		"chat_id":    t.ChatID,
		"text":       msg.Text,
		"parse_mode": "HTML",
	}
	if id, ok := replyID(msg.ReplyTo); ok {
		payload["reply_to_message_id"] = id
		payload["allow_sending_without_reply"] = true
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal payload: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, t.endpoint("sendMessage"), bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	return req, nil
}

func (t *TelegramNotifier) photoRequest(ctx context.Context, msg Message) (*http.Request, error) {
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	fields := map[string]string{
		"chat_id":    t.ChatID,
		"caption":    msg.Text,
		"parse_mode": "HTML",
	}
	if id, ok := replyID(msg.ReplyTo); ok {
		fields["reply_to_message_id"] = strconv.FormatInt(id, 10)
		fields["allow_sending_without_reply"] = "true"
	}
	for k, v := range fields {
		if err := w.WriteField(k, v); err != nil {
			return nil, fmt.Errorf("write field %s: %w", k, err)
		}
	}
	part, err := w.CreateFormFile("photo", "chart.png")
	if err != nil {
		return nil, fmt.Errorf("create photo part: %w", err)
	}
	if _, err := part.Write(msg.Image); err != nil {
		return nil, fmt.Errorf("write photo: %w", err)
	}
	if err := w.Close(); err != nil {
		return nil, fmt.Errorf("close multipart: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, t.endpoint("sendPhoto"), &buf)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", w.FormDataContentType())
	return req, nil
}

func (t *TelegramNotifier) endpoint(method string) string {
	return fmt.Sprintf("%s/bot%s/%s", t.BaseURL, t.BotToken, method)
}

// SendWithRetry sends a text message with exponential backoff retry.
// Used for operational notices only; alerts are never retried.
func (t *TelegramNotifier) SendWithRetry(ctx context.Context, text string, maxRetries int) error {
	var lastErr error
	for i := 0; i <= maxRetries; i++ {
		if _, err := t.Send(ctx, Message{Text: text}); err != nil {
			lastErr = err
			backoff := time.Duration(1<<uint(i)) * time.Second
			log.Printf("[WARN] Telegram send failed (attempt %d/%d): %v, retrying in %v", i+1, maxRetries+1, err, backoff)
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(backoff):
				continue
			}
		}
		return nil
	}
	return fmt.Errorf("all %d retries exhausted: %w", maxRetries+1, lastErr)
}

func replyID(ref string) (int64, bool) {
	if ref == "" {
		return 0, false
	}
	id, err := strconv.ParseInt(ref, 10, 64)
	return id, err == nil
}

// NoopNotifier drops every message. Used when Telegram is not configured.
type NoopNotifier struct{}

func NewNoopNotifier() *NoopNotifier { return &NoopNotifier{} }

func (n *NoopNotifier) Send(_ context.Context, msg Message) (string, error) {
	log.Printf("[INFO] alert (not delivered): %s", firstLine(msg.Text))
	return "", nil
}
