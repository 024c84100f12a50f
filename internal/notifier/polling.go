package notifier

import (
	"context"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/tidwall/gjson"
)

const (
	pollTimeout = 30 * time.Second
	pollBackoff = 5 * time.Second
)

// CommandHandler is called when a user command is received.
type CommandHandler func(command string) string

// Command is a slash command sent to the bot.
type Command struct {
	ChatID    string
	MessageID string
	Text      string
}

// StartPolling long-polls getUpdates and answers commands from the configured
// chat, threading each reply under the command. Blocks until ctx is cancelled.
func (t *TelegramNotifier) StartPolling(ctx context.Context, handler CommandHandler) {
	client := &http.Client{Timeout: pollTimeout + 5*time.Second, Transport: t.Client.Transport}
	var offset int64
	for ctx.Err() == nil {
		cmds, next, err := t.fetchCommands(ctx, client, offset)
		if err != nil {
			if ctx.Err() != nil {
				break
			}
			log.Printf("[WARN] poll commands: %v", err)
			sleepCtx(ctx, pollBackoff)
			continue
		}
		offset = next
		for _, c := range cmds {
			t.dispatch(ctx, c, handler)
		}
	}
	log.Println("[INFO] Telegram polling stopped")
}

// fetchCommands returns the commands in one getUpdates batch and the offset
// that acknowledges the whole batch.
func (t *TelegramNotifier) fetchCommands(ctx context.Context, client *http.Client, offset int64) ([]Command, int64, error) {
	q := url.Values{}
	q.Set("offset", fmt.Sprint(offset))
	q.Set("timeout", fmt.Sprint(int(pollTimeout/time.Second)))
	q.Set("allowed_updates", `["message"]`)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, t.endpoint("getUpdates")+"?"+q.Encode(), nil)
	if err != nil {
		return nil, offset, err
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, offset, err
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, offset, fmt.Errorf("read response: %w", err)
	}
	if !gjson.ValidBytes(body) {
		return nil, offset, fmt.Errorf("invalid getUpdates response (status %d)", resp.StatusCode)
	}
	res := gjson.ParseBytes(body)
	if !res.Get("ok").Bool() {
		return nil, offset, fmt.Errorf("telegram API error: %s", res.Get("description").String())
	}

	var cmds []Command
	res.Get("result").ForEach(func(_, u gjson.Result) bool {
		if id := u.Get("update_id").Int(); id >= offset {
			offset = id + 1
		}
		text := strings.TrimSpace(u.Get("message.text").String())
		if !strings.HasPrefix(text, "/") {
			return true
		}
		cmds = append(cmds, Command{
			ChatID:    u.Get("message.chat.id").String(),
			MessageID: u.Get("message.message_id").String(),
			Text:      text,
		})
		return true
	})
	return cmds, offset, nil
}

func (t *TelegramNotifier) dispatch(ctx context.Context, c Command, handler CommandHandler) {
	if c.ChatID != t.ChatID {
		log.Printf("[WARN] ignoring %s from chat %s", c.Text, c.ChatID)
		return
	}
	log.Printf("[INFO] received command: %s", c.Text)
	reply := handler(c.Text)
	if reply == "" {
		return
	}
	if _, err := t.Send(ctx, Message{Text: reply, ReplyTo: c.MessageID}); err != nil {
		log.Printf("[ERROR] reply to %s: %v", c.Text, err)
	}
}

func sleepCtx(ctx context.Context, d time.Duration) {
	select {
	case <-ctx.Done():
	case <-time.After(d):
	}
}
