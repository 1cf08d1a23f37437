// Package notify delivers best-effort event notifications. Delivery
// failures are logged by callers and never retried; a missed
// notification is acceptable, a lost cursor update is not.
package notify

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"time"
)

// MediaKind selects the Telegram media endpoint.
type MediaKind string

const (
	MediaPhoto     MediaKind = "photo"
	MediaAnimation MediaKind = "animation"
	MediaVideo     MediaKind = "video"
)

// Notifier is the notification delivery boundary.
type Notifier interface {
	// SendMedia sends a captioned media message to every configured
	// destination. mediaRef may be a URL or a local file path; an
	// empty mediaRef falls back to a plain text message.
	SendMedia(ctx context.Context, mediaRef, caption string, kind MediaKind) error

	// SendText sends a plain text message to every configured destination.
	SendText(ctx context.Context, text string) error
}

// TelegramNotifier sends messages via the Telegram bot API, fanning
// out to one or more chat IDs. Sends are one-shot: delivery is
// best-effort, so there is no retry layer here.
type TelegramNotifier struct {
	base    string
	chatIDs []string
	http    *http.Client
	logger  *slog.Logger
}

// NewTelegramNotifier creates a notifier for the given bot token and
// destination chat IDs.
func NewTelegramNotifier(botToken string, chatIDs []string, logger *slog.Logger) *TelegramNotifier {
	return &TelegramNotifier{
		base:    "https://api.telegram.org/bot" + botToken,
		chatIDs: chatIDs,
		http:    &http.Client{Timeout: 30 * time.Second},
		logger:  logger,
	}
}

// SetBaseURL overrides the API base (used in tests).
func (n *TelegramNotifier) SetBaseURL(base string) {
	n.base = base
}

// SendText sends a plain text message to every configured chat.
func (n *TelegramNotifier) SendText(ctx context.Context, text string) error {
	var errs []error
	for _, chatID := range n.chatIDs {
		form := url.Values{
			"chat_id":                  {chatID},
			"text":                     {text},
			"disable_web_page_preview": {"true"},
		}
		if err := n.post(ctx, "sendMessage", form); err != nil {
			errs = append(errs, fmt.Errorf("chat %s: %w", chatID, err))
		}
	}
	return errors.Join(errs...)
}

// SendMedia sends a captioned media message to every configured chat.
// Local file paths are uploaded via multipart; anything else is passed
// through as a URL for Telegram to fetch.
func (n *TelegramNotifier) SendMedia(ctx context.Context, mediaRef, caption string, kind MediaKind) error {
	if mediaRef == "" {
		return n.SendText(ctx, caption)
	}

	endpoint, field := mediaEndpoint(kind)

	isLocal := false
	if info, err := os.Stat(mediaRef); err == nil && !info.IsDir() {
		isLocal = true
	}

	var errs []error
	for _, chatID := range n.chatIDs {
		var err error
		if isLocal {
			err = n.upload(ctx, endpoint, field, chatID, mediaRef, caption)
		} else {
			form := url.Values{
				"chat_id": {chatID},
				field:     {mediaRef},
				"caption": {caption},
			}
			err = n.post(ctx, endpoint, form)
		}
		if err != nil {
			errs = append(errs, fmt.Errorf("chat %s: %w", chatID, err))
		}
	}
	return errors.Join(errs...)
}

func mediaEndpoint(kind MediaKind) (endpoint, field string) {
	switch kind {
	case MediaAnimation:
		return "sendAnimation", "animation"
	case MediaVideo:
		return "sendVideo", "video"
	default:
		return "sendPhoto", "photo"
	}
}

func (n *TelegramNotifier) post(ctx context.Context, endpoint string, form url.Values) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.base+"/"+endpoint, bytes.NewBufferString(form.Encode()))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	return n.do(req)
}

// upload sends a local media file as a multipart form.
func (n *TelegramNotifier) upload(ctx context.Context, endpoint, field, chatID, path, caption string) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("failed to open media file: %w", err)
	}
	defer f.Close()

	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	if err := w.WriteField("chat_id", chatID); err != nil {
		return err
	}
	if caption != "" {
		if err := w.WriteField("caption", caption); err != nil {
			return err
		}
	}
	part, err := w.CreateFormFile(field, filepath.Base(path))
	if err != nil {
		return err
	}
	if _, err := io.Copy(part, f); err != nil {
		return err
	}
	if err := w.Close(); err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.base+"/"+endpoint, &buf)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", w.FormDataContentType())
	return n.do(req)
}

func (n *TelegramNotifier) do(req *http.Request) error {
	resp, err := n.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("telegram API returned status %d: %s", resp.StatusCode, string(body))
	}
	return nil
}
