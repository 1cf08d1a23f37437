package main

import (
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/brojonat/solwatch/service/notify"
	"github.com/urfave/cli/v2"
)

func testNotifyCommand() *cli.Command {
	return &cli.Command{
		Name:  "test",
		Usage: "Send a test notification to the configured Telegram chats",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "message",
				Usage: "Message text to send",
				Value: "solwatch test notification",
			},
			&cli.StringFlag{
				Name:  "media",
				Usage: "Optional media URL or local file path to attach",
			},
			&cli.StringFlag{
				Name:  "media-kind",
				Usage: "Media kind: photo, animation, or video",
				Value: "photo",
			},
		},
		Action: func(c *cli.Context) error {
			token := os.Getenv("TELEGRAM_BOT_TOKEN")
			if token == "" {
				return fmt.Errorf("TELEGRAM_BOT_TOKEN is required")
			}
			chatIDs := splitChatIDs(os.Getenv("TELEGRAM_CHAT_IDS"))
			if len(chatIDs) == 0 {
				chatIDs = splitChatIDs(os.Getenv("TELEGRAM_CHAT_ID"))
			}
			if len(chatIDs) == 0 {
				return fmt.Errorf("TELEGRAM_CHAT_IDS or TELEGRAM_CHAT_ID is required")
			}

			var kind notify.MediaKind
			switch c.String("media-kind") {
			case "photo":
				kind = notify.MediaPhoto
			case "animation":
				kind = notify.MediaAnimation
			case "video":
				kind = notify.MediaVideo
			default:
				return fmt.Errorf("unknown media kind %q", c.String("media-kind"))
			}

			logger := slog.New(slog.NewTextHandler(os.Stderr, nil))
			notifier := notify.NewTelegramNotifier(token, chatIDs, logger)

			if err := notifier.SendMedia(c.Context, c.String("media"), c.String("message"), kind); err != nil {
				return fmt.Errorf("notification failed: %w", err)
			}
			fmt.Printf("sent to %d chat(s)\n", len(chatIDs))
			return nil
		},
	}
}

func splitChatIDs(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
