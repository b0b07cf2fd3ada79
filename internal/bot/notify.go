package bot

import (
	"context"
	"fmt"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"dealwatch/internal/model"
)

// SendProduct delivers a kept listing to its search's channel, with the
// listing photo attached when Marketplace provided one.
func (b *Bot) SendProduct(_ context.Context, channelID int64, p model.Product, distance float64, duration, trace string) error {
	text := FormatProduct(p, distance, duration, trace)

	if p.Img != "" {
		photo := tgbotapi.NewPhoto(channelID, tgbotapi.FileURL(p.Img))
		photo.Caption = truncateText(text, 1024)
		if _, err := b.api.Send(photo); err == nil {
			return nil
		}
		// Photo delivery can fail on expired CDN links; fall through to text.
	}

	msg := tgbotapi.NewMessage(channelID, text)
	if _, err := b.api.Send(msg); err != nil {
		return fmt.Errorf("send product to %d: %w", channelID, err)
	}
	return nil
}

// SendRunSummary delivers a search run's listing log to the feed channel.
func (b *Bot) SendRunSummary(_ context.Context, channelID int64, searchID string, entries []model.ListingLog) error {
	msg := tgbotapi.NewMessage(channelID, FormatRunSummary(searchID, entries))
	msg.DisableWebPagePreview = true
	if _, err := b.api.Send(msg); err != nil {
		return fmt.Errorf("send run summary to %d: %w", channelID, err)
	}
	return nil
}
