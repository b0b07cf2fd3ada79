package bot

import (
	"context"
	"fmt"
	"strings"
)

func (b *Bot) handleStart(chatID int64) {
	b.reply(chatID, `Welcome to Deal Watch Bot!

Watch Facebook Marketplace searches and get notified about good deals.

Quick start:
1. /watch <terms,...> — watch a search
2. /list — show watched searches
3. /run — check everything right now

Use /help for the full command reference.`)
}

func (b *Bot) handleHelp(chatID int64) {
	b.reply(chatID, `Search management:
/watch <terms,...> [flags] — watch a new search
   -p <price> — max price
   -r <miles> — search radius (default 30)
   -d <days> — max listing age (default 1)
   -ch <id> — notification channel override
   -ctx <text> — extra context for the quality check
/list — show watched searches
/unwatch <id> — stop watching a search

Operations:
/run — trigger a check cycle now
/clearcache — forget all seen listings
/feedchannel <id|off> — set the run log channel`)
}

func (b *Bot) handleWatch(ctx context.Context, chatID int64, args string) {
	search, err := ParseWatchArgs(args)
	if err != nil {
		b.reply(chatID, err.Error())
		return
	}
	if search.Channel == 0 {
		search.Channel = b.cfg.DefaultChannel
	}

	if err := b.store.AddSearch(ctx, &search); err != nil {
		b.reply(chatID, fmt.Sprintf("Failed to save search: %v", err))
		return
	}

	b.reply(chatID, fmt.Sprintf("Watching %q: %s\nRadius %d mi, last %d day(s).",
		search.ID, strings.Join(search.Terms, ", "), search.Radius, search.DaysListed))
}

func (b *Bot) handleList(ctx context.Context, chatID int64) {
	searches, err := b.store.ListSearches(ctx)
	if err != nil {
		b.reply(chatID, fmt.Sprintf("Error: %v", err))
		return
	}
	b.reply(chatID, FormatSearchList(searches))
}

func (b *Bot) handleUnwatch(ctx context.Context, chatID int64, args string) {
	id, err := ParseIDArg(args)
	if err != nil {
		b.reply(chatID, "Usage: /unwatch <id>")
		return
	}

	removed, err := b.store.RemoveSearch(ctx, id)
	if err != nil {
		b.reply(chatID, fmt.Sprintf("Error removing search: %v", err))
		return
	}
	if !removed {
		b.reply(chatID, fmt.Sprintf("Search %q not found.", id))
		return
	}
	b.reply(chatID, fmt.Sprintf("Search %q removed.", id))
}

func (b *Bot) handleClearCache(chatID int64) {
	if err := b.cache.Clear(); err != nil {
		b.reply(chatID, fmt.Sprintf("Error clearing cache: %v", err))
		return
	}
	b.reply(chatID, "Listing cache cleared.")
}

func (b *Bot) handleRun(ctx context.Context, chatID int64) {
	if b.engine == nil {
		b.reply(chatID, "Search engine is not running.")
		return
	}
	if b.engine.Running() {
		b.reply(chatID, "A run is already in progress.")
		return
	}

	b.reply(chatID, "Manual run started.")
	go func() {
		if !b.engine.RunCycle(ctx) {
			b.reply(chatID, "A run is already in progress.")
		}
	}()
}

func (b *Bot) handleFeedChannel(ctx context.Context, chatID int64, args string) {
	channelID, ok, err := ParseFeedChannelArg(args)
	if err != nil {
		b.reply(chatID, err.Error())
		return
	}

	if !ok {
		current, err := b.store.GetFeedChannel(ctx)
		if err != nil {
			b.reply(chatID, fmt.Sprintf("Error: %v", err))
			return
		}
		if current == 0 {
			b.reply(chatID, "No feed channel configured. Use /feedchannel <id> to set one.")
			return
		}
		b.reply(chatID, fmt.Sprintf("Feed channel: %d", current))
		return
	}

	if err := b.store.SetFeedChannel(ctx, channelID); err != nil {
		b.reply(chatID, fmt.Sprintf("Error: %v", err))
		return
	}
	if channelID == 0 {
		b.reply(chatID, "Feed channel disabled.")
		return
	}
	b.reply(chatID, fmt.Sprintf("Feed channel set to %d.", channelID))
}
