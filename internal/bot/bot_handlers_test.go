package bot

import (
	"context"
	"io"
	"log/slog"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/google/go-cmp/cmp"

	"dealwatch/internal/cache"
	"dealwatch/internal/config"
	"dealwatch/internal/model"
	"dealwatch/internal/storage"
)

// --- mocks ---

type sentMsg struct {
	ChatID int64
	Text   string
}

type mockAPI struct {
	mu   sync.Mutex
	sent []sentMsg
}

func (m *mockAPI) Send(c tgbotapi.Chattable) (tgbotapi.Message, error) {
	switch msg := c.(type) {
	case tgbotapi.MessageConfig:
		m.mu.Lock()
		m.sent = append(m.sent, sentMsg{ChatID: msg.ChatID, Text: msg.Text})
		m.mu.Unlock()
	case tgbotapi.PhotoConfig:
		m.mu.Lock()
		m.sent = append(m.sent, sentMsg{ChatID: msg.ChatID, Text: msg.Caption})
		m.mu.Unlock()
	}
	return tgbotapi.Message{}, nil
}

func (m *mockAPI) GetUpdatesChan(_ tgbotapi.UpdateConfig) tgbotapi.UpdatesChannel {
	return make(tgbotapi.UpdatesChannel)
}

func (m *mockAPI) StopReceivingUpdates() {}

func (m *mockAPI) lastText() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.sent) == 0 {
		return ""
	}
	return m.sent[len(m.sent)-1].Text
}

func (m *mockAPI) lastChatID() int64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.sent) == 0 {
		return 0
	}
	return m.sent[len(m.sent)-1].ChatID
}

func (m *mockAPI) reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sent = nil
}

type mockRunner struct {
	mu       sync.Mutex
	running  bool
	cycleRet bool
	calls    int
	done     chan struct{}
}

func (r *mockRunner) RunCycle(_ context.Context) bool {
	r.mu.Lock()
	r.calls++
	ret := r.cycleRet
	r.mu.Unlock()
	if r.done != nil {
		close(r.done)
	}
	return ret
}

func (r *mockRunner) Running() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.running
}

// --- helpers ---

func newTestBot(t *testing.T) (*Bot, *mockAPI, *storage.SQLite) {
	t.Helper()
	store, err := storage.NewSQLite(":memory:")
	if err != nil {
		t.Fatalf("new sqlite: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })

	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	api := &mockAPI{}
	b := &Bot{
		api:   api,
		store: store,
		cache: cache.New(filepath.Join(t.TempDir(), "cache.txt"), log),
		cfg:   &config.Config{DefaultChannel: -1001000},
		log:   log,
	}
	return b, api, store
}

func seedSearch(t *testing.T, store *storage.SQLite, id string, terms ...string) {
	t.Helper()
	s := &model.SearchConfig{
		ID: id, Terms: terms, Channel: -1001000,
		CityCode: model.DefaultCityCode, City: model.DefaultCity,
		DaysListed: 1, Radius: 30,
	}
	if err := store.AddSearch(context.Background(), s); err != nil {
		t.Fatalf("seed search: %v", err)
	}
}

func requireContains(t *testing.T, got, want string) {
	t.Helper()
	if !strings.Contains(got, want) {
		t.Errorf("reply missing %q, got:\n%s", want, got)
	}
}

// --- handler tests ---

func TestHandleStart(t *testing.T) {
	b, api, _ := newTestBot(t)
	b.handleStart(100)
	requireContains(t, api.lastText(), "Welcome to Deal Watch Bot")
}

func TestHandleHelp(t *testing.T) {
	b, api, _ := newTestBot(t)
	b.handleHelp(100)
	requireContains(t, api.lastText(), "/watch")
	requireContains(t, api.lastText(), "/feedchannel")
}

func TestHandleWatch(t *testing.T) {
	ctx := context.Background()

	t.Run("empty args", func(t *testing.T) {
		b, api, _ := newTestBot(t)
		b.handleWatch(ctx, 100, "")
		requireContains(t, api.lastText(), "usage: /watch")
	})

	t.Run("invalid channel flag", func(t *testing.T) {
		b, api, _ := newTestBot(t)
		b.handleWatch(ctx, 100, "bike -ch notanumber")
		requireContains(t, api.lastText(), "invalid channel id")
	})

	t.Run("success uses default channel", func(t *testing.T) {
		b, api, store := newTestBot(t)
		b.handleWatch(ctx, 100, "mountain bike -p 300")
		requireContains(t, api.lastText(), `Watching "mountain_bike"`)

		searches, err := store.ListSearches(ctx)
		if err != nil {
			t.Fatalf("list searches: %v", err)
		}
		if len(searches) != 1 {
			t.Fatalf("got %d searches, want 1", len(searches))
		}
		if diff := cmp.Diff(int64(-1001000), searches[0].Channel); diff != "" {
			t.Errorf("channel (-want +got):\n%s", diff)
		}
		if diff := cmp.Diff("300", searches[0].TargetPrice); diff != "" {
			t.Errorf("target price (-want +got):\n%s", diff)
		}
	})

	t.Run("id collision gets suffix", func(t *testing.T) {
		b, api, _ := newTestBot(t)
		b.handleWatch(ctx, 100, "kayak")
		b.handleWatch(ctx, 100, "kayak")
		requireContains(t, api.lastText(), `Watching "kayak_"`)
	})
}

func TestHandleList(t *testing.T) {
	ctx := context.Background()

	t.Run("empty", func(t *testing.T) {
		b, api, _ := newTestBot(t)
		b.handleList(ctx, 100)
		requireContains(t, api.lastText(), "No watched searches yet")
	})

	t.Run("with searches", func(t *testing.T) {
		b, api, store := newTestBot(t)
		seedSearch(t, store, "bike", "mountain bike")
		seedSearch(t, store, "kayak", "kayak")

		b.handleList(ctx, 100)
		reply := api.lastText()
		requireContains(t, reply, "bike — mountain bike")
		requireContains(t, reply, "kayak — kayak")
	})
}

func TestHandleUnwatch(t *testing.T) {
	ctx := context.Background()

	t.Run("bad args", func(t *testing.T) {
		b, api, _ := newTestBot(t)
		b.handleUnwatch(ctx, 100, "")
		requireContains(t, api.lastText(), "Usage: /unwatch")
	})

	t.Run("not found", func(t *testing.T) {
		b, api, _ := newTestBot(t)
		b.handleUnwatch(ctx, 100, "ghost")
		requireContains(t, api.lastText(), `"ghost" not found`)
	})

	t.Run("success", func(t *testing.T) {
		b, api, store := newTestBot(t)
		seedSearch(t, store, "bike", "mountain bike")
		b.handleUnwatch(ctx, 100, "bike")
		requireContains(t, api.lastText(), `"bike" removed`)

		searches, _ := store.ListSearches(ctx)
		if len(searches) != 0 {
			t.Errorf("searches should be empty, got %d", len(searches))
		}
	})
}

func TestHandleClearCache(t *testing.T) {
	b, api, _ := newTestBot(t)
	b.cache.Add("111")
	b.cache.Add("222")

	b.handleClearCache(100)
	requireContains(t, api.lastText(), "cache cleared")
	if b.cache.Len() != 0 {
		t.Errorf("cache size = %d after clear", b.cache.Len())
	}
}

func TestHandleRun(t *testing.T) {
	ctx := context.Background()

	t.Run("no engine wired", func(t *testing.T) {
		b, api, _ := newTestBot(t)
		b.handleRun(ctx, 100)
		requireContains(t, api.lastText(), "not running")
	})

	t.Run("already running", func(t *testing.T) {
		b, api, _ := newTestBot(t)
		b.SetEngine(&mockRunner{running: true})
		b.handleRun(ctx, 100)
		requireContains(t, api.lastText(), "already in progress")
	})

	t.Run("triggers a cycle", func(t *testing.T) {
		b, api, _ := newTestBot(t)
		r := &mockRunner{cycleRet: true, done: make(chan struct{})}
		b.SetEngine(r)

		b.handleRun(ctx, 100)
		requireContains(t, api.lastText(), "Manual run started")
		<-r.done

		r.mu.Lock()
		defer r.mu.Unlock()
		if r.calls != 1 {
			t.Errorf("RunCycle called %d times, want 1", r.calls)
		}
	})

	t.Run("lost race reports in-progress", func(t *testing.T) {
		b, api, _ := newTestBot(t)
		r := &mockRunner{cycleRet: false, done: make(chan struct{})}
		b.SetEngine(r)

		b.handleRun(ctx, 100)
		<-r.done
		// The goroutine replies after the cycle attempt; wait for it.
		for i := 0; i < 100; i++ {
			if strings.Contains(api.lastText(), "already in progress") {
				return
			}
			time.Sleep(time.Millisecond)
		}
		t.Errorf("expected in-progress reply, got %q", api.lastText())
	})
}

func TestHandleFeedChannel(t *testing.T) {
	ctx := context.Background()

	t.Run("show unset", func(t *testing.T) {
		b, api, _ := newTestBot(t)
		b.handleFeedChannel(ctx, 100, "")
		requireContains(t, api.lastText(), "No feed channel configured")
	})

	t.Run("set and show", func(t *testing.T) {
		b, api, store := newTestBot(t)
		b.handleFeedChannel(ctx, 100, "-1009876")
		requireContains(t, api.lastText(), "Feed channel set to -1009876")

		got, err := store.GetFeedChannel(ctx)
		if err != nil {
			t.Fatalf("get feed channel: %v", err)
		}
		if diff := cmp.Diff(int64(-1009876), got); diff != "" {
			t.Errorf("feed channel (-want +got):\n%s", diff)
		}

		b.handleFeedChannel(ctx, 100, "")
		requireContains(t, api.lastText(), "Feed channel: -1009876")
	})

	t.Run("off clears", func(t *testing.T) {
		b, api, store := newTestBot(t)
		b.handleFeedChannel(ctx, 100, "-1009876")
		b.handleFeedChannel(ctx, 100, "off")
		requireContains(t, api.lastText(), "disabled")

		got, _ := store.GetFeedChannel(ctx)
		if got != 0 {
			t.Errorf("feed channel = %d after off", got)
		}
	})

	t.Run("garbage", func(t *testing.T) {
		b, api, _ := newTestBot(t)
		b.handleFeedChannel(ctx, 100, "maybe")
		requireContains(t, api.lastText(), "invalid channel id")
	})
}

func TestSendProduct(t *testing.T) {
	ctx := context.Background()
	p := model.Product{
		Title:    "Trek Marlin 7",
		Price:    450,
		Location: "Hershey, PA",
		Date:     "Listed yesterday",
		URL:      "https://facebook.com/marketplace/item/123/",
		Img:      "https://cdn.example.com/123.jpg",
	}

	b, api, _ := newTestBot(t)
	if err := b.SendProduct(ctx, -1001000, p, 14, "25 mins", "Good deal."); err != nil {
		t.Fatalf("SendProduct() error: %v", err)
	}
	if diff := cmp.Diff(int64(-1001000), api.lastChatID()); diff != "" {
		t.Errorf("chat id (-want +got):\n%s", diff)
	}
	requireContains(t, api.lastText(), "Trek Marlin 7")
}

func TestSendRunSummary(t *testing.T) {
	b, api, _ := newTestBot(t)
	entries := []model.ListingLog{
		{Title: "A", Outcome: model.OutcomeSkipped, Reason: "Cache hit"},
	}
	if err := b.SendRunSummary(context.Background(), -1002000, "bike", entries); err != nil {
		t.Fatalf("SendRunSummary() error: %v", err)
	}
	requireContains(t, api.lastText(), "Run finished: bike")
	requireContains(t, api.lastText(), "1 cache hit(s)")
}

func TestHandleCommand(t *testing.T) {
	ctx := context.Background()

	makeMsg := func(cmd, args string) *tgbotapi.Message {
		text := "/" + cmd
		if args != "" {
			text += " " + args
		}
		return &tgbotapi.Message{
			Chat: &tgbotapi.Chat{ID: 100},
			Text: text,
			Entities: []tgbotapi.MessageEntity{
				{Type: "bot_command", Offset: 0, Length: len("/" + cmd)},
			},
		}
	}

	t.Run("dispatches known commands", func(t *testing.T) {
		b, api, _ := newTestBot(t)

		cmds := []struct {
			cmd      string
			contains string
		}{
			{"start", "Welcome"},
			{"help", "/watch"},
			{"list", "No watched searches"},
			{"unknown_cmd", "Unknown command"},
		}

		for _, tc := range cmds {
			api.reset()
			b.handleCommand(ctx, makeMsg(tc.cmd, ""))
			requireContains(t, api.lastText(), tc.contains)
		}
	})

	t.Run("dispatches watch", func(t *testing.T) {
		b, api, _ := newTestBot(t)
		b.handleCommand(ctx, makeMsg("watch", "mountain bike"))
		requireContains(t, api.lastText(), `Watching "mountain_bike"`)
	})
}
