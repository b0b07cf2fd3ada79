// Package browser drives a headless Chromium session through Playwright
// and hands rendered marketplace pages back as HTML.
package browser

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/playwright-community/playwright-go"
)

const (
	navigationTimeoutMs = 60000
	// Marketplace renders listings client-side well after DOMContentLoaded.
	renderWaitMs = 4000
)

// closeDialogSelector matches the login prompt Marketplace shows to
// anonymous visitors. The prompt overlays the listing content, so it has
// to go before the page is worth scraping.
const closeDialogSelector = `div[aria-label="Close"][role="button"]`

// seeMoreSelector expands a truncated listing description.
const seeMoreSelector = `span:has-text("See more")`

// Session owns one Playwright-driven Chromium instance. All page
// navigation is serialized: Marketplace sessions do not tolerate
// concurrent tabs well, and the callers have no need for parallelism.
type Session struct {
	log      *slog.Logger
	headless bool

	mu      sync.Mutex
	pw      *playwright.Playwright
	browser playwright.Browser
	page    playwright.Page
}

func NewSession(headless bool, log *slog.Logger) *Session {
	return &Session{log: log, headless: headless}
}

// Start launches Chromium and opens the single page the session reuses
// for every navigation.
func (s *Session) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.page != nil {
		return nil
	}

	pw, err := playwright.Run()
	if err != nil {
		return fmt.Errorf("failed to start playwright: %w", err)
	}

	browser, err := pw.Chromium.Launch(playwright.BrowserTypeLaunchOptions{
		Headless: playwright.Bool(s.headless),
		Args: []string{
			"--disable-blink-features=AutomationControlled",
			"--disable-dev-shm-usage",
			"--no-sandbox",
		},
	})
	if err != nil {
		pw.Stop()
		return fmt.Errorf("failed to launch browser: %w", err)
	}

	page, err := browser.NewPage()
	if err != nil {
		browser.Close()
		pw.Stop()
		return fmt.Errorf("failed to open page: %w", err)
	}

	s.pw = pw
	s.browser = browser
	s.page = page
	return nil
}

// Stop tears the whole session down. Safe to call more than once.
func (s *Session) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.page != nil {
		s.page.Close()
		s.page = nil
	}
	if s.browser != nil {
		s.browser.Close()
		s.browser = nil
	}
	if s.pw != nil {
		s.pw.Stop()
		s.pw = nil
	}
}

// SearchPage navigates to a marketplace search URL and returns the
// rendered HTML.
func (s *Session) SearchPage(ctx context.Context, url string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.navigate(ctx, url); err != nil {
		return "", err
	}
	s.dismissLoginDialog()

	content, err := s.page.Content()
	if err != nil {
		return "", fmt.Errorf("failed to read search page: %w", err)
	}
	return content, nil
}

// ListingPage navigates to a listing detail URL, dismisses the login
// prompt, expands the description, and returns the rendered HTML.
func (s *Session) ListingPage(ctx context.Context, url string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.navigate(ctx, url); err != nil {
		return "", err
	}
	s.dismissLoginDialog()
	s.expandDescription()

	content, err := s.page.Content()
	if err != nil {
		return "", fmt.Errorf("failed to read listing page: %w", err)
	}
	return content, nil
}

func (s *Session) navigate(ctx context.Context, url string) error {
	if s.page == nil {
		return fmt.Errorf("browser session not started")
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	if _, err := s.page.Goto(url, playwright.PageGotoOptions{
		Timeout:   playwright.Float(navigationTimeoutMs),
		WaitUntil: playwright.WaitUntilStateDomcontentloaded,
	}); err != nil {
		return fmt.Errorf("failed to open %s: %w", url, err)
	}
	s.page.WaitForTimeout(renderWaitMs)
	return nil
}

// dismissLoginDialog closes the anonymous-visitor login prompt when it is
// present. Its absence is the normal case, not an error.
func (s *Session) dismissLoginDialog() {
	btn := s.page.Locator(closeDialogSelector).First()
	if visible, _ := btn.IsVisible(); !visible {
		return
	}
	if err := btn.Click(); err != nil {
		s.log.Debug("failed to dismiss login dialog", "error", err)
		return
	}
	s.page.WaitForTimeout(500)
}

// expandDescription clicks the "See more" toggle so the full description
// text lands in the DOM. Short descriptions have no toggle.
func (s *Session) expandDescription() {
	toggle := s.page.Locator(seeMoreSelector).First()
	if visible, _ := toggle.IsVisible(); !visible {
		return
	}
	if err := toggle.Click(); err != nil {
		s.log.Debug("failed to expand description", "error", err)
		return
	}
	s.page.WaitForTimeout(500)
}
