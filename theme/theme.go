// Package theme is the light/dark switch of the admin panel.
package theme

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"net/url"
	"sync"
	"time"
)

const (
	Light = "light"
	Dark  = "dark"

	CookieName = "admin_theme"
	CookieTTL  = 365 * 24 * time.Hour
)

var ErrUnknownTheme = errors.New("theme: unknown theme")

// Preferences mirrors the choice to the server.
type Preferences interface {
	SavePreferences(ctx context.Context, theme string) error
}

// Toggle holds the current theme. Subscriptions belong to the toggle and are
// dropped by Close.
type Toggle struct {
	mu      sync.Mutex
	current string
	jar     http.CookieJar
	site    *url.URL
	prefs   Preferences
	subs    map[int]func(string)
	nextID  int
	closed  bool
}

// NewToggle starts from the admin_theme cookie stored for site, or Light.
func NewToggle(jar http.CookieJar, site *url.URL, prefs Preferences) *Toggle {
	t := &Toggle{
		current: Light,
		jar:     jar,
		site:    site,
		prefs:   prefs,
		subs:    make(map[int]func(string)),
	}
	if jar != nil && site != nil {
		for _, c := range jar.Cookies(site) {
			if c.Name == CookieName && valid(c.Value) {
				t.current = c.Value
			}
		}
	}
	return t
}

func valid(theme string) bool {
	return theme == Light || theme == Dark
}

func (t *Toggle) Current() string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.current
}

// Set stores theme in the cookie jar and notifies subscribers. The server
// copy is best effort: a failure there is logged, not returned.
func (t *Toggle) Set(ctx context.Context, theme string) error {
	if !valid(theme) {
		return fmt.Errorf("%w: %q", ErrUnknownTheme, theme)
	}

	t.mu.Lock()
	t.current = theme
	if t.jar != nil && t.site != nil {
		t.jar.SetCookies(t.site, []*http.Cookie{{
			Name:    CookieName,
			Value:   theme,
			Path:    "/",
			Expires: time.Now().Add(CookieTTL),
			MaxAge:  int(CookieTTL / time.Second),
		}})
	}
	fns := t.listenersLocked()
	t.mu.Unlock()

	for _, fn := range fns {
		fn(theme)
	}

	if t.prefs != nil {
		if err := t.prefs.SavePreferences(ctx, theme); err != nil {
			log.Printf("theme: saving preference failed: %v", err)
		}
	}
	return nil
}

// Flip switches between light and dark and returns the new theme.
func (t *Toggle) Flip(ctx context.Context) string {
	next := Dark
	if t.Current() == Dark {
		next = Light
	}
	_ = t.Set(ctx, next)
	return next
}

func (t *Toggle) Subscribe(fn func(theme string)) func() {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.closed {
		return func() {}
	}
	id := t.nextID
	t.nextID++
	t.subs[id] = fn
	return func() {
		t.mu.Lock()
		delete(t.subs, id)
		t.mu.Unlock()
	}
}

// Close removes every subscription.
func (t *Toggle) Close() {
	t.mu.Lock()
	t.closed = true
	t.subs = make(map[int]func(string))
	t.mu.Unlock()
}

func (t *Toggle) listenersLocked() []func(string) {
	fns := make([]func(string), 0, len(t.subs))
	for _, fn := range t.subs {
		fns = append(fns, fn)
	}
	return fns
}
