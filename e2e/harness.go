// Package e2e runs the whole application behind an httptest server and
// drives it the way the admin UI does: through apiclient and the form
// islands mounted from an HTML document.
package e2e

import (
	"context"
	"encoding/json"
	"fmt"
	"html"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"

	"captain/apiclient"
	"captain/common"
	"captain/config"
	"captain/database"
	"captain/forms"
	"captain/inity"
	"captain/server"
)

const (
	OwnerEmail    = "owner@example.com"
	OwnerPassword = "correct-horse"
)

type Harness struct {
	Server   *httptest.Server
	Config   config.Config
	Client   *apiclient.Client
	Registry *inity.Registry
}

// Start serves a fresh application backed by temporary storage. The server
// is closed when t finishes.
func Start(t testing.TB) *Harness {
	t.Helper()
	gin.SetMode(gin.TestMode)

	dir := t.TempDir()
	cfg := config.Config{
		DatabaseFile:  filepath.Join(dir, "captain.db"),
		SessionSecret: "e2e-secret",
		SiteTimezone:  "UTC",
		CacheDir:      filepath.Join(dir, "cache"),
		CacheTTL:      time.Minute,
		MediaDir:      filepath.Join(dir, "media"),
		LoginRate:     100,
		LoginBurst:    100,
	}

	db, err := common.ConnectDb(cfg.DatabaseFile)
	require.NoError(t, err)
	require.NoError(t, database.RunMigrations(db))

	srv := httptest.NewServer(server.New(db, cfg))
	t.Cleanup(srv.Close)

	client := NewClient(t, srv.URL)

	reg := inity.NewRegistry()
	static := inity.Props{
		forms.PropOnSubmit:  forms.APISubmitter(client),
		forms.PropTagSource: client,
	}
	require.NoError(t, reg.Register(forms.PostsComponent, forms.PostComponent{}, static))
	require.NoError(t, reg.Register(forms.PagesComponent, forms.PageComponent{}, static))

	return &Harness{Server: srv, Config: cfg, Client: client, Registry: reg}
}

// NewClient returns a client with its own cookie jar, e.g. an anonymous
// visitor next to the logged-in owner.
func NewClient(t testing.TB, baseURL string) *apiclient.Client {
	t.Helper()
	client, err := apiclient.New(baseURL)
	require.NoError(t, err)
	return client
}

// SetupOwner runs first-time setup, which also logs the client in.
func (h *Harness) SetupOwner(t testing.TB) {
	t.Helper()
	_, err := h.Client.Setup(context.Background(), apiclient.SetupRequest{
		FirstName: "Olive",
		LastName:  "Owner",
		Email:     OwnerEmail,
		Password:  OwnerPassword,
	})
	require.NoError(t, err)
}

// Anchor is one island placeholder in an admin page.
type Anchor struct {
	Name  string
	Props any
}

// Document renders the admin page markup hosting anchors.
func Document(t testing.TB, anchors ...Anchor) string {
	t.Helper()
	var b strings.Builder
	b.WriteString("<!doctype html><html><body>\n")
	for i, a := range anchors {
		fmt.Fprintf(&b, `<div id="island-%d" x-inity="%s"`, i, html.EscapeString(a.Name))
		if a.Props != nil {
			blob, err := json.Marshal(a.Props)
			require.NoError(t, err)
			fmt.Fprintf(&b, ` x-props="%s"`, html.EscapeString(string(blob)))
		}
		b.WriteString("></div>\n")
	}
	b.WriteString("</body></html>")
	return b.String()
}

// Mount attaches the registry to doc and detaches everything when t ends.
func (h *Harness) Mount(t testing.TB, doc string) []*inity.Mounted {
	t.Helper()
	mounted, err := h.Registry.Attach(strings.NewReader(doc))
	require.NoError(t, err)
	t.Cleanup(func() { inity.Detach(mounted) })
	return mounted
}

// PostForm mounts a single post island, in edit mode when post is non-nil,
// and waits for its tag suggestions to load.
func (h *Harness) PostForm(t testing.TB, post *apiclient.Post) *forms.PostForm {
	t.Helper()
	props := map[string]any{forms.PropTimezone: h.Config.SiteTimezone}
	if post != nil {
		props[forms.PropPost] = post
	}
	mounted := h.Mount(t, Document(t, Anchor{Name: forms.PostsComponent, Props: props}))
	require.Len(t, mounted, 1)

	f, ok := mounted[0].Island.(*forms.PostForm)
	require.True(t, ok)
	select {
	case <-f.TagsLoaded():
	case <-time.After(5 * time.Second):
		t.Fatal("tag suggestions never loaded")
	}
	return f
}

// PageForm mounts a single page island, in edit mode when page is non-nil.
func (h *Harness) PageForm(t testing.TB, page *apiclient.Page) *forms.PageForm {
	t.Helper()
	var props any
	if page != nil {
		props = map[string]any{forms.PropPage: page}
	}
	mounted := h.Mount(t, Document(t, Anchor{Name: forms.PagesComponent, Props: props}))
	require.Len(t, mounted, 1)

	f, ok := mounted[0].Island.(*forms.PageForm)
	require.True(t, ok)
	return f
}
