package e2e

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"captain/apiclient"
	"captain/forms"
	"captain/inity"
	"captain/slug"
	"captain/theme"
	"captain/validation"
	"captain/visibility"
)

func TestSetupAndLogin(t *testing.T) {
	h := Start(t)
	ctx := context.Background()

	_, err := h.Client.Setup(ctx, apiclient.SetupRequest{
		FirstName: "Olive", LastName: "Owner", Email: OwnerEmail, Password: "short",
	})
	require.Error(t, err)
	assert.Equal(t, http.StatusBadRequest, apiclient.StatusOf(err))
	assert.Contains(t, err.Error(), "password must be at least 8 characters")

	h.SetupOwner(t)

	_, err = h.Client.Setup(ctx, apiclient.SetupRequest{
		FirstName: "Eve", LastName: "Late", Email: "eve@example.com", Password: "password123",
	})
	assert.Equal(t, http.StatusForbidden, apiclient.StatusOf(err))

	require.NoError(t, h.Client.Logout(ctx))
	_, err = h.Client.Tags(ctx)
	assert.Equal(t, http.StatusUnauthorized, apiclient.StatusOf(err))

	_, err = h.Client.Login(ctx, OwnerEmail, "wrong password")
	assert.Equal(t, http.StatusUnauthorized, apiclient.StatusOf(err))
	assert.EqualError(t, err, "Invalid email or password")

	res, err := h.Client.Login(ctx, "Owner@Example.com", OwnerPassword)
	require.NoError(t, err)
	assert.Equal(t, "/admin", res.Redirect)

	_, err = h.Client.Tags(ctx)
	assert.NoError(t, err)
}

func TestPost_CreateThenEdit(t *testing.T) {
	h := Start(t)
	h.SetupOwner(t)
	ctx := context.Background()
	visitor := NewClient(t, h.Server.URL)

	f := h.PostForm(t, nil)
	assert.False(t, f.Editing())
	st := f.SetTitle("Hello World")
	assert.Equal(t, "hello-world", st.Value)
	f.SetContent("Some **bold** words")
	f.SetExcerpt("Greeting")
	f.Tags().Commit("Go")
	f.Tags().Commit("Web")

	status, err := f.Submit(ctx)
	require.NoError(t, err)
	require.Equal(t, inity.Saved, status.State, status.Message)
	assert.Equal(t, "/admin/posts", status.Redirect)

	post, err := visitor.PublicPost(ctx, "hello-world")
	require.NoError(t, err)
	assert.Contains(t, post.HTML, "<strong>bold</strong>")
	assert.ElementsMatch(t, []string{"Go", "Web"}, post.Tags)

	tagged, err := visitor.PublicTagPosts(ctx, "go")
	require.NoError(t, err)
	assert.Equal(t, "Go", tagged.Tag.Name)
	require.Len(t, tagged.Posts, 1)

	names, err := h.Client.ExistingTags(ctx)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"Go", "Web"}, names)

	stored, err := h.Client.Post(ctx, post.ID)
	require.NoError(t, err)

	edit := h.PostForm(t, &stored)
	assert.True(t, edit.Editing())
	// a stored timestamp always loads as scheduled
	assert.Equal(t, visibility.ModeScheduled, edit.PublishMode())
	assert.Equal(t, []string{"Web"}, edit.Tags().OnInput("we"))

	st = edit.SetTitle("Hello again")
	assert.Equal(t, "hello-world", st.Value)
	st = edit.SetSlug("hello-again")
	assert.Equal(t, slug.MessageLinks, st.Warning)
	edit.Tags().Remove("Web")

	status, err = edit.Submit(ctx)
	require.NoError(t, err)
	require.Equal(t, inity.Saved, status.State, status.Message)

	_, err = visitor.PublicPost(ctx, "hello-world")
	assert.Equal(t, http.StatusNotFound, apiclient.StatusOf(err))

	renamed, err := visitor.PublicPost(ctx, "hello-again")
	require.NoError(t, err)
	assert.Equal(t, "Hello again", renamed.Title)
	assert.Equal(t, []string{"Go"}, renamed.Tags)
	assert.WithinDuration(t, stored.PublishedAt, renamed.PublishedAt, time.Minute)
}

func TestPost_SlugWarningOnEdit(t *testing.T) {
	h := Start(t)
	h.SetupOwner(t)
	ctx := context.Background()

	f := h.PostForm(t, nil)
	assert.Equal(t, "test-post", f.SetTitle("Test Post").Value)
	f.SetContent("body")
	status, err := f.Submit(ctx)
	require.NoError(t, err)
	require.Equal(t, inity.Saved, status.State, status.Message)

	post, err := h.Client.PublicPost(ctx, "test-post")
	require.NoError(t, err)
	stored, err := h.Client.Post(ctx, post.ID)
	require.NoError(t, err)

	edit := h.PostForm(t, &stored)
	assert.Equal(t, slug.MessageLinks, edit.SetSlug("test-post-2").Warning)
	assert.Empty(t, edit.SetSlug("test-post").Warning)
}

func TestPost_DuplicateSlugEndsInError(t *testing.T) {
	h := Start(t)
	h.SetupOwner(t)
	ctx := context.Background()

	for i, want := range []inity.SaveState{inity.Saved, inity.Error} {
		f := h.PostForm(t, nil)
		f.SetTitle("Same")
		f.SetContent("body")
		status, err := f.Submit(ctx)
		require.NoError(t, err)
		assert.Equal(t, want, status.State, "submission %d", i)
		if want == inity.Error {
			assert.Equal(t, "A post with the same slug already exists", status.Message)
			assert.Equal(t, "form-error", f.ScrollTarget())
		}
	}
}

func TestPost_ScheduledAndDraftVisibility(t *testing.T) {
	h := Start(t)
	h.SetupOwner(t)
	ctx := context.Background()
	visitor := NewClient(t, h.Server.URL)

	scheduled := h.PostForm(t, nil)
	scheduled.SetTitle("Future")
	scheduled.SetContent("later")
	scheduled.SetPublishMode(visibility.ModeScheduled)
	scheduled.SetPublishedAt("2099-01-01T10:00")
	status, err := scheduled.Submit(ctx)
	require.NoError(t, err)
	require.Equal(t, inity.Saved, status.State, status.Message)

	draft := h.PostForm(t, nil)
	draft.SetTitle("Draft")
	draft.SetContent("wip")
	draft.SetVisible(false)
	status, err = draft.Submit(ctx)
	require.NoError(t, err)
	require.Equal(t, inity.Saved, status.State, status.Message)

	list, err := visitor.PublicPosts(ctx, 1)
	require.NoError(t, err)
	assert.Empty(t, list.Posts)
	for _, s := range []string{"future", "draft"} {
		_, err = visitor.PublicPost(ctx, s)
		assert.Equal(t, http.StatusNotFound, apiclient.StatusOf(err), s)
	}

	list, err = h.Client.PublicPosts(ctx, 1)
	require.NoError(t, err)
	states := map[string]string{}
	for _, p := range list.Posts {
		states[p.Slug] = p.State
	}
	assert.Equal(t, map[string]string{"future": "scheduled", "draft": "draft"}, states)

	future, err := h.Client.PublicPost(ctx, "future")
	require.NoError(t, err)
	assert.Equal(t, time.Date(2099, 1, 1, 10, 0, 0, 0, time.UTC), future.PublishedAt.UTC())

	stored, err := h.Client.Post(ctx, future.ID)
	require.NoError(t, err)
	edit := h.PostForm(t, &stored)
	assert.Equal(t, visibility.ModeScheduled, edit.PublishMode())
	assert.Equal(t, "2099-01-01T10:00", edit.PublishedAt())
}

func TestPost_ScheduledWithoutTimestampIsNotSent(t *testing.T) {
	h := Start(t)
	h.SetupOwner(t)
	ctx := context.Background()

	f := h.PostForm(t, nil)
	f.SetTitle("Nowhere")
	f.SetContent("body")
	f.SetPublishMode(visibility.ModeScheduled)

	status, err := f.Submit(ctx)
	var fe validation.FieldErrors
	require.ErrorAs(t, err, &fe)
	assert.Contains(t, fe, "publishedAt")
	assert.Equal(t, inity.Idle, status.State)
	assert.Equal(t, "field-publishedAt", f.ScrollTarget())

	list, err := h.Client.PublicPosts(ctx, 1)
	require.NoError(t, err)
	assert.Empty(t, list.Posts)
}

func TestPage_CreateEditHide(t *testing.T) {
	h := Start(t)
	h.SetupOwner(t)
	ctx := context.Background()
	visitor := NewClient(t, h.Server.URL)

	f := h.PageForm(t, nil)
	f.SetTitle("About Me")
	f.SetContent("I *write* things.")
	f.SetVisible(true)
	status, err := f.Submit(ctx)
	require.NoError(t, err)
	require.Equal(t, inity.Saved, status.State, status.Message)

	page, err := visitor.PublicPage(ctx, "about-me")
	require.NoError(t, err)
	assert.Contains(t, page.HTML, "<em>write</em>")

	stored, err := h.Client.Page(ctx, page.ID)
	require.NoError(t, err)
	edit := h.PageForm(t, &stored)
	assert.True(t, edit.Editing())
	edit.SetVisible(false)
	status, err = edit.Submit(ctx)
	require.NoError(t, err)
	require.Equal(t, inity.Saved, status.State, status.Message)

	_, err = visitor.PublicPage(ctx, "about-me")
	assert.Equal(t, http.StatusNotFound, apiclient.StatusOf(err))
	_, err = h.Client.PublicPage(ctx, "about-me")
	assert.NoError(t, err)
}

func TestMenu_CreateAndReorder(t *testing.T) {
	h := Start(t)
	h.SetupOwner(t)
	ctx := context.Background()

	res, err := h.Client.SavePage(ctx, 0, apiclient.PageRequest{Title: "About", Slug: "about", Content: "x", Visible: true})
	require.NoError(t, err)
	pageID := res.ID
	require.NotZero(t, pageID)

	_, err = forms.MenuItemForm{Label: "Broken"}.Submit(ctx, h.Client)
	var fe validation.FieldErrors
	require.ErrorAs(t, err, &fe)
	assert.Contains(t, fe, "url")

	_, err = forms.MenuItemForm{Label: "Home", URL: "/"}.Submit(ctx, h.Client)
	require.NoError(t, err)
	_, err = forms.MenuItemForm{Label: "About", PageID: &pageID}.Submit(ctx, h.Client)
	require.NoError(t, err)

	items, err := h.Client.MenuItems(ctx)
	require.NoError(t, err)
	require.Len(t, items, 2)
	assert.Equal(t, "Home", items[0].Label)

	assert.False(t, forms.CanMove(0, len(items), apiclient.Up))
	assert.True(t, forms.CanMove(1, len(items), apiclient.Up))
	assert.False(t, forms.CanMove(1, len(items), apiclient.Down))

	_, err = h.Client.MoveMenuItem(ctx, items[0].ID, apiclient.Up)
	assert.Equal(t, http.StatusBadRequest, apiclient.StatusOf(err))
	assert.EqualError(t, err, "Item already at top")

	_, err = h.Client.MoveMenuItem(ctx, items[1].ID, apiclient.Up)
	require.NoError(t, err)

	menu, err := NewClient(t, h.Server.URL).Menu(ctx)
	require.NoError(t, err)
	require.Len(t, menu, 2)
	assert.Equal(t, "About", menu[0].Label)
	assert.Equal(t, "/pages/about", menu[0].Href)
	assert.Equal(t, "/", menu[1].Href)

	_, err = forms.MenuItemForm{ID: menu[1].ID, Label: "Blog", URL: "/blog"}.Submit(ctx, h.Client)
	require.NoError(t, err)

	menu, err = NewClient(t, h.Server.URL).Menu(ctx)
	require.NoError(t, err)
	require.Len(t, menu, 2)
	assert.Equal(t, "Blog", menu[1].Label)
	assert.Equal(t, "/blog", menu[1].Href)
}

func TestTags_CreateRenameAndListPosts(t *testing.T) {
	h := Start(t)
	h.SetupOwner(t)
	ctx := context.Background()
	visitor := NewClient(t, h.Server.URL)

	res, err := h.Client.CreateTag(ctx, "Golang")
	require.NoError(t, err)
	tagID := res.ID
	require.NotZero(t, tagID)

	_, err = h.Client.CreateTag(ctx, "Golang")
	assert.Equal(t, http.StatusBadRequest, apiclient.StatusOf(err))

	f := h.PostForm(t, nil)
	assert.Equal(t, []string{"Golang"}, f.Tags().OnInput("go"))
	f.SetTitle("Tagged")
	f.SetContent("body")
	f.Tags().Commit("Golang")
	status, err := f.Submit(ctx)
	require.NoError(t, err)
	require.Equal(t, inity.Saved, status.State, status.Message)

	_, err = h.Client.RenameTag(ctx, tagID, "Go")
	require.NoError(t, err)

	_, err = visitor.PublicTagPosts(ctx, "golang")
	assert.Equal(t, http.StatusNotFound, apiclient.StatusOf(err))
	tagged, err := visitor.PublicTagPosts(ctx, "go")
	require.NoError(t, err)
	require.Len(t, tagged.Posts, 1)
	assert.Equal(t, []string{"Go"}, tagged.Posts[0].Tags)

	posts, err := h.Client.TagPosts(ctx, tagID)
	require.NoError(t, err)
	require.Len(t, posts, 1)
	assert.Equal(t, "tagged", posts[0].Slug)
}

func TestPost_CommaEncodedForm(t *testing.T) {
	h := Start(t)
	h.SetupOwner(t)
	ctx := context.Background()

	_, err := h.Client.SavePost(ctx, 0, apiclient.PostRequest{
		Title: "Legacy", Slug: "legacy", Content: "body", Tags: []string{"Go", "Web"}, Visible: true,
	})
	require.NoError(t, err)
	post, err := h.Client.PublicPost(ctx, "legacy")
	require.NoError(t, err)
	stored, err := h.Client.Post(ctx, post.ID)
	require.NoError(t, err)

	mounted := h.Mount(t, Document(t, Anchor{Name: forms.PostsComponent, Props: map[string]any{
		forms.PropTagEncoding: "comma",
		forms.PropTagField:    "Go,Web",
		forms.PropPost:        stored,
	}}))
	require.Len(t, mounted, 1)
	f := mounted[0].Island.(*forms.PostForm)
	<-f.TagsLoaded()
	assert.Equal(t, []string{"Go", "Web"}, f.Tags().Tags())

	f.Tags().Remove("Go")
	f.Tags().Commit("Rust")
	doc, err := f.Document()
	require.NoError(t, err)
	assert.Equal(t, "Web,Rust", doc.TagField)

	status, err := f.Submit(ctx)
	require.NoError(t, err)
	require.Equal(t, inity.Saved, status.State, status.Message)

	post, err = h.Client.PublicPost(ctx, "legacy")
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"Web", "Rust"}, post.Tags)
}

func TestUsers_CreateAndLogin(t *testing.T) {
	h := Start(t)
	h.SetupOwner(t)
	ctx := context.Background()

	res, err := h.Client.SaveUser(ctx, 0, apiclient.UserRequest{
		FirstName: "Sam", LastName: "Second", Email: "sam@example.com", Password: "second-pass",
	})
	require.NoError(t, err)

	_, err = h.Client.SaveUser(ctx, res.ID, apiclient.UserRequest{
		FirstName: "Samantha", LastName: "Second", Email: "sam@example.com",
	})
	require.NoError(t, err)

	users, err := h.Client.Users(ctx)
	require.NoError(t, err)
	require.Len(t, users, 2)
	assert.Equal(t, "Samantha", users[1].FirstName)

	sam := NewClient(t, h.Server.URL)
	_, err = sam.Login(ctx, "sam@example.com", "second-pass")
	require.NoError(t, err)
	_, err = sam.Tags(ctx)
	assert.NoError(t, err)
}

func TestSettings_PaginatePublicList(t *testing.T) {
	h := Start(t)
	h.SetupOwner(t)
	ctx := context.Background()

	settings, err := h.Client.Settings(ctx)
	require.NoError(t, err)

	settings.PostsPerPage = 0
	_, err = h.Client.SaveSettings(ctx, settings)
	assert.Equal(t, http.StatusBadRequest, apiclient.StatusOf(err))

	settings.PostsPerPage = 2
	_, err = h.Client.SaveSettings(ctx, settings)
	require.NoError(t, err)

	base := time.Now().Add(-time.Hour).UTC()
	for i, s := range []string{"first", "second", "third"} {
		_, err := h.Client.SavePost(ctx, 0, apiclient.PostRequest{
			Title:       s,
			Slug:        s,
			Content:     "body",
			Visible:     true,
			PublishedAt: base.Add(time.Duration(i) * time.Minute).Format(time.RFC3339),
			Timezone:    "UTC",
		})
		require.NoError(t, err)
	}

	visitor := NewClient(t, h.Server.URL)
	first, err := visitor.PublicPosts(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, 2, first.TotalPages)
	require.Len(t, first.Posts, 2)
	assert.Equal(t, "third", first.Posts[0].Slug)

	second, err := visitor.PublicPosts(ctx, 2)
	require.NoError(t, err)
	require.Len(t, second.Posts, 1)
	assert.Equal(t, "first", second.Posts[0].Slug)
}

func TestMedia_UploadPickDelete(t *testing.T) {
	h := Start(t)
	h.SetupOwner(t)
	ctx := context.Background()

	media, err := h.Client.UploadMedia(ctx, "photo.png", bytes.NewReader([]byte("not really a png")), "holiday")
	require.NoError(t, err)
	assert.Equal(t, "image/png", media.MimeType)

	picker := forms.LoadMediaPicker(ctx, h.Client)
	require.Len(t, picker.Items(), 1)
	assert.Equal(t, "![photo.png](/media/"+media.Path+")", forms.Markdown(picker.Items()[0]))

	resp, err := http.Get(h.Server.URL + "/media/" + media.Path)
	require.NoError(t, err)
	body, _ := io.ReadAll(resp.Body)
	resp.Body.Close()
	assert.Equal(t, "not really a png", string(body))

	notice := forms.NewNotice()
	redirect, ok := forms.Delete(ctx, h.Client, apiclient.KindMedia, media.ID, notice)
	assert.True(t, ok)
	assert.Equal(t, "/admin/media", redirect)
	assert.Empty(t, notice.Message())
}

func TestDelete_FailureShowsNotice(t *testing.T) {
	h := Start(t)
	h.SetupOwner(t)
	ctx := context.Background()

	notice := forms.NewNotice()
	_, ok := forms.Delete(ctx, h.Client, apiclient.KindPost, 9999, notice)
	assert.False(t, ok)
	assert.Equal(t, "Post not found", notice.Message())

	res, err := h.Client.SavePost(ctx, 0, apiclient.PostRequest{Title: "Gone", Slug: "gone", Content: "x", Visible: true, Timezone: "UTC"})
	require.NoError(t, err)

	redirect, ok := forms.Delete(ctx, h.Client, apiclient.KindPost, res.ID, notice)
	assert.True(t, ok)
	assert.Equal(t, "/admin/posts", redirect)
	assert.Empty(t, notice.Message())
}

func TestTheme_PersistsInCookie(t *testing.T) {
	h := Start(t)
	h.SetupOwner(t)
	ctx := context.Background()

	toggle := theme.NewToggle(h.Client.Jar(), h.Client.BaseURL(), h.Client)
	defer toggle.Close()
	assert.Equal(t, theme.Light, toggle.Current())

	var seen []string
	toggle.Subscribe(func(name string) { seen = append(seen, name) })
	assert.Equal(t, theme.Dark, toggle.Flip(ctx))
	assert.Equal(t, []string{theme.Dark}, seen)

	again := theme.NewToggle(h.Client.Jar(), h.Client.BaseURL(), nil)
	assert.Equal(t, theme.Dark, again.Current())
}

func TestPreview(t *testing.T) {
	h := Start(t)
	h.SetupOwner(t)

	f := h.PostForm(t, nil)
	f.SetContent("# Title\n\nwith a https://example.com link")

	html, err := f.Preview(context.Background(), h.Client)
	require.NoError(t, err)
	assert.Contains(t, html, "<h1")
	assert.Contains(t, html, `<a href="https://example.com">`)
}
