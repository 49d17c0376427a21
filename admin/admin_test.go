package admin

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	"github.com/gin-contrib/sessions"
	"github.com/gin-contrib/sessions/cookie"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"captain/cache"
	"captain/common"
	"captain/database"
	"captain/models"
	"captain/ratelimit"
)

func setupTestDB() *gorm.DB {
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		DisableForeignKeyConstraintWhenMigrating: true,
	})
	if err != nil {
		panic("failed to connect database")
	}
	sqlDB, _ := db.DB()
	sqlDB.SetMaxOpenConns(1)

	if err := database.RunMigrations(db); err != nil {
		panic("failed to migrate database")
	}
	return db
}

func setupTestRouter(adminModule *AdminModule) *gin.Engine {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	store := cookie.NewStore([]byte("secret"))
	router.Use(sessions.Sessions("test-session", store))
	router.Use(common.CurrentUserMiddleware())
	adminModule.RegisterRoutes(router)
	return router
}

func createTestUser(db *gorm.DB) *models.User {
	passwordHash, _ := hashPassword("password123")
	user := &models.User{
		FirstName:    "Test",
		LastName:     "User",
		Email:        "test@example.com",
		PasswordHash: passwordHash,
	}
	db.Create(user)
	return user
}

func createTestPost(db *gorm.DB, slug string, tags ...string) *models.Post {
	post := &models.Post{
		Title:               "Test Post",
		Slug:                slug,
		Content:             "Test content",
		Visible:             true,
		PublishedAt:         time.Now().Add(-time.Hour).UTC(),
		PublishedAtTimezone: "UTC",
	}
	for _, name := range tags {
		post.Tags = append(post.Tags, models.Tag{Name: name})
	}
	db.Create(post)
	return post
}

// testClient replays the session cookie across requests like a browser.
type testClient struct {
	router  *gin.Engine
	cookies map[string]*http.Cookie
}

func newTestClient(router *gin.Engine) *testClient {
	return &testClient{router: router, cookies: make(map[string]*http.Cookie)}
}

func (tc *testClient) do(method, path string, body any) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		json.NewEncoder(&buf).Encode(body)
	}
	req, _ := http.NewRequest(method, path, &buf)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for _, c := range tc.cookies {
		req.AddCookie(c)
	}

	w := httptest.NewRecorder()
	tc.router.ServeHTTP(w, req)
	for _, c := range w.Result().Cookies() {
		tc.cookies[c.Name] = c
	}
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out), w.Body.String())
	return out
}

func loggedInClient(t *testing.T, db *gorm.DB, adminModule *AdminModule) *testClient {
	t.Helper()
	createTestUser(db)
	tc := newTestClient(setupTestRouter(adminModule))
	w := tc.do("POST", "/login", gin.H{"email": "test@example.com", "password": "password123"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	return tc
}

func TestRequireAuth_Unauthorized(t *testing.T) {
	db := setupTestDB()
	adminModule := NewAdminModule(db, nil, nil, t.TempDir())
	router := setupTestRouter(adminModule)

	req, _ := http.NewRequest("GET", "/admin/api/tags", nil)
	w := httptest.NewRecorder()

	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.JSONEq(t, `{"error":"Unauthorized"}`, w.Body.String())
}

func TestCreatePost_WithTagsAndSchedule(t *testing.T) {
	db := setupTestDB()
	tc := loggedInClient(t, db, NewAdminModule(db, nil, nil, t.TempDir()))

	w := tc.do("POST", "/admin/api/posts", gin.H{
		"title":       "Hello World",
		"slug":        "hello-world",
		"content":     "Body",
		"excerpt":     "Short",
		"tags":        []string{"Go", "Web", "go"},
		"visible":     true,
		"publishedAt": "2030-06-01T10:00",
		"timezone":    "UTC",
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	body := decode(t, w)
	assert.Equal(t, "/admin/posts", body["redirect"])

	var post models.Post
	require.NoError(t, db.Preload("Tags").Where("slug = ?", "hello-world").First(&post).Error)
	assert.ElementsMatch(t, []string{"Go", "Web"}, post.TagNames())
	assert.Equal(t, time.Date(2030, 6, 1, 10, 0, 0, 0, time.UTC), post.PublishedAt.UTC())
	assert.NotZero(t, post.AuthorID)

	w = tc.do("GET", "/admin/api/posts", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var list []models.PostView
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &list))
	require.Len(t, list, 1)
	assert.Equal(t, "scheduled", string(list[0].State))
}

func TestCreatePost_MissingPublishedAtMeansNow(t *testing.T) {
	db := setupTestDB()
	tc := loggedInClient(t, db, NewAdminModule(db, nil, nil, t.TempDir()))

	before := time.Now().Add(-time.Second)
	w := tc.do("POST", "/admin/api/posts", gin.H{
		"title": "Now", "slug": "now", "content": "x", "visible": true,
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var post models.Post
	require.NoError(t, db.Where("slug = ?", "now").First(&post).Error)
	assert.True(t, post.PublishedAt.After(before))
	assert.Empty(t, post.Tags)
}

func TestCreatePost_Invalid(t *testing.T) {
	db := setupTestDB()
	tc := loggedInClient(t, db, NewAdminModule(db, nil, nil, t.TempDir()))

	w := tc.do("POST", "/admin/api/posts", gin.H{"title": "", "slug": "Bad Slug", "content": "x"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	fields := decode(t, w)["fields"].(map[string]any)
	assert.Contains(t, fields, "title")
	assert.Contains(t, fields, "slug")

	w = tc.do("POST", "/admin/api/posts", gin.H{"title": "t", "slug": "t", "content": "x", "publishedAt": "soon"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "Invalid publish date", decode(t, w)["error"])
}

func TestCreatePost_DuplicateSlug(t *testing.T) {
	db := setupTestDB()
	tc := loggedInClient(t, db, NewAdminModule(db, nil, nil, t.TempDir()))
	createTestPost(db, "taken")

	w := tc.do("POST", "/admin/api/posts", gin.H{"title": "Taken", "slug": "taken", "content": "x"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, msgDuplicatePostSlug, decode(t, w)["error"])
}

func TestUpdatePost_ReplacesTagsAndClearsCache(t *testing.T) {
	db := setupTestDB()
	pageCache := cache.New(t.TempDir(), time.Minute)
	tc := loggedInClient(t, db, NewAdminModule(db, pageCache, nil, t.TempDir()))
	post := createTestPost(db, "first", "Go", "Programming")
	require.NoError(t, pageCache.Write("first", []byte("{}")))

	w := tc.do("PUT", "/admin/api/posts/"+itoa(post.ID), gin.H{
		"title": "Renamed", "slug": "renamed", "content": "x", "tags": []string{"Go", "Testing"},
		"visible": false, "publishedAt": "2020-01-01T00:00:00Z",
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var updated models.Post
	require.NoError(t, db.Preload("Tags").First(&updated, post.ID).Error)
	assert.Equal(t, "renamed", updated.Slug)
	assert.False(t, updated.Visible)
	assert.ElementsMatch(t, []string{"Go", "Testing"}, updated.TagNames())

	var tagCount int64
	db.Model(&models.Tag{}).Count(&tagCount)
	assert.Equal(t, int64(3), tagCount)

	_, found := pageCache.Read("first")
	assert.False(t, found)

	w = tc.do("GET", "/admin/api/posts/"+itoa(post.ID), nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "draft", decode(t, w)["state"])

	w = tc.do("PUT", "/admin/api/posts/999", gin.H{"title": "x", "slug": "x", "content": "x"})
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestDeletePost(t *testing.T) {
	db := setupTestDB()
	tc := loggedInClient(t, db, NewAdminModule(db, nil, nil, t.TempDir()))
	post := createTestPost(db, "doomed", "Go")

	w := tc.do("DELETE", "/admin/posts/"+itoa(post.ID), nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, "/admin/posts", decode(t, w)["redirect"])

	var count int64
	db.Table("post_tags").Count(&count)
	assert.Equal(t, int64(0), count)

	w = tc.do("DELETE", "/admin/posts/"+itoa(post.ID), nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = tc.do("DELETE", "/admin/posts/abc", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestResolveTags(t *testing.T) {
	db := setupTestDB()

	tags, err := resolveTags(db, []string{"Technology", " technology ", "Café", "!!!", ""})
	require.NoError(t, err)
	require.Len(t, tags, 2)
	assert.Equal(t, "technology", tags[0].Slug)
	assert.Equal(t, "cafe", tags[1].Slug)

	tags, err = resolveTags(db, []string{"Technology"})
	require.NoError(t, err)
	require.Len(t, tags, 1)

	var tagCount int64
	db.Model(&models.Tag{}).Count(&tagCount)
	assert.Equal(t, int64(2), tagCount)
}

func TestTagsAPIAndDelete(t *testing.T) {
	db := setupTestDB()
	tc := loggedInClient(t, db, NewAdminModule(db, nil, nil, t.TempDir()))
	createTestPost(db, "tagged", "Zeta", "Alpha")

	w := tc.do("GET", "/admin/api/tags", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var tags []models.Tag
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &tags))
	require.Len(t, tags, 2)
	assert.Equal(t, "Alpha", tags[0].Name)

	w = tc.do("DELETE", "/admin/tags/"+itoa(tags[0].ID), nil)
	require.Equal(t, http.StatusOK, w.Code)

	var count int64
	db.Table("post_tags").Count(&count)
	assert.Equal(t, int64(1), count)
}

func TestTags_CreateRenameAndPosts(t *testing.T) {
	db := setupTestDB()
	pageCache := cache.New(t.TempDir(), time.Hour)
	tc := loggedInClient(t, db, NewAdminModule(db, pageCache, nil, t.TempDir()))

	w := tc.do("POST", "/admin/api/tags", gin.H{"name": "  Go Lang "})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	id := uint(decode(t, w)["id"].(float64))

	var tag models.Tag
	require.NoError(t, db.First(&tag, id).Error)
	assert.Equal(t, "Go Lang", tag.Name)
	assert.Equal(t, "go-lang", tag.Slug)

	w = tc.do("POST", "/admin/api/tags", gin.H{"name": "Go Lang"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, msgDuplicateTag, decode(t, w)["error"])

	w = tc.do("POST", "/admin/api/tags", gin.H{"name": "!!!"})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = tc.do("POST", "/admin/api/tags", gin.H{"name": ""})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	createTestPost(db, "tagged", "Rust")
	var rust models.Tag
	require.NoError(t, db.Where("slug = ?", "rust").First(&rust).Error)

	w = tc.do("PUT", "/admin/api/tags/"+itoa(rust.ID), gin.H{"name": "Go Lang"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, msgDuplicateTag, decode(t, w)["error"])

	require.NoError(t, pageCache.Write("tagged", []byte("{}")))
	w = tc.do("PUT", "/admin/api/tags/"+itoa(rust.ID), gin.H{"name": "Rust Lang"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	require.NoError(t, db.First(&rust, rust.ID).Error)
	assert.Equal(t, "rust-lang", rust.Slug)
	_, found := pageCache.Read("tagged")
	assert.False(t, found)

	w = tc.do("PUT", "/admin/api/tags/999", gin.H{"name": "Ghost"})
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = tc.do("GET", "/admin/api/tags/"+itoa(rust.ID)+"/posts", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var posts []models.PostView
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &posts))
	require.Len(t, posts, 1)
	assert.Equal(t, "tagged", posts[0].Slug)
	assert.Equal(t, []string{"Rust Lang"}, posts[0].Tags)

	w = tc.do("GET", "/admin/api/tags/"+itoa(id)+"/posts", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, "[]", w.Body.String())
}

func TestPages(t *testing.T) {
	db := setupTestDB()
	tc := loggedInClient(t, db, NewAdminModule(db, nil, nil, t.TempDir()))

	w := tc.do("POST", "/admin/api/pages", gin.H{"title": "About", "slug": "about", "content": "Me", "visible": true})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	id := uint(decode(t, w)["id"].(float64))

	w = tc.do("POST", "/admin/api/pages", gin.H{"title": "About again", "slug": "about"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, msgDuplicatePageSlug, decode(t, w)["error"])

	w = tc.do("PUT", "/admin/api/pages/"+itoa(id), gin.H{"title": "About us", "slug": "about-us", "visible": false})
	require.Equal(t, http.StatusOK, w.Code)

	w = tc.do("GET", "/admin/api/pages/"+itoa(id), nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "about-us", decode(t, w)["slug"])

	w = tc.do("POST", "/admin/api/menus", gin.H{"label": "About", "pageId": id})
	require.Equal(t, http.StatusOK, w.Code)

	w = tc.do("DELETE", "/admin/pages/"+itoa(id), nil)
	require.Equal(t, http.StatusOK, w.Code)

	var menuCount int64
	db.Model(&models.MenuItem{}).Count(&menuCount)
	assert.Equal(t, int64(0), menuCount)
}

func TestMenuItems_CreateAndMove(t *testing.T) {
	db := setupTestDB()
	tc := loggedInClient(t, db, NewAdminModule(db, nil, nil, t.TempDir()))

	w := tc.do("POST", "/admin/api/menus", gin.H{"label": "Nowhere"})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = tc.do("POST", "/admin/api/menus", gin.H{"label": "Ghost", "pageId": 42})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	for _, label := range []string{"Home", "Blog", "Contact"} {
		w = tc.do("POST", "/admin/api/menus", gin.H{"label": label, "url": "/" + label})
		require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	}

	labels := func() []string {
		w := tc.do("GET", "/admin/api/menus", nil)
		require.Equal(t, http.StatusOK, w.Code)
		var items []models.MenuItemView
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &items))
		var out []string
		for _, it := range items {
			out = append(out, it.Label)
		}
		return out
	}
	assert.Equal(t, []string{"Home", "Blog", "Contact"}, labels())

	var first, last models.MenuItem
	db.Where("label = ?", "Home").First(&first)
	db.Where("label = ?", "Contact").First(&last)

	w = tc.do("POST", "/admin/menus/"+itoa(first.ID)+"/move/up", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "Item already at top", decode(t, w)["error"])

	w = tc.do("POST", "/admin/menus/"+itoa(last.ID)+"/move/down", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "Item already at bottom", decode(t, w)["error"])

	w = tc.do("POST", "/admin/menus/"+itoa(first.ID)+"/move/down", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, []string{"Blog", "Home", "Contact"}, labels())

	w = tc.do("POST", "/admin/menus/"+itoa(first.ID)+"/move/sideways", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = tc.do("DELETE", "/admin/menus/"+itoa(first.ID), nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, []string{"Blog", "Contact"}, labels())
}

func TestMenuItems_Update(t *testing.T) {
	db := setupTestDB()
	tc := loggedInClient(t, db, NewAdminModule(db, nil, nil, t.TempDir()))

	page := models.Page{Title: "About", Slug: "about", Visible: true}
	require.NoError(t, db.Create(&page).Error)

	for _, label := range []string{"Home", "Blog"} {
		w := tc.do("POST", "/admin/api/menus", gin.H{"label": label, "url": "/" + label})
		require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	}
	var blog models.MenuItem
	require.NoError(t, db.Where("label = ?", "Blog").First(&blog).Error)

	w := tc.do("PUT", "/admin/api/menus/"+itoa(blog.ID), gin.H{"label": "About", "pageId": page.ID})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var updated models.MenuItem
	require.NoError(t, db.First(&updated, blog.ID).Error)
	assert.Equal(t, "About", updated.Label)
	assert.Empty(t, updated.URL)
	require.NotNil(t, updated.PageID)
	assert.Equal(t, page.ID, *updated.PageID)
	assert.Equal(t, blog.Position, updated.Position)

	w = tc.do("PUT", "/admin/api/menus/"+itoa(blog.ID), gin.H{"label": "Nowhere"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "a URL or a page is required", decode(t, w)["fields"].(map[string]any)["url"])

	w = tc.do("PUT", "/admin/api/menus/"+itoa(blog.ID), gin.H{"label": "Ghost", "pageId": 42})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = tc.do("PUT", "/admin/api/menus/999", gin.H{"label": "Missing", "url": "/"})
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestSettings(t *testing.T) {
	db := setupTestDB()
	tc := loggedInClient(t, db, NewAdminModule(db, nil, nil, t.TempDir()))

	w := tc.do("GET", "/admin/api/settings", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, float64(10), decode(t, w)["postsPerPage"])

	w = tc.do("POST", "/admin/api/settings", gin.H{"title": "Mine", "timezone": "Mars/Olympus", "postsPerPage": 5})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = tc.do("POST", "/admin/api/settings", gin.H{"title": "Mine", "timezone": "UTC", "postsPerPage": 0})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = tc.do("POST", "/admin/api/settings", gin.H{"title": "Mine", "subtitle": "Notes", "timezone": "UTC", "theme": "dark", "postsPerPage": 3})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var settings models.Settings
	require.NoError(t, db.First(&settings).Error)
	assert.Equal(t, "Mine", settings.Title)
	assert.Equal(t, 3, settings.PostsPerPage)
}

func TestPreview(t *testing.T) {
	db := setupTestDB()
	tc := loggedInClient(t, db, NewAdminModule(db, nil, nil, t.TempDir()))

	w := tc.do("POST", "/admin/api/preview", gin.H{"content": "**bold**"})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, decode(t, w)["html"], "<strong>bold</strong>")
}

func TestSavePreferences(t *testing.T) {
	db := setupTestDB()
	tc := loggedInClient(t, db, NewAdminModule(db, nil, nil, t.TempDir()))

	w := tc.do("POST", "/admin/preferences", gin.H{"theme": "dark"})
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"status":"ok"}`, w.Body.String())

	var themeCookieFound bool
	for _, c := range w.Result().Cookies() {
		if c.Name == themeCookie {
			themeCookieFound = true
			assert.Equal(t, "dark", c.Value)
			assert.Equal(t, themeCookieAge, c.MaxAge)
		}
	}
	assert.True(t, themeCookieFound)

	w = tc.do("POST", "/admin/preferences", gin.H{"theme": "plaid"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestPasswordHashing(t *testing.T) {
	password := "testpassword"

	hash, err := hashPassword(password)
	assert.NoError(t, err)
	assert.NotEqual(t, password, hash)

	assert.True(t, checkPasswordHash(password, hash))
	assert.False(t, checkPasswordHash("wrongpassword", hash))
}

func TestLoginRateLimited(t *testing.T) {
	db := setupTestDB()
	adminModule := NewAdminModule(db, nil, ratelimit.New(0.001, 2), t.TempDir())
	tc := newTestClient(setupTestRouter(adminModule))

	for i := 0; i < 2; i++ {
		w := tc.do("POST", "/login", gin.H{"email": "x@y.z", "password": "nope"})
		assert.Equal(t, http.StatusUnauthorized, w.Code)
	}
	w := tc.do("POST", "/login", gin.H{"email": "x@y.z", "password": "nope"})
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
}

func itoa(id uint) string {
	return strconv.FormatUint(uint64(id), 10)
}
