// Package apiclient talks to the admin and public JSON API the way the admin
// islands do: one request per call, session kept in a cookie jar.
package apiclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strconv"
	"strings"
	"time"
)

// Error is a non-2xx answer from the server.
type Error struct {
	Status  int
	Message string
}

func (e *Error) Error() string {
	return e.Message
}

// StatusOf returns the HTTP status carried by err, or 0.
func StatusOf(err error) int {
	var apiErr *Error
	if errors.As(err, &apiErr) {
		return apiErr.Status
	}
	return 0
}

type Client struct {
	baseURL *url.URL
	http    *http.Client
}

func New(baseURL string) (*Client, error) {
	u, err := url.Parse(strings.TrimSuffix(baseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("parse base url: %w", err)
	}
	jar, err := cookiejar.New(nil)
	if err != nil {
		return nil, fmt.Errorf("create cookie jar: %w", err)
	}
	return &Client{
		baseURL: u,
		http:    &http.Client{Jar: jar, Timeout: 30 * time.Second},
	}, nil
}

// BaseURL is the server root every path is resolved against.
func (c *Client) BaseURL() *url.URL {
	u := *c.baseURL
	return &u
}

func (c *Client) Jar() http.CookieJar {
	return c.http.Jar
}

// Result is the {message, redirect} answer of mutating endpoints.
type Result struct {
	Message  string `json:"message"`
	Redirect string `json:"redirect"`
	ID       uint   `json:"id,omitempty"` // set on create and update
}

func (c *Client) url(path string) string {
	return c.baseURL.String() + path
}

func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.url(path), reader)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	return c.send(req, out)
}

func (c *Client) send(req *http.Request, out any) error {
	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", req.Method, req.URL.Path, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		var payload struct {
			Error string `json:"error"`
		}
		msg := http.StatusText(resp.StatusCode)
		if json.Unmarshal(data, &payload) == nil && payload.Error != "" {
			msg = payload.Error
		}
		return &Error{Status: resp.StatusCode, Message: msg}
	}

	if out == nil || len(data) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

type SetupRequest struct {
	FirstName string `json:"firstName"`
	LastName  string `json:"lastName"`
	Email     string `json:"email"`
	Password  string `json:"password"`
}

func (c *Client) Setup(ctx context.Context, req SetupRequest) (Result, error) {
	var res Result
	err := c.do(ctx, http.MethodPost, "/setup", req, &res)
	return res, err
}

func (c *Client) Login(ctx context.Context, email, password string) (Result, error) {
	var res Result
	err := c.do(ctx, http.MethodPost, "/login", map[string]string{
		"email":    email,
		"password": password,
	}, &res)
	return res, err
}

func (c *Client) Logout(ctx context.Context) error {
	return c.do(ctx, http.MethodGet, "/logout", nil, nil)
}

type Tag struct {
	ID   uint   `json:"id"`
	Name string `json:"name"`
	Slug string `json:"slug"`
}

func (c *Client) Tags(ctx context.Context) ([]Tag, error) {
	var tags []Tag
	err := c.do(ctx, http.MethodGet, "/admin/api/tags", nil, &tags)
	return tags, err
}

// ExistingTags returns the names of every tag known to the server.
func (c *Client) ExistingTags(ctx context.Context) ([]string, error) {
	tags, err := c.Tags(ctx)
	if err != nil {
		return nil, err
	}
	names := make([]string, 0, len(tags))
	for _, t := range tags {
		names = append(names, t.Name)
	}
	return names, nil
}

// CreateTag adds a tag; its slug is derived from name on the server.
func (c *Client) CreateTag(ctx context.Context, name string) (Result, error) {
	var res Result
	err := c.do(ctx, http.MethodPost, "/admin/api/tags", map[string]string{"name": name}, &res)
	return res, err
}

// RenameTag changes the name of a tag and regenerates its slug.
func (c *Client) RenameTag(ctx context.Context, id uint, name string) (Result, error) {
	var res Result
	path := fmt.Sprintf("/admin/api/tags/%d", id)
	err := c.do(ctx, http.MethodPut, path, map[string]string{"name": name}, &res)
	return res, err
}

// TagPosts lists every post carrying the tag, drafts and scheduled included.
func (c *Client) TagPosts(ctx context.Context, id uint) ([]Post, error) {
	var posts []Post
	err := c.do(ctx, http.MethodGet, fmt.Sprintf("/admin/api/tags/%d/posts", id), nil, &posts)
	return posts, err
}

type User struct {
	ID        uint      `json:"id"`
	FirstName string    `json:"firstName"`
	LastName  string    `json:"lastName"`
	Email     string    `json:"email"`
	CreatedAt time.Time `json:"createdAt"`
}

// UserRequest creates or updates an admin user. On update an empty Password
// keeps the current one.
type UserRequest struct {
	FirstName string `json:"firstName"`
	LastName  string `json:"lastName"`
	Email     string `json:"email"`
	Password  string `json:"password,omitempty"`
}

func (c *Client) Users(ctx context.Context) ([]User, error) {
	var users []User
	err := c.do(ctx, http.MethodGet, "/admin/api/users", nil, &users)
	return users, err
}

// SaveUser creates the user when id is 0 and updates it otherwise.
func (c *Client) SaveUser(ctx context.Context, id uint, req UserRequest) (Result, error) {
	var res Result
	if id == 0 {
		err := c.do(ctx, http.MethodPost, "/admin/api/users", req, &res)
		return res, err
	}
	err := c.do(ctx, http.MethodPut, fmt.Sprintf("/admin/api/users/%d", id), req, &res)
	return res, err
}

type Media struct {
	ID          uint      `json:"ID"`
	CreatedAt   time.Time `json:"CreatedAt"`
	Name        string    `json:"Name"`
	Path        string    `json:"Path"`
	MimeType    string    `json:"MimeType"`
	Size        int64     `json:"Size"`
	Description string    `json:"Description"`
}

func (c *Client) Media(ctx context.Context) ([]Media, error) {
	var media []Media
	err := c.do(ctx, http.MethodGet, "/admin/api/media", nil, &media)
	return media, err
}

// UploadMedia sends one file as multipart form data.
func (c *Client) UploadMedia(ctx context.Context, name string, content io.Reader, description string) (Media, error) {
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	part, err := w.CreateFormFile("file", name)
	if err != nil {
		return Media{}, err
	}
	if _, err := io.Copy(part, content); err != nil {
		return Media{}, fmt.Errorf("copy upload: %w", err)
	}
	if err := w.WriteField("description", description); err != nil {
		return Media{}, err
	}
	if err := w.Close(); err != nil {
		return Media{}, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url("/admin/api/media"), &buf)
	if err != nil {
		return Media{}, err
	}
	req.Header.Set("Content-Type", w.FormDataContentType())
	req.Header.Set("Accept", "application/json")

	var media Media
	err = c.send(req, &media)
	return media, err
}

// PostRequest is the document a post form submits.
type PostRequest struct {
	Title       string   `json:"title"`
	Slug        string   `json:"slug"`
	Content     string   `json:"content"`
	Excerpt     string   `json:"excerpt"`
	Tags        []string `json:"tags"`
	Visible     bool     `json:"visible"`
	PublishedAt string   `json:"publishedAt,omitempty"` // RFC 3339, empty means now
	Timezone    string   `json:"timezone"`
}

type Post struct {
	ID          uint      `json:"id"`
	Title       string    `json:"title"`
	Slug        string    `json:"slug"`
	Excerpt     string    `json:"excerpt"`
	Content     string    `json:"content"`
	HTML        string    `json:"html,omitempty"`
	Visible     bool      `json:"visible"`
	PublishedAt time.Time `json:"publishedAt"`
	Timezone    string    `json:"timezone"`
	Tags        []string  `json:"tags"`
	State       string    `json:"state,omitempty"`
}

// SavePost creates the post when id is 0 and updates it otherwise.
func (c *Client) SavePost(ctx context.Context, id uint, req PostRequest) (Result, error) {
	var res Result
	if id == 0 {
		err := c.do(ctx, http.MethodPost, "/admin/api/posts", req, &res)
		return res, err
	}
	err := c.do(ctx, http.MethodPut, "/admin/api/posts/"+strconv.FormatUint(uint64(id), 10), req, &res)
	return res, err
}

func (c *Client) Post(ctx context.Context, id uint) (Post, error) {
	var post Post
	err := c.do(ctx, http.MethodGet, "/admin/api/posts/"+strconv.FormatUint(uint64(id), 10), nil, &post)
	return post, err
}

type PageRequest struct {
	Title   string `json:"title"`
	Slug    string `json:"slug"`
	Content string `json:"content"`
	Visible bool   `json:"visible"`
}

type Page struct {
	ID      uint   `json:"id"`
	Title   string `json:"title"`
	Slug    string `json:"slug"`
	Content string `json:"content"`
	HTML    string `json:"html,omitempty"`
	Visible bool   `json:"visible"`
}

// SavePage creates the page when id is 0 and updates it otherwise.
func (c *Client) SavePage(ctx context.Context, id uint, req PageRequest) (Result, error) {
	var res Result
	if id == 0 {
		err := c.do(ctx, http.MethodPost, "/admin/api/pages", req, &res)
		return res, err
	}
	err := c.do(ctx, http.MethodPut, "/admin/api/pages/"+strconv.FormatUint(uint64(id), 10), req, &res)
	return res, err
}

func (c *Client) Page(ctx context.Context, id uint) (Page, error) {
	var page Page
	err := c.do(ctx, http.MethodGet, "/admin/api/pages/"+strconv.FormatUint(uint64(id), 10), nil, &page)
	return page, err
}

// Kind names a deletable resource collection.
type Kind string

const (
	KindTag   Kind = "tags"
	KindPost  Kind = "posts"
	KindPage  Kind = "pages"
	KindMenu  Kind = "menus"
	KindMedia Kind = "media"
	KindUser  Kind = "users"
)

func (c *Client) Delete(ctx context.Context, kind Kind, id uint) (Result, error) {
	var res Result
	path := fmt.Sprintf("/admin/%s/%d", kind, id)
	err := c.do(ctx, http.MethodDelete, path, nil, &res)
	return res, err
}

type MenuItemRequest struct {
	Label  string `json:"label"`
	URL    string `json:"url,omitempty"`
	PageID *uint  `json:"pageId,omitempty"`
}

type MenuItem struct {
	ID       uint   `json:"id"`
	Label    string `json:"label"`
	URL      string `json:"url,omitempty"`
	PageID   *uint  `json:"pageId,omitempty"`
	Position int    `json:"position"`
	Href     string `json:"href"`
}

func (c *Client) CreateMenuItem(ctx context.Context, req MenuItemRequest) (Result, error) {
	var res Result
	err := c.do(ctx, http.MethodPost, "/admin/api/menus", req, &res)
	return res, err
}

func (c *Client) UpdateMenuItem(ctx context.Context, id uint, req MenuItemRequest) (Result, error) {
	var res Result
	err := c.do(ctx, http.MethodPut, fmt.Sprintf("/admin/api/menus/%d", id), req, &res)
	return res, err
}

func (c *Client) MenuItems(ctx context.Context) ([]MenuItem, error) {
	var items []MenuItem
	err := c.do(ctx, http.MethodGet, "/admin/api/menus", nil, &items)
	return items, err
}

type Direction string

const (
	Up   Direction = "up"
	Down Direction = "down"
)

func (c *Client) MoveMenuItem(ctx context.Context, id uint, dir Direction) (Result, error) {
	var res Result
	path := fmt.Sprintf("/admin/menus/%d/move/%s", id, dir)
	err := c.do(ctx, http.MethodPost, path, nil, &res)
	return res, err
}

func (c *Client) SavePreferences(ctx context.Context, theme string) error {
	return c.do(ctx, http.MethodPost, "/admin/preferences", map[string]string{"theme": theme}, nil)
}

type Settings struct {
	Title        string `json:"title"`
	Subtitle     string `json:"subtitle"`
	Timezone     string `json:"timezone"`
	Theme        string `json:"theme"`
	PostsPerPage int    `json:"postsPerPage"`
}

func (c *Client) Settings(ctx context.Context) (Settings, error) {
	var s Settings
	err := c.do(ctx, http.MethodGet, "/admin/api/settings", nil, &s)
	return s, err
}

func (c *Client) SaveSettings(ctx context.Context, s Settings) (Result, error) {
	var res Result
	err := c.do(ctx, http.MethodPost, "/admin/api/settings", s, &res)
	return res, err
}

// Preview renders markdown to HTML on the server.
func (c *Client) Preview(ctx context.Context, markdown string) (string, error) {
	var out struct {
		HTML string `json:"html"`
	}
	err := c.do(ctx, http.MethodPost, "/admin/api/preview", map[string]string{"content": markdown}, &out)
	return out.HTML, err
}

type PostList struct {
	Posts      []Post `json:"posts"`
	Page       int    `json:"page"`
	TotalPages int    `json:"totalPages"`
}

func (c *Client) PublicPosts(ctx context.Context, page int) (PostList, error) {
	var list PostList
	path := "/api/posts"
	if page > 1 {
		path += "?page=" + strconv.Itoa(page)
	}
	err := c.do(ctx, http.MethodGet, path, nil, &list)
	return list, err
}

func (c *Client) PublicPost(ctx context.Context, slug string) (Post, error) {
	var post Post
	err := c.do(ctx, http.MethodGet, "/api/posts/"+url.PathEscape(slug), nil, &post)
	return post, err
}

type TagPosts struct {
	Tag   Tag    `json:"tag"`
	Posts []Post `json:"posts"`
}

func (c *Client) PublicTagPosts(ctx context.Context, slug string) (TagPosts, error) {
	var tp TagPosts
	err := c.do(ctx, http.MethodGet, "/api/tags/"+url.PathEscape(slug), nil, &tp)
	return tp, err
}

func (c *Client) PublicPage(ctx context.Context, slug string) (Page, error) {
	var page Page
	err := c.do(ctx, http.MethodGet, "/api/pages/"+url.PathEscape(slug), nil, &page)
	return page, err
}

func (c *Client) Menu(ctx context.Context) ([]MenuItem, error) {
	var items []MenuItem
	err := c.do(ctx, http.MethodGet, "/api/menu", nil, &items)
	return items, err
}
