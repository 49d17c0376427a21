package models

import (
	"time"

	"captain/visibility"
)

// PostView is the JSON shape of a post, with its tags flattened to names.
type PostView struct {
	ID          uint             `json:"id"`
	Title       string           `json:"title"`
	Slug        string           `json:"slug"`
	Excerpt     string           `json:"excerpt"`
	Content     string           `json:"content"`
	HTML        string           `json:"html,omitempty"`
	Visible     bool             `json:"visible"`
	PublishedAt time.Time        `json:"publishedAt"`
	Timezone    string           `json:"timezone"`
	Tags        []string         `json:"tags"`
	State       visibility.State `json:"state,omitempty"`
	CreatedAt   time.Time        `json:"createdAt"`
	UpdatedAt   time.Time        `json:"updatedAt"`
}

func NewPostView(p *Post, state visibility.State) PostView {
	return PostView{
		ID:          p.ID,
		Title:       p.Title,
		Slug:        p.Slug,
		Excerpt:     p.Excerpt,
		Content:     p.Content,
		Visible:     p.Visible,
		PublishedAt: p.PublishedAt,
		Timezone:    p.PublishedAtTimezone,
		Tags:        p.TagNames(),
		State:       state,
		CreatedAt:   p.CreatedAt,
		UpdatedAt:   p.UpdatedAt,
	}
}

// MenuItemView adds the resolved link target to a menu item.
type MenuItemView struct {
	MenuItem
	Href string `json:"href"`
}

func NewMenuItemView(m *MenuItem) MenuItemView {
	return MenuItemView{MenuItem: *m, Href: m.Href()}
}
