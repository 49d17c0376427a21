package models

import (
	"fmt"
	"mime"
	"path/filepath"
	"strings"
	"time"

	"gorm.io/gorm"

	"captain/slug"
)

type User struct {
	ID           uint      `gorm:"primary_key;autoIncrement" json:"id"`
	FirstName    string    `gorm:"not null" json:"firstName"`
	LastName     string    `gorm:"not null" json:"lastName"`
	Email        string    `gorm:"uniqueIndex;not null" json:"email"`
	PasswordHash string    `gorm:"not null" json:"-"` // json:"-" prevents password from being exposed in API
	CreatedAt    time.Time `json:"createdAt"`
}

type Post struct {
	ID                  uint      `gorm:"primary_key" json:"id"`
	CreatedAt           time.Time `json:"createdAt"`
	UpdatedAt           time.Time `json:"updatedAt"`
	Title               string    `gorm:"not null" json:"title"`
	Slug                string    `gorm:"uniqueIndex;not null" json:"slug"`
	Excerpt             string    `gorm:"type:text" json:"excerpt"`
	Content             string    `gorm:"type:text;not null" json:"content"`
	Visible             bool      `gorm:"not null;index" json:"visible"`
	PublishedAt         time.Time `gorm:"not null;index" json:"publishedAt"` // stored in UTC
	PublishedAtTimezone string    `gorm:"not null;default:'UTC'" json:"timezone"`
	Tags                []Tag     `gorm:"many2many:post_tags;" json:"-"`
	AuthorID            uint      `gorm:"not null" json:"authorId"`
}

// TagNames returns the names of the post's loaded tags.
func (p *Post) TagNames() []string {
	names := make([]string, 0, len(p.Tags))
	for _, t := range p.Tags {
		names = append(names, t.Name)
	}
	return names
}

type Page struct {
	ID        uint      `gorm:"primary_key" json:"id"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
	Title     string    `gorm:"not null" json:"title"`
	Slug      string    `gorm:"uniqueIndex;not null" json:"slug"`
	Content   string    `gorm:"type:text" json:"content"`
	Visible   bool      `gorm:"not null" json:"visible"`
}

type Tag struct {
	ID   uint   `gorm:"primary_key" json:"id"`
	Name string `gorm:"uniqueIndex;not null" json:"name"`
	Slug string `gorm:"uniqueIndex;not null" json:"slug"`
}

// BeforeSave makes sure the tag has a slug.
func (t *Tag) BeforeSave(tx *gorm.DB) error {
	if t.Slug == "" {
		t.Slug = slug.Generate(t.Name)
	}
	if t.Slug == "" {
		return fmt.Errorf("tag %q has no usable slug", t.Name)
	}
	return nil
}

type MenuItem struct {
	ID       uint   `gorm:"primary_key" json:"id"`
	Label    string `gorm:"not null" json:"label"`
	URL      string `json:"url,omitempty"`
	PageID   *uint  `json:"pageId,omitempty"`
	Page     *Page  `gorm:"foreignKey:PageID" json:"page,omitempty"`
	Position int    `gorm:"not null;default:0;index" json:"position"`
}

// Href is where the menu entry points to.
func (m *MenuItem) Href() string {
	if m.Page != nil {
		return "/pages/" + m.Page.Slug
	}
	return m.URL
}

type Media struct {
	ID          uint      `gorm:"primary_key" json:"ID"`
	CreatedAt   time.Time `json:"CreatedAt"`
	Name        string    `gorm:"not null" json:"Name"`
	Path        string    `gorm:"not null;uniqueIndex" json:"Path"`
	MimeType    string    `gorm:"not null" json:"MimeType"`
	Size        int64     `gorm:"not null" json:"Size"`
	Description string    `gorm:"type:text" json:"Description"`
}

// BeforeCreate fills in the MIME type from the file name when missing.
func (m *Media) BeforeCreate(_ *gorm.DB) error {
	if m.MimeType == "" {
		m.MimeType = mime.TypeByExtension(filepath.Ext(m.Name))
		if m.MimeType == "" {
			m.MimeType = "application/octet-stream"
		}
	}
	return nil
}

func (m *Media) IsImage() bool {
	return strings.HasPrefix(m.MimeType, "image/")
}

// Settings is the single row of site configuration.
type Settings struct {
	ID           uint   `gorm:"primary_key" json:"-"`
	Title        string `gorm:"not null" json:"title"`
	Subtitle     string `json:"subtitle"`
	Timezone     string `gorm:"not null;default:'UTC'" json:"timezone"`
	Theme        string `json:"theme"`
	PostsPerPage int    `gorm:"not null;default:10" json:"postsPerPage"`
}
