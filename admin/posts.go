package admin

import (
	"errors"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"captain/common"
	"captain/models"
	"captain/slug"
	"captain/visibility"
)

type postRequest struct {
	Title       string   `json:"title" validate:"required"`
	Slug        string   `json:"slug" validate:"required,slug"`
	Content     string   `json:"content" validate:"required"`
	Excerpt     string   `json:"excerpt"`
	Tags        []string `json:"tags"`
	Visible     bool     `json:"visible"`
	PublishedAt *string  `json:"publishedAt"`
	Timezone    string   `json:"timezone"`
}

const msgDuplicatePostSlug = "A post with the same slug already exists"

// publishedAt returns the publication time in UTC. A missing value means now.
func (r *postRequest) publishedAt(now time.Time) (time.Time, error) {
	if r.PublishedAt == nil || strings.TrimSpace(*r.PublishedAt) == "" {
		return now.UTC(), nil
	}
	t, err := visibility.ParseTimestamp(*r.PublishedAt, visibility.LoadLocation(r.Timezone))
	if err != nil {
		return time.Time{}, err
	}
	return t.UTC(), nil
}

func (a *AdminModule) bindPost(c *gin.Context) (*postRequest, time.Time, bool) {
	var req postRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request"})
		return nil, time.Time{}, false
	}
	req.Title = strings.TrimSpace(req.Title)
	req.Slug = strings.TrimSpace(req.Slug)
	if req.Timezone == "" {
		req.Timezone = "UTC"
	}

	if fe := a.validator.Fields(req); len(fe) > 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": fe.Error(), "fields": fe})
		return nil, time.Time{}, false
	}

	at, err := req.publishedAt(time.Now())
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid publish date"})
		return nil, time.Time{}, false
	}
	return &req, at, true
}

// resolveTags finds or creates a tag for every name. Names that differ only
// in case or accents share one tag since tags are unique by slug.
func resolveTags(tx *gorm.DB, names []string) ([]models.Tag, error) {
	var tags []models.Tag
	seen := make(map[string]bool)
	for _, name := range names {
		name = strings.TrimSpace(name)
		s := slug.Generate(name)
		if s == "" || seen[s] {
			continue
		}
		seen[s] = true

		var tag models.Tag
		if err := tx.Where(models.Tag{Slug: s}).Attrs(models.Tag{Name: name}).FirstOrCreate(&tag).Error; err != nil {
			return nil, err
		}
		tags = append(tags, tag)
	}
	return tags, nil
}

func replaceTags(tx *gorm.DB, post *models.Post, tags []models.Tag) error {
	if len(tags) == 0 {
		return tx.Model(post).Association("Tags").Clear()
	}
	return tx.Model(post).Association("Tags").Replace(tags)
}

func (a *AdminModule) listPosts(c *gin.Context) {
	var posts []models.Post
	if err := a.db.Preload("Tags").Order("published_at desc").Find(&posts).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch posts"})
		return
	}

	now := time.Now()
	views := make([]models.PostView, 0, len(posts))
	for i := range posts {
		p := &posts[i]
		state := visibility.Derive(p.Visible, p.PublishedAt, now, visibility.Owner)
		views = append(views, models.NewPostView(p, state))
	}
	c.JSON(http.StatusOK, views)
}

func (a *AdminModule) getPost(c *gin.Context) {
	id, ok := paramID(c)
	if !ok {
		return
	}

	var post models.Post
	if err := a.db.Preload("Tags").First(&post, id).Error; err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Post not found"})
		return
	}

	state := visibility.Derive(post.Visible, post.PublishedAt, time.Now(), visibility.Owner)
	c.JSON(http.StatusOK, models.NewPostView(&post, state))
}

func (a *AdminModule) createPost(c *gin.Context) {
	req, publishedAt, ok := a.bindPost(c)
	if !ok {
		return
	}
	authorID, _ := common.CurrentUserID(c)

	post := models.Post{
		Title:               req.Title,
		Slug:                req.Slug,
		Content:             req.Content,
		Excerpt:             req.Excerpt,
		Visible:             req.Visible,
		PublishedAt:         publishedAt,
		PublishedAtTimezone: req.Timezone,
		AuthorID:            authorID,
	}

	err := a.db.Transaction(func(tx *gorm.DB) error {
		tags, err := resolveTags(tx, req.Tags)
		if err != nil {
			return err
		}
		if err := tx.Omit("Tags").Create(&post).Error; err != nil {
			return err
		}
		return replaceTags(tx, &post, tags)
	})
	if err != nil {
		if isUniqueViolation(err) {
			c.JSON(http.StatusBadRequest, gin.H{"error": msgDuplicatePostSlug})
			return
		}
		log.Printf("posts: create failed: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to create post"})
		return
	}

	a.clearCache(post.Slug)
	c.JSON(http.StatusOK, gin.H{"message": "Post created", "redirect": "/admin/posts", "id": post.ID})
}

func (a *AdminModule) updatePost(c *gin.Context) {
	id, ok := paramID(c)
	if !ok {
		return
	}

	var post models.Post
	if err := a.db.First(&post, id).Error; err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Post not found"})
		return
	}

	req, publishedAt, ok := a.bindPost(c)
	if !ok {
		return
	}

	oldSlug := post.Slug
	post.Title = req.Title
	post.Slug = req.Slug
	post.Content = req.Content
	post.Excerpt = req.Excerpt
	post.Visible = req.Visible
	post.PublishedAt = publishedAt
	post.PublishedAtTimezone = req.Timezone

	err := a.db.Transaction(func(tx *gorm.DB) error {
		tags, err := resolveTags(tx, req.Tags)
		if err != nil {
			return err
		}
		if err := tx.Omit("Tags").Save(&post).Error; err != nil {
			return err
		}
		return replaceTags(tx, &post, tags)
	})
	if err != nil {
		if isUniqueViolation(err) {
			c.JSON(http.StatusBadRequest, gin.H{"error": msgDuplicatePostSlug})
			return
		}
		log.Printf("posts: update %d failed: %v", id, err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to update post"})
		return
	}

	a.clearCache(oldSlug, post.Slug)
	c.JSON(http.StatusOK, gin.H{"message": "Post updated", "redirect": "/admin/posts", "id": post.ID})
}

func (a *AdminModule) deletePost(c *gin.Context) {
	id, ok := paramID(c)
	if !ok {
		return
	}

	var post models.Post
	err := a.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.First(&post, id).Error; err != nil {
			return err
		}
		if err := tx.Model(&post).Association("Tags").Clear(); err != nil {
			return err
		}
		return tx.Delete(&post).Error
	})
	if errors.Is(err, gorm.ErrRecordNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "Post not found"})
		return
	}
	if err != nil {
		log.Printf("posts: delete %d failed: %v", id, err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to delete post"})
		return
	}

	a.clearCache(post.Slug)
	c.JSON(http.StatusOK, gin.H{"message": "Post deleted", "redirect": "/admin/posts"})
}

type previewRequest struct {
	Content string `json:"content" form:"content"`
}

func (a *AdminModule) preview(c *gin.Context) {
	var req previewRequest
	if err := c.ShouldBind(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request"})
		return
	}

	html, err := common.RenderMarkdown(req.Content)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to render preview"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"html": html})
}
