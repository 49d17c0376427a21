package blog

import (
	"log"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"captain/cache"
	"captain/common"
	"captain/models"
	"captain/visibility"
)

type BlogModule struct {
	db      *gorm.DB
	cache   *cache.Cache
	siteURL string
	now     func() time.Time
}

// NewBlogModule builds the public module. pageCache may be nil.
func NewBlogModule(db *gorm.DB, pageCache *cache.Cache) *BlogModule {
	return &BlogModule{db: db, cache: pageCache, now: time.Now}
}

// WithSiteURL sets the absolute base used for sitemap links. Without it the
// request host is used.
func (b *BlogModule) WithSiteURL(siteURL string) *BlogModule {
	b.siteURL = siteURL
	return b
}

func (b *BlogModule) RegisterRoutes(router *gin.Engine) {
	router.GET("/sitemap.xml", b.sitemap)

	api := router.Group("/api")
	{
		api.GET("/site", b.site)
		api.GET("/posts", b.index)
		if b.cache != nil {
			api.GET("/posts/:slug", b.cache.Middleware(b.isOwner), b.post)
		} else {
			api.GET("/posts/:slug", b.post)
		}
		api.GET("/tags/:slug", b.tag)
		api.GET("/pages/:slug", b.page)
		api.GET("/menu", b.menu)
	}
}

func (b *BlogModule) viewer(c *gin.Context) visibility.Viewer {
	if _, ok := common.CurrentUserID(c); ok {
		return visibility.Owner
	}
	return visibility.Anonymous
}

func (b *BlogModule) isOwner(c *gin.Context) bool {
	return b.viewer(c) == visibility.Owner
}

// visibleTo restricts a post query to what viewer may see at now.
func visibleTo(viewer visibility.Viewer, now time.Time) func(*gorm.DB) *gorm.DB {
	return func(db *gorm.DB) *gorm.DB {
		if viewer == visibility.Owner {
			return db
		}
		return db.Where("posts.visible = ? AND posts.published_at <= ?", true, now.UTC())
	}
}

func (b *BlogModule) settings() models.Settings {
	var settings models.Settings
	if err := b.db.First(&settings).Error; err != nil {
		log.Printf("blog: loading settings failed, using defaults: %v", err)
		settings.Title = "Captain"
		settings.PostsPerPage = 10
	}
	if settings.PostsPerPage <= 0 {
		settings.PostsPerPage = 10
	}
	return settings
}

func (b *BlogModule) views(posts []models.Post, viewer visibility.Viewer, now time.Time) []models.PostView {
	views := make([]models.PostView, 0, len(posts))
	for i := range posts {
		p := &posts[i]
		state := visibility.Derive(p.Visible, p.PublishedAt, now, viewer)
		if !visibility.Listable(state) {
			continue
		}
		views = append(views, models.NewPostView(p, state))
	}
	return views
}

func (b *BlogModule) site(c *gin.Context) {
	settings := b.settings()
	c.JSON(http.StatusOK, gin.H{
		"title":    settings.Title,
		"subtitle": settings.Subtitle,
		"timezone": settings.Timezone,
		"theme":    settings.Theme,
	})
}

func (b *BlogModule) index(c *gin.Context) {
	viewer := b.viewer(c)
	now := b.now()
	perPage := b.settings().PostsPerPage

	page, err := strconv.Atoi(c.DefaultQuery("page", "1"))
	if err != nil || page < 1 {
		page = 1
	}

	var total int64
	if err := b.db.Model(&models.Post{}).Scopes(visibleTo(viewer, now)).Count(&total).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch posts"})
		return
	}

	var posts []models.Post
	err = b.db.Scopes(visibleTo(viewer, now)).
		Preload("Tags").
		Order("posts.published_at desc").
		Limit(perPage).
		Offset((page - 1) * perPage).
		Find(&posts).Error
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch posts"})
		return
	}

	totalPages := int((total + int64(perPage) - 1) / int64(perPage))
	c.JSON(http.StatusOK, gin.H{
		"posts":      b.views(posts, viewer, now),
		"page":       page,
		"totalPages": totalPages,
	})
}

func (b *BlogModule) post(c *gin.Context) {
	viewer := b.viewer(c)
	now := b.now()

	var post models.Post
	err := b.db.Scopes(visibleTo(viewer, now)).
		Preload("Tags").
		Where("slug = ?", c.Param("slug")).
		First(&post).Error
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Post not found"})
		return
	}

	html, err := common.RenderMarkdown(post.Content)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to render post"})
		return
	}

	view := models.NewPostView(&post, visibility.Derive(post.Visible, post.PublishedAt, now, viewer))
	view.HTML = html
	c.JSON(http.StatusOK, view)
}

func (b *BlogModule) tag(c *gin.Context) {
	viewer := b.viewer(c)
	now := b.now()

	var tag models.Tag
	if err := b.db.Where("slug = ?", c.Param("slug")).First(&tag).Error; err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Tag not found"})
		return
	}

	var posts []models.Post
	err := b.db.Scopes(visibleTo(viewer, now)).
		Joins("JOIN post_tags ON post_tags.post_id = posts.id").
		Where("post_tags.tag_id = ?", tag.ID).
		Preload("Tags").
		Order("posts.published_at desc").
		Find(&posts).Error
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch posts"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"tag":   tag,
		"posts": b.views(posts, viewer, now),
	})
}

func (b *BlogModule) page(c *gin.Context) {
	query := b.db.Where("slug = ?", c.Param("slug"))
	if b.viewer(c) == visibility.Anonymous {
		query = query.Where("visible = ?", true)
	}

	var page models.Page
	if err := query.First(&page).Error; err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Page not found"})
		return
	}

	html, err := common.RenderMarkdown(page.Content)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to render page"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"id":      page.ID,
		"title":   page.Title,
		"slug":    page.Slug,
		"content": page.Content,
		"html":    html,
		"visible": page.Visible,
	})
}

func (b *BlogModule) menu(c *gin.Context) {
	var items []models.MenuItem
	if err := b.db.Preload("Page").Order("position").Find(&items).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch menu"})
		return
	}

	views := make([]models.MenuItemView, 0, len(items))
	for i := range items {
		views = append(views, models.NewMenuItemView(&items[i]))
	}
	c.JSON(http.StatusOK, views)
}
