package blog

import (
	"encoding/xml"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"captain/models"
	"captain/visibility"
)

type urlset struct {
	XMLName xml.Name     `xml:"urlset"`
	Xmlns   string       `xml:"xmlns,attr"`
	URLs    []sitemapURL `xml:"url"`
}

type sitemapURL struct {
	Loc        string `xml:"loc"`
	LastMod    string `xml:"lastmod,omitempty"`
	ChangeFreq string `xml:"changefreq"`
	Priority   string `xml:"priority"`
}

func (b *BlogModule) baseURL(c *gin.Context) string {
	if b.siteURL != "" {
		return b.siteURL
	}
	scheme := "http"
	if c.Request.TLS != nil {
		scheme = "https"
	}
	return scheme + "://" + c.Request.Host
}

// sitemap lists the home page, published posts, visible pages and tags that
// have at least one published post.
func (b *BlogModule) sitemap(c *gin.Context) {
	base := b.baseURL(c)
	now := b.now()
	set := urlset{Xmlns: "http://www.sitemaps.org/schemas/sitemap/0.9"}

	set.URLs = append(set.URLs, sitemapURL{Loc: base + "/", ChangeFreq: "daily", Priority: "1.0"})

	var posts []models.Post
	b.db.Scopes(visibleTo(visibility.Anonymous, now)).Order("posts.published_at desc").Find(&posts)
	for _, post := range posts {
		set.URLs = append(set.URLs, sitemapURL{
			Loc:        base + "/posts/" + post.Slug,
			LastMod:    post.UpdatedAt.UTC().Format(time.RFC3339),
			ChangeFreq: "monthly",
			Priority:   "0.6",
		})
	}

	var pages []models.Page
	b.db.Where("visible = ?", true).Order("slug").Find(&pages)
	for _, page := range pages {
		set.URLs = append(set.URLs, sitemapURL{
			Loc:        base + "/pages/" + page.Slug,
			LastMod:    page.UpdatedAt.UTC().Format(time.RFC3339),
			ChangeFreq: "monthly",
			Priority:   "0.5",
		})
	}

	var tagSlugs []string
	b.db.Model(&models.Tag{}).
		Joins("JOIN post_tags ON post_tags.tag_id = tags.id").
		Joins("JOIN posts ON posts.id = post_tags.post_id").
		Scopes(visibleTo(visibility.Anonymous, now)).
		Distinct("tags.slug").
		Order("tags.slug").
		Pluck("tags.slug", &tagSlugs)
	for _, s := range tagSlugs {
		set.URLs = append(set.URLs, sitemapURL{Loc: base + "/tags/" + s, ChangeFreq: "weekly", Priority: "0.4"})
	}

	out, err := xml.MarshalIndent(set, "", "  ")
	if err != nil {
		c.String(http.StatusInternalServerError, "Failed to build sitemap")
		return
	}
	c.Data(http.StatusOK, "application/xml; charset=utf-8", append([]byte(xml.Header), out...))
}
