package admin

import (
	"errors"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"captain/models"
	"captain/slug"
	"captain/visibility"
)

type tagRequest struct {
	Name string `json:"name" validate:"required"`
}

const msgDuplicateTag = "A tag with the same name already exists"

func (a *AdminModule) apiTags(c *gin.Context) {
	var tags []models.Tag
	if err := a.db.Order("name").Find(&tags).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch tags"})
		return
	}
	c.JSON(http.StatusOK, tags)
}

// bindTag reads a tag name and derives its slug, answering 400 itself when
// the name is unusable.
func (a *AdminModule) bindTag(c *gin.Context) (models.Tag, bool) {
	var req tagRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request"})
		return models.Tag{}, false
	}
	req.Name = strings.TrimSpace(req.Name)
	if fe := a.validator.Fields(req); len(fe) > 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": fe.Error(), "fields": fe})
		return models.Tag{}, false
	}

	s := slug.Generate(req.Name)
	if s == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Tag name must contain letters or numbers"})
		return models.Tag{}, false
	}
	return models.Tag{Name: req.Name, Slug: s}, true
}

func (a *AdminModule) createTag(c *gin.Context) {
	tag, ok := a.bindTag(c)
	if !ok {
		return
	}

	if err := a.db.Create(&tag).Error; err != nil {
		if isUniqueViolation(err) {
			c.JSON(http.StatusBadRequest, gin.H{"error": msgDuplicateTag})
			return
		}
		log.Printf("tags: create %q failed: %v", tag.Name, err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to create tag"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Tag created", "redirect": "/admin/tags", "id": tag.ID})
}

// updateTag renames a tag. The slug follows the new name.
func (a *AdminModule) updateTag(c *gin.Context) {
	id, ok := paramID(c)
	if !ok {
		return
	}
	next, ok := a.bindTag(c)
	if !ok {
		return
	}

	var tag models.Tag
	if err := a.db.First(&tag, id).Error; err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Tag not found"})
		return
	}

	err := a.db.Model(&tag).Updates(models.Tag{Name: next.Name, Slug: next.Slug}).Error
	if err != nil {
		if isUniqueViolation(err) {
			c.JSON(http.StatusBadRequest, gin.H{"error": msgDuplicateTag})
			return
		}
		log.Printf("tags: rename %d failed: %v", id, err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to update tag"})
		return
	}

	// cached posts still carry the old name
	if a.cache != nil {
		if err := a.cache.ClearAll(); err != nil {
			log.Printf("cache: clearing failed: %v", err)
		}
	}
	c.JSON(http.StatusOK, gin.H{"message": "Tag updated", "redirect": "/admin/tags", "id": tag.ID})
}

// tagPosts lists every post carrying the tag, whatever its state.
func (a *AdminModule) tagPosts(c *gin.Context) {
	id, ok := paramID(c)
	if !ok {
		return
	}

	var tag models.Tag
	if err := a.db.First(&tag, id).Error; err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Tag not found"})
		return
	}

	var posts []models.Post
	err := a.db.Joins("JOIN post_tags ON post_tags.post_id = posts.id").
		Where("post_tags.tag_id = ?", tag.ID).
		Preload("Tags").
		Order("posts.published_at desc").
		Find(&posts).Error
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch posts"})
		return
	}

	now := time.Now()
	views := make([]models.PostView, 0, len(posts))
	for i := range posts {
		p := &posts[i]
		views = append(views, models.NewPostView(p, visibility.Derive(p.Visible, p.PublishedAt, now, visibility.Owner)))
	}
	c.JSON(http.StatusOK, views)
}

func (a *AdminModule) deleteTag(c *gin.Context) {
	id, ok := paramID(c)
	if !ok {
		return
	}

	err := a.db.Transaction(func(tx *gorm.DB) error {
		var tag models.Tag
		if err := tx.First(&tag, id).Error; err != nil {
			return err
		}
		if err := tx.Exec("DELETE FROM post_tags WHERE tag_id = ?", tag.ID).Error; err != nil {
			return err
		}
		return tx.Delete(&tag).Error
	})
	if errors.Is(err, gorm.ErrRecordNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "Tag not found"})
		return
	}
	if err != nil {
		log.Printf("tags: delete %d failed: %v", id, err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to delete tag"})
		return
	}

	// cached posts still list the tag
	if a.cache != nil {
		if err := a.cache.ClearAll(); err != nil {
			log.Printf("cache: clearing failed: %v", err)
		}
	}
	c.JSON(http.StatusOK, gin.H{"message": "Tag deleted", "redirect": "/admin/tags"})
}
