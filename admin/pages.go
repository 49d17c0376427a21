package admin

import (
	"errors"
	"log"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"captain/models"
)

type pageRequest struct {
	Title   string `json:"title" validate:"required"`
	Slug    string `json:"slug" validate:"required,slug"`
	Content string `json:"content"`
	Visible bool   `json:"visible"`
}

const msgDuplicatePageSlug = "A page with the same slug already exists"

func (a *AdminModule) bindPage(c *gin.Context) (*pageRequest, bool) {
	var req pageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request"})
		return nil, false
	}
	req.Title = strings.TrimSpace(req.Title)
	req.Slug = strings.TrimSpace(req.Slug)

	if fe := a.validator.Fields(req); len(fe) > 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": fe.Error(), "fields": fe})
		return nil, false
	}
	return &req, true
}

func (a *AdminModule) listPages(c *gin.Context) {
	var pages []models.Page
	if err := a.db.Order("title").Find(&pages).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch pages"})
		return
	}
	c.JSON(http.StatusOK, pages)
}

func (a *AdminModule) getPage(c *gin.Context) {
	id, ok := paramID(c)
	if !ok {
		return
	}

	var page models.Page
	if err := a.db.First(&page, id).Error; err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Page not found"})
		return
	}
	c.JSON(http.StatusOK, page)
}

func (a *AdminModule) createPage(c *gin.Context) {
	req, ok := a.bindPage(c)
	if !ok {
		return
	}

	page := models.Page{
		Title:   req.Title,
		Slug:    req.Slug,
		Content: req.Content,
		Visible: req.Visible,
	}
	if err := a.db.Create(&page).Error; err != nil {
		if isUniqueViolation(err) {
			c.JSON(http.StatusBadRequest, gin.H{"error": msgDuplicatePageSlug})
			return
		}
		log.Printf("pages: create failed: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to create page"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Page created", "redirect": "/admin/pages", "id": page.ID})
}

func (a *AdminModule) updatePage(c *gin.Context) {
	id, ok := paramID(c)
	if !ok {
		return
	}

	var page models.Page
	if err := a.db.First(&page, id).Error; err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Page not found"})
		return
	}

	req, ok := a.bindPage(c)
	if !ok {
		return
	}

	page.Title = req.Title
	page.Slug = req.Slug
	page.Content = req.Content
	page.Visible = req.Visible

	if err := a.db.Save(&page).Error; err != nil {
		if isUniqueViolation(err) {
			c.JSON(http.StatusBadRequest, gin.H{"error": msgDuplicatePageSlug})
			return
		}
		log.Printf("pages: update %d failed: %v", id, err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to update page"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Page updated", "redirect": "/admin/pages", "id": page.ID})
}

// deletePage also removes the menu entries that link to the page.
func (a *AdminModule) deletePage(c *gin.Context) {
	id, ok := paramID(c)
	if !ok {
		return
	}

	err := a.db.Transaction(func(tx *gorm.DB) error {
		var page models.Page
		if err := tx.First(&page, id).Error; err != nil {
			return err
		}
		if err := tx.Where("page_id = ?", page.ID).Delete(&models.MenuItem{}).Error; err != nil {
			return err
		}
		return tx.Delete(&page).Error
	})
	if errors.Is(err, gorm.ErrRecordNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "Page not found"})
		return
	}
	if err != nil {
		log.Printf("pages: delete %d failed: %v", id, err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to delete page"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Page deleted", "redirect": "/admin/pages"})
}
