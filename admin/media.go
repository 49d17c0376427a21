package admin

import (
	"log"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"captain/models"
)

func (a *AdminModule) apiMedia(c *gin.Context) {
	var media []models.Media
	if err := a.db.Order("created_at desc").Find(&media).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch media"})
		return
	}
	c.JSON(http.StatusOK, media)
}

// uploadMedia stores the file under a random name in the media directory;
// the original name is kept for display.
func (a *AdminModule) uploadMedia(c *gin.Context) {
	file, err := c.FormFile("file")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "No file uploaded"})
		return
	}

	if err := os.MkdirAll(a.mediaDir, 0755); err != nil {
		log.Printf("media: creating %s failed: %v", a.mediaDir, err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to store file"})
		return
	}

	name := filepath.Base(file.Filename)
	stored := uuid.NewString() + strings.ToLower(filepath.Ext(name))
	if err := c.SaveUploadedFile(file, filepath.Join(a.mediaDir, stored)); err != nil {
		log.Printf("media: saving %s failed: %v", name, err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to store file"})
		return
	}

	media := models.Media{
		Name:        name,
		Path:        stored,
		Size:        file.Size,
		Description: c.PostForm("description"),
	}
	if err := a.db.Create(&media).Error; err != nil {
		os.Remove(filepath.Join(a.mediaDir, stored))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to save media"})
		return
	}

	c.JSON(http.StatusOK, media)
}

func (a *AdminModule) deleteMedia(c *gin.Context) {
	id, ok := paramID(c)
	if !ok {
		return
	}

	var media models.Media
	if err := a.db.First(&media, id).Error; err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Media not found"})
		return
	}
	if err := a.db.Delete(&media).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to delete media"})
		return
	}

	if err := os.Remove(filepath.Join(a.mediaDir, media.Path)); err != nil && !os.IsNotExist(err) {
		log.Printf("media: removing %s failed: %v", media.Path, err)
	}

	c.JSON(http.StatusOK, gin.H{"message": "Media deleted", "redirect": "/admin/media"})
}
