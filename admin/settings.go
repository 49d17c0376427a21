package admin

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"captain/models"
)

type settingsRequest struct {
	Title        string `json:"title" validate:"required"`
	Subtitle     string `json:"subtitle"`
	Timezone     string `json:"timezone" validate:"required"`
	Theme        string `json:"theme"`
	PostsPerPage int    `json:"postsPerPage" validate:"gte=1,lte=100"`
}

func (a *AdminModule) loadSettings() (models.Settings, error) {
	var settings models.Settings
	err := a.db.FirstOrCreate(&settings, models.Settings{ID: 1}).Error
	return settings, err
}

func (a *AdminModule) getSettings(c *gin.Context) {
	settings, err := a.loadSettings()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to load settings"})
		return
	}
	c.JSON(http.StatusOK, settings)
}

func (a *AdminModule) saveSettings(c *gin.Context) {
	var req settingsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request"})
		return
	}
	req.Title = strings.TrimSpace(req.Title)
	req.Timezone = strings.TrimSpace(req.Timezone)

	fe := a.validator.Fields(req)
	if req.Timezone != "" {
		if _, err := time.LoadLocation(req.Timezone); err != nil {
			fe.Add("timezone", "is not a known timezone")
		}
	}
	if len(fe) > 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": fe.Error(), "fields": fe})
		return
	}

	settings, err := a.loadSettings()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to load settings"})
		return
	}

	settings.Title = req.Title
	settings.Subtitle = req.Subtitle
	settings.Timezone = req.Timezone
	settings.Theme = req.Theme
	settings.PostsPerPage = req.PostsPerPage

	if err := a.db.Save(&settings).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to save settings"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Settings saved", "redirect": "/admin/settings"})
}
