package admin

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"captain/forms"
	"captain/models"
)

var (
	errAtTop    = errors.New("menu item already at top")
	errAtBottom = errors.New("menu item already at bottom")
)

func (a *AdminModule) listMenuItems(c *gin.Context) {
	var items []models.MenuItem
	if err := a.db.Preload("Page").Order("position").Find(&items).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch menu items"})
		return
	}

	views := make([]models.MenuItemView, 0, len(items))
	for i := range items {
		views = append(views, models.NewMenuItemView(&items[i]))
	}
	c.JSON(http.StatusOK, views)
}

// bindMenuItem reads and validates a menu item, answering 400 itself when
// the request is unusable.
func (a *AdminModule) bindMenuItem(c *gin.Context) (*forms.MenuItemForm, bool) {
	var req forms.MenuItemForm
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request"})
		return nil, false
	}
	req.Label = strings.TrimSpace(req.Label)
	req.URL = strings.TrimSpace(req.URL)

	if fe := req.Validate(); len(fe) > 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": fe.Error(), "fields": fe})
		return nil, false
	}

	if req.PageID != nil {
		var page models.Page
		if err := a.db.First(&page, *req.PageID).Error; err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Page not found"})
			return nil, false
		}
	}
	return &req, true
}

func (a *AdminModule) createMenuItem(c *gin.Context) {
	req, ok := a.bindMenuItem(c)
	if !ok {
		return
	}

	var maxPosition int
	a.db.Model(&models.MenuItem{}).Select("COALESCE(MAX(position), -1)").Scan(&maxPosition)

	item := models.MenuItem{
		Label:    req.Label,
		URL:      req.URL,
		PageID:   req.PageID,
		Position: maxPosition + 1,
	}
	if err := a.db.Create(&item).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to create menu item"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Menu item created", "redirect": "/admin/menus", "id": item.ID})
}

// updateMenuItem changes the label and target of an item. Its position is
// only changed by moveMenuItem.
func (a *AdminModule) updateMenuItem(c *gin.Context) {
	id, ok := paramID(c)
	if !ok {
		return
	}
	req, ok := a.bindMenuItem(c)
	if !ok {
		return
	}

	var item models.MenuItem
	if err := a.db.First(&item, id).Error; err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Menu item not found"})
		return
	}

	err := a.db.Model(&item).Select("Label", "URL", "PageID").Updates(models.MenuItem{
		Label:  req.Label,
		URL:    req.URL,
		PageID: req.PageID,
	}).Error
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to update menu item"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Menu item updated", "redirect": "/admin/menus", "id": item.ID})
}

// moveMenuItem swaps the item with its neighbour in the given direction.
func (a *AdminModule) moveMenuItem(c *gin.Context) {
	id, ok := paramID(c)
	if !ok {
		return
	}
	direction := c.Param("direction")
	if direction != "up" && direction != "down" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid direction"})
		return
	}

	err := a.db.Transaction(func(tx *gorm.DB) error {
		var current models.MenuItem
		if err := tx.First(&current, id).Error; err != nil {
			return err
		}

		var adjacent models.MenuItem
		var err error
		if direction == "up" {
			err = tx.Where("position < ?", current.Position).Order("position DESC").First(&adjacent).Error
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return errAtTop
			}
		} else {
			err = tx.Where("position > ?", current.Position).Order("position ASC").First(&adjacent).Error
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return errAtBottom
			}
		}
		if err != nil {
			return err
		}

		currentPos, adjacentPos := current.Position, adjacent.Position
		if err := tx.Model(&current).Update("position", adjacentPos).Error; err != nil {
			return err
		}
		return tx.Model(&adjacent).Update("position", currentPos).Error
	})

	switch {
	case errors.Is(err, errAtTop):
		c.JSON(http.StatusBadRequest, gin.H{"error": "Item already at top"})
	case errors.Is(err, errAtBottom):
		c.JSON(http.StatusBadRequest, gin.H{"error": "Item already at bottom"})
	case errors.Is(err, gorm.ErrRecordNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "Menu item not found"})
	case err != nil:
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to update position"})
	default:
		c.JSON(http.StatusOK, gin.H{"message": "Menu item moved successfully", "redirect": "/admin/menus"})
	}
}

func (a *AdminModule) deleteMenuItem(c *gin.Context) {
	id, ok := paramID(c)
	if !ok {
		return
	}

	result := a.db.Delete(&models.MenuItem{}, id)
	if result.Error != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to delete menu item"})
		return
	}
	if result.RowsAffected == 0 {
		c.JSON(http.StatusNotFound, gin.H{"error": "Menu item not found"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Menu item deleted", "redirect": "/admin/menus"})
}
