package admin

import (
	"errors"
	"log"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-contrib/sessions"
	"github.com/gin-gonic/gin"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"

	"captain/cache"
	"captain/common"
	"captain/models"
	"captain/ratelimit"
	"captain/validation"
)

const (
	themeCookie    = "admin_theme"
	themeCookieAge = 3600 * 24 * 365
)

type AdminModule struct {
	db        *gorm.DB
	cache     *cache.Cache
	limiter   *ratelimit.KeyedRateLimiter
	mediaDir  string
	validator *validation.Validator
}

// NewAdminModule builds the admin module. pageCache and limiter may be nil.
func NewAdminModule(db *gorm.DB, pageCache *cache.Cache, limiter *ratelimit.KeyedRateLimiter, mediaDir string) *AdminModule {
	return &AdminModule{
		db:        db,
		cache:     pageCache,
		limiter:   limiter,
		mediaDir:  mediaDir,
		validator: validation.New(),
	}
}

func (a *AdminModule) RegisterRoutes(router *gin.Engine) {
	guard := func(c *gin.Context) { c.Next() }
	if a.limiter != nil {
		guard = a.limiter.Middleware()
	}

	router.GET("/setup", a.setupStatus)
	router.POST("/setup", guard, a.setupPost)
	router.POST("/login", guard, a.loginPost)
	router.GET("/logout", a.logout)

	adminGroup := router.Group("/admin")
	adminGroup.Use(a.requireAuth)
	{
		adminGroup.GET("/api/tags", a.apiTags)
		adminGroup.POST("/api/tags", a.createTag)
		adminGroup.PUT("/api/tags/:id", a.updateTag)
		adminGroup.GET("/api/tags/:id/posts", a.tagPosts)

		adminGroup.GET("/api/users", a.apiUsers)
		adminGroup.POST("/api/users", a.createUser)
		adminGroup.PUT("/api/users/:id", a.updateUser)

		adminGroup.GET("/api/media", a.apiMedia)
		adminGroup.POST("/api/media", a.uploadMedia)

		adminGroup.GET("/api/posts", a.listPosts)
		adminGroup.POST("/api/posts", a.createPost)
		adminGroup.GET("/api/posts/:id", a.getPost)
		adminGroup.PUT("/api/posts/:id", a.updatePost)

		adminGroup.GET("/api/pages", a.listPages)
		adminGroup.POST("/api/pages", a.createPage)
		adminGroup.GET("/api/pages/:id", a.getPage)
		adminGroup.PUT("/api/pages/:id", a.updatePage)

		adminGroup.POST("/api/preview", a.preview)

		adminGroup.GET("/api/settings", a.getSettings)
		adminGroup.POST("/api/settings", a.saveSettings)

		adminGroup.GET("/api/menus", a.listMenuItems)
		adminGroup.POST("/api/menus", a.createMenuItem)
		adminGroup.PUT("/api/menus/:id", a.updateMenuItem)
		adminGroup.POST("/menus/:id/move/:direction", a.moveMenuItem)

		adminGroup.DELETE("/tags/:id", a.deleteTag)
		adminGroup.DELETE("/posts/:id", a.deletePost)
		adminGroup.DELETE("/pages/:id", a.deletePage)
		adminGroup.DELETE("/menus/:id", a.deleteMenuItem)
		adminGroup.DELETE("/media/:id", a.deleteMedia)
		adminGroup.DELETE("/users/:id", a.deleteUser)

		adminGroup.POST("/preferences", a.savePreferences)
	}
}

func (a *AdminModule) requireAuth(c *gin.Context) {
	userID, ok := common.CurrentUserID(c)
	if !ok {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
		return
	}

	c.Set(common.SessionUserKey, userID)
	c.Next()
}

func (a *AdminModule) setupDone() (bool, error) {
	var count int64
	if err := a.db.Model(&models.User{}).Count(&count).Error; err != nil {
		return false, err
	}
	return count > 0, nil
}

func (a *AdminModule) setupStatus(c *gin.Context) {
	done, err := a.setupDone()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to check setup"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"setupRequired": !done})
}

type setupRequest struct {
	FirstName string `json:"firstName" form:"firstName" validate:"required"`
	LastName  string `json:"lastName" form:"lastName" validate:"required"`
	Email     string `json:"email" form:"email" validate:"required,email"`
	Password  string `json:"password" form:"password" validate:"required,min=8"`
}

func (a *AdminModule) setupPost(c *gin.Context) {
	done, err := a.setupDone()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to check setup"})
		return
	}
	if done {
		c.JSON(http.StatusForbidden, gin.H{"error": "Setup has already been completed"})
		return
	}

	var req setupRequest
	if err := c.ShouldBind(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request"})
		return
	}
	req.Email = strings.TrimSpace(strings.ToLower(req.Email))

	if fe := a.validator.Fields(req); len(fe) > 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": fe.Error(), "fields": fe})
		return
	}

	passwordHash, err := hashPassword(req.Password)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to create user"})
		return
	}

	user := models.User{
		FirstName:    strings.TrimSpace(req.FirstName),
		LastName:     strings.TrimSpace(req.LastName),
		Email:        req.Email,
		PasswordHash: passwordHash,
	}
	if err := a.db.Create(&user).Error; err != nil {
		log.Printf("setup: creating user failed: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to create user"})
		return
	}

	session := sessions.Default(c)
	session.Set(common.SessionUserKey, user.ID)
	session.Save()

	c.JSON(http.StatusOK, gin.H{"message": "Setup complete", "redirect": "/admin"})
}

type loginRequest struct {
	Email    string `json:"email" form:"email"`
	Password string `json:"password" form:"password"`
}

func (a *AdminModule) loginPost(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBind(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request"})
		return
	}

	var user models.User
	email := strings.TrimSpace(strings.ToLower(req.Email))
	if err := a.db.Where("email = ?", email).First(&user).Error; err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid email or password"})
		return
	}

	if !checkPasswordHash(req.Password, user.PasswordHash) {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid email or password"})
		return
	}

	session := sessions.Default(c)
	session.Set(common.SessionUserKey, user.ID)
	session.Save()

	c.JSON(http.StatusOK, gin.H{"message": "Logged in", "redirect": "/admin"})
}

func (a *AdminModule) logout(c *gin.Context) {
	session := sessions.Default(c)
	session.Clear()
	session.Options(sessions.Options{Path: "/", MaxAge: -1})
	session.Save()

	c.JSON(http.StatusOK, gin.H{"message": "Logged out", "redirect": "/login"})
}

func (a *AdminModule) apiUsers(c *gin.Context) {
	var users []models.User
	if err := a.db.Order("id").Find(&users).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch users"})
		return
	}
	c.JSON(http.StatusOK, users)
}

const msgDuplicateEmail = "A user with the same email already exists"

// createUser adds another admin account. It takes the same fields as setup.
func (a *AdminModule) createUser(c *gin.Context) {
	var req setupRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request"})
		return
	}
	req.Email = strings.TrimSpace(strings.ToLower(req.Email))
	req.FirstName = strings.TrimSpace(req.FirstName)
	req.LastName = strings.TrimSpace(req.LastName)

	if fe := a.validator.Fields(req); len(fe) > 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": fe.Error(), "fields": fe})
		return
	}

	passwordHash, err := hashPassword(req.Password)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to create user"})
		return
	}

	user := models.User{
		FirstName:    req.FirstName,
		LastName:     req.LastName,
		Email:        req.Email,
		PasswordHash: passwordHash,
	}
	if err := a.db.Create(&user).Error; err != nil {
		if isUniqueViolation(err) {
			c.JSON(http.StatusBadRequest, gin.H{"error": msgDuplicateEmail})
			return
		}
		log.Printf("users: create failed: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to create user"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "User created", "redirect": "/admin/users", "id": user.ID})
}

type userUpdateRequest struct {
	FirstName string `json:"firstName" validate:"required"`
	LastName  string `json:"lastName" validate:"required"`
	Email     string `json:"email" validate:"required,email"`
	Password  string `json:"password" validate:"omitempty,min=8"`
}

// updateUser edits an account. An empty password keeps the current one.
func (a *AdminModule) updateUser(c *gin.Context) {
	id, ok := paramID(c)
	if !ok {
		return
	}

	var req userUpdateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request"})
		return
	}
	req.Email = strings.TrimSpace(strings.ToLower(req.Email))
	req.FirstName = strings.TrimSpace(req.FirstName)
	req.LastName = strings.TrimSpace(req.LastName)

	if fe := a.validator.Fields(req); len(fe) > 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": fe.Error(), "fields": fe})
		return
	}

	var user models.User
	if err := a.db.First(&user, id).Error; err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "User not found"})
		return
	}

	updates := models.User{FirstName: req.FirstName, LastName: req.LastName, Email: req.Email}
	if req.Password != "" {
		passwordHash, err := hashPassword(req.Password)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to update user"})
			return
		}
		updates.PasswordHash = passwordHash
	}

	if err := a.db.Model(&user).Updates(updates).Error; err != nil {
		if isUniqueViolation(err) {
			c.JSON(http.StatusBadRequest, gin.H{"error": msgDuplicateEmail})
			return
		}
		log.Printf("users: update %d failed: %v", id, err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to update user"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "User updated", "redirect": "/admin/users", "id": user.ID})
}

func (a *AdminModule) deleteUser(c *gin.Context) {
	id, ok := paramID(c)
	if !ok {
		return
	}

	current, _ := common.CurrentUserID(c)
	if id == current {
		c.JSON(http.StatusBadRequest, gin.H{"error": "You cannot delete your own account"})
		return
	}

	result := a.db.Delete(&models.User{}, id)
	if result.Error != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to delete user"})
		return
	}
	if result.RowsAffected == 0 {
		c.JSON(http.StatusNotFound, gin.H{"error": "User not found"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "User deleted", "redirect": "/admin/users"})
}

type preferencesRequest struct {
	Theme string `json:"theme" form:"theme"`
}

func (a *AdminModule) savePreferences(c *gin.Context) {
	var req preferencesRequest
	if err := c.ShouldBind(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request"})
		return
	}
	if req.Theme != "light" && req.Theme != "dark" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Unknown theme"})
		return
	}

	c.SetCookie(themeCookie, req.Theme, themeCookieAge, "/", "", false, false)
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// paramID parses the :id route parameter, answering 400 itself on failure.
func paramID(c *gin.Context) (uint, bool) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil || id == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid ID"})
		return 0, false
	}
	return uint(id), true
}

// isUniqueViolation reports whether err comes from a UNIQUE constraint.
func isUniqueViolation(err error) bool {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}

func (a *AdminModule) clearCache(slugs ...string) {
	if a.cache == nil {
		return
	}
	if err := a.cache.Clear(slugs...); err != nil {
		log.Printf("cache: clearing %v failed: %v", slugs, err)
	}
}

func hashPassword(password string) (string, error) {
	bytes, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	return string(bytes), err
}

// HashPassword is used by the CLI to create users outside the setup flow.
func HashPassword(password string) (string, error) {
	return hashPassword(password)
}

func checkPasswordHash(password, hash string) bool {
	err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(password))
	return err == nil
}
