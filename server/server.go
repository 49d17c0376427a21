// Package server assembles the admin and public modules into one router.
package server

import (
	"context"
	"errors"
	"log"
	"net/http"
	"time"

	"github.com/gin-contrib/sessions"
	"github.com/gin-contrib/sessions/cookie"
	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"captain/admin"
	"captain/blog"
	"captain/cache"
	"captain/common"
	"captain/config"
	"captain/ratelimit"
)

const sessionName = "captain-session"

// New builds the router serving both the admin API and the public blog.
func New(db *gorm.DB, cfg config.Config) *gin.Engine {
	router := gin.New()
	router.Use(gin.Logger(), gin.Recovery())

	store := cookie.NewStore([]byte(cfg.SessionSecret))
	store.Options(sessions.Options{
		Path:     "/",
		MaxAge:   86400 * 7,
		HttpOnly: true,
		Secure:   cfg.SecureCookies,
		SameSite: http.SameSiteLaxMode,
	})
	router.Use(sessions.Sessions(sessionName, store))
	router.Use(common.CurrentUserMiddleware())

	pageCache := cache.New(cfg.CacheDir, cfg.CacheTTL)
	limiter := ratelimit.New(cfg.LoginRate, cfg.LoginBurst)

	adminModule := admin.NewAdminModule(db, pageCache, limiter, cfg.MediaDir)
	adminModule.RegisterRoutes(router)

	blogModule := blog.NewBlogModule(db, pageCache).WithSiteURL(cfg.SiteURL)
	blogModule.RegisterRoutes(router)

	router.Static("/media", cfg.MediaDir)

	router.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	return router
}

// SweepCache drops expired cache files every interval until ctx is done.
func SweepCache(ctx context.Context, c *cache.Cache, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := c.ClearOld(); err != nil {
				log.Printf("cache: sweep failed: %v", err)
			}
		}
	}
}

// Run serves handler on addr until ctx is cancelled, then shuts down.
func Run(ctx context.Context, addr string, handler http.Handler) error {
	srv := &http.Server{
		Addr:         addr,
		Handler:      handler,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Printf("Starting server on %s...", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Printf("shutdown error: %v", err)
		return err
	}
	return <-errCh
}
