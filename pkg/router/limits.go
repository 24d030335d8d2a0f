package router

import (
	"net/http"
	"net/url"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"
)

func rateLimit(perSecond float64) rate.Limit {
	return rate.Limit(perSecond)
}

// maxBodySize caps request bodies; binding fails once the cap is exceeded
func maxBodySize(n int64) gin.HandlerFunc {
	return func(c *gin.Context) {
		if n > 0 && c.Request.Body != nil {
			c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, n)
		}
		c.Next()
	}
}

// originChecker accepts WebSocket upgrades from the allowed origins
func originChecker(allowed []string) func(r *http.Request) bool {
	set := make(map[string]bool, len(allowed))
	for _, o := range allowed {
		if o == "*" {
			return nil
		}
		set[o] = true
	}
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" {
			return true
		}
		if set[origin] {
			return true
		}
		u, err := url.Parse(origin)
		return err == nil && u.Host == r.Host
	}
}
