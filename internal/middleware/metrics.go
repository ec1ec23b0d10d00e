package middleware

import (
	"time"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/internship-portal-api/internal/service"
	appErrors "github.com/noah-isme/internship-portal-api/pkg/errors"
	"github.com/noah-isme/internship-portal-api/pkg/response"
)

// Metrics returns middleware that captures request metrics and counts
// requests refused by a lifecycle rule.
func Metrics(metricsSvc *service.MetricsService) gin.HandlerFunc {
	return func(c *gin.Context) {
		if metricsSvc == nil {
			c.Next()
			return
		}
		start := time.Now()
		c.Next()
		duration := time.Since(start)
		status := c.Writer.Status()
		path := c.FullPath()
		if path == "" {
			path = c.Request.URL.Path
		}
		metricsSvc.ObserveHTTPRequest(c.Request.Method, path, status, duration)
		if code := c.GetString(response.ErrorCodeKey); isDomainRejection(code) {
			metricsSvc.RecordRejection(code)
		}
	}
}

func isDomainRejection(code string) bool {
	switch code {
	case appErrors.ErrInvalidTransition.Code,
		appErrors.ErrDuplicate.Code,
		appErrors.ErrCapacity.Code,
		appErrors.ErrIneligible.Code,
		appErrors.ErrLocked.Code,
		appErrors.ErrForbidden.Code:
		return true
	}
	return false
}
