package ports

import (
	"github.com/gin-gonic/gin"
)

type HTTPHandler interface {
	TrackEvent(c *gin.Context)
	TrackToolUsage(c *gin.Context)
	TrackPayment(c *gin.Context)
	CreateSubscription(c *gin.Context)
	GetDashboard(c *gin.Context)
	GetToolAnalytics(c *gin.Context)
	GetRevenueSummary(c *gin.Context)
	Health(c *gin.Context)
}
