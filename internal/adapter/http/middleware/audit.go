package middleware

import (
	"encoding/json"
	"net/http"
	"time"

	"coin-ledger/internal/core/domain"
	"coin-ledger/internal/core/ports"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// AuditLog creates an audit middleware that logs successful ledger writes.
// Routes are matched on their template so path parameters do not matter.
func AuditLog(auditSvc ports.AuditService) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if c.Writer.Status() < 200 || c.Writer.Status() >= 300 {
			return
		}

		action, resourceType := mapRouteToAction(c.FullPath(), c.Request.Method)
		if action == "" {
			return
		}

		actor := c.GetString(CtxUserID)
		if actor == "" {
			actor = c.GetString(CtxClientID)
		}

		details, _ := json.Marshal(map[string]interface{}{
			"method": c.Request.Method,
			"path":   c.Request.URL.Path,
			"status": c.Writer.Status(),
		})

		auditSvc.Log(c.Request.Context(), &domain.AuditLog{
			ID:           uuid.New(),
			ActorID:      actor,
			Action:       action,
			ResourceType: resourceType,
			ResourceID:   c.GetString(CtxResourceID),
			IPAddress:    c.ClientIP(),
			Details:      string(details),
			CreatedAt:    time.Now(),
		})
	}
}

func mapRouteToAction(route, method string) (domain.AuditAction, string) {
	if method != http.MethodPost {
		return "", ""
	}
	switch route {
	case "/api/v1/coins/spend":
		return domain.AuditActionSpend, "transaction"
	case "/api/v1/coins/rewards/claim":
		return domain.AuditActionClaimReward, "transaction"
	case "/internal/v1/purchases":
		return domain.AuditActionPurchase, "transaction"
	case "/internal/v1/credits":
		return domain.AuditActionCredit, "transaction"
	case "/internal/v1/jobs/:job":
		return domain.AuditActionRunJob, "job"
	}
	return "", ""
}
