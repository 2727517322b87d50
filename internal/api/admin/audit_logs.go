// audit_logs.go implements the audit trail endpoints: the admin-wide query, the
// per-entity history and the manual retention sweep.
package admin

import (
	"context"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/elitarte/elitarte-backend/internal/audit"
	"github.com/elitarte/elitarte-backend/internal/jobs"
	"github.com/elitarte/elitarte-backend/internal/safego"
)

const (
	defaultAuditPageSize = audit.DefaultLimit
	maxAuditPageSize     = 100
)

// Cleaner runs one retention sweep. *jobs.LogCleanup satisfies it.
type Cleaner interface {
	ManualCleanup(ctx context.Context) jobs.CleanupResult
}

// AuditLogHandlers handles the audit log endpoints
type AuditLogHandlers struct {
	audit   *audit.Service
	cleanup Cleaner
}

// NewAuditLogHandlers creates a new AuditLogHandlers instance
func NewAuditLogHandlers(svc *audit.Service, cleanup Cleaner) *AuditLogHandlers {
	return &AuditLogHandlers{audit: svc, cleanup: cleanup}
}

// parsePagination reads limit and offset from the query string. limit is clamped
// to [1, 100] with a default of 50; offset defaults to 0 and is never negative.
func parsePagination(c *gin.Context) (limit, offset int) {
	limit, err := strconv.Atoi(c.DefaultQuery("limit", strconv.Itoa(defaultAuditPageSize)))
	if err != nil {
		limit = defaultAuditPageSize
	}
	if limit < 1 {
		limit = 1
	}
	if limit > maxAuditPageSize {
		limit = maxAuditPageSize
	}

	offset, err = strconv.Atoi(c.DefaultQuery("offset", "0"))
	if err != nil || offset < 0 {
		offset = 0
	}
	return limit, offset
}

func optionalQuery(c *gin.Context, key string) *string {
	if v := c.Query(key); v != "" {
		return &v
	}
	return nil
}

// respondWithPage runs q and writes the paginated envelope. A panic in the read
// path is answered with a translated 500.
func (h *AuditLogHandlers) respondWithPage(c *gin.Context, q audit.Query) {
	var page audit.Page
	ok := safego.Run("audit-logs-query", func() {
		page = h.audit.GetLogs(c.Request.Context(), q)
	})
	if !ok {
		c.JSON(http.StatusInternalServerError, gin.H{
			"success": false,
			"error":   translate(c, msgAuditLogsFetchFailed),
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"data":    page.Data,
		"pagination": gin.H{
			"total":  page.Count,
			"limit":  q.Limit,
			"offset": q.Offset,
		},
	})
}

// @Summary      List audit logs
// @Description  Query the audit trail. All filters are optional and combined with AND. Admin only.
// @Tags         Audit
// @Security     Bearer
// @Produce      json
// @Param        entityType  query  string  false  "Entity type (e.g. user)"
// @Param        entityId    query  string  false  "Entity ID"
// @Param        userId      query  string  false  "Acting user ID"
// @Param        limit       query  int     false  "Page size, 1-100 (default 50)"
// @Param        offset      query  int     false  "Offset (default 0)"
// @Success      200  {object}  map[string]interface{}  "success, data: []models.AuditLogWithUser, pagination"
// @Failure      401  {object}  map[string]interface{}  "Unauthorized"
// @Failure      403  {object}  map[string]interface{}  "Forbidden"
// @Failure      500  {object}  map[string]interface{}  "Internal server error"
// @Router       /api/v1/audit-logs [get]
// ListAuditLogsHandler lists audit entries matching the query filters
// GET /api/v1/audit-logs?entityType=&entityId=&userId=&limit=&offset=
func (h *AuditLogHandlers) ListAuditLogsHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		limit, offset := parsePagination(c)
		h.respondWithPage(c, audit.Query{
			EntityType: optionalQuery(c, "entityType"),
			EntityID:   optionalQuery(c, "entityId"),
			UserID:     optionalQuery(c, "userId"),
			Limit:      limit,
			Offset:     offset,
		})
	}
}

// @Summary      Entity audit history
// @Description  List the audit trail of one entity. Any authenticated user.
// @Tags         Audit
// @Security     Bearer
// @Produce      json
// @Param        entityType  path   string  true   "Entity type"
// @Param        entityId    path   string  true   "Entity ID"
// @Param        limit       query  int     false  "Page size, 1-100 (default 50)"
// @Param        offset      query  int     false  "Offset (default 0)"
// @Success      200  {object}  map[string]interface{}  "success, data: []models.AuditLogWithUser, pagination"
// @Failure      401  {object}  map[string]interface{}  "Unauthorized"
// @Failure      500  {object}  map[string]interface{}  "Internal server error"
// @Router       /api/v1/audit-logs/{entityType}/{entityId} [get]
// EntityAuditLogsHandler lists the audit entries of a single entity
// GET /api/v1/audit-logs/:entityType/:entityId
func (h *AuditLogHandlers) EntityAuditLogsHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		entityType := c.Param("entityType")
		entityID := c.Param("entityId")
		limit, offset := parsePagination(c)
		h.respondWithPage(c, audit.Query{
			EntityType: &entityType,
			EntityID:   &entityID,
			Limit:      limit,
			Offset:     offset,
		})
	}
}

// @Summary      Run audit log cleanup
// @Description  Apply the retention policy immediately: session entries past the session window and all entries past the general window are removed. Admin only.
// @Tags         Audit
// @Security     Bearer
// @Produce      json
// @Success      200  {object}  map[string]interface{}  "success, message, deleted: {sessionLogs, otherLogs, total}"
// @Failure      401  {object}  map[string]interface{}  "Unauthorized"
// @Failure      403  {object}  map[string]interface{}  "Forbidden"
// @Failure      500  {object}  map[string]interface{}  "Internal server error"
// @Router       /api/v1/audit-logs/cleanup/manual [post]
// ManualCleanupHandler runs one retention sweep and reports the removed rows
// POST /api/v1/audit-logs/cleanup/manual
func (h *AuditLogHandlers) ManualCleanupHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		var result jobs.CleanupResult
		ok := safego.Run("audit-logs-cleanup", func() {
			result = h.cleanup.ManualCleanup(c.Request.Context())
		})
		if !ok {
			c.JSON(http.StatusInternalServerError, gin.H{
				"success": false,
				"error":   translate(c, msgCleanupFailed),
			})
			return
		}

		c.JSON(http.StatusOK, gin.H{
			"success": true,
			"message": translate(c, msgCleanupCompleted),
			"deleted": gin.H{
				"sessionLogs": result.SessionLogs,
				"otherLogs":   result.OtherLogs,
				"total":       result.Total(),
			},
		})
	}
}
