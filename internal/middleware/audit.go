// audit.go provides the Gin middleware that records mutating requests on an entity type
// to the audit log. The record is derived and written after the handler has produced the
// response, on a detached goroutine, so auditing never delays or alters what the client sees.
package middleware

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/elitarte/elitarte-backend/internal/audit"
	"github.com/elitarte/elitarte-backend/internal/config"
	"github.com/elitarte/elitarte-backend/internal/safego"
)

const (
	// OldValuesKey is the context key a handler sets to the entity's pre-mutation
	// state (map[string]interface{}) so it lands in the entry's old values.
	OldValuesKey = "audit_old_values"

	defaultAuditWriteTimeout = 5 * time.Second
	defaultMaxAuditBodyBytes = 1 << 20
)

// responseRecorder forwards every write to the client and keeps a copy of what
// was sent.
type responseRecorder struct {
	gin.ResponseWriter
	body bytes.Buffer
}

func newResponseRecorder(w gin.ResponseWriter) *responseRecorder {
	return &responseRecorder{ResponseWriter: w}
}

// Write implements io.Writer
func (w *responseRecorder) Write(b []byte) (int, error) {
	n, err := w.ResponseWriter.Write(b)
	w.body.Write(b[:n])
	return n, err
}

// WriteString implements io.StringWriter
func (w *responseRecorder) WriteString(s string) (int, error) {
	n, err := w.ResponseWriter.WriteString(s)
	w.body.WriteString(s[:n])
	return n, err
}

// CapturedBody returns the bytes sent to the client so far
func (w *responseRecorder) CapturedBody() []byte {
	return w.body.Bytes()
}

// capturedRequest is everything the detached writer needs, copied off the gin
// context before the handler chain returns the context to its pool.
type capturedRequest struct {
	verb       audit.Verb
	paramID    string
	userID     string
	ipAddress  string
	userAgent  string
	reqBody    []byte
	respBody   []byte
	oldValues  map[string]interface{}
	entityType string
}

// AuditMiddleware records POST, PUT, PATCH and DELETE requests on entityType.
// Other methods and any path containing "audit-logs" pass through untouched.
//
// An entry is written only when the entity id (route param ":id", else "id" or
// "data.id" in the JSON response) and the acting user ("user_id" set by
// AuthMiddleware) are both known. Failed mutations are recorded too, unless
// cfg.SkipFailedRequests is set. A body larger than cfg.MaxBodyBytes is
// rejected with 413 before the handler runs.
func AuditMiddleware(entityType string, svc *audit.Service, cfg *config.AuditConfig) gin.HandlerFunc {
	timeout := defaultAuditWriteTimeout
	maxBody := int64(defaultMaxAuditBodyBytes)
	skipFailed := false
	enabled := svc != nil
	if cfg != nil {
		enabled = enabled && cfg.Enabled
		skipFailed = cfg.SkipFailedRequests
		if cfg.WriteTimeout > 0 {
			timeout = cfg.WriteTimeout
		}
		if cfg.MaxBodyBytes > 0 {
			maxBody = cfg.MaxBodyBytes
		}
	}

	return func(c *gin.Context) {
		verb, mutating := audit.VerbForMethod(c.Request.Method)
		if !enabled || !mutating || strings.Contains(c.Request.URL.Path, "audit-logs") {
			c.Next()
			return
		}

		var reqBody []byte
		if c.Request.Body != nil {
			var err error
			reqBody, err = io.ReadAll(http.MaxBytesReader(c.Writer, c.Request.Body, maxBody))
			if err != nil {
				abortUnreadableBody(c, err)
				return
			}
			c.Request.Body = io.NopCloser(bytes.NewReader(reqBody))
		}

		rec := newResponseRecorder(c.Writer)
		c.Writer = rec

		c.Next()

		if rec.Status() >= http.StatusBadRequest && skipFailed {
			return
		}

		captured := capturedRequest{
			verb:       verb,
			paramID:    c.Param("id"),
			userID:     c.GetString(UserIDKey),
			ipAddress:  c.ClientIP(),
			userAgent:  c.Request.UserAgent(),
			reqBody:    reqBody,
			respBody:   bytes.Clone(rec.CapturedBody()),
			entityType: entityType,
		}
		if v, ok := c.Get(OldValuesKey); ok {
			captured.oldValues, _ = v.(map[string]interface{})
		}

		safego.Go("audit-capture", func() {
			ctx, cancel := context.WithTimeout(context.Background(), timeout)
			defer cancel()
			writeCaptured(ctx, svc, captured)
		})
	}
}

func abortUnreadableBody(c *gin.Context, err error) {
	status, msg := http.StatusBadRequest, "Invalid request body"
	var tooLarge *http.MaxBytesError
	if errors.As(err, &tooLarge) {
		status, msg = http.StatusRequestEntityTooLarge, "Request body too large"
	}
	c.AbortWithStatusJSON(status, gin.H{"success": false, "error": msg})
}

// writeCaptured derives the entry for r and records it. Requests without a
// resolvable entity id or actor produce nothing.
func writeCaptured(ctx context.Context, svc *audit.Service, r capturedRequest) {
	entityID := r.paramID
	if entityID == "" {
		entityID = entityIDFromBody(r.respBody)
	}
	if entityID == "" || r.userID == "" {
		return
	}

	var newValues map[string]interface{}
	if r.verb != audit.VerbDelete {
		newValues = jsonObject(r.reqBody)
	}

	userID := r.userID
	entry := audit.Entry{
		UserID:     &userID,
		Action:     audit.Action(r.entityType, r.verb),
		EntityType: r.entityType,
		EntityID:   entityID,
		OldValues:  r.oldValues,
		NewValues:  newValues,
	}
	if r.ipAddress != "" {
		entry.IPAddress = &r.ipAddress
	}
	if r.userAgent != "" {
		entry.UserAgent = &r.userAgent
	}
	svc.Log(ctx, entry, nil)
}

// entityIDFromBody returns the "id" of a JSON response body, falling back to
// "data.id" for enveloped responses.
func entityIDFromBody(body []byte) string {
	obj := jsonObject(body)
	if obj == nil {
		return ""
	}
	if id := idString(obj["id"]); id != "" {
		return id
	}
	if data, ok := obj["data"].(map[string]interface{}); ok {
		return idString(data["id"])
	}
	return ""
}

func idString(v interface{}) string {
	switch id := v.(type) {
	case string:
		return id
	case json.Number:
		return id.String()
	default:
		return ""
	}
}

// jsonObject decodes body as a JSON object with sensitive keys masked.
// Anything that is not an object yields nil.
func jsonObject(body []byte) map[string]interface{} {
	if len(bytes.TrimSpace(body)) == 0 {
		return nil
	}
	dec := json.NewDecoder(bytes.NewReader(body))
	dec.UseNumber()
	var obj map[string]interface{}
	if err := dec.Decode(&obj); err != nil {
		return nil
	}
	var v interface{} = obj
	redactValue(&v)
	return obj
}

func redactValue(v *interface{}) {
	switch raw := (*v).(type) {
	case map[string]interface{}:
		for key, val := range raw {
			if isSensitiveKey(key) {
				raw[key] = "***"
				continue
			}
			vv := val
			redactValue(&vv)
			raw[key] = vv
		}
	case []interface{}:
		for i, val := range raw {
			vv := val
			redactValue(&vv)
			raw[i] = vv
		}
	}
}

func isSensitiveKey(key string) bool {
	switch strings.ToLower(strings.TrimSpace(key)) {
	case "password",
		"password_confirmation",
		"passwordconfirmation",
		"current_password",
		"new_password",
		"password_hash",
		"token",
		"access_token",
		"refresh_token",
		"secret":
		return true
	default:
		return false
	}
}
