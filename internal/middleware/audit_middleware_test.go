package middleware

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"

	"meap/internal/models"
)

func TestClientIPPrefersForwardedFor(t *testing.T) {
	c, _ := newTestContext(http.MethodPost, "/api/v1/entities")
	c.Request.Header.Set("X-Forwarded-For", "203.0.113.7, 10.0.0.1")
	assert.Equal(t, "203.0.113.7", clientIP(c))

	c, _ = newTestContext(http.MethodPost, "/api/v1/entities")
	c.Request.RemoteAddr = "192.0.2.5:4321"
	assert.Equal(t, "192.0.2.5", clientIP(c))
}

func TestActionForMethod(t *testing.T) {
	assert.Equal(t, models.AuditActionCreated, actionForMethod(http.MethodPost))
	assert.Equal(t, models.AuditActionDeleted, actionForMethod(http.MethodDelete))
	assert.Equal(t, models.AuditActionUpdated, actionForMethod(http.MethodPut))
	assert.Equal(t, models.AuditActionUpdated, actionForMethod(http.MethodPatch))
}

func TestAuditedMethods(t *testing.T) {
	assert.True(t, auditedMethods[http.MethodPost])
	assert.True(t, auditedMethods[http.MethodPut])
	assert.True(t, auditedMethods[http.MethodPatch])
	assert.True(t, auditedMethods[http.MethodDelete])
	assert.False(t, auditedMethods[http.MethodGet])
	assert.False(t, auditedMethods[http.MethodHead])
}
