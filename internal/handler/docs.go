package handler

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
)

type routeDoc struct {
	Method  string `json:"method"`
	Path    string `json:"path"`
	Summary string `json:"summary"`
	Auth    string `json:"auth,omitempty"`
	Notes   string `json:"notes,omitempty"`
}

var routeDocs = []routeDoc{
	{Method: http.MethodGet, Path: "/health", Summary: "Service and store health"},
	{Method: http.MethodGet, Path: "/metrics", Summary: "Prometheus metrics (observability enabled)"},
	{Method: http.MethodPost, Path: "/api/v1/reports", Summary: "Create a report", Auth: "bearer"},
	{Method: http.MethodGet, Path: "/api/v1/reports/{id}", Summary: "Get an owned, non-expired report", Auth: "bearer"},
	{Method: http.MethodPost, Path: "/api/v1/reports/{id}/generate", Summary: "Generate a pending report (completed or failed)", Auth: "bearer"},
	{Method: http.MethodPost, Path: "/api/v1/cron/expire-reports", Summary: "Soft-delete reports past expires_at", Auth: "cron"},
	{Method: http.MethodPost, Path: "/api/v1/cron/delete-expired-reports", Summary: "Hard-delete expired reports past the grace window", Auth: "cron"},
	{Method: http.MethodPost, Path: "/api/v1/admin/reports/{id}/restore", Summary: "Restore an expired report", Auth: "cron",
		Notes: "expires_at is kept; a report restored after its expires_at is expired again by the next expire sweep"},
	{Method: http.MethodPost, Path: "/api/v1/payments", Summary: "Create a report payment", Auth: "bearer"},
	{Method: http.MethodGet, Path: "/api/v1/payments/{id}", Summary: "Get an owned payment", Auth: "bearer"},
	{Method: http.MethodPost, Path: "/api/v1/webhooks/stripe", Summary: "Payment provider webhook", Auth: "signature"},
}

// DocsHandler lista as rotas documentadas
func (h *Handlers) DocsHandler(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"service": serviceName,
		"version": h.deps.Version,
		"openapi": "/openapi.json",
		"routes":  routeDocs,
	})
}

// OpenAPIHandler gera um documento OpenAPI mínimo a partir de routeDocs
func (h *Handlers) OpenAPIHandler(c *gin.Context) {
	paths := gin.H{}
	for _, r := range routeDocs {
		item, ok := paths[r.Path].(gin.H)
		if !ok {
			item = gin.H{}
			paths[r.Path] = item
		}
		op := gin.H{"summary": r.Summary}
		if r.Notes != "" {
			op["description"] = r.Notes
		}
		item[strings.ToLower(r.Method)] = op
	}

	c.JSON(http.StatusOK, gin.H{
		"openapi": "3.0.3",
		"info": gin.H{
			"title":   serviceName,
			"version": h.deps.Version,
		},
		"paths": paths,
	})
}
