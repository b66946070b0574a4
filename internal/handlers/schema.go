package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/shopforge/shopforge/internal/schema"
	appErrors "github.com/shopforge/shopforge/pkg/errors"
	"github.com/shopforge/shopforge/pkg/response"
)

// SchemaHandler exposes the registered type address configurations.
type SchemaHandler struct {
	resolver *schema.Resolver
}

// NewSchemaHandler constructs a schema admin handler.
func NewSchemaHandler(resolver *schema.Resolver) *SchemaHandler {
	return &SchemaHandler{resolver: resolver}
}

// Types lists every registered type configuration.
func (h *SchemaHandler) Types(c *gin.Context) {
	response.Success(c, http.StatusOK, gin.H{
		"version": h.resolver.Version(),
		"types":   h.resolver.Types(),
	})
}

// Type returns the configuration of a single registered type.
func (h *SchemaHandler) Type(c *gin.Context) {
	name := c.Param("name")
	cfg, ok := h.resolver.Lookup(name)
	if !ok {
		response.Error(c, appErrors.ErrTypeNotFound.WithDetail("type", name))
		return
	}
	response.Success(c, http.StatusOK, cfg)
}
