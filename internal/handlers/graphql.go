package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/shopforge/shopforge/internal/gateway"
	appErrors "github.com/shopforge/shopforge/pkg/errors"
	"github.com/shopforge/shopforge/pkg/response"
)

// GraphQLHandler exposes the query execution gateway over HTTP.
type GraphQLHandler struct {
	gateway *gateway.Gateway
}

// NewGraphQLHandler constructs the GraphQL endpoint handler.
func NewGraphQLHandler(gw *gateway.Gateway) *GraphQLHandler {
	return &GraphQLHandler{gateway: gw}
}

// Execute runs one GraphQL request. The response envelope is always written
// with status 200; errors travel inside the envelope so partial successes
// survive intact.
func (h *GraphQLHandler) Execute(c *gin.Context) {
	var req gateway.Request
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.ErrValidation.
			WithMessage("Request body must be a JSON object with a query string").
			WithInternal(err))
		return
	}

	resp := h.gateway.Execute(c.Request.Context(), req)
	c.JSON(http.StatusOK, resp)
}
