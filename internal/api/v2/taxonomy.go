package api

import (
	"fmt"
	"net/http"

	"github.com/labstack/echo/v4"
)

// AncestorResponse is the body of GET /taxonomy/ancestor.
type AncestorResponse struct {
	Tags     []string `json:"tags"`
	Ancestor string   `json:"ancestor"`
	Path     []string `json:"path,omitempty"`
}

// GetCommonAncestor handles GET /api/v2/taxonomy/ancestor?tags=a&tags=b.
// An empty ancestor means the labels share nothing below the root.
func (c *Controller) GetCommonAncestor(ctx echo.Context) error {
	if c.taxonomy == nil {
		return c.HandleError(ctx, nil, "Taxonomy lookup not configured", http.StatusServiceUnavailable)
	}

	tags := splitList(ctx.QueryParams()["tags"])
	if len(tags) == 0 {
		return c.HandleError(ctx, fmt.Errorf("tags parameter is required"), "Invalid taxonomy query", http.StatusBadRequest)
	}

	response := &AncestorResponse{
		Tags:     tags,
		Ancestor: c.taxonomy.CommonAncestor(tags),
	}
	if pf, ok := c.taxonomy.(PathFinder); ok && response.Ancestor != "" {
		response.Path = pf.Path(response.Ancestor)
	}
	return ctx.JSON(http.StatusOK, response)
}
