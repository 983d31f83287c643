package api

import (
	"fmt"
	"net/http"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/trapwatch/trapwatch/internal/errors"
	"github.com/trapwatch/trapwatch/internal/visits"
)

// DefaultVisitWindow is the search window used when from is omitted.
const DefaultVisitWindow = 24 * time.Hour

// VisitParams echoes the parsed query back to the client.
type VisitParams struct {
	Stations []int64  `json:"stations"`
	GroupID  int64    `json:"group,omitempty"`
	From     string   `json:"from"`
	Until    string   `json:"until"`
	Types    []string `json:"types,omitempty"`
}

// VisitsResponse is the body of GET /monitoring/visits.
type VisitsResponse struct {
	Params      VisitParams               `json:"params"`
	Visits      []visits.Visit            `json:"visits"`
	Unsupported []visits.UnsupportedVisit `json:"unsupported"`
}

// GetVisits handles GET /api/v2/monitoring/visits
//
//	stations=1,2   station ids, comma separated or repeated (required)
//	group=3        group id
//	from, until    RFC3339 timestamps; until defaults to now, from to until-24h
//	types=a,b      recording types
func (c *Controller) GetVisits(ctx echo.Context) error {
	criteria, err := parseVisitCriteria(ctx, time.Now())
	if err != nil {
		return c.HandleError(ctx, err, "Invalid visit query", http.StatusBadRequest)
	}

	params := visitParams(criteria)
	key := visitCacheKey(params)
	if c.responseCache != nil {
		if cached, ok := c.responseCache.Get(key); ok {
			c.recordCacheLookup(true)
			return ctx.JSON(http.StatusOK, cached)
		}
		c.recordCacheLookup(false)
	}

	result, err := c.visits.Visits(ctx.Request().Context(), criteria)
	if err != nil {
		if errors.IsCategory(err, errors.CategoryValidation) {
			return c.HandleError(ctx, err, "Invalid visit query", http.StatusBadRequest)
		}
		return c.HandleError(ctx, err, "Failed to generate visits", http.StatusInternalServerError)
	}

	response := &VisitsResponse{
		Params:      params,
		Visits:      result.Visits,
		Unsupported: result.Unsupported,
	}
	if response.Visits == nil {
		response.Visits = []visits.Visit{}
	}
	if response.Unsupported == nil {
		response.Unsupported = []visits.UnsupportedVisit{}
	}

	if c.responseCache != nil {
		c.responseCache.SetDefault(key, response)
	}
	return ctx.JSON(http.StatusOK, response)
}

func (c *Controller) recordCacheLookup(hit bool) {
	if c.cacheRec != nil {
		c.cacheRec.RecordCacheLookup("visits", hit)
	}
}

func parseVisitCriteria(ctx echo.Context, now time.Time) (visits.Criteria, error) {
	criteria := visits.Criteria{Now: now.UTC()}

	stations, err := parseIDList(ctx.QueryParams()["stations"])
	if err != nil {
		return criteria, fmt.Errorf("invalid stations: %w", err)
	}
	if len(stations) == 0 {
		return criteria, fmt.Errorf("stations parameter is required")
	}
	criteria.Stations = stations

	if g := ctx.QueryParam("group"); g != "" {
		id, err := strconv.ParseInt(g, 10, 64)
		if err != nil {
			return criteria, fmt.Errorf("invalid group %q: %w", g, err)
		}
		criteria.GroupID = id
	}

	criteria.SearchUntil = now.UTC()
	if u := ctx.QueryParam("until"); u != "" {
		t, err := time.Parse(time.RFC3339, u)
		if err != nil {
			return criteria, fmt.Errorf("invalid until %q: %w", u, err)
		}
		criteria.SearchUntil = t
	}
	criteria.SearchFrom = criteria.SearchUntil.Add(-DefaultVisitWindow)
	if f := ctx.QueryParam("from"); f != "" {
		t, err := time.Parse(time.RFC3339, f)
		if err != nil {
			return criteria, fmt.Errorf("invalid from %q: %w", f, err)
		}
		criteria.SearchFrom = t
	}

	for _, raw := range splitList(ctx.QueryParams()["types"]) {
		rt := visits.RecordingType(raw)
		if !rt.Valid() {
			return criteria, fmt.Errorf("unknown recording type %q", raw)
		}
		criteria.Types = append(criteria.Types, rt)
	}

	return criteria, criteria.Validate()
}

func parseIDList(values []string) ([]int64, error) {
	var ids []int64
	for _, raw := range splitList(values) {
		id, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("%q is not an id", raw)
		}
		if !slices.Contains(ids, id) {
			ids = append(ids, id)
		}
	}
	return ids, nil
}

// splitList flattens repeated and comma separated query values.
func splitList(values []string) []string {
	var out []string
	for _, v := range values {
		for part := range strings.SplitSeq(v, ",") {
			if part = strings.TrimSpace(part); part != "" {
				out = append(out, part)
			}
		}
	}
	return out
}

func visitParams(c visits.Criteria) VisitParams {
	p := VisitParams{
		Stations: slices.Sorted(slices.Values(c.Stations)),
		GroupID:  c.GroupID,
		From:     c.SearchFrom.UTC().Format(time.RFC3339),
		Until:    c.SearchUntil.UTC().Format(time.RFC3339),
	}
	for _, t := range c.Types {
		p.Types = append(p.Types, string(t))
	}
	slices.Sort(p.Types)
	p.Types = slices.Compact(p.Types)
	return p
}

func visitCacheKey(p VisitParams) string {
	var sb strings.Builder
	for i, id := range p.Stations {
		if i > 0 {
			sb.WriteByte(',')
		}
		sb.WriteString(strconv.FormatInt(id, 10))
	}
	fmt.Fprintf(&sb, "|%d|%s|%s|%s", p.GroupID, p.From, p.Until, strings.Join(p.Types, ","))
	return sb.String()
}
