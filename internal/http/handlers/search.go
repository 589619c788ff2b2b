package handlers

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/yungbote/capacity-checker/internal/http/response"
	"github.com/yungbote/capacity-checker/internal/search/orchestrator"
	"github.com/yungbote/capacity-checker/internal/search/resolver"
	"github.com/yungbote/capacity-checker/internal/services"
)

type SearchHandler struct {
	engine services.EngineService
}

func NewSearchHandler(engine services.EngineService) *SearchHandler {
	return &SearchHandler{engine: engine}
}

// GET /api/search?q=&page=&page_size=&sort=&technology=&delivery_year=&auction_name=&status=
func (h *SearchHandler) Search(c *gin.Context) {
	req := orchestrator.Request{
		Query:    c.Query("q"),
		Page:     queryInt(c, "page"),
		PageSize: queryInt(c, "page_size"),
		Sort:     strings.TrimSpace(c.Query("sort")),
		Filters: resolver.Filters{
			Technology:   c.Query("technology"),
			DeliveryYear: c.Query("delivery_year"),
			AuctionName:  c.Query("auction_name"),
			Status:       c.Query("status"),
		},
	}
	switch req.Sort {
	case "", resolver.SortDeliveryYearDesc, resolver.SortDeliveryYearAsc, resolver.SortLocation:
	default:
		response.RespondError(c, http.StatusBadRequest, "invalid_sort", nil)
		return
	}

	res := h.engine.Resolve(c.Request.Context(), req)
	if res.Error != nil {
		c.JSON(http.StatusServiceUnavailable, res)
		return
	}
	response.RespondOK(c, res)
}

// GET /api/units/:id
func (h *SearchHandler) Unit(c *gin.Context) {
	id := c.Param("id")
	recs, err := h.engine.Unit(c.Request.Context(), id)
	if err != nil {
		response.RespondErr(c, err)
		return
	}
	response.RespondOK(c, gin.H{"unit_id": strings.ToUpper(strings.TrimSpace(id)), "components": recs, "total": len(recs)})
}

// GET /api/companies/:key
func (h *SearchHandler) Company(c *gin.Context) {
	entry, err := h.engine.Company(c.Request.Context(), c.Param("key"))
	if err != nil {
		response.RespondErr(c, err)
		return
	}
	response.RespondOK(c, gin.H{"company": entry})
}

// GET /api/locations/lookup?q=
func (h *SearchHandler) LocationLookup(c *gin.Context) {
	res, err := h.engine.LookupLocation(c.Request.Context(), c.Query("q"))
	if err != nil {
		response.RespondErr(c, err)
		return
	}
	response.RespondOK(c, gin.H{"location": res})
}

func queryInt(c *gin.Context, name string) int {
	n, err := strconv.Atoi(strings.TrimSpace(c.Query(name)))
	if err != nil {
		return 0
	}
	return n
}
