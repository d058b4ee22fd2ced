package server

import (
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"sogif-site/internal/export"
	"sogif-site/internal/leads"
	"sogif-site/internal/site"
)

type healthResponse struct {
	Status     string     `json:"status"`
	FetchedAt  *time.Time `json:"fetched_at,omitempty"`
	AgeSeconds int64      `json:"age_seconds,omitempty"`
}

// health never loads constants; it only reports what the cache holds.
func (s *Server) health(c *gin.Context) {
	resp := healthResponse{Status: "cold"}
	if at, ok := s.cache.FetchedAt(); ok {
		age := s.now().Sub(at)
		resp.FetchedAt = &at
		resp.AgeSeconds = int64(age.Seconds())
		resp.Status = "ok"
		if age >= s.cache.Window() {
			resp.Status = "stale"
		}
	}
	c.JSON(http.StatusOK, resp)
}

func (s *Server) getConstants(c *gin.Context) {
	c.Header("Cache-Control", "public, max-age=60")
	c.JSON(http.StatusOK, provider(c).MustUse())
}

func (s *Server) getPage(c *gin.Context) {
	page, err := site.BuildPage(c.Request.Context(), provider(c))
	if err != nil {
		panic(err)
	}
	c.JSON(http.StatusOK, page)
}

func (s *Server) getSection(c *gin.Context) {
	name := c.Param("name")
	section, err := site.Build(name, provider(c))
	if errors.Is(err, site.ErrUnknownSection) {
		c.JSON(http.StatusNotFound, errorBody("UNKNOWN_SECTION", fmt.Sprintf("No section named %q", name)))
		return
	}
	if err != nil {
		panic(err)
	}
	c.JSON(http.StatusOK, gin.H{"name": name, "section": section})
}

func (s *Server) getPerformanceCSV(c *gin.Context) {
	rows := provider(c).MustUse().MonthlySeries()
	body := export.ToCSV(rows)

	s.metrics.Download()
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", export.Filename(s.now())))
	c.Data(http.StatusOK, export.ContentType, []byte(body))
}

func (s *Server) postLead(c *gin.Context) {
	var sub leads.Submission
	if err := c.ShouldBindJSON(&sub); err != nil {
		c.JSON(http.StatusBadRequest, errorBody("INVALID_BODY", "Request body must be a JSON object"))
		return
	}

	client := leads.Client{IP: c.ClientIP(), UserAgent: c.Request.UserAgent()}
	lead, err := s.leads.Submit(c.Request.Context(), sub, client)

	var invalid *leads.ValidationError
	switch {
	case err == nil:
		c.JSON(http.StatusCreated, gin.H{"id": lead.ID.String(), "status": "received"})
	case errors.As(err, &invalid):
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: ErrorDetail{Code: "INVALID_LEAD", Message: invalid.Error(), Field: invalid.Field}})
	case errors.Is(err, leads.ErrRateLimited):
		c.JSON(http.StatusTooManyRequests, errorBody("RATE_LIMITED", "Too many submissions. Please try again later."))
	case errors.Is(err, leads.ErrBotCheck):
		c.JSON(http.StatusForbidden, errorBody("BOT_CHECK_FAILED", "We could not verify this submission."))
	default:
		s.logger.Error().Err(err).Msg("lead submission failed")
		c.JSON(http.StatusInternalServerError, errorBody("LEAD_FAILED", "We could not record your enquiry. Please email us instead."))
	}
}
