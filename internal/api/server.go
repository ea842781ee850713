package api

import (
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"github.com/amara/fund-radar/internal/db"
	"github.com/amara/fund-radar/internal/models"
	"github.com/amara/fund-radar/internal/pipeline"
	"github.com/amara/fund-radar/internal/sources"
)

type Server struct {
	Store        *db.Store
	Orchestrator *pipeline.Orchestrator
	Registry     *sources.Registry
	Manual       *sources.ManualAdapter
	Echo         *echo.Echo
}

func NewServer(store *db.Store, orchestrator *pipeline.Orchestrator, registry *sources.Registry, manual *sources.ManualAdapter) *Server {
	e := echo.New()
	e.HideBanner = true
	e.Use(middleware.Logger())
	e.Use(middleware.Recover())

	s := &Server{
		Store:        store,
		Orchestrator: orchestrator,
		Registry:     registry,
		Manual:       manual,
		Echo:         e,
	}

	s.routes()
	return s
}

func (s *Server) routes() {
	s.Echo.GET("/health", s.handleHealth)

	api := s.Echo.Group("/api/v1")
	api.GET("/opportunities", s.handleListOpportunities)
	api.GET("/review-queue", s.handleReviewQueue)
	api.GET("/stats", s.handleGetStats)
	api.GET("/sources", s.handleGetSources)
	api.POST("/submit", s.handleSubmit)
	api.POST("/ingest/source/:id", s.handleIngestSource)
	api.POST("/ingest/all", s.handleIngestAll)
}

func (s *Server) handleHealth(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleListOpportunities(c echo.Context) error {
	decision := c.QueryParam("decision")
	if decision == "" {
		decision = "auto_approved"
	}
	limit, offset := paging(c)

	opps, err := s.Store.ListOpportunities(c.Request().Context(), decision, limit, offset)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": err.Error()})
	}
	if opps == nil {
		opps = []models.Opportunity{}
	}
	return c.JSON(http.StatusOK, opps)
}

func (s *Server) handleReviewQueue(c echo.Context) error {
	limit, offset := paging(c)

	opps, err := s.Store.ReviewQueue(c.Request().Context(), limit, offset)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": err.Error()})
	}
	if opps == nil {
		opps = []models.Opportunity{}
	}
	return c.JSON(http.StatusOK, opps)
}

func (s *Server) handleGetStats(c echo.Context) error {
	since := time.Now().AddDate(0, 0, -30)
	if v := c.QueryParam("days"); v != "" {
		if days, err := strconv.Atoi(v); err == nil && days > 0 {
			since = time.Now().AddDate(0, 0, -days)
		}
	}

	stats, err := s.Store.GetStats(c.Request().Context(), since)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": err.Error()})
	}
	return c.JSON(http.StatusOK, stats)
}

func (s *Server) handleGetSources(c echo.Context) error {
	type sourceInfo struct {
		ID   string `json:"id"`
		Name string `json:"name"`
		Type string `json:"type"`
	}
	out := make([]sourceInfo, 0, len(s.Registry.Sources))
	for _, src := range s.Registry.Sources {
		out = append(out, sourceInfo{ID: src.ID, Name: src.Name, Type: src.Type})
	}
	return c.JSON(http.StatusOK, out)
}

type submitRequest struct {
	Title    string            `json:"title"`
	URL      string            `json:"url"`
	BodyText string            `json:"body_text"`
	Metadata map[string]string `json:"metadata"`
}

// handleSubmit accepts a manually submitted item and processes it
// immediately through the full pipeline.
func (s *Server) handleSubmit(c echo.Context) error {
	var req submitRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "Invalid request"})
	}

	item, err := s.Manual.Submit(req.Title, req.URL, req.BodyText, req.Metadata)
	if err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": err.Error()})
	}

	record := s.Orchestrator.Process(c.Request().Context(), item)
	return c.JSON(http.StatusOK, map[string]interface{}{
		"id":               record.ID,
		"decision":         record.Decision,
		"decision_reason":  record.DecisionReason,
		"confidence_score": record.ConfidenceScore,
	})
}

func (s *Server) handleIngestSource(c echo.Context) error {
	sourceID := c.Param("id")

	adapters, err := s.buildAdapters()
	if err != nil {
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": err.Error()})
	}

	for _, adapter := range adapters {
		if adapter.ID() != sourceID {
			continue
		}
		stats := s.Orchestrator.RunSource(c.Request().Context(), adapter)
		return c.JSON(http.StatusOK, map[string]interface{}{
			"message": fmt.Sprintf("%s ingestion complete", sourceID),
			"stats":   stats,
		})
	}

	return c.JSON(http.StatusNotFound, map[string]string{"error": "unknown source: " + sourceID})
}

func (s *Server) handleIngestAll(c echo.Context) error {
	adapters, err := s.buildAdapters()
	if err != nil {
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": err.Error()})
	}

	stats := s.Orchestrator.Run(c.Request().Context(), adapters)
	return c.JSON(http.StatusOK, map[string]interface{}{
		"message": "All registry sources ingestion complete",
		"stats":   stats,
	})
}

func (s *Server) buildAdapters() ([]sources.Adapter, error) {
	return sources.BuildAdapters(s.Registry, nil)
}

func paging(c echo.Context) (limit, offset int) {
	limit = 50
	if v := c.QueryParam("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 && n <= 200 {
			limit = n
		}
	}
	if v := c.QueryParam("offset"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n >= 0 {
			offset = n
		}
	}
	return limit, offset
}

func (s *Server) Start(port string) error {
	return s.Echo.Start(":" + port)
}
