package main

import (
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/haven-social/haven/commod"
	"github.com/haven-social/haven/commod/queuestore"
	"github.com/haven-social/haven/commod/rulestore"
)

func (s *Server) handleIngestContent(c echo.Context) error {
	var item commod.ContentItem
	if err := c.Bind(&item); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid content item")
	}
	if item.ID == "" || item.OrganizationID == "" || item.CommunityID == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "content item requires id, organization_id, and community_id")
	}
	items, err := s.engine.ProcessContent(c.Request().Context(), item)
	if err != nil {
		return apiError(err)
	}
	if items == nil {
		items = []queuestore.QueueItem{}
	}
	return c.JSON(200, map[string]any{"queue_items": items})
}

func (s *Server) handleListQueue(c echo.Context) error {
	orgID := c.QueryParam("org")
	if orgID == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "org query param is required")
	}
	limit := intQueryParam(c, "limit", 50)
	offset := intQueryParam(c, "offset", 0)
	status := queuestore.Status(c.QueryParam("status"))

	items, err := s.engine.ListQueue(c.Request().Context(), orgID, status, limit, offset)
	if err != nil {
		return apiError(err)
	}
	if items == nil {
		items = []queuestore.QueueItem{}
	}
	return c.JSON(200, map[string]any{"items": items})
}

type disposeRequest struct {
	Action      string `json:"action"`
	ModeratorID string `json:"moderator_id"`
	Notes       string `json:"notes"`
}

func (s *Server) handleDispose(c echo.Context) error {
	var req disposeRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid dispose request")
	}
	if req.ModeratorID == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "moderator_id is required")
	}
	act, err := s.engine.Dispose(c.Request().Context(), c.Param("id"), commod.Disposition(req.Action), req.ModeratorID, req.Notes)
	if err != nil {
		return apiError(err)
	}
	return c.JSON(200, act)
}

func (s *Server) handleGetHealth(c echo.Context) error {
	score, err := s.engine.GetHealthScore(c.Request().Context(), c.Param("id"))
	if err != nil {
		return apiError(err)
	}
	return c.JSON(200, map[string]any{"community_id": c.Param("id"), "health_score": score})
}

func (s *Server) handleRecomputeHealth(c echo.Context) error {
	score, err := s.engine.RecomputeHealthScore(c.Request().Context(), c.Param("id"))
	if err != nil {
		return apiError(err)
	}
	return c.JSON(200, map[string]any{"community_id": c.Param("id"), "health_score": score})
}

func (s *Server) handleCreateRule(c echo.Context) error {
	var rule rulestore.ModerationRule
	if err := c.Bind(&rule); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid rule")
	}
	if err := s.engine.CreateRule(c.Request().Context(), &rule); err != nil {
		return apiError(err)
	}
	return c.JSON(201, rule)
}

func (s *Server) handleListRules(c echo.Context) error {
	orgID := c.QueryParam("org")
	if orgID == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "org query param is required")
	}
	rules, err := s.engine.ListRules(c.Request().Context(), orgID)
	if err != nil {
		return apiError(err)
	}
	if rules == nil {
		rules = []rulestore.ModerationRule{}
	}
	return c.JSON(200, map[string]any{"rules": rules})
}

type ruleActiveRequest struct {
	Active bool `json:"active"`
}

func (s *Server) handleSetRuleActive(c echo.Context) error {
	var req ruleActiveRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request")
	}
	rule, err := s.engine.SetRuleActive(c.Request().Context(), c.Param("id"), req.Active)
	if err != nil {
		return apiError(err)
	}
	return c.JSON(200, rule)
}

func (s *Server) handleCreateAutomationRule(c echo.Context) error {
	var rule rulestore.AutomationRule
	if err := c.Bind(&rule); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid automation rule")
	}
	if err := s.engine.CreateAutomationRule(c.Request().Context(), &rule); err != nil {
		return apiError(err)
	}
	return c.JSON(201, rule)
}

func (s *Server) handleListAutomationRules(c echo.Context) error {
	orgID := c.QueryParam("org")
	if orgID == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "org query param is required")
	}
	rules, err := s.engine.ListAutomationRules(c.Request().Context(), orgID)
	if err != nil {
		return apiError(err)
	}
	if rules == nil {
		rules = []rulestore.AutomationRule{}
	}
	return c.JSON(200, map[string]any{"rules": rules})
}

func (s *Server) handleExecuteAutomationRule(c echo.Context) error {
	var trigger map[string]any
	if err := c.Bind(&trigger); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid trigger data")
	}
	exec, err := s.engine.ExecuteAutomationRule(c.Request().Context(), c.Param("id"), trigger)
	if err != nil {
		// the execution record exists even for failures; surface both
		if exec != nil {
			return c.JSON(httpCodeFor(err), exec)
		}
		return apiError(err)
	}
	return c.JSON(200, exec)
}

func httpCodeFor(err error) int {
	if he, ok := apiError(err).(*echo.HTTPError); ok {
		return he.Code
	}
	return 500
}

func (s *Server) handleListAutomationExecutions(c echo.Context) error {
	limit := intQueryParam(c, "limit", 50)
	execs, err := s.engine.ListAutomationExecutions(c.Request().Context(), c.Param("id"), limit)
	if err != nil {
		return apiError(err)
	}
	if execs == nil {
		execs = []queuestore.AutomationExecution{}
	}
	return c.JSON(200, map[string]any{"executions": execs})
}

func intQueryParam(c echo.Context, name string, def int) int {
	raw := c.QueryParam(name)
	if raw == "" {
		return def
	}
	v, err := strconv.Atoi(raw)
	if err != nil || v < 0 {
		return def
	}
	return v
}
