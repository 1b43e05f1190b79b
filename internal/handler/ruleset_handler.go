package handler

import (
	"net/http"

	"backend/internal/middleware"
	"backend/internal/model"
	"backend/internal/service"
	"backend/pkg/pagination"
	"backend/pkg/response"

	"github.com/gin-gonic/gin"
)

type RuleSetHandler struct {
	ruleSetService service.RuleSetService
}

func NewRuleSetHandler(ruleSetService service.RuleSetService) *RuleSetHandler {
	return &RuleSetHandler{ruleSetService: ruleSetService}
}

func (h *RuleSetHandler) RegisterRoutes(router *gin.RouterGroup) {
	rulesets := router.Group("/api/rulesets")
	{
		rulesets.GET("", middleware.RequireRole(model.RoleAdmin, model.RoleOperator, model.RoleAuditor), h.ListRuleSets)
		rulesets.GET("/active", middleware.RequireRole(model.RoleAdmin, model.RoleOperator, model.RoleCustoms, model.RoleMerchant, model.RoleAuditor), h.GetActiveRuleSet)
		rulesets.GET("/:id", middleware.RequireRole(model.RoleAdmin, model.RoleOperator, model.RoleAuditor), h.GetRuleSet)
		rulesets.POST("", middleware.RequireRole(model.RoleAdmin), h.CreateRuleSet)
		rulesets.PUT("/:id", middleware.RequireRole(model.RoleAdmin), h.UpdateRuleSet)
		rulesets.PUT("/:id/activate", middleware.RequireRole(model.RoleAdmin), h.ActivateRuleSet)
		rulesets.POST("/:id/duplicate", middleware.RequireRole(model.RoleAdmin), h.DuplicateRuleSet)
		rulesets.POST("/:id/risk-rules", middleware.RequireRole(model.RoleAdmin), h.CreateRiskRule)
		rulesets.PUT("/:id/risk-rules/:ruleId", middleware.RequireRole(model.RoleAdmin), h.UpdateRiskRule)
		rulesets.DELETE("/:id/risk-rules/:ruleId", middleware.RequireRole(model.RoleAdmin), h.DeleteRiskRule)
	}
}

// ListRuleSets returns a paginated list of rulesets
// @Summary      List rulesets
// @Tags         rulesets
// @Security     BearerAuth
// @Produce      json
// @Param        page   query     int  false  "Page number (default 1)"
// @Param        limit  query     int  false  "Number of items per page (default 20)"
// @Success      200    {object}  response.Response{data=pagination.Page}
// @Router       /api/rulesets [get]
func (h *RuleSetHandler) ListRuleSets(c *gin.Context) {
	p := pagination.Parse(c)

	sets, total, err := h.ruleSetService.GetRuleSets(c.Request.Context(), p.Page, p.Limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, response.Error(http.StatusInternalServerError, err.Error()))
		return
	}

	c.JSON(http.StatusOK, response.Success(http.StatusOK, p.PageOf(sets, total)))
}

// GetActiveRuleSet returns the single active ruleset
// @Summary      Get active ruleset
// @Tags         rulesets
// @Security     BearerAuth
// @Produce      json
// @Success      200  {object}  response.Response{data=service.RuleSetResponse}
// @Failure      404  {object}  response.Response
// @Router       /api/rulesets/active [get]
func (h *RuleSetHandler) GetActiveRuleSet(c *gin.Context) {
	ruleset, err := h.ruleSetService.GetActiveRuleSet(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusNotFound, response.Error(http.StatusNotFound, err.Error()))
		return
	}

	c.JSON(http.StatusOK, response.Success(http.StatusOK, ruleset))
}

// GetRuleSet returns one ruleset with its risk rules
// @Summary      Get ruleset
// @Tags         rulesets
// @Security     BearerAuth
// @Produce      json
// @Param        id   path      string  true  "Ruleset ID"
// @Success      200  {object}  response.Response{data=service.RuleSetResponse}
// @Failure      404  {object}  response.Response
// @Router       /api/rulesets/{id} [get]
func (h *RuleSetHandler) GetRuleSet(c *gin.Context) {
	ruleset, err := h.ruleSetService.GetRuleSet(c.Request.Context(), c.Param("id"))
	if err != nil {
		c.JSON(http.StatusNotFound, response.Error(http.StatusNotFound, err.Error()))
		return
	}

	c.JSON(http.StatusOK, response.Success(http.StatusOK, ruleset))
}

// CreateRuleSet creates a new inactive ruleset version
// @Summary      Create ruleset
// @Tags         rulesets
// @Security     BearerAuth
// @Accept       json
// @Produce      json
// @Param        payload  body      service.SaveRuleSetRequest  true  "Ruleset Payload"
// @Success      201      {object}  response.Response{data=service.RuleSetResponse}
// @Failure      400      {object}  response.Response
// @Router       /api/rulesets [post]
func (h *RuleSetHandler) CreateRuleSet(c *gin.Context) {
	var req service.SaveRuleSetRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, response.Error(http.StatusBadRequest, "Invalid request payload: "+err.Error()))
		return
	}

	ruleset, err := h.ruleSetService.CreateRuleSet(c.Request.Context(), req, c.GetString("userID"))
	if err != nil {
		c.JSON(http.StatusBadRequest, response.Error(http.StatusBadRequest, err.Error()))
		return
	}

	c.JSON(http.StatusCreated, response.Success(http.StatusCreated, ruleset))
}

// UpdateRuleSet rewrites an inactive ruleset
// @Summary      Update ruleset
// @Tags         rulesets
// @Security     BearerAuth
// @Accept       json
// @Produce      json
// @Param        id       path      string                      true  "Ruleset ID"
// @Param        payload  body      service.SaveRuleSetRequest  true  "Ruleset Payload"
// @Success      200      {object}  response.Response{data=service.RuleSetResponse}
// @Failure      400      {object}  response.Response
// @Router       /api/rulesets/{id} [put]
func (h *RuleSetHandler) UpdateRuleSet(c *gin.Context) {
	var req service.SaveRuleSetRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, response.Error(http.StatusBadRequest, "Invalid request payload: "+err.Error()))
		return
	}

	ruleset, err := h.ruleSetService.UpdateRuleSet(c.Request.Context(), c.Param("id"), req, c.GetString("userID"))
	if err != nil {
		c.JSON(http.StatusBadRequest, response.Error(http.StatusBadRequest, err.Error()))
		return
	}

	c.JSON(http.StatusOK, response.Success(http.StatusOK, ruleset))
}

// ActivateRuleSet makes one ruleset the active configuration
// @Summary      Activate ruleset
// @Tags         rulesets
// @Security     BearerAuth
// @Produce      json
// @Param        id   path      string  true  "Ruleset ID"
// @Success      200  {object}  response.Response{data=service.RuleSetResponse}
// @Failure      400  {object}  response.Response
// @Router       /api/rulesets/{id}/activate [put]
func (h *RuleSetHandler) ActivateRuleSet(c *gin.Context) {
	ruleset, err := h.ruleSetService.ActivateRuleSet(c.Request.Context(), c.Param("id"), c.GetString("userID"))
	if err != nil {
		c.JSON(http.StatusBadRequest, response.Error(http.StatusBadRequest, err.Error()))
		return
	}

	c.JSON(http.StatusOK, response.Success(http.StatusOK, ruleset))
}

type duplicateRuleSetRequest struct {
	Version string `json:"version" binding:"required"`
}

// DuplicateRuleSet copies a ruleset into a new inactive version
// @Summary      Duplicate ruleset
// @Tags         rulesets
// @Security     BearerAuth
// @Accept       json
// @Produce      json
// @Param        id       path      string  true  "Source Ruleset ID"
// @Param        payload  body      object  true  "New version, e.g. {\"version\": \"v2\"}"
// @Success      201      {object}  response.Response{data=service.RuleSetResponse}
// @Failure      400      {object}  response.Response
// @Router       /api/rulesets/{id}/duplicate [post]
func (h *RuleSetHandler) DuplicateRuleSet(c *gin.Context) {
	var req duplicateRuleSetRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, response.Error(http.StatusBadRequest, "Invalid request payload: "+err.Error()))
		return
	}

	ruleset, err := h.ruleSetService.DuplicateRuleSet(c.Request.Context(), c.Param("id"), req.Version, c.GetString("userID"))
	if err != nil {
		c.JSON(http.StatusBadRequest, response.Error(http.StatusBadRequest, err.Error()))
		return
	}

	c.JSON(http.StatusCreated, response.Success(http.StatusCreated, ruleset))
}

// CreateRiskRule adds a risk rule to a ruleset
// @Summary      Create risk rule
// @Tags         rulesets
// @Security     BearerAuth
// @Accept       json
// @Produce      json
// @Param        id       path      string                       true  "Ruleset ID"
// @Param        payload  body      service.SaveRiskRuleRequest  true  "Risk Rule Payload"
// @Success      201      {object}  response.Response{data=service.RiskRuleResponse}
// @Failure      400      {object}  response.Response
// @Router       /api/rulesets/{id}/risk-rules [post]
func (h *RuleSetHandler) CreateRiskRule(c *gin.Context) {
	var req service.SaveRiskRuleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, response.Error(http.StatusBadRequest, "Invalid request payload: "+err.Error()))
		return
	}

	rule, err := h.ruleSetService.SaveRiskRule(c.Request.Context(), c.Param("id"), "", req, c.GetString("userID"))
	if err != nil {
		c.JSON(http.StatusBadRequest, response.Error(http.StatusBadRequest, err.Error()))
		return
	}

	c.JSON(http.StatusCreated, response.Success(http.StatusCreated, rule))
}

// UpdateRiskRule rewrites one risk rule
// @Summary      Update risk rule
// @Tags         rulesets
// @Security     BearerAuth
// @Accept       json
// @Produce      json
// @Param        id       path      string                       true  "Ruleset ID"
// @Param        ruleId   path      string                       true  "Risk Rule ID"
// @Param        payload  body      service.SaveRiskRuleRequest  true  "Risk Rule Payload"
// @Success      200      {object}  response.Response{data=service.RiskRuleResponse}
// @Failure      400      {object}  response.Response
// @Router       /api/rulesets/{id}/risk-rules/{ruleId} [put]
func (h *RuleSetHandler) UpdateRiskRule(c *gin.Context) {
	var req service.SaveRiskRuleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, response.Error(http.StatusBadRequest, "Invalid request payload: "+err.Error()))
		return
	}

	rule, err := h.ruleSetService.SaveRiskRule(c.Request.Context(), c.Param("id"), c.Param("ruleId"), req, c.GetString("userID"))
	if err != nil {
		c.JSON(http.StatusBadRequest, response.Error(http.StatusBadRequest, err.Error()))
		return
	}

	c.JSON(http.StatusOK, response.Success(http.StatusOK, rule))
}

// DeleteRiskRule removes one risk rule
// @Summary      Delete risk rule
// @Tags         rulesets
// @Security     BearerAuth
// @Produce      json
// @Param        id      path      string  true  "Ruleset ID"
// @Param        ruleId  path      string  true  "Risk Rule ID"
// @Success      200     {object}  response.Response
// @Failure      400     {object}  response.Response
// @Router       /api/rulesets/{id}/risk-rules/{ruleId} [delete]
func (h *RuleSetHandler) DeleteRiskRule(c *gin.Context) {
	if err := h.ruleSetService.DeleteRiskRule(c.Request.Context(), c.Param("id"), c.Param("ruleId"), c.GetString("userID")); err != nil {
		c.JSON(http.StatusBadRequest, response.Error(http.StatusBadRequest, err.Error()))
		return
	}

	c.JSON(http.StatusOK, response.Message(http.StatusOK, "risk rule deleted"))
}
