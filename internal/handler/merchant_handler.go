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

type MerchantHandler struct {
	merchantService service.MerchantService
}

func NewMerchantHandler(merchantService service.MerchantService) *MerchantHandler {
	return &MerchantHandler{merchantService: merchantService}
}

func (h *MerchantHandler) RegisterRoutes(router *gin.RouterGroup) {
	merchants := router.Group("/api/merchants")
	{
		merchants.GET("", middleware.RequireRole(model.RoleAdmin, model.RoleOperator, model.RoleAuditor), h.ListMerchants)
		merchants.GET("/:id", middleware.RequireRole(model.RoleAdmin, model.RoleOperator, model.RoleAuditor, model.RoleMerchant), h.GetMerchant)
		merchants.POST("", middleware.RequireRole(model.RoleAdmin, model.RoleOperator), h.RegisterMerchant)
		merchants.PUT("/:id/approve", middleware.RequireRole(model.RoleAdmin), h.ApproveMerchant)
		merchants.PUT("/:id/suspend", middleware.RequireRole(model.RoleAdmin), h.SuspendMerchant)
		merchants.POST("/:id/outlets", middleware.RequireRole(model.RoleAdmin, model.RoleOperator), h.AddOutlet)
	}
}

// ListMerchants returns a paginated list of merchants
// @Summary      List merchants
// @Tags         merchants
// @Security     BearerAuth
// @Produce      json
// @Param        status  query     string  false  "Filter by status (PENDING, APPROVED, SUSPENDED, REVOKED)"
// @Param        page    query     int     false  "Page number (default 1)"
// @Param        limit   query     int     false  "Number of items per page (default 20)"
// @Success      200     {object}  response.Response{data=pagination.Page}
// @Router       /api/merchants [get]
func (h *MerchantHandler) ListMerchants(c *gin.Context) {
	p := pagination.Parse(c)

	merchants, total, err := h.merchantService.GetMerchants(c.Request.Context(), c.Query("status"), p.Page, p.Limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, response.Error(http.StatusInternalServerError, err.Error()))
		return
	}

	c.JSON(http.StatusOK, response.Success(http.StatusOK, p.PageOf(merchants, total)))
}

// GetMerchant returns one merchant with its outlets
// @Summary      Get merchant
// @Tags         merchants
// @Security     BearerAuth
// @Produce      json
// @Param        id   path      string  true  "Merchant ID"
// @Success      200  {object}  response.Response{data=service.MerchantResponse}
// @Failure      404  {object}  response.Response
// @Router       /api/merchants/{id} [get]
func (h *MerchantHandler) GetMerchant(c *gin.Context) {
	merchant, err := h.merchantService.GetMerchant(c.Request.Context(), c.Param("id"))
	if err != nil {
		c.JSON(http.StatusNotFound, response.Error(http.StatusNotFound, err.Error()))
		return
	}

	c.JSON(http.StatusOK, response.Success(http.StatusOK, merchant))
}

// RegisterMerchant registers a new merchant in PENDING status
// @Summary      Register merchant
// @Tags         merchants
// @Security     BearerAuth
// @Accept       json
// @Produce      json
// @Param        payload  body      service.RegisterMerchantRequest  true  "Merchant Payload"
// @Success      201      {object}  response.Response{data=service.MerchantResponse}
// @Failure      400      {object}  response.Response
// @Router       /api/merchants [post]
func (h *MerchantHandler) RegisterMerchant(c *gin.Context) {
	var req service.RegisterMerchantRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, response.Error(http.StatusBadRequest, "Invalid request payload: "+err.Error()))
		return
	}

	merchant, err := h.merchantService.RegisterMerchant(c.Request.Context(), req, c.GetString("userID"))
	if err != nil {
		c.JSON(http.StatusBadRequest, response.Error(http.StatusBadRequest, err.Error()))
		return
	}

	c.JSON(http.StatusCreated, response.Success(http.StatusCreated, merchant))
}

// ApproveMerchant moves a merchant to APPROVED
// @Summary      Approve merchant
// @Tags         merchants
// @Security     BearerAuth
// @Produce      json
// @Param        id   path      string  true  "Merchant ID"
// @Success      200  {object}  response.Response{data=service.MerchantResponse}
// @Failure      400  {object}  response.Response
// @Router       /api/merchants/{id}/approve [put]
func (h *MerchantHandler) ApproveMerchant(c *gin.Context) {
	merchant, err := h.merchantService.ApproveMerchant(c.Request.Context(), c.Param("id"), c.GetString("userID"))
	if err != nil {
		c.JSON(http.StatusBadRequest, response.Error(http.StatusBadRequest, err.Error()))
		return
	}

	c.JSON(http.StatusOK, response.Success(http.StatusOK, merchant))
}

// SuspendMerchant suspends an approved merchant
// @Summary      Suspend merchant
// @Tags         merchants
// @Security     BearerAuth
// @Accept       json
// @Produce      json
// @Param        id       path      string                         true  "Merchant ID"
// @Param        payload  body      service.MerchantStatusRequest  true  "Suspension Payload"
// @Success      200      {object}  response.Response{data=service.MerchantResponse}
// @Failure      400      {object}  response.Response
// @Router       /api/merchants/{id}/suspend [put]
func (h *MerchantHandler) SuspendMerchant(c *gin.Context) {
	var req service.MerchantStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, response.Error(http.StatusBadRequest, "Invalid request payload: "+err.Error()))
		return
	}

	merchant, err := h.merchantService.SuspendMerchant(c.Request.Context(), c.Param("id"), req, c.GetString("userID"))
	if err != nil {
		c.JSON(http.StatusBadRequest, response.Error(http.StatusBadRequest, err.Error()))
		return
	}

	c.JSON(http.StatusOK, response.Success(http.StatusOK, merchant))
}

// AddOutlet adds an outlet to an existing merchant
// @Summary      Add outlet
// @Tags         merchants
// @Security     BearerAuth
// @Accept       json
// @Produce      json
// @Param        id       path      string                         true  "Merchant ID"
// @Param        payload  body      service.RegisterOutletRequest  true  "Outlet Payload"
// @Success      201      {object}  response.Response{data=service.OutletResponse}
// @Failure      400      {object}  response.Response
// @Router       /api/merchants/{id}/outlets [post]
func (h *MerchantHandler) AddOutlet(c *gin.Context) {
	var req service.RegisterOutletRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, response.Error(http.StatusBadRequest, "Invalid request payload: "+err.Error()))
		return
	}

	outlet, err := h.merchantService.AddOutlet(c.Request.Context(), c.Param("id"), req)
	if err != nil {
		c.JSON(http.StatusBadRequest, response.Error(http.StatusBadRequest, err.Error()))
		return
	}

	c.JSON(http.StatusCreated, response.Success(http.StatusCreated, outlet))
}
