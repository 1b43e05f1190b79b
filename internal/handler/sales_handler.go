package handler

import (
	"net/http"
	"strconv"

	"backend/internal/middleware"
	"backend/internal/model"
	"backend/internal/service"
	"backend/pkg/pagination"
	"backend/pkg/response"

	"github.com/gin-gonic/gin"
)

type SalesHandler struct {
	salesService service.SalesService
}

func NewSalesHandler(salesService service.SalesService) *SalesHandler {
	return &SalesHandler{salesService: salesService}
}

func (h *SalesHandler) RegisterRoutes(router *gin.RouterGroup) {
	invoices := router.Group("/api/sale-invoices")
	{
		invoices.GET("", middleware.RequireRole(model.RoleAdmin, model.RoleOperator, model.RoleMerchant, model.RoleAuditor), h.ListInvoices)
		invoices.GET("/:id", middleware.RequireRole(model.RoleAdmin, model.RoleOperator, model.RoleMerchant, model.RoleAuditor), h.GetInvoice)
		invoices.POST("", middleware.RequireRole(model.RoleMerchant, model.RoleOperator), h.CreateInvoice)
		invoices.PUT("/:id/cancel", middleware.RequireRole(model.RoleAdmin, model.RoleOperator), h.CancelInvoice)
	}

	categories := router.Group("/api/product-categories")
	{
		categories.GET("", middleware.RequireRole(model.RoleAdmin, model.RoleOperator, model.RoleMerchant, model.RoleAuditor), h.ListCategories)
		categories.POST("", middleware.RequireRole(model.RoleAdmin), h.SaveCategory)
	}
}

// ListCategories returns the product category catalog
// @Summary      List product categories
// @Tags         product-categories
// @Security     BearerAuth
// @Produce      json
// @Param        active_only  query     bool  false  "Only active categories"
// @Success      200          {object}  response.Response{data=[]model.ProductCategory}
// @Router       /api/product-categories [get]
func (h *SalesHandler) ListCategories(c *gin.Context) {
	activeOnly, _ := strconv.ParseBool(c.DefaultQuery("active_only", "false"))

	cats, err := h.salesService.ListCategories(c.Request.Context(), activeOnly)
	if err != nil {
		c.JSON(http.StatusInternalServerError, response.Error(http.StatusInternalServerError, err.Error()))
		return
	}

	c.JSON(http.StatusOK, response.Success(http.StatusOK, cats))
}

// SaveCategory creates or updates a product category
// @Summary      Save a product category
// @Tags         product-categories
// @Security     BearerAuth
// @Accept       json
// @Produce      json
// @Param        payload  body      service.SaveCategoryRequest  true  "Category"
// @Success      200      {object}  response.Response{data=model.ProductCategory}
// @Failure      400      {object}  response.Response
// @Router       /api/product-categories [post]
func (h *SalesHandler) SaveCategory(c *gin.Context) {
	var req service.SaveCategoryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, response.Error(http.StatusBadRequest, "Invalid request payload: "+err.Error()))
		return
	}

	cat, err := h.salesService.SaveCategory(c.Request.Context(), req)
	if err != nil {
		c.JSON(http.StatusBadRequest, response.Error(http.StatusBadRequest, err.Error()))
		return
	}

	c.JSON(http.StatusOK, response.Success(http.StatusOK, cat))
}

// ListInvoices returns a paginated list of sale invoices
// @Summary      List sale invoices
// @Tags         sale-invoices
// @Security     BearerAuth
// @Produce      json
// @Param        merchant_id  query     string  false  "Filter by merchant"
// @Param        cancelled    query     bool    false  "Filter by cancellation flag"
// @Param        page         query     int     false  "Page number (default 1)"
// @Param        limit        query     int     false  "Number of items per page (default 20)"
// @Success      200          {object}  response.Response{data=pagination.Page}
// @Router       /api/sale-invoices [get]
func (h *SalesHandler) ListInvoices(c *gin.Context) {
	p := pagination.Parse(c)

	filter := service.SaleInvoiceFilter{
		MerchantID: c.Query("merchant_id"),
		Page:       p.Page,
		Limit:      p.Limit,
	}
	if raw := c.Query("cancelled"); raw != "" {
		cancelled, err := strconv.ParseBool(raw)
		if err != nil {
			c.JSON(http.StatusBadRequest, response.Error(http.StatusBadRequest, "Invalid cancelled filter"))
			return
		}
		filter.Cancelled = &cancelled
	}

	invoices, total, err := h.salesService.ListInvoices(c.Request.Context(), filter)
	if err != nil {
		c.JSON(http.StatusInternalServerError, response.Error(http.StatusInternalServerError, err.Error()))
		return
	}

	c.JSON(http.StatusOK, response.Success(http.StatusOK, p.PageOf(invoices, total)))
}

// GetInvoice returns one sale invoice with its line items
// @Summary      Get sale invoice
// @Tags         sale-invoices
// @Security     BearerAuth
// @Produce      json
// @Param        id   path      string  true  "Invoice ID"
// @Success      200  {object}  response.Response{data=service.SaleInvoiceResponse}
// @Failure      404  {object}  response.Response
// @Router       /api/sale-invoices/{id} [get]
func (h *SalesHandler) GetInvoice(c *gin.Context) {
	invoice, err := h.salesService.GetInvoice(c.Request.Context(), c.Param("id"))
	if err != nil {
		c.JSON(http.StatusNotFound, response.Error(http.StatusNotFound, err.Error()))
		return
	}

	c.JSON(http.StatusOK, response.Success(http.StatusOK, invoice))
}

// CreateInvoice records a new sale invoice
// @Summary      Create sale invoice
// @Tags         sale-invoices
// @Security     BearerAuth
// @Accept       json
// @Produce      json
// @Param        payload  body      service.CreateSaleInvoiceRequest  true  "Invoice Payload"
// @Success      201      {object}  response.Response{data=service.SaleInvoiceResponse}
// @Failure      400      {object}  response.Response
// @Router       /api/sale-invoices [post]
func (h *SalesHandler) CreateInvoice(c *gin.Context) {
	var req service.CreateSaleInvoiceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, response.Error(http.StatusBadRequest, "Invalid request payload: "+err.Error()))
		return
	}

	invoice, err := h.salesService.CreateInvoice(c.Request.Context(), req, c.GetString("userID"))
	if err != nil {
		c.JSON(http.StatusBadRequest, response.Error(http.StatusBadRequest, err.Error()))
		return
	}

	c.JSON(http.StatusCreated, response.Success(http.StatusCreated, invoice))
}

// CancelInvoice cancels an invoice that has no live tax-free form
// @Summary      Cancel sale invoice
// @Tags         sale-invoices
// @Security     BearerAuth
// @Accept       json
// @Produce      json
// @Param        id       path      string                        true  "Invoice ID"
// @Param        payload  body      service.CancelInvoiceRequest  true  "Cancellation Payload"
// @Success      200      {object}  response.Response{data=service.SaleInvoiceResponse}
// @Failure      400      {object}  response.Response
// @Router       /api/sale-invoices/{id}/cancel [put]
func (h *SalesHandler) CancelInvoice(c *gin.Context) {
	var req service.CancelInvoiceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, response.Error(http.StatusBadRequest, "Invalid request payload: "+err.Error()))
		return
	}

	invoice, err := h.salesService.CancelInvoice(c.Request.Context(), c.Param("id"), req, c.GetString("userID"))
	if err != nil {
		c.JSON(http.StatusBadRequest, response.Error(http.StatusBadRequest, err.Error()))
		return
	}

	c.JSON(http.StatusOK, response.Success(http.StatusOK, invoice))
}
