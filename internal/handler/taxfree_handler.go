package handler

import (
	"errors"
	"net/http"

	"backend/internal/middleware"
	"backend/internal/model"
	"backend/internal/service"
	"backend/pkg/pagination"
	"backend/pkg/response"

	"github.com/gin-gonic/gin"
)

type TaxFreeHandler struct {
	taxFreeService service.TaxFreeService
}

func NewTaxFreeHandler(taxFreeService service.TaxFreeService) *TaxFreeHandler {
	return &TaxFreeHandler{taxFreeService: taxFreeService}
}

func (h *TaxFreeHandler) RegisterRoutes(router *gin.RouterGroup) {
	forms := router.Group("/api/forms")
	{
		forms.GET("", middleware.RequireRole(model.RoleAdmin, model.RoleOperator, model.RoleAuditor), h.ListForms)
		forms.GET("/:id", middleware.RequireRole(model.RoleAdmin, model.RoleOperator, model.RoleCustoms, model.RoleMerchant, model.RoleAuditor), h.GetForm)
		forms.GET("/number/:formNumber", middleware.RequireRole(model.RoleAdmin, model.RoleOperator, model.RoleCustoms, model.RoleAuditor), h.GetFormByNumber)
		forms.POST("/check-eligibility", middleware.RequireRole(model.RoleMerchant, model.RoleOperator), h.CheckEligibility)
		forms.POST("", middleware.RequireRole(model.RoleMerchant, model.RoleOperator), h.CreateForm)
		forms.POST("/verify-qr", middleware.RequireRole(model.RoleCustoms), h.VerifyQR)
		forms.PUT("/:id/issue", middleware.RequireRole(model.RoleMerchant, model.RoleOperator), h.IssueForm)
		forms.PUT("/:id/validate", middleware.RequireRole(model.RoleCustoms), h.ValidateForm)
		forms.PUT("/:id/refuse", middleware.RequireRole(model.RoleCustoms), h.RefuseForm)
		forms.PUT("/:id/cancel", middleware.RequireRole(model.RoleAdmin, model.RoleOperator), h.CancelForm)
	}
}

// ListForms returns a paginated list of tax-free forms
// @Summary      List forms
// @Tags         forms
// @Security     BearerAuth
// @Produce      json
// @Param        status  query     string  false  "Filter by status"
// @Param        page    query     int     false  "Page number (default 1)"
// @Param        limit   query     int     false  "Number of items per page (default 20)"
// @Success      200     {object}  response.Response{data=pagination.Page}
// @Router       /api/forms [get]
func (h *TaxFreeHandler) ListForms(c *gin.Context) {
	p := pagination.Parse(c)

	forms, total, err := h.taxFreeService.ListForms(c.Request.Context(), c.Query("status"), p.Page, p.Limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, response.Error(http.StatusInternalServerError, err.Error()))
		return
	}

	c.JSON(http.StatusOK, response.Success(http.StatusOK, p.PageOf(forms, total)))
}

// GetForm returns one tax-free form
// @Summary      Get form
// @Tags         forms
// @Security     BearerAuth
// @Produce      json
// @Param        id   path      string  true  "Form ID"
// @Success      200  {object}  response.Response{data=service.FormResponse}
// @Failure      404  {object}  response.Response
// @Router       /api/forms/{id} [get]
func (h *TaxFreeHandler) GetForm(c *gin.Context) {
	form, err := h.taxFreeService.GetForm(c.Request.Context(), c.Param("id"))
	if err != nil {
		c.JSON(http.StatusNotFound, response.Error(http.StatusNotFound, err.Error()))
		return
	}

	c.JSON(http.StatusOK, response.Success(http.StatusOK, form))
}

// GetFormByNumber looks a form up by its printed form number
// @Summary      Get form by number
// @Tags         forms
// @Security     BearerAuth
// @Produce      json
// @Param        formNumber  path      string  true  "Form number"
// @Success      200         {object}  response.Response{data=service.FormResponse}
// @Failure      404         {object}  response.Response
// @Router       /api/forms/number/{formNumber} [get]
func (h *TaxFreeHandler) GetFormByNumber(c *gin.Context) {
	form, err := h.taxFreeService.GetFormByNumber(c.Request.Context(), c.Param("formNumber"))
	if err != nil {
		c.JSON(http.StatusNotFound, response.Error(http.StatusNotFound, err.Error()))
		return
	}

	c.JSON(http.StatusOK, response.Success(http.StatusOK, form))
}

// CheckEligibility dry-runs the eligibility and pricing evaluation
// @Summary      Check eligibility
// @Tags         forms
// @Security     BearerAuth
// @Accept       json
// @Produce      json
// @Param        payload  body      service.CreateFormRequest  true  "Eligibility Payload"
// @Success      200      {object}  response.Response{data=service.EligibilityResponse}
// @Failure      400      {object}  response.Response
// @Router       /api/forms/check-eligibility [post]
func (h *TaxFreeHandler) CheckEligibility(c *gin.Context) {
	var req service.CreateFormRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, response.Error(http.StatusBadRequest, "Invalid request payload: "+err.Error()))
		return
	}

	result, err := h.taxFreeService.CheckEligibility(c.Request.Context(), req)
	if err != nil {
		c.JSON(http.StatusBadRequest, response.Error(http.StatusBadRequest, err.Error()))
		return
	}

	c.JSON(http.StatusOK, response.Success(http.StatusOK, result))
}

// CreateForm issues a tax-free form for an eligible invoice
// @Summary      Create form
// @Tags         forms
// @Security     BearerAuth
// @Accept       json
// @Produce      json
// @Param        payload  body      service.CreateFormRequest  true  "Form Payload"
// @Success      201      {object}  response.Response{data=service.FormResponse}
// @Failure      400      {object}  response.Response
// @Failure      422      {object}  response.Response
// @Router       /api/forms [post]
func (h *TaxFreeHandler) CreateForm(c *gin.Context) {
	var req service.CreateFormRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, response.Error(http.StatusBadRequest, "Invalid request payload: "+err.Error()))
		return
	}

	form, err := h.taxFreeService.CreateForm(c.Request.Context(), req, c.GetString("userID"))
	if err != nil {
		var eligErr *service.EligibilityError
		if errors.As(err, &eligErr) {
			c.JSON(http.StatusUnprocessableEntity, response.Error(http.StatusUnprocessableEntity, err.Error()))
			return
		}
		c.JSON(http.StatusBadRequest, response.Error(http.StatusBadRequest, err.Error()))
		return
	}

	c.JSON(http.StatusCreated, response.Success(http.StatusCreated, form))
}

// VerifyQR checks a scanned QR payload against its signature
// @Summary      Verify QR code
// @Tags         forms
// @Security     BearerAuth
// @Accept       json
// @Produce      json
// @Param        payload  body      service.VerifyQRRequest  true  "QR Payload"
// @Success      200      {object}  response.Response{data=service.VerifyQRResponse}
// @Failure      400      {object}  response.Response
// @Router       /api/forms/verify-qr [post]
func (h *TaxFreeHandler) VerifyQR(c *gin.Context) {
	var req service.VerifyQRRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, response.Error(http.StatusBadRequest, "Invalid request payload: "+err.Error()))
		return
	}

	result, err := h.taxFreeService.VerifyQR(c.Request.Context(), req)
	if err != nil {
		c.JSON(http.StatusBadRequest, response.Error(http.StatusBadRequest, err.Error()))
		return
	}

	c.JSON(http.StatusOK, response.Success(http.StatusOK, result))
}

// IssueForm hands the printed form to the traveler
// @Summary      Issue form
// @Tags         forms
// @Security     BearerAuth
// @Produce      json
// @Param        id   path      string  true  "Form ID"
// @Success      200  {object}  response.Response{data=service.FormResponse}
// @Failure      400  {object}  response.Response
// @Router       /api/forms/{id}/issue [put]
func (h *TaxFreeHandler) IssueForm(c *gin.Context) {
	form, err := h.taxFreeService.IssueForm(c.Request.Context(), c.Param("id"), c.GetString("userID"))
	if err != nil {
		c.JSON(http.StatusBadRequest, response.Error(http.StatusBadRequest, err.Error()))
		return
	}

	c.JSON(http.StatusOK, response.Success(http.StatusOK, form))
}

// ValidateForm records a customs validation scan
// @Summary      Validate form
// @Tags         forms
// @Security     BearerAuth
// @Produce      json
// @Param        id   path      string  true  "Form ID"
// @Success      200  {object}  response.Response{data=service.FormResponse}
// @Failure      400  {object}  response.Response
// @Router       /api/forms/{id}/validate [put]
func (h *TaxFreeHandler) ValidateForm(c *gin.Context) {
	form, err := h.taxFreeService.ValidateForm(c.Request.Context(), c.Param("id"), c.GetString("userID"))
	if err != nil {
		c.JSON(http.StatusBadRequest, response.Error(http.StatusBadRequest, err.Error()))
		return
	}

	c.JSON(http.StatusOK, response.Success(http.StatusOK, form))
}

// RefuseForm records a customs refusal
// @Summary      Refuse form
// @Tags         forms
// @Security     BearerAuth
// @Accept       json
// @Produce      json
// @Param        id       path      string                     true  "Form ID"
// @Param        payload  body      service.RefuseFormRequest  true  "Refusal Payload"
// @Success      200      {object}  response.Response{data=service.FormResponse}
// @Failure      400      {object}  response.Response
// @Router       /api/forms/{id}/refuse [put]
func (h *TaxFreeHandler) RefuseForm(c *gin.Context) {
	var req service.RefuseFormRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, response.Error(http.StatusBadRequest, "Invalid request payload: "+err.Error()))
		return
	}

	form, err := h.taxFreeService.RefuseForm(c.Request.Context(), c.Param("id"), req, c.GetString("userID"))
	if err != nil {
		c.JSON(http.StatusBadRequest, response.Error(http.StatusBadRequest, err.Error()))
		return
	}

	c.JSON(http.StatusOK, response.Success(http.StatusOK, form))
}

// CancelForm voids a form before settlement
// @Summary      Cancel form
// @Tags         forms
// @Security     BearerAuth
// @Accept       json
// @Produce      json
// @Param        id       path      string                     true  "Form ID"
// @Param        payload  body      service.CancelFormRequest  true  "Cancellation Payload"
// @Success      200      {object}  response.Response{data=service.FormResponse}
// @Failure      400      {object}  response.Response
// @Router       /api/forms/{id}/cancel [put]
func (h *TaxFreeHandler) CancelForm(c *gin.Context) {
	var req service.CancelFormRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, response.Error(http.StatusBadRequest, "Invalid request payload: "+err.Error()))
		return
	}

	form, err := h.taxFreeService.CancelForm(c.Request.Context(), c.Param("id"), req, c.GetString("userID"))
	if err != nil {
		c.JSON(http.StatusBadRequest, response.Error(http.StatusBadRequest, err.Error()))
		return
	}

	c.JSON(http.StatusOK, response.Success(http.StatusOK, form))
}
