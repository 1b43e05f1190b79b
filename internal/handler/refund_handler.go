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

type RefundHandler struct {
	refundService service.RefundService
}

func NewRefundHandler(refundService service.RefundService) *RefundHandler {
	return &RefundHandler{refundService: refundService}
}

func (h *RefundHandler) RegisterRoutes(router *gin.RouterGroup) {
	refunds := router.Group("/api/refunds")
	{
		refunds.GET("", middleware.RequireRole(model.RoleAdmin, model.RoleOperator, model.RoleAuditor), h.ListRefunds)
		refunds.GET("/:id", middleware.RequireRole(model.RoleAdmin, model.RoleOperator, model.RoleAuditor), h.GetRefund)
		refunds.GET("/:id/attempts", middleware.RequireRole(model.RoleAdmin, model.RoleOperator, model.RoleAuditor), h.GetAttempts)
		refunds.POST("", middleware.RequireRole(model.RoleAdmin, model.RoleOperator), h.CreateRefund)
		refunds.PUT("/:id/process", middleware.RequireRole(model.RoleAdmin, model.RoleOperator), h.ProcessRefund)
		refunds.PUT("/:id/collect-cash", middleware.RequireRole(model.RoleAdmin, model.RoleOperator), h.CollectCash)
		refunds.PUT("/:id/cancel", middleware.RequireRole(model.RoleAdmin, model.RoleOperator), h.CancelRefund)
	}
}

// ListRefunds returns a paginated list of refunds
// @Summary      List refunds
// @Tags         refunds
// @Security     BearerAuth
// @Produce      json
// @Param        status  query     string  false  "Filter by status"
// @Param        method  query     string  false  "Filter by refund method"
// @Param        page    query     int     false  "Page number (default 1)"
// @Param        limit   query     int     false  "Number of items per page (default 20)"
// @Success      200     {object}  response.Response{data=pagination.Page}
// @Router       /api/refunds [get]
func (h *RefundHandler) ListRefunds(c *gin.Context) {
	p := pagination.Parse(c)

	filter := service.RefundFilter{
		Status: c.Query("status"),
		Method: c.Query("method"),
		Page:   p.Page,
		Limit:  p.Limit,
	}

	refunds, total, err := h.refundService.ListRefunds(c.Request.Context(), filter)
	if err != nil {
		c.JSON(http.StatusInternalServerError, response.Error(http.StatusInternalServerError, err.Error()))
		return
	}

	c.JSON(http.StatusOK, response.Success(http.StatusOK, p.PageOf(refunds, total)))
}

// GetRefund returns one refund
// @Summary      Get refund
// @Tags         refunds
// @Security     BearerAuth
// @Produce      json
// @Param        id   path      string  true  "Refund ID"
// @Success      200  {object}  response.Response{data=service.RefundResponse}
// @Failure      404  {object}  response.Response
// @Router       /api/refunds/{id} [get]
func (h *RefundHandler) GetRefund(c *gin.Context) {
	refund, err := h.refundService.GetRefund(c.Request.Context(), c.Param("id"))
	if err != nil {
		c.JSON(http.StatusNotFound, response.Error(http.StatusNotFound, err.Error()))
		return
	}

	c.JSON(http.StatusOK, response.Success(http.StatusOK, refund))
}

// GetAttempts returns the payment attempt history of a refund
// @Summary      Get payment attempts
// @Tags         refunds
// @Security     BearerAuth
// @Produce      json
// @Param        id   path      string  true  "Refund ID"
// @Success      200  {object}  response.Response{data=[]service.PaymentAttemptResponse}
// @Failure      404  {object}  response.Response
// @Router       /api/refunds/{id}/attempts [get]
func (h *RefundHandler) GetAttempts(c *gin.Context) {
	attempts, err := h.refundService.GetAttempts(c.Request.Context(), c.Param("id"))
	if err != nil {
		c.JSON(http.StatusNotFound, response.Error(http.StatusNotFound, err.Error()))
		return
	}

	c.JSON(http.StatusOK, response.Success(http.StatusOK, attempts))
}

// CreateRefund opens a refund for a validated form
// @Summary      Create refund
// @Tags         refunds
// @Security     BearerAuth
// @Accept       json
// @Produce      json
// @Param        payload  body      service.CreateRefundRequest  true  "Refund Payload"
// @Success      201      {object}  response.Response{data=service.RefundResponse}
// @Failure      400      {object}  response.Response
// @Router       /api/refunds [post]
func (h *RefundHandler) CreateRefund(c *gin.Context) {
	var req service.CreateRefundRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, response.Error(http.StatusBadRequest, "Invalid request payload: "+err.Error()))
		return
	}

	refund, err := h.refundService.CreateRefund(c.Request.Context(), req, c.GetString("userID"))
	if err != nil {
		c.JSON(http.StatusBadRequest, response.Error(http.StatusBadRequest, err.Error()))
		return
	}

	c.JSON(http.StatusCreated, response.Success(http.StatusCreated, refund))
}

// ProcessRefund pushes a pending or retryable refund through its payment provider
// @Summary      Process refund
// @Tags         refunds
// @Security     BearerAuth
// @Produce      json
// @Param        id   path      string  true  "Refund ID"
// @Success      200  {object}  response.Response{data=service.RefundResponse}
// @Failure      400  {object}  response.Response
// @Router       /api/refunds/{id}/process [put]
func (h *RefundHandler) ProcessRefund(c *gin.Context) {
	refund, err := h.refundService.ProcessRefund(c.Request.Context(), c.Param("id"), c.GetString("userID"))
	if err != nil {
		c.JSON(http.StatusBadRequest, response.Error(http.StatusBadRequest, err.Error()))
		return
	}

	c.JSON(http.StatusOK, response.Success(http.StatusOK, refund))
}

// CollectCash settles an initiated cash refund at the counter
// @Summary      Collect cash
// @Tags         refunds
// @Security     BearerAuth
// @Accept       json
// @Produce      json
// @Param        id       path      string                      true  "Refund ID"
// @Param        payload  body      service.CollectCashRequest  true  "Collection Payload"
// @Success      200      {object}  response.Response{data=service.RefundResponse}
// @Failure      400      {object}  response.Response
// @Router       /api/refunds/{id}/collect-cash [put]
func (h *RefundHandler) CollectCash(c *gin.Context) {
	var req service.CollectCashRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, response.Error(http.StatusBadRequest, "Invalid request payload: "+err.Error()))
		return
	}

	refund, err := h.refundService.CollectCash(c.Request.Context(), c.Param("id"), req, c.GetString("userID"))
	if err != nil {
		c.JSON(http.StatusBadRequest, response.Error(http.StatusBadRequest, err.Error()))
		return
	}

	c.JSON(http.StatusOK, response.Success(http.StatusOK, refund))
}

// CancelRefund cancels a refund that has not been initiated
// @Summary      Cancel refund
// @Tags         refunds
// @Security     BearerAuth
// @Accept       json
// @Produce      json
// @Param        id       path      string                       true  "Refund ID"
// @Param        payload  body      service.CancelRefundRequest  true  "Cancellation Payload"
// @Success      200      {object}  response.Response{data=service.RefundResponse}
// @Failure      400      {object}  response.Response
// @Router       /api/refunds/{id}/cancel [put]
func (h *RefundHandler) CancelRefund(c *gin.Context) {
	var req service.CancelRefundRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, response.Error(http.StatusBadRequest, "Invalid request payload: "+err.Error()))
		return
	}

	refund, err := h.refundService.CancelRefund(c.Request.Context(), c.Param("id"), req, c.GetString("userID"))
	if err != nil {
		c.JSON(http.StatusBadRequest, response.Error(http.StatusBadRequest, err.Error()))
		return
	}

	c.JSON(http.StatusOK, response.Success(http.StatusOK, refund))
}
