package handler

import (
	"net/http"
	"strconv"

	"backend/internal/middleware"
	"backend/internal/model"
	"backend/internal/service"
	"backend/pkg/response"

	"github.com/gin-gonic/gin"
)

type CurrencyHandler struct {
	currencyService service.CurrencyService
}

func NewCurrencyHandler(currencyService service.CurrencyService) *CurrencyHandler {
	return &CurrencyHandler{currencyService: currencyService}
}

func (h *CurrencyHandler) RegisterRoutes(router *gin.RouterGroup) {
	allRoles := middleware.RequireRole(model.RoleAdmin, model.RoleOperator, model.RoleCustoms, model.RoleMerchant, model.RoleAuditor)

	currencies := router.Group("/api/currencies")
	{
		currencies.GET("", allRoles, h.ListCurrencies)
		currencies.GET("/:code/history", allRoles, h.GetRateHistory)
		currencies.POST("/convert", allRoles, h.Convert)
		currencies.POST("", middleware.RequireRole(model.RoleAdmin), h.CreateCurrency)
		currencies.PUT("/:code/rate", middleware.RequireRole(model.RoleAdmin), h.UpdateRate)
		currencies.PUT("/:code/base", middleware.RequireRole(model.RoleAdmin), h.SetBaseCurrency)
		currencies.PUT("/:code/toggle", middleware.RequireRole(model.RoleAdmin), h.ToggleActive)
	}
}

// ListCurrencies returns all configured currencies
// @Summary      List currencies
// @Tags         currencies
// @Security     BearerAuth
// @Produce      json
// @Param        active  query     bool  false  "Only active currencies"
// @Success      200     {object}  response.Response{data=[]service.CurrencyResponse}
// @Router       /api/currencies [get]
func (h *CurrencyHandler) ListCurrencies(c *gin.Context) {
	activeOnly, _ := strconv.ParseBool(c.Query("active"))

	currencies, err := h.currencyService.GetCurrencies(c.Request.Context(), activeOnly)
	if err != nil {
		c.JSON(http.StatusInternalServerError, response.Error(http.StatusInternalServerError, err.Error()))
		return
	}

	c.JSON(http.StatusOK, response.Success(http.StatusOK, currencies))
}

// GetRateHistory returns the exchange rate history of a currency
// @Summary      Get rate history
// @Tags         currencies
// @Security     BearerAuth
// @Produce      json
// @Param        code   path      string  true   "Currency code"
// @Param        limit  query     int     false  "Max entries (default 50)"
// @Success      200    {object}  response.Response{data=[]service.RateHistoryResponse}
// @Failure      404    {object}  response.Response
// @Router       /api/currencies/{code}/history [get]
func (h *CurrencyHandler) GetRateHistory(c *gin.Context) {
	limit, err := strconv.Atoi(c.DefaultQuery("limit", "50"))
	if err != nil || limit < 1 {
		limit = 50
	}

	history, err := h.currencyService.GetRateHistory(c.Request.Context(), c.Param("code"), limit)
	if err != nil {
		c.JSON(http.StatusNotFound, response.Error(http.StatusNotFound, err.Error()))
		return
	}

	c.JSON(http.StatusOK, response.Success(http.StatusOK, history))
}

// Convert converts an amount between two currencies
// @Summary      Convert amount
// @Tags         currencies
// @Security     BearerAuth
// @Accept       json
// @Produce      json
// @Param        payload  body      service.ConvertRequest  true  "Conversion Payload"
// @Success      200      {object}  response.Response{data=service.ConvertResponse}
// @Failure      400      {object}  response.Response
// @Router       /api/currencies/convert [post]
func (h *CurrencyHandler) Convert(c *gin.Context) {
	var req service.ConvertRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, response.Error(http.StatusBadRequest, "Invalid request payload: "+err.Error()))
		return
	}

	result, err := h.currencyService.Convert(c.Request.Context(), req)
	if err != nil {
		c.JSON(http.StatusBadRequest, response.Error(http.StatusBadRequest, err.Error()))
		return
	}

	c.JSON(http.StatusOK, response.Success(http.StatusOK, result))
}

// CreateCurrency registers a new currency
// @Summary      Create currency
// @Tags         currencies
// @Security     BearerAuth
// @Accept       json
// @Produce      json
// @Param        payload  body      service.CreateCurrencyRequest  true  "Currency Payload"
// @Success      201      {object}  response.Response{data=service.CurrencyResponse}
// @Failure      400      {object}  response.Response
// @Router       /api/currencies [post]
func (h *CurrencyHandler) CreateCurrency(c *gin.Context) {
	var req service.CreateCurrencyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, response.Error(http.StatusBadRequest, "Invalid request payload: "+err.Error()))
		return
	}

	currency, err := h.currencyService.CreateCurrency(c.Request.Context(), req, c.GetString("userID"))
	if err != nil {
		c.JSON(http.StatusBadRequest, response.Error(http.StatusBadRequest, err.Error()))
		return
	}

	c.JSON(http.StatusCreated, response.Success(http.StatusCreated, currency))
}

// UpdateRate sets a new exchange rate for a currency
// @Summary      Update exchange rate
// @Tags         currencies
// @Security     BearerAuth
// @Accept       json
// @Produce      json
// @Param        code     path      string                     true  "Currency code"
// @Param        payload  body      service.UpdateRateRequest  true  "Rate Payload"
// @Success      200      {object}  response.Response{data=service.CurrencyResponse}
// @Failure      400      {object}  response.Response
// @Router       /api/currencies/{code}/rate [put]
func (h *CurrencyHandler) UpdateRate(c *gin.Context) {
	var req service.UpdateRateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, response.Error(http.StatusBadRequest, "Invalid request payload: "+err.Error()))
		return
	}

	currency, err := h.currencyService.UpdateRate(c.Request.Context(), c.Param("code"), req, c.GetString("userID"))
	if err != nil {
		c.JSON(http.StatusBadRequest, response.Error(http.StatusBadRequest, err.Error()))
		return
	}

	c.JSON(http.StatusOK, response.Success(http.StatusOK, currency))
}

// SetBaseCurrency promotes a currency to be the settlement base
// @Summary      Set base currency
// @Tags         currencies
// @Security     BearerAuth
// @Produce      json
// @Param        code  path      string  true  "Currency code"
// @Success      200   {object}  response.Response{data=service.CurrencyResponse}
// @Failure      400   {object}  response.Response
// @Router       /api/currencies/{code}/base [put]
func (h *CurrencyHandler) SetBaseCurrency(c *gin.Context) {
	currency, err := h.currencyService.SetBaseCurrency(c.Request.Context(), c.Param("code"), c.GetString("userID"))
	if err != nil {
		c.JSON(http.StatusBadRequest, response.Error(http.StatusBadRequest, err.Error()))
		return
	}

	c.JSON(http.StatusOK, response.Success(http.StatusOK, currency))
}

// ToggleActive flips a currency between active and inactive
// @Summary      Toggle currency
// @Tags         currencies
// @Security     BearerAuth
// @Produce      json
// @Param        code  path      string  true  "Currency code"
// @Success      200   {object}  response.Response{data=service.CurrencyResponse}
// @Failure      400   {object}  response.Response
// @Router       /api/currencies/{code}/toggle [put]
func (h *CurrencyHandler) ToggleActive(c *gin.Context) {
	currency, err := h.currencyService.ToggleActive(c.Request.Context(), c.Param("code"), c.GetString("userID"))
	if err != nil {
		c.JSON(http.StatusBadRequest, response.Error(http.StatusBadRequest, err.Error()))
		return
	}

	c.JSON(http.StatusOK, response.Success(http.StatusOK, currency))
}
