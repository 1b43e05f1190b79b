package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"backend/internal/model"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// --- DTOs ---

type CreateSaleInvoiceRequest struct {
	MerchantID    string `json:"merchant_id" binding:"required"`
	OutletID      string `json:"outlet_id" binding:"required"`
	InvoiceNumber string `json:"invoice_number" binding:"required"`
	InvoiceDate   string `json:"invoice_date" binding:"required"` // YYYY-MM-DD

	PaymentMethod    string `json:"payment_method"`
	PaymentReference string `json:"payment_reference"`
	Notes            string `json:"notes"`

	Items []CreateSaleItemRequest `json:"items" binding:"required,min=1,dive"`
}

type CreateSaleItemRequest struct {
	ProductCode     string `json:"product_code"`
	Barcode         string `json:"barcode"`
	ProductName     string `json:"product_name" binding:"required"`
	ProductCategory string `json:"product_category"`
	Description     string `json:"description"`
	Quantity        string `json:"quantity" binding:"required"`
	UnitPrice       string `json:"unit_price" binding:"required"`
	VATRate         string `json:"vat_rate"` // percentage; empty falls back to the category default
}

type CancelInvoiceRequest struct {
	Reason string `json:"reason" binding:"required"`
}

type SaleInvoiceFilter struct {
	MerchantID string
	Cancelled  *bool
	Page       int
	Limit      int
}

type SaleInvoiceResponse struct {
	ID            string `json:"id"`
	MerchantID    string `json:"merchant_id"`
	MerchantName  string `json:"merchant_name,omitempty"`
	OutletID      string `json:"outlet_id"`
	InvoiceNumber string `json:"invoice_number"`
	InvoiceDate   string `json:"invoice_date"`

	Currency    string `json:"currency"`
	Subtotal    string `json:"subtotal"`
	TotalVAT    string `json:"total_vat"`
	TotalAmount string `json:"total_amount"`

	IsCancelled     bool   `json:"is_cancelled"`
	CancelledReason string `json:"cancelled_reason,omitempty"`

	Items     []SaleItemResponse `json:"items,omitempty"`
	CreatedAt string             `json:"created_at"`
}

type SaleItemResponse struct {
	ID                  string `json:"id"`
	ProductName         string `json:"product_name"`
	ProductCategory     string `json:"product_category"`
	Quantity            string `json:"quantity"`
	UnitPrice           string `json:"unit_price"`
	LineTotal           string `json:"line_total"`
	VATRate             string `json:"vat_rate"`
	VATAmount           string `json:"vat_amount"`
	IsEligible          bool   `json:"is_eligible"`
	IneligibilityReason string `json:"ineligibility_reason,omitempty"`
}

// --- Interface ---

type SaveCategoryRequest struct {
	ID                  string `json:"id"` // empty creates a new category
	Code                string `json:"code" binding:"required"`
	Name                string `json:"name" binding:"required"`
	Description         string `json:"description"`
	DefaultVATRate      string `json:"default_vat_rate"`
	IsEligibleByDefault *bool  `json:"is_eligible_by_default"`
	IsActive            *bool  `json:"is_active"`
	DisplayOrder        int    `json:"display_order"`
}

type SalesService interface {
	CreateInvoice(ctx context.Context, req CreateSaleInvoiceRequest, userID string) (SaleInvoiceResponse, error)
	CancelInvoice(ctx context.Context, id string, req CancelInvoiceRequest, userID string) (SaleInvoiceResponse, error)
	GetInvoice(ctx context.Context, id string) (SaleInvoiceResponse, error)
	ListInvoices(ctx context.Context, filter SaleInvoiceFilter) ([]SaleInvoiceResponse, int64, error)

	SaveCategory(ctx context.Context, req SaveCategoryRequest) (model.ProductCategory, error)
	ListCategories(ctx context.Context, activeOnly bool) ([]model.ProductCategory, error)
}

type salesService struct {
	db *gorm.DB
}

func NewSalesService(db *gorm.DB) SalesService {
	return &salesService{db: db}
}

// --- Implementation ---

// CreateInvoice records a sale with its line items. Line totals and VAT are
// computed server-side from quantity, unit price and the item's VAT rate;
// client-supplied totals are never trusted.
func (s *salesService) CreateInvoice(ctx context.Context, req CreateSaleInvoiceRequest, userID string) (SaleInvoiceResponse, error) {
	merchantID, err := uuid.Parse(req.MerchantID)
	if err != nil {
		return SaleInvoiceResponse{}, fmt.Errorf("invalid merchant_id: %w", err)
	}
	outletID, err := uuid.Parse(req.OutletID)
	if err != nil {
		return SaleInvoiceResponse{}, fmt.Errorf("invalid outlet_id: %w", err)
	}
	invoiceDate, err := time.Parse("2006-01-02", req.InvoiceDate)
	if err != nil {
		return SaleInvoiceResponse{}, fmt.Errorf("invalid invoice_date format (expected YYYY-MM-DD): %w", err)
	}

	var merchant model.Merchant
	if err := s.db.WithContext(ctx).First(&merchant, "id = ?", merchantID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return SaleInvoiceResponse{}, fmt.Errorf("merchant not found")
		}
		return SaleInvoiceResponse{}, fmt.Errorf("failed to fetch merchant: %w", err)
	}
	if !merchant.CanCreateForms() {
		return SaleInvoiceResponse{}, fmt.Errorf("merchant '%s' is not approved", merchant.Name)
	}

	var outlet model.Outlet
	if err := s.db.WithContext(ctx).First(&outlet, "id = ? AND merchant_id = ?", outletID, merchantID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return SaleInvoiceResponse{}, fmt.Errorf("outlet not found for this merchant")
		}
		return SaleInvoiceResponse{}, fmt.Errorf("failed to fetch outlet: %w", err)
	}

	var count int64
	if err := s.db.WithContext(ctx).Model(&model.SaleInvoice{}).
		Where("merchant_id = ? AND invoice_number = ?", merchantID, req.InvoiceNumber).
		Count(&count).Error; err != nil {
		return SaleInvoiceResponse{}, fmt.Errorf("failed to check invoice number: %w", err)
	}
	if count > 0 {
		return SaleInvoiceResponse{}, fmt.Errorf("invoice '%s' already exists for this merchant", req.InvoiceNumber)
	}

	items, err := s.buildItems(ctx, req.Items)
	if err != nil {
		return SaleInvoiceResponse{}, err
	}

	subtotal := decimal.Zero
	totalVAT := decimal.Zero
	for _, item := range items {
		subtotal = subtotal.Add(item.LineTotal)
		totalVAT = totalVAT.Add(item.VATAmount)
	}

	invoice := model.SaleInvoice{
		MerchantID:       merchantID,
		OutletID:         outletID,
		InvoiceNumber:    req.InvoiceNumber,
		InvoiceDate:      invoiceDate,
		Currency:         model.BaseCurrencyCode,
		Subtotal:         subtotal,
		TotalVAT:         totalVAT,
		TotalAmount:      subtotal.Add(totalVAT),
		PaymentMethod:    req.PaymentMethod,
		PaymentReference: req.PaymentReference,
		Notes:            req.Notes,
		Items:            items,
		CreatedBy:        parseOptionalUUID(userID),
	}

	if err := s.db.WithContext(ctx).Create(&invoice).Error; err != nil {
		return SaleInvoiceResponse{}, fmt.Errorf("failed to create invoice: %w", err)
	}
	invoice.Merchant = &merchant

	return toSaleInvoiceResponse(invoice), nil
}

// CancelInvoice marks a sale as void. Refused when a live tax-free form exists
// for it: the form must be cancelled first.
func (s *salesService) CancelInvoice(ctx context.Context, id string, req CancelInvoiceRequest, userID string) (SaleInvoiceResponse, error) {
	invoiceID, err := uuid.Parse(id)
	if err != nil {
		return SaleInvoiceResponse{}, fmt.Errorf("invalid invoice id: %w", err)
	}

	userUUID := parseOptionalUUID(userID)

	var invoice model.SaleInvoice
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if findErr := tx.First(&invoice, "id = ?", invoiceID).Error; findErr != nil {
			if errors.Is(findErr, gorm.ErrRecordNotFound) {
				return fmt.Errorf("invoice not found")
			}
			return fmt.Errorf("failed to fetch invoice: %w", findErr)
		}
		if invoice.IsCancelled {
			return fmt.Errorf("invoice is already cancelled")
		}

		var liveForms int64
		if countErr := tx.Model(&model.TaxFreeForm{}).
			Where("invoice_id = ? AND status NOT IN ?", invoiceID, []string{model.FormCancelled, model.FormRefused, model.FormExpired}).
			Count(&liveForms).Error; countErr != nil {
			return fmt.Errorf("failed to check forms for invoice: %w", countErr)
		}
		if liveForms > 0 {
			return fmt.Errorf("invoice has an active tax free form; cancel the form first")
		}

		now := time.Now()
		invoice.IsCancelled = true
		invoice.CancelledAt = &now
		invoice.CancelledReason = req.Reason
		if saveErr := tx.Save(&invoice).Error; saveErr != nil {
			return fmt.Errorf("failed to cancel invoice: %w", saveErr)
		}
		return nil
	})
	if err != nil {
		return SaleInvoiceResponse{}, err
	}

	details, _ := json.Marshal(map[string]string{"reason": req.Reason})
	recordAuditDB(ctx, s.db, &model.AuditLog{
		UserID:     userUUID,
		Action:     model.ActionInvoiceCancelled,
		EntityID:   invoice.ID.String(),
		EntityName: invoice.InvoiceNumber,
		Details:    string(details),
	})

	return toSaleInvoiceResponse(invoice), nil
}

func (s *salesService) GetInvoice(ctx context.Context, id string) (SaleInvoiceResponse, error) {
	invoiceID, err := uuid.Parse(id)
	if err != nil {
		return SaleInvoiceResponse{}, fmt.Errorf("invalid invoice id: %w", err)
	}

	var invoice model.SaleInvoice
	if err := s.db.WithContext(ctx).Preload("Items").Preload("Merchant").First(&invoice, "id = ?", invoiceID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return SaleInvoiceResponse{}, fmt.Errorf("invoice not found")
		}
		return SaleInvoiceResponse{}, fmt.Errorf("failed to fetch invoice: %w", err)
	}
	return toSaleInvoiceResponse(invoice), nil
}

func (s *salesService) ListInvoices(ctx context.Context, filter SaleInvoiceFilter) ([]SaleInvoiceResponse, int64, error) {
	query := s.db.WithContext(ctx).Model(&model.SaleInvoice{})
	if filter.MerchantID != "" {
		merchantID, err := uuid.Parse(filter.MerchantID)
		if err != nil {
			return nil, 0, fmt.Errorf("invalid merchant_id: %w", err)
		}
		query = query.Where("merchant_id = ?", merchantID)
	}
	if filter.Cancelled != nil {
		query = query.Where("is_cancelled = ?", *filter.Cancelled)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to count invoices: %w", err)
	}

	var invoices []model.SaleInvoice
	offset := (filter.Page - 1) * filter.Limit
	if err := query.Preload("Merchant").Order("created_at desc").Offset(offset).Limit(filter.Limit).Find(&invoices).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to fetch invoices: %w", err)
	}

	res := make([]SaleInvoiceResponse, 0, len(invoices))
	for _, inv := range invoices {
		res = append(res, toSaleInvoiceResponse(inv))
	}
	return res, total, nil
}

// --- Helpers ---

func (s *salesService) buildItems(ctx context.Context, reqs []CreateSaleItemRequest) ([]model.SaleItem, error) {
	items := make([]model.SaleItem, 0, len(reqs))
	for i, r := range reqs {
		quantity, err := decimal.NewFromString(r.Quantity)
		if err != nil {
			return nil, fmt.Errorf("item %d: invalid quantity: %w", i+1, err)
		}
		if !quantity.IsPositive() {
			return nil, fmt.Errorf("item %d: quantity must be positive", i+1)
		}
		unitPrice, err := decimal.NewFromString(r.UnitPrice)
		if err != nil {
			return nil, fmt.Errorf("item %d: invalid unit_price: %w", i+1, err)
		}
		if unitPrice.IsNegative() {
			return nil, fmt.Errorf("item %d: unit_price must not be negative", i+1)
		}

		category := r.ProductCategory
		if category == "" {
			category = "GENERAL"
		}

		vatRate, err := s.resolveVATRate(ctx, r.VATRate, category)
		if err != nil {
			return nil, fmt.Errorf("item %d: %w", i+1, err)
		}

		item := model.SaleItem{
			ProductCode:     r.ProductCode,
			Barcode:         r.Barcode,
			ProductName:     r.ProductName,
			ProductCategory: category,
			Description:     r.Description,
			Quantity:        quantity,
			UnitPrice:       unitPrice,
			VATRate:         vatRate,
			IsEligible:      true,
		}
		item.ComputeAmounts()
		items = append(items, item)
	}
	return items, nil
}

// resolveVATRate prefers the explicitly supplied rate, then the product
// category's configured default, then the global default of 16%.
func (s *salesService) resolveVATRate(ctx context.Context, rateStr, category string) (decimal.Decimal, error) {
	if rateStr != "" {
		rate, err := decimal.NewFromString(rateStr)
		if err != nil {
			return decimal.Zero, fmt.Errorf("invalid vat_rate: %w", err)
		}
		if rate.IsNegative() {
			return decimal.Zero, fmt.Errorf("vat_rate must not be negative")
		}
		return rate, nil
	}

	var cat model.ProductCategory
	err := s.db.WithContext(ctx).First(&cat, "code = ? AND is_active = ?", category, true).Error
	if err == nil {
		return cat.DefaultVATRate, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return decimal.Zero, fmt.Errorf("failed to resolve vat rate: %w", err)
	}
	return decimal.NewFromInt(16), nil
}

// SaveCategory creates a product category or, when an ID is supplied,
// rewrites an existing one. Codes stay unique across the catalog.
func (s *salesService) SaveCategory(ctx context.Context, req SaveCategoryRequest) (model.ProductCategory, error) {
	rate := decimal.NewFromInt(16)
	if req.DefaultVATRate != "" {
		parsed, err := decimal.NewFromString(req.DefaultVATRate)
		if err != nil {
			return model.ProductCategory{}, fmt.Errorf("invalid default_vat_rate: %w", err)
		}
		if parsed.IsNegative() {
			return model.ProductCategory{}, fmt.Errorf("default_vat_rate must not be negative")
		}
		rate = parsed
	}

	eligible := true
	if req.IsEligibleByDefault != nil {
		eligible = *req.IsEligibleByDefault
	}
	active := true
	if req.IsActive != nil {
		active = *req.IsActive
	}

	var cat model.ProductCategory
	if req.ID == "" {
		var count int64
		if err := s.db.WithContext(ctx).Model(&model.ProductCategory{}).Where("code = ?", req.Code).Count(&count).Error; err != nil {
			return model.ProductCategory{}, fmt.Errorf("failed to check category code: %w", err)
		}
		if count > 0 {
			return model.ProductCategory{}, fmt.Errorf("a category with code %s already exists", req.Code)
		}
		cat = model.ProductCategory{
			Code:                req.Code,
			Name:                req.Name,
			Description:         req.Description,
			DefaultVATRate:      rate,
			IsEligibleByDefault: eligible,
			IsActive:            active,
			DisplayOrder:        req.DisplayOrder,
		}
		if err := s.db.WithContext(ctx).Create(&cat).Error; err != nil {
			return model.ProductCategory{}, fmt.Errorf("failed to create category: %w", err)
		}
		return cat, nil
	}

	catID, err := uuid.Parse(req.ID)
	if err != nil {
		return model.ProductCategory{}, fmt.Errorf("invalid category id: %w", err)
	}
	if err := s.db.WithContext(ctx).First(&cat, "id = ?", catID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return model.ProductCategory{}, fmt.Errorf("category not found")
		}
		return model.ProductCategory{}, fmt.Errorf("failed to load category: %w", err)
	}

	var count int64
	if err := s.db.WithContext(ctx).Model(&model.ProductCategory{}).Where("code = ? AND id <> ?", req.Code, catID).Count(&count).Error; err != nil {
		return model.ProductCategory{}, fmt.Errorf("failed to check category code: %w", err)
	}
	if count > 0 {
		return model.ProductCategory{}, fmt.Errorf("a category with code %s already exists", req.Code)
	}

	cat.Code = req.Code
	cat.Name = req.Name
	cat.Description = req.Description
	cat.DefaultVATRate = rate
	cat.IsEligibleByDefault = eligible
	cat.IsActive = active
	cat.DisplayOrder = req.DisplayOrder
	if err := s.db.WithContext(ctx).Save(&cat).Error; err != nil {
		return model.ProductCategory{}, fmt.Errorf("failed to update category: %w", err)
	}
	return cat, nil
}

// ListCategories returns the catalog in display order
func (s *salesService) ListCategories(ctx context.Context, activeOnly bool) ([]model.ProductCategory, error) {
	query := s.db.WithContext(ctx).Model(&model.ProductCategory{})
	if activeOnly {
		query = query.Where("is_active = ?", true)
	}
	var cats []model.ProductCategory
	if err := query.Order("display_order asc, code asc").Find(&cats).Error; err != nil {
		return nil, fmt.Errorf("failed to list categories: %w", err)
	}
	return cats, nil
}

func toSaleInvoiceResponse(inv model.SaleInvoice) SaleInvoiceResponse {
	items := make([]SaleItemResponse, 0, len(inv.Items))
	for _, item := range inv.Items {
		items = append(items, SaleItemResponse{
			ID:                  item.ID.String(),
			ProductName:         item.ProductName,
			ProductCategory:     item.ProductCategory,
			Quantity:            item.Quantity.StringFixed(2),
			UnitPrice:           item.UnitPrice.StringFixed(2),
			LineTotal:           item.LineTotal.StringFixed(2),
			VATRate:             item.VATRate.StringFixed(2),
			VATAmount:           item.VATAmount.StringFixed(2),
			IsEligible:          item.IsEligible,
			IneligibilityReason: item.IneligibilityReason,
		})
	}

	resp := SaleInvoiceResponse{
		ID:              inv.ID.String(),
		MerchantID:      inv.MerchantID.String(),
		OutletID:        inv.OutletID.String(),
		InvoiceNumber:   inv.InvoiceNumber,
		InvoiceDate:     inv.InvoiceDate.Format("2006-01-02"),
		Currency:        inv.Currency,
		Subtotal:        inv.Subtotal.StringFixed(2),
		TotalVAT:        inv.TotalVAT.StringFixed(2),
		TotalAmount:     inv.TotalAmount.StringFixed(2),
		IsCancelled:     inv.IsCancelled,
		CancelledReason: inv.CancelledReason,
		Items:           items,
		CreatedAt:       inv.CreatedAt.Format(time.RFC3339),
	}
	if inv.Merchant != nil {
		resp.MerchantName = inv.Merchant.Name
	}
	return resp
}
