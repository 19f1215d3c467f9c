package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"eccnsw/memberdesk/internal/engine"
	"eccnsw/memberdesk/internal/models"
	"eccnsw/memberdesk/internal/services"
	"eccnsw/memberdesk/internal/storage"
	"eccnsw/memberdesk/internal/utils"
)

// InvoiceHandler handles REST requests for invoices and the dashboard.
type InvoiceHandler struct {
	invoiceService services.IInvoiceService
	levelService   services.ILevelService
	storageService storage.IS3Storage
}

// NewInvoiceHandler creates a new InvoiceHandler.
func NewInvoiceHandler(invoiceService services.IInvoiceService, levelService services.ILevelService, storageService storage.IS3Storage) *InvoiceHandler {
	return &InvoiceHandler{
		invoiceService: invoiceService,
		levelService:   levelService,
		storageService: storageService,
	}
}

// ListInvoices handles GET /v1/invoices?fy=<label>.
func (h *InvoiceHandler) ListInvoices(c *gin.Context) {
	fyLabel := c.Query("fy")
	if fyLabel == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "fy query parameter is required"})
		return
	}
	if _, err := models.FinancialYearForLabel(fyLabel); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid financial year label"})
		return
	}
	invoices, err := h.invoiceService.ListByYear(c.Request.Context(), fyLabel)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": invoices})
}

// GetInvoice handles GET /v1/invoices/:id.
func (h *InvoiceHandler) GetInvoice(c *gin.Context) {
	invoiceID, err := utils.ParseSixID(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid invoice ID"})
		return
	}
	inv, err := h.invoiceService.FindByID(c.Request.Context(), invoiceID)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, inv)
}

// ListMemberInvoices handles GET /v1/members/:id/invoices.
func (h *InvoiceHandler) ListMemberInvoices(c *gin.Context) {
	memberID, err := utils.ParseSixID(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid member ID"})
		return
	}
	invoices, err := h.invoiceService.ListByMember(c.Request.Context(), memberID)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": invoices})
}

// GetOutstandingInvoice handles GET /v1/members/:id/outstanding?fy=<label>.
func (h *InvoiceHandler) GetOutstandingInvoice(c *gin.Context) {
	memberID, err := utils.ParseSixID(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid member ID"})
		return
	}
	fyLabel := c.Query("fy")
	if _, err := models.FinancialYearForLabel(fyLabel); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid financial year label"})
		return
	}
	inv, err := h.invoiceService.OutstandingInvoice(c.Request.Context(), memberID, fyLabel)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, inv)
}

// generateInvoiceInput configures a single ad hoc invoice.
type generateInvoiceInput struct {
	MemberID          string     `json:"member_id" binding:"required"`
	FinancialYear     string     `json:"financial_year" binding:"required"`
	LevelID           string     `json:"level_id" binding:"required"`
	Date              time.Time  `json:"date"`
	DueDate           *time.Time `json:"due_date"`
	NumberOfYears     int        `json:"number_of_years"`
	IncludeJoiningFee bool       `json:"include_joining_fee"`
	WaiveFee          bool       `json:"waive_fee"`
	Notes             string     `json:"notes"`
}

// GenerateInvoice handles POST /v1/invoices.
func (h *InvoiceHandler) GenerateInvoice(c *gin.Context) {
	var input generateInvoiceInput
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body: " + err.Error()})
		return
	}

	memberID, err := utils.ParseSixID(input.MemberID)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid member ID"})
		return
	}
	fy, err := models.FinancialYearForLabel(input.FinancialYear)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid financial year label"})
		return
	}
	levelID, err := utils.ParseSixID(input.LevelID)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid level ID"})
		return
	}
	level, err := h.levelService.FindLevel(c.Request.Context(), levelID)
	if err != nil {
		respondServiceError(c, err)
		return
	}

	inv, err := h.invoiceService.GenerateSingle(c.Request.Context(), memberID, engine.SingleInvoiceOptions{
		FinancialYear:     fy,
		Level:             *level,
		Date:              input.Date,
		DueDate:           input.DueDate,
		NumberOfYears:     input.NumberOfYears,
		IncludeJoiningFee: input.IncludeJoiningFee,
		WaiveFee:          input.WaiveFee,
		Notes:             input.Notes,
	})
	if err != nil {
		respondServiceError(c, err)
		return
	}
	c.JSON(http.StatusCreated, inv)
}

// bulkInvoiceInput configures a bulk generation run.
type bulkInvoiceInput struct {
	Mode                    string    `json:"mode" binding:"required"`
	TargetYear              string    `json:"target_year" binding:"required"`
	ViewedYear              string    `json:"viewed_year" binding:"required"`
	LevelID                 string    `json:"level_id"`
	DueDate                 time.Time `json:"due_date" binding:"required"`
	IncludeJoiningFeeForNew bool      `json:"include_joining_fee_for_new"`
}

// GenerateBulkInvoices handles POST /v1/invoices/bulk.
func (h *InvoiceHandler) GenerateBulkInvoices(c *gin.Context) {
	var input bulkInvoiceInput
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body: " + err.Error()})
		return
	}

	mode := engine.BulkMode(input.Mode)
	switch mode {
	case engine.BulkModeAll, engine.BulkModeUnpaid, engine.BulkModeLevel:
	default:
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid bulk mode"})
		return
	}

	target, err := models.FinancialYearForLabel(input.TargetYear)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid target year label"})
		return
	}
	viewed, err := models.FinancialYearForLabel(input.ViewedYear)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid viewed year label"})
		return
	}

	opts := engine.BulkOptions{
		Mode:                    mode,
		TargetYear:              target,
		ViewedYear:              viewed,
		DueDate:                 input.DueDate,
		IncludeJoiningFeeForNew: input.IncludeJoiningFeeForNew,
	}
	if input.LevelID != "" {
		levelID, err := utils.ParseSixID(input.LevelID)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid level ID"})
			return
		}
		opts.LevelID = &levelID
	}

	invoices, err := h.invoiceService.GenerateBulk(c.Request.Context(), opts)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"data": invoices, "count": len(invoices)})
}

// recordPaymentInput is the body of a payment against an invoice.
type recordPaymentInput struct {
	Amount   float64   `json:"amount"`
	PaidDate time.Time `json:"paid_date"`
	Details  string    `json:"details"`
}

// RecordPayment handles POST /v1/invoices/:id/payments.
func (h *InvoiceHandler) RecordPayment(c *gin.Context) {
	invoiceID, err := utils.ParseSixID(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid invoice ID"})
		return
	}
	var input recordPaymentInput
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body: " + err.Error()})
		return
	}
	if input.PaidDate.IsZero() {
		input.PaidDate = time.Now().UTC()
	}

	inv, err := h.invoiceService.RecordPayment(c.Request.Context(), invoiceID, input.Amount, input.PaidDate, input.Details)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, inv)
}

// MarkFullyPaid handles POST /v1/invoices/:id/mark-paid.
func (h *InvoiceHandler) MarkFullyPaid(c *gin.Context) {
	invoiceID, err := utils.ParseSixID(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid invoice ID"})
		return
	}
	inv, err := h.invoiceService.MarkFullyPaid(c.Request.Context(), invoiceID)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, inv)
}

// VoidInvoice handles POST /v1/invoices/:id/void.
func (h *InvoiceHandler) VoidInvoice(c *gin.Context) {
	invoiceID, err := utils.ParseSixID(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid invoice ID"})
		return
	}
	inv, err := h.invoiceService.Void(c.Request.Context(), invoiceID)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, inv)
}

// GetInvoiceDocument handles GET /v1/invoices/:id/document, returning a
// short-lived download URL for the rendered workbook.
func (h *InvoiceHandler) GetInvoiceDocument(c *gin.Context) {
	invoiceID, err := utils.ParseSixID(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid invoice ID"})
		return
	}
	inv, err := h.invoiceService.FindByID(c.Request.Context(), invoiceID)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	if inv.DocumentKey == "" {
		c.JSON(http.StatusNotFound, gin.H{"error": "Invoice document not yet rendered"})
		return
	}
	url, err := h.storageService.GeneratePresignedGetURL(c.Request.Context(), inv.DocumentKey)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"url": url})
}

// GetSummary handles GET /v1/dashboard/summary?fy=<label>.
func (h *InvoiceHandler) GetSummary(c *gin.Context) {
	fy, err := models.FinancialYearForLabel(c.Query("fy"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid financial year label"})
		return
	}
	summary, err := h.invoiceService.Summary(c.Request.Context(), fy)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, summary)
}
