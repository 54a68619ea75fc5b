package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"microfin-service/internal/services"
	"microfin-service/pkg/common"
)

type TransactionHandler struct {
	Service *services.TransactionService
}

func NewTransactionHandler(service *services.TransactionService) *TransactionHandler {
	return &TransactionHandler{Service: service}
}

type CreateTransactionRequest struct {
	ClientID          uint    `json:"clientId" binding:"required"`
	Type              string  `json:"type" binding:"required"`
	Montant           float64 `json:"montant" binding:"required"`
	Description       string  `json:"description"`
	SourceDestination string  `json:"sourceDestination"`
}

func (h *TransactionHandler) Create(c *gin.Context) {
	var req CreateTransactionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, common.NewErrorResponse("invalid request body", nil, http.StatusBadRequest))
		return
	}

	trx, err := h.Service.RecordTransaction(services.RecordTransactionDTO{
		ClientID:          req.ClientID,
		Type:              req.Type,
		Montant:           req.Montant,
		Description:       req.Description,
		SourceDestination: req.SourceDestination,
	})
	if err != nil {
		c.JSON(common.StatusOf(err), common.FromError(err))
		return
	}
	c.JSON(http.StatusCreated, common.NewCreatedResponse(trx, "Transaction recorded"))
}

func (h *TransactionHandler) Delete(c *gin.Context) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, common.NewErrorResponse("invalid transaction id", nil, http.StatusBadRequest))
		return
	}

	if err := h.Service.DeleteTransaction(uint(id)); err != nil {
		c.JSON(common.StatusOf(err), common.FromError(err))
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true})
}

func (h *TransactionHandler) List(c *gin.Context) {
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))
	clientID, _ := strconv.ParseUint(c.Query("clientId"), 10, 64)

	result, err := h.Service.ListTransactions(services.ListTransactionsDTO{
		Page:      page,
		Limit:     limit,
		ClientID:  uint(clientID),
		Type:      c.Query("type"),
		StartDate: c.Query("startDate"),
		EndDate:   c.Query("endDate"),
	})
	if err != nil {
		c.JSON(common.StatusOf(err), common.FromError(err))
		return
	}
	c.JSON(http.StatusOK, result)
}
