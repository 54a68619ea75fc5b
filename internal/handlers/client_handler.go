package handlers

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"microfin-service/internal/services"
	"microfin-service/pkg/common"
)

type ClientHandler struct {
	Service *services.ClientService
}

func NewClientHandler(service *services.ClientService) *ClientHandler {
	return &ClientHandler{Service: service}
}

func (h *ClientHandler) Create(c *gin.Context) {
	var req services.CreateClientDTO
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, common.NewErrorResponse("invalid request body", nil, http.StatusBadRequest))
		return
	}

	client, err := h.Service.CreateClient(req)
	if err != nil {
		c.JSON(common.StatusOf(err), common.FromError(err))
		return
	}
	c.JSON(http.StatusCreated, common.NewCreatedResponse(client, "Client created"))
}

func (h *ClientHandler) List(c *gin.Context) {
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))

	result, err := h.Service.ListClients(services.ListClientsDTO{
		Page:   page,
		Limit:  limit,
		Search: c.Query("search"),
	})
	if err != nil {
		c.JSON(common.StatusOf(err), common.FromError(err))
		return
	}
	c.JSON(http.StatusOK, result)
}

func (h *ClientHandler) Get(c *gin.Context) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, common.NewErrorResponse("invalid client id", nil, http.StatusBadRequest))
		return
	}

	client, err := h.Service.GetClient(uint(id))
	if err != nil {
		c.JSON(common.StatusOf(err), common.FromError(err))
		return
	}
	c.JSON(http.StatusOK, common.NewSuccessResponse(client, "Client fetched"))
}

func (h *ClientHandler) Update(c *gin.Context) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, common.NewErrorResponse("invalid client id", nil, http.StatusBadRequest))
		return
	}

	var req services.UpdateClientDTO
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, common.NewErrorResponse("invalid request body", nil, http.StatusBadRequest))
		return
	}

	client, err := h.Service.UpdateClient(uint(id), req)
	if err != nil {
		c.JSON(common.StatusOf(err), common.FromError(err))
		return
	}
	c.JSON(http.StatusOK, common.NewSuccessResponse(client, "Client updated"))
}

func (h *ClientHandler) Delete(c *gin.Context) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, common.NewErrorResponse("invalid client id", nil, http.StatusBadRequest))
		return
	}

	if err := h.Service.DeleteClient(uint(id)); err != nil {
		c.JSON(common.StatusOf(err), common.FromError(err))
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true})
}

func (h *ClientHandler) GenerateMatricule(c *gin.Context) {
	matricule, err := h.Service.GenerateMatricule()
	if err != nil {
		c.JSON(common.StatusOf(err), common.FromError(err))
		return
	}
	c.JSON(http.StatusOK, common.NewSuccessResponse(gin.H{"matricule": matricule}, "Matricule generated"))
}

// batchUploadEnvelope is the object form of an import payload.
type batchUploadEnvelope struct {
	Clients  []services.BatchUploadRecord `json:"clients"`
	Metadata map[string]interface{}       `json:"metadata"`
}

// BatchUpload accepts either a raw array of client records or a
// {clients: [...], metadata} envelope. The shape is detected once and
// normalized before validation.
func (h *ClientHandler) BatchUpload(c *gin.Context) {
	raw, err := c.GetRawData()
	if err != nil {
		c.JSON(http.StatusBadRequest, common.NewErrorResponse("unable to read request body", nil, http.StatusBadRequest))
		return
	}

	records, err := normalizeBatchPayload(raw)
	if err != nil {
		c.JSON(http.StatusBadRequest, common.NewErrorResponse(err.Error(), nil, http.StatusBadRequest))
		return
	}

	summary := h.Service.BatchUpload(records)
	c.JSON(http.StatusOK, common.NewSuccessResponse(summary, "Batch upload processed"))
}

func normalizeBatchPayload(raw []byte) ([]services.BatchUploadRecord, error) {
	var records []services.BatchUploadRecord
	if err := json.Unmarshal(raw, &records); err == nil {
		return records, nil
	}

	var envelope batchUploadEnvelope
	if err := json.Unmarshal(raw, &envelope); err == nil && envelope.Clients != nil {
		return envelope.Clients, nil
	}

	return nil, common.NewValidationError("body must be an array of clients or {clients: [...]}")
}
