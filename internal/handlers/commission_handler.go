package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/hibiken/asynq"

	"microfin-service/internal/services"
	"microfin-service/internal/worker"
	"microfin-service/pkg/common"
)

type CommissionHandler struct {
	Service *services.CommissionService
	Config  *services.CommissionConfigService
	Asynq   *asynq.Client
}

func NewCommissionHandler(service *services.CommissionService, config *services.CommissionConfigService, asynqClient *asynq.Client) *CommissionHandler {
	return &CommissionHandler{Service: service, Config: config, Asynq: asynqClient}
}

// CalculateRequest selects the target period either as moisAnnee "YYYY-MM"
// or as explicit mois/annee, optionally restricted to some clients.
type CalculateRequest struct {
	MoisAnnee string `json:"moisAnnee"`
	Mois      int    `json:"mois"`
	Annee     int    `json:"annee"`
	ClientIDs []uint `json:"clientIds"`
}

func (r *CalculateRequest) period() (int, int, error) {
	if r.MoisAnnee != "" {
		return common.ParseMoisAnnee(r.MoisAnnee)
	}
	return r.Mois, r.Annee, nil
}

func (h *CommissionHandler) Calculate(c *gin.Context) {
	var req CalculateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, common.NewErrorResponse("invalid request body", nil, http.StatusBadRequest))
		return
	}

	mois, annee, err := req.period()
	if err != nil {
		c.JSON(http.StatusBadRequest, common.NewErrorResponse(err.Error(), nil, http.StatusBadRequest))
		return
	}

	summary, err := h.Service.CalculateCommissionsForPeriod(mois, annee, req.ClientIDs)
	if err != nil {
		c.JSON(common.StatusOf(err), common.FromError(err))
		return
	}
	c.JSON(http.StatusOK, common.NewSuccessResponse(summary, "Commission calculation completed"))
}

// CalculateAsync enqueues the period run as a background task and returns
// immediately with the run id.
func (h *CommissionHandler) CalculateAsync(c *gin.Context) {
	var req CalculateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, common.NewErrorResponse("invalid request body", nil, http.StatusBadRequest))
		return
	}

	mois, annee, err := req.period()
	if err != nil {
		c.JSON(http.StatusBadRequest, common.NewErrorResponse(err.Error(), nil, http.StatusBadRequest))
		return
	}
	if mois < 1 || mois > 12 {
		c.JSON(http.StatusBadRequest, common.NewErrorResponse("mois must be between 1 and 12", nil, http.StatusBadRequest))
		return
	}

	task, runID, err := worker.NewCalculatePeriodTask(mois, annee, req.ClientIDs)
	if err != nil {
		c.JSON(http.StatusInternalServerError, common.NewErrorResponse("unable to build task", nil, http.StatusInternalServerError))
		return
	}
	if _, err := h.Asynq.Enqueue(task); err != nil {
		c.JSON(http.StatusInternalServerError, common.NewErrorResponse("unable to enqueue task", nil, http.StatusInternalServerError))
		return
	}

	c.JSON(http.StatusAccepted, common.NewSuccessResponse(gin.H{
		"runId": runID,
		"mois":  mois,
		"annee": annee,
	}, "Commission calculation enqueued"))
}

func (h *CommissionHandler) List(c *gin.Context) {
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))
	clientID, _ := strconv.ParseUint(c.Query("clientId"), 10, 64)

	result, err := h.Service.ListCommissions(services.ListCommissionsDTO{
		Page:      page,
		Limit:     limit,
		ClientID:  uint(clientID),
		MoisAnnee: c.Query("moisAnnee"),
	})
	if err != nil {
		c.JSON(common.StatusOf(err), common.FromError(err))
		return
	}
	c.JSON(http.StatusOK, result)
}

func (h *CommissionHandler) Summary(c *gin.Context) {
	groups, err := h.Service.GetPeriodSummary(c.Query("moisAnnee"))
	if err != nil {
		c.JSON(common.StatusOf(err), common.FromError(err))
		return
	}
	c.JSON(http.StatusOK, common.NewSuccessResponse(groups, "Commission summary fetched"))
}

func (h *CommissionHandler) GetConfig(c *gin.Context) {
	tiers, err := h.Config.GetTiers()
	if err != nil {
		c.JSON(common.StatusOf(err), common.FromError(err))
		return
	}
	c.JSON(http.StatusOK, common.NewSuccessResponse(tiers, "Commission config fetched"))
}

type PutConfigRequest struct {
	Tiers []services.TierInput `json:"tiers" binding:"required"`
}

func (h *CommissionHandler) PutConfig(c *gin.Context) {
	var req PutConfigRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, common.NewErrorResponse("invalid request body", nil, http.StatusBadRequest))
		return
	}

	tiers, err := h.Config.SetTiers(req.Tiers)
	if err != nil {
		c.JSON(common.StatusOf(err), common.FromError(err))
		return
	}
	c.JSON(http.StatusOK, common.NewSuccessResponse(tiers, "Commission config updated"))
}
