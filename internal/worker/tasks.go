package worker

import (
	"encoding/json"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"
)

// Task Types
const (
	TypeCalculatePeriod = "commission:calculate-period"
)

// CalculatePeriodPayload is the payload of a commission period run. An empty
// ClientIDs means all clients.
type CalculatePeriodPayload struct {
	RunID     string `json:"runId"`
	Mois      int    `json:"mois"`
	Annee     int    `json:"annee"`
	ClientIDs []uint `json:"clientIds,omitempty"`
}

// NewCalculatePeriodTask builds a period-run task and returns it together
// with the generated run id.
func NewCalculatePeriodTask(mois, annee int, clientIDs []uint) (*asynq.Task, string, error) {
	payload := CalculatePeriodPayload{
		RunID:     uuid.NewString(),
		Mois:      mois,
		Annee:     annee,
		ClientIDs: clientIDs,
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, "", err
	}
	return asynq.NewTask(TypeCalculatePeriod, data), payload.RunID, nil
}
