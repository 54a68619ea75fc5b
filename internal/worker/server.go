package worker

import (
	"context"
	"encoding/json"
	"fmt"
	"log"

	"github.com/hibiken/asynq"

	"microfin-service/internal/services"
	"microfin-service/pkg/common"
)

type Worker struct {
	Commissions *services.CommissionService
}

func NewWorker(commissions *services.CommissionService) *Worker {
	return &Worker{Commissions: commissions}
}

func (w *Worker) HandleCalculatePeriod(ctx context.Context, t *asynq.Task) error {
	var p CalculatePeriodPayload
	if err := json.Unmarshal(t.Payload(), &p); err != nil {
		return fmt.Errorf("json.Unmarshal failed: %v: %w", err, asynq.SkipRetry)
	}

	summary, err := w.Commissions.CalculateCommissionsForPeriod(p.Mois, p.Annee, p.ClientIDs)
	if err != nil {
		return fmt.Errorf("commission run %s: %w", p.RunID, err)
	}

	log.Printf("Commission run %s for %s: %d succeeded, %d failed",
		p.RunID, common.MonthLabel(p.Mois, p.Annee), len(summary.Succeeded), len(summary.Failed))
	for _, f := range summary.Failed {
		log.Printf("Commission run %s: client %d failed: %s", p.RunID, f.ClientID, f.Reason)
	}
	return nil
}

func StartWorker(redisOpt asynq.RedisClientOpt, commissions *services.CommissionService) {
	srv := asynq.NewServer(
		redisOpt,
		asynq.Config{
			Concurrency: 5,
			Queues: map[string]int{
				"default": 1,
			},
		},
	)

	worker := NewWorker(commissions)
	mux := asynq.NewServeMux()
	mux.HandleFunc(TypeCalculatePeriod, worker.HandleCalculatePeriod)

	if err := srv.Run(mux); err != nil {
		log.Fatalf("could not run worker: %v", err)
	}
}
