package services

import (
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/hibiken/asynq"
	"github.com/robfig/cron/v3"
	"gorm.io/gorm"

	"microfin-service/internal/models"
	"microfin-service/pkg/common"
)

// CommissionService computes tiered commissions per client per period. A
// period's commission is based on the client's gross deposit total for the
// month; withdrawals never reduce the base.
type CommissionService struct {
	DB     *gorm.DB
	Config *CommissionConfigService
}

func NewCommissionService(db *gorm.DB, config *CommissionConfigService) *CommissionService {
	return &CommissionService{DB: db, Config: config}
}

// Period is a (month, year) bucket.
type Period struct {
	Mois  int `json:"mois"`
	Annee int `json:"annee"`
}

func (p Period) Before(o Period) bool {
	return p.Annee < o.Annee || (p.Annee == o.Annee && p.Mois < o.Mois)
}

func (p Period) Next() Period {
	if p.Mois == 12 {
		return Period{Mois: 1, Annee: p.Annee + 1}
	}
	return Period{Mois: p.Mois + 1, Annee: p.Annee}
}

func periodOf(t time.Time) Period {
	return Period{Mois: int(t.Month()), Annee: t.Year()}
}

// previousPeriod returns the calendar month before now. Computed on the
// period, not via AddDate, so end-of-month dates never skip a month.
func previousPeriod(now time.Time) Period {
	p := periodOf(now)
	if p.Mois == 1 {
		return Period{Mois: 12, Annee: p.Annee - 1}
	}
	return Period{Mois: p.Mois - 1, Annee: p.Annee}
}

func validPeriod(mois, annee int) error {
	if mois < 1 || mois > 12 {
		return common.NewValidationError("mois must be between 1 and 12")
	}
	if annee < 2000 || annee > 2200 {
		return common.NewValidationError("annee out of range")
	}
	return nil
}

// GetMissingPeriods lists every period before the target that has no
// commission row yet, oldest first, starting from the client's first
// transaction period or first commission period, whichever is earlier. The
// target itself is never included. A client with no history before the
// target yields an empty list.
func (s *CommissionService) GetMissingPeriods(clientID uint, targetMonth, targetYear int) ([]Period, error) {
	if err := validPeriod(targetMonth, targetYear); err != nil {
		return nil, err
	}
	target := Period{Mois: targetMonth, Annee: targetYear}

	var firstTrx models.Transaction
	hasTrx := true
	err := s.DB.Where("client_id = ?", clientID).Order("created_at ASC").First(&firstTrx).Error
	if err != nil {
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, err
		}
		hasTrx = false
	}

	var firstCom models.Commission
	hasCom := true
	err = s.DB.Where("client_id = ?", clientID).Order("annee ASC, mois ASC").First(&firstCom).Error
	if err != nil {
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, err
		}
		hasCom = false
	}

	if !hasTrx && !hasCom {
		return []Period{}, nil
	}

	var start Period
	switch {
	case hasTrx && hasCom:
		start = periodOf(firstTrx.CreatedAt)
		if c := (Period{Mois: firstCom.Mois, Annee: firstCom.Annee}); c.Before(start) {
			start = c
		}
	case hasTrx:
		start = periodOf(firstTrx.CreatedAt)
	default:
		start = Period{Mois: firstCom.Mois, Annee: firstCom.Annee}
	}

	var existing []models.Commission
	if err := s.DB.Select("mois", "annee").Where("client_id = ?", clientID).Find(&existing).Error; err != nil {
		return nil, err
	}
	covered := make(map[Period]bool, len(existing))
	for _, c := range existing {
		covered[Period{Mois: c.Mois, Annee: c.Annee}] = true
	}

	missing := []Period{}
	for p := start; p.Before(target); p = p.Next() {
		if !covered[p] {
			missing = append(missing, p)
		}
	}
	return missing, nil
}

// CalculateClientCommission computes and persists the commission of one
// client for one period. Recalculation updates the existing row in place,
// reading the tier table fresh from the store, so the call is idempotent and
// can never produce a duplicate.
func (s *CommissionService) CalculateClientCommission(clientID uint, mois, annee int) (*models.Commission, error) {
	if err := validPeriod(mois, annee); err != nil {
		return nil, err
	}

	tiers, err := s.Config.GetTiers()
	if err != nil {
		return nil, err
	}

	var commission models.Commission
	err = s.DB.Transaction(func(tx *gorm.DB) error {
		var client models.Client
		if err := tx.First(&client, clientID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return common.NewNotFoundError("client not found")
			}
			return err
		}

		start, end := common.PeriodRange(mois, annee)
		var montantTotal float64
		err := tx.Model(&models.Transaction{}).
			Where("client_id = ? AND type = ? AND created_at >= ? AND created_at < ?",
				clientID, models.TransactionDepot, start, end).
			Select("COALESCE(SUM(montant), 0)").
			Scan(&montantTotal).Error
		if err != nil {
			return err
		}

		montantCommission, err := ComputeFromTiers(tiers, montantTotal)
		if err != nil {
			return err
		}

		err = tx.Where("client_id = ? AND mois = ? AND annee = ?", clientID, mois, annee).
			First(&commission).Error
		switch {
		case err == nil:
			commission.MontantTotal = montantTotal
			commission.MontantCommission = montantCommission
			commission.Label = common.MonthLabel(mois, annee)
			return tx.Save(&commission).Error
		case errors.Is(err, gorm.ErrRecordNotFound):
			commission = models.Commission{
				ClientID:          clientID,
				Mois:              mois,
				Annee:             annee,
				MontantTotal:      montantTotal,
				MontantCommission: montantCommission,
				Label:             common.MonthLabel(mois, annee),
			}
			return tx.Create(&commission).Error
		default:
			return err
		}
	})
	if err != nil {
		return nil, err
	}
	return &commission, nil
}

type ClientFailure struct {
	ClientID uint   `json:"clientId"`
	Reason   string `json:"reason"`
}

type PeriodRunSummary struct {
	Mois      int             `json:"mois"`
	Annee     int             `json:"annee"`
	Succeeded []uint          `json:"succeeded"`
	Failed    []ClientFailure `json:"failed"`
}

// CalculateCommissionsForPeriod runs the target period for the selected
// clients (all clients when none given). For each client the missing prior
// periods are backfilled oldest first, then the target is calculated. One
// client's failure is recorded and never aborts the others.
func (s *CommissionService) CalculateCommissionsForPeriod(mois, annee int, clientIDs []uint) (*PeriodRunSummary, error) {
	if err := validPeriod(mois, annee); err != nil {
		return nil, err
	}

	if len(clientIDs) == 0 {
		if err := s.DB.Model(&models.Client{}).Order("id ASC").Pluck("id", &clientIDs).Error; err != nil {
			return nil, err
		}
	}

	summary := &PeriodRunSummary{
		Mois:      mois,
		Annee:     annee,
		Succeeded: []uint{},
		Failed:    []ClientFailure{},
	}

	for _, clientID := range clientIDs {
		if err := s.calculateWithBackfill(clientID, mois, annee); err != nil {
			summary.Failed = append(summary.Failed, ClientFailure{
				ClientID: clientID,
				Reason:   common.MessageOf(err),
			})
			continue
		}
		summary.Succeeded = append(summary.Succeeded, clientID)
	}

	return summary, nil
}

// calculateWithBackfill fills missing prior periods strictly in
// chronological order before the target period, since a later period's
// missing status depends on earlier ones being filled.
func (s *CommissionService) calculateWithBackfill(clientID uint, mois, annee int) error {
	missing, err := s.GetMissingPeriods(clientID, mois, annee)
	if err != nil {
		return err
	}
	for _, p := range missing {
		if _, err := s.CalculateClientCommission(clientID, p.Mois, p.Annee); err != nil {
			return fmt.Errorf("backfill %s: %w", common.MonthLabel(p.Mois, p.Annee), err)
		}
	}
	_, err = s.CalculateClientCommission(clientID, mois, annee)
	return err
}

type ListCommissionsDTO struct {
	Page      int
	Limit     int
	ClientID  uint
	MoisAnnee string
}

func (s *CommissionService) ListCommissions(data ListCommissionsDTO) (common.PaginationResult, error) {
	limit := data.Limit
	if limit <= 0 {
		limit = 50
	}
	page := data.Page
	if page < 1 {
		page = 1
	}
	offset := (page - 1) * limit

	query := s.DB.Model(&models.Commission{})
	if data.ClientID != 0 {
		query = query.Where("client_id = ?", data.ClientID)
	}
	if data.MoisAnnee != "" {
		mois, annee, err := common.ParseMoisAnnee(data.MoisAnnee)
		if err != nil {
			return common.PaginationResult{}, common.NewValidationError(err.Error())
		}
		query = query.Where("mois = ? AND annee = ?", mois, annee)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return common.PaginationResult{}, err
	}

	var commissions []models.Commission
	if err := query.Order("annee DESC, mois DESC, client_id ASC").
		Limit(limit).Offset(offset).Find(&commissions).Error; err != nil {
		return common.PaginationResult{}, err
	}

	return common.PaginateResponse(commissions, total, page, limit, "Commissions fetched"), nil
}

// PeriodGroup is the per-period rollup used by summary views.
type PeriodGroup struct {
	Mois             int                 `json:"mois"`
	Annee            int                 `json:"annee"`
	TotalCommissions float64             `json:"totalCommissions"`
	TotalAmount      float64             `json:"totalAmount"`
	ClientCount      int                 `json:"clientCount"`
	Commissions      []models.Commission `json:"commissions"`
}

// GroupByPeriod folds commissions into per-period groups. Pure read-side
// derivation; group order follows first appearance in the input.
func GroupByPeriod(commissions []models.Commission) []PeriodGroup {
	index := make(map[Period]int)
	clients := make(map[Period]map[uint]bool)
	groups := []PeriodGroup{}

	for _, c := range commissions {
		key := Period{Mois: c.Mois, Annee: c.Annee}
		i, ok := index[key]
		if !ok {
			i = len(groups)
			index[key] = i
			clients[key] = make(map[uint]bool)
			groups = append(groups, PeriodGroup{Mois: c.Mois, Annee: c.Annee})
		}
		groups[i].TotalCommissions += c.MontantCommission
		groups[i].TotalAmount += c.MontantTotal
		groups[i].Commissions = append(groups[i].Commissions, c)
		clients[key][c.ClientID] = true
		groups[i].ClientCount = len(clients[key])
	}

	return groups
}

// GetPeriodSummary loads commissions (optionally for one period) and rolls
// them up per period.
func (s *CommissionService) GetPeriodSummary(moisAnnee string) ([]PeriodGroup, error) {
	query := s.DB.Model(&models.Commission{})
	if moisAnnee != "" {
		mois, annee, err := common.ParseMoisAnnee(moisAnnee)
		if err != nil {
			return nil, common.NewValidationError(err.Error())
		}
		query = query.Where("mois = ? AND annee = ?", mois, annee)
	}

	var commissions []models.Commission
	if err := query.Order("annee DESC, mois DESC, client_id ASC").Find(&commissions).Error; err != nil {
		return nil, err
	}
	return GroupByPeriod(commissions), nil
}

// StartScheduler enqueues the previous month's commission run for all
// clients on the 1st of each month at 02:00.
func (s *CommissionService) StartScheduler(client *asynq.Client, newTask func(mois, annee int, clientIDs []uint) (*asynq.Task, error)) {
	c := cron.New()
	_, err := c.AddFunc("0 2 1 * *", func() {
		prev := previousPeriod(time.Now())
		task, err := newTask(prev.Mois, prev.Annee, nil)
		if err != nil {
			log.Printf("Error building commission task: %v", err)
			return
		}
		if _, err := client.Enqueue(task); err != nil {
			log.Printf("Error enqueueing commission task: %v", err)
			return
		}
		log.Printf("Enqueued commission run for %s", common.MonthLabel(prev.Mois, prev.Annee))
	})
	if err != nil {
		log.Printf("Error scheduling commission task: %v", err)
		return
	}
	c.Start()
	log.Println("Commission scheduler started (monthly on the 1st at 02:00)")
}
