package services

import (
	"fmt"
	"sort"

	"gorm.io/gorm"

	"microfin-service/internal/models"
	"microfin-service/pkg/common"
)

// CommissionConfigService owns the tier table. The table is singleton,
// versionless state: SetTiers replaces the whole set, and calculations read
// it fresh from the store so a config change never rewrites past commissions.
type CommissionConfigService struct {
	DB *gorm.DB
}

func NewCommissionConfigService(db *gorm.DB) *CommissionConfigService {
	return &CommissionConfigService{DB: db}
}

// TierInput is one bracket of a replacement tier table.
type TierInput struct {
	MontantMin float64  `json:"montantMin"`
	MontantMax *float64 `json:"montantMax"`
	Montant    *float64 `json:"montant"`
	Taux       *float64 `json:"taux"`
}

func (s *CommissionConfigService) GetTiers() ([]models.CommissionTier, error) {
	var tiers []models.CommissionTier
	if err := s.DB.Order("position ASC").Find(&tiers).Error; err != nil {
		return nil, err
	}
	return tiers, nil
}

// SetTiers validates and atomically replaces the tier table. On any
// validation failure the prior config is left untouched.
func (s *CommissionConfigService) SetTiers(inputs []TierInput) ([]models.CommissionTier, error) {
	ordered, err := ValidateTiers(inputs)
	if err != nil {
		return nil, err
	}

	tiers := make([]models.CommissionTier, len(ordered))
	for i, in := range ordered {
		tiers[i] = models.CommissionTier{
			Position:   i + 1,
			MontantMin: in.MontantMin,
			MontantMax: in.MontantMax,
			Montant:    in.Montant,
			Taux:       in.Taux,
		}
	}

	err = s.DB.Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("1 = 1").Delete(&models.CommissionTier{}).Error; err != nil {
			return err
		}
		return tx.Create(&tiers).Error
	})
	if err != nil {
		return nil, err
	}
	return tiers, nil
}

// ValidateTiers checks that the brackets form a contiguous, non-overlapping
// cover of [0, inf): sorted by montantMin the chain starts at 0, each tier's
// max equals the next tier's min, and exactly one tier, the last, is
// open-ended. Returns the inputs in chain order.
func ValidateTiers(inputs []TierInput) ([]TierInput, error) {
	if len(inputs) == 0 {
		return nil, common.NewValidationError("at least one commission tier is required")
	}

	ordered := make([]TierInput, len(inputs))
	copy(ordered, inputs)
	sort.SliceStable(ordered, func(i, j int) bool {
		return ordered[i].MontantMin < ordered[j].MontantMin
	})

	openEnded := 0
	for _, in := range ordered {
		if in.MontantMax == nil {
			openEnded++
		}
	}
	if openEnded != 1 {
		return nil, common.NewValidationError("exactly one tier must be open-ended (montantMax null)")
	}
	if ordered[len(ordered)-1].MontantMax != nil {
		return nil, common.NewValidationError("the open-ended tier must be the highest bracket")
	}

	if ordered[0].MontantMin != 0 {
		return nil, common.NewValidationError("the first tier must start at 0")
	}

	for i, in := range ordered {
		if in.MontantMin < 0 {
			return nil, common.NewValidationError("tier thresholds must be non-negative")
		}
		if in.MontantMax != nil && *in.MontantMax <= in.MontantMin {
			return nil, common.NewValidationError(
				fmt.Sprintf("tier %d has montantMax below or equal to montantMin", i+1))
		}
		if (in.Montant == nil) == (in.Taux == nil) {
			return nil, common.NewValidationError(
				fmt.Sprintf("tier %d must carry either a flat montant or a taux, not both", i+1))
		}
		if in.Montant != nil && *in.Montant < 0 {
			return nil, common.NewValidationError("commission amounts must be non-negative")
		}
		if in.Taux != nil && *in.Taux < 0 {
			return nil, common.NewValidationError("commission rates must be non-negative")
		}
		if i > 0 {
			prev := ordered[i-1]
			if prev.MontantMax == nil || *prev.MontantMax != in.MontantMin {
				return nil, common.NewValidationError(
					fmt.Sprintf("tier %d does not start where tier %d ends", i+1, i))
			}
		}
	}

	return ordered, nil
}

// ComputeCommission resolves the bracket containing totalDeposits and returns
// its commission. A total of exactly 0 resolves to the first tier.
func (s *CommissionConfigService) ComputeCommission(totalDeposits float64) (float64, error) {
	tiers, err := s.GetTiers()
	if err != nil {
		return 0, err
	}
	return ComputeFromTiers(tiers, totalDeposits)
}

// ComputeFromTiers is the pure bracket lookup over an already-loaded table.
func ComputeFromTiers(tiers []models.CommissionTier, totalDeposits float64) (float64, error) {
	if totalDeposits < 0 {
		return 0, common.NewValidationError("deposit total cannot be negative")
	}
	for _, tier := range tiers {
		if tier.Contains(totalDeposits) {
			return tier.Amount(totalDeposits), nil
		}
	}
	return 0, common.NewValidationError("no commission tier configured for this amount")
}
