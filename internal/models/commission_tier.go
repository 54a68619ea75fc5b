package models

import (
	"time"
)

// CommissionTier is one bracket of the commission rate table. MontantMax is
// nil for the open-ended top tier. Exactly one of Montant (flat amount) or
// Taux (rate applied to the deposit total) is set.
type CommissionTier struct {
	ID         uint      `gorm:"primaryKey;autoIncrement" json:"id"`
	Position   int       `gorm:"column:position;not null" json:"position"`
	MontantMin float64   `gorm:"column:montant_min;type:decimal(15,2);not null" json:"montantMin"`
	MontantMax *float64  `gorm:"column:montant_max;type:decimal(15,2)" json:"montantMax"`
	Montant    *float64  `gorm:"column:montant;type:decimal(15,2)" json:"montant,omitempty"`
	Taux       *float64  `gorm:"column:taux;type:decimal(8,6)" json:"taux,omitempty"`
	CreatedAt  time.Time `gorm:"column:created_at;autoCreateTime" json:"created_at"`
}

func (CommissionTier) TableName() string {
	return "commission_tiers"
}

// Contains reports whether total falls inside the tier's half-open
// [MontantMin, MontantMax) interval. The open-ended tier matches any total
// at or above its minimum.
func (t CommissionTier) Contains(total float64) bool {
	if total < t.MontantMin {
		return false
	}
	return t.MontantMax == nil || total < *t.MontantMax
}

// Amount returns the commission owed for a deposit total matched by this tier.
func (t CommissionTier) Amount(total float64) float64 {
	if t.Montant != nil {
		return *t.Montant
	}
	if t.Taux != nil {
		return total * *t.Taux
	}
	return 0
}
