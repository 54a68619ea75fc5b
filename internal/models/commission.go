package models

import (
	"time"
)

// Commission is the computed commission of one client for one period.
// The composite unique index guarantees at most one row per
// (client, mois, annee); recalculation updates in place.
type Commission struct {
	ID                uint      `gorm:"primaryKey;autoIncrement" json:"id"`
	ClientID          uint      `gorm:"column:client_id;not null;uniqueIndex:idx_commission_client_period" json:"clientId"`
	Mois              int       `gorm:"column:mois;not null;uniqueIndex:idx_commission_client_period" json:"mois"`
	Annee             int       `gorm:"column:annee;not null;uniqueIndex:idx_commission_client_period" json:"annee"`
	MontantTotal      float64   `gorm:"column:montant_total;type:decimal(15,2);not null" json:"montantTotal"`
	MontantCommission float64   `gorm:"column:montant_commission;type:decimal(15,2);not null" json:"montantCommission"`
	Label             string    `gorm:"column:label;size:50" json:"label"`
	CreatedAt         time.Time `gorm:"column:created_at;autoCreateTime" json:"dateCreation"`
	UpdatedAt         time.Time `gorm:"column:updated_at;autoUpdateTime" json:"updated_at"`
}

func (Commission) TableName() string {
	return "commissions"
}
