package models

import (
	"time"
)

const (
	TransactionDepot   = "depot"
	TransactionRetrait = "retrait"
)

// Transaction is an immutable ledger entry. Montant is always positive; the
// sign of the balance effect comes from Type.
type Transaction struct {
	ID                uint      `gorm:"primaryKey;autoIncrement" json:"id"`
	ClientID          uint      `gorm:"column:client_id;not null;index" json:"clientId"`
	Type              string    `gorm:"column:type;size:20;not null" json:"type"`
	Montant           float64   `gorm:"column:montant;type:decimal(15,2);not null" json:"montant"`
	Description       string    `gorm:"column:description;type:text" json:"description"`
	SourceDestination string    `gorm:"column:source_destination;size:255" json:"sourceDestination"`
	Reference         string    `gorm:"column:reference;size:64;index" json:"reference"`
	CreatedAt         time.Time `gorm:"column:created_at;autoCreateTime;index" json:"dateCreation"`
}

func (Transaction) TableName() string {
	return "transactions"
}

// Effect is the signed impact of the transaction on the client balance.
func (t Transaction) Effect() float64 {
	if t.Type == TransactionRetrait {
		return -t.Montant
	}
	return t.Montant
}
