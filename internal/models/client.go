package models

import (
	"time"
)

// Client is a registered microfinance client. Solde is the running balance
// and must equal the signed sum of the client's transactions at all times.
type Client struct {
	ID        uint      `gorm:"primaryKey;autoIncrement" json:"id"`
	Matricule string    `gorm:"column:matricule;size:20;not null;uniqueIndex" json:"matricule"`
	Nom       string    `gorm:"column:nom;size:255;not null" json:"nom"`
	Telephone string    `gorm:"column:telephone;size:30;not null" json:"telephone"`
	Solde     float64   `gorm:"column:solde;type:decimal(15,2);default:0.00" json:"solde"`
	CreatedAt time.Time `gorm:"column:created_at;autoCreateTime" json:"created_at"`
	UpdatedAt time.Time `gorm:"column:updated_at;autoUpdateTime" json:"updated_at"`
}

func (Client) TableName() string {
	return "clients"
}
