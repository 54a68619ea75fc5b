package services

import (
	"errors"
	"time"

	"gorm.io/gorm"

	"microfin-service/internal/models"
	"microfin-service/pkg/common"
)

// TransactionService records and reverses ledger entries. Every entry is
// paired with the client balance adjustment in one store transaction, so a
// balance/ledger mismatch can never be committed.
type TransactionService struct {
	DB *gorm.DB
}

func NewTransactionService(db *gorm.DB) *TransactionService {
	return &TransactionService{DB: db}
}

type RecordTransactionDTO struct {
	ClientID          uint
	Type              string
	Montant           float64
	Description       string
	SourceDestination string
}

func (s *TransactionService) RecordTransaction(data RecordTransactionDTO) (*models.Transaction, error) {
	if data.Montant <= 0 {
		return nil, common.NewValidationError("montant must be positive")
	}
	if data.Type != models.TransactionDepot && data.Type != models.TransactionRetrait {
		return nil, common.NewValidationError("type must be depot or retrait")
	}

	trx := models.Transaction{
		ClientID:          data.ClientID,
		Type:              data.Type,
		Montant:           data.Montant,
		Description:       data.Description,
		SourceDestination: data.SourceDestination,
		Reference:         common.GenerateReference(),
	}

	err := s.DB.Transaction(func(tx *gorm.DB) error {
		var client models.Client
		if err := tx.First(&client, data.ClientID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return common.NewNotFoundError("client not found")
			}
			return err
		}

		if err := tx.Create(&trx).Error; err != nil {
			return err
		}

		res := tx.Model(&models.Client{}).Where("id = ?", client.ID).
			Updates(map[string]interface{}{
				"solde":      gorm.Expr("solde + ?", trx.Effect()),
				"updated_at": time.Now(),
			})
		return res.Error
	})
	if err != nil {
		return nil, err
	}

	return &trx, nil
}

// DeleteTransaction removes a ledger entry and reverses its effect on the
// owning client's balance in the same store transaction.
func (s *TransactionService) DeleteTransaction(id uint) error {
	return s.DB.Transaction(func(tx *gorm.DB) error {
		var trx models.Transaction
		if err := tx.First(&trx, id).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return common.NewNotFoundError("transaction not found")
			}
			return err
		}

		if err := tx.Delete(&trx).Error; err != nil {
			return err
		}

		res := tx.Model(&models.Client{}).Where("id = ?", trx.ClientID).
			Updates(map[string]interface{}{
				"solde":      gorm.Expr("solde - ?", trx.Effect()),
				"updated_at": time.Now(),
			})
		return res.Error
	})
}

type ListTransactionsDTO struct {
	Page      int
	Limit     int
	ClientID  uint
	Type      string
	StartDate string
	EndDate   string
}

func (s *TransactionService) ListTransactions(data ListTransactionsDTO) (common.PaginationResult, error) {
	limit := data.Limit
	if limit <= 0 {
		limit = 50
	}
	page := data.Page
	if page < 1 {
		page = 1
	}
	offset := (page - 1) * limit

	query := s.DB.Model(&models.Transaction{})
	if data.ClientID != 0 {
		query = query.Where("client_id = ?", data.ClientID)
	}
	if data.Type != "" {
		query = query.Where("type = ?", data.Type)
	}
	if data.StartDate != "" {
		query = query.Where("created_at >= ?", data.StartDate)
	}
	if data.EndDate != "" {
		query = query.Where("created_at <= ?", data.EndDate)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return common.PaginationResult{}, err
	}

	var transactions []models.Transaction
	if err := query.Order("created_at DESC").Limit(limit).Offset(offset).Find(&transactions).Error; err != nil {
		return common.PaginationResult{}, err
	}

	return common.PaginateResponse(transactions, total, page, limit, "Transactions fetched"), nil
}
