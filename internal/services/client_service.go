package services

import (
	"errors"
	"strings"
	"time"

	"gorm.io/gorm"

	"microfin-service/internal/models"
	"microfin-service/pkg/common"
)

// ClientService manages the client registry: registration with auto-assigned
// matricules, lookups, batch import and deletion.
type ClientService struct {
	DB *gorm.DB
}

func NewClientService(db *gorm.DB) *ClientService {
	return &ClientService{DB: db}
}

type CreateClientDTO struct {
	Matricule string `json:"matricule"`
	Nom       string `json:"nom"`
	Telephone string `json:"telephone"`
}

func (s *ClientService) CreateClient(data CreateClientDTO) (*models.Client, error) {
	client := models.Client{
		Matricule: strings.TrimSpace(data.Matricule),
		Nom:       strings.TrimSpace(data.Nom),
		Telephone: strings.TrimSpace(data.Telephone),
	}

	if client.Nom == "" {
		return nil, common.NewValidationError("nom is required")
	}
	if !common.ValidPhone(client.Telephone) {
		return nil, common.NewValidationError("telephone is not a valid mobile number")
	}

	err := s.DB.Transaction(func(tx *gorm.DB) error {
		if client.Matricule == "" {
			next, err := nextMatricule(tx)
			if err != nil {
				return err
			}
			client.Matricule = next
		} else {
			if _, ok := common.ParseMatricule(client.Matricule); !ok {
				return common.NewValidationError("matricule must match CLT### format")
			}
			var count int64
			if err := tx.Model(&models.Client{}).Where("matricule = ?", client.Matricule).Count(&count).Error; err != nil {
				return err
			}
			if count > 0 {
				return common.NewConflictError("matricule already in use")
			}
		}
		if err := tx.Create(&client).Error; err != nil {
			// Two concurrent registrations can pass the checks above with
			// the same matricule; the unique index rejects the loser.
			if errors.Is(err, gorm.ErrDuplicatedKey) {
				return common.NewConflictError("matricule already in use")
			}
			return err
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &client, nil
}

// GenerateMatricule returns the next registration code without reserving it.
func (s *ClientService) GenerateMatricule() (string, error) {
	return nextMatricule(s.DB)
}

// nextMatricule scans every issued matricule and increments the highest
// sequence number found. Codes that do not parse are skipped.
func nextMatricule(tx *gorm.DB) (string, error) {
	var matricules []string
	if err := tx.Model(&models.Client{}).Pluck("matricule", &matricules).Error; err != nil {
		return "", err
	}
	last := 0
	for _, m := range matricules {
		if seq, ok := common.ParseMatricule(m); ok && seq > last {
			last = seq
		}
	}
	return common.FormatMatricule(last + 1), nil
}

func (s *ClientService) GetClient(id uint) (*models.Client, error) {
	var client models.Client
	if err := s.DB.First(&client, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, common.NewNotFoundError("client not found")
		}
		return nil, err
	}
	return &client, nil
}

type ListClientsDTO struct {
	Page   int
	Limit  int
	Search string
}

func (s *ClientService) ListClients(data ListClientsDTO) (common.PaginationResult, error) {
	limit := data.Limit
	if limit <= 0 {
		limit = 50
	}
	page := data.Page
	if page < 1 {
		page = 1
	}
	offset := (page - 1) * limit

	query := s.DB.Model(&models.Client{})
	if data.Search != "" {
		like := "%" + data.Search + "%"
		query = query.Where("nom LIKE ? OR matricule LIKE ? OR telephone LIKE ?", like, like, like)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return common.PaginationResult{}, err
	}

	var clients []models.Client
	if err := query.Order("matricule ASC").Limit(limit).Offset(offset).Find(&clients).Error; err != nil {
		return common.PaginationResult{}, err
	}

	return common.PaginateResponse(clients, total, page, limit, "Clients fetched"), nil
}

type UpdateClientDTO struct {
	Nom       string `json:"nom"`
	Telephone string `json:"telephone"`
}

// UpdateClient changes the mutable registry fields. Matricule and solde are
// never updated here: the matricule is permanent and the balance only moves
// through transactions, so only the changed columns are written back.
func (s *ClientService) UpdateClient(id uint, data UpdateClientDTO) (*models.Client, error) {
	client, err := s.GetClient(id)
	if err != nil {
		return nil, err
	}

	updates := map[string]interface{}{}
	if nom := strings.TrimSpace(data.Nom); nom != "" {
		client.Nom = nom
		updates["nom"] = nom
	}
	if tel := strings.TrimSpace(data.Telephone); tel != "" {
		if !common.ValidPhone(tel) {
			return nil, common.NewValidationError("telephone is not a valid mobile number")
		}
		client.Telephone = tel
		updates["telephone"] = tel
	}
	if len(updates) == 0 {
		return client, nil
	}
	updates["updated_at"] = time.Now()

	if err := s.DB.Model(&models.Client{}).Where("id = ?", id).Updates(updates).Error; err != nil {
		return nil, err
	}
	return client, nil
}

// DeleteClient removes the client together with its transactions and
// commissions in one store transaction (cascade policy).
func (s *ClientService) DeleteClient(id uint) error {
	return s.DB.Transaction(func(tx *gorm.DB) error {
		var client models.Client
		if err := tx.First(&client, id).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return common.NewNotFoundError("client not found")
			}
			return err
		}
		if err := tx.Where("client_id = ?", id).Delete(&models.Transaction{}).Error; err != nil {
			return err
		}
		if err := tx.Where("client_id = ?", id).Delete(&models.Commission{}).Error; err != nil {
			return err
		}
		return tx.Delete(&client).Error
	})
}

// BatchUploadRecord is one entry of a client import file.
type BatchUploadRecord struct {
	Matricule string `json:"matricule"`
	Nom       string `json:"nom"`
	Telephone string `json:"telephone"`
}

type BatchUploadResult struct {
	Index     int    `json:"index"`
	Matricule string `json:"matricule,omitempty"`
	Success   bool   `json:"success"`
	Error     string `json:"error,omitempty"`
}

type BatchUploadSummary struct {
	Total     int                 `json:"total"`
	Succeeded int                 `json:"succeeded"`
	Failed    int                 `json:"failed"`
	Results   []BatchUploadResult `json:"results"`
}

// BatchUpload imports client records one by one. A bad record is reported at
// its index and never aborts the rest of the batch.
func (s *ClientService) BatchUpload(records []BatchUploadRecord) BatchUploadSummary {
	summary := BatchUploadSummary{
		Total:   len(records),
		Results: make([]BatchUploadResult, 0, len(records)),
	}

	for i, rec := range records {
		result := BatchUploadResult{Index: i, Matricule: rec.Matricule}

		if err := validateBatchRecord(rec); err != nil {
			result.Error = err.Error()
			summary.Failed++
			summary.Results = append(summary.Results, result)
			continue
		}

		client, err := s.CreateClient(CreateClientDTO{
			Matricule: rec.Matricule,
			Nom:       rec.Nom,
			Telephone: rec.Telephone,
		})
		if err != nil {
			result.Error = common.MessageOf(err)
			summary.Failed++
		} else {
			result.Success = true
			result.Matricule = client.Matricule
			summary.Succeeded++
		}
		summary.Results = append(summary.Results, result)
	}

	return summary
}

func validateBatchRecord(rec BatchUploadRecord) error {
	if strings.TrimSpace(rec.Matricule) == "" {
		return common.NewValidationError("matricule is required")
	}
	if strings.TrimSpace(rec.Nom) == "" {
		return common.NewValidationError("nom is required")
	}
	if strings.TrimSpace(rec.Telephone) == "" {
		return common.NewValidationError("telephone is required")
	}
	if !common.ValidPhone(rec.Telephone) {
		return common.NewValidationError("telephone is not a valid mobile number")
	}
	return nil
}
