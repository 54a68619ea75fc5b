package services

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"microfin-service/internal/models"
	"microfin-service/pkg/common"
)

func TestCreateClientAssignsMatricule(t *testing.T) {
	db := setupTestDB(t)
	svc := NewClientService(db)

	first, err := svc.CreateClient(CreateClientDTO{Nom: "Mamadou Diallo", Telephone: "620123456"})
	require.NoError(t, err)
	assert.Equal(t, "CLT001", first.Matricule)

	second, err := svc.CreateClient(CreateClientDTO{Nom: "Fatoumata Bah", Telephone: "+224621234567"})
	require.NoError(t, err)
	assert.Equal(t, "CLT002", second.Matricule)
}

func TestCreateClientContinuesFromLastIssued(t *testing.T) {
	db := setupTestDB(t)
	svc := NewClientService(db)
	seedClient(t, db, "CLT041")

	client, err := svc.CreateClient(CreateClientDTO{Nom: "Ibrahima Sow", Telephone: "622000111"})
	require.NoError(t, err)
	assert.Equal(t, "CLT042", client.Matricule)

	matricule, err := svc.GenerateMatricule()
	require.NoError(t, err)
	assert.Equal(t, "CLT043", matricule)
}

func TestCreateClientValidation(t *testing.T) {
	db := setupTestDB(t)
	svc := NewClientService(db)

	_, err := svc.CreateClient(CreateClientDTO{Nom: "", Telephone: "620123456"})
	require.Error(t, err)
	assert.Equal(t, 400, common.StatusOf(err))

	_, err = svc.CreateClient(CreateClientDTO{Nom: "Test", Telephone: "12345"})
	require.Error(t, err)
	assert.Equal(t, 400, common.StatusOf(err))

	_, err = svc.CreateClient(CreateClientDTO{Nom: "Test", Telephone: "620123456", Matricule: "ABC01"})
	require.Error(t, err)
	assert.Equal(t, 400, common.StatusOf(err))
}

func TestCreateClientDuplicateMatricule(t *testing.T) {
	db := setupTestDB(t)
	svc := NewClientService(db)
	seedClient(t, db, "CLT007")

	_, err := svc.CreateClient(CreateClientDTO{Nom: "Test", Telephone: "620123456", Matricule: "CLT007"})
	require.Error(t, err)
	assert.Equal(t, 409, common.StatusOf(err))
}

func TestUpdateClient(t *testing.T) {
	db := setupTestDB(t)
	svc := NewClientService(db)
	client := seedClient(t, db, "CLT001")

	updated, err := svc.UpdateClient(client.ID, UpdateClientDTO{Nom: "Nouveau Nom"})
	require.NoError(t, err)
	assert.Equal(t, "Nouveau Nom", updated.Nom)
	assert.Equal(t, "CLT001", updated.Matricule)

	_, err = svc.UpdateClient(client.ID, UpdateClientDTO{Telephone: "bad"})
	require.Error(t, err)
	assert.Equal(t, 400, common.StatusOf(err))

	_, err = svc.UpdateClient(9999, UpdateClientDTO{Nom: "X"})
	require.Error(t, err)
	assert.Equal(t, 404, common.StatusOf(err))
}

func TestUpdateClientPreservesConcurrentBalanceChange(t *testing.T) {
	db := setupTestDB(t)
	svc := NewClientService(db)
	client := seedClient(t, db, "CLT001")

	// A deposit commits between UpdateClient's read and its write; the
	// update must not clobber it with the stale solde it read.
	deposited := false
	err := db.Callback().Update().Before("gorm:update").Register("interleaved_deposit", func(d *gorm.DB) {
		if deposited {
			return
		}
		deposited = true
		_, execErr := d.Statement.ConnPool.ExecContext(d.Statement.Context,
			"UPDATE clients SET solde = solde + 1000 WHERE id = ?", client.ID)
		require.NoError(t, execErr)
	})
	require.NoError(t, err)

	updated, err := svc.UpdateClient(client.ID, UpdateClientDTO{Nom: "Nouveau Nom"})
	require.NoError(t, err)
	assert.Equal(t, "Nouveau Nom", updated.Nom)

	var stored models.Client
	require.NoError(t, db.First(&stored, client.ID).Error)
	assert.Equal(t, "Nouveau Nom", stored.Nom)
	assert.InDelta(t, 1000, stored.Solde, 0.001)
}

func TestCreateClientMatriculeRaceReturnsConflict(t *testing.T) {
	db := setupTestDB(t)
	svc := NewClientService(db)

	// A competing registration lands between the sequence scan and the
	// insert; the unique index rejects ours, which must surface as 409.
	inserted := false
	err := db.Callback().Create().Before("gorm:create").Register("competing_registration", func(d *gorm.DB) {
		if inserted {
			return
		}
		inserted = true
		_, execErr := d.Statement.ConnPool.ExecContext(d.Statement.Context,
			"INSERT INTO clients (matricule, nom, telephone, solde) VALUES (?, ?, ?, 0)",
			"CLT001", "Concurrent", "620999888")
		require.NoError(t, execErr)
	})
	require.NoError(t, err)

	_, err = svc.CreateClient(CreateClientDTO{Nom: "Premier", Telephone: "620123456"})
	require.Error(t, err)
	assert.Equal(t, 409, common.StatusOf(err))
}

func TestDeleteClientCascades(t *testing.T) {
	db := setupTestDB(t)
	svc := NewClientService(db)
	client := seedClient(t, db, "CLT001")

	require.NoError(t, db.Create(&models.Transaction{
		ClientID: client.ID, Type: models.TransactionDepot, Montant: 1000,
	}).Error)
	require.NoError(t, db.Create(&models.Commission{
		ClientID: client.ID, Mois: 1, Annee: 2025, MontantCommission: 1000,
	}).Error)

	require.NoError(t, svc.DeleteClient(client.ID))

	var clients, transactions, commissions int64
	db.Model(&models.Client{}).Count(&clients)
	db.Model(&models.Transaction{}).Where("client_id = ?", client.ID).Count(&transactions)
	db.Model(&models.Commission{}).Where("client_id = ?", client.ID).Count(&commissions)
	assert.Zero(t, clients)
	assert.Zero(t, transactions)
	assert.Zero(t, commissions)

	err := svc.DeleteClient(client.ID)
	require.Error(t, err)
	assert.Equal(t, 404, common.StatusOf(err))
}

func TestBatchUploadReportsPerRecord(t *testing.T) {
	db := setupTestDB(t)
	svc := NewClientService(db)

	records := []BatchUploadRecord{
		{Matricule: "CLT010", Nom: "Alpha Conde", Telephone: "620111222"},
		{Matricule: "CLT011", Nom: "Aissatou Barry"}, // missing telephone
		{Matricule: "CLT012", Nom: "Sekou Toure", Telephone: "621333444"},
	}

	summary := svc.BatchUpload(records)
	assert.Equal(t, 3, summary.Total)
	assert.Equal(t, 2, summary.Succeeded)
	assert.Equal(t, 1, summary.Failed)

	require.Len(t, summary.Results, 3)
	assert.True(t, summary.Results[0].Success)
	assert.False(t, summary.Results[1].Success)
	assert.Equal(t, 1, summary.Results[1].Index)
	assert.Contains(t, summary.Results[1].Error, "telephone")
	assert.True(t, summary.Results[2].Success)

	var count int64
	db.Model(&models.Client{}).Count(&count)
	assert.EqualValues(t, 2, count)
}

func TestBatchUploadDuplicateDoesNotAbortBatch(t *testing.T) {
	db := setupTestDB(t)
	svc := NewClientService(db)
	seedClient(t, db, "CLT010")

	summary := svc.BatchUpload([]BatchUploadRecord{
		{Matricule: "CLT010", Nom: "Duplicate", Telephone: "620111222"},
		{Matricule: "CLT020", Nom: "Valide", Telephone: "620333444"},
	})
	assert.Equal(t, 1, summary.Succeeded)
	assert.Equal(t, 1, summary.Failed)
	assert.Contains(t, summary.Results[0].Error, "matricule")
}

func TestListClients(t *testing.T) {
	db := setupTestDB(t)
	svc := NewClientService(db)
	seedClient(t, db, "CLT001")
	b := seedClient(t, db, "CLT002")
	require.NoError(t, db.Model(&b).Update("nom", "Unique Name").Error)

	result, err := svc.ListClients(ListClientsDTO{})
	require.NoError(t, err)
	assert.EqualValues(t, 2, result.Count)

	result, err = svc.ListClients(ListClientsDTO{Search: "Unique"})
	require.NoError(t, err)
	assert.EqualValues(t, 1, result.Count)
}
