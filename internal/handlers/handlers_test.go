package handlers

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"microfin-service/internal/middleware"
	"microfin-service/internal/models"
	"microfin-service/internal/services"
)

func setupTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Silent),
		TranslateError: true,
	})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	if err := db.AutoMigrate(
		&models.User{},
		&models.Client{},
		&models.Transaction{},
		&models.CommissionTier{},
		&models.Commission{},
	); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return db
}

func setupRouter(t *testing.T, db *gorm.DB) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)

	clientService := services.NewClientService(db)
	transactionService := services.NewTransactionService(db)
	configService := services.NewCommissionConfigService(db)
	commissionService := services.NewCommissionService(db, configService)

	authHandler := NewAuthHandler(db)
	clientHandler := NewClientHandler(clientService)
	transactionHandler := NewTransactionHandler(transactionService)
	commissionHandler := NewCommissionHandler(commissionService, configService, nil)

	r := gin.New()
	r.POST("/auth/login", authHandler.Login)
	r.POST("/auth/logout", authHandler.Logout)

	api := r.Group("/", middleware.RequireAuth())
	api.POST("/clients", clientHandler.Create)
	api.GET("/clients", clientHandler.List)
	api.GET("/clients/generate-matricule", clientHandler.GenerateMatricule)
	api.POST("/clients/batch-upload", clientHandler.BatchUpload)
	api.GET("/clients/:id", clientHandler.Get)
	api.PUT("/clients/:id", clientHandler.Update)
	api.DELETE("/clients/:id", clientHandler.Delete)
	api.POST("/transactions", transactionHandler.Create)
	api.GET("/transactions", transactionHandler.List)
	api.DELETE("/transactions/:id", transactionHandler.Delete)
	api.POST("/commissions/calculate", commissionHandler.Calculate)
	api.GET("/commissions", commissionHandler.List)
	api.GET("/commissions/summary", commissionHandler.Summary)
	api.GET("/commissions/config", commissionHandler.GetConfig)
	api.PUT("/commissions/config", commissionHandler.PutConfig)
	return r
}

func sessionCookie(t *testing.T) *http.Cookie {
	t.Helper()
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	middleware.CreateSession(c, 1)
	cookies := w.Result().Cookies()
	require.NotEmpty(t, cookies)
	return cookies[0]
}

func doJSON(t *testing.T, r *gin.Engine, method, path string, body interface{}, authed bool) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if authed {
		req.AddCookie(sessionCookie(t))
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func seedUser(t *testing.T, db *gorm.DB, username, password string) {
	t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
	require.NoError(t, err)
	require.NoError(t, db.Create(&models.User{Username: username, Password: string(hash)}).Error)
}

func TestRoutesRequireAuth(t *testing.T) {
	db := setupTestDB(t)
	r := setupRouter(t, db)

	for _, route := range []struct{ method, path string }{
		{"GET", "/clients"},
		{"POST", "/transactions"},
		{"GET", "/commissions/config"},
	} {
		w := doJSON(t, r, route.method, route.path, nil, false)
		assert.Equalf(t, http.StatusUnauthorized, w.Code, "%s %s", route.method, route.path)
	}
}

func TestLogin(t *testing.T) {
	db := setupTestDB(t)
	r := setupRouter(t, db)
	seedUser(t, db, "admin", "secret123")

	w := doJSON(t, r, "POST", "/auth/login", gin.H{"username": "admin", "password": "wrong"}, false)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = doJSON(t, r, "POST", "/auth/login", gin.H{"username": "admin", "password": "secret123"}, false)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.NotEmpty(t, w.Result().Cookies())
}

func TestCreateAndGetClient(t *testing.T) {
	db := setupTestDB(t)
	r := setupRouter(t, db)

	w := doJSON(t, r, "POST", "/clients", gin.H{"nom": "Mamadou Diallo", "telephone": "620123456"}, true)
	require.Equal(t, http.StatusCreated, w.Code)

	var resp struct {
		Data models.Client `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "CLT001", resp.Data.Matricule)

	w = doJSON(t, r, "GET", fmt.Sprintf("/clients/%d", resp.Data.ID), nil, true)
	assert.Equal(t, http.StatusOK, w.Code)

	w = doJSON(t, r, "GET", "/clients/9999", nil, true)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = doJSON(t, r, "POST", "/clients", gin.H{"nom": "Bad Phone", "telephone": "123"}, true)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestBatchUploadAcceptsBothShapes(t *testing.T) {
	db := setupTestDB(t)
	r := setupRouter(t, db)

	// Raw array form.
	w := doJSON(t, r, "POST", "/clients/batch-upload", []gin.H{
		{"matricule": "CLT001", "nom": "A", "telephone": "620111111"},
		{"matricule": "CLT002", "nom": "B", "telephone": "620222222"},
	}, true)
	require.Equal(t, http.StatusOK, w.Code)

	var resp struct {
		Data services.BatchUploadSummary `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, 2, resp.Data.Succeeded)

	// Envelope form with one invalid record.
	w = doJSON(t, r, "POST", "/clients/batch-upload", gin.H{
		"clients": []gin.H{
			{"matricule": "CLT003", "nom": "C", "telephone": "620333333"},
			{"matricule": "CLT004", "nom": "D"},
		},
		"metadata": gin.H{"source": "import.csv"},
	}, true)
	require.Equal(t, http.StatusOK, w.Code)
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, 1, resp.Data.Succeeded)
	assert.Equal(t, 1, resp.Data.Failed)
	assert.Equal(t, 1, resp.Data.Results[1].Index)

	// Neither shape.
	w = doJSON(t, r, "POST", "/clients/batch-upload", gin.H{"foo": "bar"}, true)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestTransactionEndpoints(t *testing.T) {
	db := setupTestDB(t)
	r := setupRouter(t, db)

	client := models.Client{Matricule: "CLT001", Nom: "Test", Telephone: "620123456"}
	require.NoError(t, db.Create(&client).Error)

	w := doJSON(t, r, "POST", "/transactions", gin.H{
		"clientId": client.ID, "type": "depot", "montant": 5000,
		"sourceDestination": "Agence", "description": "Versement",
	}, true)
	require.Equal(t, http.StatusCreated, w.Code)

	var resp struct {
		Data models.Transaction `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))

	w = doJSON(t, r, "POST", "/transactions", gin.H{
		"clientId": client.ID, "type": "virement", "montant": 5000,
	}, true)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = doJSON(t, r, "DELETE", fmt.Sprintf("/transactions/%d", resp.Data.ID), nil, true)
	assert.Equal(t, http.StatusOK, w.Code)

	var updated models.Client
	require.NoError(t, db.First(&updated, client.ID).Error)
	assert.Zero(t, updated.Solde)

	w = doJSON(t, r, "DELETE", "/transactions/9999", nil, true)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestCommissionConfigEndpoints(t *testing.T) {
	db := setupTestDB(t)
	r := setupRouter(t, db)

	valid := gin.H{"tiers": []gin.H{
		{"montantMin": 0, "montantMax": 50000, "montant": 1000},
		{"montantMin": 50000, "montant": 2000},
	}}
	w := doJSON(t, r, "PUT", "/commissions/config", valid, true)
	require.Equal(t, http.StatusOK, w.Code)

	w = doJSON(t, r, "GET", "/commissions/config", nil, true)
	assert.Equal(t, http.StatusOK, w.Code)

	invalid := gin.H{"tiers": []gin.H{
		{"montantMin": 0, "montantMax": 50000, "montant": 1000},
		{"montantMin": 70000, "montant": 2000},
	}}
	w = doJSON(t, r, "PUT", "/commissions/config", invalid, true)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestCalculateEndpoint(t *testing.T) {
	db := setupTestDB(t)
	r := setupRouter(t, db)

	w := doJSON(t, r, "PUT", "/commissions/config", gin.H{"tiers": []gin.H{
		{"montantMin": 0, "montantMax": 50000, "montant": 1000},
		{"montantMin": 50000, "montant": 2000},
	}}, true)
	require.Equal(t, http.StatusOK, w.Code)

	client := models.Client{Matricule: "CLT001", Nom: "Test", Telephone: "620123456"}
	require.NoError(t, db.Create(&client).Error)

	w = doJSON(t, r, "POST", "/commissions/calculate", gin.H{"moisAnnee": "2025-04"}, true)
	require.Equal(t, http.StatusOK, w.Code)

	var resp struct {
		Data services.PeriodRunSummary `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, 4, resp.Data.Mois)
	assert.Equal(t, 2025, resp.Data.Annee)
	assert.Len(t, resp.Data.Succeeded, 1)

	w = doJSON(t, r, "POST", "/commissions/calculate", gin.H{"mois": 13, "annee": 2025}, true)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = doJSON(t, r, "GET", "/commissions?moisAnnee=2025-04", nil, true)
	assert.Equal(t, http.StatusOK, w.Code)

	w = doJSON(t, r, "GET", "/commissions/summary", nil, true)
	assert.Equal(t, http.StatusOK, w.Code)
}
