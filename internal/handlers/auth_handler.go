package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"

	"microfin-service/internal/middleware"
	"microfin-service/internal/models"
	"microfin-service/pkg/common"
)

type AuthHandler struct {
	DB *gorm.DB
}

func NewAuthHandler(db *gorm.DB) *AuthHandler {
	return &AuthHandler{DB: db}
}

type LoginRequest struct {
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
}

func (h *AuthHandler) Login(c *gin.Context) {
	var req LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, common.NewErrorResponse("username and password are required", nil, http.StatusBadRequest))
		return
	}

	var user models.User
	if err := h.DB.Where("username = ?", req.Username).First(&user).Error; err != nil {
		c.JSON(http.StatusUnauthorized, common.NewErrorResponse("invalid credentials", nil, http.StatusUnauthorized))
		return
	}
	if bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(req.Password)) != nil {
		c.JSON(http.StatusUnauthorized, common.NewErrorResponse("invalid credentials", nil, http.StatusUnauthorized))
		return
	}

	middleware.CreateSession(c, user.ID)
	c.JSON(http.StatusOK, common.NewSuccessResponse(gin.H{"username": user.Username}, "Logged in"))
}

func (h *AuthHandler) Logout(c *gin.Context) {
	middleware.ClearSession(c)
	c.JSON(http.StatusOK, common.NewSuccessResponse(nil, "Logged out"))
}
