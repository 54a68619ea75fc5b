package middleware

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"microfin-service/pkg/common"
)

const (
	sessionCookieName = "session"
	sessionTTL        = 14 * 24 * time.Hour
	userIDKey         = "userID"
)

func sessionSecret() string {
	if s := os.Getenv("SESSION_SECRET"); s != "" {
		return s
	}
	return "devsessionsecret"
}

func sign(uidStr string) string {
	mac := hmac.New(sha256.New, []byte(sessionSecret()))
	mac.Write([]byte(uidStr))
	return base64.RawURLEncoding.EncodeToString(mac.Sum(nil))
}

// CreateSession sets a signed session cookie carrying the user id.
func CreateSession(c *gin.Context, userID uint) {
	uidStr := strconv.FormatUint(uint64(userID), 10)
	value := uidStr + "." + sign(uidStr)
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(sessionCookieName, value, int(sessionTTL.Seconds()), "/", "", false, true)
}

// ClearSession deletes the session cookie.
func ClearSession(c *gin.Context) {
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(sessionCookieName, "", -1, "/", "", false, true)
}

// ParseSession validates the cookie signature and returns the user id.
func ParseSession(c *gin.Context) (uint, bool) {
	value, err := c.Cookie(sessionCookieName)
	if err != nil || value == "" {
		return 0, false
	}
	parts := strings.Split(value, ".")
	if len(parts) != 2 {
		return 0, false
	}
	uidStr, sig := parts[0], parts[1]
	if !hmac.Equal([]byte(sig), []byte(sign(uidStr))) {
		return 0, false
	}
	uid, err := strconv.ParseUint(uidStr, 10, 64)
	if err != nil {
		return 0, false
	}
	return uint(uid), true
}

// RequireAuth aborts unauthenticated requests with 401.
func RequireAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		uid, ok := ParseSession(c)
		if !ok {
			c.AbortWithStatusJSON(http.StatusUnauthorized,
				common.NewErrorResponse("authentication required", nil, http.StatusUnauthorized))
			return
		}
		c.Set(userIDKey, uid)
		c.Next()
	}
}

// UserID returns the authenticated user's id, when present.
func UserID(c *gin.Context) (uint, bool) {
	v, ok := c.Get(userIDKey)
	if !ok {
		return 0, false
	}
	uid, ok := v.(uint)
	return uid, ok
}
