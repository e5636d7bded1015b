package mockserver

import (
	"crypto/rand"
	"encoding/base64"
	"errors"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	nanoid "github.com/matoous/go-nanoid/v2"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"

	"chatlink/pkg/chat"
)

const tokenTTL = 24 * time.Hour

type registerInput struct {
	FirstName       string `json:"firstName" binding:"required"`
	LastName        string `json:"lastName" binding:"required"`
	Email           string `json:"email" binding:"required"`
	Password        string `json:"password" binding:"required"`
	ConfirmPassword string `json:"confirmPassword" binding:"required"`
}

type loginInput struct {
	Email    string `json:"email" binding:"required"`
	Password string `json:"password" binding:"required"`
}

func (s *Server) issueToken(u *userRecord) (string, error) {
	claims := jwt.MapClaims{
		"sub":   u.ID,
		"email": u.Email,
		"exp":   time.Now().Add(tokenTTL).Unix(),
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.jwtSecret)
}

func (s *Server) parseToken(token string) (string, error) {
	parsed, err := jwt.Parse(token, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("unexpected signing method")
		}
		return s.jwtSecret, nil
	})
	if err != nil || !parsed.Valid {
		return "", errors.New("invalid token")
	}
	claims, ok := parsed.Claims.(jwt.MapClaims)
	if !ok {
		return "", errors.New("invalid claims")
	}
	sub, err := claims.GetSubject()
	if err != nil || sub == "" {
		return "", errors.New("missing subject")
	}
	return sub, nil
}

func newRefreshToken() string {
	raw := make([]byte, 32)
	if _, err := rand.Read(raw); err != nil {
		return ""
	}
	return base64.URLEncoding.EncodeToString(raw)
}

func (s *Server) registerHandler(c *gin.Context) {
	var input registerInput
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(400, gin.H{"message": err.Error()})
		return
	}
	if input.Password != input.ConfirmPassword {
		c.JSON(400, gin.H{"message": "Passwords do not match"})
		return
	}

	var existing userRecord
	if err := s.db.First(&existing, "email = ?", input.Email).Error; err == nil {
		c.JSON(400, gin.H{"message": "Email already registered"})
		return
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(input.Password), bcrypt.DefaultCost)
	if err != nil {
		c.JSON(500, gin.H{"message": "Failed to hash password"})
		return
	}

	id, err := nanoid.New(8)
	if err != nil {
		c.JSON(500, gin.H{"message": "Failed to generate id"})
		return
	}
	user := userRecord{
		ID:           id,
		Email:        input.Email,
		PasswordHash: string(hash),
		FirstName:    input.FirstName,
		LastName:     input.LastName,
		CreatedAt:    time.Now(),
	}
	if err := s.db.Create(&user).Error; err != nil {
		c.JSON(500, gin.H{"message": "Failed to create user"})
		return
	}

	s.sessionResponse(c, &user)
}

func (s *Server) loginHandler(c *gin.Context) {
	var input loginInput
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(400, gin.H{"message": err.Error()})
		return
	}

	var user userRecord
	if err := s.db.First(&user, "email = ?", input.Email).Error; err != nil {
		c.JSON(400, gin.H{"message": "Invalid credentials"})
		return
	}
	if bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(input.Password)) != nil {
		c.JSON(400, gin.H{"message": "Invalid credentials"})
		return
	}

	s.sessionResponse(c, &user)
}

func (s *Server) sessionResponse(c *gin.Context, user *userRecord) {
	token, err := s.issueToken(user)
	if err != nil {
		c.JSON(500, gin.H{"message": "Failed to issue token"})
		return
	}
	c.JSON(200, gin.H{
		"user":         s.toUser(user),
		"token":        token,
		"refreshToken": newRefreshToken(),
	})
}

func (s *Server) logoutHandler(c *gin.Context) {
	c.JSON(200, gin.H{"message": "Logged out"})
}

func (s *Server) currentUserHandler(c *gin.Context) {
	userID := c.GetString(ctxUserID)
	var user userRecord
	if err := s.db.First(&user, "id = ?", userID).Error; err != nil {
		c.JSON(404, gin.H{"message": "User not found"})
		return
	}
	c.JSON(200, s.toUser(&user))
}

func (s *Server) toUser(u *userRecord) chat.User {
	return chat.User{
		ID:        u.ID,
		UserID:    u.ID,
		Email:     u.Email,
		FirstName: u.FirstName,
		LastName:  u.LastName,
		AvatarID:  u.AvatarID,
		IsActive:  true,
		CreatedAt: u.CreatedAt.UTC().Format(time.RFC3339),
	}
}

const ctxUserID = "userID"

// authRequired resolves the bearer token into a user id, the same check the
// websocket endpoint applies to its token query parameter.
func (s *Server) authRequired(c *gin.Context) {
	header := c.GetHeader("Authorization")
	token, ok := strings.CutPrefix(header, "Bearer ")
	if !ok || token == "" {
		c.AbortWithStatusJSON(401, gin.H{"message": "Missing token"})
		return
	}
	userID, err := s.parseToken(token)
	if err != nil {
		c.AbortWithStatusJSON(401, gin.H{"message": "Invalid token"})
		return
	}

	var user userRecord
	if err := s.db.First(&user, "id = ?", userID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			c.AbortWithStatusJSON(401, gin.H{"message": "Unknown user"})
			return
		}
		c.AbortWithStatusJSON(500, gin.H{"message": "Storage error"})
		return
	}
	c.Set(ctxUserID, userID)
	c.Next()
}
