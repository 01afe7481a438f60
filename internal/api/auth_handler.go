package api

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"slices"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"

	"pipetrack/internal/api/middleware"
	"pipetrack/internal/auth"
	"pipetrack/internal/database"
)

const refreshTokenCookieName = "refresh_token"
const refreshTokenBlacklistKeyPrefix = "auth:refresh:blacklist:"

// AuthHandler serves registration, login, refresh and logout.
type AuthHandler struct {
	db                    *gorm.DB
	authService           *auth.AuthService
	redis                 redis.UniversalClient
	logger                *slog.Logger
	loginRateLimitPerHour int
	loginLockThreshold    int
	loginLockTTL          time.Duration
	cookieDomain          string
}

// NewAuthHandler builds the handler.
func NewAuthHandler(db *gorm.DB, authService *auth.AuthService, redisClient redis.UniversalClient, logger *slog.Logger, loginRateLimitPerHour int, loginLockThreshold int, loginLockTTL time.Duration, cookieDomain string) *AuthHandler {
	return &AuthHandler{
		db:                    db,
		authService:           authService,
		redis:                 redisClient,
		logger:                logger,
		loginRateLimitPerHour: loginRateLimitPerHour,
		loginLockThreshold:    loginLockThreshold,
		loginLockTTL:          loginLockTTL,
		cookieDomain:          cookieDomain,
	}
}

type registerRequest struct {
	Username     string `json:"username" binding:"required,min=3,max=64"`
	Password     string `json:"password" binding:"required,min=8,max=72"`
	EmpID        string `json:"empId" binding:"required,max=32"`
	Name         string `json:"name" binding:"required,max=128"`
	Technology   string `json:"technology" binding:"required"`
	ResourceType string `json:"resourceType" binding:"required"`
}

// Register creates an employee account together with its candidate record.
// Staff accounts are seeded out of band, never through this endpoint.
func (h *AuthHandler) Register(c *gin.Context) {
	var req registerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, err.Error())
		return
	}
	if !slices.Contains(database.Technologies, req.Technology) {
		BadRequest(c, "unknown technology")
		return
	}
	if !slices.Contains(database.ResourceTypes, req.ResourceType) {
		BadRequest(c, "unknown resource type")
		return
	}

	ctx := c.Request.Context()
	logger := h.loggerFromContext(c).With(
		slog.String("username", req.Username),
		slog.String("emp_id", req.EmpID),
	)

	var existing database.User
	if err := h.db.WithContext(ctx).Where("username = ?", req.Username).First(&existing).Error; err == nil {
		logger.Info("register conflict: user already exists")
		Conflict(c, "username already taken")
		return
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		logger.Error("register lookup failed", slog.Any("error", err))
		Internal(c)
		return
	}

	var existingCandidate database.Candidate
	if err := h.db.WithContext(ctx).Where("emp_id = ?", req.EmpID).First(&existingCandidate).Error; err == nil {
		logger.Info("register conflict: employee id already registered")
		Conflict(c, "employee id already registered")
		return
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		logger.Error("register candidate lookup failed", slog.Any("error", err))
		Internal(c)
		return
	}

	hashed, err := h.authService.HashPassword(req.Password)
	if err != nil {
		logger.Error("hash password failed", slog.Any("error", err))
		Internal(c)
		return
	}

	user := database.User{
		Username:     req.Username,
		PasswordHash: hashed,
		Role:         string(auth.RoleEmployee),
		EmpID:        req.EmpID,
	}
	candidate := database.Candidate{
		EmpID:        req.EmpID,
		Name:         req.Name,
		Technology:   req.Technology,
		ResourceType: req.ResourceType,
	}

	err = h.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&user).Error; err != nil {
			return err
		}
		return tx.Create(&candidate).Error
	})
	if err != nil {
		logger.Error("create account failed", slog.Any("error", err))
		Internal(c)
		return
	}

	logger.Info("employee registered", slog.Uint64("user_id", uint64(user.ID)))
	c.Status(http.StatusCreated)
}

type loginRequest struct {
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
}

type tokenResponse struct {
	AccessToken        string    `json:"access_token"`
	TokenType          string    `json:"token_type"`
	ExpiresIn          int       `json:"expires_in"`
	Role               auth.Role `json:"role"`
	EmpID              string    `json:"empId,omitempty"`
	MustChangePassword bool      `json:"must_change_password"`
}

// Login verifies the password and returns a token pair.
func (h *AuthHandler) Login(c *gin.Context) {
	ip := c.ClientIP()
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, err.Error())
		return
	}

	ctx := c.Request.Context()
	logger := h.loggerFromContext(c).With(
		slog.String("username", req.Username),
	)

	// Per IP+username, per hour.
	rateKey := "rate:login:" + ip + ":" + strings.ToLower(req.Username) + ":" + time.Now().UTC().Format("2006010215")
	count, err := incrWithTTL(ctx, h.redis, rateKey, time.Hour)
	if err != nil {
		count = 0
	}
	if count > int64(h.loginRateLimitPerHour) {
		c.JSON(http.StatusTooManyRequests, gin.H{"error": "rate limit exceeded"})
		return
	}

	lockKey := "lock:login:" + strings.ToLower(req.Username)
	if ttl, _ := h.redis.TTL(ctx, lockKey).Result(); ttl > 0 {
		c.JSON(http.StatusTooManyRequests, gin.H{"error": "account temporarily locked"})
		return
	}

	var user database.User
	if err := h.db.WithContext(ctx).Where("username = ?", req.Username).First(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			logger.Info("login failed: user not found")
			_ = h.incrementLoginFail(ctx, strings.ToLower(req.Username))
			Unauthorized(c, "invalid credentials")
			return
		}
		logger.Error("login query failed", slog.Any("error", err))
		Internal(c)
		return
	}

	if !h.authService.CheckPasswordHash(req.Password, user.PasswordHash) {
		logger.Info("login failed: password mismatch", slog.Uint64("user_id", uint64(user.ID)))
		_ = h.incrementLoginFail(ctx, strings.ToLower(req.Username))
		Unauthorized(c, "invalid credentials")
		return
	}

	// Success clears the failure counter.
	_ = h.redis.Del(ctx, "lock:login:fail:"+strings.ToLower(req.Username)).Err()

	role, err := auth.NormalizeRole(user.Role)
	if err != nil {
		logger.Error("stored role is invalid", slog.String("role", user.Role), slog.Any("error", err))
		Internal(c)
		return
	}
	tokenPair, err := h.authService.GenerateTokenPair(user.ID, role, user.EmpID, user.MustChangePassword)
	if err != nil {
		logger.Error("generate token pair failed", slog.Any("error", err))
		Internal(c)
		return
	}

	h.replyWithTokenPair(c, tokenPair, role, user.EmpID, user.MustChangePassword)
}

type refreshRequest struct {
	RefreshToken string `json:"refresh_token"`
}

// Refresh validates the refresh token, rotates it and issues a new pair.
func (h *AuthHandler) Refresh(c *gin.Context) {
	refreshToken := h.extractRefreshToken(c)
	if refreshToken == "" {
		Unauthorized(c, "unauthorized")
		return
	}

	ctx := c.Request.Context()
	logger := h.loggerFromContext(c)

	claims, err := h.authService.ValidateToken(refreshToken)
	if err != nil {
		logger.Info("refresh token invalid", slog.Any("error", err))
		Unauthorized(c, "unauthorized")
		return
	}
	if claims.TokenType != "refresh" {
		logger.Info("refresh token wrong type", slog.String("token_type", claims.TokenType))
		Unauthorized(c, "unauthorized")
		return
	}
	if claims.ID == "" {
		logger.Info("refresh token missing jti")
		Unauthorized(c, "unauthorized")
		return
	}

	key := refreshTokenBlacklistKeyPrefix + claims.ID
	if err := h.redis.Get(ctx, key).Err(); err == nil {
		logger.Info("refresh token revoked", slog.String("jti", claims.ID))
		Unauthorized(c, "unauthorized")
		return
	} else if !errors.Is(err, redis.Nil) {
		logger.Error("refresh token blacklist lookup failed", slog.Any("error", err))
		Internal(c)
		return
	}

	var user database.User
	if err := h.db.WithContext(ctx).First(&user, claims.UserID).Error; err != nil {
		logger.Info("refresh user not found", slog.Any("error", err))
		Unauthorized(c, "unauthorized")
		return
	}

	role, err := auth.NormalizeRole(user.Role)
	if err != nil {
		logger.Error("stored role is invalid", slog.String("role", user.Role), slog.Any("error", err))
		Internal(c)
		return
	}
	tokenPair, err := h.authService.GenerateTokenPair(user.ID, role, user.EmpID, user.MustChangePassword)
	if err != nil {
		logger.Error("refresh generate token pair failed", slog.Any("error", err))
		Internal(c)
		return
	}

	// Rotate the old refresh token so it cannot be replayed.
	if err := h.revokeRefreshToken(ctx, key, claims.ExpiresAt); err != nil {
		logger.Error("refresh revoke old token failed", slog.Any("error", err))
		Internal(c)
		return
	}

	h.replyWithTokenPair(c, tokenPair, role, user.EmpID, user.MustChangePassword)
}

type changePasswordRequest struct {
	CurrentPassword string `json:"current_password" binding:"required,min=8,max=72"`
	NewPassword     string `json:"new_password" binding:"required,min=8,max=72"`
	ConfirmPassword string `json:"confirm_password" binding:"required,min=8,max=72"`
}

// ChangePassword verifies the current password and replaces it.
func (h *AuthHandler) ChangePassword(c *gin.Context) {
	var req changePasswordRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, err.Error())
		return
	}
	if req.NewPassword != req.ConfirmPassword {
		BadRequest(c, "password confirmation does not match")
		return
	}

	userID, ok := userIDFromContext(c)
	if !ok {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	ctx := c.Request.Context()
	logger := h.loggerFromContext(c).With(slog.Uint64("user_id", uint64(userID)))

	var user database.User
	if err := h.db.WithContext(ctx).First(&user, userID).Error; err != nil {
		logger.Info("change password: user not found", slog.Any("error", err))
		Unauthorized(c, "unauthorized")
		return
	}

	if !h.authService.CheckPasswordHash(req.CurrentPassword, user.PasswordHash) {
		logger.Info("change password: current password mismatch")
		Unauthorized(c, "unauthorized")
		return
	}

	if strings.TrimSpace(req.NewPassword) == strings.TrimSpace(req.CurrentPassword) {
		BadRequest(c, "new password must be different from current password")
		return
	}

	hashed, err := h.authService.HashPassword(req.NewPassword)
	if err != nil {
		logger.Error("change password: hash failed", slog.Any("error", err))
		Internal(c)
		return
	}

	if err := h.db.WithContext(ctx).Model(&user).Updates(map[string]any{
		"password_hash":        hashed,
		"must_change_password": false,
	}).Error; err != nil {
		logger.Error("change password: update failed", slog.Any("error", err))
		Internal(c)
		return
	}

	if refreshToken, err := c.Cookie(refreshTokenCookieName); err == nil && refreshToken != "" {
		if claims, err := h.authService.ValidateToken(refreshToken); err == nil && claims.TokenType == "refresh" && claims.ID != "" {
			key := refreshTokenBlacklistKeyPrefix + claims.ID
			if err := h.revokeRefreshToken(ctx, key, claims.ExpiresAt); err != nil {
				logger.Error("change password: revoke refresh failed", slog.Any("error", err))
				Internal(c)
				return
			}
		}
	}

	role, err := auth.NormalizeRole(user.Role)
	if err != nil {
		logger.Error("stored role is invalid", slog.String("role", user.Role), slog.Any("error", err))
		Internal(c)
		return
	}
	tokenPair, err := h.authService.GenerateTokenPair(user.ID, role, user.EmpID, false)
	if err != nil {
		logger.Error("change password: generate token pair failed", slog.Any("error", err))
		Internal(c)
		return
	}

	h.replyWithTokenPair(c, tokenPair, role, user.EmpID, false)
}

func (h *AuthHandler) replyWithTokenPair(c *gin.Context, tokenPair auth.TokenPair, role auth.Role, empID string, mustChangePassword bool) {
	h.setRefreshCookie(c, tokenPair.RefreshToken)
	c.JSON(http.StatusOK, tokenResponse{
		AccessToken:        tokenPair.AccessToken,
		TokenType:          "Bearer",
		ExpiresIn:          int(h.authService.AccessTokenTTL().Seconds()),
		Role:               role,
		EmpID:              empID,
		MustChangePassword: mustChangePassword,
	})
}

// Logout blacklists the refresh token and clears the cookie.
func (h *AuthHandler) Logout(c *gin.Context) {
	refreshToken := h.extractRefreshToken(c)
	if refreshToken == "" {
		BadRequest(c, "refresh token missing")
		return
	}

	ctx := c.Request.Context()
	logger := h.loggerFromContext(c)

	claims, err := h.authService.ValidateToken(refreshToken)
	if err != nil {
		logger.Info("logout token invalid", slog.Any("error", err))
		Unauthorized(c, "unauthorized")
		return
	}
	if claims.TokenType != "refresh" {
		logger.Info("logout wrong token type", slog.String("token_type", claims.TokenType))
		Unauthorized(c, "unauthorized")
		return
	}
	if claims.ID == "" {
		logger.Info("logout token missing jti")
		Unauthorized(c, "unauthorized")
		return
	}

	key := refreshTokenBlacklistKeyPrefix + claims.ID
	if err := h.revokeRefreshToken(ctx, key, claims.ExpiresAt); err != nil {
		logger.Error("logout revoke token failed", slog.Any("error", err))
		Internal(c)
		return
	}

	http.SetCookie(c.Writer, &http.Cookie{
		Name:     refreshTokenCookieName,
		Value:    "",
		MaxAge:   -1,
		Path:     "/",
		Secure:   h.isHTTPSRequest(c),
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
		Domain:   h.getCookieDomain(),
	})
	c.Status(http.StatusOK)
}

func (h *AuthHandler) extractRefreshToken(c *gin.Context) string {
	if token, err := c.Cookie(refreshTokenCookieName); err == nil && token != "" {
		return token
	}

	var req refreshRequest
	if err := c.ShouldBindJSON(&req); err == nil && req.RefreshToken != "" {
		return req.RefreshToken
	}
	return ""
}

func (h *AuthHandler) setRefreshCookie(c *gin.Context, refreshToken string) {
	maxAge := int(h.authService.RefreshTokenTTL().Seconds())
	if maxAge <= 0 {
		maxAge = int(time.Hour.Seconds())
	}
	cookie := &http.Cookie{
		Name:     refreshTokenCookieName,
		Value:    refreshToken,
		MaxAge:   maxAge,
		Path:     "/",
		Secure:   h.isHTTPSRequest(c),
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
		Domain:   h.getCookieDomain(),
		Expires:  time.Now().Add(h.authService.RefreshTokenTTL()),
	}
	http.SetCookie(c.Writer, cookie)
}

func (h *AuthHandler) revokeRefreshToken(ctx context.Context, key string, expiresAt *jwt.NumericDate) error {
	var ttl time.Duration
	if expiresAt == nil {
		ttl = h.authService.RefreshTokenTTL()
	} else {
		ttl = time.Until(expiresAt.Time)
	}
	if ttl <= 0 {
		ttl = time.Second
	}
	return h.redis.Set(ctx, key, "revoked", ttl).Err()
}

func (h *AuthHandler) loggerFromContext(c *gin.Context) *slog.Logger {
	if logger := middleware.LoggerFromContext(c); logger != nil {
		return logger
	}
	if h.logger != nil {
		return h.logger
	}
	return slog.Default()
}

func (h *AuthHandler) isHTTPSRequest(c *gin.Context) bool {
	if c.Request == nil {
		return false
	}
	if c.Request.TLS != nil {
		return true
	}
	return strings.EqualFold(c.Request.Header.Get("X-Forwarded-Proto"), "https")
}

func (h *AuthHandler) getCookieDomain() string { return strings.TrimSpace(h.cookieDomain) }

func (h *AuthHandler) incrementLoginFail(ctx context.Context, username string) error {
	failKey := "lock:login:fail:" + username
	count, err := h.redis.Incr(ctx, failKey).Result()
	if err != nil {
		return err
	}
	if count == 1 {
		_ = h.redis.Expire(ctx, failKey, h.loginLockTTL).Err()
	}
	if count >= int64(h.loginLockThreshold) {
		_ = h.redis.Set(ctx, "lock:login:"+username, "1", h.loginLockTTL).Err()
	}
	return nil
}

// userIDFromContext reads the identity injected by the auth middleware.
func userIDFromContext(c *gin.Context) (uint, bool) {
	value, exists := c.Get(middleware.ContextUserIDKey)
	if !exists {
		return 0, false
	}
	userID, ok := value.(uint)
	return userID, ok
}

// sessionRole reads the caller role and employee id set by the auth middleware.
func sessionRole(c *gin.Context) (auth.Role, string, bool) {
	role, ok := middleware.RoleFromContext(c)
	if !ok {
		return "", "", false
	}
	return role, middleware.EmpIDFromContext(c), true
}
