package auth

import (
	"errors"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/dotpix/dotpix-api/internal/types"
	"github.com/dotpix/dotpix-api/pkg/response"
)

var (
	ErrInvalidSignature = errors.New("invalid wallet signature")
	ErrTokenGeneration  = errors.New("failed to generate token")
)

// SignatureVerifier is the wallet-authentication capability. The concrete
// scheme (sr25519 challenge verification) lives outside this service.
type SignatureVerifier interface {
	Verify(walletAddress, message, signature string) bool
}

// LoginRequest is a signed challenge presented by a wallet.
type LoginRequest struct {
	WalletAddress string `json:"wallet_address" binding:"required"`
	Message       string `json:"message" binding:"required"`
	Signature     string `json:"signature" binding:"required"`
}

// TokenResponse represents the JWT session token response
type TokenResponse struct {
	Token      string      `json:"jwt_token"`
	Expiration time.Time   `json:"expiration"`
	User       *types.User `json:"user"`
}

// UserDefaults are the limits applied to users created on first login.
type UserDefaults struct {
	BuyLimitUSD      decimal.Decimal
	BuyOrdersPerDay  int
	SellLimitUSD     decimal.Decimal
	SellOrdersPerDay int
}

// Service handles wallet authentication and session token issuance
type Service struct {
	db        *gorm.DB
	jwtSecret []byte
	verifier  SignatureVerifier
	defaults  UserDefaults
}

// NewService creates a new authentication service
func NewService(db *gorm.DB, jwtSecret string, verifier SignatureVerifier, defaults UserDefaults) *Service {
	return &Service{
		db:        db,
		jwtSecret: []byte(jwtSecret),
		verifier:  verifier,
		defaults:  defaults,
	}
}

// Login verifies a signed challenge and returns a session token, creating
// the User record on first successful authentication.
func (s *Service) Login(req LoginRequest) (*TokenResponse, error) {
	if !s.verifier.Verify(req.WalletAddress, req.Message, req.Signature) {
		return nil, ErrInvalidSignature
	}

	user, err := s.findOrCreateUser(req.WalletAddress)
	if err != nil {
		return nil, err
	}

	expiration := time.Now().Add(24 * time.Hour)
	claims := jwt.MapClaims{
		"wallet_address": user.WalletAddress,
		"is_admin":       user.IsAdmin,
		"exp":            jwt.NewNumericDate(expiration),
		"iat":            jwt.NewNumericDate(time.Now()),
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	tokenString, err := token.SignedString(s.jwtSecret)
	if err != nil {
		return nil, ErrTokenGeneration
	}

	return &TokenResponse{
		Token:      tokenString,
		Expiration: expiration,
		User:       user,
	}, nil
}

// UserByWallet loads the user bound to an authenticated wallet address.
func (s *Service) UserByWallet(wallet string) (*types.User, error) {
	var user types.User
	if err := s.db.Where("wallet_address = ?", wallet).First(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &user, nil
}

func (s *Service) findOrCreateUser(wallet string) (*types.User, error) {
	user, err := s.UserByWallet(wallet)
	if err != nil {
		return nil, err
	}
	if user != nil {
		return user, nil
	}

	user = &types.User{
		WalletAddress:    wallet,
		BuyLimitUSD:      s.defaults.BuyLimitUSD,
		BuyOrdersPerDay:  s.defaults.BuyOrdersPerDay,
		SellLimitUSD:     s.defaults.SellLimitUSD,
		SellOrdersPerDay: s.defaults.SellOrdersPerDay,
		Rating:           5.0,
	}
	if err := s.db.Create(user).Error; err != nil {
		return nil, err
	}

	log.Info().Str("wallet_address", wallet).Uint("user_id", user.ID).Msg("user created on first authentication")
	return user, nil
}

// GinHandlers contains HTTP handlers for authentication endpoints
type GinHandlers struct {
	service *Service
}

// NewGinHandlers creates a new set of HTTP handlers for authentication endpoints
func NewGinHandlers(service *Service) *GinHandlers {
	return &GinHandlers{
		service: service,
	}
}

// LoginHandler handles POST requests to exchange a signed challenge for a
// session token.
func (h *GinHandlers) LoginHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		var req LoginRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			response.BadRequest(c, "Invalid request body")
			return
		}

		token, err := h.service.Login(req)
		if errors.Is(err, ErrInvalidSignature) {
			response.Unauthorized(c, err.Error())
			return
		}
		response.Handle(c, token, err)
	}
}

// MeHandler returns the authenticated user's record.
func (h *GinHandlers) MeHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		wallet := c.GetString("wallet_address")
		user, err := h.service.UserByWallet(wallet)
		if err == nil && user == nil {
			response.NotFound(c, "User not found")
			return
		}
		response.Handle(c, user, err)
	}
}

// DevVerifier accepts any non-empty signature. It stands in for the real
// sr25519 verifier in development and tests.
type DevVerifier struct{}

func (DevVerifier) Verify(walletAddress, message, signature string) bool {
	return walletAddress != "" && signature != ""
}
