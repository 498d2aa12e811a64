package auth

import (
	"path/filepath"
	"testing"

	"github.com/golang-jwt/jwt/v5"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dotpix/dotpix-api/internal/database"
)

const testSecret = "test-secret"

func newTestService(t *testing.T) *Service {
	t.Helper()
	db, err := database.NewDatabase(filepath.Join(t.TempDir(), "auth.db"))
	require.NoError(t, err)

	return NewService(db, testSecret, DevVerifier{}, UserDefaults{
		BuyLimitUSD:      decimal.NewFromInt(1),
		BuyOrdersPerDay:  1,
		SellLimitUSD:     decimal.NewFromInt(100),
		SellOrdersPerDay: 10,
	})
}

func loginRequest(wallet string) LoginRequest {
	return LoginRequest{
		WalletAddress: wallet,
		Message:       "login challenge",
		Signature:     "0xsigned",
	}
}

func TestLoginCreatesUserWithDefaults(t *testing.T) {
	svc := newTestService(t)

	resp, err := svc.Login(loginRequest("new-wallet"))
	require.NoError(t, err)

	require.NotNil(t, resp.User)
	assert.Equal(t, "new-wallet", resp.User.WalletAddress)
	assert.True(t, resp.User.BuyLimitUSD.Equal(decimal.NewFromInt(1)))
	assert.True(t, resp.User.SellLimitUSD.Equal(decimal.NewFromInt(100)))
	assert.Equal(t, 10, resp.User.SellOrdersPerDay)
	assert.Equal(t, 5.0, resp.User.Rating)
	assert.False(t, resp.User.IsAdmin)
	assert.NotEmpty(t, resp.Token)
}

func TestLoginIsIdempotentPerWallet(t *testing.T) {
	svc := newTestService(t)

	first, err := svc.Login(loginRequest("wallet"))
	require.NoError(t, err)
	second, err := svc.Login(loginRequest("wallet"))
	require.NoError(t, err)

	assert.Equal(t, first.User.ID, second.User.ID)
}

func TestLoginRejectsBadSignature(t *testing.T) {
	svc := newTestService(t)

	req := loginRequest("wallet")
	req.Signature = ""
	_, err := svc.Login(req)
	assert.ErrorIs(t, err, ErrInvalidSignature)
}

func TestTokenCarriesWalletAndAdminClaims(t *testing.T) {
	svc := newTestService(t)

	resp, err := svc.Login(loginRequest("wallet"))
	require.NoError(t, err)

	token, err := jwt.Parse(resp.Token, func(token *jwt.Token) (interface{}, error) {
		return []byte(testSecret), nil
	})
	require.NoError(t, err)
	require.True(t, token.Valid)

	claims, ok := token.Claims.(jwt.MapClaims)
	require.True(t, ok)
	assert.Equal(t, "wallet", claims["wallet_address"])
	assert.Equal(t, false, claims["is_admin"])
}

func TestUserByWalletMissing(t *testing.T) {
	svc := newTestService(t)

	user, err := svc.UserByWallet("missing")
	require.NoError(t, err)
	assert.Nil(t, user)
}
