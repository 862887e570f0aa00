package util

import (
	"sync"
	"time"

	jwt "github.com/golang-jwt/jwt/v5"

	"github.com/teambrains/teambrains-backend/dao/model"
	"github.com/teambrains/teambrains-backend/pkg/config"
	"github.com/teambrains/teambrains-backend/pkg/logutils"
)

type (
	JWTClaims struct {
		UserID   uint           `json:"ui"`
		UserUUID string         `json:"uu"`
		Email    string         `json:"em"`
		Role     model.UserRole `json:"ro"`
		jwt.RegisteredClaims
	}
	JWTMessage struct {
		UserID   uint           `json:"userID"`
		UserUUID string         `json:"userUUID"`
		Email    string         `json:"email"`
		Role     model.UserRole `json:"role"`
	}
)

type TokenManager struct {
	secretKey       string
	accessTokenTTL  int
	refreshTokenTTL int
}

var (
	once     sync.Once
	tokenMgr *TokenManager
)

func GetTokenMgr() *TokenManager {
	once.Do(func() {
		conf := config.GetConfig()
		tokenMgr = newTokenManager(conf.Auth.AccessTokenSecret,
			conf.Auth.AccessTokenExpiryHour,
			conf.Auth.RefreshTokenExpiryHour,
		)
	})
	return tokenMgr
}

func newTokenManager(secretKey string, accessTokenTTL, refreshTokenTTL int) *TokenManager {
	return &TokenManager{
		secretKey,
		accessTokenTTL,
		refreshTokenTTL,
	}
}

func (tm *TokenManager) createToken(msg *JWTMessage, ttl int) (string, error) {
	expiresAt := time.Now().Add(time.Hour * time.Duration(ttl))

	claims := &JWTClaims{
		UserID:   msg.UserID,
		UserUUID: msg.UserUUID,
		Email:    msg.Email,
		Role:     msg.Role,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(tm.secretKey))
}

// CreateTokens creates a new access token and a new refresh token
func (tm *TokenManager) CreateTokens(msg *JWTMessage) (
	accessToken string, refreshToken string, err error) {
	accessToken, err = tm.createToken(msg, tm.accessTokenTTL)
	if err != nil {
		logutils.Log.Error(err)
		return "", "", err
	}
	refreshToken, err = tm.createToken(msg, tm.refreshTokenTTL)
	if err != nil {
		logutils.Log.Error(err)
		return "", "", err
	}
	return accessToken, refreshToken, nil
}

func (tm *TokenManager) CheckToken(requestToken string) (JWTMessage, error) {
	claims := JWTClaims{}
	_, err := jwt.ParseWithClaims(requestToken, &claims, func(_ *jwt.Token) (any, error) {
		return []byte(tm.secretKey), nil
	})
	return JWTMessage{
		UserID:   claims.UserID,
		UserUUID: claims.UserUUID,
		Email:    claims.Email,
		Role:     claims.Role,
	}, err
}
