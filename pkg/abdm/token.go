package abdm

import (
	"crypto/rsa"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const kycVerified = "VERIFIED"

var (
	ErrTokenExpired   = errors.New("token expired")
	ErrTokenInvalid   = errors.New("invalid token")
	ErrKYCNotVerified = errors.New("KYC not verified")
)

// Claims carried by an ABDM sandbox token.
type Claims struct {
	ABHANumber  string `json:"abha_number"`
	ABHAAddress string `json:"abha_address"`
	Name        string `json:"name"`
	KYCStatus   string `json:"kycStatus"`
	jwt.RegisteredClaims
}

// TokenService issues and verifies RS256 tokens for the ABDM sandbox
// facility audience.
type TokenService struct {
	privateKey *rsa.PrivateKey
	publicKey  *rsa.PublicKey
	issuer     string
	audience   string
	ttl        time.Duration
	nowFunc    func() time.Time
}

// NewTokenService loads the RSA key pair from PEM files. The private key is
// optional; without it the service can only verify.
func NewTokenService(privateKeyPath, publicKeyPath, issuer, audience string, ttl time.Duration) (*TokenService, error) {
	publicPEM, err := os.ReadFile(filepath.Clean(publicKeyPath))
	if err != nil {
		return nil, fmt.Errorf("read public key: %w", err)
	}
	publicKey, err := jwt.ParseRSAPublicKeyFromPEM(publicPEM)
	if err != nil {
		return nil, fmt.Errorf("parse public key: %w", err)
	}

	service := &TokenService{
		publicKey: publicKey,
		issuer:    issuer,
		audience:  audience,
		ttl:       ttl,
		nowFunc:   time.Now,
	}

	if privateKeyPath != "" {
		privatePEM, err := os.ReadFile(filepath.Clean(privateKeyPath))
		if err != nil {
			return nil, fmt.Errorf("read private key: %w", err)
		}
		privateKey, err := jwt.ParseRSAPrivateKeyFromPEM(privatePEM)
		if err != nil {
			return nil, fmt.Errorf("parse private key: %w", err)
		}
		service.privateKey = privateKey
	}

	return service, nil
}

// NewTokenServiceFromKeys wires an existing key pair, mainly for tests.
func NewTokenServiceFromKeys(privateKey *rsa.PrivateKey, issuer, audience string, ttl time.Duration) *TokenService {
	return &TokenService{
		privateKey: privateKey,
		publicKey:  &privateKey.PublicKey,
		issuer:     issuer,
		audience:   audience,
		ttl:        ttl,
		nowFunc:    time.Now,
	}
}

// Issue mints a verified-KYC token for the given ABHA identity.
func (s *TokenService) Issue(abhaNumber, abhaAddress, name string) (string, error) {
	if s.privateKey == nil {
		return "", errors.New("token service has no signing key")
	}
	now := s.nowFunc()
	claims := Claims{
		ABHANumber:  abhaNumber,
		ABHAAddress: abhaAddress,
		Name:        name,
		KYCStatus:   kycVerified,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    s.issuer,
			Subject:   abhaNumber,
			Audience:  jwt.ClaimStrings{s.audience},
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.ttl)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodRS256, claims).SignedString(s.privateKey)
}

// Verify validates signature, issuer, audience, expiry, and the KYC claim.
func (s *TokenService) Verify(tokenString string) (*Claims, error) {
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenString, claims,
		func(t *jwt.Token) (interface{}, error) {
			if _, ok := t.Method.(*jwt.SigningMethodRSA); !ok {
				return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
			}
			return s.publicKey, nil
		},
		jwt.WithIssuer(s.issuer),
		jwt.WithAudience(s.audience),
		jwt.WithTimeFunc(func() time.Time { return s.nowFunc() }),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrTokenExpired
		}
		return nil, fmt.Errorf("%w: %v", ErrTokenInvalid, err)
	}
	if !token.Valid {
		return nil, ErrTokenInvalid
	}
	if claims.KYCStatus != kycVerified {
		return nil, ErrKYCNotVerified
	}
	return claims, nil
}
