// Package token はセッショントークンの発行と検証を提供する。
//
// トークンはHS256で署名されたJWTで、subject id・email・roleを含む。
// 外部状態を一切参照しない純粋な変換として実装する。
package token

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/hitoshi/travelbook/internal/model"
)

// DefaultTTL はトークンの既定の有効期間。
const DefaultTTL = 24 * time.Hour

var (
	// ErrMalformed はトークンを解析できない場合のエラー。
	ErrMalformed = errors.New("token is malformed")
	// ErrInvalidSignature は署名が一致しない場合のエラー。
	ErrInvalidSignature = errors.New("token signature is invalid")
	// ErrExpired は有効期限を過ぎたトークンのエラー。
	ErrExpired = errors.New("token is expired")
)

// Subject はトークンに埋め込む発行時点のIDスナップショット。
type Subject struct {
	UserID string
	Email  string
	Role   model.Role
}

// Claims は検証済みトークンから取り出したクレーム。
type Claims struct {
	Subject
	IssuedAt  time.Time
	ExpiresAt time.Time
}

// jwtClaims はJWTのペイロード表現。
type jwtClaims struct {
	UID   string     `json:"uid"`
	Email string     `json:"email"`
	Role  model.Role `json:"role"`
	jwt.RegisteredClaims
}

// CodecConfig はCodecの設定。
type CodecConfig struct {
	Secret []byte
	TTL    time.Duration
	Issuer string
	// Now はテスト用に差し替え可能な時刻関数。nilの場合はtime.Now。
	Now func() time.Time
}

// Codec はセッショントークンの発行と検証を行う。
type Codec struct {
	secret []byte
	ttl    time.Duration
	issuer string
	now    func() time.Time
}

// NewCodec はCodecを生成する。
func NewCodec(cfg CodecConfig) *Codec {
	if cfg.TTL <= 0 {
		cfg.TTL = DefaultTTL
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return &Codec{
		secret: cfg.Secret,
		ttl:    cfg.TTL,
		issuer: cfg.Issuer,
		now:    cfg.Now,
	}
}

// TTL はトークンの有効期間を返す。
func (c *Codec) TTL() time.Duration {
	return c.ttl
}

// Issue はSubjectを署名済みトークン文字列に変換する。
// 有効期限は発行時刻からTTL後に固定され、延長はできない。
func (c *Codec) Issue(s Subject) (string, error) {
	if s.UserID == "" {
		return "", fmt.Errorf("failed to issue token: empty subject")
	}

	now := c.now()
	claims := jwtClaims{
		UID:   s.UserID,
		Email: s.Email,
		Role:  s.Role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   s.UserID,
			Issuer:    c.issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(c.ttl)),
		},
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(c.secret)
	if err != nil {
		return "", fmt.Errorf("failed to sign token: %w", err)
	}
	return signed, nil
}

// Verify はトークンを検証しクレームを返す。
//
// 有効期限は署名検証より先に判定するため、期限切れのトークンは
// 署名の正否にかかわらずErrExpiredとなる。
func (c *Codec) Verify(tokenString string) (*Claims, error) {
	unverified := &jwtClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(tokenString, unverified); err != nil {
		return nil, ErrMalformed
	}
	if unverified.Subject == "" || unverified.ExpiresAt == nil {
		return nil, ErrMalformed
	}

	now := c.now()
	if !now.Before(unverified.ExpiresAt.Time) {
		return nil, ErrExpired
	}

	verified := &jwtClaims{}
	_, err := jwt.ParseWithClaims(tokenString, verified, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return c.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(c.now),
		jwt.WithExpirationRequired(),
	)
	if err != nil {
		switch {
		case errors.Is(err, jwt.ErrTokenExpired):
			return nil, ErrExpired
		case errors.Is(err, jwt.ErrTokenSignatureInvalid), errors.Is(err, jwt.ErrTokenUnverifiable):
			return nil, ErrInvalidSignature
		default:
			return nil, ErrMalformed
		}
	}

	claims := &Claims{
		Subject: Subject{
			UserID: verified.Subject,
			Email:  verified.Email,
			Role:   verified.Role,
		},
		ExpiresAt: verified.ExpiresAt.Time,
	}
	if verified.IssuedAt != nil {
		claims.IssuedAt = verified.IssuedAt.Time
	}
	return claims, nil
}
