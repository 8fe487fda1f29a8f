package livekit

import (
	"errors"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const DefaultTokenTTL = 6 * time.Hour

type Config struct {
	URL           string        `yaml:"url"`
	APIKey        string        `yaml:"api_key"`
	APISecret     string        `yaml:"api_secret"`
	WebhookSecret string        `yaml:"webhook_secret"`
	TokenTTL      time.Duration `yaml:"token_ttl"`
}

type VideoGrant struct {
	Room         string `json:"room"`
	RoomJoin     bool   `json:"roomJoin"`
	CanPublish   bool   `json:"canPublish"`
	CanSubscribe bool   `json:"canSubscribe"`
}

type accessClaims struct {
	jwt.RegisteredClaims
	Name  string     `json:"name,omitempty"`
	Video VideoGrant `json:"video"`
}

type AccessToken struct {
	Token     string    `json:"token"`
	URL       string    `json:"url"`
	RoomName  string    `json:"roomName"`
	ExpiresAt time.Time `json:"expiresAt"`
}

// TokenIssuer signs room join tokens with the provider API key pair.
type TokenIssuer struct {
	cfg Config
	now func() time.Time
}

func NewTokenIssuer(cfg Config) (*TokenIssuer, error) {
	if strings.TrimSpace(cfg.APIKey) == "" || strings.TrimSpace(cfg.APISecret) == "" {
		return nil, errors.New("livekit api key and secret required")
	}
	if cfg.TokenTTL <= 0 {
		cfg.TokenTTL = DefaultTokenTTL
	}
	return &TokenIssuer{cfg: cfg, now: time.Now}, nil
}

func (ti *TokenIssuer) Issue(roomName, identity, displayName string) (*AccessToken, error) {
	if roomName == "" || identity == "" {
		return nil, errors.New("room and identity required")
	}
	now := ti.now()
	exp := now.Add(ti.cfg.TokenTTL)
	claims := accessClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    ti.cfg.APIKey,
			Subject:   identity,
			NotBefore: jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(exp),
		},
		Name: strings.TrimSpace(displayName),
		Video: VideoGrant{
			Room:         roomName,
			RoomJoin:     true,
			CanPublish:   true,
			CanSubscribe: true,
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(ti.cfg.APISecret))
	if err != nil {
		return nil, err
	}
	return &AccessToken{Token: signed, URL: ti.cfg.URL, RoomName: roomName, ExpiresAt: exp}, nil
}
