package walletauth

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/accounts"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// Scheme is the Authorization scheme carrying a signed challenge.
const Scheme = "Wallet"

var (
	ErrMissingAuthorization = errors.New("wallet authorization required")
	ErrInvalidAuthorization = errors.New("invalid wallet authorization")
	ErrChallengeExpired     = errors.New("challenge has expired")
	ErrChallengeMismatch    = errors.New("challenge was issued for another request")
	ErrChallengeReplayed    = errors.New("challenge already used")
	ErrSignatureMismatch    = errors.New("signature does not match wallet")
)

// ReplayStore records redeemed challenge IDs.
type ReplayStore interface {
	Claim(ctx context.Context, key string, ttl time.Duration) (bool, error)
}

// Config configures challenge issuance
type Config struct {
	Secret   string
	Issuer   string
	Audience string
	TTL      time.Duration
}

// Claims are carried inside a challenge token. A challenge is bound to the
// method and path it was issued for.
type Claims struct {
	Method string `json:"method"`
	Path   string `json:"path"`
	jwt.RegisteredClaims
}

// Challenge is handed to a wallet to sign.
type Challenge struct {
	Token     string    `json:"challenge"`
	Message   string    `json:"message"`
	ExpiresAt time.Time `json:"expiresAt"`
}

// Identity is an authenticated wallet.
type Identity struct {
	Address     string
	ChallengeID string
}

// Service issues and verifies wallet challenges
type Service struct {
	secret   []byte
	issuer   string
	audience string
	ttl      time.Duration
	replay   ReplayStore
	now      func() time.Time
}

var signChallengeToken = func(token *jwt.Token, secret []byte) (string, error) {
	return token.SignedString(secret)
}

// NewService creates a new wallet auth service
func NewService(cfg Config, replay ReplayStore) *Service {
	ttl := cfg.TTL
	if ttl <= 0 {
		ttl = 60 * time.Second
	}
	return &Service{
		secret:   []byte(cfg.Secret),
		issuer:   cfg.Issuer,
		audience: cfg.Audience,
		ttl:      ttl,
		replay:   replay,
		now:      time.Now,
	}
}

// IssueChallenge creates a challenge bound to method and path.
func (s *Service) IssueChallenge(method, path string) (*Challenge, error) {
	now := s.now()
	expiresAt := now.Add(s.ttl)
	claims := &Claims{
		Method: strings.ToUpper(method),
		Path:   path,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Issuer:    s.issuer,
			Audience:  jwt.ClaimStrings{s.audience},
			ExpiresAt: jwt.NewNumericDate(expiresAt),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
		},
	}

	token, err := signChallengeToken(jwt.NewWithClaims(jwt.SigningMethodHS256, claims), s.secret)
	if err != nil {
		return nil, fmt.Errorf("sign challenge: %w", err)
	}
	return &Challenge{
		Token:     token,
		Message:   s.Message(token),
		ExpiresAt: expiresAt,
	}, nil
}

// Message is the exact text a wallet signs for a challenge token.
func (s *Service) Message(token string) string {
	return fmt.Sprintf("%s wants you to sign in with your wallet.\n\nChallenge: %s", s.audience, token)
}

// WWWAuthenticate renders a fresh challenge as a WWW-Authenticate header value.
func (s *Service) WWWAuthenticate(ch *Challenge) string {
	return fmt.Sprintf(`%s realm=%q, challenge=%q`, Scheme, s.issuer, ch.Token)
}

// Verify authenticates an Authorization header for method and path.
func (s *Service) Verify(ctx context.Context, header, method, path string) (*Identity, error) {
	if strings.TrimSpace(header) == "" {
		return nil, ErrMissingAuthorization
	}
	params, err := ParseAuthorization(header)
	if err != nil {
		return nil, err
	}

	claims, err := s.parseChallenge(params.Challenge)
	if err != nil {
		return nil, err
	}
	if claims.Method != strings.ToUpper(method) || claims.Path != path {
		return nil, ErrChallengeMismatch
	}

	signer, err := RecoverAddress(s.Message(params.Challenge), params.Signature)
	if err != nil {
		return nil, err
	}
	if !common.IsHexAddress(params.Address) || common.HexToAddress(params.Address) != signer {
		return nil, ErrSignatureMismatch
	}

	if s.replay != nil {
		ttl := time.Until(claims.ExpiresAt.Time)
		ok, err := s.replay.Claim(ctx, claims.ID, ttl)
		if err != nil {
			return nil, fmt.Errorf("replay store: %w", err)
		}
		if !ok {
			return nil, ErrChallengeReplayed
		}
	}

	return &Identity{Address: signer.Hex(), ChallengeID: claims.ID}, nil
}

func (s *Service) parseChallenge(token string) (*Claims, error) {
	claims := &Claims{}
	_, err := jwt.ParseWithClaims(token, claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, ErrInvalidAuthorization
		}
		return s.secret, nil
	},
		jwt.WithIssuer(s.issuer),
		jwt.WithAudience(s.audience),
		jwt.WithTimeFunc(s.now),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrChallengeExpired
		}
		return nil, ErrInvalidAuthorization
	}
	return claims, nil
}

// Authorization is a parsed `Wallet` Authorization header.
type Authorization struct {
	Address   string
	Challenge string
	Signature string
}

var authParamPattern = regexp.MustCompile(`(\w+)="([^"]*)"`)

// ParseAuthorization parses `Wallet address="0x..", challenge="...", signature="0x..."`.
func ParseAuthorization(header string) (*Authorization, error) {
	scheme, rest, ok := strings.Cut(strings.TrimSpace(header), " ")
	if !ok || !strings.EqualFold(scheme, Scheme) {
		return nil, ErrInvalidAuthorization
	}

	out := &Authorization{}
	for _, m := range authParamPattern.FindAllStringSubmatch(rest, -1) {
		switch strings.ToLower(m[1]) {
		case "address":
			out.Address = m[2]
		case "challenge":
			out.Challenge = m[2]
		case "signature":
			out.Signature = m[2]
		}
	}
	if out.Address == "" || out.Challenge == "" || out.Signature == "" {
		return nil, ErrInvalidAuthorization
	}
	return out, nil
}

// RecoverAddress returns the address that produced an EIP-191 personal_sign signature.
func RecoverAddress(message, signatureHex string) (common.Address, error) {
	sig, err := hexutil.Decode(signatureHex)
	if err != nil || len(sig) != crypto.SignatureLength {
		return common.Address{}, ErrInvalidAuthorization
	}
	// Wallets emit V as 27/28; go-ethereum expects 0/1.
	if sig[crypto.RecoveryIDOffset] >= 27 {
		sig[crypto.RecoveryIDOffset] -= 27
	}

	pub, err := crypto.SigToPub(accounts.TextHash([]byte(message)), sig)
	if err != nil {
		return common.Address{}, ErrSignatureMismatch
	}
	return crypto.PubkeyToAddress(*pub), nil
}
