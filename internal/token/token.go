// Package token issues and verifies signed, time-bounded connection tokens and
// channel subscription proofs. Tokens are stateless JWTs: verified on every use,
// never stored server-side.
package token

import (
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/cristalhq/jwt/v5"
)

const (
	defaultConnectionTTL   = 24 * time.Hour
	defaultSubscriptionTTL = 5 * time.Minute
)

// ErrInvalidToken returned for malformed, badly signed and expired tokens alike.
var ErrInvalidToken = errors.New("invalid token")

var (
	errTokenExpired         = errors.New("token expired")
	errNoExpiration         = errors.New("token has no expiration")
	errNoSubject            = errors.New("token has no subject")
	errUnsupportedAlgorithm = errors.New("unsupported JWT algorithm")
	errDisabledAlgorithm    = errors.New("disabled JWT algorithm")
	errWrongTokenKind       = errors.New("wrong token kind")
	errChannelMismatch      = errors.New("channel mismatch")
	errUserMismatch         = errors.New("user mismatch")
)

type invalidTokenError struct {
	cause error
}

func (e *invalidTokenError) Error() string { return ErrInvalidToken.Error() }

func (e *invalidTokenError) Is(target error) bool { return target == ErrInvalidToken }

func invalid(cause error) error {
	return &invalidTokenError{cause: cause}
}

// Reason returns a detailed reason of token verification failure. Only meant
// for operator tooling, callers of Verify must not branch on it.
func Reason(err error) string {
	var e *invalidTokenError
	if errors.As(err, &e) && e.cause != nil {
		return e.cause.Error()
	}
	if err == nil {
		return ""
	}
	return err.Error()
}

// Config of token Service.
type Config struct {
	// HMACSecretKey used to sign and verify tokens.
	HMACSecretKey string
	// Algorithm used for signing, one of HS256, HS384, HS512. HS256 by default.
	// Tokens signed with any of the HMAC algorithms are accepted on verification.
	Algorithm string
	// Issuer set into iss claim when not empty.
	Issuer string
	// ConnectionTTL is a lifetime of connection tokens.
	ConnectionTTL time.Duration
	// SubscriptionTTL is a lifetime of subscription proofs.
	SubscriptionTTL time.Duration
	// Now is a trusted clock, time.Now by default.
	Now func() time.Time
}

// ConnectTokenClaims is a payload of connection token.
type ConnectTokenClaims struct {
	Info     json.RawMessage `json:"info,omitempty"`
	Channels []string        `json:"channels,omitempty"`
	jwt.RegisteredClaims
}

// SubscribeTokenClaims is a payload of channel subscription proof.
type SubscribeTokenClaims struct {
	Channel string `json:"channel"`
	jwt.RegisteredClaims
}

// Token is an issued token.
type Token struct {
	Value     string
	User      string
	Channel   string
	IssuedAt  time.Time
	ExpiresAt time.Time
}

// Claims is a verified connection token content.
type Claims struct {
	User      string
	IssuedAt  time.Time
	ExpiresAt time.Time
	Info      json.RawMessage
	// Channels is a set of allowed channel patterns, unrestricted when empty.
	Channels *Patterns
}

// IssueOption customizes connection token.
type IssueOption func(*ConnectTokenClaims, *time.Duration)

// WithChannels restricts connection to channels matching patterns.
func WithChannels(patterns ...string) IssueOption {
	return func(c *ConnectTokenClaims, _ *time.Duration) {
		c.Channels = append(c.Channels, patterns...)
	}
}

// WithInfo attaches arbitrary JSON info to connection token.
func WithInfo(info json.RawMessage) IssueOption {
	return func(c *ConnectTokenClaims, _ *time.Duration) {
		c.Info = info
	}
}

// WithTTL overrides configured connection token lifetime.
func WithTTL(ttl time.Duration) IssueOption {
	return func(_ *ConnectTokenClaims, d *time.Duration) {
		*d = ttl
	}
}

// Service issues and verifies tokens.
type Service struct {
	mu         sync.RWMutex
	config     Config
	signer     jwt.Signer
	algorithms *algorithms
}

// New creates Service.
func New(config Config) (*Service, error) {
	s := &Service{}
	if err := s.Reload(config); err != nil {
		return nil, err
	}
	return s, nil
}

// Reload applies new configuration, i.e. rotates secret.
func (s *Service) Reload(config Config) error {
	if config.HMACSecretKey == "" {
		return errors.New("no HMAC secret key set")
	}
	if config.Algorithm == "" {
		config.Algorithm = string(jwt.HS256)
	}
	if config.ConnectionTTL <= 0 {
		config.ConnectionTTL = defaultConnectionTTL
	}
	if config.SubscriptionTTL <= 0 {
		config.SubscriptionTTL = defaultSubscriptionTTL
	}
	if config.Now == nil {
		config.Now = time.Now
	}
	signer, err := jwt.NewSignerHS(jwt.Algorithm(config.Algorithm), []byte(config.HMACSecretKey))
	if err != nil {
		return fmt.Errorf("error creating HMAC signer: %w", err)
	}
	alg, err := newAlgorithms(config.HMACSecretKey)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.config = config
	s.signer = signer
	s.algorithms = alg
	return nil
}

func (s *Service) now() time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.config.Now()
}

// IssueConnectionToken issues connection token for user. Connection tokens are
// not channel scoped unless WithChannels option used.
func (s *Service) IssueConnectionToken(user string, opts ...IssueOption) (Token, error) {
	if user == "" {
		return Token{}, errNoSubject
	}
	s.mu.RLock()
	signer := s.signer
	ttl := s.config.ConnectionTTL
	issuer := s.config.Issuer
	now := s.config.Now()
	s.mu.RUnlock()

	claims := &ConnectTokenClaims{}
	for _, opt := range opts {
		opt(claims, &ttl)
	}
	if _, err := CompilePatterns(claims.Channels); err != nil {
		return Token{}, err
	}
	exp := now.Add(ttl)
	claims.RegisteredClaims = jwt.RegisteredClaims{
		Subject:   user,
		Issuer:    issuer,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(exp),
	}
	token, err := jwt.NewBuilder(signer).Build(claims)
	if err != nil {
		return Token{}, err
	}
	return Token{
		Value:     token.String(),
		User:      user,
		IssuedAt:  now,
		ExpiresAt: exp,
	}, nil
}

// IssueSubscriptionProof issues a short-lived capability to subscribe user to
// exactly one channel.
func (s *Service) IssueSubscriptionProof(user string, channel string) (Token, error) {
	if user == "" {
		return Token{}, errNoSubject
	}
	if channel == "" {
		return Token{}, errors.New("channel required")
	}
	s.mu.RLock()
	signer := s.signer
	ttl := s.config.SubscriptionTTL
	issuer := s.config.Issuer
	now := s.config.Now()
	s.mu.RUnlock()

	exp := now.Add(ttl)
	token, err := jwt.NewBuilder(signer).Build(&SubscribeTokenClaims{
		Channel: channel,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   user,
			Issuer:    issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(exp),
		},
	})
	if err != nil {
		return Token{}, err
	}
	return Token{
		Value:     token.String(),
		User:      user,
		Channel:   channel,
		IssuedAt:  now,
		ExpiresAt: exp,
	}, nil
}

// Verify verifies connection token and returns its claims. Any failure is
// reported as ErrInvalidToken.
func (s *Service) Verify(t string) (Claims, error) {
	token, err := s.parse(t)
	if err != nil {
		return Claims{}, invalid(err)
	}
	var claims ConnectTokenClaims
	if err := json.Unmarshal(token.Claims(), &claims); err != nil {
		return Claims{}, invalid(err)
	}
	if isSubscriptionToken(token.Claims()) {
		return Claims{}, invalid(errWrongTokenKind)
	}
	if err := s.checkRegistered(claims.RegisteredClaims); err != nil {
		return Claims{}, invalid(err)
	}
	patterns, err := CompilePatterns(claims.Channels)
	if err != nil {
		return Claims{}, invalid(err)
	}
	return Claims{
		User:      claims.Subject,
		IssuedAt:  numericDateTime(claims.IssuedAt),
		ExpiresAt: claims.ExpiresAt.Time,
		Info:      claims.Info,
		Channels:  patterns,
	}, nil
}

// VerifySubscriptionProof checks that proof was issued for user and channel.
func (s *Service) VerifySubscriptionProof(t string, user string, channel string) error {
	token, err := s.parse(t)
	if err != nil {
		return invalid(err)
	}
	var claims SubscribeTokenClaims
	if err := json.Unmarshal(token.Claims(), &claims); err != nil {
		return invalid(err)
	}
	if claims.Channel == "" {
		return invalid(errWrongTokenKind)
	}
	if err := s.checkRegistered(claims.RegisteredClaims); err != nil {
		return invalid(err)
	}
	if claims.Subject != user {
		return invalid(errUserMismatch)
	}
	if claims.Channel != channel {
		return invalid(errChannelMismatch)
	}
	return nil
}

func (s *Service) parse(t string) (*jwt.Token, error) {
	token, err := jwt.ParseNoVerify([]byte(t))
	if err != nil {
		return nil, err
	}
	s.mu.RLock()
	alg := s.algorithms
	s.mu.RUnlock()
	if err := alg.verify(token); err != nil {
		return nil, err
	}
	return token, nil
}

func (s *Service) checkRegistered(claims jwt.RegisteredClaims) error {
	if claims.Subject == "" {
		return errNoSubject
	}
	if claims.ExpiresAt == nil {
		return errNoExpiration
	}
	now := s.now()
	if !claims.IsValidExpiresAt(now) || !claims.IsValidNotBefore(now) {
		return errTokenExpired
	}
	return nil
}

func isSubscriptionToken(raw []byte) bool {
	var probe struct {
		Channel string `json:"channel"`
	}
	_ = json.Unmarshal(raw, &probe)
	return probe.Channel != ""
}

func numericDateTime(d *jwt.NumericDate) time.Time {
	if d == nil {
		return time.Time{}
	}
	return d.Time
}

type algorithms struct {
	HS256 jwt.Verifier
	HS384 jwt.Verifier
	HS512 jwt.Verifier
}

func newAlgorithms(tokenHMACSecretKey string) (*algorithms, error) {
	alg := &algorithms{}
	verifierHS256, err := jwt.NewVerifierHS(jwt.HS256, []byte(tokenHMACSecretKey))
	if err != nil {
		return nil, err
	}
	verifierHS384, err := jwt.NewVerifierHS(jwt.HS384, []byte(tokenHMACSecretKey))
	if err != nil {
		return nil, err
	}
	verifierHS512, err := jwt.NewVerifierHS(jwt.HS512, []byte(tokenHMACSecretKey))
	if err != nil {
		return nil, err
	}
	alg.HS256 = verifierHS256
	alg.HS384 = verifierHS384
	alg.HS512 = verifierHS512
	return alg, nil
}

// verify checks signature. HMAC verifiers compare signatures in constant time.
func (s *algorithms) verify(token *jwt.Token) error {
	var verifier jwt.Verifier
	switch token.Header().Algorithm {
	case jwt.HS256:
		verifier = s.HS256
	case jwt.HS384:
		verifier = s.HS384
	case jwt.HS512:
		verifier = s.HS512
	default:
		return fmt.Errorf("%w: %s", errUnsupportedAlgorithm, string(token.Header().Algorithm))
	}
	if verifier == nil {
		return fmt.Errorf("%w: %s", errDisabledAlgorithm, string(token.Header().Algorithm))
	}
	return verifier.Verify(token)
}
