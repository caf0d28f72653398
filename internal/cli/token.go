package cli

import (
	"errors"
	"fmt"
	"time"

	"github.com/cristalhq/jwt/v5"
	"github.com/spf13/cobra"

	"github.com/windi-messenger/chathub/internal/config"
	"github.com/windi-messenger/chathub/internal/confighelpers"
	"github.com/windi-messenger/chathub/internal/token"
)

func tokenService(cmd *cobra.Command, configFile string) (*token.Service, error) {
	cfg, _, err := config.GetConfig(cmd, configFile)
	if err != nil {
		return nil, fmt.Errorf("error getting config: %w", err)
	}
	if cfg.Token.HMACSecretKey == "" {
		return nil, errors.New("no HMAC secret key set")
	}
	return token.New(confighelpers.MakeTokenConfig(cfg.Token))
}

// generateToken issues connection token for user. Zero ttl means TTL from
// configuration.
func generateToken(tokens *token.Service, user string, ttl time.Duration, channels []string) (token.Token, error) {
	var opts []token.IssueOption
	if ttl > 0 {
		opts = append(opts, token.WithTTL(ttl))
	}
	if len(channels) > 0 {
		opts = append(opts, token.WithChannels(channels...))
	}
	return tokens.IssueConnectionToken(user, opts...)
}

// checkToken verifies connection token and returns its user and raw payload.
func checkToken(tokens *token.Service, t string) (string, []byte, error) {
	parsed, err := jwt.ParseNoVerify([]byte(t)) // Will be verified later.
	if err != nil {
		return "", nil, err
	}
	claims, err := tokens.Verify(t)
	if err != nil {
		return "", nil, fmt.Errorf("token with algorithm %s and claims %s has error: %s", parsed.Header().Algorithm, string(parsed.Claims()), token.Reason(err))
	}
	return claims.User, parsed.Claims(), nil
}

// checkSubToken verifies subscription proof of user for channel and returns
// its raw payload.
func checkSubToken(tokens *token.Service, t string, user string, channel string) ([]byte, error) {
	parsed, err := jwt.ParseNoVerify([]byte(t))
	if err != nil {
		return nil, err
	}
	if err := tokens.VerifySubscriptionProof(t, user, channel); err != nil {
		return nil, fmt.Errorf("token with algorithm %s and claims %s has error: %s", parsed.Header().Algorithm, string(parsed.Claims()), token.Reason(err))
	}
	return parsed.Claims(), nil
}
