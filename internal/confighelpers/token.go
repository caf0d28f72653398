package confighelpers

import (
	"github.com/windi-messenger/chathub/internal/configtypes"
	"github.com/windi-messenger/chathub/internal/token"
)

// MakeTokenConfig converts token section of configuration into token.Config.
func MakeTokenConfig(tokenConf configtypes.Token) token.Config {
	return token.Config{
		HMACSecretKey:   tokenConf.HMACSecretKey,
		Algorithm:       tokenConf.Algorithm,
		Issuer:          tokenConf.Issuer,
		ConnectionTTL:   tokenConf.ConnectionTTL.ToDuration(),
		SubscriptionTTL: tokenConf.SubscriptionTTL.ToDuration(),
	}
}
