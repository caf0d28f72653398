package confighelpers

import (
	"github.com/windi-messenger/chathub/internal/configtypes"
	"github.com/windi-messenger/chathub/internal/hub"
)

// MakeHubConfig fills tunables of hub.Config from configuration. Verifier,
// Authorizer and Store must be set by caller.
func MakeHubConfig(hubConf configtypes.Hub) hub.Config {
	return hub.Config{
		HistorySize:      hubConf.HistorySize,
		HistoryDisabled:  hubConf.HistoryDisabled,
		HistoryTTL:       hubConf.HistoryTTL.ToDuration(),
		KeyCacheSize:     hubConf.IdempotencyCacheSize,
		KeyCacheTTL:      hubConf.IdempotencyCacheTTL.ToDuration(),
		ClientQueueSize:  hubConf.ClientQueueSize,
		SubscribeHistory: hubConf.SubscribeHistory,
		HeartbeatTimeout: hubConf.HeartbeatTimeout.ToDuration(),
		SweepInterval:    hubConf.SweepInterval.ToDuration(),
		NumShards:        hubConf.NumShards,
	}
}
