// Package api implements server HTTP API of hub and token endpoints used by
// clients to obtain connection tokens and subscription proofs.
package api

import (
	"context"
	"errors"
	"strconv"
	"time"

	"github.com/gobwas/glob"
	"github.com/rs/zerolog/log"
	"github.com/tidwall/gjson"

	"github.com/windi-messenger/chathub/internal/auth"
	"github.com/windi-messenger/chathub/internal/build"
	"github.com/windi-messenger/chathub/internal/hub"
	"github.com/windi-messenger/chathub/internal/metrics"
)

// Executor can run API methods.
type Executor struct {
	hub      *hub.Hub
	protocol string
	started  time.Time
}

// NewExecutor creates Executor. Protocol is used as metrics label.
func NewExecutor(h *hub.Hub, protocol string) *Executor {
	return &Executor{
		hub:      h,
		protocol: protocol,
		started:  time.Now(),
	}
}

func (e *Executor) fail(method string, err *Error) *Error {
	metrics.IncAPIError(e.protocol, method, strconv.FormatUint(uint64(err.Code), 10))
	return err
}

// toAPIError converts hub error into API error.
func toAPIError(err error) *Error {
	var hubErr *hub.Error
	if errors.As(err, &hubErr) {
		return &Error{Code: hubErr.Code, Message: hubErr.Message}
	}
	return ErrorInternal
}

func (e *Executor) publish(ctx context.Context, identity string, ch string, cmd PublishRequest) (hub.Message, error) {
	opts := hub.PublishOptions{IdempotencyKey: cmd.IdempotencyKey, Publisher: identity}
	if identity != "" {
		return e.hub.PublishAs(ctx, auth.Subject{User: identity}, ch, cmd.Data, opts)
	}
	return e.hub.ServerPublish(ctx, ch, cmd.Data, opts)
}

// Publish publishes data into channel.
func (e *Executor) Publish(ctx context.Context, cmd *PublishRequest) *PublishResponse {
	defer metrics.ObserveAPICommand(time.Now(), e.protocol, "publish")

	resp := &PublishResponse{}

	if cmd.Channel == "" {
		log.Debug().Msg("channel required for publish")
		resp.Error = e.fail("publish", ErrorBadRequest)
		return resp
	}
	if len(cmd.Data) == 0 || !gjson.ValidBytes(cmd.Data) {
		log.Debug().Str("channel", cmd.Channel).Msg("valid JSON data required for publish")
		resp.Error = e.fail("publish", ErrorBadRequest)
		return resp
	}

	m, err := e.publish(ctx, cmd.Identity, cmd.Channel, *cmd)
	if err != nil {
		if errors.Is(err, hub.ErrorInternal) {
			log.Error().Err(err).Str("channel", cmd.Channel).Msg("error publishing message")
		}
		resp.Error = e.fail("publish", toAPIError(err))
		return resp
	}
	resp.Result = &PublishResult{Seq: m.Seq, Time: m.Time}
	return resp
}

// Broadcast publishes the same data into many channels. Each channel gets its
// own response.
func (e *Executor) Broadcast(ctx context.Context, cmd *BroadcastRequest) *BroadcastResponse {
	defer metrics.ObserveAPICommand(time.Now(), e.protocol, "broadcast")

	resp := &BroadcastResponse{}

	if len(cmd.Channels) == 0 {
		log.Debug().Msg("channels required for broadcast")
		resp.Error = e.fail("broadcast", ErrorBadRequest)
		return resp
	}
	if len(cmd.Data) == 0 || !gjson.ValidBytes(cmd.Data) {
		log.Debug().Msg("valid JSON data required for broadcast")
		resp.Error = e.fail("broadcast", ErrorBadRequest)
		return resp
	}
	for _, ch := range cmd.Channels {
		if ch == "" {
			log.Debug().Msg("channel can not be blank in broadcast")
			resp.Error = e.fail("broadcast", ErrorBadRequest)
			return resp
		}
	}

	responses := make([]*PublishResponse, len(cmd.Channels))
	if cmd.Identity == "" {
		results := e.hub.Broadcast(ctx, cmd.Channels, cmd.Data, hub.PublishOptions{IdempotencyKey: cmd.IdempotencyKey})
		for i, res := range results {
			responses[i] = e.broadcastResponse(res.Channel, res.Message, res.Err)
		}
	} else {
		for i, ch := range cmd.Channels {
			m, err := e.publish(ctx, cmd.Identity, ch, PublishRequest{
				Data:           cmd.Data,
				IdempotencyKey: cmd.IdempotencyKey,
			})
			responses[i] = e.broadcastResponse(ch, m, err)
		}
	}
	resp.Result = &BroadcastResult{Responses: responses}
	return resp
}

func (e *Executor) broadcastResponse(ch string, m hub.Message, err error) *PublishResponse {
	if err != nil {
		if errors.Is(err, hub.ErrorInternal) {
			log.Error().Err(err).Str("channel", ch).Msg("error publishing into channel")
		}
		return &PublishResponse{Error: e.fail("broadcast", toAPIError(err))}
	}
	return &PublishResponse{Result: &PublishResult{Seq: m.Seq, Time: m.Time}}
}

// Presence returns a snapshot of channel subscribers.
func (e *Executor) Presence(_ context.Context, cmd *PresenceRequest) *PresenceResponse {
	defer metrics.ObserveAPICommand(time.Now(), e.protocol, "presence")

	resp := &PresenceResponse{}

	if cmd.Channel == "" {
		resp.Error = e.fail("presence", ErrorBadRequest)
		return resp
	}
	entries, err := e.hub.Presence(cmd.Channel)
	if err != nil {
		resp.Error = e.fail("presence", toAPIError(err))
		return resp
	}
	resp.Result = &PresenceResult{Presence: entries}
	return resp
}

// PresenceStats returns short presence summary of channel.
func (e *Executor) PresenceStats(_ context.Context, cmd *PresenceStatsRequest) *PresenceStatsResponse {
	defer metrics.ObserveAPICommand(time.Now(), e.protocol, "presence_stats")

	resp := &PresenceStatsResponse{}

	if cmd.Channel == "" {
		resp.Error = e.fail("presence_stats", ErrorBadRequest)
		return resp
	}
	stats, err := e.hub.PresenceStats(cmd.Channel)
	if err != nil {
		resp.Error = e.fail("presence_stats", toAPIError(err))
		return resp
	}
	resp.Result = &stats
	return resp
}

// History returns channel history, newest first.
func (e *Executor) History(_ context.Context, cmd *HistoryRequest) *HistoryResponse {
	defer metrics.ObserveAPICommand(time.Now(), e.protocol, "history")

	resp := &HistoryResponse{}

	if cmd.Channel == "" || cmd.Limit < 0 {
		resp.Error = e.fail("history", ErrorBadRequest)
		return resp
	}
	messages, err := e.hub.History(cmd.Channel, cmd.Limit, cmd.Before)
	if err != nil {
		resp.Error = e.fail("history", toAPIError(err))
		return resp
	}
	resp.Result = &HistoryResult{Publications: messages}
	return resp
}

// Disconnect disconnects all connections of user.
func (e *Executor) Disconnect(_ context.Context, cmd *DisconnectRequest) *DisconnectResponse {
	defer metrics.ObserveAPICommand(time.Now(), e.protocol, "disconnect")

	resp := &DisconnectResponse{}

	if cmd.User == "" {
		resp.Error = e.fail("disconnect", ErrorBadRequest)
		return resp
	}
	n := e.hub.DisconnectUser(cmd.User, nil)
	log.Info().Str("user", cmd.User).Int("num_connections", n).Msg("user disconnected over API")
	resp.Result = &DisconnectResult{NumDisconnected: n}
	return resp
}

// Channels returns active channels with number of subscribers.
func (e *Executor) Channels(_ context.Context, cmd *ChannelsRequest) *ChannelsResponse {
	defer metrics.ObserveAPICommand(time.Now(), e.protocol, "channels")

	resp := &ChannelsResponse{}

	var g glob.Glob
	if cmd.Pattern != "" {
		var err error
		g, err = glob.Compile(cmd.Pattern)
		if err != nil {
			resp.Error = e.fail("channels", ErrorBadRequest)
			return resp
		}
	}
	channels := make(map[string]ChannelInfo)
	for _, ch := range e.hub.Channels() {
		if g != nil && !g.Match(ch) {
			continue
		}
		channels[ch] = ChannelInfo{NumClients: e.hub.NumSubscribers(ch)}
	}
	resp.Result = &ChannelsResult{Channels: channels}
	return resp
}

// Info returns hub stats.
func (e *Executor) Info(_ context.Context, _ *InfoRequest) *InfoResponse {
	defer metrics.ObserveAPICommand(time.Now(), e.protocol, "info")

	return &InfoResponse{
		Result: &InfoResult{
			Version:     build.Version,
			Uptime:      int64(time.Since(e.started).Seconds()),
			NumClients:  e.hub.NumClients(),
			NumUsers:    e.hub.NumUsers(),
			NumChannels: len(e.hub.Channels()),
		},
	}
}
