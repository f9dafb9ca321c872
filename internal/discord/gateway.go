// Package discord implements the slash-command gateway: the websocket
// connection, interaction parsing, and the REST operations the command
// pipeline calls back into (acknowledge, edit response, send file).
package discord

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/gorilla/websocket"

	"github.com/novusbot/novus/internal/config"
)

// Events are the callbacks the gateway dispatches into. Each interaction is
// handled in its own goroutine; there is no inter-command locking.
type Events struct {
	OnInteraction func(ctx context.Context, ic Interaction)
	OnGuildCreate func(ctx context.Context, guildID, systemChannelID string)
	OnGuildDelete func(ctx context.Context, guildID string)
}

// Gateway maintains the Discord Gateway websocket connection.
type Gateway struct {
	cfg    *config.DiscordConfig
	events Events
	seq    *int

	// known holds the guild IDs listed in READY. GUILD_CREATE for one of
	// these is the initial availability sync, not a join.
	known map[string]bool
}

// NewGateway creates a Gateway with the given event callbacks.
func NewGateway(cfg *config.DiscordConfig, events Events) *Gateway {
	return &Gateway{cfg: cfg, events: events, known: make(map[string]bool)}
}

// Start connects and reconnects until ctx is cancelled.
func (g *Gateway) Start(ctx context.Context) error {
	if g.cfg.Token == "" {
		return fmt.Errorf("discord: token not configured")
	}
	for {
		if err := g.connect(ctx); err != nil && ctx.Err() != nil {
			return ctx.Err()
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(5 * time.Second):
		}
	}
}

func (g *Gateway) connect(ctx context.Context) error {
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, g.cfg.GatewayURL, nil)
	if err != nil {
		return err
	}
	defer conn.Close()
	slog.Info("discord: gateway connected")
	return g.gatewayLoop(ctx, conn)
}

func (g *Gateway) gatewayLoop(ctx context.Context, conn *websocket.Conn) error {
	heartbeatStop := make(chan struct{})
	defer close(heartbeatStop)

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}
		_, raw, err := conn.ReadMessage()
		if err != nil {
			return err
		}

		var payload struct {
			Op int             `json:"op"`
			S  *int            `json:"s"`
			T  string          `json:"t"`
			D  json.RawMessage `json:"d"`
		}
		if err := json.Unmarshal(raw, &payload); err != nil {
			continue
		}
		if payload.S != nil {
			g.seq = payload.S
		}

		switch payload.Op {
		case 10: // HELLO
			var hello struct {
				HeartbeatInterval int `json:"heartbeat_interval"`
			}
			_ = json.Unmarshal(payload.D, &hello)
			interval := time.Duration(hello.HeartbeatInterval) * time.Millisecond
			go g.heartbeatLoop(ctx, conn, interval, heartbeatStop)
			if err := g.identify(conn); err != nil {
				return err
			}
		case 0: // DISPATCH
			g.dispatch(ctx, payload.T, payload.D)
		case 7, 9: // RECONNECT / INVALID_SESSION
			return fmt.Errorf("discord: gateway requested reconnect (op=%d)", payload.Op)
		}
	}
}

func (g *Gateway) dispatch(ctx context.Context, event string, data json.RawMessage) {
	switch event {
	case "READY":
		var ready struct {
			User struct {
				Username string `json:"username"`
			} `json:"user"`
			Guilds []struct {
				ID string `json:"id"`
			} `json:"guilds"`
		}
		_ = json.Unmarshal(data, &ready)
		for _, guild := range ready.Guilds {
			g.known[guild.ID] = true
		}
		slog.Info("discord: ready", "user", ready.User.Username, "guilds", len(ready.Guilds))

	case "INTERACTION_CREATE":
		ic, err := parseInteraction(data)
		if err != nil {
			slog.Warn("discord: unparseable interaction", "err", err)
			return
		}
		if ic.Type != interactionApplicationCommand {
			return
		}
		if g.events.OnInteraction != nil {
			go g.events.OnInteraction(ctx, ic)
		}

	case "GUILD_CREATE":
		var guild struct {
			ID              string `json:"id"`
			SystemChannelID string `json:"system_channel_id"`
		}
		if err := json.Unmarshal(data, &guild); err != nil {
			return
		}
		if g.known[guild.ID] {
			return
		}
		g.known[guild.ID] = true
		if g.events.OnGuildCreate != nil {
			go g.events.OnGuildCreate(ctx, guild.ID, guild.SystemChannelID)
		}

	case "GUILD_DELETE":
		var guild struct {
			ID          string `json:"id"`
			Unavailable bool   `json:"unavailable"`
		}
		if err := json.Unmarshal(data, &guild); err != nil {
			return
		}
		// Unavailable means an outage, not a removal.
		if guild.Unavailable {
			return
		}
		delete(g.known, guild.ID)
		if g.events.OnGuildDelete != nil {
			go g.events.OnGuildDelete(ctx, guild.ID)
		}
	}
}

func (g *Gateway) heartbeatLoop(ctx context.Context, conn *websocket.Conn, interval time.Duration, stop <-chan struct{}) {
	tick := time.NewTicker(interval)
	defer tick.Stop()
	for {
		select {
		case <-tick.C:
			payload := map[string]any{"op": 1, "d": g.seq}
			data, _ := json.Marshal(payload)
			_ = conn.WriteMessage(websocket.TextMessage, data)
		case <-stop:
			return
		case <-ctx.Done():
			return
		}
	}
}

func (g *Gateway) identify(conn *websocket.Conn) error {
	payload := map[string]any{
		"op": 2,
		"d": map[string]any{
			"token":   g.cfg.Token,
			"intents": g.cfg.Intents,
			"properties": map[string]any{
				"os": "novus", "browser": "novus", "device": "novus",
			},
		},
	}
	data, _ := json.Marshal(payload)
	return conn.WriteMessage(websocket.TextMessage, data)
}
