package harness

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/manullamas/adx-agent/internal/agent"
	"github.com/manullamas/adx-agent/internal/config"
	"github.com/manullamas/adx-agent/internal/models"
)

// Event type tags on the wire.
const (
	typeInitialAssignment       = "initial_assignment"
	typeCatalogAnnouncement     = "catalog_announcement"
	typeOpportunityAnnouncement = "opportunity_announcement"
	typeAllocationNotification  = "allocation_notification"
	typeDeliveryReport          = "delivery_report"
	typeDailyTick               = "daily_tick"
	typeHistoricalOutcome       = "historical_outcome_report"
	typeGameEnd                 = "game_end"

	typeCampaignBid = "campaign_bid"
	typeBidBundle   = "bid_bundle"
)

type envelope struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// Client connects the engine to the game server over a websocket,
// reading one event per message and writing back whatever the engine
// returns.
type Client struct {
	cfg    config.HarnessConfig
	engine *agent.Engine
	log    *zap.Logger
}

func NewClient(cfg config.HarnessConfig, engine *agent.Engine, log *zap.Logger) *Client {
	return &Client{cfg: cfg, engine: engine, log: log}
}

// Run plays one game: dial, feed events to the engine until the server
// signals the end or the connection drops, then persist end-of-game
// state. Context cancellation closes the connection and returns.
func (c *Client) Run(ctx context.Context) error {
	dialer := websocket.Dialer{HandshakeTimeout: c.cfg.DialTimeout}
	conn, _, err := dialer.DialContext(ctx, c.cfg.ServerURL, nil)
	if err != nil {
		return fmt.Errorf("dial %s: %w", c.cfg.ServerURL, err)
	}
	defer conn.Close()
	c.log.Info("connected to game server", zap.String("url", c.cfg.ServerURL))

	if err := c.engine.Start(ctx); err != nil {
		return err
	}

	// Unblock reads when the context is cancelled.
	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			conn.SetReadDeadline(time.Now())
			conn.Close()
		case <-done:
		}
	}()

	for {
		var env envelope
		if err := conn.ReadJSON(&env); err != nil {
			if ctx.Err() != nil {
				c.log.Info("shutting down mid-game")
				break
			}
			if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				break
			}
			c.log.Warn("read event", zap.Error(err))
			break
		}
		if env.Type == typeGameEnd {
			c.log.Info("game end received")
			break
		}

		ev, err := decodeEvent(env)
		if err != nil {
			c.log.Warn("undecodable event", zap.String("type", env.Type), zap.Error(err))
			continue
		}

		out, err := c.engine.HandleEvent(ev)
		if err != nil {
			// Single bad events degrade that day's bid, never the game.
			c.log.Warn("event abandoned", zap.String("type", env.Type), zap.Error(err))
		}
		for _, msg := range out {
			if err := c.write(conn, msg); err != nil {
				return err
			}
		}
	}

	return c.engine.Finish(context.WithoutCancel(ctx))
}

func (c *Client) write(conn *websocket.Conn, msg models.Outbound) error {
	env, err := encodeOutbound(msg)
	if err != nil {
		return err
	}
	if err := conn.WriteJSON(env); err != nil {
		return fmt.Errorf("write %s: %w", env.Type, err)
	}
	return nil
}

func decodeEvent(env envelope) (models.Event, error) {
	switch env.Type {
	case typeInitialAssignment:
		var ev models.InitialAssignment
		return ev, json.Unmarshal(env.Payload, &ev)
	case typeCatalogAnnouncement:
		var ev models.CatalogAnnouncement
		return ev, json.Unmarshal(env.Payload, &ev)
	case typeOpportunityAnnouncement:
		var ev models.OpportunityAnnouncement
		return ev, json.Unmarshal(env.Payload, &ev)
	case typeAllocationNotification:
		var ev models.AllocationNotification
		return ev, json.Unmarshal(env.Payload, &ev)
	case typeDeliveryReport:
		var ev models.DeliveryReport
		return ev, json.Unmarshal(env.Payload, &ev)
	case typeDailyTick:
		return models.DailyTick{}, nil
	case typeHistoricalOutcome:
		var ev models.HistoricalOutcomeReport
		return ev, json.Unmarshal(env.Payload, &ev)
	default:
		return nil, errors.New("unknown event type")
	}
}

func encodeOutbound(msg models.Outbound) (envelope, error) {
	var typ string
	switch msg.(type) {
	case models.CampaignBid:
		typ = typeCampaignBid
	case models.BidBundle:
		typ = typeBidBundle
	default:
		return envelope{}, fmt.Errorf("unknown outbound %T", msg)
	}
	payload, err := json.Marshal(msg)
	if err != nil {
		return envelope{}, fmt.Errorf("marshal %s: %w", typ, err)
	}
	return envelope{Type: typ, Payload: payload}, nil
}
