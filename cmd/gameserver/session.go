package main

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/TheZedxD/HomeGameServer-sub001/internal/fsm"
	"github.com/TheZedxD/HomeGameServer-sub001/internal/game"
	"github.com/TheZedxD/HomeGameServer-sub001/internal/gamesync"
	"github.com/TheZedxD/HomeGameServer-sub001/internal/network"
	"github.com/TheZedxD/HomeGameServer-sub001/internal/room"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = 30 * time.Second
	maxMsgSize = 8192
)

// session is one connected client. Each session has its own read and
// write goroutines; outbound messages go through a buffered channel that
// drops when a slow client falls behind (the next snapshot reconciles).
type session struct {
	id     string
	server *GameServer
	ws     *websocket.Conn
	logger *zap.Logger

	playerID string
	roomCode string

	limiter *rate.Limiter
	guard   *gamesync.ReplayGuard

	sendChan chan []byte
	done     chan struct{}
}

func newSession(s *GameServer, ws *websocket.Conn) *session {
	id := uuid.NewString()
	return &session{
		id:       id,
		server:   s,
		ws:       ws,
		logger:   s.logger.With(zap.String("session", id)),
		playerID: uuid.NewString(),
		limiter:  rate.NewLimiter(rate.Limit(s.cfg.MessagesPerSecond), s.cfg.MessageBurst),
		guard:    gamesync.NewReplayGuard(s.cfg.MaxSequenceDrift),
		sendChan: make(chan []byte, 256),
		done:     make(chan struct{}),
	}
}

// ID implements room.Session.
func (c *session) ID() string { return c.id }

// Send implements room.Session: wraps the payload in a server envelope and
// queues it. Non-blocking; messages to a saturated client are dropped.
func (c *session) Send(event string, payload any) error {
	data, err := json.Marshal(&network.ServerEnvelope{
		Event:      event,
		ServerTime: gamesync.ServerTime(),
		Payload:    payload,
	})
	if err != nil {
		return err
	}
	select {
	case c.sendChan <- data:
		return nil
	case <-c.done:
		return fmt.Errorf("session closed")
	default:
		return nil
	}
}

func (c *session) sendError(err error) {
	if de, ok := err.(*network.Error); ok {
		_ = c.Send(network.EventError, de)
		return
	}
	_ = c.Send(network.EventError, &network.Error{
		Code:    network.CodeValidationError,
		Message: err.Error(),
	})
}

func (c *session) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()
	defer c.cleanup()

	for {
		select {
		case <-c.done:
			return
		case message := <-c.sendChan:
			c.ws.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.ws.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}
		case <-ticker.C:
			c.ws.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.ws.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (c *session) readPump() {
	defer c.cleanup()

	c.ws.SetReadLimit(maxMsgSize)
	c.ws.SetReadDeadline(time.Now().Add(pongWait))
	c.ws.SetPongHandler(func(string) error {
		c.ws.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		select {
		case <-c.done:
			return
		default:
		}

		_, data, err := c.ws.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.logger.Warn("read error", zap.Error(err))
			}
			return
		}
		c.handleMessage(data)
	}
}

// handleMessage validates the envelope (rate, schema, sequence) and
// dispatches by event name. Errors are data: every failure is reported to
// the client on the error event and never tears the session down.
func (c *session) handleMessage(data []byte) {
	if !c.limiter.Allow() {
		c.sendError(network.NewError(network.CodeRateLimit, "too many messages").AsRetryable())
		return
	}

	env, err := network.DecodeEnvelope(data)
	if err != nil {
		c.sendError(err)
		return
	}
	if err := c.guard.Accept(c.id, env.Seq); err != nil {
		c.sendError(err)
		return
	}

	if err := c.dispatch(env); err != nil {
		c.sendError(err)
	}
}

func (c *session) dispatch(env *network.ClientEnvelope) error {
	switch env.Event {
	case network.EventCreateGame:
		return c.handleCreate(env.Payload)
	case network.EventJoinGame:
		return c.handleJoin(env.Payload)
	case network.EventPlayerReady:
		return c.handleReady(env.Payload)
	case network.EventStartGame:
		return c.handleStart(env.Payload)
	case network.EventSubmitMove:
		return c.handleMove(env.Payload)
	case network.EventUndoMove:
		return c.handleUndo(env.Payload)
	case network.EventLeaveGame:
		return c.handleLeave(env.Payload)
	case network.EventChatMessage:
		return c.handleChat(env.Payload)
	case network.EventPing:
		return c.handlePing(env.Payload)
	case network.EventRequestSync:
		return c.handleRequestSync(env.Payload)
	}
	return network.NewError(network.CodeValidationError, "unknown event %q", env.Event)
}

func (c *session) handleCreate(raw json.RawMessage) error {
	var p network.CreateGamePayload
	if err := network.DecodePayload(raw, &p); err != nil {
		return err
	}
	if err := p.Validate(); err != nil {
		return err
	}
	if c.roomCode != "" {
		return network.NewError(network.CodeValidationError, "already in a room")
	}

	r, err := c.server.rooms.Create(c.playerID, p.GameType, room.CreateOptions{
		RoomCode:   p.RoomCode,
		MinPlayers: p.MinPlayers,
		MaxPlayers: p.MaxPlayers,
	})
	if err != nil {
		return err
	}

	player := room.NewPlayer(c.playerID, displayName(p.DisplayName), c)
	_ = player.FSM.Transition(fsm.PlayerConnected, nil)
	if err := r.Join(player); err != nil {
		c.server.rooms.Destroy(r.Code)
		return err
	}
	c.roomCode = r.Code
	return nil
}

func (c *session) handleJoin(raw json.RawMessage) error {
	var p network.JoinGamePayload
	if err := network.DecodePayload(raw, &p); err != nil {
		return err
	}
	if err := p.Validate(); err != nil {
		return err
	}
	if c.roomCode != "" {
		return network.NewError(network.CodeValidationError, "already in a room")
	}

	r, err := c.server.rooms.Get(p.RoomCode)
	if err != nil {
		return err
	}
	player := room.NewPlayer(c.playerID, displayName(p.DisplayName), c)
	_ = player.FSM.Transition(fsm.PlayerConnected, nil)
	if err := r.Join(player); err != nil {
		return err
	}
	c.roomCode = r.Code
	return nil
}

func (c *session) handleReady(raw json.RawMessage) error {
	var p network.PlayerReadyPayload
	if err := network.DecodePayload(raw, &p); err != nil {
		return err
	}
	r, err := c.currentRoom()
	if err != nil {
		return err
	}
	return r.SetReady(c.playerID, p.Ready)
}

func (c *session) handleStart(raw json.RawMessage) error {
	var p network.StartGamePayload
	if err := network.DecodePayload(raw, &p); err != nil {
		return err
	}
	r, err := c.currentRoom()
	if err != nil {
		return err
	}
	return r.Start(c.playerID, p.ForceStart)
}

func (c *session) handleMove(raw json.RawMessage) error {
	var p network.SubmitMovePayload
	if err := network.DecodePayload(raw, &p); err != nil {
		return err
	}
	if err := p.Validate(); err != nil {
		return err
	}
	r, err := c.currentRoom()
	if err != nil {
		return err
	}
	_, err = r.SubmitCommand(game.Descriptor{
		Type:     p.Type,
		Payload:  p.Data,
		PlayerID: c.playerID,
	})
	return err
}

func (c *session) handleUndo(raw json.RawMessage) error {
	var p network.UndoMovePayload
	if err := network.DecodePayload(raw, &p); err != nil {
		return err
	}
	if p.Confirm != nil && !*p.Confirm {
		return nil
	}
	r, err := c.currentRoom()
	if err != nil {
		return err
	}
	_, err = r.UndoLast(c.playerID)
	return err
}

func (c *session) handleLeave(raw json.RawMessage) error {
	var p network.LeaveGamePayload
	if err := network.DecodePayload(raw, &p); err != nil {
		return err
	}
	if err := p.Validate(); err != nil {
		return err
	}
	r, err := c.currentRoom()
	if err != nil {
		return err
	}
	c.roomCode = ""
	reason := p.Reason
	if reason == "" {
		reason = "left"
	}
	return r.Leave(c.playerID, reason)
}

func (c *session) handleChat(raw json.RawMessage) error {
	var p network.ChatMessagePayload
	if err := network.DecodePayload(raw, &p); err != nil {
		return err
	}
	if err := p.Validate(); err != nil {
		return err
	}
	r, err := c.currentRoom()
	if err != nil {
		return err
	}
	return r.RelayChat(c.playerID, &p)
}

func (c *session) handlePing(raw json.RawMessage) error {
	var p network.PingPayload
	if err := network.DecodePayload(raw, &p); err != nil {
		return err
	}
	return c.Send(network.EventPong, &network.PongPayload{
		ClientTime: p.ClientTime,
		ServerTime: gamesync.ServerTime(),
	})
}

func (c *session) handleRequestSync(raw json.RawMessage) error {
	var p network.RequestSyncPayload
	if err := network.DecodePayload(raw, &p); err != nil {
		return err
	}
	if err := p.Validate(); err != nil {
		return err
	}
	r, err := c.currentRoom()
	if err != nil {
		return err
	}
	return r.RequestSync(c.server.scheduler.CurrentTick(), c)
}

func (c *session) currentRoom() (*room.Room, error) {
	if c.roomCode == "" {
		return nil, network.NewError(network.CodeRoomNotFound, "not in a room")
	}
	return c.server.rooms.Get(c.roomCode)
}

// cleanup tears the session down. The player stays a room member in
// DISCONNECTED state. A later connection mints a new player id, so it does
// not resume this player.
func (c *session) cleanup() {
	select {
	case <-c.done:
		return
	default:
		close(c.done)
	}
	c.ws.Close()

	if c.roomCode != "" {
		if r, err := c.server.rooms.Get(c.roomCode); err == nil {
			r.MarkDisconnected(c.playerID)
		}
	}
	c.logger.Info("session closed")
}

func displayName(requested string) string {
	if requested == "" {
		return "Player"
	}
	return requested
}
