package network

import "encoding/json"

// Client -> server event names.
const (
	EventCreateGame  = "createGame"
	EventJoinGame    = "joinGame"
	EventPlayerReady = "playerReady"
	EventStartGame   = "startGame"
	EventSubmitMove  = "submitMove"
	EventUndoMove    = "undoMove"
	EventLeaveGame   = "leaveGame"
	EventChatMessage = "chatMessage"
	EventPing        = "ping"
	EventRequestSync = "requestSync"
)

// Server -> client event names.
const (
	EventGameStateUpdate   = "gameStateUpdate"
	EventGameStateSnapshot = "gameStateSnapshot"
	EventRoomStateUpdate   = "roomStateUpdate"
	EventChatRelay         = "chatRelay"
	EventError             = "error"
	EventPong              = "pong"
)

// ClientEnvelope is the inbound message frame. Every message carries the
// protocol version, a per-session sequence number for replay protection,
// the event name, and an event-specific payload.
type ClientEnvelope struct {
	Version string          `json:"version"`
	Seq     uint64          `json:"seq"`
	Event   string          `json:"event"`
	Payload json.RawMessage `json:"payload"`
}

// ServerEnvelope is the outbound message frame.
type ServerEnvelope struct {
	Event      string `json:"event"`
	ServerTime int64  `json:"serverTime"`
	Payload    any    `json:"payload"`
}

// SyncPayload is the body of gameStateUpdate and gameStateSnapshot events.
type SyncPayload struct {
	Version  uint64   `json:"version"`
	Tick     uint64   `json:"tick"`
	Kind     string   `json:"kind"` // "delta" or "snapshot"
	Body     any      `json:"body"`
	Checksum string   `json:"checksum,omitempty"`
	Changes  []Change `json:"changes,omitempty"`
}

// Change is one delta operation against the game state, rooted at the
// full state tree (header fields plus body, e.g. "body.score") with
// dotted/indexed paths.
type Change struct {
	Path      string `json:"path"`
	Value     any    `json:"value,omitempty"`
	Operation string `json:"operation"` // set, delete, push, splice
	// Splice bounds, used only when Operation is "splice".
	Start       int `json:"start,omitempty"`
	DeleteCount int `json:"deleteCount,omitempty"`
}

// Delta change operations.
const (
	OpSet    = "set"
	OpDelete = "delete"
	OpPush   = "push"
	OpSplice = "splice"
)

// RoomStatePayload is the body of roomStateUpdate events: lobby metadata
// for clients that are not yet (or no longer) in a running game.
type RoomStatePayload struct {
	RoomCode   string            `json:"roomCode"`
	GameType   string            `json:"gameType"`
	Status     string            `json:"status"` // waiting, ready, playing, paused, ended
	HostID     string            `json:"hostId"`
	MinPlayers int               `json:"minPlayers"`
	MaxPlayers int               `json:"maxPlayers"`
	Players    []RoomStatePlayer `json:"players"`
}

// RoomStatePlayer describes one lobby member.
type RoomStatePlayer struct {
	ID          string `json:"id"`
	DisplayName string `json:"displayName"`
	IsReady     bool   `json:"isReady"`
	IsHost      bool   `json:"isHost"`
	AvatarPath  string `json:"avatarPath,omitempty"`
}

// PongPayload answers a ping with both clocks for latency measurement.
type PongPayload struct {
	ClientTime uint64 `json:"clientTime"`
	ServerTime int64  `json:"serverTime"`
}

// ChatRelayPayload is a chat message re-broadcast to the room.
type ChatRelayPayload struct {
	PlayerID    string `json:"playerId"`
	DisplayName string `json:"displayName"`
	Message     string `json:"message"`
	Type        string `json:"type"`
}

// CreateGamePayload requests a new room.
type CreateGamePayload struct {
	GameType    string          `json:"gameType"`
	Mode        string          `json:"mode"` // lan or p2p
	RoomCode    string          `json:"roomCode,omitempty"`
	MinPlayers  int             `json:"minPlayers,omitempty"`
	MaxPlayers  int             `json:"maxPlayers,omitempty"`
	DisplayName string          `json:"displayName,omitempty"`
	Options     json.RawMessage `json:"options,omitempty"`
}

// JoinGamePayload requests membership in an existing room.
type JoinGamePayload struct {
	RoomCode    string `json:"roomCode"`
	Password    string `json:"password,omitempty"`
	DisplayName string `json:"displayName,omitempty"`
}

// PlayerReadyPayload toggles or sets the caller's readiness. A nil Ready
// means toggle.
type PlayerReadyPayload struct {
	Ready *bool `json:"ready,omitempty"`
}

// StartGamePayload starts the game; ForceStart lets the host bypass the
// all-ready requirement (never the minimum player count).
type StartGamePayload struct {
	ForceStart bool `json:"forceStart,omitempty"`
}

// SubmitMovePayload carries one game command.
type SubmitMovePayload struct {
	Type      string          `json:"type"`
	Data      json.RawMessage `json:"data"`
	Timestamp uint64          `json:"timestamp,omitempty"`
}

// UndoMovePayload requests rollback of the caller's most recent command.
type UndoMovePayload struct {
	Confirm *bool `json:"confirm,omitempty"`
}

// LeaveGamePayload leaves the current room.
type LeaveGamePayload struct {
	Reason string `json:"reason,omitempty"`
}

// ChatMessagePayload is an inbound chat message.
type ChatMessagePayload struct {
	Message string `json:"message"`
	Type    string `json:"type"` // text, emote, system
}

// PingPayload carries the client clock for latency measurement.
type PingPayload struct {
	ClientTime uint64 `json:"clientTime"`
}

// RequestSyncPayload asks for a full snapshot.
type RequestSyncPayload struct {
	Reason string `json:"reason"` // desync, reconnect, manual
}
