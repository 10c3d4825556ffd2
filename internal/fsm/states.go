package fsm

// Room lifecycle states.
const (
	RoomInitializing State = "INITIALIZING"
	RoomLobby        State = "LOBBY"
	RoomStarting     State = "STARTING"
	RoomPlaying      State = "PLAYING"
	RoomPaused       State = "PAUSED"
	RoomRoundEnd     State = "ROUND_END"
	RoomEnding       State = "ENDING"
	RoomTerminated   State = "TERMINATED"
)

// Player membership states.
const (
	PlayerConnecting   State = "CONNECTING"
	PlayerConnected    State = "CONNECTED"
	PlayerJoining      State = "JOINING"
	PlayerInLobby      State = "IN_LOBBY"
	PlayerReady        State = "READY"
	PlayerPlaying      State = "PLAYING"
	PlayerSpectating   State = "SPECTATING"
	PlayerDisconnected State = "DISCONNECTED"
	PlayerLeft         State = "LEFT"
)

// roomTable is the legal-transition set for room machines. TERMINATED is
// terminal.
var roomTable = map[State][]State{
	RoomInitializing: {RoomLobby, RoomTerminated},
	RoomLobby:        {RoomStarting, RoomTerminated},
	RoomStarting:     {RoomPlaying, RoomLobby, RoomTerminated},
	RoomPlaying:      {RoomPaused, RoomRoundEnd, RoomEnding, RoomTerminated},
	RoomPaused:       {RoomPlaying, RoomEnding, RoomTerminated},
	RoomRoundEnd:     {RoomStarting, RoomLobby, RoomEnding, RoomTerminated},
	RoomEnding:       {RoomTerminated},
	RoomTerminated:   {},
}

// playerTable is the legal-transition set for player machines. LEFT is
// terminal.
var playerTable = map[State][]State{
	PlayerConnecting:   {PlayerConnected, PlayerDisconnected, PlayerLeft},
	PlayerConnected:    {PlayerJoining, PlayerDisconnected, PlayerLeft},
	PlayerJoining:      {PlayerInLobby, PlayerConnected, PlayerDisconnected, PlayerLeft},
	PlayerInLobby:      {PlayerReady, PlayerSpectating, PlayerConnected, PlayerDisconnected, PlayerLeft},
	PlayerReady:        {PlayerInLobby, PlayerPlaying, PlayerDisconnected, PlayerLeft},
	PlayerPlaying:      {PlayerInLobby, PlayerSpectating, PlayerDisconnected, PlayerLeft},
	PlayerSpectating:   {PlayerInLobby, PlayerDisconnected, PlayerLeft},
	PlayerDisconnected: {PlayerConnected, PlayerInLobby, PlayerPlaying, PlayerLeft},
	PlayerLeft:         {},
}

// NewRoomMachine creates a room FSM at INITIALIZING.
func NewRoomMachine() *Machine {
	return New(RoomInitializing, roomTable)
}

// NewPlayerMachine creates a player FSM at CONNECTING.
func NewPlayerMachine() *Machine {
	return New(PlayerConnecting, playerTable)
}
