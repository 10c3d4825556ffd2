// Package checkers implements checkers with forced captures, multi-jump
// moves, king promotion, and a best-of-three series.
package checkers

import (
	"encoding/json"

	"github.com/TheZedxD/HomeGameServer-sub001/internal/game"
	"github.com/TheZedxD/HomeGameServer-sub001/internal/network"
)

// Piece codes on the board. Lowercase are men, uppercase kings. Red sits
// on rows 5-7 and advances toward row 0; black sits on rows 0-2 and
// advances toward row 7.
const (
	redMan    = "r"
	redKing   = "R"
	blackMan  = "b"
	blackKing = "B"
)

const seriesTarget = 2 // best of three

// Definition returns the registrable game definition.
func Definition() *game.Definition {
	return &game.Definition{
		ID:         "checkers",
		Name:       "Checkers",
		MinPlayers: 2,
		MaxPlayers: 2,
		Factory:    newState,
		Strategies: map[string]game.Strategy{
			"movePiece": game.StrategyFunc(movePiece),
		},
	}
}

func newState(players game.PlayerView, rng *game.RNG) *game.State {
	s := game.NewState()
	ids := players.IDs()
	if len(ids) > 2 {
		ids = ids[:2]
	}
	s.PlayerOrder = ids
	s.Phase = "playing"
	s.CurrentPlayerID = ids[0]
	s.Players[ids[0]] = map[string]any{
		"displayName": players.DisplayName(ids[0]),
		"color":       "red",
	}
	s.Players[ids[1]] = map[string]any{
		"displayName": players.DisplayName(ids[1]),
		"color":       "black",
	}
	s.Body["board"] = startingBoard()
	s.Body["round"] = float64(1)
	s.Body["seriesWins"] = map[string]any{ids[0]: float64(0), ids[1]: float64(0)}
	return s
}

// startingBoard places men on the dark squares of the first three rows on
// each side.
func startingBoard() []any {
	board := make([]any, 8)
	for r := 0; r < 8; r++ {
		row := make([]any, 8)
		for c := 0; c < 8; c++ {
			if (r+c)%2 != 1 {
				continue
			}
			switch {
			case r < 3:
				row[c] = blackMan
			case r > 4:
				row[c] = redMan
			}
		}
		board[r] = row
	}
	return board
}

type square struct {
	Row int `json:"row"`
	Col int `json:"col"`
}

type movePayload struct {
	From  square   `json:"from"`
	Steps []square `json:"steps"`
}

func movePiece(ctx *game.Context) (*game.Outcome, error) {
	var p movePayload
	if err := json.Unmarshal(ctx.Payload, &p); err != nil {
		return nil, network.NewError(network.CodeValidationError, "bad movePiece payload")
	}
	if len(p.Steps) == 0 {
		return nil, network.NewError(network.CodeInvalidMove, "no steps given")
	}

	s := ctx.State
	if s.IsComplete {
		return nil, network.NewError(network.CodeInvalidMove, "series is over")
	}
	if ctx.PlayerID != s.CurrentPlayerID {
		return nil, network.NewError(network.CodeNotYourTurn,
			"it is %s's turn", s.CurrentPlayerID)
	}

	board := readBoard(s.Body["board"].([]any))
	color := s.Players[ctx.PlayerID]["color"].(string)

	piece := board.at(p.From)
	if piece == "" || pieceColor(piece) != color {
		return nil, network.NewError(network.CodeInvalidMove,
			"no %s piece at (%d,%d)", color, p.From.Row, p.From.Col)
	}

	prev := s.Clone()

	mustCapture := board.anyCapture(color)
	captured, err := board.applyMove(p.From, p.Steps, mustCapture)
	if err != nil {
		return nil, err
	}

	s.Body["board"] = board.toBody()
	s.Body["lastMove"] = map[string]any{
		"playerId": ctx.PlayerID,
		"from":     map[string]any{"row": float64(p.From.Row), "col": float64(p.From.Col)},
		"to": map[string]any{
			"row": float64(p.Steps[len(p.Steps)-1].Row),
			"col": float64(p.Steps[len(p.Steps)-1].Col),
		},
		"captures": float64(captured),
	}

	opponent := other(s.PlayerOrder, ctx.PlayerID)
	opponentColor := otherColor(color)

	if board.countColor(opponentColor) == 0 || !board.anyMove(opponentColor) {
		winRound(s, ctx.PlayerID)
	} else {
		s.CurrentPlayerID = opponent
	}

	return &game.Outcome{
		Apply: func(_ *game.State) *game.State { return s },
		Undo:  func() *game.State { return prev },
		Metadata: map[string]any{
			"captures": captured,
		},
	}, nil
}

// winRound credits a round win, continuing the series or completing it at
// two wins. The next round's board is fresh and the round loser is not
// penalized with the move: the start alternates by round.
func winRound(s *game.State, winner string) {
	wins := s.Body["seriesWins"].(map[string]any)
	wins[winner] = wins[winner].(float64) + 1

	if wins[winner].(float64) >= seriesTarget {
		s.IsComplete = true
		s.Phase = "complete"
		s.Body["seriesWinner"] = winner
		s.CurrentPlayerID = ""
		return
	}

	round := int(s.Body["round"].(float64)) + 1
	s.Body["round"] = float64(round)
	s.Body["board"] = startingBoard()
	s.Phase = "playing"
	s.CurrentPlayerID = s.PlayerOrder[(round-1)%2]
}

// boardGrid is the typed working copy of the board.
type boardGrid [8][8]string

func readBoard(body []any) *boardGrid {
	var b boardGrid
	for r := 0; r < 8; r++ {
		row := body[r].([]any)
		for c := 0; c < 8; c++ {
			if v, ok := row[c].(string); ok {
				b[r][c] = v
			}
		}
	}
	return &b
}

func (b *boardGrid) toBody() []any {
	out := make([]any, 8)
	for r := 0; r < 8; r++ {
		row := make([]any, 8)
		for c := 0; c < 8; c++ {
			if b[r][c] != "" {
				row[c] = b[r][c]
			}
		}
		out[r] = row
	}
	return out
}

func (b *boardGrid) at(sq square) string {
	if sq.Row < 0 || sq.Row > 7 || sq.Col < 0 || sq.Col > 7 {
		return ""
	}
	return b[sq.Row][sq.Col]
}

func pieceColor(piece string) string {
	if piece == redMan || piece == redKing {
		return "red"
	}
	if piece == blackMan || piece == blackKing {
		return "black"
	}
	return ""
}

func otherColor(color string) string {
	if color == "red" {
		return "black"
	}
	return "red"
}

func other(order []string, id string) string {
	for _, o := range order {
		if o != id {
			return o
		}
	}
	return id
}

func isKing(piece string) bool { return piece == redKing || piece == blackKing }

// directions returns the row directions a piece may move in.
func directions(piece string) []int {
	if isKing(piece) {
		return []int{-1, 1}
	}
	if pieceColor(piece) == "red" {
		return []int{-1}
	}
	return []int{1}
}

// applyMove validates and performs one move: either a single diagonal step
// or a jump sequence. Returns the number of captured pieces.
func (b *boardGrid) applyMove(from square, steps []square, mustCapture bool) (int, error) {
	piece := b.at(from)
	cur := from
	captured := 0

	first := steps[0]
	dr := first.Row - cur.Row
	isJump := dr == 2 || dr == -2

	if !isJump {
		if mustCapture {
			return 0, network.NewError(network.CodeInvalidMove, "a capture is available")
		}
		if len(steps) != 1 {
			return 0, network.NewError(network.CodeInvalidMove,
				"only jump sequences may chain steps")
		}
		if err := b.validateStep(piece, cur, first); err != nil {
			return 0, err
		}
		b[cur.Row][cur.Col] = ""
		b[first.Row][first.Col] = promote(piece, first.Row)
		return 0, nil
	}

	promoted := false
	for _, step := range steps {
		mid, err := b.validateJump(piece, cur, step)
		if err != nil {
			return 0, err
		}
		b[cur.Row][cur.Col] = ""
		b[mid.Row][mid.Col] = ""
		captured++

		landed := promote(piece, step.Row)
		b[step.Row][step.Col] = landed
		cur = step
		if landed != piece {
			// Promotion ends the sequence.
			piece = landed
			promoted = true
			if len(steps) > captured {
				return 0, network.NewError(network.CodeInvalidMove,
					"sequence continues past promotion")
			}
			break
		}
	}

	if !promoted && b.canJumpFrom(cur, piece) {
		return 0, network.NewError(network.CodeInvalidMove,
			"jump sequence must continue while captures remain")
	}
	return captured, nil
}

func (b *boardGrid) validateStep(piece string, from, to square) error {
	if to.Row < 0 || to.Row > 7 || to.Col < 0 || to.Col > 7 || b.at(to) != "" {
		return network.NewError(network.CodeInvalidMove, "destination blocked")
	}
	dc := to.Col - from.Col
	if dc != 1 && dc != -1 {
		return network.NewError(network.CodeInvalidMove, "moves are diagonal")
	}
	for _, dir := range directions(piece) {
		if to.Row-from.Row == dir {
			return nil
		}
	}
	return network.NewError(network.CodeInvalidMove, "wrong direction")
}

func (b *boardGrid) validateJump(piece string, from, to square) (square, error) {
	if to.Row < 0 || to.Row > 7 || to.Col < 0 || to.Col > 7 || b.at(to) != "" {
		return square{}, network.NewError(network.CodeInvalidMove, "landing blocked")
	}
	dr, dc := to.Row-from.Row, to.Col-from.Col
	if (dr != 2 && dr != -2) || (dc != 2 && dc != -2) {
		return square{}, network.NewError(network.CodeInvalidMove, "jumps span two squares")
	}
	legal := false
	for _, dir := range directions(piece) {
		if dr == 2*dir {
			legal = true
		}
	}
	if !legal {
		return square{}, network.NewError(network.CodeInvalidMove, "wrong direction")
	}
	mid := square{Row: from.Row + dr/2, Col: from.Col + dc/2}
	victim := b.at(mid)
	if victim == "" || pieceColor(victim) == pieceColor(piece) {
		return square{}, network.NewError(network.CodeInvalidMove, "nothing to capture")
	}
	return mid, nil
}

func promote(piece string, row int) string {
	if piece == redMan && row == 0 {
		return redKing
	}
	if piece == blackMan && row == 7 {
		return blackKing
	}
	return piece
}

// canJumpFrom reports whether the piece at sq has a capture available.
func (b *boardGrid) canJumpFrom(sq square, piece string) bool {
	if piece == "" {
		return false
	}
	for _, dir := range directions(piece) {
		for _, dc := range []int{-2, 2} {
			to := square{Row: sq.Row + 2*dir, Col: sq.Col + dc}
			if to.Row < 0 || to.Row > 7 || to.Col < 0 || to.Col > 7 {
				continue
			}
			if b.at(to) != "" {
				continue
			}
			mid := square{Row: sq.Row + dir, Col: sq.Col + dc/2}
			victim := b.at(mid)
			if victim != "" && pieceColor(victim) != pieceColor(piece) {
				return true
			}
		}
	}
	return false
}

// anyCapture reports whether any piece of the color can capture.
func (b *boardGrid) anyCapture(color string) bool {
	for r := 0; r < 8; r++ {
		for c := 0; c < 8; c++ {
			piece := b[r][c]
			if piece != "" && pieceColor(piece) == color &&
				b.canJumpFrom(square{Row: r, Col: c}, piece) {
				return true
			}
		}
	}
	return false
}

// anyMove reports whether the color has any legal move at all.
func (b *boardGrid) anyMove(color string) bool {
	if b.anyCapture(color) {
		return true
	}
	for r := 0; r < 8; r++ {
		for c := 0; c < 8; c++ {
			piece := b[r][c]
			if piece == "" || pieceColor(piece) != color {
				continue
			}
			for _, dir := range directions(piece) {
				for _, dc := range []int{-1, 1} {
					to := square{Row: r + dir, Col: c + dc}
					if to.Row >= 0 && to.Row <= 7 && to.Col >= 0 && to.Col <= 7 &&
						b.at(to) == "" {
						return true
					}
				}
			}
		}
	}
	return false
}

func (b *boardGrid) countColor(color string) int {
	n := 0
	for r := 0; r < 8; r++ {
		for c := 0; c < 8; c++ {
			if b[r][c] != "" && pieceColor(b[r][c]) == color {
				n++
			}
		}
	}
	return n
}
