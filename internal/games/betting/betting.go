// Package betting implements the chip accounting shared by the casino
// games: balances, per-round contributions, the pot, and round-completion
// detection. A Manager round-trips through the JSON-shaped game state so
// strategies stay pure.
package betting

import (
	"github.com/TheZedxD/HomeGameServer-sub001/internal/network"
)

// Player betting statuses.
const (
	StatusActive = "active"
	StatusFolded = "folded"
	StatusAllIn  = "allIn"
)

// Manager tracks one table's chips. Invariants: the pot always equals the
// sum of total contributions, and no balance goes negative.
type Manager struct {
	order        []string
	balances     map[string]int
	status       map[string]string
	roundContrib map[string]int
	totalContrib map[string]int
	acted        map[string]bool
	pot          int
	currentBet   int
	round        string
}

// New seats players in order with a starting balance each.
func New(order []string, startingBalance int) *Manager {
	m := &Manager{
		order:        append([]string(nil), order...),
		balances:     make(map[string]int),
		status:       make(map[string]string),
		roundContrib: make(map[string]int),
		totalContrib: make(map[string]int),
		acted:        make(map[string]bool),
	}
	for _, id := range order {
		m.balances[id] = startingBalance
		m.status[id] = StatusActive
	}
	return m
}

// FromState rebuilds a Manager from the "betting" subtree of a state body.
func FromState(body map[string]any) *Manager {
	sub, _ := body["betting"].(map[string]any)
	m := &Manager{
		balances:     make(map[string]int),
		status:       make(map[string]string),
		roundContrib: make(map[string]int),
		totalContrib: make(map[string]int),
		acted:        make(map[string]bool),
	}
	if sub == nil {
		return m
	}
	if order, ok := sub["order"].([]any); ok {
		for _, v := range order {
			if id, ok := v.(string); ok {
				m.order = append(m.order, id)
			}
		}
	}
	m.pot = asInt(sub["pot"])
	m.currentBet = asInt(sub["currentBet"])
	m.round, _ = sub["round"].(string)
	readIntMap(sub["balances"], m.balances)
	readIntMap(sub["roundContrib"], m.roundContrib)
	readIntMap(sub["totalContrib"], m.totalContrib)
	if st, ok := sub["status"].(map[string]any); ok {
		for id, v := range st {
			if s, ok := v.(string); ok {
				m.status[id] = s
			}
		}
	}
	if acted, ok := sub["acted"].(map[string]any); ok {
		for id, v := range acted {
			if b, ok := v.(bool); ok {
				m.acted[id] = b
			}
		}
	}
	return m
}

// Save writes the manager back into the state body.
func (m *Manager) Save(body map[string]any) {
	order := make([]any, len(m.order))
	for i, id := range m.order {
		order[i] = id
	}
	body["betting"] = map[string]any{
		"order":        order,
		"pot":          float64(m.pot),
		"currentBet":   float64(m.currentBet),
		"round":        m.round,
		"balances":     writeIntMap(m.balances),
		"roundContrib": writeIntMap(m.roundContrib),
		"totalContrib": writeIntMap(m.totalContrib),
		"status":       writeStringMap(m.status),
		"acted":        writeBoolMap(m.acted),
	}
}

// StartRound opens a named betting round: round contributions and the
// current bet reset, all-in and folded statuses persist.
func (m *Manager) StartRound(name string) {
	m.round = name
	m.currentBet = 0
	m.roundContrib = make(map[string]int)
	m.acted = make(map[string]bool)
}

// PlaceBet puts amount into the pot from playerID, raising the current bet
// if the player's round total exceeds it.
func (m *Manager) PlaceBet(playerID string, amount int) error {
	if err := m.requireActive(playerID); err != nil {
		return err
	}
	if amount <= 0 {
		return network.NewError(network.CodeInvalidMove, "bet must be positive")
	}
	if m.balances[playerID] < amount {
		return network.NewError(network.CodeInsufficientBalance,
			"balance %d < bet %d", m.balances[playerID], amount)
	}
	m.commit(playerID, amount)
	if m.roundContrib[playerID] > m.currentBet {
		m.currentBet = m.roundContrib[playerID]
	}
	m.acted[playerID] = true
	return nil
}

// Call matches the current bet.
func (m *Manager) Call(playerID string) error {
	if err := m.requireActive(playerID); err != nil {
		return err
	}
	owed := m.currentBet - m.roundContrib[playerID]
	if owed < 0 {
		owed = 0
	}
	if m.balances[playerID] < owed {
		return network.NewError(network.CodeInsufficientBalance,
			"balance %d < call %d", m.balances[playerID], owed)
	}
	m.commit(playerID, owed)
	m.acted[playerID] = true
	return nil
}

// Raise increases the current bet by amount and matches it.
func (m *Manager) Raise(playerID string, amount int) error {
	if err := m.requireActive(playerID); err != nil {
		return err
	}
	if amount <= 0 {
		return network.NewError(network.CodeInvalidMove, "raise must be positive")
	}
	target := m.currentBet + amount
	owed := target - m.roundContrib[playerID]
	if m.balances[playerID] < owed {
		return network.NewError(network.CodeInsufficientBalance,
			"balance %d < raise to %d", m.balances[playerID], target)
	}
	m.commit(playerID, owed)
	m.currentBet = target
	// A raise reopens action for everyone else.
	m.acted = map[string]bool{playerID: true}
	return nil
}

// Check passes without betting; only legal when nothing is owed.
func (m *Manager) Check(playerID string) error {
	if err := m.requireActive(playerID); err != nil {
		return err
	}
	if m.roundContrib[playerID] < m.currentBet {
		return network.NewError(network.CodeInvalidMove,
			"cannot check facing a bet of %d", m.currentBet)
	}
	m.acted[playerID] = true
	return nil
}

// Fold withdraws the player from the hand; contributions stay in the pot.
func (m *Manager) Fold(playerID string) error {
	if err := m.requireActive(playerID); err != nil {
		return err
	}
	m.status[playerID] = StatusFolded
	m.acted[playerID] = true
	return nil
}

// AllIn commits the player's entire balance.
func (m *Manager) AllIn(playerID string) error {
	if err := m.requireActive(playerID); err != nil {
		return err
	}
	amount := m.balances[playerID]
	if amount == 0 {
		return network.NewError(network.CodeInsufficientBalance, "no chips left")
	}
	m.commit(playerID, amount)
	if m.roundContrib[playerID] > m.currentBet {
		m.currentBet = m.roundContrib[playerID]
	}
	m.status[playerID] = StatusAllIn
	m.acted[playerID] = true
	return nil
}

// Payout distributes the pot equally among winners; the indivisible
// remainder goes to the first winner in table order.
func (m *Manager) Payout(winners []string) {
	if len(winners) == 0 || m.pot == 0 {
		return
	}
	ordered := m.inTableOrder(winners)
	share := m.pot / len(ordered)
	remainder := m.pot % len(ordered)
	for _, id := range ordered {
		m.balances[id] += share
	}
	m.balances[ordered[0]] += remainder
	m.pot = 0
	m.totalContrib = make(map[string]int)
}

// PayoutCustom credits explicit amounts, draining the pot by their sum.
func (m *Manager) PayoutCustom(amounts map[string]int) {
	for id, amount := range amounts {
		m.balances[id] += amount
		m.pot -= amount
	}
	if m.pot <= 0 {
		m.pot = 0
		m.totalContrib = make(map[string]int)
	}
}

// IsRoundComplete reports whether every non-folded, non-allIn player has
// acted and matched the current bet.
func (m *Manager) IsRoundComplete() bool {
	for _, id := range m.order {
		if m.status[id] != StatusActive {
			continue
		}
		if !m.acted[id] || m.roundContrib[id] != m.currentBet {
			return false
		}
	}
	return true
}

// ActivePlayers returns non-folded players in table order.
func (m *Manager) ActivePlayers() []string {
	out := make([]string, 0, len(m.order))
	for _, id := range m.order {
		if m.status[id] != StatusFolded {
			out = append(out, id)
		}
	}
	return out
}

// Balance returns a player's chip count.
func (m *Manager) Balance(id string) int { return m.balances[id] }

// Balances returns a copy of all balances.
func (m *Manager) Balances() map[string]int {
	out := make(map[string]int, len(m.balances))
	for id, b := range m.balances {
		out[id] = b
	}
	return out
}

// Pot returns the current pot.
func (m *Manager) Pot() int { return m.pot }

// CurrentBet returns the bet active players must match this round.
func (m *Manager) CurrentBet() int { return m.currentBet }

// Status returns a player's betting status.
func (m *Manager) Status(id string) string { return m.status[id] }

// RoundContribution returns what the player has put in this round.
func (m *Manager) RoundContribution(id string) int { return m.roundContrib[id] }

func (m *Manager) requireActive(playerID string) error {
	switch m.status[playerID] {
	case StatusActive:
		return nil
	case StatusFolded:
		return network.NewError(network.CodeInvalidMove, "player has folded")
	case StatusAllIn:
		return network.NewError(network.CodeInvalidMove, "player is all in")
	}
	return network.NewError(network.CodeValidationError, "player %q not seated", playerID)
}

func (m *Manager) commit(playerID string, amount int) {
	m.balances[playerID] -= amount
	m.roundContrib[playerID] += amount
	m.totalContrib[playerID] += amount
	m.pot += amount
}

func (m *Manager) inTableOrder(ids []string) []string {
	want := make(map[string]bool, len(ids))
	for _, id := range ids {
		want[id] = true
	}
	out := make([]string, 0, len(ids))
	for _, id := range m.order {
		if want[id] {
			out = append(out, id)
		}
	}
	return out
}

func asInt(v any) int {
	switch t := v.(type) {
	case float64:
		return int(t)
	case int:
		return t
	}
	return 0
}

func readIntMap(v any, dst map[string]int) {
	if m, ok := v.(map[string]any); ok {
		for id, val := range m {
			dst[id] = asInt(val)
		}
	}
}

func writeIntMap(m map[string]int) map[string]any {
	out := make(map[string]any, len(m))
	for id, v := range m {
		out[id] = float64(v)
	}
	return out
}

func writeStringMap(m map[string]string) map[string]any {
	out := make(map[string]any, len(m))
	for id, v := range m {
		out[id] = v
	}
	return out
}

func writeBoolMap(m map[string]bool) map[string]any {
	out := make(map[string]any, len(m))
	for id, v := range m {
		out[id] = v
	}
	return out
}
