package protocol

import (
	"fmt"

	"github.com/google/uuid"
)

// MessageType is the msg_type discriminant of an envelope
type MessageType string

const (
	// Server -> Client
	TypeSelfIdentity MessageType = "self_identity"
	TypeUpdateRoster MessageType = "update_roster"
	TypeTableCreated MessageType = "table_created"
	TypeTableRemoved MessageType = "table_removed"
	TypeTableState   MessageType = "table_state"
	TypeRoundResult  MessageType = "round_result"
	TypeError        MessageType = "error"

	// Both directions
	TypeData MessageType = "data"

	// Client -> Server
	TypeCreateTable MessageType = "create_table"
	TypeRemoveTable MessageType = "remove_table"
	TypeJoinTable   MessageType = "join_table"
	TypeLeaveTable  MessageType = "leave_table"
	TypeStartRound  MessageType = "start_round"
	TypeHit         MessageType = "hit"
	TypeSettle      MessageType = "settle"
)

var knownTypes = map[MessageType]bool{
	TypeSelfIdentity: true,
	TypeUpdateRoster: true,
	TypeTableCreated: true,
	TypeTableRemoved: true,
	TypeTableState:   true,
	TypeRoundResult:  true,
	TypeError:        true,
	TypeData:         true,
	TypeCreateTable:  true,
	TypeRemoveTable:  true,
	TypeJoinTable:    true,
	TypeLeaveTable:   true,
	TypeStartRound:   true,
	TypeHit:          true,
	TypeSettle:       true,
}

// Known reports whether t is part of the protocol
func (t MessageType) Known() bool {
	return knownTypes[t]
}

// String returns the wire form of the message type
func (t MessageType) String() string {
	return string(t)
}

// Error codes carried by Error messages
const (
	CodeInvalidMessage = "invalid_message"
	CodeUnknownType    = "unknown_message_type"
	CodeNotFound       = "not_found"
	CodeConflict       = "conflict"
	CodeShoeExhausted  = "shoe_exhausted"
	CodeNotSeated      = "not_seated"
	CodeInvalidState   = "invalid_state"
	CodeInternal       = "internal"
)

// ConnKey identifies one connection. Two connections may share a name;
// the ID keeps them apart.
type ConnKey struct {
	Name string    `json:"name"`
	ID   uuid.UUID `json:"id"`
}

// String returns "name#id"
func (k ConnKey) String() string {
	return fmt.Sprintf("%s#%s", k.Name, k.ID)
}

// Server -> Client Messages

// SelfIdentity tells a new connection the identifier it was assigned
type SelfIdentity struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// UpdateRoster carries every registered connection key
type UpdateRoster struct {
	Keys []ConnKey `json:"keys"`
}

// TableCreated answers a create_table request
type TableCreated struct {
	TableID string `json:"table_id"`
}

// TableRemoved answers a remove_table request
type TableRemoved struct {
	TableID string `json:"table_id"`
}

// CardView is a card as shown to clients. Face-down cards carry no rank
// or suit.
type CardView struct {
	Rank   string `json:"rank,omitempty"`
	Suit   string `json:"suit,omitempty"`
	FaceUp bool   `json:"face_up"`
}

// PlayerView is one seated player's hand
type PlayerView struct {
	ID    string     `json:"id"`
	Name  string     `json:"name,omitempty"`
	Cards []CardView `json:"cards"`
	Hard  int        `json:"hard"`
	Soft  int        `json:"soft"`
}

// DealerView is the dealer's hand. Totals only cover face-up cards until
// the hand is revealed.
type DealerView struct {
	Cards    []CardView `json:"cards"`
	Hard     int        `json:"hard"`
	Soft     int        `json:"soft"`
	Revealed bool       `json:"revealed"`
}

// TableState is sent to every seated player after each change to a table
type TableState struct {
	TableID       string       `json:"table_id"`
	Dealer        DealerView   `json:"dealer"`
	Players       []PlayerView `json:"players"`
	ShoeRemaining int          `json:"shoe_remaining"`
}

// RoundResult is sent to every seated player when a round is settled
type RoundResult struct {
	TableID string       `json:"table_id"`
	Rule    string       `json:"rule"`
	Winners []string     `json:"winners"`
	Dealer  DealerView   `json:"dealer"`
	Players []PlayerView `json:"players"`
}

// Error reports a failed request
type Error struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Both directions

// Data carries an application payload between connections. Clients set To
// for a direct message and leave it empty to reach everyone else; the
// server fills in From.
type Data struct {
	From    *ConnKey `json:"from,omitempty"`
	To      *ConnKey `json:"to,omitempty"`
	Payload string   `json:"payload"`
}

// Client -> Server Messages

// JoinTable asks to be seated at a table
type JoinTable struct {
	TableID string `json:"table_id"`
}

// RemoveTable asks for an empty table to be deleted
type RemoveTable struct {
	TableID string `json:"table_id"`
}
