package protocol

// HELLO (client -> server)
type HelloMsg struct {
	Type            string            `json:"type"`
	ProtocolVersion string            `json:"protocol_version"`
	ClientName      string            `json:"client_name"`
	Capabilities    HelloCapabilities `json:"capabilities,omitempty"`
}

type HelloCapabilities struct {
	MaxQueue int `json:"max_queue,omitempty"`
}

// WELCOME (server -> client)
type WelcomeMsg struct {
	Type            string     `json:"type"`
	ProtocolVersion string     `json:"protocol_version"`
	SessionID       string     `json:"session_id"`
	ClientID        string     `json:"client_id"`
	GridParams      GridParams `json:"grid_params"`
	PieceTypes      []string   `json:"piece_types"`
}

type GridParams struct {
	Width  int `json:"width"`
	Height int `json:"height"`
}

// ACT (client -> server): one placement intent.
type ActMsg struct {
	Type            string `json:"type"`
	ProtocolVersion string `json:"protocol_version"`
	ID              string `json:"id"`
	Op              string `json:"op"`
	PieceID         string `json:"piece_id,omitempty"`
	PieceType       string `json:"piece_type,omitempty"`
	X               int    `json:"x"`
	Y               int    `json:"y"`
}

// ACK (server -> client): result of one ACT.
type AckMsg struct {
	Type            string `json:"type"`
	ProtocolVersion string `json:"protocol_version"`
	AckFor          string `json:"ack_for"`
	Accepted        bool   `json:"accepted"`
	Code            string `json:"code,omitempty"`
	Message         string `json:"message,omitempty"`
	PieceID         string `json:"piece_id,omitempty"`
}

// STATE (server -> client): full authoritative board state, broadcast
// after every successful mutation and after every grid refresh.
type StateMsg struct {
	Type            string       `json:"type"`
	ProtocolVersion string       `json:"protocol_version"`
	Generation      uint64       `json:"generation"`
	Grid            GridState    `json:"grid"`
	Pieces          []PieceState `json:"pieces"`
	TotalScore      int          `json:"total_score"`
}

type GridState struct {
	Width  int         `json:"width"`
	Height int         `json:"height"`
	Cells  []CellState `json:"cells"`
}

type CellState struct {
	X     int    `json:"x"`
	Y     int    `json:"y"`
	Level int    `json:"level"`
	Score int    `json:"score"`
	Date  string `json:"date,omitempty"`
}

type PieceState struct {
	ID         string      `json:"id"`
	PieceType  string      `json:"piece_type"`
	AnchorX    int         `json:"anchor_x"`
	AnchorY    int         `json:"anchor_y"`
	Rotation   int         `json:"rotation"`
	Cells      []CellScore `json:"cells"`
	TotalScore int         `json:"total_score"`
}

type CellScore struct {
	X     int `json:"x"`
	Y     int `json:"y"`
	Score int `json:"score"`
}
