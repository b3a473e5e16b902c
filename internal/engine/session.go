package engine

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"gridscore.app/internal/grid"
	"gridscore.app/internal/protocol"
	"gridscore.app/internal/tetromino"
)

// SessionConfig sizes the session's queues.
type SessionConfig struct {
	ID        string
	InboxSize int
}

// JoinRequest attaches a client's outbound queue to the session.
type JoinRequest struct {
	Name string
	Out  chan []byte
	Resp chan JoinResponse
}

type JoinResponse struct {
	Welcome protocol.WelcomeMsg
	State   protocol.StateMsg
}

// IntentEnvelope is one client intent queued for the session loop.
type IntentEnvelope struct {
	ClientID string
	Act      protocol.ActMsg
}

// Refresh carries one completed feed fetch. Generation is assigned
// when the fetch is issued; the session applies a refresh only when
// its generation is newer than the last applied one, so a slow fetch
// that was superseded while in flight is discarded.
type Refresh struct {
	Generation uint64
	Records    []grid.Record
}

type exportRequest struct {
	resp chan exportResponse
}

type exportResponse struct {
	generation uint64
	totalScore int
	pieces     []ExportedPiece
}

// SessionMetrics is a point-in-time snapshot for /metrics.
type SessionMetrics struct {
	Clients    int    `json:"clients"`
	Pieces     int    `json:"pieces"`
	TotalScore int    `json:"total_score"`
	Generation uint64 `json:"generation"`
	InboxDepth int    `json:"inbox_depth"`
}

// Session is the single-writer host around an Engine: every mutation
// of the grid or the piece collection happens on the Run goroutine,
// run-to-completion, so no client ever observes a partial state.
type Session struct {
	cfg  SessionConfig
	grid *grid.Grid
	eng  *Engine

	inbox   chan IntentEnvelope
	join    chan JoinRequest
	leave   chan string
	refresh chan Refresh
	export  chan exportRequest

	clients       map[string]*sessionClient
	nextClientNum uint64
	generation    atomic.Uint64
	auditSeq      uint64

	// Mirrors for goroutine-safe metrics reads.
	mClients    atomic.Int64
	mPieces     atomic.Int64
	mTotalScore atomic.Int64

	auditLogger AuditLogger
}

type sessionClient struct {
	Name string
	Out  chan []byte
}

func NewSession(cfg SessionConfig, g *grid.Grid, eng *Engine) *Session {
	if cfg.InboxSize <= 0 {
		cfg.InboxSize = 256
	}
	return &Session{
		cfg:     cfg,
		grid:    g,
		eng:     eng,
		inbox:   make(chan IntentEnvelope, cfg.InboxSize),
		join:    make(chan JoinRequest, 16),
		leave:   make(chan string, 16),
		refresh: make(chan Refresh, 4),
		export:  make(chan exportRequest, 4),
		clients: map[string]*sessionClient{},
	}
}

func (s *Session) SetAuditLogger(l AuditLogger) { s.auditLogger = l }

func (s *Session) Inbox() chan<- IntentEnvelope { return s.inbox }
func (s *Session) Join() chan<- JoinRequest     { return s.join }
func (s *Session) Leave() chan<- string         { return s.leave }
func (s *Session) Refreshes() chan<- Refresh    { return s.refresh }

func (s *Session) Generation() uint64 { return s.generation.Load() }

func (s *Session) Metrics() SessionMetrics {
	return SessionMetrics{
		Clients:    int(s.mClients.Load()),
		Pieces:     int(s.mPieces.Load()),
		TotalScore: int(s.mTotalScore.Load()),
		Generation: s.generation.Load(),
		InboxDepth: len(s.inbox),
	}
}

// RequestExport takes a consistent snapshot of the current layout off
// the session goroutine.
func (s *Session) RequestExport(ctx context.Context) ([]ExportedPiece, uint64, int, error) {
	req := exportRequest{resp: make(chan exportResponse, 1)}
	select {
	case s.export <- req:
	case <-ctx.Done():
		return nil, 0, 0, ctx.Err()
	}
	select {
	case r := <-req.resp:
		return r.pieces, r.generation, r.totalScore, nil
	case <-ctx.Done():
		return nil, 0, 0, ctx.Err()
	}
}

// Run owns all engine state until ctx is canceled.
func (s *Session) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case req := <-s.join:
			s.handleJoin(req)
		case id := <-s.leave:
			s.handleLeave(id)
		case env := <-s.inbox:
			s.handleIntent(env)
		case r := <-s.refresh:
			s.handleRefresh(r)
		case req := <-s.export:
			req.resp <- exportResponse{
				generation: s.generation.Load(),
				totalScore: s.eng.TotalScore(),
				pieces:     s.eng.Export(time.Now().UTC()),
			}
		}
	}
}

func (s *Session) handleJoin(req JoinRequest) {
	s.nextClientNum++
	id := fmt.Sprintf("C%d", s.nextClientNum)
	name := req.Name
	if name == "" {
		name = "client"
	}
	s.clients[id] = &sessionClient{Name: name, Out: req.Out}
	s.mClients.Store(int64(len(s.clients)))
	req.Resp <- JoinResponse{
		Welcome: protocol.WelcomeMsg{
			Type:            protocol.TypeWelcome,
			ProtocolVersion: protocol.Version,
			SessionID:       s.cfg.ID,
			ClientID:        id,
			GridParams:      protocol.GridParams{Width: grid.Width, Height: grid.Height},
			PieceTypes:      pieceTypeNames(),
		},
		State: s.stateMsg(),
	}
}

func (s *Session) handleLeave(id string) {
	delete(s.clients, id)
	s.mClients.Store(int64(len(s.clients)))
}

func (s *Session) handleIntent(env IntentEnvelope) {
	act := env.Act
	var (
		piece *Piece
		err   error
	)
	switch act.Op {
	case protocol.OpPlace:
		var t tetromino.Type
		t, err = tetromino.ParseType(act.PieceType)
		if err == nil {
			piece, err = s.eng.Place(t, act.X, act.Y)
		} else {
			err = fmt.Errorf("%w: %s", ErrBadType, act.PieceType)
		}
	case protocol.OpMove:
		piece, err = s.eng.Move(act.PieceID, act.X, act.Y)
	case protocol.OpRotate:
		piece, err = s.eng.Rotate(act.PieceID)
	case protocol.OpDelete:
		s.eng.Delete(act.PieceID)
	default:
		err = fmt.Errorf("%w: unknown op %q", ErrBadType, act.Op)
	}

	code, msg := rejectionCode(err)
	ack := protocol.AckMsg{
		Type:            protocol.TypeAck,
		ProtocolVersion: protocol.Version,
		AckFor:          act.ID,
		Accepted:        err == nil,
		Code:            code,
		Message:         msg,
	}
	if piece != nil {
		ack.PieceID = piece.ID
	}
	s.sendTo(env.ClientID, ack)
	s.audit(env, piece, err == nil, code)

	if err == nil {
		s.mPieces.Store(int64(len(s.eng.order)))
		s.mTotalScore.Store(int64(s.eng.TotalScore()))
		s.broadcastState()
	}
}

func (s *Session) handleRefresh(r Refresh) {
	if r.Generation <= s.generation.Load() {
		return
	}
	s.grid.Load(r.Records)
	s.eng.RefreshScores()
	s.generation.Store(r.Generation)
	s.mTotalScore.Store(int64(s.eng.TotalScore()))
	s.broadcastState()
}

func (s *Session) stateMsg() protocol.StateMsg {
	msg := protocol.StateMsg{
		Type:            protocol.TypeState,
		ProtocolVersion: protocol.Version,
		Generation:      s.generation.Load(),
		Grid: protocol.GridState{
			Width:  grid.Width,
			Height: grid.Height,
		},
		TotalScore: s.eng.TotalScore(),
	}
	for i, c := range s.grid.All() {
		msg.Grid.Cells = append(msg.Grid.Cells, protocol.CellState{
			X:     i / grid.Height,
			Y:     i % grid.Height,
			Level: c.Level,
			Score: grid.ScoreOf(c.Level),
			Date:  c.Date,
		})
	}
	for _, p := range s.eng.Pieces() {
		ps := protocol.PieceState{
			ID:         p.ID,
			PieceType:  string(p.Type),
			AnchorX:    p.AnchorX,
			AnchorY:    p.AnchorY,
			Rotation:   p.Rotation,
			TotalScore: p.TotalScore,
		}
		for i, c := range p.Cells {
			ps.Cells = append(ps.Cells, protocol.CellScore{X: c.X, Y: c.Y, Score: p.CellScores[i]})
		}
		msg.Pieces = append(msg.Pieces, ps)
	}
	return msg
}

func (s *Session) broadcastState() {
	b, err := json.Marshal(s.stateMsg())
	if err != nil {
		return
	}
	for _, c := range s.clients {
		select {
		case c.Out <- b:
		default:
			// Slow client: drop this state, the next broadcast
			// supersedes it anyway.
		}
	}
}

func (s *Session) sendTo(clientID string, v any) {
	c, ok := s.clients[clientID]
	if !ok {
		return
	}
	b, err := json.Marshal(v)
	if err != nil {
		return
	}
	select {
	case c.Out <- b:
	default:
	}
}

func (s *Session) audit(env IntentEnvelope, piece *Piece, ok bool, code string) {
	if s.auditLogger == nil {
		return
	}
	s.auditSeq++
	entry := AuditEntry{
		Seq:       s.auditSeq,
		Actor:     env.ClientID,
		Op:        env.Act.Op,
		PieceID:   env.Act.PieceID,
		PieceType: env.Act.PieceType,
		X:         env.Act.X,
		Y:         env.Act.Y,
		OK:        ok,
		Code:      code,
	}
	if piece != nil {
		entry.PieceID = piece.ID
		entry.PieceType = string(piece.Type)
	}
	_ = s.auditLogger.WriteAudit(entry)
}

// rejectionCode maps engine errors onto wire codes. Every rejection
// is local and recoverable; nothing here is fatal.
func rejectionCode(err error) (string, string) {
	switch {
	case err == nil:
		return "", ""
	case errors.Is(err, ErrOverlap):
		return protocol.ErrOverlap, "placement overlaps an existing piece"
	case errors.Is(err, ErrRotationBlocked):
		return protocol.ErrRotationBlocked, "no kick offset clears the rotation"
	case errors.Is(err, ErrPieceNotFound):
		return protocol.ErrNotFound, "piece not found"
	case errors.Is(err, ErrTypeInUse):
		return protocol.ErrTypeInUse, "piece type already placed"
	case errors.Is(err, ErrBadType):
		return protocol.ErrBadRequest, err.Error()
	default:
		return protocol.ErrInternal, err.Error()
	}
}

func pieceTypeNames() []string {
	types := tetromino.Types()
	out := make([]string, len(types))
	for i, t := range types {
		out[i] = string(t)
	}
	return out
}
