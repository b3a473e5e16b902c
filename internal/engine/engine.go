package engine

import (
	"errors"
	"fmt"

	"gridscore.app/internal/grid"
	"gridscore.app/internal/tetromino"
)

var (
	// ErrOverlap rejects a place/move that would cover another piece.
	ErrOverlap = errors.New("engine: placement overlaps an existing piece")
	// ErrRotationBlocked rejects a rotation no kick offset can clear.
	ErrRotationBlocked = errors.New("engine: rotation blocked")
	// ErrPieceNotFound rejects an intent against an unknown piece id.
	ErrPieceNotFound = errors.New("engine: piece not found")
	// ErrBadType rejects a placement of a type outside the catalog.
	ErrBadType = errors.New("engine: unknown piece type")
	// ErrTypeInUse rejects a second placement of the same type when
	// the engine enforces one active instance per type.
	ErrTypeInUse = errors.New("engine: piece type already placed")
)

// Kick offsets tried in priority order when a rotation collides at
// its current anchor.
var kickOffsets = [5][2]int{{0, 0}, {-1, 0}, {1, 0}, {-2, 0}, {2, 0}}

// Piece is one placed tetromino. Cells, CellScores and TotalScore are
// derived and recomputed inside every successful mutation.
type Piece struct {
	ID         string
	Type       tetromino.Type
	AnchorX    int
	AnchorY    int
	Rotation   int
	Cells      tetromino.Shape
	CellScores [4]int
	TotalScore int
}

type Config struct {
	// SingleInstancePerType makes Place reject a type that already
	// has a live piece on the board.
	SingleInstancePerType bool
}

// Engine owns the authoritative piece collection over one grid. It is
// not internally synchronized: all mutating calls must come from a
// single goroutine (Session provides that when serving clients).
type Engine struct {
	cfg  Config
	grid *grid.Grid

	pieces map[string]*Piece
	order  []string

	nextPieceNum uint64
}

func New(g *grid.Grid, cfg Config) *Engine {
	return &Engine{
		cfg:    cfg,
		grid:   g,
		pieces: map[string]*Piece{},
	}
}

// Pieces returns the live pieces in insertion order.
func (e *Engine) Pieces() []*Piece {
	out := make([]*Piece, 0, len(e.order))
	for _, id := range e.order {
		out = append(out, e.pieces[id])
	}
	return out
}

// Piece returns the live piece with the given id, if any.
func (e *Engine) Piece(id string) (*Piece, bool) {
	p, ok := e.pieces[id]
	return p, ok
}

// TotalScore is the aggregate over every placed piece.
func (e *Engine) TotalScore() int {
	total := 0
	for _, id := range e.order {
		total += e.pieces[id].TotalScore
	}
	return total
}

// Place puts a new piece of type t at rotation 0. The requested drop
// coordinate is recentered by the type's anchor offset, then clamped
// into bounds; the call fails only on overlap with an existing piece.
func (e *Engine) Place(t tetromino.Type, requestedX, requestedY int) (*Piece, error) {
	if _, err := tetromino.ParseType(string(t)); err != nil {
		return nil, fmt.Errorf("%w: %q", ErrBadType, t)
	}
	if e.cfg.SingleInstancePerType {
		for _, id := range e.order {
			if e.pieces[id].Type == t {
				return nil, ErrTypeInUse
			}
		}
	}
	offX, offY := tetromino.AnchorOffset(t)
	ax, ay, abs, err := e.resolve(t, 0, requestedX-offX, requestedY-offY, "")
	if err != nil {
		return nil, err
	}

	e.nextPieceNum++
	p := &Piece{
		ID:      fmt.Sprintf("P%d", e.nextPieceNum),
		Type:    t,
		AnchorX: ax,
		AnchorY: ay,
		Cells:   abs,
	}
	e.score(p)
	e.pieces[p.ID] = p
	e.order = append(e.order, p.ID)
	return p, nil
}

// Move re-anchors an existing piece through the same pipeline as
// Place, keeping its type and rotation and ignoring its own cells in
// the collision check. On rejection the piece is untouched.
func (e *Engine) Move(id string, requestedX, requestedY int) (*Piece, error) {
	p, ok := e.pieces[id]
	if !ok {
		return nil, ErrPieceNotFound
	}
	offX, offY := tetromino.AnchorOffset(p.Type)
	ax, ay, abs, err := e.resolve(p.Type, p.Rotation, requestedX-offX, requestedY-offY, id)
	if err != nil {
		return nil, err
	}
	p.AnchorX, p.AnchorY = ax, ay
	p.Cells = abs
	e.score(p)
	return p, nil
}

// Rotate turns a piece 90 degrees clockwise, trying each kick offset
// against the current anchor until one clamps into bounds without a
// collision. If none does, the piece keeps its prior rotation and
// anchor.
func (e *Engine) Rotate(id string) (*Piece, error) {
	p, ok := e.pieces[id]
	if !ok {
		return nil, ErrPieceNotFound
	}
	newRot := tetromino.NormalizeAngle(p.Rotation + 90)
	shape := tetromino.RotatedShape(p.Type, newRot)
	for _, k := range kickOffsets {
		ax, ay := clampAnchor(p.Type, newRot, p.AnchorX+k[0], p.AnchorY+k[1])
		abs := tetromino.Absolute(shape, ax, ay)
		if !fits(abs) || e.collides(abs, id) {
			continue
		}
		p.Rotation = newRot
		p.AnchorX, p.AnchorY = ax, ay
		p.Cells = abs
		e.score(p)
		return p, nil
	}
	return nil, ErrRotationBlocked
}

// Delete removes a piece. An unknown id is a no-op, not an error.
func (e *Engine) Delete(id string) {
	if _, ok := e.pieces[id]; !ok {
		return
	}
	delete(e.pieces, id)
	for i, v := range e.order {
		if v == id {
			e.order = append(e.order[:i], e.order[i+1:]...)
			break
		}
	}
}

// RefreshScores recomputes every piece's per-cell and total score
// against the current grid. Positions never change and nothing can
// fail: cells never leave the grid, only their levels move.
func (e *Engine) RefreshScores() {
	for _, id := range e.order {
		e.score(e.pieces[id])
	}
}

// resolve runs the shared place/move pipeline: clamp the anchor for
// the rotated shape, translate, and collision-check.
func (e *Engine) resolve(t tetromino.Type, rotation, ax, ay int, excludeID string) (int, int, tetromino.Shape, error) {
	ax, ay = clampAnchor(t, rotation, ax, ay)
	abs := tetromino.Absolute(tetromino.RotatedShape(t, rotation), ax, ay)
	if !fits(abs) {
		// Unreachable while piece boxes fit inside 8x7; treated as a
		// rejection rather than a crash.
		return 0, 0, abs, ErrOverlap
	}
	if e.collides(abs, excludeID) {
		return 0, 0, abs, ErrOverlap
	}
	return ax, ay, abs, nil
}

// clampAnchor shifts the anchor rigidly, per axis, until the rotated
// shape's bounding box sits inside the grid. Piece boxes are at most
// 4x4, so a fit always exists.
func clampAnchor(t tetromino.Type, rotation, ax, ay int) (int, int) {
	box := tetromino.BoundingBox(tetromino.RotatedShape(t, rotation))
	if ax+box.MinX < 0 {
		ax = -box.MinX
	} else if ax+box.MaxX >= grid.Width {
		ax = grid.Width - 1 - box.MaxX
	}
	if ay+box.MinY < 0 {
		ay = -box.MinY
	} else if ay+box.MaxY >= grid.Height {
		ay = grid.Height - 1 - box.MaxY
	}
	return ax, ay
}

// fits reports whether all four cells are on the grid.
func fits(cells tetromino.Shape) bool {
	for _, c := range cells {
		if !grid.InBounds(c.X, c.Y) {
			return false
		}
	}
	return true
}

// collides reports whether any cell is already covered by a piece
// other than excludeID.
func (e *Engine) collides(cells tetromino.Shape, excludeID string) bool {
	for _, id := range e.order {
		if id == excludeID {
			continue
		}
		for _, oc := range e.pieces[id].Cells {
			for _, c := range cells {
				if c == oc {
					return true
				}
			}
		}
	}
	return false
}

// score recomputes the derived score fields of p from the grid.
func (e *Engine) score(p *Piece) {
	total := 0
	for i, c := range p.Cells {
		s := e.grid.ScoreAt(c.X, c.Y)
		p.CellScores[i] = s
		total += s
	}
	p.TotalScore = total
}
