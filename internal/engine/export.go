package engine

import "time"

// ExportedCell is one occupied position with its current score.
type ExportedCell struct {
	X     int `json:"x"`
	Y     int `json:"y"`
	Score int `json:"score"`
}

// ExportedPiece is the persistence form of a placed piece: enough to
// rebuild the layout and to show what it was worth when saved.
type ExportedPiece struct {
	Type           string         `json:"type"`
	Rotation       int            `json:"rotation"`
	StartDate      string         `json:"start_date"`
	Positions      []ExportedCell `json:"positions"`
	ScorePotential int            `json:"score_potential"`
}

// Export renders every placed piece for persistence. StartDate is the
// date of the cell under the piece's anchor; when that cell carries
// no date (or the anchor sits off-grid after a clamp), now's date is
// used instead.
func (e *Engine) Export(now time.Time) []ExportedPiece {
	out := make([]ExportedPiece, 0, len(e.order))
	for _, id := range e.order {
		p := e.pieces[id]
		start := ""
		if c, err := e.grid.CellAt(p.AnchorX, p.AnchorY); err == nil {
			start = c.Date
		}
		if start == "" {
			start = now.Format("2006-01-02")
		}
		ep := ExportedPiece{
			Type:           string(p.Type),
			Rotation:       p.Rotation,
			StartDate:      start,
			ScorePotential: p.TotalScore,
		}
		for i, c := range p.Cells {
			ep.Positions = append(ep.Positions, ExportedCell{X: c.X, Y: c.Y, Score: p.CellScores[i]})
		}
		out = append(out, ep)
	}
	return out
}
