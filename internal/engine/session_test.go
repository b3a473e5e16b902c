package engine

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"gridscore.app/internal/grid"
	"gridscore.app/internal/protocol"
)

func startSession(t *testing.T) (*Session, chan []byte, string, context.CancelFunc) {
	t.Helper()
	g := grid.New()
	records := make([]grid.Record, grid.Cells)
	for i := range records {
		records[i] = grid.Record{Count: 1, Date: "2026-08-01"}
	}
	g.Load(records)

	s := NewSession(SessionConfig{ID: "S1"}, g, New(g, Config{}))
	ctx, cancel := context.WithCancel(context.Background())
	go func() { _ = s.Run(ctx) }()

	out := make(chan []byte, 32)
	respCh := make(chan JoinResponse, 1)
	s.Join() <- JoinRequest{Name: "tester", Out: out, Resp: respCh}
	resp := <-respCh
	if resp.Welcome.ClientID == "" {
		t.Fatal("join returned no client id")
	}
	if resp.Welcome.GridParams.Width != grid.Width || resp.Welcome.GridParams.Height != grid.Height {
		t.Fatalf("welcome grid params: %+v", resp.Welcome.GridParams)
	}
	if len(resp.State.Grid.Cells) != grid.Cells {
		t.Fatalf("welcome state has %d cells", len(resp.State.Grid.Cells))
	}
	return s, out, resp.Welcome.ClientID, cancel
}

// recv pulls messages off the client queue until one of the wanted
// type arrives.
func recv(t *testing.T, out chan []byte, wantType string) []byte {
	t.Helper()
	deadline := time.After(2 * time.Second)
	for {
		select {
		case b := <-out:
			base, err := protocol.DecodeBase(b)
			if err != nil {
				t.Fatalf("decode: %v", err)
			}
			if base.Type == wantType {
				return b
			}
		case <-deadline:
			t.Fatalf("timed out waiting for %s", wantType)
		}
	}
}

func TestSession_PlaceAckAndState(t *testing.T) {
	s, out, clientID, cancel := startSession(t)
	defer cancel()

	s.Inbox() <- IntentEnvelope{ClientID: clientID, Act: protocol.ActMsg{
		Type: protocol.TypeAct, ProtocolVersion: protocol.Version,
		ID: "A1", Op: protocol.OpPlace, PieceType: "I", X: 0, Y: 0,
	}}

	var ack protocol.AckMsg
	if err := json.Unmarshal(recv(t, out, protocol.TypeAck), &ack); err != nil {
		t.Fatalf("ack: %v", err)
	}
	if !ack.Accepted || ack.AckFor != "A1" || ack.PieceID == "" {
		t.Fatalf("ack: %+v", ack)
	}

	var state protocol.StateMsg
	if err := json.Unmarshal(recv(t, out, protocol.TypeState), &state); err != nil {
		t.Fatalf("state: %v", err)
	}
	if len(state.Pieces) != 1 || state.TotalScore != 4*200 {
		t.Fatalf("state: pieces=%d total=%d", len(state.Pieces), state.TotalScore)
	}
}

func TestSession_RejectedIntentKeepsState(t *testing.T) {
	s, out, clientID, cancel := startSession(t)
	defer cancel()

	s.Inbox() <- IntentEnvelope{ClientID: clientID, Act: protocol.ActMsg{
		ID: "A1", Op: protocol.OpPlace, PieceType: "I", X: 0, Y: 0,
	}}
	recv(t, out, protocol.TypeState)

	// A second I dropped onto the same row must be rejected.
	s.Inbox() <- IntentEnvelope{ClientID: clientID, Act: protocol.ActMsg{
		ID: "A2", Op: protocol.OpPlace, PieceType: "O", X: 0, Y: 0,
	}}
	var ack protocol.AckMsg
	_ = json.Unmarshal(recv(t, out, protocol.TypeAck), &ack)
	if ack.Accepted || ack.Code != protocol.ErrOverlap {
		t.Fatalf("ack: %+v", ack)
	}
	if got := s.Metrics().Pieces; got != 1 {
		t.Fatalf("piece count %d after rejection", got)
	}
}

func TestSession_UnknownOp(t *testing.T) {
	s, out, clientID, cancel := startSession(t)
	defer cancel()

	s.Inbox() <- IntentEnvelope{ClientID: clientID, Act: protocol.ActMsg{ID: "A1", Op: "EXPLODE"}}
	var ack protocol.AckMsg
	_ = json.Unmarshal(recv(t, out, protocol.TypeAck), &ack)
	if ack.Accepted || ack.Code != protocol.ErrBadRequest {
		t.Fatalf("ack: %+v", ack)
	}
}

func TestSession_RefreshLastRequestWins(t *testing.T) {
	s, out, clientID, cancel := startSession(t)
	defer cancel()

	s.Inbox() <- IntentEnvelope{ClientID: clientID, Act: protocol.ActMsg{
		ID: "A1", Op: protocol.OpPlace, PieceType: "I", X: 0, Y: 0,
	}}
	recv(t, out, protocol.TypeState)

	newer := make([]grid.Record, grid.Cells)
	for i := range newer {
		newer[i] = grid.Record{Count: 21, Date: "2026-08-20"}
	}
	s.Refreshes() <- Refresh{Generation: 2, Records: newer}

	var state protocol.StateMsg
	_ = json.Unmarshal(recv(t, out, protocol.TypeState), &state)
	if state.Generation != 2 || state.TotalScore != 4*500 {
		t.Fatalf("state after refresh: gen=%d total=%d", state.Generation, state.TotalScore)
	}

	// A slower fetch issued before generation 2 completes late: it
	// must be discarded.
	older := make([]grid.Record, grid.Cells)
	s.Refreshes() <- Refresh{Generation: 1, Records: older}

	// Push another intent so we can observe the session has moved on
	// without applying the stale refresh.
	s.Inbox() <- IntentEnvelope{ClientID: clientID, Act: protocol.ActMsg{
		ID: "A2", Op: protocol.OpPlace, PieceType: "O", X: 4, Y: 4,
	}}
	_ = json.Unmarshal(recv(t, out, protocol.TypeState), &state)
	if state.Generation != 2 {
		t.Fatalf("stale refresh applied: generation %d", state.Generation)
	}
	if state.TotalScore != 4*500+4*500 {
		t.Fatalf("scores regressed after stale refresh: %d", state.TotalScore)
	}
}

func TestSession_ExportSnapshot(t *testing.T) {
	s, out, clientID, cancel := startSession(t)
	defer cancel()

	s.Inbox() <- IntentEnvelope{ClientID: clientID, Act: protocol.ActMsg{
		ID: "A1", Op: protocol.OpPlace, PieceType: "T", X: 3, Y: 3,
	}}
	recv(t, out, protocol.TypeState)

	ctx, cancelReq := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancelReq()
	pieces, _, total, err := s.RequestExport(ctx)
	if err != nil {
		t.Fatalf("export: %v", err)
	}
	if len(pieces) != 1 || pieces[0].Type != "T" {
		t.Fatalf("export pieces: %+v", pieces)
	}
	if total != pieces[0].ScorePotential {
		t.Fatalf("export total %d != piece potential %d", total, pieces[0].ScorePotential)
	}
	if pieces[0].StartDate != "2026-08-01" {
		t.Fatalf("export start date %q", pieces[0].StartDate)
	}
}

func TestSession_LeaveStopsDelivery(t *testing.T) {
	s, out, clientID, cancel := startSession(t)
	defer cancel()

	s.Leave() <- clientID
	// Give the loop a moment to process the leave.
	deadline := time.Now().Add(time.Second)
	for s.Metrics().Clients != 0 {
		if time.Now().After(deadline) {
			t.Fatal("client never left")
		}
		time.Sleep(5 * time.Millisecond)
	}
	_ = out
}
