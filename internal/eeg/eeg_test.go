package eeg

import (
	"errors"
	"fmt"
	"testing"
)

func TestAction_Names(t *testing.T) {
	tests := []struct {
		action Action
		marker string
		symbol string
	}{
		{LeftClick, "Left Click", "left_click"},
		{RightClick, "Right Click", "right_click"},
		{ScrollUp, "Scroll Up", "scroll_up"},
		{ScrollDown, "Scroll Down", "scroll_down"},
	}

	for _, tt := range tests {
		if got := tt.action.String(); got != tt.marker {
			t.Errorf("Action(%d).String() = %s, want %s", tt.action, got, tt.marker)
		}
		if got := tt.action.Symbol(); got != tt.symbol {
			t.Errorf("Action(%d).Symbol() = %s, want %s", tt.action, got, tt.symbol)
		}
		parsed, ok := ParseMarker(tt.marker)
		if !ok || parsed != tt.action {
			t.Errorf("ParseMarker(%q) = %v, %v", tt.marker, parsed, ok)
		}
		parsed, ok = ParseSymbol(tt.symbol)
		if !ok || parsed != tt.action {
			t.Errorf("ParseSymbol(%q) = %v, %v", tt.symbol, parsed, ok)
		}
	}

	if _, ok := ParseMarker("left click"); ok {
		t.Error("marker matching must be exact")
	}
	if Action(7).Valid() {
		t.Error("Action(7) should not be valid")
	}
	if got := Action(7).String(); got != "Action(7)" {
		t.Errorf("unexpected string for unknown action: %s", got)
	}
}

func TestActions_Order(t *testing.T) {
	want := []Action{LeftClick, RightClick, ScrollUp, ScrollDown}
	if len(Actions) != len(want) {
		t.Fatalf("expected %d actions, got %d", len(want), len(Actions))
	}
	for i, a := range want {
		if Actions[i] != a {
			t.Errorf("Actions[%d] = %v, want %v", i, Actions[i], a)
		}
		if a.Index() != i {
			t.Errorf("%v.Index() = %d, want %d", a, a.Index(), i)
		}
	}
}

func TestProbabilities_Argmax(t *testing.T) {
	p := Probabilities{0.1, 0.2, 0.6, 0.1}
	if got := p.Argmax(); got != ScrollUp {
		t.Errorf("expected ScrollUp, got %v", got)
	}
	if got := p.Of(RightClick); got != 0.2 {
		t.Errorf("expected 0.2, got %v", got)
	}

	tie := Probabilities{0.4, 0.4, 0.1, 0.1}
	if got := tie.Argmax(); got != LeftClick {
		t.Errorf("ties should resolve to the lower index, got %v", got)
	}
}

func TestBlock_MatrixRoundTrip(t *testing.T) {
	var b Block
	for c := 0; c < Channels; c++ {
		for s := 0; s < WindowLength; s++ {
			b[c][s] = float64(c*1000 + s)
		}
	}

	m := b.Matrix()
	if m[42][3] != 3042 {
		t.Errorf("expected m[42][3] = 3042, got %v", m[42][3])
	}
	if back := m.Block(); back != b {
		t.Error("matrix to block should round trip")
	}
}

func TestDataset_Split(t *testing.T) {
	var ds Dataset
	for i := 0; i < 12; i++ {
		ds.Windows = append(ds.Windows, Window{Class: Actions[i%4], Offset: i})
	}

	train, eval := ds.Split(4, 42)
	if train.Len() != 8 || eval.Len() != 4 {
		t.Fatalf("expected 8/4 split, got %d/%d", train.Len(), eval.Len())
	}

	seen := map[int]bool{}
	for _, w := range append(train.Windows, eval.Windows...) {
		if seen[w.Offset] {
			t.Errorf("window %d appears in both partitions", w.Offset)
		}
		seen[w.Offset] = true
	}
	if len(seen) != 12 {
		t.Errorf("expected all 12 windows across partitions, got %d", len(seen))
	}

	_, again := ds.Split(4, 42)
	for i := range eval.Windows {
		if eval.Windows[i].Offset != again.Windows[i].Offset {
			t.Error("split should be deterministic for a fixed seed")
		}
	}

	_, all := ds.Split(100, 1)
	if all.Len() != 12 {
		t.Errorf("test size should clamp to dataset length, got %d", all.Len())
	}
}

func TestErrors_MatchSentinels(t *testing.T) {
	tests := []struct {
		err      error
		sentinel error
	}{
		{&MalformedStreamError{Position: 3, Reason: "short run"}, ErrMalformedStream},
		{&ChannelCountError{Position: 1, Got: 5}, ErrChannelCount},
		{&ConditioningError{Channel: 2, Reason: "all dropout"}, ErrConditioning},
		{&ModelUnavailableError{Path: "m.json", Err: errors.New("missing")}, ErrModelUnavailable},
		{&DeviceReadError{Source: "serial", Err: errors.New("timeout")}, ErrDeviceRead},
		{&SessionConflictError{State: "CAPTURING(1)"}, ErrSessionConflict},
	}

	for _, tt := range tests {
		wrapped := fmt.Errorf("outer: %w", tt.err)
		if !errors.Is(wrapped, tt.sentinel) {
			t.Errorf("%T should match %v", tt.err, tt.sentinel)
		}
		if tt.err.Error() == "" {
			t.Errorf("%T has empty message", tt.err)
		}
	}

	cause := errors.New("port closed")
	if !errors.Is(&DeviceReadError{Err: cause}, cause) {
		t.Error("DeviceReadError should unwrap to its cause")
	}
}
