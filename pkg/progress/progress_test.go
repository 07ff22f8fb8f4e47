package progress

import (
	"testing"
)

func TestBufferDropsOldest(t *testing.T) {
	b := NewBuffer(3)
	for i := 1; i <= 5; i++ {
		b.Report(Event{Kind: ArtifactDone, Completed: i})
	}
	if got := b.Dropped(); got != 2 {
		t.Errorf("Dropped() = %d, want 2", got)
	}
	b.Close()

	var got []int
	for e := range b.Events() {
		got = append(got, e.Completed)
	}
	want := []int{3, 4, 5}
	if len(got) != len(want) {
		t.Fatalf("events = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("events = %v, want %v", got, want)
			break
		}
	}
}

func TestBufferReportAfterClose(t *testing.T) {
	b := NewBuffer(1)
	b.Close()
	b.Close()
	b.Report(Event{Kind: Completed})
	if _, ok := <-b.Events(); ok {
		t.Error("event delivered after Close")
	}
}

func TestTerminal(t *testing.T) {
	testCases := []struct {
		kind Kind
		want bool
	}{
		{Bytes, false},
		{ArtifactDone, false},
		{Completed, true},
		{Failed, true},
		{Cancelled, true},
	}
	for _, tc := range testCases {
		if got := tc.kind.Terminal(); got != tc.want {
			t.Errorf("%s.Terminal() = %v, want %v", tc.kind, got, tc.want)
		}
	}
}

func TestTee(t *testing.T) {
	var a, b int
	sink := Tee(Func(func(Event) { a++ }), Func(func(Event) { b++ }), Discard)
	sink.Report(Event{})
	sink.Report(Event{})
	if a != 2 || b != 2 {
		t.Errorf("a = %d, b = %d, want 2 each", a, b)
	}
}
