package rvpb

import (
	"testing"

	"google.golang.org/protobuf/types/known/structpb"
)

func TestEvent_Completed(t *testing.T) {
	in := &Event{Type: EventCompleted, AdUnitIDs: []string{"a", "b"}, Reward: Reward{Label: "coins", Amount: 10}}
	b, err := Marshal(in)
	if err != nil {
		t.Fatalf("marshal: %v\n", err)
	}
	var out Event
	if err := Unmarshal(b, &out); err != nil {
		t.Fatalf("unmarshal: %v\n", err)
	}
	if len(out.AdUnitIDs) != 2 || out.AdUnitIDs[1] != "b" || out.Reward != in.Reward {
		t.Fatalf("got %+v\n", out)
	}
}

func TestEvent_RequiresAdUnit(t *testing.T) {
	if _, err := (&Event{}).ToStruct(); err == nil {
		t.Fatalf("event without type should not encode\n")
	}
	s, _ := structpb.NewStruct(map[string]any{"type": EventClosed})
	var e Event
	if err := e.FromStruct(s); err == nil {
		t.Fatalf("closed event without ad unit should not decode\n")
	}
}

func TestLoadRequest_Location(t *testing.T) {
	in := &LoadRequest{AdUnitID: "a", Callback: "http://x/events", Keywords: "gmext"}
	b, _ := Marshal(in)
	var out LoadRequest
	if err := Unmarshal(b, &out); err != nil {
		t.Fatalf("unmarshal: %v\n", err)
	}
	if out.Location != nil || out.Keywords != "gmext" {
		t.Fatalf("got %+v\n", out)
	}

	in.Location = &Location{Latitude: 1.5, Longitude: -2.25, Accuracy: 10}
	b, _ = Marshal(in)
	if err := Unmarshal(b, &out); err != nil {
		t.Fatalf("unmarshal: %v\n", err)
	}
	if out.Location == nil || *out.Location != *in.Location {
		t.Fatalf("location = %+v\n", out.Location)
	}
}

func TestShowRequest_RequiresCallback(t *testing.T) {
	b, _ := Marshal(&ShowRequest{AdUnitID: "a"})
	var out ShowRequest
	if err := Unmarshal(b, &out); err == nil {
		t.Fatalf("show request without callback should not decode\n")
	}
}

func TestUnmarshal_Garbage(t *testing.T) {
	var e Event
	if err := Unmarshal([]byte{0xff, 0xff, 0xff}, &e); err == nil {
		t.Fatalf("garbage should not decode\n")
	}
}
