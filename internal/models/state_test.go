package models

import (
	"reflect"
	"testing"
	"time"
)

func TestStateDeltaApplyOverridesOnlyCarriedFields(t *testing.T) {
	state := CampaignState{
		UserID:    "U001",
		Event:     Event{Type: EventTypeUserInterest, Value: "sweater", Timestamp: time.Now()},
		Intent:    "old-intent",
		Sentiment: "old-sentiment",
	}

	delta := StateDelta{Intent: Ptr("buy sweater")}
	delta.Apply(&state)

	if state.Intent != "buy sweater" {
		t.Errorf("expected intent to be overwritten, got %q", state.Intent)
	}
	if state.Sentiment != "old-sentiment" {
		t.Errorf("expected sentiment untouched, got %q", state.Sentiment)
	}
	if state.UserID != "U001" {
		t.Errorf("expected user id untouched, got %q", state.UserID)
	}
}

func TestStateDeltaApplyAllFields(t *testing.T) {
	state := CampaignState{UserID: "U001"}
	delta := StateDelta{
		UserData:         map[string]string{"email": "a@b.com"},
		Intent:           Ptr("intent"),
		Sentiment:        Ptr("positive"),
		Painpoints:       Ptr([]string{"price"}),
		CampaignStrategy: Ptr("strategy"),
		SelectedChannel:  Ptr(ChannelEmail),
		MessageContent:   Ptr("message"),
		ImagePrompt:      Ptr("prompt"),
		ImageURL:         Ptr("/tmp/ad.png"),
	}
	delta.Apply(&state)

	want := CampaignState{
		UserID:           "U001",
		UserData:         map[string]string{"email": "a@b.com"},
		Intent:           "intent",
		Sentiment:        "positive",
		Painpoints:       []string{"price"},
		CampaignStrategy: "strategy",
		SelectedChannel:  ChannelEmail,
		MessageContent:   "message",
		ImagePrompt:      "prompt",
		ImageURL:         "/tmp/ad.png",
	}
	if !reflect.DeepEqual(state, want) {
		t.Errorf("state after full apply mismatch:\n got %+v\nwant %+v", state, want)
	}
}

func TestStateDeltaZeroApplyIsNoOp(t *testing.T) {
	state := CampaignState{
		UserID:          "U001",
		UserData:        map[string]string{"email": "a@b.com"},
		Intent:          "intent",
		SelectedChannel: ChannelSMS,
		ImageURL:        "/tmp/ad.png",
	}
	before := state
	StateDelta{}.Apply(&state)
	if !reflect.DeepEqual(state, before) {
		t.Errorf("zero delta changed state:\n got %+v\nwant %+v", state, before)
	}
}

func TestStateDeltaExplicitEmptyImageURL(t *testing.T) {
	state := CampaignState{UserID: "U001", ImageURL: "/tmp/old.png"}
	StateDelta{ImageURL: Ptr("")}.Apply(&state)
	if state.ImageURL != "" {
		t.Errorf("expected explicit empty image url, got %q", state.ImageURL)
	}
}

func TestStateDeltaIsZero(t *testing.T) {
	if !(StateDelta{}).IsZero() {
		t.Error("expected empty delta to be zero")
	}
	if (StateDelta{Intent: Ptr("x")}).IsZero() {
		t.Error("expected delta with intent to be non-zero")
	}
	if (StateDelta{UserData: map[string]string{}}).IsZero() {
		t.Error("expected delta with user data to be non-zero")
	}
}
