package models

import (
	"sort"
	"testing"
	"time"
)

func TestTimestampLayoutSortsLexicographically(t *testing.T) {
	times := []time.Time{
		time.Date(2026, 1, 2, 9, 0, 0, 5, time.UTC),
		time.Date(2026, 1, 2, 9, 0, 0, 50, time.UTC),
		time.Date(2026, 1, 2, 9, 0, 1, 0, time.UTC),
		time.Date(2026, 1, 2, 10, 0, 0, 0, time.UTC),
		time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC),
	}
	stamps := make([]string, len(times))
	for i, tm := range times {
		stamps[i] = FormatTimestamp(tm)
	}
	if !sort.StringsAreSorted(stamps) {
		t.Fatalf("stamps not in order: %v", stamps)
	}
}

func TestKeyBreaksTiesBySeq(t *testing.T) {
	ts := FormatTimestamp(time.Date(2026, 1, 2, 9, 0, 0, 0, time.UTC))
	a := Message{Timestamp: ts, Seq: 2}
	b := Message{Timestamp: ts, Seq: 10}
	if a.Key() == b.Key() {
		t.Fatalf("identical keys for distinct seq values")
	}
	if a.Key() >= b.Key() {
		t.Fatalf("seq 2 should sort before seq 10: %q vs %q", a.Key(), b.Key())
	}
}

func TestTextConcatenatesTextItemsOnly(t *testing.T) {
	m := Message{Content: []ContentItem{
		{Type: ContentTypeText, Text: "hello "},
		{Type: "image", Text: "ignored"},
		{Type: ContentTypeText, Text: "world"},
	}}
	if got := m.Text(); got != "hello world" {
		t.Fatalf("Text() = %q", got)
	}
}

func TestNewMessageStampsNow(t *testing.T) {
	before := time.Now().UTC()
	m := NewMessage(RoleUser, "hi")
	ts, err := time.Parse(TimestampLayout, m.Timestamp)
	if err != nil {
		t.Fatalf("timestamp not in canonical layout: %v", err)
	}
	if ts.Before(before.Add(-time.Second)) || ts.After(before.Add(time.Second)) {
		t.Fatalf("timestamp not near now: %v", ts)
	}
	if m.Role != RoleUser || m.Text() != "hi" {
		t.Fatalf("message wrong: %+v", m)
	}
}
