package jobid

import (
	"bytes"
	"testing"
)

func TestKeyRoundTrip(t *testing.T) {
	var ns Namespace
	copy(ns[:], []byte("sov-mini-a-aaaaaaaaaaaaaaaaaaaa"))
	var c Commitment
	for i := range c {
		c[i] = byte(i)
	}

	id, err := New(6952283, ns[:], c[:], 0, 0)
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	key := id.Key()
	if len(key) != KeyLen {
		t.Fatalf("expected key len %d, got %d", KeyLen, len(key))
	}

	decoded, err := FromKey(key)
	if err != nil {
		t.Fatalf("FromKey: %v", err)
	}
	if decoded != id {
		t.Fatalf("round trip mismatch: %+v != %+v", decoded, id)
	}
}

func TestNewRejectsBadLengths(t *testing.T) {
	if _, err := New(1, make([]byte, 28), make([]byte, CommitmentSize), 0, 0); err == nil {
		t.Fatal("expected error for short namespace")
	}
	if _, err := New(1, make([]byte, NamespaceSize), make([]byte, 31), 0, 0); err == nil {
		t.Fatal("expected error for short commitment")
	}
}

func TestKeyOrderingByHeight(t *testing.T) {
	ns := make([]byte, NamespaceSize)
	cm := make([]byte, CommitmentSize)

	low, _ := New(1, ns, cm, 0, 0)
	high, _ := New(2, ns, cm, 0, 0)

	if bytes.Compare(low.Key(), high.Key()) >= 0 {
		t.Fatal("expected key for lower height to sort before higher height")
	}
}

func TestString(t *testing.T) {
	ns := make([]byte, NamespaceSize)
	cm := make([]byte, CommitmentSize)
	id, _ := New(42, ns, cm, 7, 3)
	got := id.String()
	want := "42:AAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAA=:AAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAA=:7:3"
	if got != want {
		t.Fatalf("String() = %q, want %q", got, want)
	}
}
