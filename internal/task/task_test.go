package task

import (
	"bytes"
	"testing"
)

func TestEncodeDecodeRoundTrip(t *testing.T) {
	orig := New([]byte(`{"to":"user@example.com","n":1}`))
	orig.FailureCount = 2

	member, err := Encode(orig)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	got, err := Decode(member)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got.ID != orig.ID {
		t.Fatalf("ID: got %s want %s", got.ID, orig.ID)
	}
	if got.FailureCount != 2 {
		t.Fatalf("FailureCount: got %d want 2", got.FailureCount)
	}
	if got.CreatedAt != orig.CreatedAt {
		t.Fatalf("CreatedAt: got %d want %d", got.CreatedAt, orig.CreatedAt)
	}
	if !bytes.Equal(got.Payload, orig.Payload) {
		t.Fatalf("Payload: got %s want %s", got.Payload, orig.Payload)
	}
}

func TestUniqueIDsForEqualPayloads(t *testing.T) {
	a := New([]byte(`"same"`))
	b := New([]byte(`"same"`))
	if a.ID == b.ID {
		t.Fatalf("payload-equal tasks share ID %s", a.ID)
	}
}

func TestDecodeRejectsMalformed(t *testing.T) {
	cases := [][]byte{
		nil,
		[]byte("not json"),
		[]byte(`{}`),                                  // missing id
		[]byte(`{"id":"x","failure_count":-1}`),       // negative failures
		[]byte(`[1,2,3]`),                             // wrong shape
		[]byte(`{"id":"","failure_count":0}`),         // empty id
		[]byte(`{"id":"x","failure_count":"twelve"}`), // wrong type
	}
	for _, c := range cases {
		if _, err := Decode(c); err == nil {
			t.Fatalf("Decode(%q) should fail", c)
		}
	}
}

func TestEncodeRejectsNegativeFailures(t *testing.T) {
	bad := New(nil)
	bad.FailureCount = -1
	if _, err := Encode(bad); err == nil {
		t.Fatalf("expected error for negative failure count")
	}
	if _, err := Encode(nil); err == nil {
		t.Fatalf("expected error for nil task")
	}
}
