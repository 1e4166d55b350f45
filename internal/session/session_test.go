package session

import (
	"testing"
	"time"
)

func TestGetOrCreate(t *testing.T) {
	store := NewStore(time.Minute)
	now := time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)

	sess, existed := store.GetOrCreate("CA123", "+15551234567", now)
	if existed {
		t.Fatal("fresh call reported as existing")
	}
	if sess.Step != StepGreetAskName {
		t.Fatalf("new session step = %q, want greet_ask_name", sess.Step)
	}
	if sess.CallerPhone != "+15551234567" {
		t.Fatalf("caller phone = %q", sess.CallerPhone)
	}

	again, existed := store.GetOrCreate("CA123", "+15551234567", now.Add(time.Second))
	if !existed {
		t.Fatal("second lookup did not find the session")
	}
	if again != sess {
		t.Fatal("second lookup returned a different session")
	}
}

func TestSessionMutationPersists(t *testing.T) {
	store := NewStore(time.Minute)
	now := time.Now()

	sess, _ := store.GetOrCreate("CA1", "+15550000001", now)
	sess.Step = StepCollectZIP
	sess.ZIPCode = "60601"
	store.Save(sess)

	got, ok := store.Get("CA1")
	if !ok {
		t.Fatal("session missing after save")
	}
	if got.Step != StepCollectZIP || got.ZIPCode != "60601" {
		t.Fatalf("mutation lost: step=%q zip=%q", got.Step, got.ZIPCode)
	}
}

func TestDelete(t *testing.T) {
	store := NewStore(time.Minute)
	store.GetOrCreate("CA1", "+15550000001", time.Now())
	store.Delete("CA1")
	if _, ok := store.Get("CA1"); ok {
		t.Fatal("session survived delete")
	}
}

func TestLockIsStablePerCall(t *testing.T) {
	store := NewStore(time.Minute)
	a := store.Lock("CA1")
	b := store.Lock("CA1")
	if a != b {
		t.Fatal("same call returned different mutexes")
	}
	if store.Lock("CA2") == a {
		t.Fatal("different calls share a mutex")
	}
}

func TestExpiry(t *testing.T) {
	store := NewStore(20 * time.Millisecond)
	store.GetOrCreate("CA1", "+15550000001", time.Now())
	time.Sleep(50 * time.Millisecond)
	if _, ok := store.Get("CA1"); ok {
		t.Fatal("session outlived its TTL")
	}
}
