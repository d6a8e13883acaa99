package bot

import "testing"

func TestSessionStoreLifecycle(t *testing.T) {
	store := NewSessionStore()

	// 首次交互：空闲态，不落表
	sess := store.Get(42)
	if sess.State != StateIdle {
		t.Fatalf("expected idle session, got %s", sess.State)
	}

	sess.State = StateIntakePlate
	store.Put(sess)
	if got := store.Get(42); got.State != StateIntakePlate {
		t.Fatalf("expected stored state, got %s", got.State)
	}

	// 流程推进暂存字段
	sess.Draft.Plate = "AB123CD"
	sess.State = StateIntakeGuest
	store.Put(sess)
	got := store.Get(42)
	if got.Draft.Plate != "AB123CD" || got.State != StateIntakeGuest {
		t.Fatalf("draft not preserved: %+v", got)
	}

	// 会话互不干扰
	if other := store.Get(43); other.State != StateIdle {
		t.Fatalf("sessions must be per user, got %s", other.State)
	}

	store.Clear(42)
	if got := store.Get(42); got.State != StateIdle {
		t.Fatalf("expected cleared session, got %s", got.State)
	}
}
