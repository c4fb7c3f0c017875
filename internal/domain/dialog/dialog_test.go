package dialog

import "testing"

func TestStoreStartOverwrites(t *testing.T) {
	s := NewStore()

	first := s.Start(1, FlowTaskCreate, StateTaskTitle)
	first.Fields["title"] = "old"

	second := s.Start(1, FlowDealCreate, StateDealTitle)
	if second.Flow != FlowDealCreate || second.State != StateDealTitle {
		t.Fatalf("unexpected session: %+v", second)
	}
	if len(second.Fields) != 0 {
		t.Fatal("new session must not inherit fields")
	}

	got, ok := s.Get(1)
	if !ok || got.Flow != FlowDealCreate {
		t.Fatalf("expected deal session, got %+v (ok=%v)", got, ok)
	}
}

func TestStoreClear(t *testing.T) {
	s := NewStore()
	s.Start(1, FlowComment, StateCommentTaskID)

	s.Clear(1)
	if _, ok := s.Get(1); ok {
		t.Fatal("expected session to be cleared")
	}

	// Clearing again is a no-op.
	s.Clear(1)
}

func TestStoreIsolatedPerChat(t *testing.T) {
	s := NewStore()
	s.Start(1, FlowTaskCreate, StateTaskTitle)
	s.Start(2, FlowComment, StateCommentTaskID)

	a, _ := s.Get(1)
	b, _ := s.Get(2)
	if a.Flow == b.Flow {
		t.Fatal("sessions must be independent per chat")
	}
}
