package survey

import "testing"

func TestTransitionTable(t *testing.T) {
	tests := []struct {
		current Status
		next    Status
		slot    int
		ok      bool
	}{
		{StatusStarted, StatusQ1Answered, 1, true},
		{StatusQ1Answered, StatusCompleted, 2, true},
		{StatusCompleted, StatusCompleted, 0, false},
		{Status("weird"), Status("weird"), 0, false},
	}
	for _, tt := range tests {
		next, slot, ok := Transition(tt.current)
		if next != tt.next || slot != tt.slot || ok != tt.ok {
			t.Errorf("Transition(%s) = (%s, %d, %v), want (%s, %d, %v)",
				tt.current, next, slot, ok, tt.next, tt.slot, tt.ok)
		}
	}
}

func TestDecideAdvancesScript(t *testing.T) {
	m := NewMachine(Prompts{})

	d := m.Decide(StatusStarted, "Professor")
	if !d.Mutates || d.Next != StatusQ1Answered {
		t.Fatalf("Decide(started) = %+v, want mutation to q1_answered", d)
	}
	if d.Reply != DefaultPrompts().Question2 {
		t.Fatalf("reply = %q, want question 2", d.Reply)
	}

	d = m.Decide(StatusQ1Answered, "anything")
	if !d.Mutates || d.Next != StatusCompleted {
		t.Fatalf("Decide(q1_answered) = %+v, want mutation to completed", d)
	}
	if d.Reply != DefaultPrompts().Thanks {
		t.Fatalf("reply = %q, want thanks", d.Reply)
	}
}

func TestDecideCompletedNeverMutates(t *testing.T) {
	m := NewMachine(Prompts{})

	d := m.Decide(StatusCompleted, "one more thing")
	if d.Mutates {
		t.Fatalf("completed survey must not accept answers")
	}
	if d.Reply != DefaultPrompts().Completed {
		t.Fatalf("reply = %q, want the already-completed text", d.Reply)
	}
	if d.Next != StatusCompleted {
		t.Fatalf("next = %s, want completed", d.Next)
	}
}

func TestDecideUnknownStatusIsInert(t *testing.T) {
	m := NewMachine(Prompts{})

	d := m.Decide(Status("migrating"), "hi")
	if d.Mutates || d.Next != Status("migrating") {
		t.Fatalf("unknown status must stay untouched, got %+v", d)
	}
}

func TestNewMachineKeepsCustomPrompts(t *testing.T) {
	m := NewMachine(Prompts{Question1: "Custom Q1?", Consent: "We keep answers."})

	p := m.Prompts()
	if p.Question1 != "Custom Q1?" {
		t.Fatalf("question1 = %q, want the custom text", p.Question1)
	}
	if p.Consent != "We keep answers." {
		t.Fatalf("consent = %q, want the custom text", p.Consent)
	}
	if p.Question2 != DefaultPrompts().Question2 {
		t.Fatalf("question2 = %q, want the default", p.Question2)
	}
}
