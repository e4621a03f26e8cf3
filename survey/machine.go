package survey

// Prompts carries the survey script texts. Zero-value fields fall back to the
// defaults from DefaultPrompts.
type Prompts struct {
	// Consent is sent before question 1 on an explicit start; empty disables it.
	Consent    string
	Question1  string
	Question2  string
	Thanks     string
	Completed  string
	HowToStart string
}

// DefaultPrompts returns the built-in two-question script.
func DefaultPrompts() Prompts {
	return Prompts{
		Question1:  "What is your main affiliation with the university?",
		Question2:  "If you advised the dean for a day, what one change would you suggest?",
		Thanks:     "Thank you for your answers! Your contribution is very valuable.",
		Completed:  "You have already completed this survey. Thank you for participating!",
		HowToStart: "No survey in progress. Send /start to begin.",
	}
}

// Decision is the outcome of feeding one inbound message to the machine.
type Decision struct {
	// Expected is the status this decision transitions from; SaveAnswer
	// re-checks it under a row lock.
	Expected Status
	// Next is the status after the turn.
	Next Status
	// Reply is the single outbound text for the turn.
	Reply string
	// Mutates reports whether the turn writes an answer slot. When false the
	// store must not be touched.
	Mutates bool
}

// Machine is the pure decision logic of the conversation. It never fails and
// performs no I/O.
type Machine struct {
	prompts Prompts
}

// NewMachine builds a machine, filling empty prompt fields with defaults.
func NewMachine(p Prompts) *Machine {
	def := DefaultPrompts()
	if p.Question1 == "" {
		p.Question1 = def.Question1
	}
	if p.Question2 == "" {
		p.Question2 = def.Question2
	}
	if p.Thanks == "" {
		p.Thanks = def.Thanks
	}
	if p.Completed == "" {
		p.Completed = def.Completed
	}
	if p.HowToStart == "" {
		p.HowToStart = def.HowToStart
	}
	return &Machine{prompts: p}
}

// Prompts returns the effective script texts.
func (m *Machine) Prompts() Prompts {
	return m.prompts
}

// Decide maps (current status, inbound text) to a transition and reply. It is
// total: any status yields a decision, and the inbound text is accepted
// verbatim without validation.
func (m *Machine) Decide(current Status, inbound string) Decision {
	_ = inbound // any non-empty text advances the script

	next, _, ok := Transition(current)
	if !ok {
		// Completed, or an unknown status from a hand-edited row; either way
		// the record stays untouched.
		return Decision{Expected: current, Next: current, Reply: m.prompts.Completed}
	}

	reply := m.prompts.Question2
	if next == StatusCompleted {
		reply = m.prompts.Thanks
	}
	return Decision{Expected: current, Next: next, Reply: reply, Mutates: true}
}
