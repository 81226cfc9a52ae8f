package domain

import "time"

// PerspectiveSlot names one of the three semantic views indexed per document.
type PerspectiveSlot string

const (
	// SlotProblem is the problem/issue the prompt solves.
	SlotProblem PerspectiveSlot = "problem"
	// SlotTech is the technology or library involved.
	SlotTech PerspectiveSlot = "tech"
	// SlotSolution is the outcome or technique applied.
	SlotSolution PerspectiveSlot = "solution"
)

// PerspectiveSlots lists all slots in embedding order.
var PerspectiveSlots = []PerspectiveSlot{SlotProblem, SlotTech, SlotSolution}

// Perspectives holds the three short descriptive phrases generated per document.
type Perspectives struct {
	Problem  string
	Tech     string
	Solution string
}

// Text returns the phrase for a slot.
func (p Perspectives) Text(slot PerspectiveSlot) string {
	switch slot {
	case SlotProblem:
		return p.Problem
	case SlotTech:
		return p.Tech
	case SlotSolution:
		return p.Solution
	}
	return ""
}

// SearchDocument is the indexed projection of an experiment's active version.
// A vector is either nil (embedding failed at index time) or exactly the
// configured dimensionality; the lexical fields remain searchable either way.
type SearchDocument struct {
	ID               string
	Title            string
	PromptText       string
	Description      string
	AIModel          string
	Tags             []string
	ReproductionRate int
	CreatedAt        time.Time

	Perspectives Perspectives

	ProblemVector  []float32
	TechVector     []float32
	SolutionVector []float32
}

// Vector returns the embedding for a slot.
func (d *SearchDocument) Vector(slot PerspectiveSlot) []float32 {
	switch slot {
	case SlotProblem:
		return d.ProblemVector
	case SlotTech:
		return d.TechVector
	case SlotSolution:
		return d.SolutionVector
	}
	return nil
}

// SetVector stores the embedding for a slot.
func (d *SearchDocument) SetVector(slot PerspectiveSlot, vec []float32) {
	switch slot {
	case SlotProblem:
		d.ProblemVector = vec
	case SlotTech:
		d.TechVector = vec
	case SlotSolution:
		d.SolutionVector = vec
	}
}
