// Package reconcile pairs expected occurrences with logged records.
//
// Match is a pure function: it never mutates its inputs and returns the
// assignment together with whatever was left over on both sides. Identical
// inputs always produce an identical assignment.
package reconcile

import (
	"math"
	"sort"
	"strings"
	"time"

	"github.com/careflow/careflow/internal/platform/calendar"
)

// Unbounded disables the grace window: any candidate of the group may match
// a scheduled slot, nearest first.
const Unbounded = -1

// Slot is one expected occurrence inside a (resident, type, day) group.
type Slot struct {
	ID          string
	Time        string
	Unscheduled bool
	MealType    string
}

// Candidate is one logged record inside the same group.
type Candidate struct {
	ID        string
	Time      string
	CreatedAt time.Time
	MealType  string
}

// Options tune a matching pass.
type Options struct {
	// GraceMinutes is the largest |record - slot| distance still accepted.
	// The bound is inclusive. Use Unbounded to accept any distance.
	GraceMinutes int
	// MatchMealType enables the feeding rule: a slot and a candidate that both
	// carry a meal type only match when the meal types agree.
	MatchMealType bool
}

// Pair is one slot-to-candidate assignment.
type Pair struct {
	Slot      Slot
	Candidate Candidate
	// Distance in minutes; zero for unscheduled slots.
	Distance int
}

// Result holds the assignment and the leftovers of both sides.
type Result struct {
	Matches             []Pair
	UnmatchedSlots      []Slot
	UnmatchedCandidates []Candidate
}

// MatchedSlot returns the candidate assigned to the slot with the given id.
func (r Result) MatchedSlot(slotID string) (Candidate, bool) {
	for _, p := range r.Matches {
		if p.Slot.ID == slotID {
			return p.Candidate, true
		}
	}
	return Candidate{}, false
}

type rankedCandidate struct {
	Candidate
	minutes int
	valid   bool
}

// Match assigns at most one candidate to each slot and at most one slot to
// each candidate. Slots are served in ascending time order so earlier slots
// get first pick. A scheduled slot takes the nearest acceptable candidate,
// ties going to the earliest CreatedAt; an unscheduled slot takes the first
// acceptable candidate in (time, createdAt) order.
func Match(slots []Slot, candidates []Candidate, opts Options) Result {
	ordered := sortSlots(slots)
	pool := sortCandidates(candidates)
	used := make([]bool, len(pool))

	var res Result
	for _, s := range ordered {
		best := pickCandidate(s, pool, used, opts)
		if best < 0 {
			res.UnmatchedSlots = append(res.UnmatchedSlots, s)
			continue
		}
		used[best] = true
		res.Matches = append(res.Matches, Pair{
			Slot:      s,
			Candidate: pool[best].Candidate,
			Distance:  slotDistance(s, pool[best]),
		})
	}

	for i, c := range pool {
		if !used[i] {
			res.UnmatchedCandidates = append(res.UnmatchedCandidates, c.Candidate)
		}
	}
	return res
}

func pickCandidate(s Slot, pool []rankedCandidate, used []bool, opts Options) int {
	if s.Unscheduled {
		for i, c := range pool {
			if !used[i] && mealTypeAccepts(s, c.Candidate, opts) {
				return i
			}
		}
		return -1
	}

	slotMinutes, err := calendar.TimeToMinutes(s.Time)
	if err != nil {
		return -1
	}

	best, bestDistance := -1, math.MaxInt
	for i, c := range pool {
		if used[i] || !c.valid || !mealTypeAccepts(s, c.Candidate, opts) {
			continue
		}
		d := abs(c.minutes - slotMinutes)
		if opts.GraceMinutes >= 0 && d > opts.GraceMinutes {
			continue
		}
		if best < 0 || d < bestDistance || (d == bestDistance && c.CreatedAt.Before(pool[best].CreatedAt)) {
			best, bestDistance = i, d
		}
	}
	return best
}

func mealTypeAccepts(s Slot, c Candidate, opts Options) bool {
	if !opts.MatchMealType {
		return true
	}
	want := strings.TrimSpace(s.MealType)
	got := strings.TrimSpace(c.MealType)
	if want == "" || got == "" {
		return true
	}
	return strings.EqualFold(want, got)
}

func slotDistance(s Slot, c rankedCandidate) int {
	if s.Unscheduled || !c.valid {
		return 0
	}
	m, err := calendar.TimeToMinutes(s.Time)
	if err != nil {
		return 0
	}
	return abs(c.minutes - m)
}

func sortSlots(slots []Slot) []Slot {
	out := make([]Slot, len(slots))
	copy(out, slots)
	sort.SliceStable(out, func(i, j int) bool {
		ti, tj := slotSortKey(out[i]), slotSortKey(out[j])
		if ti != tj {
			return ti < tj
		}
		return out[i].ID < out[j].ID
	})
	return out
}

func slotSortKey(s Slot) string {
	if s.Unscheduled {
		return calendar.UnscheduledTime
	}
	if t, err := calendar.NormalizeTime(s.Time); err == nil {
		return t
	}
	return s.Time
}

func sortCandidates(candidates []Candidate) []rankedCandidate {
	out := make([]rankedCandidate, len(candidates))
	for i, c := range candidates {
		m, err := calendar.TimeToMinutes(c.Time)
		out[i] = rankedCandidate{Candidate: c, minutes: m, valid: err == nil}
	}
	sort.SliceStable(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if a.valid != b.valid {
			return a.valid
		}
		if a.minutes != b.minutes {
			return a.minutes < b.minutes
		}
		if !a.CreatedAt.Equal(b.CreatedAt) {
			return a.CreatedAt.Before(b.CreatedAt)
		}
		return a.ID < b.ID
	})
	return out
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}
