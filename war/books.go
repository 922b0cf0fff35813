package war

import (
	"sort"

	"github.com/counselengine/counsel/domain"
	"github.com/counselengine/counsel/store"
)

const (
	booksMin = 2
	booksMax = 5
)

// preferredWarDomains are the domains a war-mode council leans on most —
// the same leverage-heavy territory as its preferred ministers (Power,
// Conflict, Intelligence, Psychology, Timing). deprioritizedWarDomains
// mirror the council's deprioritized ministers (Diplomacy, Adaptation)
// plus Morality, whose doctrine argues against exactly the kind of
// decisive action war mode exists to support.
var preferredWarDomains = map[string]bool{
	string(domain.DomainPower):        true,
	string(domain.DomainConflict):     true,
	string(domain.DomainIntelligence): true,
	string(domain.DomainPsychology):   true,
	string(domain.DomainTiming):       true,
	string(domain.DomainDeception):    true,
}

var deprioritizedWarDomains = map[string]bool{
	string(domain.DomainDiplomacy):  true,
	string(domain.DomainAdaptation): true,
	string(domain.DomainMorality):   true,
}

var preferredWarTones = map[string]bool{
	string(domain.ToneAggressive): true,
	string(domain.ToneRuthless):   true,
	string(domain.ToneDecisive):   true,
}

var deprioritizedWarTones = map[string]bool{
	string(domain.TonePrincipled): true,
	string(domain.ToneDiplomatic): true,
	string(domain.ToneCautious):   true,
}

const (
	domainPreferredWeight     = 2.0
	domainDeprioritizedWeight = -1.5
	tonePreferredWeight       = 1.5
	toneDeprioritizedWeight   = -0.8
)

// scoredBook pairs a book with its computed war-mode bias score.
type scoredBook struct {
	book  store.BookMetadata
	score float64
}

// BookScore computes a book's war-mode retrieval bias score: +2.0 per
// preferred domain, -1.5 per deprioritized domain, +1.5
// per preferred tone, -0.8 per deprioritized tone, the sum then scaled by
// the book's war priority.
func BookScore(b store.BookMetadata) float64 {
	var s float64
	for _, d := range b.Domains {
		if preferredWarDomains[d] {
			s += domainPreferredWeight
		}
		if deprioritizedWarDomains[d] {
			s += domainDeprioritizedWeight
		}
	}
	for _, t := range b.Tones {
		if preferredWarTones[t] {
			s += tonePreferredWeight
		}
		if deprioritizedWarTones[t] {
			s += toneDeprioritizedWeight
		}
	}
	return s * b.Priority.War
}

// SelectBooks ranks every candidate book by BookScore descending (ties
// broken by book_id), discards any book scoring at or below zero —
// books are never removed from the store, only excluded from this war
// session's retrieval set — and returns at most booksMax of them, or
// none at all when fewer than booksMin books score above zero.
func SelectBooks(books []store.BookMetadata) []store.BookMetadata {
	scored := make([]scoredBook, 0, len(books))
	for _, b := range books {
		s := BookScore(b)
		if s > 0 {
			scored = append(scored, scoredBook{book: b, score: s})
		}
	}

	sort.Slice(scored, func(i, j int) bool {
		if scored[i].score != scored[j].score {
			return scored[i].score > scored[j].score
		}
		return scored[i].book.BookID < scored[j].book.BookID
	})

	n := booksMax
	if len(scored) < n {
		n = len(scored)
	}
	if n < booksMin {
		n = 0 // fewer than booksMin positively scored books: no book clears the bar
	}

	out := make([]store.BookMetadata, 0, n)
	for i := 0; i < n; i++ {
		out = append(out, scored[i].book)
	}
	return out
}
