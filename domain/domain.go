// Package domain holds the closed enumerations shared across the counsel
// engine: the fifteen knowledge domains doctrine is tagged with, and the
// fifteen minister identities that may be bound to them.
package domain

import "fmt"

// Domain is a closed enumeration of the knowledge domains doctrine chapters
// and chunks are tagged with. Vector and full-text indices are partitioned
// one-per-Domain so that a minister's access never spans a domain it isn't
// bound to.
type Domain string

const (
	DomainStrategy     Domain = "strategy"
	DomainPower        Domain = "power"
	DomainConflict     Domain = "conflict"
	DomainDeception    Domain = "deception"
	DomainPsychology   Domain = "psychology"
	DomainLeadership   Domain = "leadership"
	DomainOrganization Domain = "organization"
	DomainIntelligence Domain = "intelligence"
	DomainTiming       Domain = "timing"
	DomainRisk         Domain = "risk"
	DomainResources    Domain = "resources"
	DomainLaw          Domain = "law"
	DomainMorality     Domain = "morality"
	DomainDiplomacy    Domain = "diplomacy"
	DomainAdaptation   Domain = "adaptation"
)

// AllDomains lists every valid Domain in a stable order. Used for
// per-domain index bootstrapping and deterministic iteration.
var AllDomains = []Domain{
	DomainStrategy, DomainPower, DomainConflict, DomainDeception,
	DomainPsychology, DomainLeadership, DomainOrganization, DomainIntelligence,
	DomainTiming, DomainRisk, DomainResources, DomainLaw,
	DomainMorality, DomainDiplomacy, DomainAdaptation,
}

func (d Domain) Valid() bool {
	for _, v := range AllDomains {
		if v == d {
			return true
		}
	}
	return false
}

func (d Domain) String() string { return string(d) }

// ParseDomain validates and normalizes a string into a Domain.
func ParseDomain(s string) (Domain, error) {
	d := Domain(s)
	if !d.Valid() {
		return "", fmt.Errorf("domain: unknown domain %q", s)
	}
	return d, nil
}

// MinisterId is a closed enumeration of the fifteen minister identities that
// can hold positions in a debate or sit on a war-mode council.
type MinisterId string

const (
	MinisterPower       MinisterId = "power"
	MinisterPsychology  MinisterId = "psychology"
	MinisterConflict    MinisterId = "conflict"
	MinisterIntelligence MinisterId = "intelligence"
	MinisterNarrative   MinisterId = "narrative"
	MinisterTiming      MinisterId = "timing"
	MinisterOptionality MinisterId = "optionality"
	MinisterTruth       MinisterId = "truth"
	MinisterRisk        MinisterId = "risk"
	MinisterLegitimacy  MinisterId = "legitimacy"
	MinisterTechnology  MinisterId = "technology"
	MinisterData        MinisterId = "data"
	MinisterOperations  MinisterId = "operations"
	MinisterDiplomacy   MinisterId = "diplomacy"
	MinisterAdaptation  MinisterId = "adaptation"
)

// AllMinisters lists every valid MinisterId in a stable order.
var AllMinisters = []MinisterId{
	MinisterPower, MinisterPsychology, MinisterConflict, MinisterIntelligence,
	MinisterNarrative, MinisterTiming, MinisterOptionality, MinisterTruth,
	MinisterRisk, MinisterLegitimacy, MinisterTechnology, MinisterData,
	MinisterOperations, MinisterDiplomacy, MinisterAdaptation,
}

func (m MinisterId) Valid() bool {
	for _, v := range AllMinisters {
		if v == m {
			return true
		}
	}
	return false
}

func (m MinisterId) String() string { return string(m) }

// ParseMinisterId validates and normalizes a string into a MinisterId.
func ParseMinisterId(s string) (MinisterId, error) {
	m := MinisterId(s)
	if !m.Valid() {
		return "", fmt.Errorf("domain: unknown minister %q", s)
	}
	return m, nil
}

// Tone is a closed enumeration of the rhetorical postures a doctrine book
// may carry, used by war-mode book-retrieval bias to favor sources
// that argue the way a war council needs them to and discount ones that
// don't.
type Tone string

const (
	ToneAggressive Tone = "aggressive"
	ToneRuthless   Tone = "ruthless"
	ToneDecisive   Tone = "decisive"
	TonePatient    Tone = "patient"
	ToneCautious   Tone = "cautious"
	TonePrincipled Tone = "principled"
	ToneDiplomatic Tone = "diplomatic"
	ToneAdaptive   Tone = "adaptive"
)

// AllTones lists every valid Tone in a stable order.
var AllTones = []Tone{
	ToneAggressive, ToneRuthless, ToneDecisive, TonePatient,
	ToneCautious, TonePrincipled, ToneDiplomatic, ToneAdaptive,
}

func (t Tone) Valid() bool {
	for _, v := range AllTones {
		if v == t {
			return true
		}
	}
	return false
}

func (t Tone) String() string { return string(t) }

// MinisterBinding scopes a minister's retrieval access: which domains it may
// query, and optionally a narrower set of book IDs within those domains.
// An empty Books means "all books in the bound domains".
type MinisterBinding struct {
	Minister MinisterId
	Domains  []Domain
	Books    []string
}

// Allows reports whether the binding grants access to the given domain.
func (b MinisterBinding) Allows(d Domain) bool {
	for _, allowed := range b.Domains {
		if allowed == d {
			return true
		}
	}
	return false
}

// AllowsBook reports whether the binding grants access to the given book,
// honoring the optional book-level scoping.
func (b MinisterBinding) AllowsBook(bookID string) bool {
	if len(b.Books) == 0 {
		return true
	}
	for _, id := range b.Books {
		if id == bookID {
			return true
		}
	}
	return false
}
