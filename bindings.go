package counsel

import "github.com/counselengine/counsel/domain"

// DefaultBindings returns the fixed MinisterId -> domain ACL used at
// runtime. Every minister is bound to the domains it is the natural
// advisor for, plus its own like-named domain where one exists. Truth
// and Risk are bound to every domain since both cross-check the whole
// council rather than owning a slice of doctrine.
func DefaultBindings() map[domain.MinisterId]domain.MinisterBinding {
	all := append([]domain.Domain{}, domain.AllDomains...)

	bindings := map[domain.MinisterId][]domain.Domain{
		domain.MinisterTruth:        all,
		domain.MinisterRisk:         all,
		domain.MinisterPower:        {domain.DomainPower, domain.DomainLeadership, domain.DomainOrganization},
		domain.MinisterPsychology:   {domain.DomainPsychology, domain.DomainDeception},
		domain.MinisterConflict:     {domain.DomainConflict, domain.DomainPower},
		domain.MinisterIntelligence: {domain.DomainIntelligence, domain.DomainDeception, domain.DomainResources},
		domain.MinisterNarrative:    {domain.DomainPsychology, domain.DomainDeception, domain.DomainDiplomacy},
		domain.MinisterTiming:       {domain.DomainTiming, domain.DomainAdaptation},
		domain.MinisterOptionality:  {domain.DomainTiming, domain.DomainAdaptation, domain.DomainRisk},
		domain.MinisterLegitimacy:   {domain.DomainLaw, domain.DomainDiplomacy, domain.DomainMorality},
		domain.MinisterTechnology:   {domain.DomainResources, domain.DomainOrganization},
		domain.MinisterData:         {domain.DomainIntelligence, domain.DomainResources},
		domain.MinisterOperations:   {domain.DomainConflict, domain.DomainResources, domain.DomainOrganization},
		domain.MinisterDiplomacy:    {domain.DomainDiplomacy, domain.DomainLaw},
		domain.MinisterAdaptation:   {domain.DomainAdaptation, domain.DomainTiming},
	}

	out := make(map[domain.MinisterId]domain.MinisterBinding, len(bindings))
	for m, domains := range bindings {
		out[m] = domain.MinisterBinding{Minister: m, Domains: domains}
	}
	return out
}
