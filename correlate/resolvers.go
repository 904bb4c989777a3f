package correlate

import (
	"strings"

	"github.com/goliatone/go-crm-sync/core"
)

// Resolver is one correlation heuristic in the chain.
type Resolver interface {
	Name() string
	CanResolveFor(strategyKey string) bool
	Matches(item Item, another Item) (bool, error)
}

// NameResolver is the generic heuristic: two records correlate when their
// normalized name attribute matches. Applies to every strategy unless scoped
// to explicit keys.
type NameResolver struct {
	Attribute    string
	StrategyKeys []string
}

func (NameResolver) Name() string { return "name" }

func (r NameResolver) CanResolveFor(strategyKey string) bool {
	return keyInScope(strategyKey, r.StrategyKeys)
}

func (r NameResolver) Matches(item Item, another Item) (bool, error) {
	return attrsEqual(item, another, r.attribute())
}

func (r NameResolver) attribute() string {
	if attr := strings.TrimSpace(r.Attribute); attr != "" {
		return attr
	}
	return "name"
}

// OpportunityResolver requires the owning account to match in addition to
// the name, so two same-named opportunities under different accounts never
// merge.
type OpportunityResolver struct{}

func (OpportunityResolver) Name() string { return "opportunity" }

func (OpportunityResolver) CanResolveFor(strategyKey string) bool {
	return strings.EqualFold(strings.TrimSpace(strategyKey), core.EntityOpportunity)
}

func (OpportunityResolver) Matches(item Item, another Item) (bool, error) {
	if err := AssertAttributes(item, another, "name", "account"); err != nil {
		return false, err
	}
	sameAccount, err := attrsEqual(item, another, "account")
	if err != nil {
		return false, err
	}
	if !sameAccount {
		return false, nil
	}
	return attrsEqual(item, another, "name")
}

// CompanyResolver compares the normalized registration identifier in
// addition to the name.
type CompanyResolver struct{}

func (CompanyResolver) Name() string { return "company" }

func (CompanyResolver) CanResolveFor(strategyKey string) bool {
	return strings.EqualFold(strings.TrimSpace(strategyKey), core.EntityCompany)
}

func (CompanyResolver) Matches(item Item, another Item) (bool, error) {
	if err := AssertAttributes(item, another, "name", "registration_number"); err != nil {
		return false, err
	}
	sameName, err := attrsEqual(item, another, "name")
	if err != nil {
		return false, err
	}
	if !sameName {
		return false, nil
	}
	return attrsEqual(item, another, "registration_number")
}

func keyInScope(strategyKey string, scope []string) bool {
	if len(scope) == 0 {
		return true
	}
	strategyKey = strings.TrimSpace(strategyKey)
	for _, key := range scope {
		if strings.EqualFold(strings.TrimSpace(key), strategyKey) {
			return true
		}
	}
	return false
}
