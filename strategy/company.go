package strategy

import (
	"github.com/goliatone/go-crm-sync/core"
)

// Deps carries the collaborators shared by every concrete strategy.
type Deps struct {
	Remote   core.RemoteClient
	Local    core.LocalStore
	Links    core.LinkedEntityStore
	Matcher  core.CorrelationMatcher
	Logger   core.Logger
	PageSize int
}

// NewCompanyPull builds the remote -> local company strategy. Untagged
// records are claimed by shape when they carry a registration number.
func NewCompanyPull(deps Deps) (*Pull, error) {
	return NewPull(PullConfig{
		EntityName:    core.EntityCompany,
		NameAttribute: "name",
		Remote:        deps.Remote,
		Local:         deps.Local,
		Links:         deps.Links,
		Matcher:       deps.Matcher,
		Logger:        deps.Logger,
		PageSize:      deps.PageSize,
		AppliesTo:     appliesToEntity(core.EntityCompany, "registration_number"),
	})
}

// NewCompanyPush builds the local -> remote company strategy. Companies sit
// at the top of the hierarchy and have no ancestors.
func NewCompanyPush(deps Deps) (*Push, error) {
	return NewPush(PushConfig{
		EntityName: core.EntityCompany,
		Remote:     deps.Remote,
		Local:      deps.Local,
		Links:      deps.Links,
		Logger:     deps.Logger,
		AppliesTo:  appliesToEntity(core.EntityCompany, "registration_number"),
	})
}
