package strategy

import (
	"context"
	"iter"

	"github.com/goliatone/go-crm-sync/core"
)

// NewOpportunityPull builds the remote -> local opportunity strategy. The
// owning account is the higher-hierarchy ancestor: it must exist locally
// before the opportunity lands, so the parents hook fetches the remote
// company record for the cascade to sync first.
func NewOpportunityPull(deps Deps) (*Pull, error) {
	return NewPull(PullConfig{
		EntityName:    core.EntityOpportunity,
		NameAttribute: "name",
		Remote:        deps.Remote,
		Local:         deps.Local,
		Links:         deps.Links,
		Matcher:       deps.Matcher,
		Logger:        deps.Logger,
		PageSize:      deps.PageSize,
		AppliesTo:     appliesToEntity(core.EntityOpportunity, "account"),
		Parents:       opportunityRemoteParents(deps.Remote),
	})
}

// NewOpportunityPush builds the local -> remote opportunity strategy. The
// local owning company must exist remotely before the opportunity is pushed.
func NewOpportunityPush(deps Deps) (*Push, error) {
	return NewPush(PushConfig{
		EntityName: core.EntityOpportunity,
		Remote:     deps.Remote,
		Local:      deps.Local,
		Links:      deps.Links,
		Logger:     deps.Logger,
		AppliesTo:  appliesToEntity(core.EntityOpportunity, "account"),
		Parents:    opportunityLocalParents(deps.Local),
	})
}

func opportunityRemoteParents(remote core.RemoteClient) ParentsFunc {
	return func(ctx context.Context, record core.Record) iter.Seq2[core.Record, error] {
		return func(yield func(core.Record, error) bool) {
			accountRef := record.String("account")
			if accountRef == "" {
				return
			}
			parent, err := remote.FetchByReference(ctx, core.EntityCompany, accountRef)
			if err != nil {
				yield(nil, err)
				return
			}
			yield(tagEntity(parent, core.EntityCompany), nil)
		}
	}
}

func opportunityLocalParents(local core.LocalStore) ParentsFunc {
	return func(ctx context.Context, record core.Record) iter.Seq2[core.Record, error] {
		return func(yield func(core.Record, error) bool) {
			companyID := record.String("company_id")
			if companyID == "" {
				return
			}
			parent, err := local.Get(ctx, core.EntityCompany, companyID)
			if err != nil {
				yield(nil, err)
				return
			}
			yield(tagEntity(parent, core.EntityCompany), nil)
		}
	}
}

// tagEntity stamps the entity tag so registry dispatch does not depend on
// shape probing for cascade ancestors.
func tagEntity(record core.Record, entityName string) core.Record {
	if record.String(attrEntityTag) != "" {
		return record
	}
	tagged := record.Clone()
	tagged[attrEntityTag] = entityName
	return tagged
}
