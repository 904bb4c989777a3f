package remote

import "strings"

// GraphQL documents for the remote CRM API. Every operation is typed by the
// remote entity name passed through the $type variable.
const (
	queryFetchByReference = `query FetchByReference($type: String!, $id: ID!, $space: String!) {
  entity(type: $type, id: $id, space: $space) {
    id
    revision
    created
    modified
    sales_unit
    data
  }
}`

	queryFetchMetadata = `query FetchMetadata($type: String!, $id: ID!, $space: String!) {
  entity(type: $type, id: $id, space: $space) {
    id
    revision
    created
    modified
  }
}`

	queryCountModifiedSince = `query CountModifiedSince($type: String!, $space: String!, $units: [String!], $since: Long!) {
  count(type: $type, space: $space, units: $units, sinceRevision: $since)
}`

	queryListModifiedSince = `query ListModifiedSince($type: String!, $space: String!, $units: [String!], $since: Long!, $cursor: String, $limit: Int!) {
  page(type: $type, space: $space, units: $units, sinceRevision: $since, cursor: $cursor, limit: $limit) {
    items
    nextCursor
    hasMore
  }
}`

	mutationUpsert = `mutation Upsert($type: String!, $space: String!, $origin: String!, $record: JSON!) {
  upsert(type: $type, space: $space, origin: $origin, record: $record) {
    id
    revision
    created
    modified
  }
}`
)

// remoteTypeName maps engine entity tags to the remote schema's type names.
func remoteTypeName(entityType string) string {
	switch strings.ToLower(strings.TrimSpace(entityType)) {
	case "company":
		return "Account"
	case "opportunity":
		return "Opportunity"
	case "quote":
		return "Quote"
	default:
		entityType = strings.TrimSpace(entityType)
		if entityType == "" {
			return ""
		}
		return strings.ToUpper(entityType[:1]) + entityType[1:]
	}
}
