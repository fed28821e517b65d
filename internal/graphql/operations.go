package graphql

// Operations consumed from the Hoppscotch backend. The export query
// returns a JSON-encoded string, not a JSON value; see the exporter
// for the second decoding pass.

const (
	OpMyTeams = "GetMyTeams"

	QueryMyTeams = `query GetMyTeams {
  myTeams {
    id
    name
  }
}`

	OpExportCollections = "ExportCollectionsToJSON"

	QueryExportCollections = `query ExportCollectionsToJSON($teamID: ID!) {
  exportCollectionsToJSON(teamID: $teamID)
}`

	OpIntrospection = "IntrospectionQuery"

	// QueryIntrospection is the subset of the standard introspection
	// query this tool needs: enough to list top-level query operations
	// and their argument types.
	QueryIntrospection = `query IntrospectionQuery {
  __schema {
    queryType { name }
    mutationType { name }
    types {
      kind
      name
      fields(includeDeprecated: false) {
        name
        args {
          name
          type { ...TypeRef }
        }
        type { ...TypeRef }
      }
    }
  }
}
fragment TypeRef on __Type {
  kind
  name
  ofType {
    kind
    name
    ofType {
      kind
      name
      ofType { kind name }
    }
  }
}`
)

// Team is one entry of the myTeams list.
type Team struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// MyTeamsData is the data shape of the team-list query.
type MyTeamsData struct {
	MyTeams []Team `json:"myTeams"`
}

// ExportData is the data shape of the bulk export query. The field is
// a string containing serialized JSON.
type ExportData struct {
	ExportCollectionsToJSON string `json:"exportCollectionsToJSON"`
}

// Introspection result types, trimmed to what the schema summary
// needs.

type IntrospectionData struct {
	Schema IntrospectionSchema `json:"__schema"`
}

type IntrospectionSchema struct {
	QueryType    *NamedType          `json:"queryType"`
	MutationType *NamedType          `json:"mutationType"`
	Types        []IntrospectionType `json:"types"`
}

type NamedType struct {
	Name string `json:"name"`
}

type IntrospectionType struct {
	Kind   string               `json:"kind"`
	Name   string               `json:"name"`
	Fields []IntrospectionField `json:"fields"`
}

type IntrospectionField struct {
	Name string             `json:"name"`
	Args []IntrospectionArg `json:"args"`
	Type TypeRef            `json:"type"`
}

type IntrospectionArg struct {
	Name string  `json:"name"`
	Type TypeRef `json:"type"`
}

// TypeRef is a possibly-wrapped type reference (NON_NULL / LIST).
type TypeRef struct {
	Kind   string   `json:"kind"`
	Name   string   `json:"name"`
	OfType *TypeRef `json:"ofType"`
}

// String renders the reference in SDL notation, e.g. "[Team!]!".
func (t TypeRef) String() string {
	switch t.Kind {
	case "NON_NULL":
		if t.OfType != nil {
			return t.OfType.String() + "!"
		}
		return "!"
	case "LIST":
		if t.OfType != nil {
			return "[" + t.OfType.String() + "]"
		}
		return "[]"
	default:
		return t.Name
	}
}
