package pipeline

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"hoppscotch-backup/internal/graphql"
)

const introspectionBody = `{"data":{"__schema":{
	"queryType":{"name":"Query"},
	"mutationType":null,
	"types":[{
		"kind":"OBJECT",
		"name":"Query",
		"fields":[{
			"name":"exportCollectionsToJSON",
			"args":[{"name":"teamID","type":{"kind":"NON_NULL","name":null,"ofType":{"kind":"SCALAR","name":"ID"}}}],
			"type":{"kind":"SCALAR","name":"String"}
		}]
	}]
}}}`

func TestExploreWritesSchemaFile(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(introspectionBody))
	}))
	defer srv.Close()

	repoDir := t.TempDir()
	client := graphql.NewClient(srv.URL, "token", 5*time.Second)
	explorer := NewSchemaExplorer(client, repoDir)

	if err := explorer.Explore(context.Background()); err != nil {
		t.Fatalf("Explore() error = %v", err)
	}

	data, err := os.ReadFile(filepath.Join(repoDir, SchemaFileName))
	if err != nil {
		t.Fatalf("schema file missing: %v", err)
	}
	var decoded map[string]interface{}
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("schema file is not valid JSON: %v", err)
	}
	if _, ok := decoded["__schema"]; !ok {
		t.Error("schema file should contain the __schema payload")
	}
}

func TestExploreFailsOnGraphQLErrors(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"errors":[{"message":"introspection disabled"}]}`))
	}))
	defer srv.Close()

	repoDir := t.TempDir()
	explorer := NewSchemaExplorer(graphql.NewClient(srv.URL, "t", 5*time.Second), repoDir)
	if err := explorer.Explore(context.Background()); err == nil {
		t.Fatal("Explore() should fail on GraphQL errors")
	}
	if _, err := os.Stat(filepath.Join(repoDir, SchemaFileName)); !os.IsNotExist(err) {
		t.Error("no schema file may be written on failure")
	}
}
