package prompt

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

const routesSchema = "Database: merged_gtfs\nTable: routes\nroute_short_name: TEXT\nroute_long_name: TEXT"

func TestBuild_EmbedsSchemaAndQuestion(t *testing.T) {
	p := Build(Input{
		Schema:   routesSchema,
		Question: "Which routes serve Dubai Mall?",
		Limit:    3,
		Dialect:  "sqlite",
	})

	for _, half := range []string{p.System, p.Human} {
		assert.Contains(t, half, routesSchema)
		assert.Contains(t, half, "Which routes serve Dubai Mall?")
	}
	assert.Equal(t, "Database Schema:\n"+routesSchema+"\n\nQuestion: Which routes serve Dubai Mall?", p.Human)
	assert.Contains(t, p.System, "limited to 3 results")
	assert.Contains(t, p.System, "`sqlite` dialect")
	assert.Contains(t, p.System, "route_short_name")
	assert.NotContains(t, p.System, "<database>|<query>")
}

func TestBuild_Defaults(t *testing.T) {
	p := Build(Input{Schema: routesSchema, Question: "q"})
	assert.Contains(t, p.System, "limited to 5 results")
	assert.Contains(t, p.System, "`sqlite` dialect")
}

func TestBuild_MultipleDatabases(t *testing.T) {
	p := Build(Input{
		Schema:    routesSchema,
		Question:  "q",
		Dialect:   "postgres",
		Databases: []string{"dubai", "abudhabi"},
	})
	assert.Contains(t, p.System, "dubai, abudhabi")
	assert.Contains(t, p.System, "<database>|<query>")
	assert.Contains(t, p.System, "dubai|SELECT 1")
}

func TestBuild_Pure(t *testing.T) {
	in := Input{Schema: routesSchema, Question: "q", Limit: 7, Databases: []string{"a", "b"}}
	assert.Equal(t, Build(in), Build(in))
}
