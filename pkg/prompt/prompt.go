// Package prompt turns a rendered schema and a user question into the two-part prompt used for
// SQL generation.
package prompt

import (
	"fmt"
	"strings"
)

// DefaultLimit is used when Input.Limit is not positive.
const DefaultLimit = 5

// Input holds everything Build needs.
type Input struct {
	Schema   string
	Question string
	Limit    int
	Dialect  string
	// Databases lists the configured names. With more than one, the model must prefix its
	// query with the target name.
	Databases []string
}

// Prompt is the system and human halves of a generation request.
type Prompt struct {
	System string
	Human  string
}

// Build assembles the prompt. It is pure: the same Input always yields the same Prompt.
func Build(in Input) Prompt {
	limit := in.Limit
	if limit <= 0 {
		limit = DefaultLimit
	}
	dialect := in.Dialect
	if dialect == "" {
		dialect = "sqlite"
	}

	var b strings.Builder
	b.WriteString("You are a SQL generation assistant. Your task is to generate SQL queries to answer user questions.\n")
	b.WriteString("Follow these instructions:\n\n")
	b.WriteString("1. Identify the most relevant tables in the database schema based on the user's question. Use only the tables provided in the schema.\n")
	fmt.Fprintf(&b, "2. Generate a valid SQL query using the `%s` dialect.\n", dialect)
	b.WriteString("3. Do not include any Markdown formatting such as triple backticks or tags like `sql` in the output.\n")
	fmt.Fprintf(&b, "4. Ensure the SQL query is syntactically correct and limited to %d results unless otherwise specified by the user.\n", limit)
	b.WriteString("5. Only return the SQL query.\n")
	b.WriteString("6. Only read data. Never modify the database.\n")
	if len(in.Databases) > 1 {
		fmt.Fprintf(&b, "7. Several databases are available: %s. Answer in the form <database>|<query>, for example %s|SELECT 1.\n",
			strings.Join(in.Databases, ", "), in.Databases[0])
	}
	b.WriteString("\nAdditional Information:\n")
	b.WriteString("- Common Transit Names (E101, MGrn, etc.) can be found in the routes table -> route_short_name column\n")
	b.WriteString("- Common Stop Names (Dubai Mall, MS, Dubai Studio City, etc.) can be found in the routes table -> route_long_name column\n\n")
	b.WriteString("Refrain from adding any additional information.\n")
	b.WriteString("Use the following database schema information:\n")
	b.WriteString(in.Schema)
	b.WriteString("\n\nQuestion:\n")
	b.WriteString(in.Question)

	return Prompt{
		System: b.String(),
		Human:  fmt.Sprintf("Database Schema:\n%s\n\nQuestion: %s", in.Schema, in.Question),
	}
}
