package suggest

import (
	"context"
	"strings"

	"github.com/entl/dbdeck/internal/registry"
)

// TemplateProvider suggests canned SQL statements appropriate to the
// service's engine.
type TemplateProvider struct{}

// NewTemplateProvider creates a template suggestion provider.
func NewTemplateProvider() *TemplateProvider {
	return &TemplateProvider{}
}

// Name returns the provider name.
func (p *TemplateProvider) Name() string {
	return "template"
}

// genericTemplates apply to every database kind.
var genericTemplates = []string{
	"SELECT * FROM table_name LIMIT 10;",
	"SELECT COUNT(*) FROM table_name;",
	"SELECT * FROM table_name WHERE column = 'value';",
	"SELECT * FROM table_name ORDER BY column DESC;",
	"SELECT column, COUNT(*) FROM table_name GROUP BY column;",
	"SELECT * FROM table1 t1 JOIN table2 t2 ON t1.id = t2.table1_id;",
}

// kindTemplates hold engine-specific statements, including the table
// listing and describe forms each engine expects.
var kindTemplates = map[registry.Kind][]string{
	registry.KindMySQL: {
		"SHOW TABLES;",
		"SHOW DATABASES;",
		"DESCRIBE table_name;",
		"SHOW STATUS;",
		"SHOW PROCESSLIST;",
		"SHOW INDEX FROM table_name;",
		"SHOW VARIABLES LIKE '%buffer%';",
		"SHOW TABLE STATUS;",
		"SELECT User, Host FROM mysql.user;",
	},
	registry.KindPostgres: {
		"SELECT tablename FROM pg_tables WHERE schemaname = 'public';",
		"SELECT schema_name FROM information_schema.schemata;",
		"SELECT * FROM pg_stat_database;",
		"SELECT * FROM pg_stat_activity;",
		"SELECT * FROM pg_indexes WHERE tablename = 'table_name';",
		"SELECT usename, usesuper FROM pg_user;",
		"SELECT pg_size_pretty(pg_total_relation_size('table_name'));",
	},
	registry.KindSQLite: {
		"SELECT name FROM sqlite_master WHERE type='table';",
		"PRAGMA table_info(table_name);",
		"PRAGMA database_list;",
		"PRAGMA index_list(table_name);",
		"SELECT sql FROM sqlite_master WHERE type='table';",
		"SELECT sqlite_version();",
		"PRAGMA foreign_key_list(table_name);",
	},
}

// Suggestions returns template statements matching the input prefix. An
// empty input returns the full set for the service's kind.
func (p *TemplateProvider) Suggestions(_ context.Context, svc registry.Descriptor, input string) ([]Suggestion, error) {
	templates := append([]string{}, genericTemplates...)
	templates = append(templates, kindTemplates[svc.Kind]...)

	lowerInput := strings.ToLower(input)
	var suggestions []Suggestion

	for _, tmpl := range templates {
		if !strings.HasPrefix(strings.ToLower(tmpl), lowerInput) || tmpl == input {
			continue
		}

		// Score by how much of the template is already typed; templates
		// rank below history matches.
		score := 0.5
		if lowerInput != "" {
			score = float64(len(lowerInput)) / float64(len(tmpl)) * 0.5
		}

		suggestions = append(suggestions, Suggestion{
			Text:   tmpl,
			Source: "template",
			Score:  score,
		})
	}

	return suggestions, nil
}
