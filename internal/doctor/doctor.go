// Package doctor provides health checks for a pgnest schema and the
// database it maps.
//
// The doctor command validates that the schema file parses, that every
// relation and named query compiles, and that the tables and columns the
// models declare exist with compatible types.
//
// Example usage:
//
//	d := doctor.New(db, "pgnest.schema.yaml")
//	report, err := d.Run(ctx)
//	if err != nil {
//		log.Fatal(err)
//	}
//	report.Print(os.Stdout, true)
//	if err := report.Err(); err != nil {
//		log.Fatal(err)
//	}
package doctor

import (
	"context"
	"fmt"
	"io"
	"os"
	"slices"
	"sort"
	"strings"

	"github.com/realityu/pgnest"
	"github.com/realityu/pgnest/pkg/executor"
	"github.com/realityu/pgnest/pkg/query"
	"github.com/realityu/pgnest/pkg/schema"
)

// Status is the outcome of one check.
type Status int

const (
	StatusPass Status = iota
	// StatusWarn marks something statements survive but may get wrong,
	// such as bigint values losing precision.
	StatusWarn
	// StatusFail marks something that makes pgnest statements fail.
	StatusFail
)

func (s Status) String() string {
	switch s {
	case StatusPass:
		return "ok"
	case StatusWarn:
		return "warn"
	case StatusFail:
		return "FAIL"
	default:
		return "?"
	}
}

// Area is the layer a check inspects. Reports list areas from the schema
// file down to single columns, so the first failure shown is the one the
// later ones depend on.
type Area int

const (
	AreaSchema Area = iota
	AreaRelations
	AreaQueries
	AreaDatabase
	AreaTables
	AreaColumns
)

var areaTitles = map[Area]string{
	AreaSchema:    "Schema file",
	AreaRelations: "Relations",
	AreaQueries:   "Named queries",
	AreaDatabase:  "Database",
	AreaTables:    "Tables",
	AreaColumns:   "Columns",
}

func (a Area) String() string {
	if t, ok := areaTitles[a]; ok {
		return t
	}
	return fmt.Sprintf("Area(%d)", int(a))
}

// CheckResult is the outcome of one check.
type CheckResult struct {
	Area    Area
	Name    string
	Status  Status
	Message string
	// Details names the offending models, relations, tables or columns,
	// one per line.
	Details string
	FixHint string
}

// Report collects the check results for one schema file.
type Report struct {
	SchemaPath string
	Checks     []CheckResult

	Passed   int
	Warnings int
	Errors   int
}

// AddCheck records a result and updates the counts.
func (r *Report) AddCheck(check CheckResult) {
	r.Checks = append(r.Checks, check)
	switch check.Status {
	case StatusPass:
		r.Passed++
	case StatusWarn:
		r.Warnings++
	case StatusFail:
		r.Errors++
	}
}

// Print writes the report grouped by area. Details of checks that did not
// pass are always listed; passing details only when verbose.
func (r *Report) Print(w io.Writer, verbose bool) {
	checks := slices.Clone(r.Checks)
	slices.SortStableFunc(checks, func(a, b CheckResult) int { return int(a.Area) - int(b.Area) })

	area := Area(-1)
	for _, check := range checks {
		if check.Area != area {
			area = check.Area
			if area == AreaSchema && r.SchemaPath != "" {
				_, _ = fmt.Fprintf(w, "\n%s (%s)\n", area, r.SchemaPath)
			} else {
				_, _ = fmt.Fprintf(w, "\n%s\n", area)
			}
		}
		_, _ = fmt.Fprintf(w, "  %-4s %s\n", check.Status, check.Message)
		if check.Details != "" && (verbose || check.Status != StatusPass) {
			for _, line := range strings.Split(check.Details, "\n") {
				_, _ = fmt.Fprintf(w, "         %s\n", line)
			}
		}
		if check.Status != StatusPass && check.FixHint != "" {
			_, _ = fmt.Fprintf(w, "         fix: %s\n", check.FixHint)
		}
	}

	_, _ = fmt.Fprintf(w, "\n%d passed, %d warnings, %d failed\n", r.Passed, r.Warnings, r.Errors)
}

// HasErrors reports whether any check failed.
func (r *Report) HasErrors() bool {
	return r.Errors > 0
}

// Err summarizes the failed checks, or returns nil when none failed.
func (r *Report) Err() error {
	if r.Errors == 0 {
		return nil
	}
	var failed []string
	for _, c := range r.Checks {
		if c.Status == StatusFail {
			failed = append(failed, fmt.Sprintf("%s: %s", c.Area, c.Message))
		}
	}
	return fmt.Errorf("%d checks failed: %s", r.Errors, strings.Join(failed, "; "))
}

// Doctor performs health checks on a schema file and its database.
type Doctor struct {
	db         executor.Querier
	schemaPath string

	// Cached data from checks (populated during Run)
	schema   *schema.Schema
	registry *pgnest.Registry
	tables   map[string]map[string]string
}

// New creates a new Doctor instance. A nil db skips the database checks.
func New(db executor.Querier, schemaPath string) *Doctor {
	return &Doctor{
		db:         db,
		schemaPath: schemaPath,
	}
}

// Run executes all health checks and returns a report.
func (d *Doctor) Run(ctx context.Context) (*Report, error) {
	report := &Report{SchemaPath: d.schemaPath}

	// Run checks in order, building up cached data
	d.checkSchemaFile(report)
	if d.registry == nil {
		return report, nil
	}
	d.checkRelations(report)
	d.checkQueries(report)

	if d.db == nil {
		report.AddCheck(CheckResult{
			Area:    AreaDatabase,
			Name:    "connection",
			Status:  StatusWarn,
			Message: "No database configured, skipping table checks",
			FixHint: "Set database.url in pgnest.yaml or PGNEST_DATABASE_URL",
		})
		return report, nil
	}
	if !d.checkConnection(ctx, report) {
		return report, nil
	}
	if err := d.checkTables(ctx, report); err != nil {
		return nil, fmt.Errorf("checking tables: %w", err)
	}
	d.checkColumns(report)

	return report, nil
}

// checkSchemaFile validates the schema file exists and registers.
func (d *Doctor) checkSchemaFile(report *Report) {
	if _, err := os.Stat(d.schemaPath); err != nil {
		report.AddCheck(CheckResult{
			Area:    AreaSchema,
			Name:    "exists",
			Status:  StatusFail,
			Message: fmt.Sprintf("Schema file not found at %s", d.schemaPath),
			FixHint: "Create a schema file or set schema in pgnest.yaml",
		})
		return
	}

	report.AddCheck(CheckResult{
		Area:    AreaSchema,
		Name:    "exists",
		Status:  StatusPass,
		Message: fmt.Sprintf("Schema file exists at %s", d.schemaPath),
	})

	s, err := schema.Load(d.schemaPath)
	if err != nil {
		report.AddCheck(CheckResult{
			Area:    AreaSchema,
			Name:    "valid",
			Status:  StatusFail,
			Message: "Schema has syntax errors",
			Details: err.Error(),
			FixHint: "Run 'pgnest validate' to see detailed errors",
		})
		return
	}

	// The registry only compiles; statements go through d.db directly.
	r := pgnest.NewRegistry(nil)
	if err := r.Register(s.Definitions...); err != nil {
		report.AddCheck(CheckResult{
			Area:    AreaSchema,
			Name:    "valid",
			Status:  StatusFail,
			Message: "Models do not register",
			Details: err.Error(),
			FixHint: "Check model names, tables and relation targets",
		})
		return
	}

	d.schema = s
	d.registry = r

	relationCount := 0
	for _, name := range r.Names() {
		relationCount += len(r.MustModel(name).Relations())
	}

	report.AddCheck(CheckResult{
		Area:    AreaSchema,
		Name:    "valid",
		Status:  StatusPass,
		Message: fmt.Sprintf("Schema is valid (%d models, %d relations, %d queries)", len(r.Names()), relationCount, len(s.QueryNames())),
	})
}

// checkRelations compiles every relation on its own, which also detects
// cycles in nested relation names.
func (d *Doctor) checkRelations(report *Report) {
	var failures []string
	for _, name := range d.registry.Names() {
		m := d.registry.MustModel(name)
		for _, rel := range m.Relations() {
			b, err := m.Relation(rel)
			if err == nil {
				_, err = query.CompileJoin(b.Descriptor(), d.registry)
			}
			if err != nil {
				failures = append(failures, fmt.Sprintf("%s.%s: %v", name, rel, err))
			}
		}
	}

	if len(failures) > 0 {
		report.AddCheck(CheckResult{
			Area:    AreaRelations,
			Name:    "compile",
			Status:  StatusFail,
			Message: fmt.Sprintf("%d relations do not compile", len(failures)),
			Details: strings.Join(failures, "\n"),
			FixHint: "Review relation keys and nested join names for cycles",
		})
		return
	}

	report.AddCheck(CheckResult{
		Area:    AreaRelations,
		Name:    "compile",
		Status:  StatusPass,
		Message: "All relations compile",
	})
}

// checkQueries compiles every named query.
func (d *Doctor) checkQueries(report *Report) {
	names := d.schema.QueryNames()
	if len(names) == 0 {
		return
	}

	var failures []string
	for _, name := range names {
		q, _ := d.schema.Query(name)
		b, err := q.Builder(d.registry)
		if err == nil {
			_, err = b.SQL()
		}
		if err != nil {
			failures = append(failures, fmt.Sprintf("%s: %v", name, err))
		}
	}

	if len(failures) > 0 {
		report.AddCheck(CheckResult{
			Area:    AreaQueries,
			Name:    "compile",
			Status:  StatusFail,
			Message: fmt.Sprintf("%d of %d named queries do not compile", len(failures), len(names)),
			Details: strings.Join(failures, "\n"),
			FixHint: "Run 'pgnest compile <query>' to inspect a query",
		})
		return
	}

	report.AddCheck(CheckResult{
		Area:    AreaQueries,
		Name:    "compile",
		Status:  StatusPass,
		Message: fmt.Sprintf("All %d named queries compile", len(names)),
	})
}

// checkConnection runs a trivial statement against the database.
func (d *Doctor) checkConnection(ctx context.Context, report *Report) bool {
	if _, err := d.db.Query(ctx, "SELECT 1;", nil); err != nil {
		report.AddCheck(CheckResult{
			Area:    AreaDatabase,
			Name:    "connection",
			Status:  StatusFail,
			Message: "Cannot reach the database",
			Details: err.Error(),
			FixHint: "Check database settings with 'pgnest config show'",
		})
		return false
	}
	report.AddCheck(CheckResult{
		Area:    AreaDatabase,
		Name:    "connection",
		Status:  StatusPass,
		Message: "Database is reachable",
	})
	return true
}

const columnsQuery = `SELECT table_name::text AS table_name, column_name::text AS column_name, data_type::text AS data_type ` +
	`FROM information_schema.columns ` +
	`WHERE table_schema = current_schema() AND table_name IN (${tables:list}) ` +
	`ORDER BY table_name, ordinal_position;`

// checkTables verifies every model and pivot table exists.
func (d *Doctor) checkTables(ctx context.Context, report *Report) error {
	wanted := d.wantedTables()
	rows, err := d.db.Query(ctx, columnsQuery, executor.Params{"tables": wanted})
	if err != nil {
		return err
	}

	d.tables = make(map[string]map[string]string)
	for _, row := range rows {
		table, _ := row["table_name"].(string)
		column, _ := row["column_name"].(string)
		dataType, _ := row["data_type"].(string)
		if d.tables[table] == nil {
			d.tables[table] = make(map[string]string)
		}
		d.tables[table][column] = dataType
	}

	var missing []string
	for _, t := range wanted {
		if _, ok := d.tables[t]; !ok {
			missing = append(missing, t)
		}
	}

	if len(missing) > 0 {
		report.AddCheck(CheckResult{
			Area:    AreaTables,
			Name:    "exist",
			Status:  StatusFail,
			Message: fmt.Sprintf("%d of %d tables are missing", len(missing), len(wanted)),
			Details: strings.Join(missing, "\n"),
			FixHint: "Create the tables or fix the table names in the schema",
		})
		return nil
	}

	report.AddCheck(CheckResult{
		Area:    AreaTables,
		Name:    "exist",
		Status:  StatusPass,
		Message: fmt.Sprintf("All %d tables exist", len(wanted)),
	})
	return nil
}

// wantedTables lists model tables and pivot tables, sorted.
func (d *Doctor) wantedTables() []string {
	set := make(map[string]bool)
	for _, def := range d.schema.Definitions {
		set[def.Table] = true
		for _, rel := range def.Relations {
			if rel.ThroughTable != "" {
				set[rel.ThroughTable] = true
			}
		}
	}
	out := make([]string, 0, len(set))
	for t := range set {
		out = append(out, t)
	}
	sort.Strings(out)
	return out
}

// compatible lists the data_type values each declared type accepts.
// String columns accept anything.
var compatible = map[query.ColumnType][]string{
	query.Bigint: {"bigint"},
	query.Number: {"smallint", "integer", "numeric", "real", "double precision"},
	query.JSON:   {"json", "jsonb"},
}

// checkColumns verifies declared columns exist with compatible types.
func (d *Doctor) checkColumns(report *Report) {
	var missing, mismatched []string
	for _, def := range d.schema.Definitions {
		cols, ok := d.tables[def.Table]
		if !ok {
			continue
		}
		for _, f := range def.Fields {
			dataType, ok := cols[f.Name]
			if !ok {
				missing = append(missing, def.Table+"."+f.Name)
				continue
			}
			if accepted, ok := compatible[f.Type]; ok && !contains(accepted, dataType) {
				mismatched = append(mismatched, fmt.Sprintf("%s.%s declared %s, database has %s", def.Table, f.Name, f.Type, dataType))
			}
		}
	}

	switch {
	case len(missing) > 0:
		report.AddCheck(CheckResult{
			Area:    AreaColumns,
			Name:    "exist",
			Status:  StatusFail,
			Message: fmt.Sprintf("%d declared columns are missing", len(missing)),
			Details: strings.Join(missing, "\n"),
			FixHint: "Remove the fields from the schema or add the columns",
		})
	default:
		report.AddCheck(CheckResult{
			Area:    AreaColumns,
			Name:    "exist",
			Status:  StatusPass,
			Message: "All declared columns exist",
		})
	}

	if len(mismatched) > 0 {
		report.AddCheck(CheckResult{
			Area:    AreaColumns,
			Name:    "types",
			Status:  StatusWarn,
			Message: fmt.Sprintf("%d columns have unexpected types", len(mismatched)),
			Details: strings.Join(mismatched, "\n"),
			FixHint: "Declare 64-bit integer columns as bigint to keep their precision",
		})
		return
	}
	report.AddCheck(CheckResult{
		Area:    AreaColumns,
		Name:    "types",
		Status:  StatusPass,
		Message: "Declared column types match the database",
	})
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
