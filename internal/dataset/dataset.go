// Package dataset loads and audits the wine measurements table.
// The source file is headerless and delimited: one integer cultivar label
// followed by 13 numeric measurements per row. Loading applies the schema,
// auditing reports null cells and duplicate rows, and preparation hands
// clean rows to feature assembly.
package dataset

import (
	"errors"
	"fmt"
	"math"
	"os"
	"sort"
	"strings"

	"github.com/go-gota/gota/dataframe"
	"github.com/go-gota/gota/series"
	"github.com/rs/zerolog/log"
)

// RawColumns is the schema applied to the headerless source file, in file
// order. The label arrives as "class" and is renamed by the pipeline.
var RawColumns = []string{
	"class",
	"alcohol",
	"malic_acid",
	"ash",
	"alcalinity_of_ash",
	"magnesium",
	"total_phenols",
	"flavanoids",
	"nonflavanoid_phenols",
	"proanthocyanins",
	"color_intensity",
	"hue",
	"od280_od315",
	"proline",
}

// FeatureColumns is RawColumns without the label.
var FeatureColumns = RawColumns[1:]

// ErrRowCountMismatch reports a deduplication pass whose before/after row
// counts do not reconcile with the number of duplicates found.
var ErrRowCountMismatch = errors.New("dataset: row count mismatch after deduplication")

// Table wraps a loaded dataframe together with the name of its label column.
type Table struct {
	df    dataframe.DataFrame
	label string
}

// Load reads a headerless delimited file and applies the raw schema.
func Load(path string, delimiter rune) (*Table, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open dataset %s: %w", path, err)
	}
	defer f.Close()

	df := dataframe.ReadCSV(f,
		dataframe.HasHeader(false),
		dataframe.Names(RawColumns...),
		dataframe.WithDelimiter(delimiter),
		dataframe.DefaultType(series.Float),
	)
	if df.Err != nil {
		return nil, fmt.Errorf("failed to parse dataset %s: %w", path, df.Err)
	}
	if df.Ncol() != len(RawColumns) {
		return nil, fmt.Errorf("dataset %s: expected %d columns, got %d", path, len(RawColumns), df.Ncol())
	}

	log.Info().Str("path", path).Int("rows", df.Nrow()).Int("cols", df.Ncol()).Msg("dataset loaded")
	return &Table{df: df, label: "class"}, nil
}

// Rows returns the number of data rows.
func (t *Table) Rows() int { return t.df.Nrow() }

// Columns returns the current column names.
func (t *Table) Columns() []string { return t.df.Names() }

// Label returns the current label column name.
func (t *Table) Label() string { return t.label }

// RenameLabel renames the label column, mirroring the original rename of
// "class" to a domain name.
func (t *Table) RenameLabel(name string) error {
	renamed := t.df.Rename(name, t.label)
	if renamed.Err != nil {
		return fmt.Errorf("failed to rename %s to %s: %w", t.label, name, renamed.Err)
	}
	t.df = renamed
	t.label = name
	return nil
}

// AuditReport summarizes data-quality findings for a table.
type AuditReport struct {
	Rows          int            `json:"rows"`
	NullCells     map[string]int `json:"nullCells"`
	TotalNulls    int            `json:"totalNulls"`
	DuplicateRows int            `json:"duplicateRows"`
	Classes       []string       `json:"classes"`
}

// Audit counts NaN cells per column, duplicate rows, and distinct classes.
func (t *Table) Audit() AuditReport {
	report := AuditReport{
		Rows:      t.df.Nrow(),
		NullCells: make(map[string]int),
	}

	for _, name := range t.df.Names() {
		col := t.df.Col(name)
		nulls := 0
		for _, v := range col.Float() {
			if math.IsNaN(v) {
				nulls++
			}
		}
		if nulls > 0 {
			report.NullCells[name] = nulls
			report.TotalNulls += nulls
		}
	}

	seen := make(map[string]bool)
	for _, row := range t.dataRecords() {
		key := strings.Join(row, "\x1f")
		if seen[key] {
			report.DuplicateRows++
		}
		seen[key] = true
	}

	classes := make(map[string]bool)
	for _, v := range t.df.Col(t.label).Float() {
		if !math.IsNaN(v) {
			classes[className(t.label, v)] = true
		}
	}
	for c := range classes {
		report.Classes = append(report.Classes, c)
	}
	sort.Strings(report.Classes)

	return report
}

// Deduplicate returns a copy of the table with exact duplicate rows removed.
// The removed count must reconcile with the before/after row counts; a
// mismatch returns ErrRowCountMismatch.
func (t *Table) Deduplicate() (*Table, int, error) {
	records := t.dataRecords()
	seen := make(map[string]bool)
	kept := [][]string{t.df.Names()}
	removed := 0
	for _, row := range records {
		key := strings.Join(row, "\x1f")
		if seen[key] {
			removed++
			continue
		}
		seen[key] = true
		kept = append(kept, row)
	}

	df := dataframe.LoadRecords(kept,
		dataframe.HasHeader(true),
		dataframe.DefaultType(series.Float),
	)
	if df.Err != nil {
		return nil, 0, fmt.Errorf("failed to rebuild deduplicated table: %w", df.Err)
	}
	if df.Nrow()+removed != t.df.Nrow() {
		return nil, 0, fmt.Errorf("%w: %d before, %d after, %d removed",
			ErrRowCountMismatch, t.df.Nrow(), df.Nrow(), removed)
	}

	if removed > 0 {
		log.Warn().Int("removed", removed).Int("rows", df.Nrow()).Msg("duplicate rows dropped")
	}
	return &Table{df: df, label: t.label}, removed, nil
}

// ClassMeans groups by the label column and averages the given feature
// columns, the per-class aggregation the analysis prints.
func (t *Table) ClassMeans(features ...string) (dataframe.DataFrame, error) {
	if len(features) == 0 {
		features = t.featureNames()
	}
	for _, f := range features {
		if !t.hasColumn(f) {
			return dataframe.DataFrame{}, fmt.Errorf("unknown feature column %q", f)
		}
	}

	types := make([]dataframe.AggregationType, len(features))
	for i := range types {
		types[i] = dataframe.Aggregation_MEAN
	}
	grouped := t.df.GroupBy(t.label)
	if grouped.Err != nil {
		return dataframe.DataFrame{}, fmt.Errorf("group by %s failed: %w", t.label, grouped.Err)
	}
	agg := grouped.Aggregation(types, features)
	if agg.Err != nil {
		return dataframe.DataFrame{}, fmt.Errorf("aggregation failed: %w", agg.Err)
	}
	sorted := agg.Arrange(dataframe.Sort(t.label))
	if sorted.Err != nil {
		return dataframe.DataFrame{}, fmt.Errorf("sort failed: %w", sorted.Err)
	}
	return sorted, nil
}

// Describe returns summary statistics for every column.
func (t *Table) Describe() dataframe.DataFrame {
	return t.df.Describe()
}

// FilterClass returns only the rows with the given numeric label value.
func (t *Table) FilterClass(value int) (*Table, error) {
	filtered := t.df.Filter(dataframe.F{
		Colname:    t.label,
		Comparator: series.Eq,
		Comparando: value,
	})
	if filtered.Err != nil {
		return nil, fmt.Errorf("filter %s == %d failed: %w", t.label, value, filtered.Err)
	}
	return &Table{df: filtered, label: t.label}, nil
}

// Matrix extracts the given feature columns as a row-major float matrix.
func (t *Table) Matrix(features ...string) ([][]float64, error) {
	if len(features) == 0 {
		features = t.featureNames()
	}
	cols := make([][]float64, len(features))
	for i, f := range features {
		if !t.hasColumn(f) {
			return nil, fmt.Errorf("unknown feature column %q", f)
		}
		cols[i] = t.df.Col(f).Float()
	}

	rows := make([][]float64, t.df.Nrow())
	for i := range rows {
		row := make([]float64, len(features))
		for j := range features {
			row[j] = cols[j][i]
		}
		rows[i] = row
	}
	return rows, nil
}

// Labels returns the label column as categorical class names.
func (t *Table) Labels() []string {
	vals := t.df.Col(t.label).Float()
	labels := make([]string, len(vals))
	for i, v := range vals {
		labels[i] = className(t.label, v)
	}
	return labels
}

func (t *Table) featureNames() []string {
	names := make([]string, 0, t.df.Ncol()-1)
	for _, n := range t.df.Names() {
		if n != t.label {
			names = append(names, n)
		}
	}
	return names
}

func (t *Table) hasColumn(name string) bool {
	for _, n := range t.df.Names() {
		if n == name {
			return true
		}
	}
	return false
}

// dataRecords returns the table rows as strings, without the header row.
func (t *Table) dataRecords() [][]string {
	records := t.df.Records()
	if len(records) == 0 {
		return nil
	}
	return records[1:]
}

func className(label string, v float64) string {
	return fmt.Sprintf("%s-%d", label, int(v))
}
