// Package report runs the fixed set of catalog reports.
package report

import (
	"context"
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"
	"time"

	"libcat/internal/dblib"
)

// DateLayout is the day.month.year format report dates are entered in.
const DateLayout = "02.01.2006"

// Names of the available reports.
const (
	OverdueLoans    = "overdue-loans"
	PopularAuthors  = "popular-authors"
	LibraryActivity = "library-activity"
)

type ParamKind int

const (
	TextParam ParamKind = iota
	DateParam
	ChoiceParam
)

// Param describes one input of a report.
type Param struct {
	Name    string
	Label   string
	Kind    ParamKind
	Choices []string
	// Default returns the value used when the parameter is left empty.
	Default func(now time.Time) string
}

// Params maps parameter names to the values entered by the user.
type Params map[string]string

// Total is one summary figure shown under a report.
type Total struct {
	Label string
	Value int64
}

// Report is one entry of the closed report set.
type Report struct {
	Name    string
	Title   string
	Params  []Param
	Columns []string

	build  func(h dblib.DatabaseHandler, p Params, now time.Time) (string, []any, error)
	totals func(rows [][]any) []Total
}

// Result is a report's rows and totals.
type Result struct {
	Report  *Report
	Params  Params
	Columns []string
	Rows    [][]any
	Totals  []Total
}

var registry = map[string]*Report{}

func register(r *Report) *Report {
	registry[r.Name] = r
	return r
}

// Lookup returns the report with the given name.
func Lookup(name string) (*Report, error) {
	r, ok := registry[name]
	if !ok {
		return nil, &dblib.ValidationError{Fields: []string{name}, Reason: "unknown report"}
	}
	return r, nil
}

// All returns every report ordered by name.
func All() []*Report {
	reports := make([]*Report, 0, len(registry))
	for _, r := range registry {
		reports = append(reports, r)
	}
	sort.Slice(reports, func(i, j int) bool { return reports[i].Name < reports[j].Name })
	return reports
}

// ParseDate parses a DD.MM.YYYY date, rejecting impossible calendar dates.
func ParseDate(s string) (time.Time, error) {
	d, err := time.Parse(DateLayout, strings.TrimSpace(s))
	if err != nil {
		return time.Time{}, &dblib.ValidationError{Fields: []string{s}, Reason: "date must be DD.MM.YYYY"}
	}
	return d, nil
}

// Resolve fills defaults and validates p against the report's parameters.
func (r *Report) Resolve(p Params, now time.Time) (Params, error) {
	resolved := Params{}
	known := map[string]bool{}
	for _, param := range r.Params {
		known[param.Name] = true
		v := strings.TrimSpace(p[param.Name])
		if v == "" && param.Default != nil {
			v = param.Default(now)
		}
		switch param.Kind {
		case DateParam:
			if _, err := ParseDate(v); err != nil {
				return nil, &dblib.ValidationError{Fields: []string{param.Name}, Reason: fmt.Sprintf("date %q must be DD.MM.YYYY", v)}
			}
		case ChoiceParam:
			valid := false
			for _, c := range param.Choices {
				if c == v {
					valid = true
				}
			}
			if !valid {
				return nil, &dblib.ValidationError{
					Fields: []string{param.Name},
					Reason: fmt.Sprintf("must be one of %s", strings.Join(param.Choices, ", ")),
				}
			}
		}
		resolved[param.Name] = v
	}
	for name := range p {
		if !known[name] {
			return nil, &dblib.ValidationError{Fields: []string{name}, Reason: "unknown parameter"}
		}
	}
	return resolved, nil
}

// Engine runs reports through an executor.
type Engine struct {
	exec dblib.Executor
	now  func() time.Time
}

func NewEngine(exec dblib.Executor) *Engine {
	return &Engine{exec: exec, now: time.Now}
}

// WithClock replaces the engine's notion of today.
func (e *Engine) WithClock(now func() time.Time) *Engine {
	e.now = now
	return e
}

// Run validates params, executes the report and computes its totals. No
// statement is sent when validation fails.
func (e *Engine) Run(ctx context.Context, name string, params Params) (*Result, error) {
	r, err := Lookup(name)
	if err != nil {
		return nil, err
	}
	now := e.now()
	resolved, err := r.Resolve(params, now)
	if err != nil {
		return nil, &dblib.OpError{Op: "report " + name, Err: err}
	}
	query, args, err := r.build(e.exec.Handler(), resolved, now)
	if err != nil {
		return nil, &dblib.OpError{Op: "report " + name, Err: err}
	}
	res, err := e.exec.Execute(ctx, query, args, dblib.FetchAll)
	if err != nil {
		return nil, &dblib.OpError{Op: "report " + name, Err: err}
	}
	return &Result{
		Report:  r,
		Params:  resolved,
		Columns: r.Columns,
		Rows:    res.Rows,
		Totals:  r.totals(res.Rows),
	}, nil
}

// toInt converts a numeric cell to int64, rounding decimals; ok is false
// for NULL and non-numeric values. NUMERIC aggregates arrive as strings
// from some drivers.
func toInt(v any) (int64, bool) {
	switch n := v.(type) {
	case int64:
		return n, true
	case int32:
		return int64(n), true
	case int:
		return int64(n), true
	case float64:
		return int64(math.Round(n)), true
	case string:
		n = strings.TrimSpace(n)
		if i, err := strconv.ParseInt(n, 10, 64); err == nil {
			return i, true
		}
		if f, err := strconv.ParseFloat(n, 64); err == nil {
			return int64(math.Round(f)), true
		}
	}
	return 0, false
}

// sumColumn adds up column i, skipping NULLs.
func sumColumn(rows [][]any, i int) int64 {
	var total int64
	for _, row := range rows {
		if i < len(row) {
			if n, ok := toInt(row[i]); ok {
				total += n
			}
		}
	}
	return total
}
