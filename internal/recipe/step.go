package recipe

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/KaramelBytes/tidyloom-cli/internal/table"
	"github.com/KaramelBytes/tidyloom-cli/internal/tidy"
)

// Op names a recipe step.
type Op string

const (
	OpGather      Op = "gather"
	OpSpread      Op = "spread"
	OpSeparate    Op = "separate"
	OpUnite       Op = "unite"
	OpSummarize   Op = "summarize"
	OpJoin        Op = "join"
	OpFilter      Op = "filter"
	OpDropMissing Op = "drop_missing"
	OpSelect      Op = "select"
	OpRename      Op = "rename"
	OpArrange     Op = "arrange"
	OpHead        Op = "head"
)

// Step is one verb with its options. Fields the op does not read are ignored.
type Step struct {
	Op Op `yaml:"op"`

	// gather / spread
	Key         string   `yaml:"key,omitempty"`
	Value       string   `yaml:"value,omitempty"`
	Hold        []string `yaml:"hold,omitempty"`
	DropMissing bool     `yaml:"drop_missing,omitempty"`
	Fill        string   `yaml:"fill,omitempty"`
	Duplicates  string   `yaml:"duplicates,omitempty"`
	Sort        bool     `yaml:"sort,omitempty"`

	// separate / unite
	Column      string   `yaml:"column,omitempty"`
	Into        []string `yaml:"into,omitempty"`
	Sep         string   `yaml:"sep,omitempty"`
	Positions   []int    `yaml:"positions,omitempty"`
	Extra       string   `yaml:"extra,omitempty"`
	FillSide    string   `yaml:"fill_side,omitempty"`
	Convert     bool     `yaml:"convert,omitempty"`
	Keep        bool     `yaml:"keep,omitempty"`
	SkipMissing bool     `yaml:"skip_missing,omitempty"`

	// gather, unite, select, drop_missing
	Columns []string `yaml:"columns,omitempty"`

	// summarize / join
	By   []string `yaml:"by,omitempty"`
	Aggs []string `yaml:"aggs,omitempty"`
	With *Source  `yaml:"with,omitempty"`
	Kind string   `yaml:"kind,omitempty"`

	Where  []Condition       `yaml:"where,omitempty"`
	Rename map[string]string `yaml:"rename,omitempty"`
	Order  []string          `yaml:"order,omitempty"`
	N      int               `yaml:"n,omitempty"`
}

// Condition is one filter test; all conditions of a step must hold.
type Condition struct {
	Column string `yaml:"column"`
	// Op is one of == != < <= > >= contains missing not_missing.
	Op    string `yaml:"op"`
	Value string `yaml:"value,omitempty"`
}

// Validate checks the options the op needs. Column existence is checked at
// run time, against the table the step actually receives.
func (s Step) Validate() error {
	switch s.Op {
	case OpGather:
		if s.Key == "" || s.Value == "" {
			return errors.New("key and value are required")
		}
	case OpSpread:
		if s.Key == "" || s.Value == "" {
			return errors.New("key and value are required")
		}
		if _, err := tidy.ParseDuplicatePolicy(s.Duplicates); err != nil {
			return err
		}
	case OpSeparate:
		if s.Column == "" || len(s.Into) == 0 {
			return errors.New("column and into are required")
		}
		if _, err := tidy.ParseExtraPolicy(s.Extra); err != nil {
			return err
		}
		if _, err := tidy.ParseFillPolicy(s.FillSide); err != nil {
			return err
		}
	case OpUnite:
		if s.Column == "" || len(s.Columns) == 0 {
			return errors.New("column and columns are required")
		}
	case OpSummarize:
		if len(s.Aggs) == 0 {
			return errors.New("at least one aggregation is required")
		}
		for _, a := range s.Aggs {
			if _, err := tidy.ParseAggregation(a); err != nil {
				return err
			}
		}
	case OpJoin:
		if s.With == nil || (s.With.Path == "" && s.With.Query == "") {
			return errors.New("with.path or with.query is required")
		}
		if len(s.By) == 0 {
			return errors.New("by is required")
		}
		switch tidy.JoinKind(s.Kind) {
		case "", tidy.InnerJoin, tidy.LeftJoin:
		default:
			return fmt.Errorf("%w: join kind %q (use inner|left)", tidy.ErrInvalidOption, s.Kind)
		}
	case OpFilter:
		if len(s.Where) == 0 {
			return errors.New("where is required")
		}
		for _, c := range s.Where {
			if err := c.validate(); err != nil {
				return err
			}
		}
	case OpDropMissing:
	case OpSelect:
		if len(s.Columns) == 0 {
			return errors.New("columns is required")
		}
	case OpRename:
		if len(s.Rename) == 0 {
			return errors.New("rename map is required")
		}
	case OpArrange:
		if len(s.Order) == 0 {
			return errors.New("order is required")
		}
	case OpHead:
		if s.N <= 0 {
			return errors.New("n must be positive")
		}
	case "":
		return errors.New("op is required")
	default:
		return fmt.Errorf("unknown op %q", s.Op)
	}
	return nil
}

func (c Condition) validate() error {
	if c.Column == "" {
		return errors.New("where: column is required")
	}
	switch c.Op {
	case "==", "!=", "<", "<=", ">", ">=", "contains", "missing", "not_missing":
		return nil
	}
	return fmt.Errorf("where: unknown op %q", c.Op)
}

// match reports whether the row satisfies the condition. Ordered comparisons
// are false for missing cells. A numeric cell compares numerically when the
// literal parses as a number, otherwise by text.
func (c Condition) match(r table.Row) bool {
	v := r.Get(c.Column)
	switch c.Op {
	case "missing":
		return v.IsMissing()
	case "not_missing":
		return !v.IsMissing()
	case "contains":
		return !v.IsMissing() && strings.Contains(v.String(), c.Value)
	}
	if v.IsMissing() {
		return c.Op == "!="
	}
	d := table.Compare(v, literal(c.Value))
	switch c.Op {
	case "==":
		return d == 0
	case "!=":
		return d != 0
	case "<":
		return d < 0
	case "<=":
		return d <= 0
	case ">":
		return d > 0
	case ">=":
		return d >= 0
	}
	return false
}

// literal reads a YAML scalar as a table value: numbers become numeric,
// empty and "NA" are missing, anything else is text.
func literal(s string) table.Value {
	if s == "" || s == table.MissingLabel {
		return table.Missing()
	}
	if f, err := strconv.ParseFloat(strings.TrimSpace(s), 64); err == nil {
		return table.Num(f)
	}
	return table.Str(s)
}

// Defaults are the policies used when a step leaves one unset.
type Defaults struct {
	Duplicates tidy.DuplicatePolicy
	Extra      tidy.ExtraPolicy
	Fill       tidy.FillPolicy
}

func (s Step) gather() tidy.GatherOptions {
	return tidy.GatherOptions{Key: s.Key, Value: s.Value, Columns: s.Columns, Hold: s.Hold, DropMissing: s.DropMissing}
}

func (s Step) spread(d Defaults) tidy.SpreadOptions {
	dup := tidy.DuplicatePolicy(s.Duplicates)
	if dup == "" {
		dup = d.Duplicates
	}
	return tidy.SpreadOptions{Key: s.Key, Value: s.Value, Fill: literal(s.Fill), Duplicates: dup, Sort: s.Sort}
}

func (s Step) separate(d Defaults) tidy.SeparateOptions {
	extra := tidy.ExtraPolicy(s.Extra)
	if extra == "" {
		extra = d.Extra
	}
	fill := tidy.FillPolicy(s.FillSide)
	if fill == "" {
		fill = d.Fill
	}
	return tidy.SeparateOptions{
		Column:    s.Column,
		Into:      s.Into,
		Sep:       s.Sep,
		Positions: s.Positions,
		Extra:     extra,
		Fill:      fill,
		Convert:   s.Convert,
		Keep:      s.Keep,
	}
}

func (s Step) unite() tidy.UniteOptions {
	return tidy.UniteOptions{Column: s.Column, Columns: s.Columns, Sep: s.Sep, SkipMissing: s.SkipMissing, Keep: s.Keep}
}

func (s Step) summarize() (tidy.SummarizeOptions, error) {
	aggs := make([]tidy.Aggregation, 0, len(s.Aggs))
	for _, spec := range s.Aggs {
		a, err := tidy.ParseAggregation(spec)
		if err != nil {
			return tidy.SummarizeOptions{}, err
		}
		a.SkipMissing = s.SkipMissing
		aggs = append(aggs, a)
	}
	return tidy.SummarizeOptions{By: s.By, Aggs: aggs, Sort: s.Sort}, nil
}

func (s Step) filter() func(table.Row) bool {
	conds := s.Where
	return func(r table.Row) bool {
		for _, c := range conds {
			if !c.match(r) {
				return false
			}
		}
		return true
	}
}
