package domain

import (
	"fmt"
	"strings"
	"time"
)

// Diagnostic rule names
const (
	RuleRequired       = "required"
	RuleInteger        = "integer"
	RuleDate           = "date"
	RuleTime           = "time"
	RuleEnum           = "enum"
	RuleConstraint     = "constraint"
	RuleDuplicateKey   = "duplicate_key"
	RuleDuplicateShift = "duplicate_shift"
	RuleUnusable       = "unusable_punch"
)

// Diagnostic is one rule violation. Row is the 0-based dataset index, or -1
// when the finding is not tied to a single source row.
type Diagnostic struct {
	Entity  Entity `json:"entity"`
	Row     int    `json:"row"`
	Sheet   string `json:"sheet,omitempty"`
	Line    int    `json:"line,omitempty"`
	Field   Field  `json:"field,omitempty"`
	Rule    string `json:"rule"`
	Value   string `json:"value,omitempty"`
	Message string `json:"message"`
}

func (d Diagnostic) String() string {
	var b strings.Builder
	b.WriteString(string(d.Entity))
	if d.Row >= 0 {
		fmt.Fprintf(&b, " row %d", d.Row)
	}
	if d.Sheet != "" {
		fmt.Fprintf(&b, " (%s:%d)", d.Sheet, d.Line)
	}
	if d.Field != "" {
		fmt.Fprintf(&b, " field %s", d.Field)
	}
	fmt.Fprintf(&b, " [%s] %s", d.Rule, d.Message)
	if d.Value != "" {
		fmt.Fprintf(&b, " (value %q)", d.Value)
	}
	return b.String()
}

// EntityStats counts rows through each stage for one entity.
type EntityStats struct {
	Source     string `json:"source"`
	Read       int    `json:"read"`
	Invalid    int    `json:"invalid"`
	Filtered   int    `json:"filtered"`
	Duplicates int    `json:"duplicates"`
	Loaded     int    `json:"loaded"`
	Skipped    bool   `json:"skipped,omitempty"`
}

// EntityFailure records a fatal error that stopped one entity's load.
type EntityFailure struct {
	Entity Entity `json:"entity"`
	File   string `json:"file"`
	Err    error  `json:"-"`
}

func (f EntityFailure) Error() string {
	return fmt.Sprintf("%s (%s): %v", f.Entity, f.File, f.Err)
}

func (f EntityFailure) Unwrap() error { return f.Err }

// RunResult is returned by every pipeline run, including failed ones.
type RunResult struct {
	RunID       string                  `json:"run_id"`
	StartedAt   time.Time               `json:"started_at"`
	Duration    time.Duration           `json:"duration"`
	Mode        string                  `json:"mode"`
	Entities    map[Entity]*EntityStats `json:"entities"`
	Integrated  int                     `json:"integrated"`
	PunchSlots  int                     `json:"punch_slots"`
	Diagnostics []Diagnostic            `json:"diagnostics"`
	Failures    []EntityFailure         `json:"-"`
}

// NewRunResult creates an empty result with stats for every entity.
func NewRunResult(runID string, startedAt time.Time, mode string) *RunResult {
	r := &RunResult{
		RunID:     runID,
		StartedAt: startedAt,
		Mode:      mode,
		Entities:  make(map[Entity]*EntityStats, len(Entities)),
	}
	for _, e := range Entities {
		r.Entities[e] = &EntityStats{}
	}
	return r
}

// Succeeded reports whether every entity loaded.
func (r *RunResult) Succeeded() bool {
	return len(r.Failures) == 0
}

// DiagnosticsFor returns the diagnostics recorded against one entity.
func (r *RunResult) DiagnosticsFor(e Entity) []Diagnostic {
	var out []Diagnostic
	for _, d := range r.Diagnostics {
		if d.Entity == e {
			out = append(out, d)
		}
	}
	return out
}

// Summary renders the operator-facing report. At most limit diagnostics are
// listed; limit <= 0 lists all of them.
func (r *RunResult) Summary(limit int) string {
	var b strings.Builder
	fmt.Fprintf(&b, "run %s (%s mode) finished in %s\n", r.RunID, r.Mode, r.Duration.Round(time.Millisecond))
	for _, e := range Entities {
		s := r.Entities[e]
		if s == nil {
			continue
		}
		if s.Skipped {
			fmt.Fprintf(&b, "  %-6s skipped\n", e)
			continue
		}
		fmt.Fprintf(&b, "  %-6s read=%d invalid=%d filtered=%d duplicates=%d loaded=%d\n",
			e, s.Read, s.Invalid, s.Filtered, s.Duplicates, s.Loaded)
	}
	fmt.Fprintf(&b, "  integrated records=%d punch slots=%d\n", r.Integrated, r.PunchSlots)
	for _, f := range r.Failures {
		fmt.Fprintf(&b, "  FAILED %s\n", f.Error())
	}
	if n := len(r.Diagnostics); n > 0 {
		fmt.Fprintf(&b, "%d diagnostics:\n", n)
		for i, d := range r.Diagnostics {
			if limit > 0 && i >= limit {
				fmt.Fprintf(&b, "  ... and %d more\n", n-limit)
				break
			}
			fmt.Fprintf(&b, "  %s\n", d)
		}
	}
	return b.String()
}
