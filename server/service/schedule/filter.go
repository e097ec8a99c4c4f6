package schedule

import (
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/cel-go/cel"
)

// SlotFilter restricts free slots with a CEL boolean expression over the
// variables hour, minute, weekday (0 = Sunday) and duration_minutes.
// Times are read in the home timezone.
//
//	hour >= 8 && hour < 21 && weekday != 0
type SlotFilter struct {
	expr    string
	program cel.Program
	home    *time.Location
}

// NewSlotFilter compiles expr. An empty expression returns a nil filter,
// which keeps every slot.
func NewSlotFilter(expr string, home *time.Location) (*SlotFilter, error) {
	expr = strings.TrimSpace(expr)
	if expr == "" {
		return nil, nil
	}
	if home == nil {
		home = time.UTC
	}

	env, err := cel.NewEnv(
		cel.Variable("hour", cel.IntType),
		cel.Variable("minute", cel.IntType),
		cel.Variable("weekday", cel.IntType),
		cel.Variable("duration_minutes", cel.IntType),
	)
	if err != nil {
		return nil, fmt.Errorf("create cel environment: %w", err)
	}
	ast, issues := env.Compile(expr)
	if issues != nil && issues.Err() != nil {
		return nil, fmt.Errorf("compile slot filter %q: %w", expr, issues.Err())
	}
	if !ast.OutputType().IsExactType(cel.BoolType) {
		return nil, fmt.Errorf("slot filter %q must evaluate to bool, got %s", expr, ast.OutputType())
	}
	program, err := env.Program(ast)
	if err != nil {
		return nil, fmt.Errorf("build slot filter program: %w", err)
	}
	return &SlotFilter{expr: expr, program: program, home: home}, nil
}

// String returns the source expression.
func (f *SlotFilter) String() string {
	if f == nil {
		return ""
	}
	return f.expr
}

// Apply returns the slots the expression accepts. A slot whose evaluation
// fails is kept.
func (f *SlotFilter) Apply(slots []FreeSlot) []FreeSlot {
	if f == nil {
		return slots
	}
	kept := make([]FreeSlot, 0, len(slots))
	for _, slot := range slots {
		ok, err := f.Match(slot)
		if err != nil {
			slog.Warn("slot filter evaluation failed, keeping slot",
				"filter", f.expr,
				"slot_start", slot.Start,
				"error", err,
			)
			kept = append(kept, slot)
			continue
		}
		if ok {
			kept = append(kept, slot)
		}
	}
	return kept
}

// Match evaluates the expression for one slot.
func (f *SlotFilter) Match(slot FreeSlot) (bool, error) {
	start := slot.Start.In(f.home)
	out, _, err := f.program.Eval(map[string]any{
		"hour":             int64(start.Hour()),
		"minute":           int64(start.Minute()),
		"weekday":          int64(start.Weekday()),
		"duration_minutes": int64(slot.DurationMinutes),
	})
	if err != nil {
		return false, err
	}
	matched, ok := out.Value().(bool)
	if !ok {
		return false, fmt.Errorf("slot filter returned %T, want bool", out.Value())
	}
	return matched, nil
}
