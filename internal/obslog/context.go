package obslog

import "context"

type contextKey string

const logFieldsKey contextKey = "log_fields"

// Fields contains structured fields automatically added to all logs within a context.
// Fields flow through context enrichment, so business context (turn_id, phase, etc.) is
// automatically included in every log statement without threading extra arguments.
type Fields struct {
	TurnID    *string // turn identifier (snowflake, string-encoded)
	SessionID *string
	Phase     *string // current phase name, e.g. "planner", "executor"
	Attempt   *int    // validation-loop attempt number
	ToolName  *string
	Component string // dotted component name, e.g. "turnengine.engine.orchestrator"
}

// WithFields enriches context with structured log fields.
// Multiple calls merge fields, with newer non-nil/non-empty values taking precedence.
func WithFields(ctx context.Context, fields Fields) context.Context {
	existing := GetFields(ctx)
	merged := mergeFields(existing, fields)
	return context.WithValue(ctx, logFieldsKey, merged)
}

// GetFields retrieves log fields from context. Returns a zero Fields if none are set.
func GetFields(ctx context.Context) Fields {
	if fields, ok := ctx.Value(logFieldsKey).(Fields); ok {
		return fields
	}
	return Fields{}
}

func mergeFields(existing, next Fields) Fields {
	result := existing

	if next.TurnID != nil {
		result.TurnID = next.TurnID
	}
	if next.SessionID != nil {
		result.SessionID = next.SessionID
	}
	if next.Phase != nil {
		result.Phase = next.Phase
	}
	if next.Attempt != nil {
		result.Attempt = next.Attempt
	}
	if next.ToolName != nil {
		result.ToolName = next.ToolName
	}
	if next.Component != "" {
		result.Component = next.Component
	}

	return result
}

// Ptr is a helper to create a pointer from a value, for inline Fields literals.
func Ptr[T any](v T) *T {
	return &v
}

// Truncate truncates a string to maxLen characters, appending "..." if truncated.
func Truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen] + "..."
}
