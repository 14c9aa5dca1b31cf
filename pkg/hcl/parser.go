package hcl

import (
	"fmt"
	"time"

	"github.com/hashicorp/hcl/v2"
	"github.com/hashicorp/hcl/v2/gohcl"
	"github.com/hashicorp/hcl/v2/hclparse"
	"github.com/hashicorp/hcl/v2/hclsyntax"
	"github.com/zclconf/go-cty/cty"
	"github.com/zclconf/go-cty/cty/function"

	"github.com/leowmjw/go-timeline-annotations/pkg/timeline"
)

// Definition represents a declarative timeline: its extent, the conditions,
// the events and which conditions may overlap
type Definition struct {
	Timeline   *TimelineBlock   `hcl:"timeline,block"`
	Conditions []ConditionBlock `hcl:"condition,block"`
	Events     []EventBlock     `hcl:"event,block"`
	Overlaps   []OverlapBlock   `hcl:"overlap,block"`

	evalCtx *hcl.EvalContext
}

// TimelineBlock holds the extent of the timeline. Any subset of length,
// sampling_rate, end and time_multiplier may be given.
type TimelineBlock struct {
	Unit           *string   `hcl:"unit,optional"`
	StartTime      *string   `hcl:"start_time,optional"`
	Length         *int      `hcl:"length,optional"`
	SamplingRate   *float64  `hcl:"sampling_rate,optional"`
	Init           *float64  `hcl:"init,optional"`
	End            *float64  `hcl:"end,optional"`
	TimeMultiplier *float64  `hcl:"time_multiplier,optional"`
	Timestamps     []float64 `hcl:"timestamps,optional"` // explicit, possibly non-uniform axis
}

// ConditionBlock declares a condition; the label becomes its tag
type ConditionBlock struct {
	Name        string  `hcl:"name,label"`
	ID          *int    `hcl:"id,optional"`
	Description *string `hcl:"description,optional"`
}

// EventBlock declares an event and the conditions it is tagged with
type EventBlock struct {
	Name       string         `hcl:"name,label"`
	ID         *int           `hcl:"id,optional"`
	Onset      *float64       `hcl:"onset,optional"`
	Duration   *float64       `hcl:"duration,optional"`
	End        *float64       `hcl:"end,optional"`
	Unit       *string        `hcl:"unit,optional"`
	Multiplier *float64       `hcl:"multiplier,optional"`
	Payload    *hcl.Attribute `hcl:"payload,optional"`
	Conditions []string       `hcl:"conditions,optional"`
}

// OverlapBlock permits overlap between every pair of the named conditions.
// A single name permits a condition's own events to overlap.
type OverlapBlock struct {
	Conditions []string `hcl:"conditions"`
}

// ParseDefinition parses a definition in native HCL syntax
func ParseDefinition(content []byte, filename string) (*Definition, error) {
	parser := hclparse.NewParser()
	file, diags := parser.ParseHCL(content, filename)
	if diags.HasErrors() {
		return nil, timeline.NewInvalidValue("hcl.ParseDefinition", "failed to parse HCL: %s", diags.Error())
	}
	return decodeDefinition(file.Body)
}

// ParseDefinitionJSON parses a definition written in the JSON variant of HCL
func ParseDefinitionJSON(content []byte, filename string) (*Definition, error) {
	parser := hclparse.NewParser()
	file, diags := parser.ParseJSON(content, filename)
	if diags.HasErrors() {
		return nil, timeline.NewInvalidValue("hcl.ParseDefinitionJSON", "failed to parse JSON: %s", diags.Error())
	}
	return decodeDefinition(file.Body)
}

// ParseDefinitionDocument parses content in the given format (ContentTypeHCL
// or ContentTypeJSON). An empty format is detected from the content.
func ParseDefinitionDocument(content []byte, format string) (*Definition, error) {
	if format == "" {
		format = DetectFormat(content)
	}
	switch format {
	case ContentTypeHCL:
		return ParseDefinition(content, "definition.hcl")
	case ContentTypeJSON:
		return ParseDefinitionJSON(content, "definition.json")
	default:
		return nil, timeline.NewInvalidValue("hcl.ParseDefinitionDocument", "unsupported format %q", format)
	}
}

func decodeDefinition(body hcl.Body) (*Definition, error) {
	evalCtx := newEvalContext()
	var def Definition
	diags := gohcl.DecodeBody(body, evalCtx, &def)
	if diags.HasErrors() {
		return nil, timeline.NewTypeMismatch("hcl.decode", "failed to decode HCL body: %s", diags.Error())
	}
	def.evalCtx = evalCtx
	return &def, nil
}

// newEvalContext exposes timestamp() for start times and ms()/us() for
// writing second-based values at a finer scale
func newEvalContext() *hcl.EvalContext {
	return &hcl.EvalContext{
		Variables: map[string]cty.Value{},
		Functions: map[string]function.Function{
			"timestamp": function.New(&function.Spec{
				Params: []function.Parameter{
					{
						Name: "timestamp",
						Type: cty.String,
					},
				},
				Type: function.StaticReturnType(cty.String),
				Impl: func(args []cty.Value, retType cty.Type) (cty.Value, error) {
					if _, err := time.Parse(time.RFC3339, args[0].AsString()); err != nil {
						return cty.NilVal, fmt.Errorf("timestamp must be RFC3339: %w", err)
					}
					return args[0], nil
				},
			}),
			"ms": scaleFunction(1e-3),
			"us": scaleFunction(1e-6),
		},
	}
}

func scaleFunction(factor float64) function.Function {
	return function.New(&function.Spec{
		Params: []function.Parameter{
			{
				Name: "value",
				Type: cty.Number,
			},
		},
		Type: function.StaticReturnType(cty.Number),
		Impl: func(args []cty.Value, retType cty.Type) (cty.Value, error) {
			f, _ := args[0].AsBigFloat().Float64()
			return cty.NumberFloatVal(f * factor), nil
		},
	})
}

// hclValueToMap converts an object or map value to a Go map
func hclValueToMap(val cty.Value) map[string]interface{} {
	if val.IsNull() {
		return nil
	}
	if !val.Type().IsObjectType() && !val.Type().IsMapType() {
		return nil
	}

	result := make(map[string]interface{})
	for key, attr := range val.AsValueMap() {
		result[key] = hclValueToInterface(attr)
	}
	return result
}

// hclValueToInterface converts a cty.Value to a Go interface{}
func hclValueToInterface(val cty.Value) interface{} {
	if val.IsNull() || !val.IsKnown() {
		return nil
	}

	switch {
	case val.Type() == cty.String:
		return val.AsString()
	case val.Type() == cty.Number:
		// Convert to float64 for consistency
		f, _ := val.AsBigFloat().Float64()
		return f
	case val.Type() == cty.Bool:
		return val.True()
	case val.Type().IsObjectType() || val.Type().IsMapType():
		return hclValueToMap(val)
	case val.Type().IsListType() || val.Type().IsTupleType() || val.Type().IsSetType():
		values := val.AsValueSlice()
		result := make([]interface{}, len(values))
		for i, v := range values {
			result[i] = hclValueToInterface(v)
		}
		return result
	default:
		return val.GoString()
	}
}

// IsHCL attempts to detect if the given content is in HCL native syntax
func IsHCL(content []byte) bool {
	_, diags := hclsyntax.ParseConfig(content, "", hcl.Pos{Line: 1, Column: 1})
	return !diags.HasErrors()
}
