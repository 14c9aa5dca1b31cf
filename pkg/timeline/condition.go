package timeline

import "fmt"

// Condition is a tag that events can be associated with, e.g. an
// experimental condition. Tags are not required to be unique.
type Condition struct {
	identity
	tag         string
	description string
}

var _ Identifiable = (*Condition)(nil)

type conditionConfig struct {
	id       *int
	registry *IDRegistry
}

// ConditionOption configures NewCondition
type ConditionOption func(*conditionConfig)

// WithConditionID fixes the id instead of drawing one from a registry
func WithConditionID(id int) ConditionOption {
	return func(c *conditionConfig) { c.id = &id }
}

// WithConditionRegistry draws the id from reg instead of the process-wide registry
func WithConditionRegistry(reg *IDRegistry) ConditionOption {
	return func(c *conditionConfig) { c.registry = reg }
}

// NewCondition creates a condition with a fresh id
func NewCondition(tag, description string, opts ...ConditionOption) *Condition {
	var cfg conditionConfig
	for _, opt := range opts {
		opt(&cfg)
	}
	c := &Condition{tag: tag, description: description}
	switch {
	case cfg.id != nil:
		c.id = *cfg.id
	case cfg.registry != nil:
		c.id = cfg.registry.Next(KindCondition)
	default:
		c.id = NextID(KindCondition)
	}
	return c
}

func (c *Condition) Tag() string                { return c.tag }
func (c *Condition) SetTag(tag string)          { c.tag = tag }
func (c *Condition) Description() string        { return c.description }
func (c *Condition) SetDescription(desc string) { c.description = desc }

// EqualValue compares id, tag and description
func (c *Condition) EqualValue(other *Condition) bool {
	if c == nil || other == nil {
		return c == other
	}
	return c.id == other.id && c.tag == other.tag && c.description == other.description
}

// Clone copies the condition, id included
func (c *Condition) Clone() *Condition {
	cp := *c
	return &cp
}

func (c *Condition) String() string {
	return fmt.Sprintf("Condition{id=%d tag=%q}", c.id, c.tag)
}
