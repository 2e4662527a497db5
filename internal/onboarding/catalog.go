package onboarding

import (
	"errors"
	"fmt"
	"slices"
	"strings"
)

// Option is one selectable choice of a buttons, cards, checkboxes or
// dropdown component.
type Option struct {
	ID          string `json:"id"`
	Label       string `json:"label"`
	Description string `json:"description,omitempty"`
	Primary     bool   `json:"primary,omitempty"`
	Value       string `json:"value,omitempty"`
}

// Field is one input of a form component.
type Field struct {
	Name        string `json:"name"`
	Label       string `json:"label"`
	Type        string `json:"type"`
	Required    bool   `json:"required,omitempty"`
	Placeholder string `json:"placeholder,omitempty"`
}

// SliderSpec bounds a slider component.
type SliderSpec struct {
	Min     int    `json:"min"`
	Max     int    `json:"max"`
	Step    int    `json:"step"`
	Default int    `json:"default"`
	Unit    string `json:"unit,omitempty"`
}

// StepDefinition is the static configuration of one step.
type StepDefinition struct {
	ID               StepID
	Label            string
	Prompt           string
	Component        ComponentKind
	RequiresPrevious []StepID
	SkipAllowed      bool
	SkipWhen         SkipRule
	Options          []Option
	Fields           []Field
	Slider           *SliderSpec
}

func (d StepDefinition) clone() StepDefinition {
	d.RequiresPrevious = slices.Clone(d.RequiresPrevious)
	d.Options = slices.Clone(d.Options)
	d.Fields = slices.Clone(d.Fields)
	if d.Slider != nil {
		s := *d.Slider
		d.Slider = &s
	}
	return d
}

// Catalog is the ordered, immutable set of step definitions. It is built once
// at startup and is safe for concurrent use.
type Catalog struct {
	order []StepID
	defs  map[StepID]StepDefinition
	index map[StepID]int
}

// NewCatalog validates defs and freezes them into a Catalog. Any problem is a
// configuration bug; all of them are reported together.
func NewCatalog(defs []StepDefinition) (*Catalog, error) {
	if len(defs) == 0 {
		return nil, errors.New("catalog: no steps defined")
	}

	c := &Catalog{
		order: make([]StepID, 0, len(defs)),
		defs:  make(map[StepID]StepDefinition, len(defs)),
		index: make(map[StepID]int, len(defs)),
	}

	var errs []error
	for i, d := range defs {
		if d.ID == "" {
			errs = append(errs, fmt.Errorf("step %d: empty id", i))
			continue
		}
		if _, dup := c.index[d.ID]; dup {
			errs = append(errs, fmt.Errorf("step %q: duplicate id", d.ID))
			continue
		}
		if strings.TrimSpace(d.Label) == "" {
			errs = append(errs, fmt.Errorf("step %q: missing label", d.ID))
		}
		if !d.Component.IsValid() {
			errs = append(errs, fmt.Errorf("step %q: unknown component kind %q", d.ID, d.Component))
		}
		if !d.SkipWhen.isValid() {
			errs = append(errs, fmt.Errorf("step %q: unknown skip rule %q", d.ID, d.SkipWhen))
		}
		if d.SkipWhen != SkipNever && !d.SkipAllowed {
			errs = append(errs, fmt.Errorf("step %q: skip rule set on a step that cannot be skipped", d.ID))
		}
		c.index[d.ID] = len(c.order)
		c.order = append(c.order, d.ID)
		c.defs[d.ID] = d.clone()
	}

	for _, id := range c.order {
		d := c.defs[id]
		for _, req := range d.RequiresPrevious {
			ri, ok := c.index[req]
			switch {
			case !ok:
				errs = append(errs, fmt.Errorf("step %q: prerequisite %q is not in the catalog", id, req))
			case ri >= c.index[id]:
				errs = append(errs, fmt.Errorf("step %q: prerequisite %q does not precede it", id, req))
			case c.defs[req].SkipAllowed:
				errs = append(errs, fmt.Errorf("step %q: prerequisite %q is skippable", id, req))
			}
		}
	}

	if len(c.order) > 0 {
		if term := c.defs[c.order[len(c.order)-1]]; term.SkipAllowed {
			errs = append(errs, fmt.Errorf("terminal step %q must not be skippable", term.ID))
		}
	}

	if len(errs) > 0 {
		return nil, fmt.Errorf("invalid catalog: %w", errors.Join(errs...))
	}
	return c, nil
}

// StepOrder returns the ordered step ids. The slice is a copy.
func (c *Catalog) StepOrder() []StepID {
	return slices.Clone(c.order)
}

// StepConfig returns the definition of id or an *UnknownStepError.
func (c *Catalog) StepConfig(id StepID) (StepDefinition, error) {
	d, ok := c.defs[id]
	if !ok {
		return StepDefinition{}, &UnknownStepError{ID: id}
	}
	return d.clone(), nil
}

// Index returns the position of id in the step order.
func (c *Catalog) Index(id StepID) (int, bool) {
	i, ok := c.index[id]
	return i, ok
}

func (c *Catalog) Contains(id StepID) bool {
	_, ok := c.index[id]
	return ok
}

func (c *Catalog) Len() int {
	return len(c.order)
}

func (c *Catalog) Initial() StepID {
	return c.order[0]
}

func (c *Catalog) Terminal() StepID {
	return c.order[len(c.order)-1]
}

func (c *Catalog) IsTerminal(id StepID) bool {
	return id == c.Terminal()
}

// Next returns the step immediately after id, or false when id is terminal
// or unknown.
func (c *Catalog) Next(id StepID) (StepID, bool) {
	i, ok := c.index[id]
	if !ok || i+1 >= len(c.order) {
		return "", false
	}
	return c.order[i+1], true
}

// ParseStepID validates a client-supplied identifier. Only the canonical
// snake_case form is accepted.
func (c *Catalog) ParseStepID(s string) (StepID, error) {
	id := StepID(s)
	if !c.Contains(id) {
		return "", &UnknownStepError{ID: id}
	}
	return id, nil
}
