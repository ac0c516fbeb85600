package dto

import (
	"time"

	"github.com/aretw0/interop/pkg/domain"
)

// Document is the on-disk shape of a specification document.
// It uses "mapstructure" tags to match the YAML/JSON keys.
type Document struct {
	Name       string              `json:"name" mapstructure:"name"`
	Components []ComponentMetadata `json:"components" mapstructure:"components"`
	Pattern    PatternMetadata     `json:"pattern" mapstructure:"pattern"`
}

type ComponentMetadata struct {
	ID         string              `json:"id" mapstructure:"id"`
	Address    string              `json:"address" mapstructure:"address"`
	Interfaces []InterfaceMetadata `json:"interfaces" mapstructure:"interfaces"`
}

type InterfaceMetadata struct {
	ID     string `json:"id" mapstructure:"id"`
	Path   string `json:"path" mapstructure:"path"`
	Mode   string `json:"mode" mapstructure:"mode"`
	Listen string `json:"listen" mapstructure:"listen"`
}

type PatternMetadata struct {
	Name         string                    `json:"name" mapstructure:"name"`
	OnUnexpected string                    `json:"on_unexpected" mapstructure:"on_unexpected"`
	Budget       BudgetMetadata            `json:"budget" mapstructure:"budget"`
	Schemas      map[string]map[string]any `json:"schemas" mapstructure:"schemas"`
	States       []StateMetadata           `json:"states" mapstructure:"states"`
	Transitions  []TransitionMetadata      `json:"transitions" mapstructure:"transitions"`
}

type BudgetMetadata struct {
	MaxEvents int           `json:"max_events" mapstructure:"max_events"`
	Timeout   time.Duration `json:"timeout" mapstructure:"timeout"`
}

type StateMetadata struct {
	ID   string `json:"id" mapstructure:"id"`
	Kind string `json:"kind" mapstructure:"kind"`
}

type TransitionMetadata struct {
	From    string           `json:"from" mapstructure:"from"`
	To      string           `json:"to" mapstructure:"to"`
	Guards  []GuardMetadata  `json:"guards" mapstructure:"guards"`
	Actions []ActionMetadata `json:"actions" mapstructure:"actions"`
}

type GuardMetadata struct {
	Interface string            `json:"interface" mapstructure:"interface"`
	Direction string            `json:"direction" mapstructure:"direction"`
	Method    string            `json:"method" mapstructure:"method"`
	Status    int               `json:"status" mapstructure:"status"`
	Headers   map[string]string `json:"headers" mapstructure:"headers"`
	Fault     bool              `json:"fault" mapstructure:"fault"`
	Path      string            `json:"path" mapstructure:"path"`
	Equals    string            `json:"equals" mapstructure:"equals"`
	Schema    string            `json:"schema" mapstructure:"schema"`
	Expr      string            `json:"expr" mapstructure:"expr"`
}

type ActionMetadata struct {
	Type    string           `json:"type" mapstructure:"type"`
	Var     string           `json:"var" mapstructure:"var"`
	Path    string           `json:"path" mapstructure:"path"`
	Header  string           `json:"header" mapstructure:"header"`
	Value   any              `json:"value" mapstructure:"value"`
	Message *MessageMetadata `json:"message" mapstructure:"message"`
}

type MessageMetadata struct {
	Interface string            `json:"interface" mapstructure:"interface"`
	Method    string            `json:"method" mapstructure:"method"`
	Path      string            `json:"path" mapstructure:"path"`
	Status    int               `json:"status" mapstructure:"status"`
	Headers   map[string]string `json:"headers" mapstructure:"headers"`
	Body      string            `json:"body" mapstructure:"body"`
	Reply     bool              `json:"reply" mapstructure:"reply"`
}

// ToDomain converts the document into domain types. Interfaces without a
// mode default to intercept; the pattern name defaults to the document name.
func (d Document) ToDomain() domain.Spec {
	spec := domain.Spec{Name: d.Name}

	for _, c := range d.Components {
		comp := domain.Component{ID: c.ID, Address: c.Address}
		for _, i := range c.Interfaces {
			mode := domain.WrapperMode(i.Mode)
			if mode == "" {
				mode = domain.ModeIntercept
			}
			comp.Interfaces = append(comp.Interfaces, domain.Interface{
				ID:          i.ID,
				ComponentID: c.ID,
				Path:        i.Path,
				Mode:        mode,
				Listen:      i.Listen,
			})
		}
		spec.Components = append(spec.Components, comp)
	}

	p := d.Pattern
	spec.Pattern = domain.Pattern{
		Name:         p.Name,
		OnUnexpected: domain.UnexpectedPolicy(p.OnUnexpected),
		Budget:       domain.Budget{MaxEvents: p.Budget.MaxEvents, Timeout: p.Budget.Timeout},
		Schemas:      p.Schemas,
	}
	if spec.Pattern.Name == "" {
		spec.Pattern.Name = d.Name
	}
	for _, s := range p.States {
		spec.Pattern.States = append(spec.Pattern.States, domain.State{ID: s.ID, Kind: domain.StateKind(s.Kind)})
	}
	for _, t := range p.Transitions {
		tr := domain.Transition{From: t.From, To: t.To}
		for _, g := range t.Guards {
			tr.Guards = append(tr.Guards, domain.Guard{
				Interface: g.Interface,
				Direction: domain.Direction(g.Direction),
				Method:    g.Method,
				Status:    g.Status,
				Headers:   g.Headers,
				Fault:     g.Fault,
				Path:      g.Path,
				Equals:    g.Equals,
				Schema:    g.Schema,
				Expr:      g.Expr,
			})
		}
		for _, a := range t.Actions {
			act := domain.Action{Type: domain.ActionType(a.Type), Var: a.Var, Path: a.Path, Header: a.Header, Value: a.Value}
			if a.Message != nil {
				m := *a.Message
				act.Message = &domain.MessageTemplate{
					Interface: m.Interface,
					Method:    m.Method,
					Path:      m.Path,
					Status:    m.Status,
					Headers:   m.Headers,
					Body:      m.Body,
					Reply:     m.Reply,
				}
			}
			tr.Actions = append(tr.Actions, act)
		}
		spec.Pattern.Transitions = append(spec.Pattern.Transitions, tr)
	}
	return spec
}
