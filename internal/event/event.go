// Package event decodes inbound tracker events into a closed set of variants.
package event

import (
	"bytes"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

type Kind string

const (
	KindCreate   Kind = "create"
	KindReassign Kind = "reassign"
	KindComplete Kind = "complete"
	KindDelete   Kind = "delete"
)

// Event is one of Create, Reassign, Complete or Delete.
type Event interface {
	EventKind() Kind
}

type Create struct {
	ExternalID  string `json:"externalId"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	Kind        string `json:"kind,omitempty"`
	Priority    string `json:"priority,omitempty"`
	Points      int    `json:"points,omitempty"`
	OwnerHint   string `json:"ownerHint,omitempty"`
	Status      string `json:"status,omitempty"`
	TeamID      string `json:"teamId,omitempty"`
}

// Target addresses an existing entity by internal or tracker id.
type Target struct {
	EntityID   string `json:"entityId,omitempty"`
	ExternalID string `json:"externalId,omitempty"`
}

type Reassign struct {
	Target
	NewOwner string `json:"newOwner"`
}

type Complete struct {
	Target
}

type Delete struct {
	Target
	Privileged bool `json:"privileged,omitempty"`
}

func (Create) EventKind() Kind   { return KindCreate }
func (Reassign) EventKind() Kind { return KindReassign }
func (Complete) EventKind() Kind { return KindComplete }
func (Delete) EventKind() Kind   { return KindDelete }

// ErrInvalid marks every rejection produced by Parse.
var ErrInvalid = errors.New("invalid event")

// ValidationError lists why a payload was rejected.
type ValidationError struct {
	Problems []string
}

func (e *ValidationError) Error() string {
	return "invalid event: " + strings.Join(e.Problems, "; ")
}

func (e *ValidationError) Unwrap() error { return ErrInvalid }

//go:embed event.schema.json
var schemaJSON []byte

// Parser validates payloads against the embedded schema before decoding.
type Parser struct {
	schema *jsonschema.Schema
}

func NewParser() (*Parser, error) {
	c := jsonschema.NewCompiler()
	if err := c.AddResource("event.schema.json", bytes.NewReader(schemaJSON)); err != nil {
		return nil, fmt.Errorf("add event schema: %w", err)
	}
	schema, err := c.Compile("event.schema.json")
	if err != nil {
		return nil, fmt.Errorf("compile event schema: %w", err)
	}
	return &Parser{schema: schema}, nil
}

// MustParser panics if the embedded schema does not compile.
func MustParser() *Parser {
	p, err := NewParser()
	if err != nil {
		panic(err)
	}
	return p
}

func (p *Parser) Parse(raw []byte) (Event, error) {
	var doc any
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, &ValidationError{Problems: []string{"invalid JSON body"}}
	}
	if err := p.schema.Validate(doc); err != nil {
		return nil, &ValidationError{Problems: schemaProblems(err)}
	}

	var head struct {
		Type Kind `json:"type"`
	}
	if err := json.Unmarshal(raw, &head); err != nil {
		return nil, &ValidationError{Problems: []string{err.Error()}}
	}

	var (
		ev  Event
		err error
	)
	switch head.Type {
	case KindCreate:
		var c Create
		err = json.Unmarshal(raw, &c)
		c.ExternalID = strings.TrimSpace(c.ExternalID)
		c.Name = strings.TrimSpace(c.Name)
		ev = c
	case KindReassign:
		var r Reassign
		err = json.Unmarshal(raw, &r)
		ev = r
	case KindComplete:
		var c Complete
		err = json.Unmarshal(raw, &c)
		ev = c
	case KindDelete:
		var d Delete
		err = json.Unmarshal(raw, &d)
		ev = d
	default:
		return nil, &ValidationError{Problems: []string{fmt.Sprintf("unknown event type %q", head.Type)}}
	}
	if err != nil {
		return nil, &ValidationError{Problems: []string{err.Error()}}
	}
	if c, ok := ev.(Create); ok && (c.ExternalID == "" || c.Name == "") {
		return nil, &ValidationError{Problems: []string{"externalId and name are required"}}
	}
	return ev, nil
}

func schemaProblems(err error) []string {
	var ve *jsonschema.ValidationError
	if !errors.As(err, &ve) {
		return []string{err.Error()}
	}
	problems := make([]string, 0)
	for _, leaf := range leaves(ve) {
		loc := leaf.InstanceLocation
		if loc == "" {
			loc = "/"
		}
		problems = append(problems, fmt.Sprintf("%s: %s", loc, leaf.Message))
	}
	if len(problems) == 0 {
		problems = append(problems, ve.Message)
	}
	return problems
}

func leaves(ve *jsonschema.ValidationError) []*jsonschema.ValidationError {
	if len(ve.Causes) == 0 {
		return []*jsonschema.ValidationError{ve}
	}
	var out []*jsonschema.ValidationError
	for _, c := range ve.Causes {
		out = append(out, leaves(c)...)
	}
	return out
}
