package harness

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/roach88/flowbuilder/internal/editor"
	"github.com/roach88/flowbuilder/internal/persist"
	"github.com/roach88/flowbuilder/internal/selection"
)

// Scenario is one scripted editor session.
type Scenario struct {
	// Name uniquely identifies the scenario; it also names its golden file.
	Name string `yaml:"name"`

	Description string `yaml:"description"`

	// Flow identifies the flow being edited. Defaults to flow-1 / "Untitled".
	Flow FlowRef `yaml:"flow,omitempty"`

	// Settings adjust editor behaviour for this scenario.
	Settings Settings `yaml:"settings,omitempty"`

	Steps      []Step      `yaml:"steps"`
	Assertions []Assertion `yaml:"assertions"`
}

// FlowRef names the flow a scenario edits.
type FlowRef struct {
	ID   string `yaml:"id"`
	Name string `yaml:"name"`
}

// Settings mirror the graph section of the configuration file.
type Settings struct {
	// AllowSelfLoops defaults to true when unset.
	AllowSelfLoops *bool `yaml:"allow_self_loops,omitempty"`
	StrictUpdates  bool  `yaml:"strict_updates,omitempty"`
}

// Step is one event, a pause, or both. When both are set the event is
// applied first.
type Step struct {
	editor.Event `yaml:",inline"`

	// As binds the id allocated by a drop to a name.
	As string `yaml:"as,omitempty"`

	// Advance moves virtual time forward after the event.
	Advance time.Duration `yaml:"advance,omitempty"`

	Expect *Expect `yaml:"expect,omitempty"`
}

// Expect checks the reply to a single step.
type Expect struct {
	// Error reports whether the event must be rejected with an error.
	Error bool `yaml:"error,omitempty"`

	// Accepted is checked for connect steps.
	Accepted *bool `yaml:"accepted,omitempty"`

	// Outcome is checked for save steps.
	Outcome persist.Outcome `yaml:"outcome,omitempty"`
}

// Assertion checks the editor state after the last step.
type Assertion struct {
	Type string `yaml:"type"`

	// Count is used by node_count, edge_count and revision_count.
	Count *int `yaml:"count,omitempty"`

	// State and Node are used by selection; Node also by node_data.
	State selection.State `yaml:"state,omitempty"`
	Node  string          `yaml:"node,omitempty"`

	// Valid is used by valid.
	Valid *bool `yaml:"valid,omitempty"`

	// Kind and Text are used by status. Kind "none" means no message.
	Kind string `yaml:"kind,omitempty"`
	Text string `yaml:"text,omitempty"`

	// Source, SourceHandle and Target are used by edge_target.
	Source       string `yaml:"source,omitempty"`
	SourceHandle string `yaml:"source_handle,omitempty"`
	Target       string `yaml:"target,omitempty"`

	// Data is used by node_data. Subset match.
	Data map[string]any `yaml:"data,omitempty"`
}

// Assertion type constants.
const (
	AssertNodeCount     = "node_count"
	AssertEdgeCount     = "edge_count"
	AssertSelection     = "selection"
	AssertValid         = "valid"
	AssertStatus        = "status"
	AssertEdgeTarget    = "edge_target"
	AssertNodeData      = "node_data"
	AssertRevisionCount = "revision_count"
)

// StatusNone is the status kind asserting that no message is shown.
const StatusNone = "none"

// LoadScenario reads and parses a scenario YAML file. Unknown fields are
// rejected so typos fail loudly.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}
	return ParseScenario(data)
}

// ParseScenario parses and validates scenario YAML.
func ParseScenario(data []byte) (*Scenario, error) {
	var s Scenario
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&s); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	if err := validateScenario(&s); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}
	return &s, nil
}

// FindScenarios lists the .yaml and .yml files in dir, sorted by name.
// A non-empty filter is matched against each file's base name with
// filepath.Match.
func FindScenarios(dir, filter string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}

	var files []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		name := e.Name()
		ext := strings.ToLower(filepath.Ext(name))
		if ext != ".yaml" && ext != ".yml" {
			continue
		}
		if filter != "" {
			ok, err := filepath.Match(filter, strings.TrimSuffix(name, filepath.Ext(name)))
			if err != nil {
				return nil, fmt.Errorf("bad filter %q: %w", filter, err)
			}
			if !ok {
				continue
			}
		}
		files = append(files, filepath.Join(dir, name))
	}
	return files, nil
}

func validateScenario(s *Scenario) error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}
	if len(s.Steps) == 0 {
		return fmt.Errorf("steps list is required and must be non-empty")
	}
	if len(s.Assertions) == 0 {
		return fmt.Errorf("assertions list is required and must be non-empty")
	}

	for i, step := range s.Steps {
		if step.Type == "" && step.Advance == 0 {
			return fmt.Errorf("steps[%d]: type or advance is required", i)
		}
		if step.Advance < 0 {
			return fmt.Errorf("steps[%d]: advance must be non-negative", i)
		}
		if step.As != "" && step.Type != editor.EventDrop {
			return fmt.Errorf("steps[%d]: as is only valid on drop steps", i)
		}
		if step.Type == editor.EventDismissStatus {
			return fmt.Errorf("steps[%d]: dismiss_status is driven by advance", i)
		}
		if step.Expect != nil && step.Type == "" {
			return fmt.Errorf("steps[%d]: expect needs an event", i)
		}
	}

	for i := range s.Assertions {
		if err := validateAssertion(i, &s.Assertions[i]); err != nil {
			return err
		}
	}
	return nil
}

func validateAssertion(index int, a *Assertion) error {
	if a.Type == "" {
		return fmt.Errorf("assertions[%d]: type is required", index)
	}

	switch a.Type {
	case AssertNodeCount, AssertEdgeCount, AssertRevisionCount:
		if a.Count == nil {
			return fmt.Errorf("assertions[%d]: count is required for %s", index, a.Type)
		}
		if *a.Count < 0 {
			return fmt.Errorf("assertions[%d]: count must be non-negative for %s", index, a.Type)
		}
	case AssertSelection:
		if a.State != selection.StateIdle && a.State != selection.StateEditing {
			return fmt.Errorf("assertions[%d]: state must be idle or editing", index)
		}
	case AssertValid:
		if a.Valid == nil {
			return fmt.Errorf("assertions[%d]: valid is required", index)
		}
	case AssertStatus:
		switch a.Kind {
		case "success", "error", StatusNone:
		default:
			return fmt.Errorf("assertions[%d]: kind must be success, error or none", index)
		}
	case AssertEdgeTarget:
		if a.Source == "" || a.Target == "" {
			return fmt.Errorf("assertions[%d]: source and target are required for edge_target", index)
		}
	case AssertNodeData:
		if a.Node == "" || len(a.Data) == 0 {
			return fmt.Errorf("assertions[%d]: node and data are required for node_data", index)
		}
	default:
		return fmt.Errorf("assertions[%d]: unknown assertion type %q", index, a.Type)
	}
	return nil
}
