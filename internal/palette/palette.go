// Package palette supplies the node types a user can drop onto the canvas.
//
// Node types are declared in CUE under a top-level "node" struct, one field
// per type:
//
//	node: textNode: {
//		label:       "Message"
//		description: "Send a text message"
//		category:    "messaging"
//		renderer:    "TextNode"
//		defaults: message: "test message {n}"
//	}
//
// Every declaration is unified with an embedded schema before use. Default
// data templates may reference {n}, replaced with the 1-based position the
// new node will take in the flow. The core treats the type key as opaque.
package palette

import (
	_ "embed"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"cuelang.org/go/cue/load"
	"cuelang.org/go/cue/token"

	"github.com/roach88/flowbuilder/internal/flow"
)

//go:embed schema.cue
var schemaCUE string

//go:embed default.cue
var defaultCUE string

// Error codes for palette loading.
const (
	ErrCodeNotFound    = "P001" // Directory missing or not a directory
	ErrCodeNoFiles     = "P002" // No CUE files found
	ErrCodeLoadFailed  = "P003" // CUE load failed
	ErrCodeBuildFailed = "P004" // CUE build or schema unification failed
	ErrCodeEmpty       = "P005" // No node types declared
	ErrCodeField       = "P006" // A descriptor field could not be read
)

// LoadError reports a palette loading failure.
type LoadError struct {
	Code    string
	Message string
	Pos     token.Pos
}

func (e *LoadError) Error() string {
	if e.Pos.IsValid() {
		return fmt.Sprintf("%s:%d:%d: %s: %s", e.Pos.Filename(), e.Pos.Line(), e.Pos.Column(), e.Code, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Descriptor is one creatable node type.
type Descriptor struct {
	Type        string            `json:"type" yaml:"type"`
	Label       string            `json:"label" yaml:"label"`
	Description string            `json:"description" yaml:"description"`
	Category    string            `json:"category" yaml:"category"`
	Renderer    string            `json:"renderer" yaml:"renderer"`
	Defaults    map[string]string `json:"defaults,omitempty" yaml:"defaults,omitempty"`
}

// Registry is an ordered set of descriptors keyed by type.
type Registry struct {
	descriptors []Descriptor
	byType      map[string]int
}

// Default returns the built-in palette.
func Default() *Registry {
	r, err := LoadString("default.cue", defaultCUE)
	if err != nil {
		panic(fmt.Sprintf("palette: built-in definition invalid: %v", err))
	}
	return r
}

// LoadString builds a registry from CUE source.
func LoadString(filename, src string) (*Registry, error) {
	ctx := cuecontext.New()
	v := ctx.CompileString(src, cue.Filename(filename))
	if err := v.Err(); err != nil {
		return nil, &LoadError{Code: ErrCodeBuildFailed, Message: fmt.Sprintf("building CUE value: %v", err)}
	}
	return fromValue(ctx, v)
}

// LoadDir builds a registry from the CUE package in dir.
func LoadDir(dir string) (*Registry, error) {
	info, err := os.Stat(dir)
	if os.IsNotExist(err) {
		return nil, &LoadError{Code: ErrCodeNotFound, Message: fmt.Sprintf("palette directory not found: %s", dir)}
	}
	if err != nil {
		return nil, &LoadError{Code: ErrCodeNotFound, Message: fmt.Sprintf("error accessing palette directory: %v", err)}
	}
	if !info.IsDir() {
		return nil, &LoadError{Code: ErrCodeNotFound, Message: fmt.Sprintf("not a directory: %s", dir)}
	}

	matches, err := filepath.Glob(filepath.Join(dir, "*.cue"))
	if err != nil || len(matches) == 0 {
		return nil, &LoadError{Code: ErrCodeNoFiles, Message: fmt.Sprintf("no CUE files found in %s", dir)}
	}

	ctx := cuecontext.New()
	instances := load.Instances([]string{"."}, &load.Config{Dir: dir})
	if len(instances) == 0 {
		return nil, &LoadError{Code: ErrCodeLoadFailed, Message: "no CUE instances loaded"}
	}
	inst := instances[0]
	if inst.Err != nil {
		return nil, &LoadError{Code: ErrCodeLoadFailed, Message: fmt.Sprintf("loading CUE files: %v", inst.Err)}
	}

	v := ctx.BuildInstance(inst)
	if err := v.Err(); err != nil {
		return nil, &LoadError{Code: ErrCodeBuildFailed, Message: fmt.Sprintf("building CUE value: %v", err)}
	}
	return fromValue(ctx, v)
}

func fromValue(ctx *cue.Context, v cue.Value) (*Registry, error) {
	schema := ctx.CompileString(schemaCUE, cue.Filename("schema.cue"))
	v = v.Unify(schema)
	if err := v.Validate(cue.Concrete(true)); err != nil {
		return nil, &LoadError{Code: ErrCodeBuildFailed, Message: fmt.Sprintf("palette does not match schema: %v", err)}
	}

	nodes := v.LookupPath(cue.ParsePath("node"))
	if !nodes.Exists() {
		return nil, &LoadError{Code: ErrCodeEmpty, Message: "no node types declared"}
	}
	iter, err := nodes.Fields()
	if err != nil {
		return nil, &LoadError{Code: ErrCodeField, Message: fmt.Sprintf("iterating node types: %v", err)}
	}

	r := &Registry{byType: make(map[string]int)}
	for iter.Next() {
		var d Descriptor
		if err := iter.Value().Decode(&d); err != nil {
			return nil, &LoadError{Code: ErrCodeField, Message: fmt.Sprintf("node.%s: %v", iter.Label(), err), Pos: iter.Value().Pos()}
		}
		d.Type = iter.Label()
		r.byType[d.Type] = len(r.descriptors)
		r.descriptors = append(r.descriptors, d)
	}
	if len(r.descriptors) == 0 {
		return nil, &LoadError{Code: ErrCodeEmpty, Message: "no node types declared"}
	}
	return r, nil
}

// Descriptors returns every descriptor in declaration order.
func (r *Registry) Descriptors() []Descriptor {
	out := make([]Descriptor, len(r.descriptors))
	copy(out, r.descriptors)
	return out
}

// Lookup returns the descriptor for nodeType.
func (r *Registry) Lookup(nodeType string) (Descriptor, bool) {
	i, ok := r.byType[nodeType]
	if !ok {
		return Descriptor{}, false
	}
	return r.descriptors[i], true
}

// DefaultData returns the initial data for a node of nodeType dropped into
// a flow that already holds count nodes. Unknown types get empty data.
func (r *Registry) DefaultData(nodeType string, count int) flow.Data {
	data := flow.Data{}
	d, ok := r.Lookup(nodeType)
	if !ok {
		return data
	}
	n := strconv.Itoa(count + 1)
	for k, tmpl := range d.Defaults {
		data[k] = strings.ReplaceAll(tmpl, "{n}", n)
	}
	return data
}

// Renderers maps each node type to its renderer name.
func (r *Registry) Renderers() map[string]string {
	out := make(map[string]string, len(r.descriptors))
	for _, d := range r.descriptors {
		out[d.Type] = d.Renderer
	}
	return out
}
