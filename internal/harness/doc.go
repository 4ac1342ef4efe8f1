// Package harness runs scripted editor sessions.
//
// A scenario is a YAML file listing render-surface events and the state
// the editor must end in:
//
//	name: connect_and_save
//	description: "Two connected nodes form a valid flow"
//	steps:
//	  - type: drop
//	    node_type: textNode
//	    screen: {x: 0, y: 0}
//	    as: n1
//	  - type: drop
//	    node_type: textNode
//	    screen: {x: 100, y: 0}
//	    as: n2
//	  - type: connect
//	    connection: {source: $n1, target: $n2}
//	    expect: {accepted: true}
//	  - type: save
//	    expect: {outcome: success}
//	  - advance: 3s
//	assertions:
//	  - type: valid
//	    valid: true
//	  - type: status
//	    kind: none
//
// Node ids are allocated at run time; a drop step's "as" binds the new id
// to a name that later steps and assertions reference as $name.
//
// # Assertion Types
//
//   - node_count: number of nodes equals count
//   - edge_count: number of edges equals count
//   - selection: controller state (idle|editing), optionally the node
//   - valid: the flow passes (or fails) entry-point validation
//   - status: current status kind (success|error|none), optionally its text
//   - edge_target: the edge leaving source/source_handle goes to target
//   - node_data: a node's data contains the given keys and values
//   - revision_count: number of stored revisions equals count
//
// # Deterministic Runs
//
// Every run gets a fresh editor over an in-memory backend, a fixed clock
// and a manual scheduler, so node ids, revision ids and status dismissals
// are identical across runs. "advance" steps move both the clock and the
// scheduler forward, firing any dismissal that falls due.
package harness
