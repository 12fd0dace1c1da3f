package emit

// Event represents an observability event emitted during workflow execution.
//
// Events provide detailed insight into workflow behavior:
//   - Node execution start/complete
//   - State changes and transitions
//   - Errors and warnings
//   - Performance metrics
//   - Checkpoint operations
//
// Events are emitted to an Emitter which can:
//   - Log to stdout/stderr
//   - Send to OpenTelemetry
//   - Store in time-series databases
//   - Trigger alerts
type Event struct {
	// RunID identifies the workflow execution that emitted this event.
	RunID string

	// Step is the sequential step number in the workflow (1-indexed).
	// Zero for workflow-level events (start, complete, error).
	Step int

	// NodeID identifies which node emitted this event.
	// Empty string for workflow-level events.
	NodeID string

	// Msg is a human-readable description of the event.
	Msg string

	// Meta contains additional structured data specific to this event.
	// Common keys:
	//   - "duration_ms": Execution duration in milliseconds
	//   - "error": Error details
	//   - "tokens": Token count for LLM calls
	//   - "checkpoint_id": Checkpoint identifier
	//   - "retryable": Whether an error can be retried
	Meta map[string]interface{}
}

// StreamMode selects which class of streamed output a caller wants from a
// run. A caller may subscribe to several modes at once via StreamFilter;
// each StreamChunk is tagged with exactly one.
type StreamMode string

const (
	// StreamModeValues carries the full state after a super-step completes.
	StreamModeValues StreamMode = "values"
	// StreamModeUpdates carries only the delta a single node produced.
	StreamModeUpdates StreamMode = "updates"
	// StreamModeMessages carries LLM response chunks as they're produced,
	// tagged with MessageMetadata identifying the originating node.
	StreamModeMessages StreamMode = "messages"
	// StreamModeCustom carries caller-defined payloads a node explicitly
	// chooses to publish (distinct from its Delta/Route).
	StreamModeCustom StreamMode = "custom"
	// StreamModeDebug carries the same level of detail as Event, reframed
	// as a stream chunk for callers that want one subscription surface.
	StreamModeDebug StreamMode = "debug"
)

// MessageMetadata accompanies a StreamModeMessages chunk, identifying which
// node produced it and carrying any caller-defined tags/extras, matching
// the {langgraph_node, tags, extra} metadata shape.
type MessageMetadata struct {
	LanggraphNode string
	Tags          []string
	Extra         map[string]any
}

// StreamChunk is one unit of streamed output across all five modes. Path
// records subgraph nesting: empty means the chunk originated at the
// top-level run, otherwise it is the sequence of subgraph node IDs the
// chunk was re-emitted through (outermost first) on its way out.
type StreamChunk struct {
	Mode     StreamMode
	RunID    string
	NodeID   string
	Path     []string
	Data     any
	Metadata *MessageMetadata // set only for StreamModeMessages
}

// WithPathPrefix returns a copy of chunk with node prepended to Path,
// matching subgraph re-emission's path-prefixing rule: each subgraph node
// boundary the chunk crosses on its way to the top-level caller prepends
// its own NodeID.
func (c StreamChunk) WithPathPrefix(node string) StreamChunk {
	prefixed := make([]string, 0, len(c.Path)+1)
	prefixed = append(prefixed, node)
	prefixed = append(prefixed, c.Path...)
	c.Path = prefixed
	return c
}

// StreamFilter decides whether a chunk matches a caller's subscribed modes.
// A zero-value StreamFilter (no modes given) matches every chunk, for the
// common single-subscriber case.
type StreamFilter struct {
	Modes map[StreamMode]bool
}

// NewStreamFilter builds a filter matching exactly the given modes.
func NewStreamFilter(modes ...StreamMode) StreamFilter {
	if len(modes) == 0 {
		return StreamFilter{}
	}
	m := make(map[StreamMode]bool, len(modes))
	for _, mode := range modes {
		m[mode] = true
	}
	return StreamFilter{Modes: m}
}

// Match reports whether chunk should be delivered under this filter.
func (f StreamFilter) Match(chunk StreamChunk) bool {
	if len(f.Modes) == 0 {
		return true
	}
	return f.Modes[chunk.Mode]
}
