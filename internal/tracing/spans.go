package tracing

// Span attribute keys for display pipeline tracing.
const (
	AttrBufferID    = "buffer.id"
	AttrBufferBytes = "buffer.bytes"
	AttrEditCount   = "edit.count"
	AttrTabWidth    = "tab.width"
	AttrWrapWidth   = "wrap.width"
	AttrWrapRows    = "wrap.rows"
	AttrInterpolate = "wrap.interpolated"
	AttrBlockCount  = "block.count"
)

// Span names used by the display map.
const (
	SpanDisplaySync = "display.sync"
	SpanWrapRewrap  = "wrap.rewrap"
)
