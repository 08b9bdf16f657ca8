package telemetry

// Span attribute keys.
const (
	AttrQueryKind  = "turbinemap.query.kind"
	AttrQueryBox   = "turbinemap.query.bbox"
	AttrQueryLimit = "turbinemap.query.limit"
	AttrResults    = "turbinemap.query.results"
	AttrCacheHit   = "turbinemap.cache.hit"
	AttrStore      = "turbinemap.store"
)
