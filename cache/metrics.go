package cache

// NoopMetrics is a drop-in Metrics implementation that does nothing.
type NoopMetrics struct{}

func (NoopMetrics) Hit()          {}
func (NoopMetrics) Miss()         {}
func (NoopMetrics) Fetch()        {}
func (NoopMetrics) FetchError()   {}
func (NoopMetrics) Stale()        {}
func (NoopMetrics) Size(int, int) {}

var _ Metrics = NoopMetrics{}
