package recorder

import "context"

// NoopRecorder is a no-op implementation used when no database is configured.
type NoopRecorder struct{}

func NewNoopRecorder() *NoopRecorder { return &NoopRecorder{} }

func (n *NoopRecorder) AppendRow(_ context.Context, _ AuditRow) error { return nil }
func (n *NoopRecorder) Recent(_ context.Context, _ int) ([]AuditRow, error) {
	return nil, nil
}
func (n *NoopRecorder) Close() error { return nil }
