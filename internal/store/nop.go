package store

import (
	"context"
	"sync/atomic"

	"github.com/amishk599/jobhound/internal/model"
)

// Ensure NopStore implements Store.
var _ Store = (*NopStore)(nil)

// NopStore is a no-op store used in dry-run mode. It remembers nothing, so
// every posting appears new on each run.
type NopStore struct {
	nextID atomic.Int64
}

func NewNopStore() *NopStore { return &NopStore{} }

// Insert echoes p back as a freshly created posting.
func (s *NopStore) Insert(_ context.Context, fingerprint string, p model.Posting) (model.StoredPosting, bool, error) {
	p.DetailStatus = persistedDetailStatus(p)
	return model.StoredPosting{
		Posting:     p,
		ID:          s.nextID.Add(1),
		Fingerprint: fingerprint,
		Status:      model.StatusNew,
	}, true, nil
}

func (s *NopStore) UpdateDetail(context.Context, int64, model.Posting) error { return nil }
func (s *NopStore) UpdateKeywordScore(context.Context, int64, float64) error { return nil }
func (s *NopStore) MarkNotified(context.Context, int64) error { return nil }
func (s *NopStore) ExpireOlderThan(context.Context, int) (int, error) { return 0, nil }
func (s *NopStore) RequeueFailed(context.Context, model.Source) (int, error) { return 0, nil }
func (s *NopStore) Stats(context.Context) (model.Stats, error) { return model.Stats{}, nil }
func (s *NopStore) RecordRun(context.Context, model.RunLog) error { return nil }
func (s *NopStore) Close() error { return nil }

func (s *NopStore) GetPending(context.Context, model.Source, int) ([]model.StoredPosting, error) {
	return nil, nil
}

func (s *NopStore) GetScorable(context.Context, float64, int) ([]model.StoredPosting, error) {
	return nil, nil
}

func (s *NopStore) ApplyScores(context.Context, []model.AIScore, model.Weights) ([]model.StoredPosting, error) {
	return nil, nil
}

func (s *NopStore) List(context.Context, model.ListFilter) ([]model.StoredPosting, error) {
	return nil, nil
}
