package remote

import (
	"context"

	"go.uber.org/zap"

	"github.com/wewew312/todomemes/internal/model"
)

// Stub stands in for the backend when none is configured: fetches come
// back empty and mutations are acknowledged without leaving the process.
type Stub struct {
	log *zap.Logger
}

func NewStub(log *zap.Logger) *Stub {
	if log == nil {
		log = zap.NewNop()
	}
	return &Stub{log: log.Named("remote.stub")}
}

func (s *Stub) FetchAll(ctx context.Context) ([]model.Item, error) {
	s.log.Debug("fetch all (offline): empty")
	return nil, nil
}

func (s *Stub) FetchByID(ctx context.Context, uid string) (model.Item, bool, error) {
	s.log.Debug("fetch (offline)", zap.String("uid", uid))
	return model.Item{}, false, nil
}

func (s *Stub) Create(ctx context.Context, item model.Item) error {
	s.log.Debug("create (offline)", zap.String("uid", item.UID), zap.String("text", item.Text))
	return nil
}

func (s *Stub) Update(ctx context.Context, item model.Item) error {
	s.log.Debug("update (offline)", zap.String("uid", item.UID), zap.Bool("done", item.Done))
	return nil
}

func (s *Stub) Delete(ctx context.Context, uid string) error {
	s.log.Debug("delete (offline)", zap.String("uid", uid))
	return nil
}

func (s *Stub) SyncAll(ctx context.Context, items []model.Item) ([]model.Item, error) {
	s.log.Debug("sync (offline)", zap.Int("count", len(items)))
	return items, nil
}

func (s *Stub) Flush(ctx context.Context) error { return nil }

func (s *Stub) Close(ctx context.Context) error { return nil }
