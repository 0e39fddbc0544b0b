package storage

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"

	"github.com/talentscout/sessiond/pkg/models"
)

// fakeStore is an in-memory RecordStore whose operations can be forced to
// fail, simulating an unreachable remote database.
type fakeStore struct {
	records map[string]models.SavedInterview
	order   []string
	failing bool

	saves   int
	deletes int
}

func newFakeStore() *fakeStore {
	return &fakeStore{records: make(map[string]models.SavedInterview)}
}

var errUnreachable = errors.New("store unreachable")

func (f *fakeStore) Save(_ context.Context, rec models.SavedInterview) error {
	if f.failing {
		return errUnreachable
	}
	f.saves++
	if _, ok := f.records[rec.ID]; !ok {
		f.order = append(f.order, rec.ID)
	}
	f.records[rec.ID] = rec
	return nil
}

func (f *fakeStore) List(_ context.Context) ([]models.SavedInterview, error) {
	if f.failing {
		return nil, errUnreachable
	}
	out := make([]models.SavedInterview, 0, len(f.order))
	for i := len(f.order) - 1; i >= 0; i-- {
		out = append(out, f.records[f.order[i]])
	}
	return out, nil
}

func (f *fakeStore) Get(_ context.Context, id string) (*models.SavedInterview, error) {
	if f.failing {
		return nil, errUnreachable
	}
	rec, ok := f.records[id]
	if !ok {
		return nil, nil
	}
	return &rec, nil
}

func (f *fakeStore) Rename(_ context.Context, id, name string) error {
	if f.failing {
		return errUnreachable
	}
	rec, ok := f.records[id]
	if !ok {
		return errors.New("not found")
	}
	rec.Name = name
	f.records[id] = rec
	return nil
}

func (f *fakeStore) Delete(_ context.Context, id string) error {
	if f.failing {
		return errUnreachable
	}
	f.deletes++
	delete(f.records, id)
	return nil
}

type HybridSuite struct {
	suite.Suite
	local  *fakeStore
	remote *fakeStore
	hybrid *Hybrid
}

func (s *HybridSuite) SetupTest() {
	s.local = newFakeStore()
	s.remote = newFakeStore()
	s.hybrid = NewHybrid(s.local, s.remote)
}

func TestHybridSuite(t *testing.T) {
	suite.Run(t, new(HybridSuite))
}

func record(id string) models.SavedInterview {
	return models.SavedInterview{
		ID:   id,
		Name: "Practice run",
		Date: time.Now(),
	}
}

func (s *HybridSuite) TestSaveWritesBothStores() {
	s.Require().NoError(s.hybrid.Save(context.Background(), record("a")))
	s.Equal(1, s.local.saves)
	s.Equal(1, s.remote.saves)
}

func (s *HybridSuite) TestSaveSurvivesRemoteFailure() {
	s.remote.failing = true
	s.Require().NoError(s.hybrid.Save(context.Background(), record("a")))
	s.Equal(1, s.local.saves)
	s.Equal(0, s.remote.saves)
}

func (s *HybridSuite) TestSaveFailsWhenLocalFails() {
	s.local.failing = true
	s.Error(s.hybrid.Save(context.Background(), record("a")))
}

func (s *HybridSuite) TestListPrefersRemote() {
	ctx := context.Background()
	s.Require().NoError(s.remote.Save(ctx, record("remote-only")))
	s.Require().NoError(s.local.Save(ctx, record("local-only")))

	list, err := s.hybrid.List(ctx)
	s.Require().NoError(err)
	s.Require().Len(list, 1)
	s.Equal("remote-only", list[0].ID)
}

func (s *HybridSuite) TestListFallsBackToLocal() {
	ctx := context.Background()
	s.Require().NoError(s.local.Save(ctx, record("local-only")))
	s.remote.failing = true

	list, err := s.hybrid.List(ctx)
	s.Require().NoError(err)
	s.Require().Len(list, 1)
	s.Equal("local-only", list[0].ID)
}

func (s *HybridSuite) TestGetFallsBackToLocal() {
	ctx := context.Background()
	s.Require().NoError(s.local.Save(ctx, record("a")))

	got, err := s.hybrid.Get(ctx, "a")
	s.Require().NoError(err)
	s.Require().NotNil(got)
	s.Equal("a", got.ID)
}

func (s *HybridSuite) TestRenameSucceedsOnEitherStore() {
	ctx := context.Background()
	s.Require().NoError(s.hybrid.Save(ctx, record("a")))

	// Local rename failing is fine as long as remote worked.
	s.local.failing = true
	s.NoError(s.hybrid.Rename(ctx, "a", "Renamed"))
	s.Equal("Renamed", s.remote.records["a"].Name)

	// Both failing is an error.
	s.remote.failing = true
	s.Error(s.hybrid.Rename(ctx, "a", "Again"))
}

func (s *HybridSuite) TestDeleteRemovesBoth() {
	ctx := context.Background()
	s.Require().NoError(s.hybrid.Save(ctx, record("a")))

	s.Require().NoError(s.hybrid.Delete(ctx, "a"))
	s.Empty(s.local.records)
	s.Empty(s.remote.records)
}

func (s *HybridSuite) TestNoRemoteConfigured() {
	hybrid := NewHybrid(s.local, nil)
	ctx := context.Background()

	s.Require().NoError(hybrid.Save(ctx, record("a")))
	list, err := hybrid.List(ctx)
	s.Require().NoError(err)
	s.Len(list, 1)
}

func TestNewRecord(t *testing.T) {
	rec := NewRecord("report", "analysis", "transcript", models.Stats{ResponseCount: 2})
	require.NotEmpty(t, rec.ID)
	assert.Equal(t, rec.Date.Format("Jan 2, 2006 03:04 PM"), rec.Name)
	assert.Equal(t, "report", rec.Report)
	assert.Equal(t, 2, rec.Stats.ResponseCount)
	assert.WithinDuration(t, time.Now(), rec.Date, time.Minute)
}
