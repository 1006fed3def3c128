package store

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"consentry/internal/consent/models"
	"consentry/internal/sentinel"
)

type StoreSuite struct {
	suite.Suite
	storage *MemoryStorage
	now     time.Time
	store   *Store
}

func TestStoreSuite(t *testing.T) {
	suite.Run(t, new(StoreSuite))
}

func (s *StoreSuite) SetupTest() {
	s.storage = NewMemoryStorage()
	s.now = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	s.store = s.newStore(s.storage)
}

func (s *StoreSuite) newStore(storage Storage) *Store {
	return New(storage,
		WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))),
		WithClock(func() time.Time { return s.now }),
	)
}

func (s *StoreSuite) TestLoadAbsentWhenNeverSaved() {
	env, ok := s.store.Load()
	s.False(ok)
	s.Nil(env)
	s.Nil(s.store.Current())
}

func (s *StoreSuite) TestSaveThenLoad() {
	saved, err := s.store.Save(models.Selection(true, false, false), models.MethodSettings)
	s.Require().NoError(err)
	s.Equal(s.now, saved.SavedAt)
	s.Equal(models.SchemaVersion, saved.Version)

	s.Run("visible through a fresh store over the same storage", func() {
		env, ok := s.newStore(s.storage).Load()
		s.Require().True(ok)
		s.Equal(models.Selection(true, false, false), env.Preferences)
		s.Equal(models.MethodSettings, env.Method)
		s.True(env.SavedAt.Equal(s.now))
	})

	s.Run("all three keys written", func() {
		date, ok, _ := s.storage.GetItem(KeyConsentDate)
		s.True(ok)
		s.Equal("2025-06-01T12:00:00Z", date)
		version, ok, _ := s.storage.GetItem(KeyVersion)
		s.True(ok)
		s.Equal("1.0", version)
	})
}

func (s *StoreSuite) TestSaveOverwritesWithoutMerge() {
	_, err := s.store.Save(models.AcceptAll(), models.MethodBanner)
	s.Require().NoError(err)

	s.now = s.now.Add(time.Hour)
	_, err = s.store.Save(models.Selection(false, true, false), models.MethodSettings)
	s.Require().NoError(err)

	env, ok := s.store.Load()
	s.Require().True(ok)
	s.Equal(models.Selection(false, true, false), env.Preferences)
	s.Equal(s.now, env.SavedAt)
}

func (s *StoreSuite) TestSaveForcesNecessary() {
	env, err := s.store.Save(models.Record{Necessary: false, Analytics: true}, models.MethodAPI)
	s.Require().NoError(err)
	s.True(env.Preferences.Necessary)
}

func (s *StoreSuite) TestClear() {
	_, err := s.store.Save(models.Selection(true, false, false), models.MethodBanner)
	s.Require().NoError(err)

	s.Require().NoError(s.store.Clear())

	_, ok := s.store.Load()
	s.False(ok)
	s.Zero(s.storage.Len())
}

func (s *StoreSuite) TestUnparsableTreatedAsAbsent() {
	s.Require().NoError(s.storage.SetItem(KeyConsent, "{not json"))

	env, ok := s.store.Load()
	s.False(ok)
	s.Nil(env)
}

func (s *StoreSuite) TestValuesWithoutDecisionTreatedAsAbsent() {
	for _, raw := range []string{
		`null`,
		`{}`,
		`{"preferences":null}`,
		`{"preferences":null,"savedAt":"2025-01-01T00:00:00Z"}`,
		`{"foo":"bar"}`,
		`{"necessary":null}`,
	} {
		s.Run(raw, func() {
			s.Require().NoError(s.storage.SetItem(KeyConsent, raw))

			env, ok := s.newStore(s.storage).Load()
			s.False(ok)
			s.Nil(env)
		})
	}
}

func (s *StoreSuite) TestPartialBareRecordLoads() {
	s.Require().NoError(s.storage.SetItem(KeyConsent, `{"analytics":true}`))

	env, ok := s.store.Load()
	s.Require().True(ok)
	s.True(env.Preferences.Analytics)
	s.False(env.Preferences.Marketing)
}

func (s *StoreSuite) TestLoadsBareRecordForm() {
	raw, err := json.Marshal(models.Selection(false, true, true))
	s.Require().NoError(err)
	s.Require().NoError(s.storage.SetItem(KeyConsent, string(raw)))
	s.Require().NoError(s.storage.SetItem(KeyConsentDate, "2024-12-24T08:30:00Z"))

	env, ok := s.store.Load()
	s.Require().True(ok)
	s.Equal(models.Selection(false, true, true), env.Preferences)
	s.Equal(time.Date(2024, 12, 24, 8, 30, 0, 0, time.UTC), env.SavedAt.UTC())
	s.Equal(models.SchemaVersion, env.Version)
}

func (s *StoreSuite) TestQuotaExceededIsNonFatal() {
	store := s.newStore(NewQuotaStorage(32))

	env, err := store.Save(models.AcceptAll(), models.MethodBanner)
	s.Require().Error(err)
	s.ErrorIs(err, ErrStorageUnavailable)
	s.ErrorIs(err, ErrQuotaExceeded)
	s.ErrorIs(err, sentinel.ErrUnavailable)
	s.Require().NotNil(env)

	loaded, ok := store.Load()
	s.Require().True(ok, "in-memory state survives for the session")
	s.Equal(models.AcceptAll(), loaded.Preferences)
}

func (s *StoreSuite) TestStorageUnavailable() {
	store := s.newStore(FailingStorage{Err: errors.New("SecurityError: storage disabled")})

	_, ok := store.Load()
	s.False(ok)

	_, err := store.Save(models.Selection(true, false, false), models.MethodBanner)
	s.ErrorIs(err, ErrStorageUnavailable)
	s.Equal(models.Selection(true, false, false), *store.Current())

	s.ErrorIs(store.Clear(), ErrStorageUnavailable)
	s.Nil(store.Current())
}

func (s *StoreSuite) TestSubscribers() {
	var changes []Change
	unsubscribe := s.store.Subscribe(func(c Change) { changes = append(changes, c) })

	_, err := s.store.Save(models.Selection(true, false, false), models.MethodBanner)
	s.Require().NoError(err)
	s.Require().NoError(s.store.Clear())

	s.Require().Len(changes, 2)
	s.Require().NotNil(changes[0].Record)
	s.True(changes[0].Record.Analytics)
	s.Equal(s.now, changes[0].Envelope.SavedAt)
	s.Nil(changes[1].Record)
	s.Nil(changes[1].Envelope)

	unsubscribe()
	unsubscribe()
	_, _ = s.store.Save(models.AcceptAll(), models.MethodBanner)
	s.Len(changes, 2)
}

func (s *StoreSuite) TestSubscribersNotifiedOnFailedSave() {
	store := s.newStore(FailingStorage{})
	var got *models.Record
	store.Subscribe(func(c Change) { got = c.Record })

	_, err := store.Save(models.AcceptAll(), models.MethodBanner)
	s.Error(err)
	s.Require().NotNil(got)
	s.Equal(models.AcceptAll(), *got)
}

func (s *StoreSuite) TestListenerMayReadStore() {
	var seen *models.Record
	s.store.Subscribe(func(Change) { seen = s.store.Current() })

	_, err := s.store.Save(models.Selection(false, false, true), models.MethodSettings)
	s.Require().NoError(err)
	s.Require().NotNil(seen)
	s.True(seen.Functional)
}
