package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync/atomic"
	"time"

	"connectrpc.com/connect"

	"github.com/mmynk/geocaching/internal/datafile"
	"github.com/mmynk/geocaching/internal/metrics"
	"github.com/mmynk/geocaching/internal/middleware"
	"github.com/mmynk/geocaching/internal/models"
	"github.com/mmynk/geocaching/internal/reconciler"
	"github.com/mmynk/geocaching/internal/storage"
	"github.com/mmynk/geocaching/pkg/api"
)

// Ensure MapService implements api.MapServiceHandler
var _ api.MapServiceHandler = (*MapService)(nil)

// Options configures a MapService.
type Options struct {
	// View is the initial map position handed to new sessions.
	View api.MapView

	// SessionTTL is how long an idle session is kept.
	SessionTTL time.Duration

	// Metrics receives service metrics. A private set is created when nil.
	Metrics *metrics.Metrics
}

// MapService implements the Connect MapService.
type MapService struct {
	store    storage.Store
	view     api.MapView
	metrics  *metrics.Metrics
	sessions *sessionRegistry

	// generation increases with every dataset write so sessions know when
	// their markers are stale.
	generation atomic.Uint64
}

// NewMapService creates a new MapService with the given storage backend.
func NewMapService(store storage.Store, opts Options) *MapService {
	if opts.Metrics == nil {
		opts.Metrics = metrics.New()
	}
	if opts.SessionTTL <= 0 {
		opts.SessionTTL = 30 * time.Minute
	}

	return &MapService{
		store:    store,
		view:     opts.View,
		metrics:  opts.Metrics,
		sessions: newSessionRegistry(opts.SessionTTL, opts.Metrics),
	}
}

// OpenSession creates a map session with markers loaded from the store.
func (s *MapService) OpenSession(ctx context.Context, req *connect.Request[api.OpenSessionRequest]) (*connect.Response[api.OpenSessionResponse], error) {
	slog.Info("OpenSession request received")

	generation := s.generation.Load()
	rec := reconciler.New(s.store, s.store, s.store)
	if err := rec.Load(ctx); err != nil {
		logger(ctx).Error("OpenSession failed", "error", err)
		return nil, connect.NewError(connect.CodeInternal, err)
	}

	sess := s.sessions.add(rec, generation)
	markers := toMarkers(rec.Markers())

	slog.Info("Session opened", "session_id", sess.id, "markers", len(markers), "sessions", s.sessions.count())

	return connect.NewResponse(&api.OpenSessionResponse{
		SessionId: sess.id,
		View:      s.view,
		Markers:   markers,
	}), nil
}

// CloseSession drops a session.
func (s *MapService) CloseSession(ctx context.Context, req *connect.Request[api.CloseSessionRequest]) (*connect.Response[api.CloseSessionResponse], error) {
	slog.Info("CloseSession request received", "session_id", req.Msg.SessionId)

	if !s.sessions.remove(req.Msg.SessionId) {
		return nil, connect.NewError(connect.CodeNotFound, fmt.Errorf("session not found: %s", req.Msg.SessionId))
	}

	return connect.NewResponse(&api.CloseSessionResponse{}), nil
}

// ListMarkers returns the current markers of a session.
func (s *MapService) ListMarkers(ctx context.Context, req *connect.Request[api.ListMarkersRequest]) (*connect.Response[api.MarkersResponse], error) {
	sess, err := s.acquire(ctx, req.Msg.SessionId)
	if err != nil {
		return nil, err
	}
	defer sess.mu.Unlock()

	resp := markersResponse(sess.reconciler)
	return connect.NewResponse(&resp), nil
}

// SelectPerson makes a person active, or clears the selection for ID 0.
func (s *MapService) SelectPerson(ctx context.Context, req *connect.Request[api.SelectPersonRequest]) (*connect.Response[api.MarkersResponse], error) {
	slog.Info("SelectPerson request received",
		"session_id", req.Msg.SessionId,
		"person_id", req.Msg.PersonId,
	)

	sess, err := s.acquire(ctx, req.Msg.SessionId)
	if err != nil {
		return nil, err
	}
	defer sess.mu.Unlock()

	if _, err := sess.reconciler.SelectPersonByID(req.Msg.PersonId); err != nil {
		logger(ctx).Warn("SelectPerson failed", "person_id", req.Msg.PersonId, "error", err)
		return nil, toConnectError(err)
	}

	resp := markersResponse(sess.reconciler)
	return connect.NewResponse(&resp), nil
}

// ToggleFound flips the found state between the active person and a geocache.
func (s *MapService) ToggleFound(ctx context.Context, req *connect.Request[api.ToggleFoundRequest]) (*connect.Response[api.ToggleFoundResponse], error) {
	slog.Info("ToggleFound request received",
		"session_id", req.Msg.SessionId,
		"geocache_id", req.Msg.GeocacheId,
	)

	sess, err := s.acquire(ctx, req.Msg.SessionId)
	if err != nil {
		return nil, err
	}
	defer sess.mu.Unlock()

	outcome, err := sess.reconciler.ToggleFoundByID(ctx, req.Msg.GeocacheId)
	if err != nil {
		logger(ctx).Error("ToggleFound failed", "geocache_id", req.Msg.GeocacheId, "error", err)
		return nil, toConnectError(err)
	}
	if outcome != reconciler.FoundUnchanged {
		s.written(sess)
	}
	s.metrics.Toggles.WithLabelValues(outcome.String()).Inc()

	slog.Info("ToggleFound successful", "geocache_id", req.Msg.GeocacheId, "outcome", outcome)

	return connect.NewResponse(&api.ToggleFoundResponse{
		Outcome:         outcome.String(),
		MarkersResponse: markersResponse(sess.reconciler),
	}), nil
}

// AddPerson persists a new person and adds their marker.
func (s *MapService) AddPerson(ctx context.Context, req *connect.Request[api.AddPersonRequest]) (*connect.Response[api.AddPersonResponse], error) {
	slog.Info("AddPerson request received",
		"session_id", req.Msg.SessionId,
		"first_name", req.Msg.FirstName,
		"last_name", req.Msg.LastName,
	)

	sess, err := s.acquire(ctx, req.Msg.SessionId)
	if err != nil {
		return nil, err
	}
	defer sess.mu.Unlock()

	person := &models.Person{
		FirstName: strings.TrimSpace(req.Msg.FirstName),
		LastName:  strings.TrimSpace(req.Msg.LastName),
		Address: models.Address{
			Country:      strings.TrimSpace(req.Msg.Address.Country),
			City:         strings.TrimSpace(req.Msg.Address.City),
			StreetName:   strings.TrimSpace(req.Msg.Address.StreetName),
			StreetNumber: req.Msg.Address.StreetNumber,
		},
		Coordinate: fromCoordinate(req.Msg.Coordinate),
	}
	if err := person.Validate(); err != nil {
		return nil, toConnectError(err)
	}

	if err := s.store.CreatePerson(ctx, person); err != nil {
		logger(ctx).Error("AddPerson failed", "error", err)
		return nil, toConnectError(err)
	}
	sess.reconciler.AddPerson(person)
	s.written(sess)
	s.metrics.DatasetWrites.WithLabelValues("person").Inc()

	slog.Info("Person created", "person_id", person.ID)

	return connect.NewResponse(&api.AddPersonResponse{
		Person:          toPerson(person),
		MarkersResponse: markersResponse(sess.reconciler),
	}), nil
}

// AddGeocache persists a new geocache owned by the active person, or
// unowned when nobody is selected.
func (s *MapService) AddGeocache(ctx context.Context, req *connect.Request[api.AddGeocacheRequest]) (*connect.Response[api.AddGeocacheResponse], error) {
	slog.Info("AddGeocache request received", "session_id", req.Msg.SessionId)

	sess, err := s.acquire(ctx, req.Msg.SessionId)
	if err != nil {
		return nil, err
	}
	defer sess.mu.Unlock()

	geocache := &models.Geocache{
		Coordinate: fromCoordinate(req.Msg.Coordinate),
		Contents:   strings.TrimSpace(req.Msg.Contents),
		Message:    strings.TrimSpace(req.Msg.Message),
	}
	if active := sess.reconciler.ActivePerson(); active != nil {
		geocache.OwnerID = models.OwnerRef(active.ID)
	}
	if err := geocache.Validate(); err != nil {
		return nil, toConnectError(err)
	}

	if err := s.store.CreateGeocache(ctx, geocache); err != nil {
		logger(ctx).Error("AddGeocache failed", "error", err)
		return nil, toConnectError(err)
	}
	sess.reconciler.AddGeocache(geocache)
	s.written(sess)
	s.metrics.DatasetWrites.WithLabelValues("geocache").Inc()

	slog.Info("Geocache created", "geocache_id", geocache.ID, "owned", geocache.OwnerID != nil)

	return connect.NewResponse(&api.AddGeocacheResponse{
		Geocache:        toGeocache(geocache),
		MarkersResponse: markersResponse(sess.reconciler),
	}), nil
}

// ImportDataset replaces the stored dataset with the contents of a data file.
func (s *MapService) ImportDataset(ctx context.Context, req *connect.Request[api.ImportDatasetRequest]) (*connect.Response[api.ImportDatasetResponse], error) {
	log := logger(ctx).With("operator", middleware.GetOperator(ctx))
	log.Info("ImportDataset request received", "bytes", len(req.Msg.Data))

	ds, err := datafile.Parse(strings.NewReader(req.Msg.Data))
	if err != nil {
		log.Warn("ImportDataset rejected", "error", err)
		return nil, toConnectError(err)
	}

	if err := s.store.ImportDataset(ctx, ds); err != nil {
		log.Error("ImportDataset failed", "error", err)
		return nil, toConnectError(err)
	}
	s.generation.Add(1)
	s.metrics.DatasetWrites.WithLabelValues("import").Inc()

	log.Info("Dataset imported",
		"persons", len(ds.Persons),
		"geocaches", len(ds.Geocaches),
		"found", len(ds.Found),
	)

	return connect.NewResponse(&api.ImportDatasetResponse{
		Persons:   len(ds.Persons),
		Geocaches: len(ds.Geocaches),
		Found:     len(ds.Found),
	}), nil
}

// ExportDataset writes the stored dataset as a data file.
func (s *MapService) ExportDataset(ctx context.Context, req *connect.Request[api.ExportDatasetRequest]) (*connect.Response[api.ExportDatasetResponse], error) {
	slog.Info("ExportDataset request received")

	ds, err := LoadDataset(ctx, s.store)
	if err != nil {
		logger(ctx).Error("ExportDataset failed", "error", err)
		return nil, toConnectError(err)
	}

	var sb strings.Builder
	if err := datafile.Write(&sb, ds); err != nil {
		logger(ctx).Error("ExportDataset failed", "error", err)
		return nil, toConnectError(err)
	}

	slog.Info("ExportDataset successful", "persons", len(ds.Persons), "geocaches", len(ds.Geocaches))

	return connect.NewResponse(&api.ExportDatasetResponse{Data: sb.String()}), nil
}

// ResetDataset deletes everything.
func (s *MapService) ResetDataset(ctx context.Context, req *connect.Request[api.ResetDatasetRequest]) (*connect.Response[api.ResetDatasetResponse], error) {
	log := logger(ctx).With("operator", middleware.GetOperator(ctx))
	log.Info("ResetDataset request received")

	if err := s.store.Reset(ctx); err != nil {
		log.Error("ResetDataset failed", "error", err)
		return nil, toConnectError(err)
	}
	s.generation.Add(1)
	s.metrics.DatasetWrites.WithLabelValues("reset").Inc()

	log.Info("Dataset reset")

	return connect.NewResponse(&api.ResetDatasetResponse{}), nil
}

// LoadDataset reads the whole stored dataset.
func LoadDataset(ctx context.Context, store storage.Store) (*models.Dataset, error) {
	persons, err := store.ListPersons(ctx)
	if err != nil {
		return nil, err
	}
	geocaches, err := store.ListGeocaches(ctx)
	if err != nil {
		return nil, err
	}

	ds := &models.Dataset{Persons: persons, Geocaches: geocaches}
	for _, p := range persons {
		ds.Found = append(ds.Found, p.Found...)
	}
	return ds, nil
}

// acquire looks up a session, locks it and reloads its markers if the
// dataset changed since they were built. The caller must unlock sess.mu.
func (s *MapService) acquire(ctx context.Context, sessionID string) (*session, error) {
	if sessionID == "" {
		return nil, connect.NewError(connect.CodeInvalidArgument, errors.New("session_id required"))
	}

	sess, ok := s.sessions.get(sessionID)
	if !ok {
		return nil, connect.NewError(connect.CodeNotFound, fmt.Errorf("session not found: %s", sessionID))
	}

	sess.mu.Lock()
	if current := s.generation.Load(); sess.generation != current {
		if err := sess.reconciler.Load(ctx); err != nil {
			sess.mu.Unlock()
			logger(ctx).Error("Session reload failed", "session_id", sessionID, "error", err)
			return nil, connect.NewError(connect.CodeInternal, err)
		}
		slog.Debug("Session reloaded", "session_id", sessionID, "generation", current)
		sess.generation = current
	}

	return sess, nil
}

// written records a dataset write made through sess. The session stays
// current unless another write happened since it was last loaded.
func (s *MapService) written(sess *session) {
	next := s.generation.Add(1)
	if sess.generation == next-1 {
		sess.generation = next
	}
}

// logger tags the default logger with the call's request ID.
func logger(ctx context.Context) *slog.Logger {
	return slog.With("request_id", middleware.GetRequestID(ctx))
}

func toConnectError(err error) error {
	var parseErr *datafile.ParseError
	switch {
	case errors.Is(err, models.ErrValidation), errors.As(err, &parseErr):
		return connect.NewError(connect.CodeInvalidArgument, err)
	case errors.Is(err, reconciler.ErrNoActivePerson):
		return connect.NewError(connect.CodeFailedPrecondition, err)
	case errors.Is(err, reconciler.ErrUnknownPerson),
		errors.Is(err, reconciler.ErrUnknownGeocache),
		errors.Is(err, storage.ErrNotFound):
		return connect.NewError(connect.CodeNotFound, err)
	default:
		return connect.NewError(connect.CodeInternal, err)
	}
}
