package service

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"connectrpc.com/connect"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/mmynk/geocaching/internal/auth"
	"github.com/mmynk/geocaching/internal/metrics"
	"github.com/mmynk/geocaching/internal/middleware"
	"github.com/mmynk/geocaching/internal/storage/sqlite"
	"github.com/mmynk/geocaching/pkg/api"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m,
		goleak.IgnoreAnyFunction("github.com/patrickmn/go-cache.(*janitor).Run"),
		goleak.IgnoreAnyFunction("net/http.(*persistConn).readLoop"),
		goleak.IgnoreAnyFunction("net/http.(*persistConn).writeLoop"),
		goleak.IgnoreTopFunction("internal/poll.runtime_pollWait"),
	)
}

// Anna placed geocache 1, Bertil placed geocache 2.
const twoCaches = `Anna | Andersson | Sweden | Göteborg | Ekelundsgatan | 8 | 57.7 | 11.97
10 | 57.7 | 11.96 | Lugnande musik | Lyssna och njut!

Bertil | Berg | Sweden | Göteborg | Linnégatan | 21 | 57.69 | 11.95
11 | 57.72 | 11.99 | Mynt | Byt ett
`

type testServer struct {
	client  *api.MapServiceClient
	service *MapService
	metrics *metrics.Metrics
	jwt     *auth.JWTManager
}

// setupTestServer serves a MapService over a temporary database. Admin
// procedures require a token when secret is set.
func setupTestServer(t *testing.T, secret string) *testServer {
	t.Helper()
	return setupTestServerWithTTL(t, secret, time.Minute)
}

func setupTestServerWithTTL(t *testing.T, secret string, ttl time.Duration) *testServer {
	t.Helper()

	store, err := sqlite.New(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)

	m := metrics.New()
	svc := NewMapService(store, Options{
		View:       api.MapView{Center: api.Coordinate{Latitude: 57.719021, Longitude: 11.991202}, Zoom: 12},
		SessionTTL: ttl,
		Metrics:    m,
	})

	interceptors := []connect.Interceptor{
		middleware.LoggingInterceptor(),
		middleware.MetricsInterceptor(m),
	}
	ts := &testServer{service: svc, metrics: m}
	if secret != "" {
		ts.jwt = auth.NewJWTManager(secret, time.Hour)
		interceptors = append(interceptors, middleware.RequireAuth(ts.jwt, api.AdminProcedures...))
	}

	path, handler := api.NewMapServiceHandler(svc, connect.WithInterceptors(interceptors...))
	mux := http.NewServeMux()
	mux.Handle(path, handler)
	server := httptest.NewServer(mux)

	ts.client = api.NewMapServiceClient(server.Client(), server.URL)

	t.Cleanup(func() {
		server.Close()
		store.Close()
	})

	return ts
}

func (ts *testServer) importData(t *testing.T, data string) {
	t.Helper()
	_, err := ts.client.ImportDataset(context.Background(), connect.NewRequest(&api.ImportDatasetRequest{Data: data}))
	require.NoError(t, err)
}

func (ts *testServer) open(t *testing.T) *api.OpenSessionResponse {
	t.Helper()
	resp, err := ts.client.OpenSession(context.Background(), connect.NewRequest(&api.OpenSessionRequest{}))
	require.NoError(t, err)
	require.NotEmpty(t, resp.Msg.SessionId)
	return resp.Msg
}

func colorOf(t *testing.T, markers []api.Marker, kind string, id int64) api.Marker {
	t.Helper()
	for _, m := range markers {
		if m.Kind == kind && m.EntityId == id {
			return m
		}
	}
	t.Fatalf("no %s marker for id %d", kind, id)
	return api.Marker{}
}

func TestOpenSession(t *testing.T) {
	ts := setupTestServer(t, "")
	ts.importData(t, twoCaches)

	sess := ts.open(t)
	assert.Equal(t, 12, sess.View.Zoom)
	assert.InDelta(t, 57.719021, sess.View.Center.Latitude, 1e-9)
	require.Len(t, sess.Markers, 4)

	for _, m := range sess.Markers {
		assert.Equal(t, 1.0, m.Opacity)
		if m.Kind == api.KindPerson {
			assert.Equal(t, "blue", m.Color)
		} else {
			assert.Equal(t, "gray", m.Color)
		}
	}

	anna := colorOf(t, sess.Markers, api.KindPerson, 1)
	assert.Equal(t, "Anna Andersson\nEkelundsgatan 8\nGöteborg", anna.Tooltip)
	cache := colorOf(t, sess.Markers, api.KindGeocache, 1)
	assert.Equal(t, "Lugnande musik\nLyssna och njut!", cache.Tooltip)
}

func TestToggleFoundScenario(t *testing.T) {
	ts := setupTestServer(t, "")
	ts.importData(t, twoCaches)
	ctx := context.Background()
	id := ts.open(t).SessionId

	selected, err := ts.client.SelectPerson(ctx, connect.NewRequest(&api.SelectPersonRequest{SessionId: id, PersonId: 1}))
	require.NoError(t, err)
	assert.Equal(t, int64(1), selected.Msg.ActivePersonId)
	assert.Equal(t, "black", colorOf(t, selected.Msg.Markers, api.KindGeocache, 1).Color)
	assert.Equal(t, "red", colorOf(t, selected.Msg.Markers, api.KindGeocache, 2).Color)
	assert.Equal(t, 0.5, colorOf(t, selected.Msg.Markers, api.KindPerson, 2).Opacity)

	marked, err := ts.client.ToggleFound(ctx, connect.NewRequest(&api.ToggleFoundRequest{SessionId: id, GeocacheId: 2}))
	require.NoError(t, err)
	assert.Equal(t, "marked", marked.Msg.Outcome)
	assert.Equal(t, "green", colorOf(t, marked.Msg.Markers, api.KindGeocache, 2).Color)

	cleared, err := ts.client.ToggleFound(ctx, connect.NewRequest(&api.ToggleFoundRequest{SessionId: id, GeocacheId: 2}))
	require.NoError(t, err)
	assert.Equal(t, "cleared", cleared.Msg.Outcome)
	assert.Equal(t, "red", colorOf(t, cleared.Msg.Markers, api.KindGeocache, 2).Color)

	own, err := ts.client.ToggleFound(ctx, connect.NewRequest(&api.ToggleFoundRequest{SessionId: id, GeocacheId: 1}))
	require.NoError(t, err)
	assert.Equal(t, "unchanged", own.Msg.Outcome)
	assert.Equal(t, "black", colorOf(t, own.Msg.Markers, api.KindGeocache, 1).Color)
}

func TestToggleFound_NoActivePerson(t *testing.T) {
	ts := setupTestServer(t, "")
	ts.importData(t, twoCaches)
	id := ts.open(t).SessionId

	_, err := ts.client.ToggleFound(context.Background(), connect.NewRequest(&api.ToggleFoundRequest{SessionId: id, GeocacheId: 2}))
	require.Error(t, err)
	assert.Equal(t, connect.CodeFailedPrecondition, connect.CodeOf(err))
}

func TestToggleFound_UnknownGeocache(t *testing.T) {
	ts := setupTestServer(t, "")
	ts.importData(t, twoCaches)
	ctx := context.Background()
	id := ts.open(t).SessionId

	_, err := ts.client.SelectPerson(ctx, connect.NewRequest(&api.SelectPersonRequest{SessionId: id, PersonId: 1}))
	require.NoError(t, err)

	_, err = ts.client.ToggleFound(ctx, connect.NewRequest(&api.ToggleFoundRequest{SessionId: id, GeocacheId: 99}))
	require.Error(t, err)
	assert.Equal(t, connect.CodeNotFound, connect.CodeOf(err))
}

func TestSelectPerson_DeselectAndUnknown(t *testing.T) {
	ts := setupTestServer(t, "")
	ts.importData(t, twoCaches)
	ctx := context.Background()
	id := ts.open(t).SessionId

	_, err := ts.client.SelectPerson(ctx, connect.NewRequest(&api.SelectPersonRequest{SessionId: id, PersonId: 42}))
	require.Error(t, err)
	assert.Equal(t, connect.CodeNotFound, connect.CodeOf(err))

	_, err = ts.client.SelectPerson(ctx, connect.NewRequest(&api.SelectPersonRequest{SessionId: id, PersonId: 2}))
	require.NoError(t, err)

	resp, err := ts.client.SelectPerson(ctx, connect.NewRequest(&api.SelectPersonRequest{SessionId: id, PersonId: 0}))
	require.NoError(t, err)
	assert.Zero(t, resp.Msg.ActivePersonId)
	for _, m := range resp.Msg.Markers {
		assert.Equal(t, 1.0, m.Opacity)
		assert.Contains(t, []string{"blue", "gray"}, m.Color)
	}
}

func TestUnknownSession(t *testing.T) {
	ts := setupTestServer(t, "")
	ctx := context.Background()

	_, err := ts.client.ListMarkers(ctx, connect.NewRequest(&api.ListMarkersRequest{SessionId: "missing"}))
	require.Error(t, err)
	assert.Equal(t, connect.CodeNotFound, connect.CodeOf(err))

	_, err = ts.client.ListMarkers(ctx, connect.NewRequest(&api.ListMarkersRequest{}))
	require.Error(t, err)
	assert.Equal(t, connect.CodeInvalidArgument, connect.CodeOf(err))
}

func TestExpiredSession(t *testing.T) {
	ts := setupTestServerWithTTL(t, "", 20*time.Millisecond)
	id := ts.open(t).SessionId
	assert.Contains(t, scrape(t, ts.metrics), "geocaching_active_sessions 1")

	time.Sleep(50 * time.Millisecond)

	_, err := ts.client.ListMarkers(context.Background(), connect.NewRequest(&api.ListMarkersRequest{SessionId: id}))
	require.Error(t, err)
	assert.Equal(t, connect.CodeNotFound, connect.CodeOf(err))

	assert.Eventually(t, func() bool {
		return strings.Contains(scrape(t, ts.metrics), "geocaching_active_sessions 0")
	}, time.Second, 10*time.Millisecond)
}

func scrape(t *testing.T, m *metrics.Metrics) string {
	t.Helper()
	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	return rec.Body.String()
}

func TestCloseSession(t *testing.T) {
	ts := setupTestServer(t, "")
	ctx := context.Background()
	id := ts.open(t).SessionId

	_, err := ts.client.CloseSession(ctx, connect.NewRequest(&api.CloseSessionRequest{SessionId: id}))
	require.NoError(t, err)

	_, err = ts.client.ListMarkers(ctx, connect.NewRequest(&api.ListMarkersRequest{SessionId: id}))
	assert.Equal(t, connect.CodeNotFound, connect.CodeOf(err))

	_, err = ts.client.CloseSession(ctx, connect.NewRequest(&api.CloseSessionRequest{SessionId: id}))
	assert.Equal(t, connect.CodeNotFound, connect.CodeOf(err))
}

func TestAddPersonAndGeocache(t *testing.T) {
	ts := setupTestServer(t, "")
	ctx := context.Background()
	id := ts.open(t).SessionId

	person, err := ts.client.AddPerson(ctx, connect.NewRequest(&api.AddPersonRequest{
		SessionId: id,
		FirstName: " Cecilia ",
		LastName:  "Carlsson",
		Address:   api.Address{Country: "Sweden", City: "Göteborg", StreetName: "Vasagatan", StreetNumber: 3},
		Coordinate: api.Coordinate{
			Latitude:  57.70,
			Longitude: 11.97,
		},
	}))
	require.NoError(t, err)
	assert.Equal(t, int64(1), person.Msg.Person.Id)
	assert.Equal(t, "Cecilia", person.Msg.Person.FirstName)
	require.Len(t, person.Msg.Markers, 1)

	unowned, err := ts.client.AddGeocache(ctx, connect.NewRequest(&api.AddGeocacheRequest{
		SessionId:  id,
		Coordinate: api.Coordinate{Latitude: 57.71, Longitude: 11.98},
		Contents:   "Knappar",
		Message:    "Ta en",
	}))
	require.NoError(t, err)
	assert.Zero(t, unowned.Msg.Geocache.OwnerId)

	_, err = ts.client.SelectPerson(ctx, connect.NewRequest(&api.SelectPersonRequest{SessionId: id, PersonId: 1}))
	require.NoError(t, err)

	owned, err := ts.client.AddGeocache(ctx, connect.NewRequest(&api.AddGeocacheRequest{
		SessionId:  id,
		Coordinate: api.Coordinate{Latitude: 57.72, Longitude: 11.99},
		Contents:   "Frimärken",
		Message:    "Byt ett",
	}))
	require.NoError(t, err)
	assert.Equal(t, int64(1), owned.Msg.Geocache.OwnerId)
	assert.Equal(t, "black", colorOf(t, owned.Msg.Markers, api.KindGeocache, owned.Msg.Geocache.Id).Color)
	assert.Equal(t, "red", colorOf(t, owned.Msg.Markers, api.KindGeocache, unowned.Msg.Geocache.Id).Color)
}

func TestAddPerson_Invalid(t *testing.T) {
	ts := setupTestServer(t, "")
	id := ts.open(t).SessionId

	_, err := ts.client.AddPerson(context.Background(), connect.NewRequest(&api.AddPersonRequest{
		SessionId: id,
		FirstName: "",
		LastName:  "Carlsson",
		Address:   api.Address{Country: "Sweden", City: "Göteborg", StreetName: "Vasagatan", StreetNumber: 3},
	}))
	require.Error(t, err)
	assert.Equal(t, connect.CodeInvalidArgument, connect.CodeOf(err))
}

func TestAddGeocache_Invalid(t *testing.T) {
	ts := setupTestServer(t, "")
	id := ts.open(t).SessionId

	_, err := ts.client.AddGeocache(context.Background(), connect.NewRequest(&api.AddGeocacheRequest{
		SessionId:  id,
		Coordinate: api.Coordinate{Latitude: 95, Longitude: 11.98},
		Contents:   "Knappar",
		Message:    "Ta en",
	}))
	require.Error(t, err)
	assert.Equal(t, connect.CodeInvalidArgument, connect.CodeOf(err))
}

func TestImportExportRoundTrip(t *testing.T) {
	ts := setupTestServer(t, "")
	ctx := context.Background()

	data := `Anna | Andersson | Sweden | Göteborg | Ekelundsgatan | 8 | 57.7 | 11.97
1 | 57.7 | 11.96 | Lugnande musik | Lyssna och njut!
Found: 2

Bertil | Berg | Sweden | Göteborg | Linnégatan | 21 | 57.69 | 11.95
2 | 57.72 | 11.99 | Mynt | Byt ett
Found: 1, 3

3 | 57.73 | 11.98 | Klistermärken | Ingen ägare
`
	imported, err := ts.client.ImportDataset(ctx, connect.NewRequest(&api.ImportDatasetRequest{Data: data}))
	require.NoError(t, err)
	assert.Equal(t, 2, imported.Msg.Persons)
	assert.Equal(t, 3, imported.Msg.Geocaches)
	assert.Equal(t, 3, imported.Msg.Found)

	exported, err := ts.client.ExportDataset(ctx, connect.NewRequest(&api.ExportDatasetRequest{}))
	require.NoError(t, err)
	assert.Equal(t, data, exported.Msg.Data)
}

func TestImportDataset_ParseError(t *testing.T) {
	ts := setupTestServer(t, "")

	_, err := ts.client.ImportDataset(context.Background(), connect.NewRequest(&api.ImportDatasetRequest{Data: "a | b | c\n"}))
	require.Error(t, err)
	assert.Equal(t, connect.CodeInvalidArgument, connect.CodeOf(err))
	assert.Contains(t, err.Error(), "line 1")
}

func TestResetDataset(t *testing.T) {
	ts := setupTestServer(t, "")
	ts.importData(t, twoCaches)
	ctx := context.Background()
	id := ts.open(t).SessionId

	_, err := ts.client.ResetDataset(ctx, connect.NewRequest(&api.ResetDatasetRequest{}))
	require.NoError(t, err)

	resp, err := ts.client.ListMarkers(ctx, connect.NewRequest(&api.ListMarkersRequest{SessionId: id}))
	require.NoError(t, err)
	assert.Empty(t, resp.Msg.Markers)
}

func TestSessionsSeeEachOthersWrites(t *testing.T) {
	ts := setupTestServer(t, "")
	ts.importData(t, twoCaches)
	ctx := context.Background()
	first := ts.open(t).SessionId
	second := ts.open(t).SessionId

	for _, id := range []string{first, second} {
		_, err := ts.client.SelectPerson(ctx, connect.NewRequest(&api.SelectPersonRequest{SessionId: id, PersonId: 1}))
		require.NoError(t, err)
	}

	_, err := ts.client.ToggleFound(ctx, connect.NewRequest(&api.ToggleFoundRequest{SessionId: first, GeocacheId: 2}))
	require.NoError(t, err)

	resp, err := ts.client.ListMarkers(ctx, connect.NewRequest(&api.ListMarkersRequest{SessionId: second}))
	require.NoError(t, err)
	assert.Equal(t, int64(1), resp.Msg.ActivePersonId)
	assert.Equal(t, "green", colorOf(t, resp.Msg.Markers, api.KindGeocache, 2).Color)

	// The second session toggles back; the first must not keep its stale view.
	_, err = ts.client.ToggleFound(ctx, connect.NewRequest(&api.ToggleFoundRequest{SessionId: second, GeocacheId: 2}))
	require.NoError(t, err)

	resp, err = ts.client.ListMarkers(ctx, connect.NewRequest(&api.ListMarkersRequest{SessionId: first}))
	require.NoError(t, err)
	assert.Equal(t, "red", colorOf(t, resp.Msg.Markers, api.KindGeocache, 2).Color)
}

func TestAdminProceduresRequireToken(t *testing.T) {
	ts := setupTestServer(t, "test-secret")
	ctx := context.Background()

	_, err := ts.client.ImportDataset(ctx, connect.NewRequest(&api.ImportDatasetRequest{Data: twoCaches}))
	require.Error(t, err)
	assert.Equal(t, connect.CodeUnauthenticated, connect.CodeOf(err))

	_, err = ts.client.ResetDataset(ctx, connect.NewRequest(&api.ResetDatasetRequest{}))
	assert.Equal(t, connect.CodeUnauthenticated, connect.CodeOf(err))

	token, err := ts.jwt.Generate("tester")
	require.NoError(t, err)

	req := connect.NewRequest(&api.ImportDatasetRequest{Data: twoCaches})
	req.Header().Set("Authorization", "Bearer "+token)
	resp, err := ts.client.ImportDataset(ctx, req)
	require.NoError(t, err)
	assert.Equal(t, 2, resp.Msg.Persons)
	assert.NotEmpty(t, resp.Header().Get(middleware.RequestIDHeader))

	// Map procedures stay open.
	sess := ts.open(t)
	assert.Len(t, sess.Markers, 4)
}

// syncBuffer collects log output written by server goroutines.
type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) lines() []map[string]any {
	b.mu.Lock()
	defer b.mu.Unlock()

	var out []map[string]any
	for _, line := range strings.Split(strings.TrimSpace(b.buf.String()), "\n") {
		var entry map[string]any
		if json.Unmarshal([]byte(line), &entry) == nil {
			out = append(out, entry)
		}
	}
	return out
}

func TestAdminCallsLogOperatorAndRequestID(t *testing.T) {
	logs := &syncBuffer{}
	prev := slog.Default()
	slog.SetDefault(slog.New(slog.NewJSONHandler(logs, nil)))
	t.Cleanup(func() { slog.SetDefault(prev) })

	ts := setupTestServer(t, "test-secret")
	token, err := ts.jwt.Generate("anna")
	require.NoError(t, err)

	req := connect.NewRequest(&api.ResetDatasetRequest{})
	req.Header().Set("Authorization", "Bearer "+token)
	resp, err := ts.client.ResetDataset(context.Background(), req)
	require.NoError(t, err)
	requestID := resp.Header().Get(middleware.RequestIDHeader)
	require.NotEmpty(t, requestID)

	var found bool
	for _, entry := range logs.lines() {
		if entry["msg"] != "Dataset reset" {
			continue
		}
		found = true
		assert.Equal(t, "anna", entry["operator"])
		assert.Equal(t, requestID, entry["request_id"])
	}
	assert.True(t, found, "no reset log line")
}

func TestErrorsCarryRequestID(t *testing.T) {
	ts := setupTestServer(t, "")

	_, err := ts.client.ListMarkers(context.Background(), connect.NewRequest(&api.ListMarkersRequest{SessionId: "missing"}))
	require.Error(t, err)

	var connectErr *connect.Error
	require.ErrorAs(t, err, &connectErr)
	assert.NotEmpty(t, connectErr.Meta().Get(middleware.RequestIDHeader))
}

func TestExportEmptyDataset(t *testing.T) {
	ts := setupTestServer(t, "")

	resp, err := ts.client.ExportDataset(context.Background(), connect.NewRequest(&api.ExportDatasetRequest{}))
	require.NoError(t, err)
	assert.True(t, strings.TrimSpace(resp.Msg.Data) == "")
}
