package api

import (
	"context"
	"net/http"
	"strings"

	"connectrpc.com/connect"
)

// MapServiceName is the fully-qualified name of the MapService service.
const MapServiceName = "geocaching.v1.MapService"

// Procedure paths served by MapService.
const (
	MapServiceOpenSessionProcedure   = "/geocaching.v1.MapService/OpenSession"
	MapServiceCloseSessionProcedure  = "/geocaching.v1.MapService/CloseSession"
	MapServiceListMarkersProcedure   = "/geocaching.v1.MapService/ListMarkers"
	MapServiceSelectPersonProcedure  = "/geocaching.v1.MapService/SelectPerson"
	MapServiceToggleFoundProcedure   = "/geocaching.v1.MapService/ToggleFound"
	MapServiceAddPersonProcedure     = "/geocaching.v1.MapService/AddPerson"
	MapServiceAddGeocacheProcedure   = "/geocaching.v1.MapService/AddGeocache"
	MapServiceImportDatasetProcedure = "/geocaching.v1.MapService/ImportDataset"
	MapServiceExportDatasetProcedure = "/geocaching.v1.MapService/ExportDataset"
	MapServiceResetDatasetProcedure  = "/geocaching.v1.MapService/ResetDataset"
)

// AdminProcedures replace or erase the whole dataset.
var AdminProcedures = []string{
	MapServiceImportDatasetProcedure,
	MapServiceResetDatasetProcedure,
}

// MapServiceHandler is implemented by the server.
type MapServiceHandler interface {
	OpenSession(context.Context, *connect.Request[OpenSessionRequest]) (*connect.Response[OpenSessionResponse], error)
	CloseSession(context.Context, *connect.Request[CloseSessionRequest]) (*connect.Response[CloseSessionResponse], error)
	ListMarkers(context.Context, *connect.Request[ListMarkersRequest]) (*connect.Response[MarkersResponse], error)
	SelectPerson(context.Context, *connect.Request[SelectPersonRequest]) (*connect.Response[MarkersResponse], error)
	ToggleFound(context.Context, *connect.Request[ToggleFoundRequest]) (*connect.Response[ToggleFoundResponse], error)
	AddPerson(context.Context, *connect.Request[AddPersonRequest]) (*connect.Response[AddPersonResponse], error)
	AddGeocache(context.Context, *connect.Request[AddGeocacheRequest]) (*connect.Response[AddGeocacheResponse], error)
	ImportDataset(context.Context, *connect.Request[ImportDatasetRequest]) (*connect.Response[ImportDatasetResponse], error)
	ExportDataset(context.Context, *connect.Request[ExportDatasetRequest]) (*connect.Response[ExportDatasetResponse], error)
	ResetDataset(context.Context, *connect.Request[ResetDatasetRequest]) (*connect.Response[ResetDatasetResponse], error)
}

// NewMapServiceHandler builds an HTTP handler from the service
// implementation. It returns the path on which to mount the handler and the
// handler itself.
func NewMapServiceHandler(svc MapServiceHandler, opts ...connect.HandlerOption) (string, http.Handler) {
	opts = append([]connect.HandlerOption{WithCodec()}, opts...)

	handlers := map[string]http.Handler{
		MapServiceOpenSessionProcedure:   connect.NewUnaryHandler(MapServiceOpenSessionProcedure, svc.OpenSession, opts...),
		MapServiceCloseSessionProcedure:  connect.NewUnaryHandler(MapServiceCloseSessionProcedure, svc.CloseSession, opts...),
		MapServiceListMarkersProcedure:   connect.NewUnaryHandler(MapServiceListMarkersProcedure, svc.ListMarkers, opts...),
		MapServiceSelectPersonProcedure:  connect.NewUnaryHandler(MapServiceSelectPersonProcedure, svc.SelectPerson, opts...),
		MapServiceToggleFoundProcedure:   connect.NewUnaryHandler(MapServiceToggleFoundProcedure, svc.ToggleFound, opts...),
		MapServiceAddPersonProcedure:     connect.NewUnaryHandler(MapServiceAddPersonProcedure, svc.AddPerson, opts...),
		MapServiceAddGeocacheProcedure:   connect.NewUnaryHandler(MapServiceAddGeocacheProcedure, svc.AddGeocache, opts...),
		MapServiceImportDatasetProcedure: connect.NewUnaryHandler(MapServiceImportDatasetProcedure, svc.ImportDataset, opts...),
		MapServiceExportDatasetProcedure: connect.NewUnaryHandler(MapServiceExportDatasetProcedure, svc.ExportDataset, opts...),
		MapServiceResetDatasetProcedure:  connect.NewUnaryHandler(MapServiceResetDatasetProcedure, svc.ResetDataset, opts...),
	}

	return "/" + MapServiceName + "/", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if h, ok := handlers[r.URL.Path]; ok {
			h.ServeHTTP(w, r)
			return
		}
		http.NotFound(w, r)
	})
}

// MapServiceClient calls MapService over HTTP.
type MapServiceClient struct {
	openSession   *connect.Client[OpenSessionRequest, OpenSessionResponse]
	closeSession  *connect.Client[CloseSessionRequest, CloseSessionResponse]
	listMarkers   *connect.Client[ListMarkersRequest, MarkersResponse]
	selectPerson  *connect.Client[SelectPersonRequest, MarkersResponse]
	toggleFound   *connect.Client[ToggleFoundRequest, ToggleFoundResponse]
	addPerson     *connect.Client[AddPersonRequest, AddPersonResponse]
	addGeocache   *connect.Client[AddGeocacheRequest, AddGeocacheResponse]
	importDataset *connect.Client[ImportDatasetRequest, ImportDatasetResponse]
	exportDataset *connect.Client[ExportDatasetRequest, ExportDatasetResponse]
	resetDataset  *connect.Client[ResetDatasetRequest, ResetDatasetResponse]
}

// NewMapServiceClient constructs a client for the MapService at baseURL
// (for example, http://localhost:8080).
func NewMapServiceClient(httpClient connect.HTTPClient, baseURL string, opts ...connect.ClientOption) *MapServiceClient {
	baseURL = strings.TrimRight(baseURL, "/")
	opts = append([]connect.ClientOption{WithCodec()}, opts...)

	return &MapServiceClient{
		openSession:   connect.NewClient[OpenSessionRequest, OpenSessionResponse](httpClient, baseURL+MapServiceOpenSessionProcedure, opts...),
		closeSession:  connect.NewClient[CloseSessionRequest, CloseSessionResponse](httpClient, baseURL+MapServiceCloseSessionProcedure, opts...),
		listMarkers:   connect.NewClient[ListMarkersRequest, MarkersResponse](httpClient, baseURL+MapServiceListMarkersProcedure, opts...),
		selectPerson:  connect.NewClient[SelectPersonRequest, MarkersResponse](httpClient, baseURL+MapServiceSelectPersonProcedure, opts...),
		toggleFound:   connect.NewClient[ToggleFoundRequest, ToggleFoundResponse](httpClient, baseURL+MapServiceToggleFoundProcedure, opts...),
		addPerson:     connect.NewClient[AddPersonRequest, AddPersonResponse](httpClient, baseURL+MapServiceAddPersonProcedure, opts...),
		addGeocache:   connect.NewClient[AddGeocacheRequest, AddGeocacheResponse](httpClient, baseURL+MapServiceAddGeocacheProcedure, opts...),
		importDataset: connect.NewClient[ImportDatasetRequest, ImportDatasetResponse](httpClient, baseURL+MapServiceImportDatasetProcedure, opts...),
		exportDataset: connect.NewClient[ExportDatasetRequest, ExportDatasetResponse](httpClient, baseURL+MapServiceExportDatasetProcedure, opts...),
		resetDataset:  connect.NewClient[ResetDatasetRequest, ResetDatasetResponse](httpClient, baseURL+MapServiceResetDatasetProcedure, opts...),
	}
}

func (c *MapServiceClient) OpenSession(ctx context.Context, req *connect.Request[OpenSessionRequest]) (*connect.Response[OpenSessionResponse], error) {
	return c.openSession.CallUnary(ctx, req)
}

func (c *MapServiceClient) CloseSession(ctx context.Context, req *connect.Request[CloseSessionRequest]) (*connect.Response[CloseSessionResponse], error) {
	return c.closeSession.CallUnary(ctx, req)
}

func (c *MapServiceClient) ListMarkers(ctx context.Context, req *connect.Request[ListMarkersRequest]) (*connect.Response[MarkersResponse], error) {
	return c.listMarkers.CallUnary(ctx, req)
}

func (c *MapServiceClient) SelectPerson(ctx context.Context, req *connect.Request[SelectPersonRequest]) (*connect.Response[MarkersResponse], error) {
	return c.selectPerson.CallUnary(ctx, req)
}

func (c *MapServiceClient) ToggleFound(ctx context.Context, req *connect.Request[ToggleFoundRequest]) (*connect.Response[ToggleFoundResponse], error) {
	return c.toggleFound.CallUnary(ctx, req)
}

func (c *MapServiceClient) AddPerson(ctx context.Context, req *connect.Request[AddPersonRequest]) (*connect.Response[AddPersonResponse], error) {
	return c.addPerson.CallUnary(ctx, req)
}

func (c *MapServiceClient) AddGeocache(ctx context.Context, req *connect.Request[AddGeocacheRequest]) (*connect.Response[AddGeocacheResponse], error) {
	return c.addGeocache.CallUnary(ctx, req)
}

func (c *MapServiceClient) ImportDataset(ctx context.Context, req *connect.Request[ImportDatasetRequest]) (*connect.Response[ImportDatasetResponse], error) {
	return c.importDataset.CallUnary(ctx, req)
}

func (c *MapServiceClient) ExportDataset(ctx context.Context, req *connect.Request[ExportDatasetRequest]) (*connect.Response[ExportDatasetResponse], error) {
	return c.exportDataset.CallUnary(ctx, req)
}

func (c *MapServiceClient) ResetDataset(ctx context.Context, req *connect.Request[ResetDatasetRequest]) (*connect.Response[ResetDatasetResponse], error) {
	return c.resetDataset.CallUnary(ctx, req)
}
