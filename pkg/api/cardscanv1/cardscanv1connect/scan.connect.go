// Package cardscanv1connect wires the cardscan.v1.ScanService messages onto
// Connect handlers and clients using a JSON codec.
package cardscanv1connect

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"connectrpc.com/connect"

	v1 "github.com/mmynk/cardscan/pkg/api/cardscanv1"
)

// ScanServiceName is the fully-qualified name of the ScanService service.
const ScanServiceName = "cardscan.v1.ScanService"

// Fully-qualified procedure names, which double as HTTP routes.
const (
	ScanServiceDetectProcedure           = "/cardscan.v1.ScanService/Detect"
	ScanServiceExtractProcedure          = "/cardscan.v1.ScanService/Extract"
	ScanServiceSaveScanProcedure         = "/cardscan.v1.ScanService/SaveScan"
	ScanServiceListContactsProcedure     = "/cardscan.v1.ScanService/ListContacts"
	ScanServiceDeleteContactProcedure    = "/cardscan.v1.ScanService/DeleteContact"
	ScanServiceCheckQuotaProcedure       = "/cardscan.v1.ScanService/CheckQuota"
	ScanServiceListDuplicatesProcedure   = "/cardscan.v1.ScanService/ListDuplicates"
	ScanServiceDismissDuplicateProcedure = "/cardscan.v1.ScanService/DismissDuplicate"
	ScanServiceMergeDuplicateProcedure   = "/cardscan.v1.ScanService/MergeDuplicate"
)

// Codec marshals messages as plain JSON. It registers under the name "json"
// and so replaces Connect's protobuf-only JSON codec.
type Codec struct{}

func (Codec) Name() string { return "json" }

func (Codec) Marshal(msg any) ([]byte, error) { return json.Marshal(msg) }

func (Codec) Unmarshal(data []byte, msg any) error {
	if len(data) == 0 {
		return nil
	}
	return json.Unmarshal(data, msg)
}

// ScanServiceHandler is implemented by the server.
type ScanServiceHandler interface {
	Detect(context.Context, *connect.Request[v1.DetectRequest]) (*connect.Response[v1.DetectResponse], error)
	Extract(context.Context, *connect.Request[v1.ExtractRequest]) (*connect.Response[v1.ExtractResponse], error)
	SaveScan(context.Context, *connect.Request[v1.SaveScanRequest]) (*connect.Response[v1.SaveScanResponse], error)
	ListContacts(context.Context, *connect.Request[v1.ListContactsRequest]) (*connect.Response[v1.ListContactsResponse], error)
	DeleteContact(context.Context, *connect.Request[v1.DeleteContactRequest]) (*connect.Response[v1.DeleteContactResponse], error)
	CheckQuota(context.Context, *connect.Request[v1.CheckQuotaRequest]) (*connect.Response[v1.CheckQuotaResponse], error)
	ListDuplicates(context.Context, *connect.Request[v1.ListDuplicatesRequest]) (*connect.Response[v1.ListDuplicatesResponse], error)
	DismissDuplicate(context.Context, *connect.Request[v1.DismissDuplicateRequest]) (*connect.Response[v1.DismissDuplicateResponse], error)
	MergeDuplicate(context.Context, *connect.Request[v1.MergeDuplicateRequest]) (*connect.Response[v1.MergeDuplicateResponse], error)
}

// NewScanServiceHandler builds an HTTP handler from the service implementation.
// It returns the path on which to mount the handler and the handler itself.
func NewScanServiceHandler(svc ScanServiceHandler, opts ...connect.HandlerOption) (string, http.Handler) {
	opts = append([]connect.HandlerOption{connect.WithCodec(Codec{})}, opts...)
	routes := map[string]http.Handler{
		ScanServiceDetectProcedure:           connect.NewUnaryHandler(ScanServiceDetectProcedure, svc.Detect, opts...),
		ScanServiceExtractProcedure:          connect.NewUnaryHandler(ScanServiceExtractProcedure, svc.Extract, opts...),
		ScanServiceSaveScanProcedure:         connect.NewUnaryHandler(ScanServiceSaveScanProcedure, svc.SaveScan, opts...),
		ScanServiceListContactsProcedure:     connect.NewUnaryHandler(ScanServiceListContactsProcedure, svc.ListContacts, opts...),
		ScanServiceDeleteContactProcedure:    connect.NewUnaryHandler(ScanServiceDeleteContactProcedure, svc.DeleteContact, opts...),
		ScanServiceCheckQuotaProcedure:       connect.NewUnaryHandler(ScanServiceCheckQuotaProcedure, svc.CheckQuota, opts...),
		ScanServiceListDuplicatesProcedure:   connect.NewUnaryHandler(ScanServiceListDuplicatesProcedure, svc.ListDuplicates, opts...),
		ScanServiceDismissDuplicateProcedure: connect.NewUnaryHandler(ScanServiceDismissDuplicateProcedure, svc.DismissDuplicate, opts...),
		ScanServiceMergeDuplicateProcedure:   connect.NewUnaryHandler(ScanServiceMergeDuplicateProcedure, svc.MergeDuplicate, opts...),
	}
	return "/" + ScanServiceName + "/", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if h, ok := routes[r.URL.Path]; ok {
			h.ServeHTTP(w, r)
			return
		}
		http.NotFound(w, r)
	})
}

// ScanServiceClient is a client for cardscan.v1.ScanService.
type ScanServiceClient interface {
	Detect(context.Context, *connect.Request[v1.DetectRequest]) (*connect.Response[v1.DetectResponse], error)
	Extract(context.Context, *connect.Request[v1.ExtractRequest]) (*connect.Response[v1.ExtractResponse], error)
	SaveScan(context.Context, *connect.Request[v1.SaveScanRequest]) (*connect.Response[v1.SaveScanResponse], error)
	ListContacts(context.Context, *connect.Request[v1.ListContactsRequest]) (*connect.Response[v1.ListContactsResponse], error)
	DeleteContact(context.Context, *connect.Request[v1.DeleteContactRequest]) (*connect.Response[v1.DeleteContactResponse], error)
	CheckQuota(context.Context, *connect.Request[v1.CheckQuotaRequest]) (*connect.Response[v1.CheckQuotaResponse], error)
	ListDuplicates(context.Context, *connect.Request[v1.ListDuplicatesRequest]) (*connect.Response[v1.ListDuplicatesResponse], error)
	DismissDuplicate(context.Context, *connect.Request[v1.DismissDuplicateRequest]) (*connect.Response[v1.DismissDuplicateResponse], error)
	MergeDuplicate(context.Context, *connect.Request[v1.MergeDuplicateRequest]) (*connect.Response[v1.MergeDuplicateResponse], error)
}

type scanServiceClient struct {
	detect           *connect.Client[v1.DetectRequest, v1.DetectResponse]
	extract          *connect.Client[v1.ExtractRequest, v1.ExtractResponse]
	saveScan         *connect.Client[v1.SaveScanRequest, v1.SaveScanResponse]
	listContacts     *connect.Client[v1.ListContactsRequest, v1.ListContactsResponse]
	deleteContact    *connect.Client[v1.DeleteContactRequest, v1.DeleteContactResponse]
	checkQuota       *connect.Client[v1.CheckQuotaRequest, v1.CheckQuotaResponse]
	listDuplicates   *connect.Client[v1.ListDuplicatesRequest, v1.ListDuplicatesResponse]
	dismissDuplicate *connect.Client[v1.DismissDuplicateRequest, v1.DismissDuplicateResponse]
	mergeDuplicate   *connect.Client[v1.MergeDuplicateRequest, v1.MergeDuplicateResponse]
}

// NewScanServiceClient constructs a client for cardscan.v1.ScanService at baseURL.
func NewScanServiceClient(httpClient connect.HTTPClient, baseURL string, opts ...connect.ClientOption) ScanServiceClient {
	baseURL = strings.TrimRight(baseURL, "/")
	opts = append([]connect.ClientOption{connect.WithCodec(Codec{})}, opts...)
	return &scanServiceClient{
		detect:           connect.NewClient[v1.DetectRequest, v1.DetectResponse](httpClient, baseURL+ScanServiceDetectProcedure, opts...),
		extract:          connect.NewClient[v1.ExtractRequest, v1.ExtractResponse](httpClient, baseURL+ScanServiceExtractProcedure, opts...),
		saveScan:         connect.NewClient[v1.SaveScanRequest, v1.SaveScanResponse](httpClient, baseURL+ScanServiceSaveScanProcedure, opts...),
		listContacts:     connect.NewClient[v1.ListContactsRequest, v1.ListContactsResponse](httpClient, baseURL+ScanServiceListContactsProcedure, opts...),
		deleteContact:    connect.NewClient[v1.DeleteContactRequest, v1.DeleteContactResponse](httpClient, baseURL+ScanServiceDeleteContactProcedure, opts...),
		checkQuota:       connect.NewClient[v1.CheckQuotaRequest, v1.CheckQuotaResponse](httpClient, baseURL+ScanServiceCheckQuotaProcedure, opts...),
		listDuplicates:   connect.NewClient[v1.ListDuplicatesRequest, v1.ListDuplicatesResponse](httpClient, baseURL+ScanServiceListDuplicatesProcedure, opts...),
		dismissDuplicate: connect.NewClient[v1.DismissDuplicateRequest, v1.DismissDuplicateResponse](httpClient, baseURL+ScanServiceDismissDuplicateProcedure, opts...),
		mergeDuplicate:   connect.NewClient[v1.MergeDuplicateRequest, v1.MergeDuplicateResponse](httpClient, baseURL+ScanServiceMergeDuplicateProcedure, opts...),
	}
}

func (c *scanServiceClient) Detect(ctx context.Context, req *connect.Request[v1.DetectRequest]) (*connect.Response[v1.DetectResponse], error) {
	return c.detect.CallUnary(ctx, req)
}

func (c *scanServiceClient) Extract(ctx context.Context, req *connect.Request[v1.ExtractRequest]) (*connect.Response[v1.ExtractResponse], error) {
	return c.extract.CallUnary(ctx, req)
}

func (c *scanServiceClient) SaveScan(ctx context.Context, req *connect.Request[v1.SaveScanRequest]) (*connect.Response[v1.SaveScanResponse], error) {
	return c.saveScan.CallUnary(ctx, req)
}

func (c *scanServiceClient) ListContacts(ctx context.Context, req *connect.Request[v1.ListContactsRequest]) (*connect.Response[v1.ListContactsResponse], error) {
	return c.listContacts.CallUnary(ctx, req)
}

func (c *scanServiceClient) DeleteContact(ctx context.Context, req *connect.Request[v1.DeleteContactRequest]) (*connect.Response[v1.DeleteContactResponse], error) {
	return c.deleteContact.CallUnary(ctx, req)
}

func (c *scanServiceClient) CheckQuota(ctx context.Context, req *connect.Request[v1.CheckQuotaRequest]) (*connect.Response[v1.CheckQuotaResponse], error) {
	return c.checkQuota.CallUnary(ctx, req)
}

func (c *scanServiceClient) ListDuplicates(ctx context.Context, req *connect.Request[v1.ListDuplicatesRequest]) (*connect.Response[v1.ListDuplicatesResponse], error) {
	return c.listDuplicates.CallUnary(ctx, req)
}

func (c *scanServiceClient) DismissDuplicate(ctx context.Context, req *connect.Request[v1.DismissDuplicateRequest]) (*connect.Response[v1.DismissDuplicateResponse], error) {
	return c.dismissDuplicate.CallUnary(ctx, req)
}

func (c *scanServiceClient) MergeDuplicate(ctx context.Context, req *connect.Request[v1.MergeDuplicateRequest]) (*connect.Response[v1.MergeDuplicateResponse], error) {
	return c.mergeDuplicate.CallUnary(ctx, req)
}
