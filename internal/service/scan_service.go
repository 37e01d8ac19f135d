// Package service implements the Connect ScanService on top of the classifier,
// the duplicate matcher, the quota gate and the record store.
package service

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"connectrpc.com/connect"

	"github.com/mmynk/cardscan/internal/classifier"
	"github.com/mmynk/cardscan/internal/dedupe"
	"github.com/mmynk/cardscan/internal/middleware"
	"github.com/mmynk/cardscan/internal/quota"
	"github.com/mmynk/cardscan/internal/storage"
	v1 "github.com/mmynk/cardscan/pkg/api/cardscanv1"
	"github.com/mmynk/cardscan/pkg/api/cardscanv1/cardscanv1connect"
)

const (
	defaultListLimit = 100
	maxListLimit     = 1000

	// maxImageBytes bounds uploaded frames and stills.
	maxImageBytes = 8 << 20
)

// Ensure ScanService implements the Connect handler interface.
var _ cardscanv1connect.ScanServiceHandler = (*ScanService)(nil)

// ScanService implements the Connect ScanService.
type ScanService struct {
	store      storage.Store
	classifier classifier.Classifier
	matcher    *dedupe.Matcher
	gate       *quota.Gate
}

// NewScanService creates a ScanService.
func NewScanService(store storage.Store, cls classifier.Classifier, matcher *dedupe.Matcher, gate *quota.Gate) *ScanService {
	return &ScanService{
		store:      store,
		classifier: cls,
		matcher:    matcher,
		gate:       gate,
	}
}

// requireOwner returns the authenticated owner id from the context.
func requireOwner(ctx context.Context) (string, error) {
	ownerID := middleware.GetOwnerID(ctx)
	if ownerID == "" {
		return "", connect.NewError(connect.CodeUnauthenticated, errors.New("authentication required"))
	}
	return ownerID, nil
}

func validateImage(image []byte) error {
	if len(image) == 0 {
		return connect.NewError(connect.CodeInvalidArgument, errors.New("image is required"))
	}
	if len(image) > maxImageBytes {
		return connect.NewError(connect.CodeInvalidArgument, errors.New("image is too large"))
	}
	return nil
}

// toConnectError maps internal errors onto codes without leaking their text.
func toConnectError(err error) *connect.Error {
	switch {
	case errors.Is(err, storage.ErrNotFound):
		return connect.NewError(connect.CodeNotFound, errors.New("contact not found"))
	case errors.Is(err, dedupe.ErrSameContact):
		return connect.NewError(connect.CodeInvalidArgument, dedupe.ErrSameContact)
	case errors.Is(err, classifier.ErrMalformedResponse), errors.Is(err, classifier.ErrUnavailable):
		return connect.NewError(connect.CodeUnavailable, errors.New("classifier unavailable, try again"))
	case errors.Is(err, context.Canceled):
		return connect.NewError(connect.CodeCanceled, errors.New("request cancelled"))
	case errors.Is(err, context.DeadlineExceeded):
		return connect.NewError(connect.CodeDeadlineExceeded, errors.New("request timed out"))
	default:
		return connect.NewError(connect.CodeInternal, errors.New("internal error"))
	}
}

// Detect asks the classifier whether a legible card is in a low-resolution frame.
func (s *ScanService) Detect(ctx context.Context, req *connect.Request[v1.DetectRequest]) (*connect.Response[v1.DetectResponse], error) {
	ownerID, err := requireOwner(ctx)
	if err != nil {
		return nil, err
	}
	if err := validateImage(req.Msg.Image); err != nil {
		return nil, err
	}

	d, err := s.classifier.Classify(ctx, req.Msg.Image)
	if err != nil {
		slog.Warn("Detect failed", "owner_id", ownerID, "error", err)
		return nil, toConnectError(err)
	}
	slog.Debug("Detect successful", "owner_id", ownerID, "card_present", d.CardPresent, "is_steady", d.IsSteady)

	return connect.NewResponse(&v1.DetectResponse{
		CardPresent: d.CardPresent,
		IsSteady:    d.IsSteady,
	}), nil
}

// Extract reads contact fields from a full-resolution still. Nothing is saved.
func (s *ScanService) Extract(ctx context.Context, req *connect.Request[v1.ExtractRequest]) (*connect.Response[v1.ExtractResponse], error) {
	ownerID, err := requireOwner(ctx)
	if err != nil {
		return nil, err
	}
	if err := validateImage(req.Msg.Image); err != nil {
		return nil, err
	}
	slog.Info("Extract request received", "owner_id", ownerID, "bytes", len(req.Msg.Image))

	fields, err := s.classifier.Extract(ctx, req.Msg.Image)
	if err != nil {
		slog.Error("Extract failed", "owner_id", ownerID, "error", err)
		return nil, toConnectError(err)
	}

	contact := fields.Contact(ownerID)
	contact.ScannedAt = time.Now().Unix()

	slog.Info("Extract successful", "owner_id", ownerID, "partial", fields.Partial())
	return connect.NewResponse(&v1.ExtractResponse{
		Contact:         contactToProto(contact),
		PhoneNormalized: fields.PhoneNormalized,
		LogoBox:         boxToProto(fields.LogoBox),
		CardBox:         boxToProto(fields.CardBox),
		Partial:         fields.Partial(),
	}), nil
}

// SaveScan persists a scanned contact. Unless allow_duplicate is set, a contact
// matching an existing record is held back and reported instead. The quota
// gate is consulted right before the record is written.
func (s *ScanService) SaveScan(ctx context.Context, req *connect.Request[v1.SaveScanRequest]) (*connect.Response[v1.SaveScanResponse], error) {
	ownerID, err := requireOwner(ctx)
	if err != nil {
		return nil, err
	}
	if req.Msg.Contact == nil {
		return nil, connect.NewError(connect.CodeInvalidArgument, errors.New("contact is required"))
	}
	contact := contactFromProto(req.Msg.Contact, ownerID)
	if isEmpty(contact) {
		return nil, connect.NewError(connect.CodeInvalidArgument, errors.New("contact has no name, company, email or phone"))
	}
	slog.Info("SaveScan request received", "owner_id", ownerID, "allow_duplicate", req.Msg.AllowDuplicate)

	resp := &v1.SaveScanResponse{}
	if !req.Msg.AllowDuplicate {
		if match, rule := s.matcher.FindDuplicate(ctx, contact, ownerID); match != nil {
			slog.Info("SaveScan held back duplicate", "owner_id", ownerID, "duplicate_of", match.ID, "rule", rule)
			resp.Duplicate = true
			resp.DuplicateOf = contactToProto(match)
			resp.MatchRule = string(rule)
			return connect.NewResponse(resp), nil
		}
	}

	decision := s.gate.CanScan(ctx, ownerID)
	if !decision.Allowed {
		slog.Info("SaveScan denied by quota", "owner_id", ownerID, "used", decision.Used, "limit", decision.Limit)
		return nil, connect.NewError(connect.CodeResourceExhausted, errors.New(decision.Reason))
	}

	if err := s.store.CreateContact(ctx, contact); err != nil {
		slog.Error("SaveScan failed to create contact", "owner_id", ownerID, "error", err)
		return nil, toConnectError(err)
	}
	if err := s.gate.IncrementUsage(ctx, ownerID); err != nil {
		// The contact is stored; report the missed count rather than hide it.
		slog.Error("SaveScan failed to record usage", "owner_id", ownerID, "contact_id", contact.ID, "error", err)
		return nil, connect.NewError(connect.CodeDataLoss, errors.New("contact saved but usage was not recorded"))
	}

	slog.Info("SaveScan successful", "owner_id", ownerID, "contact_id", contact.ID, "warning", decision.Warning)
	resp.Contact = contactToProto(contact)
	resp.QuotaWarning = decision.Warning
	resp.Used = decision.Used + 1
	resp.Limit = decision.Limit
	return connect.NewResponse(resp), nil
}

// ListContacts returns the owner's contacts, newest first.
func (s *ScanService) ListContacts(ctx context.Context, req *connect.Request[v1.ListContactsRequest]) (*connect.Response[v1.ListContactsResponse], error) {
	ownerID, err := requireOwner(ctx)
	if err != nil {
		return nil, err
	}
	limit := req.Msg.Limit
	if limit <= 0 {
		limit = defaultListLimit
	}
	limit = min(limit, maxListLimit)

	contacts, err := s.store.ListContacts(ctx, ownerID, limit)
	if err != nil {
		slog.Error("ListContacts failed", "owner_id", ownerID, "error", err)
		return nil, toConnectError(err)
	}

	out := make([]*v1.Contact, 0, len(contacts))
	for _, c := range contacts {
		out = append(out, contactToProto(c))
	}
	return connect.NewResponse(&v1.ListContactsResponse{Contacts: out}), nil
}

// DeleteContact removes one of the owner's contacts.
func (s *ScanService) DeleteContact(ctx context.Context, req *connect.Request[v1.DeleteContactRequest]) (*connect.Response[v1.DeleteContactResponse], error) {
	ownerID, err := requireOwner(ctx)
	if err != nil {
		return nil, err
	}
	if req.Msg.ContactId == "" {
		return nil, connect.NewError(connect.CodeInvalidArgument, errors.New("contact_id is required"))
	}

	if err := s.store.DeleteContact(ctx, ownerID, req.Msg.ContactId); err != nil {
		slog.Error("DeleteContact failed", "owner_id", ownerID, "contact_id", req.Msg.ContactId, "error", err)
		return nil, toConnectError(err)
	}
	slog.Info("DeleteContact successful", "owner_id", ownerID, "contact_id", req.Msg.ContactId)
	return connect.NewResponse(&v1.DeleteContactResponse{}), nil
}

// CheckQuota reports whether the owner may scan another card.
func (s *ScanService) CheckQuota(ctx context.Context, req *connect.Request[v1.CheckQuotaRequest]) (*connect.Response[v1.CheckQuotaResponse], error) {
	ownerID, err := requireOwner(ctx)
	if err != nil {
		return nil, err
	}
	d := s.gate.CanScan(ctx, ownerID)
	return connect.NewResponse(&v1.CheckQuotaResponse{
		Allowed: d.Allowed,
		Reason:  d.Reason,
		Warning: d.Warning,
		Used:    d.Used,
		Limit:   d.Limit,
	}), nil
}

// ListDuplicates returns the owner's pending duplicate pairs.
func (s *ScanService) ListDuplicates(ctx context.Context, req *connect.Request[v1.ListDuplicatesRequest]) (*connect.Response[v1.ListDuplicatesResponse], error) {
	ownerID, err := requireOwner(ctx)
	if err != nil {
		return nil, err
	}
	report, err := s.matcher.Report(ctx, ownerID)
	if err != nil {
		slog.Error("ListDuplicates failed", "owner_id", ownerID, "error", err)
		return nil, toConnectError(err)
	}
	slog.Info("ListDuplicates successful", "owner_id", ownerID, "pairs", len(report.Pairs))
	return connect.NewResponse(&v1.ListDuplicatesResponse{Pairs: pairsToProto(report.Pairs)}), nil
}

// DismissDuplicate marks a pair as distinct people so it is not reported again.
func (s *ScanService) DismissDuplicate(ctx context.Context, req *connect.Request[v1.DismissDuplicateRequest]) (*connect.Response[v1.DismissDuplicateResponse], error) {
	ownerID, err := requireOwner(ctx)
	if err != nil {
		return nil, err
	}
	if req.Msg.FirstId == "" || req.Msg.SecondId == "" {
		return nil, connect.NewError(connect.CodeInvalidArgument, errors.New("first_id and second_id are required"))
	}

	report, err := s.matcher.Report(ctx, ownerID)
	if err != nil {
		slog.Error("DismissDuplicate failed to build report", "owner_id", ownerID, "error", err)
		return nil, toConnectError(err)
	}
	if err := s.matcher.Dismiss(ctx, ownerID, req.Msg.FirstId, req.Msg.SecondId); err != nil {
		slog.Error("DismissDuplicate failed", "owner_id", ownerID, "error", err)
		return nil, toConnectError(err)
	}
	key := dedupe.PairKey(req.Msg.FirstId, req.Msg.SecondId)
	report.Dismiss(key)

	slog.Info("DismissDuplicate successful", "owner_id", ownerID, "key", key, "remaining", len(report.Pairs))
	return connect.NewResponse(&v1.DismissDuplicateResponse{Remaining: pairsToProto(report.Pairs)}), nil
}

// MergeDuplicate folds remove_id into keep_id and returns the report without
// any pair that referenced either record.
func (s *ScanService) MergeDuplicate(ctx context.Context, req *connect.Request[v1.MergeDuplicateRequest]) (*connect.Response[v1.MergeDuplicateResponse], error) {
	ownerID, err := requireOwner(ctx)
	if err != nil {
		return nil, err
	}
	if req.Msg.KeepId == "" || req.Msg.RemoveId == "" {
		return nil, connect.NewError(connect.CodeInvalidArgument, errors.New("keep_id and remove_id are required"))
	}
	slog.Info("MergeDuplicate request received", "owner_id", ownerID, "keep_id", req.Msg.KeepId, "remove_id", req.Msg.RemoveId)

	report, err := s.matcher.Report(ctx, ownerID)
	if err != nil {
		slog.Error("MergeDuplicate failed to build report", "owner_id", ownerID, "error", err)
		return nil, toConnectError(err)
	}

	kept, err := s.matcher.Merge(ctx, ownerID, req.Msg.KeepId, req.Msg.RemoveId)
	if err != nil {
		slog.Error("MergeDuplicate failed", "owner_id", ownerID, "error", err)
		return nil, toConnectError(err)
	}
	report.Resolve(kept.ID, req.Msg.RemoveId)

	slog.Info("MergeDuplicate successful", "owner_id", ownerID, "contact_id", kept.ID, "remaining", len(report.Pairs))
	return connect.NewResponse(&v1.MergeDuplicateResponse{
		Contact:   contactToProto(kept),
		Remaining: pairsToProto(report.Pairs),
	}), nil
}
