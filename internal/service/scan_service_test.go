package service

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"connectrpc.com/connect"

	"github.com/mmynk/cardscan/internal/auth"
	"github.com/mmynk/cardscan/internal/classifier"
	"github.com/mmynk/cardscan/internal/dedupe"
	"github.com/mmynk/cardscan/internal/middleware"
	"github.com/mmynk/cardscan/internal/models"
	"github.com/mmynk/cardscan/internal/quota"
	"github.com/mmynk/cardscan/internal/storage/sqlite"
	v1 "github.com/mmynk/cardscan/pkg/api/cardscanv1"
	"github.com/mmynk/cardscan/pkg/api/cardscanv1/cardscanv1connect"
)

type fakeClassifier struct {
	detection classifier.Detection
	fields    *classifier.ContactFields
	err       error
}

func (f *fakeClassifier) Classify(ctx context.Context, image []byte) (classifier.Detection, error) {
	return f.detection, f.err
}

func (f *fakeClassifier) Extract(ctx context.Context, image []byte) (*classifier.ContactFields, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.fields, nil
}

type testEnv struct {
	store  *sqlite.SQLiteStore
	cls    *fakeClassifier
	jwt    *auth.JWTManager
	server *httptest.Server
}

// setupTestServer serves a ScanService backed by a temp SQLite database.
func setupTestServer(t *testing.T) *testEnv {
	t.Helper()

	store, err := sqlite.New(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("failed to create store: %v", err)
	}
	gate, err := quota.New(store)
	if err != nil {
		t.Fatalf("failed to create gate: %v", err)
	}

	cls := &fakeClassifier{}
	jwtManager := auth.NewJWTManager("test-secret", time.Hour)
	svc := NewScanService(store, cls, dedupe.NewMatcher(store), gate)

	path, handler := cardscanv1connect.NewScanServiceHandler(svc,
		connect.WithInterceptors(middleware.RequireAuth(jwtManager), middleware.LoggingInterceptor()),
	)
	mux := http.NewServeMux()
	mux.Handle(path, handler)
	server := httptest.NewServer(mux)

	t.Cleanup(func() {
		server.Close()
		store.Close()
	})
	return &testEnv{store: store, cls: cls, jwt: jwtManager, server: server}
}

func (e *testEnv) client(t *testing.T, ownerID string) cardscanv1connect.ScanServiceClient {
	t.Helper()
	token, err := e.jwt.Generate(ownerID, "test")
	if err != nil {
		t.Fatalf("failed to mint token: %v", err)
	}
	return cardscanv1connect.NewScanServiceClient(http.DefaultClient, e.server.URL,
		connect.WithInterceptors(middleware.BearerToken(token)),
	)
}

func saveScan(t *testing.T, c cardscanv1connect.ScanServiceClient, contact *v1.Contact, allowDuplicate bool) *v1.SaveScanResponse {
	t.Helper()
	resp, err := c.SaveScan(context.Background(), connect.NewRequest(&v1.SaveScanRequest{
		Contact:        contact,
		AllowDuplicate: allowDuplicate,
	}))
	if err != nil {
		t.Fatalf("SaveScan failed: %v", err)
	}
	return resp.Msg
}

func TestScanService_RequiresAuth(t *testing.T) {
	env := setupTestServer(t)
	anon := cardscanv1connect.NewScanServiceClient(http.DefaultClient, env.server.URL)

	_, err := anon.ListContacts(context.Background(), connect.NewRequest(&v1.ListContactsRequest{}))
	if connect.CodeOf(err) != connect.CodeUnauthenticated {
		t.Errorf("expected Unauthenticated, got %v", err)
	}

	forged := cardscanv1connect.NewScanServiceClient(http.DefaultClient, env.server.URL,
		connect.WithInterceptors(middleware.BearerToken("not-a-token")),
	)
	_, err = forged.CheckQuota(context.Background(), connect.NewRequest(&v1.CheckQuotaRequest{}))
	if connect.CodeOf(err) != connect.CodeUnauthenticated {
		t.Errorf("expected Unauthenticated for forged token, got %v", err)
	}
}

func TestScanService_Detect(t *testing.T) {
	env := setupTestServer(t)
	c := env.client(t, "alice")
	ctx := context.Background()

	env.cls.detection = classifier.Detection{CardPresent: true, IsSteady: true}
	resp, err := c.Detect(ctx, connect.NewRequest(&v1.DetectRequest{Image: []byte{0xFF, 0xD8}}))
	if err != nil {
		t.Fatalf("Detect failed: %v", err)
	}
	if !resp.Msg.CardPresent || !resp.Msg.IsSteady {
		t.Errorf("unexpected detection: %+v", resp.Msg)
	}

	_, err = c.Detect(ctx, connect.NewRequest(&v1.DetectRequest{}))
	if connect.CodeOf(err) != connect.CodeInvalidArgument {
		t.Errorf("expected InvalidArgument for empty image, got %v", err)
	}

	env.cls.err = classifier.ErrMalformedResponse
	_, err = c.Detect(ctx, connect.NewRequest(&v1.DetectRequest{Image: []byte{1}}))
	if connect.CodeOf(err) != connect.CodeUnavailable {
		t.Errorf("expected Unavailable on classifier failure, got %v", err)
	}
}

func TestScanService_Extract(t *testing.T) {
	env := setupTestServer(t)
	c := env.client(t, "alice")

	env.cls.fields = &classifier.ContactFields{
		FirstName:       " Ada ",
		LastName:        "Lovelace",
		Company:         "Analytical Engines",
		Phone:           "+44 20 7946 0018",
		PhoneNormalized: "+442079460018",
		LogoBox:         &classifier.Box{1, 2, 3, 4},
	}
	resp, err := c.Extract(context.Background(), connect.NewRequest(&v1.ExtractRequest{Image: []byte{1, 2, 3}}))
	if err != nil {
		t.Fatalf("Extract failed: %v", err)
	}
	if resp.Msg.Contact.FirstName != "Ada" || resp.Msg.Contact.Company != "Analytical Engines" {
		t.Errorf("unexpected contact: %+v", resp.Msg.Contact)
	}
	if resp.Msg.Contact.ScannedAt == 0 {
		t.Error("expected scanned_at to be set")
	}
	if resp.Msg.Partial {
		t.Error("full name should not be partial")
	}
	if len(resp.Msg.LogoBox) != 4 || resp.Msg.CardBox != nil {
		t.Errorf("boxes = %v / %v", resp.Msg.LogoBox, resp.Msg.CardBox)
	}

	// Nothing was saved.
	list, _ := c.ListContacts(context.Background(), connect.NewRequest(&v1.ListContactsRequest{}))
	if len(list.Msg.Contacts) != 0 {
		t.Errorf("Extract must not persist, found %d contacts", len(list.Msg.Contacts))
	}
}

func TestScanService_SaveScanHoldsBackDuplicates(t *testing.T) {
	env := setupTestServer(t)
	c := env.client(t, "alice")

	first := saveScan(t, c, &v1.Contact{FirstName: "John", LastName: "Smith", Email: "a@x.com"}, false)
	if first.Contact == nil || first.Contact.Id == "" || first.Duplicate {
		t.Fatalf("first save should persist: %+v", first)
	}
	if first.Used != 1 || first.Limit != 10 {
		t.Errorf("usage = %d/%d, want 1/10", first.Used, first.Limit)
	}

	dup := saveScan(t, c, &v1.Contact{FirstName: "J", LastName: "S", Email: " A@X.com "}, false)
	if !dup.Duplicate || dup.Contact != nil {
		t.Fatalf("expected duplicate to be held back: %+v", dup)
	}
	if dup.DuplicateOf.Id != first.Contact.Id || dup.MatchRule != "email" {
		t.Errorf("duplicate_of = %+v rule = %q", dup.DuplicateOf, dup.MatchRule)
	}

	forced := saveScan(t, c, &v1.Contact{FirstName: "J", LastName: "S", Email: "a@x.com"}, true)
	if forced.Duplicate || forced.Contact == nil {
		t.Fatalf("allow_duplicate should save: %+v", forced)
	}

	list, err := c.ListContacts(context.Background(), connect.NewRequest(&v1.ListContactsRequest{}))
	if err != nil {
		t.Fatalf("ListContacts failed: %v", err)
	}
	if len(list.Msg.Contacts) != 2 {
		t.Errorf("got %d contacts, want 2", len(list.Msg.Contacts))
	}

	quotaResp, _ := c.CheckQuota(context.Background(), connect.NewRequest(&v1.CheckQuotaRequest{}))
	if quotaResp.Msg.Used != 2 {
		t.Errorf("held back duplicate must not count: used = %d", quotaResp.Msg.Used)
	}
}

func TestScanService_SaveScanValidation(t *testing.T) {
	env := setupTestServer(t)
	c := env.client(t, "alice")
	ctx := context.Background()

	_, err := c.SaveScan(ctx, connect.NewRequest(&v1.SaveScanRequest{}))
	if connect.CodeOf(err) != connect.CodeInvalidArgument {
		t.Errorf("missing contact: got %v", err)
	}
	_, err = c.SaveScan(ctx, connect.NewRequest(&v1.SaveScanRequest{Contact: &v1.Contact{Notes: "blank card"}}))
	if connect.CodeOf(err) != connect.CodeInvalidArgument {
		t.Errorf("empty contact: got %v", err)
	}
}

func TestScanService_SaveScanQuota(t *testing.T) {
	env := setupTestServer(t)
	c := env.client(t, "alice")
	ctx := context.Background()
	now := time.Now().Unix()

	counter := &models.UsageCounter{OwnerID: "alice", ScansCount: 7, CycleStart: now, CycleEnd: now + 86400}
	if err := env.store.CreateUsage(ctx, counter); err != nil {
		t.Fatalf("CreateUsage failed: %v", err)
	}

	// 7 of 10 used: the 8th scan reaches 80%.
	resp := saveScan(t, c, &v1.Contact{FirstName: "Grace", LastName: "Hopper"}, false)
	if !resp.QuotaWarning || resp.Used != 8 {
		t.Errorf("expected warning at 8/10, got %+v", resp)
	}
	saveScan(t, c, &v1.Contact{FirstName: "Alan", LastName: "Turing"}, false)
	saveScan(t, c, &v1.Contact{FirstName: "Edsger", LastName: "Dijkstra"}, false)

	_, err := c.SaveScan(ctx, connect.NewRequest(&v1.SaveScanRequest{Contact: &v1.Contact{FirstName: "Barbara", LastName: "Liskov"}}))
	var connectErr *connect.Error
	if !errors.As(err, &connectErr) {
		t.Fatalf("expected connect error, got %v", err)
	}
	if connectErr.Code() != connect.CodeResourceExhausted || connectErr.Message() != quota.ReasonLimitReached {
		t.Errorf("got %v %q, want resource_exhausted limit_reached", connectErr.Code(), connectErr.Message())
	}

	q, err := c.CheckQuota(ctx, connect.NewRequest(&v1.CheckQuotaRequest{}))
	if err != nil {
		t.Fatalf("CheckQuota failed: %v", err)
	}
	if q.Msg.Allowed || q.Msg.Reason != quota.ReasonLimitReached || q.Msg.Used != 10 {
		t.Errorf("unexpected quota: %+v", q.Msg)
	}

	// Admins bypass the limit.
	if err := env.store.UpsertProfile(ctx, &models.Profile{OwnerID: "alice", Tier: models.TierStarter, IsAdmin: true}); err != nil {
		t.Fatalf("UpsertProfile failed: %v", err)
	}
	saveScan(t, c, &v1.Contact{FirstName: "Barbara", LastName: "Liskov"}, false)
}

func TestScanService_OwnerIsolation(t *testing.T) {
	env := setupTestServer(t)
	alice := env.client(t, "alice")
	bob := env.client(t, "bob")
	ctx := context.Background()

	saved := saveScan(t, alice, &v1.Contact{FirstName: "Ada", LastName: "Lovelace", Email: "ada@engines.io"}, false)

	// Same email for another owner is not a duplicate.
	other := saveScan(t, bob, &v1.Contact{FirstName: "Ada", LastName: "Lovelace", Email: "ada@engines.io"}, false)
	if other.Duplicate {
		t.Error("records of another owner must not count as duplicates")
	}

	_, err := bob.DeleteContact(ctx, connect.NewRequest(&v1.DeleteContactRequest{ContactId: saved.Contact.Id}))
	if connect.CodeOf(err) != connect.CodeNotFound {
		t.Errorf("expected NotFound deleting another owner's contact, got %v", err)
	}

	if _, err := alice.DeleteContact(ctx, connect.NewRequest(&v1.DeleteContactRequest{ContactId: saved.Contact.Id})); err != nil {
		t.Fatalf("DeleteContact failed: %v", err)
	}
	list, _ := alice.ListContacts(ctx, connect.NewRequest(&v1.ListContactsRequest{}))
	if len(list.Msg.Contacts) != 0 {
		t.Errorf("expected no contacts after delete, got %d", len(list.Msg.Contacts))
	}
}

func TestScanService_Duplicates(t *testing.T) {
	env := setupTestServer(t)
	c := env.client(t, "alice")
	ctx := context.Background()

	seed := func(ct *models.Contact) *models.Contact {
		ct.OwnerID = "alice"
		if err := env.store.CreateContact(ctx, ct); err != nil {
			t.Fatalf("CreateContact failed: %v", err)
		}
		return ct
	}
	a := seed(&models.Contact{FirstName: "John", LastName: "Smith", Company: "Acme", Email: "john@acme.com", Phone: "+1 (555) 123-4567"})
	b := seed(&models.Contact{FirstName: "Smith", LastName: "John"})
	cc := seed(&models.Contact{FirstName: "Jane", LastName: "Doe", Email: "jane@doe.org", Phone: "555-123-4567"})
	d := seed(&models.Contact{FirstName: "Janet", LastName: "Dough", Email: "JANE@doe.org"})

	list, err := c.ListDuplicates(ctx, connect.NewRequest(&v1.ListDuplicatesRequest{}))
	if err != nil {
		t.Fatalf("ListDuplicates failed: %v", err)
	}
	if len(list.Msg.Pairs) != 3 {
		t.Fatalf("got %d pairs, want 3: %+v", len(list.Msg.Pairs), list.Msg.Pairs)
	}

	merged, err := c.MergeDuplicate(ctx, connect.NewRequest(&v1.MergeDuplicateRequest{KeepId: b.ID, RemoveId: a.ID}))
	if err != nil {
		t.Fatalf("MergeDuplicate failed: %v", err)
	}
	if merged.Msg.Contact.Email != "john@acme.com" || merged.Msg.Contact.Company != "Acme" {
		t.Errorf("kept contact not filled from removed one: %+v", merged.Msg.Contact)
	}
	if len(merged.Msg.Remaining) != 1 || merged.Msg.Remaining[0].Key != dedupe.PairKey(cc.ID, d.ID) {
		t.Errorf("remaining pairs = %+v, want only %s", merged.Msg.Remaining, dedupe.PairKey(cc.ID, d.ID))
	}

	dismissed, err := c.DismissDuplicate(ctx, connect.NewRequest(&v1.DismissDuplicateRequest{FirstId: d.ID, SecondId: cc.ID}))
	if err != nil {
		t.Fatalf("DismissDuplicate failed: %v", err)
	}
	for _, p := range dismissed.Msg.Remaining {
		if p.Key == dedupe.PairKey(cc.ID, d.ID) {
			t.Error("dismissed pair still in the returned report")
		}
	}
	list, err = c.ListDuplicates(ctx, connect.NewRequest(&v1.ListDuplicatesRequest{}))
	if err != nil {
		t.Fatalf("ListDuplicates failed: %v", err)
	}
	for _, p := range list.Msg.Pairs {
		if p.Key == dedupe.PairKey(cc.ID, d.ID) {
			t.Error("dismissed pair reported again")
		}
	}

	_, err = c.MergeDuplicate(ctx, connect.NewRequest(&v1.MergeDuplicateRequest{KeepId: b.ID, RemoveId: b.ID}))
	if connect.CodeOf(err) != connect.CodeInvalidArgument {
		t.Errorf("merging a contact with itself: got %v", err)
	}
	_, err = c.MergeDuplicate(ctx, connect.NewRequest(&v1.MergeDuplicateRequest{KeepId: b.ID, RemoveId: "missing"}))
	if connect.CodeOf(err) != connect.CodeNotFound {
		t.Errorf("merging a missing contact: got %v", err)
	}
}

func TestScanService_MergeDropsPairsOfTheKeptContact(t *testing.T) {
	env := setupTestServer(t)
	c := env.client(t, "alice")
	ctx := context.Background()

	var ids []string
	for _, name := range []string{"Ann", "Bea", "Cal"} {
		ct := &models.Contact{OwnerID: "alice", FirstName: name, Email: "desk@shared.io"}
		if err := env.store.CreateContact(ctx, ct); err != nil {
			t.Fatalf("CreateContact failed: %v", err)
		}
		ids = append(ids, ct.ID)
	}
	a, b := ids[0], ids[1]

	list, err := c.ListDuplicates(ctx, connect.NewRequest(&v1.ListDuplicatesRequest{}))
	if err != nil {
		t.Fatalf("ListDuplicates failed: %v", err)
	}
	if len(list.Msg.Pairs) != 3 {
		t.Fatalf("got %d pairs, want 3", len(list.Msg.Pairs))
	}

	merged, err := c.MergeDuplicate(ctx, connect.NewRequest(&v1.MergeDuplicateRequest{KeepId: a, RemoveId: b}))
	if err != nil {
		t.Fatalf("MergeDuplicate failed: %v", err)
	}
	for _, p := range merged.Msg.Remaining {
		if p.First.Id == a || p.Second.Id == a || p.First.Id == b || p.Second.Id == b {
			t.Errorf("remaining pair %s references a merged contact", p.Key)
		}
	}
	if len(merged.Msg.Remaining) != 0 {
		t.Errorf("remaining pairs = %+v, want none", merged.Msg.Remaining)
	}
}
