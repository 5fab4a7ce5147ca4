package usecase

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/ketovdk/fiscalgate/internal/adapter/pangaea"
	domainErrors "github.com/ketovdk/fiscalgate/internal/domain/errors"
	"github.com/ketovdk/fiscalgate/internal/domain/model"
	"github.com/ketovdk/fiscalgate/internal/domain/repository"
	"github.com/ketovdk/fiscalgate/internal/fiscal/codec"
)

type stubRepo struct {
	receipts []model.Receipt
	saved    []*model.Receipt
	saveErr  error
	nextID   int64
}

func (s *stubRepo) Save(_ context.Context, r *model.Receipt) error {
	if s.saveErr != nil {
		return s.saveErr
	}
	if r.ID == 0 {
		s.nextID++
		r.ID = s.nextID
	}
	s.saved = append(s.saved, r)
	return nil
}

func (s *stubRepo) GetByID(_ context.Context, id int64) (*model.Receipt, error) {
	for i := range s.receipts {
		if s.receipts[i].ID == id {
			return &s.receipts[i], nil
		}
	}
	return nil, domainErrors.ErrNotFound
}

func (s *stubRepo) GetByUUID(_ context.Context, uuid string) (*model.Receipt, error) {
	for i := range s.receipts {
		if s.receipts[i].UUID == uuid {
			return &s.receipts[i], nil
		}
	}
	return nil, domainErrors.ErrNotFound
}

func (s *stubRepo) GetCollection(_ context.Context, f repository.ReceiptFilter) ([]model.Receipt, error) {
	var out []model.Receipt
	for _, r := range s.receipts {
		if f.OrderID != "" && r.OrderID != f.OrderID {
			continue
		}
		if f.SiteID != "" && r.SiteID != f.SiteID {
			continue
		}
		out = append(out, r)
	}
	return out, nil
}

type stubGateway struct {
	sendResp *pangaea.Response
	sendErr  error
	getResp  *pangaea.Response
	getErr   error
	boxResp  *pangaea.Response
	boxErr   error

	sentUUIDs []string
	sentBody  *codec.Payload
	polled    []string
}

func (g *stubGateway) SendReceipt(_ context.Context, uuid string, payload *codec.Payload) (*pangaea.Response, error) {
	g.sentUUIDs = append(g.sentUUIDs, uuid)
	g.sentBody = payload
	return g.sendResp, g.sendErr
}

func (g *stubGateway) GetReceipt(_ context.Context, uuid string) (*pangaea.Response, error) {
	g.polled = append(g.polled, uuid)
	return g.getResp, g.getErr
}

func (g *stubGateway) GetCashbox(context.Context) (*pangaea.Response, error) {
	return g.boxResp, g.boxErr
}

func (g *stubGateway) ReceiptLink(uuid string) string {
	return "https://fisc.example/receipt/show/" + uuid
}

type stubOrders struct {
	total    float64
	items    []model.ReceiptItem
	customer *model.Customer
	notify   model.Notify
}

func (o *stubOrders) Total(context.Context, string, string) (float64, error) { return o.total, nil }

func (o *stubOrders) Items(_ context.Context, _, _ string, _ model.ReceiptSubType) ([]model.ReceiptItem, error) {
	return o.items, nil
}

func (o *stubOrders) Customer(context.Context, string, string) (*model.Customer, error) {
	return o.customer, nil
}

func (o *stubOrders) Notify(context.Context, string, string) (model.Notify, error) {
	return o.notify, nil
}

func testSettings() Settings {
	return Settings{Taxation: model.TaxationORN, Location: "shop.example", Cashbox: "box1"}
}

func testItems() []model.ReceiptItem {
	return []model.ReceiptItem{
		{Kind: model.ItemProduct, Name: "chair", Price: 100, Quantity: 1, Vat: 20, PaymentMethod: model.PaymentMethodFull},
		{Kind: model.ItemProduct, Name: "table", Price: 250, Quantity: 2, Vat: 20, PaymentMethod: model.PaymentMethodFull},
	}
}

func historyReceipt(t model.ReceiptType, sub model.ReceiptSubType, status model.ReceiptStatus, total float64) model.Receipt {
	r := model.NewReceipt(t, sub, "order-1", "site-1")
	r.Status = status
	r.Items = testItems()
	r.Amount = model.Amount{Cashless: total}
	r.Notify = model.Notify{Email: "buyer@example.com"}
	return *r
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestSequencerPreOnlyOpensOrder(t *testing.T) {
	repo := &stubRepo{receipts: []model.Receipt{
		historyReceipt(model.TypeComing, model.SubTypePre, model.StatusCompleted, 600),
	}}
	seq := NewSequencer(repo, testSettings())

	_, err := seq.CreateComing(context.Background(), "order-1", "site-1", model.SubTypePre,
		testItems(), 600, model.Notify{Email: "buyer@example.com"}, nil, nil)

	var seqErr *domainErrors.SequencingError
	if !errors.As(err, &seqErr) {
		t.Fatalf("expected SequencingError, got %v", err)
	}
}

func TestSequencerFullAfterFullRejected(t *testing.T) {
	repo := &stubRepo{receipts: []model.Receipt{
		historyReceipt(model.TypeComing, model.SubTypeFull, model.StatusCompleted, 600),
	}}
	seq := NewSequencer(repo, testSettings())

	_, err := seq.CreateComing(context.Background(), "order-1", "site-1", model.SubTypeFull,
		testItems(), 600, model.Notify{Email: "buyer@example.com"}, nil, nil)

	var seqErr *domainErrors.SequencingError
	if !errors.As(err, &seqErr) {
		t.Fatalf("expected SequencingError, got %v", err)
	}
}

func TestSequencerFullAfterFullRefundRejected(t *testing.T) {
	repo := &stubRepo{receipts: []model.Receipt{
		historyReceipt(model.TypeComing, model.SubTypeFull, model.StatusCompleted, 600),
		historyReceipt(model.TypeRefundComing, model.SubTypeFull, model.StatusCompleted, 600),
	}}
	seq := NewSequencer(repo, testSettings())

	_, err := seq.CreateComing(context.Background(), "order-1", "site-1", "",
		testItems(), 600, model.Notify{Email: "buyer@example.com"}, nil, nil)

	var seqErr *domainErrors.SequencingError
	if !errors.As(err, &seqErr) {
		t.Fatalf("expected SequencingError, got %v", err)
	}
}

func TestSequencerAutoSubtypeSelection(t *testing.T) {
	settings := testSettings()
	settings.PreFullScheme = true

	repo := &stubRepo{}
	seq := NewSequencer(repo, settings)

	first, err := seq.CreateComing(context.Background(), "order-1", "site-1", "",
		testItems(), 600, model.Notify{Email: "buyer@example.com"}, nil, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if first.SubType != model.SubTypePre {
		t.Fatalf("fresh order got subtype %s, want PRE", first.SubType)
	}
	if first.Amount.Cashless != 600 || first.Amount.Prepayment != 0 {
		t.Fatalf("prepayment receipt amount split wrong: %+v", first.Amount)
	}

	first.Status = model.StatusCompleted
	repo.receipts = append(repo.receipts, *first)

	second, err := seq.CreateComing(context.Background(), "order-1", "site-1", "",
		testItems(), 600, model.Notify{Email: "buyer@example.com"}, nil, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if second.SubType != model.SubTypeFull {
		t.Fatalf("second receipt got subtype %s, want FULL", second.SubType)
	}
	if second.Amount.Prepayment != 600 || second.Amount.Cashless != 0 {
		t.Fatalf("settlement after prepayment must close by prepayment, got %+v", second.Amount)
	}
}

func TestSequencerRefundSelectsFlattenedUnits(t *testing.T) {
	repo := &stubRepo{receipts: []model.Receipt{
		historyReceipt(model.TypeComing, model.SubTypeFull, model.StatusCompleted, 600),
	}}
	seq := NewSequencer(repo, testSettings())

	// Source flattens to units: [chair 100, table 250, table 250].
	refund, err := seq.CreateRefund(context.Background(), "order-1", "site-1", map[int]float64{0: 100, 2: 250})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if refund.Type != model.TypeRefundComing {
		t.Fatalf("got type %s", refund.Type)
	}
	if len(refund.Items) != 2 {
		t.Fatalf("got %d items, want 2", len(refund.Items))
	}
	if refund.Items[0].Name != "chair" || refund.Items[0].Amount != 100 {
		t.Errorf("item 0 = %+v", refund.Items[0])
	}
	if refund.Items[1].Name != "table" || refund.Items[1].Amount != 250 || refund.Items[1].Quantity != 1 {
		t.Errorf("item 1 = %+v", refund.Items[1])
	}
	if refund.Amount.Cashless != 350 {
		t.Errorf("refund amount = %v, want 350", refund.Amount.Cashless)
	}
	if refund.UUID == repo.receipts[0].UUID {
		t.Error("refund must get its own idempotency key")
	}
}

func TestSequencerRefundLineValidation(t *testing.T) {
	repo := &stubRepo{receipts: []model.Receipt{
		historyReceipt(model.TypeComing, model.SubTypeFull, model.StatusCompleted, 600),
	}}
	seq := NewSequencer(repo, testSettings())

	cases := map[string]map[int]float64{
		"index out of range": {7: 100},
		"zero amount":        {0: 0},
		"above unit price":   {0: 101},
		"no lines":           {},
	}
	for name, lines := range cases {
		if _, err := seq.CreateRefund(context.Background(), "order-1", "site-1", lines); err == nil {
			t.Errorf("%s: expected error", name)
		}
	}
}

func TestSequencerRefundBalanceCap(t *testing.T) {
	repo := &stubRepo{receipts: []model.Receipt{
		historyReceipt(model.TypeComing, model.SubTypeFull, model.StatusCompleted, 600),
		historyReceipt(model.TypeRefundComing, model.SubTypeFull, model.StatusCompleted, 400),
	}}
	// Full refund already present blocks further refunds outright.
	seq := NewSequencer(repo, testSettings())
	if _, err := seq.CreateRefund(context.Background(), "order-1", "site-1", map[int]float64{0: 100}); err == nil {
		t.Fatal("expected error after full settlement refund")
	}

	// Partial refunds are capped by the remaining balance.
	partial := historyReceipt(model.TypeRefundComing, model.SubTypeHand, model.StatusCompleted, 400)
	partial.Items = nil
	repo = &stubRepo{receipts: []model.Receipt{
		historyReceipt(model.TypeComing, model.SubTypeFull, model.StatusCompleted, 600),
		partial,
	}}
	seq = NewSequencer(repo, testSettings())

	if _, err := seq.CreateRefund(context.Background(), "order-1", "site-1", map[int]float64{1: 250}); err == nil {
		t.Fatal("expected balance error for 250 over remaining 200")
	}
	if _, err := seq.CreateRefund(context.Background(), "order-1", "site-1", map[int]float64{0: 100}); err != nil {
		t.Fatalf("refund within balance failed: %v", err)
	}
}

func TestSequencerRefundRequiresFiscalizedSource(t *testing.T) {
	repo := &stubRepo{receipts: []model.Receipt{
		historyReceipt(model.TypeComing, model.SubTypeFull, model.StatusWait, 600),
	}}
	seq := NewSequencer(repo, testSettings())

	_, err := seq.CreateRefund(context.Background(), "order-1", "site-1", map[int]float64{0: 100})
	var seqErr *domainErrors.SequencingError
	if !errors.As(err, &seqErr) {
		t.Fatalf("expected SequencingError, got %v", err)
	}
}

func TestSequencerRefundPrefersFullOverPre(t *testing.T) {
	pre := historyReceipt(model.TypeComing, model.SubTypePre, model.StatusCompleted, 600)
	full := historyReceipt(model.TypeComing, model.SubTypeFull, model.StatusCompleted, 600)
	full.Items = []model.ReceiptItem{
		{Kind: model.ItemProduct, Name: "settled", Price: 600, Quantity: 1, Vat: 20, PaymentMethod: model.PaymentMethodFull},
	}
	repo := &stubRepo{receipts: []model.Receipt{pre, full}}
	seq := NewSequencer(repo, testSettings())

	refund, err := seq.CreateRefund(context.Background(), "order-1", "site-1", map[int]float64{0: 600})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if refund.SubType != model.SubTypeFull || refund.Items[0].Name != "settled" {
		t.Fatalf("refund drawn from the wrong source: %+v", refund.Items)
	}
}

func TestSequencerManualRefundBalance(t *testing.T) {
	repo := &stubRepo{receipts: []model.Receipt{
		historyReceipt(model.TypeComing, model.SubTypeFull, model.StatusCompleted, 600),
	}}
	seq := NewSequencer(repo, testSettings())

	items := []model.ReceiptItem{{Kind: model.ItemProduct, Name: "chair", Price: 700, Quantity: 1, Vat: 20, PaymentMethod: model.PaymentMethodFull}}
	_, err := seq.CreateManual(context.Background(), model.TypeRefundComing, "order-1", "site-1",
		items, model.Notify{Email: "buyer@example.com"}, nil)

	var seqErr *domainErrors.SequencingError
	if !errors.As(err, &seqErr) {
		t.Fatalf("expected SequencingError, got %v", err)
	}

	items[0].Price = 200
	receipt, err := seq.CreateManual(context.Background(), model.TypeRefundComing, "order-1", "site-1",
		items, model.Notify{Email: "buyer@example.com"}, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if receipt.SubType != model.SubTypeHand {
		t.Fatalf("manual receipt got subtype %s", receipt.SubType)
	}
}

func newFiscalizationForTest(repo *stubRepo, gw *stubGateway) *Fiscalization {
	seq := NewSequencer(repo, testSettings())
	return NewFiscalization(seq, repo, gw, testSettings(), discardLogger(), nil)
}

func TestFiscalizeCompletes(t *testing.T) {
	repo := &stubRepo{}
	gw := &stubGateway{sendResp: &pangaea.Response{Code: 201}}
	svc := newFiscalizationForTest(repo, gw)

	orders := &stubOrders{total: 600, items: testItems(), notify: model.Notify{Email: "buyer@example.com"}}
	receipt, err := svc.Fiscalize(context.Background(), orders, "order-1", "site-1", "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if receipt.Status != model.StatusCompleted {
		t.Fatalf("status = %s, want COMPLETED", receipt.Status)
	}
	if receipt.Attempts != 1 || receipt.StartTime.IsZero() {
		t.Errorf("attempt accounting wrong: attempts=%d start=%v", receipt.Attempts, receipt.StartTime)
	}
	if len(repo.saved) != 1 {
		t.Fatalf("saved %d receipts, want 1", len(repo.saved))
	}
	if len(gw.sentUUIDs) != 1 || gw.sentUUIDs[0] != receipt.UUID {
		t.Errorf("gateway called with %v", gw.sentUUIDs)
	}
	if gw.sentBody == nil || len(gw.sentBody.Items) != 2 {
		t.Errorf("payload = %+v", gw.sentBody)
	}
}

func TestFiscalizeTransportFailureLeavesPrepared(t *testing.T) {
	repo := &stubRepo{}
	gw := &stubGateway{sendErr: &domainErrors.TransportError{Err: errors.New("dial tcp: refused")}}
	svc := newFiscalizationForTest(repo, gw)

	orders := &stubOrders{total: 600, items: testItems(), notify: model.Notify{Email: "buyer@example.com"}}
	receipt, err := svc.Fiscalize(context.Background(), orders, "order-1", "site-1", "")
	if err != nil {
		t.Fatalf("transport failure must not surface: %v", err)
	}
	if receipt.Status != model.StatusPrepared {
		t.Fatalf("status = %s, want PREPARED", receipt.Status)
	}
	if len(repo.saved) != 1 {
		t.Fatalf("prepared receipt must be persisted, saved %d", len(repo.saved))
	}
}

func TestFiscalizeConflictConvertsToPoll(t *testing.T) {
	repo := &stubRepo{}
	gw := &stubGateway{
		sendResp: &pangaea.Response{Code: 409},
		getResp:  &pangaea.Response{Code: 200},
	}
	svc := newFiscalizationForTest(repo, gw)

	orders := &stubOrders{total: 600, items: testItems(), notify: model.Notify{Email: "buyer@example.com"}}
	receipt, err := svc.Fiscalize(context.Background(), orders, "order-1", "site-1", "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if receipt.Status != model.StatusCompleted {
		t.Fatalf("status = %s, want COMPLETED from the poll", receipt.Status)
	}
	if len(gw.polled) != 1 {
		t.Fatalf("expected one poll, got %d", len(gw.polled))
	}
}

func TestFiscalizeGatewayRejection(t *testing.T) {
	repo := &stubRepo{}
	gw := &stubGateway{sendResp: &pangaea.Response{Code: 400, Body: []byte(`{"desc":"bad vat"}`)}}
	svc := newFiscalizationForTest(repo, gw)

	orders := &stubOrders{total: 600, items: testItems(), notify: model.Notify{Email: "buyer@example.com"}}
	receipt, err := svc.Fiscalize(context.Background(), orders, "order-1", "site-1", "")

	var gwErr *domainErrors.GatewayError
	if !errors.As(err, &gwErr) {
		t.Fatalf("expected GatewayError, got %v", err)
	}
	if gwErr.Code != 400 {
		t.Errorf("code = %d", gwErr.Code)
	}
	if receipt == nil || receipt.Status != model.StatusError {
		t.Fatalf("rejected receipt must come back with ERROR status: %+v", receipt)
	}
	if len(repo.saved) != 1 {
		t.Fatal("rejected receipt must still be persisted")
	}
}

func TestFiscalizeSequencingErrorSkipsGateway(t *testing.T) {
	repo := &stubRepo{receipts: []model.Receipt{
		historyReceipt(model.TypeComing, model.SubTypeFull, model.StatusCompleted, 600),
	}}
	gw := &stubGateway{}
	svc := newFiscalizationForTest(repo, gw)

	orders := &stubOrders{total: 600, items: testItems(), notify: model.Notify{Email: "buyer@example.com"}}
	_, err := svc.Fiscalize(context.Background(), orders, "order-1", "site-1", model.SubTypeFull)
	if err == nil {
		t.Fatal("expected sequencing error")
	}
	if len(gw.sentUUIDs) != 0 {
		t.Error("gateway must not be called on a local rejection")
	}
	if len(repo.saved) != 0 {
		t.Error("nothing must be persisted on a local rejection")
	}
}

func cashboxResponse(t *testing.T, taxation int, places ...string) *pangaea.Response {
	t.Helper()
	body, err := json.Marshal(map[string]any{"taxation": taxation, "billing_place_list": places})
	if err != nil {
		t.Fatal(err)
	}
	return &pangaea.Response{Code: 200, Body: body}
}

func TestVerifySettings(t *testing.T) {
	repo := &stubRepo{}

	gw := &stubGateway{boxResp: cashboxResponse(t, int(model.TaxationORN), "shop.example", "other.example")}
	if err := newFiscalizationForTest(repo, gw).VerifySettings(context.Background()); err != nil {
		t.Fatalf("matching settings rejected: %v", err)
	}

	var settingsErr *domainErrors.SettingsError

	gw = &stubGateway{boxResp: cashboxResponse(t, int(model.TaxationUSNIncome), "shop.example")}
	err := newFiscalizationForTest(repo, gw).VerifySettings(context.Background())
	if !errors.As(err, &settingsErr) {
		t.Fatalf("expected SettingsError for taxation mismatch, got %v", err)
	}

	gw = &stubGateway{boxResp: cashboxResponse(t, int(model.TaxationORN), "other.example")}
	err = newFiscalizationForTest(repo, gw).VerifySettings(context.Background())
	if !errors.As(err, &settingsErr) {
		t.Fatalf("expected SettingsError for billing place mismatch, got %v", err)
	}

	gw = &stubGateway{boxResp: &pangaea.Response{Code: 401}}
	err = newFiscalizationForTest(repo, gw).VerifySettings(context.Background())
	if !errors.As(err, &settingsErr) {
		t.Fatalf("expected SettingsError for bad credentials, got %v", err)
	}
}

func TestReceiptLink(t *testing.T) {
	svc := newFiscalizationForTest(&stubRepo{}, &stubGateway{})
	r := model.NewReceipt(model.TypeComing, model.SubTypeFull, "order-1", "site-1")
	link := svc.ReceiptLink(r)
	want := "https://fisc.example/receipt/show/" + r.UUID
	if link != want {
		t.Fatalf("link = %s, want %s", link, want)
	}
}
