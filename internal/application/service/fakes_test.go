package service

import (
	"context"
	"io"
	"sync"
	"time"

	"github.com/dukasoft/tillpoint-api/internal/application/collaborator"
	"github.com/dukasoft/tillpoint-api/internal/application/sideeffect"
	"github.com/dukasoft/tillpoint-api/internal/domain/entity"
	"github.com/dukasoft/tillpoint-api/internal/domain/enum"
	"github.com/dukasoft/tillpoint-api/internal/domain/repository"
	"github.com/dukasoft/tillpoint-api/internal/locking"
	"github.com/dukasoft/tillpoint-api/pkg/apperror"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"golang.org/x/crypto/bcrypt"
)

// In-memory repository fakes mirroring the GORM implementations closely
// enough for service-level behavior: uuid assignment on create, version
// conditional receipt updates, idempotency key uniqueness.

type fakeReceiptRepo struct {
	mu       sync.Mutex
	receipts map[uuid.UUID]*entity.Receipt
	order    []uuid.UUID
}

func newFakeReceiptRepo() *fakeReceiptRepo {
	return &fakeReceiptRepo{receipts: make(map[uuid.UUID]*entity.Receipt)}
}

func (f *fakeReceiptRepo) Create(ctx context.Context, receipt *entity.Receipt) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if receipt.ID == uuid.Nil {
		receipt.ID = uuid.New()
	}
	if receipt.Version == 0 {
		receipt.Version = 1
	}
	receipt.CreatedAt = time.Now()
	stored := *receipt
	f.receipts[receipt.ID] = &stored
	f.order = append(f.order, receipt.ID)
	return nil
}

func (f *fakeReceiptRepo) CreateBatch(ctx context.Context, receipts []*entity.Receipt) error {
	for _, r := range receipts {
		if err := f.Create(ctx, r); err != nil {
			return err
		}
	}
	return nil
}

func (f *fakeReceiptRepo) GetByID(ctx context.Context, id uuid.UUID) (*entity.Receipt, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	stored, ok := f.receipts[id]
	if !ok {
		return nil, nil
	}
	clone := *stored
	return &clone, nil
}

func (f *fakeReceiptRepo) Update(ctx context.Context, receipt *entity.Receipt) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	stored, ok := f.receipts[receipt.ID]
	if !ok || stored.Version != receipt.Version {
		return apperror.ErrVersionConflict
	}
	next := *receipt
	next.Version = receipt.Version + 1
	next.UpdatedAt = time.Now()
	f.receipts[receipt.ID] = &next
	receipt.Version++
	return nil
}

func (f *fakeReceiptRepo) ListByPeriod(ctx context.Context, periodID uuid.UUID, states []enum.ReceiptState, limit, offset int) ([]entity.Receipt, int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var matched []entity.Receipt
	for _, id := range f.order {
		r := f.receipts[id]
		if r.WorkPeriodID != periodID {
			continue
		}
		if len(states) > 0 {
			found := false
			for _, s := range states {
				if r.State == s {
					found = true
					break
				}
			}
			if !found {
				continue
			}
		}
		matched = append(matched, *r)
	}
	total := int64(len(matched))
	if offset > len(matched) {
		offset = len(matched)
	}
	matched = matched[offset:]
	if limit > 0 && limit < len(matched) {
		matched = matched[:limit]
	}
	return matched, total, nil
}

func (f *fakeReceiptRepo) ListChildren(ctx context.Context, id uuid.UUID) ([]entity.Receipt, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var children []entity.Receipt
	for _, cid := range f.order {
		r := f.receipts[cid]
		if r.ParentReceiptID != nil && *r.ParentReceiptID == id {
			children = append(children, *r)
		}
	}
	return children, nil
}

func (f *fakeReceiptRepo) ListByOrder(ctx context.Context, orderID uuid.UUID) ([]entity.Receipt, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var matched []entity.Receipt
	for _, id := range f.order {
		r := f.receipts[id]
		if r.OrderID == orderID {
			matched = append(matched, *r)
		}
	}
	return matched, nil
}

func (f *fakeReceiptRepo) CountByPeriodAndStates(ctx context.Context, periodID uuid.UUID, states []enum.ReceiptState) (int64, error) {
	matched, total, err := f.ListByPeriod(ctx, periodID, states, 0, 0)
	_ = matched
	return total, err
}

type fakeOrderRepo struct {
	mu     sync.Mutex
	orders map[uuid.UUID]*entity.Order
	items  map[uuid.UUID][]entity.OrderItem
}

func newFakeOrderRepo() *fakeOrderRepo {
	return &fakeOrderRepo{
		orders: make(map[uuid.UUID]*entity.Order),
		items:  make(map[uuid.UUID][]entity.OrderItem),
	}
}

func (f *fakeOrderRepo) Create(ctx context.Context, order *entity.Order) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if order.ID == uuid.Nil {
		order.ID = uuid.New()
	}
	stored := *order
	stored.Items = nil
	f.orders[order.ID] = &stored
	return nil
}

func (f *fakeOrderRepo) GetWithItems(ctx context.Context, id uuid.UUID) (*entity.Order, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	stored, ok := f.orders[id]
	if !ok {
		return nil, nil
	}
	clone := *stored
	clone.Items = append([]entity.OrderItem(nil), f.items[id]...)
	return &clone, nil
}

func (f *fakeOrderRepo) Update(ctx context.Context, order *entity.Order) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	stored := *order
	stored.Items = nil
	f.orders[order.ID] = &stored
	return nil
}

func (f *fakeOrderRepo) AppendItems(ctx context.Context, items []entity.OrderItem) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i := range items {
		if items[i].ID == uuid.Nil {
			items[i].ID = uuid.New()
		}
		f.items[items[i].OrderID] = append(f.items[items[i].OrderID], items[i])
	}
	return nil
}

func (f *fakeOrderRepo) SaveItems(ctx context.Context, items []entity.OrderItem) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, item := range items {
		stored := f.items[item.OrderID]
		for i := range stored {
			if stored[i].ID == item.ID {
				stored[i] = item
			}
		}
	}
	return nil
}

type fakePeriodRepo struct {
	mu      sync.Mutex
	periods map[uuid.UUID]*entity.WorkPeriod
	order   []uuid.UUID
}

func newFakePeriodRepo() *fakePeriodRepo {
	return &fakePeriodRepo{periods: make(map[uuid.UUID]*entity.WorkPeriod)}
}

func (f *fakePeriodRepo) Create(ctx context.Context, period *entity.WorkPeriod) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if period.ID == uuid.Nil {
		period.ID = uuid.New()
	}
	stored := *period
	f.periods[period.ID] = &stored
	f.order = append(f.order, period.ID)
	return nil
}

func (f *fakePeriodRepo) GetByID(ctx context.Context, id uuid.UUID) (*entity.WorkPeriod, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	stored, ok := f.periods[id]
	if !ok {
		return nil, nil
	}
	clone := *stored
	return &clone, nil
}

func (f *fakePeriodRepo) GetOpen(ctx context.Context, registerGroup string) (*entity.WorkPeriod, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, id := range f.order {
		p := f.periods[id]
		if p.RegisterGroup == registerGroup && p.Status == enum.PeriodStatusOpen {
			clone := *p
			return &clone, nil
		}
	}
	return nil, nil
}

func (f *fakePeriodRepo) Update(ctx context.Context, period *entity.WorkPeriod) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	stored := *period
	f.periods[period.ID] = &stored
	return nil
}

func (f *fakePeriodRepo) List(ctx context.Context, limit, offset int) ([]entity.WorkPeriod, int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var all []entity.WorkPeriod
	for i := len(f.order) - 1; i >= 0; i-- {
		all = append(all, *f.periods[f.order[i]])
	}
	total := int64(len(all))
	if offset > len(all) {
		offset = len(all)
	}
	all = all[offset:]
	if limit > 0 && limit < len(all) {
		all = all[:limit]
	}
	return all, total, nil
}

type fakeProductRepo struct {
	mu       sync.Mutex
	products map[uuid.UUID]*entity.Product

	// decrementErr and incrementErr simulate the inventory store being down.
	decrementErr error
	incrementErr error
}

func newFakeProductRepo() *fakeProductRepo {
	return &fakeProductRepo{products: make(map[uuid.UUID]*entity.Product)}
}

func (f *fakeProductRepo) Create(ctx context.Context, product *entity.Product) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if product.ID == uuid.Nil {
		product.ID = uuid.New()
	}
	stored := *product
	f.products[product.ID] = &stored
	return nil
}

func (f *fakeProductRepo) GetByID(ctx context.Context, id uuid.UUID) (*entity.Product, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	stored, ok := f.products[id]
	if !ok {
		return nil, nil
	}
	clone := *stored
	return &clone, nil
}

func (f *fakeProductRepo) GetByIDs(ctx context.Context, ids []uuid.UUID) ([]entity.Product, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []entity.Product
	seen := make(map[uuid.UUID]bool)
	for _, id := range ids {
		if seen[id] {
			continue
		}
		seen[id] = true
		if p, ok := f.products[id]; ok {
			out = append(out, *p)
		}
	}
	return out, nil
}

func (f *fakeProductRepo) List(ctx context.Context, limit, offset int) ([]entity.Product, int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var all []entity.Product
	for _, p := range f.products {
		all = append(all, *p)
	}
	return all, int64(len(all)), nil
}

func (f *fakeProductRepo) AtomicDecrementBatch(ctx context.Context, decrements map[uuid.UUID]int) ([]uuid.UUID, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.decrementErr != nil {
		return nil, f.decrementErr
	}
	var failed []uuid.UUID
	for id, qty := range decrements {
		p, ok := f.products[id]
		if !ok || p.Quantity < qty {
			failed = append(failed, id)
		}
	}
	if len(failed) > 0 {
		return failed, nil
	}
	for id, qty := range decrements {
		f.products[id].Quantity -= qty
	}
	return nil, nil
}

func (f *fakeProductRepo) AtomicIncrementBatch(ctx context.Context, increments map[uuid.UUID]int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.incrementErr != nil {
		return f.incrementErr
	}
	for id, qty := range increments {
		if p, ok := f.products[id]; ok {
			p.Quantity += qty
		}
	}
	return nil
}

func (f *fakeProductRepo) quantityOf(id uuid.UUID) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	if p, ok := f.products[id]; ok {
		return p.Quantity
	}
	return 0
}

// fakePaymentRepo holds a reference to the receipt repo so that
// SumByPeriodAndMethod can exclude payments of voided receipts, matching the
// join the real implementation does.
type fakePaymentRepo struct {
	mu       sync.Mutex
	payments map[uuid.UUID]*entity.Payment
	order    []uuid.UUID
	receipts *fakeReceiptRepo
}

func newFakePaymentRepo(receipts *fakeReceiptRepo) *fakePaymentRepo {
	return &fakePaymentRepo{payments: make(map[uuid.UUID]*entity.Payment), receipts: receipts}
}

func (f *fakePaymentRepo) Create(ctx context.Context, payment *entity.Payment) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if payment.ID == uuid.Nil {
		payment.ID = uuid.New()
	}
	stored := *payment
	f.payments[payment.ID] = &stored
	f.order = append(f.order, payment.ID)
	return nil
}

func (f *fakePaymentRepo) Update(ctx context.Context, payment *entity.Payment) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	stored := *payment
	f.payments[payment.ID] = &stored
	return nil
}

func (f *fakePaymentRepo) GetByIdempotencyKey(ctx context.Context, key string) (*entity.Payment, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, id := range f.order {
		p := f.payments[id]
		if p.IdempotencyKey == key {
			clone := *p
			return &clone, nil
		}
	}
	return nil, nil
}

func (f *fakePaymentRepo) GetByReference(ctx context.Context, reference string) (*entity.Payment, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, id := range f.order {
		p := f.payments[id]
		if p.Reference != nil && *p.Reference == reference {
			clone := *p
			return &clone, nil
		}
	}
	return nil, nil
}

func (f *fakePaymentRepo) ListByReceipt(ctx context.Context, receiptID uuid.UUID) ([]entity.Payment, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []entity.Payment
	for _, id := range f.order {
		p := f.payments[id]
		if p.ReceiptID == receiptID {
			out = append(out, *p)
		}
	}
	return out, nil
}

func (f *fakePaymentRepo) ListByPeriod(ctx context.Context, periodID uuid.UUID) ([]entity.Payment, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []entity.Payment
	for _, id := range f.order {
		p := f.payments[id]
		if p.WorkPeriodID == periodID {
			out = append(out, *p)
		}
	}
	return out, nil
}

func (f *fakePaymentRepo) SumByPeriodAndMethod(ctx context.Context, periodID uuid.UUID, method enum.PaymentMethod) (int64, error) {
	f.mu.Lock()
	payments := make([]entity.Payment, 0, len(f.order))
	for _, id := range f.order {
		payments = append(payments, *f.payments[id])
	}
	f.mu.Unlock()

	var sum int64
	for _, p := range payments {
		if p.WorkPeriodID != periodID || p.Method != method || p.Status != enum.PaymentStatusCaptured {
			continue
		}
		receipt, _ := f.receipts.GetByID(ctx, p.ReceiptID)
		if receipt != nil && receipt.State == enum.ReceiptStateVoided {
			continue
		}
		sum += p.Amount
	}
	return sum, nil
}

type fakeAuditRepo struct {
	mu      sync.Mutex
	entries []entity.AuditEntry
}

func (f *fakeAuditRepo) Append(ctx context.Context, entry *entity.AuditEntry) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if entry.ID == uuid.Nil {
		entry.ID = uuid.New()
	}
	entry.CreatedAt = time.Now()
	f.entries = append(f.entries, *entry)
	return nil
}

func (f *fakeAuditRepo) List(ctx context.Context, params *repository.AuditFilterParams) ([]entity.AuditEntry, int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []entity.AuditEntry
	for _, e := range f.entries {
		if params.EntityType != "" && e.EntityType != params.EntityType {
			continue
		}
		if params.EntityID != nil && e.EntityID != *params.EntityID {
			continue
		}
		if params.Actor != nil && e.Actor != *params.Actor {
			continue
		}
		out = append(out, e)
	}
	return out, int64(len(out)), nil
}

// byAction returns the entries recorded with the given action, oldest first.
func (f *fakeAuditRepo) byAction(action enum.AuditAction) []entity.AuditEntry {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []entity.AuditEntry
	for _, e := range f.entries {
		if e.Action == action {
			out = append(out, e)
		}
	}
	return out
}

type fakeGrantRepo struct {
	mu     sync.Mutex
	grants map[string]*entity.OverrideGrant
}

func newFakeGrantRepo() *fakeGrantRepo {
	return &fakeGrantRepo{grants: make(map[string]*entity.OverrideGrant)}
}

func (f *fakeGrantRepo) Create(ctx context.Context, grant *entity.OverrideGrant) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if grant.ID == uuid.Nil {
		grant.ID = uuid.New()
	}
	stored := *grant
	f.grants[grant.Token] = &stored
	return nil
}

func (f *fakeGrantRepo) Consume(ctx context.Context, token string) (*entity.OverrideGrant, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	grant, ok := f.grants[token]
	if !ok || grant.Consumed || grant.IsExpired() {
		return nil, nil
	}
	now := time.Now()
	grant.Consumed = true
	grant.ConsumedAt = &now
	clone := *grant
	return &clone, nil
}

type fakeReportRepo struct {
	mu        sync.Mutex
	sequence  int64
	snapshots map[uuid.UUID]*entity.ReportSnapshot
}

func newFakeReportRepo() *fakeReportRepo {
	return &fakeReportRepo{snapshots: make(map[uuid.UUID]*entity.ReportSnapshot)}
}

func (f *fakeReportRepo) NextSequence(ctx context.Context) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sequence++
	return f.sequence, nil
}

func (f *fakeReportRepo) CreateSnapshot(ctx context.Context, snapshot *entity.ReportSnapshot) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, exists := f.snapshots[snapshot.WorkPeriodID]; exists {
		return apperror.ErrAlreadyGenerated
	}
	if snapshot.ID == uuid.Nil {
		snapshot.ID = uuid.New()
	}
	stored := *snapshot
	f.snapshots[snapshot.WorkPeriodID] = &stored
	return nil
}

func (f *fakeReportRepo) GetSnapshotByPeriod(ctx context.Context, periodID uuid.UUID) (*entity.ReportSnapshot, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	stored, ok := f.snapshots[periodID]
	if !ok {
		return nil, nil
	}
	clone := *stored
	return &clone, nil
}

type fakePayoutRepo struct {
	mu      sync.Mutex
	payouts []entity.CashPayout
}

func (f *fakePayoutRepo) Create(ctx context.Context, payout *entity.CashPayout) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if payout.ID == uuid.Nil {
		payout.ID = uuid.New()
	}
	f.payouts = append(f.payouts, *payout)
	return nil
}

func (f *fakePayoutRepo) SumForPeriod(ctx context.Context, periodID uuid.UUID) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var sum int64
	for _, p := range f.payouts {
		if p.WorkPeriodID == periodID {
			sum += p.Amount
		}
	}
	return sum, nil
}

func (f *fakePayoutRepo) ListForPeriod(ctx context.Context, periodID uuid.UUID) ([]entity.CashPayout, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []entity.CashPayout
	for _, p := range f.payouts {
		if p.WorkPeriodID == periodID {
			out = append(out, p)
		}
	}
	return out, nil
}

type fakeSideEffectRepo struct {
	mu    sync.Mutex
	tasks []entity.SideEffectTask
}

func (f *fakeSideEffectRepo) Enqueue(ctx context.Context, task *entity.SideEffectTask) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if task.ID == uuid.Nil {
		task.ID = uuid.New()
	}
	f.tasks = append(f.tasks, *task)
	return nil
}

func (f *fakeSideEffectRepo) Due(ctx context.Context, now time.Time, limit int) ([]entity.SideEffectTask, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var due []entity.SideEffectTask
	for i := range f.tasks {
		if len(due) >= limit {
			break
		}
		if f.tasks[i].Status == entity.SideEffectStatusPending && !f.tasks[i].NextAttemptAt.After(now) {
			f.tasks[i].Status = entity.SideEffectStatusProcessing
			due = append(due, f.tasks[i])
		}
	}
	return due, nil
}

func (f *fakeSideEffectRepo) Update(ctx context.Context, task *entity.SideEffectTask) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i := range f.tasks {
		if f.tasks[i].ID == task.ID {
			f.tasks[i] = *task
		}
	}
	return nil
}

func (f *fakeSideEffectRepo) byKind(kind string) []entity.SideEffectTask {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []entity.SideEffectTask
	for _, t := range f.tasks {
		if t.Kind == kind {
			out = append(out, t)
		}
	}
	return out
}

type fakeUserRepo struct {
	mu      sync.Mutex
	byID    map[uuid.UUID]*entity.User
	byEmail map[string]*entity.User
	roles   map[string]*entity.Role
	nextID  uint
}

func newFakeUserRepo() *fakeUserRepo {
	return &fakeUserRepo{
		byID:    make(map[uuid.UUID]*entity.User),
		byEmail: make(map[string]*entity.User),
		roles:   make(map[string]*entity.Role),
	}
}

func (f *fakeUserRepo) Create(ctx context.Context, user *entity.User) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if user.ID == uuid.Nil {
		user.ID = uuid.New()
	}
	stored := *user
	f.byID[user.ID] = &stored
	f.byEmail[user.Email] = &stored
	return nil
}

func (f *fakeUserRepo) GetByID(ctx context.Context, id uuid.UUID) (*entity.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	stored, ok := f.byID[id]
	if !ok {
		return nil, nil
	}
	clone := *stored
	return &clone, nil
}

func (f *fakeUserRepo) GetByEmail(ctx context.Context, email string) (*entity.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	stored, ok := f.byEmail[email]
	if !ok {
		return nil, nil
	}
	clone := *stored
	return &clone, nil
}

func (f *fakeUserRepo) GetRoleByName(ctx context.Context, name string) (*entity.Role, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	role, ok := f.roles[name]
	if !ok {
		f.nextID++
		role = &entity.Role{ID: f.nextID, Name: name}
		f.roles[name] = role
	}
	clone := *role
	return &clone, nil
}

func (f *fakeUserRepo) AssignRole(ctx context.Context, user *entity.User, role *entity.Role) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	stored, ok := f.byID[user.ID]
	if !ok {
		return apperror.NewNotFoundError("User")
	}
	stored.Roles = append(stored.Roles, *role)
	return nil
}

type fakeGateway struct {
	mu        sync.Mutex
	initiated []string
	err       error
}

func (f *fakeGateway) InitiatePayment(ctx context.Context, method enum.PaymentMethod, amount int64, reference string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.initiated = append(f.initiated, reference)
	return nil
}

type fakePrinter struct{}

func (fakePrinter) PrintTicket(ctx context.Context, receiptID uuid.UUID, items []entity.OrderItem) error {
	return nil
}

func (fakePrinter) PrintReceipt(ctx context.Context, receiptID uuid.UUID) error {
	return nil
}

type fakeNotifier struct{}

func (fakeNotifier) Notify(ctx context.Context, kind string, receiptID uuid.UUID, payload string) error {
	return nil
}

// fixture wires every service over the in-memory fakes, mirroring the
// dependency graph in cmd/api.
type fixture struct {
	receipts    *fakeReceiptRepo
	orders      *fakeOrderRepo
	periods     *fakePeriodRepo
	products    *fakeProductRepo
	payments    *fakePaymentRepo
	auditLog    *fakeAuditRepo
	grants      *fakeGrantRepo
	reports     *fakeReportRepo
	payouts     *fakePayoutRepo
	sideEffects *fakeSideEffectRepo
	users       *fakeUserRepo
	gateway     *fakeGateway

	audit      *AuditService
	guard      *GuardService
	settlement *SettlementService
	reportSvc  *ReportService
	ledger     *LedgerService
	workPeriod *WorkPeriodService
}

func defaultLedgerPolicies() LedgerPolicies {
	return LedgerPolicies{
		SettlementMode:  SettlementModeManual,
		VoidPolicy:      VoidUntilPeriodClose,
		ConflictRetries: 3,
		VATBasisPoints:  1600,
	}
}

func defaultPeriodPolicies() PeriodPolicies {
	return PeriodPolicies{
		ClosePolicy: CloseBlockUnsettled,
		CloseWait:   200 * time.Millisecond,
	}
}

func newFixture() *fixture {
	return newFixtureWith(defaultLedgerPolicies(), defaultPeriodPolicies())
}

func newFixtureWith(ledgerPolicies LedgerPolicies, periodPolicies PeriodPolicies) *fixture {
	logger := logrus.New()
	logger.SetOutput(io.Discard)

	f := &fixture{
		receipts:    newFakeReceiptRepo(),
		orders:      newFakeOrderRepo(),
		periods:     newFakePeriodRepo(),
		products:    newFakeProductRepo(),
		auditLog:    &fakeAuditRepo{},
		grants:      newFakeGrantRepo(),
		reports:     newFakeReportRepo(),
		payouts:     &fakePayoutRepo{},
		sideEffects: &fakeSideEffectRepo{},
		users:       newFakeUserRepo(),
		gateway:     &fakeGateway{},
	}
	f.payments = newFakePaymentRepo(f.receipts)

	dispatcher := sideeffect.NewDispatcher(f.sideEffects, fakePrinter{}, fakeNotifier{}, logger, sideeffect.DefaultRetryConfig())
	locks := locking.NewKeyedMutex()
	gate := locking.NewPeriodGate()

	f.audit = NewAuditService(f.auditLog, logger)
	f.guard = NewGuardService(f.grants, f.users, f.audit)
	f.settlement = NewSettlementService(f.payments, f.gateway, f.audit, logger)
	f.reportSvc = NewReportService(f.reports, f.receipts, f.orders, f.payments, f.payouts, f.periods, f.audit, logger)
	f.ledger = NewLedgerService(
		f.receipts, f.orders, f.periods, f.products,
		collaborator.NewStockInventory(f.products),
		f.settlement, f.guard, f.audit, dispatcher, locks, gate, logger, ledgerPolicies,
	)
	f.workPeriod = NewWorkPeriodService(
		f.periods, f.payouts, f.receipts, f.payments,
		f.reportSvc, f.guard, f.audit, gate, logger, periodPolicies,
	)
	return f
}

func (f *fixture) seedOpenPeriod(registerGroup string, openingFloat int64) *entity.WorkPeriod {
	period := &entity.WorkPeriod{
		RegisterGroup: registerGroup,
		Status:        enum.PeriodStatusOpen,
		OpenedBy:      uuid.New(),
		OpenedAt:      time.Now(),
		OpeningFloat:  openingFloat,
	}
	_ = f.periods.Create(context.Background(), period)
	return period
}

func (f *fixture) seedProduct(name, category string, price int64, quantity int) *entity.Product {
	product := &entity.Product{
		Name:     name,
		Code:     name,
		Category: category,
		Price:    price,
		Quantity: quantity,
	}
	_ = f.products.Create(context.Background(), product)
	return product
}

func (f *fixture) seedUser(email, password string, roles ...string) *entity.User {
	hash, _ := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
	user := &entity.User{
		FirstName: "Test",
		LastName:  "User",
		Username:  email,
		Email:     email,
		Password:  string(hash),
	}
	for _, name := range roles {
		role, _ := f.users.GetRoleByName(context.Background(), name)
		user.Roles = append(user.Roles, *role)
	}
	_ = f.users.Create(context.Background(), user)
	return user
}

func testActor(roles ...string) Actor {
	return Actor{ID: uuid.New(), Roles: roles}
}
