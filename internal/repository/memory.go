package repository

import (
	"context"
	"fmt"
	"maps"
	"math"
	"slices"
	"sort"
	"sync"
	"time"

	"github.com/mmeshcher/marketplace/internal/model"
)

// MemoryRepository хранит записи в памяти процесса. Транзакции выполняются строго
// последовательно над копией состояния, которая заменяет текущее только при успехе.
type MemoryRepository struct {
	mu       sync.Mutex
	accounts map[string]model.Account
	nextAcc  int64
	state    *memState
}

type walletKey struct {
	account    int64
	instrument model.Instrument
}

type memState struct {
	counters map[model.Counter]int64
	users    map[int64]model.User
	stores   map[int64]model.Store
	requests map[int64]model.Request
	offers   map[int64]model.Offer
	payments map[int64]model.RequestPayment
	wallets  map[walletKey]int64
}

// NewMemoryRepository создаёт пустое хранилище со счётчиками, начинающимися с 1.
func NewMemoryRepository() *MemoryRepository {
	st := &memState{
		counters: make(map[model.Counter]int64, len(Counters)),
		users:    make(map[int64]model.User),
		stores:   make(map[int64]model.Store),
		requests: make(map[int64]model.Request),
		offers:   make(map[int64]model.Offer),
		payments: make(map[int64]model.RequestPayment),
		wallets:  make(map[walletKey]int64),
	}
	for _, c := range Counters {
		st.counters[c] = 1
	}

	return &MemoryRepository{
		accounts: make(map[string]model.Account),
		nextAcc:  1,
		state:    st,
	}
}

// Записи хранятся по значению, а срезы внутри них никогда не изменяются на месте,
// поэтому поверхностной копии map достаточно для изоляции.
func (s *memState) clone() *memState {
	return &memState{
		counters: maps.Clone(s.counters),
		users:    maps.Clone(s.users),
		stores:   maps.Clone(s.stores),
		requests: maps.Clone(s.requests),
		offers:   maps.Clone(s.offers),
		payments: maps.Clone(s.payments),
		wallets:  maps.Clone(s.wallets),
	}
}

// Close ничего не делает.
func (r *MemoryRepository) Close() error {
	return nil
}

// CreateAccount создаёт учётную запись и возвращает её идентификатор.
func (r *MemoryRepository) CreateAccount(_ context.Context, login string, passwordHash []byte) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.accounts[login]; ok {
		return 0, fmt.Errorf("%w: %s", model.ErrAccountExists, login)
	}

	a := model.Account{
		ID:           r.nextAcc,
		Login:        login,
		PasswordHash: slices.Clone(passwordHash),
		CreatedAt:    time.Now(),
	}
	r.accounts[login] = a
	r.nextAcc++

	return a.ID, nil
}

// GetAccountByLogin возвращает учётную запись по логину.
func (r *MemoryRepository) GetAccountByLogin(_ context.Context, login string) (*model.Account, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	a, ok := r.accounts[login]
	if !ok {
		return nil, model.ErrAccountNotFound
	}
	return &a, nil
}

// InTx выполняет fn над копией состояния и публикует её, если fn завершилась без ошибки.
func (r *MemoryRepository) InTx(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return err
	}

	staged := r.state.clone()
	if err := fn(ctx, &memTx{st: staged}); err != nil {
		return err
	}

	r.state = staged
	return nil
}

type memTx struct {
	st *memState
}

func (t *memTx) NextID(_ context.Context, counter model.Counter) (int64, error) {
	id, ok := t.st.counters[counter]
	if !ok {
		return 0, fmt.Errorf("next %s id: unknown counter", counter)
	}
	t.st.counters[counter] = id + 1
	return id, nil
}

func (t *memTx) GetUserByAuthority(_ context.Context, authority int64) (*model.User, error) {
	u, ok := t.st.users[authority]
	if !ok {
		return nil, model.ErrUserNotFound
	}
	return &u, nil
}

func (t *memTx) CreateUser(_ context.Context, u *model.User) error {
	if _, ok := t.st.users[u.Authority]; ok {
		return model.ErrUserAlreadyExists
	}
	t.st.users[u.Authority] = *u
	return nil
}

func (t *memTx) UpdateUser(_ context.Context, u *model.User) error {
	if _, ok := t.st.users[u.Authority]; !ok {
		return model.ErrUserNotFound
	}
	t.st.users[u.Authority] = *u
	return nil
}

func (t *memTx) CreateStore(_ context.Context, s *model.Store) error {
	t.st.stores[s.ID] = *s
	return nil
}

func cloneRequest(r model.Request) *model.Request {
	r.Images = slices.Clone(r.Images)
	r.SellerIDs = slices.Clone(r.SellerIDs)
	r.OfferIDs = slices.Clone(r.OfferIDs)
	return &r
}

func (t *memTx) GetRequest(_ context.Context, id int64) (*model.Request, error) {
	r, ok := t.st.requests[id]
	if !ok {
		return nil, model.ErrRequestNotFound
	}
	return cloneRequest(r), nil
}

func (t *memTx) GetRequestForUpdate(ctx context.Context, id int64) (*model.Request, error) {
	return t.GetRequest(ctx, id)
}

func (t *memTx) ListRequestsByAuthority(_ context.Context, authority int64) ([]model.Request, error) {
	var res []model.Request
	for _, r := range t.st.requests {
		if r.Authority == authority {
			res = append(res, *cloneRequest(r))
		}
	}
	sort.Slice(res, func(i, j int) bool { return res[i].ID > res[j].ID })
	return res, nil
}

func (t *memTx) CreateRequest(_ context.Context, r *model.Request) error {
	if _, ok := t.st.requests[r.ID]; ok {
		return fmt.Errorf("insert request %d: duplicate id", r.ID)
	}
	t.st.requests[r.ID] = *cloneRequest(*r)
	return nil
}

func (t *memTx) UpdateRequest(_ context.Context, r *model.Request) error {
	if _, ok := t.st.requests[r.ID]; !ok {
		return model.ErrRequestNotFound
	}
	t.st.requests[r.ID] = *cloneRequest(*r)
	return nil
}

func (t *memTx) DeleteRequest(_ context.Context, id int64) error {
	if _, ok := t.st.requests[id]; !ok {
		return model.ErrRequestNotFound
	}
	delete(t.st.requests, id)
	for oid, o := range t.st.offers {
		if o.RequestID == id {
			delete(t.st.offers, oid)
		}
	}
	return nil
}

func cloneOffer(o model.Offer) *model.Offer {
	o.Images = slices.Clone(o.Images)
	return &o
}

func (t *memTx) GetOffer(_ context.Context, id int64) (*model.Offer, error) {
	o, ok := t.st.offers[id]
	if !ok {
		return nil, model.ErrOfferNotFound
	}
	return cloneOffer(o), nil
}

func (t *memTx) ListOffersByRequest(_ context.Context, requestID int64) ([]model.Offer, error) {
	var res []model.Offer
	for _, o := range t.st.offers {
		if o.RequestID == requestID {
			res = append(res, *cloneOffer(o))
		}
	}
	sort.Slice(res, func(i, j int) bool { return res[i].ID < res[j].ID })
	return res, nil
}

func (t *memTx) CreateOffer(_ context.Context, o *model.Offer) error {
	if _, ok := t.st.offers[o.ID]; ok {
		return fmt.Errorf("insert offer %d: duplicate id", o.ID)
	}
	t.st.offers[o.ID] = *cloneOffer(*o)
	return nil
}

func (t *memTx) UpdateOffers(_ context.Context, offers ...*model.Offer) error {
	for _, o := range offers {
		if _, ok := t.st.offers[o.ID]; !ok {
			return model.ErrOfferNotFound
		}
		t.st.offers[o.ID] = *cloneOffer(*o)
	}
	return nil
}

func (t *memTx) CreatePayment(_ context.Context, p *model.RequestPayment) error {
	for _, existing := range t.st.payments {
		if existing.RequestID == p.RequestID {
			return model.ErrRequestAlreadyPaid
		}
	}
	t.st.payments[p.ID] = *p
	return nil
}

func (t *memTx) ListPaymentsByRequest(_ context.Context, requestID int64) ([]model.RequestPayment, error) {
	var res []model.RequestPayment
	for _, p := range t.st.payments {
		if p.RequestID == requestID {
			res = append(res, p)
		}
	}
	sort.Slice(res, func(i, j int) bool { return res[i].ID < res[j].ID })
	return res, nil
}

func (t *memTx) Credit(_ context.Context, account int64, instrument model.Instrument, amount int64) error {
	key := walletKey{account, instrument}
	if t.st.wallets[key] > math.MaxInt64-amount {
		return model.ErrAmountOverflow
	}
	t.st.wallets[key] += amount
	return nil
}

func (t *memTx) Debit(_ context.Context, account int64, instrument model.Instrument, amount int64) error {
	key := walletKey{account, instrument}
	if t.st.wallets[key] < amount {
		return model.ErrInsufficientFunds
	}
	t.st.wallets[key] -= amount
	return nil
}

func (t *memTx) GetBalances(_ context.Context, account int64) ([]model.Balance, error) {
	var res []model.Balance
	for k, amount := range t.st.wallets {
		if k.account == account {
			res = append(res, model.Balance{Instrument: k.instrument, Amount: amount})
		}
	}
	sort.Slice(res, func(i, j int) bool { return res[i].Instrument < res[j].Instrument })
	return res, nil
}
