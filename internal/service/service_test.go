package service

import (
	"context"
	"math"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mmeshcher/marketplace/internal/model"
	"github.com/mmeshcher/marketplace/internal/repository"
)

const (
	buyerAuth  int64 = 10
	sellerAuth int64 = 20
	seller2    int64 = 30
	otherBuyer int64 = 40

	treasury      int64 = 900
	tokenTreasury int64 = 901

	ttl = time.Minute
)

type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
}

type recordingSink struct {
	mu     sync.Mutex
	events []model.Event
}

func (s *recordingSink) Notify(_ context.Context, events ...model.Event) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, events...)
}

func (s *recordingSink) kinds() []model.EventKind {
	s.mu.Lock()
	defer s.mu.Unlock()
	res := make([]model.EventKind, 0, len(s.events))
	for _, e := range s.events {
		res = append(res, e.Kind)
	}
	return res
}

func (s *recordingSink) reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = nil
}

type stubOracle struct {
	point model.PricePoint
	err   error
	calls int
}

func (o *stubOracle) GetPrice(_ context.Context, feedID string) (model.PricePoint, error) {
	o.calls++
	if o.err != nil {
		return model.PricePoint{}, o.err
	}
	p := o.point
	p.FeedID = feedID
	return p, nil
}

type fixture struct {
	svc    *Service
	repo   *repository.MemoryRepository
	sink   *recordingSink
	clock  *fakeClock
	oracle *stubOracle
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	f := &fixture{
		repo:   repository.NewMemoryRepository(),
		sink:   &recordingSink{},
		clock:  &fakeClock{t: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)},
		oracle: &stubOracle{point: model.PricePoint{Value: 250, Expo: -2}},
	}
	f.svc = NewService(f.repo, f.oracle, f.sink, Config{
		TimeToLock:     ttl,
		NativeDecimals: 9,
		TokenDecimals:  6,
		Treasury:       treasury,
		TokenTreasury:  tokenTreasury,
		PriceFeedID:    "NATIVE/TOKEN",
	}, WithClock(f.clock.Now))

	ctx := context.Background()
	for auth, role := range map[int64]model.AccountType{
		buyerAuth:  model.AccountTypeBuyer,
		otherBuyer: model.AccountTypeBuyer,
		sellerAuth: model.AccountTypeSeller,
		seller2:    model.AccountTypeSeller,
	} {
		_, err := f.svc.CreateUser(ctx, auth, ProfileInput{Username: "u", AccountType: role})
		require.NoError(t, err)
	}
	f.sink.reset()
	return f
}

func (f *fixture) request(t *testing.T) *model.Request {
	t.Helper()
	r, err := f.svc.CreateRequest(context.Background(), buyerAuth, RequestInput{Name: "fix sink"})
	require.NoError(t, err)
	return r
}

func (f *fixture) offer(t *testing.T, seller, requestID, price int64) *model.Offer {
	t.Helper()
	o, err := f.svc.CreateOffer(context.Background(), seller, requestID, OfferInput{Price: price, StoreName: "store"})
	require.NoError(t, err)
	return o
}

func (f *fixture) accepted(t *testing.T, price int64) (*model.Request, *model.Offer) {
	t.Helper()
	r := f.request(t)
	o := f.offer(t, sellerAuth, r.ID, price)
	r, err := f.svc.AcceptOffer(context.Background(), buyerAuth, r.ID, o.ID, nil)
	require.NoError(t, err)
	return r, o
}

func (f *fixture) lifecycle(t *testing.T, requestID int64) model.Lifecycle {
	t.Helper()
	r, err := f.svc.GetRequest(context.Background(), requestID)
	require.NoError(t, err)
	return r.Lifecycle
}

func TestCreateUser(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.svc.CreateUser(ctx, buyerAuth, ProfileInput{Username: "again", AccountType: model.AccountTypeBuyer})
	assert.ErrorIs(t, err, model.ErrUserAlreadyExists)

	_, err = f.svc.CreateUser(ctx, 99, ProfileInput{Username: "x", AccountType: "admin"})
	assert.ErrorIs(t, err, model.ErrInvalidAccountType)

	u, err := f.svc.UpdateUser(ctx, buyerAuth, ProfileInput{Username: "renamed", AccountType: model.AccountTypeSeller})
	require.NoError(t, err)
	assert.Equal(t, "renamed", u.Username)
	assert.Equal(t, model.AccountTypeSeller, u.AccountType)

	_, err = f.svc.GetUser(ctx, 12345)
	assert.ErrorIs(t, err, model.ErrUserNotFound)
}

func TestToggleLocation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	enabled, err := f.svc.GetLocationPreference(ctx, buyerAuth)
	require.NoError(t, err)
	assert.True(t, enabled)

	require.NoError(t, f.svc.ToggleLocation(ctx, buyerAuth, false))

	enabled, err = f.svc.GetLocationPreference(ctx, buyerAuth)
	require.NoError(t, err)
	assert.False(t, enabled)
	assert.Equal(t, []model.EventKind{model.EventLocationToggled}, f.sink.kinds())
}

func TestCreateStore(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.svc.CreateStore(ctx, buyerAuth, StoreInput{Name: "shop"})
	assert.ErrorIs(t, err, model.ErrOnlySellersAllowed)
	assert.Empty(t, f.sink.kinds())

	s, err := f.svc.CreateStore(ctx, sellerAuth, StoreInput{Name: "shop"})
	require.NoError(t, err)
	assert.Equal(t, int64(1), s.ID)
	assert.Equal(t, []model.EventKind{model.EventStoreCreated}, f.sink.kinds())
}

func TestCreateRequest(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.svc.CreateRequest(ctx, sellerAuth, RequestInput{Name: "nope"})
	assert.ErrorIs(t, err, model.ErrOnlyBuyersAllowed)

	first := f.request(t)
	second := f.request(t)

	assert.Equal(t, int64(1), first.ID)
	assert.Equal(t, int64(2), second.ID)
	assert.Equal(t, model.LifecyclePending, first.Lifecycle)
	assert.Empty(t, first.SellerIDs)
	assert.Equal(t, first.CreatedAt, first.UpdatedAt)

	list, err := f.svc.ListRequests(ctx, buyerAuth)
	require.NoError(t, err)
	assert.Len(t, list, 2)
}

func TestCreateOffer(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	r := f.request(t)

	_, err := f.svc.CreateOffer(ctx, buyerAuth, r.ID, OfferInput{Price: 10})
	assert.ErrorIs(t, err, model.ErrOnlySellersAllowed)

	_, err = f.svc.CreateOffer(ctx, sellerAuth, r.ID, OfferInput{Price: 0})
	assert.ErrorIs(t, err, model.ErrInvalidPrice)

	_, err = f.svc.CreateOffer(ctx, sellerAuth, 777, OfferInput{Price: 10})
	assert.ErrorIs(t, err, model.ErrRequestNotFound)

	f.clock.Advance(5 * time.Second)
	o1 := f.offer(t, sellerAuth, r.ID, 100)
	o2 := f.offer(t, seller2, r.ID, 90)

	got, err := f.svc.GetRequest(ctx, r.ID)
	require.NoError(t, err)
	assert.Equal(t, model.LifecycleAcceptedBySeller, got.Lifecycle)
	assert.Equal(t, []int64{o1.SellerID, o2.SellerID}, got.SellerIDs)
	assert.Empty(t, got.OfferIDs)
	assert.Equal(t, r.UpdatedAt, got.UpdatedAt, "offers do not refresh the request timestamp")
	assert.False(t, o1.IsAccepted)

	offers, err := f.svc.ListOffers(ctx, r.ID)
	require.NoError(t, err)
	assert.Len(t, offers, 2)
}

func TestAcceptOffer_SwitchesAcceptance(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	r := f.request(t)
	o1 := f.offer(t, sellerAuth, r.ID, 100)
	o2 := f.offer(t, seller2, r.ID, 90)
	f.sink.reset()

	got, err := f.svc.AcceptOffer(ctx, buyerAuth, r.ID, o1.ID, nil)
	require.NoError(t, err)
	assert.Equal(t, model.LifecycleAcceptedByBuyer, got.Lifecycle)
	assert.Equal(t, o1.SellerID, got.LockedSellerID)
	assert.Equal(t, int64(100), got.SellersPriceQuote)

	f.clock.Advance(10 * time.Second)
	got, err = f.svc.AcceptOffer(ctx, buyerAuth, r.ID, o2.ID, []int64{o1.ID, o2.ID})
	require.NoError(t, err)
	assert.Equal(t, o2.SellerID, got.LockedSellerID)
	assert.Equal(t, int64(90), got.SellersPriceQuote)
	assert.Equal(t, o2.ID, got.AcceptedOfferID)
	assert.Equal(t, []int64{o1.ID, o2.ID}, got.OfferIDs)
	assert.Equal(t, f.clock.Now(), got.UpdatedAt)

	offers, err := f.svc.ListOffers(ctx, r.ID)
	require.NoError(t, err)
	accepted := 0
	for _, o := range offers {
		if o.IsAccepted {
			accepted++
			assert.Equal(t, o2.ID, o.ID)
		}
	}
	assert.Equal(t, 1, accepted)

	assert.Equal(t, []model.EventKind{
		model.EventRequestAccepted, model.EventOfferAccepted,
		model.EventOfferAccepted, model.EventRequestAccepted, model.EventOfferAccepted,
	}, f.sink.kinds())
	invalidated := f.sink.events[2].Payload.(model.OfferAccepted)
	assert.Equal(t, o1.ID, invalidated.OfferID)
	assert.False(t, invalidated.IsAccepted)
}

func TestAcceptOffer_Rejections(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	r := f.request(t)
	o := f.offer(t, sellerAuth, r.ID, 100)

	other, err := f.svc.CreateRequest(ctx, buyerAuth, RequestInput{Name: "other"})
	require.NoError(t, err)
	foreign := f.offer(t, seller2, other.ID, 50)

	tests := []struct {
		name      string
		authority int64
		offerID   int64
		expected  []int64
		want      error
	}{
		{name: "seller cannot accept", authority: sellerAuth, offerID: o.ID, want: model.ErrOnlyBuyersAllowed},
		{name: "not the owner", authority: otherBuyer, offerID: o.ID, want: model.ErrUnauthorizedBuyer},
		{name: "offer of another request", authority: buyerAuth, offerID: foreign.ID, want: model.ErrOfferRequestMismatch},
		{name: "unknown offer", authority: buyerAuth, offerID: 999, want: model.ErrOfferNotFound},
		{name: "wrong competing set", authority: buyerAuth, offerID: o.ID, expected: []int64{1, 2}, want: model.ErrIncorrectNumberOfSellers},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.svc.AcceptOffer(ctx, tt.authority, r.ID, tt.offerID, tt.expected)
			assert.ErrorIs(t, err, tt.want)
		})
	}

	got, err := f.svc.GetRequest(ctx, r.ID)
	require.NoError(t, err)
	assert.Equal(t, model.LifecycleAcceptedBySeller, got.Lifecycle)
	assert.Zero(t, got.LockedSellerID)
	assert.Zero(t, got.AcceptedOfferID)
	assert.Zero(t, got.SellersPriceQuote)
	assert.Empty(t, got.OfferIDs)
	assert.Equal(t, r.UpdatedAt, got.UpdatedAt)

	offers, err := f.svc.ListOffers(ctx, r.ID)
	require.NoError(t, err)
	for _, off := range offers {
		assert.False(t, off.IsAccepted, "offer %d", off.ID)
	}

	_, err = f.svc.AcceptOffer(ctx, buyerAuth, r.ID, o.ID, []int64{o.ID})
	require.NoError(t, err)
	_, err = f.svc.AcceptOffer(ctx, buyerAuth, r.ID, o.ID, nil)
	assert.ErrorIs(t, err, model.ErrOfferAlreadyAccepted)
}

func TestTimeLock(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	r, _ := f.accepted(t, 100)
	o2 := f.offer(t, seller2, r.ID, 80)

	f.clock.Advance(ttl)
	_, err := f.svc.CreateOffer(ctx, seller2, r.ID, OfferInput{Price: 70})
	require.NoError(t, err, "at exactly UpdatedAt+TTL the request is still open")

	f.clock.Advance(time.Second)
	_, err = f.svc.CreateOffer(ctx, seller2, r.ID, OfferInput{Price: 60})
	assert.ErrorIs(t, err, model.ErrRequestLocked)

	_, err = f.svc.AcceptOffer(ctx, buyerAuth, r.ID, o2.ID, nil)
	assert.ErrorIs(t, err, model.ErrRequestLocked)
}

func TestDeleteRequest(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	r := f.request(t)

	assert.ErrorIs(t, f.svc.DeleteRequest(ctx, otherBuyer, r.ID), model.ErrInvalidUser)
	require.NoError(t, f.svc.DeleteRequest(ctx, buyerAuth, r.ID))

	_, err := f.svc.GetRequest(ctx, r.ID)
	assert.ErrorIs(t, err, model.ErrRequestNotFound)

	withOffer := f.request(t)
	f.offer(t, sellerAuth, withOffer.ID, 10)
	assert.ErrorIs(t, f.svc.DeleteRequest(ctx, buyerAuth, withOffer.ID), model.ErrRequestLocked)
}

func TestMarkCompleted(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	pending := f.request(t)
	f.offer(t, sellerAuth, pending.ID, 10)
	_, err := f.svc.MarkCompleted(ctx, buyerAuth, pending.ID)
	assert.ErrorIs(t, err, model.ErrRequestNotAccepted)

	r, o := f.accepted(t, 100)
	_, err = f.svc.MarkCompleted(ctx, otherBuyer, r.ID)
	assert.ErrorIs(t, err, model.ErrInvalidUser)

	f.clock.Advance(ttl)
	_, err = f.svc.MarkCompleted(ctx, buyerAuth, r.ID)
	assert.ErrorIs(t, err, model.ErrRequestNotPaid)

	_, err = f.svc.Deposit(ctx, buyerAuth, model.InstrumentNative, 100)
	require.NoError(t, err)
	_, err = f.svc.PayForRequest(ctx, buyerAuth, r.ID, o.ID, model.InstrumentNative)
	require.NoError(t, err)

	_, err = f.svc.MarkCompleted(ctx, buyerAuth, r.ID)
	assert.ErrorIs(t, err, model.ErrRequestNotLocked)

	f.clock.Advance(ttl)
	done, err := f.svc.MarkCompleted(ctx, buyerAuth, r.ID)
	require.NoError(t, err)
	assert.Equal(t, model.LifecycleCompleted, done.Lifecycle)
	assert.Equal(t, f.clock.Now(), done.UpdatedAt)

	_, err = f.svc.CreateOffer(ctx, seller2, r.ID, OfferInput{Price: 5})
	assert.ErrorIs(t, err, model.ErrRequestLocked)
}

func balance(t *testing.T, svc *Service, account int64, instrument model.Instrument) int64 {
	t.Helper()
	balances, err := svc.GetBalances(context.Background(), account)
	require.NoError(t, err)
	for _, b := range balances {
		if b.Instrument == instrument {
			return b.Amount
		}
	}
	return 0
}

func TestPayForRequest_Native(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	r, o := f.accepted(t, 100)
	_, err := f.svc.Deposit(ctx, buyerAuth, model.InstrumentNative, 150)
	require.NoError(t, err)

	_, err = f.svc.PayForRequest(ctx, buyerAuth, r.ID, o.ID, model.InstrumentNative)
	assert.ErrorIs(t, err, model.ErrRequestNotLocked)

	f.clock.Advance(ttl)
	f.sink.reset()

	p, err := f.svc.PayForRequest(ctx, buyerAuth, r.ID, o.ID, model.InstrumentNative)
	require.NoError(t, err)
	assert.Equal(t, int64(1), p.ID)
	assert.Equal(t, int64(100), p.Amount)
	assert.Equal(t, treasury, p.Recipient)

	assert.Equal(t, int64(50), balance(t, f.svc, buyerAuth, model.InstrumentNative))
	assert.Equal(t, int64(100), balance(t, f.svc, treasury, model.InstrumentNative))

	got, err := f.svc.GetRequest(ctx, r.ID)
	require.NoError(t, err)
	assert.True(t, got.Paid)
	assert.Equal(t, model.LifecyclePaid, got.Lifecycle)
	assert.Equal(t, f.clock.Now(), got.UpdatedAt)

	assert.Equal(t, []model.EventKind{model.EventRequestPaid}, f.sink.kinds())

	payments, err := f.svc.ListPayments(ctx, buyerAuth, r.ID)
	require.NoError(t, err)
	assert.Len(t, payments, 1)

	_, err = f.svc.ListPayments(ctx, otherBuyer, r.ID)
	assert.ErrorIs(t, err, model.ErrInvalidUser)

	f.clock.Advance(ttl)
	_, err = f.svc.PayForRequest(ctx, buyerAuth, r.ID, o.ID, model.InstrumentNative)
	assert.ErrorIs(t, err, model.ErrRequestAlreadyPaid)
	assert.Equal(t, int64(50), balance(t, f.svc, buyerAuth, model.InstrumentNative))
}

func TestPayForRequest_Token(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	r, o := f.accepted(t, 100)
	_, err := f.svc.Deposit(ctx, buyerAuth, model.InstrumentToken, 10_000)
	require.NoError(t, err)
	f.clock.Advance(ttl)

	p, err := f.svc.PayForRequest(ctx, buyerAuth, r.ID, o.ID, model.InstrumentToken)
	require.NoError(t, err)
	assert.Equal(t, int64(2500), p.Amount)
	assert.Equal(t, int64(250), p.PriceValue)
	assert.Equal(t, int32(-2), p.PriceExpo)
	assert.Equal(t, tokenTreasury, p.Recipient)
	assert.Equal(t, int64(7500), balance(t, f.svc, buyerAuth, model.InstrumentToken))
	assert.Equal(t, int64(2500), balance(t, f.svc, tokenTreasury, model.InstrumentToken))
}

func TestPayForRequest_FailureLeavesNoTrace(t *testing.T) {
	tests := []struct {
		name       string
		deposit    int64
		instrument model.Instrument
		oracleErr  error
		want       error
	}{
		{name: "insufficient funds", deposit: 99, instrument: model.InstrumentNative, want: model.ErrInsufficientFunds},
		{name: "stale price", deposit: 10_000, instrument: model.InstrumentToken, oracleErr: model.ErrStalePrice, want: model.ErrStalePrice},
		{name: "oracle down", deposit: 10_000, instrument: model.InstrumentToken, oracleErr: model.ErrPriceUnavailable, want: model.ErrPriceUnavailable},
		{name: "unknown instrument", deposit: 10_000, instrument: "btc", want: model.ErrInvalidCoinPayment},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			ctx := context.Background()
			f.oracle.err = tt.oracleErr

			r, o := f.accepted(t, 100)
			funded := tt.instrument
			if funded != model.InstrumentToken {
				funded = model.InstrumentNative
			}
			_, err := f.svc.Deposit(ctx, buyerAuth, funded, tt.deposit)
			require.NoError(t, err)
			f.clock.Advance(ttl)
			f.sink.reset()

			_, err = f.svc.PayForRequest(ctx, buyerAuth, r.ID, o.ID, tt.instrument)
			assert.ErrorIs(t, err, tt.want)

			got, err := f.svc.GetRequest(ctx, r.ID)
			require.NoError(t, err)
			assert.False(t, got.Paid)
			assert.Equal(t, model.LifecycleAcceptedByBuyer, got.Lifecycle)
			assert.Equal(t, tt.deposit, balance(t, f.svc, buyerAuth, funded))
			assert.Empty(t, f.sink.kinds())

			payments, err := f.svc.ListPayments(ctx, buyerAuth, r.ID)
			require.NoError(t, err)
			assert.Empty(t, payments)
		})
	}
}

func TestPayForRequest_Preconditions(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	r := f.request(t)
	o1 := f.offer(t, sellerAuth, r.ID, 100)
	o2 := f.offer(t, seller2, r.ID, 90)

	_, err := f.svc.PayForRequest(ctx, buyerAuth, r.ID, o1.ID, model.InstrumentNative)
	assert.ErrorIs(t, err, model.ErrRequestNotAccepted)

	_, err = f.svc.AcceptOffer(ctx, buyerAuth, r.ID, o1.ID, nil)
	require.NoError(t, err)
	f.clock.Advance(ttl)

	other := f.request(t)
	foreign := f.offer(t, seller2, other.ID, 10)

	tests := []struct {
		name      string
		authority int64
		offerID   int64
		want      error
	}{
		{name: "not the owner", authority: otherBuyer, offerID: o1.ID, want: model.ErrInvalidUser},
		{name: "offer of another request", authority: buyerAuth, offerID: foreign.ID, want: model.ErrOfferRequestMismatch},
		{name: "offer not accepted", authority: buyerAuth, offerID: o2.ID, want: model.ErrRequestNotAccepted},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.svc.PayForRequest(ctx, tt.authority, r.ID, tt.offerID, model.InstrumentNative)
			assert.ErrorIs(t, err, tt.want)
		})
	}
}

func TestPayForRequest_SellerLinkage(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	r, o := f.accepted(t, 100)

	err := f.repo.InTx(ctx, func(ctx context.Context, tx repository.Tx) error {
		req, err := tx.GetRequestForUpdate(ctx, r.ID)
		if err != nil {
			return err
		}
		req.LockedSellerID = 12345
		return tx.UpdateRequest(ctx, req)
	})
	require.NoError(t, err)

	f.clock.Advance(ttl)
	_, err = f.svc.PayForRequest(ctx, buyerAuth, r.ID, o.ID, model.InstrumentNative)
	assert.ErrorIs(t, err, model.ErrInvalidSeller)
}

func TestDeposit(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.svc.Deposit(ctx, buyerAuth, model.InstrumentNative, 0)
	assert.ErrorIs(t, err, model.ErrInvalidAmount)

	_, err = f.svc.Deposit(ctx, buyerAuth, "btc", 10)
	assert.ErrorIs(t, err, model.ErrInvalidCoinPayment)

	balances, err := f.svc.Deposit(ctx, buyerAuth, model.InstrumentNative, 10)
	require.NoError(t, err)
	assert.Equal(t, []model.Balance{{Instrument: model.InstrumentNative, Amount: 10}}, balances)

	_, err = f.svc.Deposit(ctx, otherBuyer, model.InstrumentNative, math.MaxInt64)
	require.NoError(t, err)
	_, err = f.svc.Deposit(ctx, otherBuyer, model.InstrumentNative, 2)
	assert.ErrorIs(t, err, model.ErrAmountOverflow)
	assert.Equal(t, int64(math.MaxInt64), balance(t, f.svc, otherBuyer, model.InstrumentNative))
}

func TestAcceptOffer_Concurrent(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	r := f.request(t)
	o1 := f.offer(t, sellerAuth, r.ID, 100)
	o2 := f.offer(t, seller2, r.ID, 90)

	const workers = 16
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		offerID := o1.ID
		if i%2 == 1 {
			offerID = o2.ID
		}
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := f.svc.AcceptOffer(ctx, buyerAuth, r.ID, offerID, nil)
			if err != nil {
				assert.ErrorIs(t, err, model.ErrOfferAlreadyAccepted)
			}
		}()
	}
	wg.Wait()

	offers, err := f.svc.ListOffers(ctx, r.ID)
	require.NoError(t, err)

	var accepted []model.Offer
	for _, o := range offers {
		if o.IsAccepted {
			accepted = append(accepted, o)
		}
	}
	require.Len(t, accepted, 1)

	got, err := f.svc.GetRequest(ctx, r.ID)
	require.NoError(t, err)
	assert.Equal(t, model.LifecycleAcceptedByBuyer, got.Lifecycle)
	assert.Equal(t, accepted[0].SellerID, got.LockedSellerID)
	assert.Equal(t, accepted[0].ID, got.AcceptedOfferID)
	assert.Equal(t, accepted[0].Price, got.SellersPriceQuote)
}

func TestPayForRequest_Concurrent(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	r, o := f.accepted(t, 100)
	_, err := f.svc.Deposit(ctx, buyerAuth, model.InstrumentNative, 1_000)
	require.NoError(t, err)
	f.clock.Advance(ttl)
	f.sink.reset()

	const workers = 16
	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		successes int
	)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := f.svc.PayForRequest(ctx, buyerAuth, r.ID, o.ID, model.InstrumentNative)
			if err != nil {
				assert.ErrorIs(t, err, model.ErrRequestAlreadyPaid)
				return
			}
			mu.Lock()
			successes++
			mu.Unlock()
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, successes)
	assert.Equal(t, int64(900), balance(t, f.svc, buyerAuth, model.InstrumentNative))
	assert.Equal(t, int64(100), balance(t, f.svc, treasury, model.InstrumentNative))
	assert.Equal(t, []model.EventKind{model.EventRequestPaid}, f.sink.kinds())

	payments, err := f.svc.ListPayments(ctx, buyerAuth, r.ID)
	require.NoError(t, err)
	assert.Len(t, payments, 1)
}

func TestAuthenticateAccount(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	id, err := f.svc.RegisterAccount(ctx, "alice", "secret")
	require.NoError(t, err)

	_, err = f.svc.RegisterAccount(ctx, "alice", "other")
	assert.ErrorIs(t, err, model.ErrAccountExists)

	got, err := f.svc.AuthenticateAccount(ctx, "alice", "secret")
	require.NoError(t, err)
	assert.Equal(t, id, got)

	_, err = f.svc.AuthenticateAccount(ctx, "alice", "wrong")
	assert.ErrorIs(t, err, model.ErrInvalidCredentials)

	_, err = f.svc.AuthenticateAccount(ctx, "bob", "secret")
	assert.ErrorIs(t, err, model.ErrInvalidCredentials)
}
