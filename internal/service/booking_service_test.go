package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
	"go.uber.org/zap"

	"github.com/Freeeeeet/tour_booking/internal/model"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

type bookingFixture struct {
	store  *bookingStoreFake
	tours  *tourStoreFake
	extra  *additionalFake
	syncer *syncerFake
	svc    *BookingService
}

func newFixture(bs ...*model.Booking) *bookingFixture {
	store := newBookingStore(bs...)
	tours := newTourStore(testTour())
	extra := &additionalFake{}
	syncer := &syncerFake{store: store}
	return &bookingFixture{
		store:  store,
		tours:  tours,
		extra:  extra,
		syncer: syncer,
		svc:    NewBookingService(store, tours, extra, syncer, zap.NewNop()),
	}
}

func TestUpdateSlots_FullPipeline(t *testing.T) {
	f := newFixture(pendingBooking())

	got, err := f.svc.UpdateSlots(context.Background(), 1, []model.Slot{
		{Type: "Adult", Values: map[string]string{"name": "Ann"}},
		{Type: "Adult", Values: map[string]string{"name": "Cid"}},
		{Type: "Child", Values: map[string]string{"name": "Bob"}},
	})
	require.NoError(t, err)

	assert.Equal(t, []string{"get", "update_slots", "get", "sync", "get"}, f.store.Ops())
	assert.Equal(t, 3, got.Slots)
	assert.Equal(t, 250.0, got.AmountPaid)
	assert.Equal(t, 100.0, got.SlotDetails[1].Price)
	assert.Equal(t, "https://pay.example/s/1", got.PaymentLink)

	calls := f.syncer.Calls()
	require.Len(t, calls, 1)
	assert.True(t, calls[0].update)
	assert.Equal(t, 3, calls[0].slots)
	assert.Equal(t, PhaseIdle, f.svc.Phase(1))
}

func TestUpdateSlots_ValidationFailureMakesNoRemoteCall(t *testing.T) {
	f := newFixture(pendingBooking())

	_, err := f.svc.UpdateSlots(context.Background(), 1, []model.Slot{
		{Type: "Adult", Values: map[string]string{"name": "Ann"}},
		{Type: "Adult"},
	})
	require.Error(t, err)

	var verr model.ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "slot_details[1].name", verr.Fields[0].Field)
	assert.Equal(t, []string{"get"}, f.store.Ops())
	assert.Empty(t, f.syncer.Calls())
}

func TestUpdateSlots_RemovedTierIsRejected(t *testing.T) {
	f := newFixture(pendingBooking())

	_, err := f.svc.UpdateSlots(context.Background(), 1, []model.Slot{
		{Type: "Senior", Values: map[string]string{"name": "Ann"}},
	})
	assert.True(t, model.IsValidation(err))
	assert.NotContains(t, f.store.Ops(), "update_slots")
}

func TestUpdateSlots_GatedAfterPayment(t *testing.T) {
	b := pendingBooking()
	b.PaymentStatus = model.PaymentStatusPaid
	f := newFixture(b)

	_, err := f.svc.UpdateSlots(context.Background(), 1, b.SlotDetails)
	assert.ErrorIs(t, err, model.ErrNotAllowed)
	assert.Equal(t, []string{"get"}, f.store.Ops())
}

func TestUpdateSlots_PaidAfterProjectionLoaded(t *testing.T) {
	f := newFixture(pendingBooking())

	cached, err := f.svc.Get(context.Background(), 1)
	require.NoError(t, err)
	require.Equal(t, model.PaymentStatusPending, cached.PaymentStatus)

	// оплата пришла после загрузки проекции
	require.NoError(t, f.store.edit(1, func(b *model.Booking) {
		b.PaymentStatus = model.PaymentStatusPaid
		b.ChargeID = "ch_1"
	}))

	_, err = f.svc.UpdateSlots(context.Background(), 1, []model.Slot{
		{Type: "Adult", Values: map[string]string{"name": "Ann"}},
	})
	assert.ErrorIs(t, err, model.ErrNotAllowed)
	assert.Equal(t, []string{"get", "get"}, f.store.Ops())
	assert.Empty(t, f.syncer.Calls())

	stored := f.store.stored(1)
	assert.Equal(t, model.PaymentStatusPaid, stored.PaymentStatus)
	assert.Equal(t, 2, stored.Slots)
	assert.Equal(t, 150.0, stored.AmountPaid)
}

func TestUpdateProducts_PaidBetweenValidationAndMutation(t *testing.T) {
	f := newFixture(pendingBooking())
	f.store.getHook = func(n int) {
		if n == 1 {
			_ = f.store.edit(1, func(b *model.Booking) { b.PaymentStatus = model.PaymentStatusPaid })
		}
	}

	got, err := f.svc.UpdateProducts(context.Background(), 1, []model.BookedProduct{
		{ID: "photo", Name: "Photo pack", Quantity: 1, UnitPrice: 25},
	})
	assert.Nil(t, got)
	assert.ErrorIs(t, err, model.ErrNotAllowed)
	assert.False(t, model.IsRemote(err))
	assert.Equal(t, []string{"get", "update_products"}, f.store.Ops())
	assert.Empty(t, f.syncer.Calls())

	stored := f.store.stored(1)
	assert.Equal(t, model.PaymentStatusPaid, stored.PaymentStatus)
	assert.Empty(t, stored.BookedProducts)
}

func TestUpdateSlots_MutationFailureSkipsResync(t *testing.T) {
	f := newFixture(pendingBooking())
	f.store.fail["update_slots"] = errors.New("db down")

	got, err := f.svc.UpdateSlots(context.Background(), 1, pendingBooking().SlotDetails)
	require.Error(t, err)
	assert.Nil(t, got)
	assert.True(t, model.IsRemote(err))
	assert.Equal(t, []string{"get", "update_slots"}, f.store.Ops())
	assert.Empty(t, f.syncer.Calls())
}

func TestUpdateSlots_ResyncFailureKeepsCommittedMutation(t *testing.T) {
	f := newFixture(pendingBooking())
	f.syncer.err = errors.New("gateway unavailable")

	slots := []model.Slot{{Type: "Child", Values: map[string]string{"name": "Bob"}}}
	got, err := f.svc.UpdateSlots(context.Background(), 1, slots)
	require.Error(t, err)
	assert.True(t, IsResync(err))

	var rerr *ResyncError
	require.ErrorAs(t, err, &rerr)
	assert.Equal(t, int64(1), rerr.BookingID)

	// изменение уже сохранено и проекция обновлена
	require.NotNil(t, got)
	assert.Equal(t, 1, got.Slots)
	assert.Equal(t, 50.0, got.AmountPaid)
	assert.Equal(t, "https://pay.example/s/0", got.PaymentLink)
	assert.Equal(t, []string{"get", "update_slots", "get", "sync", "get"}, f.store.Ops())

	// ручной повтор
	f.syncer.err = nil
	got, err = f.svc.ResyncPayment(context.Background(), 1)
	require.NoError(t, err)
	assert.Equal(t, "https://pay.example/s/2", got.PaymentLink)
}

func TestUpdateSlots_NoPaymentSessionNoSync(t *testing.T) {
	b := pendingBooking()
	b.PaymentLink = ""
	f := newFixture(b)

	_, err := f.svc.UpdateSlots(context.Background(), 1, b.SlotDetails)
	require.NoError(t, err)
	assert.Equal(t, []string{"get", "update_slots", "get"}, f.store.Ops())
	assert.Empty(t, f.syncer.Calls())
}

func TestUpdateSlotCount_GrowsWithDefaultTier(t *testing.T) {
	f := newFixture(pendingBooking())

	got, err := f.svc.UpdateSlotCount(context.Background(), 1, 3)
	require.NoError(t, err)
	require.Len(t, got.SlotDetails, 3)
	assert.Equal(t, "Ann", got.SlotDetails[0].Value("name"))
	assert.Equal(t, "Adult", got.SlotDetails[2].Type)
	assert.Equal(t, 250.0, got.AmountPaid)

	got, err = f.svc.UpdateSlotCount(context.Background(), 1, 1)
	require.NoError(t, err)
	require.Len(t, got.SlotDetails, 1)
	assert.Equal(t, "Ann", got.SlotDetails[0].Value("name"))

	_, err = f.svc.UpdateSlotCount(context.Background(), 1, 0)
	assert.True(t, model.IsValidation(err))
}

func TestUpdateProducts_ScenarioA(t *testing.T) {
	b := pendingBooking()
	b.CustomSlotTypes = nil
	b.CustomSlotFields = nil
	b.PaymentLink = ""
	b.Slots = 3
	b.SlotDetails = []model.Slot{{}, {}, {}}
	f := newFixture(b)
	f.tours.tours[10].Price = 50

	got, err := f.svc.UpdateProducts(context.Background(), 1, []model.BookedProduct{
		{ID: "water", Name: "Water", Quantity: 2, UnitPrice: 10},
		{ID: "map", Name: "Map", Quantity: 1, UnitPrice: 5},
	})
	require.NoError(t, err)
	assert.Equal(t, 175.0, got.AmountPaid)
	assert.Len(t, got.BookedProducts, 2)
}

func TestUpdateProducts_Invalid(t *testing.T) {
	f := newFixture(pendingBooking())

	_, err := f.svc.UpdateProducts(context.Background(), 1, []model.BookedProduct{
		{ID: "water", Quantity: 0, UnitPrice: 1},
	})
	assert.True(t, model.IsValidation(err))
	assert.NotContains(t, f.store.Ops(), "update_products")
}

func TestUpdatePersonalInfo(t *testing.T) {
	b := pendingBooking()
	b.PaymentStatus = model.PaymentStatusPaid
	b.PaymentLink = ""
	f := newFixture(b)

	_, err := f.svc.UpdatePersonalInfo(context.Background(), 1, model.PersonalInfo{Name: "Ann", Email: "not-an-email"})
	assert.True(t, model.IsValidation(err))

	got, err := f.svc.UpdatePersonalInfo(context.Background(), 1, model.PersonalInfo{
		Name:  " Ann Lee ",
		Email: "ann.lee@example.com",
		Phone: "+1 555 0100",
	})
	require.NoError(t, err)
	assert.Equal(t, "Ann Lee", got.CustomerName)
	assert.Equal(t, "ann.lee@example.com", got.CustomerEmail)
}

func TestReschedule(t *testing.T) {
	t.Run("inactive weekday", func(t *testing.T) {
		f := newFixture(pendingBooking())
		_, err := f.svc.Reschedule(context.Background(), 1, "2026-10-12", "09:00")
		assert.True(t, model.IsValidation(err))
		assert.Equal(t, []string{"get"}, f.store.Ops())
	})

	t.Run("time not in schedule", func(t *testing.T) {
		f := newFixture(pendingBooking())
		_, err := f.svc.Reschedule(context.Background(), 1, "2026-10-20", "10:00")
		assert.True(t, model.IsValidation(err))
	})

	t.Run("capacity", func(t *testing.T) {
		f := newFixture(pendingBooking())
		f.tours.committed["2026-10-20 13:00"] = 9

		_, err := f.svc.Reschedule(context.Background(), 1, "2026-10-20", "13:00")
		assert.True(t, model.IsCapacityConflict(err))
		assert.NotContains(t, f.store.Ops(), "reschedule")
	})

	t.Run("same slot counts own seats", func(t *testing.T) {
		f := newFixture(pendingBooking())
		f.tours.committed["2026-10-13 09:00"] = 10

		_, err := f.svc.Reschedule(context.Background(), 1, "2026-10-13", "09:00")
		require.NoError(t, err)
	})

	t.Run("additional bookings move too", func(t *testing.T) {
		f := newFixture(pendingBooking())
		f.extra.list = []model.AdditionalBooking{{ID: "a", Slots: 3}, {ID: "a", Slots: 3}}
		f.tours.committed["2026-10-20 13:00"] = 6

		_, err := f.svc.Reschedule(context.Background(), 1, "2026-10-20", "13:00")
		var conflict model.CapacityConflict
		require.ErrorAs(t, err, &conflict)
		assert.Equal(t, 5, conflict.Requested)
		assert.Equal(t, 4, conflict.Remaining)
		assert.NotContains(t, f.store.Ops(), "reschedule")
	})

	t.Run("paid booking keeps payment status", func(t *testing.T) {
		b := pendingBooking()
		b.PaymentStatus = model.PaymentStatusPaid
		b.ChargeID = "ch_1"
		f := newFixture(b)

		got, err := f.svc.Reschedule(context.Background(), 1, "2026-10-20", "13:00")
		require.NoError(t, err)
		assert.Equal(t, "2026-10-20", got.Date)
		assert.Equal(t, model.PaymentStatusPaid, got.PaymentStatus)
		assert.Empty(t, f.syncer.Calls())
		assert.NotContains(t, f.store.Ops(), "sync")
	})

	t.Run("refunding", func(t *testing.T) {
		b := pendingBooking()
		b.PaymentStatus = model.PaymentStatusRefunding
		f := newFixture(b)

		_, err := f.svc.Reschedule(context.Background(), 1, "2026-10-20", "13:00")
		assert.ErrorIs(t, err, model.ErrNotAllowed)
	})

	t.Run("success", func(t *testing.T) {
		f := newFixture(pendingBooking())

		got, err := f.svc.Reschedule(context.Background(), 1, "2026-10-20", "13:00")
		require.NoError(t, err)
		assert.Equal(t, "2026-10-20", got.Date)
		assert.Equal(t, "13:00", got.Time)
		assert.Equal(t, model.BookingStatusRescheduled, got.BookingStatus)
		assert.Equal(t, []string{"get", "reschedule", "get", "sync", "get"}, f.store.Ops())
	})
}

func TestRefresh_DiscardsStaleResponse(t *testing.T) {
	f := newFixture(pendingBooking())

	entered := make(chan struct{})
	release := make(chan struct{})
	f.store.getHook = func(n int) {
		if n == 1 {
			close(entered)
			<-release
		}
	}

	var (
		wg       sync.WaitGroup
		staleErr error
	)
	wg.Add(1)
	go func() {
		defer wg.Done()
		_, staleErr = f.svc.Refresh(context.Background(), 1)
	}()

	<-entered
	require.NoError(t, f.store.edit(1, func(b *model.Booking) { b.PaymentStatus = model.PaymentStatusPaid }))

	fresh, err := f.svc.Refresh(context.Background(), 1)
	require.NoError(t, err)
	assert.Equal(t, model.PaymentStatusPaid, fresh.PaymentStatus)

	close(release)
	wg.Wait()

	assert.ErrorIs(t, staleErr, model.ErrStaleResponse)
	got, err := f.svc.Get(context.Background(), 1)
	require.NoError(t, err)
	assert.Equal(t, model.PaymentStatusPaid, got.PaymentStatus)
}

func TestPhase_ReportsPendingStep(t *testing.T) {
	b := pendingBooking()
	b.PaymentLink = ""
	f := newFixture(b)

	entered := make(chan struct{})
	release := make(chan struct{})
	f.store.mutateHook = func(op string) {
		if op == "update_products" {
			close(entered)
			<-release
		}
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		_, err := f.svc.UpdateProducts(ctx, 1, nil)
		done <- err
	}()

	<-entered
	assert.Equal(t, PhaseMutating, f.svc.Phase(1))

	// отмена вызывающего не прерывает начатое изменение
	cancel()
	close(release)

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("pipeline did not finish")
	}
	assert.Equal(t, PhaseIdle, f.svc.Phase(1))
	assert.Contains(t, f.store.Ops(), "update_products")
}

func TestPipelines_SameBookingAreSequential(t *testing.T) {
	b := pendingBooking()
	b.PaymentLink = ""
	f := newFixture(b)

	var wg sync.WaitGroup
	for i := 1; i <= 5; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _ = f.svc.UpdateSlotCount(context.Background(), 1, i)
		}()
	}
	wg.Wait()

	ops := f.store.Ops()
	// после первой загрузки каждое изменение сразу сопровождается обновлением
	for i, op := range ops {
		if op == "update_slot_count" {
			require.Less(t, i+1, len(ops))
			assert.Equal(t, "get", ops[i+1])
		}
	}
	stored := f.store.stored(1)
	assert.Equal(t, stored.Slots, len(stored.SlotDetails))
}

func TestGetByManageToken(t *testing.T) {
	f := newFixture(pendingBooking())

	got, err := f.svc.GetByManageToken(context.Background(), "tok-1")
	require.NoError(t, err)
	assert.Equal(t, int64(1), got.ID)

	_, err = f.svc.GetByManageToken(context.Background(), "missing")
	assert.ErrorIs(t, err, model.ErrNotFound)

	_, err = f.svc.GetByManageToken(context.Background(), " ")
	assert.True(t, model.IsValidation(err))
}

func TestAdditionalBookings_Deduplicated(t *testing.T) {
	f := newFixture(pendingBooking())
	f.extra.list = []model.AdditionalBooking{
		{ID: "a", Slots: 1},
		{ID: "b", Slots: 2},
		{ID: "a", Slots: 1},
	}

	list, err := f.svc.AdditionalBookings(context.Background(), 1)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "a", list[0].ID)
	assert.Equal(t, "b", list[1].ID)
}

func TestQuote(t *testing.T) {
	f := newFixture(pendingBooking())

	q, err := f.svc.Quote(context.Background(), 1)
	require.NoError(t, err)
	assert.Equal(t, 150.0, q.Total)
}
