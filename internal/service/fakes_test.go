package service

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/Freeeeeet/tour_booking/internal/gateway"
	"github.com/Freeeeeet/tour_booking/internal/model"
	"github.com/Freeeeeet/tour_booking/internal/payment"
)

type bookingStoreFake struct {
	mu         sync.Mutex
	bookings   map[int64]*model.Booking
	ops        []string
	fail       map[string]error
	gets       int
	getHook    func(n int)
	mutateHook func(op string)
}

func newBookingStore(bs ...*model.Booking) *bookingStoreFake {
	f := &bookingStoreFake{
		bookings: make(map[int64]*model.Booking),
		fail:     make(map[string]error),
	}
	for _, b := range bs {
		f.bookings[b.ID] = b
	}
	return f
}

func cloneBooking(b *model.Booking) *model.Booking {
	c := *b
	c.SlotDetails = make([]model.Slot, len(b.SlotDetails))
	for i, s := range b.SlotDetails {
		c.SlotDetails[i] = s.Clone()
	}
	c.BookedProducts = append([]model.BookedProduct(nil), b.BookedProducts...)
	return &c
}

func (f *bookingStoreFake) record(op string) error {
	f.mu.Lock()
	f.ops = append(f.ops, op)
	err := f.fail[op]
	hook := f.mutateHook
	f.mu.Unlock()

	if hook != nil {
		hook(op)
	}
	return err
}

func (f *bookingStoreFake) Ops() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.ops...)
}

func (f *bookingStoreFake) edit(id int64, fn func(b *model.Booking)) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	b, ok := f.bookings[id]
	if !ok {
		return model.ErrNotFound
	}
	fn(b)
	return nil
}

// editIf меняет бронирование только при выполнении условия, как UPDATE ... WHERE в хранилище
func (f *bookingStoreFake) editIf(id int64, allowed func(b *model.Booking) bool, fn func(b *model.Booking)) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	b, ok := f.bookings[id]
	if !ok {
		return model.ErrNotFound
	}
	if !allowed(b) {
		return model.ErrNotAllowed
	}
	fn(b)
	return nil
}

func pendingOnly(b *model.Booking) bool {
	return b.PaymentStatus == model.PaymentStatusPending && !b.IsCancelled()
}

func (f *bookingStoreFake) stored(id int64) *model.Booking {
	f.mu.Lock()
	defer f.mu.Unlock()
	return cloneBooking(f.bookings[id])
}

func (f *bookingStoreFake) GetByID(_ context.Context, id int64) (*model.Booking, error) {
	f.mu.Lock()
	f.gets++
	n := f.gets
	f.ops = append(f.ops, "get")
	err := f.fail["get"]
	var b *model.Booking
	if orig, ok := f.bookings[id]; ok {
		b = cloneBooking(orig)
	}
	hook := f.getHook
	f.mu.Unlock()

	if hook != nil {
		hook(n)
	}
	if err != nil {
		return nil, err
	}
	return b, nil
}

func (f *bookingStoreFake) GetByManageToken(_ context.Context, token string) (*model.Booking, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.ops = append(f.ops, "get_by_token")
	for _, b := range f.bookings {
		if b.ManageToken == token {
			return cloneBooking(b), nil
		}
	}
	return nil, nil
}

func (f *bookingStoreFake) UpdateSlots(_ context.Context, id int64, slots []model.Slot, amountPaid float64) error {
	if err := f.record("update_slots"); err != nil {
		return err
	}
	return f.editIf(id, pendingOnly, func(b *model.Booking) {
		b.SlotDetails = slots
		b.Slots = len(slots)
		b.AmountPaid = amountPaid
	})
}

func (f *bookingStoreFake) UpdateSlotCount(_ context.Context, id int64, count int, slots []model.Slot, amountPaid float64) error {
	if err := f.record("update_slot_count"); err != nil {
		return err
	}
	return f.editIf(id, pendingOnly, func(b *model.Booking) {
		b.SlotDetails = slots
		b.Slots = count
		b.AmountPaid = amountPaid
	})
}

func (f *bookingStoreFake) UpdateProducts(_ context.Context, id int64, products []model.BookedProduct, amountPaid float64) error {
	if err := f.record("update_products"); err != nil {
		return err
	}
	return f.editIf(id, pendingOnly, func(b *model.Booking) {
		b.BookedProducts = products
		b.AmountPaid = amountPaid
	})
}

func (f *bookingStoreFake) UpdatePersonalInfo(_ context.Context, id int64, info model.PersonalInfo) error {
	if err := f.record("update_personal_info"); err != nil {
		return err
	}
	return f.edit(id, func(b *model.Booking) {
		b.CustomerName = info.Name
		b.CustomerEmail = info.Email
		b.CustomerPhone = info.Phone
	})
}

func (f *bookingStoreFake) Reschedule(_ context.Context, id int64, date, startTime string) error {
	if err := f.record("reschedule"); err != nil {
		return err
	}
	return f.editIf(id, func(b *model.Booking) bool {
		return b.CanReschedule() && !b.IsCancelled()
	}, func(b *model.Booking) {
		b.Date = date
		b.Time = startTime
		b.BookingStatus = model.BookingStatusRescheduled
	})
}

func (f *bookingStoreFake) MarkCancelled(_ context.Context, id int64, status model.PaymentStatus) error {
	if err := f.record("mark_cancelled"); err != nil {
		return err
	}
	return f.edit(id, func(b *model.Booking) {
		b.BookingStatus = model.BookingStatusCancelled
		b.PaymentStatus = status
	})
}

func (f *bookingStoreFake) ListByPaymentStatus(_ context.Context, status model.PaymentStatus) ([]*model.Booking, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*model.Booking
	for _, b := range f.bookings {
		if b.PaymentStatus == status {
			out = append(out, cloneBooking(b))
		}
	}
	return out, nil
}

type tourStoreFake struct {
	mu              sync.Mutex
	tours           map[int64]*model.Tour
	committed       map[string]int
	scheduleUpdates int
	dateUpdates     int
}

func newTourStore(ts ...*model.Tour) *tourStoreFake {
	f := &tourStoreFake{tours: make(map[int64]*model.Tour), committed: make(map[string]int)}
	for _, t := range ts {
		f.tours[t.ID] = t
	}
	return f
}

func (f *tourStoreFake) GetByID(_ context.Context, id int64) (*model.Tour, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	t, ok := f.tours[id]
	if !ok {
		return nil, nil
	}
	c := *t
	c.Schedule = t.Schedule.Clone()
	c.DisabledDates = append([]string(nil), t.DisabledDates...)
	return &c, nil
}

func (f *tourStoreFake) CommittedSlots(_ context.Context, _ int64, date, startTime string) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.committed[date+" "+startTime], nil
}

func (f *tourStoreFake) UpdateSchedule(_ context.Context, id int64, schedule model.TourSchedule) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.scheduleUpdates++
	f.tours[id].Schedule = schedule
	return nil
}

func (f *tourStoreFake) UpdateDisabledDates(_ context.Context, id int64, dates []string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.dateUpdates++
	f.tours[id].DisabledDates = dates
	return nil
}

type additionalFake struct {
	list []model.AdditionalBooking
}

func (f *additionalFake) ListByBooking(context.Context, int64, string) ([]model.AdditionalBooking, error) {
	return f.list, nil
}

type syncCall struct {
	bookingID int64
	update    bool
	slots     int
}

type syncerFake struct {
	mu    sync.Mutex
	store *bookingStoreFake
	calls []syncCall
	err   error
}

func (f *syncerFake) Sync(_ context.Context, b *model.Booking, _ *model.Tour, update bool) (payment.Session, error) {
	_ = f.store.record("sync")

	f.mu.Lock()
	f.calls = append(f.calls, syncCall{bookingID: b.ID, update: update, slots: len(b.SlotDetails)})
	n := len(f.calls)
	err := f.err
	f.mu.Unlock()

	if err != nil {
		return payment.Session{}, model.RemoteFailure{Op: "create payment session", Err: err}
	}

	url := fmt.Sprintf("https://pay.example/s/%d", n)
	_ = f.store.edit(b.ID, func(sb *model.Booking) {
		sb.PaymentLink = url
		sb.PaymentStatus = model.PaymentStatusPending
	})
	return payment.Session{CheckoutURL: url}, nil
}

func (f *syncerFake) Calls() []syncCall {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]syncCall(nil), f.calls...)
}

type cancelGatewayFake struct {
	mu       sync.Mutex
	requests []gateway.CancelRequest
	result   gateway.CancelResult
	err      error
}

func (f *cancelGatewayFake) CancelBooking(_ context.Context, req gateway.CancelRequest) (gateway.CancelResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.requests = append(f.requests, req)
	if f.err != nil {
		return gateway.CancelResult{}, f.err
	}
	return f.result, nil
}

type notifierFake struct {
	mu       sync.Mutex
	outcomes []CancelOutcome
}

func (f *notifierFake) NotifyCancellation(_ context.Context, outcome CancelOutcome) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.outcomes = append(f.outcomes, outcome)
}

// 2026-10-13 и 2026-10-20 вторники
func testTour() *model.Tour {
	return &model.Tour{
		ID:       10,
		Name:     "Old town walk",
		Price:    40,
		Capacity: 10,
		Schedule: model.TourSchedule{time.Tuesday: {"09:00", "13:00"}},
		IsActive: true,
	}
}

func pendingBooking() *model.Booking {
	return &model.Booking{
		ID:            1,
		TourID:        10,
		CustomerName:  "Ann",
		CustomerEmail: "ann@example.com",
		Date:          "2026-10-13",
		Time:          "09:00",
		Slots:         2,
		SlotDetails: []model.Slot{
			{Type: "Adult", Price: 100, Values: map[string]string{"name": "Ann"}},
			{Type: "Child", Price: 50, Values: map[string]string{"name": "Bob"}},
		},
		CustomSlotTypes:  []model.SlotType{{Name: "Adult", Price: 100}, {Name: "Child", Price: 50}},
		CustomSlotFields: []model.SlotField{{Name: "name", Type: "text", Required: true, Label: "Name"}},
		PaymentStatus:    model.PaymentStatusPending,
		BookingStatus:    model.BookingStatusConfirmed,
		AmountPaid:       150,
		PaymentLink:      "https://pay.example/s/0",
		ManageToken:      "tok-1",
	}
}
