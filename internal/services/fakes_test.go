package services

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/joshua-takyi/repairhub/internal/models"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

// memStore implements every repository interface in memory.
type memStore struct {
	mu            sync.Mutex
	users         map[primitive.ObjectID]*models.User
	techs         map[primitive.ObjectID]*models.Technician
	admins        map[primitive.ObjectID]*models.Admin
	bookings      map[primitive.ObjectID]*models.Booking
	services      map[primitive.ObjectID]*models.Service
	otps          []*models.OTP
	notifications []*models.Notification
	ratings       []*models.Rating
}

func newMemStore() *memStore {
	return &memStore{
		users:    make(map[primitive.ObjectID]*models.User),
		techs:    make(map[primitive.ObjectID]*models.Technician),
		admins:   make(map[primitive.ObjectID]*models.Admin),
		bookings: make(map[primitive.ObjectID]*models.Booking),
		services: make(map[primitive.ObjectID]*models.Service),
	}
}

func paginate[T any](items []T, page models.Page) []T {
	if page.Limit <= 0 || page.Limit > 100 {
		page.Limit = 20
	}
	if page.Offset >= len(items) {
		return []T{}
	}
	end := page.Offset + page.Limit
	if end > len(items) {
		end = len(items)
	}
	return items[page.Offset:end]
}

// users

func (m *memStore) CreateUser(_ context.Context, u *models.User) (*models.User, error) {
	if err := models.Validate.Struct(u); err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, existing := range m.users {
		if existing.Email == u.Email {
			return nil, models.ErrDuplicate
		}
	}
	cp := *u
	m.users[u.ID] = &cp
	return u, nil
}

func (m *memStore) GetUserByID(_ context.Context, id primitive.ObjectID) (*models.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[id]
	if !ok {
		return nil, models.ErrNotFound
	}
	cp := *u
	return &cp, nil
}

func (m *memStore) GetUserByEmail(_ context.Context, email string) (*models.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.users {
		if u.Email == models.NormalizeEmail(email) {
			cp := *u
			return &cp, nil
		}
	}
	return nil, models.ErrNotFound
}

func (m *memStore) UpdateUser(_ context.Context, id primitive.ObjectID, fields bson.M) (*models.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[id]
	if !ok {
		return nil, models.ErrNotFound
	}
	for k, v := range fields {
		switch k {
		case "name":
			u.Name = v.(string)
		case "phone":
			u.Phone = v.(string)
		case "address":
			u.Address = v.(string)
		case "status":
			u.Status = v.(string)
		case "updated_at":
			u.UpdatedAt = v.(time.Time)
		}
	}
	cp := *u
	return &cp, nil
}

func (m *memStore) ListUsers(_ context.Context, page models.Page) ([]*models.User, int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]*models.User, 0, len(m.users))
	for _, u := range m.users {
		out = append(out, u)
	}
	return paginate(out, page), int64(len(out)), nil
}

func (m *memStore) CountUsers(_ context.Context) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return int64(len(m.users)), nil
}

// technicians

func (m *memStore) CreateTechnician(_ context.Context, t *models.Technician) (*models.Technician, error) {
	if err := models.Validate.Struct(t); err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, existing := range m.techs {
		if existing.Email == t.Email {
			return nil, models.ErrDuplicate
		}
	}
	cp := *t
	m.techs[t.ID] = &cp
	return t, nil
}

func (m *memStore) GetTechnicianByID(_ context.Context, id primitive.ObjectID) (*models.Technician, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.techs[id]
	if !ok {
		return nil, models.ErrNotFound
	}
	cp := *t
	return &cp, nil
}

func (m *memStore) GetTechnicianByEmail(_ context.Context, email string) (*models.Technician, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, t := range m.techs {
		if t.Email == models.NormalizeEmail(email) {
			cp := *t
			return &cp, nil
		}
	}
	return nil, models.ErrNotFound
}

func (m *memStore) ListTechnicians(_ context.Context, filter models.TechnicianFilter, page models.Page) ([]*models.Technician, int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*models.Technician
	for _, t := range m.techs {
		if filter.Status != "" && t.Status != filter.Status {
			continue
		}
		if filter.Specialty != "" && !strings.EqualFold(t.Specialty, filter.Specialty) {
			continue
		}
		out = append(out, t)
	}
	return paginate(out, page), int64(len(out)), nil
}

func (m *memStore) UpdateTechnician(_ context.Context, id primitive.ObjectID, fields bson.M) (*models.Technician, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.techs[id]
	if !ok {
		return nil, models.ErrNotFound
	}
	for k, v := range fields {
		switch k {
		case "name":
			t.Name = v.(string)
		case "email":
			t.Email = v.(string)
		case "phone":
			t.Phone = v.(string)
		case "specialty":
			t.Specialty = v.(string)
		case "status":
			t.Status = v.(models.TechnicianStatus)
		}
	}
	cp := *t
	return &cp, nil
}

func (m *memStore) SetTechnicianStatus(_ context.Context, id primitive.ObjectID, status models.TechnicianStatus) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.techs[id]
	if !ok {
		return models.ErrNotFound
	}
	t.Status = status
	return nil
}

func (m *memStore) SetTechnicianRating(_ context.Context, id primitive.ObjectID, average float64, count int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.techs[id]
	if !ok {
		return models.ErrNotFound
	}
	t.Rating, t.RatingCount = average, count
	return nil
}

func (m *memStore) CountTechnicians(_ context.Context) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return int64(len(m.techs)), nil
}

// admins

func (m *memStore) CreateAdmin(_ context.Context, a *models.Admin) (*models.Admin, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if a.ID.IsZero() {
		a.ID = primitive.NewObjectID()
	}
	a.Email = models.NormalizeEmail(a.Email)
	for _, existing := range m.admins {
		if existing.Email == a.Email {
			return nil, models.ErrDuplicate
		}
	}
	cp := *a
	m.admins[a.ID] = &cp
	return a, nil
}

func (m *memStore) GetAdminByEmail(_ context.Context, email string) (*models.Admin, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, a := range m.admins {
		if a.Email == models.NormalizeEmail(email) {
			cp := *a
			return &cp, nil
		}
	}
	return nil, models.ErrNotFound
}

func (m *memStore) GetAdminByID(_ context.Context, id primitive.ObjectID) (*models.Admin, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.admins[id]
	if !ok {
		return nil, models.ErrNotFound
	}
	cp := *a
	return &cp, nil
}

func (m *memStore) CountAdmins(_ context.Context) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return int64(len(m.admins)), nil
}

// bookings

func copyBooking(b *models.Booking) *models.Booking {
	cp := *b
	cp.StatusHistory = append([]models.StatusChange(nil), b.StatusHistory...)
	return &cp
}

func (m *memStore) CreateBooking(_ context.Context, b *models.Booking) (*models.Booking, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.bookings[b.ID] = copyBooking(b)
	return b, nil
}

func (m *memStore) GetBookingByID(_ context.Context, id primitive.ObjectID) (*models.Booking, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	b, ok := m.bookings[id]
	if !ok {
		return nil, models.ErrNotFound
	}
	return copyBooking(b), nil
}

func (m *memStore) ListBookings(_ context.Context, filter models.BookingFilter, page models.Page) ([]*models.Booking, int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*models.Booking
	for _, b := range m.bookings {
		if !filter.CustomerID.IsZero() && b.CustomerID != filter.CustomerID {
			continue
		}
		if !filter.TechnicianID.IsZero() && (b.TechnicianID == nil || *b.TechnicianID != filter.TechnicianID) {
			continue
		}
		if filter.Status != "" && b.Status != filter.Status {
			continue
		}
		out = append(out, copyBooking(b))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ScheduledAt.After(out[j].ScheduledAt) })
	return paginate(out, page), int64(len(out)), nil
}

func (m *memStore) UpdateBookingStatus(_ context.Context, id primitive.ObjectID, from models.BookingStatus, change models.StatusChange) (*models.Booking, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	b, ok := m.bookings[id]
	if !ok || b.Status != from {
		return nil, models.ErrStatusConflict
	}
	b.Status = change.To
	b.UpdatedAt = change.At
	switch change.To {
	case models.BookingCompleted:
		at := change.At
		b.CompletedAt = &at
	case models.BookingCancelled:
		at := change.At
		b.CancelledAt = &at
	}
	b.StatusHistory = append(b.StatusHistory, change)
	return copyBooking(b), nil
}

func (m *memStore) AssignTechnician(_ context.Context, id primitive.ObjectID, technicianID primitive.ObjectID, change *models.StatusChange) (*models.Booking, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	b, ok := m.bookings[id]
	if !ok || b.Status.IsTerminal() || (change != nil && b.Status != change.From) {
		return nil, models.ErrStatusConflict
	}
	tid := technicianID
	b.TechnicianID = &tid
	if change != nil {
		b.Status = change.To
		b.StatusHistory = append(b.StatusHistory, *change)
	}
	return copyBooking(b), nil
}

func (m *memStore) ListDueReminders(_ context.Context, from, to time.Time) ([]*models.Booking, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*models.Booking
	for _, b := range m.bookings {
		if b.Status == models.BookingScheduled && !b.ReminderSent && !b.ScheduledAt.Before(from) && !b.ScheduledAt.After(to) {
			out = append(out, copyBooking(b))
		}
	}
	return out, nil
}

func (m *memStore) MarkReminderSent(_ context.Context, id primitive.ObjectID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if b, ok := m.bookings[id]; ok {
		b.ReminderSent = true
	}
	return nil
}

func (m *memStore) GetBookingStats(_ context.Context) (*models.BookingStats, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	stats := &models.BookingStats{ByStatus: map[models.BookingStatus]int64{}}
	for _, st := range models.BookingStatuses {
		stats.ByStatus[st] = 0
	}
	for _, b := range m.bookings {
		stats.ByStatus[b.Status]++
		stats.Total++
		if b.Status == models.BookingCompleted {
			stats.Revenue += b.Amount
		}
	}
	return stats, nil
}

// catalog

func (m *memStore) CreateService(_ context.Context, s *models.Service) (*models.Service, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, existing := range m.services {
		if strings.EqualFold(existing.Name, s.Name) {
			return nil, models.ErrDuplicate
		}
	}
	cp := *s
	m.services[s.ID] = &cp
	return s, nil
}

func (m *memStore) GetServiceByID(_ context.Context, id primitive.ObjectID) (*models.Service, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.services[id]
	if !ok {
		return nil, models.ErrNotFound
	}
	cp := *s
	return &cp, nil
}

func (m *memStore) UpdateService(_ context.Context, id primitive.ObjectID, fields bson.M) (*models.Service, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.services[id]
	if !ok {
		return nil, models.ErrNotFound
	}
	for k, v := range fields {
		switch k {
		case "name":
			s.Name = v.(string)
		case "description":
			s.Description = v.(string)
		case "price":
			s.Price = v.(float64)
		case "category":
			s.Category = v.(string)
		case "image_url":
			s.ImageURL = v.(string)
		case "is_active":
			s.IsActive = v.(bool)
		}
	}
	cp := *s
	return &cp, nil
}

func (m *memStore) ListServices(_ context.Context, activeOnly bool) ([]*models.Service, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []*models.Service{}
	for _, s := range m.services {
		if activeOnly && !s.IsActive {
			continue
		}
		cp := *s
		out = append(out, &cp)
	}
	return out, nil
}

func (m *memStore) CountActiveServices(ctx context.Context) (int64, error) {
	list, _ := m.ListServices(ctx, true)
	return int64(len(list)), nil
}

// otps

func (m *memStore) CreateOTP(_ context.Context, o *models.OTP) (*models.OTP, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if o.ID.IsZero() {
		o.ID = primitive.NewObjectID()
	}
	o.Email = models.NormalizeEmail(o.Email)
	cp := *o
	m.otps = append(m.otps, &cp)
	return o, nil
}

func (m *memStore) FindLatestOTP(_ context.Context, email string, purpose models.OTPPurpose, bookingID *primitive.ObjectID) (*models.OTP, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var latest *models.OTP
	for _, o := range m.otps {
		if o.Email != models.NormalizeEmail(email) || o.Purpose != purpose {
			continue
		}
		if bookingID != nil && (o.BookingID == nil || *o.BookingID != *bookingID) {
			continue
		}
		if latest == nil || !o.CreatedAt.Before(latest.CreatedAt) {
			latest = o
		}
	}
	if latest == nil {
		return nil, models.ErrNotFound
	}
	cp := *latest
	return &cp, nil
}

func (m *memStore) MarkOTPUsed(_ context.Context, id primitive.ObjectID, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, o := range m.otps {
		if o.ID == id && o.UsedAt == nil {
			t := at
			o.UsedAt = &t
			return nil
		}
	}
	return models.ErrNotFound
}

func (m *memStore) lastOTP() *models.OTP {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.otps) == 0 {
		return nil
	}
	return m.otps[len(m.otps)-1]
}

// notifications

func (m *memStore) CreateNotification(_ context.Context, n *models.Notification) (*models.Notification, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if n.ID.IsZero() {
		n.ID = primitive.NewObjectID()
	}
	cp := *n
	m.notifications = append(m.notifications, &cp)
	return n, nil
}

func (m *memStore) ListNotifications(_ context.Context, userID primitive.ObjectID, page models.Page) ([]*models.Notification, int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*models.Notification
	for i := len(m.notifications) - 1; i >= 0; i-- {
		if m.notifications[i].UserID == userID {
			out = append(out, m.notifications[i])
		}
	}
	return paginate(out, page), int64(len(out)), nil
}

func (m *memStore) CountUnread(_ context.Context, userID primitive.ObjectID) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var n int64
	for _, x := range m.notifications {
		if x.UserID == userID && !x.Read {
			n++
		}
	}
	return n, nil
}

func (m *memStore) MarkNotificationRead(_ context.Context, userID, id primitive.ObjectID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, x := range m.notifications {
		if x.ID == id && x.UserID == userID {
			x.Read = true
			return nil
		}
	}
	return models.ErrNotFound
}

func (m *memStore) MarkAllNotificationsRead(_ context.Context, userID primitive.ObjectID) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var n int64
	for _, x := range m.notifications {
		if x.UserID == userID && !x.Read {
			x.Read = true
			n++
		}
	}
	return n, nil
}

func (m *memStore) notificationsFor(userID primitive.ObjectID) []*models.Notification {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*models.Notification
	for _, x := range m.notifications {
		if x.UserID == userID {
			out = append(out, x)
		}
	}
	return out
}

// ratings

func (m *memStore) CreateRating(_ context.Context, r *models.Rating) (*models.Rating, error) {
	if err := r.ValidateRating(); err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, existing := range m.ratings {
		if existing.BookingID == r.BookingID {
			return nil, models.ErrDuplicate
		}
	}
	cp := *r
	m.ratings = append(m.ratings, &cp)
	return r, nil
}

func (m *memStore) GetRatingByBooking(_ context.Context, bookingID primitive.ObjectID) (*models.Rating, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, r := range m.ratings {
		if r.BookingID == bookingID {
			cp := *r
			return &cp, nil
		}
	}
	return nil, models.ErrNotFound
}

func (m *memStore) ListRatingsByTechnician(_ context.Context, technicianID primitive.ObjectID, page models.Page) ([]*models.Rating, int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*models.Rating
	for _, r := range m.ratings {
		if r.TechnicianID == technicianID {
			out = append(out, r)
		}
	}
	return paginate(out, page), int64(len(out)), nil
}

func (m *memStore) TechnicianRatingSummary(_ context.Context, technicianID primitive.ObjectID) (float64, int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	sum, count := 0, 0
	for _, r := range m.ratings {
		if r.TechnicianID == technicianID {
			sum += r.Score
			count++
		}
	}
	if count == 0 {
		return 0, 0, nil
	}
	return float64(sum) / float64(count), count, nil
}

// collaborators

type sentMail struct {
	To, Subject, Body string
}

type fakeMailer struct {
	mu   sync.Mutex
	sent []sentMail
	err  error
}

func (f *fakeMailer) Send(_ context.Context, to, subject, body string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.sent = append(f.sent, sentMail{To: to, Subject: subject, Body: body})
	return nil
}

type push struct {
	UserID, Event string
	Data          any
}

type fakePusher struct {
	mu      sync.Mutex
	pushes  []push
	offline bool
}

func (f *fakePusher) Emit(userID, event string, data any) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.pushes = append(f.pushes, push{UserID: userID, Event: event, Data: data})
	if f.offline {
		return 0
	}
	return 1
}

func (f *fakePusher) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.pushes)
}

type fakePublisher struct {
	mu   sync.Mutex
	keys []string
	err  error
}

func (f *fakePublisher) Publish(_ context.Context, key string, _ any) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.keys = append(f.keys, key)
	return f.err
}

func (f *fakePublisher) Close() error { return nil }

func (f *fakePublisher) published(key string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, k := range f.keys {
		if k == key {
			n++
		}
	}
	return n
}

type fakeCache struct {
	mu      sync.Mutex
	data    map[string]any
	gets    int
	deletes int
}

func (f *fakeCache) Get(_ context.Context, key string, dst any) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.gets++
	v, ok := f.data[key]
	if !ok {
		return false, nil
	}
	out, ok := dst.(*[]*models.Service)
	if !ok {
		return false, errors.New("unexpected cache destination")
	}
	*out = v.([]*models.Service)
	return true, nil
}

func (f *fakeCache) Set(_ context.Context, key string, v any, _ time.Duration) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.data == nil {
		f.data = map[string]any{}
	}
	f.data[key] = v
	return nil
}

func (f *fakeCache) Delete(_ context.Context, keys ...string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, k := range keys {
		delete(f.data, k)
	}
	f.deletes++
	return nil
}
