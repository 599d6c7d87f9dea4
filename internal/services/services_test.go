package services

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/joshua-takyi/repairhub/internal/events"
	"github.com/joshua-takyi/repairhub/internal/helpers"
	"github.com/joshua-takyi/repairhub/internal/models"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

type testEnv struct {
	store  *memStore
	mail   *fakeMailer
	push   *fakePusher
	pub    *fakePublisher
	cache  *fakeCache
	clock  *fakeClock
	tokens *helpers.TokenManager

	notifications *NotificationService
	bookings      *BookingService
	otp           *OTPService
	auth          *AuthService
	ratings       *RatingService
	catalog       *CatalogService
	techs         *TechnicianService
	users         *UserService
	admin         *AdminService
	reminders     *ReminderService
	receipts      *ReceiptService
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	env := &testEnv{
		store:  newMemStore(),
		mail:   &fakeMailer{},
		push:   &fakePusher{},
		pub:    &fakePublisher{},
		cache:  &fakeCache{},
		clock:  &fakeClock{now: time.Date(2026, 10, 17, 9, 0, 0, 0, time.Local)},
		tokens: helpers.NewTokenManager("0123456789abcdef0123456789abcdef", 24*time.Hour),
	}
	log := discardLogger()
	s := env.store

	env.notifications = NewNotificationService(s, env.push, log)
	env.notifications.now = env.clock.Now
	env.bookings = NewBookingService(s, s, s, env.notifications, env.pub, log)
	env.bookings.now = env.clock.Now
	env.otp = NewOTPService(s, s, s, env.bookings, env.mail, env.notifications, env.tokens, OTPConfig{TTL: 5 * time.Minute, Length: 6}, log)
	env.otp.now = env.clock.Now
	env.auth = NewAuthService(s, s, s, env.tokens, log)
	env.auth.now = env.clock.Now
	env.ratings = NewRatingService(s, s, s, env.pub, log)
	env.ratings.now = env.clock.Now
	env.catalog = NewCatalogService(s, env.cache, nil, log)
	env.catalog.now = env.clock.Now
	env.techs = NewTechnicianService(s, log)
	env.techs.now = env.clock.Now
	env.users = NewUserService(s, log)
	env.users.now = env.clock.Now
	env.admin = NewAdminService(s, s, s, s)
	env.reminders = NewReminderService(s, s, env.notifications, env.mail, log)
	env.reminders.now = env.clock.Now
	env.receipts = NewReceiptService(env.bookings, s, s, "http://localhost:3000", log)
	return env
}

func (env *testEnv) customer(t *testing.T, email string) (*models.User, Actor) {
	t.Helper()
	u := &models.User{Name: "Test Customer", Email: email}
	u.BeforeCreate(env.clock.Now())
	if _, err := env.store.CreateUser(context.Background(), u); err != nil {
		t.Fatalf("create customer: %v", err)
	}
	return u, Actor{ID: u.ID.Hex(), Role: helpers.RoleCustomer}
}

func (env *testEnv) technician(t *testing.T, email string) (*models.Technician, Actor) {
	t.Helper()
	name, spec := "Ravi Kumar", "Refrigerator"
	tech, err := env.techs.Create(context.Background(), TechnicianInput{Name: &name, Email: &email, Specialty: &spec})
	if err != nil {
		t.Fatalf("create technician: %v", err)
	}
	return tech, Actor{ID: tech.ID.Hex(), Role: helpers.RoleTechnician}
}

func (env *testEnv) service(t *testing.T, name string, price float64) *models.Service {
	t.Helper()
	category := "Appliances"
	svc, err := env.catalog.Create(context.Background(), ServiceInput{Name: &name, Price: &price, Category: &category}, nil)
	if err != nil {
		t.Fatalf("create service: %v", err)
	}
	return svc
}

var adminActor = Actor{ID: primitive.NewObjectID().Hex(), Role: helpers.RoleAdmin}

func TestLoginOTPFlow(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	if err := env.otp.SendLoginOTP(ctx, "A@B.com"); err != nil {
		t.Fatalf("SendLoginOTP: %v", err)
	}
	otp := env.store.lastOTP()
	if otp == nil || otp.Email != "a@b.com" || otp.Purpose != models.OTPLogin {
		t.Fatalf("unexpected otp record %+v", otp)
	}
	if want := env.clock.Now().Add(5 * time.Minute); !otp.ExpiresAt.Equal(want) {
		t.Errorf("expires_at = %v, want %v", otp.ExpiresAt, want)
	}
	if len(env.mail.sent) != 1 || !strings.Contains(env.mail.sent[0].Body, otp.Code) {
		t.Fatalf("expected one mail containing the code, got %+v", env.mail.sent)
	}

	env.clock.Advance(4 * time.Minute)
	res, err := env.otp.VerifyLogin(ctx, "a@b.com", otp.Code, "")
	if err != nil {
		t.Fatalf("VerifyLogin: %v", err)
	}
	claims, err := env.tokens.Validate(res.Token)
	if err != nil {
		t.Fatalf("token invalid: %v", err)
	}
	if claims.Role != helpers.RoleCustomer || claims.Email != "a@b.com" {
		t.Errorf("unexpected claims %+v", claims)
	}
	if _, err := env.store.GetUserByEmail(ctx, "a@b.com"); err != nil {
		t.Errorf("customer not created on first login: %v", err)
	}

	if _, err := env.otp.VerifyLogin(ctx, "a@b.com", otp.Code, ""); !errors.Is(err, ErrInvalidOTP) {
		t.Errorf("reused code: expected ErrInvalidOTP, got %v", err)
	}
}

func TestLoginOTPExpires(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	if err := env.otp.SendLoginOTP(ctx, "a@b.com"); err != nil {
		t.Fatalf("SendLoginOTP: %v", err)
	}
	code := env.store.lastOTP().Code

	env.clock.Advance(5 * time.Minute)
	if _, err := env.otp.VerifyLogin(ctx, "a@b.com", code, ""); !errors.Is(err, ErrInvalidOTP) {
		t.Fatalf("expected ErrInvalidOTP after expiry, got %v", err)
	}
}

func TestLatestOTPWins(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	_ = env.otp.SendLoginOTP(ctx, "a@b.com")
	env.clock.Advance(time.Second)
	_ = env.otp.SendLoginOTP(ctx, "a@b.com")
	env.store.otps[0].Code = "111111"
	env.store.otps[1].Code = "222222"

	if _, err := env.otp.VerifyLogin(ctx, "a@b.com", "111111", ""); !errors.Is(err, ErrInvalidOTP) {
		t.Fatalf("superseded code: expected ErrInvalidOTP, got %v", err)
	}
	if _, err := env.otp.VerifyLogin(ctx, "a@b.com", "222222", ""); err != nil {
		t.Fatalf("latest code rejected: %v", err)
	}
}

func TestLoginOTPWrongCodeAndUnknownEmail(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	_ = env.otp.SendLoginOTP(ctx, "a@b.com")
	env.store.otps[0].Code = "123456"

	if _, err := env.otp.VerifyLogin(ctx, "a@b.com", "654321", ""); !errors.Is(err, ErrInvalidOTP) {
		t.Errorf("wrong code: got %v", err)
	}
	if _, err := env.otp.VerifyLogin(ctx, "nobody@b.com", "123456", ""); !errors.Is(err, ErrInvalidOTP) {
		t.Errorf("unknown email: got %v", err)
	}
	if _, err := env.otp.VerifyLogin(ctx, "a@b.com", "123456", "admin"); !errors.Is(err, ErrInvalidInput) {
		t.Errorf("admin account: got %v", err)
	}
}

func TestSendOTPFailures(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	if err := env.otp.SendLoginOTP(ctx, "not-an-email"); !errors.Is(err, ErrInvalidInput) {
		t.Errorf("malformed email: got %v", err)
	}
	env.mail.err = errors.New("smtp: connection refused")
	if err := env.otp.SendLoginOTP(ctx, "a@b.com"); !errors.Is(err, ErrOTPSendFailed) {
		t.Errorf("mail failure: got %v", err)
	}
}

func TestVerifyLoginAccounts(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	_ = env.otp.SendLoginOTP(ctx, "ghost@b.com")
	code := env.store.lastOTP().Code
	if _, err := env.otp.VerifyLogin(ctx, "ghost@b.com", code, helpers.RoleTechnician); !errors.Is(err, ErrAccountNotFound) {
		t.Errorf("unknown technician: got %v", err)
	}

	tech, _ := env.technician(t, "tech@b.com")
	_ = env.otp.SendLoginOTP(ctx, "tech@b.com")
	res, err := env.otp.VerifyLogin(ctx, "tech@b.com", env.store.lastOTP().Code, helpers.RoleTechnician)
	if err != nil {
		t.Fatalf("technician login: %v", err)
	}
	claims, _ := env.tokens.Validate(res.Token)
	if claims.Role != helpers.RoleTechnician || claims.UserID() != tech.ID.Hex() {
		t.Errorf("unexpected claims %+v", claims)
	}

	blocked, _ := env.customer(t, "blocked@b.com")
	if _, err := env.users.SetStatus(ctx, blocked.ID.Hex(), models.UserStatusBlocked); err != nil {
		t.Fatalf("SetStatus: %v", err)
	}
	_ = env.otp.SendLoginOTP(ctx, "blocked@b.com")
	if _, err := env.otp.VerifyLogin(ctx, "blocked@b.com", env.store.lastOTP().Code, ""); !errors.Is(err, ErrAccountBlocked) {
		t.Errorf("blocked customer: got %v", err)
	}
}

func TestNotifyPersistsOnceAndPushesOnce(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	userID := primitive.NewObjectID()

	n, err := env.notifications.Notify(ctx, userID, models.NotificationGeneral, "Hello", "Welcome to RepairHub", nil)
	if err != nil {
		t.Fatalf("Notify: %v", err)
	}
	if got := len(env.store.notificationsFor(userID)); got != 1 {
		t.Errorf("persisted %d notifications, want 1", got)
	}
	if env.push.count() != 1 || env.push.pushes[0].UserID != userID.Hex() || env.push.pushes[0].Event != "notification" {
		t.Errorf("unexpected pushes %+v", env.push.pushes)
	}
	if env.push.pushes[0].Data.(*models.Notification).ID != n.ID {
		t.Error("pushed payload is not the stored notification")
	}

	env.push.offline = true
	if _, err := env.notifications.Notify(ctx, userID, models.NotificationGeneral, "", "Second", nil); err != nil {
		t.Fatalf("Notify while offline: %v", err)
	}
	if got := len(env.store.notificationsFor(userID)); got != 2 {
		t.Errorf("persisted %d notifications, want 2", got)
	}
	if env.push.count() != 2 {
		t.Errorf("push attempts = %d, want 2", env.push.count())
	}

	if _, err := env.notifications.Notify(ctx, userID, "sms", "", "x", nil); !errors.Is(err, ErrInvalidInput) {
		t.Errorf("unknown type: got %v", err)
	}
	if got := len(env.store.notificationsFor(userID)); got != 2 {
		t.Errorf("invalid notification was persisted")
	}

	unread, _ := env.notifications.UnreadCount(ctx, userID)
	if unread != 2 {
		t.Errorf("unread = %d, want 2", unread)
	}
	if err := env.notifications.MarkRead(ctx, userID, n.ID); err != nil {
		t.Fatalf("MarkRead: %v", err)
	}
	if n, _ := env.notifications.MarkAllRead(ctx, userID); n != 1 {
		t.Errorf("MarkAllRead updated %d, want 1", n)
	}
}

func TestBookingLifecycle(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	customer, custActor := env.customer(t, "cust@b.com")
	tech, techActor := env.technician(t, "tech@b.com")
	svc := env.service(t, "Refrigerator repair", 799)

	lat, lng := 12.97, 77.59
	b, err := env.bookings.Create(ctx, custActor, CreateBookingInput{
		ServiceID: svc.ID.Hex(), Date: "2026-10-18", Time: "10:00", Address: " 12  Lake Road ",
		Latitude: &lat, Longitude: &lng,
	})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if b.Status != models.BookingPending || b.Amount != 799 || b.Address != "12 Lake Road" {
		t.Errorf("unexpected booking %+v", b)
	}
	if b.Location == nil || b.Location.Coordinates[0] != lng {
		t.Errorf("location = %+v", b.Location)
	}
	if env.pub.published(events.BookingCreated) != 1 {
		t.Error("booking.created not published")
	}

	b, err = env.bookings.Assign(ctx, b.ID.Hex(), tech.ID.Hex(), adminActor)
	if err != nil {
		t.Fatalf("Assign: %v", err)
	}
	if b.Status != models.BookingScheduled || !b.IsAssignedTo(tech.ID) {
		t.Errorf("after assign: %+v", b)
	}
	if got, _ := env.store.GetTechnicianByID(ctx, tech.ID); got.Status != models.TechnicianBusy {
		t.Errorf("technician status = %s, want Busy", got.Status)
	}
	if len(env.store.notificationsFor(tech.ID)) != 1 {
		t.Error("technician was not notified of assignment")
	}

	if err := env.otp.SendBookingOTP(ctx, b.ID.Hex(), models.OTPStart, techActor); err != nil {
		t.Fatalf("SendBookingOTP start: %v", err)
	}
	start := env.store.lastOTP()
	if start.Email != customer.Email || start.BookingID == nil || *start.BookingID != b.ID {
		t.Fatalf("start code went to %+v", start)
	}
	b, err = env.otp.VerifyBookingOTP(ctx, b.ID.Hex(), models.OTPStart, start.Code, techActor)
	if err != nil {
		t.Fatalf("VerifyBookingOTP start: %v", err)
	}
	if b.Status != models.BookingInProgress {
		t.Fatalf("status = %s, want In Progress", b.Status)
	}

	if err := env.otp.SendBookingOTP(ctx, b.ID.Hex(), models.OTPComplete, techActor); err != nil {
		t.Fatalf("SendBookingOTP complete: %v", err)
	}
	if _, err := env.otp.VerifyBookingOTP(ctx, b.ID.Hex(), models.OTPComplete, "000000x", techActor); !errors.Is(err, ErrInvalidOTP) {
		t.Fatalf("wrong completion code: got %v", err)
	}
	b, err = env.otp.VerifyBookingOTP(ctx, b.ID.Hex(), models.OTPComplete, env.store.lastOTP().Code, techActor)
	if err != nil {
		t.Fatalf("VerifyBookingOTP complete: %v", err)
	}
	if b.Status != models.BookingCompleted || b.CompletedAt == nil {
		t.Fatalf("after completion: %+v", b)
	}
	if got, _ := env.store.GetTechnicianByID(ctx, tech.ID); got.Status != models.TechnicianAvailable {
		t.Errorf("technician status = %s, want Available", got.Status)
	}
	if len(b.StatusHistory) != 4 {
		t.Errorf("history has %d entries, want 4", len(b.StatusHistory))
	}

	if _, err := env.bookings.Transition(ctx, b.ID.Hex(), models.BookingCancelled, adminActor, ""); !errors.Is(err, ErrInvalidTransition) {
		t.Errorf("cancel after completion: got %v", err)
	}

	if _, err := env.ratings.Rate(ctx, b.ID.Hex(), custActor, RateInput{Score: 6}); !errors.Is(err, ErrInvalidInput) {
		t.Errorf("score 6: got %v", err)
	}
	if _, err := env.ratings.Rate(ctx, b.ID.Hex(), custActor, RateInput{Score: 4, Review: "quick and  tidy"}); err != nil {
		t.Fatalf("Rate: %v", err)
	}
	if _, err := env.ratings.Rate(ctx, b.ID.Hex(), custActor, RateInput{Score: 5}); !errors.Is(err, ErrAlreadyRated) {
		t.Errorf("second rating: got %v", err)
	}
	if got, _ := env.store.GetTechnicianByID(ctx, tech.ID); got.Rating != 4 || got.RatingCount != 1 {
		t.Errorf("technician rating = %v (%d)", got.Rating, got.RatingCount)
	}
	if env.pub.published(events.RatingCreated) != 1 {
		t.Error("rating.created not published")
	}

	updates := 0
	for _, n := range env.store.notificationsFor(customer.ID) {
		if n.Type == models.NotificationBookingUpdate {
			updates++
		}
	}
	if updates != 3 {
		t.Errorf("customer got %d booking updates, want 3", updates)
	}
}

func TestBookingCreateValidation(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	_, custActor := env.customer(t, "cust@b.com")
	svc := env.service(t, "Washer repair", 499)

	cases := map[string]CreateBookingInput{
		"past":     {ServiceID: svc.ID.Hex(), Date: "2026-10-16", Time: "10:00", Address: "x"},
		"bad date": {ServiceID: svc.ID.Hex(), Date: "16-10-2026", Time: "10:00", Address: "x"},
		"bad time": {ServiceID: svc.ID.Hex(), Date: "2026-10-18", Time: "25:00", Address: "x"},
	}
	for name, in := range cases {
		if _, err := env.bookings.Create(ctx, custActor, in); !errors.Is(err, ErrInvalidInput) {
			t.Errorf("%s: expected ErrInvalidInput, got %v", name, err)
		}
	}

	if _, err := env.bookings.Create(ctx, custActor, CreateBookingInput{ServiceID: primitive.NewObjectID().Hex(), Date: "2026-10-18", Time: "10:00", Address: "x"}); !errors.Is(err, ErrServiceUnavailable) {
		t.Errorf("unknown service: got %v", err)
	}
	if _, err := env.catalog.Deactivate(ctx, svc.ID.Hex()); err != nil {
		t.Fatalf("Deactivate: %v", err)
	}
	if _, err := env.bookings.Create(ctx, custActor, CreateBookingInput{ServiceID: svc.ID.Hex(), Date: "2026-10-18", Time: "10:00", Address: "x"}); !errors.Is(err, ErrServiceUnavailable) {
		t.Errorf("inactive service: got %v", err)
	}
	if _, err := env.bookings.Create(ctx, adminActor, CreateBookingInput{}); !errors.Is(err, ErrForbidden) {
		t.Errorf("admin create: got %v", err)
	}
}

func TestTransitionPermissions(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	_, custActor := env.customer(t, "cust@b.com")
	_, otherActor := env.customer(t, "other@b.com")
	tech, techActor := env.technician(t, "tech@b.com")
	_, strangerTech := env.technician(t, "stranger@b.com")
	svc := env.service(t, "Oven repair", 299)

	newBooking := func() *models.Booking {
		b, err := env.bookings.Create(ctx, custActor, CreateBookingInput{ServiceID: svc.ID.Hex(), Date: "2026-10-20", Time: "11:30", Address: "1 Main St"})
		if err != nil {
			t.Fatalf("Create: %v", err)
		}
		return b
	}

	b := newBooking()
	if _, err := env.bookings.Transition(ctx, b.ID.Hex(), models.BookingScheduled, custActor, ""); !errors.Is(err, ErrForbidden) {
		t.Errorf("customer scheduling: got %v", err)
	}
	if _, err := env.bookings.Cancel(ctx, b.ID.Hex(), otherActor, ""); !errors.Is(err, ErrForbidden) {
		t.Errorf("other customer cancelling: got %v", err)
	}
	if _, err := env.bookings.Get(ctx, b.ID.Hex(), otherActor); !errors.Is(err, ErrForbidden) {
		t.Errorf("other customer reading: got %v", err)
	}
	if _, err := env.bookings.Transition(ctx, b.ID.Hex(), models.BookingInProgress, adminActor, ""); !errors.Is(err, ErrNotAssigned) {
		t.Errorf("start without technician: got %v", err)
	}
	cancelled, err := env.bookings.Cancel(ctx, b.ID.Hex(), custActor, "changed my mind")
	if err != nil {
		t.Fatalf("customer cancel: %v", err)
	}
	if cancelled.Status != models.BookingCancelled || cancelled.CancelledAt == nil {
		t.Errorf("after cancel: %+v", cancelled)
	}
	if _, err := env.bookings.Transition(ctx, b.ID.Hex(), models.BookingScheduled, adminActor, ""); !errors.Is(err, ErrInvalidTransition) {
		t.Errorf("reviving cancelled booking: got %v", err)
	}

	b = newBooking()
	if _, err := env.bookings.Assign(ctx, b.ID.Hex(), tech.ID.Hex(), custActor); !errors.Is(err, ErrForbidden) {
		t.Errorf("customer assigning: got %v", err)
	}
	if _, err := env.bookings.Assign(ctx, b.ID.Hex(), tech.ID.Hex(), adminActor); err != nil {
		t.Fatalf("Assign: %v", err)
	}
	if _, err := env.bookings.Transition(ctx, b.ID.Hex(), models.BookingInProgress, strangerTech, ""); !errors.Is(err, ErrForbidden) {
		t.Errorf("unassigned technician: got %v", err)
	}
	if err := env.otp.SendBookingOTP(ctx, b.ID.Hex(), models.OTPStart, strangerTech); !errors.Is(err, ErrForbidden) {
		t.Errorf("unassigned technician sending code: got %v", err)
	}
	if _, err := env.bookings.Transition(ctx, b.ID.Hex(), models.BookingScheduled, techActor, ""); !errors.Is(err, ErrForbidden) {
		t.Errorf("technician scheduling: got %v", err)
	}
	if _, err := env.bookings.Transition(ctx, b.ID.Hex(), models.BookingInProgress, techActor, "on site"); err != nil {
		t.Fatalf("technician start: %v", err)
	}
	if _, err := env.bookings.Cancel(ctx, b.ID.Hex(), custActor, ""); !errors.Is(err, ErrInvalidTransition) {
		t.Errorf("customer cancelling started job: got %v", err)
	}
	if _, err := env.bookings.Transition(ctx, b.ID.Hex(), models.BookingInProgress, adminActor, ""); !errors.Is(err, ErrInvalidTransition) {
		t.Errorf("same state write: got %v", err)
	}

	list, total, err := env.bookings.ListForCustomer(ctx, custActor, "", models.Page{})
	if err != nil || total != 2 || len(list) != 2 {
		t.Errorf("ListForCustomer = %d/%d, %v", len(list), total, err)
	}
	list, total, _ = env.bookings.ListForTechnician(ctx, techActor, models.BookingInProgress, models.Page{})
	if total != 1 || len(list) != 1 {
		t.Errorf("ListForTechnician = %d/%d", len(list), total)
	}
}

func TestTransitionConflict(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	_, custActor := env.customer(t, "cust@b.com")
	svc := env.service(t, "AC service", 999)
	b, err := env.bookings.Create(ctx, custActor, CreateBookingInput{ServiceID: svc.ID.Hex(), Date: "2026-10-19", Time: "09:00", Address: "x"})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	stale := *b
	if _, err := env.bookings.Cancel(ctx, b.ID.Hex(), adminActor, "duplicate"); err != nil {
		t.Fatalf("Cancel: %v", err)
	}
	if _, err := env.bookings.apply(ctx, &stale, models.BookingScheduled, adminActor, ""); !errors.Is(err, ErrBookingConflict) {
		t.Fatalf("stale write: expected ErrBookingConflict, got %v", err)
	}
}

func TestAssignOfflineTechnician(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	_, custActor := env.customer(t, "cust@b.com")
	_, techActor := env.technician(t, "tech@b.com")
	svc := env.service(t, "TV repair", 350)
	b, _ := env.bookings.Create(ctx, custActor, CreateBookingInput{ServiceID: svc.ID.Hex(), Date: "2026-10-19", Time: "09:00", Address: "x"})

	if _, err := env.techs.SetOwnStatus(ctx, techActor, string(models.TechnicianOffline)); err != nil {
		t.Fatalf("SetOwnStatus: %v", err)
	}
	if _, err := env.bookings.Assign(ctx, b.ID.Hex(), techActor.ID, adminActor); !errors.Is(err, ErrTechnicianUnavailable) {
		t.Fatalf("expected ErrTechnicianUnavailable, got %v", err)
	}
	if _, err := env.techs.SetOwnStatus(ctx, techActor, string(models.TechnicianBusy)); !errors.Is(err, ErrInvalidInput) {
		t.Errorf("technician setting Busy: got %v", err)
	}
}

func TestSignupAndLogin(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	in := SignupInput{Name: "Meera", Email: "meera@example.com", Password: "weak", Phone: "+919812345678"}
	if _, err := env.auth.Signup(ctx, in); !errors.Is(err, ErrWeakPassword) {
		t.Fatalf("weak password: got %v", err)
	}
	in.Password = "Repair!2026"
	in.Phone = "98123"
	if _, err := env.auth.Signup(ctx, in); !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("bad phone: got %v", err)
	}
	in.Phone = "+919812345678"
	res, err := env.auth.Signup(ctx, in)
	if err != nil {
		t.Fatalf("Signup: %v", err)
	}
	if res.Role != helpers.RoleCustomer || res.Token == "" {
		t.Errorf("unexpected result %+v", res)
	}
	if _, err := env.auth.Signup(ctx, in); !errors.Is(err, ErrEmailTaken) {
		t.Errorf("duplicate signup: got %v", err)
	}

	if _, err := env.auth.Login(ctx, "meera@example.com", "Repair!2025"); !errors.Is(err, ErrInvalidCredentials) {
		t.Errorf("wrong password: got %v", err)
	}
	if _, err := env.auth.Login(ctx, "MEERA@example.com", "Repair!2026"); err != nil {
		t.Errorf("Login: %v", err)
	}
}

func TestAdminBootstrapAndLogin(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	if err := env.auth.BootstrapAdmin(ctx, "admin@repairhub.test", "Admin!2026x"); err != nil {
		t.Fatalf("BootstrapAdmin: %v", err)
	}
	if err := env.auth.BootstrapAdmin(ctx, "admin@repairhub.test", "Admin!2026x"); err != nil {
		t.Fatalf("second BootstrapAdmin: %v", err)
	}
	if n, _ := env.store.CountAdmins(ctx); n != 1 {
		t.Errorf("admins = %d, want 1", n)
	}
	res, err := env.auth.AdminLogin(ctx, "admin@repairhub.test", "Admin!2026x")
	if err != nil {
		t.Fatalf("AdminLogin: %v", err)
	}
	claims, _ := env.tokens.Validate(res.Token)
	if !claims.IsAdmin() {
		t.Errorf("role = %q", claims.Role)
	}
	me, err := env.auth.Me(ctx, ActorFromClaims(claims))
	if err != nil {
		t.Fatalf("Me: %v", err)
	}
	if admin, ok := me.(*models.Admin); !ok || admin.Email != "admin@repairhub.test" {
		t.Errorf("Me = %#v", me)
	}
}

func TestCatalogCache(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.service(t, "Microwave repair", 250)

	first, err := env.catalog.ListActive(ctx)
	if err != nil || len(first) != 1 {
		t.Fatalf("ListActive = %v, %v", first, err)
	}
	if _, ok := env.cache.data["services:active"]; !ok {
		t.Fatal("active services were not cached")
	}

	env.service(t, "Chimney cleaning", 400)
	if _, ok := env.cache.data["services:active"]; ok {
		t.Fatal("cache not invalidated on create")
	}
	second, _ := env.catalog.ListActive(ctx)
	if len(second) != 2 {
		t.Errorf("ListActive after create = %d services", len(second))
	}

	if _, err := env.catalog.Create(ctx, ServiceInput{}, nil); !errors.Is(err, ErrInvalidInput) {
		t.Errorf("empty service: got %v", err)
	}
	name, category, price := "Geyser repair", "Appliances", 300.0
	if _, err := env.catalog.Create(ctx, ServiceInput{Name: &name, Category: &category, Price: &price}, bytes.NewReader([]byte("png"))); !errors.Is(err, ErrInvalidInput) {
		t.Errorf("upload without uploader: got %v", err)
	}
}

func TestUserProfile(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	user, actor := env.customer(t, "cust@b.com")
	_, other := env.customer(t, "other@b.com")

	phone := "+14155550100"
	updated, err := env.users.UpdateUser(ctx, user.ID.Hex(), UpdateUserInput{Phone: &phone}, actor)
	if err != nil || updated.Phone != phone {
		t.Fatalf("UpdateUser = %+v, %v", updated, err)
	}
	bad := "555"
	if _, err := env.users.UpdateUser(ctx, user.ID.Hex(), UpdateUserInput{Phone: &bad}, actor); !errors.Is(err, ErrInvalidInput) {
		t.Errorf("bad phone: got %v", err)
	}
	if _, err := env.users.GetUser(ctx, user.ID.Hex(), other); !errors.Is(err, ErrForbidden) {
		t.Errorf("reading another profile: got %v", err)
	}
	if _, err := env.users.GetUser(ctx, user.ID.Hex(), adminActor); err != nil {
		t.Errorf("admin read: %v", err)
	}
}

func TestRemindersSentOnce(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	_, custActor := env.customer(t, "cust@b.com")
	tech, _ := env.technician(t, "tech@b.com")
	svc := env.service(t, "Dishwasher repair", 650)

	soon, _ := env.bookings.Create(ctx, custActor, CreateBookingInput{ServiceID: svc.ID.Hex(), Date: "2026-10-17", Time: "09:30", Address: "x"})
	later, _ := env.bookings.Create(ctx, custActor, CreateBookingInput{ServiceID: svc.ID.Hex(), Date: "2026-10-17", Time: "15:00", Address: "x"})
	for _, b := range []*models.Booking{soon, later} {
		if _, err := env.bookings.Assign(ctx, b.ID.Hex(), tech.ID.Hex(), adminActor); err != nil {
			t.Fatalf("Assign: %v", err)
		}
	}
	mailsBefore := len(env.mail.sent)

	n, err := env.reminders.SendDue(ctx)
	if err != nil || n != 1 {
		t.Fatalf("SendDue = %d, %v; want 1", n, err)
	}
	if len(env.mail.sent) != mailsBefore+1 {
		t.Errorf("reminder mails = %d", len(env.mail.sent)-mailsBefore)
	}
	if n, _ := env.reminders.SendDue(ctx); n != 0 {
		t.Errorf("second sweep reminded %d bookings", n)
	}
}

func TestReminderScheduleValidation(t *testing.T) {
	env := newTestEnv(t)
	if err := env.reminders.Start("not a schedule"); err == nil {
		t.Fatal("expected invalid schedule error")
	}
	if err := env.reminders.Start("*/15 * * * *"); err != nil {
		t.Fatalf("Start: %v", err)
	}
	env.reminders.Stop()
}

func TestReceiptAndStats(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	_, custActor := env.customer(t, "cust@b.com")
	_, otherActor := env.customer(t, "other@b.com")
	svc := env.service(t, "Fan repair", 150)
	b, _ := env.bookings.Create(ctx, custActor, CreateBookingInput{ServiceID: svc.ID.Hex(), Date: "2026-10-18", Time: "12:00", Address: "7 Hill View"})

	_, pdf, err := env.receipts.Generate(ctx, b.ID.Hex(), custActor)
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if !bytes.HasPrefix(pdf, []byte("%PDF")) {
		t.Errorf("receipt is not a PDF")
	}
	if _, _, err := env.receipts.Generate(ctx, b.ID.Hex(), otherActor); !errors.Is(err, ErrForbidden) {
		t.Errorf("other customer receipt: got %v", err)
	}

	stats, err := env.admin.Stats(ctx)
	if err != nil {
		t.Fatalf("Stats: %v", err)
	}
	if stats.Users != 2 || stats.ActiveServices != 1 || stats.Bookings != 1 || stats.ByStatus[models.BookingPending] != 1 {
		t.Errorf("unexpected stats %+v", stats)
	}
}
