package services

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"reservation-system/internal/authz"
	"reservation-system/internal/entities"
	"reservation-system/internal/lifecycle"
	"reservation-system/internal/locker"
	"reservation-system/internal/repositories"
	"reservation-system/pkg/calendar"
	"reservation-system/pkg/config"
	apperrors "reservation-system/pkg/errors"
	"reservation-system/pkg/eventbus"
	"reservation-system/pkg/types"
	"reservation-system/pkg/utils"
)

const (
	roleManager    = "MANAGER"
	roleSupervisor = "SUPERVISOR"
)

// memStore - общее состояние фейковых репозиториев. Сущности хранятся по значению,
// поэтому изменения видны только после Update.
type memStore struct {
	mu            sync.Mutex
	nextID        uint64
	seq           time.Time
	equipment     map[uint64]entities.Equipment
	reservations  map[uint64]entities.Reservation
	users         map[uint64]entities.User
	changeLog     []entities.ChangeLogEntry
	notifications []entities.Notification

	// Управление ListHoldings в тестах обслуживания.
	holdingsErr     error
	holdingsGate    chan struct{}
	holdingsEntered chan struct{}
	enteredOnce     sync.Once
}

func newMemStore() *memStore {
	return &memStore{
		nextID:       100,
		seq:          time.Date(2025, time.January, 1, 0, 0, 0, 0, time.UTC),
		equipment:    make(map[uint64]entities.Equipment),
		reservations: make(map[uint64]entities.Reservation),
		users:        make(map[uint64]entities.User),
	}
}

func (m *memStore) id() uint64 {
	m.nextID++
	return m.nextID
}

func (m *memStore) tick() time.Time {
	m.seq = m.seq.Add(time.Second)
	return m.seq
}

func (m *memStore) addUser(id uint64, fio, role string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.users[id] = entities.User{ID: id, Fio: fio, Role: role}
}

func (m *memStore) addEquipment(e entities.Equipment) uint64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	if e.ID == 0 {
		e.ID = m.id()
	}
	if e.State == "" {
		e.State = lifecycle.StateFree
	}
	m.equipment[e.ID] = e
	return e.ID
}

func (m *memStore) addReservation(r entities.Reservation) uint64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	if r.ID == 0 {
		r.ID = m.id()
	}
	if r.CreatedAt.IsZero() {
		r.CreatedAt = m.tick()
	}
	m.reservations[r.ID] = r
	return r.ID
}

func (m *memStore) eq(id uint64) entities.Equipment {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.equipment[id]
}

func (m *memStore) res(id uint64) entities.Reservation {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.reservations[id]
}

func (m *memStore) notificationsOf(typ string) []entities.Notification {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []entities.Notification
	for _, n := range m.notifications {
		if n.Type == typ {
			out = append(out, n)
		}
	}
	return out
}

func (m *memStore) changeLogFor(equipmentID uint64) []entities.ChangeLogEntry {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []entities.ChangeLogEntry
	for _, c := range m.changeLog {
		if c.EquipmentID == equipmentID {
			out = append(out, c)
		}
	}
	return out
}

func (m *memStore) sortedReservations(equipmentID uint64, keep func(entities.Reservation) bool) []*entities.Reservation {
	var out []*entities.Reservation
	for _, r := range m.reservations {
		if r.EquipmentID == equipmentID && keep(r) {
			cp := r
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out
}

// --- транзакции ---

type passTxManager struct{}

func (passTxManager) RunInTransaction(_ context.Context, fn func(tx pgx.Tx) error) error {
	return fn(nil)
}

// --- оборудование ---

type fakeEquipmentRepo struct{ m *memStore }

func (r fakeEquipmentRepo) FindByID(_ context.Context, _ pgx.Tx, id uint64) (*entities.Equipment, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	e, ok := r.m.equipment[id]
	if !ok {
		return nil, apperrors.ErrNotFound
	}
	return &e, nil
}

func (r fakeEquipmentRepo) FindByIDForUpdate(ctx context.Context, tx pgx.Tx, id uint64) (*entities.Equipment, error) {
	return r.FindByID(ctx, tx, id)
}

func (r fakeEquipmentRepo) List(_ context.Context, filter types.Filter) ([]*entities.Equipment, uint64, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	state, _ := filter.Filter["state"].(string)
	var out []*entities.Equipment
	for _, e := range r.m.equipment {
		if state != "" && string(e.State) != state {
			continue
		}
		cp := e
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, uint64(len(out)), nil
}

func (r fakeEquipmentRepo) Create(_ context.Context, _ pgx.Tx, e *entities.Equipment) (uint64, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	e.ID = r.m.id()
	r.m.equipment[e.ID] = *e
	return e.ID, nil
}

func (r fakeEquipmentRepo) Update(_ context.Context, _ pgx.Tx, e *entities.Equipment) error {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	if _, ok := r.m.equipment[e.ID]; !ok {
		return apperrors.ErrNotFound
	}
	r.m.equipment[e.ID] = *e
	return nil
}

func (r fakeEquipmentRepo) ListHoldings(_ context.Context, state lifecycle.State, status entities.ReservationStatus) ([]entities.Holding, error) {
	if r.m.holdingsGate != nil {
		r.m.enteredOnce.Do(func() { close(r.m.holdingsEntered) })
		<-r.m.holdingsGate
	}
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	if r.m.holdingsErr != nil {
		return nil, r.m.holdingsErr
	}
	var out []entities.Holding
	for _, e := range r.m.equipment {
		if e.State != state || e.DeadlineDate == nil {
			continue
		}
		list := r.m.sortedReservations(e.ID, func(res entities.Reservation) bool { return res.Status == status })
		if len(list) == 0 {
			continue
		}
		out = append(out, entities.Holding{Equipment: e, Reservation: *list[0]})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Equipment.ID < out[j].Equipment.ID })
	return out, nil
}

// --- заявки ---

type fakeReservationRepo struct{ m *memStore }

func (r fakeReservationRepo) Create(_ context.Context, _ pgx.Tx, res *entities.Reservation) (uint64, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	res.ID = r.m.id()
	res.CreatedAt = r.m.tick()
	res.UpdatedAt = res.CreatedAt
	r.m.reservations[res.ID] = *res
	return res.ID, nil
}

func (r fakeReservationRepo) FindByID(_ context.Context, _ pgx.Tx, id uint64) (*entities.Reservation, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	res, ok := r.m.reservations[id]
	if !ok {
		return nil, apperrors.ErrNotFound
	}
	return &res, nil
}

func (r fakeReservationRepo) ListActiveForUpdate(_ context.Context, _ pgx.Tx, equipmentID uint64) ([]*entities.Reservation, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	return r.m.sortedReservations(equipmentID, func(res entities.Reservation) bool { return res.IsActive() }), nil
}

func (r fakeReservationRepo) ListByEquipment(_ context.Context, equipmentID uint64) ([]*entities.Reservation, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	return r.m.sortedReservations(equipmentID, func(entities.Reservation) bool { return true }), nil
}

func (r fakeReservationRepo) Update(_ context.Context, _ pgx.Tx, res *entities.Reservation) error {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	if res.Status == entities.ReservationApproved {
		for _, other := range r.m.reservations {
			if other.ID != res.ID && other.EquipmentID == res.EquipmentID && other.Status == entities.ReservationApproved {
				return apperrors.ErrConflict
			}
		}
	}
	r.m.reservations[res.ID] = *res
	return nil
}

// --- пользователи ---

type fakeUserRepo struct{ m *memStore }

func (r fakeUserRepo) FindByID(_ context.Context, _ pgx.Tx, id uint64) (*entities.User, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	u, ok := r.m.users[id]
	if !ok {
		return nil, apperrors.ErrNotFound
	}
	return &u, nil
}

func (r fakeUserRepo) FindByRoles(_ context.Context, roles []string) ([]entities.User, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	var out []entities.User
	for _, u := range r.m.users {
		for _, role := range roles {
			if u.Role == role {
				out = append(out, u)
			}
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (r fakeUserRepo) Create(_ context.Context, u *entities.User) (*entities.User, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	u.ID = r.m.id()
	r.m.users[u.ID] = *u
	return u, nil
}

// --- журнал ---

type fakeChangeLogRepo struct{ m *memStore }

func (r fakeChangeLogRepo) Append(_ context.Context, _ pgx.Tx, entries ...entities.ChangeLogEntry) error {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	for _, e := range entries {
		e.ID = r.m.id()
		e.CreatedAt = r.m.tick()
		r.m.changeLog = append(r.m.changeLog, e)
	}
	return nil
}

func (r fakeChangeLogRepo) ListByEquipment(_ context.Context, equipmentID uint64) ([]entities.ChangeLogEntry, error) {
	return r.m.changeLogFor(equipmentID), nil
}

// --- уведомления ---

type fakeNotificationRepo struct {
	m   *memStore
	now func() time.Time
}

func (r fakeNotificationRepo) CreateBatch(_ context.Context, items []*entities.Notification) error {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	for _, n := range items {
		n.ID = r.m.id()
		n.CreatedAt = r.now()
		r.m.notifications = append(r.m.notifications, *n)
	}
	return nil
}

func (r fakeNotificationRepo) Exists(_ context.Context, f repositories.NotificationSeenFilter) (bool, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	for _, n := range r.m.notifications {
		if n.RecipientID != f.RecipientID || n.Type != f.Type || n.ReferenceID == nil || *n.ReferenceID != f.ReferenceID {
			continue
		}
		if f.Message != nil && n.Message != *f.Message {
			continue
		}
		if f.Since != nil && n.CreatedAt.Before(*f.Since) {
			continue
		}
		return true, nil
	}
	return false, nil
}

func (r fakeNotificationRepo) ListForRecipient(_ context.Context, recipientID uint64, _ types.Filter) ([]entities.Notification, uint64, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	var out []entities.Notification
	for _, n := range r.m.notifications {
		if n.RecipientID == recipientID {
			out = append(out, n)
		}
	}
	return out, uint64(len(out)), nil
}

func (r fakeNotificationRepo) MarkRead(_ context.Context, id, recipientID uint64) error {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	for i, n := range r.m.notifications {
		if n.ID == id && n.RecipientID == recipientID {
			r.m.notifications[i].IsRead = true
			return nil
		}
	}
	return apperrors.ErrNotFound
}

// failingNotifier имитирует недоступный канал доставки.
type failingNotifier struct{ calls int }

func (f *failingNotifier) Notify(context.Context, NotifyRequest) error {
	f.calls++
	return apperrors.ErrInternalServer
}

func (f *failingNotifier) Seen(context.Context, repositories.NotificationSeenFilter) (bool, error) {
	return false, nil
}

// --- сборка ---

// fixedNow - понедельник 10 марта 2025, 10:00 по Гуаякилю.
var testLoc = mustLoadLocation("America/Guayaquil")

var fixedNow = time.Date(2025, time.March, 10, 10, 0, 0, 0, testLoc)

func mustLoadLocation(name string) *time.Location {
	loc, err := time.LoadLocation(name)
	if err != nil {
		panic(err)
	}
	return loc
}

type testEnv struct {
	store        *memStore
	rules        *Rules
	now          time.Time
	notifier     NotificationServiceInterface
	reservations ReservationServiceInterface
	equipment    EquipmentServiceInterface
	maintenance  MaintenanceServiceInterface
	locker       locker.Locker
}

func newTestEnv() *testEnv {
	env := &testEnv{store: newMemStore(), now: fixedNow}
	logger := zap.NewNop()

	env.rules = &Rules{
		Calendar:              calendar.New(testLoc, calendar.DefaultHolidays...),
		Policy:                authz.NewPolicy([]string{roleSupervisor}),
		ReserveDays:           7,
		SeparationDays:        59,
		ApprovalWindowDays:    7,
		SeparatedWarningDays:  10,
		ReservedWarningDays:   2,
		ReservedWarningWindow: 3,
		Now:                   func() time.Time { return env.now },
	}

	m := env.store
	equipmentRepo := fakeEquipmentRepo{m}
	reservationRepo := fakeReservationRepo{m}
	userRepo := fakeUserRepo{m}
	changeLogRepo := fakeChangeLogRepo{m}
	notificationRepo := fakeNotificationRepo{m: m, now: env.rules.Now}

	directory := NewOversightDirectory(userRepo, repositories.NewMemoryCacheRepository(time.Minute),
		[]string{roleSupervisor}, time.Minute, logger)
	env.notifier = NewNotificationService(notificationRepo, directory, eventbus.New(logger), logger)
	promoter := NewQueuePromoter(equipmentRepo, reservationRepo, userRepo, changeLogRepo, env.rules, logger)

	env.reservations = NewReservationService(passTxManager{}, equipmentRepo, reservationRepo, userRepo,
		changeLogRepo, promoter, env.notifier, env.rules, logger)
	env.equipment = NewEquipmentService(passTxManager{}, equipmentRepo, reservationRepo, changeLogRepo,
		env.notifier, env.rules, logger)

	env.locker = locker.NewMemoryLeaseLocker(time.Minute)
	env.maintenance = NewMaintenanceService(env.locker, passTxManager{}, equipmentRepo, reservationRepo,
		promoter, env.notifier, directory, nil, env.rules,
		config.MaintenanceConfig{LockKey: "reservation-maintenance"}, logger)
	return env
}

func (env *testEnv) as(id uint64, role string) context.Context {
	return utils.WithActor(context.Background(), utils.Actor{ID: id, Role: role})
}

func (env *testEnv) today() time.Time {
	return env.rules.Today()
}

// dbDate - дата так, как её возвращает колонка DATE.
func dbDate(t time.Time) *time.Time {
	d := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
	return &d
}
