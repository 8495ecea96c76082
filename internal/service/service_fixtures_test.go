package service

import (
	"context"
	"database/sql"
	"fmt"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/jmoiron/sqlx/types"
	"github.com/lib/pq"
	"github.com/stretchr/testify/require"

	"github.com/jc96818/sayitschedule-sub004/internal/models"
)

// testWeekStart is a Monday.
const testWeekStart = "2026-08-31"

// --- Transaction providers ---

type txProviderMock struct {
	db   *sqlx.DB
	mock sqlmock.Sqlmock
}

func newTxProviderMock(t *testing.T) (txProvider, sqlmock.Sqlmock) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	sqlxdb := sqlx.NewDb(db, "sqlmock")
	t.Cleanup(func() { db.Close() })
	return &txProviderMock{db: sqlxdb, mock: mock}, mock
}

func (t *txProviderMock) BeginTxx(ctx context.Context, opts *sql.TxOptions) (*sqlx.Tx, error) {
	return t.db.BeginTxx(ctx, opts)
}

// --- Roster stubs ---

type ruleListerStub struct {
	rules    []models.Rule
	reviewed []string
}

func (s *ruleListerStub) ListActiveByOrg(ctx context.Context, orgID string) ([]models.Rule, error) {
	return s.rules, nil
}

func (s *ruleListerStub) MarkNeedsReview(ctx context.Context, exec sqlx.ExtContext, id string) error {
	s.reviewed = append(s.reviewed, id)
	return nil
}

type staffRosterStub struct {
	staff     []models.StaffMember
	overrides []models.AvailabilityOverride
}

func (s staffRosterStub) ListActiveByOrg(ctx context.Context, orgID string) ([]models.StaffMember, error) {
	return s.staff, nil
}

func (s staffRosterStub) ListOverridesForWeek(ctx context.Context, orgID, weekStart string) ([]models.AvailabilityOverride, error) {
	return s.overrides, nil
}

type clientRosterStub struct {
	clients []models.Client
}

func (s clientRosterStub) ListActiveByOrg(ctx context.Context, orgID string) ([]models.Client, error) {
	return s.clients, nil
}

type roomListerStub struct {
	rooms []models.Room
}

func (s roomListerStub) ListActiveByOrg(ctx context.Context, orgID string) ([]models.Room, error) {
	return s.rooms, nil
}

// --- Schedule and session stores ---

type scheduleStoreStub struct {
	items []models.Schedule
}

func (s *scheduleStoreStub) CreateVersioned(ctx context.Context, exec sqlx.ExtContext, schedule *models.Schedule) error {
	version := 0
	for _, item := range s.items {
		if item.OrgID == schedule.OrgID && item.WeekStart == schedule.WeekStart && item.Version > version {
			version = item.Version
		}
	}
	schedule.ID = fmt.Sprintf("sched-%d", len(s.items)+1)
	schedule.Version = version + 1
	s.items = append(s.items, *schedule)
	return nil
}

func (s *scheduleStoreStub) FindByID(ctx context.Context, id string) (*models.Schedule, error) {
	for _, item := range s.items {
		if item.ID == id {
			found := item
			return &found, nil
		}
	}
	return nil, sql.ErrNoRows
}

func (s *scheduleStoreStub) FindLatestByOrgWeek(ctx context.Context, exec sqlx.ExtContext, orgID, weekStart string) (*models.Schedule, error) {
	var latest *models.Schedule
	for i := range s.items {
		item := s.items[i]
		if item.OrgID == orgID && item.WeekStart == weekStart {
			if latest == nil || item.Version > latest.Version {
				latest = &s.items[i]
			}
		}
	}
	if latest == nil {
		return nil, sql.ErrNoRows
	}
	found := *latest
	return &found, nil
}

func (s *scheduleStoreStub) ListByOrgWeek(ctx context.Context, orgID, weekStart string) ([]models.Schedule, error) {
	var out []models.Schedule
	for _, item := range s.items {
		if item.OrgID == orgID && item.WeekStart == weekStart {
			out = append(out, item)
		}
	}
	return out, nil
}

func (s *scheduleStoreStub) UpdateStatus(ctx context.Context, exec sqlx.ExtContext, id string, status models.ScheduleStatus, meta types.JSONText) error {
	for i := range s.items {
		if s.items[i].ID == id {
			s.items[i].Status = status
			if meta != nil {
				s.items[i].Meta = meta
			}
			return nil
		}
	}
	return sql.ErrNoRows
}

type sessionStoreStub struct {
	items  []models.Session
	seq    int
	locked []string
}

func (s *sessionStoreStub) LockSlot(ctx context.Context, exec sqlx.ExtContext, orgID, date string, staffID, roomID *string) error {
	s.locked = append(s.locked, slotLockKeys(orgID, date, staffID, roomID)...)
	return nil
}

func (s *sessionStoreStub) Create(ctx context.Context, exec sqlx.ExtContext, session *models.Session) error {
	if session.ID == "" {
		s.seq++
		session.ID = fmt.Sprintf("sess-%d", s.seq)
	}
	if session.Status == "" {
		session.Status = models.SessionStatusScheduled
	}
	s.items = append(s.items, *session)
	return nil
}

func (s *sessionStoreStub) BulkCreate(ctx context.Context, exec sqlx.ExtContext, sessions []models.Session) error {
	for i := range sessions {
		if sessions[i].ID == "" {
			s.seq++
			sessions[i].ID = fmt.Sprintf("sess-%d", s.seq)
		}
		s.items = append(s.items, sessions[i])
	}
	return nil
}

func (s *sessionStoreStub) FindByID(ctx context.Context, exec sqlx.ExtContext, id string) (*models.Session, error) {
	for _, item := range s.items {
		if item.ID == id {
			found := item
			return &found, nil
		}
	}
	return nil, sql.ErrNoRows
}

func (s *sessionStoreStub) ListBySchedule(ctx context.Context, exec sqlx.ExtContext, scheduleID string) ([]models.Session, error) {
	var out []models.Session
	for _, item := range s.items {
		if item.ScheduleID == scheduleID {
			out = append(out, item)
		}
	}
	return out, nil
}

func (s *sessionStoreStub) FindBlockingOverlaps(ctx context.Context, exec sqlx.ExtContext, orgID string, staffID, roomID *string, date, startTime, endTime string, excludeSessionID *string) ([]models.Session, error) {
	var out []models.Session
	for _, item := range s.items {
		if item.OrgID != orgID || item.Date != date || !item.BlocksSlot() {
			continue
		}
		if excludeSessionID != nil && item.ID == *excludeSessionID {
			continue
		}
		if !(item.StartTime < endTime && item.EndTime > startTime) {
			continue
		}
		matchStaff := staffID != nil && item.StaffID == *staffID
		matchRoom := roomID != nil && item.RoomID != nil && *item.RoomID == *roomID
		if matchStaff || matchRoom {
			out = append(out, item)
		}
	}
	return out, nil
}

func (s *sessionStoreStub) UpdateStatus(ctx context.Context, exec sqlx.ExtContext, id string, status models.SessionStatus) error {
	for i := range s.items {
		if s.items[i].ID == id {
			s.items[i].Status = status
			return nil
		}
	}
	return sql.ErrNoRows
}

func (s *sessionStoreStub) UpdateSlot(ctx context.Context, exec sqlx.ExtContext, id, staffID string, roomID *string, date, startTime, endTime string) error {
	for i := range s.items {
		if s.items[i].ID == id {
			s.items[i].StaffID = staffID
			s.items[i].RoomID = roomID
			s.items[i].Date = date
			s.items[i].StartTime = startTime
			s.items[i].EndTime = endTime
			return nil
		}
	}
	return sql.ErrNoRows
}

func (s *sessionStoreStub) Delete(ctx context.Context, exec sqlx.ExtContext, id string) error {
	for i := range s.items {
		if s.items[i].ID == id {
			s.items = append(s.items[:i], s.items[i+1:]...)
			return nil
		}
	}
	return sql.ErrNoRows
}

// --- Hold store ---

type holdStoreStub struct {
	items  []models.AppointmentHold
	seq    int
	locked []string
}

func (s *holdStoreStub) LockSlot(ctx context.Context, exec sqlx.ExtContext, orgID, date string, staffID, roomID *string) error {
	s.locked = append(s.locked, slotLockKeys(orgID, date, staffID, roomID)...)
	return nil
}

func slotLockKeys(orgID, date string, staffID, roomID *string) []string {
	var keys []string
	if staffID != nil {
		keys = append(keys, fmt.Sprintf("slot:%s:staff:%s:%s", orgID, *staffID, date))
	}
	if roomID != nil {
		keys = append(keys, fmt.Sprintf("slot:%s:room:%s:%s", orgID, *roomID, date))
	}
	return keys
}

func (s *holdStoreStub) Insert(ctx context.Context, exec sqlx.ExtContext, hold *models.AppointmentHold) error {
	if hold.ID == "" {
		s.seq++
		hold.ID = fmt.Sprintf("hold-%d", s.seq)
	}
	s.items = append(s.items, *hold)
	return nil
}

func (s *holdStoreStub) FindByID(ctx context.Context, exec sqlx.ExtContext, id string, forUpdate bool) (*models.AppointmentHold, error) {
	for _, item := range s.items {
		if item.ID == id {
			found := item
			return &found, nil
		}
	}
	return nil, sql.ErrNoRows
}

func (s *holdStoreStub) FindLiveOverlapping(ctx context.Context, exec sqlx.ExtContext, orgID string, staffID, roomID *string, date, startTime, endTime string, now time.Time) ([]models.AppointmentHold, error) {
	var out []models.AppointmentHold
	for _, item := range s.items {
		if item.OrgID != orgID || item.Date != date || !item.Live(now) {
			continue
		}
		if !(item.StartTime < endTime && item.EndTime > startTime) {
			continue
		}
		matchStaff := staffID != nil && item.StaffID != nil && *item.StaffID == *staffID
		matchRoom := roomID != nil && item.RoomID != nil && *item.RoomID == *roomID
		if matchStaff || matchRoom {
			out = append(out, item)
		}
	}
	return out, nil
}

func (s *holdStoreStub) Extend(ctx context.Context, exec sqlx.ExtContext, id string, expiresAt, now time.Time) error {
	for i := range s.items {
		if s.items[i].ID == id && s.items[i].Live(now) {
			s.items[i].ExpiresAt = expiresAt
			return nil
		}
	}
	return sql.ErrNoRows
}

func (s *holdStoreStub) Release(ctx context.Context, exec sqlx.ExtContext, id string, now time.Time) error {
	for i := range s.items {
		if s.items[i].ID == id && s.items[i].Live(now) {
			released := now
			s.items[i].ReleasedAt = &released
			return nil
		}
	}
	return sql.ErrNoRows
}

func (s *holdStoreStub) MarkConverted(ctx context.Context, exec sqlx.ExtContext, id, sessionID string) error {
	for i := range s.items {
		if s.items[i].ID == id && s.items[i].ReleasedAt == nil && s.items[i].ConvertedToSessionID == nil {
			s.items[i].ConvertedToSessionID = &sessionID
			return nil
		}
	}
	return sql.ErrNoRows
}

func (s *holdStoreStub) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	var kept []models.AppointmentHold
	var swept int64
	for _, item := range s.items {
		if !item.ExpiresAt.After(now) && item.ConvertedToSessionID == nil {
			swept++
			continue
		}
		kept = append(kept, item)
	}
	s.items = kept
	return swept, nil
}

// --- Misc stubs ---

type cacheStub struct {
	invalidated []string
}

func (s *cacheStub) Get(ctx context.Context, key string, dest interface{}) error {
	return sql.ErrNoRows
}

func (s *cacheStub) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	return nil
}

func (s *cacheStub) DeleteByPattern(ctx context.Context, pattern string) error {
	s.invalidated = append(s.invalidated, pattern)
	return nil
}

type auditWriterStub struct {
	entries []models.AuditLog
}

func (s *auditWriterStub) CreateAuditLog(ctx context.Context, log *models.AuditLog) error {
	s.entries = append(s.entries, *log)
	return nil
}

// --- Roster fixtures ---

func fixtureStaff(id, gender string, certs ...string) models.StaffMember {
	return models.StaffMember{
		ID:             id,
		OrgID:          "org-1",
		Name:           "Staff " + id,
		Gender:         gender,
		Certifications: pq.StringArray(certs),
		DefaultHours:   types.JSONText(`{"1":[{"start":"08:00","end":"12:00"}],"2":[{"start":"08:00","end":"12:00"}]}`),
		Status:         models.EntityStatusActive,
	}
}

func fixtureClient(id, gender string, required int) models.Client {
	return models.Client{
		ID:               id,
		OrgID:            "org-1",
		Name:             "Client " + id,
		Gender:           gender,
		RequiredSessions: required,
		Status:           models.EntityStatusActive,
	}
}

func fixtureRoom(id string) models.Room {
	return models.Room{ID: id, OrgID: "org-1", Name: "Room " + id, Status: models.EntityStatusActive}
}

func fixtureRule(id string, category models.RuleCategory, logic string) models.Rule {
	return models.Rule{
		ID:       id,
		OrgID:    "org-1",
		Category: category,
		Logic:    types.JSONText(logic),
		Priority: 1,
		Active:   true,
	}
}

func strPtr(v string) *string { return &v }
