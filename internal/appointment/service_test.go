package appointment

import (
	"context"
	"sort"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rafaelminatto1/fisioflow-scheduling/internal/config"
	"github.com/rafaelminatto1/fisioflow-scheduling/internal/scheduling"
)

// Tuesday 2026-09-01 06:00 is "now" for every service test.
var testNow = time.Date(2026, time.September, 1, 6, 0, 0, 0, time.UTC)

func septAt(day, hour, min int) time.Time {
	return time.Date(2026, time.September, day, hour, min, 0, 0, time.UTC)
}

// fakeRepo is an in-memory Repository for exercising the service without
// Postgres.
type fakeRepo struct {
	patients   map[uuid.UUID]*Patient
	therapists map[uuid.UUID]*Therapist
	appts      map[uuid.UUID]*Appointment
	events     []EventLog
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{
		patients:   make(map[uuid.UUID]*Patient),
		therapists: make(map[uuid.UUID]*Therapist),
		appts:      make(map[uuid.UUID]*Appointment),
	}
}

func (f *fakeRepo) addPatient() uuid.UUID {
	id := uuid.New()
	f.patients[id] = &Patient{ID: id, Name: "patient"}
	return id
}

func (f *fakeRepo) addTherapist() uuid.UUID {
	id := uuid.New()
	f.therapists[id] = &Therapist{ID: id, Name: "therapist"}
	return id
}

func (f *fakeRepo) GetPatientByID(_ context.Context, id uuid.UUID) (*Patient, error) {
	if p, ok := f.patients[id]; ok {
		return p, nil
	}
	return nil, ErrPatientNotFound
}

func (f *fakeRepo) GetTherapistByID(_ context.Context, id uuid.UUID) (*Therapist, error) {
	if t, ok := f.therapists[id]; ok {
		return t, nil
	}
	return nil, ErrTherapistNotFound
}

func (f *fakeRepo) GetAppointmentByID(_ context.Context, id uuid.UUID) (*Appointment, error) {
	if a, ok := f.appts[id]; ok {
		snapshot := *a
		return &snapshot, nil
	}
	return nil, ErrAppointmentNotFound
}

func (f *fakeRepo) ListByPatient(_ context.Context, patientID uuid.UUID) ([]scheduling.Appointment, error) {
	var out []scheduling.Appointment
	for _, a := range f.appts {
		if a.PatientID == patientID {
			out = append(out, a.Appointment)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].StartTime.Before(out[j].StartTime) })
	return out, nil
}

func (f *fakeRepo) ListWindow(_ context.Context, from, to time.Time, therapistID *uuid.UUID) ([]scheduling.Appointment, error) {
	var out []scheduling.Appointment
	for _, a := range f.appts {
		if !a.StartTime.Before(to) || !a.EndTime.After(from) {
			continue
		}
		if therapistID != nil && a.TherapistID != *therapistID {
			continue
		}
		out = append(out, a.Appointment)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].StartTime.Before(out[j].StartTime) })
	return out, nil
}

func (f *fakeRepo) InsertAppointments(_ context.Context, appts []scheduling.Appointment) error {
	for _, a := range appts {
		f.appts[a.ID] = &Appointment{Appointment: a, CreatedAt: testNow, UpdatedAt: testNow}
	}
	return nil
}

func (f *fakeRepo) UpdateStatus(_ context.Context, id uuid.UUID, from, to scheduling.Status) (*Appointment, error) {
	a, ok := f.appts[id]
	if !ok || a.Status != from {
		return nil, ErrAppointmentNotFound
	}
	a.Status = to
	snapshot := *a
	return &snapshot, nil
}

func (f *fakeRepo) CancelSeriesFrom(_ context.Context, seriesID uuid.UUID, pivot time.Time) (int64, error) {
	var n int64
	for _, a := range f.appts {
		if a.SeriesID == nil || *a.SeriesID != seriesID {
			continue
		}
		if a.Status == scheduling.StatusScheduled && !a.StartTime.Before(pivot) {
			a.Status = scheduling.StatusCanceled
			n++
		}
	}
	return n, nil
}

func (f *fakeRepo) FindElapsedScheduled(_ context.Context, before time.Time) ([]scheduling.Appointment, error) {
	var out []scheduling.Appointment
	for _, a := range f.appts {
		if a.Status == scheduling.StatusScheduled && a.EndTime.Before(before) {
			out = append(out, a.Appointment)
		}
	}
	return out, nil
}

func (f *fakeRepo) InsertEvent(_ context.Context, ev EventLog) error {
	f.events = append(f.events, ev)
	return nil
}

// fakeLocker hands the lock straight to fn; before, when set, runs first
// to simulate a concurrent writer sneaking in ahead of the critical
// section.
type fakeLocker struct {
	before func()
}

func (l *fakeLocker) WithTherapistLock(ctx context.Context, _ uuid.UUID, fn func(ctx context.Context) error) error {
	if l.before != nil {
		l.before()
	}
	return fn(ctx)
}

func newTestService(repo *fakeRepo, locker *fakeLocker) *Service {
	cfg := config.Config{
		Scheduling:      scheduling.DefaultConfig(),
		CompletionGrace: 24 * time.Hour,
	}
	svc := NewService(repo, locker, cfg)
	svc.clock = func() time.Time { return testNow }
	return svc
}

func draftFor(patientID, therapistID uuid.UUID, start time.Time) scheduling.Appointment {
	return scheduling.Appointment{
		PatientID:   patientID,
		TherapistID: therapistID,
		StartTime:   start,
		EndTime:     start.Add(time.Hour),
		Type:        scheduling.TypeSession,
	}
}

func TestBookSingleAppointment(t *testing.T) {
	repo := newFakeRepo()
	svc := newTestService(repo, &fakeLocker{})

	draft := draftFor(repo.addPatient(), repo.addTherapist(), septAt(1, 10, 0))

	instances, res, err := svc.Book(context.Background(), draft)
	require.NoError(t, err)
	assert.True(t, res.Valid())
	require.Len(t, instances, 1)
	assert.Len(t, repo.appts, 1)
	assert.Equal(t, scheduling.StatusScheduled, instances[0].Status)

	require.Len(t, repo.events, 1)
	assert.Equal(t, EventAppointmentBooked, repo.events[0].EventType)
}

func TestBookSeries(t *testing.T) {
	repo := newFakeRepo()
	svc := newTestService(repo, &fakeLocker{})

	occurrences := 6
	draft := draftFor(repo.addPatient(), repo.addTherapist(), septAt(1, 10, 0))
	draft.Recurrence = &scheduling.RecurrenceRule{
		Type:        scheduling.RecurrenceWeekly,
		Interval:    1,
		Occurrences: &occurrences,
	}

	instances, res, err := svc.Book(context.Background(), draft)
	require.NoError(t, err)
	assert.True(t, res.Valid())
	require.Len(t, instances, 6)
	assert.Len(t, repo.appts, 6)

	series := instances[0].SeriesID
	require.NotNil(t, series)
	for _, inst := range instances {
		require.NotNil(t, inst.SeriesID)
		assert.Equal(t, *series, *inst.SeriesID)
	}

	require.Len(t, repo.events, 1)
	assert.Equal(t, EventSeriesBooked, repo.events[0].EventType)
}

func TestBookRejectedByVerdict(t *testing.T) {
	repo := newFakeRepo()
	svc := newTestService(repo, &fakeLocker{})

	draft := draftFor(repo.addPatient(), repo.addTherapist(), septAt(6, 10, 0)) // Sunday

	_, res, err := svc.Book(context.Background(), draft)
	require.ErrorIs(t, err, ErrValidationFailed)
	assert.False(t, res.Valid())
	assert.Empty(t, repo.appts, "nothing persisted on a dirty verdict")
}

func TestBookRejectedOnExistingConflict(t *testing.T) {
	repo := newFakeRepo()
	svc := newTestService(repo, &fakeLocker{})

	patientID := repo.addPatient()
	therapistID := repo.addTherapist()

	first := draftFor(patientID, therapistID, septAt(1, 10, 0))
	_, _, err := svc.Book(context.Background(), first)
	require.NoError(t, err)

	second := draftFor(repo.addPatient(), therapistID, septAt(1, 10, 30))
	_, res, err := svc.Book(context.Background(), second)
	require.ErrorIs(t, err, ErrValidationFailed)
	assert.False(t, res.Valid())
	assert.Len(t, repo.appts, 1)
}

func TestBookLosesRaceInsideLock(t *testing.T) {
	repo := newFakeRepo()

	patientID := repo.addPatient()
	therapistID := repo.addTherapist()

	// A concurrent booking lands between the verdict and the lock.
	locker := &fakeLocker{before: func() {
		rival := draftFor(patientID, therapistID, septAt(1, 10, 0))
		rival.ID = uuid.New()
		rival.Status = scheduling.StatusScheduled
		_ = repo.InsertAppointments(context.Background(), []scheduling.Appointment{rival})
	}}
	svc := newTestService(repo, locker)

	draft := draftFor(repo.addPatient(), therapistID, septAt(1, 10, 0))
	_, _, err := svc.Book(context.Background(), draft)
	require.ErrorIs(t, err, ErrSlotTaken)
	assert.Len(t, repo.appts, 1, "only the rival booking survives")
}

func TestValidateDraftMalformedRule(t *testing.T) {
	repo := newFakeRepo()
	svc := newTestService(repo, &fakeLocker{})

	draft := draftFor(repo.addPatient(), repo.addTherapist(), septAt(1, 10, 0))
	draft.Recurrence = &scheduling.RecurrenceRule{Type: scheduling.RecurrenceWeekly, Interval: 0}

	res, instances, err := svc.ValidateDraft(context.Background(), draft)
	require.NoError(t, err, "a malformed rule is a verdict error, not a failure")
	assert.False(t, res.Valid())
	assert.Nil(t, instances)
}

func TestValidateDraftUnknownPatient(t *testing.T) {
	repo := newFakeRepo()
	svc := newTestService(repo, &fakeLocker{})

	draft := draftFor(uuid.New(), repo.addTherapist(), septAt(1, 10, 0))

	_, _, err := svc.ValidateDraft(context.Background(), draft)
	require.ErrorIs(t, err, ErrPatientNotFound)
}

func TestCancelLeavesSeriesSiblings(t *testing.T) {
	repo := newFakeRepo()
	svc := newTestService(repo, &fakeLocker{})

	occurrences := 4
	draft := draftFor(repo.addPatient(), repo.addTherapist(), septAt(1, 10, 0))
	draft.Recurrence = &scheduling.RecurrenceRule{
		Type:        scheduling.RecurrenceWeekly,
		Interval:    1,
		Occurrences: &occurrences,
	}

	instances, _, err := svc.Book(context.Background(), draft)
	require.NoError(t, err)

	canceled, err := svc.Cancel(context.Background(), instances[1].ID)
	require.NoError(t, err)
	assert.Equal(t, scheduling.StatusCanceled, canceled.Status)

	remaining := 0
	for _, a := range repo.appts {
		if a.Status == scheduling.StatusScheduled {
			remaining++
		}
	}
	assert.Equal(t, 3, remaining, "single-instance cancel never cascades")
}

func TestCancelOnlyScheduled(t *testing.T) {
	repo := newFakeRepo()
	svc := newTestService(repo, &fakeLocker{})

	draft := draftFor(repo.addPatient(), repo.addTherapist(), septAt(1, 10, 0))
	instances, _, err := svc.Book(context.Background(), draft)
	require.NoError(t, err)

	_, err = svc.Cancel(context.Background(), instances[0].ID)
	require.NoError(t, err)

	_, err = svc.Cancel(context.Background(), instances[0].ID)
	require.ErrorIs(t, err, ErrNotCancelable)
}

func TestCancelSeriesFromPivot(t *testing.T) {
	repo := newFakeRepo()
	svc := newTestService(repo, &fakeLocker{})

	occurrences := 4
	draft := draftFor(repo.addPatient(), repo.addTherapist(), septAt(1, 10, 0))
	draft.Recurrence = &scheduling.RecurrenceRule{
		Type:        scheduling.RecurrenceWeekly,
		Interval:    1,
		Occurrences: &occurrences,
	}

	instances, _, err := svc.Book(context.Background(), draft)
	require.NoError(t, err)

	// Pivot at the third occurrence: the first two stay.
	n, err := svc.CancelSeries(context.Background(), *instances[0].SeriesID, septAt(15, 0, 0))
	require.NoError(t, err)
	assert.EqualValues(t, 2, n)

	for _, inst := range instances[:2] {
		got, err := svc.GetAppointment(context.Background(), inst.ID)
		require.NoError(t, err)
		assert.Equal(t, scheduling.StatusScheduled, got.Status)
	}
	for _, inst := range instances[2:] {
		got, err := svc.GetAppointment(context.Background(), inst.ID)
		require.NoError(t, err)
		assert.Equal(t, scheduling.StatusCanceled, got.Status)
	}
}

func TestCompleteElapsed(t *testing.T) {
	repo := newFakeRepo()
	svc := newTestService(repo, &fakeLocker{})

	old := scheduling.Appointment{
		ID:          uuid.New(),
		PatientID:   repo.addPatient(),
		TherapistID: repo.addTherapist(),
		StartTime:   testNow.AddDate(0, 0, -3),
		EndTime:     testNow.AddDate(0, 0, -3).Add(time.Hour),
		Status:      scheduling.StatusScheduled,
		Type:        scheduling.TypeSession,
	}
	recent := old
	recent.ID = uuid.New()
	recent.StartTime = testNow.Add(-2 * time.Hour)
	recent.EndTime = testNow.Add(-1 * time.Hour)

	require.NoError(t, repo.InsertAppointments(context.Background(), []scheduling.Appointment{old, recent}))

	require.NoError(t, svc.CompleteElapsed(context.Background()))

	got, err := svc.GetAppointment(context.Background(), old.ID)
	require.NoError(t, err)
	assert.Equal(t, scheduling.StatusCompleted, got.Status)

	got, err = svc.GetAppointment(context.Background(), recent.ID)
	require.NoError(t, err)
	assert.Equal(t, scheduling.StatusScheduled, got.Status, "inside the grace period")
}

func TestQuickValidateService(t *testing.T) {
	repo := newFakeRepo()
	svc := newTestService(repo, &fakeLocker{})

	ok, msg := svc.QuickValidate(draftFor(uuid.New(), uuid.New(), septAt(1, 10, 0)))
	assert.True(t, ok)
	assert.Empty(t, msg)

	ok, msg = svc.QuickValidate(draftFor(uuid.New(), uuid.New(), septAt(6, 10, 0)))
	assert.False(t, ok)
	assert.NotEmpty(t, msg)
}
