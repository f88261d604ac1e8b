package session

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/bobmcallan/esgfolio/internal/models"
	"github.com/bobmcallan/esgfolio/internal/services/holdings"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

// --- mock implementations ---

// fakeRemote is a minimal in-memory PortfolioRemote for driving a real store.
type fakeRemote struct {
	mu        sync.Mutex
	portfolio models.Portfolio
	failIDs   map[string]bool
	patched   []string

	getStarted chan struct{}
	getRelease chan struct{}

	delay       time.Duration
	inFlight    atomic.Int32
	maxInFlight atomic.Int32
}

func newFakeRemote(allocs ...float64) *fakeRemote {
	r := &fakeRemote{portfolio: models.Portfolio{ID: "1", Name: "Portfolio 1"}, failIDs: make(map[string]bool)}
	for i, a := range allocs {
		id := strconv.Itoa(i + 1)
		r.portfolio.Holdings = append(r.portfolio.Holdings, models.Holding{
			ID:           id,
			CompanyName:  "Company " + id,
			ISIN:         fmt.Sprintf("INE%09d", i),
			AUMValue:     models.Float(a),
			ESGComposite: models.Float(60 + float64(i)*10),
		})
	}
	return r
}

func (r *fakeRemote) GetPortfolios(_ context.Context) ([]models.Portfolio, error) {
	r.mu.Lock()
	started, release := r.getStarted, r.getRelease
	r.getStarted, r.getRelease = nil, nil
	r.mu.Unlock()
	if release != nil {
		close(started)
		<-release
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	return []models.Portfolio{*r.portfolio.Clone()}, nil
}

func (r *fakeRemote) UpsertPortfolio(_ context.Context, _ string, _ []models.Addition) (*models.Portfolio, error) {
	return nil, errors.New("not used")
}

func (r *fakeRemote) UpdateHoldingAUM(_ context.Context, id string, aum float64) (*models.Holding, error) {
	n := r.inFlight.Add(1)
	defer r.inFlight.Add(-1)
	for {
		m := r.maxInFlight.Load()
		if n <= m || r.maxInFlight.CompareAndSwap(m, n) {
			break
		}
	}
	time.Sleep(r.delay)

	r.mu.Lock()
	defer r.mu.Unlock()
	r.patched = append(r.patched, id)
	if r.failIDs[id] {
		return nil, fmt.Errorf("patch %s: 500 internal server error", id)
	}
	h := r.portfolio.Find(id)
	if h == nil {
		return nil, fmt.Errorf("holding %s not found", id)
	}
	h.AUMValue = models.Float(aum)
	out := h.Clone()
	return &out, nil
}

func (r *fakeRemote) DeleteHolding(_ context.Context, _ string) error {
	return errors.New("not used")
}

// holdNextGet makes the next GetPortfolios signal started and wait for release.
func (r *fakeRemote) holdNextGet(started, release chan struct{}) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.getStarted, r.getRelease = started, release
}

func (r *fakeRemote) patchedIDs() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.patched...)
}

func setup(t *testing.T, allocs ...float64) (*Session, *holdings.Store, *fakeRemote) {
	t.Helper()
	remote := newFakeRemote(allocs...)
	store := holdings.NewStore(remote, nil)
	_, err := store.LoadPortfolios(context.Background())
	require.NoError(t, err)
	return New(store, nil), store, remote
}

// --- tests ---

func TestCancel_LeavesStoreUntouched(t *testing.T) {
	sess, store, remote := setup(t, 30, 20, 10)
	before := store.Holdings("Portfolio 1")

	require.NoError(t, sess.Begin("Portfolio 1"))
	require.NoError(t, sess.SetAllocation("1", 55))
	require.NoError(t, sess.SetAllocationText("2", "12.5"))
	assert.Equal(t, 55.0, sess.Working()[0].Allocation())

	require.NoError(t, sess.Cancel())

	assert.Equal(t, StateView, sess.State())
	assert.Equal(t, before, store.Holdings("Portfolio 1"))
	assert.Empty(t, remote.patchedIDs())
}

func TestBuffer_IsDeepCopyOfStore(t *testing.T) {
	sess, store, _ := setup(t, 30)
	require.NoError(t, sess.Begin("Portfolio 1"))

	w := sess.Working()
	*w[0].AUMValue = 99

	assert.Equal(t, 30.0, sess.Working()[0].Allocation())
	assert.Equal(t, 30.0, store.Holdings("Portfolio 1")[0].Allocation())
}

func TestToggle(t *testing.T) {
	sess, _, _ := setup(t, 30)

	st, err := sess.Toggle("Portfolio 1")
	require.NoError(t, err)
	assert.Equal(t, StateEditing, st)
	require.NoError(t, sess.SetAllocation("1", 40))

	st, err = sess.Toggle("Portfolio 1")
	require.NoError(t, err)
	assert.Equal(t, StateView, st)
	assert.Equal(t, 30.0, sess.Working()[0].Allocation())
}

func TestSwitchPortfolio_DiscardsBuffer(t *testing.T) {
	sess, _, _ := setup(t, 30)
	require.NoError(t, sess.Begin("Portfolio 1"))
	require.NoError(t, sess.SetAllocation("1", 80))

	require.NoError(t, sess.SwitchPortfolio("Portfolio 2"))
	assert.Equal(t, StateView, sess.State())
	assert.Equal(t, "Portfolio 2", sess.Active())

	require.NoError(t, sess.SwitchPortfolio("Portfolio 1"))
	assert.Equal(t, 30.0, sess.Working()[0].Allocation())
}

func TestSetAllocation_Rules(t *testing.T) {
	sess, _, _ := setup(t, 30, 20)

	assert.ErrorIs(t, sess.SetAllocation("1", 10), ErrNotEditing)

	require.NoError(t, sess.Begin("Portfolio 1"))
	require.NoError(t, sess.SetAllocation("1", 250))
	require.NoError(t, sess.SetAllocationText("2", "abc"))
	w := sess.Working()
	assert.Equal(t, 100.0, w[0].Allocation())
	assert.Equal(t, 0.0, w[1].Allocation())

	var ve *models.ValidationError
	assert.ErrorAs(t, sess.SetAllocation("99", 1), &ve)
}

func TestStats_ComputedOnBufferWhileEditing(t *testing.T) {
	sess, store, _ := setup(t, 60, 40)
	require.NoError(t, sess.Begin("Portfolio 1"))
	require.NoError(t, sess.SetAllocation("2", 0))

	assert.Equal(t, 60.0, sess.Stats().TotalAllocation)
	assert.Equal(t, 60.0, sess.Stats().AverageScore)
	assert.Equal(t, 100.0, store.Stats("Portfolio 1").TotalAllocation)
}

func TestSave_OverBudgetStaysEditing(t *testing.T) {
	sess, _, remote := setup(t, 50, 40)
	require.NoError(t, sess.Begin("Portfolio 1"))
	require.NoError(t, sess.SetAllocation("2", 50.0001))

	report, err := sess.Save(context.Background())

	var ae *models.AllocationExceededError
	require.ErrorAs(t, err, &ae)
	assert.Nil(t, report)
	assert.Equal(t, 90.0, ae.Current)
	assert.Equal(t, StateEditing, sess.State())
	assert.Empty(t, remote.patchedIDs())
}

func TestSave_WritesChangedHoldingsAndReturnsToView(t *testing.T) {
	sess, store, remote := setup(t, 30, 20, 10)
	require.NoError(t, sess.Begin("Portfolio 1"))
	require.NoError(t, sess.SetAllocation("1", 50))
	require.NoError(t, sess.SetAllocation("3", 25))

	report, err := sess.Save(context.Background())
	require.NoError(t, err)

	assert.ElementsMatch(t, []string{"1", "3"}, remote.patchedIDs())
	assert.Equal(t, []string{"1", "3"}, report.Succeeded)
	assert.Empty(t, report.Failed)
	assert.Equal(t, 95.0, report.Total)
	assert.Equal(t, StateView, sess.State())
	assert.Equal(t, 95.0, store.CurrentTotal("Portfolio 1"))
}

func TestSave_PartialFailureIsObservable(t *testing.T) {
	sess, store, remote := setup(t, 10, 10, 10)
	remote.failIDs["2"] = true

	require.NoError(t, sess.Begin("Portfolio 1"))
	require.NoError(t, sess.SetAllocation("1", 20))
	require.NoError(t, sess.SetAllocation("2", 20))
	require.NoError(t, sess.SetAllocation("3", 20))

	report, err := sess.Save(context.Background())

	var pe *models.PersistError
	require.ErrorAs(t, err, &pe)
	assert.Equal(t, []string{"2"}, pe.Failed)
	assert.Equal(t, []string{"1", "3"}, report.Succeeded)
	assert.Equal(t, StateEditing, sess.State())
	assert.Equal(t, 20.0, sess.Working()[1].Allocation(), "buffer intact")
	// no rollback of the holdings that did succeed
	assert.Equal(t, 50.0, store.CurrentTotal("Portfolio 1"))

	// retry only re-sends what failed
	remote.mu.Lock()
	remote.failIDs = map[string]bool{}
	remote.patched = nil
	remote.mu.Unlock()

	report, err = sess.Save(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"2"}, report.Succeeded)
	assert.Equal(t, []string{"2"}, remote.patchedIDs())
	assert.Equal(t, StateView, sess.State())
}

func TestSave_NotEditing(t *testing.T) {
	sess, _, _ := setup(t, 10)
	_, err := sess.Save(context.Background())
	assert.ErrorIs(t, err, ErrNotEditing)
}

func TestSave_BoundedConcurrency(t *testing.T) {
	allocs := make([]float64, 20)
	for i := range allocs {
		allocs[i] = 1
	}
	remote := newFakeRemote(allocs...)
	remote.delay = 5 * time.Millisecond
	store := holdings.NewStore(remote, nil)
	_, err := store.LoadPortfolios(context.Background())
	require.NoError(t, err)

	sess := New(store, nil, WithSaveConcurrency(2))
	require.NoError(t, sess.Begin("Portfolio 1"))
	for i := 1; i <= 20; i++ {
		require.NoError(t, sess.SetAllocation(strconv.Itoa(i), 2))
	}

	report, err := sess.Save(context.Background())
	require.NoError(t, err)
	assert.Len(t, report.Succeeded, 20)
	assert.Equal(t, 40.0, store.CurrentTotal("Portfolio 1"))
	assert.LessOrEqual(t, remote.maxInFlight.Load(), int32(2))
	assert.Positive(t, remote.maxInFlight.Load())
}

func TestSave_ReadersNotBlockedDuringReload(t *testing.T) {
	sess, store, remote := setup(t, 30, 20)
	require.NoError(t, sess.Begin("Portfolio 1"))
	require.NoError(t, sess.SetAllocation("1", 40))

	started := make(chan struct{})
	release := make(chan struct{})
	var once sync.Once
	unblock := func() { once.Do(func() { close(release) }) }
	defer unblock()
	remote.holdNextGet(started, release)

	done := make(chan error, 1)
	go func() {
		_, err := sess.Save(context.Background())
		done <- err
	}()

	<-started
	state := make(chan State, 1)
	go func() { state <- sess.State() }()
	select {
	case st := <-state:
		assert.Equal(t, StateView, st)
	case <-time.After(2 * time.Second):
		t.Fatal("State blocked while the store reloaded")
	}

	unblock()
	require.NoError(t, <-done)
	assert.Equal(t, 60.0, store.CurrentTotal("Portfolio 1"))
}
