package holdings

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bobmcallan/esgfolio/internal/models"
)

// --- mock implementations ---

// memRemote is an in-memory PortfolioRemote keyed by portfolio name.
type memRemote struct {
	mu         sync.Mutex
	portfolios []*models.Portfolio
	nextID     int

	getErr    error
	upsertErr error
	updateErr map[string]error
	deleteErr error

	gets, upserts, updates, deletes int
}

func newMemRemote() *memRemote {
	return &memRemote{updateErr: make(map[string]error)}
}

// seed adds a holding directly, bypassing the store.
func (m *memRemote) seed(name, isin string, aum float64) string {
	m.mu.Lock()
	defer m.mu.Unlock()
	p := m.find(name)
	if p == nil {
		p = &models.Portfolio{ID: strconv.Itoa(len(m.portfolios) + 1), Name: name}
		m.portfolios = append(m.portfolios, p)
	}
	m.nextID++
	id := strconv.Itoa(m.nextID)
	p.Holdings = append(p.Holdings, models.Holding{ID: id, ISIN: isin, CompanyName: "Company " + isin, AUMValue: models.Float(aum)})
	return id
}

func (m *memRemote) find(name string) *models.Portfolio {
	for _, p := range m.portfolios {
		if p.Name == name {
			return p
		}
	}
	return nil
}

func (m *memRemote) GetPortfolios(_ context.Context) ([]models.Portfolio, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.gets++
	if m.getErr != nil {
		return nil, m.getErr
	}
	out := make([]models.Portfolio, 0, len(m.portfolios))
	for _, p := range m.portfolios {
		out = append(out, *p.Clone())
	}
	return out, nil
}

func (m *memRemote) UpsertPortfolio(_ context.Context, name string, additions []models.Addition) (*models.Portfolio, error) {
	m.mu.Lock()
	m.upserts++
	if m.upsertErr != nil {
		m.mu.Unlock()
		return nil, m.upsertErr
	}
	m.mu.Unlock()
	for _, a := range additions {
		m.seed(name, a.Key, a.AUM)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.find(name).Clone(), nil
}

func (m *memRemote) UpdateHoldingAUM(_ context.Context, holdingID string, aum float64) (*models.Holding, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.updates++
	if err := m.updateErr[holdingID]; err != nil {
		return nil, err
	}
	for _, p := range m.portfolios {
		if h := p.Find(holdingID); h != nil {
			h.AUMValue = models.Float(aum)
			out := h.Clone()
			return &out, nil
		}
	}
	return nil, fmt.Errorf("holding %s not found", holdingID)
}

func (m *memRemote) DeleteHolding(_ context.Context, holdingID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.deletes++
	if m.deleteErr != nil {
		return m.deleteErr
	}
	for _, p := range m.portfolios {
		for i := range p.Holdings {
			if p.Holdings[i].ID == holdingID {
				p.Holdings = append(p.Holdings[:i], p.Holdings[i+1:]...)
				return nil
			}
		}
	}
	return fmt.Errorf("holding %s not found", holdingID)
}

// --- tests ---

func TestLoadPortfolios_ReplacesState(t *testing.T) {
	remote := newMemRemote()
	remote.seed("Portfolio 1", "INE002A01018", 40)
	remote.seed("Portfolio 2", "INE467B01029", 10)

	store := NewStore(remote, nil)
	got, err := store.LoadPortfolios(context.Background())
	require.NoError(t, err)
	require.Len(t, got, 2)

	assert.True(t, store.isLoaded())
	assert.Equal(t, []string{"Portfolio 1", "Portfolio 2"}, store.Names())
	assert.Equal(t, 40.0, store.CurrentTotal("Portfolio 1"))
}

func TestLoadPortfolios_FailureKeepsPriorState(t *testing.T) {
	remote := newMemRemote()
	remote.seed("Portfolio 1", "INE002A01018", 40)

	store := NewStore(remote, nil)
	_, err := store.LoadPortfolios(context.Background())
	require.NoError(t, err)

	remote.getErr = errors.New("connection reset")
	_, err = store.LoadPortfolios(context.Background())

	var fe *models.FetchError
	require.ErrorAs(t, err, &fe)
	assert.Len(t, store.Holdings("Portfolio 1"), 1)
}

func TestHoldings_ReturnsDeepCopy(t *testing.T) {
	remote := newMemRemote()
	remote.seed("Portfolio 1", "INE002A01018", 40)
	store := NewStore(remote, nil)
	_, err := store.LoadPortfolios(context.Background())
	require.NoError(t, err)

	hs := store.Holdings("Portfolio 1")
	*hs[0].AUMValue = 99

	assert.Equal(t, 40.0, store.Holdings("Portfolio 1")[0].Allocation())
}

func TestCommitAdditions_BudgetBoundary(t *testing.T) {
	tests := []struct {
		name    string
		current float64
		adding  float64
		wantErr bool
	}{
		{"exactly full", 90, 10, false},
		{"over by epsilon", 90, 10.0001, true},
		{"empty portfolio full batch", 0, 100, false},
		{"already full", 100, 0.01, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			remote := newMemRemote()
			if tt.current > 0 {
				remote.seed("Portfolio 1", "EXISTING", tt.current)
			}
			store := NewStore(remote, nil)
			_, err := store.LoadPortfolios(context.Background())
			require.NoError(t, err)

			_, err = store.CommitAdditions(context.Background(), "Portfolio 1",
				[]models.Addition{{Key: "INE002A01018", AUM: tt.adding}})

			if tt.wantErr {
				var ae *models.AllocationExceededError
				require.ErrorAs(t, err, &ae)
				assert.Equal(t, tt.current, ae.Current)
				assert.Equal(t, 0, remote.upserts, "no remote write expected")
				return
			}
			require.NoError(t, err)
			assert.Equal(t, 1, remote.upserts)
		})
	}
}

func TestCommitAdditions_RejectedBatchLeavesStoreUnchanged(t *testing.T) {
	remote := newMemRemote()
	remote.seed("Portfolio 1", "A", 50)
	remote.seed("Portfolio 1", "B", 40)
	store := NewStore(remote, nil)
	_, err := store.LoadPortfolios(context.Background())
	require.NoError(t, err)

	_, err = store.CommitAdditions(context.Background(), "Portfolio 1", []models.Addition{
		{Key: "C", AUM: 6},
		{Key: "D", AUM: 6},
	})

	var ae *models.AllocationExceededError
	require.ErrorAs(t, err, &ae)
	assert.Equal(t, 90.0, ae.Current)
	assert.Equal(t, 12.0, ae.Attempted)
	assert.Len(t, store.Holdings("Portfolio 1"), 2)
	assert.Equal(t, 0, remote.upserts)
}

func TestCommitAdditions_OutOfRangeRemoteRowsAreClamped(t *testing.T) {
	remote := newMemRemote()
	remote.seed("Portfolio 1", "INE002A01018", 90)
	remote.seed("Portfolio 1", "INE467B01029", -20)

	store := NewStore(remote, nil)
	_, err := store.LoadPortfolios(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 90.0, store.CurrentTotal("Portfolio 1"))
	assert.Equal(t, store.Stats("Portfolio 1").TotalAllocation, store.CurrentTotal("Portfolio 1"))

	_, err = store.CommitAdditions(context.Background(), "Portfolio 1", []models.Addition{{Key: "INE040A01034", AUM: 20}})
	var exceeded *models.AllocationExceededError
	require.ErrorAs(t, err, &exceeded)
	assert.Equal(t, 90.0, exceeded.Current)
	assert.Equal(t, 0, remote.upserts)
}

func TestCommitAdditions_PersistsAndReloads(t *testing.T) {
	remote := newMemRemote()
	store := NewStore(remote, nil)

	p, err := store.CommitAdditions(context.Background(), "Portfolio 3", []models.Addition{
		{Key: "INE002A01018", AUM: 25},
		{Key: "INE467B01029", AUM: 25},
	})
	require.NoError(t, err)
	require.NotNil(t, p)
	assert.Len(t, p.Holdings, 2)
	for _, h := range p.Holdings {
		assert.NotEmpty(t, h.ID)
	}
	assert.Equal(t, 50.0, store.CurrentTotal("Portfolio 3"))
	assert.Contains(t, store.Names(), "Portfolio 3")
	// initial lazy load plus reload after the write
	assert.Equal(t, 2, remote.gets)
}

func TestCommitAdditions_Validation(t *testing.T) {
	store := NewStore(newMemRemote(), nil)
	ctx := context.Background()

	var ve *models.ValidationError
	_, err := store.CommitAdditions(ctx, "Portfolio 1", nil)
	assert.ErrorAs(t, err, &ve)

	_, err = store.CommitAdditions(ctx, "  ", []models.Addition{{Key: "A", AUM: 1}})
	assert.ErrorAs(t, err, &ve)

	_, err = store.CommitAdditions(ctx, "Portfolio 1", []models.Addition{{Key: "", AUM: 1}})
	assert.ErrorAs(t, err, &ve)

	_, err = store.CommitAdditions(ctx, "Portfolio 1", []models.Addition{{Key: "A", AUM: 120}})
	assert.ErrorAs(t, err, &ve)
}

func TestCommitAdditions_PersistFailure(t *testing.T) {
	remote := newMemRemote()
	remote.upsertErr = errors.New("503 service unavailable")
	store := NewStore(remote, nil)

	_, err := store.CommitAdditions(context.Background(), "Portfolio 1", []models.Addition{{Key: "A", AUM: 10}})

	var pe *models.PersistError
	require.ErrorAs(t, err, &pe)
	assert.ErrorIs(t, err, remote.upsertErr)
	assert.Empty(t, store.Names())
}

func TestUpdateHoldingAllocation_ClampsAndUpdatesLocal(t *testing.T) {
	remote := newMemRemote()
	id := remote.seed("Portfolio 1", "A", 10)
	store := NewStore(remote, nil)
	_, err := store.LoadPortfolios(context.Background())
	require.NoError(t, err)

	h, err := store.UpdateHoldingAllocation(context.Background(), id, 150)
	require.NoError(t, err)
	assert.Equal(t, 100.0, h.Allocation())
	assert.Equal(t, 100.0, store.CurrentTotal("Portfolio 1"))
}

func TestUpdateHoldingAllocation_FailureLeavesLocalState(t *testing.T) {
	remote := newMemRemote()
	id := remote.seed("Portfolio 1", "A", 10)
	remote.updateErr[id] = errors.New("boom")
	store := NewStore(remote, nil)
	_, err := store.LoadPortfolios(context.Background())
	require.NoError(t, err)

	_, err = store.UpdateHoldingAllocation(context.Background(), id, 20)

	var pe *models.PersistError
	require.ErrorAs(t, err, &pe)
	assert.Equal(t, []string{id}, pe.Failed)
	assert.Equal(t, 10.0, store.CurrentTotal("Portfolio 1"))
}

func TestRemoveHolding_LastHoldingDropsPortfolioFromNames(t *testing.T) {
	remote := newMemRemote()
	id := remote.seed("Portfolio 1", "A", 10)
	remote.seed("Portfolio 2", "B", 10)
	store := NewStore(remote, nil)
	_, err := store.LoadPortfolios(context.Background())
	require.NoError(t, err)

	require.NoError(t, store.RemoveHolding(context.Background(), id))

	assert.Equal(t, []string{"Portfolio 2"}, store.Names())
	assert.Empty(t, store.Holdings("Portfolio 1"))
	assert.Equal(t, 1, remote.gets, "remove does not reload")
}

func TestRemoveHolding_Failure(t *testing.T) {
	remote := newMemRemote()
	id := remote.seed("Portfolio 1", "A", 10)
	remote.deleteErr = errors.New("forbidden")
	store := NewStore(remote, nil)
	_, err := store.LoadPortfolios(context.Background())
	require.NoError(t, err)

	err = store.RemoveHolding(context.Background(), id)

	var pe *models.PersistError
	require.ErrorAs(t, err, &pe)
	assert.Len(t, store.Holdings("Portfolio 1"), 1)
}

func TestStore_ConcurrentCommits_NeverExceedBudget(t *testing.T) {
	remote := newMemRemote()
	store := NewStore(remote, nil)
	_, err := store.LoadPortfolios(context.Background())
	require.NoError(t, err)

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, _ = store.CommitAdditions(context.Background(), "Portfolio 1",
				[]models.Addition{{Key: fmt.Sprintf("ISIN%02d", i), AUM: 10}})
		}(i)
	}
	wg.Wait()

	assert.Equal(t, 100.0, store.CurrentTotal("Portfolio 1"))
	assert.Equal(t, 10, remote.upserts)
}
