package deals_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/odyssey-erp/odyssey-crm/internal/clients"
	"github.com/odyssey-erp/odyssey-crm/internal/clients/clientstest"
	"github.com/odyssey-erp/odyssey-crm/internal/deals"
	"github.com/odyssey-erp/odyssey-crm/internal/deals/dealstest"
	"github.com/odyssey-erp/odyssey-crm/internal/platform/httpx"
	"github.com/odyssey-erp/odyssey-crm/internal/shared"
	_ "github.com/odyssey-erp/odyssey-crm/testing"
)

var manager = &shared.Principal{UserID: 10, Username: "mona", Role: shared.RoleManager}

type countingCache struct {
	bumps int
	err   error
}

func (c *countingCache) Bump(context.Context) error {
	c.bumps++
	return c.err
}

type fixture struct {
	svc     *deals.Service
	repo    *dealstest.Memory
	clients *clientstest.Memory
	cache   *countingCache
	acme    int64
	globex  int64
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	cr := clientstest.New()
	cr.AddManager(clients.Manager{ID: 10, Username: "mona", FirstName: "Mona", LastName: "Ray", Role: shared.RoleManager})
	f := &fixture{clients: cr, repo: dealstest.New(cr), cache: &countingCache{}}
	f.acme = cr.Seed(clients.Client{Name: "Acme", Email: "buyer@acme.io", Manager: clients.Manager{ID: 10}})
	f.globex = cr.Seed(clients.Client{Name: "Globex", Email: "ops@globex.io", Manager: clients.Manager{ID: 10}})
	f.svc = deals.NewService(f.repo, f.cache, nil)
	return f
}

func (f *fixture) seedInProgress(clientID int64, n int) {
	for i := 0; i < n; i++ {
		f.repo.Seed(deals.Deal{Name: "busy", Status: deals.StatusInProgress, Amount: 10, Client: clients.Client{ID: clientID}})
	}
}

func TestCreateAssignsManagerAndDefaultsStatus(t *testing.T) {
	f := newFixture(t)

	d, err := f.svc.Create(context.Background(), manager, deals.NewDeal{Name: "Renewal", Amount: 500, ClientID: f.acme})
	require.NoError(t, err)
	assert.Equal(t, int64(10), d.ManagerID)
	assert.Equal(t, deals.StatusNew, d.Status)
	assert.Equal(t, "Acme", d.Client.Name)
	assert.Equal(t, 1, f.cache.bumps)
}

func TestCreateThirdInProgressSucceedsFourthFails(t *testing.T) {
	f := newFixture(t)
	f.seedInProgress(f.acme, 2)

	_, err := f.svc.Create(context.Background(), manager, deals.NewDeal{Name: "third", Status: deals.StatusInProgress, Amount: 1, ClientID: f.acme})
	require.NoError(t, err)

	_, err = f.svc.Create(context.Background(), manager, deals.NewDeal{Name: "fourth", Status: deals.StatusInProgress, Amount: 1, ClientID: f.acme})
	require.ErrorIs(t, err, httpx.ErrValidation)
	var fe *httpx.FieldErrors
	require.True(t, errors.As(err, &fe))
	assert.Contains(t, fe.Fields, "client")

	n, _ := f.repo.CountInProgressDeals(context.Background(), f.acme)
	assert.Equal(t, 3, n)
}

func TestCreateForFullClientFailsWhateverTheStatus(t *testing.T) {
	f := newFixture(t)
	f.seedInProgress(f.acme, 3)

	_, err := f.svc.Create(context.Background(), manager, deals.NewDeal{Name: "new", Amount: 1, ClientID: f.acme})
	assert.ErrorIs(t, err, httpx.ErrValidation)
	assert.Zero(t, f.cache.bumps)
}

func TestCreateValidatesAmountAndClient(t *testing.T) {
	f := newFixture(t)

	for _, amount := range []int{0, -5, deals.MaxAmount + 1} {
		_, err := f.svc.Create(context.Background(), manager, deals.NewDeal{Name: "x", Amount: amount, ClientID: f.acme})
		assert.ErrorIs(t, err, httpx.ErrValidation, "amount %d", amount)
	}

	_, err := f.svc.Create(context.Background(), manager, deals.NewDeal{Name: "x", Amount: 1, ClientID: 999})
	require.ErrorIs(t, err, httpx.ErrValidation)
	var fe *httpx.FieldErrors
	require.True(t, errors.As(err, &fe))
	assert.Contains(t, fe.Fields, "client_id")
}

func TestUpdateIntoProgressChecksCapacity(t *testing.T) {
	f := newFixture(t)
	f.seedInProgress(f.acme, 3)
	id := f.repo.Seed(deals.Deal{Name: "waiting", Status: deals.StatusNew, Amount: 5, Client: clients.Client{ID: f.acme}})

	prg := deals.StatusInProgress
	_, err := f.svc.Update(context.Background(), manager, id, deals.Changes{Status: &prg})
	require.ErrorIs(t, err, httpx.ErrValidation)
	stored, _ := f.repo.Snapshot(id)
	assert.Equal(t, deals.StatusNew, stored.Status)

	amount := 50
	d, err := f.svc.Update(context.Background(), manager, id, deals.Changes{Amount: &amount})
	require.NoError(t, err)
	assert.Equal(t, 50, d.Amount)
}

func TestUpdateMovingToFullClientFails(t *testing.T) {
	f := newFixture(t)
	f.seedInProgress(f.globex, 3)
	id := f.repo.Seed(deals.Deal{Name: "mine", Status: deals.StatusInProgress, Amount: 5, Client: clients.Client{ID: f.acme}})

	_, err := f.svc.Update(context.Background(), manager, id, deals.Changes{ClientID: &f.globex})
	assert.ErrorIs(t, err, httpx.ErrValidation)
}

func TestUpdateStayingInProgressSkipsCapacity(t *testing.T) {
	f := newFixture(t)
	f.seedInProgress(f.acme, 3)
	id := f.repo.Seed(deals.Deal{Name: "busy", Status: deals.StatusInProgress, Amount: 5, Client: clients.Client{ID: f.acme}})

	prg := deals.StatusInProgress
	name := "renamed"
	d, err := f.svc.Update(context.Background(), manager, id, deals.Changes{Status: &prg, Name: &name})
	require.NoError(t, err)
	assert.Equal(t, "renamed", d.Name)
}

func TestDeleteBumpsCacheAndSurvivesCacheFailure(t *testing.T) {
	f := newFixture(t)
	f.cache.err = errors.New("redis down")
	id := f.repo.Seed(deals.Deal{Name: "gone", Amount: 5, Client: clients.Client{ID: f.acme}})

	require.NoError(t, f.svc.Delete(context.Background(), id))
	assert.Equal(t, 1, f.cache.bumps)
	assert.ErrorIs(t, f.svc.Delete(context.Background(), id), httpx.ErrNotFound)
}
