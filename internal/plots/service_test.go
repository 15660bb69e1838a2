// ABOUTME: Tests for the plot aggregate service and its ownership policy
// ABOUTME: Runs against the in-memory MockStore with enforcement on and off

package plots

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/2389/fieldbook/internal/store"
)

type fixture struct {
	svc   *Service
	store *store.MockStore
	alice *store.Account
	bob   *store.Account
}

func newFixture(t *testing.T, enforce bool) *fixture {
	t.Helper()
	st := store.NewMockStore()
	f := &fixture{
		svc:   NewService(Config{Store: st, EnforceOwnership: enforce}),
		store: st,
		alice: createAccount(t, st, "alice@example.com"),
		bob:   createAccount(t, st, "bob@example.com"),
	}
	return f
}

func createAccount(t *testing.T, st store.Store, email string) *store.Account {
	t.Helper()
	a := &store.Account{
		FullName:     "Farmer",
		Email:        email,
		PhoneNumber:  "555-0100",
		PasswordHash: "hash",
	}
	require.NoError(t, st.CreateAccount(context.Background(), a))
	return a
}

func samplePlot(name string) *store.Plot {
	return &store.Plot{Name: name, Size: 1.2, Latitude: 10, Longitude: 20}
}

func ph(v float64) *float64 { return &v }

func TestCreatePlot_AssignsOwnerAndIgnoresInputIdentity(t *testing.T) {
	f := newFixture(t, true)
	ctx := context.Background()

	in := samplePlot("North")
	in.ID = "client-chosen"
	in.OwnerID = f.bob.ID
	in.Actions = []*store.Action{{ID: "smuggled"}}

	plot, err := f.svc.CreatePlot(ctx, f.alice.ID, in)
	require.NoError(t, err)
	assert.NotEqual(t, "client-chosen", plot.ID)
	assert.Equal(t, f.alice.ID, plot.OwnerID)
	assert.NotNil(t, plot.Actions)
	assert.Empty(t, plot.Actions)
	assert.False(t, plot.CreatedAt.IsZero())

	bobs, err := f.svc.ListPlots(ctx, f.bob.ID)
	require.NoError(t, err)
	assert.Empty(t, bobs)
}

func TestCreatePlot_Anonymous(t *testing.T) {
	f := newFixture(t, true)
	_, err := f.svc.CreatePlot(context.Background(), "", samplePlot("North"))
	assert.ErrorIs(t, err, ErrUnauthenticated)
}

func TestListPlots(t *testing.T) {
	f := newFixture(t, true)
	ctx := context.Background()

	plots, err := f.svc.ListPlots(ctx, f.alice.ID)
	require.NoError(t, err)
	assert.NotNil(t, plots, "empty list is not nil")

	_, err = f.svc.CreatePlot(ctx, f.alice.ID, samplePlot("A"))
	require.NoError(t, err)
	_, err = f.svc.CreatePlot(ctx, f.bob.ID, samplePlot("B"))
	require.NoError(t, err)

	plots, err = f.svc.ListPlots(ctx, f.alice.ID)
	require.NoError(t, err)
	require.Len(t, plots, 1)
	assert.Equal(t, "A", plots[0].Name)
}

func TestGetPlot_CrossOwner(t *testing.T) {
	tests := []struct {
		name    string
		enforce bool
		wantErr error
	}{
		{"ownership enforced", true, store.ErrNotFound},
		{"ownership not enforced", false, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t, tt.enforce)
			ctx := context.Background()

			plot, err := f.svc.CreatePlot(ctx, f.alice.ID, samplePlot("Alice's"))
			require.NoError(t, err)

			got, err := f.svc.GetPlot(ctx, f.bob.ID, plot.ID)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, plot.ID, got.ID)
		})
	}
}

func TestGetPlot_AnonymousRead(t *testing.T) {
	ctx := context.Background()

	f := newFixture(t, false)
	plot, err := f.svc.CreatePlot(ctx, f.alice.ID, samplePlot("Open"))
	require.NoError(t, err)
	_, err = f.svc.GetPlot(ctx, "", plot.ID)
	assert.NoError(t, err, "unenforced reads do not need a caller")

	f = newFixture(t, true)
	plot, err = f.svc.CreatePlot(ctx, f.alice.ID, samplePlot("Closed"))
	require.NoError(t, err)
	_, err = f.svc.GetPlot(ctx, "", plot.ID)
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestGetPlot_NotFound(t *testing.T) {
	f := newFixture(t, true)
	_, err := f.svc.GetPlot(context.Background(), f.alice.ID, "missing")
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestAddAction(t *testing.T) {
	f := newFixture(t, true)
	ctx := context.Background()
	plot, err := f.svc.CreatePlot(ctx, f.alice.ID, samplePlot("North"))
	require.NoError(t, err)

	date := time.Date(2024, 4, 10, 9, 0, 0, 0, time.FixedZone("PDT", -7*3600))
	action, err := f.svc.AddAction(ctx, f.alice.ID, plot.ID, &store.Action{
		ID:         "client-chosen",
		PlotID:     "some-other-plot",
		ActionDate: date,
		Details:    &store.SoilReading{PH: ph(6.2)},
	})
	require.NoError(t, err)
	assert.NotEqual(t, "client-chosen", action.ID)
	assert.Equal(t, plot.ID, action.PlotID)
	assert.True(t, action.ActionDate.Equal(date))
	assert.Equal(t, time.UTC, action.ActionDate.Location())

	got, err := f.svc.GetPlot(ctx, f.alice.ID, plot.ID)
	require.NoError(t, err)
	require.Len(t, got.Actions, 1)
	assert.Equal(t, store.KindSoilReading, got.Actions[0].Kind())
}

func TestAddAction_Validation(t *testing.T) {
	f := newFixture(t, true)
	ctx := context.Background()
	plot, err := f.svc.CreatePlot(ctx, f.alice.ID, samplePlot("North"))
	require.NoError(t, err)

	_, err = f.svc.AddAction(ctx, f.alice.ID, plot.ID, &store.Action{
		ActionDate: time.Now(),
		Details:    &store.SoilReading{PH: ph(15)},
	})
	assert.ErrorIs(t, err, store.ErrValidation)
}

func TestMutations_RequireOwnershipEvenWhenReadsAreOpen(t *testing.T) {
	f := newFixture(t, false)
	ctx := context.Background()

	plot, err := f.svc.CreatePlot(ctx, f.alice.ID, samplePlot("Alice's"))
	require.NoError(t, err)
	action, err := f.svc.AddAction(ctx, f.alice.ID, plot.ID, &store.Action{
		ActionDate: time.Now(),
		Details:    &store.Planting{CropType: "corn"},
	})
	require.NoError(t, err)

	_, err = f.svc.AddAction(ctx, f.bob.ID, plot.ID, &store.Action{
		ActionDate: time.Now(),
		Details:    &store.Watering{},
	})
	assert.ErrorIs(t, err, store.ErrNotFound)

	_, err = f.svc.DeletePlot(ctx, f.bob.ID, plot.ID)
	assert.ErrorIs(t, err, store.ErrNotFound)

	err = f.svc.DeleteAction(ctx, f.bob.ID, action.ID)
	assert.ErrorIs(t, err, store.ErrNotFound)

	_, err = f.svc.DeletePlot(ctx, "", plot.ID)
	assert.ErrorIs(t, err, ErrUnauthenticated)

	// Bob can still read it
	got, err := f.svc.GetAction(ctx, f.bob.ID, action.ID)
	require.NoError(t, err)
	assert.Equal(t, action.ID, got.ID)

	// Nothing changed
	p, err := f.svc.GetPlot(ctx, f.alice.ID, plot.ID)
	require.NoError(t, err)
	assert.Len(t, p.Actions, 1)
}

func TestGetAction_CrossOwnerEnforced(t *testing.T) {
	f := newFixture(t, true)
	ctx := context.Background()

	plot, err := f.svc.CreatePlot(ctx, f.alice.ID, samplePlot("Alice's"))
	require.NoError(t, err)
	action, err := f.svc.AddAction(ctx, f.alice.ID, plot.ID, &store.Action{
		ActionDate: time.Now(),
		Details:    &store.Harvesting{},
	})
	require.NoError(t, err)

	_, err = f.svc.GetAction(ctx, f.bob.ID, action.ID)
	assert.ErrorIs(t, err, store.ErrNotFound)
	_, err = f.svc.GetAction(ctx, "", action.ID)
	assert.ErrorIs(t, err, store.ErrNotFound)

	got, err := f.svc.GetAction(ctx, f.alice.ID, action.ID)
	require.NoError(t, err)
	assert.Equal(t, store.KindHarvesting, got.Kind())
}

func strPtr(v string) *string { return &v }

func TestUpdatePlot(t *testing.T) {
	f := newFixture(t, true)
	ctx := context.Background()

	plot, err := f.svc.CreatePlot(ctx, f.alice.ID, &store.Plot{
		Name: "North", Size: 1.2, Latitude: 10, Longitude: 20, SoilType: "loam",
	})
	require.NoError(t, err)

	updated, err := f.svc.UpdatePlot(ctx, f.alice.ID, plot.ID, PlotUpdate{
		Name: strPtr("North Terrace"),
		Size: ph(3.4),
	})
	require.NoError(t, err)
	assert.Equal(t, "North Terrace", updated.Name)
	assert.Equal(t, 3.4, updated.Size)
	assert.Equal(t, 10.0, updated.Latitude, "unset fields keep their value")
	assert.Equal(t, "loam", updated.SoilType)
	assert.Equal(t, f.alice.ID, updated.OwnerID)

	stored, err := f.store.GetPlot(ctx, plot.ID)
	require.NoError(t, err)
	assert.Equal(t, "North Terrace", stored.Name)

	_, err = f.svc.UpdatePlot(ctx, f.alice.ID, plot.ID, PlotUpdate{SoilType: strPtr("")})
	require.NoError(t, err)
	stored, err = f.store.GetPlot(ctx, plot.ID)
	require.NoError(t, err)
	assert.Empty(t, stored.SoilType, "an explicit empty string clears the field")
}

func TestUpdatePlot_OwnerOnly(t *testing.T) {
	for _, enforce := range []bool{true, false} {
		f := newFixture(t, enforce)
		ctx := context.Background()

		plot, err := f.svc.CreatePlot(ctx, f.alice.ID, samplePlot("North"))
		require.NoError(t, err)

		_, err = f.svc.UpdatePlot(ctx, f.bob.ID, plot.ID, PlotUpdate{Name: strPtr("Taken")})
		assert.ErrorIs(t, err, store.ErrNotFound, "enforce=%v", enforce)

		_, err = f.svc.UpdatePlot(ctx, "", plot.ID, PlotUpdate{Name: strPtr("Taken")})
		assert.ErrorIs(t, err, ErrUnauthenticated)

		stored, err := f.store.GetPlot(ctx, plot.ID)
		require.NoError(t, err)
		assert.Equal(t, "North", stored.Name)
	}
}

func TestUpdatePlot_Validation(t *testing.T) {
	f := newFixture(t, true)
	ctx := context.Background()

	plot, err := f.svc.CreatePlot(ctx, f.alice.ID, samplePlot("North"))
	require.NoError(t, err)

	_, err = f.svc.UpdatePlot(ctx, f.alice.ID, plot.ID, PlotUpdate{Latitude: ph(91)})
	assert.ErrorIs(t, err, store.ErrValidation)

	_, err = f.svc.UpdatePlot(ctx, f.alice.ID, "missing", PlotUpdate{Name: strPtr("x")})
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestDeletePlotAndAction(t *testing.T) {
	f := newFixture(t, true)
	ctx := context.Background()

	plot, err := f.svc.CreatePlot(ctx, f.alice.ID, samplePlot("North"))
	require.NoError(t, err)
	first, err := f.svc.AddAction(ctx, f.alice.ID, plot.ID, &store.Action{ActionDate: time.Now(), Details: &store.Watering{}})
	require.NoError(t, err)
	_, err = f.svc.AddAction(ctx, f.alice.ID, plot.ID, &store.Action{ActionDate: time.Now(), Details: &store.Watering{}})
	require.NoError(t, err)

	require.NoError(t, f.svc.DeleteAction(ctx, f.alice.ID, first.ID))
	assert.ErrorIs(t, f.svc.DeleteAction(ctx, f.alice.ID, first.ID), store.ErrNotFound)

	result, err := f.svc.DeletePlot(ctx, f.alice.ID, plot.ID)
	require.NoError(t, err)
	assert.Equal(t, &store.CascadeResult{Plots: 1, Actions: 1}, result)
}

func TestMeAndDeleteAccount(t *testing.T) {
	f := newFixture(t, true)
	ctx := context.Background()

	me, err := f.svc.Me(ctx, f.alice.ID)
	require.NoError(t, err)
	assert.Equal(t, "alice@example.com", me.Email)

	_, err = f.svc.Me(ctx, "")
	assert.ErrorIs(t, err, ErrUnauthenticated)

	for _, name := range []string{"A", "B"} {
		plot, err := f.svc.CreatePlot(ctx, f.alice.ID, samplePlot(name))
		require.NoError(t, err)
		for i := 0; i < 3; i++ {
			_, err := f.svc.AddAction(ctx, f.alice.ID, plot.ID, &store.Action{
				ActionDate: time.Now(),
				Details:    &store.Planting{CropType: "corn"},
			})
			require.NoError(t, err)
		}
	}

	result, err := f.svc.DeleteAccount(ctx, f.alice.ID)
	require.NoError(t, err)
	assert.Equal(t, &store.CascadeResult{Accounts: 1, Plots: 2, Actions: 6}, result)

	_, err = f.svc.Me(ctx, f.alice.ID)
	assert.ErrorIs(t, err, store.ErrNotFound)

	_, err = f.svc.DeleteAccount(ctx, "")
	assert.ErrorIs(t, err, ErrUnauthenticated)
}
