// ABOUTME: Tests for plot and action persistence against both store implementations
// ABOUTME: Covers eager action loading, variant round-trips, ordering and plot cascades

package store

import (
	"context"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCreateAndGetPlot(t *testing.T) {
	forEachStore(t, func(t *testing.T, s Store) {
		ctx := context.Background()
		owner := mustCreateAccount(t, s, "owner@example.com")

		plot := newTestPlot(owner.ID, "North Field")
		require.NoError(t, s.CreatePlot(ctx, plot))
		require.NotEmpty(t, plot.ID)

		got, err := s.GetPlot(ctx, plot.ID)
		require.NoError(t, err)
		assert.Equal(t, owner.ID, got.OwnerID)
		assert.Equal(t, "North Field", got.Name)
		assert.Equal(t, 2.5, got.Size)
		assert.Equal(t, 45.5, got.Latitude)
		assert.Equal(t, -122.6, got.Longitude)
		assert.Equal(t, "flat", got.Topography)
		assert.Equal(t, "loam", got.SoilType)
		assert.True(t, got.CreatedAt.Equal(plot.CreatedAt))
		assert.NotNil(t, got.Actions, "a plot without actions has an empty history, not nil")
		assert.Empty(t, got.Actions)
	})
}

func TestCreatePlot_OptionalFieldsEmpty(t *testing.T) {
	forEachStore(t, func(t *testing.T, s Store) {
		ctx := context.Background()
		owner := mustCreateAccount(t, s, "owner@example.com")

		plot := newTestPlot(owner.ID, "Bare")
		plot.Topography = ""
		plot.SoilType = ""
		require.NoError(t, s.CreatePlot(ctx, plot))

		got, err := s.GetPlot(ctx, plot.ID)
		require.NoError(t, err)
		assert.Empty(t, got.Topography)
		assert.Empty(t, got.SoilType)
	})
}

func TestCreatePlot_UnknownOwner(t *testing.T) {
	forEachStore(t, func(t *testing.T, s Store) {
		err := s.CreatePlot(context.Background(), newTestPlot("ghost", "Nowhere"))
		assert.ErrorIs(t, err, ErrNotFound)
	})
}

func TestCreatePlot_Validation(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(p *Plot)
	}{
		{"missing name", func(p *Plot) { p.Name = "" }},
		{"zero size", func(p *Plot) { p.Size = 0 }},
		{"negative size", func(p *Plot) { p.Size = -1 }},
		{"latitude too high", func(p *Plot) { p.Latitude = 90.01 }},
		{"latitude too low", func(p *Plot) { p.Latitude = -90.01 }},
		{"longitude too high", func(p *Plot) { p.Longitude = 180.5 }},
		{"longitude too low", func(p *Plot) { p.Longitude = -181 }},
		{"NaN size", func(p *Plot) { p.Size = math.NaN() }},
		{"infinite size", func(p *Plot) { p.Size = math.Inf(1) }},
		{"NaN latitude", func(p *Plot) { p.Latitude = math.NaN() }},
		{"infinite latitude", func(p *Plot) { p.Latitude = math.Inf(-1) }},
		{"NaN longitude", func(p *Plot) { p.Longitude = math.NaN() }},
		{"infinite longitude", func(p *Plot) { p.Longitude = math.Inf(1) }},
	}

	forEachStore(t, func(t *testing.T, s Store) {
		owner := mustCreateAccount(t, s, "owner@example.com")
		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				plot := newTestPlot(owner.ID, "Field")
				tt.mutate(plot)
				assert.ErrorIs(t, s.CreatePlot(context.Background(), plot), ErrValidation)
			})
		}

		plots, err := s.ListPlotsByOwner(context.Background(), owner.ID)
		require.NoError(t, err)
		assert.Empty(t, plots)
	})
}

func TestCreatePlot_BoundaryCoordinates(t *testing.T) {
	forEachStore(t, func(t *testing.T, s Store) {
		owner := mustCreateAccount(t, s, "owner@example.com")
		plot := newTestPlot(owner.ID, "Pole")
		plot.Latitude = 90
		plot.Longitude = -180
		assert.NoError(t, s.CreatePlot(context.Background(), plot))
	})
}

func TestUpdatePlot(t *testing.T) {
	forEachStore(t, func(t *testing.T, s Store) {
		ctx := context.Background()
		owner := mustCreateAccount(t, s, "owner@example.com")
		other := mustCreateAccount(t, s, "other@example.com")
		plot := mustCreatePlot(t, s, owner.ID, "North")
		mustCreateAction(t, s, plot.ID, time.Date(2024, 4, 1, 0, 0, 0, 0, time.UTC), &Watering{})

		changed := *plot
		changed.OwnerID = other.ID
		changed.Name = "North Terrace"
		changed.Size = 7.5
		changed.Latitude = -12.25
		changed.Longitude = 130
		changed.Topography = "terraced"
		changed.SoilType = ""
		changed.CreatedAt = time.Date(2000, 1, 1, 0, 0, 0, 0, time.UTC)
		require.NoError(t, s.UpdatePlot(ctx, &changed))

		got, err := s.GetPlot(ctx, plot.ID)
		require.NoError(t, err)
		assert.Equal(t, "North Terrace", got.Name)
		assert.Equal(t, 7.5, got.Size)
		assert.Equal(t, -12.25, got.Latitude)
		assert.Equal(t, 130.0, got.Longitude)
		assert.Equal(t, "terraced", got.Topography)
		assert.Empty(t, got.SoilType)
		assert.Equal(t, owner.ID, got.OwnerID, "owner must not change")
		assert.True(t, plot.CreatedAt.Equal(got.CreatedAt), "created_at must not change")
		assert.Len(t, got.Actions, 1, "history survives an update")
	})
}

func TestUpdatePlot_Errors(t *testing.T) {
	forEachStore(t, func(t *testing.T, s Store) {
		ctx := context.Background()
		owner := mustCreateAccount(t, s, "owner@example.com")
		plot := mustCreatePlot(t, s, owner.ID, "North")

		missing := *plot
		missing.ID = "nonexistent"
		assert.ErrorIs(t, s.UpdatePlot(ctx, &missing), ErrNotFound)

		bad := *plot
		bad.Latitude = math.NaN()
		assert.ErrorIs(t, s.UpdatePlot(ctx, &bad), ErrValidation)

		got, err := s.GetPlot(ctx, plot.ID)
		require.NoError(t, err)
		assert.Equal(t, plot.Latitude, got.Latitude, "rejected update leaves the row alone")
	})
}

func TestGetPlot_NotFound(t *testing.T) {
	forEachStore(t, func(t *testing.T, s Store) {
		_, err := s.GetPlot(context.Background(), "nonexistent")
		assert.ErrorIs(t, err, ErrNotFound)
	})
}

func TestListPlotsByOwner(t *testing.T) {
	forEachStore(t, func(t *testing.T, s Store) {
		ctx := context.Background()
		owner := mustCreateAccount(t, s, "owner@example.com")
		other := mustCreateAccount(t, s, "other@example.com")

		base := time.Now().UTC().Truncate(time.Second)
		first := newTestPlot(owner.ID, "First")
		first.CreatedAt = base
		second := newTestPlot(owner.ID, "Second")
		second.CreatedAt = base.Add(time.Minute)
		require.NoError(t, s.CreatePlot(ctx, second))
		require.NoError(t, s.CreatePlot(ctx, first))
		mustCreatePlot(t, s, other.ID, "Not Mine")

		mustCreateAction(t, s, first.ID, base, &Planting{CropType: "corn"})

		plots, err := s.ListPlotsByOwner(ctx, owner.ID)
		require.NoError(t, err)
		require.Len(t, plots, 2)
		assert.Equal(t, "First", plots[0].Name)
		assert.Equal(t, "Second", plots[1].Name)
		assert.Nil(t, plots[0].Actions, "list does not load actions")

		plots, err = s.ListPlotsByOwner(ctx, "nobody")
		require.NoError(t, err)
		assert.Empty(t, plots)
	})
}

func TestGetPlot_ActionsOrderedByDate(t *testing.T) {
	forEachStore(t, func(t *testing.T, s Store) {
		ctx := context.Background()
		owner := mustCreateAccount(t, s, "owner@example.com")
		plot := mustCreatePlot(t, s, owner.ID, "North")

		day := time.Date(2024, 5, 1, 8, 0, 0, 0, time.UTC)
		late := mustCreateAction(t, s, plot.ID, day.AddDate(0, 2, 0), &Harvesting{CropYield: float(80)})
		early := mustCreateAction(t, s, plot.ID, day, &Planting{CropType: "barley"})
		mid := mustCreateAction(t, s, plot.ID, day.AddDate(0, 0, 10), &Watering{Amount: float(0)})

		got, err := s.GetPlot(ctx, plot.ID)
		require.NoError(t, err)
		require.Len(t, got.Actions, 3)
		assert.Equal(t, early.ID, got.Actions[0].ID)
		assert.Equal(t, mid.ID, got.Actions[1].ID)
		assert.Equal(t, late.ID, got.Actions[2].ID)

		assert.Equal(t, KindPlanting, got.Actions[0].Kind())
		assert.Equal(t, KindWatering, got.Actions[1].Kind())
		assert.Equal(t, KindHarvesting, got.Actions[2].Kind())
	})
}

func TestActionVariants_RoundTrip(t *testing.T) {
	planted := time.Date(2024, 3, 15, 0, 0, 0, 0, time.UTC)
	harvested := time.Date(2024, 9, 1, 0, 0, 0, 0, time.UTC)

	variants := []ActionDetails{
		&Planting{CropType: "corn", Variety: "sweet", SeedingRate: "30k/acre", PlantingDate: &planted},
		&Fertilizing{FertilizerType: "NPK 10-10-10", ApplicationRate: float(2.5), Method: "broadcast"},
		&Watering{Method: "drip", Amount: float(12.5), WaterSource: "well"},
		&Treatment{PesticideType: "neem oil", TargetPest: "aphids", Dosage: float(0.75), ApplicationMethod: "spray"},
		&Harvesting{CropYield: float(3400), HarvestDate: &harvested, Comments: "good year"},
		&SoilReading{PH: float(6.8), Nitrogen: float(20), Phosphorus: float(15), Potassium: float(30), OrganicMatter: "3.2%"},
	}

	forEachStore(t, func(t *testing.T, s Store) {
		ctx := context.Background()
		owner := mustCreateAccount(t, s, "owner@example.com")
		plot := mustCreatePlot(t, s, owner.ID, "North")

		for i, details := range variants {
			t.Run(string(details.Kind()), func(t *testing.T) {
				date := planted.AddDate(0, 0, i)
				created := mustCreateAction(t, s, plot.ID, date, details)

				got, err := s.GetAction(ctx, created.ID)
				require.NoError(t, err)
				assert.Equal(t, plot.ID, got.PlotID)
				assert.True(t, got.ActionDate.Equal(date))
				assert.Equal(t, details.Kind(), got.Kind())
				assert.Equal(t, details, got.Details)
			})
		}

		got, err := s.GetPlot(ctx, plot.ID)
		require.NoError(t, err)
		require.Len(t, got.Actions, len(variants))
		for i, action := range got.Actions {
			assert.Equal(t, variants[i], action.Details, "action %d", i)
		}
	})
}

func TestActionVariants_SparseFields(t *testing.T) {
	forEachStore(t, func(t *testing.T, s Store) {
		ctx := context.Background()
		owner := mustCreateAccount(t, s, "owner@example.com")
		plot := mustCreatePlot(t, s, owner.ID, "North")

		for _, details := range []ActionDetails{
			&Planting{CropType: "rye"},
			&Fertilizing{},
			&Watering{},
			&Treatment{},
			&Harvesting{},
			&SoilReading{PH: float(7)},
		} {
			created := mustCreateAction(t, s, plot.ID, time.Now().UTC(), details)
			got, err := s.GetAction(ctx, created.ID)
			require.NoError(t, err)
			assert.Equal(t, details, got.Details)
		}
	})
}

func TestCreateAction_SoilPHBounds(t *testing.T) {
	forEachStore(t, func(t *testing.T, s Store) {
		ctx := context.Background()
		owner := mustCreateAccount(t, s, "owner@example.com")
		plot := mustCreatePlot(t, s, owner.ID, "North")

		for _, ph := range []float64{0, 14} {
			action := &Action{PlotID: plot.ID, ActionDate: time.Now().UTC(), Details: &SoilReading{PH: float(ph)}}
			assert.NoError(t, s.CreateAction(ctx, action), "pH %g should be accepted", ph)
		}

		for _, ph := range []float64{-0.1, 14.01, 15} {
			action := &Action{PlotID: plot.ID, ActionDate: time.Now().UTC(), Details: &SoilReading{PH: float(ph)}}
			assert.ErrorIs(t, s.CreateAction(ctx, action), ErrValidation, "pH %g should be rejected", ph)
		}

		got, err := s.GetPlot(ctx, plot.ID)
		require.NoError(t, err)
		assert.Len(t, got.Actions, 2)
	})
}

func TestCreateAction_UnknownPlot(t *testing.T) {
	forEachStore(t, func(t *testing.T, s Store) {
		action := &Action{PlotID: "ghost", ActionDate: time.Now().UTC(), Details: &Planting{CropType: "corn"}}
		assert.ErrorIs(t, s.CreateAction(context.Background(), action), ErrNotFound)
	})
}

func TestGetAction_NotFound(t *testing.T) {
	forEachStore(t, func(t *testing.T, s Store) {
		_, err := s.GetAction(context.Background(), "nonexistent")
		assert.ErrorIs(t, err, ErrNotFound)
	})
}

func TestDeleteAction(t *testing.T) {
	forEachStore(t, func(t *testing.T, s Store) {
		ctx := context.Background()
		owner := mustCreateAccount(t, s, "owner@example.com")
		plot := mustCreatePlot(t, s, owner.ID, "North")
		keep := mustCreateAction(t, s, plot.ID, time.Now().UTC(), &Planting{CropType: "corn"})
		drop := mustCreateAction(t, s, plot.ID, time.Now().UTC(), &Treatment{Dosage: float(1)})

		require.NoError(t, s.DeleteAction(ctx, drop.ID))

		_, err := s.GetAction(ctx, drop.ID)
		assert.ErrorIs(t, err, ErrNotFound)
		assert.ErrorIs(t, s.DeleteAction(ctx, drop.ID), ErrNotFound)

		got, err := s.GetPlot(ctx, plot.ID)
		require.NoError(t, err)
		require.Len(t, got.Actions, 1)
		assert.Equal(t, keep.ID, got.Actions[0].ID)
	})
}

func TestDeletePlot_Cascade(t *testing.T) {
	forEachStore(t, func(t *testing.T, s Store) {
		ctx := context.Background()
		owner := mustCreateAccount(t, s, "owner@example.com")
		doomed := mustCreatePlot(t, s, owner.ID, "Doomed")
		kept := mustCreatePlot(t, s, owner.ID, "Kept")

		a1 := mustCreateAction(t, s, doomed.ID, time.Now().UTC(), &Planting{CropType: "corn"})
		mustCreateAction(t, s, doomed.ID, time.Now().UTC(), &SoilReading{PH: float(5.5)})
		mustCreateAction(t, s, kept.ID, time.Now().UTC(), &Watering{})

		result, err := s.DeletePlot(ctx, doomed.ID)
		require.NoError(t, err)
		assert.Equal(t, &CascadeResult{Plots: 1, Actions: 2}, result)

		_, err = s.GetPlot(ctx, doomed.ID)
		assert.ErrorIs(t, err, ErrNotFound)
		_, err = s.GetAction(ctx, a1.ID)
		assert.ErrorIs(t, err, ErrNotFound)

		got, err := s.GetPlot(ctx, kept.ID)
		require.NoError(t, err)
		assert.Len(t, got.Actions, 1)

		_, err = s.GetAccount(ctx, owner.ID)
		assert.NoError(t, err, "deleting a plot leaves the owner in place")
	})
}

func TestDeletePlot_NotFound(t *testing.T) {
	forEachStore(t, func(t *testing.T, s Store) {
		_, err := s.DeletePlot(context.Background(), "nonexistent")
		assert.ErrorIs(t, err, ErrNotFound)
	})
}

func TestSQLiteStore_VariantRowsRemovedWithPlot(t *testing.T) {
	s := newTestStore(t)
	defer s.Close()
	ctx := context.Background()

	owner := mustCreateAccount(t, s, "owner@example.com")
	plot := mustCreatePlot(t, s, owner.ID, "North")
	mustCreateAction(t, s, plot.ID, time.Now().UTC(), &Planting{CropType: "corn"})
	mustCreateAction(t, s, plot.ID, time.Now().UTC(), &Harvesting{})

	_, err := s.DeletePlot(ctx, plot.ID)
	require.NoError(t, err)

	for _, kind := range ActionKinds {
		var n int
		err := s.db.QueryRow("SELECT COUNT(*) FROM " + variantCodecs[kind].table).Scan(&n)
		require.NoError(t, err)
		assert.Zero(t, n, "orphaned rows in %s", variantCodecs[kind].table)
	}
}

func TestSQLiteStore_MissingVariantRowIsError(t *testing.T) {
	s := newTestStore(t)
	defer s.Close()
	ctx := context.Background()

	owner := mustCreateAccount(t, s, "owner@example.com")
	plot := mustCreatePlot(t, s, owner.ID, "North")
	action := mustCreateAction(t, s, plot.ID, time.Now().UTC(), &Planting{CropType: "corn"})

	_, err := s.db.Exec("DELETE FROM action_planting WHERE action_id = ?", action.ID)
	require.NoError(t, err)

	_, err = s.GetAction(ctx, action.ID)
	assert.Error(t, err)
	assert.NotErrorIs(t, err, ErrNotFound)

	_, err = s.GetPlot(ctx, plot.ID)
	assert.Error(t, err)
}
