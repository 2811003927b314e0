package query

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/erazemk/izgubljeno/internal/model"
)

func at(ms int64) time.Time {
	return time.UnixMilli(ms).UTC()
}

func fixture() []model.Item {
	return []model.Item{
		{ID: "1", Title: "Lost Wallet", Description: "Brown leather", Category: model.CategoryDocument, Status: model.StatusLost, Location: "Library", CreatedAt: at(100)},
		{ID: "2", Title: "Found Keys", Description: "Three keys on a ring", Category: model.CategoryAccessory, Status: model.StatusFound, Location: "cafeteria", CreatedAt: at(200)},
		{ID: "3", Title: "black umbrella", Description: "Left near the WALLET stand", Category: model.CategoryOther, Status: model.StatusClaimed, Claimed: true, Location: "Library", CreatedAt: at(300), OrganizationID: "org-a"},
		{ID: "4", Title: "Laptop", Description: "Silver", Category: model.CategoryElectronic, Status: model.StatusResolved, Claimed: true, Location: "Gym", CreatedAt: at(150), OrganizationID: "org-a"},
	}
}

func ids(items []model.Item) []string {
	out := make([]string, len(items))
	for i, item := range items {
		out[i] = item.ID
	}
	return out
}

func TestQueryStatusFilter(t *testing.T) {
	items := []model.Item{
		{ID: "wallet", Title: "Lost Wallet", Status: model.StatusLost, Category: model.CategoryDocument, CreatedAt: at(100)},
		{ID: "keys", Title: "Found Keys", Status: model.StatusFound, Category: model.CategoryAccessory, CreatedAt: at(200)},
	}
	spec := Spec{Term: "", Category: All, Status: model.StatusLost, SortBy: SortDate, SortOrder: OrderDesc}

	got, err := Query(items, spec)
	require.NoError(t, err)
	assert.Equal(t, []string{"wallet"}, ids(got))
}

func TestQueryDefaultsSortNewestFirst(t *testing.T) {
	got, err := Query(fixture(), DefaultSpec())
	require.NoError(t, err)
	assert.Equal(t, []string{"3", "2", "4", "1"}, ids(got))
}

func TestQueryEmptySpecFieldsUseDefaults(t *testing.T) {
	got, err := Query(fixture(), Spec{})
	require.NoError(t, err)
	assert.Equal(t, []string{"3", "2", "4", "1"}, ids(got))
}

func TestQueryTermMatchesTitleOrDescriptionCaseInsensitive(t *testing.T) {
	spec := DefaultSpec()
	spec.Term = "  wallet "
	spec.SortOrder = OrderAsc

	got, err := Query(fixture(), spec)
	require.NoError(t, err)
	assert.Equal(t, []string{"1", "3"}, ids(got))
}

func TestQueryWhitespaceTermIsNoFilter(t *testing.T) {
	spec := DefaultSpec()
	spec.Term = "   \t"
	got, err := Query(fixture(), spec)
	require.NoError(t, err)
	assert.Len(t, got, 4)
}

func TestQueryCategoryLocationAndOrganization(t *testing.T) {
	spec := DefaultSpec()
	spec.Location = "Library"
	got, err := Query(fixture(), spec)
	require.NoError(t, err)
	assert.Equal(t, []string{"3", "1"}, ids(got))

	spec = DefaultSpec()
	spec.Category = model.CategoryElectronic
	got, err = Query(fixture(), spec)
	require.NoError(t, err)
	assert.Equal(t, []string{"4"}, ids(got))

	spec = DefaultSpec()
	spec.OrganizationID = "org-a"
	spec.SortOrder = OrderAsc
	got, err = Query(fixture(), spec)
	require.NoError(t, err)
	assert.Equal(t, []string{"4", "3"}, ids(got))
}

func TestQuerySortByTitleIgnoresCase(t *testing.T) {
	spec := DefaultSpec()
	spec.SortBy = SortTitle
	spec.SortOrder = OrderAsc

	got, err := Query(fixture(), spec)
	require.NoError(t, err)
	assert.Equal(t, []string{"3", "2", "4", "1"}, ids(got))

	spec.SortOrder = OrderDesc
	got, err = Query(fixture(), spec)
	require.NoError(t, err)
	assert.Equal(t, []string{"1", "4", "2", "3"}, ids(got))
}

func TestQueryStableTieBreak(t *testing.T) {
	items := []model.Item{
		{ID: "a", Location: "Hall", CreatedAt: at(5)},
		{ID: "b", Location: "atrium", CreatedAt: at(5)},
		{ID: "c", Location: "hall", CreatedAt: at(5)},
		{ID: "d", Location: "HALL", CreatedAt: at(5)},
	}

	for _, order := range []string{OrderAsc, OrderDesc} {
		spec := DefaultSpec()
		spec.SortBy = SortLocation
		spec.SortOrder = order
		got, err := Query(items, spec)
		require.NoError(t, err)
		if order == OrderAsc {
			assert.Equal(t, []string{"b", "a", "c", "d"}, ids(got))
		} else {
			assert.Equal(t, []string{"a", "c", "d", "b"}, ids(got))
		}

		spec.SortBy = SortDate
		got, err = Query(items, spec)
		require.NoError(t, err)
		assert.Equal(t, []string{"a", "b", "c", "d"}, ids(got), "equal dates keep input order (%s)", order)
	}
}

func TestQueryIsIdempotentAndDoesNotMutateInput(t *testing.T) {
	items := fixture()
	before := ids(items)

	spec := DefaultSpec()
	spec.SortBy = SortTitle
	first, err := Query(items, spec)
	require.NoError(t, err)
	second, err := Query(items, spec)
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Equal(t, before, ids(items))
}

func TestQueryResultIsSubset(t *testing.T) {
	items := fixture()
	byID := make(map[string]model.Item)
	for _, item := range items {
		byID[item.ID] = item
	}

	spec := DefaultSpec()
	spec.Term = "l"
	got, err := Query(items, spec)
	require.NoError(t, err)
	for _, item := range got {
		assert.Equal(t, byID[item.ID], item)
	}
}

func TestQueryEmptyInput(t *testing.T) {
	got, err := Query(nil, DefaultSpec())
	require.NoError(t, err)
	assert.NotNil(t, got)
	assert.Empty(t, got)
}

func TestQueryEmptyInputStillValidatesSpec(t *testing.T) {
	_, err := Query(nil, Spec{Category: "furniture"})
	assert.ErrorIs(t, err, model.ErrValidation)
}

func TestQueryRejectsUnknownEnumValues(t *testing.T) {
	tests := []struct {
		name  string
		spec  Spec
		field string
	}{
		{"category", Spec{Category: "furniture"}, "category"},
		{"status", Spec{Status: "Stolen"}, "status"},
		{"sortBy", Spec{SortBy: "price"}, "sortBy"},
		{"sortOrder", Spec{SortOrder: "sideways"}, "sortOrder"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Query(fixture(), tt.spec)
			require.ErrorIs(t, err, model.ErrValidation)

			var verr *model.ValidationError
			require.ErrorAs(t, err, &verr)
			assert.True(t, verr.Has(tt.field))
		})
	}
}

func TestLocations(t *testing.T) {
	assert.Equal(t, []string{"cafeteria", "Gym", "Library"}, Locations(fixture()))
	assert.Empty(t, Locations(nil))
}
