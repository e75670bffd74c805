package engine

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Veraticus/khata/internal/common"
	"github.com/Veraticus/khata/internal/testutil"
)

func TestReport(t *testing.T) {
	db := testutil.SetupTestDB(t)
	utilities := db.CategoryID(testutil.CategoryUtilities)
	misc := db.CategoryID(testutil.CategoryMiscellaneous)
	db.SeedTransactions(
		testutil.NewTransaction("right", "LESCO electricity bill").WithAmount("8000").WithCategory(utilities).Build(),
		testutil.NewTransaction("wrong", "Staff salary").WithAmount("25000").WithCategory(misc).DaysAgo(1).Build(),
		testutil.NewTransaction("none", "Diesel for generator").DaysAgo(2).Build(),
	)
	e := newTestEngine(t, db.Storage)
	ctx := context.Background()

	rows, err := e.Report(ctx, ReportOptions{})
	require.NoError(t, err)
	require.Len(t, rows, 3)

	byID := make(map[string]int, len(rows))
	for i, row := range rows {
		byID[row.TransactionID] = i
	}

	right := rows[byID["right"]]
	assert.Equal(t, "Utilities", right.CurrentCategory)
	assert.Equal(t, "Utilities", right.SuggestedCategory)
	assert.True(t, right.IsCorrect)
	assert.Equal(t, "8000", right.Amount.String())

	wrong := rows[byID["wrong"]]
	assert.Equal(t, "Miscellaneous", wrong.CurrentCategory)
	assert.Equal(t, "Salaries", wrong.SuggestedCategory)
	assert.False(t, wrong.IsCorrect)
	assert.NotEmpty(t, wrong.Reasoning)

	none := rows[byID["none"]]
	assert.Empty(t, none.CurrentCategory)
	assert.Equal(t, "Fuel & Transport", none.SuggestedCategory)
	assert.False(t, none.IsCorrect, "uncategorized rows are never correct")
}

func TestReport_SingleAndFiltered(t *testing.T) {
	db := testutil.SetupTestDB(t)
	misc := db.CategoryID(testutil.CategoryMiscellaneous)
	for _, id := range []string{"a", "b", "c"} {
		db.SeedTransactions(testutil.NewTransaction(id, "LESCO bill "+id).WithCategory(misc).Build())
	}
	e := newTestEngine(t, db.Storage)
	ctx := context.Background()

	rows, err := e.Report(ctx, ReportOptions{TransactionID: "b"})
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "b", rows[0].TransactionID)

	rows, err = e.Report(ctx, ReportOptions{Limit: 2})
	require.NoError(t, err)
	assert.Len(t, rows, 2)

	rows, err = e.Report(ctx, ReportOptions{CategoryFilter: "Utilities"})
	require.NoError(t, err)
	assert.Empty(t, rows)

	_, err = e.Report(ctx, ReportOptions{CategoryFilter: "Travel"})
	assert.ErrorIs(t, err, common.ErrUnknownCategory)

	_, err = e.Report(ctx, ReportOptions{TransactionID: "zzz"})
	assert.ErrorIs(t, err, common.ErrNotFound)
}
