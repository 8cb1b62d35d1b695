package command

import (
	"testing"
	"time"

	"github.com/campus-records/records-core/pkg/timeutil"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

func mustDay(t *testing.T, s string) time.Time {
	t.Helper()
	d, err := timeutil.ParseDate(s)
	require.NoError(t, err)
	return d
}

func amount(n int64) *decimal.Decimal {
	d := decimal.NewFromInt(n)
	return &d
}
