package service

import (
	"testing"

	"github.com/bwmarrin/snowflake"
	"github.com/stretchr/testify/assert"

	billingdomain "github.com/ridgelinehq/roofcrm/internal/billing/domain"
	changeorderdomain "github.com/ridgelinehq/roofcrm/internal/changeorder/domain"
	jobdomain "github.com/ridgelinehq/roofcrm/internal/job/domain"
	"github.com/ridgelinehq/roofcrm/pkg/money"
)

func newTestNode(t *testing.T) *snowflake.Node {
	t.Helper()
	node, err := snowflake.NewNode(2)
	assert.NoError(t, err)
	return node
}

func TestResolveContractCeiling(t *testing.T) {
	cases := []struct {
		name     string
		base     *money.Money
		approved money.Money
		invoiced money.Money
		want     money.Money
	}{
		{
			name:     "base plus approved changes",
			base:     moneyPtr(money.FromCents(1_000_000)),
			approved: money.FromCents(50_000),
			invoiced: money.FromCents(999_999_999), // invoiced never raises a recorded ceiling
			want:     money.FromCents(1_050_000),
		},
		{
			name:     "no changes",
			base:     moneyPtr(money.FromCents(750_000)),
			approved: 0,
			invoiced: 0,
			want:     money.FromCents(750_000),
		},
		{
			name:     "nil base falls back to invoiced total",
			base:     nil,
			approved: money.FromCents(60_000),
			invoiced: money.FromCents(200_000),
			want:     money.FromCents(260_000),
		},
		{
			name:     "zero base treated as unset",
			base:     moneyPtr(money.FromCents(0)),
			approved: money.FromCents(10_000),
			invoiced: money.FromCents(40_000),
			want:     money.FromCents(50_000),
		},
		{
			name:     "nil base with nothing invoiced",
			base:     nil,
			approved: 0,
			invoiced: 0,
			want:     0,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			job := &jobdomain.Job{BaseContractValue: tc.base}
			got := resolveContractCeiling(job, tc.approved, tc.invoiced)
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestComputeFinal(t *testing.T) {
	got, err := computeFinal(contractLedger{
		Ceiling:       money.FromCents(1_000_000),
		InvoicedTotal: money.FromCents(400_000),
	})
	assert.NoError(t, err)
	assert.Equal(t, money.FromCents(600_000), got.Amount)

	_, err = computeFinal(contractLedger{
		Ceiling:       money.FromCents(400_000),
		InvoicedTotal: money.FromCents(400_000),
	})
	var validation *billingdomain.ValidationError
	assert.ErrorAs(t, err, &validation)
	assert.Equal(t, "No remaining balance. Total contract: $4,000.00, Already invoiced: $4,000.00.", validation.Message)

	// Over-invoiced legacy jobs have a negative remainder, also rejected.
	_, err = computeFinal(contractLedger{
		Ceiling:       money.FromCents(300_000),
		InvoicedTotal: money.FromCents(400_000),
	})
	assert.ErrorAs(t, err, &validation)
}

func TestComputeSupplement(t *testing.T) {
	node := newTestNode(t)
	claimed := []changeorderdomain.ChangeOrder{
		{ID: node.Generate(), Description: "Decking", Amount: money.FromCents(80_000)},
		{ID: node.Generate(), Description: "Ridge vent", Amount: money.FromCents(25_000)},
	}

	got := computeSupplement(claimed)
	assert.Equal(t, money.FromCents(105_000), got.Amount)
	assert.Len(t, got.Lines, 2)
	assert.Equal(t, "Change Order: Decking", got.Lines[0].Description)
	assert.Equal(t, claimed[0].ID, *got.Lines[0].ChangeOrderID)
	assert.Equal(t, claimed[1].ID, *got.Lines[1].ChangeOrderID)
}
