package escrow

import (
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vendorhub/marketplace-backend/pkg/money"
)

func dec(v string) decimal.Decimal {
	return decimal.RequireFromString(v)
}

func TestComputeSplitsSingleVendor(t *testing.T) {
	splits, err := ComputeSplits([]Line{{ItemID: uuid.New(), VendorID: uuid.New(), LineTotal: dec("1000"), CommissionRate: dec("0.10")}})
	require.NoError(t, err)
	require.Len(t, splits, 1)
	assert.True(t, splits[0].Commission.Equal(dec("100")))
	assert.True(t, splits[0].Net.Equal(dec("900")))
}

func TestComputeSplitsMultiVendor(t *testing.T) {
	vendorA, vendorB := uuid.New(), uuid.New()
	splits, err := ComputeSplits([]Line{
		{ItemID: uuid.New(), VendorID: vendorA, LineTotal: dec("600"), CommissionRate: dec("0.10")},
		{ItemID: uuid.New(), VendorID: vendorB, LineTotal: dec("400"), CommissionRate: dec("0.10")},
	})
	require.NoError(t, err)
	assert.True(t, splits[0].Net.Equal(dec("540")))
	assert.True(t, splits[1].Net.Equal(dec("360")))
	assert.True(t, splits[0].Commission.Add(splits[1].Commission).Equal(dec("100")))
}

func TestComputeSplitsReconcilesRoundingRemainders(t *testing.T) {
	lines := []Line{
		{ItemID: uuid.New(), VendorID: uuid.New(), LineTotal: dec("10.05"), CommissionRate: dec("0.15")},
		{ItemID: uuid.New(), VendorID: uuid.New(), LineTotal: dec("10.05"), CommissionRate: dec("0.15")},
		{ItemID: uuid.New(), VendorID: uuid.New(), LineTotal: dec("10.05"), CommissionRate: dec("0.15")},
	}
	splits, err := ComputeSplits(lines)
	require.NoError(t, err)

	// 3 x 1.5075 = 4.5225 -> 4.52 total commission.
	commission := decimal.Zero
	net := decimal.Zero
	for _, s := range splits {
		commission = commission.Add(s.Commission)
		net = net.Add(s.Net)
		assert.True(t, s.Commission.Equal(money.Round(s.Commission)), "commission must be in minor units")
	}
	assert.True(t, commission.Equal(dec("4.52")), "commission %s", commission)
	assert.True(t, net.Add(commission).Equal(dec("30.15")))
	assert.True(t, splits[0].Commission.Equal(dec("1.51")))
	assert.True(t, splits[1].Commission.Equal(dec("1.51")))
	assert.True(t, splits[2].Commission.Equal(dec("1.50")))
}

func TestComputeSplitsUsesDiscountedBase(t *testing.T) {
	splits, err := ComputeSplits([]Line{{ItemID: uuid.New(), VendorID: uuid.New(), LineTotal: dec("1000"), DiscountShare: dec("100"), CommissionRate: dec("0.10")}})
	require.NoError(t, err)
	assert.True(t, splits[0].Base.Equal(dec("900")))
	assert.True(t, splits[0].Commission.Equal(dec("90")))
	assert.True(t, splits[0].Net.Equal(dec("810")))
}

func TestComputeSplitsRejectsBadInput(t *testing.T) {
	_, err := ComputeSplits([]Line{{ItemID: uuid.New(), LineTotal: dec("10"), CommissionRate: dec("1.5")}})
	require.Error(t, err)

	_, err = ComputeSplits([]Line{{ItemID: uuid.New(), LineTotal: dec("10"), DiscountShare: dec("11"), CommissionRate: dec("0.1")}})
	require.Error(t, err)
}

func TestAllocateDiscountVendorScoped(t *testing.T) {
	vendorA, vendorB := uuid.New(), uuid.New()
	lines := []Line{
		{VendorID: vendorA, LineTotal: dec("300")},
		{VendorID: vendorB, LineTotal: dec("400")},
		{VendorID: vendorA, LineTotal: dec("100")},
	}
	shares, err := AllocateDiscount(lines, dec("40"), &vendorA)
	require.NoError(t, err)
	assert.True(t, shares[0].Equal(dec("30")))
	assert.True(t, shares[1].IsZero())
	assert.True(t, shares[2].Equal(dec("10")))

	shares, err = AllocateDiscount(lines, dec("80"), nil)
	require.NoError(t, err)
	assert.True(t, money.Sum(shares...).Equal(dec("80")))
	assert.True(t, shares[1].Equal(dec("40")))

	_, err = AllocateDiscount(lines, dec("500"), &vendorA)
	require.Error(t, err)
}
