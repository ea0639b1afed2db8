package policy

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestResolveRequiredUnits(t *testing.T) {
	tests := []struct {
		name string
		in   Input
		want int
	}{
		{"four week challenge", Input{Type: TypeFourWeekChallenge}, 4},
		{"two part promo", Input{Type: TypePromoTwoPart}, 2},
		{"two part promo sale", Input{Type: TypePromoTwoPartSale}, 2},
		{"multi part explicit", Input{Type: TypeMultiPart, RequiredUnits: 6}, 6},
		{"multi part without count", Input{Type: TypeMultiPart}, 4},
		{"plain campaign", Input{Type: "brand_review"}, 1},
		{"empty type", Input{}, 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.Equal(t, tt.want, Resolve(tt.in).RequiredUnits)
		})
	}
}

func TestResolveReward(t *testing.T) {
	require.Equal(t, int64(15000), Resolve(Input{RewardAmount: 10000, CreatorRewardOverride: 15000}).RewardPerUnit)
	require.Equal(t, int64(10000), Resolve(Input{RewardAmount: 10000}).RewardPerUnit)
	require.Equal(t, int64(0), Resolve(Input{}).RewardPerUnit)
}

func TestResolveMultiUnit(t *testing.T) {
	require.True(t, Resolve(Input{Type: TypeFourWeekChallenge}).MultiUnit())
	require.False(t, Resolve(Input{Type: "brand_review"}).MultiUnit())
}
