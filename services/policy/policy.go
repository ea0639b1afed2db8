package policy

// Campaign type tags that drive the completion policy. Anything not
// listed here settles after a single approved submission.
const (
	TypeFourWeekChallenge = "four_week_challenge"
	TypePromoTwoPart      = "promo_two_part"
	TypePromoTwoPartSale  = "promo_two_part_sale"
	TypeMultiPart         = "multi_part"
)

const defaultMultiPartUnits = 4

// Input is the projection of a campaign record the resolver needs.
// Callers build it from their own campaign model so this package stays
// free of storage concerns.
type Input struct {
	Type                  string
	RequiredUnits         int
	RewardAmount          int64
	CreatorRewardOverride int64
}

// Policy is the completion rule for one campaign: how many approved
// units a creator needs, and the reward credited per completed campaign
// instance.
type Policy struct {
	RequiredUnits int
	RewardPerUnit int64
}

// MultiUnit reports whether the campaign needs more than one submission.
func (p Policy) MultiUnit() bool {
	return p.RequiredUnits > 1
}

// Resolve derives the policy from the campaign type tag and override
// fields. Pure and total: no I/O, never fails, so callers can invoke it
// unconditionally once they hold a campaign record.
func Resolve(in Input) Policy {
	p := Policy{RequiredUnits: 1}

	switch in.Type {
	case TypeFourWeekChallenge:
		p.RequiredUnits = 4
	case TypePromoTwoPart, TypePromoTwoPartSale:
		p.RequiredUnits = 2
	case TypeMultiPart:
		if in.RequiredUnits > 0 {
			p.RequiredUnits = in.RequiredUnits
		} else {
			p.RequiredUnits = defaultMultiPartUnits
		}
	}

	switch {
	case in.CreatorRewardOverride > 0:
		p.RewardPerUnit = in.CreatorRewardOverride
	case in.RewardAmount > 0:
		p.RewardPerUnit = in.RewardAmount
	}

	return p
}
