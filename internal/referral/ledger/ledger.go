package ledger

import "github.com/cryptavpn-crypto/Crypta-referal/internal/referral/types"

// ReferralBonus is awarded once per referral edge. It is never applied
// transitively: referring a user who refers others earns a single bonus.
const ReferralBonus = 150

// TaskPoints sums the point values snapshotted on the user's completed
// tasks. Tasks whose ids have since left the catalog still count.
func TaskPoints(u *types.User) int {
	sum := 0
	for _, t := range u.CompletedTasks {
		sum += t.Points
	}
	return sum
}

func ReferralPoints(u *types.User) int {
	return u.ReferralCount * ReferralBonus
}

// TotalPoints is the authoritative total. It must be recomputed from the
// user's facts at every call site; no stored counter is trusted.
func TotalPoints(u *types.User) int {
	return TaskPoints(u) + ReferralPoints(u)
}
