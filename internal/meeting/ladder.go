package meeting

import (
	"fmt"

	"lanea/internal/types"
)

// Tier names, aliased for readability.
const (
	TierRefresh = "REFRESH"
	TierVision  = "VISION"
)

// questionFor renders the canned question for a ladder tier.
func questionFor(tier, scope string) string {
	switch tier {
	case TierRefresh:
		return fmt.Sprintf("Knowledge for %s is stale. Should we rescan before going further, or proceed on the current evidence?", scope)
	case TierVision:
		return fmt.Sprintf("What is %s for, in one or two sentences? What outcome makes this system worth running?", scope)
	case "REQUIREMENTS":
		return fmt.Sprintf("Which behaviors of %s are load-bearing, the ones a change must never break without sign-off?", scope)
	case "DOMAIN_DATA":
		return fmt.Sprintf("What are the core domain entities %s owns, and who else reads or writes them?", scope)
	case "DATA":
		return fmt.Sprintf("Where does %s persist state, and what are the consistency expectations on each store?", scope)
	case "API":
		return fmt.Sprintf("Which interfaces of %s are public contracts, and which are free to change?", scope)
	case "INFRA":
		return fmt.Sprintf("How is %s built, deployed, and rolled back today?", scope)
	case "OPS":
		return fmt.Sprintf("When %s misbehaves in production, what do operators look at first, and what do they wish existed?", scope)
	default:
		return fmt.Sprintf("Anything else about %s the knowledge base should capture?", scope)
	}
}

// nextTier walks the ladder: REFRESH only while stale and before any
// question has been asked, then the fixed tier order, skipping tiers
// already covered by an answer. Empty means every tier is satisfied.
func nextTier(stale bool, askedCount int, answeredTiers map[string]bool) string {
	for _, tier := range types.LadderTiers {
		if tier == TierRefresh {
			if stale && askedCount == 0 {
				return tier
			}
			continue
		}
		if !answeredTiers[tier] {
			return tier
		}
	}
	return ""
}
