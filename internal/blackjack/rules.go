package blackjack

import "fmt"

// WinRule selects how a player's hand is compared with the dealer's
type WinRule int

const (
	// RuleStandard: the player wins with a non-busting total that beats the
	// dealer, or whenever the dealer busts.
	RuleStandard WinRule = iota
	// RuleLegacy reproduces the historic comparison verbatim, including its
	// uneven bust check. See legacyWinner.
	RuleLegacy
)

// String returns the configuration name of the rule
func (r WinRule) String() string {
	switch r {
	case RuleStandard:
		return "standard"
	case RuleLegacy:
		return "legacy"
	default:
		return "unknown"
	}
}

// ParseWinRule parses "standard" or "legacy"
func ParseWinRule(s string) (WinRule, error) {
	switch s {
	case "", "standard":
		return RuleStandard, nil
	case "legacy":
		return RuleLegacy, nil
	}
	return 0, fmt.Errorf("unknown win rule %q", s)
}

// Wins reports whether player beats dealer under r
func (r WinRule) Wins(dealer, player Totals) bool {
	if r == RuleLegacy {
		return legacyWinner(dealer, player)
	}
	return standardWinner(dealer, player)
}

func standardWinner(dealer, player Totals) bool {
	pb := player.Best()
	if pb > Blackjack {
		return false
	}
	db := dealer.Best()
	return db > Blackjack || pb > db
}

// legacyWinner keeps the old expression as written: the bust ceiling only
// guards the second disjunct, and a dealer total that exceeds the player's
// counts as a player win. Ties and dealer busts therefore do not behave as
// in standardWinner.
func legacyWinner(dealer, player Totals) bool {
	return (dealer.Hard > player.Hard || dealer.Hard > player.Soft) ||
		((dealer.Soft > player.Hard || dealer.Soft > player.Soft) && dealer.Hard <= Blackjack)
}
