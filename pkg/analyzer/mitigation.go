package analyzer

import (
	"context"
	"sort"
	"time"

	"github.com/aigangofficial/ArbitrageX-DEX-sub001/pkg/common/logger"
	"github.com/aigangofficial/ArbitrageX-DEX-sub001/pkg/common/models"
	"github.com/shopspring/decimal"
)

// prepareMitigation assembles a plan for one synthetic scenario: liquidity
// depth for the counterparty's most-touched tokens plus alternative routes.
// Collaborator failures degrade the plan instead of dropping it; the
// execution engine downstream decides what to do with partial data.
func (a *Analyzer) prepareMitigation(ctx context.Context, scenario models.SimulationScenario, pattern *models.CompetitorPattern) models.MitigationPlan {
	plan := models.MitigationPlan{
		Scenario:       scenario,
		LiquidityDepth: make(map[string]decimal.Decimal),
		PreparedAt:     time.Now(),
	}
	if pattern == nil {
		return plan
	}

	plan.Tokens = topTokens(pattern, mitigationTokens)

	if a.liquidity != nil {
		for _, token := range plan.Tokens {
			depth, err := a.liquidity.GetLiquidityDepth(ctx, token)
			if err != nil {
				logger.Log.WithError(err).WithField("token", token).Warn("Liquidity depth lookup failed")
				continue
			}
			plan.LiquidityDepth[token] = depth
		}
	}

	if a.routes != nil && len(plan.Tokens) > 0 {
		routes, err := a.routes.FindAlternativeRoutes(ctx, plan.Tokens)
		if err != nil {
			logger.Log.WithError(err).Warn("Alternative route lookup failed")
		} else {
			plan.AlternateRoutes = routes
		}
	}
	return plan
}

func topTokens(pattern *models.CompetitorPattern, limit int) []string {
	tokens := make([]string, 0, len(pattern.PreferredTokens))
	for token := range pattern.PreferredTokens {
		tokens = append(tokens, token)
	}
	sort.Strings(tokens)
	if len(tokens) > limit {
		tokens = tokens[:limit]
	}
	return tokens
}
