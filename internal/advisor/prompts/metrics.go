package prompts

import (
	"fmt"
	"math"

	"github.com/signalroi/signalroi/internal/metrics"
	"github.com/signalroi/signalroi/pkg/utils"
)

// InsightsUserPrompt lists the snapshot figures for a full analysis.
func InsightsUserPrompt(m metrics.Metrics) string {
	verdict := "⚠️ Loss-making"
	if m.EBITDA > 0 {
		verdict = "✅ Profitable"
	}

	return fmt.Sprintf(`Analyze this D2C business performance:

**PROFITABILITY METRICS:**
- Net Revenue: %s
- Contribution Margin: %s (%s%% of revenue)
- EBITDA: %s %s

**EFFICIENCY METRICS:**
- MER (Marketing Efficiency): %s (Revenue/Ad Spend)
- Blended CAC (New Customers Only): %s
- Cost Per Order (All Orders): %s

**SCALING METRICS:**
- Safe Max CPA (Bid Limit): %s
- Net Cash Burn (Monthly): %s
- Total Ad Spend (Monthly): %s

Based on ONLY these exact numbers, provide a comprehensive analysis:

1. **Key Insight** - What's the critical issue or opportunity here? Be specific and explain the underlying dynamics.

2. **Health Check** - Deep dive into each key metric:
   - ✅ Strong metrics (explain why they're strong and what they enable)
   - ⚠️ Concerning metrics (explain the risk and what breaks if left unaddressed)
   - Include context about why each metric matters

3. **Top 3 Actions** - Give detailed, implementable recommendations:
   - What specific action to take
   - What target metrics/outcomes to aim for
   - Why this matters (expected impact on business)
   - How to implement (concrete steps)
   - What to watch for (success indicators)

IMPORTANT: Complete all three sections with detailed analysis. You have 500 words - use them to provide deep, actionable insights. Be direct and practical. Speak like you're advising a fellow operator who needs to make decisions today.`,
		utils.FormatCurrency(m.NetRevenue),
		utils.FormatCurrency(m.CMDollars), utils.FormatFixed(m.CMPercent, 1),
		utils.FormatCurrency(m.EBITDA), verdict,
		utils.FormatRatio(m.MER),
		utils.FormatCurrency(m.BlendedCAC),
		utils.FormatCurrency(m.CostPerOrder),
		utils.FormatCurrency(m.SafeMaxCPA),
		utils.FormatCurrency(m.NetBurn),
		utils.FormatCurrency(m.AdSpendTotal),
	)
}

// Insights combines the system framing and the figures into the single
// prompt sent for an analysis.
func Insights(m metrics.Metrics) string {
	return InsightsSystemPrompt + "\n\n" + InsightsUserPrompt(m)
}

// ChatSystemPrompt frames the conversational advisor around the snapshot.
func ChatSystemPrompt(m metrics.Metrics) string {
	cur := utils.FormatCurrency

	ebitdaNote := "(Losing money)"
	if m.EBITDA > 0 {
		ebitdaNote = "(Profitable)"
	}
	ebitdaSign := "positive"
	if m.EBITDA < 0 {
		ebitdaSign = "negative"
	}
	headroom := m.SafeMaxCPA - m.BlendedCAC
	fixedOpex := m.CMDollars - m.AdSpendTotal - m.EBITDA
	loss := math.Abs(m.EBITDA)

	return fmt.Sprintf(`You are a sharp D2C business advisor who spots problems and opportunities immediately. Give direct, insightful advice.

**USER'S CURRENT METRICS:**
- Net Revenue: %s
- Contribution Margin: %s (%s%% margin)
- EBITDA: %s %s
- MER (Marketing Efficiency): %s
- Blended CAC: %s
- Cost Per Order: %s
- Safe Max CPA: %s
- Net Cash Burn: %s
- Total Ad Spend: %s

**YOUR APPROACH:**
- Spot the real issue immediately
- Give specific numbers and actions
- Point out what they're missing
- Challenge assumptions if needed
- Compare to healthy benchmarks

**RESPONSE STYLE:**
- Start with the insight or problem
- Use their actual numbers to prove your point
- End with 1-2 specific actions
- 2-3 short paragraphs max
- No fluff or obvious statements

**EXAMPLES:**

Q: "What is Safe Max CPA?"
A: "Your Safe Max CPA is %s - that's the ceiling before you lose money on new customers. Right now you're at %s, so you have %s of room. But here's what matters: with %s EBITDA, scaling CAC up would burn more cash. Fix profitability first, then use that headroom."

Q: "Why is my EBITDA negative?"
A: "You're bleeding %s monthly because ad spend (%s) + OpEx (%s) eat %s%% of your CM. Healthy brands keep marketing under 60%% of CM. Cut ad spend to %s or reduce OpEx by %s to reach breakeven immediately."

Q: "How much can I scale?"
A: "Not much right now - you're already burning %s monthly including inventory. Your CAC has room (%s to max), but EBITDA is %s. Fix the unit economics first: either cut %s in costs or boost CM by %s%%. Then scale profitably."

Be direct. Uncover the real problem. Give specific actions.`,
		cur(m.NetRevenue),
		cur(m.CMDollars), utils.FormatFixed(m.CMPercent, 1),
		cur(m.EBITDA), ebitdaNote,
		utils.FormatRatio(m.MER),
		cur(m.BlendedCAC),
		cur(m.CostPerOrder),
		cur(m.SafeMaxCPA),
		cur(m.NetBurn),
		cur(m.AdSpendTotal),
		// Safe Max CPA example
		cur(m.SafeMaxCPA), cur(m.BlendedCAC), cur(headroom), ebitdaSign,
		// EBITDA example
		cur(loss), cur(m.AdSpendTotal), cur(fixedOpex), percentOf(m.AdSpendTotal, m.CMDollars),
		cur(m.CMDollars*0.5), cur(loss),
		// Scaling example
		cur(math.Abs(m.NetBurn)), cur(headroom), ebitdaSign, cur(loss), percentOf(loss, m.CMDollars),
	)
}

// percentOf renders part/whole as a whole-number percentage, or "0" when the
// whole is zero.
func percentOf(part, whole float64) string {
	if whole == 0 {
		return "0"
	}
	return utils.FormatFixed(part/whole*100, 0)
}
