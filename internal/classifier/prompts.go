package classifier

import "strings"

// Prompt templates use {placeholder} tokens substituted by renderPrompt.
// The post body replaces {content}; summarization and sentiment also take
// {character_limit}.

const significancePrompt = `You are a financial market analyst reviewing social media posts for market-moving content.

Review the post below. Market-moving content includes: earnings or guidance changes, mergers and acquisitions, regulatory or policy actions, large insider or institutional trades, product launches or failures with revenue impact, and credible macroeconomic signals.

Respond with a single line starting with the token YES or NO, followed by a brief rationale. Example: "YES - announces an unexpected acquisition of a public company."

Post:
{content}`

const sentimentPrompt = `You are a financial market analyst scoring the sentiment of a social media post.

Score four sub-factors from 0 to 25 each and sum them into a single sentiment score from 0 to 100:
1. Conviction: how strongly the author commits to their position.
2. Specificity: concrete tickers, numbers, dates and price targets.
3. Catalyst strength: how material the described event is for prices.
4. Credibility: supporting evidence, sourcing and internal consistency.

Decide whether the overall market direction conveyed is bullish or bearish.

Respond with exactly one JSON object and nothing else, in at most {character_limit} characters:
{"sentiment": <integer 0-100>, "direction": "bullish" | "bearish"}

Post:
{content}`

const summaryPrompt = `Summarize the following post in at most {character_limit} characters. Keep tickers, figures and the author's core claim. Respond with the summary text only.

Post:
{content}`

// renderPrompt substitutes {name} tokens in a template. Unknown tokens are
// left in place.
func renderPrompt(template string, vars map[string]string) string {
	pairs := make([]string, 0, len(vars)*2)
	for name, value := range vars {
		pairs = append(pairs, "{"+name+"}", value)
	}
	return strings.NewReplacer(pairs...).Replace(template)
}
