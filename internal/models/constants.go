package models

const (
	// metadata keys stored with every chunk
	MetaSource = "source"
	MetaChunk  = "chunk"
	MetaTitle  = "title"

	CodeFence     = "```"
	JSONCodeFence = "```json"
)

// opening lines identify the prompt kind; the synthetic completion service relies on them
const (
	PlannerPreamble     = "You are an Azure FinOps expert AI agent."
	SynthesizerPreamble = "You are an Azure FinOps assistant."
	CriticPreamble      = "Rate this Azure cost analysis response."

	QuestionLabel = "User Question: "
	CostDataLabel = "Cost Data:"
	AnswerLabel   = "Answer: "
	GuidelineMark = "Guidelines:"
)

var (
	ToolDescriptions = `
Available tools - pick the ONE that best answers the user question:

1. get_cost_by_service()
   Use when: user asks which service costs most, cost breakdown, total spend.

2. get_daily_cost_trend()
   Use when: user asks about spikes, anomalies, daily burn rate, trends.

3. get_cost_by_resource_group()
   Use when: user asks about cost per team, environment, or resource group.

4. suggest_optimisations(cost_data)
   Use when: user asks how to reduce cost, save money, optimise spend.
   NOTE: You must call get_cost_by_service() FIRST and pass its result as cost_data.
`

	PlannerPromptTemplate = PlannerPreamble + `

` + QuestionLabel + `%s

Relevant Knowledge:
%s

Available Tools:
%s

Decide which tool to call.
If question is about optimisation or saving money use TWO steps:
  primary_tool = get_cost_by_service
  secondary_tool = suggest_optimisations
Otherwise just set primary_tool and set secondary_tool to null.

Respond ONLY with valid JSON no markdown:
{
  "primary_tool": "<tool_name>",
  "secondary_tool": "<tool_name or null>",
  "reasoning": "<one sentence why>"
}`

	SynthesizerPromptTemplate = SynthesizerPreamble + `
Answer the user question using the cost data and knowledge below.

` + QuestionLabel + `%s

Knowledge Base Context:
%s

` + CostDataLabel + `
%s

` + GuidelineMark + `
- Start with the key number or finding
- Use bullet points for breakdowns
- For anomalies name the exact date and amount
- For optimisations show potential savings in USD
- Keep under %d words
- If data source is mock mention demo data at the end`

	CriticPromptTemplate = CriticPreamble + `

Question: %s

` + AnswerLabel + `%s

Score on:
- Directly answers the question (3 pts)
- Includes specific dollar amounts (3 pts)
- Actionable recommendations (2 pts)
- Clear and concise (2 pts)

Respond ONLY with JSON no markdown:
{"score": <0-10>, "reason": "<one sentence>", "should_retry": <true if score < %d else false>}`

	DemoDisclosure = "Note: figures above come from synthetic demo data, not live Azure billing."
)
