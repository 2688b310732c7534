package template

const defaultTemplate = `As a prompt optimization expert, rewrite the user's original input below into a high-quality prompt with a clear goal. Requirements:
1. **Understand and distill**: capture the user's core intent and underlying need, and drop vague or redundant wording.
2. **State the task**: define exactly what the AI must do.
3. **Add key context**: supply the background, assumptions and constraints the AI needs to understand the task.
4. **Define the output**: state the expected format, style, tone or structure.
5. **Be precise**: use unambiguous language with clear logic.
6. **Keep the intent**: do not distort the request or add unrelated information.
Output the optimized prompt itself without greetings, explanations, titles or labels such as "Prompt:".
Important: Output must start immediately with the rewritten prompt content. Do **NOT** add any extra words before or after the prompt.
Always respond in the language of the original input.`

const simpleTemplate = `Rewrite and compress the user's original input below into a one or two sentence AI prompt with very high information density. Requirements:
1. **Get to the point**: keep only the core instruction and the key constraints.
2. **Be minimal**: remove every non-essential description, explanation, example and emotional tone.
3. **Stay unambiguous**: the condensed instruction must remain accurate and easy to follow.
Output only the final condensed prompt with no explanation.`

const extendedTemplate = `Analyze the user's original input below in depth and restructure it into a detailed prompt containing these elements:
1. **Core Objective**: the fundamental purpose of the task.
2. **Role & Context**: the role the AI should take, if any, and the minimum background needed.
3. **Key Instructions & Steps**: the concrete requirements or reasoning steps in logical order.
4. **Input Data**: the type or content of the input to process, if any.
5. **Output Requirements**: the expected format, structure, style, tone, length and evaluation criteria.
6. **Constraints & Preferences**: limits, prohibitions and the user's special preferences.
Keep the elements well organized, complete and connected so the AI can carry out the task precisely.
Important: Output must start immediately with the rewritten prompt content, beginning with "Core Objective". Do **NOT** add greetings, explanations or titles. Use Markdown headers (e.g., ## Core Objective) when they suit the target AI, otherwise use clear text labels followed by content.
Always respond in the language of the original input.`
