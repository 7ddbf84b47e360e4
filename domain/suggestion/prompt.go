package suggestion

// Prompts sent to the AI collaborator. The system prompt describes the
// payload shape Parse accepts.
const (
	SystemPrompt = "You are a brainstorming assistant for a mind map. Reply with a JSON object " +
		"mapping category names to arrays of concepts. Each concept has a title, a reason and " +
		"optional sub_branches with the same shape."
	DefaultMessage = "Suggest ideas that expand on the focal node."
)
