package llm

// Tool describes the metadata a tool exposes to the model.
// Execution lives behind api.Tool; this interface is only what provider
// clients need to build their native function declarations.
type Tool interface {
	// Name is the unique handler identifier the model will call.
	Name() string
	// Description tells the model what the tool does and when to use it.
	Description() string
	// Parameters returns the JSON-Schema style property map for the arguments.
	Parameters() map[string]any
	// RequiredParameters lists the mandatory argument keys.
	RequiredParameters() []string
}

// ToolDeclarations converts tool metadata into the neutral declaration shape
// every provider adapter consumes ([]map with name/description/parameters).
func ToolDeclarations(tools []Tool) []map[string]any {
	if len(tools) == 0 {
		return nil
	}
	decls := make([]map[string]any, 0, len(tools))
	for _, t := range tools {
		decls = append(decls, map[string]any{
			"name":        t.Name(),
			"description": t.Description(),
			"parameters": map[string]any{
				"type":       "object",
				"properties": t.Parameters(),
				"required":   t.RequiredParameters(),
			},
		})
	}
	return decls
}
