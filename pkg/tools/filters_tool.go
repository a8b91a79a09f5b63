package tools

import (
	"context"
	"fmt"
	"strings"

	"pricepulse/pkg/dashboard"
)

// FiltersTool lets the assistant adjust the dashboard's visible filters.
// Applying any filter implies jumping to the analysis view; the tool only
// flags that intent and the dispatcher fires navigation once per batch.
type FiltersTool struct {
	state *dashboard.State
}

// NewFiltersTool creates the filter-update tool bound to the dashboard state.
func NewFiltersTool(state *dashboard.State) *FiltersTool {
	return &FiltersTool{state: state}
}

func (t *FiltersTool) Name() string {
	return "update_filters"
}

func (t *FiltersTool) Description() string {
	return "Update the pricing dashboard's visible filters (marketplace platform, region, product search term). Use this when the user asks to focus the dashboard on a platform, region or product."
}

func (t *FiltersTool) Parameters() map[string]any {
	return map[string]any{
		"platform": map[string]any{
			"type":        "string",
			"description": "Marketplace platform to filter by, e.g. 'Amazon', 'eBay'. Omit to leave unchanged.",
		},
		"region": map[string]any{
			"type":        "string",
			"description": "Region code or name to filter by, e.g. 'EU', 'US'. Omit to leave unchanged.",
		},
		"search": map[string]any{
			"type":        "string",
			"description": "Free-text product search term. Omit to leave unchanged.",
		},
	}
}

func (t *FiltersTool) RequiredParameters() []string {
	return []string{}
}

// Execute applies each provided setter in argument order. At least one
// filter must be present; an empty call is a handler error so the model
// gets explicit feedback instead of a silent no-op.
func (t *FiltersTool) Execute(ctx context.Context, args map[string]any) (*ToolResult, error) {
	var applied []string

	if platform, ok := args["platform"].(string); ok && platform != "" {
		t.state.SetPlatformFilter(platform)
		applied = append(applied, fmt.Sprintf("platform=%s", platform))
	}
	if region, ok := args["region"].(string); ok && region != "" {
		t.state.SetRegionFilter(region)
		applied = append(applied, fmt.Sprintf("region=%s", region))
	}
	if search, ok := args["search"].(string); ok && search != "" {
		t.state.SetSearchTerm(search)
		applied = append(applied, fmt.Sprintf("search=%q", search))
	}

	if len(applied) == 0 {
		return nil, fmt.Errorf("no recognized filter argument (expected platform, region or search)")
	}

	desc := strings.Join(applied, ", ")
	return &ToolResult{
		Summary:    fmt.Sprintf("🛠️ Updated dashboard filters (%s)", desc),
		Output:     fmt.Sprintf("Filters updated: %s", desc),
		NavigateTo: dashboard.ViewAnalysis,
	}, nil
}
