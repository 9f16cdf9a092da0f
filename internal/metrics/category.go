package metrics

// Accomplishment categories, used for class and polymath detection.
const (
	CategoryBuilder    = "builder"
	CategoryScribe     = "scribe"
	CategoryStrategist = "strategist"
)

// Categories lists the categories in display order.
var Categories = []string{CategoryBuilder, CategoryScribe, CategoryStrategist}

var typeCategories = map[string]string{
	"website_page":      CategoryBuilder,
	"website_component": CategoryBuilder,
	"website_lib":       CategoryBuilder,
	"website_route":     CategoryBuilder,
	"website_style":     CategoryBuilder,
	"website_config":    CategoryBuilder,
	"script":            CategoryBuilder,
	"skill_updated":     CategoryBuilder,
	"workflow_updated":  CategoryBuilder,
	"cursor_rule":       CategoryBuilder,
	"linkedin_draft":    CategoryScribe,
	"linkedin_final":    CategoryScribe,
	"x_draft":           CategoryScribe,
	"x_final":           CategoryScribe,
	"substack_draft":    CategoryScribe,
	"substack_final":    CategoryScribe,
	"reddit_draft":      CategoryScribe,
	"reddit_final":      CategoryScribe,
	"lead_magnet":       CategoryScribe,
	"partner_onboard":   CategoryStrategist,
	"partner_prompt":    CategoryStrategist,
	"partner_research":  CategoryStrategist,
	"partner_resource":  CategoryStrategist,
	"partner_workflow":  CategoryStrategist,
	"client_onboard":    CategoryStrategist,
	"client_prompt":     CategoryStrategist,
	"client_research":   CategoryStrategist,
	"client_resource":   CategoryStrategist,
	"client_workflow":   CategoryStrategist,
}

// CategoryOf returns the category of an accomplishment type tag, "" when unknown.
func CategoryOf(accomplishmentType string) string {
	return typeCategories[accomplishmentType]
}

// DayCategories returns the distinct categories touched by m.
func (m DayMetrics) DayCategories() map[string]struct{} {
	seen := make(map[string]struct{}, len(Categories))
	for _, t := range m.Types {
		if c := CategoryOf(t); c != "" {
			seen[c] = struct{}{}
		}
	}
	return seen
}
