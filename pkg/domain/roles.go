package domain

// Role defines the sender of a conversation turn.
type Role string

const (
	// RoleUser indicates a message typed by the human operator.
	RoleUser Role = "user"
	// RoleModel indicates a reply from the remote model.
	RoleModel Role = "model"
	// RoleTool indicates a turn carrying tool results.
	RoleTool Role = "tool"
)

// Tool names understood by the dispatcher and declared to the model.
const (
	ToolSearchFood    = "search_food"
	ToolComparePrices = "compare_prices"
	ToolPlaceOrder    = "place_order"
	ToolGetReviews    = "get_reviews"
	ToolAnalyzeMenu   = "analyze_menu"
)
