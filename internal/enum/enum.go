package enum

// ── Group A: State machines (CHECK constrained in DB) ──

const (
	OrderStatusScheduled = "SCHEDULED"
	OrderStatusDelivered = "DELIVERED"
	OrderStatusCancelled = "CANCELLED"
)

const (
	MatchStatusMatched   = "MATCHED"
	MatchStatusAmbiguous = "AMBIGUOUS"
	MatchStatusUnmatched = "UNMATCHED"
)

// ── Group C: Borderline (CHECK constrained in DB) ──

const (
	UnitKilogram = "KG"
	UnitGram     = "G"
	UnitCount    = "UNIT"
)

const (
	UserRoleAdmin    = "ADMIN"
	UserRoleCustomer = "CUSTOMER"
)

// ── Group B: Configurable labels (no DB constraint) ──

const (
	EventOrderPlaced    = "order.placed"
	EventOrderDelivered = "order.delivered"
	EventOrderCancelled = "order.cancelled"
	EventStockReceived  = "stock.received"
)

const (
	TopicKitchen = "kitchen"
)
