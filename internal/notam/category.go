package notam

// Category vocabulary shared by the categorizers and the query layer
const (
	CategoryRunway         = "runway"
	CategoryTaxiway        = "taxiway"
	CategoryApron          = "apron"
	CategoryAerodrome      = "aerodrome"
	CategoryLighting       = "lighting"
	CategoryNavigation     = "navigation"
	CategoryCommunications = "communications"
	CategoryAirspace       = "airspace"
	CategoryObstacle       = "obstacle"
	CategoryProcedure      = "procedure"
	CategoryServices       = "services"
	CategoryWarning        = "warning"
	CategoryOther          = "other"
)

// Tags emitted by the default rules and the Q-code condition table
const (
	TagClosed              = "closed"
	TagWorkInProgress      = "work_in_progress"
	TagUnserviceable       = "unserviceable"
	TagNotAvailable        = "not_available"
	TagLimited             = "limited"
	TagActivated           = "activated"
	TagChanged             = "changed"
	TagObstacle            = "obstacle"
	TagILS                 = "ils"
	TagRunwayLighting      = "runway_lighting"
	TagDisplacedThreshold  = "displaced_threshold"
	TagRunwayContamination = "runway_contamination"
	TagWildlife            = "wildlife"
	TagDrone               = "drone"
	TagMilitary            = "military"
	TagTemporary           = "temporary"
	TagOther               = "other"
)

// Categories lists the vocabulary in display order
var Categories = []string{
	CategoryRunway,
	CategoryTaxiway,
	CategoryApron,
	CategoryAerodrome,
	CategoryLighting,
	CategoryNavigation,
	CategoryCommunications,
	CategoryAirspace,
	CategoryObstacle,
	CategoryProcedure,
	CategoryServices,
	CategoryWarning,
	CategoryOther,
}

// RunwayTags are tags that make a NOTAM runway related even without the runway category
var RunwayTags = []string{
	TagDisplacedThreshold,
	TagRunwayContamination,
	TagILS,
	TagRunwayLighting,
}

// IsRunwayRelated reports whether the NOTAM carries the runway category or a runway tag
func IsRunwayRelated(n *Notam) bool {
	return n.CustomCategories.Has(CategoryRunway) || n.CustomTags.HasAny(RunwayTags...)
}
