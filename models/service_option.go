package models

// ServiceOption is a catalog entry eligible for selection during disambiguation.
// It is a read-only snapshot returned by the catalog store.
type ServiceOption struct {
	ID              string  `bson:"id" json:"id"`
	Name            string  `bson:"name" json:"name"`
	NormalizedName  string  `bson:"nameNormalized" json:"normalizedName"`
	ProfessionalID  string  `bson:"professionalId" json:"professionalId"`
	Category        string  `bson:"category" json:"category"`
	Price           float64 `bson:"price" json:"price"`
	DurationMinutes int     `bson:"durationMinutes" json:"durationMinutes"`
	Popularity      int     `bson:"popularity" json:"popularity,omitempty"` // confirmed/completed bookings in the trailing window
	Score           float64 `bson:"score,omitempty" json:"score,omitempty"` // text similarity, search path only
}

// CatalogService is the stored catalog document/row the options are projected from.
type CatalogService struct {
	ID                 string  `bson:"id" json:"id"`
	Name               string  `bson:"name" json:"name"`
	NameNormalized     string  `bson:"nameNormalized" json:"nameNormalized"`
	ProfessionalID     string  `bson:"professionalId" json:"professionalId"`
	Category           string  `bson:"category" json:"category"`
	CategoryNormalized string  `bson:"categoryNormalized" json:"categoryNormalized"`
	Price              float64 `bson:"price" json:"price"`
	DurationMinutes    int     `bson:"durationMinutes" json:"durationMinutes"`
	Active             bool    `bson:"active" json:"active"`
}

// Booking statuses that count towards trailing-window popularity.
const (
	BookingStatusConfirmed = "confirmed"
	BookingStatusCompleted = "completed"
)

// CatalogStats are aggregate figures used by the admin stats endpoint.
type CatalogStats struct {
	DistinctCategories int     `json:"distinctCategories"`
	AveragePopularity  float64 `json:"averagePopularity"`
}
