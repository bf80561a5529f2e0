package catalogRepo

import (
	"sort"
	"strings"

	"disambiguator/models"
)

// SortByPopularity orders options for the category path.
func SortByPopularity(options []models.ServiceOption) {
	sort.SliceStable(options, func(i, j int) bool {
		a, b := options[i], options[j]
		if a.Popularity != b.Popularity {
			return a.Popularity > b.Popularity
		}
		if a.Price != b.Price {
			return a.Price < b.Price
		}
		return a.Name < b.Name
	})
}

// SortBySimilarity orders options for the text search path.
func SortBySimilarity(options []models.ServiceOption) {
	sort.SliceStable(options, func(i, j int) bool {
		a, b := options[i], options[j]
		if a.Score != b.Score {
			return a.Score > b.Score
		}
		if a.Popularity != b.Popularity {
			return a.Popularity > b.Popularity
		}
		if a.Price != b.Price {
			return a.Price < b.Price
		}
		return a.Name < b.Name
	})
}

// scoredService is a stored service with its computed popularity, as
// decoded from the document store before text scoring.
type scoredService struct {
	models.CatalogService `bson:",inline"`
	Popularity            int `bson:"popularity"`
}

func (s scoredService) option(score float64) models.ServiceOption {
	return models.ServiceOption{
		ID:              s.ID,
		Name:            s.Name,
		NormalizedName:  s.NameNormalized,
		ProfessionalID:  s.ProfessionalID,
		Category:        s.Category,
		Price:           s.Price,
		DurationMinutes: s.DurationMinutes,
		Popularity:      s.Popularity,
		Score:           score,
	}
}

// textScore returns the similarity of s to term and whether s qualifies:
// above threshold or containing term.
func textScore(s scoredService, term string, threshold float64) (float64, bool) {
	score := max(Similarity(s.NameNormalized, term), Similarity(s.CategoryNormalized, term))
	substring := strings.Contains(s.NameNormalized, term) || strings.Contains(s.CategoryNormalized, term)
	return score, score > threshold || substring
}

// rankByText scores services against term and keeps the ones that qualify,
// best first.
func rankByText(services []scoredService, term string, limit int, threshold float64) []models.ServiceOption {
	options := make([]models.ServiceOption, 0, len(services))
	for _, s := range services {
		if score, ok := textScore(s, term, threshold); ok {
			options = append(options, s.option(score))
		}
	}
	SortBySimilarity(options)
	if len(options) > limit {
		options = options[:limit]
	}
	return options
}
