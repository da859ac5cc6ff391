package model

// Provider identifies where a record was obtained.
type Provider string

const (
	ProviderOfficialAPI   Provider = "official_api"
	ProviderAggregatorAPI Provider = "aggregator_api"
	ProviderCustomScraper Provider = "custom_scraper"
	ProviderManualEntry   Provider = "manual_entry"
)

// Valid reports whether p is one of the known providers.
func (p Provider) Valid() bool {
	switch p {
	case ProviderOfficialAPI, ProviderAggregatorAPI, ProviderCustomScraper, ProviderManualEntry:
		return true
	}
	return false
}

// SourceMetadata records the provenance of a scraped or ingested record.
// ScrapedAt is ISO-8601 in the reference timezone (America/Chicago).
type SourceMetadata struct {
	URL        string   `json:"url"`
	ScrapedAt  string   `json:"scraped_at"`
	Confidence *float64 `json:"confidence,omitempty"`
	Provider   Provider `json:"provider"`
}
