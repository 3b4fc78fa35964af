package core

import (
	"context"
	"errors"
	"fmt"
)

// RawEventRecord is the untrusted event shape emitted by the provider.
// Every field tolerates absence and loose JSON typing; no invariants hold yet.
type RawEventRecord struct {
	ID          FlexString  `json:"id"`
	Title       FlexString  `json:"title"`
	ImageURL    FlexString  `json:"imageUrl"`
	StartTime   FlexString  `json:"startTime"`
	EndTime     FlexString  `json:"endTime"`
	City        FlexString  `json:"city"`
	Location    RawLocation `json:"location"`
	Genres      FlexStrings `json:"genres"`
	Type        FlexString  `json:"type"`
	Level       FlexString  `json:"level"`
	Cost        FlexString  `json:"cost"`
	Description FlexString  `json:"description"`
	Website     FlexString  `json:"website"`
	Host        FlexString  `json:"host"`
}

// RawLocation is the nested location object of a RawEventRecord.
type RawLocation struct {
	Venue   FlexString `json:"venue"`
	Address FlexString `json:"address"`
	Lat     FlexFloat  `json:"lat"`
	Lng     FlexFloat  `json:"lng"`
}

// Citation is one grounding entry returned next to the provider text.
type Citation struct {
	URI   string `json:"uri"`
	Title string `json:"title,omitempty"`
}

// ProviderResponse is the provider's free text plus its citations.
type ProviderResponse struct {
	Text      string     `json:"text"`
	Citations []Citation `json:"citations,omitempty"`
}

// Provider turns a prompt into free text using a web-search capable model.
type Provider interface {
	Search(ctx context.Context, prompt string) (*ProviderResponse, error)
}

// CredentialedProvider is implemented by providers that can tell, without any
// network call, whether they hold a usable credential.
type CredentialedProvider interface {
	HasCredentials() bool
}

// Stage is one step of the search progress sequence.
type Stage string

const (
	StageDetectingLocation      Stage = "detecting_location"
	StageInitializingProvider   Stage = "initializing_provider"
	StageSettingLocationContext Stage = "setting_location_context"
	StageFilteringDanceStyle    Stage = "filtering_dance_style"
	StageFilteringDate          Stage = "filtering_date"
	StageSearchingStudios       Stage = "searching_studios"
	StageCheckingSocialMedia    Stage = "checking_social_media"
	StageScanningWebsites       Stage = "scanning_websites"
	StageFilteringEventType     Stage = "filtering_event_type"
	StageProcessingResults      Stage = "processing_results"
	StageOrganizingByDistance   Stage = "organizing_by_distance"
	StageFinalizing             Stage = "finalizing"
	StageComplete               Stage = "complete"
)

// Stages lists every stage in emission order.
var Stages = []Stage{
	StageDetectingLocation,
	StageInitializingProvider,
	StageSettingLocationContext,
	StageFilteringDanceStyle,
	StageFilteringDate,
	StageSearchingStudios,
	StageCheckingSocialMedia,
	StageScanningWebsites,
	StageFilteringEventType,
	StageProcessingResults,
	StageOrganizingByDistance,
	StageFinalizing,
	StageComplete,
}

// ProgressFunc receives stage transitions. It must not block for long.
type ProgressFunc func(Stage)

// Outcome classifies how a search ended.
type Outcome string

const (
	OutcomeOK            Outcome = "ok"
	OutcomeNoCredentials Outcome = "no_credentials"
	OutcomeProviderError Outcome = "provider_error"
	OutcomeCanceled      Outcome = "canceled"
	OutcomeSuperseded    Outcome = "superseded"
)

// ErrMissingCredentials is returned before any network call when the provider has no key.
var ErrMissingCredentials = errors.New("provider credential is missing")

// ProviderError wraps a failed provider call with its HTTP status when known.
type ProviderError struct {
	Status  int
	Message string
	Err     error
}

// Error implements error.
func (e *ProviderError) Error() string {
	if e == nil {
		return "provider error"
	}
	msg := e.Message
	if msg == "" && e.Err != nil {
		msg = e.Err.Error()
	}
	if e.Status > 0 {
		return fmt.Sprintf("provider error (status %d): %s", e.Status, msg)
	}
	return fmt.Sprintf("provider error: %s", msg)
}

// Unwrap returns the underlying error.
func (e *ProviderError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// Fetcher performs a GET and returns the body with its status code.
type Fetcher interface {
	Get(ctx context.Context, url string, headers map[string]string) ([]byte, int, error)
}

// StatusError reports an upstream HTTP response that was not usable.
type StatusError struct {
	URL    string
	Status int
}

// Error implements error.
func (e *StatusError) Error() string {
	if e == nil {
		return "unexpected status"
	}
	return fmt.Sprintf("unexpected status %d from %s", e.Status, e.URL)
}
