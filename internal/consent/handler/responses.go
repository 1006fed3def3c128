package handler

import "consentry/internal/consent/banner"

// StateResponse is returned by every endpoint that reads or changes the decision.
type StateResponse struct {
	banner.State
	// Warning is set when the decision holds for this visit only.
	Warning string `json:"warning,omitempty"`
}

type TrackResponse struct {
	Delivered bool `json:"delivered"`
}
