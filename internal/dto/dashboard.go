package dto

import "github.com/risky-biz/harmoni-hse-360-sub005/internal/models"

// DashboardSummaryResponse aggregates the three compliance registers.
// Counts always reflect the full collections, independent of any list
// filters active in the client.
type DashboardSummaryResponse struct {
	Hazards   models.HazardSummary   `json:"hazards"`
	Licenses  models.LicenseSummary  `json:"licenses"`
	Trainings models.TrainingSummary `json:"trainings"`
}
