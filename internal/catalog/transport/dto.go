package transport

import "github.com/google/uuid"

type CreateMetricRequest struct {
	MetricKey        string   `json:"metricKey" validate:"required,min=1,max=100"`
	DisplayName      string   `json:"displayName" validate:"required,min=1,max=200"`
	Unit             string   `json:"unit" validate:"required,min=1,max=50"`
	MinValue         float64  `json:"minValue"`
	MaxValue         float64  `json:"maxValue"`
	HealthyMinMale   *float64 `json:"healthyMinMale,omitempty"`
	HealthyMaxMale   *float64 `json:"healthyMaxMale,omitempty"`
	HealthyMinFemale *float64 `json:"healthyMinFemale,omitempty"`
	HealthyMaxFemale *float64 `json:"healthyMaxFemale,omitempty"`
	Category         string   `json:"category" validate:"omitempty,max=100"`
	Description      *string  `json:"description,omitempty" validate:"omitempty,max=1000"`
	SortOrder        int      `json:"sortOrder"`
}

type UpdateMetricRequest struct {
	DisplayName      *string  `json:"displayName,omitempty" validate:"omitempty,min=1,max=200"`
	Unit             *string  `json:"unit,omitempty" validate:"omitempty,min=1,max=50"`
	MinValue         *float64 `json:"minValue,omitempty"`
	MaxValue         *float64 `json:"maxValue,omitempty"`
	HealthyMinMale   *float64 `json:"healthyMinMale,omitempty"`
	HealthyMaxMale   *float64 `json:"healthyMaxMale,omitempty"`
	HealthyMinFemale *float64 `json:"healthyMinFemale,omitempty"`
	HealthyMaxFemale *float64 `json:"healthyMaxFemale,omitempty"`
	Category         *string  `json:"category,omitempty" validate:"omitempty,max=100"`
	Description      *string  `json:"description,omitempty" validate:"omitempty,max=1000"`
	SortOrder        *int     `json:"sortOrder,omitempty"`
}

type ListMetricsRequest struct {
	Search   string `form:"search" validate:"max=100"`
	Category string `form:"category" validate:"omitempty,max=100"`
	Page     int    `form:"page" validate:"omitempty,min=1"`
	PageSize int    `form:"pageSize" validate:"omitempty,min=1,max=200"`
}

type MetricResponse struct {
	ID               uuid.UUID `json:"id"`
	MetricKey        string    `json:"metricKey"`
	DisplayName      string    `json:"displayName"`
	Unit             string    `json:"unit"`
	MinValue         float64   `json:"minValue"`
	MaxValue         float64   `json:"maxValue"`
	HealthyMinMale   *float64  `json:"healthyMinMale,omitempty"`
	HealthyMaxMale   *float64  `json:"healthyMaxMale,omitempty"`
	HealthyMinFemale *float64  `json:"healthyMinFemale,omitempty"`
	HealthyMaxFemale *float64  `json:"healthyMaxFemale,omitempty"`
	Category         string    `json:"category,omitempty"`
	Description      *string   `json:"description,omitempty"`
	SortOrder        int       `json:"sortOrder"`
	CreatedAt        string    `json:"createdAt"`
	UpdatedAt        string    `json:"updatedAt"`
}

type MetricListResponse struct {
	Items      []MetricResponse `json:"items"`
	Total      int              `json:"total"`
	Page       int              `json:"page"`
	PageSize   int              `json:"pageSize"`
	TotalPages int              `json:"totalPages"`
}
