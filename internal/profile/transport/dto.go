package transport

type UpsertProfileRequest struct {
	Age         *int     `json:"age,omitempty" validate:"omitempty,min=0,max=150"`
	Sex         *string  `json:"sex,omitempty" validate:"omitempty,oneof=male female other"`
	HeightCm    *float64 `json:"heightCm,omitempty" validate:"omitempty,gt=0,lt=300"`
	Conditions  *string  `json:"conditions,omitempty" validate:"omitempty,max=2000"`
	Medications *string  `json:"medications,omitempty" validate:"omitempty,max=2000"`
	Goals       *string  `json:"goals,omitempty" validate:"omitempty,max=2000"`
}

type ProfileResponse struct {
	Age         *int     `json:"age,omitempty"`
	Sex         *string  `json:"sex,omitempty"`
	HeightCm    *float64 `json:"heightCm,omitempty"`
	Conditions  *string  `json:"conditions,omitempty"`
	Medications *string  `json:"medications,omitempty"`
	Goals       *string  `json:"goals,omitempty"`
	CreatedAt   string   `json:"createdAt"`
	UpdatedAt   string   `json:"updatedAt"`
}
