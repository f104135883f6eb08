package authapi

import "time"

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type refreshRequest struct {
	RefreshToken string `json:"refresh_token"`
}

type serviceTokenRequest struct {
	ServiceID       string  `json:"service_id"`
	Username        string  `json:"username"`
	ComputerName    string  `json:"computer_name"`
	MachineUniqueID string  `json:"machine_unique_id"`
	MAC             *string `json:"mac"`
	OS              *string `json:"os"`
	CPU             *string `json:"cpu"`
	GPU             *string `json:"gpu"`
	RAM             *string `json:"ram"`
}

type userResponse struct {
	ID    string   `json:"id"`
	Name  string   `json:"name"`
	Email *string  `json:"email,omitempty"`
	Roles []string `json:"roles"`
}

type tokenPairResponse struct {
	AccessToken  string        `json:"access_token"`
	RefreshToken string        `json:"refresh_token"`
	ExpiresAt    time.Time     `json:"expires_at"`
	User         *userResponse `json:"user,omitempty"`
}

type serviceTokenResponse struct {
	ServiceToken string    `json:"service_token"`
	ExpiresAt    time.Time `json:"expires_at"`
	UserID       string    `json:"user_id"`
	MachineID    string    `json:"machine_id"`
}
