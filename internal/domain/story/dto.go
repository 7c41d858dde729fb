package story

// CreateRequest carries everything needed to create a story remotely.
// Photo holds the raw image bytes so the request can be rebuilt from a
// persisted outbox action.
type CreateRequest struct {
	Description string   `json:"description"`
	Photo       []byte   `json:"photo"`
	PhotoName   string   `json:"photoName"`
	Lat         *float64 `json:"lat,omitempty"`
	Lon         *float64 `json:"lon,omitempty"`
}

// RegisterRequest is the payload for user registration.
type RegisterRequest struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

// LoginRequest is the payload for authentication.
type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// LoginResult is the authenticated part of a successful login response.
type LoginResult struct {
	UserID string `json:"userId"`
	Name   string `json:"name"`
	Token  string `json:"token"`
}
