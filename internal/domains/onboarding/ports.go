package onboarding

import "context"

// ========================================
// REGISTRATION API
// ========================================

// FilePart is a file attached to the multipart submission
type FilePart struct {
	FieldName   string
	FileName    string
	ContentType string
	Data        []byte
}

// RegistrationRequest is one multipart submission
type RegistrationRequest struct {
	Flow        FlowID
	Role        Role
	AccessToken string
	Values      map[string]string
	File        *FilePart
}

// RegistrationResult is the 2xx payload of the registration API
type RegistrationResult struct {
	RedirectURL string `json:"redirect_url"`
	UserRole    string `json:"user_role"`
	UserID      string `json:"user_id"`
	Message     string `json:"message"`
	CreatorID   string `json:"creator_id,omitempty"`
	BrandID     string `json:"brand_id,omitempty"`
}

// Registrar submits a completed wizard. Failures are *APIError,
// *TransportError or an error wrapping ErrMalformedResponse.
type Registrar interface {
	Register(ctx context.Context, req RegistrationRequest) (*RegistrationResult, error)
}

// AvailabilityChecker answers whether a username or email is still free
type AvailabilityChecker interface {
	CheckAvailability(ctx context.Context, field FieldKey, value string) (bool, error)
}

// ========================================
// FIRE-AND-FORGET SIDE CALLS
// ========================================

// Analytics dispatches events without affecting control flow
type Analytics interface {
	Emit(ctx context.Context, event Event) error
}

// IndexNotifier tells search engines about a new public creator profile
type IndexNotifier interface {
	NotifyProfile(ctx context.Context, username string) error
}

// ========================================
// PROFILE PICTURES & CREDENTIALS
// ========================================

// PictureUpload is a raw image posted by the client
type PictureUpload struct {
	FileName    string
	ContentType string
	Data        []byte
}

// PictureStore stages profile pictures until submission
type PictureStore interface {
	Stage(ctx context.Context, ns string, upload PictureUpload) (Picture, error)
	Fetch(ctx context.Context, key string) ([]byte, error)
	Remove(ctx context.Context, key string) error
}

// Credentials holds the upstream bearer token of one session
type Credentials interface {
	AccessToken(ctx context.Context) (string, error)
	Clear(ctx context.Context) error
}
