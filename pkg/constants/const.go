package constants

const (
	// APIPrefix is the versioned route prefix for authenticated routes.
	APIPrefix = "/v1"
	// APIAuthPrefix groups the public signup/login/refresh routes.
	APIAuthPrefix = "/v1/auth"
	// APIAdminPrefix groups the admin-only routes.
	APIAdminPrefix = "/v1/admin"
)
