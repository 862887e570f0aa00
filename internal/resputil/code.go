package resputil

type ErrorCode int

const (
	OK ErrorCode = 0

	// General
	InvalidRequest ErrorCode = 40001

	// Token
	TokenExpired ErrorCode = 40101
	TokenInvalid ErrorCode = 40102

	// Login
	InvalidCredentials ErrorCode = 40103
	EmailTaken         ErrorCode = 40104

	// Actor is neither a member nor the creator of the project
	NotProjectMember ErrorCode = 40301

	// Entity id does not resolve
	EntityNotFound ErrorCode = 40401

	// Role already taken, duplicate membership, duplicate CV entry
	StateConflict ErrorCode = 40901

	// Indicates laziness of the developer
	// Frontend will directly print the message without any translation
	NotSpecified ErrorCode = 99999
)
