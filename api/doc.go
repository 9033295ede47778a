// Package api provides OpenAPI/Swagger documentation for the SpeechFlow API.
//
// This package contains the request/response DTOs and related documentation
// for the SpeechFlow HTTP API.
//
// # API Overview
//
// SpeechFlow provides a RESTful API for:
//   - Text-to-speech synthesis with tier-aware provider fallback
//   - Speech-to-text transcription of recorded audio
//   - Pronunciation challenges, attempt scoring and progress tracking
//   - Operator-triggered curriculum audio prewarming
//   - Health monitoring and metrics
//
// # Authentication
//
// Caller tier is resolved from an optional JWT bearer token:
//
//	Authorization: Bearer <token>
//
// Requests without a token are served as anonymous free-tier callers.
// Operator endpoints (curriculum prewarm) require a token.
//
// # Base URL
//
// The default base URL for the API is:
//
//	http://localhost:8080
//
// # Generating Documentation
//
// To regenerate Swagger documentation using swag:
//
//	swag init -g cmd/speechflow/main.go -o api --parseDependency --parseInternal
package api
