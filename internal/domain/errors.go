package domain

import (
	"fmt"
)

type AppError struct {
	Code       string `json:"code"`
	Message    string `json:"message"`
	StatusCode int    `json:"-"`
	Err        error  `json:"-"`
}

func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *AppError) Unwrap() error {
	return e.Err
}

// Is matches on Code so wrapped copies made by WithError still compare equal
// to the sentinel they were derived from.
func (e *AppError) Is(target error) bool {
	t, ok := target.(*AppError)
	if !ok {
		return false
	}
	return e.Code == t.Code
}

func (e *AppError) WithError(err error) *AppError {
	return &AppError{
		Code:       e.Code,
		Message:    e.Message,
		StatusCode: e.StatusCode,
		Err:        err,
	}
}

// Pre-defined errors
var (
	ErrInternal = &AppError{
		Code:       "INTERNAL_ERROR",
		Message:    "An unexpected error occurred",
		StatusCode: 500,
	}

	ErrBadRequest = &AppError{
		Code:       "BAD_REQUEST",
		Message:    "Invalid request",
		StatusCode: 400,
	}

	ErrUnauthorized = &AppError{
		Code:       "UNAUTHORIZED",
		Message:    "Invalid credentials",
		StatusCode: 401,
	}

	ErrTokenExpired = &AppError{
		Code:       "TOKEN_EXPIRED",
		Message:    "Session expired, please log in again",
		StatusCode: 401,
	}

	ErrNotFound = &AppError{
		Code:       "NOT_FOUND",
		Message:    "Resource not found",
		StatusCode: 404,
	}

	ErrValidationFailed = &AppError{
		Code:       "VALIDATION_FAILED",
		Message:    "Request validation failed",
		StatusCode: 422,
	}

	ErrRateLimitExceeded = &AppError{
		Code:       "RATE_LIMIT_EXCEEDED",
		Message:    "Rate limit exceeded, please try again later",
		StatusCode: 429,
	}

	ErrInvalidImage = &AppError{
		Code:       "INVALID_IMAGE",
		Message:    "Invalid image format or corrupted file",
		StatusCode: 422,
	}

	// Capture errors

	ErrModelLoad = &AppError{
		Code:       "MODEL_LOAD_FAILED",
		Message:    "Failed to load face recognition models",
		StatusCode: 503,
	}

	ErrNoFaceDetected = &AppError{
		Code:       "NO_FACE_DETECTED",
		Message:    "No face detected, please position yourself better",
		StatusCode: 422,
	}

	ErrSessionNotFound = &AppError{
		Code:       "CAPTURE_SESSION_NOT_FOUND",
		Message:    "Capture session not found or already closed",
		StatusCode: 404,
	}

	ErrInvalidTransition = &AppError{
		Code:       "INVALID_CAPTURE_STATE",
		Message:    "Operation not allowed in the current capture state",
		StatusCode: 409,
	}

	ErrSourceBusy = &AppError{
		Code:       "FRAME_SOURCE_BUSY",
		Message:    "The camera is in use by another capture session",
		StatusCode: 409,
	}

	ErrNoStillImage = &AppError{
		Code:       "NO_STILL_IMAGE",
		Message:    "No face image captured",
		StatusCode: 422,
	}

	// Verification errors

	ErrVerificationMismatch = &AppError{
		Code:       "FACE_MISMATCH",
		Message:    "Face does not match the registered user",
		StatusCode: 401,
	}

	ErrVerificationServer = &AppError{
		Code:       "VERIFICATION_SERVER_ERROR",
		Message:    "Face verification failed on the server",
		StatusCode: 502,
	}

	ErrVerificationNetwork = &AppError{
		Code:       "VERIFICATION_UNAVAILABLE",
		Message:    "Face verification service unreachable",
		StatusCode: 503,
	}

	ErrVerificationInFlight = &AppError{
		Code:       "VERIFICATION_IN_PROGRESS",
		Message:    "A verification is already in progress for this session",
		StatusCode: 409,
	}

	// Flow errors

	ErrFaceRequired = &AppError{
		Code:       "FACE_REQUIRED",
		Message:    "Please verify your face before continuing",
		StatusCode: 422,
	}

	ErrBackendUnavailable = &AppError{
		Code:       "BACKEND_UNAVAILABLE",
		Message:    "Inventory backend unreachable",
		StatusCode: 502,
	}
)
