package domain

import "time"

const SettingFacialRecognition = "facial_recognition"

// Settings are the console toggles persisted on behalf of the browser.
type Settings struct {
	FacialRecognition bool      `json:"facial_recognition"`
	UpdatedAt         time.Time `json:"updated_at,omitempty"`
}
