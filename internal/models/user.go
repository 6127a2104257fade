package models

// DisplayInfo holds the profile attributes used to enrich chat payloads.
type DisplayInfo struct {
	ID        string `json:"_id"`
	Name      string `json:"name"`
	AvatarURL string `json:"avatarUrl"`
}
