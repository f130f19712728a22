package model

import "time"

// Profile is the public face of a user: what /profile?username= renders.
//
// Username is empty until the owner picks one (profiles created by the
// self-heal path have none), and an empty username never resolves publicly.
type Profile struct {
	UserID          string    `json:"uid"`
	Username        string    `json:"username"`
	DisplayName     string    `json:"displayName"`
	Bio             string    `json:"bio"`
	ProfileImageURL string    `json:"profileImageUrl"`
	TemplateID      string    `json:"templateId"`
	Socials         Socials   `json:"socials"`
	Embed           string    `json:"embed"`
	CreatedAt       time.Time `json:"createdAt"`
	UpdatedAt       time.Time `json:"updatedAt"`
}

// Socials holds optional handles rendered as icons under the bio.
type Socials struct {
	Instagram string `json:"instagram,omitempty"`
	Twitter   string `json:"twitter,omitempty"`
	YouTube   string `json:"youtube,omitempty"`
	TikTok    string `json:"tiktok,omitempty"`
	LinkedIn  string `json:"linkedin,omitempty"`
}

// ProfileUpdate is a merge-write: nil fields are left untouched.
type ProfileUpdate struct {
	Username        *string  `json:"username,omitempty"`
	DisplayName     *string  `json:"displayName,omitempty"`
	Bio             *string  `json:"bio,omitempty"`
	ProfileImageURL *string  `json:"profileImageUrl,omitempty"`
	TemplateID      *string  `json:"templateId,omitempty"`
	Socials         *Socials `json:"socials,omitempty"`
	Embed           *string  `json:"embed,omitempty"`
}

// Empty reports whether the update would change nothing.
func (u ProfileUpdate) Empty() bool {
	return u.Username == nil && u.DisplayName == nil && u.Bio == nil &&
		u.ProfileImageURL == nil && u.TemplateID == nil && u.Socials == nil && u.Embed == nil
}
