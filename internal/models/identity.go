package models

// Identity is a verified caller.
type Identity struct {
	UserID      string `json:"uid"`
	DisplayName string `json:"name"`
	AvatarURL   string `json:"picture,omitempty"`
}

// UploadFolder is the object-store folder all of a user's uploads go to.
func (i *Identity) UploadFolder() string {
	return "user_" + i.UserID
}
