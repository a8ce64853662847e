package models

// UploadTicket authorizes exactly one upload. It is never persisted.
type UploadTicket struct {
	Timestamp int64  `json:"timestamp"`
	Signature string `json:"signature"`
	APIKey    string `json:"api_key"`
	CloudName string `json:"cloud_name"`
	Folder    string `json:"folder,omitempty"`
}

// TicketResponse is the wire shape of the ticket endpoint.
type TicketResponse struct {
	OK        bool   `json:"ok"`
	Signature string `json:"signature,omitempty"`
	Timestamp int64  `json:"timestamp,omitempty"`
	APIKey    string `json:"api_key,omitempty"`
	CloudName string `json:"cloud_name,omitempty"`
	Error     string `json:"error,omitempty"`
	Details   string `json:"details,omitempty"`
}

// StoredObject describes an object the store accepted.
type StoredObject struct {
	SecureURL        string       `json:"secure_url"`
	ResourceKind     ResourceKind `json:"resource_type"`
	OriginalFilename string       `json:"original_filename"`
	Format           string       `json:"format"`
	StorageKey       string       `json:"public_id"`
}

// UploadFile is one selected file.
type UploadFile struct {
	Name        string
	ContentType string
	Content     []byte
}
