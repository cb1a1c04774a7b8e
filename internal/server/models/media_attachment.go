package models

import "time"

// MediaAttachment describes the profile image of an account. The binary
// payload lives in object storage under ObjectKey; at most one attachment
// exists per account.
type MediaAttachment struct {
	ID          string    `json:"id"`
	AccountID   string    `json:"user_id"`
	ObjectKey   string    `json:"-"`
	FileName    string    `json:"file_name"`
	ContentType string    `json:"content_type"`
	URL         string    `json:"url"`
	UploadedAt  time.Time `json:"upload_date"`
}
