package common

// ProfilePicturePrefix is the object-store namespace owned by the media
// attachment service.
const ProfilePicturePrefix = "profile-pics/"

// AllowedImageTypes lists the content types accepted for profile pictures.
var AllowedImageTypes = map[string]struct{}{
	"image/png":  {},
	"image/jpg":  {},
	"image/jpeg": {},
}
