package domain

import "strings"

// Type is the coarse device class recorded on a session.
type Type string

const (
	TypeMobile  Type = "mobile"
	TypeTablet  Type = "tablet"
	TypeDesktop Type = "desktop"
	// TypeAdmin marks sessions minted by admin impersonation rather than a real device.
	TypeAdmin Type = "admin"
)

// Info is what a request reveals about the client. Every field is nil when unknown.
type Info struct {
	UserAgent  *string
	IPAddress  *string
	DeviceType *Type
}

// Classify maps a user agent to a device class by case-insensitive substring match.
// Tablet markers win over mobile ones (iPad and Android tablets also mention "mobile").
func Classify(userAgent string) Type {
	ua := strings.ToLower(userAgent)
	switch {
	case strings.Contains(ua, "tablet"), strings.Contains(ua, "ipad"):
		return TypeTablet
	case strings.Contains(ua, "mobile"), strings.Contains(ua, "android"), strings.Contains(ua, "iphone"):
		return TypeMobile
	default:
		return TypeDesktop
	}
}
