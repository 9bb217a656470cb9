package message

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	domain "github.com/oshokin/sos-responder/internal/domain/sos"
)

const (
	// TimeLayout renders as e.g. "07-Mar-2025 09:05".
	TimeLayout = "02-Jan-2006 15:04"
	// Unavailable replaces data that the alert does not carry.
	Unavailable = "Unavailable"
	// DefaultAppName is used when the composer has no app name.
	DefaultAppName = "Ruff"

	mapURLPrefix = "https://maps.google.com/?q="
)

// Params holds everything a message body may mention.
type Params struct {
	// Name is the originator display name.
	Name string
	// IDNumber is the originator id-number, omitted when empty.
	IDNumber string
	// Location is the alert geolocation, optional.
	Location *domain.Location
	// Time is the already formatted alert time.
	Time string
}

// Composer renders message bodies branded with the application name.
type Composer struct {
	// AppName is the product name used in message headers.
	AppName string
}

// NewComposer returns a composer for appName, falling back to DefaultAppName.
func NewComposer(appName string) Composer {
	if strings.TrimSpace(appName) == "" {
		appName = DefaultAppName
	}

	return Composer{AppName: appName}
}

// MapURL builds a map link, or returns "" unless both coordinates are present.
func MapURL(loc *domain.Location) string {
	lat, lng, ok := loc.Coordinates()
	if !ok {
		return ""
	}

	return mapURLPrefix + fixed4(lat) + "," + fixed4(lng)
}

// FormatTime renders createdAt in loc using TimeLayout.
// A zero createdAt is replaced by now.
func FormatTime(createdAt, now time.Time, loc *time.Location) string {
	if createdAt.IsZero() {
		createdAt = now
	}

	if loc == nil {
		loc = time.Local
	}

	return createdAt.In(loc).Format(TimeLayout)
}

// ContactBody is the short message for the originator's trusted contacts.
func (c Composer) ContactBody(p Params) string {
	return strings.Join([]string{
		fmt.Sprintf("Hi, this is the %s safety app.", c.AppName),
		p.Name + " may need help.",
		"",
		"Last known location: " + orUnavailable(MapURL(p.Location)),
		"Time: " + p.Time,
		"",
		"Their data connection dropped. Please try calling them.",
		"If urgent, contact campus security.",
	}, "\n")
}

// ResponderBody is the detailed dispatch message for responders.
func (c Composer) ResponderBody(p Params) string {
	user := p.Name
	if p.IDNumber != "" {
		user += " (ID: " + p.IDNumber + ")"
	}

	gps := Unavailable
	if lat, lng, ok := p.Location.Coordinates(); ok {
		gps = fixed4(lat) + ", " + fixed4(lng)
	}

	return strings.Join([]string{
		c.AppName + " SOS Alert",
		"User: " + user,
		"GPS Location: " + gps,
		"Map: " + orUnavailable(MapURL(p.Location)),
		"Time: " + p.Time,
		"",
		"Data connection lost.",
		fmt.Sprintf("This is an automated SOS beacon from the %s Campus Safety App.", c.AppName),
		"Please dispatch help or attempt to contact the user immediately.",
	}, "\n")
}

// PushTitle is the notification title of the push message.
func (c Composer) PushTitle() string {
	return c.AppName + " SOS Alert"
}

// PushBody is the notification body of the push message.
func (c Composer) PushBody(name string) string {
	return name + " needs help"
}

// Coordinate renders an optional coordinate for data payloads, "" when absent.
func Coordinate(v *float64) string {
	if v == nil {
		return ""
	}

	return strconv.FormatFloat(*v, 'f', -1, 64)
}

func fixed4(v float64) string {
	return strconv.FormatFloat(v, 'f', 4, 64)
}

func orUnavailable(s string) string {
	if s == "" {
		return Unavailable
	}

	return s
}
