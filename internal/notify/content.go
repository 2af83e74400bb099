package notify

import (
	"fmt"

	"golang.org/x/text/unicode/norm"

	"github.com/roach88/georemind/internal/proximity"
)

// StatusChannel is the channel every engine notification is posted to.
const StatusChannel = "georemind.status"

// LoadingText is shown until a nearest reminder is known.
const LoadingText = "Looking for the nearest reminder…"

// Status is the immutable snapshot the loop reads on every tick.
//
// Active is -1 while the reminder count is still unknown.
type Status struct {
	Active    int
	Degraded  bool
	Proximity proximity.State
}

// UnknownStatus is the status before the first reminder emission.
func UnknownStatus() Status {
	return Status{Active: -1}
}

// Content is one notification body.
type Content struct {
	Title    string  `json:"title,omitempty"`
	Distance float64 `json:"distance"`
	Loading  bool    `json:"loading,omitempty"`
}

// Loading returns the placeholder content.
func Loading() Content {
	return Content{Loading: true}
}

// ContentFor builds the content for s: the nearest reminder when the
// proximity state is valid, the placeholder otherwise.
func ContentFor(s Status) Content {
	if s.Degraded || !s.Proximity.Valid || s.Proximity.Nearest == nil {
		return Loading()
	}
	return Content{
		Title:    s.Proximity.Nearest.DisplayTitle(),
		Distance: s.Proximity.Distance,
	}
}

// Text renders c for display. Titles are NFC-normalised so composed and
// decomposed input render identically.
func (c Content) Text() string {
	if c.Loading {
		return LoadingText
	}
	return fmt.Sprintf("%s · after · %.2f km.", norm.NFC.String(c.Title), c.Distance)
}
