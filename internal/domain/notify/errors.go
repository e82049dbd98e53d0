package notify

import "errors"

// ErrConfiguration is returned when a registration carries a missing or
// unusable notification configuration.
var ErrConfiguration = errors.New("notify: invalid notification configuration")

// ErrInvalidShorthand is returned when a notification target is not a plain
// "#channel @person" string.
var ErrInvalidShorthand = errors.New("notify: invalid shorthand")

// ErrDirectoryFetch indicates the people directory could not be listed.
var ErrDirectoryFetch = errors.New("notify: directory fetch failed")

// ErrDelivery indicates the chat service refused or failed to post a message.
var ErrDelivery = errors.New("notify: delivery failed")
