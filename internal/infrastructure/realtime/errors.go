package realtime

import "errors"

var errSubscriberGone = errors.New("subscriber not registered")
