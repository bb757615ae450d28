// Package announce broadcasts newly found offers to chat platforms. The
// scheduler treats announcers as fire-and-forget: failures are logged and
// never retried.
package announce

import (
	"context"

	"github.com/eikowagenknecht/lootscraper-sub000/internal/model"
)

// Announcer posts one offer to one platform.
type Announcer interface {
	Name() string
	Announce(ctx context.Context, offer *model.Offer) error
}
