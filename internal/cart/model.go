package cart

import (
	"time"

	"github.com/gofrs/uuid"

	"github.com/barelle/storefront/internal/catalog"
	"github.com/barelle/storefront/internal/pricing"
)

type OwnerKind string

const (
	OwnerSession OwnerKind = "session"
	OwnerUser    OwnerKind = "user"
)

// Owner identifies whose cart a line belongs to: an anonymous session token
// or a registered user, never both.
type Owner struct {
	Kind OwnerKind
	ID   string
}

func SessionOwner(sessionID string) Owner {
	return Owner{Kind: OwnerSession, ID: sessionID}
}

func UserOwner(userID uuid.UUID) Owner {
	return Owner{Kind: OwnerUser, ID: userID.String()}
}

func (o Owner) Valid() bool {
	switch o.Kind {
	case OwnerSession:
		return o.ID != ""
	case OwnerUser:
		id, err := uuid.FromString(o.ID)
		return err == nil && id != uuid.Nil
	}
	return false
}

// UserID returns the owner's user id, or uuid.Nil for session owners.
func (o Owner) UserID() uuid.UUID {
	if o.Kind != OwnerUser {
		return uuid.Nil
	}
	return uuid.FromStringOrNil(o.ID)
}

func (o Owner) String() string {
	return string(o.Kind) + ":" + o.ID
}

func (o Owner) column() string {
	if o.Kind == OwnerUser {
		return "user_id"
	}
	return "session_id"
}

func (o Owner) value() any {
	if o.Kind == OwnerUser {
		return o.UserID()
	}
	return o.ID
}

type Line struct {
	ID        uuid.UUID       `json:"id"`
	ProductID uuid.UUID       `json:"productId"`
	Quantity  int             `json:"quantity"`
	CreatedAt time.Time       `json:"createdAt"`
	UpdatedAt time.Time       `json:"updatedAt"`
	Product   catalog.Product `json:"product"`
}

// Items converts cart lines into pricing input using each product's current
// price points.
func Items(lines []Line) []pricing.Item {
	items := make([]pricing.Item, 0, len(lines))
	for _, l := range lines {
		items = append(items, l.Product.PricingItem(l.Quantity))
	}
	return items
}
