package domain

import "github.com/google/uuid"

// Typed IDs keep entity identifiers from being mixed up at call sites.
// They are plain UUID wrappers; stores convert with uuid.UUID(id) as needed.
type (
	UserID    uuid.UUID
	ProductID uuid.UUID
	AuctionID uuid.UUID
	BidID     uuid.UUID
	OrderID   uuid.UUID
)

func NewUserID() UserID       { return UserID(uuid.New()) }
func NewProductID() ProductID { return ProductID(uuid.New()) }
func NewAuctionID() AuctionID { return AuctionID(uuid.New()) }
func NewBidID() BidID         { return BidID(uuid.New()) }
func NewOrderID() OrderID     { return OrderID(uuid.New()) }

func (id UserID) String() string    { return uuid.UUID(id).String() }
func (id ProductID) String() string { return uuid.UUID(id).String() }
func (id AuctionID) String() string { return uuid.UUID(id).String() }
func (id BidID) String() string     { return uuid.UUID(id).String() }
func (id OrderID) String() string   { return uuid.UUID(id).String() }

func (id UserID) IsZero() bool    { return uuid.UUID(id) == uuid.Nil }
func (id ProductID) IsZero() bool { return uuid.UUID(id) == uuid.Nil }
func (id AuctionID) IsZero() bool { return uuid.UUID(id) == uuid.Nil }
func (id OrderID) IsZero() bool   { return uuid.UUID(id) == uuid.Nil }

// ParseUserID parses a canonical UUID string into a UserID.
func ParseUserID(s string) (UserID, error) {
	u, err := uuid.Parse(s)
	if err != nil {
		return UserID{}, err
	}
	return UserID(u), nil
}

func ParseProductID(s string) (ProductID, error) {
	u, err := uuid.Parse(s)
	if err != nil {
		return ProductID{}, err
	}
	return ProductID(u), nil
}

func ParseAuctionID(s string) (AuctionID, error) {
	u, err := uuid.Parse(s)
	if err != nil {
		return AuctionID{}, err
	}
	return AuctionID(u), nil
}

func ParseOrderID(s string) (OrderID, error) {
	u, err := uuid.Parse(s)
	if err != nil {
		return OrderID{}, err
	}
	return OrderID(u), nil
}

// MarshalText/UnmarshalText let typed IDs round-trip through JSON as strings.
func (id UserID) MarshalText() ([]byte, error) { return []byte(id.String()), nil }
func (id *UserID) UnmarshalText(b []byte) error {
	u, err := uuid.Parse(string(b))
	if err != nil {
		return err
	}
	*id = UserID(u)
	return nil
}

func (id ProductID) MarshalText() ([]byte, error) { return []byte(id.String()), nil }
func (id *ProductID) UnmarshalText(b []byte) error {
	u, err := uuid.Parse(string(b))
	if err != nil {
		return err
	}
	*id = ProductID(u)
	return nil
}

func (id AuctionID) MarshalText() ([]byte, error) { return []byte(id.String()), nil }
func (id *AuctionID) UnmarshalText(b []byte) error {
	u, err := uuid.Parse(string(b))
	if err != nil {
		return err
	}
	*id = AuctionID(u)
	return nil
}

func (id BidID) MarshalText() ([]byte, error) { return []byte(id.String()), nil }
func (id *BidID) UnmarshalText(b []byte) error {
	u, err := uuid.Parse(string(b))
	if err != nil {
		return err
	}
	*id = BidID(u)
	return nil
}

func (id OrderID) MarshalText() ([]byte, error) { return []byte(id.String()), nil }
func (id *OrderID) UnmarshalText(b []byte) error {
	u, err := uuid.Parse(string(b))
	if err != nil {
		return err
	}
	*id = OrderID(u)
	return nil
}
