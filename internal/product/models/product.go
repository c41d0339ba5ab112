package models

import (
	"time"

	usermodels "coopmarket/internal/user/models"
	"coopmarket/pkg/domain"
)

// Category classifies a listing.
type Category string

const (
	CategoryChicken Category = "CHICKEN"
	CategoryHen     Category = "HEN"
	CategoryEgg     Category = "EGG"
	CategoryOther   Category = "OTHER"
)

func (c Category) Valid() bool {
	switch c {
	case CategoryChicken, CategoryHen, CategoryEgg, CategoryOther:
		return true
	}
	return false
}

// Unit is the quantity unit a product is sold in.
type Unit string

const (
	UnitPiece    Unit = "PIECE"
	UnitDozen    Unit = "DOZEN"
	UnitKilogram Unit = "KILOGRAM"
	UnitPound    Unit = "POUND"
	UnitCarton   Unit = "CARTON"
	UnitCase     Unit = "CASE"
)

func (u Unit) Valid() bool {
	switch u {
	case UnitPiece, UnitDozen, UnitKilogram, UnitPound, UnitCarton, UnitCase:
		return true
	}
	return false
}

// Product is one marketplace listing.
type Product struct {
	ID          domain.ProductID `json:"id"`
	SellerID    domain.UserID    `json:"sellerId"`
	Name        string           `json:"name"`
	Description string           `json:"description"`
	Category    Category         `json:"category"`
	Subcategory string           `json:"subcategory,omitempty"`
	Price       float64          `json:"price"`
	Quantity    int              `json:"quantity"`
	Unit        Unit             `json:"unit"`
	Images      []string         `json:"images"`
	IsActive    bool             `json:"isActive"`
	IsFeatured  bool             `json:"isFeatured"`
	CreatedAt   time.Time        `json:"createdAt"`
	UpdatedAt   time.Time        `json:"updatedAt"`
}

// WithSeller is the API shape: the listing plus a seller summary.
type WithSeller struct {
	Product
	Seller *usermodels.Summary `json:"seller,omitempty"`
}

// Page is the standard paginated envelope.
type Page struct {
	Products   []WithSeller      `json:"products"`
	Pagination domain.Pagination `json:"pagination"`
}

// CategoryStat is one row of the category breakdown.
type CategoryStat struct {
	Category    Category `json:"category"`
	Subcategory string   `json:"subcategory,omitempty"`
	Count       int      `json:"count"`
}

// CreateRequest creates a listing for the authenticated seller.
type CreateRequest struct {
	Name        string   `json:"name"`
	Description string   `json:"description"`
	Category    Category `json:"category"`
	Subcategory string   `json:"subcategory,omitempty"`
	Price       float64  `json:"price"`
	Quantity    int      `json:"quantity"`
	Unit        Unit     `json:"unit"`
	Images      []string `json:"images,omitempty"`
	IsFeatured  bool     `json:"isFeatured,omitempty"`
}

// UpdateRequest applies partial changes; nil fields are untouched.
type UpdateRequest struct {
	Name        *string   `json:"name,omitempty"`
	Description *string   `json:"description,omitempty"`
	Category    *Category `json:"category,omitempty"`
	Subcategory *string   `json:"subcategory,omitempty"`
	Price       *float64  `json:"price,omitempty"`
	Quantity    *int      `json:"quantity,omitempty"`
	Unit        *Unit     `json:"unit,omitempty"`
	Images      *[]string `json:"images,omitempty"`
	IsActive    *bool     `json:"isActive,omitempty"`
	IsFeatured  *bool     `json:"isFeatured,omitempty"`
}
