// Package store persists marketplace documents. Mongo is the production
// backend; Memory backs local runs and tests.
package store

import (
	"context"
	"errors"
	"time"

	"go_trial/foodhub/models"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

var (
	ErrNotFound  = errors.New("store: not found")
	ErrDuplicate = errors.New("store: duplicate key")
	// ErrStale means a conditional write lost to a concurrent one.
	ErrStale = errors.New("store: document changed concurrently")
)

type Page struct {
	Page  int
	Limit int
}

func (p Page) Normalize(defaultLimit int) Page {
	if p.Page < 1 {
		p.Page = 1
	}
	if p.Limit < 1 {
		p.Limit = defaultLimit
	}
	if p.Limit > 100 {
		p.Limit = 100
	}
	return p
}

func (p Page) Skip() int64 {
	if p.Page < 1 {
		return 0
	}
	return int64((p.Page - 1) * p.Limit)
}

type ShopFilter struct {
	Owner    *primitive.ObjectID
	Category string
	IsActive *bool
	IsOpen   *bool
	Featured *bool
	Search   string
	// Sort is a comma separated list of fields, "-" prefix for descending.
	Sort string
}

type MenuFilter struct {
	Shop        primitive.ObjectID
	Category    string
	IsAvailable *bool
	IsPopular   *bool
	IsFeatured  *bool
	MinPrice    *float64
	MaxPrice    *float64
	Search      string
	Sort        string
}

type OrderFilter struct {
	Customer *primitive.ObjectID
	Shop     *primitive.ObjectID
	Status   models.OrderStatus
	From     *time.Time
	To       *time.Time
}

type UserFilter struct {
	Role   models.Role
	Search string
}

// OrderVersion is the state a conditional order write expects to find.
type OrderVersion struct {
	Status        models.OrderStatus
	PaymentStatus models.PaymentStatus
	Rated         bool
}

func VersionOf(o *models.Order) OrderVersion {
	return OrderVersion{
		Status:        o.Status,
		PaymentStatus: o.PaymentInfo.PaymentStatus,
		Rated:         o.IsRated(),
	}
}

type Users interface {
	CreateUser(ctx context.Context, u *models.User) error
	UserByID(ctx context.Context, id primitive.ObjectID) (*models.User, error)
	UserByEmail(ctx context.Context, email string) (*models.User, error)
	UserByResetToken(ctx context.Context, tokenHash string, now time.Time) (*models.User, error)
	SaveUser(ctx context.Context, u *models.User) error
	ToggleUserActive(ctx context.Context, id primitive.ObjectID) (*models.User, error)
	ListUsers(ctx context.Context, f UserFilter, p Page) ([]models.User, int64, error)
}

type Shops interface {
	CreateShop(ctx context.Context, s *models.Shop) error
	ShopByID(ctx context.Context, id primitive.ObjectID) (*models.Shop, error)
	ShopBySlug(ctx context.Context, slug string) (*models.Shop, error)
	ListShops(ctx context.Context, f ShopFilter, p Page) ([]models.Shop, int64, error)
	CountShopsByOwner(ctx context.Context, owner primitive.ObjectID) (int64, error)
	SaveShop(ctx context.Context, s *models.Shop) error
	// DeleteShop removes the shop and its menu items.
	DeleteShop(ctx context.Context, id primitive.ObjectID) error
	ToggleShopOpen(ctx context.Context, id primitive.ObjectID) (*models.Shop, error)
	ToggleShopActive(ctx context.Context, id primitive.ObjectID) (*models.Shop, error)
	IncShopOrders(ctx context.Context, id primitive.ObjectID, n int) error
	// ApplyShopRating adds (sign=1) or removes (sign=-1) one review from the
	// shop's running rating aggregate.
	ApplyShopRating(ctx context.Context, id primitive.ObjectID, r models.ReviewRating, sign int) error
}

type Menu interface {
	CreateMenuItem(ctx context.Context, m *models.MenuItem) error
	MenuItemByID(ctx context.Context, id primitive.ObjectID) (*models.MenuItem, error)
	MenuItemsByIDs(ctx context.Context, ids []primitive.ObjectID) (map[primitive.ObjectID]*models.MenuItem, error)
	ListMenuItems(ctx context.Context, f MenuFilter, p Page) ([]models.MenuItem, int64, error)
	SaveMenuItem(ctx context.Context, m *models.MenuItem) error
	DeleteMenuItem(ctx context.Context, id primitive.ObjectID) error
	ToggleMenuItemAvailability(ctx context.Context, id primitive.ObjectID) (*models.MenuItem, error)
	IncMenuItemOrders(ctx context.Context, id primitive.ObjectID, n int) error
}

type Orders interface {
	NextOrderSequence(ctx context.Context) (int64, error)
	CreateOrder(ctx context.Context, o *models.Order) error
	OrderByID(ctx context.Context, id primitive.ObjectID) (*models.Order, error)
	ListOrders(ctx context.Context, f OrderFilter, p Page) ([]models.Order, int64, error)
	// SaveOrder replaces the order only if it is still at version expect.
	SaveOrder(ctx context.Context, o *models.Order, expect OrderVersion) error
}

type Reviews interface {
	CreateReview(ctx context.Context, r *models.Review) error
	ReviewByID(ctx context.Context, id primitive.ObjectID) (*models.Review, error)
	ListReviews(ctx context.Context, shop primitive.ObjectID, p Page) ([]models.Review, int64, error)
	DeleteReview(ctx context.Context, id primitive.ObjectID) error
}

type CountByKey struct {
	Key   string `json:"_id" bson:"_id"`
	Count int64  `json:"count" bson:"count"`
}

type Dashboard struct {
	TotalUsers     int64          `json:"totalUsers"`
	TotalShops     int64          `json:"totalShops"`
	ActiveShops    int64          `json:"activeShops"`
	TotalOrders    int64          `json:"totalOrders"`
	TotalMenuItems int64          `json:"totalMenuItems"`
	TotalRevenue   float64        `json:"totalRevenue"`
	UsersByRole    []CountByKey   `json:"usersByRole"`
	OrdersByStatus []CountByKey   `json:"ordersByStatus"`
	RecentOrders   []models.Order `json:"recentOrders"`
	RecentUsers    []models.User  `json:"recentUsers"`
	TopShops       []models.Shop  `json:"topShops"`
}

type DailyRevenue struct {
	Date    string  `json:"date" bson:"_id"`
	Revenue float64 `json:"revenue" bson:"revenue"`
	Orders  int64   `json:"orders" bson:"orders"`
}

type DailyStatus struct {
	Date   string `json:"date" bson:"date"`
	Status string `json:"status" bson:"status"`
	Count  int64  `json:"count" bson:"count"`
}

type ShopStats struct {
	TotalOrders    int64          `json:"totalOrders"`
	TotalRevenue   float64        `json:"totalRevenue"`
	TotalMenuItems int64          `json:"totalMenuItems"`
	OrdersByStatus []CountByKey   `json:"ordersByStatus"`
	RecentOrders   []models.Order `json:"recentOrders"`
}

type Stats interface {
	Dashboard(ctx context.Context) (*Dashboard, error)
	RevenueByDay(ctx context.Context, since time.Time) ([]DailyRevenue, error)
	OrdersByDay(ctx context.Context, since time.Time) ([]DailyStatus, error)
	ShopStats(ctx context.Context, shop primitive.ObjectID) (*ShopStats, error)
}

type Store interface {
	Users
	Shops
	Menu
	Orders
	Reviews
	Stats
	Close(ctx context.Context) error
}

// Revenue counts only collected money on orders that were not cancelled.
func countsAsRevenue(o *models.Order) bool {
	return o.PaymentInfo.PaymentStatus == models.PaymentCompleted && o.Status != models.StatusCancelled
}

const dayLayout = "2006-01-02"

var (
	_ Store = (*Memory)(nil)
	_ Store = (*Mongo)(nil)
)
