// Package domain defines the persistence models for deals, categories, the
// contextual like ledger, and the analytics log. These types are mapped with
// GORM and form the core data layer of the deals backend.
//
// References between tables (deal → category, ledger/analytics → deal) are
// logical only. No foreign-key constraints are declared, so deleting a deal
// or a category leaves dangling ids in the rows that pointed at it.
package domain

import "time"

// Category is a topical grouping for deals.
//
// Fields:
//   - ID: surrogate primary key.
//   - Name: display name, unique.
//   - NameKey: lower(trim(name)); its unique index makes case-insensitive
//     find-or-create atomic.
//   - Description: optional free text.
//   - CreatedAt: managed by GORM.
type Category struct {
	ID          uint      `json:"id"          gorm:"primaryKey"`
	Name        string    `json:"name"        gorm:"type:varchar(255);not null;uniqueIndex:ux_categories_name"`
	NameKey     string    `json:"-"           gorm:"type:varchar(255);not null;uniqueIndex:ux_categories_name_key"`
	Description *string   `json:"description"`
	CreatedAt   time.Time `json:"created_at"`
}

// TableName returns the database table name for Category.
func (Category) TableName() string { return "categories" }

// Deal is a software discount offer, the primary entity of the system.
//
// The JSON field names are the external read/write shape other layers
// depend on. Categories is the comma-joined list of secondary category ids;
// it is a projection of the deal_categories join table, rewritten whenever
// the association changes.
type Deal struct {
	ID               uint      `json:"id"                 gorm:"primaryKey"`
	SoftwareName     string    `json:"software_name"      gorm:"type:varchar(255);not null"`
	SoftwareNameSlug *string   `json:"software_name_slug" gorm:"type:varchar(255);index"`
	CategoryID       *uint     `json:"category_id"        gorm:"index"`
	Categories       string    `json:"categories"         gorm:"type:text;not null;default:''"`
	LogoURL          *string   `json:"logo_url"           gorm:"type:text"`
	WebsiteURL       *string   `json:"website_url"        gorm:"type:text"`
	ReferralLink     *string   `json:"referral_link"      gorm:"type:text"`
	Discount         string    `json:"discount"           gorm:"type:varchar(255);not null"`
	CouponCode       *string   `json:"coupon_code"        gorm:"type:varchar(255)"`
	TimeLimit        *string   `json:"time_limit"         gorm:"type:varchar(255)"`
	Description      *string   `json:"description"        gorm:"type:text"`
	About            *string   `json:"about"              gorm:"type:text"`
	IsActive         bool      `json:"is_active"          gorm:"not null;default:true"`
	Clicks           int64     `json:"clicks"             gorm:"not null;default:0"`
	Likes            int64     `json:"likes"              gorm:"not null;default:0;index"`
	CreatedAt        time.Time `json:"created_at"         gorm:"index"`
	UpdatedAt        time.Time `json:"updated_at"`
}

// TableName returns the database table name for Deal.
func (Deal) TableName() string { return "deals" }

// DealCategory associates a deal with one of its secondary categories. The
// primary category lives on Deal.CategoryID and is never stored here.
// Position keeps the order in which the categories were assigned.
type DealCategory struct {
	DealID     uint `json:"deal_id"     gorm:"primaryKey;autoIncrement:false"`
	CategoryID uint `json:"category_id" gorm:"primaryKey;autoIncrement:false;index"`
	Position   int  `json:"position"    gorm:"not null;default:0"`
}

// TableName returns the database table name for DealCategory.
func (DealCategory) TableName() string { return "deal_categories" }

// RelatedDealLike counts likes a related deal received while shown next to a
// particular source deal. The pair is the sole identity; the counter is
// independent of Deal.Likes.
type RelatedDealLike struct {
	SourceDealID  uint      `json:"source_deal_id"  gorm:"primaryKey;autoIncrement:false"`
	RelatedDealID uint      `json:"related_deal_id" gorm:"primaryKey;autoIncrement:false;index"`
	Likes         int64     `json:"likes"           gorm:"not null;default:1"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// TableName returns the database table name for RelatedDealLike.
func (RelatedDealLike) TableName() string { return "related_deal_likes" }

// Analytics actions.
const (
	ActionView     = "view"
	ActionClick    = "click"
	ActionCopyCode = "copy_code"
)

// AnalyticsEvent is one append-only entry of the analytics log.
type AnalyticsEvent struct {
	ID        uint      `json:"id"         gorm:"primaryKey"`
	DealID    uint      `json:"deal_id"    gorm:"not null;index"`
	Action    string    `json:"action"     gorm:"type:varchar(16);not null;check:action IN ('view','click','copy_code')"`
	IPAddress *string   `json:"ip_address" gorm:"type:varchar(64)"`
	UserAgent *string   `json:"user_agent" gorm:"type:text"`
	Timestamp time.Time `json:"timestamp"  gorm:"not null;autoCreateTime;index"`
}

// TableName returns the database table name for AnalyticsEvent.
func (AnalyticsEvent) TableName() string { return "analytics" }

// IngestRun records when the ingestion pipeline last processed a software
// name and how it went. The scheduler uses it to decide what is due.
type IngestRun struct {
	SoftwareName string    `json:"software_name" gorm:"type:varchar(255);primaryKey"`
	LastRunAt    time.Time `json:"last_run_at"   gorm:"not null;index"`
	Status       string    `json:"status"        gorm:"type:varchar(16);not null"`
	DealID       *uint     `json:"deal_id"`
	Message      *string   `json:"message"       gorm:"type:text"`
}

// TableName returns the database table name for IngestRun.
func (IngestRun) TableName() string { return "ingest_runs" }
