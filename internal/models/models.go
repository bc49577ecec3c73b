package models

import (
	"time"

	"github.com/oklog/ulid/v2"
	"gorm.io/gorm"
)

// BaseModel provides common fields and auto-generated ULID for all models
type BaseModel struct {
	ID        string    `json:"id" gorm:"primaryKey;type:varchar(26)"`
	CreatedAt time.Time `json:"createdAt" gorm:"autoCreateTime"`
}

// BeforeCreate generates a ULID for the ID field if it's empty
func (b *BaseModel) BeforeCreate(tx *gorm.DB) error {
	if b.ID == "" {
		b.ID = ulid.Make().String()
	}
	return nil
}

// Settings holds server-wide state that must survive restarts.
// This is a singleton model (only one row should exist)
type Settings struct {
	BaseModel
	JWTSecret string `json:"-" gorm:"type:varchar(64);not null"` // 64 hex chars, generated on first start
}

// User is a CRM sales representative who can sign in
type User struct {
	BaseModel
	Email     string    `json:"email" gorm:"unique;not null"`
	Name      string    `json:"name" gorm:"not null"`
	Phone     string    `json:"phone"`
	JobTitle  string    `json:"jobTitle"`
	Timezone  string    `json:"timezone"`
	AvatarURL string    `json:"avatarUrl"`
	UpdatedAt time.Time `json:"updatedAt" gorm:"autoUpdateTime"`
}

// DealStage is a pipeline column such as NEW, WON or LOST
type DealStage struct {
	BaseModel
	Title string `json:"title" gorm:"unique;not null"`

	// Relationships
	Deals []Deal `json:"deals,omitempty" gorm:"foreignKey:StageID"`
}

// Deal is an opportunity sitting in one stage
type Deal struct {
	BaseModel
	Title     string     `json:"title" gorm:"not null"`
	Value     float64    `json:"value" gorm:"not null;default:0"`
	StageID   string     `json:"stageId" gorm:"not null;index"`
	CloseDate *time.Time `json:"closeDate"`

	// Denormalized from CloseDate for monthly aggregation
	CloseDateMonth *int `json:"closeDateMonth" gorm:"index:idx_deal_close"`
	CloseDateYear  *int `json:"closeDateYear" gorm:"index:idx_deal_close"`

	Stage DealStage `json:"-" gorm:"foreignKey:StageID;constraint:OnDelete:CASCADE"`
}

// BeforeSave keeps the close month and year in step with CloseDate
func (d *Deal) BeforeSave(tx *gorm.DB) error {
	if d.CloseDate == nil {
		d.CloseDateMonth = nil
		d.CloseDateYear = nil
		return nil
	}
	utc := d.CloseDate.UTC()
	month, year := int(utc.Month()), utc.Year()
	d.CloseDateMonth = &month
	d.CloseDateYear = &year
	return nil
}

// Event is a calendar entry. Dates are stored in UTC.
type Event struct {
	BaseModel
	Title     string    `json:"title" gorm:"not null"`
	Color     string    `json:"color"`
	StartDate time.Time `json:"startDate" gorm:"not null;index"`
	EndDate   time.Time `json:"endDate" gorm:"not null"`
}

// BeforeSave normalizes event dates to UTC
func (e *Event) BeforeSave(tx *gorm.DB) error {
	e.StartDate = e.StartDate.UTC()
	e.EndDate = e.EndDate.UTC()
	return nil
}

// AutoMigrate runs database migrations for all models
func AutoMigrate(db *gorm.DB) error {
	models := []any{
		&Settings{}, &User{}, &DealStage{}, &Deal{}, &Event{},
	}

	return db.AutoMigrate(models...)
}

// FindByID safely finds a record by string ID
func FindByID[T any](db *gorm.DB, id string, model *T) error {
	return db.Where("id = ?", id).First(model).Error
}
