package entities

import "time"

// Device status values reported by the gateway.
const (
	DeviceStatusActive   = "active"
	DeviceStatusInactive = "inactive"
)

// Device is a registered gateway device. Name is the display name inbound
// payloads use for lookup. Users are the mail recipients for alerts raised
// by this device.
type Device struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	Name      string    `gorm:"size:255;not null;uniqueIndex" json:"name"`
	Location  string    `gorm:"size:255;default:''" json:"location"`
	Status    string    `gorm:"size:50;not null;default:'inactive'" json:"status"`
	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updated_at"`
	Sensors   []Sensor  `gorm:"foreignKey:DeviceID;constraint:OnDelete:CASCADE" json:"sensors,omitempty"`
	Users     []User    `gorm:"many2many:device_users" json:"users,omitempty"`
}

// TableName returns the table name for GORM.
func (Device) TableName() string {
	return "devices"
}
