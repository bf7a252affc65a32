package entities

import "time"

// Sensor belongs to exactly one Device. Name is the display name inbound
// payloads use for lookup; Type categorizes the sensor (e.g. "motion").
type Sensor struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	Name      string    `gorm:"size:255;not null;index:idx_sensors_device_name,priority:2" json:"name"`
	Type      string    `gorm:"size:100;not null" json:"type"`
	Location  string    `gorm:"size:255;default:''" json:"location"`
	Status    string    `gorm:"size:50;not null;default:'normal'" json:"status"`
	DeviceID  uint      `gorm:"not null;index:idx_sensors_device_name,priority:1" json:"device_id"`
	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
}

// TableName returns the table name for GORM.
func (Sensor) TableName() string {
	return "sensors"
}
