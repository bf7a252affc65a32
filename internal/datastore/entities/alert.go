package entities

import "time"

// Alert is the persisted record of one sensor-triggered security event.
// VideoPath is empty at creation and set at most once when a capture job
// completes; it is never overwritten or cleared except by row deletion.
type Alert struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	Type      string    `gorm:"size:100;not null" json:"type"`
	Message   string    `gorm:"size:1000;not null" json:"message"`
	DeviceID  uint      `gorm:"not null;index" json:"device_id"`
	SensorID  uint      `gorm:"not null;index" json:"sensor_id"`
	VideoPath string    `gorm:"size:512;default:''" json:"video_path,omitempty"`
	CreatedAt time.Time `gorm:"autoCreateTime;index" json:"created_at"`
	Device    Device    `gorm:"foreignKey:DeviceID" json:"device"`
	Sensor    Sensor    `gorm:"foreignKey:SensorID" json:"sensor"`
}

// TableName returns the table name for GORM.
func (Alert) TableName() string {
	return "alerts"
}
