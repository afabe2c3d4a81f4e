package store

import "time"

// User is an enrolled (or enrollable) person. The user id is the external
// identifier templates and attendance rows hang off; deleting a user
// cascades to both.
type User struct {
	UserID    string    `gorm:"column:user_id;primaryKey" json:"user_id"`
	Name      string    `gorm:"type:text" json:"name"`
	Role      string    `gorm:"type:text" json:"role"`
	QRCode    string    `gorm:"column:qr_code;type:text" json:"qr_code,omitempty"`
	Status    string    `gorm:"type:text;not null;default:active" json:"status"`
	CreatedAt time.Time `gorm:"not null;autoCreateTime" json:"created_at"`

	Templates  []FaceTemplate `gorm:"foreignKey:UserID;constraint:OnDelete:CASCADE" json:"-"`
	Attendance []Attendance   `gorm:"foreignKey:UserID;constraint:OnDelete:CASCADE" json:"-"`
}

func (User) TableName() string { return "users" }

// FaceTemplate references one on-disk template artifact. The vectors
// themselves never live in the database.
type FaceTemplate struct {
	ID            int64     `gorm:"primaryKey;autoIncrement" json:"id"`
	UserID        string    `gorm:"column:user_id;not null;index" json:"user_id"`
	EmbeddingPath string    `gorm:"type:text;not null" json:"embedding_path"`
	SampleCount   int       `gorm:"not null;default:0" json:"sample_count"`
	CreatedAt     time.Time `gorm:"not null;autoCreateTime" json:"created_at"`
}

func (FaceTemplate) TableName() string { return "face_templates" }

// Attendance is one append-only recognition decision. Rows are never
// updated; liveness_verified is reserved and stays false for now.
type Attendance struct {
	ID               int64     `gorm:"primaryKey;autoIncrement" json:"id"`
	UserID           string    `gorm:"column:user_id;not null;index" json:"user_id"`
	RecognitionScore *float64  `json:"recognition_score"`
	FaceVerified     bool      `gorm:"not null;default:false" json:"face_verified"`
	LivenessVerified bool      `gorm:"not null;default:false" json:"liveness_verified"`
	ThresholdUsed    float64   `gorm:"not null;default:0.5" json:"threshold_used"`
	SystemDecision   string    `gorm:"type:text;not null" json:"system_decision"`
	SessionID        string    `gorm:"column:session_id;type:text" json:"session_id,omitempty"`
	Timestamp        time.Time `gorm:"not null;autoCreateTime;index" json:"timestamp"`
}

func (Attendance) TableName() string { return "attendance" }

// AttendanceEntry is an attendance row joined with the owning user.
type AttendanceEntry struct {
	Attendance
	Name string `json:"name"`
	Role string `json:"role"`
}
