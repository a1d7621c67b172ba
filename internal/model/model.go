package model

import "time"

const (
	RoleUser       = "user"
	RoleSpecialist = "specialist"
	RoleAdmin      = "admin"
)

type User struct {
	ID           string     `json:"id"`
	Email        string     `json:"email"`
	PasswordHash string     `json:"-"`
	FirstName    string     `json:"first_name"`
	LastName     string     `json:"last_name"`
	Phone        string     `json:"phone_number"`
	DateOfBirth  *time.Time `json:"date_of_birth,omitempty"`
	Role         string     `json:"role"`
	IsActive     bool       `json:"is_active"`
	LastLogin    *time.Time `json:"last_login,omitempty"`
	CreatedAt    time.Time  `json:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at"`
}

func (u *User) FullName() string {
	if u.LastName == "" {
		return u.FirstName
	}
	return u.FirstName + " " + u.LastName
}

type Profile struct {
	UserID            string    `json:"user_id"`
	PreferredLanguage string    `json:"preferred_language"`
	Gender            string    `json:"gender"`
	Bio               string    `json:"bio"`
	ConsentData       bool      `json:"consent_data_processing"`
	IsAnonymized      bool      `json:"is_anonymized"`
	CreatedAt         time.Time `json:"created_at"`
	UpdatedAt         time.Time `json:"updated_at"`
}

type Conversation struct {
	ID        string    `json:"id"`
	UserID    string    `json:"user_id"`
	Title     string    `json:"title"`
	Language  string    `json:"language"`
	Channel   string    `json:"channel"`
	Summary   string    `json:"summary,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

type Message struct {
	ID             string    `json:"id"`
	ConversationID string    `json:"conversation_id"`
	Role           string    `json:"role"`
	Content        string    `json:"content"`
	Flags          []string  `json:"flags,omitempty"`
	CreatedAt      time.Time `json:"created_at"`
}

type Article struct {
	ID          string    `json:"id"`
	Title       string    `json:"title"`
	Summary     string    `json:"summary"`
	Body        string    `json:"body"`
	Locale      string    `json:"locale"`
	Tags        []string  `json:"tags"`
	IsPublished bool      `json:"is_published"`
	CreatedBy   *string   `json:"created_by,omitempty"`
	UpdatedBy   *string   `json:"updated_by,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

type SpecialistProfile struct {
	ID               string    `json:"id"`
	UserID           string    `json:"user_id"`
	Name             string    `json:"name"`
	Email            string    `json:"email,omitempty"`
	Specialty        string    `json:"specialty"`
	ClinicName       string    `json:"clinic_name"`
	Bio              string    `json:"bio"`
	YearsExperience  int       `json:"years_experience"`
	Languages        []string  `json:"languages"`
	Phone            string    `json:"phone"`
	Location         string    `json:"location"`
	IsVerified       bool      `json:"is_verified"`
	ProfileCompleted bool      `json:"profile_completed"`
	AverageRating    float64   `json:"average_rating"`
	TotalReviews     int       `json:"total_reviews"`
	RejectionReason  string    `json:"rejection_reason,omitempty"`
	CreatedAt        time.Time `json:"created_at"`
	UpdatedAt        time.Time `json:"updated_at"`
}

const (
	StatusPending   = "pending"
	StatusConfirmed = "confirmed"
	StatusCancelled = "cancelled"
	StatusCompleted = "completed"
)

var AppointmentStatuses = map[string]bool{
	StatusPending:   true,
	StatusConfirmed: true,
	StatusCancelled: true,
	StatusCompleted: true,
}

type Appointment struct {
	ID                 string    `json:"id"`
	UserID             string    `json:"user_id"`
	SpecialistID       string    `json:"specialist_id"`
	UserName           string    `json:"user_name,omitempty"`
	SpecialistName     string    `json:"specialist_name,omitempty"`
	StartTime          time.Time `json:"start_time"`
	EndTime            time.Time `json:"end_time"`
	Reason             string    `json:"reason"`
	Status             string    `json:"status"`
	CancellationReason string    `json:"cancellation_reason,omitempty"`
	CreatedAt          time.Time `json:"created_at"`
	UpdatedAt          time.Time `json:"updated_at"`
}

type Review struct {
	ID           string    `json:"id"`
	SpecialistID string    `json:"specialist_id"`
	UserID       string    `json:"user_id"`
	UserName     string    `json:"user_name,omitempty"`
	Rating       int       `json:"rating"`
	Comment      string    `json:"comment"`
	CreatedAt    time.Time `json:"created_at"`
}

type SpecialistMessage struct {
	ID           string    `json:"id"`
	UserID       string    `json:"user_id"`
	SpecialistID string    `json:"specialist_id"`
	SenderRole   string    `json:"sender_role"`
	Subject      string    `json:"subject"`
	Body         string    `json:"message"`
	IsRead       bool      `json:"is_read"`
	CreatedAt    time.Time `json:"created_at"`
}

type Contact struct {
	SpecialistID   string     `json:"specialist_id"`
	Name           string     `json:"name"`
	Specialty      string     `json:"specialty"`
	LastMessageAt  *time.Time `json:"last_message_at,omitempty"`
	UnreadMessages int        `json:"unread_messages"`
}

type ServiceProvider struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description"`
	Phone       string    `json:"phone"`
	Email       string    `json:"email"`
	Website     string    `json:"website"`
	Address     string    `json:"address"`
	Province    string    `json:"province"`
	District    string    `json:"district"`
	Sector      string    `json:"sector"`
	Latitude    *float64  `json:"latitude"`
	Longitude   *float64  `json:"longitude"`
	Services    []string  `json:"services"`
	Verified    bool      `json:"verified"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

type QueryCache struct {
	QueryHash     string         `json:"query_hash"`
	QueryText     string         `json:"query_text"`
	Response      string         `json:"response"`
	Context       map[string]any `json:"context,omitempty"`
	AccessedCount int            `json:"accessed_count"`
	CreatedAt     time.Time      `json:"created_at"`
	LastAccessed  time.Time      `json:"last_accessed"`
}

type DashboardStats struct {
	TotalAppointments     int     `json:"total_appointments"`
	PendingAppointments   int     `json:"pending_appointments"`
	ConfirmedAppointments int     `json:"confirmed_appointments"`
	CompletedAppointments int     `json:"completed_appointments"`
	CancelledAppointments int     `json:"cancelled_appointments"`
	UnreadMessages        int     `json:"unread_messages"`
	AverageRating         float64 `json:"average_rating"`
	TotalReviews          int     `json:"total_reviews"`
}
