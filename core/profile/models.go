package profile

import (
	"encoding/json"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/trezcool/tutorhub/core"
)

// Approval statuses
const (
	StatusPending  = "pending"
	StatusApproved = "approved"
	StatusRejected = "rejected"
)

type Profile struct {
	ID             string     `json:"id"`
	UserID         string     `json:"user_id"`
	Role           string     `json:"role"`
	FirstName      string     `json:"first_name"`
	LastName       string     `json:"last_name"`
	Bio            string     `json:"bio"`
	Phone          string     `json:"phone"`
	AvatarKey      string     `json:"avatar_key,omitempty"`
	AvatarURL      string     `json:"avatar_url"` // resolved from AvatarKey on read
	ApprovalStatus string     `json:"approval_status"`
	ApprovalNote   string     `json:"approval_note"`
	DecidedBy      *string    `json:"decided_by"`
	DecidedAt      *time.Time `json:"decided_at"` // UTC
	CreatedAt      time.Time  `json:"created_at"` // UTC
	UpdatedAt      time.Time  `json:"updated_at"` // UTC
}

func (p Profile) IsApproved() bool { return p.ApprovalStatus == StatusApproved }
func (p Profile) IsPending() bool  { return p.ApprovalStatus == StatusPending }

func (p Profile) FullName() string {
	switch {
	case p.FirstName == "":
		return p.LastName
	case p.LastName == "":
		return p.FirstName
	}
	return p.FirstName + " " + p.LastName
}

func (p Profile) MarshalJSON() ([]byte, error) {
	type profile Profile // drops the methods, avoiding recursion
	return json.Marshal(struct {
		profile
		IsApproved bool `json:"is_approved"`
	}{profile(p), p.IsApproved()})
}

// UpdateProfile defines the display fields a user may edit. Nil fields are left unchanged.
type UpdateProfile struct {
	FirstName *string `json:"first_name" validate:"omitempty,max=100"`
	LastName  *string `json:"last_name" validate:"omitempty,max=100"`
	Bio       *string `json:"bio" validate:"omitempty,max=2000"`
	Phone     *string `json:"phone" validate:"omitempty,max=32"`
}

func (up *UpdateProfile) Validate(validate *validator.Validate) error {
	for _, fld := range []*string{up.FirstName, up.LastName, up.Bio, up.Phone} {
		if fld != nil {
			*fld = core.CleanString(*fld)
		}
	}
	return validate.Struct(up)
}

// Decision is the payload of the admin approval endpoints.
type Decision struct {
	Note string `json:"note" validate:"max=500"`
}

// Approval is a profile joined with its account email, as listed to admins.
type Approval struct {
	Profile
	Email string `json:"email"`
}

func (a Approval) MarshalJSON() ([]byte, error) {
	b, err := a.Profile.MarshalJSON()
	if err != nil {
		return nil, err
	}
	var m map[string]interface{}
	if err := json.Unmarshal(b, &m); err != nil {
		return nil, err
	}
	m["email"] = a.Email
	return json.Marshal(m)
}

type QueryFilter struct {
	UserIDs     []string
	Roles       []string
	Statuses    []string
	DecidedFrom time.Time
}
