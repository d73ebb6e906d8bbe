package domain

import (
	"encoding/json"
	"fmt"
	"time"
)

// ItemKey identifies one ledger entry. It is stable for the lifetime of the catalog.
type ItemKey struct {
	Category string `json:"category"`
	Item     string `json:"item"`
}

func (k ItemKey) String() string {
	return k.Category + "/" + k.Item
}

// LedgerEntry is the in-memory pull state of one catalog item.
// An absent entry is equivalent to the zero value with Key set.
type LedgerEntry struct {
	Key          ItemKey   `json:"key"`
	Quantity     int       `json:"quantity"`
	Restock      bool      `json:"restock"`
	LastModified time.Time `json:"last_modified"`
}

// Changes is a partial update of a ledger row. Nil fields are left untouched
// on the remote side.
type Changes struct {
	Quantity *int
	Restock  *bool
}

func QuantityChange(q int) Changes {
	return Changes{Quantity: &q}
}

func RestockChange(r bool) Changes {
	return Changes{Restock: &r}
}

func (c Changes) Empty() bool {
	return c.Quantity == nil && c.Restock == nil
}

// QuantityRow is one persisted ledger row as stored remotely.
type QuantityRow struct {
	UserID    string
	Category  string
	ItemName  string
	Quantity  int
	Restock   bool
	UpdatedAt time.Time
}

type Role int

const (
	RoleUser Role = iota
	RoleAdmin
)

func (r Role) String() string {
	switch r {
	case RoleUser:
		return "user"
	case RoleAdmin:
		return "admin"
	default:
		return fmt.Sprintf("Role(%d)", int(r))
	}
}

// ParseRole maps the stored role string onto the closed Role enumeration.
func ParseRole(s string) (Role, error) {
	switch s {
	case "user":
		return RoleUser, nil
	case "admin":
		return RoleAdmin, nil
	default:
		return RoleUser, fmt.Errorf("%w: %q", ErrInvalidRole, s)
	}
}

func (r Role) MarshalJSON() ([]byte, error) {
	return json.Marshal(r.String())
}

func (r *Role) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	parsed, err := ParseRole(s)
	if err != nil {
		return err
	}
	*r = parsed
	return nil
}

type Profile struct {
	ID           string    `json:"id"`
	Email        string    `json:"email"`
	DisplayName  string    `json:"display_name"`
	Role         Role      `json:"role"`
	Active       bool      `json:"active"`
	PasswordHash string    `json:"-"`
	CreatedAt    time.Time `json:"created_at"`
}

// Actor is the identity a signed-in profile acts as.
func (p *Profile) Actor() Actor {
	return Actor{ID: p.ID, Email: p.Email, DisplayName: p.DisplayName, Role: p.Role}
}

// Interaction is one audit log row.
type Interaction struct {
	ID        string          `json:"id"`
	UserID    string          `json:"user_id"`
	UserEmail string          `json:"user_email"`
	Action    string          `json:"action"`
	Payload   json.RawMessage `json:"payload"`
	CreatedAt time.Time       `json:"created_at"`
}

// Audit actions written by the service layer.
const (
	ActionLogin       = "login"
	ActionLogout      = "logout"
	ActionSendSummary = "send_summary"
)

// Actor is the authenticated identity on whose behalf ledger and filter state
// are scoped.
type Actor struct {
	ID          string `json:"id"`
	Email       string `json:"email"`
	DisplayName string `json:"display_name"`
	Role        Role   `json:"role"`
}

// Name returns the display name, falling back to the email.
func (a Actor) Name() string {
	if a.DisplayName != "" {
		return a.DisplayName
	}
	return a.Email
}
