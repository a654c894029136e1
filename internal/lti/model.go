// internal/lti/model.go
package lti

import (
	"context"
	"fmt"
	"strconv"
	"strings"
)

// Consumer is a tool consumer (LMS). Its numeric ID is the oauth_consumer_key.
type Consumer struct {
	Key    int64
	Name   string
	Secret string
}

// KeyString is the oauth_consumer_key form of Key.
func (c Consumer) KeyString() string { return strconv.FormatInt(c.Key, 10) }

// MaskedSecret shows the first six characters of the secret padded with dots.
func (c Consumer) MaskedSecret() string {
	s := c.Secret
	if len(s) > 6 {
		s = s[:6]
	}
	return s + strings.Repeat(".", 10-len(s))
}

func (c Consumer) String() string { return fmt.Sprintf("%s:%s", c.Name, c.MaskedSecret()) }

type User struct {
	ID        int64
	Username  string
	FirstName string
	LastName  string
	Email     string
}

func (u User) FullName() string {
	return strings.TrimSpace(u.FirstName + " " + u.LastName)
}

// UserIdentity links a consumer's user_id to a local User.
type UserIdentity struct {
	ID         int64
	UserID     int64
	LTIUserID  string
	Email      string
	NameFamily string
	NameFull   string
	NameGiven  string
	Attributes map[string]string
}

// Apply records a launch property on the identity. Known person fields are
// typed; everything else lands in Attributes.
func (id *UserIdentity) Apply(prop, value string) {
	switch prop {
	case "user_id":
		return
	case "lis_person_contact_email_primary":
		id.Email = value
	case "lis_person_name_family":
		id.NameFamily = value
	case "lis_person_name_full":
		id.NameFull = value
	case "lis_person_name_given":
		id.NameGiven = value
	default:
		if id.Attributes == nil {
			id.Attributes = map[string]string{}
		}
		id.Attributes[prop] = value
	}
}

// Context is usually a course.
type Context struct {
	ID        int64
	ContextID string
	Label     string
}

// Resource is a link placed in a context.
type Resource struct {
	ID             int64
	ResourceLinkID string
	Title          string
}

// Store is the persistence the launch flow needs. Lookups return ErrNotFound.
// GetOrCreate methods only use label/title when the row is created.
type Store interface {
	Consumer(ctx context.Context, key int64) (Consumer, error)

	GetOrCreateResource(ctx context.Context, resourceLinkID, title string) (Resource, error)
	GetOrCreateContext(ctx context.Context, contextID, label string) (Context, error)

	// Authenticate returns the user bound to ltiUserID, provisioning a User
	// (from seed) and UserIdentity on first sight.
	Authenticate(ctx context.Context, ltiUserID string, seed User) (User, UserIdentity, error)
	SaveIdentity(ctx context.Context, id UserIdentity) error
	User(ctx context.Context, id int64) (User, error)
}
