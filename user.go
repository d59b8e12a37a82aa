package configcat

import (
	"encoding/json"
)

const (
	identifierAttr = "Identifier"
	emailAttr      = "Email"
	countryAttr    = "Country"
)

// User is the interface implemented by values that carry the attributes
// used to evaluate targeting rules.
//
// GetAttribute returns the value of the named attribute, or nil if the
// user doesn't have it. Attribute names are case sensitive. The returned
// value may be a string, any integer or floating point type, a time.Time
// or a []string; strings holding a number, a Unix timestamp or a JSON
// encoded string array are accepted by the corresponding comparators.
//
// A User must not change while it's being used for evaluation.
type User interface {
	GetAttribute(attr string) interface{}
}

// UserData is the standard User implementation. It holds the predefined
// attributes plus any number of custom ones.
type UserData struct {
	Identifier string
	Email      string
	Country    string
	// Custom holds additional attributes. Keys that clash with the
	// predefined attribute names are ignored.
	Custom map[string]interface{}
}

// GetAttribute implements User.
func (u *UserData) GetAttribute(attr string) interface{} {
	if u == nil {
		return nil
	}
	switch attr {
	case identifierAttr:
		return u.Identifier
	case emailAttr:
		if u.Email == "" {
			return nil
		}
		return u.Email
	case countryAttr:
		if u.Country == "" {
			return nil
		}
		return u.Country
	}
	if v, ok := u.Custom[attr]; ok {
		return v
	}
	return nil
}

// String returns the JSON representation of u as shown in evaluation logs.
func (u *UserData) String() string {
	if u == nil {
		return "null"
	}
	m := make(map[string]interface{}, len(u.Custom)+3)
	for k, v := range u.Custom {
		m[k] = v
	}
	m[identifierAttr] = u.Identifier
	if u.Email != "" {
		m[emailAttr] = u.Email
	} else {
		delete(m, emailAttr)
	}
	if u.Country != "" {
		m[countryAttr] = u.Country
	} else {
		delete(m, countryAttr)
	}
	data, err := json.Marshal(m)
	if err != nil {
		return "<invalid user>"
	}
	return string(data)
}

// UserAttributes is a User backed by a plain attribute map.
type UserAttributes map[string]interface{}

// GetAttribute implements User.
func (a UserAttributes) GetAttribute(attr string) interface{} {
	return a[attr]
}

// String returns the JSON representation of a as shown in evaluation logs.
func (a UserAttributes) String() string {
	data, err := json.Marshal(map[string]interface{}(a))
	if err != nil {
		return "<invalid user>"
	}
	return string(data)
}

// isNilUser reports whether u holds no user at all.
func isNilUser(u User) bool {
	switch u := u.(type) {
	case nil:
		return true
	case *UserData:
		return u == nil
	case UserAttributes:
		return u == nil
	}
	return false
}
