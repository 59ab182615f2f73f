/*
entity.go - Client and Sender entities with format validation

PURPOSE:
  Typed representation of the parties on an invoice. Profiles and overrides
  arrive as free-form YAML maps; this file turns a merged map into a typed
  entity exactly once, at the resolution boundary, validating GSTIN and PAN
  formats as it goes (fail fast - a malformed identifier rejects the whole
  invoice before anything is computed).

VALIDATION:
  GSTIN: 2 digits, 5 letters, 4 digits, letter, alnum, 'Z', alnum
  PAN:   5 letters, 4 digits, letter

Banks stay as plain maps: the engine never computes with bank fields, it
only merges and forwards them to presentation.
*/
package invoice

import (
	"fmt"
	"regexp"
)

var (
	gstinPattern = regexp.MustCompile(`^[0-9]{2}[A-Z]{5}[0-9]{4}[A-Z]{1}[1-9A-Z]{1}Z[0-9A-Z]{1}$`)
	panPattern   = regexp.MustCompile(`^[A-Z]{5}[0-9]{4}[A-Z]{1}$`)
)

// =============================================================================
// ENTITY TYPES
// =============================================================================

// Entity holds the fields common to clients and senders.
type Entity struct {
	ID              string
	Name            string
	GSTIN           string
	PAN             string
	StateCode       string
	Address         string
	BillingAddress  string
	ShippingAddress string
	Currency        string
}

// PrimaryAddress returns the address, falling back to the legacy
// billing_address field.
func (e Entity) PrimaryAddress() string {
	if e.Address != "" {
		return e.Address
	}
	return e.BillingAddress
}

type Client struct {
	Entity
	Prefix      string
	GSTCategory string
	Contacts    []map[string]interface{}
}

type Sender struct {
	Entity
	LegalName     string
	LogoPath      string
	SignaturePath string
	ContactEmail  string
	LUTNumber     string
	LUTExpiry     string
}

// =============================================================================
// MAP -> ENTITY CONSTRUCTION
// =============================================================================

func str(m map[string]interface{}, key string) string {
	if v, ok := m[key]; ok && v != nil {
		return fmt.Sprint(v)
	}
	return ""
}

func entityFromMap(m map[string]interface{}) (Entity, error) {
	e := Entity{
		ID:              str(m, "id"),
		Name:            str(m, "name"),
		GSTIN:           str(m, "gstin"),
		PAN:             str(m, "pan"),
		StateCode:       str(m, "state_code"),
		Address:         str(m, "address"),
		BillingAddress:  str(m, "billing_address"),
		ShippingAddress: str(m, "shipping_address"),
		Currency:        str(m, "currency"),
	}
	if e.Currency == "" {
		e.Currency = "INR"
	}
	if e.GSTIN != "" && !gstinPattern.MatchString(e.GSTIN) {
		return e, fmt.Errorf("%w: invalid GSTIN format: %s", ErrInvalidEntity, e.GSTIN)
	}
	if e.PAN != "" && !panPattern.MatchString(e.PAN) {
		return e, fmt.Errorf("%w: invalid PAN format: %s", ErrInvalidEntity, e.PAN)
	}
	return e, nil
}

// NewClient builds a Client from a merged profile+override map.
func NewClient(m map[string]interface{}) (Client, error) {
	e, err := entityFromMap(m)
	if err != nil {
		return Client{}, err
	}
	c := Client{
		Entity:      e,
		Prefix:      str(m, "prefix"),
		GSTCategory: str(m, "gst_category"),
	}
	if c.GSTCategory == "" {
		c.GSTCategory = "regular"
	}
	if raw, ok := m["contacts"].([]interface{}); ok {
		for _, item := range raw {
			if cm, ok := item.(map[string]interface{}); ok {
				c.Contacts = append(c.Contacts, cm)
			}
		}
	}
	return c, nil
}

// NewSender builds a Sender from a merged profile+override map.
func NewSender(m map[string]interface{}) (Sender, error) {
	e, err := entityFromMap(m)
	if err != nil {
		return Sender{}, err
	}
	return Sender{
		Entity:        e,
		LegalName:     str(m, "legal_name"),
		LogoPath:      str(m, "logo_path"),
		SignaturePath: str(m, "signature_path"),
		ContactEmail:  str(m, "contact_email"),
		LUTNumber:     str(m, "lut_number"),
		LUTExpiry:     str(m, "lut_expiry"),
	}, nil
}
