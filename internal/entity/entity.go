// Package entity describes the entity families served by the API.
//
// Records are untyped mappings (field name -> value). Each family is described by a
// Descriptor that names its identifier field, its collection path, its XML root element
// and the typed fields a record may carry. Handlers, services and stores are written once
// and parameterised by a Descriptor instead of being copied per family.
package entity

import (
	"fmt"
	"sort"
	"strings"

	"github.com/shopspring/decimal"
)

func init() {
	// Prices are written as bare JSON numbers ("price": 3.5), not quoted strings.
	decimal.MarshalJSONWithoutQuotes = true
}

// Kind is the value type of a record field.
type Kind int

const (
	// Integer fields are held as int64.
	Integer Kind = iota
	// Text fields are held as string.
	Text
	// Decimal fields are held as decimal.Decimal.
	Decimal
)

func (k Kind) String() string {
	switch k {
	case Integer:
		return "integer"
	case Text:
		return "text"
	case Decimal:
		return "decimal"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// Field describes one field of a record.
type Field struct {
	Name string
	Kind Kind
}

// Descriptor describes an entity family.
type Descriptor struct {
	// Name is the singular family name, e.g. "product".
	// It is also the XML root element and the JSON-Schema definition name.
	Name string

	// Collection is the plural path segment, e.g. "products".
	Collection string

	// IDField is the identifier field, e.g. "productID".
	IDField string

	// Fields lists every field a record may carry, identifier included.
	Fields []Field
}

// Field returns the field with the given name.
func (d Descriptor) Field(name string) (Field, bool) {
	for _, f := range d.Fields {
		if f.Name == name {
			return f, true
		}
	}
	return Field{}, false
}

// FieldNames returns the descriptor's field names in declaration order.
func (d Descriptor) FieldNames() []string {
	names := make([]string, 0, len(d.Fields))
	for _, f := range d.Fields {
		names = append(names, f.Name)
	}
	return names
}

// Title returns the family name with an upper-case first letter ("Product").
func (d Descriptor) Title() string {
	if d.Name == "" {
		return ""
	}
	return strings.ToUpper(d.Name[:1]) + d.Name[1:]
}

var (
	// Product is a sellable item.
	Product = Descriptor{
		Name:       "product",
		Collection: "products",
		IDField:    "productID",
		Fields: []Field{
			{Name: "productID", Kind: Integer},
			{Name: "name", Kind: Text},
			{Name: "price", Kind: Decimal},
		},
	}

	// Employee is a member of the sales staff.
	Employee = Descriptor{
		Name:       "employee",
		Collection: "employees",
		IDField:    "employeeID",
		Fields: []Field{
			{Name: "employeeID", Kind: Integer},
			{Name: "firstName", Kind: Text},
			{Name: "middleInitial", Kind: Text},
			{Name: "lastName", Kind: Text},
		},
	}

	// Customer is a buyer.
	Customer = Descriptor{
		Name:       "customer",
		Collection: "customers",
		IDField:    "customerID",
		Fields: []Field{
			{Name: "customerID", Kind: Integer},
			{Name: "firstName", Kind: Text},
			{Name: "middleInitial", Kind: Text},
			{Name: "lastName", Kind: Text},
		},
	}

	// Sale links an employee, a customer and a product.
	// The references are not checked against the other families.
	Sale = Descriptor{
		Name:       "sale",
		Collection: "sales",
		IDField:    "salesID",
		Fields: []Field{
			{Name: "salesID", Kind: Integer},
			{Name: "salesPersonalID", Kind: Integer},
			{Name: "customerID", Kind: Integer},
			{Name: "productID", Kind: Integer},
			{Name: "quantity", Kind: Integer},
		},
	}
)

// All returns every entity family in a stable order.
func All() []Descriptor {
	return []Descriptor{Product, Employee, Customer, Sale}
}

// ByName looks up a family by singular name or collection name.
func ByName(name string) (Descriptor, bool) {
	for _, d := range All() {
		if d.Name == name || d.Collection == name {
			return d, true
		}
	}
	return Descriptor{}, false
}

// Names returns the singular names of every family, sorted.
func Names() []string {
	names := make([]string, 0, len(All()))
	for _, d := range All() {
		names = append(names, d.Name)
	}
	sort.Strings(names)
	return names
}
