package domain

import "strings"

// CustomerRef identifies the buyer by external id and display name
type CustomerRef struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// BranchRef identifies the selling branch
type BranchRef struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// ProductRef identifies a product. SKU is optional.
type ProductRef struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	SKU  string `json:"sku,omitempty"`
}

// HasSKU reports whether a SKU was supplied
func (p ProductRef) HasSKU() bool {
	return p.SKU != ""
}

// NewCustomerRef validates and trims a customer reference
func NewCustomerRef(id, name, path string) Result[CustomerRef] {
	if path == "" {
		path = "customer"
	}
	var bag NotificationsBag
	id, name = requireRefFields(&bag, id, name, path, CodeCustomerIDRequired, CodeCustomerNameRequired, "customer")
	return From(CustomerRef{ID: id, Name: name}, &bag)
}

// NewBranchRef validates and trims a branch reference
func NewBranchRef(id, name, path string) Result[BranchRef] {
	if path == "" {
		path = "branch"
	}
	var bag NotificationsBag
	id, name = requireRefFields(&bag, id, name, path, CodeBranchIDRequired, CodeBranchNameRequired, "branch")
	return From(BranchRef{ID: id, Name: name}, &bag)
}

// NewProductRef validates and trims a product reference. A blank SKU is dropped.
func NewProductRef(id, name, sku, path string) Result[ProductRef] {
	if path == "" {
		path = "product"
	}
	var bag NotificationsBag
	id, name = requireRefFields(&bag, id, name, path, CodeProductIDRequired, CodeProductNameRequired, "product")
	return From(ProductRef{ID: id, Name: name, SKU: strings.TrimSpace(sku)}, &bag)
}

func requireRefFields(bag *NotificationsBag, id, name, path string, idCode, nameCode Code, kind string) (string, string) {
	id = strings.TrimSpace(id)
	name = strings.TrimSpace(name)
	if id == "" {
		bag.Add(idCode, kind+" id is required", path+".id")
	}
	if name == "" {
		bag.Add(nameCode, kind+" name is required", path+".name")
	}
	return id, name
}
