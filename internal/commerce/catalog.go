package commerce

// Variant is a purchasable variant in the catalog.
type Variant struct {
	ID              string            `yaml:"id" json:"id"`
	ProductID       string            `yaml:"product_id" json:"product_id"`
	Title           string            `yaml:"title" json:"title"`
	Price           int64             `yaml:"price" json:"price"`
	Stock           int               `yaml:"stock" json:"stock"`
	ManageInventory bool              `yaml:"manage_inventory" json:"manage_inventory"`
	AllowBackorder  bool              `yaml:"allow_backorder" json:"allow_backorder"`
	Thumbnail       string            `yaml:"thumbnail,omitempty" json:"thumbnail,omitempty"`
	Options         map[string]string `yaml:"options,omitempty" json:"options,omitempty"`
}

// available reports whether quantity units can be sold.
func (v Variant) available(quantity int) bool {
	return !v.ManageInventory || v.AllowBackorder || quantity <= v.Stock
}

// ShippingOption is a shipping method customers can choose.
type ShippingOption struct {
	ID     string `yaml:"id" json:"id"`
	Name   string `yaml:"name" json:"name"`
	Amount int64  `yaml:"amount" json:"amount"`
}

// Region is the sales region new carts are created in.
type Region struct {
	ID           string `yaml:"id" json:"id"`
	CurrencyCode string `yaml:"currency_code" json:"currency_code"`
}

// DefaultRegion is used when no region is configured.
var DefaultRegion = Region{ID: "reg_default", CurrencyCode: "eur"}

// Catalog is the static data a Backend sells from.
type Catalog struct {
	Region           Region           `yaml:"region" json:"region"`
	Variants         []Variant        `yaml:"variants" json:"variants"`
	ShippingOptions  []ShippingOption `yaml:"shipping_options" json:"shipping_options"`
	PaymentProviders []string         `yaml:"payment_providers" json:"payment_providers"`
}
