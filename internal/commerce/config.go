package commerce

import (
	"fmt"
	"net/url"
	"strings"
	"time"
)

const (
	// DefaultBaseURL is the address of a local Strapi instance.
	DefaultBaseURL = "http://localhost:1337/"
	// DefaultTimeout bounds every backend HTTP call.
	DefaultTimeout = 10 * time.Second
)

// Models names the backend collections and the fields that link them.
type Models struct {
	Products        string `yaml:"products" envconfig:"STRAPI_PRODUCT_NAME_PLURAL"`
	OrderedProducts string `yaml:"ordered_products" envconfig:"STRAPI_ORDERED_PRODUCT_NAME_PLURAL"`
	Carts           string `yaml:"carts" envconfig:"STRAPI_CART_NAME_PLURAL"`
	Customers       string `yaml:"customers" envconfig:"STRAPI_CUSTOMER_NAME_PLURAL"`

	// CartOwnerField stores the chat user id on a cart.
	CartOwnerField string `yaml:"cart_owner_field" envconfig:"STRAPI_CART_OWNER_FIELD"`
	// CustomerIDField stores the chat user id on a customer.
	CustomerIDField  string `yaml:"customer_id_field" envconfig:"STRAPI_CUSTOMER_ID_FIELD"`
	ProductImage     string `yaml:"product_image_field" envconfig:"STRAPI_PRODUCT_IMAGE_FIELD"`
	CartLines        string `yaml:"cart_lines_field" envconfig:"STRAPI_CART_LINES_FIELD"`
	LineProduct      string `yaml:"line_product_field" envconfig:"STRAPI_LINE_PRODUCT_FIELD"`
	LineCart         string `yaml:"line_cart_field" envconfig:"STRAPI_LINE_CART_FIELD"`
}

// BreakerConfig controls fail-fast behaviour when the backend keeps failing.
// A zero FailureThreshold disables the breaker.
type BreakerConfig struct {
	FailureThreshold uint32        `yaml:"failure_threshold" envconfig:"STRAPI_BREAKER_FAILURES"`
	OpenTimeout      time.Duration `yaml:"open_timeout" envconfig:"STRAPI_BREAKER_OPEN_TIMEOUT"`
}

// Config holds Strapi connection settings.
type Config struct {
	BaseURL string        `yaml:"url" envconfig:"STRAPI_URL"`
	Token   string        `yaml:"token" envconfig:"STRAPI_TOKEN"`
	Timeout time.Duration `yaml:"timeout" envconfig:"STRAPI_TIMEOUT"`
	Models  Models        `yaml:"models"`
	Breaker BreakerConfig `yaml:"breaker"`
}

// Normalize fills defaults and validates required fields.
func (c *Config) Normalize() error {
	c.BaseURL = strings.TrimSpace(c.BaseURL)
	if c.BaseURL == "" {
		c.BaseURL = DefaultBaseURL
	}
	u, err := url.Parse(c.BaseURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("strapi url %q must be an absolute URL", c.BaseURL)
	}
	if !strings.HasSuffix(c.BaseURL, "/") {
		c.BaseURL += "/"
	}
	if strings.TrimSpace(c.Token) == "" {
		return fmt.Errorf("strapi token is required")
	}
	if c.Timeout <= 0 {
		c.Timeout = DefaultTimeout
	}
	if c.Breaker.FailureThreshold > 0 && c.Breaker.OpenTimeout <= 0 {
		c.Breaker.OpenTimeout = 30 * time.Second
	}
	c.Models.withDefaults()
	return nil
}

func (m *Models) withDefaults() {
	def := func(v *string, d string) {
		if strings.TrimSpace(*v) == "" {
			*v = d
		}
	}
	def(&m.Products, "products")
	def(&m.OrderedProducts, "ordered-products")
	def(&m.Carts, "carts")
	def(&m.Customers, "customers")
	def(&m.CartOwnerField, "user_tg_id")
	def(&m.CustomerIDField, "telegram_id")
	def(&m.ProductImage, "Image")
	def(&m.CartLines, "ordered_products")
	def(&m.LineProduct, "product")
	def(&m.LineCart, "cart")
}
