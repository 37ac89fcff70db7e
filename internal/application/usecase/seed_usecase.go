package usecase

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"

	invoicedom "freesia/internal/domain/invoice"
	productdom "freesia/internal/domain/product"
	saledom "freesia/internal/domain/sale"
)

// ============================================================
// Seed file format
// ============================================================

// SeedData is the starter catalogue decoded from YAML.
type SeedData struct {
	Products []SeedProduct `yaml:"products"`
	Sales    []SeedSale    `yaml:"sales"`
}

// SeedProduct uses its key as the product id so sales can refer to it.
type SeedProduct struct {
	Key          string `yaml:"key"`
	Title        string `yaml:"title"`
	Quantity     int    `yaml:"quantity"`
	BuyPrice     string `yaml:"buyPrice"`
	ShippingCost string `yaml:"shippingCost"`
	SellPrice    string `yaml:"sellPrice"`
	Status       string `yaml:"status"`
	Shipment     string `yaml:"shipment"`
	Description  string `yaml:"description"`
	Image        string `yaml:"image"`
}

type SeedSale struct {
	ID             string           `yaml:"id"`
	Customer       saledom.Customer `yaml:"customer"`
	Items          []SeedSaleItem   `yaml:"items"`
	Discount       string           `yaml:"discount"`
	DeliveryCharge string           `yaml:"deliveryCharge"`
	// DaysAgo places the sale relative to the load time.
	DaysAgo int `yaml:"daysAgo"`
}

type SeedSaleItem struct {
	Product   string `yaml:"product"`
	Quantity  int    `yaml:"quantity"`
	UnitPrice string `yaml:"unitPrice"`
	Title     string `yaml:"title"`
}

// ParseSeed decodes a YAML seed document.
func ParseSeed(raw []byte) (SeedData, error) {
	var d SeedData
	if err := yaml.Unmarshal(raw, &d); err != nil {
		return SeedData{}, fmt.Errorf("parse seed: %w", err)
	}
	return d, nil
}

// ============================================================
// SeedUsecase
// ============================================================

// SeedResult reports what a run wrote.
type SeedResult struct {
	Products int   `json:"products"`
	Sales    int   `json:"sales"`
	Counter  int64 `json:"counter"`
}

// SeedUsecase fills empty collections with starter data. It never touches a
// collection that already has documents.
type SeedUsecase struct {
	writer   SeedWriter
	sales    saledom.RepositoryPort
	invoices *InvoiceSequencer
	now      func() time.Time
}

// NewSeedUsecase wires the seeder. sales is read to find invoice numbers
// already in the store when the counter has to be created; it may be nil.
func NewSeedUsecase(writer SeedWriter, sales saledom.RepositoryPort, invoices *InvoiceSequencer) *SeedUsecase {
	return &SeedUsecase{writer: writer, sales: sales, invoices: invoices, now: time.Now}
}

func (u *SeedUsecase) Run(ctx context.Context, data SeedData) (SeedResult, error) {
	if u == nil || u.writer == nil {
		return SeedResult{}, errors.New("seed usecase/writer is nil")
	}

	hasProducts, err := u.writer.HasProducts(ctx)
	if err != nil {
		return SeedResult{}, err
	}
	hasSales, err := u.writer.HasSales(ctx)
	if err != nil {
		return SeedResult{}, err
	}

	now := u.now().UTC()

	catalogue, err := buildSeedProducts(data.Products, now)
	if err != nil {
		return SeedResult{}, err
	}

	var products []productdom.Product
	if !hasProducts {
		products = catalogue
	}

	var sales []saledom.Sale
	if !hasSales {
		sales, err = buildSeedSales(data.Sales, catalogue, now)
		if err != nil {
			return SeedResult{}, err
		}
	}

	if len(products) == 0 && len(sales) == 0 {
		log.Printf("[seed_uc] nothing to seed (products=%t sales=%t)", hasProducts, hasSales)
	} else if err := u.writer.WriteSeed(ctx, products, sales); err != nil {
		return SeedResult{}, fmt.Errorf("write seed: %w", err)
	}

	res := SeedResult{Products: len(products), Sales: len(sales)}

	if u.invoices != nil {
		floor := highestInvoice(u.invoices.Prefix(), sales)
		if hasSales && u.sales != nil {
			existing, err := u.sales.List(ctx)
			if err != nil {
				return res, fmt.Errorf("read existing sales: %w", err)
			}
			if n := highestInvoice(u.invoices.Prefix(), existing); n > floor {
				floor = n
			}
		}
		counter, err := u.invoices.InitializeIfAbsent(ctx, floor)
		if err != nil {
			return res, fmt.Errorf("init invoice counter: %w", err)
		}
		res.Counter = counter
	}

	log.Printf("[seed_uc] seeded products=%d sales=%d counter=%d", res.Products, res.Sales, res.Counter)
	return res, nil
}

// highestInvoice returns the largest invoice number among sales ids that
// carry prefix; ids in any other shape are ignored.
func highestInvoice(prefix string, sales []saledom.Sale) int64 {
	var highest int64
	for _, s := range sales {
		n, err := invoicedom.ParseID(prefix, s.ID)
		if err != nil {
			continue
		}
		if n > highest {
			highest = n
		}
	}
	return highest
}

func buildSeedProducts(in []SeedProduct, now time.Time) ([]productdom.Product, error) {
	out := make([]productdom.Product, 0, len(in))
	seen := map[string]bool{}
	for i, sp := range in {
		key := strings.TrimSpace(sp.Key)
		if key == "" {
			return nil, fmt.Errorf("seed product %d: %w", i+1, productdom.ErrInvalidID)
		}
		if seen[key] {
			return nil, fmt.Errorf("seed product %q: duplicate key", key)
		}
		seen[key] = true

		if sp.Quantity < 0 {
			return nil, fmt.Errorf("seed product %q: %w", key, productdom.ErrInvalidQuantity)
		}
		buy, err := parseSeedAmount(sp.BuyPrice)
		if err != nil {
			return nil, fmt.Errorf("seed product %q buyPrice: %w", key, err)
		}
		ship, err := parseSeedAmount(sp.ShippingCost)
		if err != nil {
			return nil, fmt.Errorf("seed product %q shippingCost: %w", key, err)
		}
		sell, err := parseSeedAmount(sp.SellPrice)
		if err != nil {
			return nil, fmt.Errorf("seed product %q sellPrice: %w", key, err)
		}

		p := productdom.New(key, productdom.CreateInput{
			Title:        sp.Title,
			Quantity:     sp.Quantity,
			BuyPrice:     buy,
			ShippingCost: ship,
			SellPrice:    sell,
			Shipment:     sp.Shipment,
			Description:  sp.Description,
			Image:        sp.Image,
		}, now)
		if st := productdom.Status(strings.TrimSpace(sp.Status)); st != "" {
			if !st.IsValid() {
				return nil, fmt.Errorf("seed product %q: %w", key, productdom.ErrInvalidStatus)
			}
			p.Status = st
		}
		out = append(out, p)
	}
	return out, nil
}

// buildSeedSales binds seeded lines to the catalogue snapshots. Seeded sales
// are historical: they do not move stock.
func buildSeedSales(in []SeedSale, catalogue []productdom.Product, now time.Time) ([]saledom.Sale, error) {
	byKey := make(map[string]productdom.Product, len(catalogue))
	for _, p := range catalogue {
		byKey[p.ID] = p
	}

	out := make([]saledom.Sale, 0, len(in))
	for _, ss := range in {
		id := strings.TrimSpace(ss.ID)
		if id == "" {
			return nil, errors.New("seed sale: id is required")
		}

		items := make([]saledom.Item, 0, len(ss.Items))
		for _, li := range ss.Items {
			key := strings.TrimSpace(li.Product)
			p, ok := byKey[key]
			if !ok {
				return nil, fmt.Errorf("seed sale %s: %w: %s", id, productdom.ErrNotFound, key)
			}
			price := p.SellPrice
			if strings.TrimSpace(li.UnitPrice) != "" {
				v, err := parseSeedAmount(li.UnitPrice)
				if err != nil {
					return nil, fmt.Errorf("seed sale %s unitPrice: %w", id, err)
				}
				price = v
			}
			title := strings.TrimSpace(li.Title)
			if title == "" {
				title = p.Title
			}
			items = append(items, saledom.Item{
				ProductID: key,
				Title:     title,
				Quantity:  li.Quantity,
				UnitPrice: price,
				UnitCost:  p.UnitCost(),
				Shipment:  p.Shipment,
			})
		}

		discount, err := parseSeedAmount(ss.Discount)
		if err != nil {
			return nil, fmt.Errorf("seed sale %s discount: %w", id, err)
		}
		delivery, err := parseSeedAmount(ss.DeliveryCharge)
		if err != nil {
			return nil, fmt.Errorf("seed sale %s deliveryCharge: %w", id, err)
		}

		date := now.AddDate(0, 0, -ss.DaysAgo)
		s, err := saledom.New(id, ss.Customer, items, discount, delivery, date)
		if err != nil {
			return nil, fmt.Errorf("seed sale %s: %w", id, err)
		}
		out = append(out, s)
	}
	return out, nil
}

func parseSeedAmount(s string) (decimal.Decimal, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return decimal.Zero, nil
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, err
	}
	if d.IsNegative() {
		return decimal.Zero, saledom.ErrInvalidAmount
	}
	return d, nil
}
