// Command seed-db prepares a local database for development: it applies the
// schema, fills a demo customer's cart, and prints signed customer and vendor
// tokens for hitting the API by hand.
package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"time"

	"github.com/go-faster/errors"
	"github.com/golang-jwt/jwt/v5"
	"github.com/shopspring/decimal"

	"github.com/butcherhub/orders/internal/domain/cart"
	"github.com/butcherhub/orders/internal/repository"
)

const (
	demoUserID   = "demo-customer"
	demoVendorID = "demo-butcher"
)

var demoItems = []cart.Item{
	{
		ItemID:       "item-ribeye",
		VendorID:     demoVendorID,
		Name:         "Ribeye Steak",
		Quantity:     decimal.RequireFromString("0.5"),
		Unit:         "kg",
		PricePerUnit: decimal.NewFromInt(300),
	},
	{
		ItemID:       "item-mutton-curry-cut",
		VendorID:     demoVendorID,
		Name:         "Mutton Curry Cut",
		Quantity:     decimal.NewFromInt(1),
		Unit:         "kg",
		PricePerUnit: decimal.NewFromInt(650),
	},
	{
		ItemID:       "item-chicken-breast",
		VendorID:     demoVendorID,
		Name:         "Chicken Breast",
		Quantity:     decimal.RequireFromString("0.75"),
		Unit:         "kg",
		PricePerUnit: decimal.NewFromInt(320),
	},
}

func main() {
	var (
		databaseURL string
		jwtSecret   string
	)

	flag.StringVar(&databaseURL, "database-url", "", "PostgreSQL connection URL (or DATABASE_URL env)")
	flag.StringVar(&jwtSecret, "jwt-secret", "", "HMAC secret for dev tokens (or ORDERS_JWT_SECRET env)")
	flag.Parse()

	if databaseURL == "" {
		databaseURL = os.Getenv("DATABASE_URL")
	}
	if databaseURL == "" {
		slog.Error("database URL is required: set --database-url or DATABASE_URL")
		os.Exit(1)
	}
	if jwtSecret == "" {
		jwtSecret = os.Getenv("ORDERS_JWT_SECRET")
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	if err := run(ctx, databaseURL, jwtSecret); err != nil {
		slog.Error("seed failed", slog.String("error", err.Error()))
		os.Exit(1)
	}

	slog.Info("seed completed successfully")
}

func run(ctx context.Context, databaseURL, jwtSecret string) error {
	slog.Info("connecting to database")

	pool, err := repository.NewPool(ctx, databaseURL)
	if err != nil {
		return errors.Wrap(err, "connect to database")
	}
	defer pool.Close()

	slog.Info("running migrations")

	if err := repository.RunMigrations(ctx, pool); err != nil {
		return errors.Wrap(err, "run migrations")
	}

	if err := seedDemoCart(ctx, repository.NewCartRepository(pool)); err != nil {
		return errors.Wrap(err, "seed demo cart")
	}

	if jwtSecret != "" {
		if err := printDevTokens(jwtSecret); err != nil {
			return errors.Wrap(err, "mint dev tokens")
		}
	}
	return nil
}

func seedDemoCart(ctx context.Context, carts *repository.CartRepository) error {
	c, err := carts.Mutate(ctx, demoUserID, func(c *cart.Cart) error {
		c.Clear()
		for _, it := range demoItems {
			if err := c.Add(it); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return err
	}

	slog.Info("seeded demo cart",
		slog.String("user_id", demoUserID),
		slog.Int("items", len(c.Items)),
		slog.String("total", c.Total.StringFixed(2)),
	)
	return nil
}

func printDevTokens(secret string) error {
	mint := func(claims jwt.MapClaims) (string, error) {
		claims["exp"] = time.Now().Add(24 * time.Hour).Unix()
		return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
	}

	customer, err := mint(jwt.MapClaims{"sub": demoUserID, "role": "customer"})
	if err != nil {
		return err
	}
	vendor, err := mint(jwt.MapClaims{"sub": "demo-butcher-owner", "role": "vendor", "vendor_id": demoVendorID})
	if err != nil {
		return err
	}

	slog.Info("dev tokens valid for 24h")
	slog.Info("customer token", slog.String("token", customer))
	slog.Info("vendor token", slog.String("token", vendor))
	return nil
}
