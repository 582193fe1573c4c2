// Command seed-db loads the demo catalog, registers a service API key, and
// prints a development bearer token.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"time"

	"github.com/go-faster/errors"
	"github.com/google/uuid"

	"github.com/xenking/storefront/internal/domain/auth"
	"github.com/xenking/storefront/internal/domain/catalog"
	"github.com/xenking/storefront/internal/storage/postgres"
)

type productJSON struct {
	ID       string          `json:"id"`
	Name     string          `json:"name"`
	Image    string          `json:"image"`
	Stock    int             `json:"stock"`
	Prices   []catalog.Price `json:"prices"`
	Variants []variantJSON   `json:"variants"`
}

type variantJSON struct {
	ID         string              `json:"id"`
	Attributes []catalog.Attribute `json:"attributes"`
	Image      string              `json:"image"`
	Stock      int                 `json:"stock"`
	Prices     []catalog.Price     `json:"prices"`
}

type options struct {
	databaseURL  string
	catalogFile  string
	apiKey       string
	apiKeyPepper string
	jwtSecret    string
	userID       string
	email        string
	tokenTTL     time.Duration
}

func envDefault(v *string, key string) {
	if *v == "" {
		*v = os.Getenv(key)
	}
}

func main() {
	var opts options

	flag.StringVar(&opts.databaseURL, "database-url", "", "PostgreSQL connection URL (or DATABASE_URL env)")
	flag.StringVar(&opts.catalogFile, "catalog-file", "db/seed/catalog.json", "path to catalog JSON file")
	flag.StringVar(&opts.apiKey, "api-key", "", "service API key to register (or STOREFRONT_SEED_API_KEY env)")
	flag.StringVar(&opts.apiKeyPepper, "api-key-pepper", "", "HMAC pepper for API key hashing (or STOREFRONT_AUTH_API_KEY_PEPPER env)")
	flag.StringVar(&opts.jwtSecret, "jwt-secret", "", "secret to sign the development token with (or STOREFRONT_AUTH_JWT_SECRET env)")
	flag.StringVar(&opts.userID, "user-id", "demo-user", "subject of the development token")
	flag.StringVar(&opts.email, "email", "demo@example.com", "email claim of the development token")
	flag.DurationVar(&opts.tokenTTL, "token-ttl", 24*time.Hour, "development token lifetime")
	flag.Parse()

	envDefault(&opts.databaseURL, "DATABASE_URL")
	envDefault(&opts.apiKey, "STOREFRONT_SEED_API_KEY")
	envDefault(&opts.apiKeyPepper, "STOREFRONT_AUTH_API_KEY_PEPPER")
	envDefault(&opts.jwtSecret, "STOREFRONT_AUTH_JWT_SECRET")

	if opts.databaseURL == "" {
		slog.Error("database URL is required: set --database-url or DATABASE_URL")
		os.Exit(1)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	if err := run(ctx, opts); err != nil {
		slog.Error("seed failed", slog.String("error", err.Error()))
		os.Exit(1)
	}

	slog.Info("seed completed successfully")
}

func run(ctx context.Context, opts options) error {
	slog.Info("connecting to database")

	pool, err := postgres.NewPool(ctx, opts.databaseURL)
	if err != nil {
		return errors.Wrap(err, "connect to database")
	}
	defer pool.Close()

	slog.Info("running migrations")
	if err := postgres.Migrate(ctx, pool); err != nil {
		return errors.Wrap(err, "run migrations")
	}

	db := postgres.NewDB(pool)
	if err := seedCatalog(ctx, db, opts.catalogFile); err != nil {
		return errors.Wrap(err, "seed catalog")
	}

	if opts.apiKey != "" {
		if err := seedAPIKey(ctx, postgres.NewAPIKeyRepository(db), opts.apiKey, opts.apiKeyPepper); err != nil {
			return errors.Wrap(err, "seed api key")
		}
	} else {
		slog.Info("no API key given, skipping")
	}

	if opts.jwtSecret != "" {
		token, err := auth.NewJWT([]byte(opts.jwtSecret)).Issue(auth.Identity{
			UserID: opts.userID,
			Email:  opts.email,
		}, opts.tokenTTL)
		if err != nil {
			return errors.Wrap(err, "issue development token")
		}
		slog.Info("issued development token", slog.String("user_id", opts.userID), slog.Duration("ttl", opts.tokenTTL))
		fmt.Println(token)
	}

	return nil
}

func seedCatalog(ctx context.Context, db *postgres.DB, path string) error {
	slog.Info("reading catalog file", slog.String("path", path))

	data, err := os.ReadFile(path)
	if err != nil {
		return errors.Wrap(err, "read catalog file")
	}

	var products []productJSON
	if err := json.Unmarshal(data, &products); err != nil {
		return errors.Wrap(err, "parse catalog JSON")
	}

	slog.Info("upserting products", slog.Int("count", len(products)))

	repo := postgres.NewCatalogRepository(db)
	return db.WithinTx(ctx, func(ctx context.Context) error {
		for _, p := range products {
			if err := repo.UpsertProduct(ctx, catalog.Product{
				ID:     p.ID,
				Name:   p.Name,
				Image:  p.Image,
				Stock:  p.Stock,
				Prices: p.Prices,
			}); err != nil {
				return err
			}
			for _, v := range p.Variants {
				if err := repo.UpsertVariant(ctx, catalog.Variant{
					ID:         v.ID,
					ProductID:  p.ID,
					Attributes: v.Attributes,
					Image:      v.Image,
					Stock:      v.Stock,
					Prices:     v.Prices,
				}); err != nil {
					return err
				}
			}
			slog.Info("upserted product",
				slog.String("id", p.ID),
				slog.String("name", p.Name),
				slog.Int("variants", len(p.Variants)),
			)
		}
		return nil
	})
}

func seedAPIKey(ctx context.Context, repo *postgres.APIKeyRepository, apiKey, pepper string) error {
	const name = "fulfilment"

	if err := repo.Upsert(ctx, auth.APIKey{
		ID:      uuid.NewString(),
		KeyHash: auth.HashKey(apiKey, []byte(pepper)),
		Name:    name,
		Scopes:  []string{auth.ScopeAdmin},
	}); err != nil {
		return err
	}

	slog.Info("upserted API key", slog.String("name", name), slog.String("scope", auth.ScopeAdmin))
	return nil
}
