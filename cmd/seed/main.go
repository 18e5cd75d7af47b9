package main

import (
	"context"
	"errors"
	"flag"
	"time"

	"github.com/donana/kitchen-api/internal/auth"
	"github.com/donana/kitchen-api/internal/config"
	"github.com/donana/kitchen-api/internal/database"
	"github.com/donana/kitchen-api/internal/enum"
	"github.com/donana/kitchen-api/internal/logger"
	"github.com/donana/kitchen-api/internal/service"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
)

type seedIngredient struct {
	name, unit, quantity, unitCost string
}

type seedDish struct {
	name, description, price, photo string
	recipe                          map[string]string // ingredient name -> grams per serving
}

var ingredients = []seedIngredient{
	{"Arroz Integral", enum.UnitKilogram, "10", "8.5"},
	{"Feijão Carioca", enum.UnitKilogram, "5", "9"},
	{"Peito de Frango", enum.UnitKilogram, "3", "22"},
	{"Patinho Moído", enum.UnitKilogram, "4", "45"},
	{"Batata Doce", enum.UnitKilogram, "8", "4.5"},
}

var dishes = []seedDish{
	{
		name:        "Frango com Batata Doce",
		description: "Peito de frango grelhado com ervas finas, arroz integral e batata doce rústica.",
		price:       "25",
		photo:       "https://picsum.photos/seed/frango/400/300",
		recipe:      map[string]string{"Arroz Integral": "150", "Peito de Frango": "150", "Batata Doce": "100"},
	},
	{
		name:        "Escondidinho de Patinho",
		description: "Purê de batata doce cremoso recheado com patinho moído temperado.",
		price:       "28",
		photo:       "https://picsum.photos/seed/escondidinho/400/300",
		recipe:      map[string]string{"Patinho Moído": "200", "Batata Doce": "250"},
	},
	{
		name:        "Bowl Fit Veggie",
		description: "Mix de legumes sazonais, arroz integral e feijão carioca com tempero caseiro.",
		price:       "22",
		photo:       "https://picsum.photos/seed/veggie/400/300",
	},
}

func main() {
	tokenTTL := flag.Duration("token-ttl", 24*time.Hour, "lifetime of the printed admin token")
	flag.Parse()

	_ = godotenv.Load()
	cfg, err := config.Load()
	if err != nil {
		logrus.WithError(err).Fatal("load config")
	}
	log := logger.New(cfg.LogLevel, cfg.LogFormat)

	ctx := context.Background()
	pool, err := pgxpool.New(ctx, cfg.DatabaseURL)
	if err != nil {
		log.WithError(err).Fatal("connect to database")
	}
	defer pool.Close()
	if err := pool.Ping(ctx); err != nil {
		log.WithError(err).Fatal("ping database")
	}

	catalog := service.NewCatalogService(pool, func(db database.DBTX) service.CatalogStore {
		return database.New(db)
	}, log.WithField("component", "seed"))

	if err := seed(ctx, catalog, log); err != nil {
		log.WithError(err).Fatal("seed")
	}

	token, err := auth.GenerateToken(cfg.JWTSecret, uuid.New(), "Cozinha", enum.UserRoleAdmin, *tokenTTL)
	if err != nil {
		log.WithError(err).Fatal("generate admin token")
	}
	log.WithField("token", token).Info("development admin token")
}

// seed creates whatever catalog entries are missing. Existing names are
// left untouched, so the command can be run repeatedly.
func seed(ctx context.Context, catalog *service.CatalogService, log logrus.FieldLogger) error {
	existing, err := catalog.ListIngredients(ctx)
	if err != nil {
		return err
	}
	ids := make(map[string]uuid.UUID, len(existing))
	for _, ing := range existing {
		ids[ing.Name] = ing.ID
	}

	for _, s := range ingredients {
		if _, ok := ids[s.name]; ok {
			log.WithField("ingredient", s.name).Info("ingredient exists, skipping")
			continue
		}
		ing, err := catalog.CreateIngredient(ctx, service.CreateIngredientRequest{
			Name: s.name, Unit: s.unit, Quantity: s.quantity, UnitCost: s.unitCost,
		})
		if err != nil && !errors.Is(err, service.ErrDuplicateName) {
			return err
		}
		ids[s.name] = ing.ID
	}

	current, err := catalog.ListDishes(ctx)
	if err != nil {
		return err
	}
	haveDish := make(map[string]bool, len(current))
	for _, d := range current {
		haveDish[d.Name] = true
	}

	for _, s := range dishes {
		if haveDish[s.name] {
			log.WithField("dish", s.name).Info("dish exists, skipping")
			continue
		}
		recipe := make([]service.RecipeInput, 0, len(s.recipe))
		for name, qty := range s.recipe {
			recipe = append(recipe, service.RecipeInput{IngredientID: ids[name].String(), QuantityPerServing: qty})
		}
		if _, err := catalog.CreateDish(ctx, service.CreateDishRequest{
			Name:        s.name,
			Description: s.description,
			Price:       s.price,
			PhotoURL:    s.photo,
			Recipe:      recipe,
		}); err != nil {
			return err
		}
	}
	return nil
}
