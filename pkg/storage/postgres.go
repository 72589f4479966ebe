package storage

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/lib/pq"

	"github.com/fusionguard/recommender/pkg/catalog"
)

// Storage provides database operations for the recommender
type Storage struct {
	db *sql.DB
}

// queryer is satisfied by both *sql.DB and *sql.Tx
type queryer interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

// New creates a new Storage instance
func New(dsn string) (*Storage, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	return &Storage{db: db}, nil
}

// NewWithDB wraps an already opened handle.
func NewWithDB(db *sql.DB) *Storage {
	return &Storage{db: db}
}

// Close closes the database connection
func (s *Storage) Close() error {
	return s.db.Close()
}

// EnsureSchema applies pending migrations.
func (s *Storage) EnsureSchema(ctx context.Context) error {
	if err := RunMigrations(ctx, s.db); err != nil {
		return fmt.Errorf("apply schema: %w", err)
	}
	return nil
}

// UpsertProducts writes products in a single transaction
func (s *Storage) UpsertProducts(ctx context.Context, products []catalog.Product) error {
	if len(products) == 0 {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	if err := upsertProducts(ctx, tx, products); err != nil {
		return err
	}
	return tx.Commit()
}

// ReplaceKnowledge swaps the whole knowledge base in one transaction so
// readers never see a partial rule table.
func (s *Storage) ReplaceKnowledge(ctx context.Context, entries map[string][]string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	if err := replaceKnowledge(ctx, tx, entries); err != nil {
		return err
	}
	return tx.Commit()
}

// ReplaceCatalog makes the database hold exactly the given products and
// knowledge base. Products absent from the list are deleted.
func (s *Storage) ReplaceCatalog(ctx context.Context, products []catalog.Product, entries map[string][]string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	ids := make([]string, 0, len(products))
	for _, p := range products {
		ids = append(ids, p.ID)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM products WHERE product_id <> ALL($1)`, pq.Array(ids)); err != nil {
		return fmt.Errorf("prune products: %w", err)
	}
	if len(products) > 0 {
		if err := upsertProducts(ctx, tx, products); err != nil {
			return err
		}
	}
	if err := replaceKnowledge(ctx, tx, entries); err != nil {
		return err
	}
	return tx.Commit()
}

func upsertProducts(ctx context.Context, tx *sql.Tx, products []catalog.Product) error {
	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO products (product_id, name, category, brand, tags, profit_potential)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (product_id) DO UPDATE
		SET name = EXCLUDED.name,
		    category = EXCLUDED.category,
		    brand = EXCLUDED.brand,
		    tags = EXCLUDED.tags,
		    profit_potential = EXCLUDED.profit_potential
	`)
	if err != nil {
		return fmt.Errorf("prepare statement: %w", err)
	}
	defer stmt.Close()

	for _, p := range products {
		if _, err := stmt.ExecContext(ctx, p.ID, p.Name, p.Category, p.Brand, pq.Array(nonNil(p.Tags)), p.ProfitPotential); err != nil {
			return fmt.Errorf("execute statement: %w", err)
		}
	}
	return nil
}

func replaceKnowledge(ctx context.Context, tx *sql.Tx, entries map[string][]string) error {
	if _, err := tx.ExecContext(ctx, `DELETE FROM knowledge_entries`); err != nil {
		return fmt.Errorf("clear knowledge: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO knowledge_entries (key, position, product_id)
		VALUES ($1, $2, $3)
	`)
	if err != nil {
		return fmt.Errorf("prepare statement: %w", err)
	}
	defer stmt.Close()

	for key, ids := range entries {
		for pos, id := range ids {
			if _, err := stmt.ExecContext(ctx, key, pos, id); err != nil {
				return fmt.Errorf("execute statement: %w", err)
			}
		}
	}
	return nil
}

// LoadProducts returns every catalogued product ordered by id
func (s *Storage) LoadProducts(ctx context.Context) ([]catalog.Product, error) {
	return loadProducts(ctx, s.db)
}

func loadProducts(ctx context.Context, q queryer) ([]catalog.Product, error) {
	query := `
		SELECT product_id, name, category, brand, tags, profit_potential
		FROM products
		ORDER BY product_id ASC
	`
	rows, err := q.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var products []catalog.Product
	for rows.Next() {
		var p catalog.Product
		if err := rows.Scan(&p.ID, &p.Name, &p.Category, &p.Brand, pq.Array(&p.Tags), &p.ProfitPotential); err != nil {
			return nil, err
		}
		products = append(products, p)
	}

	return products, rows.Err()
}

// LoadKnowledge returns every knowledge base entry with ids in position order
func (s *Storage) LoadKnowledge(ctx context.Context) (map[string][]string, error) {
	return loadKnowledge(ctx, s.db)
}

func loadKnowledge(ctx context.Context, q queryer) (map[string][]string, error) {
	query := `
		SELECT key, product_id
		FROM knowledge_entries
		ORDER BY key ASC, position ASC
	`
	rows, err := q.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	entries := make(map[string][]string)
	for rows.Next() {
		var key, productID string
		if err := rows.Scan(&key, &productID); err != nil {
			return nil, err
		}
		entries[key] = append(entries[key], productID)
	}

	return entries, rows.Err()
}

// LoadDocument reads products and knowledge inside one read-only
// transaction, giving a consistent snapshot of both tables.
func (s *Storage) LoadDocument(ctx context.Context) (catalog.Document, error) {
	tx, err := s.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelRepeatableRead, ReadOnly: true})
	if err != nil {
		return catalog.Document{}, fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	products, err := loadProducts(ctx, tx)
	if err != nil {
		return catalog.Document{}, fmt.Errorf("load products: %w", err)
	}
	entries, err := loadKnowledge(ctx, tx)
	if err != nil {
		return catalog.Document{}, fmt.Errorf("load knowledge: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return catalog.Document{}, fmt.Errorf("commit: %w", err)
	}
	return catalog.Document{Products: products, KnowledgeBase: entries}, nil
}

// StoreRecommendation records one inference and returns its row id
func (s *Storage) StoreRecommendation(ctx context.Context, rec RecommendationRecord) (int64, error) {
	query := `
		INSERT INTO recommendation_log
			(request_id, item_id, cart_value, last_purchase_days, rules_fired, messages, product_ids)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id
	`
	var lastPurchase sql.NullFloat64
	if rec.LastPurchaseDays != nil {
		lastPurchase = sql.NullFloat64{Float64: *rec.LastPurchaseDays, Valid: true}
	}

	var id int64
	err := s.db.QueryRowContext(ctx, query,
		rec.RequestID, rec.ItemID, rec.CartValue, lastPurchase,
		pq.Array(nonNil(rec.RulesFired)), pq.Array(nonNil(rec.Messages)), pq.Array(nonNil(rec.ProductIDs)),
	).Scan(&id)
	return id, err
}

// ListRecommendations returns the most recent records for an item
func (s *Storage) ListRecommendations(ctx context.Context, itemID string, limit int) ([]RecommendationRecord, error) {
	if limit <= 0 {
		limit = 50
	}
	query := `
		SELECT id, request_id, item_id, cart_value, last_purchase_days,
		       rules_fired, messages, product_ids, created_at
		FROM recommendation_log
		WHERE item_id = $1
		ORDER BY created_at DESC
		LIMIT $2
	`
	rows, err := s.db.QueryContext(ctx, query, itemID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var records []RecommendationRecord
	for rows.Next() {
		var rec RecommendationRecord
		var lastPurchase sql.NullFloat64
		if err := rows.Scan(
			&rec.ID, &rec.RequestID, &rec.ItemID, &rec.CartValue, &lastPurchase,
			pq.Array(&rec.RulesFired), pq.Array(&rec.Messages), pq.Array(&rec.ProductIDs), &rec.CreatedAt,
		); err != nil {
			return nil, err
		}
		if lastPurchase.Valid {
			v := lastPurchase.Float64
			rec.LastPurchaseDays = &v
		}
		records = append(records, rec)
	}

	return records, rows.Err()
}

// nonNil keeps pq.Array from encoding a nil slice as NULL.
func nonNil(values []string) []string {
	if values == nil {
		return []string{}
	}
	return values
}
