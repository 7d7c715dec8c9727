package repository

import (
	"context"
	"fmt"
	"strings"

	"github.com/dustin/coursemate-backend/internal/catalog"
	"github.com/dustin/coursemate-backend/pkg/logger"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const defaultCatalogTable = "catalog_items"

// CatalogRow is the database form of a catalog item. List columns hold
// values joined with "|". VectorRow is the item's row in the vector file.
type CatalogRow struct {
	ID          int64   `gorm:"primaryKey;autoIncrement:false"`
	Title       string  `gorm:"not null;size:500"`
	Description string  `gorm:"type:text"`
	Headline    string  `gorm:"size:1000"`
	People      string  `gorm:"type:text"`
	Categories  string  `gorm:"type:text"`
	Level       string  `gorm:"size:100"`
	Languages   string  `gorm:"size:255"`
	Rating      float64 `gorm:"default:0"`
	RatingScale float64 `gorm:"default:5"`
	Popularity  float64 `gorm:"default:0;index"`
	NumReviews  int64   `gorm:"default:0"`
	IsPaid      bool    `gorm:"default:false"`
	Adult       bool    `gorm:"default:false"`
	URL         string  `gorm:"size:2048"`
	ImageURL    string  `gorm:"size:2048"`
	Price       string  `gorm:"size:50"`
	VectorRow   int     `gorm:"default:0;index"`
}

// gormCatalogRepository implements catalog.Source over a Postgres table
type gormCatalogRepository struct {
	db     *gorm.DB
	table  string
	logger *logger.Logger
}

// NewGORMCatalogRepository creates a new GORM-based catalog source
func NewGORMCatalogRepository(db *gorm.DB, table string, log *logger.Logger) catalog.Source {
	if table == "" {
		table = defaultCatalogTable
	}
	return &gormCatalogRepository{
		db:     db,
		table:  table,
		logger: log.WithComponent("gorm-catalog-repository"),
	}
}

func (r *gormCatalogRepository) Name() string {
	return "database:" + r.table
}

// Load reads the whole table in vector row order. Rows keep the vector row
// stored with them so an existing vector file stays aligned.
func (r *gormCatalogRepository) Load(ctx context.Context) ([]catalog.Item, error) {
	var rows []CatalogRow

	err := r.db.WithContext(ctx).Table(r.table).Order("vector_row ASC, id ASC").Find(&rows).Error
	if err != nil {
		r.logger.Error("Database error loading catalog table " + r.table + ": " + err.Error())
		return nil, fmt.Errorf("%w: database error: %v", catalog.ErrDataUnavailable, err)
	}
	if len(rows) == 0 {
		r.logger.Warn("Catalog table " + r.table + " is empty")
	}

	items := make([]catalog.Item, len(rows))
	seen := make(map[int]struct{}, len(rows))
	for i := range rows {
		items[i] = rows[i].ToItem()
		seen[items[i].SourceRow] = struct{}{}
	}
	// Rows inserted without a vector row all share 0; fall back to load order.
	if len(seen) != len(items) {
		r.logger.Warn("Catalog table " + r.table + " has repeated vector rows, using load order")
		for i := range items {
			items[i].SourceRow = i
		}
	}

	r.logger.Info("Loaded " + fmt.Sprintf("%d", len(items)) + " catalog rows from table " + r.table)
	return items, nil
}

// EnsureSchema creates or migrates the catalog table
func EnsureSchema(db *gorm.DB, table string) error {
	if table == "" {
		table = defaultCatalogTable
	}
	if err := db.Table(table).AutoMigrate(&CatalogRow{}); err != nil {
		return fmt.Errorf("failed to migrate catalog table %s: %w", table, err)
	}
	return nil
}

// SaveCatalog upserts items into the catalog table in batches
func SaveCatalog(ctx context.Context, db *gorm.DB, table string, items []catalog.Item) error {
	if table == "" {
		table = defaultCatalogTable
	}
	if len(items) == 0 {
		return nil
	}
	rows := make([]CatalogRow, len(items))
	for i := range items {
		rows[i] = NewCatalogRow(&items[i])
	}

	err := db.WithContext(ctx).Table(table).
		Clauses(clause.OnConflict{UpdateAll: true}).
		CreateInBatches(rows, 500).Error
	if err != nil {
		return fmt.Errorf("failed to save %d catalog rows to %s: %w", len(rows), table, err)
	}
	return nil
}

// ToItem converts a row to a catalog item
func (row *CatalogRow) ToItem() catalog.Item {
	scale := row.RatingScale
	if scale != 10 {
		scale = 5
	}
	return catalog.Item{
		ID:          row.ID,
		HasID:       true,
		Title:       row.Title,
		Description: row.Description,
		Headline:    row.Headline,
		People:      splitColumn(row.People),
		Categories:  splitColumn(row.Categories),
		Level:       row.Level,
		Languages:   splitColumn(row.Languages),
		Rating:      row.Rating,
		RatingScale: scale,
		Popularity:  row.Popularity,
		NumReviews:  row.NumReviews,
		IsPaid:      row.IsPaid,
		Adult:       row.Adult,
		URL:         row.URL,
		ImageURL:    row.ImageURL,
		Price:       row.Price,
		SourceRow:   row.VectorRow,
	}
}

// NewCatalogRow converts a catalog item to its database form
func NewCatalogRow(it *catalog.Item) CatalogRow {
	return CatalogRow{
		ID:          it.ID,
		Title:       it.Title,
		Description: it.Description,
		Headline:    it.Headline,
		People:      strings.Join(it.People, "|"),
		Categories:  strings.Join(it.Categories, "|"),
		Level:       it.Level,
		Languages:   strings.Join(it.Languages, "|"),
		Rating:      it.Rating,
		RatingScale: it.RatingScale,
		Popularity:  it.Popularity,
		NumReviews:  it.NumReviews,
		IsPaid:      it.IsPaid,
		Adult:       it.Adult,
		URL:         it.URL,
		ImageURL:    it.ImageURL,
		Price:       it.Price,
		VectorRow:   it.SourceRow,
	}
}

func splitColumn(v string) []string {
	var out []string
	for _, part := range strings.Split(v, "|") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
