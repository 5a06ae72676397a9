package store

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/dukerupert/shelf/internal/model"
)

type ProductStore struct {
	db DBTX
}

func NewProductStore(db DBTX) *ProductStore {
	return &ProductStore{db: db}
}

func scanProduct(scanner interface{ Scan(...any) error }) (*model.Product, error) {
	var p model.Product
	var householdID, updatedBy sql.NullInt64
	var minValue sql.NullFloat64
	var minUnit sql.NullString
	err := scanner.Scan(
		&p.ID, &householdID, &p.Name, &p.Tag, &p.Amount.Value, &p.Amount.Unit,
		&minValue, &minUnit, &updatedBy, &p.CreatedAt, &p.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	p.HouseholdID = nullInt64(householdID)
	p.UpdatedBy = nullInt64(updatedBy)
	if minValue.Valid && minUnit.Valid {
		p.MinAmount = &model.Amount{Value: minValue.Float64, Unit: minUnit.String}
	}
	return &p, nil
}

const productCols = `id, household_id, name, tag, amount_value, amount_unit, min_value, min_unit, updated_by, created_at, updated_at`

func minColumns(min *model.Amount) (sql.NullFloat64, sql.NullString) {
	if min == nil {
		return sql.NullFloat64{}, sql.NullString{}
	}
	return sql.NullFloat64{Float64: min.Value, Valid: true}, sql.NullString{String: min.Unit, Valid: true}
}

// Create inserts a product. A nil householdID stores a legacy row that is
// adopted by the next household owner.
func (s *ProductStore) Create(householdID *int64, name, tag string, amount model.Amount, min *model.Amount, updatedBy *int64) (*model.Product, error) {
	var hID, uBy sql.NullInt64
	if householdID != nil {
		hID = sql.NullInt64{Int64: *householdID, Valid: true}
	}
	if updatedBy != nil {
		uBy = sql.NullInt64{Int64: *updatedBy, Valid: true}
	}
	minValue, minUnit := minColumns(min)
	now := time.Now().UTC()

	result, err := s.db.Exec(
		`INSERT INTO products (household_id, name, tag, amount_value, amount_unit, min_value, min_unit, updated_by, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		hID, name, tag, amount.Value, amount.Unit, minValue, minUnit, uBy, now, now,
	)
	if err != nil {
		return nil, fmt.Errorf("insert product: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("last insert id: %w", err)
	}
	return s.GetByID(id)
}

func (s *ProductStore) GetByID(id int64) (*model.Product, error) {
	row := s.db.QueryRow(`SELECT `+productCols+` FROM products WHERE id = ?`, id)
	p, err := scanProduct(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get product: %w", err)
	}
	return p, nil
}

// ListByHousehold returns the household's products, most recently updated first.
func (s *ProductStore) ListByHousehold(householdID int64) ([]model.Product, error) {
	rows, err := s.db.Query(
		`SELECT `+productCols+` FROM products WHERE household_id = ? ORDER BY updated_at DESC, id DESC`,
		householdID,
	)
	if err != nil {
		return nil, fmt.Errorf("list products: %w", err)
	}
	defer rows.Close()

	var products []model.Product
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, fmt.Errorf("scan product: %w", err)
		}
		products = append(products, *p)
	}
	return products, rows.Err()
}

func (s *ProductStore) Update(id int64, name, tag string, amount model.Amount, min *model.Amount, updatedBy int64) (*model.Product, error) {
	minValue, minUnit := minColumns(min)
	_, err := s.db.Exec(
		`UPDATE products SET name = ?, tag = ?, amount_value = ?, amount_unit = ?, min_value = ?, min_unit = ?, updated_by = ?, updated_at = ?
		 WHERE id = ?`,
		name, tag, amount.Value, amount.Unit, minValue, minUnit, updatedBy, time.Now().UTC(), id,
	)
	if err != nil {
		return nil, fmt.Errorf("update product: %w", err)
	}
	return s.GetByID(id)
}

func (s *ProductStore) Delete(id int64) error {
	_, err := s.db.Exec(`DELETE FROM products WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete product: %w", err)
	}
	return nil
}

// ClearUpdatedBy drops the user's attribution from every product of the
// household. The products themselves are kept.
func (s *ProductStore) ClearUpdatedBy(householdID, userID int64) (int64, error) {
	result, err := s.db.Exec(
		`UPDATE products SET updated_by = NULL WHERE household_id = ? AND updated_by = ?`,
		householdID, userID,
	)
	if err != nil {
		return 0, fmt.Errorf("clear product attribution: %w", err)
	}
	count, err := rowsAffected(result)
	if err != nil {
		return 0, fmt.Errorf("rows affected: %w", err)
	}
	return count, nil
}

func (s *ProductStore) DeleteByHousehold(householdID int64) (int64, error) {
	result, err := s.db.Exec(`DELETE FROM products WHERE household_id = ?`, householdID)
	if err != nil {
		return 0, fmt.Errorf("delete products by household: %w", err)
	}
	count, err := rowsAffected(result)
	if err != nil {
		return 0, fmt.Errorf("rows affected: %w", err)
	}
	return count, nil
}

// AdoptLegacy moves products created before households existed into the
// given household, attributed to userID.
func (s *ProductStore) AdoptLegacy(householdID, userID int64, at time.Time) (int64, error) {
	result, err := s.db.Exec(
		`UPDATE products SET household_id = ?, updated_by = ?, updated_at = ? WHERE household_id IS NULL`,
		householdID, userID, at.UTC(),
	)
	if err != nil {
		return 0, fmt.Errorf("adopt legacy products: %w", err)
	}
	count, err := rowsAffected(result)
	if err != nil {
		return 0, fmt.Errorf("rows affected: %w", err)
	}
	return count, nil
}
