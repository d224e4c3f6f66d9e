package repositories

import (
	"context"
	"database/sql"
	"time"

	"tokoBack/internal/models"
)

var ErrBrandNotFound = models.ErrBrandNotFound

type BrandRepository struct {
	DB *sql.DB
}

func (r *BrandRepository) CreateBrand(ctx context.Context, brand models.Brand) (models.Brand, error) {
	now := time.Now()
	brand.CreatedAt = now
	brand.UpdatedAt = now

	result, err := r.DB.ExecContext(ctx,
		`INSERT INTO brands (name, image_path, created_at, updated_at) VALUES (?, ?, ?, ?)`,
		brand.Name, brand.ImagePath, brand.CreatedAt, brand.UpdatedAt)
	if err != nil {
		return models.Brand{}, err
	}
	id, err := result.LastInsertId()
	if err != nil {
		return models.Brand{}, err
	}
	brand.ID = int(id)
	return brand, nil
}

func (r *BrandRepository) GetBrandByID(ctx context.Context, id int) (models.Brand, error) {
	var brand models.Brand
	err := r.DB.QueryRowContext(ctx,
		`SELECT id, name, image_path, created_at, updated_at FROM brands WHERE id = ?`, id).Scan(
		&brand.ID, &brand.Name, &brand.ImagePath, &brand.CreatedAt, &brand.UpdatedAt,
	)
	if err != nil {
		if err == sql.ErrNoRows {
			return models.Brand{}, ErrBrandNotFound
		}
		return models.Brand{}, err
	}
	return brand, nil
}

func (r *BrandRepository) GetAllBrands(ctx context.Context) ([]models.Brand, error) {
	rows, err := r.DB.QueryContext(ctx, `SELECT id, name, image_path, created_at, updated_at FROM brands ORDER BY name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var brands []models.Brand
	for rows.Next() {
		var b models.Brand
		if err := rows.Scan(&b.ID, &b.Name, &b.ImagePath, &b.CreatedAt, &b.UpdatedAt); err != nil {
			return nil, err
		}
		brands = append(brands, b)
	}
	return brands, rows.Err()
}

func (r *BrandRepository) UpdateBrand(ctx context.Context, brand models.Brand) (models.Brand, error) {
	brand.UpdatedAt = time.Now()
	result, err := r.DB.ExecContext(ctx,
		`UPDATE brands SET name = ?, image_path = ?, updated_at = ? WHERE id = ?`,
		brand.Name, brand.ImagePath, brand.UpdatedAt, brand.ID)
	if err != nil {
		return models.Brand{}, err
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return models.Brand{}, err
	}
	if rows == 0 {
		return models.Brand{}, ErrBrandNotFound
	}
	return brand, nil
}

func (r *BrandRepository) DeleteBrand(ctx context.Context, id int) error {
	result, err := r.DB.ExecContext(ctx, `DELETE FROM brands WHERE id = ?`, id)
	if err != nil {
		return err
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return ErrBrandNotFound
	}
	return nil
}
