package repositories

import (
	"context"
	"database/sql"
	"time"

	"tokoBack/internal/models"
)

var ErrProductNotFound = models.ErrProductNotFound

type ProductRepository struct {
	DB *sql.DB
}

func (r *ProductRepository) CreateProduct(ctx context.Context, product models.Product) (models.Product, error) {
	now := time.Now()
	product.CreatedAt = now
	product.UpdatedAt = now

	query := `
		INSERT INTO products (name, price, image_path, brand_id, category_id, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`
	result, err := r.DB.ExecContext(ctx, query, product.Name, product.Price, product.ImagePath, product.BrandID, product.CategoryID, product.CreatedAt, product.UpdatedAt)
	if err != nil {
		return models.Product{}, err
	}
	id, err := result.LastInsertId()
	if err != nil {
		return models.Product{}, err
	}
	product.ID = int(id)
	return product, nil
}

func (r *ProductRepository) GetProductByID(ctx context.Context, id int) (models.Product, error) {
	var product models.Product
	query := `
		SELECT id, name, price, image_path, brand_id, category_id, created_at, updated_at
		FROM products
		WHERE id = ?
	`
	err := r.DB.QueryRowContext(ctx, query, id).Scan(
		&product.ID, &product.Name, &product.Price, &product.ImagePath,
		&product.BrandID, &product.CategoryID, &product.CreatedAt, &product.UpdatedAt,
	)
	if err != nil {
		if err == sql.ErrNoRows {
			return models.Product{}, ErrProductNotFound
		}
		return models.Product{}, err
	}
	return product, nil
}

func (r *ProductRepository) GetAllProducts(ctx context.Context) ([]models.Product, error) {
	query := `
		SELECT id, name, price, image_path, brand_id, category_id, created_at, updated_at
		FROM products
		ORDER BY created_at DESC
	`
	rows, err := r.DB.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var products []models.Product
	for rows.Next() {
		var p models.Product
		if err := rows.Scan(&p.ID, &p.Name, &p.Price, &p.ImagePath, &p.BrandID, &p.CategoryID, &p.CreatedAt, &p.UpdatedAt); err != nil {
			return nil, err
		}
		products = append(products, p)
	}
	return products, rows.Err()
}

func (r *ProductRepository) GetProductsByCategory(ctx context.Context, categoryID int) ([]models.Product, error) {
	query := `
		SELECT id, name, price, image_path, brand_id, category_id, created_at, updated_at
		FROM products
		WHERE category_id = ?
		ORDER BY created_at DESC
	`
	rows, err := r.DB.QueryContext(ctx, query, categoryID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var products []models.Product
	for rows.Next() {
		var p models.Product
		if err := rows.Scan(&p.ID, &p.Name, &p.Price, &p.ImagePath, &p.BrandID, &p.CategoryID, &p.CreatedAt, &p.UpdatedAt); err != nil {
			return nil, err
		}
		products = append(products, p)
	}
	return products, rows.Err()
}

func (r *ProductRepository) UpdateProduct(ctx context.Context, product models.Product) (models.Product, error) {
	product.UpdatedAt = time.Now()
	query := `
		UPDATE products
		SET name = ?, price = ?, image_path = ?, brand_id = ?, category_id = ?, updated_at = ?
		WHERE id = ?
	`
	result, err := r.DB.ExecContext(ctx, query, product.Name, product.Price, product.ImagePath, product.BrandID, product.CategoryID, product.UpdatedAt, product.ID)
	if err != nil {
		return models.Product{}, err
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return models.Product{}, err
	}
	if rows == 0 {
		return models.Product{}, ErrProductNotFound
	}
	return product, nil
}

func (r *ProductRepository) DeleteProduct(ctx context.Context, id int) error {
	result, err := r.DB.ExecContext(ctx, `DELETE FROM products WHERE id = ?`, id)
	if err != nil {
		return err
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return ErrProductNotFound
	}
	return nil
}
