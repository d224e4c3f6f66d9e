package repositories

import (
	"context"
	"database/sql"
	"time"

	"tokoBack/internal/models"
)

var ErrCategoryNotFound = models.ErrCategoryNotFound

type CategoryRepository struct {
	DB *sql.DB
}

func (r *CategoryRepository) CreateCategory(ctx context.Context, category models.Category) (models.Category, error) {
	now := time.Now()
	category.CreatedAt = now
	category.UpdatedAt = now

	query := `
		INSERT INTO categories (name, image_path, created_at, updated_at)
		VALUES (?, ?, ?, ?)
	`
	result, err := r.DB.ExecContext(ctx, query, category.Name, category.ImagePath, category.CreatedAt, category.UpdatedAt)
	if err != nil {
		return models.Category{}, err
	}
	id, err := result.LastInsertId()
	if err != nil {
		return models.Category{}, err
	}
	category.ID = int(id)
	return category, nil
}

func (r *CategoryRepository) GetCategoryByID(ctx context.Context, id int) (models.Category, error) {
	var category models.Category
	query := `
		SELECT id, name, image_path, created_at, updated_at
		FROM categories
		WHERE id = ?
	`
	err := r.DB.QueryRowContext(ctx, query, id).Scan(
		&category.ID, &category.Name, &category.ImagePath, &category.CreatedAt, &category.UpdatedAt,
	)
	if err != nil {
		if err == sql.ErrNoRows {
			return models.Category{}, ErrCategoryNotFound
		}
		return models.Category{}, err
	}
	return category, nil
}

func (r *CategoryRepository) GetAllCategories(ctx context.Context) ([]models.Category, error) {
	rows, err := r.DB.QueryContext(ctx, `SELECT id, name, image_path, created_at, updated_at FROM categories ORDER BY name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var categories []models.Category
	for rows.Next() {
		var c models.Category
		if err := rows.Scan(&c.ID, &c.Name, &c.ImagePath, &c.CreatedAt, &c.UpdatedAt); err != nil {
			return nil, err
		}
		categories = append(categories, c)
	}
	return categories, rows.Err()
}

func (r *CategoryRepository) UpdateCategory(ctx context.Context, category models.Category) (models.Category, error) {
	category.UpdatedAt = time.Now()
	result, err := r.DB.ExecContext(ctx,
		`UPDATE categories SET name = ?, image_path = ?, updated_at = ? WHERE id = ?`,
		category.Name, category.ImagePath, category.UpdatedAt, category.ID)
	if err != nil {
		return models.Category{}, err
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return models.Category{}, err
	}
	if rows == 0 {
		return models.Category{}, ErrCategoryNotFound
	}
	return category, nil
}

func (r *CategoryRepository) DeleteCategory(ctx context.Context, id int) error {
	result, err := r.DB.ExecContext(ctx, `DELETE FROM categories WHERE id = ?`, id)
	if err != nil {
		return err
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return ErrCategoryNotFound
	}
	return nil
}
