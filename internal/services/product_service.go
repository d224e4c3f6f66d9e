package services

import (
	"context"

	"tokoBack/internal/models"
	"tokoBack/internal/repositories"
)

type ProductService struct {
	ProductRepo *repositories.ProductRepository
}

func (s *ProductService) CreateProduct(ctx context.Context, product models.Product) (models.Product, error) {
	return s.ProductRepo.CreateProduct(ctx, product)
}

func (s *ProductService) GetProductByID(ctx context.Context, id int) (models.Product, error) {
	return s.ProductRepo.GetProductByID(ctx, id)
}

func (s *ProductService) GetAllProducts(ctx context.Context) ([]models.Product, error) {
	return s.ProductRepo.GetAllProducts(ctx)
}

func (s *ProductService) GetProductsByCategory(ctx context.Context, categoryID int) ([]models.Product, error) {
	return s.ProductRepo.GetProductsByCategory(ctx, categoryID)
}

func (s *ProductService) UpdateProduct(ctx context.Context, product models.Product) (models.Product, error) {
	return s.ProductRepo.UpdateProduct(ctx, product)
}

func (s *ProductService) DeleteProduct(ctx context.Context, id int) error {
	return s.ProductRepo.DeleteProduct(ctx, id)
}
