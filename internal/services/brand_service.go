package services

import (
	"context"

	"tokoBack/internal/models"
	"tokoBack/internal/repositories"
)

type BrandService struct {
	BrandRepo *repositories.BrandRepository
}

func (s *BrandService) CreateBrand(ctx context.Context, brand models.Brand) (models.Brand, error) {
	return s.BrandRepo.CreateBrand(ctx, brand)
}

func (s *BrandService) GetBrandByID(ctx context.Context, id int) (models.Brand, error) {
	return s.BrandRepo.GetBrandByID(ctx, id)
}

func (s *BrandService) GetAllBrands(ctx context.Context) ([]models.Brand, error) {
	return s.BrandRepo.GetAllBrands(ctx)
}

func (s *BrandService) UpdateBrand(ctx context.Context, brand models.Brand) (models.Brand, error) {
	return s.BrandRepo.UpdateBrand(ctx, brand)
}

func (s *BrandService) DeleteBrand(ctx context.Context, id int) error {
	return s.BrandRepo.DeleteBrand(ctx, id)
}
