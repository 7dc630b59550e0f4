package service

import (
	"context"
	"net/http"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestProductServiceCreate(t *testing.T) {
	products := newFakeProductRepo()
	svc := NewProductService(products)
	ctx := context.Background()

	product, err := svc.Create(ctx, "Chapati", "CHP-01", "kitchen", 3500, 20)
	require.NoError(t, err)
	assert.NotEqual(t, uuid.Nil, product.ID)
	assert.Equal(t, int64(3500), product.Price)

	got, err := svc.Get(ctx, product.ID)
	require.NoError(t, err)
	assert.Equal(t, "Chapati", got.Name)

	_, err = svc.Get(ctx, uuid.New())
	requireAppCode(t, err, http.StatusNotFound)
}

func TestProductServiceCreateValidation(t *testing.T) {
	svc := NewProductService(newFakeProductRepo())
	ctx := context.Background()

	_, err := svc.Create(ctx, "", "CHP-01", "kitchen", 3500, 20)
	requireAppCode(t, err, http.StatusBadRequest)

	_, err = svc.Create(ctx, "Chapati", "", "kitchen", 3500, 20)
	requireAppCode(t, err, http.StatusBadRequest)

	_, err = svc.Create(ctx, "Chapati", "CHP-01", "kitchen", -1, 20)
	requireAppCode(t, err, http.StatusBadRequest)

	_, err = svc.Create(ctx, "Chapati", "CHP-01", "kitchen", 3500, -1)
	requireAppCode(t, err, http.StatusBadRequest)
}
