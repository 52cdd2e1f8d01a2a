package controllers

import (
	"context"
	"net/http"

	"gravecare-api/middleware"
	"gravecare-api/models"
	"gravecare-api/services"
	"gravecare-api/utils"
)

// Orders is the order use case behind the order endpoints
type Orders interface {
	Submit(ctx context.Context, userID string, in services.OrderInput) (services.SubmitResult, error)
	List(ctx context.Context, userID string) ([]models.Order, error)
}

// OrderController handles order-related requests
type OrderController struct {
	Orders Orders
}

// NewOrderController creates a new OrderController
func NewOrderController(orders Orders) *OrderController {
	return &OrderController{Orders: orders}
}

// CreateOrder persists an order for the authenticated user. Every persisted
// order answers 201, whatever happened to its notification.
func (oc *OrderController) CreateOrder(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.UserID(r.Context())
	if !ok {
		utils.ErrorResponse(w, errUnauthenticated())
		return
	}

	var in services.OrderInput
	if err := decodeBody(r, &in); err != nil {
		utils.ErrorResponse(w, err)
		return
	}

	res, err := oc.Orders.Submit(r.Context(), userID, in)
	if err != nil {
		utils.ErrorResponse(w, err)
		return
	}
	utils.JSONResponse(w, http.StatusCreated, res)
}

// GetOrders lists the authenticated user's orders, newest first
func (oc *OrderController) GetOrders(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.UserID(r.Context())
	if !ok {
		utils.ErrorResponse(w, errUnauthenticated())
		return
	}

	orders, err := oc.Orders.List(r.Context(), userID)
	if err != nil {
		utils.ErrorResponse(w, err)
		return
	}
	utils.JSONResponse(w, http.StatusOK, orders)
}
