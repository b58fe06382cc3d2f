package http

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/taskmaster/agenda/internal/infrastructure/logger"
	"github.com/taskmaster/agenda/internal/ports"
)

// ShoppingHandler handles shopping list requests
type ShoppingHandler struct {
	shoppingService ports.ShoppingService
	logger          *logger.Logger
}

// NewShoppingHandler creates a new shopping handler
func NewShoppingHandler(shoppingService ports.ShoppingService, logger *logger.Logger) *ShoppingHandler {
	return &ShoppingHandler{
		shoppingService: shoppingService,
		logger:          logger,
	}
}

// ListLists godoc
// @Summary List every shopping list with totals
// @Tags shopping
// @Produce json
// @Success 200 {array} ports.ShoppingList
// @Security BearerAuth
// @Router /shopping [get]
func (h *ShoppingHandler) ListLists(c echo.Context) error {
	return c.JSON(http.StatusOK, h.shoppingService.Lists(c.Request().Context()))
}

// GetList godoc
// @Summary Get one shopping list
// @Tags shopping
// @Produce json
// @Param list path string true "List name"
// @Success 200 {object} ports.ShoppingList
// @Failure 400 {object} ErrorResponse
// @Security BearerAuth
// @Router /shopping/{list} [get]
func (h *ShoppingHandler) GetList(c echo.Context) error {
	list, err := h.shoppingService.Items(c.Request().Context(), c.Param("list"))
	if err != nil {
		return fail(h.logger, c, "Get shopping list failed", err)
	}
	return c.JSON(http.StatusOK, list)
}

// AddItem godoc
// @Summary Add an item to a shopping list
// @Tags shopping
// @Accept json
// @Produce json
// @Param list path string true "List name"
// @Param request body ports.ShoppingItemForm true "Item data"
// @Success 201 {object} entities.ShoppingItem
// @Failure 400 {object} ErrorResponse
// @Failure 502 {object} ErrorResponse
// @Security BearerAuth
// @Router /shopping/{list}/items [post]
func (h *ShoppingHandler) AddItem(c echo.Context) error {
	var form ports.ShoppingItemForm
	if err := c.Bind(&form); err != nil {
		return badRequest()
	}

	item, err := h.shoppingService.Add(c.Request().Context(), c.Param("list"), form)
	if err != nil {
		return fail(h.logger, c, "Add shopping item failed", err)
	}
	return c.JSON(http.StatusCreated, item)
}

// UpdateItem godoc
// @Summary Edit a shopping item
// @Tags shopping
// @Accept json
// @Produce json
// @Param list path string true "List name"
// @Param id path string true "Item ID"
// @Param request body ports.ShoppingItemForm true "Item data"
// @Success 200 {object} entities.ShoppingItem
// @Failure 400 {object} ErrorResponse
// @Failure 404 {object} ErrorResponse
// @Security BearerAuth
// @Router /shopping/{list}/items/{id} [put]
func (h *ShoppingHandler) UpdateItem(c echo.Context) error {
	var form ports.ShoppingItemForm
	if err := c.Bind(&form); err != nil {
		return badRequest()
	}

	item, err := h.shoppingService.Update(c.Request().Context(), c.Param("list"), c.Param("id"), form)
	if err != nil {
		return fail(h.logger, c, "Update shopping item failed", err)
	}
	return c.JSON(http.StatusOK, item)
}

// ToggleItem godoc
// @Summary Flip the purchased flag of a shopping item
// @Tags shopping
// @Produce json
// @Param list path string true "List name"
// @Param id path string true "Item ID"
// @Success 200 {object} entities.ShoppingItem
// @Failure 404 {object} ErrorResponse
// @Security BearerAuth
// @Router /shopping/{list}/items/{id}/toggle [post]
func (h *ShoppingHandler) ToggleItem(c echo.Context) error {
	item, err := h.shoppingService.Toggle(c.Request().Context(), c.Param("list"), c.Param("id"))
	if err != nil {
		return fail(h.logger, c, "Toggle shopping item failed", err)
	}
	return c.JSON(http.StatusOK, item)
}

// DeleteItem godoc
// @Summary Remove a shopping item
// @Tags shopping
// @Param list path string true "List name"
// @Param id path string true "Item ID"
// @Success 204
// @Failure 404 {object} ErrorResponse
// @Security BearerAuth
// @Router /shopping/{list}/items/{id} [delete]
func (h *ShoppingHandler) DeleteItem(c echo.Context) error {
	if err := h.shoppingService.Delete(c.Request().Context(), c.Param("list"), c.Param("id")); err != nil {
		return fail(h.logger, c, "Delete shopping item failed", err)
	}
	return c.NoContent(http.StatusNoContent)
}
