package handlers

import (
	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/complaint-desk/internal/api/dto"
	"github.com/spec-kit/complaint-desk/internal/service"
)

// DepartmentsHandler manages department endpoints.
type DepartmentsHandler struct {
	departments *service.DepartmentService
	validate    *validator.Validate
}

// NewDepartmentsHandler constructs handler.
func NewDepartmentsHandler(departments *service.DepartmentService, validate *validator.Validate) *DepartmentsHandler {
	return &DepartmentsHandler{departments: departments, validate: validate}
}

// List GET /departments.
func (h *DepartmentsHandler) List(c *fiber.Ctx) error {
	actor, err := actorFrom(c)
	if err != nil {
		return err
	}
	departments, err := h.departments.List(c.UserContext(), actor)
	if err != nil {
		return err
	}
	items := make([]dto.DepartmentResponse, 0, len(departments))
	for i := range departments {
		items = append(items, dto.NewDepartmentResponse(&departments[i]))
	}
	return c.JSON(fiber.Map{"data": items})
}

// Get GET /departments/:id.
func (h *DepartmentsHandler) Get(c *fiber.Ctx) error {
	actor, err := actorFrom(c)
	if err != nil {
		return err
	}
	dept, err := h.departments.Get(c.UserContext(), actor, c.Params("id"))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.NewDepartmentResponse(dept)})
}

// Create POST /departments.
func (h *DepartmentsHandler) Create(c *fiber.Ctx) error {
	actor, err := actorFrom(c)
	if err != nil {
		return err
	}
	var req dto.DepartmentRequest
	if err := bind(c, h.validate, &req); err != nil {
		return err
	}
	dept, err := h.departments.Create(c.UserContext(), actor, service.DepartmentInput{
		Name:         req.Name,
		Description:  req.Description,
		SupervisorID: req.SupervisorID,
		IsActive:     req.IsActive,
	})
	if err != nil {
		return err
	}
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"data": dto.NewDepartmentResponse(dept)})
}

// Update PUT /departments/:id.
func (h *DepartmentsHandler) Update(c *fiber.Ctx) error {
	actor, err := actorFrom(c)
	if err != nil {
		return err
	}
	var req dto.DepartmentRequest
	if err := bind(c, h.validate, &req); err != nil {
		return err
	}
	dept, err := h.departments.Update(c.UserContext(), actor, c.Params("id"), service.DepartmentInput{
		Name:         req.Name,
		Description:  req.Description,
		SupervisorID: req.SupervisorID,
		IsActive:     req.IsActive,
	})
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.NewDepartmentResponse(dept)})
}

// Delete DELETE /departments/:id.
func (h *DepartmentsHandler) Delete(c *fiber.Ctx) error {
	actor, err := actorFrom(c)
	if err != nil {
		return err
	}
	if err := h.departments.Delete(c.UserContext(), actor, c.Params("id")); err != nil {
		return err
	}
	return c.SendStatus(fiber.StatusNoContent)
}
