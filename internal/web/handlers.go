package web

import (
	"github.com/gofiber/fiber/v2"
)

// Every action answers with the state as it stands once the action has been
// applied. Results of background calls arrive later on /ws/state.

type queryRequest struct {
	Query *string `json:"query"`
}

type indexRequest struct {
	Index *int `json:"index"`
}

// customerRequest carries the detail fields being edited. Absent fields keep
// their current value.
type customerRequest struct {
	Name    *string `json:"name"`
	Phone   *string `json:"phone"`
	Address *string `json:"address"`
}

type deltaRequest struct {
	Delta int `json:"delta"`
}

func (s *Server) state(c *fiber.Ctx) error {
	return c.JSON(s.shop.Snapshot())
}

func (s *Server) handleQuery(c *fiber.Ctx) error {
	var req queryRequest
	if err := c.BodyParser(&req); err != nil || req.Query == nil {
		return fiber.NewError(fiber.StatusBadRequest, "query is required")
	}
	s.shop.SetQuery(*req.Query)
	return s.state(c)
}

// handleSearch searches for the posted query, or for the current query text
// when the body names none.
func (s *Server) handleSearch(c *fiber.Ctx) error {
	var req queryRequest
	if len(c.Body()) > 0 {
		if err := c.BodyParser(&req); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "invalid search body")
		}
	}
	term := s.shop.Snapshot().Query
	if req.Query != nil {
		term = *req.Query
	}
	s.shop.Search(term)
	return s.state(c)
}

func (s *Server) handleMic(c *fiber.Ctx) error {
	if err := s.shop.ToggleMic(c.UserContext()); err != nil {
		s.logger.Warn("microphone toggle failed", slogError(err))
	}
	return s.state(c)
}

func (s *Server) handleAddToCart(c *fiber.Ctx) error {
	index, err := bodyIndex(c)
	if err != nil {
		return err
	}
	s.shop.AddToCart(index)
	return s.state(c)
}

func (s *Server) handleUpdateQuantity(c *fiber.Ctx) error {
	index, err := c.ParamsInt("index")
	if err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "index must be an integer")
	}
	var req deltaRequest
	if err := c.BodyParser(&req); err != nil || req.Delta == 0 {
		return fiber.NewError(fiber.StatusBadRequest, "delta must be a non-zero integer")
	}
	s.shop.UpdateQuantity(index, req.Delta)
	return s.state(c)
}

func (s *Server) handleRemove(c *fiber.Ctx) error {
	index, err := c.ParamsInt("index")
	if err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "index must be an integer")
	}
	s.shop.RemoveFromCart(index)
	return s.state(c)
}

func (s *Server) handleCustomer(c *fiber.Ctx) error {
	var req customerRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid customer body")
	}
	if req.Name != nil {
		s.shop.SetCustomerName(*req.Name)
	}
	if req.Phone != nil {
		s.shop.SetPhone(*req.Phone)
	}
	if req.Address != nil {
		s.shop.SetAddress(*req.Address)
	}
	return s.state(c)
}

func (s *Server) handleOrder(c *fiber.Ctx) error {
	s.shop.PlaceOrder()
	return s.state(c)
}

func (s *Server) handleOpenPreview(c *fiber.Ctx) error {
	index, err := bodyIndex(c)
	if err != nil {
		return err
	}
	s.shop.OpenPreview(index)
	return s.state(c)
}

func (s *Server) handleClosePreview(c *fiber.Ctx) error {
	s.shop.ClosePreview()
	return s.state(c)
}

func bodyIndex(c *fiber.Ctx) (int, error) {
	var req indexRequest
	if err := c.BodyParser(&req); err != nil || req.Index == nil {
		return 0, fiber.NewError(fiber.StatusBadRequest, "index is required")
	}
	return *req.Index, nil
}
